package authz

import (
	"context"
	"fmt"

	"github.com/dawnmoon/charon/internal/rbac/credstore"
)

// Resolver computes the full set of permission codes reachable by a user
// through their role assignments. It is a pure read over the credential
// store: the session cache is the only cache layer.
type Resolver struct {
	creds credstore.Store
}

// NewResolver constructs a Resolver.
func NewResolver(creds credstore.Store) *Resolver {
	return &Resolver{creds: creds}
}

// Resolve returns the deduplicated permission codes for the user.
func (r *Resolver) Resolve(ctx context.Context, userID int64) ([]string, error) {
	perms, err := r.creds.FindPermissionsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: resolve permissions for user %d: %w", userID, err)
	}
	seen := make(map[string]struct{}, len(perms))
	codes := make([]string, 0, len(perms))
	for _, perm := range perms {
		if _, ok := seen[perm.Code]; ok {
			continue
		}
		seen[perm.Code] = struct{}{}
		codes = append(codes, perm.Code)
	}
	return codes, nil
}

// ResolveRoles returns the names of the user's current roles.
func (r *Resolver) ResolveRoles(ctx context.Context, userID int64) ([]string, error) {
	roles, err := r.creds.FindRolesByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: resolve roles for user %d: %w", userID, err)
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}

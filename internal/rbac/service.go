package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dawnmoon/charon/internal/shared"
)

// RepositoryPort defines the persistence operations the service needs.
type RepositoryPort interface {
	Store
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, code, description string) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	AssignRoleToUser(ctx context.Context, userID, roleID int64) error
	RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error
	AttachPermissionToRole(ctx context.Context, roleID, permissionID int64) error
	DetachPermissionFromRole(ctx context.Context, roleID, permissionID int64) error
}

// Service orchestrates role/permission graph management. Every mutation
// of the user-role or role-permission associations triggers the matching
// cache refresh so live sessions pick up the change.
type Service struct {
	repo      RepositoryPort
	refresher Refresher
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, refresher Refresher, logger *slog.Logger) *Service {
	return &Service{repo: repo, refresher: refresher, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("rbac: role name required")
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole updates an existing role. Renaming a role does not touch any
// cached session: records hold role names resolved at write time and are
// corrected by the next refresh.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("rbac: role name required")
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role. Holders of the role lose its permissions, so
// their cached sets are refreshed.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	affected, err := s.repo.FindUsersByRoleID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	for _, userID := range affected {
		if err := s.refresher.RefreshUser(ctx, userID); err != nil {
			s.logger.Warn("refresh after role delete", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	return nil
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission inserts a new permission after validating its code.
func (s *Service) CreatePermission(ctx context.Context, code, description string) (Permission, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !shared.IsValidPermCode(code) {
		return Permission{}, fmt.Errorf("rbac: permission code %q must match MODULE:ACTION", code)
	}
	return s.repo.CreatePermission(ctx, code, strings.TrimSpace(description))
}

// DeletePermission removes a permission together with its role
// attachments. Cached records may carry the deleted code until their
// owners' next refresh or re-login; no requirement references a deleted
// code, so the dangling grant is inert.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.repo.DeletePermission(ctx, id)
}

// AssignRole assigns a role to a user and refreshes the user's cached
// permission set.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.AssignRoleToUser(ctx, userID, roleID); err != nil {
		return err
	}
	if err := s.refresher.RefreshUser(ctx, userID); err != nil {
		s.logger.Warn("refresh after role assign", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return nil
}

// RemoveRole removes a role from a user and refreshes the user's cached
// permission set.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if err := s.repo.RemoveRoleFromUser(ctx, userID, roleID); err != nil {
		return err
	}
	if err := s.refresher.RefreshUser(ctx, userID); err != nil {
		s.logger.Warn("refresh after role remove", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return nil
}

// GrantPermission attaches a permission to a role and refreshes every
// holder of that role.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	if err := s.repo.AttachPermissionToRole(ctx, roleID, permissionID); err != nil {
		return err
	}
	if err := s.refresher.RefreshUsersByRole(ctx, roleID); err != nil {
		s.logger.Warn("refresh after permission grant", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
	return nil
}

// RevokePermission detaches a permission from a role and refreshes every
// holder of that role.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	if err := s.repo.DetachPermissionFromRole(ctx, roleID, permissionID); err != nil {
		return err
	}
	if err := s.refresher.RefreshUsersByRole(ctx, roleID); err != nil {
		s.logger.Warn("refresh after permission revoke", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
	return nil
}

// SetRolePermissions replaces a role's permissions with the given set and
// refreshes the role's holders once.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	existing, err := s.repo.FindPermissionsByRoleID(ctx, roleID)
	if err != nil {
		return err
	}
	current := make(map[int64]struct{}, len(existing))
	for _, p := range existing {
		current[p.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := current[id]; !ok {
			if err := s.repo.AttachPermissionToRole(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range current {
		if _, ok := keep[id]; !ok {
			if err := s.repo.DetachPermissionFromRole(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	if err := s.refresher.RefreshUsersByRole(ctx, roleID); err != nil {
		s.logger.Warn("refresh after permission set", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
	return nil
}

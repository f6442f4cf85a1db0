// Package credstore holds the credential-store domain types and query
// contract shared between the rbac package and the session core.
package credstore

import (
	"context"
	"time"
)

// User represents a user account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	RealName     string
	Email        string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role represents a named permission grouping.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability identified by a
// MODULE:ACTION code.
type Permission struct {
	ID          int64
	Code        string
	Description string
}

// Store is the credential-store query contract consumed by the session
// core: user lookups plus graph traversal from users to roles to
// permissions. Implementations return zero values, not errors, when
// nothing matches.
type Store interface {
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	FindRolesByUserID(ctx context.Context, userID int64) ([]Role, error)
	FindPermissionsByUserID(ctx context.Context, userID int64) ([]Permission, error)
	FindPermissionsByRoleID(ctx context.Context, roleID int64) ([]Permission, error)
	FindUsersByRoleID(ctx context.Context, roleID int64) ([]int64, error)
}

// Refresher rewrites cached permission sets after a graph mutation. It is
// implemented by the authz propagator and injected at wiring time.
type Refresher interface {
	RefreshUser(ctx context.Context, userID int64) error
	RefreshUsersByRole(ctx context.Context, roleID int64) error
}

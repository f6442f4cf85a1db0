// Package rbac owns the role/permission graph: users, roles, permissions
// and their many-to-many associations, persisted in PostgreSQL. Mutations
// to the graph trigger the session-cache refresh path so cached permission
// sets never diverge permanently from the store.
package rbac

import "github.com/dawnmoon/charon/internal/rbac/credstore"

// User represents a user account.
type User = credstore.User

// Role represents a named permission grouping.
type Role = credstore.Role

// Permission represents an atomic capability identified by a
// MODULE:ACTION code.
type Permission = credstore.Permission

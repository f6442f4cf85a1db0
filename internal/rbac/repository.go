package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dawnmoon/charon/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the
// role/permission graph. It implements Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, password_hash, real_name, email, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RealName, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByUsername fetches a user by username. Returns (nil, nil) when
// no such user exists.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: find user by username: %w", err)
	}
	return user, nil
}

// FindUserByID fetches a user by ID. Returns (nil, nil) when absent.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: find user by id: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new user account. A duplicate username maps to
// shared.ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash, realName, email string) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, real_name, email, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 RETURNING `+userColumns,
		username, passwordHash, realName, email))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("rbac: username %q: %w", username, shared.ErrDuplicate)
		}
		return nil, fmt.Errorf("rbac: create user: %w", err)
	}
	return user, nil
}

// FindRolesByUserID returns the roles currently assigned to the user.
func (r *Repository) FindRolesByUserID(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: find roles by user: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// FindPermissionsByUserID returns the deduplicated set of permissions
// reachable through the user's role assignments.
func (r *Repository) FindPermissionsByUserID(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT p.id, p.code, p.description
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = $1
		 ORDER BY p.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: find permissions by user: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// FindPermissionsByRoleID returns the permissions attached to a role.
func (r *Repository) FindPermissionsByRoleID(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.code, p.description
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1
		 ORDER BY p.code`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: find permissions by role: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// FindUsersByRoleID returns the IDs of every user holding the role.
func (r *Repository) FindUsersByRoleID(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM user_roles WHERE role_id = $1 ORDER BY user_id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: find users by role: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("rbac: role %d: %w", id, shared.ErrNotFound)
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, created_at, updated_at`,
		name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("rbac: role %q: %w", name, shared.ErrDuplicate)
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// UpdateRole updates an existing role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		id, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("rbac: role %d: %w", id, shared.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("rbac: role %q: %w", name, shared.ErrDuplicate)
		}
		return Role{}, fmt.Errorf("rbac: update role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a role and its associations.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rbac: role %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListPermissions returns all permissions ordered by code.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, description FROM permissions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// CreatePermission inserts a new permission.
func (r *Repository) CreatePermission(ctx context.Context, code, description string) (Permission, error) {
	var perm Permission
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (code, description) VALUES ($1, $2)
		 RETURNING id, code, description`,
		code, description).
		Scan(&perm.ID, &perm.Code, &perm.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return Permission{}, fmt.Errorf("rbac: permission %q: %w", code, shared.ErrDuplicate)
		}
		return Permission{}, fmt.Errorf("rbac: create permission: %w", err)
	}
	return perm, nil
}

// DeletePermission removes a permission and its role attachments.
func (r *Repository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rbac: permission %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// AssignRoleToUser creates a user-role association. Assigning an already
// held role maps to shared.ErrDuplicate.
func (r *Repository) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rbac: user %d already holds role %d: %w", userID, roleID, shared.ErrDuplicate)
		}
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	return nil
}

// RemoveRoleFromUser deletes a user-role association.
func (r *Repository) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rbac: user %d does not hold role %d: %w", userID, roleID, shared.ErrNotFound)
	}
	return nil
}

// AttachPermissionToRole creates a role-permission association.
func (r *Repository) AttachPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("rbac: attach permission: %w", err)
	}
	return nil
}

// DetachPermissionFromRole deletes a role-permission association.
func (r *Repository) DetachPermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("rbac: detach permission: %w", err)
	}
	return nil
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Code, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

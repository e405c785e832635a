package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type rbacRepository struct {
	BaseRepository
}

func NewRBACRepository(base BaseRepository) repository.RBACRepository {
	return &rbacRepository{base}
}

// CreateRole inserts role and links permissions in one transaction. Unknown
// permission names roll the insert back.
func (r *rbacRepository) CreateRole(ctx context.Context, role *model.Role, permissions []string) error {
	query := `
		INSERT INTO roles (id, name, description, is_system_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	role.ID = uuid.New()
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			role.ID,
			role.Name,
			role.Description,
			role.IsSystemRole,
			role.CreatedAt,
			role.UpdatedAt,
		)
		if err != nil {
			return mapError(err, "create role", "role")
		}
		return replaceRolePermissions(ctx, tx, role.ID, permissions)
	})
}

func (r *rbacRepository) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	query := `
		SELECT id, name, description, is_system_role, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, id); err != nil {
		return nil, mapError(err, "get role", "role")
	}
	return &role, nil
}

func (r *rbacRepository) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	query := `
		SELECT id, name, description, is_system_role, created_at, updated_at
		FROM roles
		WHERE name = $1
	`
	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, name); err != nil {
		return nil, mapError(err, "get role by name", "role")
	}
	return &role, nil
}

// UpdateRole renames role and, when permissions is non-nil, replaces its
// permission set in the same transaction.
func (r *rbacRepository) UpdateRole(ctx context.Context, role *model.Role, permissions []string) error {
	query := `
		UPDATE roles
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`
	role.UpdatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			role.Name,
			role.Description,
			role.UpdatedAt,
			role.ID,
		)
		if err != nil {
			return mapError(err, "update role", "role")
		}
		if err := checkAffected(result, "role"); err != nil {
			return err
		}
		if permissions == nil {
			return nil
		}
		return replaceRolePermissions(ctx, tx, role.ID, permissions)
	})
}

func (r *rbacRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var holders int
		if err := tx.GetContext(ctx, &holders, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("failed to count role holders: %w", err)
		}
		if holders > 0 {
			return apperrors.Conflict("role is still assigned to users", nil)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete role permissions: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return mapError(err, "delete role", "role")
		}
		return checkAffected(result, "role")
	})
}

func (r *rbacRepository) ListRoles(ctx context.Context) ([]*model.Role, error) {
	query := `
		SELECT id, name, description, is_system_role, created_at, updated_at
		FROM roles
		ORDER BY is_system_role DESC, name
	`
	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, mapError(err, "list roles", "role")
	}
	return roles, nil
}

// SetRolePermissions replaces the permission set of a role. Unknown
// permission names are rejected before anything is changed.
func (r *rbacRepository) SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissions []string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return replaceRolePermissions(ctx, tx, roleID, permissions)
	})
}

func replaceRolePermissions(ctx context.Context, tx *sqlx.Tx, roleID uuid.UUID, permissions []string) error {
	var ids []uuid.UUID
	if len(permissions) > 0 {
		query := `SELECT id FROM permissions WHERE name = ANY($1)`
		if err := tx.SelectContext(ctx, &ids, query, pq.Array(permissions)); err != nil {
			return fmt.Errorf("failed to resolve permissions: %w", err)
		}
		if len(ids) != len(dedupe(permissions)) {
			return apperrors.Validation("unknown permission in request")
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}
	for _, id := range ids {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, id)
		if err != nil {
			return mapError(err, "add role permission", "role permission")
		}
	}
	return nil
}

func (r *rbacRepository) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	query := `
		SELECT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name
	`
	var names []string
	if err := r.db.SelectContext(ctx, &names, query, roleID); err != nil {
		return nil, mapError(err, "list role permissions", "role")
	}
	return names, nil
}

func (r *rbacRepository) PermissionsForRoles(ctx context.Context, roleNames []string) (map[string][]string, error) {
	result := make(map[string][]string, len(roleNames))
	if len(roleNames) == 0 {
		return result, nil
	}

	query := `
		SELECT r.name AS role_name, p.name AS permission_name
		FROM roles r
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE r.name = ANY($1)
	`
	var rows []struct {
		RoleName       string `db:"role_name"`
		PermissionName string `db:"permission_name"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(roleNames)); err != nil {
		return nil, mapError(err, "load role permissions", "role")
	}
	for _, name := range roleNames {
		result[name] = []string{}
	}
	for _, row := range rows {
		result[row.RoleName] = append(result[row.RoleName], row.PermissionName)
	}
	return result, nil
}

func (r *rbacRepository) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	query := `
		SELECT id, name, description, category, created_at
		FROM permissions
		ORDER BY category, name
	`
	var permissions []*model.Permission
	if err := r.db.SelectContext(ctx, &permissions, query); err != nil {
		return nil, mapError(err, "list permissions", "permission")
	}
	return permissions, nil
}

func (r *rbacRepository) EnsurePermission(ctx context.Context, permission *model.Permission) error {
	query := `
		INSERT INTO permissions (id, name, description, category, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description, category = EXCLUDED.category
		RETURNING id, created_at
	`
	if permission.ID == uuid.Nil {
		permission.ID = uuid.New()
	}
	row := r.db.QueryRowxContext(ctx, query,
		permission.ID,
		permission.Name,
		permission.Description,
		permission.Category,
	)
	if err := row.Scan(&permission.ID, &permission.CreatedAt); err != nil {
		return mapError(err, "ensure permission", "permission")
	}
	return nil
}

// EnsureSystemRole creates the named role as a system role when missing and
// links the given permissions to it. Existing links are kept.
func (r *rbacRepository) EnsureSystemRole(ctx context.Context, name string, permissions []string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var roleID uuid.UUID
		query := `
			INSERT INTO roles (id, name, description, is_system_role, created_at, updated_at)
			VALUES ($1, $2, $3, TRUE, NOW(), NOW())
			ON CONFLICT (name) DO UPDATE SET is_system_role = TRUE
			RETURNING id
		`
		if err := tx.GetContext(ctx, &roleID, query, uuid.New(), name, name+" system role"); err != nil {
			return mapError(err, "ensure role", "role")
		}
		if len(permissions) == 0 {
			return nil
		}

		link := `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE name = ANY($2)
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, link, roleID, pq.Array(permissions)); err != nil {
			return mapError(err, "link role permissions", "role permission")
		}
		return nil
	})
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

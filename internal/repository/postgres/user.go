package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const userColumns = `u.id, u.email, u.username, u.full_name, u.password_hash, u.is_active,
	u.email_confirmed, u.patient_record_id, u.created_at, u.updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User, roles []string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		return assignRolesTx(ctx, tx, user.ID, roles)
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, mapError(err, "get user", "user")
	}
	if err := r.loadRoles(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE lower(u.username) = lower($1) OR lower(u.email) = lower($1)
		LIMIT 1
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(login)); err != nil {
		return nil, mapError(err, "get user by login", "user")
	}
	if err := r.loadRoles(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByPatientRecord(ctx context.Context, patientRecordID uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.patient_record_id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, patientRecordID); err != nil {
		return nil, mapError(err, "get user by patient record", "user")
	}
	if err := r.loadRoles(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter *model.UserFilter) ([]*model.User, error) {
	if filter == nil {
		filter = &model.UserFilter{}
	}

	query := `SELECT ` + userColumns + ` FROM users u WHERE 1=1`
	var args []interface{}

	if filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM user_roles ur JOIN roles ro ON ro.id = ur.role_id
			WHERE ur.user_id = u.id AND ro.name = $%d)`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		query += fmt.Sprintf(` AND (lower(u.full_name) LIKE $%d OR lower(u.email) LIKE $%d OR lower(u.username) LIKE $%d)`,
			len(args), len(args), len(args))
	}

	args = append(args, filter.Limit(), filter.Offset())
	query += fmt.Sprintf(` ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, mapError(err, "list users", "user")
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]uuid.UUID, len(users))
	byID := make(map[uuid.UUID]*model.User, len(users))
	for i, u := range users {
		ids[i] = u.ID
		byID[u.ID] = u
	}

	var rows []struct {
		UserID uuid.UUID `db:"user_id"`
		Name   string    `db:"name"`
	}
	rolesQuery := `
		SELECT ur.user_id, r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ANY($1::uuid[])
		ORDER BY r.name
	`
	if err := r.db.SelectContext(ctx, &rows, rolesQuery, pq.Array(uuidStrings(ids))); err != nil {
		return nil, mapError(err, "list user roles", "user")
	}
	for _, row := range rows {
		if u, ok := byID[row.UserID]; ok {
			u.Roles = append(u.Roles, row.Name)
		}
	}
	return users, nil
}

func (r *userRepository) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return assignRolesTx(ctx, tx, userID, []string{roleName})
	})
}

func (r *userRepository) RemoveRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	query := `
		DELETE FROM user_roles
		WHERE user_id = $1 AND role_id = (SELECT id FROM roles WHERE name = $2)
	`
	result, err := r.db.ExecContext(ctx, query, userID, roleName)
	if err != nil {
		return mapError(err, "remove role", "role assignment")
	}
	return checkAffected(result, "role assignment")
}

// Delete drops the role links first, then the user. Tokens and assignments
// cascade; prescriptions, vitals, consultations and doctor profiles do not.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return mapError(err, "delete user roles", "role assignment")
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.Conflict("user is still referenced by clinical records", err)
			}
			return mapError(err, "delete user", "user")
		}
		return checkAffected(result, "user")
	})
}

func (r *userRepository) loadRoles(ctx context.Context, user *model.User) error {
	query := `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`
	var roles []string
	if err := r.db.SelectContext(ctx, &roles, query, user.ID); err != nil {
		return fmt.Errorf("failed to load user roles: %w", err)
	}
	user.Roles = roles
	return nil
}

func insertUser(ctx context.Context, tx *sqlx.Tx, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, username, full_name, password_hash, is_active,
			email_confirmed, patient_record_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := tx.ExecContext(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.Username,
		user.FullName,
		user.PasswordHash,
		user.IsActive,
		user.EmailConfirmed,
		user.PatientRecordID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "create user", "username or email")
	}
	return nil
}

func assignRolesTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, roles []string) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, created_at)
		SELECT $1, id, NOW() FROM roles WHERE name = $2
	`
	for _, name := range roles {
		result, err := tx.ExecContext(ctx, query, userID, name)
		if err != nil {
			return mapError(err, "assign role", "role assignment")
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return apperrors.NotFound("role "+name, nil)
		}
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const doctorSelect = `
	SELECT d.id, d.user_id, u.full_name, d.specialization_id, d.phone_number, d.bio,
		d.years_of_experience, d.consultation_fee, d.is_active, d.created_at, d.updated_at,
		u.email, s.name AS specialization_name
	FROM doctor_profiles d
	JOIN users u ON u.id = d.user_id
	JOIN specializations s ON s.id = d.specialization_id
`

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

// CreateWithUser creates the doctor's user account with the Doctor role and
// the profile in one transaction.
func (r *doctorRepository) CreateWithUser(ctx context.Context, profile *model.DoctorProfile, user *model.User) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		if err := assignRolesTx(ctx, tx, user.ID, []string{model.RoleDoctor}); err != nil {
			return err
		}
		user.Roles = []string{model.RoleDoctor}

		query := `
			INSERT INTO doctor_profiles (
				id, user_id, specialization_id, phone_number, bio,
				years_of_experience, consultation_fee, is_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		profile.ID = uuid.New()
		profile.UserID = user.ID
		profile.FullName = user.FullName
		profile.Email = user.Email
		profile.CreatedAt = time.Now().UTC()
		profile.UpdatedAt = profile.CreatedAt

		_, err := tx.ExecContext(ctx, query,
			profile.ID,
			profile.UserID,
			profile.SpecializationID,
			profile.PhoneNumber,
			profile.Bio,
			profile.YearsOfExperience,
			profile.ConsultationFee,
			profile.IsActive,
			profile.CreatedAt,
			profile.UpdatedAt,
		)
		if err != nil {
			return mapError(err, "create doctor profile", "doctor profile")
		}
		return nil
	})
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	var profile model.DoctorProfile
	if err := r.db.GetContext(ctx, &profile, doctorSelect+` WHERE d.id = $1`, id); err != nil {
		return nil, mapError(err, "get doctor", "doctor")
	}
	return &profile, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	var profile model.DoctorProfile
	if err := r.db.GetContext(ctx, &profile, doctorSelect+` WHERE d.user_id = $1`, userID); err != nil {
		return nil, mapError(err, "get doctor by user", "doctor")
	}
	return &profile, nil
}

func (r *doctorRepository) List(ctx context.Context, filter *model.DoctorFilter) ([]*model.DoctorProfile, error) {
	query := doctorSelect + ` WHERE 1=1`
	var args []interface{}

	if filter != nil {
		if filter.SpecializationID != nil {
			args = append(args, *filter.SpecializationID)
			query += fmt.Sprintf(` AND d.specialization_id = $%d`, len(args))
		}
		if filter.ActiveOnly {
			query += ` AND d.is_active = TRUE`
		}
	}
	query += ` ORDER BY u.full_name`

	var doctors []*model.DoctorProfile
	if err := r.db.SelectContext(ctx, &doctors, query, args...); err != nil {
		return nil, mapError(err, "list doctors", "doctor")
	}
	return doctors, nil
}

// Update writes the profile fields and the owning user's full name.
func (r *doctorRepository) Update(ctx context.Context, profile *model.DoctorProfile) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE doctor_profiles
			SET specialization_id = $1, phone_number = $2, bio = $3, years_of_experience = $4,
				consultation_fee = $5, is_active = $6, updated_at = $7
			WHERE id = $8
		`
		profile.UpdatedAt = time.Now().UTC()

		result, err := tx.ExecContext(ctx, query,
			profile.SpecializationID,
			profile.PhoneNumber,
			profile.Bio,
			profile.YearsOfExperience,
			profile.ConsultationFee,
			profile.IsActive,
			profile.UpdatedAt,
			profile.ID,
		)
		if err != nil {
			return mapError(err, "update doctor profile", "doctor profile")
		}
		if err := checkAffected(result, "doctor"); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET full_name = $1, updated_at = $2 WHERE id = $3`,
			profile.FullName, profile.UpdatedAt, profile.UserID)
		if err != nil {
			return mapError(err, "update doctor name", "user")
		}
		return nil
	})
}

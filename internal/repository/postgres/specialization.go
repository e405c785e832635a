package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type specializationRepository struct {
	BaseRepository
}

func NewSpecializationRepository(base BaseRepository) repository.SpecializationRepository {
	return &specializationRepository{base}
}

func (r *specializationRepository) Create(ctx context.Context, s *model.Specialization) error {
	query := `
		INSERT INTO specializations (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt

	if _, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.Description, s.CreatedAt, s.UpdatedAt); err != nil {
		return mapError(err, "create specialization", "specialization")
	}
	return nil
}

func (r *specializationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Specialization, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM specializations WHERE id = $1`

	var s model.Specialization
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		return nil, mapError(err, "get specialization", "specialization")
	}
	return &s, nil
}

func (r *specializationRepository) Update(ctx context.Context, s *model.Specialization) error {
	query := `
		UPDATE specializations
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`
	s.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query, s.Name, s.Description, s.UpdatedAt, s.ID)
	if err != nil {
		return mapError(err, "update specialization", "specialization")
	}
	return checkAffected(result, "specialization")
}

// Delete fails with a conflict while doctors still reference the specialization.
func (r *specializationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM specializations WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Conflict("specialization is in use by doctors", err)
		}
		return mapError(err, "delete specialization", "specialization")
	}
	return checkAffected(result, "specialization")
}

func (r *specializationRepository) List(ctx context.Context) ([]*model.Specialization, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM specializations ORDER BY name`

	var specializations []*model.Specialization
	if err := r.db.SelectContext(ctx, &specializations, query); err != nil {
		return nil, mapError(err, "list specializations", "specialization")
	}
	return specializations, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type assignmentRepository struct {
	BaseRepository
}

func NewAssignmentRepository(base BaseRepository) repository.AssignmentRepository {
	return &assignmentRepository{base}
}

func (r *assignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	query := `
		INSERT INTO assignments (user_id, patient_record_id, created_at)
		VALUES ($1, $2, $3)
	`
	a.CreatedAt = time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, a.UserID, a.PatientRecordID, a.CreatedAt); err != nil {
		return mapError(err, "create assignment", "assignment")
	}
	return nil
}

func (r *assignmentRepository) Delete(ctx context.Context, userID, patientRecordID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM assignments WHERE user_id = $1 AND patient_record_id = $2`, userID, patientRecordID)
	if err != nil {
		return mapError(err, "delete assignment", "assignment")
	}
	return checkAffected(result, "assignment")
}

func (r *assignmentRepository) Exists(ctx context.Context, userID, patientRecordID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM assignments WHERE user_id = $1 AND patient_record_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, patientRecordID); err != nil {
		return false, mapError(err, "check assignment", "assignment")
	}
	return exists, nil
}

func (r *assignmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Assignment, error) {
	query := `
		SELECT user_id, patient_record_id, created_at
		FROM assignments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	var assignments []*model.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID); err != nil {
		return nil, mapError(err, "list assignments", "assignment")
	}
	return assignments, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const consultationColumns = `id, patient_record_id, doctor_id, nurse_id, scheduled_at, duration_minutes,
	consultation_type, status, symptoms, diagnosis, treatment_plan, notes, fee, completed_at,
	created_at, updated_at`

type consultationRepository struct {
	BaseRepository
}

func NewConsultationRepository(base BaseRepository) repository.ConsultationRepository {
	return &consultationRepository{base}
}

// Book serializes bookings per doctor with a transaction-scoped advisory lock,
// then runs check against the rules and same-day consultations read inside the
// same transaction before inserting.
func (r *consultationRepository) Book(ctx context.Context, c *model.Consultation, check repository.BookingCheck) error {
	return r.WithSerializableTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, c.DoctorID.String()); err != nil {
			return fmt.Errorf("failed to lock doctor schedule: %w", err)
		}

		rules, err := selectRules(ctx, tx, c.DoctorID)
		if err != nil {
			return err
		}

		start := c.ScheduledAt.UTC()
		dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		sameDay, err := selectActive(ctx, tx, c.DoctorID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return err
		}

		if err := check(rules, sameDay); err != nil {
			return err
		}

		query := `
			INSERT INTO consultations (` + consultationColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`
		c.ID = uuid.New()
		c.CreatedAt = time.Now().UTC()
		c.UpdatedAt = c.CreatedAt

		_, err = tx.ExecContext(ctx, query,
			c.ID,
			c.PatientRecordID,
			c.DoctorID,
			c.NurseID,
			start,
			c.DurationMinutes,
			c.ConsultationType,
			c.Status,
			c.Symptoms,
			c.Diagnosis,
			c.TreatmentPlan,
			c.Notes,
			c.Fee,
			c.CompletedAt,
			c.CreatedAt,
			c.UpdatedAt,
		)
		if err != nil {
			return mapError(err, "create consultation", "consultation")
		}
		return nil
	})
}

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`

	var c model.Consultation
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, mapError(err, "get consultation", "consultation")
	}
	c.ScheduledAt = c.ScheduledAt.UTC()
	return &c, nil
}

func (r *consultationRepository) Update(ctx context.Context, c *model.Consultation, expected model.ConsultationStatus) error {
	query := `
		UPDATE consultations
		SET status = $1, diagnosis = $2, treatment_plan = $3, notes = $4,
			completed_at = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`
	c.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		c.Status,
		c.Diagnosis,
		c.TreatmentPlan,
		c.Notes,
		c.CompletedAt,
		c.UpdatedAt,
		c.ID,
		expected,
	)
	if err != nil {
		return mapError(err, "update consultation", "consultation")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict("consultation was modified concurrently", nil)
	}
	return nil
}

func (r *consultationRepository) AssignNurse(ctx context.Context, c *model.Consultation) error {
	if c.NurseID == nil {
		return apperrors.Validation("nurse is required")
	}
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		c.UpdatedAt = time.Now().UTC()
		result, err := tx.ExecContext(ctx,
			`UPDATE consultations SET nurse_id = $1, updated_at = $2 WHERE id = $3`,
			*c.NurseID, c.UpdatedAt, c.ID)
		if err != nil {
			return mapError(err, "assign nurse", "consultation")
		}
		if err := checkAffected(result, "consultation"); err != nil {
			return err
		}

		assign := `
			INSERT INTO assignments (user_id, patient_record_id, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, assign, *c.NurseID, c.PatientRecordID); err != nil {
			return mapError(err, "create nurse assignment", "assignment")
		}
		return nil
	})
}

func (r *consultationRepository) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Consultation, error) {
	return selectActive(ctx, r.db, doctorID, from.UTC(), to.UTC())
}

func (r *consultationRepository) ListSummaries(ctx context.Context, filter *model.ConsultationFilter) ([]*model.ConsultationSummary, error) {
	query := `
		SELECT c.id, c.scheduled_at, c.duration_minutes, c.consultation_type, c.status, c.fee,
			du.full_name AS doctor_name, s.name AS specialization,
			p.full_name AS patient_name, nu.full_name AS nurse_name
		FROM consultations c
		JOIN doctor_profiles d ON d.id = c.doctor_id
		JOIN users du ON du.id = d.user_id
		JOIN specializations s ON s.id = d.specialization_id
		JOIN patient_records p ON p.id = c.patient_record_id
		LEFT JOIN users nu ON nu.id = c.nurse_id
		WHERE 1=1
	`
	var args []interface{}
	if filter != nil {
		if filter.PatientRecordID != nil {
			args = append(args, *filter.PatientRecordID)
			query += fmt.Sprintf(` AND c.patient_record_id = $%d`, len(args))
		}
		if filter.DoctorID != nil {
			args = append(args, *filter.DoctorID)
			query += fmt.Sprintf(` AND c.doctor_id = $%d`, len(args))
		}
		if filter.NurseID != nil {
			args = append(args, *filter.NurseID)
			query += fmt.Sprintf(` AND c.nurse_id = $%d`, len(args))
		}
	}
	query += ` ORDER BY c.scheduled_at DESC`

	var summaries []*model.ConsultationSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, mapError(err, "list consultations", "consultation")
	}
	return summaries, nil
}

func selectActive(ctx context.Context, q selecter, doctorID uuid.UUID, from, to time.Time) ([]*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE doctor_id = $1 AND status <> $2 AND scheduled_at >= $3 AND scheduled_at < $4
		ORDER BY scheduled_at
	`
	var consultations []*model.Consultation
	if err := q.SelectContext(ctx, &consultations, query,
		doctorID, model.ConsultationStatusCancelled, from, to); err != nil {
		return nil, mapError(err, "list doctor consultations", "consultation")
	}
	for _, c := range consultations {
		c.ScheduledAt = c.ScheduledAt.UTC()
	}
	return consultations, nil
}

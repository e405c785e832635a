package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const availabilityColumns = `id, doctor_id, day_of_week, start_time, end_time, is_recurring,
	specific_date, max_appointments_per_slot, created_at`

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(base BaseRepository) repository.AvailabilityRepository {
	return &availabilityRepository{base}
}

func (r *availabilityRepository) Create(ctx context.Context, rule *model.AvailabilityRule) error {
	query := `
		INSERT INTO availability_rules (` + availabilityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.DoctorID,
		int(rule.DayOfWeek),
		rule.StartTime,
		rule.EndTime,
		rule.IsRecurring,
		rule.SpecificDate,
		rule.MaxAppointmentsPerSlot,
		rule.CreatedAt,
	)
	if err != nil {
		return mapError(err, "create availability rule", "availability rule")
	}
	return nil
}

func (r *availabilityRepository) Delete(ctx context.Context, doctorID, ruleID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM availability_rules WHERE id = $1 AND doctor_id = $2`, ruleID, doctorID)
	if err != nil {
		return mapError(err, "delete availability rule", "availability rule")
	}
	return checkAffected(result, "availability rule")
}

func (r *availabilityRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	return selectRules(ctx, r.db, doctorID)
}

type selecter interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func selectRules(ctx context.Context, q selecter, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + availabilityColumns + `
		FROM availability_rules
		WHERE doctor_id = $1
		ORDER BY is_recurring, day_of_week, start_time
	`
	var rules []*model.AvailabilityRule
	if err := q.SelectContext(ctx, &rules, query, doctorID); err != nil {
		return nil, mapError(err, "list availability rules", "availability rule")
	}
	for _, rule := range rules {
		if rule.SpecificDate != nil {
			d := rule.SpecificDate.UTC()
			rule.SpecificDate = &d
		}
	}
	return rules, nil
}

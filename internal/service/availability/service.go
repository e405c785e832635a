package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const defaultMaxRangeDays = 31

type Service struct {
	rules         repository.AvailabilityRepository
	consultations repository.ConsultationRepository
	doctors       repository.DoctorRepository
	metrics       *metrics.Metrics
	now           func() time.Time
	maxRangeDays  int
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMaxRangeDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxRangeDays = days
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	rules repository.AvailabilityRepository,
	consultations repository.ConsultationRepository,
	doctors repository.DoctorRepository,
	opts ...Option,
) *Service {
	s := &Service{
		rules:         rules,
		consultations: consultations,
		doctors:       doctors,
		now:           time.Now,
		maxRangeDays:  defaultMaxRangeDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

func (s *Service) IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, candidate time.Time) (bool, error) {
	candidate = NormalizeUTC(candidate)
	rules, err := s.rules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return false, err
	}
	day := startOfDay(candidate)
	existing, err := s.consultations.ListActiveByDoctor(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return false, err
	}
	_, ok := IsSlotAvailable(rules, existing, candidate)
	return ok, nil
}

// EnumerateSlots lists the doctor's slots for the UTC dates from..to inclusive.
func (s *Service) EnumerateSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]model.Slot, error) {
	if s.metrics != nil {
		started := time.Now()
		defer func() { s.metrics.SlotQueryDuration.Observe(time.Since(started).Seconds()) }()
	}

	from, to = startOfDay(from), startOfDay(to)
	if to.Before(from) {
		return nil, errors.Validation("end_date must not be before start_date")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > s.maxRangeDays {
		return nil, errors.Validation(fmt.Sprintf("date range must not exceed %d days", s.maxRangeDays))
	}

	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, errors.NotFound("doctor", nil)
	}

	rules, err := s.rules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	existing, err := s.consultations.ListActiveByDoctor(ctx, doctorID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return EnumerateSlots(rules, existing, from, to, s.Now()), nil
}

// AddRule validates and stores a rule for the doctor. One-off rules take
// their weekday from the date.
func (s *Service) AddRule(ctx context.Context, doctorID uuid.UUID, req *model.AvailabilityRuleRequest) (*model.AvailabilityRule, error) {
	rule := &model.AvailabilityRule{
		DoctorID:               doctorID,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		IsRecurring:            true,
		MaxAppointmentsPerSlot: req.MaxAppointmentsPerSlot,
	}
	if req.IsRecurring != nil {
		rule.IsRecurring = *req.IsRecurring
	}
	if rule.MaxAppointmentsPerSlot == 0 {
		rule.MaxAppointmentsPerSlot = 1
	}
	if rule.MaxAppointmentsPerSlot < 1 {
		return nil, errors.Validation("max_appointments_per_slot must be at least 1")
	}
	if rule.EndTime <= rule.StartTime {
		return nil, errors.Validation("end_time must be after start_time")
	}
	if rule.EndTime > model.NewClockTime(24, 0) {
		return nil, errors.Validation("end_time must be within the day")
	}
	if rule.EndTime-rule.StartTime < model.ClockTime(model.SlotDuration) {
		return nil, errors.Validation("availability window must fit at least one 30-minute slot")
	}

	if rule.IsRecurring {
		if req.DayOfWeek == nil || *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
			return nil, errors.Validation("day_of_week (0-6) is required for recurring rules")
		}
		rule.DayOfWeek = time.Weekday(*req.DayOfWeek)
	} else {
		if req.SpecificDate == nil || req.SpecificDate.IsZero() {
			return nil, errors.Validation("specific_date is required for one-off rules")
		}
		date := startOfDay(req.SpecificDate.Time)
		if date.Before(startOfDay(s.Now())) {
			return nil, errors.Validation("specific_date must not be in the past")
		}
		rule.SpecificDate = &date
		rule.DayOfWeek = date.Weekday()
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	return s.rules.ListByDoctor(ctx, doctorID)
}

func (s *Service) DeleteRule(ctx context.Context, doctorID, ruleID uuid.UUID) error {
	return s.rules.Delete(ctx, doctorID, ruleID)
}

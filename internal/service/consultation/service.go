package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/authz"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/internal/service/rbac"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type Service struct {
	repo     repository.ConsultationRepository
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
	users    repository.UserRepository
	notifier notification.Gateway
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	repo repository.ConsultationRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	notifier notification.Gateway,
	opts ...Option,
) *Service {
	s := &Service{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		users:    users,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book creates a pending consultation for a patient record. Patients book
// for their own record; SuperAdmin may book for any.
func (s *Service) Book(ctx context.Context, actor model.Actor, req *model.BookConsultationRequest) (*model.Consultation, error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, errors.Validation("invalid doctor_id")
	}
	recordID, err := uuid.Parse(req.PatientRecordID)
	if err != nil {
		return nil, errors.Validation("invalid patient_record_id")
	}
	if !authz.IsAdmin(actor) && !(rbac.HasRole(actor, model.RolePatient) && actor.OwnsRecord(recordID)) {
		return nil, errors.Forbidden(fmt.Errorf("actor %s may not book for record %s", actor.ID, recordID))
	}

	ctype := model.ConsultationType(req.ConsultationType)
	if !ctype.Valid() {
		return nil, errors.Validation("invalid consultation_type")
	}
	if req.ScheduledAt.IsZero() {
		return nil, errors.Validation("scheduled_at is required")
	}
	candidate := availability.NormalizeUTC(req.ScheduledAt.Time)
	if !candidate.After(s.now().UTC()) {
		return nil, errors.Validation("scheduled_at must be in the future")
	}

	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, errors.NotFound("doctor", nil)
	}
	if _, err := s.patients.Get(ctx, recordID); err != nil {
		return nil, err
	}

	c := &model.Consultation{
		PatientRecordID:  recordID,
		DoctorID:         doctor.ID,
		ScheduledAt:      candidate,
		DurationMinutes:  int(model.SlotDuration / time.Minute),
		ConsultationType: ctype,
		Status:           model.ConsultationStatusPending,
		Symptoms:         req.Symptoms,
		Fee:              doctor.ConsultationFee,
	}

	err = s.repo.Book(ctx, c, func(rules []*model.AvailabilityRule, sameDay []*model.Consultation) error {
		match, ok := availability.IsSlotAvailable(rules, sameDay, candidate)
		if match.Rule == nil {
			return errors.Validation("doctor is not available at the requested time")
		}
		if !ok {
			return errors.Conflict("the requested slot is fully booked", nil)
		}
		return nil
	})
	if err != nil {
		s.countBooking(err)
		return nil, err
	}
	s.countBooking(nil)

	log.Info().
		Str("consultation_id", c.ID.String()).
		Str("doctor_id", c.DoctorID.String()).
		Time("scheduled_at", c.ScheduledAt).
		Msg("Consultation booked")

	var patient *model.User
	if u, err := s.users.GetByPatientRecord(ctx, recordID); err == nil {
		patient = u
	}
	s.warn(s.notifier.NotifyBooked(ctx, c, doctor, patient), c, "booked")
	return c, nil
}

func (s *Service) countBooking(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.BookingsTotal.WithLabelValues("booked").Inc()
	case errors.IsConflict(err):
		s.metrics.BookingsTotal.WithLabelValues("conflict").Inc()
		s.metrics.BookingConflicts.Inc()
	default:
		s.metrics.BookingsTotal.WithLabelValues("rejected").Inc()
	}
}

// Get returns a consultation visible to its participants and SuperAdmin.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if authz.IsAdmin(actor) || actor.OwnsRecord(c.PatientRecordID) ||
		(c.NurseID != nil && *c.NurseID == actor.ID) {
		return c, nil
	}
	ok, err := s.isAssignedDoctor(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Forbidden(nil)
	}
	return c, nil
}

// ListMine lists consultations from the point of view of the actor's
// primary role.
func (s *Service) ListMine(ctx context.Context, actor model.Actor) ([]*model.ConsultationSummary, error) {
	filter := &model.ConsultationFilter{}
	switch rbac.PrimaryRole(actor.Roles) {
	case model.RoleSuperAdmin:
	case model.RoleDoctor:
		doctor, err := s.doctors.GetByUserID(ctx, actor.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				return []*model.ConsultationSummary{}, nil
			}
			return nil, err
		}
		filter.DoctorID = &doctor.ID
	case model.RoleNurse:
		id := actor.ID
		filter.NurseID = &id
	default:
		if actor.PatientRecordID == nil {
			return []*model.ConsultationSummary{}, nil
		}
		filter.PatientRecordID = actor.PatientRecordID
	}
	return s.repo.ListSummaries(ctx, filter)
}

// Transition moves a consultation to target. Cancellation is open to the
// owning patient, the assigned doctor and SuperAdmin; every other move to
// the assigned doctor and SuperAdmin.
func (s *Service) Transition(ctx context.Context, actor model.Actor, id uuid.UUID, target model.ConsultationStatus) (*model.Consultation, error) {
	if !target.Valid() {
		return nil, errors.Validation("invalid status")
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.mayTransition(ctx, actor, c, target)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errors.Forbidden(nil)
	}
	if !CanTransition(c.Status, target) {
		return nil, errors.Conflict(fmt.Sprintf("cannot change status from %s to %s", c.Status, target), nil)
	}

	old := c.Status
	s.apply(c, target)
	if err := s.repo.Update(ctx, c, old); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, actor, c, old)
	return c, nil
}

func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error) {
	return s.Transition(ctx, actor, id, model.ConsultationStatusCancelled)
}

// UpdateClinical writes diagnosis, treatment plan, notes and optionally the
// status in one update. Cancelled consultations cannot be edited.
func (s *Service) UpdateClinical(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateConsultationRequest) (*model.Consultation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireDoctorOrAdmin(ctx, actor, c); err != nil {
		return nil, err
	}
	if c.Status == model.ConsultationStatusCancelled {
		return nil, errors.Conflict("cannot edit a cancelled consultation", nil)
	}

	old := c.Status
	if req.Status != nil {
		target := model.ConsultationStatus(*req.Status)
		if !target.Valid() {
			return nil, errors.Validation("invalid status")
		}
		if target != c.Status {
			if !CanTransition(c.Status, target) {
				return nil, errors.Conflict(fmt.Sprintf("cannot change status from %s to %s", c.Status, target), nil)
			}
			s.apply(c, target)
		}
	}
	var changed []string
	if req.Diagnosis != nil && !sameText(c.Diagnosis, req.Diagnosis) {
		c.Diagnosis = req.Diagnosis
		changed = append(changed, "diagnosis")
	}
	if req.TreatmentPlan != nil && !sameText(c.TreatmentPlan, req.TreatmentPlan) {
		c.TreatmentPlan = req.TreatmentPlan
		changed = append(changed, "treatment_plan")
	}
	if req.Notes != nil && !sameText(c.Notes, req.Notes) {
		c.Notes = req.Notes
		changed = append(changed, "notes")
	}

	if err := s.repo.Update(ctx, c, old); err != nil {
		return nil, err
	}
	if c.Status != old {
		s.afterTransition(ctx, actor, c, old)
	}
	if len(changed) > 0 {
		s.warn(s.notifier.NotifyUpdated(ctx, c, changed), c, "updated")
	}
	return c, nil
}

// AssignNurse attaches a nurse to the consultation and grants the nurse an
// assignment to the patient's record.
func (s *Service) AssignNurse(ctx context.Context, actor model.Actor, id, nurseID uuid.UUID) (*model.Consultation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireDoctorOrAdmin(ctx, actor, c); err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, errors.Conflict(fmt.Sprintf("consultation is %s", c.Status), nil)
	}

	nurse, err := s.users.Get(ctx, nurseID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasRole(model.ActorFromUser(nurse), model.RoleNurse) {
		return nil, errors.Validation("user is not a nurse")
	}

	c.NurseID = &nurse.ID
	if err := s.repo.AssignNurse(ctx, c); err != nil {
		return nil, err
	}
	s.warn(s.notifier.NotifyAssignedNurse(ctx, c, nurse), c, "nurse_assigned")
	return c, nil
}

func (s *Service) apply(c *model.Consultation, target model.ConsultationStatus) {
	c.Status = target
	if target == model.ConsultationStatusCompleted {
		now := s.now().UTC()
		c.CompletedAt = &now
	}
}

func (s *Service) afterTransition(ctx context.Context, actor model.Actor, c *model.Consultation, old model.ConsultationStatus) {
	log.Info().
		Str("consultation_id", c.ID.String()).
		Str("from", string(old)).
		Str("to", string(c.Status)).
		Msg("Consultation status changed")

	// A cancellation has its own notice; a status notice on top would mail
	// everyone twice.
	if c.Status == model.ConsultationStatusCancelled {
		s.warn(s.notifier.NotifyCancelled(ctx, c, actor.ID), c, "cancelled")
		return
	}
	s.warn(s.notifier.NotifyStatusChanged(ctx, c, old, c.Status), c, "status_changed")
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) mayTransition(ctx context.Context, actor model.Actor, c *model.Consultation, target model.ConsultationStatus) (bool, error) {
	if authz.IsAdmin(actor) {
		return true, nil
	}
	if target == model.ConsultationStatusCancelled &&
		rbac.HasRole(actor, model.RolePatient) && actor.OwnsRecord(c.PatientRecordID) {
		return true, nil
	}
	return s.isAssignedDoctor(ctx, actor, c)
}

func (s *Service) requireDoctorOrAdmin(ctx context.Context, actor model.Actor, c *model.Consultation) error {
	if authz.IsAdmin(actor) {
		return nil
	}
	ok, err := s.isAssignedDoctor(ctx, actor, c)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Forbidden(nil)
	}
	return nil
}

func (s *Service) isAssignedDoctor(ctx context.Context, actor model.Actor, c *model.Consultation) (bool, error) {
	if !rbac.HasRole(actor, model.RoleDoctor) {
		return false, nil
	}
	doctor, err := s.doctors.GetByUserID(ctx, actor.ID)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return doctor.ID == c.DoctorID, nil
}

func (s *Service) warn(err error, c *model.Consultation, event string) {
	if err == nil {
		return
	}
	log.Warn().Err(err).
		Str("consultation_id", c.ID.String()).
		Str("event", event).
		Msg("Failed to queue notification")
}

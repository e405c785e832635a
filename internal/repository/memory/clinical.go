package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type patientRepository struct{ s *Store }

func (r *patientRepository) CreateWithUser(_ context.Context, record *model.PatientRecord, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record.ID = uuid.New()
	record.CreatedAt = time.Now().UTC()
	record.UpdatedAt = record.CreatedAt
	user.PatientRecordID = &record.ID
	if err := r.s.insertUser(user); err != nil {
		user.PatientRecordID = nil
		return err
	}
	if err := r.s.assignRoles(user.ID, []string{model.RolePatient}); err != nil {
		return err
	}
	cp := *record
	r.s.patients[record.ID] = &cp
	user.Roles = []string{model.RolePatient}
	return nil
}

func (r *patientRepository) Get(_ context.Context, id uuid.UUID) (*model.PatientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient record", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepository) Update(_ context.Context, record *model.PatientRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[record.ID]
	if !ok {
		return apperrors.NotFound("patient record", nil)
	}
	record.UpdatedAt = time.Now().UTC()
	p.FullName = record.FullName
	p.DateOfBirth = record.DateOfBirth
	p.UpdatedAt = record.UpdatedAt
	return nil
}

func (r *patientRepository) AddPrescription(_ context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[p.PatientRecordID]; !ok {
		return apperrors.BadRequest("prescription references a missing entity", nil)
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	r.s.prescriptions = append(r.s.prescriptions, &cp)
	return nil
}

func (r *patientRepository) ListPrescriptions(_ context.Context, recordID uuid.UUID) ([]*model.Prescription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Prescription{}
	for i := len(r.s.prescriptions) - 1; i >= 0; i-- {
		if p := r.s.prescriptions[i]; p.PatientRecordID == recordID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *patientRepository) AddVital(_ context.Context, v *model.Vital) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[v.PatientRecordID]; !ok {
		return apperrors.BadRequest("vital references a missing entity", nil)
	}
	v.ID = uuid.New()
	v.RecordedAt = time.Now().UTC()
	cp := *v
	r.s.vitals = append(r.s.vitals, &cp)
	return nil
}

func (r *patientRepository) ListVitals(_ context.Context, recordID uuid.UUID) ([]*model.Vital, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Vital{}
	for i := len(r.s.vitals) - 1; i >= 0; i-- {
		if v := r.s.vitals[i]; v.PatientRecordID == recordID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *patientRepository) AddTestResult(_ context.Context, t *model.TestResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[t.PatientRecordID]; !ok {
		return apperrors.BadRequest("test result references a missing entity", nil)
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	cp := *t
	r.s.testResults = append(r.s.testResults, &cp)
	return nil
}

func (r *patientRepository) ListTestResults(_ context.Context, recordID uuid.UUID) ([]*model.TestResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.TestResult{}
	for i := len(r.s.testResults) - 1; i >= 0; i-- {
		if t := r.s.testResults[i]; t.PatientRecordID == recordID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type doctorRepository struct{ s *Store }

func (r *doctorRepository) CreateWithUser(_ context.Context, profile *model.DoctorProfile, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	spec, ok := r.s.specializations[profile.SpecializationID]
	if !ok {
		return apperrors.BadRequest("doctor profile references a missing entity", nil)
	}
	if err := r.s.insertUser(user); err != nil {
		return err
	}
	if err := r.s.assignRoles(user.ID, []string{model.RoleDoctor}); err != nil {
		return err
	}
	user.Roles = []string{model.RoleDoctor}
	profile.ID = uuid.New()
	profile.UserID = user.ID
	profile.FullName = user.FullName
	profile.Email = user.Email
	profile.Specialization = spec.Name
	profile.CreatedAt = time.Now().UTC()
	profile.UpdatedAt = profile.CreatedAt
	cp := *profile
	r.s.doctors[profile.ID] = &cp
	return nil
}

func (r *doctorRepository) view(d *model.DoctorProfile) *model.DoctorProfile {
	cp := *d
	if u, ok := r.s.users[d.UserID]; ok {
		cp.FullName = u.FullName
		cp.Email = u.Email
	}
	if s, ok := r.s.specializations[d.SpecializationID]; ok {
		cp.Specialization = s.Name
	}
	return &cp
}

func (r *doctorRepository) Get(_ context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return r.view(d), nil
}

func (r *doctorRepository) GetByUserID(_ context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.doctors {
		if d.UserID == userID {
			return r.view(d), nil
		}
	}
	return nil, apperrors.NotFound("doctor", nil)
}

func (r *doctorRepository) List(_ context.Context, filter *model.DoctorFilter) ([]*model.DoctorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.DoctorProfile{}
	for _, d := range r.s.doctors {
		if filter != nil {
			if filter.SpecializationID != nil && d.SpecializationID != *filter.SpecializationID {
				continue
			}
			if filter.ActiveOnly && !d.IsActive {
				continue
			}
		}
		out = append(out, r.view(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *doctorRepository) Update(_ context.Context, profile *model.DoctorProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[profile.ID]
	if !ok {
		return apperrors.NotFound("doctor", nil)
	}
	if _, ok := r.s.specializations[profile.SpecializationID]; !ok {
		return apperrors.BadRequest("doctor profile references a missing entity", nil)
	}
	profile.UpdatedAt = time.Now().UTC()
	d.SpecializationID = profile.SpecializationID
	d.PhoneNumber = profile.PhoneNumber
	d.Bio = profile.Bio
	d.YearsOfExperience = profile.YearsOfExperience
	d.ConsultationFee = profile.ConsultationFee
	d.IsActive = profile.IsActive
	d.UpdatedAt = profile.UpdatedAt
	if u, ok := r.s.users[d.UserID]; ok {
		u.FullName = profile.FullName
		u.UpdatedAt = profile.UpdatedAt
	}
	return nil
}

type specializationRepository struct{ s *Store }

func (r *specializationRepository) nameTaken(name string, except uuid.UUID) bool {
	for _, sp := range r.s.specializations {
		if sp.Name == name && sp.ID != except {
			return true
		}
	}
	return false
}

func (r *specializationRepository) Create(_ context.Context, sp *model.Specialization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(sp.Name, uuid.Nil) {
		return apperrors.Conflict("specialization already exists", nil)
	}
	sp.ID = uuid.New()
	sp.CreatedAt = time.Now().UTC()
	sp.UpdatedAt = sp.CreatedAt
	cp := *sp
	r.s.specializations[sp.ID] = &cp
	return nil
}

func (r *specializationRepository) Get(_ context.Context, id uuid.UUID) (*model.Specialization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sp, ok := r.s.specializations[id]
	if !ok {
		return nil, apperrors.NotFound("specialization", nil)
	}
	cp := *sp
	return &cp, nil
}

func (r *specializationRepository) Update(_ context.Context, sp *model.Specialization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.specializations[sp.ID]
	if !ok {
		return apperrors.NotFound("specialization", nil)
	}
	if r.nameTaken(sp.Name, sp.ID) {
		return apperrors.Conflict("specialization already exists", nil)
	}
	sp.UpdatedAt = time.Now().UTC()
	existing.Name = sp.Name
	existing.Description = sp.Description
	existing.UpdatedAt = sp.UpdatedAt
	return nil
}

func (r *specializationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.specializations[id]; !ok {
		return apperrors.NotFound("specialization", nil)
	}
	for _, d := range r.s.doctors {
		if d.SpecializationID == id {
			return apperrors.Conflict("specialization is in use by doctors", nil)
		}
	}
	delete(r.s.specializations, id)
	return nil
}

func (r *specializationRepository) List(_ context.Context) ([]*model.Specialization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Specialization, 0, len(r.s.specializations))
	for _, sp := range r.s.specializations {
		cp := *sp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type availabilityRepository struct{ s *Store }

func (r *availabilityRepository) Create(_ context.Context, rule *model.AvailabilityRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.doctors[rule.DoctorID]; !ok {
		return apperrors.BadRequest("availability rule references a missing entity", nil)
	}
	for _, existing := range r.s.rules {
		if existing.DoctorID != rule.DoctorID || existing.IsRecurring != rule.IsRecurring ||
			existing.StartTime != rule.StartTime {
			continue
		}
		if rule.IsRecurring && existing.DayOfWeek == rule.DayOfWeek {
			return apperrors.Conflict("availability rule already exists", nil)
		}
		if !rule.IsRecurring && existing.SpecificDate != nil && rule.SpecificDate != nil &&
			existing.SpecificDate.Equal(*rule.SpecificDate) {
			return apperrors.Conflict("availability rule already exists", nil)
		}
	}
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now().UTC()
	cp := *rule
	r.s.rules[rule.ID] = &cp
	return nil
}

func (r *availabilityRepository) Delete(_ context.Context, doctorID, ruleID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[ruleID]
	if !ok || rule.DoctorID != doctorID {
		return apperrors.NotFound("availability rule", nil)
	}
	delete(r.s.rules, ruleID)
	return nil
}

func (r *availabilityRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.rulesOf(doctorID), nil
}

func (s *Store) rulesOf(doctorID uuid.UUID) []*model.AvailabilityRule {
	out := []*model.AvailabilityRule{}
	for _, rule := range s.rules {
		if rule.DoctorID == doctorID {
			cp := *rule
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsRecurring != out[j].IsRecurring {
			return !out[i].IsRecurring
		}
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (s *Store) activeOf(doctorID uuid.UUID, from, to time.Time) []*model.Consultation {
	out := []*model.Consultation{}
	for _, c := range s.consultations {
		if c.DoctorID != doctorID || c.Status == model.ConsultationStatusCancelled {
			continue
		}
		if c.ScheduledAt.Before(from) || !c.ScheduledAt.Before(to) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

type consultationRepository struct{ s *Store }

func (r *consultationRepository) Book(_ context.Context, c *model.Consultation, check repository.BookingCheck) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.doctors[c.DoctorID]; !ok {
		return apperrors.BadRequest("consultation references a missing entity", nil)
	}
	if _, ok := r.s.patients[c.PatientRecordID]; !ok {
		return apperrors.BadRequest("consultation references a missing entity", nil)
	}
	start := c.ScheduledAt.UTC()
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if err := check(r.s.rulesOf(c.DoctorID), r.s.activeOf(c.DoctorID, dayStart, dayStart.AddDate(0, 0, 1))); err != nil {
		return err
	}
	c.ID = uuid.New()
	c.ScheduledAt = start
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.s.consultations[c.ID] = &cp
	return nil
}

func (r *consultationRepository) Get(_ context.Context, id uuid.UUID) (*model.Consultation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.consultations[id]
	if !ok {
		return nil, apperrors.NotFound("consultation", nil)
	}
	cp := *c
	return &cp, nil
}

func (r *consultationRepository) Update(_ context.Context, c *model.Consultation, expected model.ConsultationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.consultations[c.ID]
	if !ok || existing.Status != expected {
		return apperrors.Conflict("consultation was modified concurrently", nil)
	}
	c.UpdatedAt = time.Now().UTC()
	existing.Status = c.Status
	existing.Diagnosis = c.Diagnosis
	existing.TreatmentPlan = c.TreatmentPlan
	existing.Notes = c.Notes
	existing.CompletedAt = c.CompletedAt
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *consultationRepository) AssignNurse(_ context.Context, c *model.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.NurseID == nil {
		return apperrors.Validation("nurse is required")
	}
	existing, ok := r.s.consultations[c.ID]
	if !ok {
		return apperrors.NotFound("consultation", nil)
	}
	nurseID := *c.NurseID
	c.UpdatedAt = time.Now().UTC()
	existing.NurseID = &nurseID
	existing.UpdatedAt = c.UpdatedAt
	key := assignmentKey{nurseID, existing.PatientRecordID}
	if _, ok := r.s.assignments[key]; !ok {
		r.s.assignments[key] = &model.Assignment{
			UserID:          nurseID,
			PatientRecordID: existing.PatientRecordID,
			CreatedAt:       c.UpdatedAt,
		}
	}
	return nil
}

func (r *consultationRepository) ListActiveByDoctor(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Consultation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.activeOf(doctorID, from.UTC(), to.UTC()), nil
}

func (r *consultationRepository) ListSummaries(_ context.Context, filter *model.ConsultationFilter) ([]*model.ConsultationSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.ConsultationSummary{}
	for _, c := range r.s.consultations {
		if filter != nil {
			if filter.PatientRecordID != nil && c.PatientRecordID != *filter.PatientRecordID {
				continue
			}
			if filter.DoctorID != nil && c.DoctorID != *filter.DoctorID {
				continue
			}
			if filter.NurseID != nil && (c.NurseID == nil || *c.NurseID != *filter.NurseID) {
				continue
			}
		}
		sum := &model.ConsultationSummary{
			ID:               c.ID,
			ScheduledAt:      c.ScheduledAt,
			DurationMinutes:  c.DurationMinutes,
			ConsultationType: c.ConsultationType,
			Status:           c.Status,
			Fee:              c.Fee,
		}
		if d, ok := r.s.doctors[c.DoctorID]; ok {
			if u, ok := r.s.users[d.UserID]; ok {
				sum.DoctorName = u.FullName
			}
			if sp, ok := r.s.specializations[d.SpecializationID]; ok {
				sum.Specialization = sp.Name
			}
		}
		if p, ok := r.s.patients[c.PatientRecordID]; ok {
			sum.PatientName = p.FullName
		}
		if c.NurseID != nil {
			if u, ok := r.s.users[*c.NurseID]; ok {
				name := u.FullName
				sum.NurseName = &name
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return out, nil
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Create(_ context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = uuid.New()
	e.Status = model.OutboxStatusPending
	// Strictly increasing so snapshots keep insertion order.
	e.CreatedAt = time.Now().UTC()
	if !e.CreatedAt.After(r.s.lastOutboxAt) {
		e.CreatedAt = r.s.lastOutboxAt.Add(time.Nanosecond)
	}
	r.s.lastOutboxAt = e.CreatedAt
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.s.outbox[e.ID] = &cp
	return nil
}

func (r *outboxRepository) ClaimPending(_ context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var due []*model.OutboxEvent
	for _, e := range r.s.outbox {
		switch e.Status {
		case model.OutboxStatusPending, model.OutboxStatusRetry:
			if e.RetryAt != nil && e.RetryAt.After(now) {
				continue
			}
		case model.OutboxStatusProcessing:
			if !e.UpdatedAt.Before(staleBefore) {
				continue
			}
		default:
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]*model.OutboxEvent, len(due))
	for i, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (r *outboxRepository) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.outbox[id]; ok {
		now := time.Now().UTC()
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
		e.UpdatedAt = now
	}
	return nil
}

func (r *outboxRepository) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.outbox[id]; ok {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errMsg
		e.RetryCount++
		e.RetryAt = &retryAt
		e.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *outboxRepository) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.outbox[id]; ok {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
		}
	}
	return n, nil
}

type auditRepository struct{ s *Store }

func (r *auditRepository) Create(_ context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	cp := *log
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

func (r *auditRepository) List(_ context.Context, filter *model.AuditFilter) ([]*model.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if filter == nil {
		filter = &model.AuditFilter{}
	}
	out := []*model.AuditLog{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		if filter.UserID != nil && l.UserID != *filter.UserID {
			continue
		}
		if filter.EntityID != nil && l.EntityID != *filter.EntityID {
			continue
		}
		if filter.Outcome != "" && l.Outcome != filter.Outcome {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return paginate(out, filter.Pagination), nil
}

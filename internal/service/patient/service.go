package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/authz"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service struct {
	repo        repository.PatientRepository
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	authz       *authz.Service
}

func NewService(repo repository.PatientRepository, users repository.UserRepository,
	assignments repository.AssignmentRepository, authzSvc *authz.Service) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		assignments: assignments,
		authz:       authzSvc,
	}
}

// Get returns the record with its prescriptions, vitals and test results.
// Access is checked before the record is loaded.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.PatientRecordDetail, error) {
	if err := s.authz.Check(ctx, actor, authz.View, id); err != nil {
		return nil, err
	}
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prescriptions, err := s.repo.ListPrescriptions(ctx, id)
	if err != nil {
		return nil, err
	}
	vitals, err := s.repo.ListVitals(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.repo.ListTestResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.PatientRecordDetail{
		PatientRecord: *record,
		Prescriptions: prescriptions,
		Vitals:        vitals,
		TestResults:   results,
	}, nil
}

func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePatientRequest) (*model.PatientRecord, error) {
	if err := s.authz.Check(ctx, actor, authz.Update, id); err != nil {
		return nil, err
	}
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, errors.Validation("full_name must not be empty")
		}
		record.FullName = name
	}
	if req.DateOfBirth != nil && !req.DateOfBirth.IsZero() {
		dob := req.DateOfBirth.Time
		record.DateOfBirth = &dob
	}
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// AddVital records a measurement. Recording vitals counts as an update.
func (s *Service) AddVital(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.VitalRequest) (*model.Vital, error) {
	if err := s.authz.Check(ctx, actor, authz.Update, id); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	v := &model.Vital{
		PatientRecordID:  id,
		Type:             strings.TrimSpace(req.Type),
		Value:            strings.TrimSpace(req.Value),
		Notes:            req.Notes,
		RecordedByUserID: actor.ID,
	}
	if err := s.repo.AddVital(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) AddPrescription(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.PrescriptionRequest) (*model.Prescription, error) {
	if err := s.authz.Check(ctx, actor, authz.Prescribe, id); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	p := &model.Prescription{
		PatientRecordID:    id,
		Medication:         strings.TrimSpace(req.Medication),
		Dosage:             strings.TrimSpace(req.Dosage),
		PrescribedByUserID: actor.ID,
	}
	if err := s.repo.AddPrescription(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, actor model.Actor, id uuid.UUID) ([]*model.Prescription, error) {
	if err := s.authz.Check(ctx, actor, authz.View, id); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListPrescriptions(ctx, id)
}

// AddTestResult files a result. It needs the same access as recording vitals.
func (s *Service) AddTestResult(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.TestResultRequest) (*model.TestResult, error) {
	if err := s.authz.Check(ctx, actor, authz.Update, id); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	r := &model.TestResult{
		PatientRecordID:  id,
		Title:            strings.TrimSpace(req.Title),
		Result:           strings.TrimSpace(req.Result),
		RecordedByUserID: actor.ID,
	}
	if err := s.repo.AddTestResult(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListTestResults(ctx context.Context, actor model.Actor, id uuid.UUID) ([]*model.TestResult, error) {
	if err := s.authz.Check(ctx, actor, authz.View, id); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTestResults(ctx, id)
}

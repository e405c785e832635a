package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service struct {
	assignments repository.AssignmentRepository
	auditor     *audit.Service
}

// NewService returns the authorization service. auditor may be nil.
func NewService(assignments repository.AssignmentRepository, auditor *audit.Service) *Service {
	return &Service{assignments: assignments, auditor: auditor}
}

// Check returns a Forbidden error unless actor may perform op on the record.
// It never loads the record, so a denial does not reveal whether it exists.
func (s *Service) Check(ctx context.Context, actor model.Actor, op Operation, patientRecordID uuid.UUID) error {
	assigned := false
	if needsAssignment(actor) {
		ok, err := s.assignments.Exists(ctx, actor.ID, patientRecordID)
		if err != nil {
			return fmt.Errorf("failed to load assignment: %w", err)
		}
		assigned = ok
	}

	decision := Authorize(actor, op, patientRecordID, assigned)
	s.record(ctx, actor, op, patientRecordID, decision)

	if decision != Permit {
		return errors.Forbidden(fmt.Errorf("%s on patient record denied", op))
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor model.Actor, op Operation, recordID uuid.UUID, d Decision) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Log(ctx, actor.ID, string(op), model.AuditEntityPatient, recordID, d.String(), nil)
	if err != nil {
		log.Warn().Err(err).
			Str("actor_id", actor.ID.String()).
			Str("operation", string(op)).
			Msg("Failed to write audit entry")
	}
}

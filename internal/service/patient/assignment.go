package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/rbac"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

// Assign grants a staff member an assignment to a patient record.
func (s *Service) Assign(ctx context.Context, userID, recordID uuid.UUID) (*model.Assignment, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	staff := model.ActorFromUser(user)
	if !rbac.HasRole(staff, model.RoleNurse) && !rbac.HasRole(staff, model.RoleDoctor) {
		return nil, errors.Validation("only nurses and doctors can be assigned to patients")
	}
	if _, err := s.repo.Get(ctx, recordID); err != nil {
		return nil, err
	}

	a := &model.Assignment{UserID: userID, PatientRecordID: recordID}
	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("patient_record_id", recordID.String()).
		Msg("Staff assigned to patient")
	return a, nil
}

func (s *Service) Unassign(ctx context.Context, userID, recordID uuid.UUID) error {
	return s.assignments.Delete(ctx, userID, recordID)
}

func (s *Service) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*model.Assignment, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	out, err := s.assignments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.Assignment{}
	}
	return out, nil
}

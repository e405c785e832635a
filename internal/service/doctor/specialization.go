package doctor

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

func (s *Service) ListSpecializations(ctx context.Context) ([]*model.Specialization, error) {
	return s.specializations.List(ctx)
}

func (s *Service) CreateSpecialization(ctx context.Context, req *model.SpecializationRequest) (*model.Specialization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("name is required")
	}
	sp := &model.Specialization{Name: name, Description: req.Description}
	if err := s.specializations.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) UpdateSpecialization(ctx context.Context, id uuid.UUID, req *model.SpecializationRequest) (*model.Specialization, error) {
	sp, err := s.specializations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("name is required")
	}
	sp.Name = name
	sp.Description = req.Description
	if err := s.specializations.Update(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// DeleteSpecialization fails with Conflict while doctors reference it.
func (s *Service) DeleteSpecialization(ctx context.Context, id uuid.UUID) error {
	return s.specializations.Delete(ctx, id)
}

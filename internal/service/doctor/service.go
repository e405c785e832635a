package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type Service struct {
	repo            repository.DoctorRepository
	specializations repository.SpecializationRepository
	hasher          security.PasswordHasher
}

func NewService(repo repository.DoctorRepository, specializations repository.SpecializationRepository, hasher security.PasswordHasher) *Service {
	return &Service{repo: repo, specializations: specializations, hasher: hasher}
}

// Create registers a doctor account: the user, the Doctor role and the
// profile are written together.
func (s *Service) Create(ctx context.Context, req *model.CreateDoctorRequest) (*model.DoctorProfile, error) {
	specID, err := s.specialization(ctx, req.SpecializationID)
	if err != nil {
		return nil, err
	}
	if err := security.ValidateStrength(req.Password); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if req.ConsultationFee < 0 || req.YearsOfExperience < 0 {
		return nil, errors.Validation("fee and experience must not be negative")
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Username:       strings.TrimSpace(req.Username),
		FullName:       strings.TrimSpace(req.FullName),
		PasswordHash:   hash,
		IsActive:       true,
		EmailConfirmed: true,
	}
	profile := &model.DoctorProfile{
		SpecializationID:  specID,
		PhoneNumber:       req.PhoneNumber,
		Bio:               req.Bio,
		YearsOfExperience: req.YearsOfExperience,
		ConsultationFee:   req.ConsultationFee,
		IsActive:          true,
	}
	if err := s.repo.CreateWithUser(ctx, profile, user); err != nil {
		return nil, err
	}

	log.Info().
		Str("doctor_id", profile.ID.String()).
		Str("user_id", user.ID.String()).
		Msg("Doctor created")
	return profile, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// List returns bookable doctors, optionally of one specialization.
func (s *Service) List(ctx context.Context, specializationID *uuid.UUID) ([]*model.DoctorProfile, error) {
	return s.repo.List(ctx, &model.DoctorFilter{SpecializationID: specializationID, ActiveOnly: true})
}

// UpdateMine applies a partial update to the caller's own profile.
func (s *Service) UpdateMine(ctx context.Context, userID uuid.UUID, req *model.UpdateDoctorProfileRequest) (*model.DoctorProfile, error) {
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, errors.Validation("full_name must not be empty")
		}
		profile.FullName = name
	}
	if req.SpecializationID != nil {
		specID, err := s.specialization(ctx, *req.SpecializationID)
		if err != nil {
			return nil, err
		}
		profile.SpecializationID = specID
	}
	if req.PhoneNumber != nil {
		profile.PhoneNumber = req.PhoneNumber
	}
	if req.Bio != nil {
		profile.Bio = req.Bio
	}
	if req.YearsOfExperience != nil {
		if *req.YearsOfExperience < 0 {
			return nil, errors.Validation("years_of_experience must not be negative")
		}
		profile.YearsOfExperience = *req.YearsOfExperience
	}
	if req.ConsultationFee != nil {
		if *req.ConsultationFee < 0 {
			return nil, errors.Validation("consultation_fee must not be negative")
		}
		profile.ConsultationFee = *req.ConsultationFee
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, profile.ID)
}

// Deactivate hides the doctor from booking. History is kept.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return profile, nil
	}
	profile.IsActive = false
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	log.Info().Str("doctor_id", id.String()).Msg("Doctor deactivated")
	return profile, nil
}

func (s *Service) specialization(ctx context.Context, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Validation("invalid specialization_id")
	}
	if _, err := s.specializations.Get(ctx, id); err != nil {
		if errors.IsNotFound(err) {
			return uuid.Nil, errors.Validation("specialization does not exist")
		}
		return uuid.Nil, err
	}
	return id, nil
}

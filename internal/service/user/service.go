package user

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
	repo   repository.UserRepository
	roles  repository.RBACRepository
	hasher security.PasswordHasher
}

func NewService(repo repository.UserRepository, roles repository.RBACRepository, hasher security.PasswordHasher) *Service {
	return &Service{repo: repo, roles: roles, hasher: hasher}
}

// CreateStaff creates an account holding one role. Patients register
// themselves and doctors are created with their profile, so neither role is
// accepted here.
func (s *Service) CreateStaff(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	switch req.Role {
	case model.RolePatient:
		return nil, errors.Validation("patients must self-register")
	case model.RoleDoctor:
		return nil, errors.Validation("doctors are created with a doctor profile")
	}
	if _, err := s.roles.GetRoleByName(ctx, req.Role); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Validation(fmt.Sprintf("unknown role %q", req.Role))
		}
		return nil, err
	}
	if err := security.ValidateStrength(req.Password); err != nil {
		return nil, errors.Validation(err.Error())
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		IsActive:     true,
		// Staff accounts are provisioned by an admin.
		EmailConfirmed: true,
	}
	if err := s.repo.Create(ctx, user, []string{req.Role}); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("role", req.Role).
		Msg("Staff user created")
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter *model.UserFilter) ([]*model.User, error) {
	if filter == nil {
		filter = &model.UserFilter{}
	}
	return s.repo.List(ctx, filter)
}

// DeleteUser removes an account and its role links. Admins cannot delete
// themselves.
func (s *Service) DeleteUser(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if actor.ID == id {
		return errors.BadRequest("cannot delete your own account", nil)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().
		Str("user_id", id.String()).
		Str("deleted_by", actor.ID.String()).
		Msg("User deleted")
	return nil
}

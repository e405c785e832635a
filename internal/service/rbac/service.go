package rbac

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

const cacheKeyPrefix = "role-perms:"

type Service struct {
	repo  repository.RBACRepository
	users repository.UserRepository
	cache *cache.Cache
}

// NewService builds the role store. Role permission sets are cached for ttl.
func NewService(repo repository.RBACRepository, users repository.UserRepository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		repo:  repo,
		users: users,
		cache: cache.New(ttl, 2*ttl),
	}
}

// HasPermission is true iff any of the actor's roles links to permission.
func (s *Service) HasPermission(ctx context.Context, actor model.Actor, permission string) (bool, error) {
	perms, err := s.permissionsOf(ctx, actor.Roles)
	if err != nil {
		return false, err
	}
	for _, set := range perms {
		for _, p := range set {
			if p == permission {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) permissionsOf(ctx context.Context, roles []string) (map[string][]string, error) {
	out := make(map[string][]string, len(roles))
	var missing []string
	for _, r := range roles {
		if v, ok := s.cache.Get(cacheKeyPrefix + r); ok {
			out[r] = v.([]string)
			continue
		}
		missing = append(missing, r)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := s.repo.PermissionsForRoles(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	for _, r := range missing {
		perms := loaded[r]
		s.cache.SetDefault(cacheKeyPrefix+r, perms)
		out[r] = perms
	}
	return out, nil
}

func (s *Service) invalidate(roleNames ...string) {
	for _, r := range roleNames {
		s.cache.Delete(cacheKeyPrefix + r)
	}
}

func (s *Service) CreateRole(ctx context.Context, req *model.CreateRoleRequest) (*model.Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("role name is required")
	}
	if model.IsSystemRoleName(name) {
		return nil, errors.Conflict("role already exists", nil)
	}

	role := &model.Role{Name: name, Description: req.Description}
	if err := s.repo.CreateRole(ctx, role, req.Permissions); err != nil {
		return nil, err
	}
	return s.GetRole(ctx, role.ID)
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.repo.ListRolePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*model.Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		perms, err := s.repo.ListRolePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	return roles, nil
}

func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, req *model.UpdateRoleRequest) (*model.Role, error) {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("role name is required")
	}
	if model.IsSystemRoleName(name) {
		return nil, errors.Conflict("role already exists", nil)
	}

	oldName := role.Name
	role.Name = name
	role.Description = req.Description
	if err := s.repo.UpdateRole(ctx, role, req.Permissions); err != nil {
		return nil, err
	}
	s.invalidate(oldName, name)
	return s.GetRole(ctx, id)
}

func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidate(role.Name)
	return nil
}

func (s *Service) SetRolePermissions(ctx context.Context, id uuid.UUID, permissions []string) (*model.Role, error) {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRolePermissions(ctx, id, permissions); err != nil {
		return nil, err
	}
	s.invalidate(role.Name)
	return s.GetRole(ctx, id)
}

func (s *Service) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// AssignRole grants roleName to a user. Patient and Doctor are tied to a
// record or profile and are only granted by registration and doctor creation.
func (s *Service) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	if roleName == model.RolePatient || roleName == model.RoleDoctor {
		return errors.Validation(fmt.Sprintf("role %s cannot be assigned directly", roleName))
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return err
	}
	if _, err := s.repo.GetRoleByName(ctx, roleName); err != nil {
		return err
	}
	return s.users.AssignRole(ctx, userID, roleName)
}

func (s *Service) RemoveRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	return s.users.RemoveRole(ctx, userID, roleName)
}

// Seed installs the permission catalogue and the system roles with their
// default grants. It is idempotent.
func (s *Service) Seed(ctx context.Context) error {
	for i := range model.PermissionCatalog {
		p := model.PermissionCatalog[i]
		if err := s.repo.EnsurePermission(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", p.Name, err)
		}
	}
	for _, role := range model.SystemRoles {
		if err := s.repo.EnsureSystemRole(ctx, role, DefaultGrants[role]); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role, err)
		}
		s.invalidate(role)
	}
	log.Info().Int("permissions", len(model.PermissionCatalog)).Msg("RBAC catalogue seeded")
	return nil
}

func (s *Service) mutableRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystemRole {
		return nil, errors.BadRequest("system roles cannot be modified", nil)
	}
	return role, nil
}

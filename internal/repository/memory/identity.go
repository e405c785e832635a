package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *model.User, roles []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, name := range roles {
		if r.s.roleByName(name) == nil {
			return apperrors.NotFound("role "+name, nil)
		}
	}
	if err := r.s.insertUser(user); err != nil {
		return err
	}
	if err := r.s.assignRoles(user.ID, roles); err != nil {
		return err
	}
	user.Roles = r.s.rolesOf(user.ID)
	return nil
}

func (r *userRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return r.s.userCopy(u), nil
}

func (r *userRepository) GetByLogin(_ context.Context, login string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	login = strings.TrimSpace(login)
	for _, u := range r.s.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			return r.s.userCopy(u), nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (r *userRepository) GetByPatientRecord(_ context.Context, recordID uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.PatientRecordID != nil && *u.PatientRecordID == recordID {
			return r.s.userCopy(u), nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (r *userRepository) List(_ context.Context, filter *model.UserFilter) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if filter == nil {
		filter = &model.UserFilter{}
	}
	var out []*model.User
	for _, u := range r.s.users {
		if filter.Role != "" {
			if _, ok := r.s.userRoles[u.ID][filter.Role]; !ok {
				continue
			}
		}
		if q := strings.ToLower(filter.Search); q != "" {
			if !strings.Contains(strings.ToLower(u.FullName), q) &&
				!strings.Contains(u.Email, q) &&
				!strings.Contains(strings.ToLower(u.Username), q) {
				continue
			}
		}
		out = append(out, r.s.userCopy(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Pagination), nil
}

func (r *userRepository) AssignRole(_ context.Context, userID uuid.UUID, roleName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return apperrors.BadRequest("user references a missing entity", nil)
	}
	return r.s.assignRoles(userID, []string{roleName})
}

func (r *userRepository) RemoveRole(_ context.Context, userID uuid.UUID, roleName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.userRoles[userID][roleName]; !ok {
		return apperrors.NotFound("role assignment", nil)
	}
	delete(r.s.userRoles[userID], roleName)
	return nil
}

func (r *userRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return apperrors.NotFound("user", nil)
	}
	if r.s.referencesUser(id) {
		return apperrors.Conflict("user is still referenced by clinical records", nil)
	}
	delete(r.s.userRoles, id)
	for k := range r.s.assignments {
		if k.userID == id {
			delete(r.s.assignments, k)
		}
	}
	for hash, t := range r.s.tokens {
		if t.UserID == id {
			delete(r.s.tokens, hash)
		}
	}
	delete(r.s.users, id)
	return nil
}

// referencesUser mirrors the foreign keys that do not cascade on user delete.
func (s *Store) referencesUser(id uuid.UUID) bool {
	for _, d := range s.doctors {
		if d.UserID == id {
			return true
		}
	}
	for _, c := range s.consultations {
		if c.NurseID != nil && *c.NurseID == id {
			return true
		}
	}
	for _, p := range s.prescriptions {
		if p.PrescribedByUserID == id {
			return true
		}
	}
	for _, v := range s.vitals {
		if v.RecordedByUserID == id {
			return true
		}
	}
	for _, t := range s.testResults {
		if t.RecordedByUserID == id {
			return true
		}
	}
	return false
}

type tokenRepository struct{ s *Store }

func (r *tokenRepository) Issue(_ context.Context, token *model.UserToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[token.UserID]; !ok {
		return apperrors.BadRequest("token references a missing entity", nil)
	}
	if _, ok := r.s.tokens[token.TokenHash]; ok {
		return apperrors.Conflict("token already exists", nil)
	}
	token.ID = uuid.New()
	token.CreatedAt = time.Now().UTC()
	for _, t := range r.s.tokens {
		if t.UserID == token.UserID && t.Purpose == token.Purpose && t.UsedAt == nil {
			used := token.CreatedAt
			t.UsedAt = &used
		}
	}
	cp := *token
	r.s.tokens[token.TokenHash] = &cp
	return nil
}

func (r *tokenRepository) ConfirmEmail(_ context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, u, err := r.redeem(model.TokenPurposeEmailConfirmation, tokenHash, now)
	if err != nil {
		return uuid.Nil, err
	}
	u.EmailConfirmed = true
	u.UpdatedAt = now
	return t.UserID, nil
}

func (r *tokenRepository) ResetPassword(_ context.Context, tokenHash, passwordHash string, now time.Time) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, u, err := r.redeem(model.TokenPurposePasswordReset, tokenHash, now)
	if err != nil {
		return uuid.Nil, err
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = now
	return t.UserID, nil
}

func (r *tokenRepository) redeem(purpose model.TokenPurpose, tokenHash string, now time.Time) (*model.UserToken, *model.User, error) {
	t, ok := r.s.tokens[tokenHash]
	if !ok || t.Purpose != purpose || t.UsedAt != nil {
		return nil, nil, apperrors.BadRequest("invalid or already used token", nil)
	}
	if t.Expired(now) {
		return nil, nil, apperrors.BadRequest("token has expired", nil)
	}
	u, ok := r.s.users[t.UserID]
	if !ok {
		return nil, nil, apperrors.NotFound("user", nil)
	}
	used := now
	t.UsedAt = &used
	return t, u, nil
}

type rbacRepository struct{ s *Store }

func (r *rbacRepository) CreateRole(_ context.Context, role *model.Role, permissions []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.roleByName(role.Name) != nil {
		return apperrors.Conflict("role already exists", nil)
	}
	set, err := r.s.permissionSet(permissions)
	if err != nil {
		return err
	}
	role.ID = uuid.New()
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	cp := *role
	cp.Permissions = nil
	r.s.roles[role.ID] = &cp
	r.s.rolePerms[role.ID] = set
	return nil
}

func (r *rbacRepository) GetRole(_ context.Context, id uuid.UUID) (*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, apperrors.NotFound("role", nil)
	}
	cp := *role
	return &cp, nil
}

func (r *rbacRepository) GetRoleByName(_ context.Context, name string) (*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role := r.s.roleByName(name)
	if role == nil {
		return nil, apperrors.NotFound("role", nil)
	}
	cp := *role
	return &cp, nil
}

func (r *rbacRepository) UpdateRole(_ context.Context, role *model.Role, permissions []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.roles[role.ID]
	if !ok {
		return apperrors.NotFound("role", nil)
	}
	if other := r.s.roleByName(role.Name); other != nil && other.ID != role.ID {
		return apperrors.Conflict("role already exists", nil)
	}
	if permissions != nil {
		set, err := r.s.permissionSet(permissions)
		if err != nil {
			return err
		}
		r.s.rolePerms[role.ID] = set
	}
	oldName := existing.Name
	existing.Name = role.Name
	existing.Description = role.Description
	existing.UpdatedAt = time.Now().UTC()
	role.UpdatedAt = existing.UpdatedAt
	if oldName != role.Name {
		for _, held := range r.s.userRoles {
			if _, ok := held[oldName]; ok {
				delete(held, oldName)
				held[role.Name] = struct{}{}
			}
		}
	}
	return nil
}

func (r *rbacRepository) DeleteRole(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return apperrors.NotFound("role", nil)
	}
	for _, held := range r.s.userRoles {
		if _, ok := held[role.Name]; ok {
			return apperrors.Conflict("role is still assigned to users", nil)
		}
	}
	delete(r.s.roles, id)
	delete(r.s.rolePerms, id)
	return nil
}

func (r *rbacRepository) ListRoles(_ context.Context) ([]*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystemRole != out[j].IsSystemRole {
			return out[i].IsSystemRole
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *rbacRepository) SetRolePermissions(_ context.Context, roleID uuid.UUID, permissions []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[roleID]; !ok {
		return apperrors.NotFound("role", nil)
	}
	set, err := r.s.permissionSet(permissions)
	if err != nil {
		return err
	}
	r.s.rolePerms[roleID] = set
	return nil
}

// permissionSet resolves names against the catalogue. Callers hold mu.
func (s *Store) permissionSet(permissions []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(permissions))
	for _, name := range permissions {
		if _, ok := s.permissions[name]; !ok {
			return nil, apperrors.Validation("unknown permission in request")
		}
		set[name] = struct{}{}
	}
	return set, nil
}

func (r *rbacRepository) ListRolePermissions(_ context.Context, roleID uuid.UUID) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedKeys(r.s.rolePerms[roleID]), nil
}

func (r *rbacRepository) PermissionsForRoles(_ context.Context, roleNames []string) (map[string][]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string][]string, len(roleNames))
	for _, name := range roleNames {
		out[name] = []string{}
		if role := r.s.roleByName(name); role != nil {
			out[name] = sortedKeys(r.s.rolePerms[role.ID])
		}
	}
	return out, nil
}

func (r *rbacRepository) ListPermissions(_ context.Context) ([]*model.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Permission, 0, len(r.s.permissions))
	for _, p := range r.s.permissions {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *rbacRepository) EnsurePermission(_ context.Context, p *model.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.permissions[p.Name]; ok {
		existing.Description = p.Description
		existing.Category = p.Category
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		return nil
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	r.s.permissions[p.Name] = &cp
	return nil
}

func (r *rbacRepository) EnsureSystemRole(_ context.Context, name string, permissions []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role := r.s.roleByName(name)
	if role == nil {
		role = &model.Role{Name: name, Description: name + " system role"}
		role.ID = uuid.New()
		role.CreatedAt = time.Now().UTC()
		role.UpdatedAt = role.CreatedAt
		r.s.roles[role.ID] = role
		r.s.rolePerms[role.ID] = make(map[string]struct{})
	}
	role.IsSystemRole = true
	for _, p := range permissions {
		if _, ok := r.s.permissions[p]; ok {
			r.s.rolePerms[role.ID][p] = struct{}{}
		}
	}
	return nil
}

type assignmentRepository struct{ s *Store }

func (r *assignmentRepository) Create(_ context.Context, a *model.Assignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := assignmentKey{a.UserID, a.PatientRecordID}
	if _, ok := r.s.assignments[key]; ok {
		return apperrors.Conflict("assignment already exists", nil)
	}
	if _, ok := r.s.users[a.UserID]; !ok {
		return apperrors.BadRequest("assignment references a missing entity", nil)
	}
	if _, ok := r.s.patients[a.PatientRecordID]; !ok {
		return apperrors.BadRequest("assignment references a missing entity", nil)
	}
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.s.assignments[key] = &cp
	return nil
}

func (r *assignmentRepository) Delete(_ context.Context, userID, patientRecordID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := assignmentKey{userID, patientRecordID}
	if _, ok := r.s.assignments[key]; !ok {
		return apperrors.NotFound("assignment", nil)
	}
	delete(r.s.assignments, key)
	return nil
}

func (r *assignmentRepository) Exists(_ context.Context, userID, patientRecordID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.assignments[assignmentKey{userID, patientRecordID}]
	return ok, nil
}

func (r *assignmentRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Assignment
	for key, a := range r.s.assignments {
		if key.userID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func paginate[T any](items []T, p model.Pagination) []T {
	offset := p.Offset()
	if offset >= len(items) {
		return []T{}
	}
	end := offset + p.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

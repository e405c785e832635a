// Package memory provides in-process implementations of the repository
// interfaces. They back the service and handler tests.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type assignmentKey struct {
	userID, recordID uuid.UUID
}

// Store holds every table in memory behind one lock.
type Store struct {
	mu sync.Mutex

	users           map[uuid.UUID]*model.User
	tokens          map[string]*model.UserToken
	userRoles       map[uuid.UUID]map[string]struct{}
	roles           map[uuid.UUID]*model.Role
	permissions     map[string]*model.Permission
	rolePerms       map[uuid.UUID]map[string]struct{}
	assignments     map[assignmentKey]*model.Assignment
	patients        map[uuid.UUID]*model.PatientRecord
	prescriptions   []*model.Prescription
	vitals          []*model.Vital
	testResults     []*model.TestResult
	doctors         map[uuid.UUID]*model.DoctorProfile
	specializations map[uuid.UUID]*model.Specialization
	rules           map[uuid.UUID]*model.AvailabilityRule
	consultations   map[uuid.UUID]*model.Consultation
	outbox          map[uuid.UUID]*model.OutboxEvent
	lastOutboxAt    time.Time
	audit           []*model.AuditLog
}

// NewStore returns an empty store with the system roles and the permission
// catalogue seeded.
func NewStore() *Store {
	s := &Store{
		users:           make(map[uuid.UUID]*model.User),
		tokens:          make(map[string]*model.UserToken),
		userRoles:       make(map[uuid.UUID]map[string]struct{}),
		roles:           make(map[uuid.UUID]*model.Role),
		permissions:     make(map[string]*model.Permission),
		rolePerms:       make(map[uuid.UUID]map[string]struct{}),
		assignments:     make(map[assignmentKey]*model.Assignment),
		patients:        make(map[uuid.UUID]*model.PatientRecord),
		doctors:         make(map[uuid.UUID]*model.DoctorProfile),
		specializations: make(map[uuid.UUID]*model.Specialization),
		rules:           make(map[uuid.UUID]*model.AvailabilityRule),
		consultations:   make(map[uuid.UUID]*model.Consultation),
		outbox:          make(map[uuid.UUID]*model.OutboxEvent),
	}
	for i := range model.PermissionCatalog {
		p := model.PermissionCatalog[i]
		p.ID = uuid.New()
		p.CreatedAt = time.Now().UTC()
		s.permissions[p.Name] = &p
	}
	for _, name := range model.SystemRoles {
		r := &model.Role{Name: name, Description: name + " system role", IsSystemRole: true}
		r.ID = uuid.New()
		r.CreatedAt = time.Now().UTC()
		r.UpdatedAt = r.CreatedAt
		s.roles[r.ID] = r
		s.rolePerms[r.ID] = make(map[string]struct{})
	}
	return s
}

// Users and the accessors below return repository views over the store.
func (s *Store) Users() repository.UserRepository             { return &userRepository{s} }
func (s *Store) Tokens() repository.TokenRepository           { return &tokenRepository{s} }
func (s *Store) RBAC() repository.RBACRepository              { return &rbacRepository{s} }
func (s *Store) Assignments() repository.AssignmentRepository { return &assignmentRepository{s} }
func (s *Store) Patients() repository.PatientRepository       { return &patientRepository{s} }
func (s *Store) Doctors() repository.DoctorRepository         { return &doctorRepository{s} }
func (s *Store) Specializations() repository.SpecializationRepository {
	return &specializationRepository{s}
}
func (s *Store) Availability() repository.AvailabilityRepository  { return &availabilityRepository{s} }
func (s *Store) Consultations() repository.ConsultationRepository { return &consultationRepository{s} }
func (s *Store) Outbox() repository.OutboxRepository              { return &outboxRepository{s} }
func (s *Store) Audit() repository.AuditRepository                { return &auditRepository{s} }

// OutboxEvents returns a snapshot of all outbox events ordered by creation.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AuditLogs returns a snapshot of the audit trail.
func (s *Store) AuditLogs() []*model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *Store) roleByName(name string) *model.Role {
	for _, r := range s.roles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (s *Store) rolesOf(userID uuid.UUID) []string {
	names := make([]string, 0, len(s.userRoles[userID]))
	for name := range s.userRoles[userID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) insertUser(user *model.User) error {
	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return apperrors.Conflict("username or email already exists", nil)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	cp.Roles = nil
	s.users[user.ID] = &cp
	s.userRoles[user.ID] = make(map[string]struct{})
	return nil
}

func (s *Store) assignRoles(userID uuid.UUID, roles []string) error {
	for _, name := range roles {
		if s.roleByName(name) == nil {
			return apperrors.NotFound("role "+name, nil)
		}
	}
	for _, name := range roles {
		if _, ok := s.userRoles[userID][name]; ok {
			return apperrors.Conflict("role assignment already exists", nil)
		}
	}
	for _, name := range roles {
		s.userRoles[userID][name] = struct{}{}
	}
	return nil
}

func (s *Store) userCopy(u *model.User) *model.User {
	cp := *u
	cp.Roles = s.rolesOf(u.ID)
	return &cp
}

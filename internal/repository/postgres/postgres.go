package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Repositories groups every postgres-backed repository sharing one pool.
type Repositories struct {
	Users           repository.UserRepository
	Tokens          repository.TokenRepository
	RBAC            repository.RBACRepository
	Assignments     repository.AssignmentRepository
	Patients        repository.PatientRepository
	Doctors         repository.DoctorRepository
	Specializations repository.SpecializationRepository
	Availability    repository.AvailabilityRepository
	Consultations   repository.ConsultationRepository
	Outbox          repository.OutboxRepository
	Audit           repository.AuditRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Users:           NewUserRepository(base),
		Tokens:          NewTokenRepository(base),
		RBAC:            NewRBACRepository(base),
		Assignments:     NewAssignmentRepository(base),
		Patients:        NewPatientRepository(base),
		Doctors:         NewDoctorRepository(base),
		Specializations: NewSpecializationRepository(base),
		Availability:    NewAvailabilityRepository(base),
		Consultations:   NewConsultationRepository(base),
		Outbox:          NewOutboxRepository(base),
		Audit:           NewAuditRepository(base),
	}
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// BookingCheck validates a booking against the doctor's rules and the
// non-cancelled consultations of the same UTC day. It runs inside the
// booking transaction; a non-nil error aborts the insert.
type BookingCheck func(rules []*model.AvailabilityRule, sameDay []*model.Consultation) error

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User, roles []string) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByLogin(ctx context.Context, login string) (*model.User, error)
		GetByPatientRecord(ctx context.Context, patientRecordID uuid.UUID) (*model.User, error)
		List(ctx context.Context, filter *model.UserFilter) ([]*model.User, error)
		AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error
		RemoveRole(ctx context.Context, userID uuid.UUID, roleName string) error
		// Delete removes the user's role links and then the user in one
		// transaction. A user still referenced by clinical data is a Conflict.
		Delete(ctx context.Context, id uuid.UUID) error
	}

	TokenRepository interface {
		// Issue stores token after retiring the user's open tokens of the same purpose.
		Issue(ctx context.Context, token *model.UserToken) error
		// ConfirmEmail redeems a confirmation token and marks its user confirmed.
		ConfirmEmail(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error)
		// ResetPassword redeems a reset token and stores the new password hash.
		ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uuid.UUID, error)
	}

	RBACRepository interface {
		// CreateRole inserts the role and its permission set atomically.
		CreateRole(ctx context.Context, role *model.Role, permissions []string) error
		GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error)
		GetRoleByName(ctx context.Context, name string) (*model.Role, error)
		// UpdateRole also replaces the permission set when permissions is non-nil.
		UpdateRole(ctx context.Context, role *model.Role, permissions []string) error
		DeleteRole(ctx context.Context, id uuid.UUID) error
		ListRoles(ctx context.Context) ([]*model.Role, error)
		SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissions []string) error
		ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error)
		// PermissionsForRoles returns the permission names linked to each named role.
		PermissionsForRoles(ctx context.Context, roleNames []string) (map[string][]string, error)
		ListPermissions(ctx context.Context) ([]*model.Permission, error)
		EnsurePermission(ctx context.Context, permission *model.Permission) error
		EnsureSystemRole(ctx context.Context, name string, permissions []string) error
	}

	AssignmentRepository interface {
		Create(ctx context.Context, assignment *model.Assignment) error
		Delete(ctx context.Context, userID, patientRecordID uuid.UUID) error
		Exists(ctx context.Context, userID, patientRecordID uuid.UUID) (bool, error)
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Assignment, error)
	}

	PatientRepository interface {
		CreateWithUser(ctx context.Context, record *model.PatientRecord, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.PatientRecord, error)
		Update(ctx context.Context, record *model.PatientRecord) error
		AddPrescription(ctx context.Context, p *model.Prescription) error
		ListPrescriptions(ctx context.Context, patientRecordID uuid.UUID) ([]*model.Prescription, error)
		AddVital(ctx context.Context, v *model.Vital) error
		ListVitals(ctx context.Context, patientRecordID uuid.UUID) ([]*model.Vital, error)
		AddTestResult(ctx context.Context, r *model.TestResult) error
		ListTestResults(ctx context.Context, patientRecordID uuid.UUID) ([]*model.TestResult, error)
	}

	DoctorRepository interface {
		CreateWithUser(ctx context.Context, profile *model.DoctorProfile, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error)
		List(ctx context.Context, filter *model.DoctorFilter) ([]*model.DoctorProfile, error)
		Update(ctx context.Context, profile *model.DoctorProfile) error
	}

	SpecializationRepository interface {
		Create(ctx context.Context, s *model.Specialization) error
		Get(ctx context.Context, id uuid.UUID) (*model.Specialization, error)
		Update(ctx context.Context, s *model.Specialization) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Specialization, error)
	}

	AvailabilityRepository interface {
		Create(ctx context.Context, rule *model.AvailabilityRule) error
		Delete(ctx context.Context, doctorID, ruleID uuid.UUID) error
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.AvailabilityRule, error)
	}

	ConsultationRepository interface {
		// Book inserts c if check passes, atomically with respect to other
		// bookings for the same doctor.
		Book(ctx context.Context, c *model.Consultation, check BookingCheck) error
		Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
		// Update persists c only if its stored status still equals expected.
		Update(ctx context.Context, c *model.Consultation, expected model.ConsultationStatus) error
		// AssignNurse sets the nurse and creates the nurse's assignment to the record.
		AssignNurse(ctx context.Context, c *model.Consultation) error
		ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Consultation, error)
		ListSummaries(ctx context.Context, filter *model.ConsultationFilter) ([]*model.ConsultationSummary, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditLog, error)
	}
)

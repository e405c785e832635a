// Package authz decides whether an actor may act on a patient record.
package authz

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/rbac"
)

// Operation is a clinical action on a patient record.
type Operation string

const (
	View      Operation = "view"
	Update    Operation = "update"
	Prescribe Operation = "prescribe"
)

func (o Operation) Valid() bool {
	switch o {
	case View, Update, Prescribe:
		return true
	}
	return false
}

type Decision int

const (
	Deny Decision = iota
	Permit
)

func (d Decision) String() string {
	if d == Permit {
		return model.AuditOutcomePermit
	}
	return model.AuditOutcomeDeny
}

// IsAdmin reports whether the actor bypasses every resource check.
func IsAdmin(actor model.Actor) bool {
	return rbac.HasRole(actor, model.RoleSuperAdmin)
}

// Authorize applies the access rules in order: SuperAdmin, Doctor, assigned
// Nurse (never Prescribe), the owning Patient (View only). Anything else is
// denied. assigned reports whether the actor holds an assignment to the record.
func Authorize(actor model.Actor, op Operation, patientRecordID uuid.UUID, assigned bool) Decision {
	if !op.Valid() {
		return Deny
	}
	switch {
	case IsAdmin(actor):
		return Permit
	case rbac.HasRole(actor, model.RoleDoctor):
		return Permit
	case rbac.HasRole(actor, model.RoleNurse) && assigned && op != Prescribe:
		return Permit
	case rbac.HasRole(actor, model.RolePatient) && actor.OwnsRecord(patientRecordID) && op == View:
		return Permit
	default:
		return Deny
	}
}

// needsAssignment reports whether Authorize can depend on the assignment flag.
func needsAssignment(actor model.Actor) bool {
	return rbac.HasRole(actor, model.RoleNurse) &&
		!IsAdmin(actor) &&
		!rbac.HasRole(actor, model.RoleDoctor)
}

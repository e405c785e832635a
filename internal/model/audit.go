package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records an access decision or change to a clinical resource.
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Outcome    string          `json:"outcome" db:"outcome"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	AuditActionView      = "view"
	AuditActionUpdate    = "update"
	AuditActionPrescribe = "prescribe"

	AuditEntityPatient      = "patient_record"
	AuditEntityConsultation = "consultation"

	AuditOutcomePermit  = "permit"
	AuditOutcomeDeny    = "deny"
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// AuditFilter selects audit entries. Nil fields are ignored.
type AuditFilter struct {
	Pagination
	UserID   *uuid.UUID `form:"-"`
	EntityID *uuid.UUID `form:"-"`
	Outcome  string     `form:"outcome"`
}

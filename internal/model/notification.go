package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification event types written to the outbox.
const (
	EventConsultationBooked        = "consultation.booked"
	EventConsultationNurseAssigned = "consultation.nurse_assigned"
	EventConsultationStatusChanged = "consultation.status_changed"
	EventConsultationCancelled     = "consultation.cancelled"
	EventConsultationUpdated       = "consultation.updated"

	EventEmailConfirmation = "auth.email_confirmation"
	EventPasswordReset     = "auth.password_reset"
)

// Recipient is an addressee of a notification.
type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

// ConsultationNotice is the payload of every consultation notification.
type ConsultationNotice struct {
	ConsultationID   uuid.UUID          `json:"consultation_id"`
	ScheduledAt      time.Time          `json:"scheduled_at"`
	DurationMinutes  int                `json:"duration_minutes"`
	ConsultationType ConsultationType   `json:"consultation_type"`
	Fee              float64            `json:"fee"`
	DoctorName       string             `json:"doctor_name,omitempty"`
	OldStatus        ConsultationStatus `json:"old_status,omitempty"`
	NewStatus        ConsultationStatus `json:"new_status,omitempty"`
	CancelledBy      *uuid.UUID         `json:"cancelled_by,omitempty"`
	ChangedFields    []string           `json:"changed_fields,omitempty"`
	Recipients       []Recipient        `json:"recipients"`
}

// AccountNotice is the payload of the auth.* events. Token is the plain
// secret; it only travels through the outbox to the mailer.
type AccountNotice struct {
	Recipient Recipient `json:"recipient"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

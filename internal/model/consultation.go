package model

import (
	"time"

	"github.com/google/uuid"
)

type ConsultationStatus string

const (
	ConsultationStatusPending    ConsultationStatus = "pending"
	ConsultationStatusConfirmed  ConsultationStatus = "confirmed"
	ConsultationStatusInProgress ConsultationStatus = "in_progress"
	ConsultationStatusCompleted  ConsultationStatus = "completed"
	ConsultationStatusCancelled  ConsultationStatus = "cancelled"
	ConsultationStatusNoShow     ConsultationStatus = "no_show"
)

// Valid reports whether s is a known status.
func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationStatusPending, ConsultationStatusConfirmed, ConsultationStatusInProgress,
		ConsultationStatusCompleted, ConsultationStatusCancelled, ConsultationStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s ConsultationStatus) Terminal() bool {
	return s == ConsultationStatusCompleted || s == ConsultationStatusCancelled
}

type ConsultationType string

const (
	ConsultationTypeInPerson ConsultationType = "in_person"
	ConsultationTypeVideo    ConsultationType = "video"
	ConsultationTypePhone    ConsultationType = "phone"
)

func (t ConsultationType) Valid() bool {
	switch t {
	case ConsultationTypeInPerson, ConsultationTypeVideo, ConsultationTypePhone:
		return true
	}
	return false
}

// Consultation is a booked appointment. ScheduledAt is always UTC and Fee is
// the doctor's fee at booking time.
type Consultation struct {
	Base
	PatientRecordID  uuid.UUID          `db:"patient_record_id" json:"patient_record_id"`
	DoctorID         uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	NurseID          *uuid.UUID         `db:"nurse_id" json:"nurse_id,omitempty"`
	ScheduledAt      time.Time          `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes  int                `db:"duration_minutes" json:"duration_minutes"`
	ConsultationType ConsultationType   `db:"consultation_type" json:"consultation_type"`
	Status           ConsultationStatus `db:"status" json:"status"`
	Symptoms         *string            `db:"symptoms" json:"symptoms,omitempty"`
	Diagnosis        *string            `db:"diagnosis" json:"diagnosis,omitempty"`
	TreatmentPlan    *string            `db:"treatment_plan" json:"treatment_plan,omitempty"`
	Notes            *string            `db:"notes" json:"notes,omitempty"`
	Fee              float64            `db:"fee" json:"fee"`
	CompletedAt      *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}

// EndsAt returns the exclusive end of the consultation interval.
func (c *Consultation) EndsAt() time.Time {
	d := time.Duration(c.DurationMinutes) * time.Minute
	if d <= 0 {
		d = SlotDuration
	}
	return c.ScheduledAt.Add(d)
}

// ConsultationSummary is the list view joined with names.
type ConsultationSummary struct {
	ID               uuid.UUID          `db:"id" json:"id"`
	ScheduledAt      time.Time          `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes  int                `db:"duration_minutes" json:"duration_minutes"`
	ConsultationType ConsultationType   `db:"consultation_type" json:"consultation_type"`
	Status           ConsultationStatus `db:"status" json:"status"`
	Fee              float64            `db:"fee" json:"fee"`
	DoctorName       string             `db:"doctor_name" json:"doctor_name"`
	Specialization   string             `db:"specialization" json:"specialization"`
	PatientName      string             `db:"patient_name" json:"patient_name"`
	NurseName        *string            `db:"nurse_name" json:"nurse_name,omitempty"`
}

// ConsultationFilter selects consultations for a list query. Zero fields are ignored.
type ConsultationFilter struct {
	PatientRecordID *uuid.UUID
	DoctorID        *uuid.UUID
	NurseID         *uuid.UUID
}

type BookConsultationRequest struct {
	DoctorID         string  `json:"doctor_id" binding:"required,uuid"`
	PatientRecordID  string  `json:"patient_record_id" binding:"required,uuid"`
	ScheduledAt      Instant `json:"scheduled_at"`
	ConsultationType string  `json:"consultation_type" binding:"required,consultation_type"`
	Symptoms         *string `json:"symptoms" binding:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,consultation_status"`
}

type UpdateConsultationRequest struct {
	Diagnosis     *string `json:"diagnosis" binding:"omitempty,max=1000"`
	TreatmentPlan *string `json:"treatment_plan" binding:"omitempty,max=1000"`
	Notes         *string `json:"notes" binding:"omitempty,max=1000"`
	Status        *string `json:"status" binding:"omitempty,consultation_status"`
}

type AssignNurseRequest struct {
	NurseID string `json:"nurse_id" binding:"required,uuid"`
}

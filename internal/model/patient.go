package model

import (
	"time"

	"github.com/google/uuid"
)

type PatientRecord struct {
	Base
	FullName    string     `db:"full_name" json:"full_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
}

// PatientRecordDetail is a record with its clinical children.
type PatientRecordDetail struct {
	PatientRecord
	Prescriptions []*Prescription `json:"prescriptions"`
	Vitals        []*Vital        `json:"vitals"`
	TestResults   []*TestResult   `json:"test_results"`
}

type Prescription struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PatientRecordID    uuid.UUID `db:"patient_record_id" json:"patient_record_id"`
	Medication         string    `db:"medication" json:"medication"`
	Dosage             string    `db:"dosage" json:"dosage"`
	PrescribedByUserID uuid.UUID `db:"prescribed_by_user_id" json:"prescribed_by_user_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type Vital struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientRecordID  uuid.UUID `db:"patient_record_id" json:"patient_record_id"`
	Type             string    `db:"type" json:"type"`
	Value            string    `db:"value" json:"value"`
	Notes            string    `db:"notes" json:"notes"`
	RecordedByUserID uuid.UUID `db:"recorded_by_user_id" json:"recorded_by_user_id"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
}

// TestResult is a lab or diagnostic result filed against a record.
type TestResult struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientRecordID  uuid.UUID `db:"patient_record_id" json:"patient_record_id"`
	Title            string    `db:"title" json:"title"`
	Result           string    `db:"result" json:"result"`
	RecordedByUserID uuid.UUID `db:"recorded_by_user_id" json:"recorded_by_user_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type UpdatePatientRequest struct {
	FullName    *string  `json:"full_name" binding:"omitempty,min=1,max=100"`
	DateOfBirth *Instant `json:"date_of_birth"`
}

type PrescriptionRequest struct {
	Medication string `json:"medication" binding:"required,max=200"`
	Dosage     string `json:"dosage" binding:"required,max=200"`
}

type VitalRequest struct {
	Type  string `json:"type" binding:"required,max=50"`
	Value string `json:"value" binding:"required,max=50"`
	Notes string `json:"notes" binding:"max=500"`
}

type TestResultRequest struct {
	Title  string `json:"title" binding:"required,max=200"`
	Result string `json:"result" binding:"required,max=2000"`
}

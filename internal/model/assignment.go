package model

import (
	"time"

	"github.com/google/uuid"
)

// Assignment grants a staff member elevated access to a patient record.
type Assignment struct {
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	PatientRecordID uuid.UUID `db:"patient_record_id" json:"patient_record_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type AssignmentRequest struct {
	UserID          string `json:"user_id" binding:"required,uuid"`
	PatientRecordID string `json:"patient_record_id" binding:"required,uuid"`
}

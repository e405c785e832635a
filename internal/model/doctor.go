package model

import (
	"github.com/google/uuid"
)

// DoctorProfile extends a user holding the Doctor role. One per user.
type DoctorProfile struct {
	Base
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	FullName          string    `db:"full_name" json:"full_name"`
	SpecializationID  uuid.UUID `db:"specialization_id" json:"specialization_id"`
	PhoneNumber       *string   `db:"phone_number" json:"phone_number,omitempty"`
	Bio               *string   `db:"bio" json:"bio,omitempty"`
	YearsOfExperience int       `db:"years_of_experience" json:"years_of_experience"`
	ConsultationFee   float64   `db:"consultation_fee" json:"consultation_fee"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	Email             string    `db:"email" json:"email,omitempty"`
	Specialization    string    `db:"specialization_name" json:"specialization,omitempty"`
}

type Specialization struct {
	Base
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description,omitempty"`
}

type DoctorFilter struct {
	SpecializationID *uuid.UUID
	ActiveOnly       bool
}

type CreateDoctorRequest struct {
	Email             string  `json:"email" binding:"required,email"`
	Username          string  `json:"username" binding:"required,min=3,max=50"`
	Password          string  `json:"password" binding:"required,min=8"`
	FullName          string  `json:"full_name" binding:"required,max=100"`
	SpecializationID  string  `json:"specialization_id" binding:"required,uuid"`
	PhoneNumber       *string `json:"phone_number" binding:"omitempty,max=20"`
	Bio               *string `json:"bio" binding:"omitempty,max=500"`
	YearsOfExperience int     `json:"years_of_experience" binding:"min=0,max=80"`
	ConsultationFee   float64 `json:"consultation_fee" binding:"min=0"`
}

type UpdateDoctorProfileRequest struct {
	FullName          *string  `json:"full_name" binding:"omitempty,max=100"`
	SpecializationID  *string  `json:"specialization_id" binding:"omitempty,uuid"`
	PhoneNumber       *string  `json:"phone_number" binding:"omitempty,max=20"`
	Bio               *string  `json:"bio" binding:"omitempty,max=500"`
	YearsOfExperience *int     `json:"years_of_experience" binding:"omitempty,min=0,max=80"`
	ConsultationFee   *float64 `json:"consultation_fee" binding:"omitempty,min=0"`
}

type SpecializationRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

package model

import (
	"github.com/google/uuid"
)

// User is a persisted identity. Patients carry the id of their own record.
type User struct {
	Base
	Email           string     `json:"email" db:"email"`
	Username        string     `json:"username" db:"username"`
	FullName        string     `json:"full_name" db:"full_name"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	EmailConfirmed  bool       `json:"email_confirmed" db:"email_confirmed"`
	PatientRecordID *uuid.UUID `json:"patient_record_id,omitempty" db:"patient_record_id"`
	Roles           []string   `json:"roles,omitempty" db:"-"`
}

// Actor is the resolved caller of a request.
type Actor struct {
	ID              uuid.UUID  `json:"id"`
	Roles           []string   `json:"roles"`
	PatientRecordID *uuid.UUID `json:"patient_record_id,omitempty"`
}

// ActorFromUser builds the actor view of a loaded user.
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, Roles: u.Roles, PatientRecordID: u.PatientRecordID}
}

// OwnsRecord reports whether the actor's linked patient record is id.
func (a Actor) OwnsRecord(id uuid.UUID) bool {
	return a.PatientRecordID != nil && *a.PatientRecordID == id
}

type UserFilter struct {
	Pagination
	Role   string `form:"role"`
	Search string `form:"search"`
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	FullName string `json:"full_name" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is a patient self-registration.
type RegisterRequest struct {
	Email       string   `json:"email" binding:"required,email"`
	Username    string   `json:"username" binding:"required,min=3,max=50"`
	Password    string   `json:"password" binding:"required,min=8"`
	FullName    string   `json:"full_name" binding:"required,max=100"`
	DateOfBirth *Instant `json:"date_of_birth"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}

// TokenClaims are the JWT claims issued at login.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID          uuid.UUID  `json:"user_id"`
	Email           string     `json:"email"`
	Roles           []string   `json:"roles"`
	PrimaryRole     string     `json:"primary_role"`
	PatientRecordID *uuid.UUID `json:"patient_record_id,omitempty"`
}

// Actor converts the claims to the request actor.
func (c *TokenClaims) Actor() Actor {
	return Actor{ID: c.UserID, Roles: c.Roles, PatientRecordID: c.PatientRecordID}
}

// EmailRequest names an account by its email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ConfirmEmailRequest binds from a JSON body or from the query string of the
// emailed link.
type ConfirmEmailRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

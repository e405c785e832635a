package model

import (
	"time"

	"github.com/google/uuid"
)

type TokenPurpose string

const (
	TokenPurposeEmailConfirmation TokenPurpose = "email_confirmation"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)

// UserToken is a single-use, expiring secret mailed to a user. Only the
// SHA-256 of the secret is stored.
type UserToken struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	UserID    uuid.UUID    `db:"user_id" json:"user_id"`
	Purpose   TokenPurpose `db:"purpose" json:"purpose"`
	TokenHash string       `db:"token_hash" json:"-"`
	ExpiresAt time.Time    `db:"expires_at" json:"expires_at"`
	UsedAt    *time.Time   `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *UserToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

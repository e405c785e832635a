package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type tokenRepository struct {
	BaseRepository
}

func NewTokenRepository(base BaseRepository) repository.TokenRepository {
	return &tokenRepository{base}
}

func (r *tokenRepository) Issue(ctx context.Context, token *model.UserToken) error {
	token.ID = uuid.New()
	token.CreatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		retire := `
			UPDATE user_tokens SET used_at = $3
			WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL
		`
		if _, err := tx.ExecContext(ctx, retire, token.UserID, token.Purpose, token.CreatedAt); err != nil {
			return mapError(err, "retire tokens", "token")
		}

		insert := `
			INSERT INTO user_tokens (id, user_id, purpose, token_hash, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, insert,
			token.ID,
			token.UserID,
			token.Purpose,
			token.TokenHash,
			token.ExpiresAt,
			token.CreatedAt,
		); err != nil {
			return mapError(err, "issue token", "token")
		}
		return nil
	})
}

func (r *tokenRepository) ConfirmEmail(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		token, err := redeemToken(ctx, tx, model.TokenPurposeEmailConfirmation, tokenHash, now)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET email_confirmed = TRUE, updated_at = $2 WHERE id = $1`,
			token.UserID, now)
		if err != nil {
			return mapError(err, "confirm email", "user")
		}
		userID = token.UserID
		return checkAffected(result, "user")
	})
	return userID, err
}

func (r *tokenRepository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		token, err := redeemToken(ctx, tx, model.TokenPurposePasswordReset, tokenHash, now)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
			token.UserID, passwordHash, now)
		if err != nil {
			return mapError(err, "reset password", "user")
		}
		userID = token.UserID
		return checkAffected(result, "user")
	})
	return userID, err
}

// redeemToken locks the open token with the given hash and marks it used.
func redeemToken(ctx context.Context, tx *sqlx.Tx, purpose model.TokenPurpose, tokenHash string, now time.Time) (*model.UserToken, error) {
	query := `
		SELECT id, user_id, purpose, token_hash, expires_at, used_at, created_at
		FROM user_tokens
		WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL
		FOR UPDATE
	`
	var token model.UserToken
	if err := tx.GetContext(ctx, &token, query, tokenHash, purpose); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.BadRequest("invalid or already used token", nil)
		}
		return nil, mapError(err, "get token", "token")
	}
	if token.Expired(now) {
		return nil, apperrors.BadRequest("token has expired", nil)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE user_tokens SET used_at = $2 WHERE id = $1`, token.ID, now); err != nil {
		return nil, mapError(err, "redeem token", "token")
	}
	return &token, nil
}

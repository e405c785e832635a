package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/internal/service/rbac"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var ErrInvalidCredentials = stderrors.New("invalid credentials")

const (
	ConfirmationTTL  = 24 * time.Hour
	PasswordResetTTL = 2 * time.Hour
)

type Service struct {
	users    repository.UserRepository
	patients repository.PatientRepository
	tokens   repository.TokenRepository
	notifier notification.AccountNotifier
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users repository.UserRepository, patients repository.PatientRepository,
	tokens repository.TokenRepository, notifier notification.AccountNotifier,
	jwtSvc auth.JWTService, hasher security.PasswordHasher, opts ...Option) *Service {
	s := &Service{
		users:    users,
		patients: patients,
		tokens:   tokens,
		notifier: notifier,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a Patient user together with the patient record it is
// linked to.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if err := security.ValidateStrength(req.Password); err != nil {
		return nil, errors.Validation(err.Error())
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	record := &model.PatientRecord{FullName: strings.TrimSpace(req.FullName)}
	if req.DateOfBirth != nil && !req.DateOfBirth.IsZero() {
		dob := req.DateOfBirth.Time
		record.DateOfBirth = &dob
	}
	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		FullName:     record.FullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.patients.CreateWithUser(ctx, record, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Msg("Patient registered")

	// The account exists either way; a lost email can be resent.
	if err := s.sendConfirmation(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to queue confirmation email")
	}
	return user, nil
}

// ConfirmEmail redeems a confirmation token.
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.ConfirmEmail(ctx, security.HashToken(strings.TrimSpace(token)), s.now().UTC())
	if err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Msg("Email confirmed")
	return nil
}

// ResendConfirmation replaces any open confirmation token with a new one.
// An unknown address succeeds silently.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil || user == nil {
		return err
	}
	if user.EmailConfirmed {
		return errors.BadRequest("email is already confirmed", nil)
	}
	return s.sendConfirmation(ctx, user)
}

// ForgotPassword mails a reset token to an active account. Its outcome is
// the same whether or not the address belongs to anyone.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		log.Error().Err(err).Msg("Password reset lookup failed")
		return nil
	}
	if user == nil || !user.IsActive {
		return nil
	}

	plain, expires, err := s.issue(ctx, user, model.TokenPurposePasswordReset, PasswordResetTTL)
	if err == nil {
		err = s.notifier.NotifyPasswordReset(ctx, user, plain, expires)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to queue password reset")
		return nil
	}
	log.Info().Str("user_id", user.ID.String()).Msg("Password reset requested")
	return nil
}

// ResetPassword redeems a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	if err := security.ValidateStrength(req.NewPassword); err != nil {
		return errors.Validation(err.Error())
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	userID, err := s.tokens.ResetPassword(ctx, security.HashToken(strings.TrimSpace(req.Token)), hash, s.now().UTC())
	if err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Msg("Password reset")
	return nil
}

func (s *Service) sendConfirmation(ctx context.Context, user *model.User) error {
	plain, expires, err := s.issue(ctx, user, model.TokenPurposeEmailConfirmation, ConfirmationTTL)
	if err != nil {
		return err
	}
	return s.notifier.NotifyEmailConfirmation(ctx, user, plain, expires)
}

func (s *Service) issue(ctx context.Context, user *model.User, purpose model.TokenPurpose, ttl time.Duration) (string, time.Time, error) {
	plain, hash, err := security.NewToken()
	if err != nil {
		return "", time.Time{}, err
	}
	token := &model.UserToken{
		UserID:    user.ID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: s.now().UTC().Add(ttl),
	}
	if err := s.tokens.Issue(ctx, token); err != nil {
		return "", time.Time{}, err
	}
	return plain, token.ExpiresAt, nil
}

// userByEmail returns nil without an error when no user has the address.
func (s *Service) userByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByLogin(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	// GetByLogin also matches usernames.
	if user.Email != email {
		return nil, nil
	}
	return user, nil
}

// Login accepts a username or an email address.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Unauthorized(ErrInvalidCredentials)
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		log.Warn().Str("user_id", user.ID.String()).Msg("Failed login attempt")
		return nil, errors.Unauthorized(ErrInvalidCredentials)
	}
	if !user.IsActive {
		return nil, errors.Unauthorized(fmt.Errorf("account is disabled"))
	}

	token, err := s.jwtSvc.GenerateAccessToken(user, rbac.PrimaryRole(user.Roles))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtSvc.AccessTTL().Seconds()),
		User:        user,
	}, nil
}

// Me returns the current user; a deleted or disabled account is Unauthorized.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Unauthorized(nil)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.Unauthorized(nil)
	}
	return user, nil
}

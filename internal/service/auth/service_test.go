package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func newService(store *memory.Store, opts ...Option) (*Service, auth.JWTService) {
	jwtSvc := auth.NewJWTService("test-secret", "clinic-api", time.Hour)
	return NewService(store.Users(), store.Patients(), store.Tokens(),
		notification.NewAccountNotifier(store.Outbox()), jwtSvc, security.NewBcryptHasher(4), opts...), jwtSvc
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// queued returns the tokens mailed for eventType, oldest first.
func queued(t *testing.T, store *memory.Store, eventType string) []string {
	t.Helper()
	var tokens []string
	for _, e := range store.OutboxEvents() {
		if e.EventType != eventType {
			continue
		}
		var notice model.AccountNotice
		require.NoError(t, json.Unmarshal(e.Payload, &notice))
		tokens = append(tokens, notice.Token)
	}
	return tokens
}

func registerRequest() *model.RegisterRequest {
	return &model.RegisterRequest{
		Email:    "Alice@Example.com",
		Username: "alice",
		Password: "Secret123",
		FullName: "Alice Liddell",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	store := memory.NewStore()
	svc, jwtSvc := newService(store)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	require.NotNil(t, user.PatientRecordID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, []string{model.RolePatient}, user.Roles)

	record, err := store.Patients().Get(ctx, *user.PatientRecordID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", record.FullName)

	for _, login := range []string{"alice", "alice@example.com"} {
		tokens, err := svc.Login(ctx, &model.LoginRequest{Login: login, Password: "Secret123"})
		require.NoError(t, err, login)
		assert.Equal(t, "Bearer", tokens.TokenType)
		assert.Equal(t, int64(3600), tokens.ExpiresIn)

		claims, err := jwtSvc.ValidateToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, model.RolePatient, claims.PrimaryRole)
		require.NotNil(t, claims.PatientRecordID)
		assert.Equal(t, *user.PatientRecordID, *claims.PatientRecordID)
	}

	_, err = svc.Login(ctx, &model.LoginRequest{Login: "alice", Password: "wrong"})
	assert.True(t, errors.IsUnauthorized(err))
	_, err = svc.Login(ctx, &model.LoginRequest{Login: "nobody", Password: "Secret123"})
	assert.True(t, errors.IsUnauthorized(err))

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
}

func TestRegister_Rejections(t *testing.T) {
	store := memory.NewStore()
	svc, _ := newService(store)
	ctx := context.Background()

	weak := registerRequest()
	weak.Password = "password"
	_, err := svc.Register(ctx, weak)
	assert.True(t, errors.IsBadRequest(err))

	_, err = svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	dup := registerRequest()
	dup.Email = "other@example.com"
	_, err = svc.Register(ctx, dup)
	assert.True(t, errors.IsConflict(err), "duplicate username")

	dup = registerRequest()
	dup.Username = "alice2"
	_, err = svc.Register(ctx, dup)
	assert.True(t, errors.IsConflict(err), "duplicate email")
}

func TestConfirmEmail(t *testing.T) {
	store := memory.NewStore()
	clk := &clock{t: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)}
	svc, _ := newService(store, WithClock(clk.now))
	ctx := context.Background()

	user, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	assert.False(t, user.EmailConfirmed)

	tokens := queued(t, store, model.EventEmailConfirmation)
	require.Len(t, tokens, 1)

	err = svc.ConfirmEmail(ctx, "not-a-token")
	assert.True(t, errors.IsBadRequest(err))

	require.NoError(t, svc.ConfirmEmail(ctx, tokens[0]))
	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, me.EmailConfirmed)

	err = svc.ConfirmEmail(ctx, tokens[0])
	assert.True(t, errors.IsBadRequest(err), "tokens are single use")

	err = svc.ResendConfirmation(ctx, "alice@example.com")
	assert.True(t, errors.IsBadRequest(err))
}

func TestConfirmEmail_ExpiresAfterADay(t *testing.T) {
	store := memory.NewStore()
	clk := &clock{t: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)}
	svc, _ := newService(store, WithClock(clk.now))
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	tokens := queued(t, store, model.EventEmailConfirmation)
	require.Len(t, tokens, 1)

	clk.t = clk.t.Add(ConfirmationTTL)
	err = svc.ConfirmEmail(ctx, tokens[0])
	require.True(t, errors.IsBadRequest(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestResendConfirmation_ReplacesOpenToken(t *testing.T) {
	store := memory.NewStore()
	svc, _ := newService(store)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	require.NoError(t, svc.ResendConfirmation(ctx, "ALICE@example.com"))
	require.NoError(t, svc.ResendConfirmation(ctx, "nobody@example.com"))
	require.NoError(t, svc.ResendConfirmation(ctx, "alice"), "usernames are not addresses")

	tokens := queued(t, store, model.EventEmailConfirmation)
	require.Len(t, tokens, 2)

	assert.True(t, errors.IsBadRequest(svc.ConfirmEmail(ctx, tokens[0])), "superseded token")
	require.NoError(t, svc.ConfirmEmail(ctx, tokens[1]))
}

func TestForgotPassword_DoesNotRevealAccounts(t *testing.T) {
	store := memory.NewStore()
	svc, _ := newService(store)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	before := len(store.OutboxEvents())

	require.NoError(t, svc.ForgotPassword(ctx, "nobody@example.com"))
	assert.Len(t, store.OutboxEvents(), before)

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	assert.Len(t, queued(t, store, model.EventPasswordReset), 1)
}

func TestResetPassword(t *testing.T) {
	store := memory.NewStore()
	clk := &clock{t: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)}
	svc, _ := newService(store, WithClock(clk.now))
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	tokens := queued(t, store, model.EventPasswordReset)
	require.Len(t, tokens, 1)

	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: tokens[0], NewPassword: "weakpassword"})
	assert.True(t, errors.IsBadRequest(err))

	require.NoError(t, svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: tokens[0], NewPassword: "Changed456"}))

	_, err = svc.Login(ctx, &model.LoginRequest{Login: "alice", Password: "Secret123"})
	assert.True(t, errors.IsUnauthorized(err))
	_, err = svc.Login(ctx, &model.LoginRequest{Login: "alice", Password: "Changed456"})
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: tokens[0], NewPassword: "Another789"})
	assert.True(t, errors.IsBadRequest(err), "tokens are single use")
}

func TestResetPassword_ExpiresAfterTwoHours(t *testing.T) {
	store := memory.NewStore()
	clk := &clock{t: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)}
	svc, _ := newService(store, WithClock(clk.now))
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	tokens := queued(t, store, model.EventPasswordReset)
	require.Len(t, tokens, 1)

	clk.t = clk.t.Add(PasswordResetTTL - time.Minute)
	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	tokens = queued(t, store, model.EventPasswordReset)
	require.Len(t, tokens, 2)

	clk.t = clk.t.Add(PasswordResetTTL)
	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: tokens[1], NewPassword: "Changed456"})
	require.True(t, errors.IsBadRequest(err))
	assert.Contains(t, err.Error(), "expired")
}

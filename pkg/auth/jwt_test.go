package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func TestJWTService_RoundTripsActorClaims(t *testing.T) {
	svc := NewJWTService("secret", "clinic-api", time.Minute)
	recordID := uuid.New()
	user := &model.User{Email: "pat@example.com", Roles: []string{model.RolePatient}, PatientRecordID: &recordID}
	user.ID = uuid.New()

	token, err := svc.GenerateAccessToken(user, model.RolePatient)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RolePatient, claims.PrimaryRole)
	actor := claims.Actor()
	assert.True(t, actor.OwnsRecord(recordID))
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	issuer := NewJWTService("secret-a", "clinic-api", time.Minute)
	verifier := NewJWTService("secret-b", "clinic-api", time.Minute)
	user := &model.User{}
	user.ID = uuid.New()

	token, err := issuer.GenerateAccessToken(user, model.RolePatient)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	svc := NewJWTService("secret", "clinic-api", time.Minute).(*jwtService)
	user := &model.User{}
	user.ID = uuid.New()

	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := svc.GenerateAccessToken(user, model.RolePatient)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

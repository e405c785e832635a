package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func TestCreateStaff(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Users(), store.RBAC(), security.NewBcryptHasher(4))
	ctx := context.Background()

	req := &model.CreateUserRequest{
		Email:    "joy@example.com",
		Username: "joy",
		FullName: "Joy Nurse",
		Password: "Secret123",
		Role:     model.RoleNurse,
	}
	user, err := svc.CreateStaff(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleNurse}, user.Roles)
	assert.NotEqual(t, req.Password, user.PasswordHash)

	_, err = svc.CreateStaff(ctx, req)
	assert.True(t, errors.IsConflict(err))

	for _, role := range []string{model.RolePatient, model.RoleDoctor, "Janitor"} {
		bad := *req
		bad.Username, bad.Email, bad.Role = "x"+role, role+"@example.com", role
		_, err = svc.CreateStaff(ctx, &bad)
		assert.True(t, errors.IsBadRequest(err), role)
	}

	weak := *req
	weak.Username, weak.Email, weak.Password = "weak", "weak@example.com", "alllowercase1"
	_, err = svc.CreateStaff(ctx, &weak)
	assert.True(t, errors.IsBadRequest(err))

	users, err := svc.List(ctx, &model.UserFilter{Role: model.RoleNurse})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "joy", users[0].Username)
}

func TestDeleteUser(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Users(), store.RBAC(), security.NewBcryptHasher(4))
	ctx := context.Background()

	admin, err := svc.CreateStaff(ctx, &model.CreateUserRequest{
		Email: "root@example.com", Username: "root", FullName: "Root", Password: "Secret123", Role: model.RoleSuperAdmin,
	})
	require.NoError(t, err)
	nurse, err := svc.CreateStaff(ctx, &model.CreateUserRequest{
		Email: "joy@example.com", Username: "joy", FullName: "Joy Nurse", Password: "Secret123", Role: model.RoleNurse,
	})
	require.NoError(t, err)
	actor := model.ActorFromUser(admin)

	err = svc.DeleteUser(ctx, actor, admin.ID)
	assert.True(t, errors.IsBadRequest(err), "admins cannot delete themselves")

	require.NoError(t, svc.DeleteUser(ctx, actor, nurse.ID))
	_, err = svc.Get(ctx, nurse.ID)
	assert.True(t, errors.IsNotFound(err))
	users, err := svc.List(ctx, &model.UserFilter{Role: model.RoleNurse})
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.True(t, errors.IsNotFound(svc.DeleteUser(ctx, actor, nurse.ID)))

	// The address is free again once the account is gone.
	_, err = svc.CreateStaff(ctx, &model.CreateUserRequest{
		Email: "joy@example.com", Username: "joy", FullName: "Joy Nurse", Password: "Secret123", Role: model.RoleNurse,
	})
	require.NoError(t, err)
}

func TestDeleteUser_ReferencedByClinicalData(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Users(), store.RBAC(), security.NewBcryptHasher(4))
	ctx := context.Background()

	nurse, err := svc.CreateStaff(ctx, &model.CreateUserRequest{
		Email: "joy@example.com", Username: "joy", FullName: "Joy Nurse", Password: "Secret123", Role: model.RoleNurse,
	})
	require.NoError(t, err)
	patient := &model.User{Email: "pat@example.com", Username: "pat", FullName: "Pat", IsActive: true}
	require.NoError(t, store.Patients().CreateWithUser(ctx, &model.PatientRecord{FullName: "Pat"}, patient))
	require.NoError(t, store.Patients().AddVital(ctx, &model.Vital{
		PatientRecordID: *patient.PatientRecordID, Type: "pulse", Value: "72", RecordedByUserID: nurse.ID,
	}))

	err = svc.DeleteUser(ctx, model.Actor{ID: uuid.New()}, nurse.ID)
	assert.True(t, errors.IsConflict(err))

	got, err := svc.Get(ctx, nurse.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleNurse}, got.Roles, "roles survive a refused delete")
}

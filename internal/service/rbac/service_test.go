package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store.RBAC(), store.Users(), time.Minute)
	require.NoError(t, svc.Seed(context.Background()))
	return svc, store
}

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  model.RoleName
	}{
		{"none defaults to patient", nil, model.RolePatient},
		{"unknown only", []string{"Receptionist"}, model.RolePatient},
		{"nurse and doctor", []string{model.RoleNurse, model.RoleDoctor}, model.RoleDoctor},
		{"admin wins", []string{model.RolePatient, model.RoleSuperAdmin, model.RoleNurse}, model.RoleSuperAdmin},
		{"nurse over patient", []string{model.RolePatient, model.RoleNurse}, model.RoleNurse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrimaryRole(tt.roles))
		})
	}
}

func TestRolePriorityIsStrictlyOrdered(t *testing.T) {
	for i := 1; i < len(RolePriority); i++ {
		assert.Greater(t, RolePriority[i-1].Rank, RolePriority[i].Rank)
	}
}

func TestHasRole(t *testing.T) {
	actor := model.Actor{Roles: []string{model.RoleNurse}}
	assert.True(t, HasRole(actor, model.RoleNurse))
	assert.False(t, HasRole(actor, model.RoleDoctor))
}

func TestHasPermission_FollowsRoleLinks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	nurse := model.Actor{Roles: []string{model.RoleNurse}}
	ok, err := svc.HasPermission(ctx, nurse, model.PermVitalsCreate)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(ctx, nurse, model.PermPrescriptionsWrite)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasPermission(ctx, model.Actor{}, model.PermUsersView)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetRolePermissions_InvalidatesCache(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Receptionist"})
	require.NoError(t, err)

	actor := model.Actor{Roles: []string{"Receptionist"}}
	ok, err := svc.HasPermission(ctx, actor, model.PermUsersView)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SetRolePermissions(ctx, role.ID, []string{model.PermUsersView})
	require.NoError(t, err)

	ok, err = svc.HasPermission(ctx, actor, model.PermUsersView)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetRolePermissions_UnknownPermission(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Auditor"})
	require.NoError(t, err)

	_, err = svc.SetRolePermissions(ctx, role.ID, []string{"does.not.exist"})
	assert.True(t, errors.IsBadRequest(err))
}

func TestSystemRolesAreImmutable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)

	for _, role := range roles {
		if !role.IsSystemRole {
			continue
		}
		_, err := svc.UpdateRole(ctx, role.ID, &model.UpdateRoleRequest{Name: role.Name + "X"})
		assert.True(t, errors.IsBadRequest(err), role.Name)
		assert.True(t, errors.IsBadRequest(svc.DeleteRole(ctx, role.ID)), role.Name)
		_, err = svc.SetRolePermissions(ctx, role.ID, nil)
		assert.True(t, errors.IsBadRequest(err), role.Name)
	}
}

func TestCreateRole_DuplicateName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Billing"})
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Billing"})
	assert.True(t, errors.IsConflict(err))

	_, err = svc.CreateRole(ctx, &model.CreateRoleRequest{Name: model.RoleDoctor})
	assert.True(t, errors.IsConflict(err))
}

func TestDeleteRole_StillAssigned(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Billing"})
	require.NoError(t, err)

	user := &model.User{Email: "b@example.com", Username: "billing", FullName: "Bill"}
	require.NoError(t, store.Users().Create(ctx, user, nil))
	require.NoError(t, svc.AssignRole(ctx, user.ID, "Billing"))

	assert.True(t, errors.IsConflict(svc.AssignRole(ctx, user.ID, "Billing")))
	assert.True(t, errors.IsConflict(svc.DeleteRole(ctx, role.ID)))

	require.NoError(t, svc.RemoveRole(ctx, user.ID, "Billing"))
	assert.NoError(t, svc.DeleteRole(ctx, role.ID))
}

func TestAssignRole_RejectsRecordBoundRoles(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user := &model.User{Email: "n@example.com", Username: "nurse", FullName: "Nina"}
	require.NoError(t, store.Users().Create(ctx, user, []string{model.RoleNurse}))

	assert.True(t, errors.IsBadRequest(svc.AssignRole(ctx, user.ID, model.RolePatient)))
	assert.True(t, errors.IsBadRequest(svc.AssignRole(ctx, user.ID, model.RoleDoctor)))
	assert.NoError(t, svc.AssignRole(ctx, user.ID, model.RoleSuperAdmin))
}

func TestCreateRole_UnknownPermissionLeavesNothingBehind(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Receptionist", Permissions: []string{"no.such.perm"}})
	assert.True(t, errors.IsBadRequest(err))

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	for _, r := range roles {
		assert.NotEqual(t, "Receptionist", r.Name)
	}

	role, err := svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Receptionist", Permissions: []string{model.PermUsersView}})
	require.NoError(t, err)
	assert.Equal(t, []string{model.PermUsersView}, role.Permissions)
}

func TestUpdateRole_UnknownPermissionKeepsNameAndGrants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, &model.CreateRoleRequest{Name: "Billing", Permissions: []string{model.PermUsersView}})
	require.NoError(t, err)

	billing := model.Actor{Roles: []string{"Billing"}}
	ok, err := svc.HasPermission(ctx, billing, model.PermUsersView)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.UpdateRole(ctx, role.ID, &model.UpdateRoleRequest{Name: "Accounts", Permissions: []string{"no.such.perm"}})
	assert.True(t, errors.IsBadRequest(err))

	got, err := svc.GetRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Billing", got.Name)
	assert.Equal(t, []string{model.PermUsersView}, got.Permissions)

	updated, err := svc.UpdateRole(ctx, role.ID, &model.UpdateRoleRequest{Name: "Accounts", Permissions: []string{model.PermUsersEdit}})
	require.NoError(t, err)
	assert.Equal(t, "Accounts", updated.Name)
	assert.Equal(t, []string{model.PermUsersEdit}, updated.Permissions)

	ok, err = svc.HasPermission(ctx, model.Actor{Roles: []string{"Accounts"}}, model.PermUsersEdit)
	require.NoError(t, err)
	assert.True(t, ok)
}

package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func setup(t *testing.T) (*Service, *model.Specialization) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store.Doctors(), store.Specializations(), security.NewBcryptHasher(4))
	sp, err := svc.CreateSpecialization(context.Background(), &model.SpecializationRequest{Name: "Neurology"})
	require.NoError(t, err)
	return svc, sp
}

func createRequest(specID string) *model.CreateDoctorRequest {
	return &model.CreateDoctorRequest{
		Email:             "strange@example.com",
		Username:          "strange",
		Password:          "Secret123",
		FullName:          "Stephen Strange",
		SpecializationID:  specID,
		YearsOfExperience: 12,
		ConsultationFee:   150,
	}
}

func TestCreateAndUpdateDoctor(t *testing.T) {
	svc, sp := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, createRequest("not-a-uuid"))
	assert.True(t, errors.IsBadRequest(err))

	profile, err := svc.Create(ctx, createRequest(sp.ID.String()))
	require.NoError(t, err)
	assert.True(t, profile.IsActive)
	assert.Equal(t, "Stephen Strange", profile.FullName)

	_, err = svc.Create(ctx, createRequest(sp.ID.String()))
	assert.True(t, errors.IsConflict(err))

	fee := 200.0
	name := "Dr Stephen Strange"
	updated, err := svc.UpdateMine(ctx, profile.UserID, &model.UpdateDoctorProfileRequest{
		ConsultationFee: &fee,
		FullName:        &name,
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, updated.ConsultationFee)
	assert.Equal(t, name, updated.FullName)

	negative := -1.0
	_, err = svc.UpdateMine(ctx, profile.UserID, &model.UpdateDoctorProfileRequest{ConsultationFee: &negative})
	assert.True(t, errors.IsBadRequest(err))
}

func TestDeactivateHidesFromList(t *testing.T) {
	svc, sp := setup(t)
	ctx := context.Background()

	profile, err := svc.Create(ctx, createRequest(sp.ID.String()))
	require.NoError(t, err)

	list, err := svc.List(ctx, &sp.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Deactivate(ctx, profile.ID)
	require.NoError(t, err)

	list, err = svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := svc.Get(ctx, profile.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestSpecializations(t *testing.T) {
	svc, sp := setup(t)
	ctx := context.Background()

	_, err := svc.CreateSpecialization(ctx, &model.SpecializationRequest{Name: "Neurology"})
	assert.True(t, errors.IsConflict(err))

	_, err = svc.Create(ctx, createRequest(sp.ID.String()))
	require.NoError(t, err)
	assert.True(t, errors.IsConflict(svc.DeleteSpecialization(ctx, sp.ID)), "in use")

	other, err := svc.CreateSpecialization(ctx, &model.SpecializationRequest{Name: "Oncology"})
	require.NoError(t, err)
	renamed, err := svc.UpdateSpecialization(ctx, other.ID, &model.SpecializationRequest{Name: "Medical Oncology"})
	require.NoError(t, err)
	assert.Equal(t, "Medical Oncology", renamed.Name)
	require.NoError(t, svc.DeleteSpecialization(ctx, other.ID))

	list, err := svc.ListSpecializations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

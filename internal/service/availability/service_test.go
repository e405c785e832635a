package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

func newDoctor(t *testing.T, store *memory.Store) *model.DoctorProfile {
	t.Helper()
	ctx := context.Background()
	spec := &model.Specialization{Name: "Cardiology"}
	require.NoError(t, store.Specializations().Create(ctx, spec))

	profile := &model.DoctorProfile{SpecializationID: spec.ID, ConsultationFee: 100, IsActive: true}
	user := &model.User{Email: "doc@example.com", Username: "doc", FullName: "Dr Who", IsActive: true}
	require.NoError(t, store.Doctors().CreateWithUser(ctx, profile, user))
	return profile
}

func intPtr(v int) *int { return &v }

func TestService_AddRuleValidation(t *testing.T) {
	store := memory.NewStore()
	doctor := newDoctor(t, store)
	svc := NewService(store.Availability(), store.Consultations(), store.Doctors(),
		WithClock(func() time.Time { return monday }))
	ctx := context.Background()

	_, err := svc.AddRule(ctx, doctor.ID, &model.AvailabilityRuleRequest{
		DayOfWeek: intPtr(1),
		StartTime: model.NewClockTime(10, 0),
		EndTime:   model.NewClockTime(9, 0),
	})
	assert.True(t, errors.IsBadRequest(err))

	_, err = svc.AddRule(ctx, doctor.ID, &model.AvailabilityRuleRequest{
		StartTime: model.NewClockTime(9, 0),
		EndTime:   model.NewClockTime(12, 0),
	})
	assert.True(t, errors.IsBadRequest(err), "recurring rule needs a weekday")

	oneOff := false
	_, err = svc.AddRule(ctx, doctor.ID, &model.AvailabilityRuleRequest{
		IsRecurring: &oneOff,
		StartTime:   model.NewClockTime(9, 0),
		EndTime:     model.NewClockTime(12, 0),
	})
	assert.True(t, errors.IsBadRequest(err), "one-off rule needs a date")

	rule, err := svc.AddRule(ctx, doctor.ID, &model.AvailabilityRuleRequest{
		DayOfWeek: intPtr(1),
		StartTime: model.NewClockTime(9, 0),
		EndTime:   model.NewClockTime(17, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rule.MaxAppointmentsPerSlot)
	assert.True(t, rule.IsRecurring)

	_, err = svc.AddRule(ctx, doctor.ID, &model.AvailabilityRuleRequest{
		DayOfWeek: intPtr(1),
		StartTime: model.NewClockTime(9, 0),
		EndTime:   model.NewClockTime(12, 0),
	})
	assert.True(t, errors.IsConflict(err))

	date := model.Instant{Time: monday.AddDate(0, 0, 2)}
	rule, err = svc.AddRule(ctx, doctor.ID, &model.AvailabilityRuleRequest{
		IsRecurring:  &oneOff,
		SpecificDate: &date,
		StartTime:    model.NewClockTime(9, 0),
		EndTime:      model.NewClockTime(12, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, rule.DayOfWeek)
}

func TestService_EnumerateSlots(t *testing.T) {
	store := memory.NewStore()
	doctor := newDoctor(t, store)
	svc := NewService(store.Availability(), store.Consultations(), store.Doctors(),
		WithClock(func() time.Time { return monday }), WithMaxRangeDays(7))
	ctx := context.Background()

	_, err := svc.AddRule(ctx, doctor.ID, &model.AvailabilityRuleRequest{
		DayOfWeek: intPtr(1),
		StartTime: model.NewClockTime(9, 0),
		EndTime:   model.NewClockTime(10, 0),
	})
	require.NoError(t, err)

	slots, err := svc.EnumerateSlots(ctx, doctor.ID, monday, monday.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	_, err = svc.EnumerateSlots(ctx, doctor.ID, monday, monday.AddDate(0, 0, 7))
	assert.True(t, errors.IsBadRequest(err), "eight days exceeds the range")

	_, err = svc.EnumerateSlots(ctx, doctor.ID, monday.AddDate(0, 0, 1), monday)
	assert.True(t, errors.IsBadRequest(err))

	_, err = svc.EnumerateSlots(ctx, uuid.New(), monday, monday)
	assert.True(t, errors.IsNotFound(err))

	ok, err := svc.IsSlotAvailable(ctx, doctor.ID, monday.Add(9*time.Hour+30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
)

func TestGateway_WritesOutboxNotices(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	spec := &model.Specialization{Name: "Cardiology"}
	require.NoError(t, store.Specializations().Create(ctx, spec))
	doctor := &model.DoctorProfile{SpecializationID: spec.ID, ConsultationFee: 50, IsActive: true}
	require.NoError(t, store.Doctors().CreateWithUser(ctx, doctor,
		&model.User{Email: "doc@example.com", Username: "doc", FullName: "Dr Who", IsActive: true}))
	patient := &model.User{Email: "pat@example.com", Username: "pat", FullName: "Pat", IsActive: true}
	require.NoError(t, store.Patients().CreateWithUser(ctx, &model.PatientRecord{FullName: "Pat"}, patient))

	c := &model.Consultation{
		PatientRecordID:  *patient.PatientRecordID,
		DoctorID:         doctor.ID,
		ScheduledAt:      time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC),
		DurationMinutes:  30,
		ConsultationType: model.ConsultationTypeInPerson,
		Status:           model.ConsultationStatusConfirmed,
		Fee:              50,
	}

	g := NewGateway(store.Outbox(), store.Users(), store.Doctors())
	require.NoError(t, g.NotifyStatusChanged(ctx, c, model.ConsultationStatusPending, model.ConsultationStatusConfirmed))

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventConsultationStatusChanged, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var notice model.ConsultationNotice
	require.NoError(t, json.Unmarshal(events[0].Payload, &notice))
	assert.Equal(t, model.ConsultationStatusPending, notice.OldStatus)
	assert.Equal(t, model.ConsultationStatusConfirmed, notice.NewStatus)
	require.Len(t, notice.Recipients, 2)
	assert.Equal(t, "doc@example.com", notice.Recipients[0].Email)
	assert.Equal(t, "pat@example.com", notice.Recipients[1].Email)

	msgs := Compose(events[0].EventType, &notice)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Consultation status updated", msgs[0].Subject)
	assert.Contains(t, msgs[1].Body, "from pending to confirmed")
}

func TestCompose_Updated(t *testing.T) {
	notice := &model.ConsultationNotice{
		ScheduledAt:   time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC),
		DoctorName:    "Dr Who",
		ChangedFields: []string{"diagnosis", "treatment_plan"},
		Recipients:    []model.Recipient{{Name: "Pat", Email: "pat@example.com"}, {Name: "No Mail"}},
	}

	msgs := Compose(model.EventConsultationUpdated, notice)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Consultation updated", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "Dr Who updated the diagnosis, treatment plan of the consultation")
}

func TestAccountNotifier_QueuesTokenEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	u := &model.User{Email: "pat@example.com", Username: "pat", FullName: "Pat", IsActive: true}
	require.NoError(t, store.Users().Create(ctx, u, []string{model.RolePatient}))

	expires := time.Date(2030, 1, 8, 10, 0, 0, 0, time.UTC)
	n := NewAccountNotifier(store.Outbox())
	require.NoError(t, n.NotifyEmailConfirmation(ctx, u, "secret-token", expires))

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventEmailConfirmation, events[0].EventType)

	var notice model.AccountNotice
	require.NoError(t, json.Unmarshal(events[0].Payload, &notice))
	assert.Equal(t, u.ID, notice.Recipient.UserID)
	assert.Equal(t, "secret-token", notice.Token)
	assert.True(t, expires.Equal(notice.ExpiresAt))

	msg := ComposeAccount(events[0].EventType, &notice)
	require.NotNil(t, msg)
	assert.Equal(t, "pat@example.com", msg.To)
	assert.Equal(t, "Confirm your email address", msg.Subject)
	assert.Contains(t, msg.Body, "secret-token")

	assert.Nil(t, ComposeAccount(model.EventConsultationBooked, &notice))
}

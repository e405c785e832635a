package email

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

func envelope(t *testing.T, eventType string, recipients ...model.Recipient) messaging.Envelope {
	t.Helper()
	payload, err := json.Marshal(model.ConsultationNotice{
		ConsultationID:   uuid.New(),
		ScheduledAt:      time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC),
		DurationMinutes:  30,
		ConsultationType: model.ConsultationTypeVideo,
		DoctorName:       "Greg House",
		Recipients:       recipients,
	})
	require.NoError(t, err)
	return messaging.Envelope{ID: uuid.NewString(), Type: eventType, Payload: payload}
}

func TestDeliver(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", "house@example.com", "Consultation booked", mock.AnythingOfType("string")).Return(nil).Once()
	sender.On("Send", "alice@example.com", "Consultation booked", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "Hello Alice") && strings.Contains(body, "Mon 07 Jan 2030 10:00 UTC")
	})).Return(nil).Once()

	svc := NewService(sender, zap.NewNop(), nil)
	err := svc.Deliver(context.Background(), envelope(t, model.EventConsultationBooked,
		model.Recipient{Name: "Greg House", Email: "house@example.com"},
		model.Recipient{Name: "Alice", Email: "alice@example.com"},
		model.Recipient{Name: "No Mail"},
	))
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestDeliver_ContinuesAfterFailure(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", "a@example.com", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	sender.On("Send", "b@example.com", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(sender, zap.NewNop(), nil)
	err := svc.Deliver(context.Background(), envelope(t, model.EventConsultationCancelled,
		model.Recipient{Name: "A", Email: "a@example.com"},
		model.Recipient{Name: "B", Email: "b@example.com"},
	))
	assert.ErrorContains(t, err, "smtp down")
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestDeliver_UnknownType(t *testing.T) {
	sender := &mockSender{}
	svc := NewService(sender, zap.NewNop(), nil)
	require.NoError(t, svc.Deliver(context.Background(), envelope(t, "something.else",
		model.Recipient{Name: "A", Email: "a@example.com"})))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliver_AccountToken(t *testing.T) {
	payload, err := json.Marshal(model.AccountNotice{
		Recipient: model.Recipient{UserID: uuid.New(), Name: "Alice", Email: "alice@example.com"},
		Token:     "tok-123",
		ExpiresAt: time.Date(2030, 1, 7, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	sender := &mockSender{}
	sender.On("Send", "alice@example.com", "Reset your password", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "tok-123") && strings.Contains(body, "Mon 07 Jan 2030 12:00 UTC")
	})).Return(nil).Once()

	svc := NewService(sender, zap.NewNop(), nil)
	err = svc.Deliver(context.Background(), messaging.Envelope{
		ID: uuid.NewString(), Type: model.EventPasswordReset, Payload: payload,
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

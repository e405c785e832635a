package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// AccountNotifier queues the account emails that carry a one-time token.
type AccountNotifier interface {
	NotifyEmailConfirmation(ctx context.Context, u *model.User, token string, expiresAt time.Time) error
	NotifyPasswordReset(ctx context.Context, u *model.User, token string, expiresAt time.Time) error
}

type outboxAccountNotifier struct {
	outbox repository.OutboxRepository
}

func NewAccountNotifier(outbox repository.OutboxRepository) AccountNotifier {
	return &outboxAccountNotifier{outbox: outbox}
}

func (n *outboxAccountNotifier) NotifyEmailConfirmation(ctx context.Context, u *model.User, token string, expiresAt time.Time) error {
	return n.write(ctx, model.EventEmailConfirmation, u, token, expiresAt)
}

func (n *outboxAccountNotifier) NotifyPasswordReset(ctx context.Context, u *model.User, token string, expiresAt time.Time) error {
	return n.write(ctx, model.EventPasswordReset, u, token, expiresAt)
}

func (n *outboxAccountNotifier) write(ctx context.Context, eventType string, u *model.User, token string, expiresAt time.Time) error {
	payload, err := json.Marshal(&model.AccountNotice{
		Recipient: userRecipient(u),
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s notice: %w", eventType, err)
	}
	return n.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
}

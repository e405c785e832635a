package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/pkg/mailer"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Service turns published consultation and account notices into emails.
type Service struct {
	sender  mailer.Sender
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(sender mailer.Sender, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{sender: sender, log: log, metrics: m}
}

// Deliver sends one email per addressed recipient. Unknown event types are
// ignored. Every recipient is attempted; the returned error joins the
// failures.
func (s *Service) Deliver(ctx context.Context, env messaging.Envelope) error {
	if strings.HasPrefix(env.Type, "auth.") {
		return s.deliverAccount(ctx, env)
	}

	var notice model.ConsultationNotice
	if err := json.Unmarshal(env.Payload, &notice); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
	}

	messages := notification.Compose(env.Type, &notice)
	if len(messages) == 0 {
		s.log.Debug("No recipients for notification",
			zap.String("event_id", env.ID),
			zap.String("event_type", env.Type))
		return nil
	}

	var errs []error
	for _, msg := range messages {
		if err := s.sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
			s.count(env.Type, err)
			s.log.Error("Failed to send notification",
				zap.String("event_id", env.ID),
				zap.String("event_type", env.Type),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		s.count(env.Type, nil)
		s.log.Info("Notification sent",
			zap.String("event_id", env.ID),
			zap.String("event_type", env.Type),
			zap.String("consultation_id", notice.ConsultationID.String()))
	}
	return errors.Join(errs...)
}

// deliverAccount sends a token email. The token is never logged.
func (s *Service) deliverAccount(ctx context.Context, env messaging.Envelope) error {
	var notice model.AccountNotice
	if err := json.Unmarshal(env.Payload, &notice); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
	}

	msg := notification.ComposeAccount(env.Type, &notice)
	if msg == nil {
		s.log.Debug("No recipients for notification",
			zap.String("event_id", env.ID),
			zap.String("event_type", env.Type))
		return nil
	}
	if err := s.sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		s.count(env.Type, err)
		s.log.Error("Failed to send notification",
			zap.String("event_id", env.ID),
			zap.String("event_type", env.Type),
			zap.Error(err))
		return err
	}
	s.count(env.Type, nil)
	s.log.Info("Notification sent",
		zap.String("event_id", env.ID),
		zap.String("event_type", env.Type),
		zap.String("user_id", notice.Recipient.UserID.String()))
	return nil
}

func (s *Service) count(eventType string, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.NotificationsFailed.WithLabelValues(eventType).Inc()
		return
	}
	s.metrics.NotificationsSent.WithLabelValues(eventType).Inc()
}

package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender delivers a single plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send dials per message. The context is only checked before dialing since
// gomail has no cancellation.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// Breaker runs a call through a circuit breaker.
type Breaker interface {
	Execute(fn func() error) error
}

type guardedSender struct {
	next    Sender
	breaker Breaker
}

// WithBreaker stops dialing a failing SMTP server until the breaker closes.
func WithBreaker(next Sender, b Breaker) Sender {
	return &guardedSender{next: next, breaker: b}
}

func (g *guardedSender) Send(ctx context.Context, to, subject, body string) error {
	return g.breaker.Execute(func() error {
		return g.next.Send(ctx, to, subject, body)
	})
}

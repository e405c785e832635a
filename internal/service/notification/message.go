package notification

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// Message is a plain-text email for one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Compose turns an outbox notice into one message per recipient with an
// email address.
func Compose(eventType string, n *model.ConsultationNotice) []Message {
	when := n.ScheduledAt.UTC().Format("Mon 02 Jan 2006 15:04 MST")

	var subject, line string
	switch eventType {
	case model.EventConsultationBooked:
		subject = "Consultation booked"
		line = fmt.Sprintf("A %s consultation with %s has been booked for %s.", humanize(string(n.ConsultationType)), n.DoctorName, when)
	case model.EventConsultationNurseAssigned:
		subject = "You have been assigned to a consultation"
		line = fmt.Sprintf("You are assisting %s on %s.", n.DoctorName, when)
	case model.EventConsultationStatusChanged:
		subject = "Consultation status updated"
		line = fmt.Sprintf("The consultation on %s moved from %s to %s.", when, humanize(string(n.OldStatus)), humanize(string(n.NewStatus)))
	case model.EventConsultationCancelled:
		subject = "Consultation cancelled"
		line = fmt.Sprintf("The consultation with %s on %s has been cancelled.", n.DoctorName, when)
	case model.EventConsultationUpdated:
		subject = "Consultation updated"
		line = fmt.Sprintf("%s updated the %s of the consultation on %s.", n.DoctorName, humanize(strings.Join(n.ChangedFields, ", ")), when)
	default:
		return nil
	}

	var out []Message
	for _, r := range n.Recipients {
		if r.Email == "" {
			continue
		}
		out = append(out, Message{
			To:      r.Email,
			Subject: subject,
			Body:    fmt.Sprintf("Hello %s,\n\n%s\n", r.Name, line),
		})
	}
	return out
}

// ComposeAccount renders an auth.* notice. It returns nil for other event
// types or a notice without an address.
func ComposeAccount(eventType string, n *model.AccountNotice) *Message {
	if n.Recipient.Email == "" {
		return nil
	}
	expires := n.ExpiresAt.UTC().Format("Mon 02 Jan 2006 15:04 MST")

	var subject, line string
	switch eventType {
	case model.EventEmailConfirmation:
		subject = "Confirm your email address"
		line = "Use this code to confirm your email address"
	case model.EventPasswordReset:
		subject = "Reset your password"
		line = "Use this code to choose a new password. If you did not ask for a reset, ignore this email"
	default:
		return nil
	}
	return &Message{
		To:      n.Recipient.Email,
		Subject: subject,
		Body:    fmt.Sprintf("Hello %s,\n\n%s:\n\n%s\n\nThe code expires on %s.\n", n.Recipient.Name, line, n.Token, expires),
	}
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

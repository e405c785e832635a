// Package notification records consultation notifications in the outbox.
// Delivery happens in the notifier process.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Gateway is called after a consultation change has been committed. Callers
// log and drop its errors.
type Gateway interface {
	NotifyBooked(ctx context.Context, c *model.Consultation, doctor *model.DoctorProfile, patient *model.User) error
	NotifyAssignedNurse(ctx context.Context, c *model.Consultation, nurse *model.User) error
	NotifyStatusChanged(ctx context.Context, c *model.Consultation, oldStatus, newStatus model.ConsultationStatus) error
	NotifyCancelled(ctx context.Context, c *model.Consultation, cancelledBy uuid.UUID) error
	// NotifyUpdated reports edits to the clinical fields named in changed.
	NotifyUpdated(ctx context.Context, c *model.Consultation, changed []string) error
}

type outboxGateway struct {
	outbox  repository.OutboxRepository
	users   repository.UserRepository
	doctors repository.DoctorRepository
}

func NewGateway(outbox repository.OutboxRepository, users repository.UserRepository, doctors repository.DoctorRepository) Gateway {
	return &outboxGateway{outbox: outbox, users: users, doctors: doctors}
}

func (g *outboxGateway) NotifyBooked(ctx context.Context, c *model.Consultation, doctor *model.DoctorProfile, patient *model.User) error {
	notice := noticeFor(c, doctor)
	notice.Recipients = append(notice.Recipients, doctorRecipient(doctor))
	if patient != nil {
		notice.Recipients = append(notice.Recipients, userRecipient(patient))
	}
	return g.write(ctx, model.EventConsultationBooked, notice)
}

func (g *outboxGateway) NotifyAssignedNurse(ctx context.Context, c *model.Consultation, nurse *model.User) error {
	doctor, err := g.doctors.Get(ctx, c.DoctorID)
	if err != nil {
		return fmt.Errorf("failed to load doctor: %w", err)
	}
	notice := noticeFor(c, doctor)
	notice.Recipients = []model.Recipient{userRecipient(nurse)}
	return g.write(ctx, model.EventConsultationNurseAssigned, notice)
}

func (g *outboxGateway) NotifyStatusChanged(ctx context.Context, c *model.Consultation, oldStatus, newStatus model.ConsultationStatus) error {
	notice, err := g.participants(ctx, c)
	if err != nil {
		return err
	}
	notice.OldStatus = oldStatus
	notice.NewStatus = newStatus
	return g.write(ctx, model.EventConsultationStatusChanged, notice)
}

func (g *outboxGateway) NotifyCancelled(ctx context.Context, c *model.Consultation, cancelledBy uuid.UUID) error {
	notice, err := g.participants(ctx, c)
	if err != nil {
		return err
	}
	notice.NewStatus = model.ConsultationStatusCancelled
	notice.CancelledBy = &cancelledBy
	return g.write(ctx, model.EventConsultationCancelled, notice)
}

func (g *outboxGateway) NotifyUpdated(ctx context.Context, c *model.Consultation, changed []string) error {
	notice, err := g.participants(ctx, c)
	if err != nil {
		return err
	}
	notice.ChangedFields = changed
	return g.write(ctx, model.EventConsultationUpdated, notice)
}

// participants addresses the doctor, the patient and the nurse if any.
func (g *outboxGateway) participants(ctx context.Context, c *model.Consultation) (*model.ConsultationNotice, error) {
	doctor, err := g.doctors.Get(ctx, c.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor: %w", err)
	}
	notice := noticeFor(c, doctor)
	notice.Recipients = append(notice.Recipients, doctorRecipient(doctor))

	patient, err := g.users.GetByPatientRecord(ctx, c.PatientRecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	notice.Recipients = append(notice.Recipients, userRecipient(patient))

	if c.NurseID != nil {
		nurse, err := g.users.Get(ctx, *c.NurseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load nurse: %w", err)
		}
		notice.Recipients = append(notice.Recipients, userRecipient(nurse))
	}
	return notice, nil
}

func (g *outboxGateway) write(ctx context.Context, eventType string, notice *model.ConsultationNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal %s notice: %w", eventType, err)
	}
	return g.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
}

func noticeFor(c *model.Consultation, doctor *model.DoctorProfile) *model.ConsultationNotice {
	n := &model.ConsultationNotice{
		ConsultationID:   c.ID,
		ScheduledAt:      c.ScheduledAt.UTC(),
		DurationMinutes:  c.DurationMinutes,
		ConsultationType: c.ConsultationType,
		Fee:              c.Fee,
		NewStatus:        c.Status,
	}
	if doctor != nil {
		n.DoctorName = doctor.FullName
	}
	return n
}

func doctorRecipient(d *model.DoctorProfile) model.Recipient {
	return model.Recipient{UserID: d.UserID, Name: d.FullName, Email: d.Email}
}

func userRecipient(u *model.User) model.Recipient {
	return model.Recipient{UserID: u.ID, Name: u.FullName, Email: u.Email}
}

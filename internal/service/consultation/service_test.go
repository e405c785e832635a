package consultation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/pkg/errors"
)

// Sunday noon; the doctor works Mondays 09:00-12:00.
var now = time.Date(2030, 1, 6, 12, 0, 0, 0, time.UTC)

var mondayTen = time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	svc     *Service
	doctor  model.Actor
	profile *model.DoctorProfile
	patient model.Actor
	other   model.Actor
	nurse   model.Actor
	admin   model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	spec := &model.Specialization{Name: "Dermatology"}
	require.NoError(t, store.Specializations().Create(ctx, spec))
	profile := &model.DoctorProfile{SpecializationID: spec.ID, ConsultationFee: 80, IsActive: true}
	docUser := &model.User{Email: "house@example.com", Username: "house", FullName: "Greg House", IsActive: true}
	require.NoError(t, store.Doctors().CreateWithUser(ctx, profile, docUser))
	require.NoError(t, store.Availability().Create(ctx, &model.AvailabilityRule{
		DoctorID:               profile.ID,
		DayOfWeek:              time.Monday,
		StartTime:              model.NewClockTime(9, 0),
		EndTime:                model.NewClockTime(12, 0),
		IsRecurring:            true,
		MaxAppointmentsPerSlot: 1,
	}))

	newPatient := func(name string) model.Actor {
		u := &model.User{Email: name + "@example.com", Username: name, FullName: name, IsActive: true}
		require.NoError(t, store.Patients().CreateWithUser(ctx, &model.PatientRecord{FullName: name}, u))
		return model.ActorFromUser(u)
	}
	newStaff := func(name, role string) model.Actor {
		u := &model.User{Email: name + "@example.com", Username: name, FullName: name, IsActive: true}
		require.NoError(t, store.Users().Create(ctx, u, []string{role}))
		return model.ActorFromUser(u)
	}

	gateway := notification.NewGateway(store.Outbox(), store.Users(), store.Doctors())
	return &fixture{
		store: store,
		svc: NewService(store.Consultations(), store.Doctors(), store.Patients(), store.Users(), gateway,
			WithClock(func() time.Time { return now })),
		doctor:  model.ActorFromUser(docUser),
		profile: profile,
		patient: newPatient("alice"),
		other:   newPatient("bob"),
		nurse:   newStaff("joy", model.RoleNurse),
		admin:   newStaff("root", model.RoleSuperAdmin),
	}
}

func (f *fixture) book(t *testing.T, actor model.Actor, at time.Time) (*model.Consultation, error) {
	t.Helper()
	return f.svc.Book(context.Background(), actor, &model.BookConsultationRequest{
		DoctorID:         f.profile.ID.String(),
		PatientRecordID:  actor.PatientRecordID.String(),
		ScheduledAt:      model.Instant{Time: at},
		ConsultationType: string(model.ConsultationTypeVideo),
	})
}

// downGateway fails every notification.
type downGateway struct{}

var errMailDown = stderrors.New("smtp down")

func (downGateway) NotifyBooked(context.Context, *model.Consultation, *model.DoctorProfile, *model.User) error {
	return errMailDown
}

func (downGateway) NotifyAssignedNurse(context.Context, *model.Consultation, *model.User) error {
	return errMailDown
}

func (downGateway) NotifyStatusChanged(context.Context, *model.Consultation, model.ConsultationStatus, model.ConsultationStatus) error {
	return errMailDown
}

func (downGateway) NotifyCancelled(context.Context, *model.Consultation, uuid.UUID) error {
	return errMailDown
}

func (downGateway) NotifyUpdated(context.Context, *model.Consultation, []string) error {
	return errMailDown
}

func eventTypes(store *memory.Store) []string {
	var out []string
	for _, e := range store.OutboxEvents() {
		out = append(out, e.EventType)
	}
	return out
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.ConsultationStatus
		want     bool
	}{
		{model.ConsultationStatusPending, model.ConsultationStatusConfirmed, true},
		{model.ConsultationStatusPending, model.ConsultationStatusCompleted, true},
		{model.ConsultationStatusConfirmed, model.ConsultationStatusPending, false},
		{model.ConsultationStatusInProgress, model.ConsultationStatusConfirmed, false},
		{model.ConsultationStatusInProgress, model.ConsultationStatusNoShow, true},
		{model.ConsultationStatusNoShow, model.ConsultationStatusCancelled, true},
		{model.ConsultationStatusNoShow, model.ConsultationStatusCompleted, false},
		{model.ConsultationStatusCompleted, model.ConsultationStatusCancelled, false},
		{model.ConsultationStatusCancelled, model.ConsultationStatusPending, false},
		{model.ConsultationStatusPending, model.ConsultationStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestBook(t *testing.T) {
	f := newFixture(t)

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusPending, c.Status)
	assert.Equal(t, 30, c.DurationMinutes)
	assert.Equal(t, 80.0, c.Fee)
	assert.Equal(t, []string{model.EventConsultationBooked}, eventTypes(f.store))

	_, err = f.book(t, f.other, mondayTen)
	assert.True(t, errors.IsConflict(err), "slot holds one booking")

	_, err = f.book(t, f.other, mondayTen.Add(-2*time.Hour))
	assert.True(t, errors.IsBadRequest(err), "outside working hours")

	_, err = f.book(t, f.other, now.Add(-time.Hour))
	assert.True(t, errors.IsBadRequest(err), "past time")

	c2, err := f.book(t, f.other, mondayTen.Add(30*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, c2.ID)
}

func TestBook_OnlyOwnRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.other, &model.BookConsultationRequest{
		DoctorID:         f.profile.ID.String(),
		PatientRecordID:  f.patient.PatientRecordID.String(),
		ScheduledAt:      model.Instant{Time: mondayTen},
		ConsultationType: string(model.ConsultationTypePhone),
	})
	assert.True(t, errors.IsForbidden(err))

	_, err = f.svc.Book(ctx, f.admin, &model.BookConsultationRequest{
		DoctorID:         f.profile.ID.String(),
		PatientRecordID:  f.patient.PatientRecordID.String(),
		ScheduledAt:      model.Instant{Time: mondayTen},
		ConsultationType: string(model.ConsultationTypePhone),
	})
	assert.NoError(t, err)
}

func TestBook_InactiveDoctor(t *testing.T) {
	f := newFixture(t)
	f.profile.IsActive = false
	require.NoError(t, f.store.Doctors().Update(context.Background(), f.profile))

	_, err := f.book(t, f.patient, mondayTen)
	assert.True(t, errors.IsNotFound(err))
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.nurse, c.ID)
	assert.True(t, errors.IsForbidden(err), "nurses cannot cancel")
	_, err = f.svc.Cancel(ctx, f.other, c.ID)
	assert.True(t, errors.IsForbidden(err))

	cancelled, err := f.svc.Cancel(ctx, f.patient, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusCancelled, cancelled.Status)
	assert.Contains(t, eventTypes(f.store), model.EventConsultationCancelled)

	_, err = f.book(t, f.other, mondayTen)
	assert.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.patient, c.ID)
	assert.True(t, errors.IsConflict(err), "already cancelled")
}

func TestCompletedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, f.patient, c.ID, model.ConsultationStatusConfirmed)
	assert.True(t, errors.IsForbidden(err), "patients only cancel")

	done, err := f.svc.Transition(ctx, f.doctor, c.ID, model.ConsultationStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, now, *done.CompletedAt)

	_, err = f.svc.Cancel(ctx, f.admin, c.ID)
	assert.True(t, errors.IsConflict(err))
	_, err = f.svc.Transition(ctx, f.doctor, c.ID, model.ConsultationStatusInProgress)
	assert.True(t, errors.IsConflict(err))

	_, err = f.svc.AssignNurse(ctx, f.doctor, c.ID, f.nurse.ID)
	assert.True(t, errors.IsConflict(err))
}

func TestUpdateClinical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)

	diagnosis := "eczema"
	status := string(model.ConsultationStatusInProgress)
	updated, err := f.svc.UpdateClinical(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{
		Diagnosis: &diagnosis,
		Status:    &status,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusInProgress, updated.Status)
	require.NotNil(t, updated.Diagnosis)
	assert.Equal(t, diagnosis, *updated.Diagnosis)

	_, err = f.svc.UpdateClinical(ctx, f.nurse, c.ID, &model.UpdateConsultationRequest{Diagnosis: &diagnosis})
	assert.True(t, errors.IsForbidden(err))

	back := string(model.ConsultationStatusPending)
	_, err = f.svc.UpdateClinical(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{Status: &back})
	assert.True(t, errors.IsConflict(err))

	_, err = f.svc.Cancel(ctx, f.doctor, c.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateClinical(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{Diagnosis: &diagnosis})
	assert.True(t, errors.IsConflict(err))
}

func TestAssignNurse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)

	_, err = f.svc.AssignNurse(ctx, f.doctor, c.ID, f.other.ID)
	assert.True(t, errors.IsBadRequest(err), "not a nurse")

	_, err = f.svc.AssignNurse(ctx, f.nurse, c.ID, f.nurse.ID)
	assert.True(t, errors.IsForbidden(err))

	_, err = f.svc.AssignNurse(ctx, f.doctor, c.ID, uuid.New())
	assert.True(t, errors.IsNotFound(err))

	assigned, err := f.svc.AssignNurse(ctx, f.doctor, c.ID, f.nurse.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.NurseID)
	assert.Equal(t, f.nurse.ID, *assigned.NurseID)

	ok, err := f.store.Assignments().Exists(ctx, f.nurse.ID, *f.patient.PatientRecordID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.AssignNurse(ctx, f.admin, c.ID, f.nurse.ID)
	assert.NoError(t, err, "reassigning the same nurse is idempotent")

	mine, err := f.svc.ListMine(ctx, f.nurse)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	got, err := f.svc.Get(ctx, f.nurse, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Contains(t, eventTypes(f.store), model.EventConsultationNurseAssigned)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)
	_, err = f.book(t, f.other, mondayTen.Add(time.Hour))
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, f.patient)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	mine, err = f.svc.ListMine(ctx, f.doctor)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	mine, err = f.svc.ListMine(ctx, f.nurse)
	require.NoError(t, err)
	assert.Empty(t, mine)

	all, err := f.svc.ListMine(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNotificationFailuresDoNotFailOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc = NewService(f.store.Consultations(), f.store.Doctors(), f.store.Patients(), f.store.Users(), downGateway{},
		WithClock(func() time.Time { return now }))

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)

	_, err = f.svc.AssignNurse(ctx, f.doctor, c.ID, f.nurse.ID)
	require.NoError(t, err)

	confirmed, err := f.svc.Transition(ctx, f.doctor, c.ID, model.ConsultationStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusConfirmed, confirmed.Status)

	notes := "bring previous results"
	_, err = f.svc.UpdateClinical(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{Notes: &notes})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.patient, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusCancelled, cancelled.Status)

	stored, err := f.store.Consultations().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusCancelled, stored.Status)
	assert.Empty(t, f.store.OutboxEvents())
}

func TestBook_ConcurrentRequestsRespectSlotCapacity(t *testing.T) {
	f := newFixture(t)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		booked    int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book(t, f.patient, mondayTen)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.IsConflict(err):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, booked)
	assert.Equal(t, attempts-1, conflicts)

	mine, err := f.svc.ListMine(context.Background(), f.patient)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCancelSendsSingleNotice(t *testing.T) {
	f := newFixture(t)

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), f.patient, c.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{model.EventConsultationBooked, model.EventConsultationCancelled}, eventTypes(f.store))
}

func TestUpdateClinical_NotifiesChangedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.book(t, f.patient, mondayTen)
	require.NoError(t, err)

	diagnosis, plan := "eczema", "moisturise twice daily"
	_, err = f.svc.UpdateClinical(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{
		Diagnosis:     &diagnosis,
		TreatmentPlan: &plan,
	})
	require.NoError(t, err)

	// Same values again change nothing.
	_, err = f.svc.UpdateClinical(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{Diagnosis: &diagnosis})
	require.NoError(t, err)

	assert.Equal(t, []string{model.EventConsultationBooked, model.EventConsultationUpdated}, eventTypes(f.store))

	events := f.store.OutboxEvents()
	var notice model.ConsultationNotice
	require.NoError(t, json.Unmarshal(events[1].Payload, &notice))
	assert.Equal(t, []string{"diagnosis", "treatment_plan"}, notice.ChangedFields)
	require.Len(t, notice.Recipients, 2)
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditHandler "github.com/jwalitptl/clinic-api/internal/handler/audit"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	consultationHandler "github.com/jwalitptl/clinic-api/internal/handler/consultation"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	healthHandler "github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	rbacHandler "github.com/jwalitptl/clinic-api/internal/handler/rbac"
	userHandler "github.com/jwalitptl/clinic-api/internal/handler/user"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/authz"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/consultation"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/internal/service/rbac"
	"github.com/jwalitptl/clinic-api/internal/service/user"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const password = "Secret123"

// Sunday noon.
var clock = time.Date(2030, 1, 6, 12, 0, 0, 0, time.UTC)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type testServer struct {
	t      *testing.T
	store  *memory.Store
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, middleware.RegisterValidators())

	ctx := context.Background()
	now := func() time.Time { return clock }
	store := memory.NewStore()
	hasher := security.NewBcryptHasher(4)
	jwtSvc := auth.NewJWTService("test-secret", "clinic-test", time.Hour)

	rbacSvc := rbac.NewService(store.RBAC(), store.Users(), time.Minute)
	require.NoError(t, rbacSvc.Seed(ctx))
	auditSvc := audit.NewService(store.Audit())
	authzSvc := authz.NewService(store.Assignments(), auditSvc)
	gateway := notification.NewGateway(store.Outbox(), store.Users(), store.Doctors())

	userSvc := user.NewService(store.Users(), store.RBAC(), hasher)
	_, err := userSvc.CreateStaff(ctx, &model.CreateUserRequest{
		Email: "root@clinic.test", Username: "root", FullName: "Root", Password: password, Role: model.RoleSuperAdmin,
	})
	require.NoError(t, err)

	r := NewRouter(
		middleware.NewAuthMiddleware(rbacSvc, jwtSvc),
		middleware.NewAuditMiddleware(auditSvc),
		Handlers{
			Health: healthHandler.NewHandler(okPinger{}, prometheus.NewRegistry()),
			Auth: authHandler.NewHandler(authService.NewService(store.Users(), store.Patients(), store.Tokens(),
				notification.NewAccountNotifier(store.Outbox()), jwtSvc, hasher, authService.WithClock(now))),
			Users: userHandler.NewHandler(userSvc, rbacSvc),
			RBAC:  rbacHandler.NewHandler(rbacSvc),
			Doctors: doctorHandler.NewHandler(
				doctor.NewService(store.Doctors(), store.Specializations(), hasher),
				availability.NewService(store.Availability(), store.Consultations(), store.Doctors(), availability.WithClock(now)),
			),
			Patients: patientHandler.NewHandler(patient.NewService(store.Patients(), store.Users(), store.Assignments(), authzSvc)),
			Consultations: consultationHandler.NewHandler(consultation.NewService(
				store.Consultations(), store.Doctors(), store.Patients(), store.Users(), gateway, consultation.WithClock(now))),
			Audit: auditHandler.NewHandler(auditSvc),
		},
		Config{
			Mode:       gin.TestMode,
			CORSConfig: middleware.DefaultCORSConfig(),
			Registerer: prometheus.NewRegistry(),
		},
	)
	return &testServer{t: t, store: store, engine: r.Engine()}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (s *testServer) login(login string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/auth/login", "", gin.H{"login": login, "password": password})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var tokens model.TokenResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &tokens))
	return tokens.AccessToken
}

func (s *testServer) register(username string) (*model.User, string) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/auth/register", "", gin.H{
		"email": username + "@example.com", "username": username, "password": password, "full_name": username,
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	var u model.User
	require.NoError(s.t, json.Unmarshal(env.Data, &u))
	return &u, s.login(username)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// seedDoctor creates a doctor working Mondays 09:00-10:00, one patient per slot.
func (s *testServer) seedDoctor(admin string) (*model.DoctorProfile, string) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/specializations", admin, gin.H{"name": "Cardiology"})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	spec := decode[model.Specialization](s.t, env)

	code, env = s.do(http.MethodPost, "/admin/doctors", admin, gin.H{
		"email": "house@clinic.test", "username": "house", "password": password, "full_name": "Greg House",
		"specialization_id": spec.ID.String(), "years_of_experience": 10, "consultation_fee": 120,
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	profile := decode[model.DoctorProfile](s.t, env)

	token := s.login("house")
	code, env = s.do(http.MethodPost, "/doctors/me/availability", token, gin.H{
		"day_of_week": 1, "start_time": "09:00", "end_time": "10:00", "max_appointments_per_slot": 1,
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	return &profile, token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)
	u, token := s.register("alice")
	require.NotNil(t, u.PatientRecordID)
	assert.Equal(t, []string{model.RolePatient}, u.Roles)

	code, env := s.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", decode[model.User](t, env).Username)

	code, _ = s.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(http.MethodGet, "/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(http.MethodPost, "/auth/login", "", gin.H{"login": "alice", "password": "Wrong1234"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", env.Status)

	code, _ = s.do(http.MethodPost, "/auth/register", "", gin.H{
		"email": "other@example.com", "username": "alice", "password": password, "full_name": "Alice Again",
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestPermissionGuards(t *testing.T) {
	s := newTestServer(t)
	_, patientToken := s.register("alice")
	admin := s.login("root")

	code, _ := s.do(http.MethodGet, "/admin/users", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(http.MethodPost, "/rbac/roles", patientToken, gin.H{"name": "Receptionist"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(http.MethodGet, "/audit/logs", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(http.MethodPost, "/rbac/roles", admin, gin.H{
		"name": "Receptionist", "permissions": []string{model.PermUsersView},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	role := decode[model.Role](t, env)
	assert.Equal(t, []string{model.PermUsersView}, role.Permissions)

	code, _ = s.do(http.MethodPost, "/rbac/roles", admin, gin.H{"name": "Receptionist"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(http.MethodGet, "/rbac/roles", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.Role](t, env), len(model.SystemRoles)+1)

	var failures int
	for _, entry := range s.store.AuditLogs() {
		if entry.EntityType == "role" && entry.Outcome == model.AuditOutcomeFailure {
			failures++
		}
	}
	// The patient's forbidden create and the admin's duplicate.
	assert.Equal(t, 2, failures)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("root")
	profile, doctorToken := s.seedDoctor(admin)
	alice, aliceToken := s.register("alice")
	bob, bobToken := s.register("bob")

	code, env := s.do(http.MethodGet, "/doctors/"+profile.ID.String()+"/slots?start_date=2030-01-07", aliceToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	slots := decode[[]model.Slot](t, env)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].IsAvailable)

	book := func(token string, u *model.User, at string) (int, envelope) {
		return s.do(http.MethodPost, "/consultations", token, gin.H{
			"doctor_id":         profile.ID.String(),
			"patient_record_id": u.PatientRecordID.String(),
			"scheduled_at":      at,
			"consultation_type": "video",
		})
	}

	code, env = book(aliceToken, alice, "2030-01-07T09:00:00Z")
	require.Equal(t, http.StatusCreated, code, env.Message)
	booked := decode[model.Consultation](t, env)
	assert.Equal(t, model.ConsultationStatusPending, booked.Status)
	assert.Equal(t, 120.0, booked.Fee)

	code, _ = book(bobToken, bob, "2030-01-07T09:00:00Z")
	assert.Equal(t, http.StatusConflict, code)
	code, _ = book(bobToken, bob, "2030-01-07T14:00:00Z")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = book(bobToken, alice, "2030-01-07T09:30:00Z")
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPost, "/consultations", bobToken, gin.H{
		"doctor_id": profile.ID.String(), "patient_record_id": bob.PatientRecordID.String(),
		"scheduled_at": "2030-01-07T09:30:00Z", "consultation_type": "house_call",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "consultation_type")

	path := "/consultations/" + booked.ID.String()
	code, _ = s.do(http.MethodGet, path, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPut, path+"/status", doctorToken, gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, model.ConsultationStatusConfirmed, decode[model.Consultation](t, env).Status)

	code, env = s.do(http.MethodGet, "/consultations/mine", doctorToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.ConsultationSummary](t, env), 1)

	code, env = s.do(http.MethodPost, path+"/cancel", aliceToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, model.ConsultationStatusCancelled, decode[model.Consultation](t, env).Status)

	code, _ = s.do(http.MethodPut, path+"/status", doctorToken, gin.H{"status": "completed"})
	assert.Equal(t, http.StatusConflict, code)

	// The cancelled booking freed the slot.
	code, env = book(bobToken, bob, "2030-01-07T09:00:00Z")
	assert.Equal(t, http.StatusCreated, code, env.Message)

	var types []string
	for _, e := range s.store.OutboxEvents() {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.EventConsultationBooked)
	assert.Contains(t, types, model.EventConsultationCancelled)
}

func TestPatientRecordAccess(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("root")
	alice, aliceToken := s.register("alice")

	code, env := s.do(http.MethodPost, "/admin/users", admin, gin.H{
		"email": "joy@clinic.test", "username": "joy", "full_name": "Nurse Joy", "password": password, "role": model.RoleNurse,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	nurse := decode[model.User](t, env)
	nurseToken := s.login("joy")

	record := "/patients/" + alice.PatientRecordID.String()
	code, _ = s.do(http.MethodGet, record, aliceToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, record, nurseToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	assignment := gin.H{"user_id": nurse.ID.String(), "patient_record_id": alice.PatientRecordID.String()}
	code, _ = s.do(http.MethodPost, "/assignments", nurseToken, assignment)
	assert.Equal(t, http.StatusForbidden, code)
	code, env = s.do(http.MethodPost, "/assignments", admin, assignment)
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, _ = s.do(http.MethodGet, record, nurseToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, record+"/vitals", nurseToken, gin.H{"type": "pulse", "value": "72"})
	assert.Equal(t, http.StatusCreated, code)
	code, _ = s.do(http.MethodPost, record+"/prescriptions", nurseToken, gin.H{"medication": "x", "dosage": "y"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, record+"/tests", nurseToken, gin.H{"title": "HbA1c", "result": "5.4%"})
	assert.Equal(t, http.StatusCreated, code)
	code, env = s.do(http.MethodGet, record+"/tests", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.TestResult](t, env), 1)

	code, env = s.do(http.MethodGet, "/assignments?user_id="+nurse.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.Assignment](t, env), 1)

	code, _ = s.do(http.MethodGet, "/patients/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// lastToken returns the token of the newest auth event of eventType.
func (s *testServer) lastToken(eventType string) string {
	s.t.Helper()
	events := s.store.OutboxEvents()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType == eventType {
			var notice model.AccountNotice
			require.NoError(s.t, json.Unmarshal(events[i].Payload, &notice))
			return notice.Token
		}
	}
	s.t.Fatalf("no %s event queued", eventType)
	return ""
}

func TestEmailConfirmationAndPasswordReset(t *testing.T) {
	s := newTestServer(t)
	_, token := s.register("alice")

	code, env := s.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[model.User](t, env).EmailConfirmed)

	confirm := s.lastToken(model.EventEmailConfirmation)
	code, env = s.do(http.MethodGet, "/auth/confirm-email?token="+confirm, "", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	code, _ = s.do(http.MethodPost, "/auth/confirm-email", "", gin.H{"token": confirm})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[model.User](t, env).EmailConfirmed)

	code, _ = s.do(http.MethodPost, "/auth/resend-confirmation", "", gin.H{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)

	before := len(s.store.OutboxEvents())
	code, known := s.do(http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, code)
	code, unknown := s.do(http.MethodPost, "/auth/forgot-password", "", gin.H{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, known.Message, unknown.Message)
	assert.Len(t, s.store.OutboxEvents(), before+1)

	reset := s.lastToken(model.EventPasswordReset)
	code, _ = s.do(http.MethodPost, "/auth/reset-password", "", gin.H{"token": reset, "new_password": "alllowercase1"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env = s.do(http.MethodPost, "/auth/reset-password", "", gin.H{"token": reset, "new_password": "Changed456"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, _ = s.do(http.MethodPost, "/auth/login", "", gin.H{"login": "alice", "password": password})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(http.MethodPost, "/auth/login", "", gin.H{"login": "alice", "password": "Changed456"})
	assert.Equal(t, http.StatusOK, code)
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("root")
	alice, aliceToken := s.register("alice")

	code, _ := s.do(http.MethodDelete, "/admin/users/"+alice.ID.String(), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodDelete, "/admin/users/"+alice.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodGet, "/admin/users/"+alice.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodDelete, "/admin/users/"+alice.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// The deleted account's token no longer resolves.
	code, _ = s.do(http.MethodGet, "/auth/me", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

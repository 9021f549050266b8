package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/office_hours/internal/auth"
	"github.com/Freeeeeet/office_hours/internal/events"
	"github.com/Freeeeeet/office_hours/internal/metrics"
	"github.com/Freeeeeet/office_hours/internal/repository/memory"
	"github.com/Freeeeeet/office_hours/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	clock := service.ClockFunc(func() time.Time { return now })
	store := memory.NewStore()
	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	availability := service.NewAvailabilityService(store.Availabilities(), store.Users(), clock, logger)
	router, err := NewRouter(Dependencies{
		UserService:         service.NewUserService(store.Users(), logger),
		AvailabilityService: availability,
		BookingService: service.NewBookingService(
			availability, store.Appointments(), store.Users(), events.NewInMemory(256), recorder, clock, logger,
		),
		AppointmentService: service.NewAppointmentService(store.Appointments()),
		Issuer:             auth.NewIssuer("office-hours", "test-signing-key", time.Hour),
		Metrics:            recorder,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthChecks:       checks,
		Logger:             logger,
	})
	require.NoError(t, err)

	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type session struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

func (s *testServer) register(name, email, role string) session {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": "password123",
		"role":     role,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var out session
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *testServer) publish(professor session, start, end time.Time) int64 {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/availability", professor.Token, map[string]any{
		"start_time": start,
		"end_time":   end,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		ID int64 `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.ID
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Code
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t, nil)

	p1 := s.register("Professor P1", "professor1@example.com", "professor")
	a1 := s.register("Student A1", "student1@example.com", "student")
	a2 := s.register("Student A2", "student2@example.com", "student")

	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	t1 := s.publish(p1, day.Add(10*time.Hour), day.Add(11*time.Hour))
	t2 := s.publish(p1, day.Add(11*time.Hour), day.Add(12*time.Hour))

	listPath := fmt.Sprintf("/api/availability/professor/%d", p1.ID)
	rec := s.do(http.MethodGet, listPath, a1.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)

	rec = s.do(http.MethodPost, "/api/appointments", a1.Token, map[string]any{"availability_id": t1, "professor_id": p1.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booked struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booked))
	assert.Equal(t, "scheduled", booked.Status)

	// второй студент не может занять то же окно
	rec = s.do(http.MethodPost, "/api/appointments", a2.Token, map[string]any{"availability_id": t1, "professor_id": p1.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SLOT_UNAVAILABLE", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/appointments", a2.Token, map[string]any{"availability_id": t2, "professor_id": p1.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, listPath, a1.Token, nil)
	assert.Len(t, decodeList(t, rec), 0)

	rec = s.do(http.MethodGet, "/api/appointments/student", a1.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeList(t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "Professor P1", mine[0]["professor"].(map[string]any)["name"])
	assert.NotNil(t, mine[0]["start_time"])

	rec = s.do(http.MethodGet, "/api/appointments/professor", p1.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)

	cancelPath := fmt.Sprintf("/api/appointments/%d/cancel", booked.ID)
	rec = s.do(http.MethodPut, cancelPath, a1.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "students cannot cancel")

	rec = s.do(http.MethodPut, cancelPath, p1.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, cancelPath, p1.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CANCELLED", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/appointments/student", a1.Token, nil)
	assert.Len(t, decodeList(t, rec), 0)

	rec = s.do(http.MethodGet, listPath, a1.Token, nil)
	reopened := decodeList(t, rec)
	require.Len(t, reopened, 1)
	assert.EqualValues(t, t1, reopened[0]["id"])

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `office_hours_bookings_total{outcome="slot_unavailable"} 1`)
}

func TestRequestErrors(t *testing.T) {
	s := newTestServer(t, nil)
	p1 := s.register("Professor P1", "professor1@example.com", "professor")
	a1 := s.register("Student A1", "student1@example.com", "student")
	start := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{
			name:   "inverted range",
			method: http.MethodPost, path: "/api/availability", token: p1.Token,
			body:   map[string]any{"start_time": start, "end_time": start.Add(-time.Hour)},
			status: http.StatusBadRequest, code: "INVALID_RANGE",
		},
		{
			name:   "empty range",
			method: http.MethodPost, path: "/api/availability", token: p1.Token,
			body:   map[string]any{"start_time": start, "end_time": start},
			status: http.StatusBadRequest, code: "INVALID_RANGE",
		},
		{
			name:   "student cannot publish",
			method: http.MethodPost, path: "/api/availability", token: a1.Token,
			body:   map[string]any{"start_time": start, "end_time": start.Add(time.Hour)},
			status: http.StatusForbidden, code: "FORBIDDEN",
		},
		{
			name:   "missing token",
			method: http.MethodGet, path: "/api/appointments/student",
			status: http.StatusUnauthorized, code: "UNAUTHORIZED",
		},
		{
			name:   "book without availability",
			method: http.MethodPost, path: "/api/appointments", token: a1.Token,
			body:   map[string]any{"professor_id": p1.ID},
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name:   "book with a student as professor",
			method: http.MethodPost, path: "/api/appointments", token: a1.Token,
			body:   map[string]any{"professor_id": a1.ID, "availability_id": 1},
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
		{
			name:   "list for non professor",
			method: http.MethodGet, path: fmt.Sprintf("/api/availability/professor/%d", a1.ID), token: a1.Token,
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
		{
			name:   "bad id",
			method: http.MethodPut, path: "/api/appointments/abc/cancel", token: p1.Token,
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name:   "cancel unknown appointment",
			method: http.MethodPut, path: "/api/appointments/999/cancel", token: p1.Token,
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
		{
			name:   "unknown role",
			method: http.MethodPost, path: "/api/auth/register",
			body:   map[string]any{"name": "X", "email": "x@example.com", "password": "password123", "role": "admin"},
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name:   "duplicate email",
			method: http.MethodPost, path: "/api/auth/register",
			body:   map[string]any{"name": "X", "email": "Student1@example.com", "password": "password123", "role": "student"},
			status: http.StatusConflict, code: "CONFLICT",
		},
		{
			name:   "wrong password",
			method: http.MethodPost, path: "/api/auth/login",
			body:   map[string]any{"email": "student1@example.com", "password": "nope-nope"},
			status: http.StatusUnauthorized, code: "UNAUTHORIZED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("Student A1", "student1@example.com", "student")

	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "student1@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Token)

	rec = s.do(http.MethodGet, "/api/appointments/student", out.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	healthy := newTestServer(t, map[string]HealthCheck{
		"storage": func(context.Context) error { return nil },
	})
	rec := healthy.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	broken := newTestServer(t, map[string]HealthCheck{
		"storage": func(context.Context) error { return nil },
		"redis":   func(context.Context) error { return errors.New("connection refused") },
	})
	rec = broken.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

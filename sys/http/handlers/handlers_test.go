package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cleanbuddy-dispatch/res/auth"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/res/store/memory"
	"cleanbuddy-dispatch/sys/dispatch"
	"cleanbuddy-dispatch/sys/http/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2025-03-10, 07:00 UTC
var now = time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

func strPtr(s string) *string {
	return &s
}

type testAPI struct {
	t       *testing.T
	store   *memory.Store
	handler http.Handler
	tokens  map[string]string
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New(memory.WithClock(func() time.Time { return now }))

	require.NoError(t, s.SchedulingConfigs().Upsert(ctx, store.DefaultSchedulingConfig("tenant-1")))
	require.NoError(t, s.Customers().Create(ctx, &store.Customer{ID: "cust-1", TenantID: "tenant-1", DisplayName: "Ana", Email: "ana@example.com", Frequency: store.BillingFrequencyOneTime}))
	require.NoError(t, s.Customers().Create(ctx, &store.Customer{ID: "cust-2", TenantID: "tenant-1", DisplayName: "Ben", Email: "ben@example.com", Frequency: store.BillingFrequencyOneTime}))
	require.NoError(t, s.Employees().Create(ctx, &store.Employee{ID: "emp-1", TenantID: "tenant-1", DisplayName: "Eva", ServedAreas: []string{"north"}, IsActive: true}))
	require.NoError(t, s.Services().Create(ctx, &store.Service{ID: "svc-1", TenantID: "tenant-1", Name: "General Cleaning", DurationMin: 60, Price: decimal.NewFromInt(80), PricingUnit: store.PricingUnitPerJob, IsActive: true}))

	for _, user := range []*store.User{
		{ID: "u-admin", TenantID: "tenant-1", DisplayName: "Dispatch", Email: "dispatch@example.com", Role: store.UserRoleCleanerAdmin},
		{ID: "u-ana", TenantID: "tenant-1", DisplayName: "Ana", Email: "ana@example.com", Role: store.UserRoleClient, CustomerID: strPtr("cust-1")},
		{ID: "u-ben", TenantID: "tenant-1", DisplayName: "Ben", Email: "ben@example.com", Role: store.UserRoleClient, CustomerID: strPtr("cust-2")},
		{ID: "u-xi", TenantID: "tenant-2", DisplayName: "Xi", Email: "xi@example.com", Role: store.UserRoleCleanerAdmin},
	} {
		require.NoError(t, s.Users().Create(ctx, user))
	}
	return s
}

func newTestAPI(t *testing.T, storeImpl store.Store, s *memory.Store) *testAPI {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	authImpl := auth.New("test-secret")

	service := dispatch.New(&dispatch.Config{
		Logger: logger,
		Store:  storeImpl,
		Now:    func() time.Time { return now },
	})

	api := &testAPI{
		t:     t,
		store: s,
		handler: New(&Config{
			Logger:         logger,
			Store:          s,
			Auth:           authImpl,
			Dispatch:       service,
			MetricsHandler: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
		}),
		tokens: make(map[string]string),
	}
	for _, user := range []struct{ id, tenant string }{{"u-admin", "tenant-1"}, {"u-ana", "tenant-1"}, {"u-ben", "tenant-1"}, {"u-xi", "tenant-2"}} {
		token, err := authImpl.GenerateAccessToken(user.id, user.tenant)
		require.NoError(t, err)
		api.tokens[user.id] = token
	}
	return api
}

func (a *testAPI) do(method, path, as string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[as])
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) seed(id string, employeeID *string, start time.Time, status store.AppointmentStatus) {
	a.t.Helper()
	require.NoError(a.t, a.store.Appointments().Create(context.Background(), &store.Appointment{
		ID: id, TenantID: "tenant-1", CustomerID: "cust-1", EmployeeID: employeeID, ServiceID: "svc-1",
		StartTime: start, EndTime: start.Add(time.Hour), Status: status, Price: decimal.NewFromInt(80), Address: "1 Main St",
	}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorBody {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := seedStore(t)
	api := newTestAPI(t, s, s)

	rec := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/appointments?date=2025-03-11", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthenticated, decodeError(t, rec).Code)
}

func TestCreateAppointment(t *testing.T) {
	s := seedStore(t)
	api := newTestAPI(t, s, s)

	rec := api.do(http.MethodPost, "/api/v1/appointments", "u-ana", map[string]interface{}{
		"serviceId": "svc-1",
		"date":      "2025-03-11",
		"time":      "10:00",
		"address":   "1 Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created AppointmentView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "cust-1", created.CustomerID)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, "80.00", created.Price)
	assert.Equal(t, 60, created.DurationMinutes)
	assert.Nil(t, created.EmployeeID)

	rec = api.do(http.MethodGet, "/api/v1/appointments/"+created.ID, "u-ana", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	s := seedStore(t)
	api := newTestAPI(t, s, s)
	api.seed("busy", strPtr("emp-1"), time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC), store.AppointmentStatusConfirmed)
	api.seed("pooled", nil, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), store.AppointmentStatusPending)
	api.seed("tonight", nil, now.Add(10*time.Hour), store.AppointmentStatusConfirmed)

	tests := []struct {
		name       string
		method     string
		path       string
		as         string
		body       interface{}
		wantStatus int
		wantCode   string
		check      func(t *testing.T, body middleware.ErrorBody)
	}{
		{
			name:   "validation",
			method: http.MethodGet, path: "/api/v1/slots?date=11-03-2025&durationMinutes=60", as: "u-ana",
			wantStatus: http.StatusBadRequest, wantCode: codeValidation,
		},
		{
			name:   "malformed body",
			method: http.MethodPost, path: "/api/v1/appointments", as: "u-ana", body: `{"serviceId": 7}`,
			wantStatus: http.StatusBadRequest, wantCode: codeValidation,
		},
		{
			name:   "unknown field",
			method: http.MethodPost, path: "/api/v1/appointments/pooled/confirm", as: "u-ana", body: `{"stars": 5}`,
			wantStatus: http.StatusBadRequest, wantCode: codeValidation,
		},
		{
			name:   "outside opening hours",
			method: http.MethodPost, path: "/api/v1/appointments", as: "u-ana",
			body:       map[string]string{"serviceId": "svc-1", "date": "2025-03-11", "time": "19:00", "address": "1 Main St"},
			wantStatus: http.StatusUnprocessableEntity, wantCode: "OUTSIDE_OPEN_HOURS",
		},
		{
			name:   "late cancellation",
			method: http.MethodPost, path: "/api/v1/appointments/tonight/cancel", as: "u-ana",
			wantStatus: http.StatusUnprocessableEntity, wantCode: "LATE_CANCELLATION",
			check: func(t *testing.T, body middleware.ErrorBody) {
				require.NotNil(t, body.HoursRemaining)
				assert.InDelta(t, 10, *body.HoursRemaining, 0.001)
			},
		},
		{
			name:   "conflict",
			method: http.MethodPut, path: "/api/v1/appointments/pooled/resource", as: "u-admin",
			body:       map[string]interface{}{"employeeId": "emp-1", "start": "2025-03-11T10:30:00Z"},
			wantStatus: http.StatusConflict, wantCode: codeConflict,
			check: func(t *testing.T, body middleware.ErrorBody) {
				assert.Equal(t, []string{"busy"}, body.CollidesWith)
			},
		},
		{
			name:   "permission",
			method: http.MethodGet, path: "/api/v1/appointments/busy", as: "u-ben",
			wantStatus: http.StatusForbidden, wantCode: codePermissionDenied,
		},
		{
			name:   "other tenant",
			method: http.MethodGet, path: "/api/v1/appointments/busy", as: "u-xi",
			wantStatus: http.StatusNotFound, wantCode: codeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, tt.as, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestDispatchBoardFlow(t *testing.T) {
	s := seedStore(t)
	api := newTestAPI(t, s, s)
	api.seed("job", nil, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), store.AppointmentStatusPending)

	rec := api.do(http.MethodPost, "/api/v1/appointments/job/move", "u-admin", map[string]interface{}{
		"offsetMinutes": 37,
		"reassign":      true,
		"employeeId":    "emp-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved AppointmentView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&moved))
	assert.Equal(t, time.Date(2025, 3, 11, 9, 40, 0, 0, time.UTC), moved.Start.UTC())
	require.NotNil(t, moved.EmployeeID)
	assert.Equal(t, "emp-1", *moved.EmployeeID)

	rec = api.do(http.MethodGet, "/api/v1/staff?date=2025-03-11", "u-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var staff []StaffView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&staff))
	require.Len(t, staff, 1)
	require.Len(t, staff[0].Booked, 1)
	assert.Equal(t, time.Date(2025, 3, 11, 10, 40, 0, 0, time.UTC), staff[0].Booked[0].End.UTC())

	rec = api.do(http.MethodGet, "/api/v1/conflicts?date=2025-03-11", "u-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conflicts ConflictsView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conflicts))
	assert.Empty(t, conflicts.Conflicts)

	for _, status := range []string{"CONFIRMED", "EN_ROUTE", "IN_PROGRESS", "AWAITING_CONFIRMATION"} {
		rec = api.do(http.MethodPut, "/api/v1/appointments/job/status", "u-admin", map[string]string{"status": status})
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", status, rec.Body.String())
	}

	rec = api.do(http.MethodPost, "/api/v1/appointments/job/confirm", "u-ana", map[string]interface{}{"rating": 5, "comment": "great"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var completed AppointmentView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&completed))
	assert.Equal(t, "COMPLETED", completed.Status)

	rec = api.do(http.MethodPut, "/api/v1/appointments/job/tip", "u-ana", `{"amount": "12.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tipped AppointmentView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tipped))
	require.NotNil(t, tipped.TipPrice)
	assert.Equal(t, "12.50", *tipped.TipPrice)

	rec = api.do(http.MethodPost, "/api/v1/auto-confirm", "u-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sweep SweepView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sweep))
	assert.Equal(t, "tenant-1", sweep.TenantID)
	assert.Equal(t, float64(3), sweep.CutoffHours)
	assert.Zero(t, sweep.Processed)
}

type failingAppointments struct {
	store.AppointmentStore
}

func (failingAppointments) Get(ctx context.Context, id string) (*store.Appointment, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection reset by peer")
}

type failingStore struct {
	store.Store
}

func (f failingStore) Appointments() store.AppointmentStore {
	return failingAppointments{f.Store.Appointments()}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	s := seedStore(t)
	api := newTestAPI(t, failingStore{s}, s)

	rec := api.do(http.MethodGet, "/api/v1/appointments/any", "u-admin", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, codeInternal, body.Code)
	assert.NotContains(t, body.Message, "10.0.0.5")
}

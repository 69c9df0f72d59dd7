package live

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/dispatch"
	"cleanbuddy-dispatch/sys/http/middleware"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

var users = map[string]*store.User{
	"admin":   {ID: "u-admin", TenantID: "tenant-1", Role: store.UserRoleCleanerAdmin},
	"foreign": {ID: "u-foreign", TenantID: "tenant-2", Role: store.UserRoleCleanerAdmin},
	"cleaner": {ID: "u-cleaner", TenantID: "tenant-1", Role: store.UserRoleCleaner, EmployeeID: strPtr("emp-2")},
	"client":  {ID: "u-client", TenantID: "tenant-1", Role: store.UserRoleClient, CustomerID: strPtr("cust-1")},
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(log.New(io.Discard, "", 0), nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := users[r.URL.Query().Get("as")]; ok {
			r = r.WithContext(middleware.WithCurrentUser(r.Context(), user))
		}
		hub.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, as string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?as=" + as
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func event(id, tenantID, customerID string, employeeID *string) dispatch.Event {
	start := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	return dispatch.Event{
		Type:     dispatch.EventAppointmentMoved,
		TenantID: tenantID,
		At:       start.Add(-time.Hour),
		Appointment: &store.Appointment{
			ID:         id,
			TenantID:   tenantID,
			CustomerID: customerID,
			EmployeeID: employeeID,
			StartTime:  start,
			EndTime:    start.Add(time.Hour),
			Status:     store.AppointmentStatusConfirmed,
			Price:      decimal.NewFromInt(80),
		},
	}
}

func TestHub_DeliversByVisibility(t *testing.T) {
	hub, server := newTestServer(t)

	admin := dial(t, server, "admin")
	foreign := dial(t, server, "foreign")
	cleaner := dial(t, server, "cleaner")
	client := dial(t, server, "client")
	require.Eventually(t, func() bool { return hub.Connections() == 4 }, 2*time.Second, 10*time.Millisecond)

	// Visible to the tenant admin and the customer only
	hub.Publish(event("appt-1", "tenant-1", "cust-1", strPtr("emp-1")))
	// Visible to the tenant admin and the assigned cleaner only
	hub.Publish(event("appt-2", "tenant-1", "cust-9", strPtr("emp-2")))
	// Visible to the other tenant only
	hub.Publish(event("appt-3", "tenant-2", "cust-x", nil))

	first := readMessage(t, admin)
	assert.Equal(t, "appt-1", first.Appointment.ID)
	assert.Equal(t, dispatch.EventAppointmentMoved, first.Type)
	assert.Equal(t, "80.00", first.Appointment.Price)
	assert.Equal(t, 60, first.Appointment.DurationMinutes)
	assert.Equal(t, "appt-2", readMessage(t, admin).Appointment.ID)

	assert.Equal(t, "appt-2", readMessage(t, cleaner).Appointment.ID)
	assert.Equal(t, "appt-1", readMessage(t, client).Appointment.ID)
	assert.Equal(t, "appt-3", readMessage(t, foreign).Appointment.ID)
}

func TestHub_RejectsAnonymous(t *testing.T) {
	_, server := newTestServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_ForgetsClosedConnections(t *testing.T) {
	hub, server := newTestServer(t)

	conn := dial(t, server, "admin")
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Publishing afterwards must not panic on the closed buffer
	hub.Publish(event("appt-1", "tenant-1", "cust-1", nil))
}

func TestCanSee(t *testing.T) {
	ev := event("appt-1", "tenant-1", "cust-1", strPtr("emp-1"))

	tests := []struct {
		actor dispatch.Actor
		want  bool
	}{
		{actor: dispatch.Actor{TenantID: "tenant-9", Role: store.UserRoleGlobalAdmin}, want: true},
		{actor: dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleCleanerAdmin}, want: true},
		{actor: dispatch.Actor{TenantID: "tenant-2", Role: store.UserRoleCleanerAdmin}, want: false},
		{actor: dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleCleaner, EmployeeID: strPtr("emp-1")}, want: true},
		{actor: dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleCleaner}, want: false},
		{actor: dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleClient, CustomerID: strPtr("cust-2")}, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canSee(tt.actor, ev), "%+v", tt.actor)
	}
}

func TestCanSee_PreviousAssignee(t *testing.T) {
	ev := event("appt-1", "tenant-1", "cust-1", strPtr("emp-2"))
	ev.PreviousEmployeeID = strPtr("emp-1")

	assert.True(t, canSee(dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleCleaner, EmployeeID: strPtr("emp-1")}, ev))
	assert.True(t, canSee(dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleCleaner, EmployeeID: strPtr("emp-2")}, ev))
	assert.False(t, canSee(dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleCleaner, EmployeeID: strPtr("emp-3")}, ev))
	assert.False(t, canSee(dispatch.Actor{TenantID: "tenant-2", Role: store.UserRoleCleaner, EmployeeID: strPtr("emp-1")}, ev))

	// Back to the pool
	ev.Appointment.EmployeeID = nil
	assert.True(t, canSee(dispatch.Actor{TenantID: "tenant-1", Role: store.UserRoleCleaner, EmployeeID: strPtr("emp-1")}, ev))
}

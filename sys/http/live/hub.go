// Package live pushes committed dispatch changes to connected boards over websockets
package live

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/dispatch"
	"cleanbuddy-dispatch/sys/http/handlers"
	"cleanbuddy-dispatch/sys/http/middleware"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Queued messages per connection before the connection is dropped as too slow
	sendBuffer = 32
)

// Message is what a board receives for every published event
type Message struct {
	Type        string                   `json:"type"`
	TenantID    string                   `json:"tenantId"`
	At          time.Time                `json:"at"`
	Appointment handlers.AppointmentView `json:"appointment"`

	// Set when the job was taken away from this employee, so their board can drop it
	PreviousEmployeeID *string `json:"previousEmployeeId,omitempty"`
}

type client struct {
	actor dispatch.Actor
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans events out to the websocket connections allowed to see them. It implements
// dispatch.Publisher and serves the upgrade endpoint.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin, CORS being enforced
// by the middleware in front of it.
func NewHub(logger *log.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish never blocks the caller: a connection whose buffer is full is dropped
func (h *Hub) Publish(event dispatch.Event) {
	if event.Appointment == nil {
		return
	}
	payload, err := json.Marshal(Message{
		Type:               event.Type,
		TenantID:           event.TenantID,
		At:                 event.At,
		Appointment:        handlers.NewAppointmentView(event.Appointment),
		PreviousEmployeeID: event.PreviousEmployeeID,
	})
	if err != nil {
		h.logger.Printf("Error serializing live event: %s", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !canSee(c.actor, event) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Printf("Dropping slow live connection of user %s", c.actor.UserID)
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades an authenticated request to a websocket
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetCurrentActor(r.Context())
	if !ok {
		if err := middleware.EmitErrorResponse(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required"); err != nil {
			h.logger.Printf("Error serializing error response: %s", err)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Printf("Error upgrading live connection: %s", err)
		return
	}

	c := &client{actor: actor, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// Connections returns the number of open connections
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every board
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readPump only watches for the peer going away; boards never send anything
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("Error reading live connection of user %s: %s", c.actor.UserID, err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// canSee applies the same visibility as reading the appointment: admins of the tenant see
// the whole board, cleaners their assigned jobs and customers their own bookings. A cleaner
// also sees the move that took a job away from them.
func canSee(actor dispatch.Actor, event dispatch.Event) bool {
	appointment := event.Appointment
	switch {
	case actor.Role == store.UserRoleGlobalAdmin:
		return true
	case actor.TenantID != event.TenantID:
		return false
	case actor.IsAdmin():
		return true
	case actor.Role == store.UserRoleCleaner:
		if actor.EmployeeID == nil {
			return false
		}
		previous := event.PreviousEmployeeID
		return appointment.IsAssignedTo(*actor.EmployeeID) || (previous != nil && *previous == *actor.EmployeeID)
	case actor.Role == store.UserRoleClient:
		return actor.CustomerID != nil && *actor.CustomerID == appointment.CustomerID
	}
	return false
}

package stream

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"slateboard/domain"
)

const eventBuffer = 16

type connection struct {
	id     string
	userID string
	events chan domain.Event
}

// Hub is the in-process registry of live client connections and their board
// subscriptions. Delivery is at-most-once: a connection whose buffer is full
// has the event dropped rather than blocking the publisher.
type Hub struct {
	logger *log.Logger

	mu     sync.Mutex
	conns  map[string]*connection
	boards map[string]map[string]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[string]*connection),
		boards: make(map[string]map[string]struct{}),
	}
}

// Connect registers a new connection for the user and returns its
// server-assigned ID along with the channel events are delivered on.
func (h *Hub) Connect(userID string) (string, <-chan domain.Event) {
	conn := &connection{
		id:     uuid.NewString(),
		userID: userID,
		events: make(chan domain.Event, eventBuffer),
	}
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()
	return conn.id, conn.events
}

// Disconnect removes the connection. Board membership entries are left in
// place and pruned lazily by the next publish that touches them.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// Owner reports which user a connection belongs to.
func (h *Hub) Owner(connID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return "", false
	}
	return conn.userID, true
}

// Join subscribes a connection to a board's updates. Joining a board the
// connection is already in is a no-op.
func (h *Hub) Join(connID, boardID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return domain.ErrNotFound
	}
	set, ok := h.boards[boardID]
	if !ok {
		set = make(map[string]struct{})
		h.boards[boardID] = set
	}
	set[connID] = struct{}{}
	return nil
}

// Leave unsubscribes a connection from a board. Leaving a board the
// connection is not in is a no-op.
func (h *Hub) Leave(connID, boardID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return domain.ErrNotFound
	}
	set, ok := h.boards[boardID]
	if !ok {
		return nil
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(h.boards, boardID)
	}
	return nil
}

// PublishBoard delivers an event to every live connection subscribed to the
// board. Entries pointing at connections that have since disconnected are
// pruned here.
func (h *Hub) PublishBoard(boardID string, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.boards[boardID]
	if !ok {
		return
	}
	for connID := range set {
		conn, live := h.conns[connID]
		if !live {
			delete(set, connID)
			continue
		}
		h.send(conn, ev)
	}
	if len(set) == 0 {
		delete(h.boards, boardID)
	}
}

// PublishUser delivers an event to every live connection owned by the user,
// regardless of board subscriptions.
func (h *Hub) PublishUser(userID string, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		if conn.userID == userID {
			h.send(conn, ev)
		}
	}
}

func (h *Hub) send(conn *connection, ev domain.Event) {
	select {
	case conn.events <- ev:
	default:
		h.logger.WithFields(log.Fields{
			"connection": conn.id,
			"event":      ev.Name,
		}).Debug("dropping event for slow consumer")
	}
}

// Package realtime keeps project rooms of live connections and fans events
// out to them, optionally across instances through NATS.
package realtime

import (
	"log/slog"
	"sync"

	"reqforge/internal/metrics"
)

// Conn is one live client connection.
type Conn interface {
	ID() string
	Send(event string, payload any) error
}

// publisher forwards a broadcast to other instances.
type publisher interface {
	Publish(projectID, event string, payload any) error
}

// Hub tracks room membership. Join and Leave are idempotent; a connection
// may belong to several rooms.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]Conn     // projectID -> connID -> conn
	joined  map[string]map[string]struct{} // connID -> projectIDs
	relay   publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHub(m *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]Conn),
		joined:  make(map[string]map[string]struct{}),
		metrics: m,
		logger:  logger,
	}
}

// SetRelay enables cross-instance delivery. Call before serving traffic.
func (h *Hub) SetRelay(p publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = p
}

func (h *Hub) Join(projectID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[projectID]
	if !ok {
		room = make(map[string]Conn)
		h.rooms[projectID] = room
	}
	if _, member := room[c.ID()]; member {
		return
	}
	room[c.ID()] = c

	if h.joined[c.ID()] == nil {
		h.joined[c.ID()] = make(map[string]struct{})
	}
	h.joined[c.ID()][projectID] = struct{}{}
	h.gauge(1)

	h.logger.Debug("joined room", "project_id", projectID, "conn_id", c.ID(), "members", len(room))
}

func (h *Hub) Leave(projectID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(projectID, c.ID())
}

// Disconnect removes the connection from every room it joined.
func (h *Hub) Disconnect(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for projectID := range h.joined[c.ID()] {
		h.leaveLocked(projectID, c.ID())
	}
	delete(h.joined, c.ID())
}

func (h *Hub) leaveLocked(projectID, connID string) {
	room, ok := h.rooms[projectID]
	if !ok {
		return
	}
	if _, member := room[connID]; !member {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, projectID)
	}
	if set := h.joined[connID]; set != nil {
		delete(set, projectID)
		if len(set) == 0 {
			delete(h.joined, connID)
		}
	}
	h.gauge(-1)
}

// IsMember reports whether the connection is in the project's room.
func (h *Hub) IsMember(projectID string, c Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[projectID][c.ID()]
	return ok
}

// Members returns the number of local connections in the room.
func (h *Hub) Members(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

// Broadcast delivers to every local member of the room and, when a relay is
// configured, to the room's members on other instances.
func (h *Hub) Broadcast(projectID, event string, payload any) {
	h.Deliver(projectID, event, payload)

	if h.metrics != nil {
		h.metrics.Broadcasts.WithLabelValues(event).Inc()
	}

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(projectID, event, payload); err != nil {
		h.logger.Warn("failed to relay broadcast", "project_id", projectID, "event", event, "error", err)
	}
}

// Deliver sends to local members only.
func (h *Hub) Deliver(projectID, event string, payload any) {
	h.mu.RLock()
	members := make([]Conn, 0, len(h.rooms[projectID]))
	for _, c := range h.rooms[projectID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.Send(event, payload); err != nil {
			h.logger.Warn("failed to deliver room event",
				"project_id", projectID,
				"conn_id", c.ID(),
				"event", event,
				"error", err,
			)
		}
	}
}

func (h *Hub) gauge(delta float64) {
	if h.metrics != nil {
		h.metrics.RoomMembers.Add(delta)
	}
}

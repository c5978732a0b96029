// Package realtime carries the live control plane: connection tracking, room
// subscriptions, fan-out and the websocket gateway that dispatches inbound events.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// Stats is a point-in-time view of the hub
type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
}

// Hub tracks live connections, which rooms each is subscribed to, and which
// connections belong to which user.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]*Conn            // connID -> conn
	users     map[string]map[string]*Conn // userID -> connID -> conn
	rooms     map[string]map[string]*Conn // roomID -> connID -> conn
	connRooms map[string]map[string]struct{}
}

// NewHub constructs an empty Hub
func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]*Conn),
		users:     make(map[string]map[string]*Conn),
		rooms:     make(map[string]map[string]*Conn),
		connRooms: make(map[string]map[string]struct{}),
	}
}

// Frame encodes an event envelope
func Frame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}

// Attach registers c and starts its write pump
func (h *Hub) Attach(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.connRooms[c.ID] = make(map[string]struct{})
	userConns := h.users[c.Actor.ID]
	if userConns == nil {
		userConns = make(map[string]*Conn)
		h.users[c.Actor.ID] = userConns
	}
	userConns[c.ID] = c
	h.mu.Unlock()

	go c.writePump()
}

// Detach forgets c. The last connection of a user announces them offline to
// everyone sharing one of its rooms.
func (h *Hub) Detach(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.ID)
	last := false
	if userConns := h.users[c.Actor.ID]; userConns != nil {
		delete(userConns, c.ID)
		if len(userConns) == 0 {
			delete(h.users, c.Actor.ID)
			last = true
		}
	}
	var peers []*Conn
	if last {
		peers = h.peersLocked(c.Actor.ID, h.connRooms[c.ID])
	}
	for roomID := range h.connRooms[c.ID] {
		h.unsubscribeLocked(roomID, c.ID)
	}
	delete(h.connRooms, c.ID)
	h.mu.Unlock()

	h.deliver(peers, models.EventStatusChanged, models.StatusEvent{UserID: c.Actor.ID, Online: false})
}

// Subscribe adds c to the room's fan-out set. A user's first connection in
// the room announces them online to the others there.
func (h *Hub) Subscribe(roomID string, c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[string]*Conn)
		h.rooms[roomID] = room
	}
	present := false
	for _, other := range room {
		if other.Actor.ID == c.Actor.ID {
			present = true
			break
		}
	}
	room[c.ID] = c
	h.connRooms[c.ID][roomID] = struct{}{}
	var peers []*Conn
	if !present {
		peers = h.peersLocked(c.Actor.ID, map[string]struct{}{roomID: {}})
	}
	h.mu.Unlock()

	h.deliver(peers, models.EventStatusChanged, models.StatusEvent{UserID: c.Actor.ID, Online: true})
}

// peersLocked returns the connections of other users subscribed to any of rooms
func (h *Hub) peersLocked(userID string, rooms map[string]struct{}) []*Conn {
	seen := make(map[string]bool)
	var out []*Conn
	for roomID := range rooms {
		for id, other := range h.rooms[roomID] {
			if other.Actor.ID != userID && !seen[id] {
				seen[id] = true
				out = append(out, other)
			}
		}
	}
	return out
}

// Unsubscribe removes c from the room's fan-out set
func (h *Hub) Unsubscribe(roomID string, c *Conn) {
	h.mu.Lock()
	h.unsubscribeLocked(roomID, c.ID)
	h.mu.Unlock()
}

// Subscribed reports whether c currently receives the room's events
func (h *Hub) Subscribed(roomID string, c *Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][c.ID]
	return ok
}

func (h *Hub) unsubscribeLocked(roomID, connID string) {
	if room := h.rooms[roomID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if subs := h.connRooms[connID]; subs != nil {
		delete(subs, roomID)
	}
}

// Broadcast sends the event to every subscriber of roomID whose actor passes allow
func (h *Hub) Broadcast(roomID, event string, payload interface{}, allow func(models.ActorIdentity) bool) {
	frame, err := Frame(event, payload)
	if err != nil {
		zap.S().Errorw("failed to encode event", "event", event, "roomId", roomID, "error", err)
		return
	}
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		if allow == nil || allow(c.Actor) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			zap.S().Debugw("dropped event for closed connection", "event", event, "connId", c.ID)
		}
	}
}

// SendToUser sends the event to every connection of userID regardless of subscriptions
func (h *Hub) SendToUser(userID, event string, payload interface{}) {
	frame, err := Frame(event, payload)
	if err != nil {
		zap.S().Errorw("failed to encode event", "event", event, "userId", userID, "error", err)
		return
	}
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.Send(frame)
	}
}

// Evict unsubscribes every connection of userID from roomID
func (h *Hub) Evict(roomID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.users[userID] {
		h.unsubscribeLocked(roomID, connID)
	}
}

// Online reports whether userID has at least one live connection
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Connections returns the number of live connections
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Stats returns connection, user and room counts
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Connections: len(h.conns), Users: len(h.users), Rooms: len(h.rooms)}
}

// Close disconnects everyone and resets the hub
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.users = make(map[string]map[string]*Conn)
	h.rooms = make(map[string]map[string]*Conn)
	h.connRooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

func (h *Hub) deliver(targets []*Conn, event string, payload interface{}) {
	if len(targets) == 0 {
		return
	}
	frame, err := Frame(event, payload)
	if err != nil {
		zap.S().Errorw("failed to encode event", "event", event, "error", err)
		return
	}
	for _, c := range targets {
		_ = c.Send(frame)
	}
}

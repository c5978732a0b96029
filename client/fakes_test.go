package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/tokens"
)

var (
	testSecret = []byte("client-test-secret")
	alice      = models.ActorIdentity{ID: "alice", Kind: models.ActorUser, DisplayName: "Alice"}
	operator   = models.ActorIdentity{ID: "op-1", Kind: models.ActorAdmin, DisplayName: "Desk"}
	epoch      = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

type fakeConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *fakeConn) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// fakeServer speaks the chat wire protocol with scripted answers
type fakeServer struct {
	*httptest.Server
	t        *testing.T
	upgrader websocket.Upgrader

	mu         sync.Mutex
	tokens     map[string]models.ActorIdentity
	conns      []*fakeConn
	handshakes int
	rejectWS   int
	received   []models.Envelope
	// reply overrides the default answer to an event; returning handled=false falls back
	reply func(env models.Envelope) (result interface{}, handled bool, err error)
	// noAck lists events that are never acknowledged
	noAck       map[string]bool
	history     map[string][]models.ChatMessage
	readInfo    map[string]*models.ReadInfo
	pins        map[string][]models.PinnedMessage
	rooms       []models.ChatRoom
	beforePage  func(roomID, cursor string)
	historyHits map[string]int
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		t:           t,
		tokens:      make(map[string]models.ActorIdentity),
		noAck:       make(map[string]bool),
		history:     make(map[string][]models.ChatMessage),
		readInfo:    make(map[string]*models.ReadInfo),
		pins:        make(map[string][]models.PinnedMessage),
		historyHits: make(map[string]int),
	}
	r := mux.NewRouter()
	r.HandleFunc("/ws", f.serveWS)
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(f.auth)
	api.HandleFunc("/rooms", f.listRooms).Methods("GET")
	api.HandleFunc("/rooms/{roomId}", f.room).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/messages", f.messages).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/read-status", f.readStatus).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/pins", f.listPins).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/messages/bulk-delete", f.bulkDelete).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/participants/{userId}/{action}", f.moderate).Methods("POST")
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) token(actor models.ActorIdentity) string {
	raw, err := tokens.Generate(testSecret, actor, time.Hour)
	require.NoError(f.t, err)
	f.mu.Lock()
	f.tokens[raw] = actor
	f.mu.Unlock()
	return raw
}

func (f *fakeServer) actorFor(r *http.Request) (models.ActorIdentity, bool) {
	raw := r.Header.Get("Authorization")
	if len(raw) < 7 {
		return models.ActorIdentity{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.tokens[raw[7:]]
	return a, ok
}

func (f *fakeServer) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.actorFor(r); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeServer) serveWS(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.handshakes++
	reject := f.rejectWS
	f.mu.Unlock()
	if reject != 0 {
		w.WriteHeader(reject)
		return
	}
	if _, ok := f.actorFor(r); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &fakeConn{ws: ws}
	f.mu.Lock()
	f.conns = append(f.conns, c)
	f.mu.Unlock()

	for {
		var env models.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, env)
		skip := f.noAck[env.Event]
		f.mu.Unlock()
		if env.Ack == "" || skip {
			continue
		}
		result, err := f.answer(env)
		ack := models.AckFrame{Ack: env.Ack, OK: err == nil}
		if err != nil {
			ack.Error = &models.MessageError{Message: err.Error(), Error: err.Error(), Kind: string(chat.KindOf(err))}
		} else if result != nil {
			ack.Data, _ = json.Marshal(result)
		}
		data, _ := json.Marshal(ack)
		_ = c.write(models.Envelope{Event: models.EventAck, Data: data})
	}
}

func (f *fakeServer) answer(env models.Envelope) (interface{}, error) {
	f.mu.Lock()
	reply := f.reply
	f.mu.Unlock()
	if reply != nil {
		if result, handled, err := reply(env); handled {
			return result, err
		}
	}
	switch env.Event {
	case models.EventRoomJoin:
		var ref models.RoomRef
		_ = json.Unmarshal(env.Data, &ref)
		return models.JoinResult{Participant: &models.Participant{
			ID: "p-" + ref.RoomID, RoomID: ref.RoomID, UserID: alice.ID,
			OwnerType: models.OwnerTypeMember, Status: models.StatusActive,
		}}, nil
	case models.EventRoomLeave:
		var p models.LeavePayload
		_ = json.Unmarshal(env.Data, &p)
		return models.RoomRef{RoomID: p.RoomID}, nil
	case models.EventRoomRead:
		var ref models.RoomRef
		_ = json.Unmarshal(env.Data, &ref)
		return models.ReadAck{RoomID: ref.RoomID, LastReadAt: epoch.Add(time.Hour)}, nil
	case models.EventMessageSend:
		var p models.SendPayload
		_ = json.Unmarshal(env.Data, &p)
		return models.ChatMessage{
			ID: "sent-" + p.ClientMsgID, RoomID: p.RoomID, SenderID: alice.ID, Type: p.Type,
			Content: p.Content, ClientMsgID: p.ClientMsgID, CreatedAt: epoch.Add(2 * time.Hour),
		}, nil
	case models.EventMessagePin:
		var ref models.MessageRef
		_ = json.Unmarshal(env.Data, &ref)
		return models.PinnedMessage{ID: "pin-" + ref.MessageID, RoomID: ref.RoomID, MessageID: ref.MessageID, PinnedBy: alice.ID}, nil
	}
	return nil, nil
}

// push sends an event to every open connection
func (f *fakeServer) push(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	require.NoError(f.t, err)
	f.mu.Lock()
	conns := append([]*fakeConn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.write(models.Envelope{Event: event, Data: data})
	}
}

// drop closes every open connection from the server side
func (f *fakeServer) drop() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

func (f *fakeServer) setReject(status int) {
	f.mu.Lock()
	f.rejectWS = status
	f.mu.Unlock()
}

func (f *fakeServer) handshakeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handshakes
}

// events returns the names of the received events, optionally only those for roomID
func (f *fakeServer) events(roomID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, env := range f.received {
		if roomID != "" {
			var ref models.RoomRef
			_ = json.Unmarshal(env.Data, &ref)
			if ref.RoomID != roomID {
				continue
			}
		}
		out = append(out, env.Event)
	}
	return out
}

func (f *fakeServer) count(event, roomID string) int {
	n := 0
	for _, e := range f.events(roomID) {
		if e == event {
			n++
		}
	}
	return n
}

func (f *fakeServer) lastSend() models.SendPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.received) - 1; i >= 0; i-- {
		if f.received[i].Event == models.EventMessageSend {
			var p models.SendPayload
			_ = json.Unmarshal(f.received[i].Data, &p)
			return p
		}
	}
	return models.SendPayload{}
}

func (f *fakeServer) hits(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyHits[roomID]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeServer) listRooms(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	f.mu.Lock()
	rooms := f.rooms
	f.mu.Unlock()
	start := (page - 1) * limit
	end := start + limit
	if start > len(rooms) {
		start = len(rooms)
	}
	if end > len(rooms) {
		end = len(rooms)
	}
	writeJSON(w, http.StatusOK, models.RoomList{Rooms: rooms[start:end], Total: int64(len(rooms)), Page: page, Limit: limit})
}

func (f *fakeServer) room(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomId"]
	if id == "missing" {
		writeJSON(w, http.StatusNotFound, models.ErrorMessageResponse{Response: models.MessageError{
			Message: "room not found", Error: "getRoom: room not found", Kind: string(chat.KindNotFound),
		}})
		return
	}
	writeJSON(w, http.StatusOK, models.ChatRoom{ID: id, Name: "Room " + id, Type: models.RoomOneToN, IsActive: true, JoinType: models.JoinFree})
}

// messages pages newest-first; the cursor is the number of messages already served
func (f *fakeServer) messages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomId"]
	cursor := r.URL.Query().Get("cursor")
	f.mu.Lock()
	hook := f.beforePage
	f.historyHits[id]++
	f.mu.Unlock()
	if hook != nil {
		hook(id, cursor)
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(cursor)
	f.mu.Lock()
	all := f.history[id]
	f.mu.Unlock()

	var page models.HistoryPage
	for i := len(all) - 1 - offset; i >= 0 && len(page.Messages) < limit; i-- {
		page.Messages = append(page.Messages, all[i])
	}
	if next := offset + len(page.Messages); next < len(all) {
		page.HasMore = true
		page.NextCursor = strconv.Itoa(next)
	}
	writeJSON(w, http.StatusOK, page)
}

func (f *fakeServer) readStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomId"]
	f.mu.Lock()
	info := f.readInfo[id]
	f.mu.Unlock()
	if info == nil {
		info = &models.ReadInfo{TotalActive: 1}
	}
	writeJSON(w, http.StatusOK, info)
}

func (f *fakeServer) listPins(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	pins := f.pins[mux.Vars(r)["roomId"]]
	f.mu.Unlock()
	if pins == nil {
		pins = []models.PinnedMessage{}
	}
	writeJSON(w, http.StatusOK, pins)
}

func (f *fakeServer) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDeleteRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	writeJSON(w, http.StatusOK, models.BulkDeleteResponse{MessageIDs: req.MessageIDs, Deleted: int64(len(req.MessageIDs))})
}

func (f *fakeServer) moderate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if vars["userId"] == "owner" {
		writeJSON(w, http.StatusForbidden, models.ErrorMessageResponse{Response: models.MessageError{
			Message: "cannot moderate the owner", Error: "kick: cannot moderate the owner", Kind: string(chat.KindForbidden),
		}})
		return
	}
	var req models.ModerationRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	p := models.Participant{RoomID: vars["roomId"], UserID: vars["userId"], Status: models.StatusActive, OwnerType: models.OwnerTypeMember}
	switch vars["action"] {
	case "kick":
		p.IsKicked, p.Status, p.KickReason = true, models.StatusKicked, req.Reason
	case "shadow-ban":
		p.IsShadowBanned, p.ShadowBanReason = true, req.Reason
	}
	writeJSON(w, http.StatusOK, p)
}

// seed stores n messages in roomID, one a minute, with ids m001..
func (f *fakeServer) seed(roomID string, n int) []models.ChatMessage {
	msgs := make([]models.ChatMessage, n)
	for i := range msgs {
		text := fmt.Sprintf("message %d", i+1)
		msgs[i] = models.ChatMessage{
			ID: fmt.Sprintf("m%03d", i+1), RoomID: roomID, SenderID: "bob", Type: models.MessageText,
			Content: &text, CreatedAt: epoch.Add(time.Duration(i) * time.Minute),
		}
	}
	f.mu.Lock()
	f.history[roomID] = msgs
	f.mu.Unlock()
	return msgs
}

func (f *fakeServer) options(actor models.ActorIdentity) Options {
	return Options{
		BaseURL:    f.URL,
		Credential: f.token(actor),
		AckTimeout: time.Second,
		Backoff:    Backoff{Initial: 10 * time.Millisecond, Max: 40 * time.Millisecond, MaxAttempts: 3},
		Location:   time.UTC,
	}
}

func connect(t *testing.T, f *fakeServer, actor models.ActorIdentity) *ChatSession {
	t.Helper()
	s, err := Connect(testContext(t), f.options(actor))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

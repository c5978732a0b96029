package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/realtime"
)

// fakeService accepts every join and echoes sends to the room through the hub
type fakeService struct {
	hub    *realtime.Hub
	mu     sync.Mutex
	banned map[string]bool
	left   []string
}

func (f *fakeService) Join(_ context.Context, actor models.ActorIdentity, roomID string) (models.JoinResult, error) {
	if roomID == "missing" {
		return models.JoinResult{}, chat.E(chat.KindNotFound, "join", "room not found")
	}
	return models.JoinResult{Participant: &models.Participant{RoomID: roomID, UserID: actor.ID, Status: models.StatusActive}}, nil
}

func (f *fakeService) Leave(_ context.Context, actor models.ActorIdentity, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, roomID+"/"+actor.ID)
	return nil
}

func (f *fakeService) leftRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.left...)
}

func (f *fakeService) MarkRead(_ context.Context, _ models.ActorIdentity, roomID string) (models.ReadAck, error) {
	return models.ReadAck{RoomID: roomID, LastReadAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeService) Send(_ context.Context, actor models.ActorIdentity, roomID string, draft models.MessageDraft) (models.ChatMessage, error) {
	msg := models.ChatMessage{ID: "m-1", RoomID: roomID, SenderID: actor.ID, Type: models.MessageText, Content: draft.Content, CreatedAt: time.Now().UTC()}
	f.mu.Lock()
	banned := f.banned[actor.ID]
	f.mu.Unlock()
	var allow func(models.ActorIdentity) bool
	if banned {
		allow = func(a models.ActorIdentity) bool { return a.ID == actor.ID || a.IsAdmin() }
	}
	f.hub.Broadcast(roomID, models.EventMessageNew, models.MessageNewEvent{RoomID: roomID, Message: msg}, allow)
	return msg, nil
}

func (f *fakeService) DeleteMessage(context.Context, models.ActorIdentity, string, string) error {
	return chat.E(chat.KindForbidden, "deleteMessage", "cannot delete another participant's message")
}

func (f *fakeService) Pin(_ context.Context, actor models.ActorIdentity, roomID, messageID string) (*models.PinnedMessage, error) {
	return &models.PinnedMessage{ID: "p-1", RoomID: roomID, MessageID: messageID, PinnedBy: actor.ID}, nil
}

func (f *fakeService) Unpin(context.Context, models.ActorIdentity, string, string) error {
	return nil
}

func (f *fakeService) Typing(_ context.Context, actor models.ActorIdentity, roomID string, typing bool) error {
	event := models.EventUserStopped
	if typing {
		event = models.EventUserTyping
	}
	f.hub.Broadcast(roomID, event, models.TypingEvent{RoomID: roomID, UserID: actor.ID}, func(a models.ActorIdentity) bool { return a.ID != actor.ID })
	return nil
}

type testServer struct {
	*httptest.Server
	hub *realtime.Hub
	svc *fakeService
}

func newTestServer(t *testing.T) *testServer {
	hub := realtime.NewHub()
	svc := &fakeService{hub: hub, banned: map[string]bool{}}
	gw := realtime.NewGateway(hub, svc, time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := models.ActorUser
		if r.URL.Query().Get("admin") == "1" {
			kind = models.ActorAdmin
		}
		actor := models.ActorIdentity{ID: r.URL.Query().Get("user"), Kind: kind}
		_ = gw.Serve(w, r, actor)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testServer{Server: srv, hub: hub, svc: svc}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	n := s.hub.Connections()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	// the handshake completes before the hub attaches the connection
	require.Eventually(t, func() bool { return s.hub.Connections() == n+1 }, time.Second, 5*time.Millisecond)
	return ws
}

func emit(t *testing.T, ws *websocket.Conn, event, ack string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(models.Envelope{Event: event, Data: data, Ack: ack}))
}

// next reads frames until one named event arrives
func next(t *testing.T, ws *websocket.Conn, event string) models.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env models.Envelope
		require.NoError(t, ws.ReadJSON(&env))
		if env.Event == event {
			return env
		}
	}
}

func ackOf(t *testing.T, ws *websocket.Conn, id string) models.AckFrame {
	t.Helper()
	for {
		env := next(t, ws, models.EventAck)
		var ack models.AckFrame
		require.NoError(t, json.Unmarshal(env.Data, &ack))
		if ack.Ack == id {
			return ack
		}
	}
}

// silent asserts that no frame named event arrives within d. The connection
// cannot be read again afterwards.
func silent(t *testing.T, ws *websocket.Conn, event string, d time.Duration) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(d))
	for {
		var env models.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		assert.NotEqual(t, event, env.Event, "unexpected %s frame", event)
	}
}

func TestGateway_JoinSendFanOut(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "user=alice")
	bob := srv.dial(t, "user=bob")

	emit(t, alice, models.EventRoomJoin, "a1", models.RoomRef{RoomID: "r1"})
	assert.True(t, ackOf(t, alice, "a1").OK)
	emit(t, bob, models.EventRoomJoin, "b1", models.RoomRef{RoomID: "r1"})
	assert.True(t, ackOf(t, bob, "b1").OK)

	text := "hello"
	emit(t, alice, models.EventMessageSend, "a2", models.SendPayload{RoomID: "r1", MessageDraft: models.MessageDraft{Content: &text}})
	ack := ackOf(t, alice, "a2")
	require.True(t, ack.OK)
	var sent models.ChatMessage
	require.NoError(t, json.Unmarshal(ack.Data, &sent))
	assert.Equal(t, "m-1", sent.ID)

	env := next(t, bob, models.EventMessageNew)
	var ev models.MessageNewEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, "hello", *ev.Message.Content)

	stats := srv.hub.Stats()
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 1, stats.Rooms)
}

func TestGateway_ShadowBannedSenderOnlyReachesSelfAndOperators(t *testing.T) {
	srv := newTestServer(t)
	srv.svc.banned["alice"] = true
	alice := srv.dial(t, "user=alice")
	bob := srv.dial(t, "user=bob")
	op := srv.dial(t, "user=op&admin=1")

	for i, ws := range []*websocket.Conn{alice, bob, op} {
		id := string(rune('a' + i))
		emit(t, ws, models.EventRoomJoin, id, models.RoomRef{RoomID: "r1"})
		require.True(t, ackOf(t, ws, id).OK)
	}

	text := "buy now"
	emit(t, alice, models.EventMessageSend, "s1", models.SendPayload{RoomID: "r1", MessageDraft: models.MessageDraft{Content: &text}})
	next(t, alice, models.EventMessageNew)
	next(t, op, models.EventMessageNew)
	silent(t, bob, models.EventMessageNew, 300*time.Millisecond)
}

func TestGateway_ReadRequiresJoin(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "user=alice")

	emit(t, alice, models.EventRoomRead, "r1", models.RoomRef{RoomID: "r1"})
	ack := ackOf(t, alice, "r1")
	assert.False(t, ack.OK)
	require.NotNil(t, ack.Error)
	assert.Equal(t, string(chat.KindInvalidState), ack.Error.Kind)

	emit(t, alice, models.EventRoomJoin, "j1", models.RoomRef{RoomID: "r1"})
	require.True(t, ackOf(t, alice, "j1").OK)
	emit(t, alice, models.EventRoomRead, "r2", models.RoomRef{RoomID: "r1"})
	assert.True(t, ackOf(t, alice, "r2").OK)
}

func TestGateway_ErrorsWithoutAckBecomeErrorEvents(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "user=alice")

	emit(t, alice, models.EventMessageDelete, "", models.MessageRef{RoomID: "r1", MessageID: "m"})
	env := next(t, alice, models.EventError)
	var ev models.ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, models.EventMessageDelete, ev.Event)
	assert.Equal(t, string(chat.KindForbidden), ev.Kind)

	emit(t, alice, "room:explode", "x1", models.RoomRef{RoomID: "r1"})
	ack := ackOf(t, alice, "x1")
	assert.Equal(t, string(chat.KindInvalidArgument), ack.Error.Kind)

	emit(t, alice, models.EventRoomJoin, "x2", models.RoomRef{RoomID: "missing"})
	ack = ackOf(t, alice, "x2")
	assert.Equal(t, string(chat.KindNotFound), ack.Error.Kind)
}

func TestGateway_LeaveAndEvict(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "user=alice")
	bob := srv.dial(t, "user=bob")
	for _, ws := range []*websocket.Conn{alice, bob} {
		emit(t, ws, models.EventRoomJoin, "j", models.RoomRef{RoomID: "r1"})
		require.True(t, ackOf(t, ws, "j").OK)
	}

	// unsubscribing keeps the membership
	emit(t, alice, models.EventRoomLeave, "l1", models.LeavePayload{RoomID: "r1"})
	require.True(t, ackOf(t, alice, "l1").OK)
	assert.Empty(t, srv.svc.leftRooms())

	emit(t, alice, models.EventRoomJoin, "j2", models.RoomRef{RoomID: "r1"})
	require.True(t, ackOf(t, alice, "j2").OK)
	emit(t, alice, models.EventRoomLeave, "l2", models.LeavePayload{RoomID: "r1", Permanent: true})
	require.True(t, ackOf(t, alice, "l2").OK)
	assert.Equal(t, []string{"r1/alice"}, srv.svc.leftRooms())

	srv.hub.Evict("r1", "bob")
	emit(t, bob, models.EventTypingStart, "t1", models.RoomRef{RoomID: "r1"})
	assert.Equal(t, string(chat.KindInvalidState), ackOf(t, bob, "t1").Error.Kind)
}

func TestGateway_TypingRelay(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "user=alice")
	bob := srv.dial(t, "user=bob")
	for _, ws := range []*websocket.Conn{alice, bob} {
		emit(t, ws, models.EventRoomJoin, "j", models.RoomRef{RoomID: "r1"})
		require.True(t, ackOf(t, ws, "j").OK)
	}

	emit(t, alice, models.EventTypingStart, "", models.RoomRef{RoomID: "r1"})
	env := next(t, bob, models.EventUserTyping)
	var ev models.TypingEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, "alice", ev.UserID)
	silent(t, alice, models.EventUserTyping, 200*time.Millisecond)
}

func TestHub_Presence(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "user=alice")
	carol := srv.dial(t, "user=carol")
	emit(t, alice, models.EventRoomJoin, "j", models.RoomRef{RoomID: "r1"})
	require.True(t, ackOf(t, alice, "j").OK)

	bob := srv.dial(t, "user=bob")
	emit(t, bob, models.EventRoomJoin, "j", models.RoomRef{RoomID: "r1"})
	require.True(t, ackOf(t, bob, "j").OK)

	env := next(t, alice, models.EventStatusChanged)
	var ev models.StatusEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, models.StatusEvent{UserID: "bob", Online: true}, ev)
	assert.True(t, srv.hub.Online("bob"))

	// a second device neither announces the user again nor takes them offline on its own
	second := srv.dial(t, "user=bob")
	emit(t, second, models.EventRoomJoin, "j2", models.RoomRef{RoomID: "r1"})
	require.True(t, ackOf(t, second, "j2").OK)
	require.NoError(t, bob.Close())
	assert.Eventually(t, func() bool { return srv.hub.Connections() == 3 }, time.Second, 10*time.Millisecond)
	assert.True(t, srv.hub.Online("bob"))
	require.NoError(t, second.Close())

	env = next(t, alice, models.EventStatusChanged)
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, models.StatusEvent{UserID: "bob", Online: false}, ev)
	assert.False(t, srv.hub.Online("bob"))

	// carol shares no room with bob
	silent(t, carol, models.EventStatusChanged, 200*time.Millisecond)
}

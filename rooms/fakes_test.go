package rooms

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/databases"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// memStore is an in-memory Store with the same semantics as databases.ChatStore
type memStore struct {
	mu           sync.Mutex
	rooms        map[string]models.ChatRoom
	participants []models.Participant
	messages     []models.ChatMessage
	pins         []models.PinnedMessage
}

func newMemStore() *memStore {
	return &memStore{rooms: map[string]models.ChatRoom{}}
}

func (m *memStore) Room(_ context.Context, id string) (*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) ListRooms(_ context.Context, f models.RoomFilter) ([]models.ChatRoom, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatRoom
	for _, r := range m.rooms {
		if f.IsActive != nil && r.IsActive != *f.IsActive {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memStore) InsertRoom(_ context.Context, room models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	return nil
}

func (m *memStore) SetNotice(_ context.Context, roomID string, notice *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[roomID]
	r.Notice = notice
	r.UpdatedAt = at
	m.rooms[roomID] = r
	return nil
}

func (m *memStore) SetActive(_ context.Context, roomID string, active bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[roomID]
	r.IsActive = active
	r.UpdatedAt = at
	m.rooms[roomID] = r
	return nil
}

func (m *memStore) Participant(_ context.Context, roomID, userID string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Participant
	for i := range m.participants {
		p := m.participants[i]
		if p.RoomID == roomID && p.UserID == userID && (latest == nil || !p.JoinedAt.Before(latest.JoinedAt)) {
			latest = &p
		}
	}
	return latest, nil
}

func (m *memStore) Owner(_ context.Context, roomID string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.RoomID == roomID && p.OwnerType == models.OwnerTypeOwner && p.Status != models.StatusLeft {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertParticipant(_ context.Context, p models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = append(m.participants, p)
	return nil
}

func (m *memStore) UpdateParticipant(_ context.Context, p models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.participants {
		if m.participants[i].ID == p.ID {
			p.LastReadAt = m.participants[i].LastReadAt
			m.participants[i] = p
			return nil
		}
	}
	return databases.ErrNotMatched
}

func (m *memStore) AdvanceLastRead(_ context.Context, participantID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.participants {
		if m.participants[i].ID == participantID {
			if cur := m.participants[i].LastReadAt; cur == nil || at.After(*cur) {
				m.participants[i].LastReadAt = &at
			}
			return nil
		}
	}
	return databases.ErrNotMatched
}

func (m *memStore) ListParticipants(_ context.Context, roomID string, f models.ParticipantFilter) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Participant
	for _, p := range m.participants {
		if p.RoomID != roomID || (p.Status == models.StatusLeft && !f.IncludeLeft) {
			continue
		}
		if f.IsShadowBanned != nil && p.IsShadowBanned != *f.IsShadowBanned {
			continue
		}
		if f.IsKicked != nil && p.IsKicked != *f.IsKicked {
			continue
		}
		if f.OwnerType != "" && p.OwnerType != f.OwnerType {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) ActiveParticipants(_ context.Context, roomID string) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Participant
	for _, p := range m.participants {
		if p.RoomID == roomID && p.IsActive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) InsertMessage(_ context.Context, msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, prev := range m.messages {
		if msg.ClientMsgID != "" && prev.RoomID == msg.RoomID && prev.SenderID == msg.SenderID && prev.ClientMsgID == msg.ClientMsgID {
			return databases.ErrDuplicate
		}
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) Message(_ context.Context, roomID, id string) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.RoomID == roomID && msg.ID == id {
			msg := msg
			return &msg, nil
		}
	}
	return nil, nil
}

func (m *memStore) MessageByClientID(_ context.Context, roomID, senderID, clientMsgID string) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.RoomID == roomID && msg.SenderID == senderID && msg.ClientMsgID == clientMsgID {
			msg := msg
			return &msg, nil
		}
	}
	return nil, nil
}

func (m *memStore) History(_ context.Context, roomID string, q models.HistoryQuery, hide []string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cursor *models.ChatMessage
	if q.Cursor != "" {
		c, err := databases.DecodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		cursor = &models.ChatMessage{ID: c.ID, CreatedAt: c.CreatedAt}
	}
	hidden := map[string]bool{}
	for _, id := range hide {
		hidden[id] = true
	}
	var out []models.ChatMessage
	for _, msg := range m.messages {
		if msg.RoomID != roomID || hidden[msg.SenderID] {
			continue
		}
		if cursor != nil && !chat.Less(msg, *cursor) {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return chat.Less(out[j], out[i]) })
	if len(out) > q.Limit+1 {
		out = out[:q.Limit+1]
	}
	return out, nil
}

func (m *memStore) MessagesByIDs(_ context.Context, roomID string, ids []string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.ChatMessage
	for _, msg := range m.messages {
		if msg.RoomID == roomID && want[msg.ID] {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) MarkDeleted(_ context.Context, roomID string, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for i := range m.messages {
		if m.messages[i].RoomID == roomID && want[m.messages[i].ID] && !m.messages[i].IsDeleted {
			m.messages[i].IsDeleted = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) InsertPin(_ context.Context, p models.PinnedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins = append(m.pins, p)
	return nil
}

func (m *memStore) Pin(_ context.Context, roomID, pinID string) (*models.PinnedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pins {
		if p.RoomID == roomID && p.ID == pinID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) PinByMessage(_ context.Context, roomID, messageID string) (*models.PinnedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pins {
		if p.RoomID == roomID && p.MessageID == messageID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) DeletePin(_ context.Context, roomID, pinID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pins {
		if p.RoomID == roomID && p.ID == pinID {
			m.pins = append(m.pins[:i], m.pins[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Pins(ctx context.Context, roomID string) ([]models.PinnedMessage, error) {
	m.mu.Lock()
	var out []models.PinnedMessage
	for _, p := range m.pins {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	m.mu.Unlock()
	for i := range out {
		msg, _ := m.Message(ctx, roomID, out[i].MessageID)
		out[i].Message = msg
	}
	return out, nil
}

type sent struct {
	Room    string
	User    string
	Event   string
	Payload interface{}
	Allow   func(models.ActorIdentity) bool
}

// recorder is a Broadcaster that remembers every call
type recorder struct {
	mu      sync.Mutex
	events  []sent
	evicted []string
}

func (r *recorder) Broadcast(roomID, event string, payload interface{}, allow func(models.ActorIdentity) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{Room: roomID, Event: event, Payload: payload, Allow: allow})
}

func (r *recorder) SendToUser(userID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{User: userID, Event: event, Payload: payload})
}

func (r *recorder) Evict(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, roomID+"/"+userID)
}

func (r *recorder) named(event string) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.evicted = nil
}

type auditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *auditLog) Record(_ context.Context, e AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *auditLog) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// fixture is a service over a memStore with a fake clock that ticks one second per call
type fixture struct {
	svc   *Service
	store *memStore
	hub   *recorder
	audit *auditLog
	ids   int
	now   time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store: newMemStore(),
		hub:   &recorder{},
		audit: &auditLog{},
		now:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, f.hub, f.audit)
	f.svc.now = func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}
	f.svc.newID = func() string {
		f.ids++
		return fmt.Sprintf("id-%03d", f.ids)
	}
	return f
}

var (
	admin = models.ActorIdentity{ID: "op-1", Kind: models.ActorAdmin, DisplayName: "Operator"}
	owner = models.ActorIdentity{ID: "u-owner", Kind: models.ActorUser, DisplayName: "Owner"}
	alice = models.ActorIdentity{ID: "u-alice", Kind: models.ActorUser, DisplayName: "Alice"}
	bob   = models.ActorIdentity{ID: "u-bob", Kind: models.ActorUser, DisplayName: "Bob"}
)

func strPtr(s string) *string { return &s }

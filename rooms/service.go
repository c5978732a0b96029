// Package rooms is the server-side source of truth for chat rooms. It owns
// membership transitions, authorization, message persistence and fan-out,
// and the moderation actions. Clients only mirror these rules for display.
package rooms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

const (
	// DefaultHistoryLimit is the page size used when a client does not ask for one
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps the page size a client may ask for
	MaxHistoryLimit = 100
	// MaxContentLength caps the length of a text message
	MaxContentLength = 4000
	// MaxBulkDelete caps how many messages one bulk delete may name
	MaxBulkDelete = 100
)

// Store is the persistence the service needs. Lookups that find nothing
// return a nil model and a nil error.
type Store interface {
	Room(ctx context.Context, id string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, f models.RoomFilter) ([]models.ChatRoom, int64, error)
	InsertRoom(ctx context.Context, room models.ChatRoom) error
	SetNotice(ctx context.Context, roomID string, notice *string, at time.Time) error
	SetActive(ctx context.Context, roomID string, active bool, at time.Time) error

	Participant(ctx context.Context, roomID, userID string) (*models.Participant, error)
	Owner(ctx context.Context, roomID string) (*models.Participant, error)
	InsertParticipant(ctx context.Context, p models.Participant) error
	UpdateParticipant(ctx context.Context, p models.Participant) error
	AdvanceLastRead(ctx context.Context, participantID string, at time.Time) error
	ListParticipants(ctx context.Context, roomID string, f models.ParticipantFilter) ([]models.Participant, error)
	ActiveParticipants(ctx context.Context, roomID string) ([]models.Participant, error)

	InsertMessage(ctx context.Context, m models.ChatMessage) error
	Message(ctx context.Context, roomID, id string) (*models.ChatMessage, error)
	MessageByClientID(ctx context.Context, roomID, senderID, clientMsgID string) (*models.ChatMessage, error)
	History(ctx context.Context, roomID string, q models.HistoryQuery, hideSenders []string) ([]models.ChatMessage, error)
	MessagesByIDs(ctx context.Context, roomID string, ids []string) ([]models.ChatMessage, error)
	MarkDeleted(ctx context.Context, roomID string, ids []string) (int64, error)

	InsertPin(ctx context.Context, p models.PinnedMessage) error
	Pin(ctx context.Context, roomID, pinID string) (*models.PinnedMessage, error)
	PinByMessage(ctx context.Context, roomID, messageID string) (*models.PinnedMessage, error)
	DeletePin(ctx context.Context, roomID, pinID string) (bool, error)
	Pins(ctx context.Context, roomID string) ([]models.PinnedMessage, error)
}

// Broadcaster delivers events to live connections
type Broadcaster interface {
	// Broadcast sends to every connection subscribed to roomID whose actor passes allow.
	// A nil allow admits everyone.
	Broadcast(roomID, event string, payload interface{}, allow func(models.ActorIdentity) bool)
	// SendToUser sends to every connection of userID
	SendToUser(userID, event string, payload interface{})
	// Evict drops userID's connections from roomID
	Evict(roomID, userID string)
}

// Service implements the room operations
type Service struct {
	store Store
	hub   Broadcaster
	audit Auditor
	now   func() time.Time
	newID func() string
}

// NewService builds a Service. hub and audit may be nil.
func NewService(store Store, hub Broadcaster, audit Auditor) *Service {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if audit == nil {
		audit = nopAuditor{}
	}
	return &Service{
		store: store,
		hub:   hub,
		audit: audit,
		now:   time.Now,
		newID: func() string { return primitive.NewObjectID().Hex() },
	}
}

// clock returns the current time at the precision the database keeps
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, string, interface{}, func(models.ActorIdentity) bool) {}
func (nopBroadcaster) SendToUser(string, string, interface{})                                 {}
func (nopBroadcaster) Evict(string, string)                                                   {}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// access loads the room and the actor's membership in it
func (s *Service) access(ctx context.Context, op string, actor models.ActorIdentity, roomID string) (*models.ChatRoom, *models.Participant, chat.Role, error) {
	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return nil, nil, chat.RoleNone, storeErr(op, err)
	}
	if room == nil || (!room.IsActive && !actor.IsAdmin()) {
		return nil, nil, chat.RoleNone, chat.E(chat.KindNotFound, op, "room not found")
	}
	if actor.IsAdmin() {
		return room, nil, chat.RoleOperator, nil
	}
	p, err := s.store.Participant(ctx, roomID, actor.ID)
	if err != nil {
		return nil, nil, chat.RoleNone, storeErr(op, err)
	}
	return room, p, chat.RoleOf(actor, p), nil
}

// moderator loads the room and fails unless the actor may moderate it
func (s *Service) moderator(ctx context.Context, op string, actor models.ActorIdentity, roomID string) (*models.ChatRoom, chat.Role, error) {
	room, _, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return nil, role, err
	}
	if !chat.CanModerate(role) {
		return nil, role, chat.E(chat.KindForbidden, op, "moderator role required")
	}
	return room, role, nil
}

// ListRooms returns one page of rooms. Users only ever see active rooms.
func (s *Service) ListRooms(ctx context.Context, actor models.ActorIdentity, f models.RoomFilter) (models.RoomList, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if !actor.IsAdmin() {
		active := true
		f.IsActive = &active
	}
	rooms, total, err := s.store.ListRooms(ctx, f)
	if err != nil {
		return models.RoomList{}, storeErr("listRooms", err)
	}
	if rooms == nil {
		rooms = []models.ChatRoom{}
	}
	return models.RoomList{Rooms: rooms, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// GetRoom returns one room
func (s *Service) GetRoom(ctx context.Context, actor models.ActorIdentity, roomID string) (*models.ChatRoom, error) {
	room, _, _, err := s.access(ctx, "getRoom", actor, roomID)
	return room, err
}

// CreateRoom creates a room and its single OWNER. Only operators create rooms.
func (s *Service) CreateRoom(ctx context.Context, actor models.ActorIdentity, req models.CreateRoomRequest) (*models.ChatRoom, error) {
	const op = "createRoom"
	if !actor.IsAdmin() {
		return nil, chat.E(chat.KindForbidden, op, "operator role required")
	}
	if req.JoinType == "" {
		req.JoinType = models.JoinFree
	}
	now := s.clock()
	room := models.ChatRoom{
		ID:              s.newID(),
		Type:            req.Type,
		Category:        req.Category,
		Name:            strings.TrimSpace(req.Name),
		IsActive:        true,
		MaxParticipants: req.MaxParticipants,
		Notice:          req.Notice,
		JoinType:        req.JoinType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if msg := room.Validate(); msg != "" {
		return nil, chat.E(chat.KindInvalidArgument, op, msg)
	}
	if req.OwnerID == "" {
		return nil, chat.E(chat.KindInvalidArgument, op, "ownerId is required")
	}
	if err := s.store.InsertRoom(ctx, room); err != nil {
		return nil, storeErr(op, err)
	}
	owner := models.Participant{
		ID:          s.newID(),
		RoomID:      room.ID,
		UserID:      req.OwnerID,
		DisplayName: req.OwnerName,
		OwnerType:   models.OwnerTypeOwner,
		Status:      models.StatusActive,
		JoinedAt:    now,
	}
	if err := s.store.InsertParticipant(ctx, owner); err != nil {
		return nil, storeErr(op, err)
	}
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: room.ID, ActorID: actor.ID, TargetUserID: req.OwnerID, At: now})
	zap.S().Infow("room created", "roomId", room.ID, "type", room.Type, "owner", req.OwnerID)
	return &room, nil
}

// UpdateNotice edits the room notice. Moderators only.
func (s *Service) UpdateNotice(ctx context.Context, actor models.ActorIdentity, roomID string, notice *string) (*models.ChatRoom, error) {
	const op = "updateNotice"
	room, _, err := s.moderator(ctx, op, actor, roomID)
	if err != nil {
		return nil, err
	}
	if notice != nil && strings.TrimSpace(*notice) == "" {
		notice = nil
	}
	now := s.clock()
	if err := s.store.SetNotice(ctx, roomID, notice, now); err != nil {
		return nil, storeErr(op, err)
	}
	room.Notice = notice
	room.UpdatedAt = now
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, At: now})
	return room, nil
}

// Deactivate soft-deletes a room. Operators only.
func (s *Service) Deactivate(ctx context.Context, actor models.ActorIdentity, roomID string) error {
	const op = "deactivate"
	if !actor.IsAdmin() {
		return chat.E(chat.KindForbidden, op, "operator role required")
	}
	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return storeErr(op, err)
	}
	if room == nil {
		return chat.E(chat.KindNotFound, op, "room not found")
	}
	now := s.clock()
	if err := s.store.SetActive(ctx, roomID, false, now); err != nil {
		return storeErr(op, err)
	}
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, At: now})
	return nil
}

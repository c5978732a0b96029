package databases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// ChatStore answers the chat service's queries on top of the four chat collections.
// Lookups that find nothing return a nil model and a nil error.
type ChatStore struct {
	RoomDB        RoomDatabase
	ParticipantDB ParticipantDatabase
	MessageDB     MessageDatabase
	PinDB         PinDatabase
}

// NewChatStore wires a ChatStore to the given database
func NewChatStore(db DatabaseHelper) *ChatStore {
	return &ChatStore{
		RoomDB:        NewRoomDatabase(db),
		ParticipantDB: NewParticipantDatabase(db),
		MessageDB:     NewMessageDatabase(db),
		PinDB:         NewPinDatabase(db),
	}
}

// ErrDuplicate is returned when an insert collides with a unique index
var ErrDuplicate = errors.New("duplicate document")

// EnsureIndexes creates the indexes the chat queries rely on
func (s *ChatStore) EnsureIndexes(ctx context.Context) error {
	return s.MessageDB.EnsureIndexes(ctx)
}

func notFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// Room returns the room with the given id
func (s *ChatStore) Room(ctx context.Context, id string) (*models.ChatRoom, error) {
	room, err := s.RoomDB.FindOne(ctx, bson.M{"_id": id})
	if notFound(err) {
		return nil, nil
	}
	return room, err
}

// ListRooms returns one page of rooms sorted by most recently updated, and the total match count
func (s *ChatStore) ListRooms(ctx context.Context, f models.RoomFilter) ([]models.ChatRoom, int64, error) {
	filter := bson.M{}
	if f.Search != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.IsActive != nil {
		filter["isActive"] = *f.IsActive
	}

	total, err := s.RoomDB.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))
	rooms, err := s.RoomDB.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

// InsertRoom stores a new room
func (s *ChatStore) InsertRoom(ctx context.Context, room models.ChatRoom) error {
	return s.RoomDB.InsertOne(ctx, room)
}

// SetNotice replaces the room notice; nil clears it
func (s *ChatStore) SetNotice(ctx context.Context, roomID string, notice *string, at time.Time) error {
	update := bson.M{"$set": bson.M{"notice": notice, "updatedAt": at}}
	if notice == nil {
		update = bson.M{"$set": bson.M{"updatedAt": at}, "$unset": bson.M{"notice": ""}}
	}
	return s.RoomDB.UpdateOne(ctx, bson.M{"_id": roomID}, update)
}

// SetActive toggles the room's soft-active flag
func (s *ChatStore) SetActive(ctx context.Context, roomID string, active bool, at time.Time) error {
	return s.RoomDB.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{"$set": bson.M{"isActive": active, "updatedAt": at}})
}

// Participant returns userID's most recent membership record in roomID
func (s *ChatStore) Participant(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "joinedAt", Value: -1}})
	p, err := s.ParticipantDB.FindOne(ctx, bson.M{"roomId": roomID, "userId": userID}, opts)
	if notFound(err) {
		return nil, nil
	}
	return p, err
}

// Owner returns the room's OWNER record
func (s *ChatStore) Owner(ctx context.Context, roomID string) (*models.Participant, error) {
	p, err := s.ParticipantDB.FindOne(ctx, bson.M{
		"roomId":    roomID,
		"ownerType": models.OwnerTypeOwner,
		"status":    bson.M{"$ne": models.StatusLeft},
	})
	if notFound(err) {
		return nil, nil
	}
	return p, err
}

// InsertParticipant stores a new membership record
func (s *ChatStore) InsertParticipant(ctx context.Context, p models.Participant) error {
	return s.ParticipantDB.InsertOne(ctx, p)
}

// UpdateParticipant persists the mutable fields of a membership record
func (s *ChatStore) UpdateParticipant(ctx context.Context, p models.Participant) error {
	return s.ParticipantDB.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"ownerType":       p.OwnerType,
		"status":          p.Status,
		"leftAt":          p.LeftAt,
		"isKicked":        p.IsKicked,
		"kickReason":      p.KickReason,
		"kickedFrom":      p.KickedFrom,
		"isShadowBanned":  p.IsShadowBanned,
		"shadowBanReason": p.ShadowBanReason,
	}})
}

// AdvanceLastRead moves the read cursor forward; it never moves backwards
func (s *ChatStore) AdvanceLastRead(ctx context.Context, participantID string, at time.Time) error {
	return s.ParticipantDB.UpdateOne(ctx, bson.M{"_id": participantID}, bson.M{"$max": bson.M{"lastReadAt": at}})
}

// ListParticipants returns the participants of roomID matching f. Left records
// are skipped unless f asks for them.
func (s *ChatStore) ListParticipants(ctx context.Context, roomID string, f models.ParticipantFilter) ([]models.Participant, error) {
	filter := bson.M{"roomId": roomID}
	if !f.IncludeLeft {
		filter["status"] = bson.M{"$ne": models.StatusLeft}
	}
	if f.Search != "" {
		filter["displayName"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	if f.OwnerType != "" {
		filter["ownerType"] = f.OwnerType
	}
	if f.IsKicked != nil {
		filter["isKicked"] = *f.IsKicked
	}
	if f.IsShadowBanned != nil {
		filter["isShadowBanned"] = *f.IsShadowBanned
	}
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	return s.ParticipantDB.Find(ctx, filter, opts)
}

// ActiveParticipants returns the participants that count towards unread totals
func (s *ChatStore) ActiveParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	return s.ParticipantDB.Find(ctx, bson.M{"roomId": roomID, "status": models.StatusActive, "isKicked": false})
}

// InsertMessage stores a new message. A repeated client message id from the
// same sender fails with ErrDuplicate.
func (s *ChatStore) InsertMessage(ctx context.Context, m models.ChatMessage) error {
	err := s.MessageDB.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// Message returns one message of roomID
func (s *ChatStore) Message(ctx context.Context, roomID, id string) (*models.ChatMessage, error) {
	m, err := s.MessageDB.FindOne(ctx, bson.M{"_id": id, "roomId": roomID})
	if notFound(err) {
		return nil, nil
	}
	return m, err
}

// MessageByClientID finds a message previously sent with the same client id
func (s *ChatStore) MessageByClientID(ctx context.Context, roomID, senderID, clientMsgID string) (*models.ChatMessage, error) {
	m, err := s.MessageDB.FindOne(ctx, bson.M{"roomId": roomID, "senderId": senderID, "clientMsgId": clientMsgID})
	if notFound(err) {
		return nil, nil
	}
	return m, err
}

// History returns up to q.Limit+1 messages of roomID, newest first, strictly older
// than q.Cursor. The extra message tells the caller whether another page exists.
func (s *ChatStore) History(ctx context.Context, roomID string, q models.HistoryQuery, hideSenders []string) ([]models.ChatMessage, error) {
	and := bson.A{bson.M{"roomId": roomID}}
	if q.Cursor != "" {
		c, err := DecodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"createdAt": bson.M{"$lt": c.CreatedAt}},
			bson.M{"createdAt": c.CreatedAt, "_id": bson.M{"$lt": c.ID}},
		}})
	}
	if q.Keyword != "" {
		and = append(and, bson.M{
			"content":   primitive.Regex{Pattern: regexp.QuoteMeta(q.Keyword), Options: "i"},
			"isDeleted": false,
		})
	}
	if q.SenderID != "" {
		and = append(and, bson.M{"senderId": q.SenderID})
	}
	if len(hideSenders) > 0 {
		and = append(and, bson.M{"senderId": bson.M{"$nin": hideSenders}})
	}
	if q.From != nil {
		and = append(and, bson.M{"createdAt": bson.M{"$gte": *q.From}})
	}
	if q.To != nil {
		and = append(and, bson.M{"createdAt": bson.M{"$lte": *q.To}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(q.Limit + 1))
	return s.MessageDB.Find(ctx, bson.M{"$and": and}, opts)
}

// MessagesByIDs returns the messages of roomID with the given ids
func (s *ChatStore) MessagesByIDs(ctx context.Context, roomID string, ids []string) ([]models.ChatMessage, error) {
	return s.MessageDB.Find(ctx, bson.M{"roomId": roomID, "_id": bson.M{"$in": ids}})
}

// MarkDeleted soft-deletes the given messages and returns how many changed
func (s *ChatStore) MarkDeleted(ctx context.Context, roomID string, ids []string) (int64, error) {
	return s.MessageDB.UpdateMany(ctx,
		bson.M{"roomId": roomID, "_id": bson.M{"$in": ids}, "isDeleted": false},
		bson.M{"$set": bson.M{"isDeleted": true}},
	)
}

// InsertPin stores a new pin
func (s *ChatStore) InsertPin(ctx context.Context, p models.PinnedMessage) error {
	return s.PinDB.InsertOne(ctx, p)
}

// Pin returns one pin of roomID
func (s *ChatStore) Pin(ctx context.Context, roomID, pinID string) (*models.PinnedMessage, error) {
	p, err := s.PinDB.FindOne(ctx, bson.M{"_id": pinID, "roomId": roomID})
	if notFound(err) {
		return nil, nil
	}
	return p, err
}

// PinByMessage returns the pin pointing at messageID, if any
func (s *ChatStore) PinByMessage(ctx context.Context, roomID, messageID string) (*models.PinnedMessage, error) {
	p, err := s.PinDB.FindOne(ctx, bson.M{"roomId": roomID, "messageId": messageID})
	if notFound(err) {
		return nil, nil
	}
	return p, err
}

// DeletePin removes a pin and reports whether it existed
func (s *ChatStore) DeletePin(ctx context.Context, roomID, pinID string) (bool, error) {
	n, err := s.PinDB.DeleteOne(ctx, bson.M{"_id": pinID, "roomId": roomID})
	return n > 0, err
}

// Pins returns the pins of roomID, newest first, with their target messages attached
func (s *ChatStore) Pins(ctx context.Context, roomID string) ([]models.PinnedMessage, error) {
	pins, err := s.PinDB.Find(ctx, bson.M{"roomId": roomID}, options.Find().SetSort(bson.D{{Key: "pinnedAt", Value: -1}}))
	if err != nil || len(pins) == 0 {
		return pins, err
	}
	ids := make([]string, 0, len(pins))
	for _, p := range pins {
		ids = append(ids, p.MessageID)
	}
	msgs, err := s.MessagesByIDs(ctx, roomID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.ChatMessage, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	for i := range pins {
		if m, ok := byID[pins[i].MessageID]; ok {
			m := m
			pins[i].Message = &m
		}
	}
	return pins, nil
}

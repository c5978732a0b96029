package rooms

import (
	"context"
	"errors"
	"strings"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/databases"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// canReadHistory reports whether a participant record grants history access.
// Kicked participants keep read access for audit.
func canReadHistory(role chat.Role, p *models.Participant) bool {
	if chat.CanParticipate(role) {
		return true
	}
	return p != nil && p.IsKicked
}

// History returns one newest-first page of the room's messages
func (s *Service) History(ctx context.Context, actor models.ActorIdentity, roomID string, q models.HistoryQuery) (models.HistoryPage, error) {
	const op = "history"
	_, p, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return models.HistoryPage{}, err
	}
	if !canReadHistory(role, p) {
		return models.HistoryPage{}, chat.E(chat.KindForbidden, op, "not a participant")
	}
	if q.Limit < 1 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
	if !actor.IsAdmin() {
		q.IncludeDeleted = false
	}

	hidden, err := s.hiddenSenders(ctx, actor, role, roomID)
	if err != nil {
		return models.HistoryPage{}, storeErr(op, err)
	}
	msgs, err := s.store.History(ctx, roomID, q, hidden)
	if errors.Is(err, databases.ErrBadCursor) {
		return models.HistoryPage{}, chat.Wrap(chat.KindInvalidArgument, op, err)
	}
	if err != nil {
		return models.HistoryPage{}, storeErr(op, err)
	}

	page := models.HistoryPage{Messages: msgs}
	if len(msgs) > q.Limit {
		page.Messages = msgs[:q.Limit]
		page.HasMore = true
		page.NextCursor = databases.EncodeCursor(page.Messages[len(page.Messages)-1])
	}
	if page.Messages == nil {
		page.Messages = []models.ChatMessage{}
	}
	if !q.IncludeDeleted {
		for i := range page.Messages {
			mask(&page.Messages[i])
		}
	}
	return page, nil
}

// mask strips the payload of a soft-deleted message
func mask(m *models.ChatMessage) {
	if !m.IsDeleted {
		return
	}
	m.Content = nil
	m.FileURL = nil
	m.FileName = nil
	m.FileSize = nil
}

func validateDraft(actor models.ActorIdentity, d *models.MessageDraft) string {
	if d.Type == "" {
		d.Type = models.MessageText
	}
	switch d.Type {
	case models.MessageText:
		if d.Content == nil || strings.TrimSpace(*d.Content) == "" {
			return "content is required"
		}
		if len([]rune(*d.Content)) > MaxContentLength {
			return "content is too long"
		}
	case models.MessageImage, models.MessageFile:
		if d.FileURL == nil || *d.FileURL == "" {
			return "fileUrl is required"
		}
	case models.MessageSystem:
		if !actor.IsAdmin() {
			return "system messages are reserved for operators"
		}
	default:
		return "unknown message type"
	}
	return ""
}

// Send persists a message and fans it out. A repeated clientMsgId from the same
// sender returns the stored message without a second broadcast.
func (s *Service) Send(ctx context.Context, actor models.ActorIdentity, roomID string, draft models.MessageDraft) (models.ChatMessage, error) {
	const op = "send"
	_, p, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if !chat.CanParticipate(role) {
		return models.ChatMessage{}, chat.E(chat.KindForbidden, op, "not an active participant")
	}
	if msg := validateDraft(actor, &draft); msg != "" {
		return models.ChatMessage{}, chat.E(chat.KindInvalidArgument, op, msg)
	}

	if draft.ClientMsgID != "" {
		prev, err := s.store.MessageByClientID(ctx, roomID, actor.ID, draft.ClientMsgID)
		if err != nil {
			return models.ChatMessage{}, storeErr(op, err)
		}
		if prev != nil {
			return *prev, nil
		}
	}

	msg := models.ChatMessage{
		ID:          s.newID(),
		RoomID:      roomID,
		SenderID:    actor.ID,
		SenderName:  actor.DisplayName,
		SenderType:  actor.Kind,
		Type:        draft.Type,
		Content:     draft.Content,
		FileURL:     draft.FileURL,
		FileName:    draft.FileName,
		FileSize:    draft.FileSize,
		ClientMsgID: draft.ClientMsgID,
		CreatedAt:   s.clock(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		if !errors.Is(err, databases.ErrDuplicate) || draft.ClientMsgID == "" {
			return models.ChatMessage{}, storeErr(op, err)
		}
		// a concurrent resend won the insert
		prev, lookupErr := s.store.MessageByClientID(ctx, roomID, actor.ID, draft.ClientMsgID)
		if lookupErr != nil || prev == nil {
			return models.ChatMessage{}, storeErr(op, err)
		}
		return *prev, nil
	}

	var allow func(models.ActorIdentity) bool
	if p != nil {
		allow = s.visibleFrom(*p)
		if err := s.store.AdvanceLastRead(ctx, p.ID, msg.CreatedAt); err != nil {
			return models.ChatMessage{}, storeErr(op, err)
		}
	}
	s.hub.Broadcast(roomID, models.EventMessageNew, models.MessageNewEvent{RoomID: roomID, Message: msg}, allow)
	if p != nil {
		s.hub.Broadcast(roomID, models.EventUserRead, models.ReadEvent{RoomID: roomID, UserID: actor.ID, LastReadAt: msg.CreatedAt}, allow)
	}
	return msg, nil
}

// DeleteMessage soft-deletes one message. Senders may delete their own messages,
// moderators may delete any.
func (s *Service) DeleteMessage(ctx context.Context, actor models.ActorIdentity, roomID, messageID string) error {
	const op = "deleteMessage"
	_, _, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return err
	}
	msg, err := s.store.Message(ctx, roomID, messageID)
	if err != nil {
		return storeErr(op, err)
	}
	if msg == nil {
		return chat.E(chat.KindNotFound, op, "message not found")
	}
	own := msg.SenderID == actor.ID && chat.CanParticipate(role)
	if !own && !chat.CanModerate(role) {
		return chat.E(chat.KindForbidden, op, "cannot delete another participant's message")
	}
	if msg.IsDeleted {
		return nil
	}
	if _, err := s.store.MarkDeleted(ctx, roomID, []string{messageID}); err != nil {
		return storeErr(op, err)
	}
	s.hub.Broadcast(roomID, models.EventMessageDeleted, models.MessageDeletedEvent{RoomID: roomID, MessageID: messageID}, nil)
	if !own {
		s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, TargetUserID: msg.SenderID, MessageIDs: []string{messageID}, At: s.clock()})
	}
	return nil
}

// BulkDelete soft-deletes several messages. Every id must name a message of the
// room, otherwise nothing changes. One batched event is broadcast.
func (s *Service) BulkDelete(ctx context.Context, actor models.ActorIdentity, roomID string, ids []string) (int64, error) {
	const op = "bulkDelete"
	if _, _, err := s.moderator(ctx, op, actor, roomID); err != nil {
		return 0, err
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, chat.E(chat.KindInvalidArgument, op, "messageIds is required")
	}
	if len(ids) > MaxBulkDelete {
		return 0, chat.E(chat.KindInvalidArgument, op, "too many messageIds")
	}
	found, err := s.store.MessagesByIDs(ctx, roomID, ids)
	if err != nil {
		return 0, storeErr(op, err)
	}
	if len(found) != len(ids) {
		return 0, chat.E(chat.KindNotFound, op, "one or more messages not found")
	}
	n, err := s.store.MarkDeleted(ctx, roomID, ids)
	if err != nil {
		return 0, storeErr(op, err)
	}
	s.hub.Broadcast(roomID, models.EventMessageDeleted, models.MessageDeletedEvent{RoomID: roomID, MessageIDs: ids}, nil)
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, MessageIDs: ids, At: s.clock()})
	return n, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

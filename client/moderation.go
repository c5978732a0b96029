package client

import (
	"context"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// Moderation calls. The server decides whether the actor may perform them;
// RoomSnapshot.CanModerate only mirrors that rule for the UI. Successful calls
// are applied locally right away, and the broadcast that follows is merged
// idempotently.

// Kick removes userID from roomID
func (s *ChatSession) Kick(ctx context.Context, roomID, userID string, reason *string) (*models.Participant, error) {
	return s.rest.Kick(ctx, roomID, userID, reason)
}

// Unkick lets userID back into roomID
func (s *ChatSession) Unkick(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	return s.rest.Unkick(ctx, roomID, userID)
}

// ShadowBan hides userID's future messages in roomID from everyone but the
// sender and operators
func (s *ChatSession) ShadowBan(ctx context.Context, roomID, userID string, reason *string) (*models.Participant, error) {
	return s.rest.ShadowBan(ctx, roomID, userID, reason)
}

// UnshadowBan lifts a shadow-ban
func (s *ChatSession) UnshadowBan(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	return s.rest.UnshadowBan(ctx, roomID, userID)
}

// Approve admits a pending participant
func (s *ChatSession) Approve(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	return s.rest.Approve(ctx, roomID, userID)
}

// ChangeRole sets userID's role. Promoting to OWNER hands ownership over.
func (s *ChatSession) ChangeRole(ctx context.Context, roomID, userID string, role models.OwnerType) (*models.Participant, error) {
	if !role.Valid() {
		return nil, chat.E(chat.KindInvalidArgument, "changeRole", "unknown role")
	}
	return s.rest.ChangeRole(ctx, roomID, userID, role)
}

// UpdateNotice replaces the room notice
func (s *ChatSession) UpdateNotice(ctx context.Context, roomID string, notice *string) (*models.ChatRoom, error) {
	room, err := s.rest.UpdateNotice(ctx, roomID, notice)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if ok {
		cp := *room
		r.room = &cp
	}
	s.mu.Unlock()
	if ok {
		s.changed(roomID)
	}
	return room, nil
}

func (s *ChatSession) applyDeleted(roomID string, ids ...string) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	changed := ok && r.timeline.MarkDeleted(ids...)
	s.mu.Unlock()
	if changed {
		s.changed(roomID)
	}
}

// DeleteMessage soft-deletes any message as a moderator, or the actor's own
func (s *ChatSession) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	if err := s.rest.DeleteMessage(ctx, roomID, messageID); err != nil {
		return err
	}
	s.applyDeleted(roomID, messageID)
	return nil
}

// DeleteOwn soft-deletes one of the actor's own messages over the live connection
func (s *ChatSession) DeleteOwn(ctx context.Context, roomID, messageID string) error {
	ref := models.MessageRef{RoomID: roomID, MessageID: messageID}
	if err := s.conn.Request(ctx, models.EventMessageDelete, ref, nil); err != nil {
		return err
	}
	s.applyDeleted(roomID, messageID)
	return nil
}

// BulkDelete soft-deletes every listed message or, if any of them cannot be
// deleted, none of them
func (s *ChatSession) BulkDelete(ctx context.Context, roomID string, messageIDs []string) (models.BulkDeleteResponse, error) {
	if len(messageIDs) == 0 {
		return models.BulkDeleteResponse{}, chat.E(chat.KindInvalidArgument, "bulkDelete", "messageIds is required")
	}
	res, err := s.rest.BulkDelete(ctx, roomID, messageIDs)
	if err != nil {
		return res, err
	}
	s.applyDeleted(roomID, messageIDs...)
	return res, nil
}

// Pin pins a message in roomID
func (s *ChatSession) Pin(ctx context.Context, roomID, messageID string) (*models.PinnedMessage, error) {
	var pin models.PinnedMessage
	if err := s.conn.Request(ctx, models.EventMessagePin, models.MessageRef{RoomID: roomID, MessageID: messageID}, &pin); err != nil {
		return nil, err
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if ok {
		r.addPin(pin)
	}
	s.mu.Unlock()
	if ok {
		s.changed(roomID)
	}
	return &pin, nil
}

// Unpin removes a pin by its id
func (s *ChatSession) Unpin(ctx context.Context, roomID, pinID string) error {
	if err := s.conn.Request(ctx, models.EventMessageUnpin, models.PinRef{RoomID: roomID, PinID: pinID}, nil); err != nil {
		return err
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if ok {
		r.removePin(pinID)
	}
	s.mu.Unlock()
	if ok {
		s.changed(roomID)
	}
	return nil
}

package rooms

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// target loads the acting moderator's role and the participant they act on
func (s *Service) target(ctx context.Context, op string, actor models.ActorIdentity, roomID, userID string) (chat.Role, *models.Participant, error) {
	_, _, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return role, nil, err
	}
	if !chat.CanModerate(role) {
		return role, nil, chat.E(chat.KindForbidden, op, "moderator role required")
	}
	p, err := s.store.Participant(ctx, roomID, userID)
	if err != nil {
		return role, nil, storeErr(op, err)
	}
	if p == nil || p.Status == models.StatusLeft {
		return role, nil, chat.E(chat.KindNotFound, op, "participant not found")
	}
	return role, p, nil
}

// Approve activates a pending participant of an APPROVAL room
func (s *Service) Approve(ctx context.Context, actor models.ActorIdentity, roomID, userID string) (*models.Participant, error) {
	const op = "approve"
	role, p, err := s.target(ctx, op, actor, roomID, userID)
	if err != nil {
		return nil, err
	}
	if err := chat.Approve(role, p); err != nil {
		return nil, err
	}
	if err := s.store.UpdateParticipant(ctx, *p); err != nil {
		return nil, storeErr(op, err)
	}
	ev := models.MemberEvent{RoomID: roomID, UserID: userID, Participant: p}
	s.hub.SendToUser(userID, models.EventApproved, ev)
	s.hub.Broadcast(roomID, models.EventUserJoined, ev, nil)
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, TargetUserID: userID, At: s.clock()})
	return p, nil
}

// Kick removes a participant from the room until they are unkicked
func (s *Service) Kick(ctx context.Context, actor models.ActorIdentity, roomID, userID string, reason *string) (*models.Participant, error) {
	const op = "kick"
	role, p, err := s.target(ctx, op, actor, roomID, userID)
	if err != nil {
		return nil, err
	}
	if err := chat.Kick(role, p, reason); err != nil {
		return nil, err
	}
	if err := s.store.UpdateParticipant(ctx, *p); err != nil {
		return nil, storeErr(op, err)
	}
	ev := models.KickEvent{RoomID: roomID, UserID: userID, Reason: reason}
	s.hub.Evict(roomID, userID)
	s.hub.SendToUser(userID, models.EventKicked, ev)
	s.hub.Broadcast(roomID, models.EventKicked, ev, nil)
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, TargetUserID: userID, Reason: reason, At: s.clock()})
	zap.S().Infow("participant kicked", "roomId", roomID, "userId", userID, "by", actor.ID)
	return p, nil
}

// Unkick lifts a kick. Only a participant who returns to Active is announced.
func (s *Service) Unkick(ctx context.Context, actor models.ActorIdentity, roomID, userID string) (*models.Participant, error) {
	const op = "unkick"
	role, p, err := s.target(ctx, op, actor, roomID, userID)
	if err != nil {
		return nil, err
	}
	if err := chat.Unkick(role, p); err != nil {
		return nil, err
	}
	if err := s.store.UpdateParticipant(ctx, *p); err != nil {
		return nil, storeErr(op, err)
	}
	if p.Status == models.StatusActive {
		ev := models.MemberEvent{RoomID: roomID, UserID: userID, Participant: p}
		s.hub.SendToUser(userID, models.EventUserJoined, ev)
		s.hub.Broadcast(roomID, models.EventUserJoined, ev, nil)
	}
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, TargetUserID: userID, At: s.clock()})
	return p, nil
}

// ShadowBan hides a participant's future fan-out from everyone but themselves.
// Nothing is broadcast.
func (s *Service) ShadowBan(ctx context.Context, actor models.ActorIdentity, roomID, userID string, reason *string) (*models.Participant, error) {
	const op = "shadowBan"
	role, p, err := s.target(ctx, op, actor, roomID, userID)
	if err != nil {
		return nil, err
	}
	if err := chat.ShadowBan(role, p, reason); err != nil {
		return nil, err
	}
	if err := s.store.UpdateParticipant(ctx, *p); err != nil {
		return nil, storeErr(op, err)
	}
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, TargetUserID: userID, Reason: reason, At: s.clock()})
	return p, nil
}

// UnshadowBan lifts a shadow-ban
func (s *Service) UnshadowBan(ctx context.Context, actor models.ActorIdentity, roomID, userID string) (*models.Participant, error) {
	const op = "unshadowBan"
	role, p, err := s.target(ctx, op, actor, roomID, userID)
	if err != nil {
		return nil, err
	}
	if err := chat.UnshadowBan(role, p); err != nil {
		return nil, err
	}
	if err := s.store.UpdateParticipant(ctx, *p); err != nil {
		return nil, storeErr(op, err)
	}
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, TargetUserID: userID, At: s.clock()})
	return p, nil
}

// ChangeRole sets a participant's role. Promoting someone to OWNER demotes the
// current owner to VICE_OWNER so the room keeps exactly one owner.
func (s *Service) ChangeRole(ctx context.Context, actor models.ActorIdentity, roomID, userID string, to models.OwnerType) (*models.Participant, error) {
	const op = "changeRole"
	role, p, err := s.target(ctx, op, actor, roomID, userID)
	if err != nil {
		return nil, err
	}
	var previous *models.Participant
	if to == models.OwnerTypeOwner {
		previous, err = s.store.Owner(ctx, roomID)
		if err != nil {
			return nil, storeErr(op, err)
		}
	}
	if err := chat.ChangeRole(role, p, to); err != nil {
		return nil, err
	}
	if previous != nil && previous.ID != p.ID {
		previous.OwnerType = models.OwnerTypeViceOwner
		if err := s.store.UpdateParticipant(ctx, *previous); err != nil {
			return nil, storeErr(op, err)
		}
		s.hub.Broadcast(roomID, models.EventRoleChanged, models.MemberEvent{RoomID: roomID, UserID: previous.UserID, Participant: previous}, nil)
	}
	if err := s.store.UpdateParticipant(ctx, *p); err != nil {
		return nil, storeErr(op, err)
	}
	s.hub.Broadcast(roomID, models.EventRoleChanged, models.MemberEvent{RoomID: roomID, UserID: userID, Participant: p}, nil)
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, TargetUserID: userID, At: s.clock()})
	return p, nil
}

// Pin pins a live message. Pinning an already pinned message returns the existing pin.
func (s *Service) Pin(ctx context.Context, actor models.ActorIdentity, roomID, messageID string) (*models.PinnedMessage, error) {
	const op = "pin"
	if _, _, err := s.moderator(ctx, op, actor, roomID); err != nil {
		return nil, err
	}
	msg, err := s.store.Message(ctx, roomID, messageID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if msg == nil || msg.IsDeleted {
		return nil, chat.E(chat.KindNotFound, op, "message not found")
	}
	existing, err := s.store.PinByMessage(ctx, roomID, messageID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if existing != nil {
		existing.Message = msg
		return existing, nil
	}
	allow, err := s.senderFilter(ctx, roomID, msg.SenderID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	pin := models.PinnedMessage{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		MessageID: messageID,
		PinnedBy:  actor.ID,
		PinnedAt:  s.clock(),
	}
	if err := s.store.InsertPin(ctx, pin); err != nil {
		return nil, storeErr(op, err)
	}
	pin.Message = msg
	s.hub.Broadcast(roomID, models.EventMessagePinned, models.PinEvent{RoomID: roomID, Pin: pin}, allow)
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, MessageIDs: []string{messageID}, At: pin.PinnedAt})
	return &pin, nil
}

// Unpin removes a pin
func (s *Service) Unpin(ctx context.Context, actor models.ActorIdentity, roomID, pinID string) error {
	const op = "unpin"
	if _, _, err := s.moderator(ctx, op, actor, roomID); err != nil {
		return err
	}
	pin, err := s.store.Pin(ctx, roomID, pinID)
	if err != nil {
		return storeErr(op, err)
	}
	if pin == nil {
		return chat.E(chat.KindNotFound, op, "pin not found")
	}
	if _, err := s.store.DeletePin(ctx, roomID, pinID); err != nil {
		return storeErr(op, err)
	}
	msg, err := s.store.Message(ctx, roomID, pin.MessageID)
	if err != nil {
		return storeErr(op, err)
	}
	var allow func(models.ActorIdentity) bool
	if msg != nil {
		if allow, err = s.senderFilter(ctx, roomID, msg.SenderID); err != nil {
			return storeErr(op, err)
		}
	}
	s.hub.Broadcast(roomID, models.EventMessageUnpinned, models.PinEvent{RoomID: roomID, Pin: *pin}, allow)
	s.audit.Record(ctx, AuditEntry{Action: op, RoomID: roomID, ActorID: actor.ID, MessageIDs: []string{pin.MessageID}, At: s.clock()})
	return nil
}

// Pins lists the room's pins with their messages attached. Deleted targets are
// masked, and pins of messages the actor may not see are left out.
func (s *Service) Pins(ctx context.Context, actor models.ActorIdentity, roomID string) ([]models.PinnedMessage, error) {
	const op = "pins"
	_, p, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return nil, err
	}
	if !canReadHistory(role, p) {
		return nil, chat.E(chat.KindForbidden, op, "not a participant")
	}
	pins, err := s.store.Pins(ctx, roomID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	hidden, err := s.hiddenSenders(ctx, actor, role, roomID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	skip := make(map[string]bool, len(hidden))
	for _, id := range hidden {
		skip[id] = true
	}
	out := make([]models.PinnedMessage, 0, len(pins))
	for _, pin := range pins {
		if pin.Message != nil && skip[pin.Message.SenderID] {
			continue
		}
		if pin.Message != nil && !actor.IsAdmin() {
			mask(pin.Message)
		}
		out = append(out, pin)
	}
	return out, nil
}

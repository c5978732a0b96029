package rooms

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// Join adds the actor to the room. FREE rooms activate immediately, APPROVAL
// rooms leave the actor pending. Operators observe rooms without a record.
func (s *Service) Join(ctx context.Context, actor models.ActorIdentity, roomID string) (models.JoinResult, error) {
	const op = "join"
	room, current, _, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return models.JoinResult{}, err
	}
	if actor.IsAdmin() {
		return models.JoinResult{}, nil
	}

	next, changed, err := chat.Join(*room, current, actor, s.newID(), s.clock())
	if err != nil {
		return models.JoinResult{}, err
	}
	if !changed {
		return models.JoinResult{Participant: &next, IsPending: next.Status == models.StatusPending}, nil
	}

	if room.MaxParticipants != nil && next.Status == models.StatusActive {
		active, err := s.store.ActiveParticipants(ctx, roomID)
		if err != nil {
			return models.JoinResult{}, storeErr(op, err)
		}
		if len(active) >= *room.MaxParticipants {
			return models.JoinResult{}, chat.E(chat.KindInvalidState, op, "room is full")
		}
	}
	if err := s.store.InsertParticipant(ctx, next); err != nil {
		return models.JoinResult{}, storeErr(op, err)
	}

	if next.Status == models.StatusActive {
		s.hub.Broadcast(roomID, models.EventUserJoined, models.MemberEvent{RoomID: roomID, UserID: actor.ID, Participant: &next}, nil)
	}
	zap.S().Infow("participant joined", "roomId", roomID, "userId", actor.ID, "status", next.Status)
	return models.JoinResult{Participant: &next, IsPending: next.Status == models.StatusPending}, nil
}

// Leave ends the actor's membership. The owner cannot leave.
func (s *Service) Leave(ctx context.Context, actor models.ActorIdentity, roomID string) error {
	const op = "leave"
	_, p, _, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return err
	}
	if actor.IsAdmin() {
		s.hub.Evict(roomID, actor.ID)
		return nil
	}
	if err := chat.Leave(p, s.clock()); err != nil {
		return err
	}
	if err := s.store.UpdateParticipant(ctx, *p); err != nil {
		return storeErr(op, err)
	}
	s.hub.Evict(roomID, actor.ID)
	s.hub.Broadcast(roomID, models.EventUserLeft, models.MemberEvent{RoomID: roomID, UserID: actor.ID}, nil)
	return nil
}

// MarkRead advances the actor's read cursor to now and tells the room
func (s *Service) MarkRead(ctx context.Context, actor models.ActorIdentity, roomID string) (models.ReadAck, error) {
	const op = "markRead"
	_, p, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return models.ReadAck{}, err
	}
	now := s.clock()
	if actor.IsAdmin() {
		return models.ReadAck{RoomID: roomID, LastReadAt: now}, nil
	}
	if !chat.CanParticipate(role) {
		return models.ReadAck{}, chat.E(chat.KindForbidden, op, "not an active participant")
	}
	if err := s.store.AdvanceLastRead(ctx, p.ID, now); err != nil {
		return models.ReadAck{}, storeErr(op, err)
	}
	s.hub.Broadcast(roomID, models.EventUserRead, models.ReadEvent{RoomID: roomID, UserID: actor.ID, LastReadAt: now}, s.visibleFrom(*p))
	return models.ReadAck{RoomID: roomID, LastReadAt: now}, nil
}

// ReadStatus returns the read snapshot used to compute unread counts
func (s *Service) ReadStatus(ctx context.Context, actor models.ActorIdentity, roomID string) (models.ReadInfo, error) {
	const op = "readStatus"
	_, _, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return models.ReadInfo{}, err
	}
	if !chat.CanParticipate(role) {
		return models.ReadInfo{}, chat.E(chat.KindForbidden, op, "not an active participant")
	}
	active, err := s.store.ActiveParticipants(ctx, roomID)
	if err != nil {
		return models.ReadInfo{}, storeErr(op, err)
	}
	info := models.ReadInfo{TotalActive: len(active), Participants: make([]models.ReadCursor, 0, len(active))}
	for _, p := range active {
		info.Participants = append(info.Participants, models.ReadCursor{UserID: p.UserID, LastReadAt: p.LastReadAt})
	}
	return info, nil
}

// Participants lists the room's participants. Shadow-ban state is only visible to moderators.
func (s *Service) Participants(ctx context.Context, actor models.ActorIdentity, roomID string, f models.ParticipantFilter) ([]models.Participant, error) {
	const op = "participants"
	_, _, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return nil, err
	}
	if !chat.CanParticipate(role) {
		return nil, chat.E(chat.KindForbidden, op, "not an active participant")
	}
	moderator := chat.CanModerate(role)
	if !moderator {
		f.IsShadowBanned = nil
	}
	list, err := s.store.ListParticipants(ctx, roomID, f)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if list == nil {
		list = []models.Participant{}
	}
	if !moderator {
		for i := range list {
			list[i].IsShadowBanned = false
			list[i].ShadowBanReason = nil
		}
	}
	return list, nil
}

// Typing relays a typing start or stop to the rest of the room. Nothing is stored;
// receivers expire entries on their own.
func (s *Service) Typing(ctx context.Context, actor models.ActorIdentity, roomID string, typing bool) error {
	const op = "typing"
	_, p, role, err := s.access(ctx, op, actor, roomID)
	if err != nil {
		return err
	}
	if !chat.CanParticipate(role) {
		return chat.E(chat.KindForbidden, op, "not an active participant")
	}
	event := models.EventUserStopped
	if typing {
		event = models.EventUserTyping
	}
	visible := func(models.ActorIdentity) bool { return true }
	if p != nil {
		if v := s.visibleFrom(*p); v != nil {
			visible = v
		}
	}
	s.hub.Broadcast(roomID, event, models.TypingEvent{RoomID: roomID, UserID: actor.ID}, func(a models.ActorIdentity) bool {
		return a.ID != actor.ID && visible(a)
	})
	return nil
}

// visibleFrom returns the fan-out filter for events originating from sender.
// A shadow-banned sender's events reach only the sender and operators.
func (s *Service) visibleFrom(sender models.Participant) func(models.ActorIdentity) bool {
	if !sender.IsShadowBanned {
		return nil
	}
	return func(a models.ActorIdentity) bool {
		return a.ID == sender.UserID || a.IsAdmin()
	}
}

// hiddenSenders returns the users whose messages actor must not see in history.
// A user's newest record decides, even when that record ended with a leave.
func (s *Service) hiddenSenders(ctx context.Context, actor models.ActorIdentity, role chat.Role, roomID string) ([]string, error) {
	if chat.CanModerate(role) {
		return nil, nil
	}
	list, err := s.store.ListParticipants(ctx, roomID, models.ParticipantFilter{IncludeLeft: true})
	if err != nil {
		return nil, err
	}
	latest := make(map[string]models.Participant, len(list))
	for _, p := range list {
		if cur, ok := latest[p.UserID]; !ok || !p.JoinedAt.Before(cur.JoinedAt) {
			latest[p.UserID] = p
		}
	}
	var ids []string
	for id, p := range latest {
		if p.IsShadowBanned && id != actor.ID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// senderFilter returns the fan-out filter for content authored by userID, or nil
// when everyone may see it
func (s *Service) senderFilter(ctx context.Context, roomID, userID string) (func(models.ActorIdentity) bool, error) {
	p, err := s.store.Participant(ctx, roomID, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return s.visibleFrom(*p), nil
}

package client

import (
	"context"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// Inbound event handlers. They run on the connection's reader goroutine, so
// anything that waits on the server is handed to async.

func (s *ChatSession) onState(ch StateChange) {
	switch ch.State {
	case StateReconnecting, StateDisconnected:
		s.mu.Lock()
		ids := make([]string, 0, len(s.subs))
		for id := range s.subs {
			ids = append(ids, id)
		}
		for _, r := range s.rooms {
			r.stale = true
		}
		s.mu.Unlock()
		for _, id := range ids {
			s.typing.ClearRoom(id)
		}
	case StateConnected:
		if ch.Reconnected {
			s.async(s.resync)
		}
	}
}

// resync re-subscribes every held room after a reconnect and reloads the open
// one. The transport never rejoins on its own.
func (s *ChatSession) resync(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	current, gen := s.current, s.gen
	s.mu.Unlock()

	for _, id := range ids {
		if _, err := s.join(ctx, id); err != nil {
			s.log.Warnw("failed to rejoin room", "roomId", id, "error", err)
		}
	}
	if current == "" {
		return
	}
	s.mu.Lock()
	background := s.background
	s.mu.Unlock()
	if !background {
		if err := s.MarkRead(ctx, current); err != nil {
			s.log.Warnw("failed to mark room read", "roomId", current, "error", err)
		}
	}
	if err := s.reload(ctx, current, gen); err != nil {
		s.log.Warnw("failed to reload room", "roomId", current, "error", err)
	}
}

func (s *ChatSession) onMessageNew(ev models.MessageNewEvent) {
	s.typing.Stop(ev.RoomID, ev.Message.SenderID)

	s.mu.Lock()
	r, ok := s.rooms[ev.RoomID]
	if !ok {
		s.mu.Unlock()
		return
	}
	added := r.timeline.Merge(ev.Message) > 0
	if added {
		r.advance(ev.Message)
	}
	viewing := s.current == ev.RoomID && !s.background &&
		chat.CanParticipate(chat.RoleOf(s.actor, r.participant))
	s.mu.Unlock()
	if !added {
		return
	}
	s.changed(ev.RoomID)

	if viewing && ev.Message.SenderID != s.actor.ID {
		roomID := ev.RoomID
		s.async(func(ctx context.Context) {
			if err := s.MarkRead(ctx, roomID); err != nil {
				s.log.Warnw("failed to mark room read", "roomId", roomID, "error", err)
			}
		})
	}
}

func (s *ChatSession) onMessageDeleted(ev models.MessageDeletedEvent) {
	s.mu.Lock()
	r, ok := s.rooms[ev.RoomID]
	changed := ok && r.timeline.MarkDeleted(ev.IDs()...)
	s.mu.Unlock()
	if changed {
		s.changed(ev.RoomID)
	}
}

func (s *ChatSession) onPin(ev models.PinEvent, pinned bool) {
	s.mu.Lock()
	r, ok := s.rooms[ev.RoomID]
	if ok {
		if pinned {
			r.addPin(ev.Pin)
		} else {
			r.removePin(ev.Pin.ID)
		}
	}
	s.mu.Unlock()
	if ok {
		s.changed(ev.RoomID)
	}
}

func (s *ChatSession) onMember(ev models.MemberEvent) {
	s.mu.Lock()
	r, ok := s.rooms[ev.RoomID]
	if ok && ev.UserID == s.actor.ID && ev.Participant != nil {
		p := *ev.Participant
		r.participant = &p
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.changed(ev.RoomID)
	s.refreshRead(ev.RoomID)
}

func (s *ChatSession) onApproved(ev models.MemberEvent) {
	s.mu.Lock()
	r, ok := s.rooms[ev.RoomID]
	if ok && ev.Participant != nil {
		p := *ev.Participant
		r.participant = &p
	}
	gen := s.gen
	open := ok && s.current == ev.RoomID
	s.mu.Unlock()
	if !ok {
		return
	}
	s.changed(ev.RoomID)

	// the pending join did not subscribe the connection
	roomID := ev.RoomID
	s.async(func(ctx context.Context) {
		if _, err := s.join(ctx, roomID); err != nil {
			s.log.Warnw("failed to subscribe after approval", "roomId", roomID, "error", err)
			return
		}
		if !open {
			return
		}
		if err := s.MarkRead(ctx, roomID); err != nil {
			s.log.Warnw("failed to mark room read", "roomId", roomID, "error", err)
		}
		if err := s.reload(ctx, roomID, gen); err != nil {
			s.log.Warnw("failed to load room", "roomId", roomID, "error", err)
		}
	})
}

func (s *ChatSession) onUserRead(ev models.ReadEvent) {
	s.mu.Lock()
	r, ok := s.rooms[ev.RoomID]
	if ok {
		r.setRead(ev.UserID, ev.LastReadAt)
	}
	s.mu.Unlock()
	if ok {
		s.changed(ev.RoomID)
	}
}

func (s *ChatSession) onKicked(ev models.KickEvent) {
	if ev.UserID != s.actor.ID {
		s.typing.Stop(ev.RoomID, ev.UserID)
		s.refreshRead(ev.RoomID)
		return
	}
	s.mu.Lock()
	r, ok := s.rooms[ev.RoomID]
	if ok && r.participant != nil {
		p := *r.participant
		p.IsKicked = true
		p.Status = models.StatusKicked
		p.KickReason = ev.Reason
		r.participant = &p
	}
	// the server already dropped the subscription
	delete(s.subs, ev.RoomID)
	s.mu.Unlock()

	s.typing.ClearRoom(ev.RoomID)
	if ok {
		s.changed(ev.RoomID)
	}
}

// refreshRead refetches the read snapshot after membership changed
func (s *ChatSession) refreshRead(roomID string) {
	s.mu.Lock()
	_, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.async(func(ctx context.Context) {
		info, err := s.rest.ReadStatus(ctx, roomID)
		if err != nil {
			s.log.Debugw("failed to refresh read status", "roomId", roomID, "error", err)
			return
		}
		s.mu.Lock()
		r, ok := s.rooms[roomID]
		if ok {
			r.readInfo = info
		}
		s.mu.Unlock()
		if ok {
			s.changed(roomID)
		}
	})
}

func (s *ChatSession) onTyping(ev models.TypingEvent, typing bool) {
	if ev.UserID == s.actor.ID {
		return
	}
	if typing {
		s.typing.Start(ev.RoomID, ev.UserID)
	} else {
		s.typing.Stop(ev.RoomID, ev.UserID)
	}
}

func (s *ChatSession) onStatus(ev models.StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Online {
		s.presence[ev.UserID] = true
	} else {
		delete(s.presence, ev.UserID)
	}
}

func (s *ChatSession) onError(ev models.ErrorEvent) {
	s.log.Warnw("server rejected event", "event", ev.Event, "kind", ev.Kind, "message", ev.Message)
}

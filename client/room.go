package client

import (
	"time"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// roomState is everything the session knows about one room. It is only
// touched with the session lock held.
type roomState struct {
	id          string
	room        *models.ChatRoom
	participant *models.Participant
	timeline    *Timeline
	readInfo    *models.ReadInfo
	pins        []models.PinnedMessage
	nextCursor  string
	hasMore     bool
	loading     bool
	generation  uint64
	loaded      bool
	// edge is the newest message known to follow the loaded history without
	// a gap. stale is set while live delivery was interrupted.
	edge    models.ChatMessage
	hasEdge bool
	stale   bool
}

func newRoomState(id string, loc *time.Location) *roomState {
	return &roomState{id: id, timeline: NewTimeline(loc)}
}

// RoomSnapshot is an immutable copy of a room's state for rendering
type RoomSnapshot struct {
	RoomID      string
	Room        *models.ChatRoom
	Participant *models.Participant
	Items       []TimelineItem
	ReadInfo    *models.ReadInfo
	// Pins excludes inert pins
	Pins    []models.PinnedMessage
	Typing  []string
	HasMore bool
	Loading bool
	// CanModerate mirrors the server's rule so controls can be disabled. The
	// server still decides.
	CanModerate bool
	CanSend     bool
}

func (r *roomState) snapshot(actor models.ActorIdentity, typing []string) RoomSnapshot {
	s := RoomSnapshot{
		RoomID:  r.id,
		Items:   r.timeline.Items(r.readInfo),
		Typing:  typing,
		HasMore: r.hasMore,
		Loading: r.loading,
	}
	if r.room != nil {
		room := *r.room
		s.Room = &room
	}
	if r.participant != nil {
		p := *r.participant
		s.Participant = &p
	}
	if r.readInfo != nil {
		info := models.ReadInfo{TotalActive: r.readInfo.TotalActive}
		info.Participants = append(info.Participants, r.readInfo.Participants...)
		s.ReadInfo = &info
	}
	for _, p := range r.pins {
		if !p.Inert() && !r.pinTargetDeleted(p) {
			s.Pins = append(s.Pins, p)
		}
	}
	role := chat.RoleOf(actor, r.participant)
	s.CanModerate = chat.CanModerate(role)
	s.CanSend = chat.CanParticipate(role)
	return s
}

func (r *roomState) pinTargetDeleted(p models.PinnedMessage) bool {
	i, ok := r.timeline.ids[p.MessageID]
	return ok && r.timeline.msgs[i].IsDeleted
}

// setRead moves userID's cursor forward to at. Cursors never move back.
// Only readers in the snapshot are tracked; others, operators included, do
// not count towards unread totals.
func (r *roomState) setRead(userID string, at time.Time) {
	if r.readInfo == nil {
		return
	}
	for i, p := range r.readInfo.Participants {
		if p.UserID != userID {
			continue
		}
		if p.LastReadAt == nil || p.LastReadAt.Before(at) {
			t := at
			r.readInfo.Participants[i].LastReadAt = &t
		}
		return
	}
}

// advance extends the gap-free edge with a live message
func (r *roomState) advance(m models.ChatMessage) {
	if r.stale {
		return
	}
	if !r.hasEdge || chat.Less(r.edge, m) {
		r.edge, r.hasEdge = m, true
	}
}

// reaches reports whether the newest-first page joins up with the held
// messages, so merging it leaves no gap
func (r *roomState) reaches(page models.HistoryPage) bool {
	if !page.HasMore || len(page.Messages) == 0 {
		return true
	}
	oldest := page.Messages[len(page.Messages)-1]
	return r.hasEdge && !chat.Less(r.edge, oldest)
}

// applyFirstPage merges the newest history page. A page that leaves a gap
// behind the held messages replaces them, and paging restarts from it.
func (r *roomState) applyFirstPage(page models.HistoryPage) {
	if r.loaded && !r.reaches(page) {
		newest := page.Messages[0]
		var live []models.ChatMessage
		for _, m := range r.timeline.Messages() {
			if chat.Less(newest, m) {
				live = append(live, m)
			}
		}
		r.timeline.Reset()
		r.timeline.Merge(live...)
		r.loaded = false
	}
	r.timeline.Merge(page.Messages...)
	if !r.loaded {
		r.nextCursor = page.NextCursor
		r.hasMore = page.HasMore
		r.loaded = true
	}
	r.stale = false
	if last, ok := r.timeline.Last(); ok {
		r.edge, r.hasEdge = last, true
	}
}

func (r *roomState) addPin(p models.PinnedMessage) {
	for i, existing := range r.pins {
		if existing.ID == p.ID {
			r.pins[i] = p
			return
		}
	}
	r.pins = append(r.pins, p)
}

func (r *roomState) removePin(pinID string) {
	for i, p := range r.pins {
		if p.ID == pinID {
			r.pins = append(r.pins[:i], r.pins[i+1:]...)
			return
		}
	}
}

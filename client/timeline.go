package client

import (
	"sort"
	"time"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// TimelineItem is one rendered row of a room's message list
type TimelineItem struct {
	Message models.ChatMessage `json:"message"`
	Meta    chat.DisplayMeta   `json:"meta"`
	Unread  int                `json:"unread"`
}

// Timeline is the ordered, de-duplicated message list of one room. Display
// metadata is recomputed after every mutation. It is not safe for concurrent
// use; the session guards it.
type Timeline struct {
	loc  *time.Location
	msgs []models.ChatMessage
	ids  map[string]int
	meta []chat.DisplayMeta
}

// NewTimeline creates an empty timeline grouping dates in loc
func NewTimeline(loc *time.Location) *Timeline {
	if loc == nil {
		loc = time.Local
	}
	return &Timeline{loc: loc, ids: make(map[string]int)}
}

// Merge adds msgs in any order. A message already present is replaced only to
// carry a deletion forward, so merging the same batch twice changes nothing.
// It returns how many messages were new.
func (t *Timeline) Merge(msgs ...models.ChatMessage) int {
	added := 0
	for _, m := range msgs {
		if i, ok := t.ids[m.ID]; ok {
			if m.IsDeleted && !t.msgs[i].IsDeleted {
				t.msgs[i] = m
			}
			continue
		}
		t.ids[m.ID] = len(t.msgs)
		t.msgs = append(t.msgs, m)
		added++
	}
	t.reindex()
	return added
}

// MarkDeleted flags the listed messages as deleted and drops their payload.
// Unknown ids are ignored. It reports whether anything changed.
func (t *Timeline) MarkDeleted(ids ...string) bool {
	changed := false
	for _, id := range ids {
		i, ok := t.ids[id]
		if !ok || t.msgs[i].IsDeleted {
			continue
		}
		m := t.msgs[i]
		m.IsDeleted = true
		m.Content, m.FileURL, m.FileName, m.FileSize = nil, nil, nil, nil
		t.msgs[i] = m
		changed = true
	}
	if changed {
		t.reindex()
	}
	return changed
}

func (t *Timeline) reindex() {
	if !sort.SliceIsSorted(t.msgs, func(i, j int) bool { return chat.Less(t.msgs[i], t.msgs[j]) }) {
		chat.SortMessages(t.msgs)
		for i, m := range t.msgs {
			t.ids[m.ID] = i
		}
	}
	t.meta = chat.GroupAll(t.msgs, t.loc)
}

// Len returns the number of messages
func (t *Timeline) Len() int {
	return len(t.msgs)
}

// Has reports whether a message is present
func (t *Timeline) Has(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// Messages returns a copy of the ordered messages
func (t *Timeline) Messages() []models.ChatMessage {
	return append([]models.ChatMessage(nil), t.msgs...)
}

// Last returns the newest message
func (t *Timeline) Last() (models.ChatMessage, bool) {
	if len(t.msgs) == 0 {
		return models.ChatMessage{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}

// Items renders the timeline with unread counts against info
func (t *Timeline) Items(info *models.ReadInfo) []TimelineItem {
	out := make([]TimelineItem, len(t.msgs))
	for i, m := range t.msgs {
		out[i] = TimelineItem{Message: m, Meta: t.meta[i], Unread: chat.Unread(m, info)}
	}
	return out
}

// Reset empties the timeline
func (t *Timeline) Reset() {
	t.msgs = nil
	t.meta = nil
	t.ids = make(map[string]int)
}

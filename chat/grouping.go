package chat

import (
	"time"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// DisplayMeta tells a renderer how to decorate one message in a timeline
type DisplayMeta struct {
	// DateDivider is set on the first message of a calendar day
	DateDivider bool `json:"dateDivider"`
	// ShowSender is set on the first message of a same-sender, same-minute run
	ShowSender bool `json:"showSender"`
	// ShowTime is set on the last message of a same-sender, same-minute run
	ShowTime bool `json:"showTime"`
}

// sameRun reports whether b continues a run started by a
func sameRun(a, b models.ChatMessage, loc *time.Location) bool {
	if a.SenderID != b.SenderID || a.Type == models.MessageSystem || b.Type == models.MessageSystem {
		return false
	}
	return a.CreatedAt.In(loc).Truncate(time.Minute).Equal(b.CreatedAt.In(loc).Truncate(time.Minute)) &&
		sameDay(a.CreatedAt, b.CreatedAt, loc)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Group computes the decoration of cur from its neighbours. prev and next may be nil.
func Group(prev *models.ChatMessage, cur models.ChatMessage, next *models.ChatMessage, loc *time.Location) DisplayMeta {
	if loc == nil {
		loc = time.Local
	}
	return DisplayMeta{
		DateDivider: prev == nil || !sameDay(prev.CreatedAt, cur.CreatedAt, loc),
		ShowSender:  prev == nil || !sameRun(*prev, cur, loc),
		ShowTime:    next == nil || !sameRun(cur, *next, loc),
	}
}

// GroupAll decorates an ordered timeline
func GroupAll(msgs []models.ChatMessage, loc *time.Location) []DisplayMeta {
	out := make([]DisplayMeta, len(msgs))
	for i := range msgs {
		var prev, next *models.ChatMessage
		if i > 0 {
			prev = &msgs[i-1]
		}
		if i < len(msgs)-1 {
			next = &msgs[i+1]
		}
		out[i] = Group(prev, msgs[i], next, loc)
	}
	return out
}

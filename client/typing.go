package client

import (
	"sync"
	"time"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// TypingEmitter debounces the outbound typing signal of the local user.
// typing:start goes out at most once per refresh interval while keystrokes
// keep coming, and typing:stop follows after the idle interval or on Stop.
type TypingEmitter struct {
	emit    func(event, roomID string)
	refresh time.Duration
	idle    time.Duration
	now     func() time.Time

	mu        sync.Mutex
	roomID    string
	active    bool
	lastStart time.Time
	timer     *time.Timer
	burst     int
	closed    bool
}

// NewTypingEmitter creates an emitter that hands events to emit
func NewTypingEmitter(refresh, idle time.Duration, emit func(event, roomID string)) *TypingEmitter {
	return &TypingEmitter{emit: emit, refresh: refresh, idle: idle, now: time.Now}
}

// Keystroke records local input in roomID
func (e *TypingEmitter) Keystroke(roomID string) {
	type out struct{ event, room string }
	var events []out

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.active && e.roomID != roomID {
		events = append(events, out{models.EventTypingStop, e.roomID})
		e.active = false
	}
	now := e.now()
	if !e.active || now.Sub(e.lastStart) >= e.refresh {
		events = append(events, out{models.EventTypingStart, roomID})
		e.lastStart = now
	}
	e.active = true
	e.roomID = roomID
	if e.timer != nil {
		e.timer.Stop()
	}
	e.burst++
	burst := e.burst
	e.timer = time.AfterFunc(e.idle, func() { e.expire(burst) })
	e.mu.Unlock()

	for _, ev := range events {
		e.emit(ev.event, ev.room)
	}
}

func (e *TypingEmitter) expire(burst int) {
	e.mu.Lock()
	if e.burst != burst {
		e.mu.Unlock()
		return
	}
	roomID, ok := e.stopLocked()
	e.mu.Unlock()
	if ok {
		e.emit(models.EventTypingStop, roomID)
	}
}

// Stop ends the current typing burst, if any
func (e *TypingEmitter) Stop() {
	e.mu.Lock()
	roomID, ok := e.stopLocked()
	e.mu.Unlock()
	if ok {
		e.emit(models.EventTypingStop, roomID)
	}
}

func (e *TypingEmitter) stopLocked() (string, bool) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if !e.active || e.closed {
		return "", false
	}
	e.active = false
	return e.roomID, true
}

// Active reports whether a burst is in progress
func (e *TypingEmitter) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Close cancels the idle timer without emitting
func (e *TypingEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.active = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

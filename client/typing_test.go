package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/advisory-chat-api/models"
)

type emitted struct {
	mu     sync.Mutex
	events []string
}

func (e *emitted) add(event, roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event+"@"+roomID)
}

func (e *emitted) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func TestTypingEmitterDebounces(t *testing.T) {
	var out emitted
	e := NewTypingEmitter(2*time.Second, time.Hour, out.add)
	defer e.Close()
	now := epoch
	e.now = func() time.Time { return now }

	e.Keystroke("r1")
	now = now.Add(500 * time.Millisecond)
	e.Keystroke("r1")
	now = now.Add(time.Second)
	e.Keystroke("r1")
	assert.Equal(t, []string{"typing:start@r1"}, out.list())

	now = now.Add(time.Second)
	e.Keystroke("r1")
	assert.Equal(t, []string{"typing:start@r1", "typing:start@r1"}, out.list())

	e.Stop()
	e.Stop()
	assert.Equal(t, []string{"typing:start@r1", "typing:start@r1", "typing:stop@r1"}, out.list())
	assert.False(t, e.Active())
}

func TestTypingEmitterStopsWhenIdle(t *testing.T) {
	var out emitted
	e := NewTypingEmitter(time.Second, 30*time.Millisecond, out.add)
	defer e.Close()

	e.Keystroke("r1")
	assert.Eventually(t, func() bool { return len(out.list()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{models.EventTypingStart + "@r1", models.EventTypingStop + "@r1"}, out.list())
}

func TestTypingEmitterSwitchingRooms(t *testing.T) {
	var out emitted
	e := NewTypingEmitter(time.Minute, time.Hour, out.add)
	defer e.Close()

	e.Keystroke("r1")
	e.Keystroke("r2")

	assert.Equal(t, []string{"typing:start@r1", "typing:stop@r1", "typing:start@r2"}, out.list())
}

func TestTypingEmitterCloseIsSilent(t *testing.T) {
	var out emitted
	e := NewTypingEmitter(time.Minute, 20*time.Millisecond, out.add)

	e.Keystroke("r1")
	e.Close()
	e.Keystroke("r1")
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []string{"typing:start@r1"}, out.list())
}

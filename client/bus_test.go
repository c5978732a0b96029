package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/models"
)

func TestBusTypedHandlersAndDispose(t *testing.T) {
	b := NewBus(zap.NewNop())
	var got []string
	dispose := On(b, models.EventTypingStart, func(ev models.RoomRef) { got = append(got, "first:"+ev.RoomID) })
	On(b, models.EventTypingStart, func(ev models.RoomRef) { got = append(got, "second:"+ev.RoomID) })

	b.Emit(models.EventTypingStart, models.RoomRef{RoomID: "r1"})
	dispose()
	dispose()
	b.Emit(models.EventTypingStart, models.RoomRef{RoomID: "r2"})
	b.Emit(models.EventTypingStop, models.RoomRef{RoomID: "r3"})

	assert.Equal(t, []string{"first:r1", "second:r1", "second:r2"}, got)
}

func TestBusDropsMalformedPayloads(t *testing.T) {
	b := NewBus(zap.NewNop())
	calls := 0
	On(b, models.EventUserRead, func(models.ReadEvent) { calls++ })

	b.Publish(models.EventUserRead, json.RawMessage(`{"lastReadAt": "yesterday"}`))
	b.Publish(models.EventUserRead, json.RawMessage(`{"roomId":"r1","userId":"bob","lastReadAt":"2024-03-01T09:00:00Z"}`))

	assert.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 30 * time.Second, MaxAttempts: 8}

	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 16*time.Second, b.Delay(4))
	assert.Equal(t, 30*time.Second, b.Delay(5))
	assert.Equal(t, 30*time.Second, b.Delay(50))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{BaseURL: "http://localhost"}.withDefaults()

	assert.Equal(t, DefaultAckTimeout, o.AckTimeout)
	assert.Equal(t, DefaultBackoff, o.Backoff)
	assert.Equal(t, 5*time.Second, o.TypingTTL)
	assert.Equal(t, DefaultHistoryPage, o.HistoryPage)
	assert.NotNil(t, o.HTTPClient)
	assert.NotNil(t, o.Dialer)
	assert.NotNil(t, o.Logger)
}

func TestSocketURL(t *testing.T) {
	for in, want := range map[string]string{
		"http://chat.local":       "ws://chat.local/ws",
		"https://chat.local/api/": "wss://chat.local/api/ws",
		"ws://127.0.0.1:8080":     "ws://127.0.0.1:8080/ws",
	} {
		got, err := socketURL(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := socketURL("ftp://chat.local")
	assert.Error(t, err)
}

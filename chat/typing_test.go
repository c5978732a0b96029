package chat_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/advisory-chat-api/chat"
)

func TestTypingSet_AutoExpiry(t *testing.T) {
	set := chat.NewTypingSet(50*time.Millisecond, nil)
	defer set.Close()

	set.Start("r1", "u1")
	assert.Equal(t, []string{"u1"}, set.Users("r1"))

	assert.Eventually(t, func() bool { return len(set.Users("r1")) == 0 }, time.Second, 10*time.Millisecond)
}

func TestTypingSet_RepeatedStartResetsExpiry(t *testing.T) {
	set := chat.NewTypingSet(120*time.Millisecond, nil)
	defer set.Close()

	set.Start("r1", "u1")
	time.Sleep(80 * time.Millisecond)
	set.Start("r1", "u1")
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, []string{"u1"}, set.Users("r1"))
	assert.Eventually(t, func() bool { return len(set.Users("r1")) == 0 }, time.Second, 10*time.Millisecond)
}

func TestTypingSet_StopAndNotify(t *testing.T) {
	var mu sync.Mutex
	var changes [][]string
	set := chat.NewTypingSet(time.Minute, func(roomID string, users []string) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, users)
	})
	defer set.Close()

	set.Start("r1", "b")
	set.Start("r1", "a")
	set.Start("r1", "a")
	set.Stop("r1", "b")
	set.Stop("r1", "nobody")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"b"}, {"a", "b"}, {"a"}}, changes)
}

func TestTypingSet_ClearRoomAndClose(t *testing.T) {
	set := chat.NewTypingSet(time.Minute, nil)

	set.Start("r1", "a")
	set.Start("r2", "b")
	set.ClearRoom("r1")
	assert.Empty(t, set.Users("r1"))
	assert.Equal(t, []string{"b"}, set.Users("r2"))

	set.Close()
	set.Start("r2", "c")
	assert.Empty(t, set.Users("r2"))
}

package client

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// Composer holds the text being written for one room. A failed submit keeps
// the draft and its clientMsgId, so submitting again cannot post twice.
type Composer struct {
	s      *ChatSession
	roomID string

	mu          sync.Mutex
	draft       string
	clientMsgID string
}

// Composer returns a composer for roomID
func (s *ChatSession) Composer(roomID string) *Composer {
	return &Composer{s: s, roomID: roomID}
}

// SetText replaces the draft and signals typing while it is not empty
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
	if text == "" {
		c.s.StopTyping()
		return
	}
	c.s.Keystroke(c.roomID)
}

// Draft returns the current draft
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit sends the draft as a text message and clears it on success
func (c *Composer) Submit(ctx context.Context) (models.ChatMessage, error) {
	c.mu.Lock()
	text := c.draft
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return models.ChatMessage{}, chat.E(chat.KindInvalidArgument, "send", "message is empty")
	}
	if c.clientMsgID == "" {
		c.clientMsgID = uuid.New().String()
	}
	id := c.clientMsgID
	c.mu.Unlock()

	msg, err := c.s.Send(ctx, c.roomID, models.MessageDraft{ClientMsgID: id, Type: models.MessageText, Content: &text})
	if err != nil {
		return models.ChatMessage{}, err
	}

	c.mu.Lock()
	if c.draft == text {
		c.draft = ""
	}
	c.clientMsgID = ""
	c.mu.Unlock()
	return msg, nil
}

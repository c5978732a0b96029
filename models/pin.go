package models

import "time"

// PinnedMessage holds the structure for the pinnedmessages collection in mongo
type PinnedMessage struct {
	ID            string       `json:"id" bson:"_id"`
	RoomID        string       `json:"roomId" bson:"roomId"`
	MessageID     string       `json:"messageId" bson:"messageId"`
	PinnedBy      string       `json:"pinnedBy" bson:"pinnedBy"`
	PinnedAt      time.Time    `json:"pinnedAt" bson:"pinnedAt"`
	InvalidatedAt *time.Time   `json:"invalidatedAt,omitempty" bson:"invalidatedAt,omitempty"`
	Message       *ChatMessage `json:"message,omitempty" bson:"-"`
}

// Inert reports whether the pin points at a message that no longer renders
func (p PinnedMessage) Inert() bool {
	return p.InvalidatedAt != nil || (p.Message != nil && p.Message.IsDeleted)
}

// PinRequest is the body for pinning a message over REST
type PinRequest struct {
	MessageID string `json:"messageId"`
}

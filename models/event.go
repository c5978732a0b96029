package models

import (
	"encoding/json"
	"time"
)

// Outbound events, client to server
const (
	EventRoomJoin      = "room:join"
	EventRoomLeave     = "room:leave"
	EventRoomRead      = "room:read"
	EventMessageSend   = "message:send"
	EventMessageDelete = "message:delete_own"
	EventMessagePin    = "message:pin"
	EventMessageUnpin  = "message:unpin"
	EventTypingStart   = "typing:start"
	EventTypingStop    = "typing:stop"
)

// Inbound events, server to client
const (
	EventMessageNew      = "message:new"
	EventMessageDeleted  = "message:deleted"
	EventMessagePinned   = "message:pinned"
	EventMessageUnpinned = "message:unpinned"
	EventUserJoined      = "room:user_joined"
	EventUserLeft        = "room:user_left"
	EventUserRead        = "room:user_read"
	EventKicked          = "room:kicked"
	EventApproved        = "room:approved"
	EventUserTyping      = "typing:user_typing"
	EventUserStopped     = "typing:user_stopped"
	EventStatusChanged   = "user:status_changed"
	EventRoleChanged     = "room:role_changed"
	EventError           = "error"
	EventAck             = "ack"
)

// Envelope is a single frame on the live control plane. Ack carries the
// correlation id of a request that expects an acknowledgement.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// AckFrame answers an Envelope that carried a correlation id
type AckFrame struct {
	Ack   string          `json:"ack"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *MessageError   `json:"error,omitempty"`
}

// RoomRef is the payload for events that only name a room
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// LeavePayload is the payload of room:leave. Permanent leaves the membership,
// otherwise only the connection's subscription is dropped.
type LeavePayload struct {
	RoomID    string `json:"roomId"`
	Permanent bool   `json:"permanent,omitempty"`
}

// SendPayload is the payload of message:send
type SendPayload struct {
	RoomID string `json:"roomId"`
	MessageDraft
}

// MessageRef names a message inside a room
type MessageRef struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

// PinRef names a pin inside a room
type PinRef struct {
	RoomID string `json:"roomId"`
	PinID  string `json:"pinId"`
}

// MessageNewEvent carries a freshly persisted message
type MessageNewEvent struct {
	RoomID  string      `json:"roomId"`
	Message ChatMessage `json:"message"`
}

// MessageDeletedEvent is emitted for single deletes (MessageID) and bulk deletes (MessageIDs)
type MessageDeletedEvent struct {
	RoomID     string   `json:"roomId"`
	MessageID  string   `json:"messageId,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty"`
}

// IDs returns every message id named by the event regardless of its shape
func (e MessageDeletedEvent) IDs() []string {
	if e.MessageID == "" {
		return e.MessageIDs
	}
	return append([]string{e.MessageID}, e.MessageIDs...)
}

// PinEvent is emitted when a pin is added or removed
type PinEvent struct {
	RoomID string        `json:"roomId"`
	Pin    PinnedMessage `json:"pin"`
}

// MemberEvent is emitted when a participant joins, leaves or is approved
type MemberEvent struct {
	RoomID      string       `json:"roomId"`
	UserID      string       `json:"userId"`
	Participant *Participant `json:"participant,omitempty"`
}

// ReadEvent is emitted when a participant advances their read cursor
type ReadEvent struct {
	RoomID     string    `json:"roomId"`
	UserID     string    `json:"userId"`
	LastReadAt time.Time `json:"lastReadAt"`
}

// KickEvent is emitted when a participant is kicked
type KickEvent struct {
	RoomID string  `json:"roomId"`
	UserID string  `json:"userId"`
	Reason *string `json:"reason,omitempty"`
}

// TypingEvent is emitted when a participant starts or stops typing
type TypingEvent struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// StatusEvent tells users sharing a room with UserID that they joined it online or that their last connection closed
type StatusEvent struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// ErrorEvent is pushed when an inbound event cannot be processed and had no ack id
type ErrorEvent struct {
	Event   string `json:"event"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ReadAck is returned for room:read
type ReadAck struct {
	RoomID     string    `json:"roomId"`
	LastReadAt time.Time `json:"lastReadAt"`
}

package models

import "time"

// MessageType is the payload kind of a chat message
type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageFile   MessageType = "FILE"
	MessageSystem MessageType = "SYSTEM"
)

// ChatMessage holds the structure for the chatmessages collection in mongo.
// Messages are immutable except for IsDeleted.
type ChatMessage struct {
	ID          string      `json:"id" bson:"_id"`
	RoomID      string      `json:"roomId" bson:"roomId"`
	SenderID    string      `json:"senderId" bson:"senderId"`
	SenderName  string      `json:"senderName,omitempty" bson:"senderName,omitempty"`
	SenderType  ActorKind   `json:"senderType" bson:"senderType"`
	Type        MessageType `json:"type" bson:"type"`
	Content     *string     `json:"content,omitempty" bson:"content,omitempty"`
	FileURL     *string     `json:"fileUrl,omitempty" bson:"fileUrl,omitempty"`
	FileName    *string     `json:"fileName,omitempty" bson:"fileName,omitempty"`
	FileSize    *int64      `json:"fileSize,omitempty" bson:"fileSize,omitempty"`
	IsDeleted   bool        `json:"isDeleted" bson:"isDeleted"`
	ClientMsgID string      `json:"clientMsgId,omitempty" bson:"clientMsgId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
}

// MessageDraft is what a sender submits; the server assigns id and createdAt
type MessageDraft struct {
	ClientMsgID string      `json:"clientMsgId,omitempty"`
	Type        MessageType `json:"type"`
	Content     *string     `json:"content,omitempty"`
	FileURL     *string     `json:"fileUrl,omitempty"`
	FileName    *string     `json:"fileName,omitempty"`
	FileSize    *int64      `json:"fileSize,omitempty"`
}

// HistoryQuery holds the cursor and filters for a history page
type HistoryQuery struct {
	Cursor         string
	Limit          int
	Keyword        string
	SenderID       string
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
}

// HistoryPage is one newest-first page of room history
type HistoryPage struct {
	Messages   []ChatMessage `json:"messages"`
	NextCursor string        `json:"nextCursor,omitempty"`
	HasMore    bool          `json:"hasMore"`
}

// BulkDeleteRequest is the body for the bulk delete endpoint
type BulkDeleteRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// BulkDeleteResponse reports the outcome of a bulk delete
type BulkDeleteResponse struct {
	MessageIDs []string `json:"messageIds"`
	Deleted    int64    `json:"deleted"`
}

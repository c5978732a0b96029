package models

import (
	"strings"
	"time"
)

// RoomType is the conversation shape of a room
type RoomType string

const (
	RoomOneToN   RoomType = "ONE_TO_N"
	RoomOneToOne RoomType = "ONE_TO_ONE"
	RoomTwoWay   RoomType = "TWO_WAY"
)

// RoomCategory is the advisory vertical a room belongs to
type RoomCategory string

const (
	CategoryStock RoomCategory = "STOCK"
	CategoryCoin  RoomCategory = "COIN"
)

// JoinType controls whether joining needs moderator approval
type JoinType string

const (
	JoinFree     JoinType = "FREE"
	JoinApproval JoinType = "APPROVAL"
)

// ChatRoom holds the structure for the chatrooms collection in mongo
type ChatRoom struct {
	ID              string       `json:"id" bson:"_id"`
	Type            RoomType     `json:"type" bson:"type"`
	Category        RoomCategory `json:"category" bson:"category"`
	Name            string       `json:"name" bson:"name"`
	IsActive        bool         `json:"isActive" bson:"isActive"`
	MaxParticipants *int         `json:"maxParticipants,omitempty" bson:"maxParticipants,omitempty"`
	Notice          *string      `json:"notice,omitempty" bson:"notice,omitempty"`
	JoinType        JoinType     `json:"joinType" bson:"joinType"`
	CreatedAt       time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// RequiresName reports whether rooms of this type must carry a display name
func (t RoomType) RequiresName() bool {
	return t == RoomOneToN || t == RoomTwoWay
}

// Valid reports whether t is a known room type
func (t RoomType) Valid() bool {
	switch t {
	case RoomOneToN, RoomOneToOne, RoomTwoWay:
		return true
	}
	return false
}

// Valid reports whether c is a known category
func (c RoomCategory) Valid() bool {
	return c == CategoryStock || c == CategoryCoin
}

// Valid reports whether j is a known join type
func (j JoinType) Valid() bool {
	return j == JoinFree || j == JoinApproval
}

// Validate returns a message describing the first invalid field, or "" if the room is well formed
func (r ChatRoom) Validate() string {
	switch {
	case !r.Type.Valid():
		return "unknown room type"
	case !r.Category.Valid():
		return "unknown room category"
	case !r.JoinType.Valid():
		return "unknown join type"
	case r.Type.RequiresName() && strings.TrimSpace(r.Name) == "":
		return "name is required for this room type"
	case r.MaxParticipants != nil && *r.MaxParticipants < 1:
		return "maxParticipants must be positive"
	}
	return ""
}

// RoomList is the paginated response for the room list endpoint
type RoomList struct {
	Rooms []ChatRoom `json:"rooms"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// RoomFilter narrows the room list endpoint
type RoomFilter struct {
	Search   string
	Type     RoomType
	Category RoomCategory
	IsActive *bool
	Page     int
	Limit    int
}

// CreateRoomRequest is the body for creating a room together with its owner
type CreateRoomRequest struct {
	Type            RoomType     `json:"type"`
	Category        RoomCategory `json:"category"`
	Name            string       `json:"name"`
	MaxParticipants *int         `json:"maxParticipants,omitempty"`
	Notice          *string      `json:"notice,omitempty"`
	JoinType        JoinType     `json:"joinType"`
	OwnerID         string       `json:"ownerId"`
	OwnerName       string       `json:"ownerName"`
}

// NoticeRequest is the body for editing a room notice
type NoticeRequest struct {
	Notice *string `json:"notice"`
}

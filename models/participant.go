package models

import "time"

// OwnerType is the role a participant holds inside a room
type OwnerType string

const (
	OwnerTypeOwner     OwnerType = "OWNER"
	OwnerTypeViceOwner OwnerType = "VICE_OWNER"
	OwnerTypeMember    OwnerType = "MEMBER"
)

// Valid reports whether o is a known role
func (o OwnerType) Valid() bool {
	switch o {
	case OwnerTypeOwner, OwnerTypeViceOwner, OwnerTypeMember:
		return true
	}
	return false
}

// ParticipantStatus is the membership state of a participant record.
// A user without any record is NotJoined.
type ParticipantStatus string

const (
	StatusPending ParticipantStatus = "PENDING"
	StatusActive  ParticipantStatus = "ACTIVE"
	StatusLeft    ParticipantStatus = "LEFT"
	StatusKicked  ParticipantStatus = "KICKED"
)

// Participant holds the structure for the participants collection in mongo
type Participant struct {
	ID              string            `json:"id" bson:"_id"`
	RoomID          string            `json:"roomId" bson:"roomId"`
	UserID          string            `json:"userId" bson:"userId"`
	DisplayName     string            `json:"displayName" bson:"displayName"`
	OwnerType       OwnerType         `json:"ownerType" bson:"ownerType"`
	Status          ParticipantStatus `json:"status" bson:"status"`
	JoinedAt        time.Time         `json:"joinedAt" bson:"joinedAt"`
	LeftAt          *time.Time        `json:"leftAt,omitempty" bson:"leftAt,omitempty"`
	LastReadAt      *time.Time        `json:"lastReadAt,omitempty" bson:"lastReadAt,omitempty"`
	IsKicked        bool              `json:"isKicked" bson:"isKicked"`
	KickReason      *string           `json:"kickReason,omitempty" bson:"kickReason,omitempty"`
	KickedFrom      ParticipantStatus `json:"-" bson:"kickedFrom,omitempty"`
	IsShadowBanned  bool              `json:"isShadowBanned" bson:"isShadowBanned"`
	ShadowBanReason *string           `json:"shadowBanReason,omitempty" bson:"shadowBanReason,omitempty"`
}

// IsActive reports whether the participant currently counts towards the room
func (p Participant) IsActive() bool {
	return p.Status == StatusActive && !p.IsKicked
}

// IsModerator reports whether the participant's role grants moderation rights
func (p Participant) IsModerator() bool {
	return p.IsActive() && (p.OwnerType == OwnerTypeOwner || p.OwnerType == OwnerTypeViceOwner)
}

// ParticipantFilter narrows the participant list endpoint
type ParticipantFilter struct {
	Search         string
	OwnerType      OwnerType
	IsKicked       *bool
	IsShadowBanned *bool
	// IncludeLeft also returns records that ended with a leave
	IncludeLeft bool
}

// JoinResult is returned when an actor joins a room
type JoinResult struct {
	Participant *Participant `json:"participant,omitempty"`
	IsPending   bool         `json:"isPending"`
}

// ModerationRequest is the optional body for kick and shadow-ban
type ModerationRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// RoleRequest is the body for changing a participant's role
type RoleRequest struct {
	OwnerType OwnerType `json:"ownerType"`
}

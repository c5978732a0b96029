package chat

import (
	"time"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// Role is the effective authority of an actor inside one room
type Role int

const (
	RoleNone Role = iota
	RolePending
	RoleMember
	RoleViceOwner
	RoleOwner
	// RoleOperator is held by ADMIN actors in every room
	RoleOperator
)

// RoleOf derives the actor's role from their current participant record, which may be nil
func RoleOf(actor models.ActorIdentity, p *models.Participant) Role {
	if actor.IsAdmin() {
		return RoleOperator
	}
	if p == nil || p.IsKicked {
		return RoleNone
	}
	switch p.Status {
	case models.StatusPending:
		return RolePending
	case models.StatusActive:
	default:
		return RoleNone
	}
	switch p.OwnerType {
	case models.OwnerTypeOwner:
		return RoleOwner
	case models.OwnerTypeViceOwner:
		return RoleViceOwner
	}
	return RoleMember
}

// CanModerate reports whether the role may kick, shadow-ban, pin and edit the notice
func CanModerate(r Role) bool {
	return r >= RoleViceOwner
}

// CanParticipate reports whether the role may send, read and type in the room
func CanParticipate(r Role) bool {
	return r >= RoleMember
}

func rank(o models.OwnerType) Role {
	switch o {
	case models.OwnerTypeOwner:
		return RoleOwner
	case models.OwnerTypeViceOwner:
		return RoleViceOwner
	}
	return RoleMember
}

// outranks reports whether an actor with role r may act on a participant holding o.
// Nobody outranks the owner.
func outranks(r Role, o models.OwnerType) bool {
	return o != models.OwnerTypeOwner && r > rank(o)
}

// Join returns the participant record that results from actor asking to join room.
// current is the actor's latest record, or nil when they never joined. changed is
// false when the actor is already Pending or Active. A Left record is never reused;
// the returned record carries id instead, and keeps any shadow-ban of the old one.
func Join(room models.ChatRoom, current *models.Participant, actor models.ActorIdentity, id string, now time.Time) (next models.Participant, changed bool, err error) {
	const op = "join"
	if !room.IsActive {
		return models.Participant{}, false, E(KindInvalidState, op, "room is not active")
	}
	if current != nil {
		switch {
		case current.IsKicked || current.Status == models.StatusKicked:
			return *current, false, E(KindForbidden, op, "kicked from room")
		case current.Status == models.StatusActive || current.Status == models.StatusPending:
			return *current, false, nil
		}
	}
	status := models.StatusActive
	if room.JoinType == models.JoinApproval {
		status = models.StatusPending
	}
	next = models.Participant{
		ID:          id,
		RoomID:      room.ID,
		UserID:      actor.ID,
		DisplayName: actor.DisplayName,
		OwnerType:   models.OwnerTypeMember,
		Status:      status,
		JoinedAt:    now,
	}
	if current != nil {
		next.IsShadowBanned = current.IsShadowBanned
		next.ShadowBanReason = current.ShadowBanReason
	}
	return next, true, nil
}

// Leave moves p to Left. The owner can never leave.
func Leave(p *models.Participant, now time.Time) error {
	const op = "leave"
	if p == nil {
		return E(KindInvalidState, op, "not a participant")
	}
	if p.OwnerType == models.OwnerTypeOwner {
		return E(KindInvalidState, op, "owner cannot leave the room")
	}
	if p.Status != models.StatusActive && p.Status != models.StatusPending {
		return E(KindInvalidState, op, "participant is "+string(p.Status))
	}
	p.Status = models.StatusLeft
	p.LeftAt = &now
	return nil
}

// Approve moves a Pending participant to Active
func Approve(actor Role, p *models.Participant) error {
	const op = "approve"
	if !CanModerate(actor) {
		return E(KindForbidden, op, "moderator role required")
	}
	if p.Status != models.StatusPending {
		return E(KindInvalidState, op, "participant is not pending")
	}
	p.Status = models.StatusActive
	return nil
}

// Kick moves p to Kicked. Moderators can only kick participants they outrank.
func Kick(actor Role, p *models.Participant, reason *string) error {
	const op = "kick"
	if !CanModerate(actor) {
		return E(KindForbidden, op, "moderator role required")
	}
	if !outranks(actor, p.OwnerType) {
		return E(KindForbidden, op, "cannot kick a participant of equal or higher role")
	}
	if p.IsKicked {
		return E(KindInvalidState, op, "participant is already kicked")
	}
	if p.Status != models.StatusActive && p.Status != models.StatusPending {
		return E(KindInvalidState, op, "participant is "+string(p.Status))
	}
	p.IsKicked = true
	p.KickedFrom = p.Status
	p.Status = models.StatusKicked
	p.KickReason = reason
	return nil
}

// Unkick is the only way out of Kicked. The participant returns to the status
// they were kicked from, so a kicked Pending participant still awaits approval.
func Unkick(actor Role, p *models.Participant) error {
	const op = "unkick"
	if !CanModerate(actor) {
		return E(KindForbidden, op, "moderator role required")
	}
	if !p.IsKicked {
		return E(KindInvalidState, op, "participant is not kicked")
	}
	p.IsKicked = false
	p.Status = models.StatusActive
	if p.KickedFrom == models.StatusPending {
		p.Status = models.StatusPending
	}
	p.KickedFrom = ""
	p.KickReason = nil
	return nil
}

// ShadowBan flags p so their messages stop reaching other participants
func ShadowBan(actor Role, p *models.Participant, reason *string) error {
	const op = "shadowBan"
	if !CanModerate(actor) {
		return E(KindForbidden, op, "moderator role required")
	}
	if !outranks(actor, p.OwnerType) {
		return E(KindForbidden, op, "cannot shadow-ban a participant of equal or higher role")
	}
	p.IsShadowBanned = true
	p.ShadowBanReason = reason
	return nil
}

// UnshadowBan clears the shadow-ban flag
func UnshadowBan(actor Role, p *models.Participant) error {
	if !CanModerate(actor) {
		return E(KindForbidden, "unshadowBan", "moderator role required")
	}
	p.IsShadowBanned = false
	p.ShadowBanReason = nil
	return nil
}

// ChangeRole sets p's role. Only the owner or an operator may change roles.
// Promoting to OWNER is a transfer; the caller must demote the previous owner.
func ChangeRole(actor Role, p *models.Participant, to models.OwnerType) error {
	const op = "changeRole"
	if actor < RoleOwner {
		return E(KindForbidden, op, "owner role required")
	}
	if !to.Valid() {
		return E(KindInvalidArgument, op, "unknown role "+string(to))
	}
	if !p.IsActive() {
		return E(KindInvalidState, op, "participant is not active")
	}
	if p.OwnerType == models.OwnerTypeOwner {
		return E(KindInvalidState, op, "transfer ownership by promoting another participant")
	}
	p.OwnerType = to
	return nil
}

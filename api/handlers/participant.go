package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/advisory-chat-api/api"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/rooms"
)

// Participant exported for testing purposes
type Participant struct {
	Svc *rooms.Service
}

// ParticipantsHandler lists the room's participants
func (h Participant) ParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	f := models.ParticipantFilter{
		Search:    r.URL.Query().Get("search"),
		OwnerType: models.OwnerType(r.URL.Query().Get("ownerType")),
	}
	if f.OwnerType != "" && !f.OwnerType.Valid() {
		writeError(w, "invalid ownerType", errArg("ownerType", "unknown role"))
		return
	}
	var err error
	if f.IsKicked, err = queryBool(r, "isKicked"); err != nil {
		writeError(w, "invalid isKicked", err)
		return
	}
	if f.IsShadowBanned, err = queryBool(r, "isShadowBanned"); err != nil {
		writeError(w, "invalid isShadowBanned", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	list, err := h.Svc.Participants(ctx, a, mux.Vars(r)["roomId"], f)
	if err != nil {
		writeError(w, "failed to list participants", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type moderationFunc func(ctx context.Context, actor models.ActorIdentity, roomID, userID string) (*models.Participant, error)

// moderate runs one moderation action on the participant named in the path
// and answers with the updated record
func moderate(w http.ResponseWriter, r *http.Request, message string, fn moderationFunc) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	vars := mux.Vars(r)
	p, err := fn(ctx, a, vars["roomId"], vars["userId"])
	if err != nil {
		writeError(w, message, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// withReason binds the optional reason from the request body
func withReason(r *http.Request, fn func(context.Context, models.ActorIdentity, string, string, *string) (*models.Participant, error)) (moderationFunc, error) {
	var req models.ModerationRequest
	if err := decodeBody(r, &req, true); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a models.ActorIdentity, roomID, userID string) (*models.Participant, error) {
		return fn(ctx, a, roomID, userID, req.Reason)
	}, nil
}

// ApproveHandler activates a pending participant
func (h Participant) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	moderate(w, r, "failed to approve participant", h.Svc.Approve)
}

// KickHandler kicks a participant with an optional reason
func (h Participant) KickHandler(w http.ResponseWriter, r *http.Request) {
	fn, err := withReason(r, h.Svc.Kick)
	if err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	moderate(w, r, "failed to kick participant", fn)
}

// UnkickHandler lets a kicked participant back in
func (h Participant) UnkickHandler(w http.ResponseWriter, r *http.Request) {
	moderate(w, r, "failed to unkick participant", h.Svc.Unkick)
}

// ShadowBanHandler hides a participant's messages from everyone else
func (h Participant) ShadowBanHandler(w http.ResponseWriter, r *http.Request) {
	fn, err := withReason(r, h.Svc.ShadowBan)
	if err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	moderate(w, r, "failed to shadow-ban participant", fn)
}

// UnshadowBanHandler lifts a shadow-ban
func (h Participant) UnshadowBanHandler(w http.ResponseWriter, r *http.Request) {
	moderate(w, r, "failed to lift shadow-ban", h.Svc.UnshadowBan)
}

// ChangeRoleHandler sets a participant's role
func (h Participant) ChangeRoleHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RoleRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	moderate(w, r, "failed to change role", func(ctx context.Context, a models.ActorIdentity, roomID, userID string) (*models.Participant, error) {
		return h.Svc.ChangeRole(ctx, a, roomID, userID, req.OwnerType)
	})
}

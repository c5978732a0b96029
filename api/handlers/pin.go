package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/advisory-chat-api/api"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/rooms"
)

// Pin exported for testing purposes
type Pin struct {
	Svc *rooms.Service
}

// PinsHandler lists the room's pins, newest first
func (h Pin) PinsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	pins, err := h.Svc.Pins(ctx, a, mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, "failed to list pins", err)
		return
	}
	writeJSON(w, http.StatusOK, pins)
}

// PinHandler pins the message named in the body
func (h Pin) PinHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req models.PinRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	if req.MessageID == "" {
		writeError(w, "failed to pin message", errArg("messageId", "is required"))
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	pin, err := h.Svc.Pin(ctx, a, mux.Vars(r)["roomId"], req.MessageID)
	if err != nil {
		writeError(w, "failed to pin message", err)
		return
	}
	writeJSON(w, http.StatusCreated, pin)
}

// UnpinHandler removes a pin
func (h Pin) UnpinHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	vars := mux.Vars(r)
	ref := models.PinRef{RoomID: vars["roomId"], PinID: vars["pinId"]}
	if err := h.Svc.Unpin(ctx, a, ref.RoomID, ref.PinID); err != nil {
		writeError(w, "failed to unpin message", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

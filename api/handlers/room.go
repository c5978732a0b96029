package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/advisory-chat-api/api"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/rooms"
)

// Room exported for testing purposes
type Room struct {
	Svc *rooms.Service
}

// ListRoomsHandler returns a page of rooms matching the query filters
func (h Room) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := models.RoomFilter{
		Search:   q.Get("search"),
		Type:     models.RoomType(q.Get("type")),
		Category: models.RoomCategory(q.Get("category")),
	}
	var err error
	if f.IsActive, err = queryBool(r, "isActive"); err != nil {
		writeError(w, "invalid isActive", err)
		return
	}
	if f.Page, err = queryInt(r, "page"); err != nil {
		writeError(w, "invalid page", err)
		return
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, "invalid limit", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	list, err := h.Svc.ListRooms(ctx, a, f)
	if err != nil {
		writeError(w, "failed to list rooms", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateRoomHandler creates a room together with its owner
func (h Room) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req models.CreateRoomRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	room, err := h.Svc.CreateRoom(ctx, a, req)
	if err != nil {
		writeError(w, "failed to create room", err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// RoomByIDHandler returns a single room
func (h Room) RoomByIDHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	room, err := h.Svc.GetRoom(ctx, a, mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, "failed to get room", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// UpdateNoticeHandler replaces or clears the room notice
func (h Room) UpdateNoticeHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req models.NoticeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	room, err := h.Svc.UpdateNotice(ctx, a, mux.Vars(r)["roomId"], req.Notice)
	if err != nil {
		writeError(w, "failed to update notice", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeactivateRoomHandler soft-deletes a room
func (h Room) DeactivateRoomHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	roomID := mux.Vars(r)["roomId"]
	if err := h.Svc.Deactivate(ctx, a, roomID); err != nil {
		writeError(w, "failed to deactivate room", err)
		return
	}
	writeJSON(w, http.StatusOK, models.RoomRef{RoomID: roomID})
}

// JoinRoomHandler joins the room, or requests to join an APPROVAL room
func (h Room) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := h.Svc.Join(ctx, a, mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, "failed to join room", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LeaveRoomHandler ends the caller's membership
func (h Room) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	roomID := mux.Vars(r)["roomId"]
	if err := h.Svc.Leave(ctx, a, roomID); err != nil {
		writeError(w, "failed to leave room", err)
		return
	}
	writeJSON(w, http.StatusOK, models.RoomRef{RoomID: roomID})
}

// MarkReadHandler advances the caller's read cursor
func (h Room) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	ack, err := h.Svc.MarkRead(ctx, a, mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, "failed to mark room read", err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// ReadStatusHandler returns the read snapshot used for unread counts
func (h Room) ReadStatusHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	info, err := h.Svc.ReadStatus(ctx, a, mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, "failed to get read status", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/advisory-chat-api/api"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/rooms"
)

// Message exported for testing purposes
type Message struct {
	Svc *rooms.Service
}

// HistoryHandler returns one newest-first page of room history
func (h Message) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	hq := models.HistoryQuery{
		Cursor:   q.Get("cursor"),
		Keyword:  q.Get("keyword"),
		SenderID: q.Get("senderId"),
	}
	var err error
	if hq.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, "invalid limit", err)
		return
	}
	if hq.From, err = queryTime(r, "from"); err != nil {
		writeError(w, "invalid from", err)
		return
	}
	if hq.To, err = queryTime(r, "to"); err != nil {
		writeError(w, "invalid to", err)
		return
	}
	includeDeleted, err := queryBool(r, "includeDeleted")
	if err != nil {
		writeError(w, "invalid includeDeleted", err)
		return
	}
	hq.IncludeDeleted = includeDeleted != nil && *includeDeleted

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	page, err := h.Svc.History(ctx, a, mux.Vars(r)["roomId"], hq)
	if err != nil {
		writeError(w, "failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// DeleteMessageHandler soft-deletes one message
func (h Message) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	vars := mux.Vars(r)
	ref := models.MessageRef{RoomID: vars["roomId"], MessageID: vars["messageId"]}
	if err := h.Svc.DeleteMessage(ctx, a, ref.RoomID, ref.MessageID); err != nil {
		writeError(w, "failed to delete message", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// BulkDeleteHandler soft-deletes every listed message or none of them
func (h Message) BulkDeleteHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req models.BulkDeleteRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	n, err := h.Svc.BulkDelete(ctx, a, mux.Vars(r)["roomId"], req.MessageIDs)
	if err != nil {
		writeError(w, "failed to delete messages", err)
		return
	}
	writeJSON(w, http.StatusOK, models.BulkDeleteResponse{MessageIDs: req.MessageIDs, Deleted: n})
}

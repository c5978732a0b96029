package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/realtime"
)

// WebSocket upgrades authenticated requests onto the live control plane
type WebSocket struct {
	Gateway *realtime.Gateway
}

// ServeHandler blocks for the lifetime of the connection
func (h WebSocket) ServeHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	// the upgrader has already answered the request when it fails
	if err := h.Gateway.Serve(w, r, a); err != nil {
		zap.S().Warnw("websocket upgrade failed", "actorId", a.ID, "error", err)
	}
}

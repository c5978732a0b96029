package handlers

import (
	"net/http"

	"github.com/linesmerrill/advisory-chat-api/api"
	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/realtime"
)

// OperatorMetrics is the body of the metrics endpoint
type OperatorMetrics struct {
	Realtime realtime.Stats     `json:"realtime"`
	HTTP     api.MetricsSummary `json:"http"`
}

// Operator serves process diagnostics to ADMIN actors
type Operator struct {
	Hub     *realtime.Hub
	Metrics *api.MetricsCollector
}

// MetricsHandler returns hub counts and per-route request metrics
func (h Operator) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if !a.IsAdmin() {
		writeError(w, "failed to get metrics", chat.E(chat.KindForbidden, "metrics", "operator role required"))
		return
	}
	writeJSON(w, http.StatusOK, OperatorMetrics{Realtime: h.Hub.Stats(), HTTP: h.Metrics.Summary()})
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// ConnectionCounter reports how many live connections the process holds
type ConnectionCounter interface {
	Connections() int
}

// New creates a new mux router and all the routes
func New(conns ConnectionCounter) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthCheckHandler(conns)).Methods("GET")

	return r
}

func healthCheckHandler(conns ConnectionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := models.HealthCheckResponse{Alive: true}
		if conns != nil {
			resp.Connections = conns.Connections()
		}
		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/api"
	"github.com/linesmerrill/advisory-chat-api/config"
	"github.com/linesmerrill/advisory-chat-api/databases"
	"github.com/linesmerrill/advisory-chat-api/realtime"
	"github.com/linesmerrill/advisory-chat-api/rooms"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router  *mux.Router
	Config  config.Config
	Hub     *realtime.Hub
	Service *rooms.Service
	Metrics *api.MetricsCollector
	Store   *databases.ChatStore

	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareAuth{Secret: []byte(a.Config.JWTSecret)}
	m.SetupGoGuardian()

	if a.Hub == nil {
		a.Hub = realtime.NewHub()
	}
	if a.Metrics == nil {
		a.Metrics = api.NewMetricsCollector()
	}

	r := api.New(a.Hub)
	r.Use(api.MetricsMiddleware(a.Metrics))

	room := Room{Svc: a.Service}
	msg := Message{Svc: a.Service}
	p := Participant{Svc: a.Service}
	pin := Pin{Svc: a.Service}
	ws := WebSocket{Gateway: realtime.NewGateway(a.Hub, a.Service, a.Config.AckTimeout)}
	ops := Operator{Hub: a.Hub, Metrics: a.Metrics}

	timeout := api.TimeoutMiddleware(a.Config.RequestTimeout)
	rest := func(h http.HandlerFunc) http.Handler {
		return api.Middleware(timeout(h))
	}

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/rooms", rest(room.ListRoomsHandler)).Methods("GET")
	apiCreate.Handle("/rooms", rest(room.CreateRoomHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}", rest(room.RoomByIDHandler)).Methods("GET")
	apiCreate.Handle("/rooms/{roomId}", rest(room.DeactivateRoomHandler)).Methods("DELETE")
	apiCreate.Handle("/rooms/{roomId}/notice", rest(room.UpdateNoticeHandler)).Methods("PATCH")
	apiCreate.Handle("/rooms/{roomId}/join", rest(room.JoinRoomHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/leave", rest(room.LeaveRoomHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/read", rest(room.MarkReadHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/read-status", rest(room.ReadStatusHandler)).Methods("GET")

	apiCreate.Handle("/rooms/{roomId}/messages", rest(msg.HistoryHandler)).Methods("GET")
	apiCreate.Handle("/rooms/{roomId}/messages/bulk-delete", rest(msg.BulkDeleteHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/messages/{messageId}", rest(msg.DeleteMessageHandler)).Methods("DELETE")

	apiCreate.Handle("/rooms/{roomId}/participants", rest(p.ParticipantsHandler)).Methods("GET")
	apiCreate.Handle("/rooms/{roomId}/participants/{userId}/approve", rest(p.ApproveHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/participants/{userId}/kick", rest(p.KickHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/participants/{userId}/unkick", rest(p.UnkickHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/participants/{userId}/shadow-ban", rest(p.ShadowBanHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/participants/{userId}/unshadow-ban", rest(p.UnshadowBanHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/participants/{userId}/role", rest(p.ChangeRoleHandler)).Methods("PUT")

	apiCreate.Handle("/rooms/{roomId}/pins", rest(pin.PinsHandler)).Methods("GET")
	apiCreate.Handle("/rooms/{roomId}/pins", rest(pin.PinHandler)).Methods("POST")
	apiCreate.Handle("/rooms/{roomId}/pins/{pinId}", rest(pin.UnpinHandler)).Methods("DELETE")

	apiCreate.Handle("/metrics", rest(ops.MetricsHandler)).Methods("GET")

	// browsers cannot set headers on a websocket handshake, so the token may ride in the query
	r.Handle("/ws", api.TokenFromQuery(api.Middleware(http.HandlerFunc(ws.ServeHandler)))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	zap.S().Info("advisory-chat-api has connected to the database")

	a.Store = databases.NewChatStore(a.dbHelper)
	if err := a.Store.EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to create indexes")
		return err
	}
	a.Hub = realtime.NewHub()
	a.Service = rooms.NewService(a.Store, a.Hub, rooms.NewLogAuditor(zap.L()))

	// initialize api router
	a.initializeRoutes()
	return nil
}

// LockDB returns the scheduler lock collection of the connected database
func (a *App) LockDB() databases.SchedulerLockDatabase {
	return databases.NewSchedulerLockDatabase(a.dbHelper)
}

// Close disconnects every live connection and then the database
func (a *App) Close(ctx context.Context) error {
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Package docs Advisory Chat API.
//
// Documentation of the Advisory Chat API. Live traffic uses the websocket
// at /ws; the routes below are the collaborator REST surface.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/advisory-chat-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the health of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/rooms rooms listRooms
// Lists rooms visible to the caller, paginated.
// responses:
//   200: roomListResponse
//   401: errorResponse

// A page of rooms
// swagger:response roomListResponse
type roomListResponseWrapper struct {
	// in:body
	Body models.RoomList
}

// swagger:route GET /api/v1/rooms/{roomId} rooms roomByID
// Gets a single room by id.
// responses:
//   200: roomResponse
//   404: errorResponse

// A single room
// swagger:response roomResponse
type roomResponseWrapper struct {
	// in:body
	Body models.ChatRoom
}

// swagger:parameters roomByID listMessages readStatus listPins
type roomIDParam struct {
	// in:path
	// required: true
	RoomID string `json:"roomId"`
}

// swagger:route GET /api/v1/rooms/{roomId}/messages messages listMessages
// Pages a room's history, newest first.
// responses:
//   200: historyResponse
//   403: errorResponse

// A page of messages and the cursor for the next older page
// swagger:response historyResponse
type historyResponseWrapper struct {
	// in:body
	Body models.HistoryPage
}

// swagger:route GET /api/v1/rooms/{roomId}/read-status rooms readStatus
// Gets the read cursors used to compute unread counts.
// responses:
//   200: readStatusResponse

// Read cursors of the room's active participants
// swagger:response readStatusResponse
type readStatusResponseWrapper struct {
	// in:body
	Body models.ReadInfo
}

// swagger:route GET /api/v1/rooms/{roomId}/pins pins listPins
// Lists the pins of a room.
// responses:
//   200: pinsResponse

// swagger:response pinsResponse
type pinsResponseWrapper struct {
	// in:body
	Body []models.PinnedMessage
}

// The error body shared by every route
// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// REST calls the collaborator endpoints under /api/v1
type REST struct {
	base       string
	credential string
	http       *http.Client
}

// NewREST builds a REST client from the session options
func NewREST(opts Options) *REST {
	opts = opts.withDefaults()
	return &REST{
		base:       strings.TrimSuffix(opts.BaseURL, "/") + "/api/v1",
		credential: opts.Credential,
		http:       opts.HTTPClient,
	}
}

func statusKind(code int) chat.Kind {
	switch code {
	case http.StatusUnauthorized:
		return chat.KindAuth
	case http.StatusForbidden:
		return chat.KindForbidden
	case http.StatusNotFound:
		return chat.KindNotFound
	case http.StatusConflict:
		return chat.KindInvalidState
	case http.StatusBadRequest:
		return chat.KindInvalidArgument
	case http.StatusGatewayTimeout:
		return chat.KindTimeout
	}
	return chat.KindUnknown
}

func (c *REST) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return chat.Wrap(chat.KindInvalidArgument, op, err)
		}
		rd = bytes.NewReader(b)
	}
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return chat.Wrap(chat.KindInvalidArgument, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return chat.Wrap(chat.KindTimeout, op, err)
		}
		return chat.Wrap(chat.KindConnectionLost, op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return chat.Wrap(chat.KindConnectionLost, op, err)
	}

	if resp.StatusCode >= 300 {
		kind := statusKind(resp.StatusCode)
		msg := http.StatusText(resp.StatusCode)
		var e models.ErrorMessageResponse
		if json.Unmarshal(data, &e) == nil && e.Response.Message != "" {
			msg = e.Response.Message
			if e.Response.Kind != "" {
				kind = chat.Kind(e.Response.Kind)
			}
		}
		return chat.E(kind, op, msg)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return chat.Wrap(chat.KindUnknown, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func roomPath(roomID string, parts ...string) string {
	p := "/rooms/" + url.PathEscape(roomID)
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// ListRooms fetches one page of the room list
func (c *REST) ListRooms(ctx context.Context, f models.RoomFilter) (models.RoomList, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	if f.IsActive != nil {
		q.Set("isActive", strconv.FormatBool(*f.IsActive))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var out models.RoomList
	err := c.do(ctx, "listRooms", http.MethodGet, "/rooms", q, nil, &out)
	return out, err
}

// Room fetches one room
func (c *REST) Room(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var out models.ChatRoom
	if err := c.do(ctx, "getRoom", http.MethodGet, roomPath(roomID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateNotice replaces a room's notice; nil clears it
func (c *REST) UpdateNotice(ctx context.Context, roomID string, notice *string) (*models.ChatRoom, error) {
	var out models.ChatRoom
	err := c.do(ctx, "updateNotice", http.MethodPatch, roomPath(roomID, "notice"), nil, models.NoticeRequest{Notice: notice}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches one newest-first page of a room's messages
func (c *REST) History(ctx context.Context, roomID string, hq models.HistoryQuery) (models.HistoryPage, error) {
	q := url.Values{}
	if hq.Cursor != "" {
		q.Set("cursor", hq.Cursor)
	}
	if hq.Limit > 0 {
		q.Set("limit", strconv.Itoa(hq.Limit))
	}
	if hq.Keyword != "" {
		q.Set("keyword", hq.Keyword)
	}
	if hq.SenderID != "" {
		q.Set("senderId", hq.SenderID)
	}
	if hq.From != nil {
		q.Set("from", hq.From.UTC().Format(time.RFC3339Nano))
	}
	if hq.To != nil {
		q.Set("to", hq.To.UTC().Format(time.RFC3339Nano))
	}
	if hq.IncludeDeleted {
		q.Set("includeDeleted", "true")
	}
	var out models.HistoryPage
	err := c.do(ctx, "loadHistory", http.MethodGet, roomPath(roomID, "messages"), q, nil, &out)
	return out, err
}

// Participants lists a room's participants
func (c *REST) Participants(ctx context.Context, roomID string, f models.ParticipantFilter) ([]models.Participant, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.OwnerType != "" {
		q.Set("ownerType", string(f.OwnerType))
	}
	if f.IsKicked != nil {
		q.Set("isKicked", strconv.FormatBool(*f.IsKicked))
	}
	if f.IsShadowBanned != nil {
		q.Set("isShadowBanned", strconv.FormatBool(*f.IsShadowBanned))
	}
	var out []models.Participant
	err := c.do(ctx, "listParticipants", http.MethodGet, roomPath(roomID, "participants"), q, nil, &out)
	return out, err
}

// ReadStatus fetches the read snapshot of a room
func (c *REST) ReadStatus(ctx context.Context, roomID string) (*models.ReadInfo, error) {
	var out models.ReadInfo
	if err := c.do(ctx, "readStatus", http.MethodGet, roomPath(roomID, "read-status"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pins lists a room's pins
func (c *REST) Pins(ctx context.Context, roomID string) ([]models.PinnedMessage, error) {
	var out []models.PinnedMessage
	err := c.do(ctx, "listPins", http.MethodGet, roomPath(roomID, "pins"), nil, nil, &out)
	return out, err
}

// DeleteMessage soft-deletes a message
func (c *REST) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	return c.do(ctx, "deleteMessage", http.MethodDelete, roomPath(roomID, "messages", messageID), nil, nil, nil)
}

// BulkDelete soft-deletes every listed message or none of them
func (c *REST) BulkDelete(ctx context.Context, roomID string, messageIDs []string) (models.BulkDeleteResponse, error) {
	var out models.BulkDeleteResponse
	err := c.do(ctx, "bulkDelete", http.MethodPost, roomPath(roomID, "messages", "bulk-delete"), nil,
		models.BulkDeleteRequest{MessageIDs: messageIDs}, &out)
	return out, err
}

func (c *REST) moderate(ctx context.Context, op, roomID, userID, action string, body interface{}) (*models.Participant, error) {
	var out models.Participant
	if err := c.do(ctx, op, http.MethodPost, roomPath(roomID, "participants", userID, action), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Kick removes a participant from a room
func (c *REST) Kick(ctx context.Context, roomID, userID string, reason *string) (*models.Participant, error) {
	return c.moderate(ctx, "kick", roomID, userID, "kick", models.ModerationRequest{Reason: reason})
}

// Unkick lets a kicked participant back in
func (c *REST) Unkick(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	return c.moderate(ctx, "unkick", roomID, userID, "unkick", nil)
}

// ShadowBan hides a participant's future messages from everyone but themselves and operators
func (c *REST) ShadowBan(ctx context.Context, roomID, userID string, reason *string) (*models.Participant, error) {
	return c.moderate(ctx, "shadowBan", roomID, userID, "shadow-ban", models.ModerationRequest{Reason: reason})
}

// UnshadowBan lifts a shadow-ban
func (c *REST) UnshadowBan(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	return c.moderate(ctx, "unshadowBan", roomID, userID, "unshadow-ban", nil)
}

// Approve admits a pending participant
func (c *REST) Approve(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	return c.moderate(ctx, "approve", roomID, userID, "approve", nil)
}

// ChangeRole sets a participant's role
func (c *REST) ChangeRole(ctx context.Context, roomID, userID string, role models.OwnerType) (*models.Participant, error) {
	var out models.Participant
	err := c.do(ctx, "changeRole", http.MethodPut, roomPath(roomID, "participants", userID, "role"), nil,
		models.RoleRequest{OwnerType: role}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

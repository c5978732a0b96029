package databases

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// ErrBadCursor is returned when a history cursor cannot be decoded
var ErrBadCursor = errors.New("malformed history cursor")

// HistoryCursor is the position of the oldest message a client has seen
type HistoryCursor struct {
	CreatedAt time.Time
	ID        string
}

// EncodeCursor returns an opaque cursor pointing just before m
func EncodeCursor(m models.ChatMessage) string {
	raw := strconv.FormatInt(m.CreatedAt.UnixMilli(), 10) + ":" + m.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor
func DecodeCursor(s string) (HistoryCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return HistoryCursor{}, ErrBadCursor
	}
	ms, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return HistoryCursor{}, ErrBadCursor
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return HistoryCursor{}, ErrBadCursor
	}
	return HistoryCursor{CreatedAt: time.UnixMilli(n).UTC(), ID: id}, nil
}

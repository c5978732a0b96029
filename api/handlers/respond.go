package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/api"
	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/config"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// statusFor maps a chat error kind to the HTTP status it is reported with
func statusFor(err error) int {
	switch chat.KindOf(err) {
	case chat.KindAuth:
		return http.StatusUnauthorized
	case chat.KindForbidden:
		return http.StatusForbidden
	case chat.KindNotFound:
		return http.StatusNotFound
	case chat.KindInvalidState:
		return http.StatusConflict
	case chat.KindInvalidArgument:
		return http.StatusBadRequest
	case chat.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError reports err with the status its kind maps to. Errors outside the
// chat taxonomy are not echoed to the caller.
func writeError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.S().Errorw(message, "error", err)
		err = errInternal
	}
	config.ErrorStatus(message, status, w, err)
}

var errInternal = errors.New("internal error")

func errArg(field, msg string) error {
	return chat.E(chat.KindInvalidArgument, field, msg)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// actor returns the authenticated actor, writing a 401 when there is none
func actor(w http.ResponseWriter, r *http.Request) (models.ActorIdentity, bool) {
	a, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, chat.E(chat.KindAuth, "", "missing credentials"))
	}
	return a, ok
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched when optional is set.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return chat.E(chat.KindInvalidArgument, "decode", "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return chat.Wrap(chat.KindInvalidArgument, "decode", err)
	}
	return nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, chat.E(chat.KindInvalidArgument, key, "must be true or false")
	}
	return &b, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, chat.E(chat.KindInvalidArgument, key, "must be a non-negative integer")
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps and plain dates
func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, chat.E(chat.KindInvalidArgument, key, "must be an RFC 3339 timestamp or a date")
}

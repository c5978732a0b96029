// Package client is the lifecycle-scoped chat core used by the member app and
// the operator dashboard. A ChatSession owns one live connection, the state of
// the rooms it has open, and the REST calls made on their behalf.
package client

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/chat"
)

// Defaults applied by Options when a field is left zero
const (
	DefaultAckTimeout    = 10 * time.Second
	DefaultTypingRefresh = 2 * time.Second
	DefaultTypingIdle    = 3 * time.Second
	DefaultHistoryPage   = 50
)

// DefaultBackoff is the reconnect policy used when Options.Backoff is zero
var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second, MaxAttempts: 8}

// Options configures a ChatSession
type Options struct {
	// BaseURL is the http(s) root of the chat server, e.g. https://chat.example.com
	BaseURL string
	// Credential is the bearer token sent with every request
	Credential string

	AckTimeout    time.Duration
	Backoff       Backoff
	TypingTTL     time.Duration
	TypingRefresh time.Duration
	TypingIdle    time.Duration
	HistoryPage   int

	// Location is used for date dividers. Defaults to time.Local.
	Location *time.Location

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.AckTimeout <= 0 {
		o.AckTimeout = DefaultAckTimeout
	}
	if o.Backoff == (Backoff{}) {
		o.Backoff = DefaultBackoff
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = chat.DefaultTypingTTL
	}
	if o.TypingRefresh <= 0 {
		o.TypingRefresh = DefaultTypingRefresh
	}
	if o.TypingIdle <= 0 {
		o.TypingIdle = DefaultTypingIdle
	}
	if o.HistoryPage <= 0 {
		o.HistoryPage = DefaultHistoryPage
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	if o.Logger == nil {
		o.Logger = zap.L()
	}
	return o
}

// Backoff is a bounded exponential reconnect policy
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Delay returns the wait before the given zero-based attempt
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

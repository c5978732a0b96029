package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

const (
	writeWait = 10 * time.Second
	// the server pings every 54s
	readWait = 70 * time.Second
)

// State is the lifecycle of the live connection
type State string

const (
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
	// StateDisconnected is terminal until Retry
	StateDisconnected State = "DISCONNECTED"
	StateClosed       State = "CLOSED"
)

// StateChange is published on EventConnectionState
type StateChange struct {
	State State `json:"state"`
	// Reconnected is set when a dropped connection came back
	Reconnected bool      `json:"reconnected,omitempty"`
	Kind        chat.Kind `json:"kind,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type ackResult struct {
	frame models.AckFrame
	err   error
}

// Connection is one live websocket with reconnect and request/ack correlation.
// A single reader goroutine publishes inbound frames on the bus in arrival order.
type Connection struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	backoff Backoff
	timeout time.Duration
	bus     *Bus
	log     *zap.SugaredLogger

	writeMu sync.Mutex

	mu       sync.Mutex
	ws       *websocket.Conn
	state    State
	pending  map[string]chan ackResult
	retrying bool
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
	newAckID func() string
}

func newConnection(opts Options, bus *Bus) (*Connection, error) {
	u, err := socketURL(opts.BaseURL)
	if err != nil {
		return nil, chat.Wrap(chat.KindInvalidArgument, "connect", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+opts.Credential)
	return &Connection{
		url:      u,
		header:   header,
		dialer:   opts.Dialer,
		backoff:  opts.Backoff,
		timeout:  opts.AckTimeout,
		bus:      bus,
		log:      opts.Logger.Sugar(),
		state:    StateConnecting,
		pending:  make(map[string]chan ackResult),
		done:     make(chan struct{}),
		newAckID: func() string { return uuid.New().String() },
	}, nil
}

func socketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// dial opens a socket. A rejected or malformed handshake is an AUTH_ERROR,
// anything else is CONNECTION_LOST and may be retried.
func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	const op = "dial"
	ws, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err == nil {
		return ws, nil
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, chat.Wrap(chat.KindAuth, op, fmt.Errorf("handshake rejected with status %d", resp.StatusCode))
	}
	if errors.Is(err, websocket.ErrBadHandshake) && resp != nil && resp.StatusCode < 400 {
		return nil, chat.Wrap(chat.KindAuth, op, err)
	}
	return nil, chat.Wrap(chat.KindConnectionLost, op, err)
}

// connect dials with backoff until it succeeds, the handshake is rejected,
// the attempts run out or ctx ends.
func (c *Connection) connect(ctx context.Context, reconnect bool) error {
	var last error
	for attempt := 0; attempt < c.backoff.MaxAttempts; attempt++ {
		if attempt > 0 || reconnect {
			wait := c.backoff.Delay(attempt)
			if !reconnect {
				wait = c.backoff.Delay(attempt - 1)
			}
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return chat.Wrap(chat.KindTimeout, "connect", ctx.Err())
			case <-c.done:
				t.Stop()
				return chat.ErrConnectionLost
			}
		}
		ws, err := c.dial(ctx)
		if err == nil {
			if !c.attach(ws) {
				_ = ws.Close()
				return chat.E(chat.KindConnectionLost, "connect", "connection closed")
			}
			c.setState(StateChange{State: StateConnected, Reconnected: reconnect})
			return nil
		}
		last = err
		if !chat.Retryable(err) {
			return err
		}
		c.log.Warnw("connect attempt failed", "attempt", attempt+1, "error", err)
	}
	if last == nil {
		last = chat.E(chat.KindConnectionLost, "connect", "no connection attempts allowed")
	}
	return last
}

func (c *Connection) attach(ws *websocket.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.ws = ws
	c.wg.Add(1)
	c.mu.Unlock()

	ws.SetReadLimit(1 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	go c.readLoop(ws)
	return true
}

func (c *Connection) readLoop(ws *websocket.Conn) {
	defer c.wg.Done()
	var err error
	for {
		var data []byte
		_, data, err = ws.ReadMessage()
		if err != nil {
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
		c.dispatch(data)
	}
	c.lost(ws, err)
}

func (c *Connection) dispatch(data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warnw("dropping malformed frame", "error", err)
		return
	}
	if env.Event != models.EventAck {
		c.bus.Publish(env.Event, env.Data)
		return
	}
	var ack models.AckFrame
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		c.log.Warnw("dropping malformed ack", "error", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[ack.Ack]
	delete(c.pending, ack.Ack)
	c.mu.Unlock()
	if ok {
		ch <- ackResult{frame: ack}
	}
}

// lost tears down ws after its reader stopped and starts reconnecting
func (c *Connection) lost(ws *websocket.Conn, cause error) {
	_ = ws.Close()
	c.mu.Lock()
	if c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	closed := c.closed
	c.mu.Unlock()

	c.failPending(chat.Wrap(chat.KindConnectionLost, "connection", cause))
	if closed {
		return
	}
	c.log.Warnw("connection lost", "error", cause)
	c.reconnect()
}

func (c *Connection) reconnect() {
	c.mu.Lock()
	if c.retrying || c.closed {
		c.mu.Unlock()
		return
	}
	c.retrying = true
	c.wg.Add(1)
	c.mu.Unlock()

	c.setState(StateChange{State: StateReconnecting})
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-c.done:
				cancel()
			case <-ctx.Done():
			}
		}()
		err := c.connect(ctx, true)
		cancel()

		c.mu.Lock()
		c.retrying = false
		closed := c.closed
		c.mu.Unlock()
		if err != nil && !closed {
			c.log.Errorw("giving up reconnecting", "error", err)
			c.setState(StateChange{State: StateDisconnected, Kind: chat.KindOf(err), Error: err.Error()})
		}
	}()
}

// Retry resumes reconnecting after the connection gave up. It is a no-op in any other state.
func (c *Connection) Retry() {
	if c.State() != StateDisconnected {
		return
	}
	c.reconnect()
}

func (c *Connection) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan ackResult)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- ackResult{err: err}
	}
}

func (c *Connection) setState(ch StateChange) {
	c.mu.Lock()
	if c.closed && ch.State != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = ch.State
	c.mu.Unlock()
	c.bus.Emit(EventConnectionState, ch)
}

// State returns the current connection state
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) write(env models.Envelope) error {
	const op = "write"
	data, err := json.Marshal(env)
	if err != nil {
		return chat.Wrap(chat.KindInvalidArgument, op, err)
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return chat.E(chat.KindConnectionLost, op, "not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return chat.Wrap(chat.KindConnectionLost, op, err)
	}
	return nil
}

func encode(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

// Emit sends an event without waiting for an answer. Failures the server
// reports later arrive as error events.
func (c *Connection) Emit(event string, payload interface{}) error {
	data, err := encode(payload)
	if err != nil {
		return chat.Wrap(chat.KindInvalidArgument, event, err)
	}
	return c.write(models.Envelope{Event: event, Data: data})
}

// Request sends an event and waits for its ack. The wait is bounded by the
// ack timeout; a dropped connection fails it with CONNECTION_LOST. When out
// is not nil the ack payload is decoded into it.
func (c *Connection) Request(ctx context.Context, event string, payload, out interface{}) error {
	data, err := encode(payload)
	if err != nil {
		return chat.Wrap(chat.KindInvalidArgument, event, err)
	}
	id := c.newAckID()
	ch := make(chan ackResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return chat.E(chat.KindConnectionLost, event, "session closed")
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(models.Envelope{Event: event, Data: data, Ack: id}); err != nil {
		c.forget(id)
		return chat.Wrap(chat.KindOf(err), event, err)
	}

	t := time.NewTimer(c.timeout)
	defer t.Stop()
	var res ackResult
	select {
	case res = <-ch:
	case <-t.C:
		c.forget(id)
		return chat.E(chat.KindTimeout, event, "no acknowledgement from server")
	case <-ctx.Done():
		c.forget(id)
		return chat.Wrap(chat.KindTimeout, event, ctx.Err())
	}
	if res.err != nil {
		return res.err
	}
	if !res.frame.OK {
		return remoteError(event, res.frame.Error)
	}
	if out != nil && len(res.frame.Data) > 0 {
		if err := json.Unmarshal(res.frame.Data, out); err != nil {
			return chat.Wrap(chat.KindUnknown, event, err)
		}
	}
	return nil
}

func (c *Connection) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// remoteError rebuilds a taxonomy error from a wire error body
func remoteError(op string, me *models.MessageError) error {
	if me == nil {
		return chat.E(chat.KindUnknown, op, "request failed")
	}
	kind := chat.Kind(me.Kind)
	if kind == "" {
		kind = chat.KindUnknown
	}
	return chat.E(kind, op, me.Message)
}

// Close shuts the socket and stops reconnecting. Pending requests fail with CONNECTION_LOST.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	ws := c.ws
	c.mu.Unlock()

	var err error
	if ws != nil {
		c.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = ws.Close()
	}
	c.failPending(chat.E(chat.KindConnectionLost, "close", "session closed"))
	c.wg.Wait()

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	c.bus.Emit(EventConnectionState, StateChange{State: StateClosed})
	return err
}

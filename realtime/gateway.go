package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// Service is the subset of the room service reachable over the live connection
type Service interface {
	Join(ctx context.Context, actor models.ActorIdentity, roomID string) (models.JoinResult, error)
	Leave(ctx context.Context, actor models.ActorIdentity, roomID string) error
	MarkRead(ctx context.Context, actor models.ActorIdentity, roomID string) (models.ReadAck, error)
	Send(ctx context.Context, actor models.ActorIdentity, roomID string, draft models.MessageDraft) (models.ChatMessage, error)
	DeleteMessage(ctx context.Context, actor models.ActorIdentity, roomID, messageID string) error
	Pin(ctx context.Context, actor models.ActorIdentity, roomID, messageID string) (*models.PinnedMessage, error)
	Unpin(ctx context.Context, actor models.ActorIdentity, roomID, pinID string) error
	Typing(ctx context.Context, actor models.ActorIdentity, roomID string, typing bool) error
}

// Gateway upgrades HTTP requests to websockets and dispatches inbound events
type Gateway struct {
	hub      *Hub
	svc      Service
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// NewGateway builds a Gateway. timeout bounds the handling of one inbound event.
func NewGateway(hub *Hub, svc Service, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		hub:     hub,
		svc:     svc,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request for an already authenticated actor and blocks until the connection ends
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, actor models.ActorIdentity) error {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := NewConn(actor, ws)
	g.hub.Attach(c)
	zap.S().Infow("connection opened", "connId", c.ID, "actorId", actor.ID, "kind", actor.Kind)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		g.hub.Detach(c)
		c.Close(websocket.CloseNormalClosure, "")
		zap.S().Infow("connection closed", "connId", c.ID, "actorId", actor.ID)
	}()

	err = c.readPump(func(data []byte) {
		g.handle(ctx, c, data)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		zap.S().Warnw("unexpected close", "connId", c.ID, "error", err)
	}
	return nil
}

// handle processes one inbound frame and answers with an ack or an error event
func (g *Gateway) handle(ctx context.Context, c *Conn, data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.reply(c, env, nil, chat.Wrap(chat.KindInvalidArgument, "decode", err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.dispatch(ctx, c, env)
	if err != nil && chat.KindOf(err) == chat.KindUnknown {
		zap.S().Errorw("failed to handle event", "event", env.Event, "connId", c.ID, "error", err)
	}
	g.reply(c, env, result, err)
}

func decode(env models.Envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return chat.E(chat.KindInvalidArgument, env.Event, "missing payload")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return chat.Wrap(chat.KindInvalidArgument, env.Event, err)
	}
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, c *Conn, env models.Envelope) (interface{}, error) {
	actor := c.Actor
	switch env.Event {
	case models.EventRoomJoin:
		var ref models.RoomRef
		if err := decode(env, &ref); err != nil {
			return nil, err
		}
		res, err := g.svc.Join(ctx, actor, ref.RoomID)
		if err != nil {
			return nil, err
		}
		if !res.IsPending {
			g.hub.Subscribe(ref.RoomID, c)
		}
		return res, nil

	case models.EventRoomLeave:
		var p models.LeavePayload
		if err := decode(env, &p); err != nil {
			return nil, err
		}
		if p.Permanent {
			if err := g.svc.Leave(ctx, actor, p.RoomID); err != nil {
				return nil, err
			}
		}
		g.hub.Unsubscribe(p.RoomID, c)
		return models.RoomRef{RoomID: p.RoomID}, nil

	case models.EventRoomRead:
		var ref models.RoomRef
		if err := decode(env, &ref); err != nil {
			return nil, err
		}
		if !g.hub.Subscribed(ref.RoomID, c) {
			return nil, chat.E(chat.KindInvalidState, env.Event, "join the room before marking it read")
		}
		return g.svc.MarkRead(ctx, actor, ref.RoomID)

	case models.EventMessageSend:
		var p models.SendPayload
		if err := decode(env, &p); err != nil {
			return nil, err
		}
		return g.svc.Send(ctx, actor, p.RoomID, p.MessageDraft)

	case models.EventMessageDelete:
		var ref models.MessageRef
		if err := decode(env, &ref); err != nil {
			return nil, err
		}
		return ref, g.svc.DeleteMessage(ctx, actor, ref.RoomID, ref.MessageID)

	case models.EventMessagePin:
		var ref models.MessageRef
		if err := decode(env, &ref); err != nil {
			return nil, err
		}
		return g.svc.Pin(ctx, actor, ref.RoomID, ref.MessageID)

	case models.EventMessageUnpin:
		var ref models.PinRef
		if err := decode(env, &ref); err != nil {
			return nil, err
		}
		return ref, g.svc.Unpin(ctx, actor, ref.RoomID, ref.PinID)

	case models.EventTypingStart, models.EventTypingStop:
		var ref models.RoomRef
		if err := decode(env, &ref); err != nil {
			return nil, err
		}
		if !g.hub.Subscribed(ref.RoomID, c) {
			return nil, chat.E(chat.KindInvalidState, env.Event, "not subscribed to room")
		}
		return ref, g.svc.Typing(ctx, actor, ref.RoomID, env.Event == models.EventTypingStart)
	}
	return nil, chat.E(chat.KindInvalidArgument, env.Event, "unknown event")
}

// reply answers a correlated request with an ack frame. Failures of
// uncorrelated events are reported with an error event instead.
func (g *Gateway) reply(c *Conn, env models.Envelope, result interface{}, err error) {
	if env.Ack == "" {
		if err == nil {
			return
		}
		me := MessageError(err)
		frame, ferr := Frame(models.EventError, models.ErrorEvent{Event: env.Event, Kind: me.Kind, Message: me.Message})
		if ferr == nil {
			_ = c.Send(frame)
		}
		return
	}

	ack := models.AckFrame{Ack: env.Ack, OK: err == nil}
	if err != nil {
		ack.Error = MessageError(err)
	} else if result != nil {
		data, merr := json.Marshal(result)
		if merr != nil {
			ack.OK = false
			ack.Error = MessageError(merr)
		} else {
			ack.Data = data
		}
	}
	data, merr := json.Marshal(models.Envelope{Event: models.EventAck, Data: mustRaw(ack)})
	if merr != nil {
		zap.S().Errorw("failed to encode ack", "ack", env.Ack, "error", merr)
		return
	}
	_ = c.Send(data)
}

func mustRaw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// MessageError converts err into the wire error body. Errors outside the chat
// taxonomy are reported without their details.
func MessageError(err error) *models.MessageError {
	var ce *chat.Error
	if errors.As(err, &ce) {
		msg := ce.Msg
		if msg == "" {
			msg = ce.Error()
		}
		return &models.MessageError{Message: msg, Error: ce.Error(), Kind: string(ce.Kind)}
	}
	return &models.MessageError{Message: "internal error", Error: "internal error", Kind: string(chat.KindUnknown)}
}

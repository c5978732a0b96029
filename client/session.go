package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/tokens"
)

// EventRoomOpened carries the id of the room that just became the open room
const EventRoomOpened = "session:room_opened"

// ChatSession owns one live connection and the state of the room the user has
// open. Subscriptions are reference counted: every room:join it issues is
// matched by one room:leave, at the latest on Close.
type ChatSession struct {
	opts    Options
	actor   models.ActorIdentity
	bus     *Bus
	conn    *Connection
	rest    *REST
	log     *zap.SugaredLogger
	typing  *chat.TypingSet
	emitter *TypingEmitter

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	mu         sync.Mutex
	rooms      map[string]*roomState
	subs       map[string]int
	presence   map[string]bool
	current    string
	gen        uint64
	background bool
	closed     bool
	disposers  []func()
}

// Connect opens a session. The credential must identify the actor; a
// rejected handshake fails with AUTH_ERROR and is not retried.
func Connect(ctx context.Context, opts Options) (*ChatSession, error) {
	opts = opts.withDefaults()
	claims, err := tokens.Peek(opts.Credential)
	if err != nil {
		return nil, err
	}
	bus := NewBus(opts.Logger)
	conn, err := newConnection(opts, bus)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &ChatSession{
		opts:     opts,
		actor:    claims.Actor(),
		bus:      bus,
		conn:     conn,
		rest:     NewREST(opts),
		log:      opts.Logger.Sugar().With("actorId", claims.Subject),
		ctx:      sctx,
		cancel:   cancel,
		rooms:    make(map[string]*roomState),
		subs:     make(map[string]int),
		presence: make(map[string]bool),
	}
	s.typing = chat.NewTypingSet(opts.TypingTTL, func(roomID string, _ []string) { s.changed(roomID) })
	s.emitter = NewTypingEmitter(opts.TypingRefresh, opts.TypingIdle, func(event, roomID string) {
		if err := s.conn.Emit(event, models.RoomRef{RoomID: roomID}); err != nil {
			s.log.Debugw("failed to emit typing", "event", event, "roomId", roomID, "error", err)
		}
	})
	s.listen()

	if err := conn.connect(ctx, false); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *ChatSession) listen() {
	s.disposers = append(s.disposers,
		On(s.bus, EventConnectionState, s.onState),
		On(s.bus, models.EventMessageNew, s.onMessageNew),
		On(s.bus, models.EventMessageDeleted, s.onMessageDeleted),
		On(s.bus, models.EventMessagePinned, func(ev models.PinEvent) { s.onPin(ev, true) }),
		On(s.bus, models.EventMessageUnpinned, func(ev models.PinEvent) { s.onPin(ev, false) }),
		On(s.bus, models.EventUserJoined, s.onMember),
		On(s.bus, models.EventUserLeft, s.onMember),
		On(s.bus, models.EventRoleChanged, s.onMember),
		On(s.bus, models.EventApproved, s.onApproved),
		On(s.bus, models.EventUserRead, s.onUserRead),
		On(s.bus, models.EventKicked, s.onKicked),
		On(s.bus, models.EventUserTyping, func(ev models.TypingEvent) { s.onTyping(ev, true) }),
		On(s.bus, models.EventUserStopped, func(ev models.TypingEvent) { s.onTyping(ev, false) }),
		On(s.bus, models.EventStatusChanged, s.onStatus),
		On(s.bus, models.EventError, s.onError),
	)
}

// Actor is the identity behind the session's credential
func (s *ChatSession) Actor() models.ActorIdentity {
	return s.actor
}

// Bus exposes the session's event bus. Wire events are published under their
// event names; EventRoomChanged fires whenever a room snapshot changes.
func (s *ChatSession) Bus() *Bus {
	return s.bus
}

// REST exposes the collaborator client bound to the session's credential
func (s *ChatSession) REST() *REST {
	return s.rest
}

// State is the connection state
func (s *ChatSession) State() State {
	return s.conn.State()
}

// Retry resumes reconnecting after the session gave up
func (s *ChatSession) Retry() {
	s.conn.Retry()
}

// Current returns the id of the open room, or ""
func (s *ChatSession) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Online reports the last presence seen for userID
func (s *ChatSession) Online(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence[userID]
}

// Room returns a snapshot of a room the session holds state for
func (s *ChatSession) Room(roomID string) (RoomSnapshot, bool) {
	typing := s.typing.Users(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, false
	}
	return r.snapshot(s.actor, typing), true
}

func (s *ChatSession) changed(roomID string) {
	s.bus.Emit(EventRoomChanged, roomID)
}

// async runs fn on its own goroutine until Close
func (s *ChatSession) async(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.tasks.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.tasks.Done()
		fn(s.ctx)
	}()
}

// join issues room:join and records the actor's participant record
func (s *ChatSession) join(ctx context.Context, roomID string) (models.JoinResult, error) {
	var res models.JoinResult
	if err := s.conn.Request(ctx, models.EventRoomJoin, models.RoomRef{RoomID: roomID}, &res); err != nil {
		return res, err
	}
	s.mu.Lock()
	if r, ok := s.rooms[roomID]; ok && res.Participant != nil {
		p := *res.Participant
		r.participant = &p
	}
	s.mu.Unlock()
	return res, nil
}

// Join subscribes the connection to roomID, joining the room first when the
// actor is not a member. APPROVAL rooms answer with IsPending until a
// moderator approves. The subscription is held until Leave or Close.
func (s *ChatSession) Join(ctx context.Context, roomID string) (models.JoinResult, error) {
	if roomID == "" {
		return models.JoinResult{}, chat.E(chat.KindInvalidArgument, "join", "roomId is required")
	}
	res, err := s.join(ctx, roomID)
	if err != nil {
		return res, err
	}
	s.mu.Lock()
	s.subs[roomID]++
	s.mu.Unlock()
	return res, nil
}

// release drops one subscription on roomID and sends room:leave with the last one
func (s *ChatSession) release(roomID string) {
	s.mu.Lock()
	n := s.subs[roomID]
	if n == 0 {
		s.mu.Unlock()
		return
	}
	if n > 1 {
		s.subs[roomID] = n - 1
		s.mu.Unlock()
		return
	}
	delete(s.subs, roomID)
	s.mu.Unlock()

	s.typing.ClearRoom(roomID)
	if err := s.conn.Emit(models.EventRoomLeave, models.LeavePayload{RoomID: roomID}); err != nil {
		s.log.Debugw("failed to emit leave", "roomId", roomID, "error", err)
	}
}

// Leave leaves roomID for good. Every subscription the session held on it is dropped.
func (s *ChatSession) Leave(ctx context.Context, roomID string) error {
	var ref models.RoomRef
	err := s.conn.Request(ctx, models.EventRoomLeave, models.LeavePayload{RoomID: roomID, Permanent: true}, &ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.subs, roomID)
	if s.current == roomID {
		s.current = ""
	}
	delete(s.rooms, roomID)
	s.mu.Unlock()

	s.typing.ClearRoom(roomID)
	s.changed(roomID)
	return nil
}

// Open makes roomID the open room. The previously open room is released, the
// room is joined, marked read once the join is acknowledged and its first
// history page, read snapshot, pins and detail are loaded.
func (s *ChatSession) Open(ctx context.Context, roomID string) error {
	const op = "open"
	if roomID == "" {
		return chat.E(chat.KindInvalidArgument, op, "roomId is required")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chat.E(chat.KindInvalidState, op, "session closed")
	}
	s.gen++
	gen := s.gen
	s.background = false
	prev := s.current
	if r, ok := s.rooms[roomID]; ok && prev == roomID {
		r.generation = gen
		s.mu.Unlock()
		return s.reload(ctx, roomID, gen)
	}
	s.current = roomID
	if prev != "" {
		delete(s.rooms, prev)
	}
	r := newRoomState(roomID, s.opts.Location)
	r.generation = gen
	r.loading = true
	s.rooms[roomID] = r
	s.mu.Unlock()

	if prev != "" {
		s.emitter.Stop()
		s.release(prev)
		s.changed(prev)
	}

	res, err := s.Join(ctx, roomID)
	if err != nil {
		s.mu.Lock()
		if s.current == roomID && s.rooms[roomID] == r {
			s.current = ""
			delete(s.rooms, roomID)
		}
		s.mu.Unlock()
		return err
	}
	s.bus.Emit(EventRoomOpened, roomID)
	if res.IsPending {
		s.mu.Lock()
		r.loading = false
		s.mu.Unlock()
		s.changed(roomID)
		return nil
	}
	if err := s.MarkRead(ctx, roomID); err != nil {
		s.log.Warnw("failed to mark room read", "roomId", roomID, "error", err)
	}
	return s.reload(ctx, roomID, gen)
}

// reload fetches the first history page and the room's side data. Results
// for a room that is no longer open, or was reopened since, are dropped. After
// a reconnect the page may not reach the held messages; see applyFirstPage.
func (s *ChatSession) reload(ctx context.Context, roomID string, gen uint64) error {
	var (
		page models.HistoryPage
		info *models.ReadInfo
		pins []models.PinnedMessage
		room *models.ChatRoom
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page, err = s.rest.History(gctx, roomID, models.HistoryQuery{Limit: s.opts.HistoryPage})
		return err
	})
	g.Go(func() (err error) {
		info, err = s.rest.ReadStatus(gctx, roomID)
		return err
	})
	g.Go(func() (err error) {
		pins, err = s.rest.Pins(gctx, roomID)
		return err
	})
	g.Go(func() (err error) {
		room, err = s.rest.Room(gctx, roomID)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || s.current != roomID || r.generation != gen {
		s.mu.Unlock()
		s.log.Debugw("discarding stale room load", "roomId", roomID)
		return nil
	}
	r.loading = false
	if err != nil {
		s.mu.Unlock()
		s.changed(roomID)
		return err
	}
	r.room = room
	r.readInfo = info
	r.pins = pins
	r.applyFirstPage(page)
	s.mu.Unlock()

	s.changed(roomID)
	return nil
}

// LoadMore prepends the next older history page of the open room. It is a
// no-op when there is nothing more or a load is already in flight.
func (s *ChatSession) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	roomID := s.current
	r, ok := s.rooms[roomID]
	if !ok || !r.loaded || !r.hasMore || r.loading {
		s.mu.Unlock()
		return nil
	}
	r.loading = true
	gen := r.generation
	cursor := r.nextCursor
	s.mu.Unlock()
	s.changed(roomID)

	page, err := s.rest.History(ctx, roomID, models.HistoryQuery{Cursor: cursor, Limit: s.opts.HistoryPage})

	s.mu.Lock()
	r.loading = false
	if s.rooms[roomID] != r || s.current != roomID || r.generation != gen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		s.changed(roomID)
		return err
	}
	r.timeline.Merge(page.Messages...)
	r.nextCursor = page.NextCursor
	r.hasMore = page.HasMore
	s.mu.Unlock()

	s.changed(roomID)
	return nil
}

// MarkRead advances the actor's read cursor in roomID. Local read state only
// moves once the server acknowledged.
func (s *ChatSession) MarkRead(ctx context.Context, roomID string) error {
	var ack models.ReadAck
	if err := s.conn.Request(ctx, models.EventRoomRead, models.RoomRef{RoomID: roomID}, &ack); err != nil {
		return err
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if ok {
		r.setRead(s.actor.ID, ack.LastReadAt)
	}
	s.mu.Unlock()
	if ok {
		s.changed(roomID)
	}
	return nil
}

// SetBackground tells the session whether the open room is on screen. Live
// messages only mark the room read while it is in the foreground.
func (s *ChatSession) SetBackground(background bool) {
	s.mu.Lock()
	was := s.background
	s.background = background
	roomID := s.current
	s.mu.Unlock()
	if was && !background && roomID != "" {
		s.async(func(ctx context.Context) {
			if err := s.MarkRead(ctx, roomID); err != nil {
				s.log.Warnw("failed to mark room read", "roomId", roomID, "error", err)
			}
		})
	}
}

// Send posts a message and waits for the server to persist it. There is no
// automatic resend; a retried draft keeps its clientMsgId so the server can
// de-duplicate it.
func (s *ChatSession) Send(ctx context.Context, roomID string, draft models.MessageDraft) (models.ChatMessage, error) {
	if draft.ClientMsgID == "" {
		draft.ClientMsgID = uuid.New().String()
	}
	if draft.Type == "" {
		draft.Type = models.MessageText
	}
	s.emitter.Stop()

	var msg models.ChatMessage
	if err := s.conn.Request(ctx, models.EventMessageSend, models.SendPayload{RoomID: roomID, MessageDraft: draft}, &msg); err != nil {
		return models.ChatMessage{}, err
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if ok {
		r.timeline.Merge(msg)
		r.advance(msg)
		r.setRead(s.actor.ID, msg.CreatedAt)
	}
	s.mu.Unlock()
	if ok {
		s.changed(roomID)
	}
	return msg, nil
}

// SendText posts a text message
func (s *ChatSession) SendText(ctx context.Context, roomID, text string) (models.ChatMessage, error) {
	return s.Send(ctx, roomID, models.MessageDraft{Type: models.MessageText, Content: &text})
}

// Keystroke signals local typing in roomID
func (s *ChatSession) Keystroke(roomID string) {
	s.emitter.Keystroke(roomID)
}

// StopTyping ends the local typing burst
func (s *ChatSession) StopTyping() {
	s.emitter.Stop()
}

// Close leaves every subscribed room, cancels timers and background loads and
// closes the connection.
func (s *ChatSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = make(map[string]int)
	s.current = ""
	s.mu.Unlock()

	s.emitter.Stop()
	s.emitter.Close()
	var err error
	for roomID := range subs {
		err = multierr.Append(err, s.conn.Emit(models.EventRoomLeave, models.LeavePayload{RoomID: roomID}))
	}
	if err != nil {
		s.log.Debugw("failed to leave rooms on close", "error", err)
	}

	s.cancel()
	s.tasks.Wait()
	s.typing.Close()
	closeErr := s.conn.Close()
	for _, dispose := range s.disposers {
		dispose()
	}
	return closeErr
}

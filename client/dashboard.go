package client

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

const (
	dashboardPageSize    = 100
	dashboardConcurrency = 4
)

// DashboardFilter narrows the last fetched room list. Matching is done locally.
type DashboardFilter struct {
	// Text matches the room name, case-insensitively
	Text     string
	Type     models.RoomType
	Category models.RoomCategory
}

// DashboardRoom is one row of the operator's room list
type DashboardRoom struct {
	Room   models.ChatRoom `json:"room"`
	Unread bool            `json:"unread"`
	// LastMessage is the newest message seen live in a watched room
	LastMessage *models.ChatMessage `json:"lastMessage,omitempty"`
}

// Dashboard is the operator view across many rooms. It watches rooms so that
// new messages in any of them raise an unread dot, which clears only when the
// room is opened, and move the room to the top of the list.
type Dashboard struct {
	s *ChatSession

	mu       sync.Mutex
	rooms    []models.ChatRoom
	dots     map[string]bool
	previews map[string]models.ChatMessage
	watched  map[string]bool
	dispose  []func()
}

// NewDashboard attaches a dashboard to an operator session
func NewDashboard(s *ChatSession) (*Dashboard, error) {
	if !s.Actor().IsAdmin() {
		return nil, chat.E(chat.KindForbidden, "dashboard", "operator credential required")
	}
	d := &Dashboard{
		s:        s,
		dots:     make(map[string]bool),
		previews: make(map[string]models.ChatMessage),
		watched:  make(map[string]bool),
	}
	d.dispose = append(d.dispose,
		On(s.bus, models.EventMessageNew, d.onMessage),
		On(s.bus, EventRoomOpened, d.clear),
	)
	return d, nil
}

func (d *Dashboard) onMessage(ev models.MessageNewEvent) {
	current := ev.RoomID == d.s.Current()
	d.mu.Lock()
	prev, seen := d.previews[ev.RoomID]
	newer := !seen || chat.Less(prev, ev.Message)
	if newer {
		d.previews[ev.RoomID] = ev.Message
	}
	was := d.dots[ev.RoomID]
	if !current {
		d.dots[ev.RoomID] = true
	}
	d.mu.Unlock()
	if newer || (!current && !was) {
		d.s.changed(ev.RoomID)
	}
}

func (d *Dashboard) clear(roomID string) {
	d.mu.Lock()
	was := d.dots[roomID]
	delete(d.dots, roomID)
	d.mu.Unlock()
	if was {
		d.s.changed(roomID)
	}
}

// Refresh refetches the full room list. Pages after the first are fetched concurrently.
func (d *Dashboard) Refresh(ctx context.Context) error {
	first, err := d.s.rest.ListRooms(ctx, models.RoomFilter{Page: 1, Limit: dashboardPageSize})
	if err != nil {
		return err
	}
	limit := first.Limit
	if limit <= 0 {
		limit = dashboardPageSize
	}
	pages := int((first.Total + int64(limit) - 1) / int64(limit))

	results := make([][]models.ChatRoom, pages+1)
	results[1] = first.Rooms
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for p := 2; p <= pages; p++ {
		p := p
		g.Go(func() error {
			list, err := d.s.rest.ListRooms(gctx, models.RoomFilter{Page: p, Limit: limit})
			if err != nil {
				return err
			}
			results[p] = list.Rooms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var rooms []models.ChatRoom
	for _, page := range results {
		for _, r := range page {
			if !seen[r.ID] {
				seen[r.ID] = true
				rooms = append(rooms, r)
			}
		}
	}
	d.mu.Lock()
	d.rooms = rooms
	d.mu.Unlock()
	return nil
}

// Rooms returns the last fetched rooms matching f, most recently active
// first. A live message counts as activity.
func (d *Dashboard) Rooms(f DashboardFilter) []DashboardRoom {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DashboardRoom, 0, len(d.rooms))
	for _, r := range d.rooms {
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(r.Name), text) {
			continue
		}
		row := DashboardRoom{Room: r, Unread: d.dots[r.ID]}
		if m, ok := d.previews[r.ID]; ok {
			m := m
			row.LastMessage = &m
			if m.CreatedAt.After(row.Room.UpdatedAt) {
				row.Room.UpdatedAt = m.CreatedAt
			}
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Room.UpdatedAt.After(out[j].Room.UpdatedAt)
	})
	return out
}

// Watch subscribes to rooms so their new messages raise unread dots
func (d *Dashboard) Watch(ctx context.Context, roomIDs ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for _, id := range roomIDs {
		id := id
		d.mu.Lock()
		if d.watched[id] {
			d.mu.Unlock()
			continue
		}
		d.watched[id] = true
		d.mu.Unlock()
		g.Go(func() error {
			if _, err := d.s.Join(gctx, id); err != nil {
				d.mu.Lock()
				delete(d.watched, id)
				d.mu.Unlock()
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// WatchAll watches every active room of the last fetched list
func (d *Dashboard) WatchAll(ctx context.Context) error {
	d.mu.Lock()
	ids := make([]string, 0, len(d.rooms))
	for _, r := range d.rooms {
		if r.IsActive {
			ids = append(ids, r.ID)
		}
	}
	d.mu.Unlock()
	return d.Watch(ctx, ids...)
}

// Unwatch drops the subscription taken by Watch
func (d *Dashboard) Unwatch(roomID string) {
	d.mu.Lock()
	watched := d.watched[roomID]
	delete(d.watched, roomID)
	d.mu.Unlock()
	if watched {
		d.s.release(roomID)
	}
}

// Open opens a room in the session; its unread dot clears
func (d *Dashboard) Open(ctx context.Context, roomID string) error {
	return d.s.Open(ctx, roomID)
}

// Unread reports whether roomID has an unread dot
func (d *Dashboard) Unread(roomID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dots[roomID]
}

// ConnectionState is the state of the session's connection
func (d *Dashboard) ConnectionState() State {
	return d.s.State()
}

// Close stops listening and drops every watch
func (d *Dashboard) Close() {
	for _, dispose := range d.dispose {
		dispose()
	}
	d.mu.Lock()
	ids := make([]string, 0, len(d.watched))
	for id := range d.watched {
		ids = append(ids, id)
	}
	d.watched = make(map[string]bool)
	d.mu.Unlock()
	for _, id := range ids {
		d.s.release(id)
	}
}

package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

func seedRooms(f *fakeServer, n int) {
	rooms := make([]models.ChatRoom, n)
	for i := range rooms {
		category := models.CategoryStock
		if i%2 == 1 {
			category = models.CategoryCoin
		}
		rooms[i] = models.ChatRoom{
			ID:        fmt.Sprintf("room-%03d", i),
			Name:      fmt.Sprintf("Desk %03d", i),
			Type:      models.RoomOneToN,
			Category:  category,
			IsActive:  i%10 != 0,
			JoinType:  models.JoinFree,
			UpdatedAt: epoch.Add(time.Duration(i) * time.Minute),
		}
	}
	f.mu.Lock()
	f.rooms = rooms
	f.mu.Unlock()
}

func TestDashboardRequiresOperator(t *testing.T) {
	f := newFakeServer(t)
	s := connect(t, f, alice)

	_, err := NewDashboard(s)

	assert.ErrorIs(t, err, chat.ErrForbidden)
}

func TestDashboardRefreshLoadsEveryPage(t *testing.T) {
	f := newFakeServer(t)
	seedRooms(f, 250)
	s := connect(t, f, operator)
	d, err := NewDashboard(s)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Refresh(testContext(t)))

	rooms := d.Rooms(DashboardFilter{})
	require.Len(t, rooms, 250)
	assert.Equal(t, "room-249", rooms[0].Room.ID)
	assert.Equal(t, "room-000", rooms[249].Room.ID)

	coins := d.Rooms(DashboardFilter{Category: models.CategoryCoin})
	assert.Len(t, coins, 125)
	named := d.Rooms(DashboardFilter{Text: "desk 01"})
	assert.Len(t, named, 10)
	assert.Empty(t, d.Rooms(DashboardFilter{Type: models.RoomTwoWay}))
}

func TestDashboardWatchAllSkipsInactiveRooms(t *testing.T) {
	f := newFakeServer(t)
	seedRooms(f, 20)
	s := connect(t, f, operator)
	d, err := NewDashboard(s)
	require.NoError(t, err)
	ctx := testContext(t)
	require.NoError(t, d.Refresh(ctx))

	require.NoError(t, d.WatchAll(ctx))
	require.NoError(t, d.Watch(ctx, "room-001"))

	assert.Equal(t, 1, f.count(models.EventRoomJoin, "room-001"))
	assert.Zero(t, f.count(models.EventRoomJoin, "room-010"))
	joins := 0
	for _, e := range f.events("") {
		if e == models.EventRoomJoin {
			joins++
		}
	}
	assert.Equal(t, 18, joins)

	d.Close()
	assert.Eventually(t, func() bool { return f.count(models.EventRoomLeave, "room-001") == 1 }, time.Second, 10*time.Millisecond)
}

func TestDashboardUnreadDots(t *testing.T) {
	f := newFakeServer(t)
	s := connect(t, f, operator)
	d, err := NewDashboard(s)
	require.NoError(t, err)
	defer d.Close()
	ctx := testContext(t)
	require.NoError(t, d.Watch(ctx, "r2"))
	require.NoError(t, d.Open(ctx, "r1"))

	f.push(models.EventMessageNew, models.MessageNewEvent{RoomID: "r1", Message: msg("a", "bob", epoch)})
	f.push(models.EventMessageNew, models.MessageNewEvent{RoomID: "r2", Message: msg("b", "bob", epoch)})

	assert.Eventually(t, func() bool { return d.Unread("r2") }, time.Second, 10*time.Millisecond)
	assert.False(t, d.Unread("r1"))

	require.NoError(t, d.Open(ctx, "r2"))
	assert.False(t, d.Unread("r2"))
	assert.Equal(t, StateConnected, d.ConnectionState())

	// r2 is still watched, so switching away keeps its subscription
	assert.Zero(t, f.count(models.EventRoomLeave, "r2"))
}

func TestRESTErrorKinds(t *testing.T) {
	f := newFakeServer(t)
	s := connect(t, f, operator)
	ctx := testContext(t)

	_, err := s.REST().Room(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	_, err = s.Kick(ctx, "r1", "owner", nil)
	assert.ErrorIs(t, err, chat.ErrForbidden)

	bad := NewREST(Options{BaseURL: f.URL, Credential: "nope"}.withDefaults())
	_, err = bad.Room(ctx, "r1")
	assert.ErrorIs(t, err, chat.ErrAuth)
}

func TestModerationCalls(t *testing.T) {
	f := newFakeServer(t)
	f.seed("r1", 3)
	s := connect(t, f, operator)
	ctx := testContext(t)
	require.NoError(t, s.Open(ctx, "r1"))
	reason := "pump and dump"

	p, err := s.Kick(ctx, "r1", "bob", &reason)
	require.NoError(t, err)
	assert.True(t, p.IsKicked)
	assert.Equal(t, reason, *p.KickReason)

	p, err = s.ShadowBan(ctx, "r1", "bob", &reason)
	require.NoError(t, err)
	assert.True(t, p.IsShadowBanned)

	_, err = s.ChangeRole(ctx, "r1", "bob", "ADMIRAL")
	assert.ErrorIs(t, err, chat.ErrInvalidArgument)

	_, err = s.BulkDelete(ctx, "r1", nil)
	assert.ErrorIs(t, err, chat.ErrInvalidArgument)

	res, err := s.BulkDelete(ctx, "r1", []string{"m001", "m003"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Deleted)
	items := snapshot(t, s, "r1").Items
	assert.True(t, items[0].Message.IsDeleted)
	assert.False(t, items[1].Message.IsDeleted)
	assert.True(t, items[2].Message.IsDeleted)
}

func TestDashboardLiveMessageMovesRoomToTop(t *testing.T) {
	f := newFakeServer(t)
	seedRooms(f, 5)
	s := connect(t, f, operator)
	d, err := NewDashboard(s)
	require.NoError(t, err)
	defer d.Close()
	ctx := testContext(t)
	require.NoError(t, d.Refresh(ctx))
	require.NoError(t, d.Watch(ctx, "room-001"))
	require.Equal(t, "room-004", d.Rooms(DashboardFilter{})[0].Room.ID)

	f.push(models.EventMessageNew, models.MessageNewEvent{RoomID: "room-001", Message: msg("late", "bob", epoch.Add(time.Hour))})

	assert.Eventually(t, func() bool {
		rooms := d.Rooms(DashboardFilter{})
		return rooms[0].Room.ID == "room-001" && rooms[0].LastMessage != nil
	}, time.Second, 10*time.Millisecond)
	top := d.Rooms(DashboardFilter{})[0]
	assert.Equal(t, "late", top.LastMessage.ID)
	assert.Equal(t, epoch.Add(time.Hour), top.Room.UpdatedAt)
	assert.True(t, top.Unread)

	// an older message does not replace the preview
	f.push(models.EventMessageNew, models.MessageNewEvent{RoomID: "room-001", Message: msg("early", "bob", epoch)})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "late", d.Rooms(DashboardFilter{})[0].LastMessage.ID)

	// opening the room clears the dot but keeps the preview
	require.NoError(t, d.Open(ctx, "room-001"))
	top = d.Rooms(DashboardFilter{})[0]
	assert.False(t, top.Unread)
	assert.Equal(t, "late", top.LastMessage.ID)
}

package chat

import (
	"sort"
	"sync"
	"time"
)

// DefaultTypingTTL is how long a typing indicator lives without a refresh
const DefaultTypingTTL = 5 * time.Second

type typingEntry struct {
	timer *time.Timer
}

// TypingSet tracks who is typing in each room. Every entry expires on its own
// after the TTL; a repeated Start resets the expiry instead of stacking timers.
type TypingSet struct {
	mu       sync.Mutex
	ttl      time.Duration
	rooms    map[string]map[string]*typingEntry
	onChange func(roomID string, users []string)
	closed   bool
}

// NewTypingSet creates a set. onChange, if not nil, is called outside the lock
// with the room's users whenever membership of the set changes.
func NewTypingSet(ttl time.Duration, onChange func(roomID string, users []string)) *TypingSet {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingSet{
		ttl:      ttl,
		rooms:    make(map[string]map[string]*typingEntry),
		onChange: onChange,
	}
}

// Start marks userID as typing in roomID
func (s *TypingSet) Start(roomID, userID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	users, ok := s.rooms[roomID]
	if !ok {
		users = make(map[string]*typingEntry)
		s.rooms[roomID] = users
	}
	old, existed := users[userID]
	if existed {
		old.timer.Stop()
	}
	e := &typingEntry{}
	e.timer = time.AfterFunc(s.ttl, func() { s.expire(roomID, userID, e) })
	users[userID] = e
	snapshot := s.usersLocked(roomID)
	s.mu.Unlock()

	if !existed {
		s.notify(roomID, snapshot)
	}
}

// Stop removes userID from roomID's typing set
func (s *TypingSet) Stop(roomID, userID string) {
	s.mu.Lock()
	e, ok := s.rooms[roomID][userID]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.timer.Stop()
	s.removeLocked(roomID, userID)
	snapshot := s.usersLocked(roomID)
	s.mu.Unlock()

	s.notify(roomID, snapshot)
}

func (s *TypingSet) expire(roomID, userID string, e *typingEntry) {
	s.mu.Lock()
	if s.rooms[roomID][userID] != e {
		s.mu.Unlock()
		return
	}
	s.removeLocked(roomID, userID)
	snapshot := s.usersLocked(roomID)
	s.mu.Unlock()

	s.notify(roomID, snapshot)
}

// Users returns the users typing in roomID, sorted
func (s *TypingSet) Users(roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usersLocked(roomID)
}

// ClearRoom drops every indicator for roomID
func (s *TypingSet) ClearRoom(roomID string) {
	s.mu.Lock()
	users := s.rooms[roomID]
	for _, e := range users {
		e.timer.Stop()
	}
	delete(s.rooms, roomID)
	s.mu.Unlock()

	if len(users) > 0 {
		s.notify(roomID, nil)
	}
}

// Close cancels every pending expiry timer. The set ignores Start afterwards.
func (s *TypingSet) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, users := range s.rooms {
		for _, e := range users {
			e.timer.Stop()
		}
	}
	s.rooms = make(map[string]map[string]*typingEntry)
}

func (s *TypingSet) removeLocked(roomID, userID string) {
	delete(s.rooms[roomID], userID)
	if len(s.rooms[roomID]) == 0 {
		delete(s.rooms, roomID)
	}
}

func (s *TypingSet) usersLocked(roomID string) []string {
	users := make([]string, 0, len(s.rooms[roomID]))
	for u := range s.rooms[roomID] {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (s *TypingSet) notify(roomID string, users []string) {
	if s.onChange != nil {
		s.onChange(roomID, users)
	}
}

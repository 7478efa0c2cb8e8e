package core

import (
	"sort"
	"sync"
	"time"
)

// DefaultTypingTTL is how long a typing signal stays valid without a refresh.
const DefaultTypingTTL = 2 * time.Second

type typingEntry struct {
	deadline time.Time
	origin   *Client
}

// Typing tracks, per room, which users are typing. Every removal path
// (explicit stop, expiry, leave, disconnect) goes through removeLocked, which
// broadcasts isTyping:false exactly once per session.
type Typing struct {
	members *Membership
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	rooms map[string]map[string]*typingEntry
}

// NewTyping creates a tracker that broadcasts through members.
func NewTyping(members *Membership, ttl time.Duration) *Typing {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Typing{
		members: members,
		ttl:     ttl,
		now:     time.Now,
		rooms:   make(map[string]map[string]*typingEntry),
	}
}

// Start marks the connection's user as typing in room. A new session is
// broadcast to the room excluding the origin; a refresh only extends the deadline.
func (t *Typing) Start(c *Client, room string) error {
	if !t.members.IsJoined(c, room) {
		return coreError(ErrAccessDenied, "not joined to room %s", room)
	}
	user := c.User()

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.expireRoomLocked(room, now)

	users, ok := t.rooms[room]
	if !ok {
		users = make(map[string]*typingEntry)
		t.rooms[room] = users
	}
	if e, ok := users[user]; ok {
		e.deadline = now.Add(t.ttl)
		e.origin = c
		return nil
	}
	users[user] = &typingEntry{deadline: now.Add(t.ttl), origin: c}
	t.members.Broadcast(room, &TypingEvent{Room: room, User: user, IsTyping: true}, c)
	return nil
}

// Stop ends the user's typing session in room. Stopping when not typing is a no-op.
func (t *Typing) Stop(c *Client, room string) error {
	if !t.members.IsJoined(c, room) {
		return coreError(ErrAccessDenied, "not joined to room %s", room)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(room, c.User())
	return nil
}

// Typers returns the users currently typing in room, evicting expired entries first.
func (t *Typing) Typers(room string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireRoomLocked(room, t.now())
	users := t.rooms[room]
	out := make([]string, 0, len(users))
	for user := range users {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}

// Sweep evicts every entry whose deadline is at or before now.
func (t *Typing) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for room := range t.rooms {
		n += t.expireRoomLocked(room, now)
	}
	return n
}

// Release ends the session in room if c started or last refreshed it.
func (t *Typing) Release(c *Client, room string) {
	t.ReleaseAll(c, []string{room})
}

// ReleaseAll ends every session in rooms that c started or last refreshed.
// Sessions driven by the user's other connections are left running.
func (t *Typing) ReleaseAll(c *Client, rooms []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user := c.User()
	for _, room := range rooms {
		if e, ok := t.rooms[room][user]; ok && e.origin == c {
			t.removeLocked(room, user)
		}
	}
}

func (t *Typing) expireRoomLocked(room string, now time.Time) int {
	n := 0
	for user, e := range t.rooms[room] {
		if !e.deadline.After(now) {
			t.removeLocked(room, user)
			n++
		}
	}
	return n
}

func (t *Typing) removeLocked(room, user string) bool {
	users, ok := t.rooms[room]
	if !ok {
		return false
	}
	e, ok := users[user]
	if !ok {
		return false
	}
	delete(users, user)
	if len(users) == 0 {
		delete(t.rooms, room)
	}
	t.members.Broadcast(room, &TypingEvent{Room: room, User: user, IsTyping: false}, e.origin)
	return true
}

package core

import (
	"context"
	"sync"
)

// MemberChecker answers whether a user is an authorized member of a room.
// The persistence layer owns the answer; the core only reads it.
type MemberChecker interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// Membership owns the room -> live connections join table.
type Membership struct {
	checker MemberChecker

	mu     sync.RWMutex
	rooms  map[string]*liveRoom
	joined map[*Client]map[string]struct{}
}

// NewMembership creates an empty join table backed by checker.
func NewMembership(checker MemberChecker) *Membership {
	return &Membership{
		checker: checker,
		rooms:   make(map[string]*liveRoom),
		joined:  make(map[*Client]map[string]struct{}),
	}
}

// Join subscribes c to room after verifying membership. It returns false when
// the connection was already joined; that case skips the membership lookup.
func (m *Membership) Join(ctx context.Context, c *Client, room string) (bool, error) {
	user := c.User()
	if user == "" {
		return false, coreError(ErrUnauthorized, "register before joining rooms")
	}
	if room == "" {
		return false, coreError(ErrBadRequest, "room is required")
	}
	if m.IsJoined(c, room) {
		return false, nil
	}

	ok, err := m.checker.IsMember(ctx, room, user)
	if err != nil {
		return false, persistenceError("room membership", err)
	}
	if !ok {
		return false, coreError(ErrAccessDenied, "not a member of room %s", room)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[room]
	if !exists {
		r = newLiveRoom(room)
		m.rooms[room] = r
	}
	if !r.add(c) {
		return false, nil
	}
	set, exists := m.joined[c]
	if !exists {
		set = make(map[string]struct{})
		m.joined[c] = set
	}
	set[room] = struct{}{}
	return true, nil
}

// Leave unsubscribes c from room. Returns true if c was joined.
func (m *Membership) Leave(c *Client, room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(c, room)
}

// LeaveAll removes c from every room and returns the rooms it had joined.
func (m *Membership) LeaveAll(c *Client) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]string, 0, len(m.joined[c]))
	for room := range m.joined[c] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		m.leaveLocked(c, room)
	}
	return rooms
}

func (m *Membership) leaveLocked(c *Client, room string) bool {
	r, ok := m.rooms[room]
	if !ok || !r.remove(c) {
		return false
	}
	if r.empty() {
		delete(m.rooms, room)
	}
	if set := m.joined[c]; set != nil {
		delete(set, room)
		if len(set) == 0 {
			delete(m.joined, c)
		}
	}
	return true
}

// IsJoined reports whether c is subscribed to room.
func (m *Membership) IsJoined(c *Client, room string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.joined[c][room]
	return ok
}

// Rooms returns the rooms c is joined to.
func (m *Membership) Rooms(c *Client) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.joined[c]))
	for room := range m.joined[c] {
		out = append(out, room)
	}
	return out
}

// Connections returns the connections joined to room.
func (m *Membership) Connections(room string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[room]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Broadcast delivers ev to every connection joined to room except exclude
// (which may be nil). Delivery is per connection, so a user with two devices
// in the room receives it twice. Returns the number of deliveries.
func (m *Membership) Broadcast(room string, ev Event, exclude *Client) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[room]
	if !ok {
		return 0
	}
	n := 0
	for c := range r.clients {
		if c == exclude {
			continue
		}
		if c.deliver(ev) {
			n++
		}
	}
	return n
}

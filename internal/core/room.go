package core

// liveRoom groups the connections currently joined to one room.
// Guarded by Membership.mu.
type liveRoom struct {
	id      string
	clients map[*Client]struct{}
}

func newLiveRoom(id string) *liveRoom {
	return &liveRoom{
		id:      id,
		clients: make(map[*Client]struct{}),
	}
}

// add inserts a client. Returns true if newly added.
func (r *liveRoom) add(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// remove deletes a client. Returns true if removed.
func (r *liveRoom) remove(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

func (r *liveRoom) snapshot() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *liveRoom) empty() bool {
	return len(r.clients) == 0
}

package core

import "sync"

// Registry maps verified identities to their live connections.
// It is the single source of truth for whether a user is reachable.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[string]map[*Client]struct{}
	clients map[*Client]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]string),
	}
}

// Register binds c to user. first is true when c is the user's only live
// connection after the call. Registration is one-shot per connection.
func (r *Registry) Register(c *Client, user string) (first bool, err error) {
	if user == "" {
		return false, coreError(ErrUnauthorized, "empty identity")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c]; ok {
		return false, coreError(ErrAlreadyRegistered, "connection already registered")
	}
	if err := c.bind(user); err != nil {
		return false, err
	}

	set, ok := r.byUser[user]
	if !ok {
		set = make(map[*Client]struct{})
		r.byUser[user] = set
	}
	set[c] = struct{}{}
	r.clients[c] = user
	return len(set) == 1, nil
}

// Unregister removes c. last is true when it was the user's final live
// connection. Calling it for an unknown or already removed connection is a no-op.
func (r *Registry) Unregister(c *Client) (user string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.clients[c]
	if !ok {
		return "", false
	}
	delete(r.clients, c)

	set := r.byUser[user]
	delete(set, c)
	if len(set) == 0 {
		delete(r.byUser, user)
		return user, true
	}
	return user, false
}

// IsOnline reports whether user has at least one registered connection.
func (r *Registry) IsOnline(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[user]) > 0
}

// Connections returns the live connections of user.
func (r *Registry) Connections(user string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[user]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Snapshot returns every registered connection.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections and distinct users.
func (r *Registry) Count() (conns, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients), len(r.byUser)
}

package core

import (
	"sync"
	"time"
)

// Presence derives online/offline transitions from the registry and announces
// them to every registered connection. Offline announcements wait for the
// grace window so a quick reconnect does not flicker.
type Presence struct {
	registry *Registry
	grace    time.Duration
	now      func() time.Time

	mu        sync.Mutex
	announced map[string]bool
	pending   map[string]*time.Timer
}

// NewPresence creates a presence broadcaster over registry.
func NewPresence(registry *Registry, grace time.Duration) *Presence {
	return &Presence{
		registry:  registry,
		grace:     grace,
		now:       time.Now,
		announced: make(map[string]bool),
		pending:   make(map[string]*time.Timer),
	}
}

// Online is called after a registration. It cancels a pending offline
// announcement and announces online if the user was not already announced.
func (p *Presence) Online(user string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.pending[user]; ok {
		t.Stop()
		delete(p.pending, user)
	}
	p.reconcileLocked(user)
}

// Offline is called after the user's last connection unregistered.
func (p *Presence) Offline(user string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.grace <= 0 {
		p.reconcileLocked(user)
		return
	}
	if _, ok := p.pending[user]; ok {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(p.grace, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.pending[user] != t {
			return
		}
		delete(p.pending, user)
		p.reconcileLocked(user)
	})
	p.pending[user] = t
}

// reconcileLocked announces the registry's current view if it differs from
// the last announcement.
func (p *Presence) reconcileLocked(user string) {
	online := p.registry.IsOnline(user)
	if p.announced[user] == online {
		return
	}
	if online {
		p.announced[user] = true
	} else {
		delete(p.announced, user)
	}

	ev := &StatusEvent{User: user, Online: online, At: p.now().UTC()}
	for _, c := range p.registry.Snapshot() {
		c.deliver(ev)
	}
}

// Status reports the last announced state of user.
func (p *Presence) Status(user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.announced[user]
}

// Stop cancels pending offline announcements.
func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for user, t := range p.pending {
		t.Stop()
		delete(p.pending, user)
	}
}

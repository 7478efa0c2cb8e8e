package core

import (
	"sync"
	"sync/atomic"
)

// DefaultOutboundBuffer is the per-connection event queue size.
const DefaultOutboundBuffer = 64

// Client is one live transport session as seen by the core layer.
// A user may own several clients at once (one per device).
type Client struct {
	ID       string
	Commands chan Command

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	lagging   atomic.Bool

	mu   sync.RWMutex
	user string
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultOutboundBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan Command, 8),
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

// Events is the outbound queue drained by the transport.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the client is disconnected or fell too far behind.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// User returns the registered identity, or "" before registration.
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Lagging reports whether the client was closed for not draining its queue.
func (c *Client) Lagging() bool {
	return c.lagging.Load()
}

func (c *Client) bind(user string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user != "" {
		return coreError(ErrAlreadyRegistered, "connection already registered as %s", c.user)
	}
	c.user = user
	return nil
}

// deliver enqueues an event without blocking. A full queue closes the client
// instead of skipping the event; the device reconnects and backfills from history.
func (c *Client) deliver(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- ev:
		return true
	default:
		c.lagging.Store(true)
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/callengine"
	"github.com/vovakirdan/huddle/internal/push"
	"github.com/vovakirdan/huddle/internal/store"
)

// IdentityVerifier turns a registration token into a verified user identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Options tunes the hub's timers and limits.
type Options struct {
	TypingTTL          time.Duration
	SweepInterval      time.Duration
	PresenceGrace      time.Duration
	CallRingTimeout    time.Duration
	EndedCallRetention time.Duration
	MaxContentLength   int
	PushTimeout        time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TypingTTL:          DefaultTypingTTL,
		SweepInterval:      250 * time.Millisecond,
		PresenceGrace:      3 * time.Second,
		CallRingTimeout:    DefaultCallRingTimeout,
		EndedCallRetention: DefaultEndedCallRetention,
		MaxContentLength:   4000,
		PushTimeout:        5 * time.Second,
	}
}

// Deps are the hub's external collaborators. Notifier and Engine are optional.
type Deps struct {
	Store    store.Store
	Verifier IdentityVerifier
	Notifier push.Notifier
	Engine   callengine.Engine
	Logger   *zerolog.Logger
}

// Hub coordinates connections, rooms and calls. It is the single dispatch
// point for client commands.
type Hub struct {
	verifier IdentityVerifier
	log      zerolog.Logger
	opts     Options

	registry  *Registry
	members   *Membership
	presence  *Presence
	typing    *Typing
	fanout    *Fanout
	reactions *Reactions
	calls     *Signaling

	mu    sync.Mutex
	loops map[*Client]*connLoop
}

type connLoop struct {
	stop chan struct{}
	done chan struct{}
}

// NewHub wires the core components around deps.
func NewHub(deps Deps, opts Options) *Hub {
	def := DefaultOptions()
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = def.TypingTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = def.SweepInterval
	}
	if opts.PresenceGrace < 0 {
		opts.PresenceGrace = 0
	}
	if opts.CallRingTimeout <= 0 {
		opts.CallRingTimeout = def.CallRingTimeout
	}
	if opts.EndedCallRetention <= 0 {
		opts.EndedCallRetention = def.EndedCallRetention
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = def.PushTimeout
	}

	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	locks := newRoomLocks()
	registry := NewRegistry()
	members := NewMembership(deps.Store)

	h := &Hub{
		verifier: deps.Verifier,
		log:      logger.With().Str("component", "hub").Logger(),
		opts:     opts,
		registry: registry,
		members:  members,
		presence: NewPresence(registry, opts.PresenceGrace),
		typing:   NewTyping(members, opts.TypingTTL),
		fanout: &Fanout{
			messages:   deps.Store,
			rooms:      deps.Store,
			members:    members,
			registry:   registry,
			notifier:   deps.Notifier,
			locks:      locks,
			log:        logger.With().Str("component", "fanout").Logger(),
			maxContent: opts.MaxContentLength,
			pushWait:   opts.PushTimeout,
			now:        time.Now,
		},
		reactions: &Reactions{
			messages:  deps.Store,
			reactions: deps.Store,
			receipts:  deps.Store,
			members:   members,
			now:       time.Now,
		},
		calls: &Signaling{
			messages:    deps.Store,
			rooms:       deps.Store,
			members:     members,
			registry:    registry,
			engine:      deps.Engine,
			locks:       locks,
			log:         logger.With().Str("component", "signaling").Logger(),
			ringTimeout: opts.CallRingTimeout,
			retention:   opts.EndedCallRetention,
			now:         time.Now,
			calls:       make(map[string]*Call),
			active:      make(map[string]string),
		},
		loops: make(map[*Client]*connLoop),
	}
	return h
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Presence exposes the presence broadcaster.
func (h *Hub) Presence() *Presence { return h.presence }

// Run drives the typing and call retention sweepers until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()
	defer h.presence.Stop()
	defer h.calls.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.typing.Sweep(now)
			h.calls.Purge(now)
		}
	}
}

// Connect starts the connection's command loop. Commands sent on c.Commands
// are handled in order until Disconnect.
func (h *Hub) Connect(ctx context.Context, c *Client) {
	loop := &connLoop{stop: make(chan struct{}), done: make(chan struct{})}

	h.mu.Lock()
	if _, exists := h.loops[c]; exists {
		h.mu.Unlock()
		return
	}
	h.loops[c] = loop
	h.mu.Unlock()

	// A client that disconnects mid-send still gets its write completed.
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(loop.done)
		for {
			select {
			case <-loop.stop:
				return
			case cmd := <-c.Commands:
				h.Handle(ctx, c, cmd)
			}
		}
	}()
}

// Disconnect stops the command loop and releases everything the connection
// held. Each step runs even if an earlier one fails. Calls are left running.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	loop, ok := h.loops[c]
	delete(h.loops, c)
	h.mu.Unlock()
	if ok {
		close(loop.stop)
		<-loop.done
	}
	defer c.close()

	var rooms []string
	h.cleanup(c, "leave rooms", func() {
		rooms = h.members.LeaveAll(c)
	})
	if c.User() != "" {
		h.cleanup(c, "clear typing", func() {
			h.typing.ReleaseAll(c, rooms)
		})
	}
	var (
		user string
		last bool
	)
	h.cleanup(c, "unregister", func() {
		user, last = h.registry.Unregister(c)
	})
	if last {
		h.cleanup(c, "presence", func() {
			h.presence.Offline(user)
		})
	}
	h.log.Debug().Str("conn_id", c.ID).Str("user_id", user).Int("rooms", len(rooms)).Msg("client disconnected")
}

func (h *Hub) cleanup(c *Client, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().
				Str("conn_id", c.ID).
				Str("step", step).
				Err(fmt.Errorf("%v", r)).
				Msg("disconnect cleanup failed")
		}
	}()
	fn()
}

// Handle executes one command for c. Failures are reported to c alone as an
// error event; nothing is broadcast for a failed command.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd Command) {
	if err := h.dispatch(ctx, c, cmd); err != nil {
		code, msg := ErrorCode(err)
		if code == ErrCodePersistence {
			h.log.Warn().Err(err).Str("conn_id", c.ID).Str("op", cmd.Op()).Msg("command failed")
		}
		c.deliver(&ErrorEvent{Op: cmd.Op(), Code: code, Message: msg})
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd Command) error {
	if reg, ok := cmd.(*RegisterCommand); ok {
		return h.register(ctx, c, reg)
	}
	if c.User() == "" {
		return coreError(ErrUnauthorized, "register before %s", cmd.Op())
	}

	switch cmd := cmd.(type) {
	case *JoinRoomCommand:
		return h.join(ctx, c, cmd)
	case *LeaveRoomCommand:
		if h.members.Leave(c, cmd.Room) {
			h.typing.Release(c, cmd.Room)
		}
		return nil
	case *SendMessageCommand:
		_, err := h.fanout.SendMessage(ctx, c, cmd)
		return err
	case *EditMessageCommand:
		_, err := h.fanout.EditMessage(ctx, c, cmd)
		return err
	case *DeleteMessageCommand:
		_, err := h.fanout.DeleteMessage(ctx, c, cmd)
		return err
	case *TypingCommand:
		if cmd.Typing {
			return h.typing.Start(c, cmd.Room)
		}
		return h.typing.Stop(c, cmd.Room)
	case *ReactionCommand:
		if cmd.Remove {
			return h.reactions.RemoveReaction(ctx, c, cmd)
		}
		return h.reactions.AddReaction(ctx, c, cmd)
	case *MarkReadCommand:
		return h.reactions.MarkRead(ctx, c, cmd)
	case *InitiateCallCommand:
		_, err := h.calls.InitiateCall(ctx, c, cmd)
		return err
	case *CallResponseCommand:
		_, err := h.calls.Respond(ctx, c, cmd)
		return err
	case *EndCallCommand:
		return h.calls.EndCall(ctx, c, cmd)
	case *RelaySignalCommand:
		return h.calls.RelaySignal(ctx, c, cmd)
	default:
		return coreError(ErrBadRequest, "unsupported command %s", cmd.Op())
	}
}

func (h *Hub) register(ctx context.Context, c *Client, cmd *RegisterCommand) error {
	if c.User() != "" {
		return coreError(ErrAlreadyRegistered, "connection already registered as %s", c.User())
	}
	if h.verifier == nil {
		return coreError(ErrUnauthorized, "identity verification unavailable")
	}
	user, err := h.verifier.Verify(ctx, cmd.Token)
	if err != nil || user == "" {
		return coreError(ErrUnauthorized, "invalid credentials")
	}
	if _, err := h.registry.Register(c, user); err != nil {
		return err
	}
	c.deliver(&RegisteredEvent{User: user, ConnID: c.ID})
	h.presence.Online(user)
	h.log.Debug().Str("conn_id", c.ID).Str("user_id", user).Msg("client registered")
	return nil
}

func (h *Hub) join(ctx context.Context, c *Client, cmd *JoinRoomCommand) error {
	if _, err := h.members.Join(ctx, c, cmd.Room); err != nil {
		return err
	}
	c.deliver(&RoomStateEvent{
		Room:   cmd.Room,
		Typing: h.typing.Typers(cmd.Room),
		Call:   h.calls.ActiveCall(cmd.Room),
	})
	return nil
}

// ActiveCall returns the room's in-flight call, if any.
func (h *Hub) ActiveCall(room string) *CallSnapshot {
	return h.calls.ActiveCall(room)
}

package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/huddle/internal/push"
	"github.com/vovakirdan/huddle/internal/store"
	"github.com/vovakirdan/huddle/internal/store/sqlite"
)

// mustEvent drains c until an event of the given kind arrives.
func mustEvent[T Event](t *testing.T, c *Client, kind EventKind) T {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind() != kind {
				continue
			}
			typed, ok := ev.(T)
			if !ok {
				t.Fatalf("event %v has unexpected type %T", kind, ev)
			}
			return typed
		case <-deadline:
			var zero T
			t.Fatalf("expected event kind %v not received by %s", kind, c.ID)
			return zero
		}
	}
}

// noEvent asserts that no event of kind reaches c within wait.
func noEvent(t *testing.T, c *Client, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind() == kind {
				t.Fatalf("unexpected %v event: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

// mustStatus waits for a presence event about user.
func mustStatus(t *testing.T, c *Client, user string, online bool) {
	t.Helper()

	for {
		ev := mustEvent[*StatusEvent](t, c, EventUserStatusChanged)
		if ev.User != user {
			continue
		}
		if ev.Online != online {
			t.Fatalf("expected %s online=%v, got %+v", user, online, ev)
		}
		return
	}
}

func mustError(t *testing.T, c *Client, code string) *ErrorEvent {
	t.Helper()

	ev := mustEvent[*ErrorEvent](t, c, EventError)
	if ev.Code != code {
		t.Fatalf("expected %s error, got %+v", code, ev)
	}
	return ev
}

// waitUntil polls cond until it holds or two seconds pass.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// tokenVerifier treats the token as the identity.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" || token == "bad" {
		return "", errors.New("invalid token")
	}
	return token, nil
}

// failingStore fails selected writes on demand.
type failingStore struct {
	store.Store
	failSave   atomic.Bool
	failUpdate atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if s.failSave.Load() {
		return errDiskFull
	}
	return s.Store.SaveMessage(ctx, msg)
}

func (s *failingStore) UpdateMessage(ctx context.Context, msg *store.Message) error {
	if s.failUpdate.Load() {
		return errDiskFull
	}
	return s.Store.UpdateMessage(ctx, msg)
}

type testEnv struct {
	hub   *Hub
	store *failingStore
	ctx   context.Context
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.PresenceGrace = 0
	opts.SweepInterval = 20 * time.Millisecond
	return opts
}

// newTestEnv runs a hub over an in-memory store with room "general"
// (alice, bob, carol) and room "random" (alice).
func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	return newTestEnvWithNotifier(t, opts, nil)
}

// newTestEnvWithNotifier is newTestEnv with offline push delivered to n.
func newTestEnvWithNotifier(t *testing.T, opts Options, n push.Notifier) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if _, err := db.CreateRoom(ctx, "general", "General"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := db.CreateRoom(ctx, "random", "Random"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, user := range []string{"alice", "bob", "carol"} {
		if err := db.AddMember(ctx, "general", user); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	if err := db.AddMember(ctx, "random", "alice"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	fs := &failingStore{Store: db}
	hub := NewHub(Deps{Store: fs, Verifier: tokenVerifier{}, Notifier: n}, opts)
	go hub.Run(ctx)

	return &testEnv{hub: hub, store: fs, ctx: ctx}
}

// connect opens a registered connection for user.
func (e *testEnv) connect(t *testing.T, id, user string) *Client {
	t.Helper()

	c := NewClient(id, 256)
	e.hub.Connect(e.ctx, c)
	t.Cleanup(func() { e.hub.Disconnect(c) })

	c.Commands <- &RegisterCommand{Token: user}
	ev := mustEvent[*RegisteredEvent](t, c, EventRegistered)
	if ev.User != user || ev.ConnID != id {
		t.Fatalf("unexpected registered event: %+v", ev)
	}
	return c
}

// join subscribes c to room and waits for the room snapshot.
func (e *testEnv) join(t *testing.T, c *Client, room string) *RoomStateEvent {
	t.Helper()

	c.Commands <- &JoinRoomCommand{Room: room}
	return mustEvent[*RoomStateEvent](t, c, EventRoomState)
}

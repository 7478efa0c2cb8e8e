package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/huddle/internal/push"
)

// recordingNotifier captures every notification it is handed.
type recordingNotifier struct {
	got chan push.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note push.Notification) error {
	n.got <- note
	return nil
}

// stuckNotifier blocks until released and then fails.
type stuckNotifier struct {
	calls   chan struct{}
	release chan struct{}
}

func (n *stuckNotifier) Notify(ctx context.Context, _ push.Notification) error {
	n.calls <- struct{}{}
	select {
	case <-n.release:
	case <-ctx.Done():
	}
	return errors.New("push gateway unavailable")
}

func TestSendMessageNotifiesOfflineMembers(t *testing.T) {
	notifier := &recordingNotifier{got: make(chan push.Notification, 4)}
	env := newTestEnvWithNotifier(t, testOptions(), notifier)

	alice := env.connect(t, "a", "alice")
	bob := env.connect(t, "b", "bob")
	env.join(t, alice, "general")

	alice.Commands <- &SendMessageCommand{Room: "general", Content: "where is everyone"}
	sent := mustEvent[*MessageEvent](t, alice, EventNewMessage)

	select {
	case note := <-notifier.got:
		if len(note.Recipients) != 1 || note.Recipients[0] != "carol" {
			t.Fatalf("expected only carol to be notified, got %v", note.Recipients)
		}
		if note.MessageID != sent.Message.ID || note.SenderID != "alice" || note.RoomID != "general" {
			t.Fatalf("unexpected notification: %+v", note)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("offline member was not notified")
	}

	// bob is online but not joined: no message and no push.
	noEvent(t, bob, EventNewMessage, 50*time.Millisecond)
	select {
	case note := <-notifier.got:
		t.Fatalf("unexpected second notification: %+v", note)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendMessageSkipsPushWhenEveryoneOnline(t *testing.T) {
	notifier := &recordingNotifier{got: make(chan push.Notification, 4)}
	env := newTestEnvWithNotifier(t, testOptions(), notifier)

	alice := env.connect(t, "a", "alice")
	env.connect(t, "b", "bob")
	env.connect(t, "c", "carol")
	env.join(t, alice, "general")

	alice.Commands <- &SendMessageCommand{Room: "general", Content: "all here"}
	mustEvent[*MessageEvent](t, alice, EventNewMessage)

	select {
	case note := <-notifier.got:
		t.Fatalf("no member is offline, got notification %+v", note)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStuckNotifierDoesNotDelayDelivery(t *testing.T) {
	notifier := &stuckNotifier{calls: make(chan struct{}, 8), release: make(chan struct{})}
	t.Cleanup(func() { close(notifier.release) })
	env := newTestEnvWithNotifier(t, testOptions(), notifier)

	alice := env.connect(t, "a", "alice")
	bob := env.connect(t, "b", "bob")
	env.join(t, alice, "general")
	env.join(t, bob, "general")

	alice.Commands <- &SendMessageCommand{Room: "general", Content: "first"}
	mustEvent[*MessageEvent](t, bob, EventNewMessage)
	select {
	case <-notifier.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never called")
	}

	// The first notification is still blocked; later traffic must flow.
	start := time.Now()
	alice.Commands <- &SendMessageCommand{Room: "general", Content: "second"}
	got := mustEvent[*MessageEvent](t, bob, EventNewMessage)
	if got.Message.Content != "second" {
		t.Fatalf("unexpected message: %+v", got.Message)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("delivery waited on notifier: %v", elapsed)
	}
	mustEvent[*MessageEvent](t, alice, EventNewMessage)
	noEvent(t, alice, EventError, 20*time.Millisecond)
}

func TestConcurrentSendersSeeSameOrder(t *testing.T) {
	const perSender = 20

	env := newTestEnv(t, testOptions())

	users := []string{"alice", "bob", "carol"}
	clients := make([]*Client, len(users))
	for i, user := range users {
		clients[i] = env.connect(t, fmt.Sprintf("c%d", i), user)
		env.join(t, clients[i], "general")
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for i := range perSender {
				c.Commands <- &SendMessageCommand{Room: "general", Content: fmt.Sprintf("%s-%d", c.ID, i)}
			}
		}(c)
	}
	wg.Wait()

	total := perSender * len(clients)
	var first []int64
	for _, c := range clients {
		ids := make([]int64, 0, total)
		for range total {
			ev := mustEvent[*MessageEvent](t, c, EventNewMessage)
			if n := len(ids); n > 0 && ev.Message.ID <= ids[n-1] {
				t.Fatalf("%s saw message %d after %d", c.ID, ev.Message.ID, ids[n-1])
			}
			ids = append(ids, ev.Message.ID)
		}
		if first == nil {
			first = ids
			continue
		}
		for i := range ids {
			if ids[i] != first[i] {
				t.Fatalf("%s order diverges at %d: %d vs %d", c.ID, i, ids[i], first[i])
			}
		}
	}
}

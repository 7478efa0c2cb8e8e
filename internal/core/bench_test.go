package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/vovakirdan/huddle/internal/store/sqlite"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlite.New(":memory:")
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	defer db.Close()
	if _, err := db.CreateRoom(ctx, "bench", "Bench"); err != nil {
		b.Fatalf("create room: %v", err)
	}

	opts := DefaultOptions()
	opts.PresenceGrace = 0
	hub := NewHub(Deps{Store: db, Verifier: tokenVerifier{}}, opts)
	go hub.Run(ctx)

	join := func(id, user string) *Client {
		if err := db.AddMember(ctx, "bench", user); err != nil {
			b.Fatalf("add member: %v", err)
		}
		c := NewClient(id, 1024)
		if _, err := hub.registry.Register(c, user); err != nil {
			b.Fatalf("register: %v", err)
		}
		if _, err := hub.members.Join(ctx, c, "bench"); err != nil {
			b.Fatalf("join: %v", err)
		}
		return c
	}

	sender := join("sender", "sender")
	go func() {
		for range sender.Events() {
		}
	}()

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		clients = append(clients, join(fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i)))
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events() {
			}
		}(c)
	}

	cmd := &SendMessageCommand{Room: "bench", Content: "payload"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := hub.fanout.SendMessage(ctx, sender, cmd); err != nil {
			b.Fatalf("send: %v", err)
		}
		<-target.Events()
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }

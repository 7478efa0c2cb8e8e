package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/huddle/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	_, err = s.CreateRoom(ctx, "general", "General")
	require.NoError(t, err)
	require.NoError(t, s.AddMember(ctx, "general", "alice"))
	require.NoError(t, s.AddMember(ctx, "general", "bob"))

	return s
}

func TestMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.IsMember(ctx, "general", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(ctx, "general", "mallory")
	require.NoError(t, err)
	assert.False(t, ok)

	// Adding twice is a no-op.
	require.NoError(t, s.AddMember(ctx, "general", "alice"))
	members, err := s.ListMembers(ctx, "general")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)

	require.NoError(t, s.RemoveMember(ctx, "general", "bob"))
	ok, err = s.IsMember(ctx, "general", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetRoomNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRoom(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveMessageAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &store.Message{RoomID: "general", SenderID: "alice", Content: "hi", Type: store.MessageTypeText}
	require.NoError(t, s.SaveMessage(ctx, first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	reply := &store.Message{RoomID: "general", SenderID: "bob", Content: "hello", Type: store.MessageTypeText, ReplyToID: &first.ID}
	require.NoError(t, s.SaveMessage(ctx, reply))
	assert.Greater(t, reply.ID, first.ID)

	got, err := s.GetMessage(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReplyToID)
	assert.Equal(t, first.ID, *got.ReplyToID)
	assert.Equal(t, "hello", got.Content)
	assert.True(t, got.CreatedAt.Equal(reply.CreatedAt))

	_, err = s.GetMessage(ctx, 9999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateMessageTombstone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &store.Message{RoomID: "general", SenderID: "alice", Content: "oops", Type: store.MessageTypeText}
	require.NoError(t, s.SaveMessage(ctx, msg))

	now := time.Now().UTC()
	msg.Content = ""
	msg.DeletedAt = &now
	require.NoError(t, s.UpdateMessage(ctx, msg))

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	assert.Empty(t, got.Content)

	missing := &store.Message{ID: 424242}
	require.ErrorIs(t, s.UpdateMessage(ctx, missing), store.ErrNotFound)
}

func TestListMessagesPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, text := range []string{"one", "two", "three", "four"} {
		msg := &store.Message{RoomID: "general", SenderID: "alice", Content: text, Type: store.MessageTypeText}
		require.NoError(t, s.SaveMessage(ctx, msg))
		ids = append(ids, msg.ID)
	}

	latest, err := s.ListMessages(ctx, "general", 2, nil)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "three", latest[0].Content)
	assert.Equal(t, "four", latest[1].Content)

	older, err := s.ListMessages(ctx, "general", 10, &ids[2])
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "one", older[0].Content)
	assert.Equal(t, "two", older[1].Content)
}

func TestTouchRoomIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	later := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, s.TouchRoom(ctx, "general", later))
	require.NoError(t, s.TouchRoom(ctx, "general", earlier))

	room, err := s.GetRoom(ctx, "general")
	require.NoError(t, err)
	require.NotNil(t, room.LastActivityAt)
	assert.True(t, room.LastActivityAt.Equal(later))

	require.ErrorIs(t, s.TouchRoom(ctx, "ghost", later), store.ErrNotFound)
}

func TestReactionsHaveSetSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &store.Message{RoomID: "general", SenderID: "alice", Content: "hi", Type: store.MessageTypeText}
	require.NoError(t, s.SaveMessage(ctx, msg))

	for range 2 {
		require.NoError(t, s.AddReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: "bob", Emoji: "👍"}))
	}
	require.NoError(t, s.AddReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: "bob", Emoji: "🎉"}))

	reactions, err := s.ListReactions(ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	removed, err := s.RemoveReaction(ctx, msg.ID, "bob", "👍")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveReaction(ctx, msg.ID, "bob", "👍")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReadCursorNeverMovesBackwards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cursor, err := s.GetReadCursor(ctx, "general", "bob")
	require.NoError(t, err)
	assert.True(t, cursor.IsZero())

	later := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	got, err := s.AdvanceReadCursor(ctx, "general", "bob", later)
	require.NoError(t, err)
	assert.True(t, got.Equal(later))

	got, err = s.AdvanceReadCursor(ctx, "general", "bob", later.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, got.Equal(later), "cursor moved backwards to %v", got)

	cursor, err = s.GetReadCursor(ctx, "general", "bob")
	require.NoError(t, err)
	assert.True(t, cursor.Equal(later))
}

func TestSaveReadReceiptIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &store.Message{RoomID: "general", SenderID: "alice", Content: "hi", Type: store.MessageTypeText}
	require.NoError(t, s.SaveMessage(ctx, msg))

	r := &store.ReadReceipt{MessageID: msg.ID, UserID: "bob", ReadAt: time.Now()}
	require.NoError(t, s.SaveReadReceipt(ctx, r))
	require.NoError(t, s.SaveReadReceipt(ctx, r))
}

package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vovakirdan/huddle/internal/store"
)

const maxEmojiLength = 32

// Reactions mutates reaction sets and read cursors, persisting before it broadcasts.
type Reactions struct {
	messages  store.MessageStore
	reactions store.ReactionStore
	receipts  store.ReceiptStore
	members   *Membership
	now       func() time.Time
}

func validEmoji(emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return coreError(ErrBadRequest, "emoji is required")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiLength {
		return coreError(ErrBadRequest, "emoji is too long")
	}
	return nil
}

// target loads the message and checks that c is joined to its room.
func (r *Reactions) target(ctx context.Context, c *Client, id int64) (*store.Message, error) {
	msg, err := r.messages.GetMessage(ctx, id)
	if err != nil {
		return nil, persistenceError("message", err)
	}
	if !r.members.IsJoined(c, msg.RoomID) {
		return nil, coreError(ErrAccessDenied, "not joined to room %s", msg.RoomID)
	}
	return msg, nil
}

// AddReaction upserts the caller's reaction and broadcasts it. Repeating the
// same reaction broadcasts again; consumers apply it as a set insert.
func (r *Reactions) AddReaction(ctx context.Context, c *Client, cmd *ReactionCommand) error {
	if err := validEmoji(cmd.Emoji); err != nil {
		return err
	}
	msg, err := r.target(ctx, c, cmd.MessageID)
	if err != nil {
		return err
	}
	if msg.Deleted() {
		return coreError(ErrForbidden, "message %d was deleted", msg.ID)
	}

	reaction := &store.Reaction{
		MessageID: msg.ID,
		UserID:    c.User(),
		Emoji:     cmd.Emoji,
		CreatedAt: r.now().UTC(),
	}
	if err := r.reactions.AddReaction(ctx, reaction); err != nil {
		return persistenceError("reaction", err)
	}
	r.members.Broadcast(msg.RoomID, &ReactionEvent{Added: true, Room: msg.RoomID, Reaction: *reaction}, nil)
	return nil
}

// RemoveReaction deletes the caller's own reaction. It succeeds and broadcasts
// even when no such reaction existed.
func (r *Reactions) RemoveReaction(ctx context.Context, c *Client, cmd *ReactionCommand) error {
	if err := validEmoji(cmd.Emoji); err != nil {
		return err
	}
	msg, err := r.target(ctx, c, cmd.MessageID)
	if err != nil {
		return err
	}

	if _, err := r.reactions.RemoveReaction(ctx, msg.ID, c.User(), cmd.Emoji); err != nil {
		return persistenceError("reaction", err)
	}
	r.members.Broadcast(msg.RoomID, &ReactionEvent{
		Added:    false,
		Room:     msg.RoomID,
		Reaction: store.Reaction{MessageID: msg.ID, UserID: c.User(), Emoji: cmd.Emoji},
	}, nil)
	return nil
}

// MarkRead advances the caller's read cursor for the room to max(current, now)
// and optionally records a receipt for one message.
func (r *Reactions) MarkRead(ctx context.Context, c *Client, cmd *MarkReadCommand) error {
	if !r.members.IsJoined(c, cmd.Room) {
		return coreError(ErrAccessDenied, "not joined to room %s", cmd.Room)
	}
	if cmd.MessageID != nil {
		msg, err := r.messages.GetMessage(ctx, *cmd.MessageID)
		if err != nil {
			return persistenceError("message", err)
		}
		if msg.RoomID != cmd.Room {
			return coreError(ErrBadRequest, "message %d belongs to another room", msg.ID)
		}
	}

	user := c.User()
	now := r.now().UTC()
	cursor, err := r.receipts.AdvanceReadCursor(ctx, cmd.Room, user, now)
	if err != nil {
		return persistenceError("read cursor", err)
	}
	if cmd.MessageID != nil {
		err := r.receipts.SaveReadReceipt(ctx, &store.ReadReceipt{MessageID: *cmd.MessageID, UserID: user, ReadAt: now})
		if err != nil {
			return persistenceError("read receipt", err)
		}
	}

	r.members.Broadcast(cmd.Room, &ReadReceiptEvent{
		Room:      cmd.Room,
		User:      user,
		MessageID: cmd.MessageID,
		ReadAt:    cursor,
	}, nil)
	return nil
}

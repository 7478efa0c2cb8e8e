package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/push"
	"github.com/vovakirdan/huddle/internal/store"
)

// Fanout persists chat messages and broadcasts them to the room.
type Fanout struct {
	messages   store.MessageStore
	rooms      store.RoomStore
	members    *Membership
	registry   *Registry
	notifier   push.Notifier
	locks      *roomLocks
	log        zerolog.Logger
	maxContent int
	pushWait   time.Duration
	now        func() time.Time
}

func (f *Fanout) validContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return coreError(ErrBadRequest, "content is required")
	}
	if f.maxContent > 0 && utf8.RuneCountInString(content) > f.maxContent {
		return coreError(ErrBadRequest, "content exceeds %d characters", f.maxContent)
	}
	return nil
}

func parseMessageType(t string) (store.MessageType, error) {
	switch store.MessageType(t) {
	case "", store.MessageTypeText:
		return store.MessageTypeText, nil
	case store.MessageTypeImage, store.MessageTypeFile:
		return store.MessageType(t), nil
	default:
		return "", coreError(ErrBadRequest, "unsupported message type %q", t)
	}
}

// SendMessage persists a message and broadcasts it to every connection joined
// to the room, the origin included. Nothing is broadcast if persistence fails.
func (f *Fanout) SendMessage(ctx context.Context, c *Client, cmd *SendMessageCommand) (*store.Message, error) {
	if !f.members.IsJoined(c, cmd.Room) {
		return nil, coreError(ErrAccessDenied, "not joined to room %s", cmd.Room)
	}
	if err := f.validContent(cmd.Content); err != nil {
		return nil, err
	}
	msgType, err := parseMessageType(cmd.Type)
	if err != nil {
		return nil, err
	}
	if cmd.ReplyTo != nil {
		parent, err := f.messages.GetMessage(ctx, *cmd.ReplyTo)
		if err != nil {
			return nil, persistenceError("reply target", err)
		}
		if parent.RoomID != cmd.Room {
			return nil, coreError(ErrBadRequest, "reply target belongs to another room")
		}
	}

	msg := &store.Message{
		RoomID:    cmd.Room,
		SenderID:  c.User(),
		Content:   cmd.Content,
		Type:      msgType,
		ReplyToID: cmd.ReplyTo,
	}

	unlock := f.locks.lock(cmd.Room)
	if err := f.messages.SaveMessage(ctx, msg); err != nil {
		unlock()
		f.log.Error().Err(err).Str("room_id", cmd.Room).Str("user_id", msg.SenderID).Msg("save message")
		return nil, persistenceError("message", err)
	}
	if err := f.rooms.TouchRoom(ctx, cmd.Room, msg.CreatedAt); err != nil {
		f.log.Warn().Err(err).Str("room_id", cmd.Room).Msg("touch room activity")
	}
	f.members.Broadcast(cmd.Room, &MessageEvent{
		EventKind:  EventNewMessage,
		Message:    *msg,
		OriginConn: c.ID,
	}, nil)
	unlock()

	f.notifyOffline(*msg)
	return msg, nil
}

// notifyOffline hands the message to the push notifier for members without a
// live connection. It never blocks the caller.
func (f *Fanout) notifyOffline(msg store.Message) {
	if f.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.pushWait)
		defer cancel()

		members, err := f.rooms.ListMembers(ctx, msg.RoomID)
		if err != nil {
			f.log.Warn().Err(err).Str("room_id", msg.RoomID).Msg("push: list members")
			return
		}
		offline := make([]string, 0, len(members))
		for _, m := range members {
			if m != msg.SenderID && !f.registry.IsOnline(m) {
				offline = append(offline, m)
			}
		}
		if len(offline) == 0 {
			return
		}
		err = f.notifier.Notify(ctx, push.Notification{
			RoomID:     msg.RoomID,
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			Preview:    msg.Content,
			Recipients: offline,
			CreatedAt:  msg.CreatedAt,
		})
		if err != nil {
			f.log.Warn().Err(err).Str("room_id", msg.RoomID).Int64("message_id", msg.ID).Msg("push: notify")
		}
	}()
}

// authorOf loads a message and checks that c may mutate it.
func (f *Fanout) authorOf(ctx context.Context, c *Client, id int64) (*store.Message, error) {
	msg, err := f.messages.GetMessage(ctx, id)
	if err != nil {
		return nil, persistenceError("message", err)
	}
	if !f.members.IsJoined(c, msg.RoomID) {
		return nil, coreError(ErrAccessDenied, "not joined to room %s", msg.RoomID)
	}
	if msg.SenderID != c.User() || msg.Type == store.MessageTypeCall {
		return nil, coreError(ErrForbidden, "only the sender may modify message %d", id)
	}
	return msg, nil
}

// EditMessage replaces the content of the caller's own message.
func (f *Fanout) EditMessage(ctx context.Context, c *Client, cmd *EditMessageCommand) (*store.Message, error) {
	if err := f.validContent(cmd.Content); err != nil {
		return nil, err
	}
	msg, err := f.authorOf(ctx, c, cmd.MessageID)
	if err != nil {
		return nil, err
	}

	unlock := f.locks.lock(msg.RoomID)
	defer unlock()

	// Re-read under the room lock; a concurrent delete may have landed.
	msg, err = f.messages.GetMessage(ctx, cmd.MessageID)
	if err != nil {
		return nil, persistenceError("message", err)
	}
	if msg.Deleted() {
		return nil, coreError(ErrForbidden, "message %d was deleted", msg.ID)
	}

	now := f.now().UTC()
	msg.Content = cmd.Content
	msg.EditedAt = &now
	if err := f.messages.UpdateMessage(ctx, msg); err != nil {
		return nil, persistenceError("message", err)
	}
	f.members.Broadcast(msg.RoomID, &MessageEvent{
		EventKind:  EventMessageUpdated,
		Message:    *msg,
		OriginConn: c.ID,
	}, nil)
	return msg, nil
}

// DeleteMessage tombstones the caller's own message. Deleting a tombstone is a no-op.
func (f *Fanout) DeleteMessage(ctx context.Context, c *Client, cmd *DeleteMessageCommand) (*store.Message, error) {
	msg, err := f.authorOf(ctx, c, cmd.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted() {
		return msg, nil
	}

	unlock := f.locks.lock(msg.RoomID)
	defer unlock()

	msg, err = f.messages.GetMessage(ctx, cmd.MessageID)
	if err != nil {
		return nil, persistenceError("message", err)
	}
	if msg.Deleted() {
		return msg, nil
	}

	now := f.now().UTC()
	msg.Content = ""
	msg.DeletedAt = &now
	if err := f.messages.UpdateMessage(ctx, msg); err != nil {
		return nil, persistenceError("message", err)
	}
	f.members.Broadcast(msg.RoomID, &MessageEvent{
		EventKind:  EventMessageDeleted,
		Message:    *msg,
		OriginConn: c.ID,
	}, nil)
	return msg, nil
}

package push

import (
	"context"
	"time"
)

// Notification asks the push service to alert offline room members about a message.
type Notification struct {
	RoomID     string    `json:"room_id"`
	MessageID  int64     `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	Preview    string    `json:"preview"`
	Recipients []string  `json:"recipients"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notifier dispatches push notifications. Callers treat it as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop discards every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }

var _ Notifier = Nop{}

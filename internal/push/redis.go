package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultList is the redis list the push worker consumes.
const DefaultList = "huddle:push"

// previewRunes bounds the message text copied into a notification.
const previewRunes = 120

type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisNotifier enqueues notifications onto a redis list for an out-of-process push worker.
type RedisNotifier struct {
	client listPusher
	list   string
}

// NewRedis builds a notifier around any client exposing LPUSH (*redis.Client, *redis.ClusterClient).
func NewRedis(client listPusher, list string) *RedisNotifier {
	if list == "" {
		list = DefaultList
	}
	return &RedisNotifier{client: client, list: list}
}

// Notify implements Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, note Notification) error {
	if len(note.Recipients) == 0 {
		return nil
	}
	note.Preview = truncate(note.Preview, previewRunes)

	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.client.LPush(ctx, n.list, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

var _ Notifier = (*RedisNotifier)(nil)

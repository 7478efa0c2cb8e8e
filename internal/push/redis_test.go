package push

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingList struct {
	key    string
	values []interface{}
	err    error
}

func (r *recordingList) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	r.key = key
	r.values = append(r.values, values...)
	return redis.NewIntResult(int64(len(r.values)), r.err)
}

func TestRedisNotifierEnqueuesJSON(t *testing.T) {
	list := &recordingList{}
	n := NewRedis(list, "")

	err := n.Notify(context.Background(), Notification{
		RoomID:     "general",
		MessageID:  7,
		SenderID:   "alice",
		Preview:    strings.Repeat("x", 500),
		Recipients: []string{"bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultList, list.key)
	require.Len(t, list.values, 1)

	var got Notification
	require.NoError(t, json.Unmarshal(list.values[0].([]byte), &got))
	assert.Equal(t, int64(7), got.MessageID)
	assert.Equal(t, []string{"bob"}, got.Recipients)
	assert.Len(t, []rune(got.Preview), previewRunes+1)
}

func TestRedisNotifierSkipsEmptyRecipients(t *testing.T) {
	list := &recordingList{}
	n := NewRedis(list, "custom")

	require.NoError(t, n.Notify(context.Background(), Notification{RoomID: "general"}))
	assert.Empty(t, list.values)
}

func TestRedisNotifierWrapsErrors(t *testing.T) {
	boom := errors.New("connection refused")
	n := NewRedis(&recordingList{err: boom}, "custom")

	err := n.Notify(context.Background(), Notification{Recipients: []string{"bob"}})
	require.ErrorIs(t, err, boom)
}

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/huddle/internal/store"
)

func apiGet(t *testing.T, ts *testServer, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, http.NoBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func seedMessages(t *testing.T, ts *testServer, room string, n int) {
	t.Helper()

	for i := range n {
		msg := &store.Message{RoomID: room, SenderID: "alice", Content: fmt.Sprintf("msg %d", i), Type: store.MessageTypeText}
		require.NoError(t, ts.store.SaveMessage(context.Background(), msg))
	}
}

func TestHistoryRequiresToken(t *testing.T) {
	ts := startTestServer(t, nil)

	resp := apiGet(t, ts, "/api/rooms/general/messages", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = apiGet(t, ts, "/api/rooms/general/messages", "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHistoryMembersOnly(t *testing.T) {
	ts := startTestServer(t, nil)
	seedMessages(t, ts, "private", 1)

	resp := apiGet(t, ts, "/api/rooms/private/messages", tokenFor(t, "bob"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = apiGet(t, ts, "/api/rooms/nowhere/messages", tokenFor(t, "bob"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryPagination(t *testing.T) {
	ts := startTestServer(t, nil)
	seedMessages(t, ts, "general", 5)
	token := tokenFor(t, "bob")

	resp := apiGet(t, ts, "/api/rooms/general/messages?limit=3", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "msg 2", page.Messages[0].Content)
	assert.Equal(t, "msg 4", page.Messages[2].Content)
	require.NotNil(t, page.NextBefore)

	resp = apiGet(t, ts, fmt.Sprintf("/api/rooms/general/messages?limit=3&before=%d", *page.NextBefore), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var older HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&older))
	require.Len(t, older.Messages, 2)
	assert.Equal(t, "msg 0", older.Messages[0].Content)
	assert.Nil(t, older.NextBefore)
}

func TestHistoryRejectsBadParams(t *testing.T) {
	ts := startTestServer(t, nil)
	token := tokenFor(t, "alice")

	for _, query := range []string{"limit=0", "limit=abc", "before=-1"} {
		resp := apiGet(t, ts, "/api/rooms/general/messages?"+query, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestUserPresenceEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)
	token := tokenFor(t, "bob")

	var presence PresenceResponse
	resp := apiGet(t, ts, "/api/users/alice/presence", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&presence))
	assert.Equal(t, "offline", presence.Status)

	ts.login(t, "alice")

	assert.Eventually(t, func() bool {
		var current PresenceResponse
		resp := apiGet(t, ts, "/api/users/alice/presence", token)
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&current) != nil {
			return false
		}
		return current.Status == "online"
	}, 2*time.Second, 20*time.Millisecond)
}

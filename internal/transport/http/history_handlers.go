package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/proto"
	"github.com/vovakirdan/huddle/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryHandlers serves the backlog that offline clients fetch on reconnect.
type HistoryHandlers struct {
	store    store.Store
	presence *core.Presence
	log      *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.Store, presence *core.Presence, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{store: st, presence: presence, log: logger}
}

// HistoryResponse is a page of messages, oldest first.
type HistoryResponse struct {
	RoomID   string          `json:"roomId"`
	Messages []proto.Message `json:"messages"`
	// NextBefore is passed as ?before= to fetch the previous page.
	NextBefore *int64 `json:"nextBefore,omitempty"`
}

// PresenceResponse reports a user's announced status.
type PresenceResponse struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// ListMessages returns a page of room history to members only.
// GET /api/rooms/:id/messages?limit=50&before=123
func (h *HistoryHandlers) ListMessages(c *gin.Context) {
	user := c.GetString(ContextKeyUserID)
	roomID := c.Param("id")

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var before *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return
		}
		before = &id
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	member, err := h.store.IsMember(ctx, roomID, user)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
		return
	}

	messages, err := h.store.ListMessages(ctx, roomID, limit, before)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := HistoryResponse{RoomID: roomID, Messages: make([]proto.Message, 0, len(messages))}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, messageToProto(*m))
	}
	if len(messages) == limit {
		resp.NextBefore = &messages[0].ID
	}
	c.JSON(http.StatusOK, resp)
}

// UserPresence reports whether a user is online.
// GET /api/users/:id/presence
func (h *HistoryHandlers) UserPresence(c *gin.Context) {
	userID := c.Param("id")
	status := "offline"
	if h.presence.Status(userID) {
		status = "online"
	}
	c.JSON(http.StatusOK, PresenceResponse{UserID: userID, Status: status})
}

package callengine

import (
	"context"
)

// JoinInfo contains information needed to join a call's media session.
type JoinInfo struct {
	URL      string `json:"url"`       // WebSocket URL (e.g., ws://localhost:7880)
	Token    string `json:"token"`     // JWT token for the media server
	RoomName string `json:"room_name"` // media room name
	Identity string `json:"identity"`  // User identity in the media room
}

// Call is the part of a call the media backend needs to know about.
type Call struct {
	ID     string
	RoomID string
	Kind   string // "audio" or "video"
}

// Engine abstracts the media backend for calls. Signaling never depends on it being present.
type Engine interface {
	// GenerateJoinInfo creates join credentials for a user.
	GenerateJoinInfo(ctx context.Context, call Call, userID string) (*JoinInfo, error)

	// EndCall terminates the media room.
	EndCall(ctx context.Context, call Call) error
}

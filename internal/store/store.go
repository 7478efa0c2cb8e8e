package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Room represents a collaboration room. Membership lives in room_members.
type Room struct {
	ID             string
	Name           string
	LastActivityAt *time.Time
	CreatedAt      time.Time
}

// MessageType classifies a message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	// MessageTypeCall marks the system message recording a call.
	MessageTypeCall MessageType = "call"
)

// Message represents a persisted chat message.
// Deleted messages are tombstones: Content is empty and DeletedAt is set.
type Message struct {
	ID        int64
	RoomID    string
	SenderID  string
	Content   string
	Type      MessageType
	ReplyToID *int64
	Metadata  json.RawMessage
	CreatedAt time.Time
	EditedAt  *time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the message is a tombstone.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Reaction is unique per (MessageID, UserID, Emoji).
type Reaction struct {
	MessageID int64
	UserID    string
	Emoji     string
	CreatedAt time.Time
}

// ReadReceipt records that a user has seen a specific message.
type ReadReceipt struct {
	MessageID int64
	UserID    string
	ReadAt    time.Time
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a new room.
	CreateRoom(ctx context.Context, id, name string) (*Room, error)

	// GetRoom retrieves a room by ID.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// AddMember authorizes a user for a room. Adding twice is a no-op.
	AddMember(ctx context.Context, roomID, userID string) error

	// RemoveMember revokes a user's membership.
	RemoveMember(ctx context.Context, roomID, userID string) error

	// IsMember checks if user is an authorized member of the room.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)

	// ListMembers lists all members of a room.
	ListMembers(ctx context.Context, roomID string) ([]string, error)

	// TouchRoom advances the room's last activity timestamp. Older values never overwrite newer ones.
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and assigns its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID, tombstones included.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// UpdateMessage writes content, metadata, edited_at and deleted_at of an existing message.
	UpdateMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a room with pagination.
	// If beforeID is provided, returns messages older than that ID.
	ListMessages(ctx context.Context, roomID string, limit int, beforeID *int64) ([]*Message, error)
}

// ReactionStore handles reaction persistence.
type ReactionStore interface {
	// AddReaction upserts a reaction.
	AddReaction(ctx context.Context, r *Reaction) error

	// RemoveReaction deletes the reaction if present and reports whether one existed.
	RemoveReaction(ctx context.Context, messageID int64, userID, emoji string) (bool, error)

	// ListReactions lists reactions on a message ordered by creation.
	ListReactions(ctx context.Context, messageID int64) ([]*Reaction, error)
}

// ReceiptStore handles read cursors and per-message receipts.
type ReceiptStore interface {
	// AdvanceReadCursor moves the cursor to max(current, at) and returns the stored value.
	AdvanceReadCursor(ctx context.Context, roomID, userID string, at time.Time) (time.Time, error)

	// GetReadCursor returns the cursor, or the zero time if the user never read the room.
	GetReadCursor(ctx context.Context, roomID, userID string) (time.Time, error)

	// SaveReadReceipt records a receipt. Repeated receipts keep the first read time.
	SaveReadReceipt(ctx context.Context, r *ReadReceipt) error
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore
	ReactionStore
	ReceiptStore

	// Close closes the underlying database connection.
	Close() error
}

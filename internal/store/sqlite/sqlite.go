package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/huddle/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates all tables if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, id, name string) (*store.Room, error) {
	query := `
		INSERT INTO rooms (id, name, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, name, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, name, last_activity_at, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	var lastActivity sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(&room.ID, &room.Name, &lastActivity, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	if lastActivity.Valid {
		t := lastActivity.Time.UTC()
		room.LastActivityAt = &t
	}

	return &room, nil
}

// AddMember adds a user to a room.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, userID string) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}

	return nil
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, userID string) error {
	query := `
		DELETE FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}

	return nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}

	return true, nil
}

// ListMembers lists all members of a room.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	query := `
		SELECT user_id FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, userID)
	}

	return members, rows.Err()
}

// TouchRoom advances last_activity_at, keeping it monotonic.
func (s *SQLiteStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var current sql.NullTime
	err = tx.QueryRowContext(ctx, `SELECT last_activity_at FROM rooms WHERE id = ?`, roomID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
		}
		return fmt.Errorf("query room activity: %w", err)
	}
	if current.Valid && !at.After(current.Time) {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET last_activity_at = ? WHERE id = ?`, at.UTC(), roomID); err != nil {
		return fmt.Errorf("update room activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

const messageColumns = `id, room_id, sender_id, content, type, reply_to_id, metadata, created_at, edited_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var msgType string
	var replyTo sql.NullInt64
	var metadata sql.NullString
	var editedAt, deletedAt sql.NullTime

	if err := row.Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.SenderID,
		&msg.Content,
		&msgType,
		&replyTo,
		&metadata,
		&msg.CreatedAt,
		&editedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	msg.Type = store.MessageType(msgType)
	msg.CreatedAt = msg.CreatedAt.UTC()
	if replyTo.Valid {
		msg.ReplyToID = &replyTo.Int64
	}
	if metadata.Valid && metadata.String != "" {
		msg.Metadata = []byte(metadata.String)
	}
	if editedAt.Valid {
		t := editedAt.Time.UTC()
		msg.EditedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		msg.DeletedAt = &t
	}
	return &msg, nil
}

func nullableMetadata(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// SaveMessage persists a message. The store is authoritative for ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (room_id, sender_id, content, type, reply_to_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		msg.RoomID,
		msg.SenderID,
		msg.Content,
		string(msg.Type),
		msg.ReplyToID,
		nullableMetadata(msg.Metadata),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// UpdateMessage writes the mutable columns of a message.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, msg *store.Message) error {
	query := `
		UPDATE messages
		SET content = ?, metadata = ?, edited_at = ?, deleted_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.Content,
		nullableMetadata(msg.Metadata),
		nullableTime(msg.EditedAt),
		nullableTime(msg.DeletedAt),
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %d: %w", msg.ID, store.ErrNotFound)
	}
	return nil
}

// ListMessages retrieves messages from a room with pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit int, beforeID *int64) ([]*store.Message, error) {
	var query string
	var args []any

	if beforeID != nil {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE room_id = ? AND id < ?
			ORDER BY id DESC
			LIMIT ?
		`
		args = []any{roomID, *beforeID, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE room_id = ?
			ORDER BY id DESC
			LIMIT ?
		`
		args = []any{roomID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}

// ==== ReactionStore implementation ====

// AddReaction upserts a reaction; the first creation time wins.
func (s *SQLiteStore) AddReaction(ctx context.Context, r *store.Reaction) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO reactions (message_id, user_id, emoji, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, r.MessageID, r.UserID, r.Emoji, r.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes one reaction.
func (s *SQLiteStore) RemoveReaction(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	query := `
		DELETE FROM reactions
		WHERE message_id = ? AND user_id = ? AND emoji = ?
	`
	result, err := s.db.ExecContext(ctx, query, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("delete reaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListReactions lists reactions on a message.
func (s *SQLiteStore) ListReactions(ctx context.Context, messageID int64) ([]*store.Reaction, error) {
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM reactions
		WHERE message_id = ?
		ORDER BY created_at ASC, user_id ASC, emoji ASC
	`
	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	var reactions []*store.Reaction
	for rows.Next() {
		var r store.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		reactions = append(reactions, &r)
	}

	return reactions, rows.Err()
}

// ==== ReceiptStore implementation ====

// AdvanceReadCursor stores max(current, at). Cursors are kept as unix nanoseconds so MAX compares numerically.
func (s *SQLiteStore) AdvanceReadCursor(ctx context.Context, roomID, userID string, at time.Time) (time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	upsert := `
		INSERT INTO read_cursors (room_id, user_id, read_at_ns)
		VALUES (?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET read_at_ns = MAX(read_at_ns, excluded.read_at_ns)
	`
	if _, err := tx.ExecContext(ctx, upsert, roomID, userID, at.UnixNano()); err != nil {
		return time.Time{}, fmt.Errorf("upsert read cursor: %w", err)
	}

	var ns int64
	err = tx.QueryRowContext(ctx, `SELECT read_at_ns FROM read_cursors WHERE room_id = ? AND user_id = ?`, roomID, userID).Scan(&ns)
	if err != nil {
		return time.Time{}, fmt.Errorf("query read cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit transaction: %w", err)
	}
	return time.Unix(0, ns).UTC(), nil
}

// GetReadCursor returns the stored cursor or the zero time.
func (s *SQLiteStore) GetReadCursor(ctx context.Context, roomID, userID string) (time.Time, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx, `SELECT read_at_ns FROM read_cursors WHERE room_id = ? AND user_id = ?`, roomID, userID).Scan(&ns)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("query read cursor: %w", err)
	}
	return time.Unix(0, ns).UTC(), nil
}

// SaveReadReceipt records a per-message receipt.
func (s *SQLiteStore) SaveReadReceipt(ctx context.Context, r *store.ReadReceipt) error {
	query := `
		INSERT OR IGNORE INTO message_reads (message_id, user_id, read_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, r.MessageID, r.UserID, r.ReadAt.UTC()); err != nil {
		return fmt.Errorf("insert read receipt: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	errs "github.com/edgard/tgarchive/internal/errors"
)

// ErrMessageNotFound is returned when a write targets a natural key that has
// no archived record.
var ErrMessageNotFound = errors.New("message not found")

// Store defines the archive persistence boundary.
// Methods accept context.Context for cancellation and timeouts; failures are
// returned as *errs.StoreError.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertMessage inserts the record on first sight of its natural key. On
	// conflict only message_text, has_media, media_type and updated_at are
	// overwritten; every other column keeps its first-seen value.
	UpsertMessage(ctx context.Context, record *MessageRecord) (StoreResult, error)

	// UpdateTranscript overwrites message_text of the record identified by key.
	UpdateTranscript(ctx context.Context, key MessageKey, text string) (StoreResult, error)

	// GetMessage reads a record back by natural key. Returns nil, nil if not found.
	GetMessage(ctx context.Context, key MessageKey) (*MessageRecord, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store backed by sqlx. The SQL dialect follows the
// driver the pool was opened with.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.NewStoreError("database ping failed", err)
	}
	return nil
}

const upsertMessageQuery = `
INSERT INTO group_messages (
    telegram_message_id, telegram_chat_id, telegram_thread_id,
    sender_user_id, sender_username, sender_first_name, sender_last_name,
    sender_is_bot, sender_language_code,
    chat_type, chat_title, chat_is_forum,
    message_type, message_text,
    has_media, media_type, media_file_id, media_file_unique_id, media_file_name,
    media_mime_type, media_file_size, media_duration, media_width, media_height,
    is_topic_message, is_reply, is_forwarded,
    reply_to_message_id, reply_to_user_id,
    forum_topic_name, forum_topic_icon_color,
    forward_from_user_id, forward_from_user_name, forward_date,
    telegram_date, created_at, updated_at
) VALUES (
    :telegram_message_id, :telegram_chat_id, :telegram_thread_id,
    :sender_user_id, :sender_username, :sender_first_name, :sender_last_name,
    :sender_is_bot, :sender_language_code,
    :chat_type, :chat_title, :chat_is_forum,
    :message_type, :message_text,
    :has_media, :media_type, :media_file_id, :media_file_unique_id, :media_file_name,
    :media_mime_type, :media_file_size, :media_duration, :media_width, :media_height,
    :is_topic_message, :is_reply, :is_forwarded,
    :reply_to_message_id, :reply_to_user_id,
    :forum_topic_name, :forum_topic_icon_color,
    :forward_from_user_id, :forward_from_user_name, :forward_date,
    :telegram_date, :created_at, :updated_at
)
ON CONFLICT (telegram_message_id, telegram_chat_id) DO UPDATE SET
    message_text = excluded.message_text,
    has_media = excluded.has_media,
    media_type = excluded.media_type,
    updated_at = excluded.updated_at
RETURNING id`

// UpsertMessage inserts or partially updates a record by natural key.
func (s *sqlxStore) UpsertMessage(ctx context.Context, record *MessageRecord) (StoreResult, error) {
	if record == nil {
		return StoreResult{}, errs.NewStoreError("cannot upsert nil record", nil)
	}

	now := s.now()
	record.CreatedAt = now
	record.UpdatedAt = now

	query, args, err := sqlx.Named(upsertMessageQuery, record)
	if err != nil {
		return StoreResult{}, errs.NewStoreError("failed to bind upsert query", err)
	}
	query = s.db.Rebind(query)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for upsert",
			"message_id", record.TelegramMessageID, "chat_id", record.TelegramChatID, "error", err)
		return StoreResult{}, errs.NewStoreError("failed to begin transaction", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	var id int64
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting message",
			"message_id", record.TelegramMessageID, "chat_id", record.TelegramChatID, "error", err)
		return StoreResult{}, errs.NewStoreError(
			fmt.Sprintf("failed to upsert message %d in chat %d", record.TelegramMessageID, record.TelegramChatID), err)
	}

	// On conflict the row keeps its original created_at.
	var createdAt time.Time
	if err := tx.GetContext(ctx, &createdAt, s.db.Rebind(`SELECT created_at FROM group_messages WHERE id = ?`), id); err != nil {
		return StoreResult{}, errs.NewStoreError(fmt.Sprintf("failed to read back message row %d", id), err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit upsert",
			"message_id", record.TelegramMessageID, "chat_id", record.TelegramChatID, "error", err)
		return StoreResult{}, errs.NewStoreError("failed to commit upsert", err)
	}

	record.ID = id
	record.CreatedAt = createdAt
	s.logger.DebugContext(ctx, "Message upserted",
		"id", id, "message_id", record.TelegramMessageID, "chat_id", record.TelegramChatID, "message_type", record.MessageType)
	return StoreResult{ID: id, RowsAffected: 1}, nil
}

// UpdateTranscript overwrites message_text for the record identified by key.
func (s *sqlxStore) UpdateTranscript(ctx context.Context, key MessageKey, text string) (StoreResult, error) {
	query := s.db.Rebind(`
        UPDATE group_messages
        SET message_text = ?, updated_at = ?
        WHERE telegram_message_id = ? AND telegram_chat_id = ?`)

	res, err := s.db.ExecContext(ctx, query, text, s.now(), key.MessageID, key.ChatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating transcript",
			"message_id", key.MessageID, "chat_id", key.ChatID, "error", err)
		return StoreResult{}, errs.NewStoreError(
			fmt.Sprintf("failed to update transcript for message %d in chat %d", key.MessageID, key.ChatID), err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return StoreResult{}, errs.NewStoreError("failed to read affected rows", err)
	}
	if rows == 0 {
		return StoreResult{}, errs.NewStoreError(
			fmt.Sprintf("transcript target message %d in chat %d", key.MessageID, key.ChatID), ErrMessageNotFound)
	}

	s.logger.DebugContext(ctx, "Transcript stored",
		"message_id", key.MessageID, "chat_id", key.ChatID, "text_length", len(text))
	return StoreResult{RowsAffected: rows}, nil
}

// GetMessage reads a record back by natural key.
func (s *sqlxStore) GetMessage(ctx context.Context, key MessageKey) (*MessageRecord, error) {
	query := s.db.Rebind(`SELECT * FROM group_messages WHERE telegram_message_id = ? AND telegram_chat_id = ?`)

	var record MessageRecord
	if err := s.db.GetContext(ctx, &record, query, key.MessageID, key.ChatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.NewStoreError(
			fmt.Sprintf("failed to get message %d in chat %d", key.MessageID, key.ChatID), err)
	}
	return &record, nil
}

// RunSQLMaintenance reclaims space and refreshes planner statistics.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	var statements []string
	switch s.db.DriverName() {
	case "pgx":
		statements = []string{"VACUUM (ANALYZE) group_messages"}
	default:
		// VACUUM must run outside a transaction.
		statements = []string{"VACUUM", "PRAGMA optimize"}
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "driver", s.db.DriverName())
	start := time.Now()

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "Database maintenance statement failed", "statement", stmt, "error", err)
			return errs.NewStoreError(fmt.Sprintf("maintenance statement %q failed", stmt), err)
		}
	}

	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}

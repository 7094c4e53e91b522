package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/tgarchive/internal/config"
	errs "github.com/edgard/tgarchive/internal/errors"
)

func newTestStore(t *testing.T) (Store, *sqlx.DB) {
	t.Helper()

	db, err := NewDB(context.Background(), config.DatabaseConfig{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil), db
}

func countRows(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM group_messages"))
	return n
}

func textRecord(messageID, chatID int64, text string) *MessageRecord {
	return &MessageRecord{
		TelegramMessageID: messageID,
		TelegramChatID:    chatID,
		SenderUserID:      1001,
		SenderUsername:    sql.NullString{String: "alice", Valid: true},
		SenderFirstName:   sql.NullString{String: "Alice", Valid: true},
		ChatType:          "supergroup",
		ChatTitle:         sql.NullString{String: "Team", Valid: true},
		MessageType:       KindText,
		MessageText:       sql.NullString{String: text, Valid: true},
		TelegramDate:      time.Unix(1700000000, 0).UTC(),
	}
}

func TestUpsertMessageIsIdempotent(t *testing.T) {
	t.Parallel()
	store, db := newTestStore(t)
	ctx := context.Background()

	first := textRecord(10, 7, "draft")
	first.IsReply = true
	first.ReplyToMessageID = sql.NullInt64{Int64: 9, Valid: true}

	res1, err := store.UpsertMessage(ctx, first)
	require.NoError(t, err)
	assert.NotZero(t, res1.ID)

	second := textRecord(10, 7, "final")
	second.SenderUsername = sql.NullString{String: "renamed", Valid: true}
	second.IsReply = false
	second.ChatTitle = sql.NullString{String: "Renamed team", Valid: true}

	res2, err := store.UpsertMessage(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, res1.ID, res2.ID)

	assert.Equal(t, 1, countRows(t, db))

	got, err := store.GetMessage(ctx, MessageKey{MessageID: 10, ChatID: 7})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "final", got.MessageText.String)
	assert.Equal(t, "alice", got.SenderUsername.String)
	assert.Equal(t, "Team", got.ChatTitle.String)
	assert.True(t, got.IsReply)
	assert.Equal(t, int64(9), got.ReplyToMessageID.Int64)
	assert.True(t, got.TelegramDate.Equal(first.TelegramDate))
}

func TestUpsertMessageKeepsFirstCreatedAt(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.(*sqlxStore).now = func() time.Time { return clock }

	first := textRecord(11, 7, "draft")
	_, err := store.UpsertMessage(ctx, first)
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(clock))

	clock = clock.Add(time.Hour)
	edit := textRecord(11, 7, "final")
	_, err = store.UpsertMessage(ctx, edit)
	require.NoError(t, err)

	got, err := store.GetMessage(ctx, MessageKey{MessageID: 11, ChatID: 7})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt), "stored created_at %v", got.CreatedAt)
	assert.True(t, edit.CreatedAt.Equal(got.CreatedAt), "record created_at %v, stored %v", edit.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.Equal(clock))
}

func TestUpsertMessageOverwritesMediaFlags(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	voice := textRecord(42, 7, "")
	voice.MessageType = KindVoice
	voice.MessageText = sql.NullString{}
	voice.HasMedia = true
	voice.MediaType = sql.NullString{String: string(KindVoice), Valid: true}
	voice.MediaFileID = sql.NullString{String: "abc", Valid: true}
	voice.MediaDuration = sql.NullInt64{Int64: 5, Valid: true}
	_, err := store.UpsertMessage(ctx, voice)
	require.NoError(t, err)

	again := textRecord(42, 7, "caption")
	again.MessageType = KindText
	_, err = store.UpsertMessage(ctx, again)
	require.NoError(t, err)

	got, err := store.GetMessage(ctx, MessageKey{MessageID: 42, ChatID: 7})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.HasMedia)
	assert.False(t, got.MediaType.Valid)
	assert.Equal(t, "caption", got.MessageText.String)
	assert.Equal(t, KindVoice, got.MessageType)
	assert.Equal(t, "abc", got.MediaFileID.String)
	assert.Equal(t, int64(5), got.MediaDuration.Int64)
}

func TestUpdateTranscriptScopedByNaturalKey(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertMessage(ctx, textRecord(42, 7, "original"))
	require.NoError(t, err)
	_, err = store.UpsertMessage(ctx, textRecord(42, 8, "other chat"))
	require.NoError(t, err)

	res, err := store.UpdateTranscript(ctx, MessageKey{MessageID: 42, ChatID: 7}, "hello world")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)

	got, err := store.GetMessage(ctx, MessageKey{MessageID: 42, ChatID: 7})
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.MessageText.String)
	assert.Equal(t, "alice", got.SenderUsername.String)

	other, err := store.GetMessage(ctx, MessageKey{MessageID: 42, ChatID: 8})
	require.NoError(t, err)
	assert.Equal(t, "other chat", other.MessageText.String)
}

func TestUpdateTranscriptMissingRecord(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	_, err := store.UpdateTranscript(context.Background(), MessageKey{MessageID: 1, ChatID: 2}, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	var storeErr *errs.StoreError
	assert.True(t, errors.As(err, &storeErr))
}

func TestGetMessageNotFound(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	got, err := store.GetMessage(context.Background(), MessageKey{MessageID: 1, ChatID: 1})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertMessageNil(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	_, err := store.UpsertMessage(context.Background(), nil)
	var storeErr *errs.StoreError
	assert.True(t, errors.As(err, &storeErr))
}

func TestUpsertMessageFailsOnClosedDB(t *testing.T) {
	t.Parallel()
	store, db := newTestStore(t)
	require.NoError(t, db.Close())

	_, err := store.UpsertMessage(context.Background(), textRecord(1, 1, "x"))
	var storeErr *errs.StoreError
	assert.True(t, errors.As(err, &storeErr))
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	_, err := store.UpsertMessage(context.Background(), textRecord(1, 1, "x"))
	require.NoError(t, err)
	require.NoError(t, store.RunSQLMaintenance(context.Background()))
	require.NoError(t, store.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.RunSQLMaintenance(ctx), context.Canceled)
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"archive.db":                  "archive.db",
		"file:archive.db?cache=share": "archive.db",
		"file:my%20archive.db":        "my archive.db",
		":memory:":                    ":memory:",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractDBNameFromPath(in), in)
	}
}

func TestMessageKindPredicates(t *testing.T) {
	t.Parallel()

	transcribable := map[MessageKind]bool{
		KindVoice: true, KindVideoNote: true, KindVideo: true, KindAudio: true,
		KindText: false, KindSticker: false, KindPhoto: false, KindDocument: false,
		KindLocation: false, KindContact: false, KindPoll: false, KindDice: false, KindUnknown: false,
	}
	for kind, want := range transcribable {
		assert.Equal(t, want, kind.IsTranscribable(), kind)
	}

	assert.True(t, KindSticker.IsMedia())
	assert.True(t, KindPhoto.IsMedia())
	assert.False(t, KindLocation.IsMedia())
	assert.False(t, KindText.IsMedia())

	voice := &MessageRecord{HasMedia: true, MediaType: sql.NullString{String: string(KindVoice), Valid: true}}
	assert.Equal(t, KindVoice, voice.Kind())
	assert.Equal(t, MessageKind(""), textRecord(1, 1, "hi").Kind())
}

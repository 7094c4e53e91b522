package archiver

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/tgarchive/internal/config"
	"github.com/edgard/tgarchive/internal/database"
	errs "github.com/edgard/tgarchive/internal/errors"
	"github.com/edgard/tgarchive/internal/media"
	"github.com/edgard/tgarchive/internal/resilience"
	"github.com/edgard/tgarchive/internal/transcription"
)

var groupTypes = []string{"group", "supergroup", "channel"}

type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDownloader) Download(_ context.Context, fileID, dest string) (int64, error) {
	d.mu.Lock()
	d.calls = append(d.calls, fileID)
	d.mu.Unlock()
	if d.err != nil {
		return 0, d.err
	}
	return 4, os.WriteFile(dest, []byte("OggS"), 0o600)
}

type recordingPool struct {
	jobs   []transcription.Job
	exists []bool
	err    error
}

func (p *recordingPool) Submit(job transcription.Job) error {
	_, statErr := os.Stat(job.Path)
	p.exists = append(p.exists, statErr == nil)
	p.jobs = append(p.jobs, job)
	return p.err
}

type failingStore struct{}

func (failingStore) UpsertMessage(context.Context, *database.MessageRecord) (database.StoreResult, error) {
	return database.StoreResult{}, errors.New("connection refused")
}

func newStore(t *testing.T) (database.Store, *sqlx.DB) {
	t.Helper()
	db, err := database.NewDB(context.Background(), config.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil), db
}

func newStaging(t *testing.T) *media.Staging {
	t.Helper()
	s, err := media.NewStaging(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func groupMessage(id int, chatID int64) *models.Message {
	return &models.Message{
		ID:   id,
		Date: 1700000000,
		Chat: models.Chat{ID: chatID, Type: models.ChatTypeSupergroup, Title: "Team"},
		From: &models.User{ID: 1001, Username: "alice", FirstName: "Alice"},
	}
}

func countRows(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM group_messages"))
	return n
}

func TestArchiveIsIdempotentAcrossRedeliveries(t *testing.T) {
	t.Parallel()
	store, db := newStore(t)
	a := New(store, nil, nil, nil, Config{ChatTypes: groupTypes}, nil)

	first := groupMessage(10, 7)
	first.Text = "draft"
	first.ReplyToMessage = &models.Message{ID: 9, From: &models.User{ID: 2002}}
	require.True(t, a.ArchiveAndMaybeTranscribe(context.Background(), first))

	second := groupMessage(10, 7)
	second.Text = "final"
	second.From.Username = "alice_renamed"
	require.True(t, a.ArchiveAndMaybeTranscribe(context.Background(), second))

	assert.Equal(t, 1, countRows(t, db))
	got, err := store.GetMessage(context.Background(), database.MessageKey{MessageID: 10, ChatID: 7})
	require.NoError(t, err)
	assert.Equal(t, "final", got.MessageText.String)
	assert.Equal(t, "alice", got.SenderUsername.String)
	assert.True(t, got.IsReply)
	assert.Equal(t, int64(2002), got.ReplyToUserID.Int64)
}

func TestArchiveRejectsMessageWithoutSender(t *testing.T) {
	t.Parallel()
	store, db := newStore(t)
	a := New(store, nil, nil, nil, Config{ChatTypes: groupTypes}, nil)

	msg := &models.Message{ID: 1, Chat: models.Chat{ID: 7, Type: models.ChatTypeGroup}}
	assert.False(t, a.ArchiveAndMaybeTranscribe(context.Background(), msg))
	assert.Equal(t, 0, countRows(t, db))
	assert.False(t, a.ArchiveAndMaybeTranscribe(context.Background(), nil))
}

func TestArchiveSkipsExcludedChatTypes(t *testing.T) {
	t.Parallel()
	store, db := newStore(t)
	a := New(store, nil, nil, nil, Config{ChatTypes: groupTypes}, nil)

	msg := groupMessage(1, 55)
	msg.Chat.Type = models.ChatTypePrivate
	msg.Text = "hi"
	assert.False(t, a.ArchiveAndMaybeTranscribe(context.Background(), msg))
	assert.Equal(t, 0, countRows(t, db))
}

func TestArchiveStoreFailureSkipsTranscription(t *testing.T) {
	t.Parallel()
	dl := &fakeDownloader{}
	pool := &recordingPool{}
	a := New(failingStore{}, dl, newStaging(t), pool, Config{ChatTypes: groupTypes}, nil)

	msg := groupMessage(42, 7)
	msg.Voice = &models.Voice{FileID: "abc", Duration: 5}

	assert.False(t, a.ArchiveAndMaybeTranscribe(context.Background(), msg))
	assert.Empty(t, dl.calls)
	assert.Empty(t, pool.jobs)
}

func TestArchiveEligibilityGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(m *models.Message)
		want   bool
	}{
		{"text", func(m *models.Message) { m.Text = "hi" }, false},
		{"sticker", func(m *models.Message) { m.Sticker = &models.Sticker{FileID: "s"} }, false},
		{"photo", func(m *models.Message) { m.Photo = []models.PhotoSize{{FileID: "p", Width: 1, Height: 1}} }, false},
		{"document", func(m *models.Message) { m.Document = &models.Document{FileID: "d"} }, false},
		{"location", func(m *models.Message) { m.Location = &models.Location{} }, false},
		{"contact", func(m *models.Message) { m.Contact = &models.Contact{} }, false},
		{"poll", func(m *models.Message) { m.Poll = &models.Poll{} }, false},
		{"dice", func(m *models.Message) { m.Dice = &models.Dice{} }, false},
		{"voice", func(m *models.Message) { m.Voice = &models.Voice{FileID: "v"} }, true},
		{"video note", func(m *models.Message) { m.VideoNote = &models.VideoNote{FileID: "n"} }, true},
		{"video", func(m *models.Message) { m.Video = &models.Video{FileID: "vid"} }, true},
		{"audio", func(m *models.Message) { m.Audio = &models.Audio{FileID: "a"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, _ := newStore(t)
			dl := &fakeDownloader{}
			pool := &recordingPool{}
			a := New(store, dl, newStaging(t), pool, Config{ChatTypes: groupTypes}, nil)

			msg := groupMessage(42, 7)
			tt.mutate(msg)
			require.True(t, a.ArchiveAndMaybeTranscribe(context.Background(), msg))

			if !tt.want {
				assert.Empty(t, dl.calls)
				assert.Empty(t, pool.jobs)
				return
			}
			require.Len(t, pool.jobs, 1)
			job := pool.jobs[0]
			assert.Equal(t, database.MessageKey{MessageID: 42, ChatID: 7}, job.Key)
			assert.NotEmpty(t, job.ID)
			assert.True(t, pool.exists[0], "file is staged before submission")
			assert.Len(t, dl.calls, 1)
		})
	}
}

func TestArchiveDownloadFailureKeepsRecord(t *testing.T) {
	t.Parallel()
	store, db := newStore(t)
	staging := newStaging(t)
	dl := &fakeDownloader{err: errs.NewDownloadError("failed to download file abc", errors.New("404"))}
	pool := &recordingPool{}
	a := New(store, dl, staging, pool, Config{ChatTypes: groupTypes}, nil)

	msg := groupMessage(42, 7)
	msg.Voice = &models.Voice{FileID: "abc", Duration: 5}

	assert.True(t, a.ArchiveAndMaybeTranscribe(context.Background(), msg))
	assert.Equal(t, 1, countRows(t, db))
	assert.Empty(t, pool.jobs)
	assert.NoFileExists(t, staging.Path(database.MessageKey{MessageID: 42, ChatID: 7}, ".ogg"))
}

func TestArchiveWithoutPoolNeverDownloads(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	dl := &fakeDownloader{}
	a := New(store, dl, newStaging(t), nil, Config{ChatTypes: groupTypes}, nil)

	msg := groupMessage(42, 7)
	msg.Voice = &models.Voice{FileID: "abc"}

	assert.True(t, a.ArchiveAndMaybeTranscribe(context.Background(), msg))
	assert.Empty(t, dl.calls)
}

type staticEngine struct{ text string }

func (e staticEngine) Name() string { return "static" }
func (e staticEngine) Transcribe(context.Context, string, string) (string, error) {
	return e.text, nil
}
func (e staticEngine) Close() error { return nil }

func TestVoiceMessageIsTranscribedEndToEnd(t *testing.T) {
	t.Parallel()
	store, db := newStore(t)
	staging := newStaging(t)

	done := make(chan transcription.Result, 1)
	pool := transcription.NewPool(staticEngine{text: "hello from the voice note"}, store, staging, transcription.PoolConfig{
		Workers:    2,
		JobTimeout: time.Second,
		Breaker:    resilience.CircuitBreakerConfig{MaxFailures: 5},
		OnComplete: func(r transcription.Result) { done <- r },
	}, nil)
	t.Cleanup(func() { _ = pool.Close() })

	a := New(store, &fakeDownloader{}, staging, pool, Config{ChatTypes: groupTypes}, nil)

	msg := groupMessage(42, 7)
	msg.Voice = &models.Voice{FileID: "abc", Duration: 5}
	require.True(t, a.ArchiveAndMaybeTranscribe(context.Background(), msg))

	key := database.MessageKey{MessageID: 42, ChatID: 7}
	before, err := store.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, database.KindVoice, before.MessageType)
	assert.True(t, before.HasMedia)
	assert.Equal(t, int64(5), before.MediaDuration.Int64)

	var result transcription.Result
	select {
	case result = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("transcription did not complete")
	}
	require.NoError(t, result.Err)
	assert.NoFileExists(t, result.Job.Path)

	after, err := store.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "hello from the voice note", after.MessageText.String)
	assert.Equal(t, 1, countRows(t, db))

	before.MessageText = after.MessageText
	before.UpdatedAt = after.UpdatedAt
	assert.Equal(t, before, after)
}

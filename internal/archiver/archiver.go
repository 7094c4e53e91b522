// Package archiver is the ingestion pipeline: it classifies each incoming
// message, archives it and, for speech-bearing media, stages the attachment
// and hands it to the transcription pool.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/edgard/tgarchive/internal/classifier"
	"github.com/edgard/tgarchive/internal/database"
	errs "github.com/edgard/tgarchive/internal/errors"
	"github.com/edgard/tgarchive/internal/transcription"
)

// Store is the archive write the pipeline needs.
type Store interface {
	UpsertMessage(ctx context.Context, record *database.MessageRecord) (database.StoreResult, error)
}

// Downloader fetches an attachment to a local path.
type Downloader interface {
	Download(ctx context.Context, fileID, dest string) (int64, error)
}

// Staging names and removes staged files.
type Staging interface {
	Path(key database.MessageKey, ext string) string
	Remove(path string) error
}

// Submitter accepts transcription jobs without blocking.
type Submitter interface {
	Submit(job transcription.Job) error
}

// Config tunes the pipeline.
type Config struct {
	// ChatTypes lists the chat types that are archived.
	ChatTypes          []string
	LegacyTopicDefault bool
	// StoreTimeout bounds the archive upsert.
	StoreTimeout time.Duration
}

// Archiver runs the ingestion pipeline for one message at a time.
type Archiver struct {
	store      Store
	downloader Downloader
	staging    Staging
	pool       Submitter
	cfg        Config
	logger     *slog.Logger
}

// New creates an Archiver. A nil pool disables transcription; downloader and
// staging are then unused and may be nil too.
func New(store Store, downloader Downloader, staging Staging, pool Submitter, cfg Config, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 15 * time.Second
	}
	return &Archiver{
		store:      store,
		downloader: downloader,
		staging:    staging,
		pool:       pool,
		cfg:        cfg,
		logger:     logger.With("component", "archiver"),
	}
}

// ArchiveAndMaybeTranscribe archives msg and, when its media is
// transcription-eligible, stages the attachment and queues a transcription
// job. It reports whether the message was archived. It never panics or
// returns an error: every failure is logged and contained here.
func (a *Archiver) ArchiveAndMaybeTranscribe(ctx context.Context, msg *models.Message) (archived bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "Recovered from panic while archiving message", "panic", r)
			archived = false
		}
	}()

	if msg == nil {
		return false
	}
	if !a.chatAllowed(msg.Chat.Type) {
		a.logger.DebugContext(ctx, "Skipping message from excluded chat type",
			"chat_id", msg.Chat.ID, "chat_type", string(msg.Chat.Type))
		return false
	}

	result, err := classifier.Classify(msg, classifier.Options{LegacyTopicDefault: a.cfg.LegacyTopicDefault})
	if err != nil {
		a.logger.WarnContext(ctx, "Dropping unclassifiable message",
			"message_id", msg.ID, "chat_id", msg.Chat.ID, "error_code", errs.Code(err), "error", err)
		return false
	}

	record := result.Record
	log := a.logger.With("message_id", record.TelegramMessageID, "chat_id", record.TelegramChatID, "message_type", record.MessageType)
	log.DebugContext(ctx, "Message classified", "state", transcription.StateClassified)

	if err := a.archive(ctx, record); err != nil {
		log.ErrorContext(ctx, "Failed to archive message", "error_code", errs.Code(err), "error", err)
		return false
	}
	log.InfoContext(ctx, "Message archived", "id", record.ID, "has_media", record.HasMedia, "media_type", record.Kind())

	if a.pool == nil || !result.Media.Transcribable() {
		return true
	}

	log.InfoContext(ctx, "Media eligible for transcription", "state", transcription.StateMediaEligible)
	a.scheduleTranscription(ctx, log, record.Key(), result.Media)
	return true
}

func (a *Archiver) archive(ctx context.Context, record *database.MessageRecord) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()

	if _, err := a.store.UpsertMessage(ctx, record); err != nil {
		var storeErr *errs.StoreError
		if !errors.As(err, &storeErr) {
			err = errs.NewStoreError("upsert failed", err)
		}
		return err
	}
	return nil
}

// scheduleTranscription downloads the attachment and submits the job. Once
// the download starts, the staged file is either handed to the pool or
// removed here.
func (a *Archiver) scheduleTranscription(ctx context.Context, log *slog.Logger, key database.MessageKey, media *classifier.Media) {
	path := a.staging.Path(key, media.StagingExt())
	log = log.With("file_id", media.FileID, "path", path)

	log.DebugContext(ctx, "Downloading media", "state", transcription.StateDownloading)
	size, err := a.downloader.Download(ctx, media.FileID, path)
	if err != nil {
		a.discard(ctx, log, path)
		log.ErrorContext(ctx, "Media download failed, transcription skipped",
			"state", transcription.StateFailed, "error_code", errs.Code(err), "error", err)
		return
	}
	log.DebugContext(ctx, "Media downloaded", "state", transcription.StateDownloaded, "bytes", size)

	job := transcription.Job{ID: uuid.NewString(), Key: key, Path: path, Kind: media.Kind, MimeType: media.MimeType}
	log = log.With("job_id", job.ID)
	if err := a.pool.Submit(job); err != nil {
		log.ErrorContext(ctx, "Failed to queue transcription job", "state", transcription.StateFailed, "error", err)
		return
	}
	log.InfoContext(ctx, "Transcription job queued", "state", transcription.StateTranscribing)
}

func (a *Archiver) discard(ctx context.Context, log *slog.Logger, path string) {
	if err := a.staging.Remove(path); err != nil {
		log.WarnContext(ctx, "Failed to remove staged file", "error", err)
	}
}

func (a *Archiver) chatAllowed(chatType models.ChatType) bool {
	return slices.Contains(a.cfg.ChatTypes, string(chatType))
}

// String describes the pipeline configuration for startup logs.
func (c Config) String() string {
	return fmt.Sprintf("chat_types=%v legacy_topic_default=%t", c.ChatTypes, c.LegacyTopicDefault)
}

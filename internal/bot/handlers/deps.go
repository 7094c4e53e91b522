// Package handlers routes Telegram updates into the archive pipeline.
package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"
)

// MessageArchiver is the ingestion entry point. *archiver.Archiver satisfies it.
type MessageArchiver interface {
	ArchiveAndMaybeTranscribe(ctx context.Context, msg *models.Message) bool
}

// HandlerDeps provides dependencies for the update handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Archiver MessageArchiver
}

package handlers

import (
	"context"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ArchivedUpdates are the update kinds requested from getUpdates.
var ArchivedUpdates = tgbot.AllowedUpdates{"message", "channel_post"}

// BotOptions returns the go-telegram/bot options shared by every handler.
// Handlers run synchronously in update order, so one message is fully
// archived before the next is processed.
func BotOptions(logger *slog.Logger, workers int, middleware ...tgbot.Middleware) []tgbot.Option {
	log := logger.With("component", "telegram_bot")
	opts := []tgbot.Option{
		tgbot.WithDefaultHandler(func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
			log.DebugContext(ctx, "Ignoring unhandled update", "update_id", update.ID)
		}),
		tgbot.WithAllowedUpdates(ArchivedUpdates),
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Telegram polling error", "error", err)
		}),
	}
	if len(middleware) > 0 {
		opts = append(opts, tgbot.WithMiddlewares(middleware...))
	}
	if workers > 0 {
		opts = append(opts, tgbot.WithWorkers(workers))
	}
	return opts
}

// RegisterArchiveHandler routes every message and channel post on b to the
// archiver and returns the handler id.
func RegisterArchiveHandler(b *tgbot.Bot, deps HandlerDeps) string {
	id := b.RegisterHandlerMatchFunc(IsArchivable, NewArchiveHandler(deps))
	deps.Logger.Info("Registered archive handler", "handler_id", id)
	return id
}

// IsArchivable reports whether update carries a message the archiver accepts.
func IsArchivable(update *models.Update) bool {
	return archivableMessage(update) != nil
}

package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewArchiveHandler returns the handler that hands group messages and
// channel posts to the archiver. Other update kinds are ignored.
func NewArchiveHandler(deps HandlerDeps) tgbot.HandlerFunc {
	log := deps.Logger.With("handler", "archive")

	return func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
		msg := archivableMessage(update)
		if msg == nil {
			log.DebugContext(ctx, "Ignoring update without a message", "update_id", update.ID)
			return
		}

		if !deps.Archiver.ArchiveAndMaybeTranscribe(ctx, msg) {
			log.DebugContext(ctx, "Message not archived", "message_id", msg.ID, "chat_id", msg.Chat.ID)
		}
	}
}

func archivableMessage(update *models.Update) *models.Message {
	if update == nil {
		return nil
	}
	if update.Message != nil {
		return update.Message
	}
	return update.ChannelPost
}

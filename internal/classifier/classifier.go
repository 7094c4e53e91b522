// Package classifier turns raw Telegram messages into normalized archive
// records. Classification is pure: no I/O, no clock, no shared state.
package classifier

import (
	"database/sql"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/tgarchive/internal/database"
	errs "github.com/edgard/tgarchive/internal/errors"
)

// GeneralTopicName is the name Telegram gives the implicit topic of a forum.
const GeneralTopicName = "General"

// Options tunes classification.
type Options struct {
	// LegacyTopicDefault marks every message that is not a reply as a
	// General-topic message, overriding the platform's is_topic_message.
	// Only needed for compatibility with rows written by earlier versions.
	LegacyTopicDefault bool
}

// Media describes the attachment of a media message.
type Media struct {
	Kind         database.MessageKind
	FileID       string
	FileUniqueID string
	FileName     string
	MimeType     string
	FileSize     int64
	Duration     int64
	Width        int64
	Height       int64
}

// Transcribable reports whether the attachment is speech-bearing.
func (m *Media) Transcribable() bool {
	return m != nil && m.Kind.IsTranscribable()
}

// Classification is the result of classifying one message.
type Classification struct {
	Record *database.MessageRecord
	// Media is nil for non-media kinds.
	Media *Media
}

// Classify builds the archive record for msg. It fails with
// *errs.ClassificationError only when msg lacks a chat identity or a sender
// identity; every other shape yields a best-effort record.
func Classify(msg *models.Message, opts Options) (*Classification, error) {
	if msg == nil {
		return nil, errs.NewClassificationError("message is nil", nil)
	}
	if msg.Chat.ID == 0 {
		return nil, errs.NewClassificationError("message has no chat identity", nil)
	}
	if msg.From == nil && msg.SenderChat == nil {
		return nil, errs.NewClassificationError("message has no sender identity", nil)
	}

	record := &database.MessageRecord{
		TelegramMessageID: int64(msg.ID),
		TelegramChatID:    msg.Chat.ID,
		TelegramThreadID:  nullInt(int64(msg.MessageThreadID)),
		ChatType:          string(msg.Chat.Type),
		ChatTitle:         nullString(msg.Chat.Title),
		ChatIsForum:       msg.Chat.IsForum,
		MessageText:       nullString(textOrCaption(msg)),
		IsTopicMessage:    msg.IsTopicMessage,
		TelegramDate:      unixTime(int64(msg.Date)),
	}

	fillSender(record, msg)

	kind, media := selectVariant(msg)
	record.MessageType = kind
	if media != nil {
		record.HasMedia = true
		record.MediaType = nullString(string(media.Kind))
		record.MediaFileID = nullString(media.FileID)
		record.MediaFileUniqueID = nullString(media.FileUniqueID)
		record.MediaFileName = nullString(media.FileName)
		record.MediaMimeType = nullString(media.MimeType)
		record.MediaFileSize = nullInt(media.FileSize)
		record.MediaDuration = nullInt(media.Duration)
		record.MediaWidth = nullInt(media.Width)
		record.MediaHeight = nullInt(media.Height)
	}

	fillReply(record, msg)
	fillForward(record, msg)
	fillTopic(record, msg, opts)

	return &Classification{Record: record, Media: media}, nil
}

func fillSender(record *database.MessageRecord, msg *models.Message) {
	if u := msg.From; u != nil {
		record.SenderUserID = u.ID
		record.SenderUsername = nullString(u.Username)
		record.SenderFirstName = nullString(u.FirstName)
		record.SenderLastName = nullString(u.LastName)
		record.SenderIsBot = u.IsBot
		record.SenderLanguageCode = nullString(u.LanguageCode)
		return
	}

	// Channel posts and anonymous admins are sent on behalf of a chat.
	c := msg.SenderChat
	record.SenderUserID = c.ID
	record.SenderUsername = nullString(c.Username)
	record.SenderFirstName = nullString(c.Title)
}

func textOrCaption(msg *models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

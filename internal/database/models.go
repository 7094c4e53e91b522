package database

import (
	"database/sql"
	"time"
)

// MessageKind is the closed set of message variants the archive records.
type MessageKind string

const (
	KindText      MessageKind = "text"
	KindPhoto     MessageKind = "photo"
	KindVoice     MessageKind = "voice"
	KindDocument  MessageKind = "document"
	KindVideo     MessageKind = "video"
	KindAudio     MessageKind = "audio"
	KindSticker   MessageKind = "sticker"
	KindVideoNote MessageKind = "video_note"
	KindLocation  MessageKind = "location"
	KindContact   MessageKind = "contact"
	KindPoll      MessageKind = "poll"
	KindDice      MessageKind = "dice"
	KindUnknown   MessageKind = "unknown"
)

// IsMedia reports whether records of this kind carry a media descriptor.
func (k MessageKind) IsMedia() bool {
	switch k {
	case KindPhoto, KindVoice, KindDocument, KindVideo, KindAudio, KindSticker, KindVideoNote:
		return true
	default:
		return false
	}
}

// IsTranscribable reports whether media of this kind is speech-bearing and
// subject to speech-to-text enrichment.
func (k MessageKind) IsTranscribable() bool {
	switch k {
	case KindVoice, KindVideoNote, KindVideo, KindAudio:
		return true
	default:
		return false
	}
}

// MessageKey is the natural key of an archived message.
type MessageKey struct {
	MessageID int64
	ChatID    int64
}

// MessageRecord is a row of the group_messages table.
type MessageRecord struct {
	ID int64 `db:"id"`

	TelegramMessageID int64         `db:"telegram_message_id"`
	TelegramChatID    int64         `db:"telegram_chat_id"`
	TelegramThreadID  sql.NullInt64 `db:"telegram_thread_id"`

	SenderUserID       int64          `db:"sender_user_id"`
	SenderUsername     sql.NullString `db:"sender_username"`
	SenderFirstName    sql.NullString `db:"sender_first_name"`
	SenderLastName     sql.NullString `db:"sender_last_name"`
	SenderIsBot        bool           `db:"sender_is_bot"`
	SenderLanguageCode sql.NullString `db:"sender_language_code"`

	ChatType    string         `db:"chat_type"`
	ChatTitle   sql.NullString `db:"chat_title"`
	ChatIsForum bool           `db:"chat_is_forum"`

	MessageType MessageKind    `db:"message_type"`
	MessageText sql.NullString `db:"message_text"`

	HasMedia          bool           `db:"has_media"`
	MediaType         sql.NullString `db:"media_type"`
	MediaFileID       sql.NullString `db:"media_file_id"`
	MediaFileUniqueID sql.NullString `db:"media_file_unique_id"`
	MediaFileName     sql.NullString `db:"media_file_name"`
	MediaMimeType     sql.NullString `db:"media_mime_type"`
	MediaFileSize     sql.NullInt64  `db:"media_file_size"`
	MediaDuration     sql.NullInt64  `db:"media_duration"`
	MediaWidth        sql.NullInt64  `db:"media_width"`
	MediaHeight       sql.NullInt64  `db:"media_height"`

	IsTopicMessage      bool           `db:"is_topic_message"`
	IsReply             bool           `db:"is_reply"`
	IsForwarded         bool           `db:"is_forwarded"`
	ReplyToMessageID    sql.NullInt64  `db:"reply_to_message_id"`
	ReplyToUserID       sql.NullInt64  `db:"reply_to_user_id"`
	ForumTopicName      sql.NullString `db:"forum_topic_name"`
	ForumTopicIconColor sql.NullInt64  `db:"forum_topic_icon_color"`
	ForwardFromUserID   sql.NullInt64  `db:"forward_from_user_id"`
	ForwardFromUserName sql.NullString `db:"forward_from_user_name"`
	ForwardDate         sql.NullTime   `db:"forward_date"`

	TelegramDate time.Time `db:"telegram_date"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Key returns the natural key of the record.
func (r *MessageRecord) Key() MessageKey {
	return MessageKey{MessageID: r.TelegramMessageID, ChatID: r.TelegramChatID}
}

// Kind returns the media kind of the record, or the empty kind when the
// record carries no media.
func (r *MessageRecord) Kind() MessageKind {
	if !r.HasMedia || !r.MediaType.Valid {
		return ""
	}
	return MessageKind(r.MediaType.String)
}

// StoreResult describes the effect of a write.
type StoreResult struct {
	// ID is the surrogate key of the affected row, zero when unknown.
	ID           int64
	RowsAffected int64
}

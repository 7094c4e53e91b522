package classifier

import (
	"database/sql"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/tgarchive/internal/database"
)

func fillReply(record *database.MessageRecord, msg *models.Message) {
	reply := msg.ReplyToMessage
	if reply == nil {
		return
	}
	record.IsReply = true
	record.ReplyToMessageID = nullInt(int64(reply.ID))
	// Service messages have no resolvable sender.
	if reply.From != nil {
		record.ReplyToUserID = sql.NullInt64{Int64: reply.From.ID, Valid: true}
	}
}

// fillForward records who the message was forwarded from and when. The
// forwarded content itself is the message content and is not duplicated.
func fillForward(record *database.MessageRecord, msg *models.Message) {
	origin := msg.ForwardOrigin
	if origin == nil {
		return
	}

	var (
		id   int64
		name string
		date int64
	)
	switch {
	case origin.MessageOriginUser != nil:
		u := origin.MessageOriginUser.SenderUser
		id, name, date = u.ID, displayName(u), int64(origin.MessageOriginUser.Date)
	case origin.MessageOriginHiddenUser != nil:
		name, date = origin.MessageOriginHiddenUser.SenderUserName, int64(origin.MessageOriginHiddenUser.Date)
	case origin.MessageOriginChat != nil:
		c := origin.MessageOriginChat.SenderChat
		id, name, date = c.ID, chatName(c), int64(origin.MessageOriginChat.Date)
	case origin.MessageOriginChannel != nil:
		c := origin.MessageOriginChannel.Chat
		id, name, date = c.ID, chatName(c), int64(origin.MessageOriginChannel.Date)
	default:
		return
	}

	record.IsForwarded = true
	record.ForwardFromUserID = nullInt(id)
	record.ForwardFromUserName = nullString(name)
	if date != 0 {
		record.ForwardDate = sql.NullTime{Time: unixTime(date), Valid: true}
	}
}

// fillTopic resolves forum-topic lineage. A reply to a topic-creation
// service message inherits that topic. A non-reply in a forum that Telegram
// did not mark as a topic message belongs to the General topic.
func fillTopic(record *database.MessageRecord, msg *models.Message, opts Options) {
	if reply := msg.ReplyToMessage; reply != nil {
		if created := reply.ForumTopicCreated; created != nil {
			record.ForumTopicName = nullString(created.Name)
			record.ForumTopicIconColor = sql.NullInt64{Int64: int64(created.IconColor), Valid: true}
		}
		return
	}

	if opts.LegacyTopicDefault {
		record.ForumTopicName = nullString(GeneralTopicName)
		record.IsTopicMessage = true
		return
	}

	if msg.Chat.IsForum && !msg.IsTopicMessage {
		record.ForumTopicName = nullString(GeneralTopicName)
	}
}

func displayName(u models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func chatName(c models.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	return c.Username
}

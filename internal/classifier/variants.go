package classifier

import (
	"path/filepath"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/tgarchive/internal/database"
)

// variant is one member of the closed set of message shapes. A message may
// populate several fields at once; the first matching variant in variants
// decides its kind.
type variant struct {
	kind    database.MessageKind
	matches func(*models.Message) bool
	// media extracts the attachment; nil for non-media variants.
	media func(*models.Message) *Media
}

// variants is ordered by precedence. The order is part of the archive format
// and must not change.
var variants = []variant{
	{kind: database.KindText, matches: func(m *models.Message) bool { return m.Text != "" }},
	{kind: database.KindPhoto, matches: func(m *models.Message) bool { return len(m.Photo) > 0 }, media: photoMedia},
	{kind: database.KindVoice, matches: func(m *models.Message) bool { return m.Voice != nil }, media: voiceMedia},
	{kind: database.KindDocument, matches: func(m *models.Message) bool { return m.Document != nil }, media: documentMedia},
	{kind: database.KindVideo, matches: func(m *models.Message) bool { return m.Video != nil }, media: videoMedia},
	{kind: database.KindAudio, matches: func(m *models.Message) bool { return m.Audio != nil }, media: audioMedia},
	{kind: database.KindSticker, matches: func(m *models.Message) bool { return m.Sticker != nil }, media: stickerMedia},
	{kind: database.KindVideoNote, matches: func(m *models.Message) bool { return m.VideoNote != nil }, media: videoNoteMedia},
	{kind: database.KindLocation, matches: func(m *models.Message) bool { return m.Location != nil }},
	{kind: database.KindContact, matches: func(m *models.Message) bool { return m.Contact != nil }},
	{kind: database.KindPoll, matches: func(m *models.Message) bool { return m.Poll != nil }},
	{kind: database.KindDice, matches: func(m *models.Message) bool { return m.Dice != nil }},
}

func selectVariant(msg *models.Message) (database.MessageKind, *Media) {
	for _, v := range variants {
		if !v.matches(msg) {
			continue
		}
		if !v.kind.IsMedia() {
			return v.kind, nil
		}
		return v.kind, v.media(msg)
	}
	return database.KindUnknown, nil
}

// Kind-specific MIME defaults used when Telegram omits the type.
const (
	mimeJPEG      = "image/jpeg"
	mimeOGG       = "audio/ogg"
	mimeMP4       = "video/mp4"
	mimeMPEG      = "audio/mpeg"
	mimeBinary    = "application/octet-stream"
	mimeWebP      = "image/webp"
	mimeWebM      = "video/webm"
	mimeTGSticker = "application/x-tgsticker"
)

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// photoMedia picks the highest-resolution size Telegram offers.
func photoMedia(msg *models.Message) *Media {
	best := msg.Photo[0]
	for _, p := range msg.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return &Media{
		Kind:         database.KindPhoto,
		FileID:       best.FileID,
		FileUniqueID: best.FileUniqueID,
		MimeType:     mimeJPEG,
		FileSize:     int64(best.FileSize),
		Width:        int64(best.Width),
		Height:       int64(best.Height),
	}
}

func voiceMedia(msg *models.Message) *Media {
	v := msg.Voice
	return &Media{
		Kind:         database.KindVoice,
		FileID:       v.FileID,
		FileUniqueID: v.FileUniqueID,
		MimeType:     orDefault(v.MimeType, mimeOGG),
		FileSize:     int64(v.FileSize),
		Duration:     int64(v.Duration),
	}
}

func documentMedia(msg *models.Message) *Media {
	d := msg.Document
	return &Media{
		Kind:         database.KindDocument,
		FileID:       d.FileID,
		FileUniqueID: d.FileUniqueID,
		FileName:     d.FileName,
		MimeType:     orDefault(d.MimeType, mimeBinary),
		FileSize:     int64(d.FileSize),
	}
}

func videoMedia(msg *models.Message) *Media {
	v := msg.Video
	return &Media{
		Kind:         database.KindVideo,
		FileID:       v.FileID,
		FileUniqueID: v.FileUniqueID,
		FileName:     v.FileName,
		MimeType:     orDefault(v.MimeType, mimeMP4),
		FileSize:     int64(v.FileSize),
		Duration:     int64(v.Duration),
		Width:        int64(v.Width),
		Height:       int64(v.Height),
	}
}

func audioMedia(msg *models.Message) *Media {
	a := msg.Audio
	return &Media{
		Kind:         database.KindAudio,
		FileID:       a.FileID,
		FileUniqueID: a.FileUniqueID,
		FileName:     orDefault(a.FileName, a.Title),
		MimeType:     orDefault(a.MimeType, mimeMPEG),
		FileSize:     int64(a.FileSize),
		Duration:     int64(a.Duration),
	}
}

func stickerMedia(msg *models.Message) *Media {
	s := msg.Sticker
	mime := mimeWebP
	switch {
	case s.IsAnimated:
		mime = mimeTGSticker
	case s.IsVideo:
		mime = mimeWebM
	}
	return &Media{
		Kind:         database.KindSticker,
		FileID:       s.FileID,
		FileUniqueID: s.FileUniqueID,
		MimeType:     mime,
		FileSize:     int64(s.FileSize),
		Width:        int64(s.Width),
		Height:       int64(s.Height),
	}
}

// videoNoteMedia reports the note's diameter as both width and height.
func videoNoteMedia(msg *models.Message) *Media {
	v := msg.VideoNote
	return &Media{
		Kind:         database.KindVideoNote,
		FileID:       v.FileID,
		FileUniqueID: v.FileUniqueID,
		MimeType:     mimeMP4,
		FileSize:     int64(v.FileSize),
		Duration:     int64(v.Duration),
		Width:        int64(v.Length),
		Height:       int64(v.Length),
	}
}

// StagingExt returns the file extension, with leading dot, used when the
// attachment is staged on local disk.
func (m *Media) StagingExt() string {
	switch m.Kind {
	case database.KindPhoto:
		return ".jpg"
	case database.KindVoice:
		return ".ogg"
	case database.KindVideoNote:
		return ".mp4"
	case database.KindSticker:
		switch m.MimeType {
		case mimeTGSticker:
			return ".tgs"
		case mimeWebM:
			return ".webm"
		default:
			return ".webp"
		}
	}

	if ext := filepath.Ext(m.FileName); ext != "" && len(ext) <= 8 {
		return ext
	}

	switch m.Kind {
	case database.KindAudio:
		return ".mp3"
	case database.KindVideo:
		return ".mp4"
	default:
		return ".bin"
	}
}

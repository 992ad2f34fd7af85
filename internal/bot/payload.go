package bot

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// PayloadFromMessage converts supported message content into a payload.
// Stickers, locations and similar content report false.
func PayloadFromMessage(msg *tgbotapi.Message) (domain.Payload, bool) {
	switch {
	case len(msg.Photo) > 0:
		// Telegram lists sizes ascending; keep the largest.
		largest := msg.Photo[len(msg.Photo)-1]
		return domain.NewMediaPayload(domain.MediaPhoto, largest.FileID, msg.Caption), true
	case msg.Video != nil:
		return domain.NewMediaPayload(domain.MediaVideo, msg.Video.FileID, msg.Caption), true
	case msg.Document != nil:
		return domain.NewDocumentPayload(msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType, msg.Caption), true
	case msg.Text != "":
		return domain.NewTextPayload(msg.Text), true
	}
	return domain.Payload{}, false
}

// MessageTime is the platform timestamp of msg.
func MessageTime(msg *tgbotapi.Message) time.Time {
	if msg.Date == 0 {
		return time.Now()
	}
	return msg.Time()
}

// SenderIdentity extracts the sender of msg.
func SenderIdentity(from *tgbotapi.User) domain.Identity {
	if from == nil {
		return domain.Identity{}
	}
	return domain.Identity{ID: from.ID, Username: from.UserName}
}

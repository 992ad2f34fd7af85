package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/bot"
	"github.com/danilaloko/eco-bot/internal/domain"
)

// handleCallback applies an inline button decision and replaces the
// original message with the outcome.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if err := b.admins.Authorize(cb.From.ID); err != nil {
		b.answer(cb, bot.RefusalText(err))
		return
	}

	parts := strings.Split(cb.Data, callbackSplit)
	ids := make([]int64, 0, len(parts)-1)
	for _, raw := range parts[1:] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			b.answer(cb, "Unknown button.")
			return
		}
		ids = append(ids, id)
	}

	var (
		text string
		err  error
	)
	switch {
	case parts[0] == "approve" && len(ids) == 1:
		text, err = b.decide(ctx, cb.From.ID, ids[0], domain.SubmissionApproved, "")
	case parts[0] == "reject" && len(ids) == 1:
		text, err = b.decide(ctx, cb.From.ID, ids[0], domain.SubmissionRejected, "")
		if err == nil {
			text += fmt.Sprintf(" To add a comment next time use /reject %d <note>.", ids[0])
		}
	case parts[0] == "bind" && len(ids) == 2:
		text, err = b.bind(ctx, cb.From.ID, ids[0], ids[1])
	case parts[0] == "dismiss" && len(ids) == 1:
		err = b.moderation.Dismiss(ctx, cb.From.ID, ids[0])
		text = fmt.Sprintf("Message #%d dismissed.", ids[0])
	default:
		b.answer(cb, "Unknown button.")
		return
	}

	if err != nil {
		if bot.IsInternal(err) {
			b.logger.Error("admin callback failed", zap.String("data", cb.Data), zap.Error(err))
		}
		b.answer(cb, bot.RefusalText(err))
		return
	}
	b.answer(cb, "Done")
	if cb.Message != nil {
		b.edit(cb.Message.Chat.ID, cb.Message.MessageID, cb.Message.Text+"\n\n"+text)
	}
}

func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.logger.Debug("callback answer failed", zap.Error(err))
	}
}

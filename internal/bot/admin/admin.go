// Package admin is the chat front end used by challenge organizers.
package admin

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/auth"
	"github.com/danilaloko/eco-bot/internal/bot"
	"github.com/danilaloko/eco-bot/internal/observability"
	"github.com/danilaloko/eco-bot/internal/service"
	"github.com/danilaloko/eco-bot/internal/storage"
)

const (
	listLimit     = 10
	suggestLimit  = 3
	mediaLinkTTL  = 24 * time.Hour
	callbackSplit = ":"
)

// Dependencies bundles collaborators of the admin bot.
type Dependencies struct {
	API        bot.API
	Admins     *auth.AdminAllowList
	Tokens     *auth.TokenManager
	Tasks      *service.TaskService
	Moderation *service.ModerationService
	Potential  *service.PotentialMessageService
	Support    *service.SupportService
	Analytics  *service.AnalyticsService
	// Archive resolves archived media to download links; nil hides links.
	Archive      storage.MediaArchive
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Location     *time.Location
	PollTimeout  int
	DashboardURL string
}

// Bot handles administrator updates.
type Bot struct {
	api          bot.API
	admins       *auth.AdminAllowList
	tokens       *auth.TokenManager
	tasks        *service.TaskService
	moderation   *service.ModerationService
	potential    *service.PotentialMessageService
	support      *service.SupportService
	analytics    *service.AnalyticsService
	archive      storage.MediaArchive
	logger       *zap.Logger
	metrics      *observability.Metrics
	location     *time.Location
	pollTimeout  int
	dashboardURL string

	commands map[string]commandFunc
}

type commandFunc func(ctx context.Context, adminID, chatID int64, args string) error

// New constructs the bot.
func New(deps Dependencies) *Bot {
	b := &Bot{
		api:          deps.API,
		admins:       deps.Admins,
		tokens:       deps.Tokens,
		tasks:        deps.Tasks,
		moderation:   deps.Moderation,
		potential:    deps.Potential,
		support:      deps.Support,
		analytics:    deps.Analytics,
		archive:      deps.Archive,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		location:     deps.Location,
		pollTimeout:  deps.PollTimeout,
		dashboardURL: deps.DashboardURL,
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.location == nil {
		b.location = time.UTC
	}
	if b.archive == nil {
		b.archive = storage.NopArchive{}
	}
	b.commands = map[string]commandFunc{
		"start":        b.cmdHelp,
		"help":         b.cmdHelp,
		"tasks":        b.cmdTasks,
		"task":         b.cmdTask,
		"newtask":      b.cmdNewTask,
		"edittask":     b.cmdEditTask,
		"archive":      b.cmdArchive,
		"open":         b.cmdOpen,
		"deltask":      b.cmdDeleteTask,
		"pending":      b.cmdPending,
		"approve":      b.cmdApprove,
		"reject":       b.cmdReject,
		"potential":    b.cmdPotential,
		"bind":         b.cmdBind,
		"dismiss":      b.cmdDismiss,
		"stats":        b.cmdStats,
		"user":         b.cmdUser,
		"support":      b.cmdSupport,
		"closesupport": b.cmdCloseSupport,
		"dashboard":    b.cmdDashboard,
	}
	return b
}

// Run polls updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	bot.Run(ctx, b.api, b.pollTimeout, b.logger, b.HandleUpdate)
}

// HandleUpdate dispatches one update after the allow-list check.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		b.metrics.RecordUpdate("admin", "message")
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.metrics.RecordUpdate("admin", "callback")
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if err := b.admins.Authorize(msg.From.ID); err != nil {
		b.logger.Warn("admin bot used by outsider", zap.Int64("user_id", msg.From.ID))
		b.refuse(chatID, err)
		return
	}
	if !msg.IsCommand() {
		b.reply(chatID, helpText, nil)
		return
	}
	cmd, ok := b.commands[msg.Command()]
	if !ok {
		b.reply(chatID, "Unknown command.\n\n"+helpText, nil)
		return
	}
	if err := cmd(ctx, msg.From.ID, chatID, strings.TrimSpace(msg.CommandArguments())); err != nil {
		b.refuse(chatID, err)
	}
}

func (b *Bot) refuse(chatID int64, err error) {
	if bot.IsInternal(err) {
		b.logger.Error("admin request failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	b.reply(chatID, bot.RefusalText(err), nil)
}

func (b *Bot) reply(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Warn("edit message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

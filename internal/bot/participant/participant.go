// Package participant is the chat front end used by challenge participants.
package participant

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/bot"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/observability"
	"github.com/danilaloko/eco-bot/internal/service"
	"github.com/danilaloko/eco-bot/internal/storage"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

const (
	buttonTasks   = "📋 Tasks"
	buttonResults = "📊 My results"
	buttonArchive = "🗂 Archive"
	buttonSupport = "🆘 Support"
	buttonHelp    = "❓ Help"

	callbackReport = "report:"
	resultsShown   = 10
)

var menuButtons = map[string]string{
	buttonTasks:   "tasks",
	buttonResults: "results",
	buttonArchive: "archive",
	buttonSupport: "support",
	buttonHelp:    "help",
}

// Dependencies bundles collaborators of the participant bot.
type Dependencies struct {
	API          bot.API
	Router       *service.InboundRouter
	Registration *service.RegistrationService
	Tasks        *service.TaskService
	Submissions  *service.SubmissionService
	Support      *service.SupportService
	// Archiver copies media reports; nil disables archiving.
	Archiver    *storage.Archiver
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Location    *time.Location
	PollTimeout int
}

// Bot handles participant updates.
type Bot struct {
	api          bot.API
	router       *service.InboundRouter
	registration *service.RegistrationService
	tasks        *service.TaskService
	submissions  *service.SubmissionService
	support      *service.SupportService
	archiver     *storage.Archiver
	logger       *zap.Logger
	metrics      *observability.Metrics
	location     *time.Location
	pollTimeout  int
}

// New constructs the bot.
func New(deps Dependencies) *Bot {
	b := &Bot{
		api:          deps.API,
		router:       deps.Router,
		registration: deps.Registration,
		tasks:        deps.Tasks,
		submissions:  deps.Submissions,
		support:      deps.Support,
		archiver:     deps.Archiver,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		location:     deps.Location,
		pollTimeout:  deps.PollTimeout,
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.location == nil {
		b.location = time.UTC
	}
	return b
}

// Run polls updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	bot.Run(ctx, b.api, b.pollTimeout, b.logger, b.HandleUpdate)
}

// HandleUpdate dispatches one update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		b.metrics.RecordUpdate("participant", "message")
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.metrics.RecordUpdate("participant", "callback")
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	command := msg.Command()
	if command == "" {
		command = menuButtons[msg.Text]
	}

	switch command {
	case "":
		b.handleContent(ctx, msg)
	case "start":
		b.handleStart(ctx, msg)
	case "tasks":
		b.handleTasks(ctx, msg)
	case "results":
		b.handleResults(ctx, msg)
	case "archive":
		b.handleArchive(ctx, msg)
	case "support":
		b.handleSupport(ctx, msg)
	case "cancel":
		b.handleCancel(ctx, msg)
	case "help":
		b.reply(msg.Chat.ID, helpText, mainMenu())
	default:
		b.reply(msg.Chat.ID, "Unknown command.\n\n"+helpText, nil)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.registration.Touch(ctx, bot.SenderIdentity(msg.From))
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	progress, err := b.registration.Start(ctx, user.ID)
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	if progress.AlreadyRegistered {
		b.reply(msg.Chat.ID, "You are already registered, "+progress.User.GivenName+". Pick a task in "+buttonTasks+".", mainMenu())
		return
	}
	b.promptStep(msg.Chat.ID, progress.Step, true)
}

// registered touches the sender and refuses unregistered users.
func (b *Bot) registered(ctx context.Context, msg *tgbotapi.Message) (*domain.User, bool) {
	user, err := b.registration.Touch(ctx, bot.SenderIdentity(msg.From))
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		return nil, false
	}
	if !user.RegistrationCompleted {
		b.refuse(msg.Chat.ID, apperrors.ErrUserNotRegistered)
		return nil, false
	}
	return user, true
}

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message) {
	user, ok := b.registered(ctx, msg)
	if !ok {
		return
	}
	items, err := b.tasks.ListOpenForUser(ctx, user.ID)
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	if len(items) == 0 {
		b.reply(msg.Chat.ID, "There are no open tasks right now. We will announce new ones soon.", mainMenu())
		return
	}
	for _, item := range items {
		var markup any
		if item.CanSubmit() {
			markup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📤 Submit report", callbackReport+strconv.FormatInt(item.Task.ID, 10)),
			))
		}
		b.reply(msg.Chat.ID, formatTask(item, b.location), markup)
	}
}

func (b *Bot) handleArchive(ctx context.Context, msg *tgbotapi.Message) {
	user, ok := b.registered(ctx, msg)
	if !ok {
		return
	}
	items, err := b.tasks.ListArchivedForUser(ctx, user.ID)
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, formatArchive(items, b.location), mainMenu())
}

func (b *Bot) handleResults(ctx context.Context, msg *tgbotapi.Message) {
	user, ok := b.registered(ctx, msg)
	if !ok {
		return
	}
	progress, err := b.submissions.Progress(ctx, user.ID)
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	subs, err := b.submissions.ListForUser(ctx, user.ID)
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, formatResults(progress, subs), mainMenu())
}

func (b *Bot) handleSupport(ctx context.Context, msg *tgbotapi.Message) {
	if err := b.support.Begin(ctx, msg.From.ID); err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, "Describe your question in one message. /cancel to go back.", tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) handleCancel(ctx context.Context, msg *tgbotapi.Message) {
	if err := b.router.Cancel(ctx, msg.From.ID); err != nil {
		b.refuse(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, "Cancelled.", mainMenu())
}

func (b *Bot) handleContent(ctx context.Context, msg *tgbotapi.Message) {
	payload, ok := bot.PayloadFromMessage(msg)
	if !ok {
		b.reply(msg.Chat.ID, "This kind of message is not supported. Send text, a photo, a video or a file.", nil)
		return
	}
	if b.archiver != nil && payload.Kind != domain.PayloadText {
		payload = b.archiver.Archive(ctx, msg.From.ID, payload)
	}

	outcome, err := b.router.Route(ctx, service.Inbound{
		Sender:     bot.SenderIdentity(msg.From),
		Payload:    payload,
		ReceivedAt: bot.MessageTime(msg),
	})
	if err != nil {
		b.refuse(msg.Chat.ID, err)
		if outcome != nil && outcome.Kind == service.RouteRegistration && outcome.Registration != nil {
			b.promptStep(msg.Chat.ID, outcome.Registration.Step, false)
		}
		return
	}

	switch outcome.Kind {
	case service.RouteRegistration:
		if outcome.Registration.User != nil {
			b.reply(msg.Chat.ID, "Registration complete, "+outcome.Registration.User.GivenName+
				"! Open "+buttonTasks+" to see the challenge tasks.", mainMenu())
			return
		}
		b.promptStep(msg.Chat.ID, outcome.Registration.Step, false)
	case service.RouteSubmission:
		b.reply(msg.Chat.ID, "Saved. You can follow the review in "+buttonResults+".", mainMenu())
	case service.RouteSupport:
		b.reply(msg.Chat.ID, "Request #"+strconv.FormatInt(outcome.Support.ID, 10)+
			" was sent to the organizers. We will get back to you here.", mainMenu())
	case service.RouteCaptured:
		b.reply(msg.Chat.ID, "Message saved. If this is a report, choose the task in "+buttonTasks+
			" and press \"Submit report\" first. The organizers will look at this message too.", mainMenu())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Debug("callback answer failed", zap.Error(err))
	}
	chatID := bot.ChatID(tgbotapi.Update{CallbackQuery: cb})

	if !strings.HasPrefix(cb.Data, callbackReport) {
		return
	}
	taskID, err := strconv.ParseInt(strings.TrimPrefix(cb.Data, callbackReport), 10, 64)
	if err != nil {
		return
	}
	if _, err := b.registration.Touch(ctx, bot.SenderIdentity(cb.From)); err != nil {
		b.refuse(chatID, err)
		return
	}
	task, err := b.submissions.BeginReport(ctx, cb.From.ID, taskID)
	if err != nil {
		b.refuse(chatID, err)
		return
	}
	b.reply(chatID, "Send your report for \""+task.Title+"\": a link, a photo, a video or a file. /cancel to go back.",
		tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) promptStep(chatID int64, step domain.DialogStep, first bool) {
	text, markup := stepPrompt(step)
	if first && step == domain.StepAwaitSurname {
		text = "Welcome to the eco challenge! Let's get you registered.\n\n" + text
	}
	b.reply(chatID, text, markup)
}

func (b *Bot) refuse(chatID int64, err error) {
	if bot.IsInternal(err) {
		b.logger.Error("participant request failed", zap.Int64("chat_id", chatID), zap.Error(err))
	} else {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			b.logger.Debug("participant request refused", zap.Int64("chat_id", chatID), zap.String("code", domainErr.Code))
		}
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

package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/service"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

func usage(text string) error {
	return apperrors.NewValidationError("usage: "+text, nil)
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(name+" must be a positive number", map[string]any{name: raw})
	}
	return id, nil
}

func parseWeek(raw string) (int, error) {
	week, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.ErrInvalidWeek.WithDetails(map[string]any{"week": raw})
	}
	return week, nil
}

func (b *Bot) cmdHelp(_ context.Context, _, chatID int64, _ string) error {
	b.reply(chatID, helpText, nil)
	return nil
}

// /tasks [week]
func (b *Bot) cmdTasks(ctx context.Context, _, chatID int64, args string) error {
	var filter service.TaskListFilter
	if args != "" {
		week, err := parseWeek(args)
		if err != nil {
			return err
		}
		filter.Week = &week
	}
	tasks, err := b.tasks.List(ctx, filter)
	if err != nil {
		return err
	}
	b.reply(chatID, formatTaskList(tasks, b.location), nil)
	return nil
}

// /task <id>
func (b *Bot) cmdTask(ctx context.Context, _, chatID int64, args string) error {
	id, err := parseID(args, "task id")
	if err != nil {
		return err
	}
	history, err := b.analytics.TaskHistory(ctx, id)
	if err != nil {
		return err
	}
	b.reply(chatID, formatTaskHistory(history, b.location), nil)
	return nil
}

// /newtask title|description|link|week|deadline|opens
func (b *Bot) cmdNewTask(ctx context.Context, adminID, chatID int64, args string) error {
	parts := strings.Split(args, "|")
	if len(parts) < 4 || len(parts) > 6 {
		return usage("/newtask title|description|link|week|deadline|opens (link may be -, deadline may be omitted or auto, opens may be omitted or now)")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	week, err := parseWeek(parts[3])
	if err != nil {
		return err
	}
	input := service.TaskInput{
		Title:       parts[0],
		Description: parts[1],
		Link:        parts[2],
		Week:        week,
	}
	if len(parts) >= 5 {
		input.Deadline = parts[4]
	}
	if len(parts) == 6 {
		input.OpensAt = parts[5]
	}
	task, err := b.tasks.Create(ctx, adminID, input)
	if err != nil {
		return err
	}
	b.reply(chatID, "Created "+formatTask(*task, b.location), nil)
	return nil
}

// /edittask <id> <field> <value>
func (b *Bot) cmdEditTask(ctx context.Context, adminID, chatID int64, args string) error {
	const help = "/edittask <id> title|description|link|week|deadline|opens <value>"
	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 3 {
		return usage(help)
	}
	id, err := parseID(fields[0], "task id")
	if err != nil {
		return err
	}
	value := strings.TrimSpace(fields[2])

	var patch service.TaskPatch
	switch strings.ToLower(fields[1]) {
	case "title":
		patch.Title = &value
	case "description":
		patch.Description = &value
	case "link":
		patch.Link = &value
	case "week":
		week, err := parseWeek(value)
		if err != nil {
			return err
		}
		patch.Week = &week
	case "deadline":
		patch.Deadline = &value
	case "opens":
		patch.OpensAt = &value
	default:
		return usage(help)
	}
	task, err := b.tasks.Edit(ctx, adminID, id, patch)
	if err != nil {
		return err
	}
	b.reply(chatID, "Updated "+formatTask(*task, b.location), nil)
	return nil
}

func (b *Bot) setStatus(ctx context.Context, adminID, chatID int64, args string, status domain.TaskStatus) error {
	id, err := parseID(args, "task id")
	if err != nil {
		return err
	}
	task, err := b.tasks.SetStatus(ctx, adminID, id, status)
	if err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("Task #%d is now %s.", task.ID, task.Status), nil)
	return nil
}

// /archive <id>
func (b *Bot) cmdArchive(ctx context.Context, adminID, chatID int64, args string) error {
	return b.setStatus(ctx, adminID, chatID, args, domain.TaskStatusArchived)
}

// /open <id>
func (b *Bot) cmdOpen(ctx context.Context, adminID, chatID int64, args string) error {
	return b.setStatus(ctx, adminID, chatID, args, domain.TaskStatusOpen)
}

// /deltask <id>
func (b *Bot) cmdDeleteTask(ctx context.Context, adminID, chatID int64, args string) error {
	id, err := parseID(args, "task id")
	if err != nil {
		return err
	}
	if err := b.tasks.Delete(ctx, adminID, id); err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("Task #%d deleted.", id), nil)
	return nil
}

// /pending sends one message per pending report with decision buttons.
func (b *Bot) cmdPending(ctx context.Context, _, chatID int64, _ string) error {
	subs, err := b.moderation.ListPending(ctx, listLimit)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		b.reply(chatID, "No reports waiting for review.", nil)
		return nil
	}
	for _, sub := range subs {
		text := formatSubmission(sub, b.location) + b.mediaLink(ctx, sub.Payload)
		b.reply(chatID, text, decisionKeyboard(sub.ID))
	}
	return nil
}

func (b *Bot) decide(ctx context.Context, adminID, id int64, outcome domain.SubmissionStatus, note string) (string, error) {
	sub, err := b.moderation.Decide(ctx, adminID, id, outcome, note)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Report #%d %s.", sub.ID, sub.Status), nil
}

// /approve <id>
func (b *Bot) cmdApprove(ctx context.Context, adminID, chatID int64, args string) error {
	id, err := parseID(args, "report id")
	if err != nil {
		return err
	}
	text, err := b.decide(ctx, adminID, id, domain.SubmissionApproved, "")
	if err != nil {
		return err
	}
	b.reply(chatID, text, nil)
	return nil
}

// /reject <id> [note]
func (b *Bot) cmdReject(ctx context.Context, adminID, chatID int64, args string) error {
	fields := strings.SplitN(args, " ", 2)
	id, err := parseID(fields[0], "report id")
	if err != nil {
		return err
	}
	note := ""
	if len(fields) == 2 {
		note = fields[1]
	}
	text, err := b.decide(ctx, adminID, id, domain.SubmissionRejected, note)
	if err != nil {
		return err
	}
	b.reply(chatID, text, nil)
	return nil
}

// /potential lists unmatched messages with suggested tasks.
func (b *Bot) cmdPotential(ctx context.Context, _, chatID int64, _ string) error {
	messages, err := b.potential.ListUnhandled(ctx, listLimit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		b.reply(chatID, "No unmatched messages.", nil)
		return nil
	}
	for _, pm := range messages {
		suggestions, err := b.moderation.SuggestTasks(ctx, pm.ID, suggestLimit)
		if err != nil {
			return err
		}
		text := formatPotential(pm, b.location) + b.mediaLink(ctx, pm.Payload)
		b.reply(chatID, text, bindKeyboard(pm.ID, suggestions))
	}
	return nil
}

// /bind <message id> <task id>
func (b *Bot) cmdBind(ctx context.Context, adminID, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return usage("/bind <message id> <task id>")
	}
	pmID, err := parseID(fields[0], "message id")
	if err != nil {
		return err
	}
	taskID, err := parseID(fields[1], "task id")
	if err != nil {
		return err
	}
	text, err := b.bind(ctx, adminID, pmID, taskID)
	if err != nil {
		return err
	}
	b.reply(chatID, text, nil)
	return nil
}

func (b *Bot) bind(ctx context.Context, adminID, pmID, taskID int64) (string, error) {
	result, err := b.moderation.Bind(ctx, adminID, pmID, taskID)
	if err != nil {
		return "", err
	}
	timing := "on time"
	if !result.Submission.OnTime {
		timing = "late"
	}
	return fmt.Sprintf("Message #%d bound to %q as approved report #%d (%s).",
		pmID, result.Task.Title, result.Submission.ID, timing), nil
}

// /dismiss <message id>
func (b *Bot) cmdDismiss(ctx context.Context, adminID, chatID int64, args string) error {
	id, err := parseID(args, "message id")
	if err != nil {
		return err
	}
	if err := b.moderation.Dismiss(ctx, adminID, id); err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("Message #%d dismissed.", id), nil)
	return nil
}

// /stats
func (b *Bot) cmdStats(ctx context.Context, _, chatID int64, _ string) error {
	overview, err := b.analytics.Overview(ctx)
	if err != nil {
		return err
	}
	summary, err := b.analytics.PotentialSummary(ctx)
	if err != nil {
		return err
	}
	b.reply(chatID, formatOverview(overview, summary), nil)
	return nil
}

// /user <id>
func (b *Bot) cmdUser(ctx context.Context, _, chatID int64, args string) error {
	id, err := parseID(args, "user id")
	if err != nil {
		return err
	}
	history, err := b.analytics.UserHistory(ctx, id)
	if err != nil {
		return err
	}
	b.reply(chatID, formatUserHistory(history, b.location), nil)
	return nil
}

// /support lists open support requests.
func (b *Bot) cmdSupport(ctx context.Context, _, chatID int64, _ string) error {
	requests, err := b.support.ListOpen(ctx)
	if err != nil {
		return err
	}
	b.reply(chatID, formatSupport(requests, b.location), nil)
	return nil
}

// /closesupport <id>
func (b *Bot) cmdCloseSupport(ctx context.Context, adminID, chatID int64, args string) error {
	id, err := parseID(args, "request id")
	if err != nil {
		return err
	}
	req, err := b.support.Close(ctx, adminID, id)
	if err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("Support request #%d closed; the participant was notified.", req.ID), nil)
	return nil
}

// /dashboard issues a bearer token for the dashboard API.
func (b *Bot) cmdDashboard(_ context.Context, adminID, chatID int64, _ string) error {
	token, expiresAt, err := b.tokens.GenerateToken(adminID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Dashboard token, valid until %s:\n%s\n\nSend it as: Authorization: Bearer <token>",
		expiresAt.In(b.location).Format(dateLayout), token)
	if b.dashboardURL != "" {
		text += "\nDashboard: " + b.dashboardURL
	}
	b.reply(chatID, text, nil)
	return nil
}

func (b *Bot) mediaLink(ctx context.Context, payload domain.Payload) string {
	key := payload.StorageKey()
	if key == "" || !b.archive.Enabled() {
		return ""
	}
	url, err := b.archive.URL(ctx, key, mediaLinkTTL)
	if err != nil || url == "" {
		return ""
	}
	return "\nFile: " + url
}

func decisionKeyboard(submissionID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(submissionID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve"+callbackSplit+id),
		tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject"+callbackSplit+id),
	))
}

func bindKeyboard(pmID int64, suggestions []domain.Task) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(pmID, 10)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(suggestions)+1)
	for _, task := range suggestions {
		label := fmt.Sprintf("➡️ #%d %s", task.ID, truncate(task.Title, 40))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "bind"+callbackSplit+id+callbackSplit+strconv.FormatInt(task.ID, 10)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Dismiss", "dismiss"+callbackSplit+id),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

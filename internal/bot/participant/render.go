package participant

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/service"
)

const helpText = `Commands:
/start - register or check your registration
/tasks - open tasks and report buttons
/results - your progress and reports
/archive - closed tasks and your reports on them
/support - ask the organizers a question
/cancel - leave the current step`

const dateLayout = "02.01.2006 15:04"

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonTasks), tgbotapi.NewKeyboardButton(buttonResults)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonArchive), tgbotapi.NewKeyboardButton(buttonSupport)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonHelp)),
	)
}

func choice(options ...string) tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, len(options))
	for _, o := range options {
		row = append(row, tgbotapi.NewKeyboardButton(o))
	}
	kb := tgbotapi.NewReplyKeyboard(row)
	kb.OneTimeKeyboard = true
	return kb
}

func stepPrompt(step domain.DialogStep) (string, any) {
	switch step {
	case domain.StepAwaitSurname:
		return "What is your surname?", tgbotapi.NewRemoveKeyboard(true)
	case domain.StepAwaitGivenName:
		return "What is your first name?", nil
	case domain.StepAwaitParticipationMode:
		return "Do you take part on your own or with your family?", choice("individual", "family")
	case domain.StepAwaitFamilySize:
		return "How many people are in your family, including you? (2-10)", tgbotapi.NewRemoveKeyboard(true)
	case domain.StepAwaitHasChildren:
		return "Are there children in your family?", choice("yes", "no")
	case domain.StepAwaitChildAges:
		return "How old are the children? List ages separated by commas, for example: 3, 8.", tgbotapi.NewRemoveKeyboard(true)
	}
	return "Send /start to continue.", nil
}

func formatTask(item service.TaskForUser, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Week %d: %s\n", item.Task.Week, item.Task.Title)
	if item.Task.Description != "" {
		sb.WriteString(item.Task.Description)
		sb.WriteString("\n")
	}
	if item.Task.Link != nil {
		sb.WriteString(*item.Task.Link)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Deadline: %s", item.Task.Deadline.In(loc).Format(dateLayout))
	if item.SubmissionStatus != nil {
		sb.WriteString("\nYour report: ")
		sb.WriteString(statusLabel(*item.SubmissionStatus))
	}
	return sb.String()
}

func formatArchive(items []service.TaskForUser, loc *time.Location) string {
	if len(items) == 0 {
		return "No tasks have been closed yet."
	}
	var sb strings.Builder
	sb.WriteString("Closed tasks:")
	for _, item := range items {
		fmt.Fprintf(&sb, "\nWeek %d: %s, closed after %s", item.Task.Week, item.Task.Title,
			item.Task.Deadline.In(loc).Format(dateLayout))
		if item.SubmissionStatus != nil {
			fmt.Fprintf(&sb, " - %s", statusLabel(*item.SubmissionStatus))
		} else {
			sb.WriteString(" - no report")
		}
	}
	return sb.String()
}

func statusLabel(status domain.SubmissionStatus) string {
	switch status {
	case domain.SubmissionPending:
		return "⏳ under review"
	case domain.SubmissionApproved:
		return "✅ approved"
	case domain.SubmissionRejected:
		return "❌ rejected, you can send a new one"
	}
	return string(status)
}

func formatResults(progress *domain.Progress, subs []domain.SubmissionView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Completed on time: %d of %d open tasks.", progress.CompletedOnTime, progress.OpenTasks)
	if len(subs) == 0 {
		sb.WriteString("\nYou have not sent any reports yet.")
		return sb.String()
	}
	sb.WriteString("\n\nYour reports:")
	for i, sub := range subs {
		if i == resultsShown {
			fmt.Fprintf(&sb, "\n...and %d more", len(subs)-resultsShown)
			break
		}
		timing := "on time"
		if !sub.OnTime {
			timing = "late"
		}
		fmt.Fprintf(&sb, "\n#%d %s (%s): %s", sub.ID, sub.TaskTitle, timing, statusLabel(sub.Status))
		if sub.Status == domain.SubmissionRejected && sub.RejectionNote != nil && *sub.RejectionNote != "" {
			fmt.Fprintf(&sb, " - %s", *sub.RejectionNote)
		}
	}
	return sb.String()
}

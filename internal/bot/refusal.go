package bot

import (
	"errors"

	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

var refusals = map[string]string{
	apperrors.CodeInvalidDeadlineFormat: "The deadline is not valid. Use auto, tomorrow, week or DD.MM.YYYY HH:MM.",
	apperrors.CodeInvalidOpeningDate:    "The opening date is not valid. Use now, tomorrow, week or DD.MM.YYYY HH:MM, not in the past and before the deadline.",
	apperrors.CodeInvalidWeek:           "The week must be a number from 1 to 53.",
	apperrors.CodeInvalidTitle:          "The title must be 5 to 100 characters long.",
	apperrors.CodeInvalidLink:           "The link must start with http://, https://, t.me/ or @.",
	apperrors.CodeInvalidName:           "Please enter a real name of at least 2 letters.",
	apperrors.CodeInvalidParticipation:  "Please choose individual or family.",
	apperrors.CodeInvalidFamilySize:     "Please enter the number of family members, from 2 to 10.",
	apperrors.CodeInvalidChildrenAnswer: "Please answer yes or no.",
	apperrors.CodeInvalidChildAges:      "Please list the children's ages, for example: 3, 8 or 0-3, 8-12.",
	apperrors.CodeInvalidPayload:        "This report is empty. Send a link, a photo, a video or a file.",
	apperrors.CodeInvalidOutcome:        "The decision must be approve or reject.",
	apperrors.CodeNoActiveDialog:        "Choose a task first: open the task list and press \"Submit report\".",
	apperrors.CodeDuplicateTitle:        "A task with this title already exists.",
	apperrors.CodeDuplicateSubmission:   "You already have a pending or approved report for this task.",
	apperrors.CodeAlreadyDecided:        "This report has already been reviewed.",
	apperrors.CodeAlreadyProcessed:      "This message has already been processed.",
	apperrors.CodeTaskInUse:             "This task already has reports. Archive it instead of deleting.",
	apperrors.CodeTaskNotOpen:           "This task is closed for reports.",
	apperrors.CodeTaskNotPublished:      "This task is not published yet.",
	apperrors.CodeUserNotRegistered:     "Please finish registration first: /start",
	apperrors.CodeNotFound:              "Nothing found with this id.",
	apperrors.CodeUnauthorized:          "Authorization required.",
	apperrors.CodeForbidden:             "This command is for organizers only.",
}

// RefusalText renders err as a chat reply. Validation failures without a
// dedicated text show the error message itself.
func RefusalText(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		return "Something went wrong. Please try again later."
	}
	if text, ok := refusals[domainErr.Code]; ok {
		return text
	}
	if domainErr.Kind == apperrors.KindValidation {
		return capitalize(domainErr.Message) + "."
	}
	return "Something went wrong. Please try again later."
}

// IsInternal reports whether err is not a domain error and should be logged.
func IsInternal(err error) bool {
	var domainErr *apperrors.DomainError
	return err != nil && (!errors.As(err, &domainErr) || domainErr.Kind == apperrors.KindInternal)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}

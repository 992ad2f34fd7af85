package service

import (
	"fmt"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
)

const deadlineLayout = "02.01.2006 15:04"

const previewLength = 120

func submissionReceivedText(task *domain.Task, onTime bool, loc *time.Location) string {
	if onTime {
		return fmt.Sprintf("Your report for %q was received on time and is waiting for review.", task.Title)
	}
	return fmt.Sprintf("Your report for %q was received after the deadline (%s). It will still be reviewed.",
		task.Title, task.Deadline.In(loc).Format(deadlineLayout))
}

func submissionDecidedText(taskTitle string, status domain.SubmissionStatus, note *string) string {
	if status == domain.SubmissionApproved {
		return fmt.Sprintf("Your report for %q was approved. Thank you!", taskTitle)
	}
	text := fmt.Sprintf("Your report for %q was rejected. You can send a new one.", taskTitle)
	if note != nil && *note != "" {
		text += "\nComment: " + *note
	}
	return text
}

func potentialBoundText(taskTitle string, onTime bool) string {
	suffix := "on time"
	if !onTime {
		suffix = "after the deadline"
	}
	return fmt.Sprintf("Your earlier message was counted as a report for %q (%s) and approved.", taskTitle, suffix)
}

func adminNewSubmissionText(sub *domain.Submission, user *domain.User, task *domain.Task) string {
	timing := "on time"
	if !sub.OnTime {
		timing = "late"
	}
	return fmt.Sprintf("New report #%d from %s for %q (%s): %s\n/approve %d  /reject %d <note>",
		sub.ID, user.FullName(), task.Title, timing, sub.Payload.Preview(previewLength), sub.ID, sub.ID)
}

func adminNewPotentialText(pm *domain.PotentialMessage, user *domain.User) string {
	return fmt.Sprintf("Unmatched message #%d from %s: %s\n/bind %d <task id>  /dismiss %d",
		pm.ID, user.FullName(), pm.Payload.Preview(previewLength), pm.ID, pm.ID)
}

func adminSupportText(req *domain.SupportRequest, user *domain.User) string {
	return fmt.Sprintf("Support request #%d from %s (@%s): %s\n/closesupport %d",
		req.ID, user.FullName(), user.Username, req.Message, req.ID)
}

func supportClosedText(req *domain.SupportRequest) string {
	return fmt.Sprintf("Your support request #%d has been handled by the organizers.", req.ID)
}

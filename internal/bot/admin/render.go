package admin

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/service"
)

const dateLayout = "02.01.2006 15:04"

const previewLength = 200

const helpText = `Organizer commands:
/tasks [week] - list tasks
/task <id> - task statistics and reports
/newtask title|description|link|week|deadline|opens - create a task
/edittask <id> <field> <value> - change title, description, link, week, deadline or opens
/archive <id>, /open <id> - close or reopen a task
/deltask <id> - delete a task without reports
/pending - reports waiting for review
/approve <id>, /reject <id> [note] - decide a report
/potential - unmatched messages
/bind <message id> <task id>, /dismiss <message id>
/stats - challenge overview
/user <id> - participant history
/support, /closesupport <id> - support requests
/dashboard - token for the dashboard API`

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func formatTask(task domain.Task, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d [%s] week %d: %s\nDeadline: %s", task.ID, task.Status, task.Week, task.Title,
		task.Deadline.In(loc).Format(dateLayout))
	if task.OpensAt != nil {
		sb.WriteString("\nOpens: ")
		sb.WriteString(task.OpensAt.In(loc).Format(dateLayout))
	}
	if task.Link != nil {
		sb.WriteString("\nLink: ")
		sb.WriteString(*task.Link)
	}
	if task.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(task.Description)
	}
	return sb.String()
}

func formatTaskList(tasks []domain.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return "No tasks yet. Create one with /newtask."
	}
	var sb strings.Builder
	for i, task := range tasks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "#%d [%s] week %d, due %s: %s", task.ID, task.Status, task.Week,
			task.Deadline.In(loc).Format(dateLayout), task.Title)
		if task.OpensAt != nil {
			fmt.Fprintf(&sb, " (opens %s)", task.OpensAt.In(loc).Format(dateLayout))
		}
	}
	return sb.String()
}

func timing(onTime bool) string {
	if onTime {
		return "on time"
	}
	return "late"
}

func formatSubmission(sub domain.SubmissionView, loc *time.Location) string {
	return fmt.Sprintf("Report #%d by %s (user %d)\nTask: %s\nReceived %s, %s\n%s",
		sub.ID, sub.UserName, sub.UserID, sub.TaskTitle,
		sub.ReceivedAt.In(loc).Format(dateLayout), timing(sub.OnTime),
		sub.Payload.Preview(previewLength))
}

func formatPotential(pm domain.PotentialMessage, loc *time.Location) string {
	return fmt.Sprintf("Message #%d from user %d, received %s\n%s",
		pm.ID, pm.UserID, pm.ReceivedAt.In(loc).Format(dateLayout), pm.Payload.Preview(previewLength))
}

func formatTaskHistory(h *service.TaskHistory, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(formatTask(*h.Task, loc))
	fmt.Fprintf(&sb, "\n\nReports: %d (pending %d, approved %d, rejected %d), on time %d, participants %d",
		h.Stats.Total, h.Stats.Pending, h.Stats.Approved, h.Stats.Rejected, h.Stats.OnTime, h.Stats.UniqueUsers)
	for i, sub := range h.Submissions {
		if i == listLimit {
			fmt.Fprintf(&sb, "\n...and %d more", len(h.Submissions)-listLimit)
			break
		}
		fmt.Fprintf(&sb, "\n#%d %s: %s, %s", sub.ID, sub.UserName, sub.Status, timing(sub.OnTime))
	}
	return sb.String()
}

func formatUserHistory(h *service.UserHistory, loc *time.Location) string {
	var sb strings.Builder
	u := h.User
	fmt.Fprintf(&sb, "%s (@%s), id %d\n", u.FullName(), u.Username, u.ID)
	switch {
	case !u.RegistrationCompleted:
		sb.WriteString("Registration not completed")
	case u.Mode == domain.ParticipationFamily && u.FamilySize != nil:
		fmt.Fprintf(&sb, "Family of %d", *u.FamilySize)
		if len(u.ChildAgeBuckets) > 0 {
			buckets := make([]string, 0, len(u.ChildAgeBuckets))
			for _, b := range u.ChildAgeBuckets {
				buckets = append(buckets, string(b))
			}
			fmt.Fprintf(&sb, ", children %s", strings.Join(buckets, ", "))
		}
	default:
		sb.WriteString("Individual")
	}
	fmt.Fprintf(&sb, "\nCompleted on time: %d of %d open tasks", h.Progress.CompletedOnTime, h.Progress.OpenTasks)
	for i, sub := range h.Submissions {
		if i == listLimit {
			fmt.Fprintf(&sb, "\n...and %d more", len(h.Submissions)-listLimit)
			break
		}
		fmt.Fprintf(&sb, "\n#%d %s: %s, %s, %s", sub.ID, sub.TaskTitle, sub.Status, timing(sub.OnTime),
			sub.ReceivedAt.In(loc).Format(dateLayout))
	}
	return sb.String()
}

func formatOverview(o *domain.Overview, p *domain.PotentialSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Participants: %d (registered %d)", o.UsersTotal, o.UsersRegistered)
	writeCounts(&sb, "By mode", o.UsersByMode)
	writeCounts(&sb, "Tasks", o.TasksByStatus)
	writeCounts(&sb, "Reports", o.SubmissionsByStatus)
	fmt.Fprintf(&sb, "\nOn time: %d, late: %d", o.SubmissionsOnTime, o.SubmissionsLate)
	writeCounts(&sb, "Unmatched messages", o.PotentialByStatus)
	if p != nil && p.Total > 0 {
		writeCounts(&sb, "Unmatched by type", p.ByLabel)
	}
	fmt.Fprintf(&sb, "\nOpen support requests: %d", o.SupportOpen)
	return sb.String()
}

func writeCounts[K ~string](sb *strings.Builder, title string, counts map[K]int) {
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	fmt.Fprintf(sb, "\n%s:", title)
	if len(keys) == 0 {
		sb.WriteString(" none")
		return
	}
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(sb, " %s %d", k, counts[k])
	}
}

func formatSupport(requests []domain.SupportRequest, loc *time.Location) string {
	if len(requests) == 0 {
		return "No open support requests."
	}
	var sb strings.Builder
	for i, req := range requests {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "#%d from user %d, %s\n%s", req.ID, req.UserID,
			req.CreatedAt.In(loc).Format(dateLayout), truncate(req.Message, previewLength))
	}
	return sb.String()
}

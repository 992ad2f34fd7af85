package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/deadline"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

const (
	minTitleLength = 5
	maxTitleLength = 100
)

var handlePattern = regexp.MustCompile(`^@[A-Za-z0-9_]{3,}$`)

// TaskService is the task catalog used by administrators.
type TaskService struct {
	base
	deadlines *deadline.Calculator
}

// TaskDependencies bundles collaborators for the task service.
type TaskDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
	Deadlines  *deadline.Calculator
}

// TaskInput describes a new task. Deadline accepts the calculator's formats;
// empty means the automatic week deadline. OpensAt schedules publication;
// empty means at once.
type TaskInput struct {
	Title       string
	Description string
	Link        string
	Week        int
	Deadline    string
	OpensAt     string
}

// TaskPatch describes an edit. Nil fields are kept; an empty Link or OpensAt clears it.
type TaskPatch struct {
	Title       *string
	Description *string
	Link        *string
	Week        *int
	Deadline    *string
	OpensAt     *string
}

// TaskListFilter narrows task listings.
type TaskListFilter struct {
	Status *domain.TaskStatus
	Week   *int
}

// TaskForUser is a task annotated with the participant's latest report.
type TaskForUser struct {
	Task             domain.Task
	SubmissionStatus *domain.SubmissionStatus
	OnTime           *bool
}

// CanSubmit reports whether a new report is accepted for the task.
func (t TaskForUser) CanSubmit() bool {
	return t.SubmissionStatus == nil || *t.SubmissionStatus == domain.SubmissionRejected
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	calc := deps.Deadlines
	if calc == nil {
		calc = deadline.New(time.UTC)
	}
	return &TaskService{
		base:      newBase(deps.Store, deps.Dispatcher, deps.Logger, deps.Clock),
		deadlines: calc,
	}
}

// Deadlines exposes the calculator for rendering.
func (s *TaskService) Deadlines() *deadline.Calculator {
	return s.deadlines
}

// Create validates and stores a new open task.
func (s *TaskService) Create(ctx context.Context, adminID int64, input TaskInput) (*domain.Task, error) {
	title, err := ValidateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	link, err := ValidateLink(input.Link)
	if err != nil {
		return nil, err
	}
	if !deadline.ValidWeek(input.Week) {
		return nil, apperrors.ErrInvalidWeek.WithDetails(map[string]any{"week": input.Week})
	}
	due, err := s.deadlines.Parse(input.Deadline, input.Week)
	if err != nil {
		return nil, err
	}
	opens, err := s.deadlines.ParseOpening(input.OpensAt)
	if err != nil {
		return nil, err
	}
	if err := validateOpening(opens, due, s.now(), true); err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Link:        link,
		Week:        input.Week,
		Deadline:    due,
		OpensAt:     opens,
		Status:      domain.TaskStatusOpen,
	}
	err = s.inTx(ctx, adminID, func(u *unit) error {
		if _, err := u.repos.Tasks.GetByTitle(ctx, title); err == nil {
			return apperrors.ErrDuplicateTitle.WithDetails(map[string]any{"title": title})
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := u.repos.Tasks.Create(ctx, task); err != nil {
			return translateTaskWrite(err, title)
		}
		u.emit(events.EventTaskCreated, taskPayload(task))
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{
		zap.Int64("task_id", task.ID),
		zap.Int("week", task.Week),
		zap.Time("deadline", task.Deadline),
		zap.Int64("admin_id", adminID),
	}
	if task.OpensAt != nil {
		fields = append(fields, zap.Time("opens_at", *task.OpensAt))
	}
	s.logger.Info("task created", fields...)
	return task, nil
}

// Edit applies a patch to an existing task.
func (s *TaskService) Edit(ctx context.Context, adminID, taskID int64, patch TaskPatch) (*domain.Task, error) {
	var task *domain.Task
	err := s.inTx(ctx, adminID, func(u *unit) error {
		current, err := u.repos.Tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, "task", map[string]any{"task_id": taskID})
		}
		if err := s.applyPatch(current, patch, u.at); err != nil {
			return err
		}
		if err := u.repos.Tasks.Update(ctx, current); err != nil {
			return translateTaskWrite(err, current.Title)
		}
		task = current
		u.emit(events.EventTaskUpdated, taskPayload(task))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task edited", zap.Int64("task_id", taskID), zap.Int64("admin_id", adminID))
	return task, nil
}

func (s *TaskService) applyPatch(task *domain.Task, patch TaskPatch, now time.Time) error {
	if patch.Title != nil {
		title, err := ValidateTitle(*patch.Title)
		if err != nil {
			return err
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Link != nil {
		link, err := ValidateLink(*patch.Link)
		if err != nil {
			return err
		}
		task.Link = link
	}
	if patch.Week != nil {
		if !deadline.ValidWeek(*patch.Week) {
			return apperrors.ErrInvalidWeek.WithDetails(map[string]any{"week": *patch.Week})
		}
		task.Week = *patch.Week
	}
	if patch.Deadline != nil {
		due, err := s.deadlines.Parse(*patch.Deadline, task.Week)
		if err != nil {
			return err
		}
		task.Deadline = due
	}
	if patch.OpensAt != nil {
		opens, err := s.deadlines.ParseOpening(*patch.OpensAt)
		if err != nil {
			return err
		}
		if err := validateOpening(opens, task.Deadline, now, true); err != nil {
			return err
		}
		task.OpensAt = opens
	}
	return validateOpening(task.OpensAt, task.Deadline, now, false)
}

// validateOpening requires a scheduled opening to precede the deadline and,
// for newly entered dates, not to lie in the past.
func validateOpening(opens *time.Time, due, now time.Time, fresh bool) error {
	if opens == nil {
		return nil
	}
	if fresh && opens.Before(now) {
		return apperrors.ErrInvalidOpeningDate.WithDetails(map[string]any{"opens_at": *opens, "reason": "in the past"})
	}
	if !opens.Before(due) {
		return apperrors.ErrInvalidOpeningDate.WithDetails(map[string]any{"opens_at": *opens, "reason": "not before the deadline"})
	}
	return nil
}

// SetStatus opens or archives a task. Setting the current status is a no-op.
func (s *TaskService) SetStatus(ctx context.Context, adminID, taskID int64, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status must be open or archived", map[string]any{"status": status})
	}
	var task *domain.Task
	err := s.inTx(ctx, adminID, func(u *unit) error {
		current, err := u.repos.Tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, "task", map[string]any{"task_id": taskID})
		}
		task = current
		if current.Status == status {
			return nil
		}
		current.Status = status
		if err := u.repos.Tasks.Update(ctx, current); err != nil {
			return translateTaskWrite(err, current.Title)
		}
		u.emit(events.EventTaskUpdated, taskPayload(current))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task status set",
		zap.Int64("task_id", taskID),
		zap.String("status", string(status)),
		zap.Int64("admin_id", adminID))
	return task, nil
}

// Delete removes a task that has never received a submission.
func (s *TaskService) Delete(ctx context.Context, adminID, taskID int64) error {
	err := s.inTx(ctx, adminID, func(u *unit) error {
		task, err := u.repos.Tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, "task", map[string]any{"task_id": taskID})
		}
		count, err := u.repos.Submissions.CountByTask(ctx, taskID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperrors.ErrTaskInUse.WithDetails(map[string]any{"task_id": taskID, "submissions": count})
		}
		if err := u.repos.Tasks.Delete(ctx, taskID); err != nil {
			if errors.Is(err, repository.ErrReferenced) {
				return apperrors.ErrTaskInUse.WithDetails(map[string]any{"task_id": taskID})
			}
			return notFound(err, "task", map[string]any{"task_id": taskID})
		}
		u.emit(events.EventTaskDeleted, taskPayload(task))
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("task deleted", zap.Int64("task_id", taskID), zap.Int64("admin_id", adminID))
	return nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, taskID int64) (*domain.Task, error) {
	task, err := s.store.Repos().Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task", map[string]any{"task_id": taskID})
	}
	return task, nil
}

// List returns tasks matching the filter ordered by week and deadline.
func (s *TaskService) List(ctx context.Context, filter TaskListFilter) ([]domain.Task, error) {
	return s.store.Repos().Tasks.List(ctx, repository.TaskFilter{Status: filter.Status, Week: filter.Week})
}

// ListOpenForUser returns published open tasks with the participant's latest
// report status. Tasks scheduled for later stay hidden.
func (s *TaskService) ListOpenForUser(ctx context.Context, userID int64) ([]TaskForUser, error) {
	now := s.now()
	return s.listForUser(ctx, userID, domain.TaskStatusOpen, func(t *domain.Task) bool {
		return t.IsPublished(now)
	})
}

// ListArchivedForUser returns archived tasks with the participant's latest report status.
func (s *TaskService) ListArchivedForUser(ctx context.Context, userID int64) ([]TaskForUser, error) {
	return s.listForUser(ctx, userID, domain.TaskStatusArchived, func(*domain.Task) bool { return true })
}

func (s *TaskService) listForUser(ctx context.Context, userID int64, status domain.TaskStatus, keep func(*domain.Task) bool) ([]TaskForUser, error) {
	repos := s.store.Repos()
	tasks, err := repos.Tasks.List(ctx, repository.TaskFilter{Status: &status})
	if err != nil {
		return nil, err
	}
	subs, err := listAllSubmissions(ctx, repos.Submissions, repository.SubmissionFilter{UserID: &userID})
	if err != nil {
		return nil, err
	}

	// subs are newest first, so the first hit per task is the latest report.
	latest := make(map[int64]domain.Submission, len(subs))
	for _, sub := range subs {
		if _, seen := latest[sub.TaskID]; !seen {
			latest[sub.TaskID] = sub.Submission
		}
	}

	result := make([]TaskForUser, 0, len(tasks))
	for i := range tasks {
		if !keep(&tasks[i]) {
			continue
		}
		item := TaskForUser{Task: tasks[i]}
		if sub, ok := latest[tasks[i].ID]; ok {
			status := sub.Status
			onTime := sub.OnTime
			item.SubmissionStatus = &status
			item.OnTime = &onTime
		}
		result = append(result, item)
	}
	return result, nil
}

// ValidateTitle trims and checks a task title.
func ValidateTitle(raw string) (string, error) {
	title := strings.Join(strings.Fields(raw), " ")
	length := utf8.RuneCountInString(title)
	if length < minTitleLength || length > maxTitleLength {
		return "", apperrors.ErrInvalidTitle.WithDetails(map[string]any{"length": length})
	}
	return title, nil
}

// ValidateLink accepts http(s) URLs, t.me links and @handles. Empty means no link.
func ValidateLink(raw string) (*string, error) {
	link := strings.TrimSpace(raw)
	switch {
	case link == "" || link == "-":
		return nil, nil
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"), strings.HasPrefix(link, "t.me/"):
		if strings.ContainsAny(link, " \t\n") {
			return nil, apperrors.ErrInvalidLink
		}
		return &link, nil
	case handlePattern.MatchString(link):
		return &link, nil
	default:
		return nil, apperrors.ErrInvalidLink.WithDetails(map[string]any{"link": link})
	}
}

func translateTaskWrite(err error, title string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.ErrDuplicateTitle.WithDetails(map[string]any{"title": title})
	}
	return notFound(err, "task", nil)
}

func taskPayload(task *domain.Task) events.TaskPayload {
	return events.TaskPayload{TaskID: task.ID, Title: task.Title, Week: task.Week, Status: task.Status}
}

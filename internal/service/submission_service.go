package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

// SubmissionService accepts participant reports and evaluates deadlines.
type SubmissionService struct {
	base
	admins   AdminDirectory
	location *time.Location
}

// SubmissionDependencies bundles collaborators for the submission service.
type SubmissionDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
	Admins     AdminDirectory
	// Location renders deadlines in participant messages.
	Location *time.Location
}

// SubmitResult is the outcome of an accepted report.
type SubmitResult struct {
	Submission *domain.Submission
	Task       *domain.Task
}

// NewSubmissionService constructs the service.
func NewSubmissionService(deps SubmissionDependencies) *SubmissionService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SubmissionService{
		base:     newBase(deps.Store, deps.Dispatcher, deps.Logger, deps.Clock),
		admins:   deps.Admins,
		location: loc,
	}
}

// submitRequest is shared by direct submission and potential message binding.
type submitRequest struct {
	userID     int64
	taskID     int64
	payload    domain.Payload
	receivedAt time.Time
	// approvedBy auto-approves the submission on behalf of an administrator.
	approvedBy      *int64
	sourceMessageID *int64
}

// BeginReport checks eligibility and puts the user into the awaiting-report dialog.
func (s *SubmissionService) BeginReport(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	var task *domain.Task
	err := s.inTx(ctx, userID, func(u *unit) error {
		var err error
		task, err = checkEligible(ctx, u.repos, userID, taskID, u.at)
		if err != nil {
			return err
		}
		state := domain.NewDialogState(userID, domain.FlowSubmission, domain.StepAwaitReport)
		state.TaskID = &task.ID
		return u.repos.Dialogs.Save(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("awaiting report", zap.Int64("user_id", userID), zap.Int64("task_id", taskID))
	return task, nil
}

// Submit records a report for the task received now.
func (s *SubmissionService) Submit(ctx context.Context, userID, taskID int64, payload domain.Payload) (*SubmitResult, error) {
	return s.submitAt(ctx, userID, taskID, payload, s.now())
}

func (s *SubmissionService) submitAt(ctx context.Context, userID, taskID int64, payload domain.Payload, receivedAt time.Time) (*SubmitResult, error) {
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	return s.submit(ctx, userID, submitRequest{userID: userID, taskID: taskID, payload: payload, receivedAt: receivedAt})
}

// SubmitFromDialog records a report for the task the user is currently
// reporting on. receivedAt is the platform timestamp of the message; zero
// means now. When the task can no longer take this report the dialog is
// dropped, so later messages are routed as ordinary content.
func (s *SubmissionService) SubmitFromDialog(ctx context.Context, userID int64, payload domain.Payload, receivedAt time.Time) (*SubmitResult, error) {
	state, err := loadDialog(ctx, s.store.Repos(), userID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.Flow != domain.FlowSubmission || state.TaskID == nil {
		return nil, apperrors.ErrNoActiveDialog
	}
	taskID := *state.TaskID
	result, err := s.submitAt(ctx, userID, taskID, payload, receivedAt)
	if err != nil && endsReport(err) {
		if clearErr := s.clearReportDialog(ctx, userID, taskID); clearErr != nil {
			s.logger.Warn("report dialog not cleared", zap.Int64("user_id", userID), zap.Error(clearErr))
		}
	}
	return result, err
}

// endsReport reports whether a refused report can never succeed for the
// dialog's task.
func endsReport(err error) bool {
	return errors.Is(err, apperrors.ErrTaskNotOpen) ||
		errors.Is(err, apperrors.ErrTaskNotPublished) ||
		errors.Is(err, apperrors.ErrDuplicateSubmission) ||
		errors.Is(err, apperrors.ErrUserNotRegistered) ||
		apperrors.IsNotFound(err)
}

// clearReportDialog removes the awaiting-report dialog if it still points at taskID.
func (s *SubmissionService) clearReportDialog(ctx context.Context, userID, taskID int64) error {
	return s.store.InTx(ctx, func(repos repository.Repositories) error {
		state, err := loadDialog(ctx, repos, userID)
		if err != nil || state == nil {
			return err
		}
		if state.Flow != domain.FlowSubmission || state.TaskID == nil || *state.TaskID != taskID {
			return nil
		}
		return repos.Dialogs.Delete(ctx, userID)
	})
}

func (s *SubmissionService) submit(ctx context.Context, actorID int64, req submitRequest) (*SubmitResult, error) {
	var result *SubmitResult
	err := s.inTx(ctx, actorID, func(u *unit) error {
		var err error
		result, err = s.submitInTx(ctx, u, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("submission created",
		zap.Int64("submission_id", result.Submission.ID),
		zap.Int64("user_id", req.userID),
		zap.Int64("task_id", req.taskID),
		zap.Bool("on_time", result.Submission.OnTime))
	return result, nil
}

// submitInTx creates the submission inside an open unit of work.
func (s *SubmissionService) submitInTx(ctx context.Context, u *unit, req submitRequest) (*SubmitResult, error) {
	if err := req.payload.Validate(); err != nil {
		return nil, apperrors.ErrInvalidPayload.WithDetails(map[string]any{"reason": err.Error()})
	}
	user, err := requireRegistered(ctx, u.repos, req.userID)
	if err != nil {
		return nil, err
	}
	task, err := u.repos.Tasks.GetForShare(ctx, req.taskID)
	if err != nil {
		return nil, notFound(err, "task", map[string]any{"task_id": req.taskID})
	}
	if err := checkAccepting(task, u.at); err != nil {
		return nil, err
	}
	if _, err := u.repos.Submissions.FindActive(ctx, req.userID, req.taskID); err == nil {
		return nil, apperrors.ErrDuplicateSubmission.WithDetails(map[string]any{"task_id": task.ID})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	sub := &domain.Submission{
		UserID:          req.userID,
		TaskID:          req.taskID,
		Payload:         req.payload,
		ReceivedAt:      req.receivedAt,
		OnTime:          task.IsOnTime(req.receivedAt),
		Status:          domain.SubmissionPending,
		SourceMessageID: req.sourceMessageID,
	}
	if req.approvedBy != nil {
		decidedBy := *req.approvedBy
		decidedAt := u.at
		sub.Status = domain.SubmissionApproved
		sub.DecidedBy = &decidedBy
		sub.DecidedAt = &decidedAt
	}
	if err := u.repos.Submissions.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ErrDuplicateSubmission.WithDetails(map[string]any{"task_id": task.ID})
		}
		return nil, err
	}

	state, err := loadDialog(ctx, u.repos, req.userID)
	if err != nil {
		return nil, err
	}
	if state != nil && state.Flow == domain.FlowSubmission && state.TaskID != nil && *state.TaskID == task.ID {
		if err := u.repos.Dialogs.Delete(ctx, req.userID); err != nil {
			return nil, err
		}
	}

	u.emit(events.EventSubmissionCreated, events.SubmissionCreatedPayload{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		TaskID:       sub.TaskID,
		OnTime:       sub.OnTime,
		Kind:         sub.Payload.Kind,
	})
	if sub.Status == domain.SubmissionPending {
		if err := u.notify(ctx, domain.ChannelParticipant, user.ID, domain.NotifySubmissionReceived,
			submissionReceivedText(task, sub.OnTime, s.location)); err != nil {
			return nil, err
		}
		if err := u.notifyAdmins(ctx, s.admins, domain.NotifyAdminNewSubmission, adminNewSubmissionText(sub, user, task)); err != nil {
			return nil, err
		}
	}
	return &SubmitResult{Submission: sub, Task: task}, nil
}

// ListForUser returns the participant's whole report history, newest first.
func (s *SubmissionService) ListForUser(ctx context.Context, userID int64) ([]domain.SubmissionView, error) {
	return listAllSubmissions(ctx, s.store.Repos().Submissions, repository.SubmissionFilter{UserID: &userID})
}

// Progress counts on-time completed tasks against currently open tasks.
func (s *SubmissionService) Progress(ctx context.Context, userID int64) (*domain.Progress, error) {
	return s.store.Repos().Stats.Progress(ctx, userID, s.now())
}

// checkAccepting refuses archived tasks and tasks scheduled after now.
func checkAccepting(task *domain.Task, now time.Time) error {
	if task.Status != domain.TaskStatusOpen {
		return apperrors.ErrTaskNotOpen.WithDetails(map[string]any{"task_id": task.ID})
	}
	if !task.IsPublished(now) {
		return apperrors.ErrTaskNotPublished.WithDetails(map[string]any{"task_id": task.ID, "opens_at": *task.OpensAt})
	}
	return nil
}

func checkEligible(ctx context.Context, repos repository.Repositories, userID, taskID int64, now time.Time) (*domain.Task, error) {
	if _, err := requireRegistered(ctx, repos, userID); err != nil {
		return nil, err
	}
	task, err := repos.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task", map[string]any{"task_id": taskID})
	}
	if err := checkAccepting(task, now); err != nil {
		return nil, err
	}
	if _, err := repos.Submissions.FindActive(ctx, userID, taskID); err == nil {
		return nil, apperrors.ErrDuplicateSubmission.WithDetails(map[string]any{"task_id": taskID})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return task, nil
}

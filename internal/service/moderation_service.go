package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

// allowedOutcomes lists the terminal states a pending submission may move to.
var allowedOutcomes = map[domain.SubmissionStatus][]domain.SubmissionStatus{
	domain.SubmissionPending:  {domain.SubmissionApproved, domain.SubmissionRejected},
	domain.SubmissionApproved: {},
	domain.SubmissionRejected: {},
}

func isValidTransition(current, next domain.SubmissionStatus) bool {
	for _, candidate := range allowedOutcomes[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ModerationService decides submissions and reconciles potential messages.
type ModerationService struct {
	base
	submissions *SubmissionService
	location    *time.Location
}

// ModerationDependencies bundles collaborators for the moderation workflow.
type ModerationDependencies struct {
	Store       repository.Store
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       Clock
	Submissions *SubmissionService
	// Location is the challenge timezone used to read week numbers.
	Location *time.Location
}

// NewModerationService constructs the service.
func NewModerationService(deps ModerationDependencies) *ModerationService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ModerationService{
		base:        newBase(deps.Store, deps.Dispatcher, deps.Logger, deps.Clock),
		submissions: deps.Submissions,
		location:    loc,
	}
}

// Decide approves or rejects a pending submission.
func (s *ModerationService) Decide(ctx context.Context, adminID, submissionID int64, outcome domain.SubmissionStatus, note string) (*domain.Submission, error) {
	if outcome != domain.SubmissionApproved && outcome != domain.SubmissionRejected {
		return nil, apperrors.ErrInvalidOutcome.WithDetails(map[string]any{"outcome": outcome})
	}
	var decided *domain.Submission
	err := s.inTx(ctx, adminID, func(u *unit) error {
		sub, err := u.repos.Submissions.Get(ctx, submissionID)
		if err != nil {
			return notFound(err, "submission", map[string]any{"submission_id": submissionID})
		}
		if !isValidTransition(sub.Status, outcome) {
			return apperrors.ErrAlreadyDecided.WithDetails(map[string]any{"submission_id": submissionID, "status": sub.Status})
		}

		decision := repository.Decision{Status: outcome, DecidedBy: adminID, DecidedAt: u.at}
		if trimmed := strings.TrimSpace(note); trimmed != "" {
			decision.Note = &trimmed
		}
		if err := u.repos.Submissions.Decide(ctx, submissionID, decision); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return apperrors.ErrAlreadyDecided.WithDetails(map[string]any{"submission_id": submissionID})
			}
			return err
		}
		sub.Status = decision.Status
		sub.RejectionNote = decision.Note
		sub.DecidedBy = &decision.DecidedBy
		sub.DecidedAt = &decision.DecidedAt
		decided = sub

		task, err := u.repos.Tasks.Get(ctx, sub.TaskID)
		if err != nil {
			return err
		}
		payload := events.SubmissionDecidedPayload{
			SubmissionID: sub.ID,
			UserID:       sub.UserID,
			TaskID:       sub.TaskID,
			Status:       sub.Status,
		}
		if sub.RejectionNote != nil {
			payload.Note = *sub.RejectionNote
		}
		u.emit(events.EventSubmissionDecided, payload)
		return u.notify(ctx, domain.ChannelParticipant, sub.UserID, domain.NotifySubmissionDecided,
			submissionDecidedText(task.Title, sub.Status, sub.RejectionNote))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("submission decided",
		zap.Int64("submission_id", submissionID),
		zap.String("status", string(outcome)),
		zap.Int64("admin_id", adminID))
	return decided, nil
}

// Bind turns an unhandled potential message into an approved submission for
// the chosen task, keeping the original received timestamp.
func (s *ModerationService) Bind(ctx context.Context, adminID, messageID, taskID int64) (*SubmitResult, error) {
	var result *SubmitResult
	err := s.inTx(ctx, adminID, func(u *unit) error {
		pm, err := u.repos.Potential.Get(ctx, messageID)
		if err != nil {
			return notFound(err, "potential message", map[string]any{"message_id": messageID})
		}
		if pm.Status != domain.PotentialUnhandled {
			return apperrors.ErrAlreadyProcessed.WithDetails(map[string]any{"message_id": messageID, "status": pm.Status})
		}

		approvedBy := adminID
		result, err = s.submissions.submitInTx(ctx, u, submitRequest{
			userID:          pm.UserID,
			taskID:          taskID,
			payload:         pm.Payload,
			receivedAt:      pm.ReceivedAt,
			approvedBy:      &approvedBy,
			sourceMessageID: &pm.ID,
		})
		if err != nil {
			return err
		}

		resolution := repository.Resolution{
			Status:       domain.PotentialBound,
			SubmissionID: &result.Submission.ID,
			ProcessedBy:  adminID,
			ProcessedAt:  u.at,
		}
		if err := u.repos.Potential.Resolve(ctx, messageID, resolution); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return apperrors.ErrAlreadyProcessed.WithDetails(map[string]any{"message_id": messageID})
			}
			return err
		}
		u.emit(events.EventPotentialBound, events.PotentialPayload{
			MessageID:    messageID,
			UserID:       pm.UserID,
			Status:       domain.PotentialBound,
			SubmissionID: &result.Submission.ID,
		})
		return u.notify(ctx, domain.ChannelParticipant, pm.UserID, domain.NotifyPotentialBound,
			potentialBoundText(result.Task.Title, result.Submission.OnTime))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("potential message bound",
		zap.Int64("message_id", messageID),
		zap.Int64("task_id", taskID),
		zap.Int64("submission_id", result.Submission.ID),
		zap.Int64("admin_id", adminID))
	return result, nil
}

// Dismiss marks an unhandled potential message as not a report.
func (s *ModerationService) Dismiss(ctx context.Context, adminID, messageID int64) error {
	err := s.inTx(ctx, adminID, func(u *unit) error {
		pm, err := u.repos.Potential.Get(ctx, messageID)
		if err != nil {
			return notFound(err, "potential message", map[string]any{"message_id": messageID})
		}
		if pm.Status != domain.PotentialUnhandled {
			return apperrors.ErrAlreadyProcessed.WithDetails(map[string]any{"message_id": messageID, "status": pm.Status})
		}
		resolution := repository.Resolution{Status: domain.PotentialDismissed, ProcessedBy: adminID, ProcessedAt: u.at}
		if err := u.repos.Potential.Resolve(ctx, messageID, resolution); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return apperrors.ErrAlreadyProcessed.WithDetails(map[string]any{"message_id": messageID})
			}
			return err
		}
		u.emit(events.EventPotentialDismissed, events.PotentialPayload{MessageID: messageID, UserID: pm.UserID, Status: domain.PotentialDismissed})
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("potential message dismissed", zap.Int64("message_id", messageID), zap.Int64("admin_id", adminID))
	return nil
}

// ListPending returns submissions awaiting a decision, newest first.
func (s *ModerationService) ListPending(ctx context.Context, limit int) ([]domain.SubmissionView, error) {
	return s.store.Repos().Submissions.List(ctx, repository.SubmissionFilter{
		Statuses: []domain.SubmissionStatus{domain.SubmissionPending},
		Limit:    limit,
	})
}

// SuggestTasks ranks open tasks as binding candidates for a potential message.
// It is a hint only; the administrator always picks the task explicitly.
func (s *ModerationService) SuggestTasks(ctx context.Context, messageID int64, limit int) ([]domain.Task, error) {
	repos := s.store.Repos()
	pm, err := repos.Potential.Get(ctx, messageID)
	if err != nil {
		return nil, notFound(err, "potential message", map[string]any{"message_id": messageID})
	}
	open := domain.TaskStatusOpen
	tasks, err := repos.Tasks.List(ctx, repository.TaskFilter{Status: &open})
	if err != nil {
		return nil, err
	}
	now := s.now()
	published := tasks[:0]
	for _, task := range tasks {
		if task.IsPublished(now) {
			published = append(published, task)
		}
	}
	return rankTasks(pm, published, limit, s.location), nil
}

func rankTasks(pm *domain.PotentialMessage, tasks []domain.Task, limit int, loc *time.Location) []domain.Task {
	_, week := pm.ReceivedAt.In(loc).ISOWeek()
	words := wordSet(pm.Payload.Preview(0))

	type scored struct {
		task  domain.Task
		week  bool
		words int
	}
	candidates := make([]scored, 0, len(tasks))
	for _, task := range tasks {
		overlap := 0
		for w := range wordSet(task.Title) {
			if _, ok := words[w]; ok {
				overlap++
			}
		}
		candidates = append(candidates, scored{task: task, week: task.Week == week, words: overlap})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.week != b.week {
			return a.week
		}
		if a.words != b.words {
			return a.words > b.words
		}
		return a.task.Deadline.Before(b.task.Deadline)
	})

	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]domain.Task, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.task)
	}
	return out
}

func wordSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

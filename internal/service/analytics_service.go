package service

import (
	"context"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/repository"
)

// AnalyticsService serves read-only rollups for administrators.
type AnalyticsService struct {
	store repository.Store
	clock Clock
}

// UserHistory is a participant with every report they sent.
type UserHistory struct {
	User        *domain.User            `json:"user"`
	Progress    *domain.Progress        `json:"progress"`
	Submissions []domain.SubmissionView `json:"submissions"`
}

// TaskHistory is a task with its submission counters and reports.
type TaskHistory struct {
	Task        *domain.Task            `json:"task"`
	Stats       *domain.TaskStats       `json:"stats"`
	Submissions []domain.SubmissionView `json:"submissions"`
}

// NewAnalyticsService constructs the service. A nil clock means time.Now.
func NewAnalyticsService(store repository.Store, clock Clock) *AnalyticsService {
	if clock == nil {
		clock = time.Now
	}
	return &AnalyticsService{store: store, clock: clock}
}

// Overview returns dashboard counters.
func (s *AnalyticsService) Overview(ctx context.Context) (*domain.Overview, error) {
	return s.store.Repos().Stats.Overview(ctx)
}

// UserHistory returns a participant's profile, progress and reports.
func (s *AnalyticsService) UserHistory(ctx context.Context, userID int64) (*UserHistory, error) {
	repos := s.store.Repos()
	user, err := repos.Users.Get(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", map[string]any{"user_id": userID})
	}
	progress, err := repos.Stats.Progress(ctx, userID, s.clock())
	if err != nil {
		return nil, err
	}
	subs, err := listAllSubmissions(ctx, repos.Submissions, repository.SubmissionFilter{UserID: &userID})
	if err != nil {
		return nil, err
	}
	return &UserHistory{User: user, Progress: progress, Submissions: subs}, nil
}

// TaskHistory returns a task, its counters and its reports.
func (s *AnalyticsService) TaskHistory(ctx context.Context, taskID int64) (*TaskHistory, error) {
	repos := s.store.Repos()
	task, err := repos.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task", map[string]any{"task_id": taskID})
	}
	stats, err := repos.Stats.TaskStats(ctx, taskID)
	if err != nil {
		return nil, err
	}
	subs, err := listAllSubmissions(ctx, repos.Submissions, repository.SubmissionFilter{TaskID: &taskID})
	if err != nil {
		return nil, err
	}
	return &TaskHistory{Task: task, Stats: stats, Submissions: subs}, nil
}

// PotentialSummary counts unhandled potential messages by content type.
func (s *AnalyticsService) PotentialSummary(ctx context.Context) (*domain.PotentialSummary, error) {
	return s.store.Repos().Stats.PotentialSummary(ctx)
}

// Submissions lists submissions filtered by status, newest first.
func (s *AnalyticsService) Submissions(ctx context.Context, statuses []domain.SubmissionStatus, limit, offset int) ([]domain.SubmissionView, error) {
	return s.store.Repos().Submissions.List(ctx, repository.SubmissionFilter{Statuses: statuses, Limit: limit, Offset: offset})
}

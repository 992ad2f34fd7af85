package repository

import (
	"context"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// StatsRepository serves read-only rollups for the dashboard.
type StatsRepository interface {
	Overview(ctx context.Context) (*domain.Overview, error)
	TaskStats(ctx context.Context, taskID int64) (*domain.TaskStats, error)
	// Progress counts tasks published by now.
	Progress(ctx context.Context, userID int64, now time.Time) (*domain.Progress, error)
	PotentialSummary(ctx context.Context) (*domain.PotentialSummary, error)
}

type statsRepository struct {
	db DBTX
}

// NewStatsRepository instantiates repository.
func NewStatsRepository(db DBTX) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Overview(ctx context.Context) (*domain.Overview, error) {
	overview := &domain.Overview{
		UsersByMode:         map[domain.ParticipationMode]int{},
		TasksByStatus:       map[domain.TaskStatus]int{},
		SubmissionsByStatus: map[domain.SubmissionStatus]int{},
		PotentialByStatus:   map[domain.PotentialStatus]int{},
	}

	if err := r.db.QueryRow(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE registration_completed) FROM users`,
	).Scan(&overview.UsersTotal, &overview.UsersRegistered); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, `SELECT mode, COUNT(*) FROM users WHERE registration_completed GROUP BY mode`, func(key string, n int) {
		overview.UsersByMode[domain.ParticipationMode(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`, func(key string, n int) {
		overview.TasksByStatus[domain.TaskStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`, func(key string, n int) {
		overview.SubmissionsByStatus[domain.SubmissionStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FILTER (WHERE on_time), COUNT(*) FILTER (WHERE NOT on_time) FROM submissions`,
	).Scan(&overview.SubmissionsOnTime, &overview.SubmissionsLate); err != nil {
		return nil, err
	}
	if err := r.countInto(ctx, `SELECT status, COUNT(*) FROM potential_messages GROUP BY status`, func(key string, n int) {
		overview.PotentialByStatus[domain.PotentialStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM support_requests WHERE status='open'`).Scan(&overview.SupportOpen); err != nil {
		return nil, err
	}
	return overview, nil
}

func (r *statsRepository) TaskStats(ctx context.Context, taskID int64) (*domain.TaskStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='pending'),
               COUNT(*) FILTER (WHERE status='approved'),
               COUNT(*) FILTER (WHERE status='rejected'),
               COUNT(*) FILTER (WHERE on_time),
               COUNT(DISTINCT user_id)
        FROM submissions WHERE task_id=$1`
	var stats domain.TaskStats
	if err := r.db.QueryRow(ctx, query, taskID).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Approved,
		&stats.Rejected,
		&stats.OnTime,
		&stats.UniqueUsers,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *statsRepository) Progress(ctx context.Context, userID int64, now time.Time) (*domain.Progress, error) {
	const query = `
        SELECT
            (SELECT COUNT(DISTINCT task_id) FROM submissions
             WHERE user_id=$1 AND on_time AND status <> 'rejected'),
            (SELECT COUNT(*) FROM tasks WHERE status='open' AND (opens_at IS NULL OR opens_at <= $2))`
	var progress domain.Progress
	if err := r.db.QueryRow(ctx, query, userID, now).Scan(&progress.CompletedOnTime, &progress.OpenTasks); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *statsRepository) PotentialSummary(ctx context.Context) (*domain.PotentialSummary, error) {
	summary := &domain.PotentialSummary{ByLabel: map[string]int{}}
	err := r.countInto(ctx, `
        SELECT COALESCE(payload->'media'->>'type', payload->>'kind'), COUNT(*)
        FROM potential_messages WHERE status='unhandled' GROUP BY 1`, func(key string, n int) {
		summary.ByLabel[key] = n
		summary.Total += n
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *statsRepository) countInto(ctx context.Context, query string, put func(key string, n int)) error {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		put(key, n)
	}
	return rows.Err()
}

package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// NotificationRepository is the transactional outbox for chat notifications.
type NotificationRepository interface {
	Enqueue(ctx context.Context, notification *domain.Notification) error
	// Claim leases due rows of a channel until now+lease. Rows left in the
	// sending state by a crashed worker become due again once the lease expires.
	Claim(ctx context.Context, channel domain.Channel, now time.Time, lease time.Duration, limit int) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	Reschedule(ctx context.Context, id string, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id string, lastErr string) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, channel, recipient_id, kind, text, status, attempts, last_error,
               next_attempt_at, created_at, sent_at`

func (r *notificationRepository) Enqueue(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (id, channel, recipient_id, kind, text, status, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	if n.Status == "" {
		n.Status = domain.NotificationQueued
	}
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = time.Now()
	}
	err := r.db.QueryRow(ctx, query,
		n.ID,
		n.Channel,
		n.RecipientID,
		n.Kind,
		n.Text,
		n.Status,
		n.NextAttemptAt,
	).Scan(&n.CreatedAt)
	return mapError(err)
}

func (r *notificationRepository) Claim(ctx context.Context, channel domain.Channel, now time.Time, lease time.Duration, limit int) ([]domain.Notification, error) {
	const query = `
        UPDATE notifications SET status='sending', attempts=attempts+1, next_attempt_at=$3
        WHERE id IN (
            SELECT id FROM notifications
            WHERE channel=$1 AND status IN ('queued','sending') AND next_attempt_at <= $2
            ORDER BY next_attempt_at, created_at
            LIMIT $4
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + notificationColumns
	rows, err := r.db.Query(ctx, query, channel, now, now.Add(lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET status='sent', sent_at=$1, last_error=NULL WHERE id=$2`, at, id)
	return expectOne(tag, err, ErrNotFound)
}

func (r *notificationRepository) Reschedule(ctx context.Context, id string, next time.Time, lastErr string) error {
	const query = `UPDATE notifications SET status='queued', next_attempt_at=$1, last_error=$2 WHERE id=$3`
	tag, err := r.db.Exec(ctx, query, next, lastErr, id)
	return expectOne(tag, err, ErrNotFound)
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id string, lastErr string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET status='failed', last_error=$1 WHERE id=$2`, lastErr, id)
	return expectOne(tag, err, ErrNotFound)
}

func (r *notificationRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notifications WHERE status IN ('sent','failed') AND created_at < $1`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.Channel,
			&n.RecipientID,
			&n.Kind,
			&n.Text,
			&n.Status,
			&n.Attempts,
			&n.LastError,
			&n.NextAttemptAt,
			&n.CreatedAt,
			&n.SentAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

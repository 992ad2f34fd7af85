package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// SubmissionFilter captures moderation listing parameters.
type SubmissionFilter struct {
	UserID   *int64
	TaskID   *int64
	Statuses []domain.SubmissionStatus
	Limit    int
	Offset   int
}

// Decision carries a moderation outcome to persist.
type Decision struct {
	Status    domain.SubmissionStatus
	Note      *string
	DecidedBy int64
	DecidedAt time.Time
}

// SubmissionRepository encapsulates submission persistence.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *domain.Submission) error
	Get(ctx context.Context, id int64) (*domain.Submission, error)
	// FindActive returns the pending or approved submission for the pair.
	FindActive(ctx context.Context, userID, taskID int64) (*domain.Submission, error)
	// Decide moves a pending submission to a terminal state; ErrStaleState otherwise.
	Decide(ctx context.Context, id int64, decision Decision) error
	CountByTask(ctx context.Context, taskID int64) (int, error)
	List(ctx context.Context, filter SubmissionFilter) ([]domain.SubmissionView, error)
}

type submissionRepository struct {
	db DBTX
}

// NewSubmissionRepository instantiates repository.
func NewSubmissionRepository(db DBTX) SubmissionRepository {
	return &submissionRepository{db: db}
}

const submissionColumns = `s.id, s.user_id, s.task_id, s.payload, s.received_at, s.on_time, s.status,
               s.rejection_note, s.decided_at, s.decided_by, s.source_message_id, s.created_at`

func (r *submissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	const query = `
        INSERT INTO submissions (user_id, task_id, payload, received_at, on_time, status,
            rejection_note, decided_at, decided_by, source_message_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		submission.UserID,
		submission.TaskID,
		submission.Payload,
		submission.ReceivedAt,
		submission.OnTime,
		submission.Status,
		submission.RejectionNote,
		submission.DecidedAt,
		submission.DecidedBy,
		submission.SourceMessageID,
	).Scan(&submission.ID, &submission.CreatedAt)
	return mapError(err)
}

func (r *submissionRepository) Get(ctx context.Context, id int64) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id=$1`
	return scanSubmission(r.db.QueryRow(ctx, query, id))
}

func (r *submissionRepository) FindActive(ctx context.Context, userID, taskID int64) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + `
        FROM submissions s WHERE s.user_id=$1 AND s.task_id=$2 AND s.status <> 'rejected'`
	return scanSubmission(r.db.QueryRow(ctx, query, userID, taskID))
}

func (r *submissionRepository) Decide(ctx context.Context, id int64, decision Decision) error {
	const query = `
        UPDATE submissions SET status=$1, rejection_note=$2, decided_by=$3, decided_at=$4
        WHERE id=$5 AND status='pending'`
	tag, err := r.db.Exec(ctx, query,
		decision.Status,
		decision.Note,
		decision.DecidedBy,
		decision.DecidedAt,
		id,
	)
	return expectOne(tag, err, ErrStaleState)
}

func (r *submissionRepository) CountByTask(ctx context.Context, taskID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE task_id=$1`, taskID).Scan(&count)
	return count, err
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]domain.SubmissionView, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("s.user_id=$%d", len(args)))
	}
	if filter.TaskID != nil {
		args = append(args, *filter.TaskID)
		clauses = append(clauses, fmt.Sprintf("s.task_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("s.status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
        SELECT %s, t.title, TRIM(u.given_name || ' ' || u.surname)
        FROM submissions s
        JOIN tasks t ON t.id = s.task_id
        JOIN users u ON u.id = s.user_id
        WHERE %s
        ORDER BY s.received_at DESC, s.id DESC
        LIMIT %d OFFSET %d`,
		submissionColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissionViews(rows)
}

func submissionDest(s *domain.Submission) []any {
	return []any{
		&s.ID,
		&s.UserID,
		&s.TaskID,
		&s.Payload,
		&s.ReceivedAt,
		&s.OnTime,
		&s.Status,
		&s.RejectionNote,
		&s.DecidedAt,
		&s.DecidedBy,
		&s.SourceMessageID,
		&s.CreatedAt,
	}
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var submission domain.Submission
	if err := row.Scan(submissionDest(&submission)...); err != nil {
		return nil, err
	}
	return &submission, nil
}

func scanSubmissionViews(rows pgx.Rows) ([]domain.SubmissionView, error) {
	var result []domain.SubmissionView
	for rows.Next() {
		var view domain.SubmissionView
		dest := append(submissionDest(&view.Submission), &view.TaskTitle, &view.UserName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, rows.Err()
}

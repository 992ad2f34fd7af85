package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// Resolution carries the outcome of processing a potential message.
type Resolution struct {
	Status       domain.PotentialStatus
	SubmissionID *int64
	ProcessedBy  int64
	ProcessedAt  time.Time
}

// PotentialMessageRepository stores content captured outside any dialog.
type PotentialMessageRepository interface {
	Create(ctx context.Context, message *domain.PotentialMessage) error
	Get(ctx context.Context, id int64) (*domain.PotentialMessage, error)
	ListByStatus(ctx context.Context, status domain.PotentialStatus, limit int) ([]domain.PotentialMessage, error)
	// Resolve leaves the unhandled state; ErrStaleState when already processed.
	Resolve(ctx context.Context, id int64, resolution Resolution) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type potentialMessageRepository struct {
	db DBTX
}

// NewPotentialMessageRepository instantiates repository.
func NewPotentialMessageRepository(db DBTX) PotentialMessageRepository {
	return &potentialMessageRepository{db: db}
}

const potentialColumns = `id, user_id, payload, received_at, status, submission_id, processed_by, processed_at`

func (r *potentialMessageRepository) Create(ctx context.Context, message *domain.PotentialMessage) error {
	const query = `
        INSERT INTO potential_messages (user_id, payload, received_at, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		message.UserID,
		message.Payload,
		message.ReceivedAt,
		message.Status,
	).Scan(&message.ID)
	return mapError(err)
}

func (r *potentialMessageRepository) Get(ctx context.Context, id int64) (*domain.PotentialMessage, error) {
	query := `SELECT ` + potentialColumns + ` FROM potential_messages WHERE id=$1`
	return scanPotential(r.db.QueryRow(ctx, query, id))
}

func (r *potentialMessageRepository) ListByStatus(ctx context.Context, status domain.PotentialStatus, limit int) ([]domain.PotentialMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + potentialColumns + `
        FROM potential_messages WHERE status=$1 ORDER BY received_at, id LIMIT $2`
	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPotentials(rows)
}

func (r *potentialMessageRepository) Resolve(ctx context.Context, id int64, resolution Resolution) error {
	const query = `
        UPDATE potential_messages SET status=$1, submission_id=$2, processed_by=$3, processed_at=$4
        WHERE id=$5 AND status='unhandled'`
	tag, err := r.db.Exec(ctx, query,
		resolution.Status,
		resolution.SubmissionID,
		resolution.ProcessedBy,
		resolution.ProcessedAt,
		id,
	)
	return expectOne(tag, err, ErrStaleState)
}

func (r *potentialMessageRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
        DELETE FROM potential_messages
        WHERE status IN ('bound','dismissed') AND processed_at < $1`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func scanPotential(row rowScanner) (*domain.PotentialMessage, error) {
	var message domain.PotentialMessage
	if err := row.Scan(
		&message.ID,
		&message.UserID,
		&message.Payload,
		&message.ReceivedAt,
		&message.Status,
		&message.SubmissionID,
		&message.ProcessedBy,
		&message.ProcessedAt,
	); err != nil {
		return nil, err
	}
	return &message, nil
}

func scanPotentials(rows pgx.Rows) ([]domain.PotentialMessage, error) {
	var result []domain.PotentialMessage
	for rows.Next() {
		message, err := scanPotential(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *message)
	}
	return result, rows.Err()
}

package repository

import (
	"context"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// SupportRequestRepository stores participant questions.
type SupportRequestRepository interface {
	Create(ctx context.Context, request *domain.SupportRequest) error
	Get(ctx context.Context, id int64) (*domain.SupportRequest, error)
	ListOpen(ctx context.Context) ([]domain.SupportRequest, error)
	Close(ctx context.Context, id, adminID int64, at time.Time) error
}

type supportRequestRepository struct {
	db DBTX
}

// NewSupportRequestRepository instantiates repository.
func NewSupportRequestRepository(db DBTX) SupportRequestRepository {
	return &supportRequestRepository{db: db}
}

func (r *supportRequestRepository) Create(ctx context.Context, req *domain.SupportRequest) error {
	const query = `
        INSERT INTO support_requests (user_id, message, status)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return mapError(r.db.QueryRow(ctx, query, req.UserID, req.Message, req.Status).Scan(&req.ID, &req.CreatedAt))
}

func (r *supportRequestRepository) Get(ctx context.Context, id int64) (*domain.SupportRequest, error) {
	const query = `
        SELECT id, user_id, message, status, created_at, closed_at, closed_by
        FROM support_requests WHERE id=$1`
	var req domain.SupportRequest
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.UserID,
		&req.Message,
		&req.Status,
		&req.CreatedAt,
		&req.ClosedAt,
		&req.ClosedBy,
	); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *supportRequestRepository) ListOpen(ctx context.Context) ([]domain.SupportRequest, error) {
	const query = `
        SELECT id, user_id, message, status, created_at, closed_at, closed_by
        FROM support_requests WHERE status='open' ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportRequest
	for rows.Next() {
		var req domain.SupportRequest
		if err := rows.Scan(
			&req.ID,
			&req.UserID,
			&req.Message,
			&req.Status,
			&req.CreatedAt,
			&req.ClosedAt,
			&req.ClosedBy,
		); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (r *supportRequestRepository) Close(ctx context.Context, id, adminID int64, at time.Time) error {
	const query = `
        UPDATE support_requests SET status='closed', closed_by=$1, closed_at=$2
        WHERE id=$3 AND status='open'`
	tag, err := r.db.Exec(ctx, query, adminID, at, id)
	return expectOne(tag, err, ErrStaleState)
}

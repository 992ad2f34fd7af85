package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage level errors. Services translate them into domain errors.
var (
	// ErrNotFound aliases pgx.ErrNoRows so callers can rely on either.
	ErrNotFound = pgx.ErrNoRows
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrReferenced reports a foreign key violation.
	ErrReferenced = errors.New("repository: referenced")
	// ErrStaleState reports that a conditional update found the row in another state.
	ErrStaleState = errors.New("repository: stale state")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to one connection or transaction.
type Repositories struct {
	Users         UserRepository
	Tasks         TaskRepository
	Submissions   SubmissionRepository
	Potential     PotentialMessageRepository
	Dialogs       DialogStateRepository
	Notifications NotificationRepository
	Support       SupportRequestRepository
	Stats         StatsRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repositories
	InTx(ctx context.Context, fn func(Repositories) error) error
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by the pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Users:         NewUserRepository(db),
		Tasks:         NewTaskRepository(db),
		Submissions:   NewSubmissionRepository(db),
		Potential:     NewPotentialMessageRepository(db),
		Dialogs:       NewDialogStateRepository(db),
		Notifications: NewNotificationRepository(db),
		Support:       NewSupportRequestRepository(db),
		Stats:         NewStatsRepository(db),
	}
}

func (s *postgresStore) Repos() Repositories {
	return NewRepositories(s.pool)
}

func (s *postgresStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(NewRepositories(tx))
	})
}

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrReferenced, pgErr.ConstraintName)
		}
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error, miss error) error {
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return miss
	}
	return nil
}

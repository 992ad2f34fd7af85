package repository

import (
	"context"
	"errors"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// UserRepository defines persistence access for participants.
type UserRepository interface {
	// Touch creates the user on first contact or refreshes the handle.
	Touch(ctx context.Context, identity domain.Identity) (*domain.User, bool, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	// Complete stores the collected profile; ErrStaleState when already completed.
	Complete(ctx context.Context, user *domain.User) error
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, surname, given_name, mode, family_size, has_children,
               child_age_buckets, registration_completed, created_at, updated_at`

func (r *userRepository) Touch(ctx context.Context, identity domain.Identity) (*domain.User, bool, error) {
	const query = `
        INSERT INTO users (id, username) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, updated_at = NOW()
        RETURNING ` + userColumns + `, (xmax = 0) AS inserted`

	var inserted bool
	user, err := scanUser(r.db.QueryRow(ctx, query, identity.ID, identity.Username), &inserted)
	if err != nil {
		return nil, false, mapError(err)
	}
	return user, inserted, nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *userRepository) Complete(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET surname=$1, given_name=$2, mode=$3, family_size=$4, has_children=$5,
            child_age_buckets=$6, registration_completed=TRUE, updated_at=NOW()
        WHERE id=$7 AND registration_completed=FALSE
        RETURNING updated_at`

	buckets := make([]string, len(user.ChildAgeBuckets))
	for i, b := range user.ChildAgeBuckets {
		buckets[i] = string(b)
	}
	err := r.db.QueryRow(ctx, query,
		user.Surname,
		user.GivenName,
		user.Mode,
		user.FamilySize,
		user.HasChildren,
		buckets,
		user.ID,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, ErrNotFound) {
		return ErrStaleState
	}
	if err != nil {
		return mapError(err)
	}
	user.RegistrationCompleted = true
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (*domain.User, error) {
	var (
		user    domain.User
		buckets []string
	)
	dest := []any{
		&user.ID,
		&user.Username,
		&user.Surname,
		&user.GivenName,
		&user.Mode,
		&user.FamilySize,
		&user.HasChildren,
		&buckets,
		&user.RegistrationCompleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	for _, b := range buckets {
		user.ChildAgeBuckets = append(user.ChildAgeBuckets, domain.ChildAgeBucket(b))
	}
	return &user, nil
}

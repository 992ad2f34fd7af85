package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// TaskFilter narrows task listings. Nil fields are not applied.
type TaskFilter struct {
	Status *domain.TaskStatus
	Week   *int
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id int64) (*domain.Task, error)
	// GetForShare reads the task and blocks concurrent status changes until
	// the transaction ends.
	GetForShare(ctx context.Context, id int64) (*domain.Task, error)
	// GetForUpdate reads the task and locks the row against other writers
	// until the transaction ends. Read-modify-write callers must use it.
	GetForUpdate(ctx context.Context, id int64) (*domain.Task, error)
	GetByTitle(ctx context.Context, title string) (*domain.Task, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
}

type taskRepository struct {
	db DBTX
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(db DBTX) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, title, description, link, week, deadline, opens_at, status, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (title, description, link, week, deadline, opens_at, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Link,
		task.Week,
		task.Deadline,
		task.OpensAt,
		task.Status,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	return mapError(err)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET title=$1, description=$2, link=$3, week=$4, deadline=$5, opens_at=$6, status=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Link,
		task.Week,
		task.Deadline,
		task.OpensAt,
		task.Status,
		task.ID,
	).Scan(&task.UpdatedAt)
	return mapError(err)
}

func (r *taskRepository) Get(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id))
}

func (r *taskRepository) GetForShare(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR SHARE`, id))
}

func (r *taskRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, id))
}

func (r *taskRepository) GetByTitle(ctx context.Context, title string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE LOWER(title)=LOWER($1)`
	return scanTask(r.db.QueryRow(ctx, query, strings.TrimSpace(title)))
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	return expectOne(tag, err, ErrNotFound)
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Week != nil {
		args = append(args, *filter.Week)
		clauses = append(clauses, fmt.Sprintf("week=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY week, deadline, id`,
		taskColumns, strings.Join(clauses, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Link,
		&task.Week,
		&task.Deadline,
		&task.OpensAt,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}

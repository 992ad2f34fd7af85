package repository

import (
	"context"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// DialogStateRepository persists the per-user pointer into multi-step flows.
type DialogStateRepository interface {
	Get(ctx context.Context, userID int64) (*domain.DialogState, error)
	Save(ctx context.Context, state *domain.DialogState) error
	Delete(ctx context.Context, userID int64) error
}

type dialogStateRepository struct {
	db DBTX
}

// NewDialogStateRepository instantiates repository.
func NewDialogStateRepository(db DBTX) DialogStateRepository {
	return &dialogStateRepository{db: db}
}

func (r *dialogStateRepository) Get(ctx context.Context, userID int64) (*domain.DialogState, error) {
	const query = `
        SELECT user_id, flow, step, task_id, fields, updated_at
        FROM dialog_states WHERE user_id=$1`

	state := domain.DialogState{}
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&state.UserID,
		&state.Flow,
		&state.Step,
		&state.TaskID,
		&state.Fields,
		&state.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if state.Fields == nil {
		state.Fields = map[string]string{}
	}
	return &state, nil
}

func (r *dialogStateRepository) Save(ctx context.Context, state *domain.DialogState) error {
	const query = `
        INSERT INTO dialog_states (user_id, flow, step, task_id, fields, updated_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (user_id) DO UPDATE SET flow=EXCLUDED.flow, step=EXCLUDED.step,
            task_id=EXCLUDED.task_id, fields=EXCLUDED.fields, updated_at=NOW()
        RETURNING updated_at`
	fields := state.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	err := r.db.QueryRow(ctx, query,
		state.UserID,
		state.Flow,
		state.Step,
		state.TaskID,
		fields,
	).Scan(&state.UpdatedAt)
	return mapError(err)
}

func (r *dialogStateRepository) Delete(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM dialog_states WHERE user_id=$1`, userID)
	return err
}

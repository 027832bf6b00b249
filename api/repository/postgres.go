package repository

import (
	"context"

	"paperPatent/api/database"
	"paperPatent/api/models"
)

// PostgresJournal keeps a durable row per task. It is a mirror only: task
// state is still served from the Store.
type PostgresJournal struct {
	db *database.DB
}

func NewPostgresJournal(db *database.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (r *PostgresJournal) TaskCreated(ctx context.Context, task models.Task) error {
	query := `
		INSERT INTO tasks (id, trace_id, original_filename, file_path, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query,
		task.ID,
		task.Inputs.TraceID,
		task.Inputs.OriginalFilename,
		task.Inputs.SourcePath,
		string(task.Status),
		task.Error,
		task.CreatedAt,
	)
	return err
}

func (r *PostgresJournal) StatusChanged(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error {
	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = NOW()
	`

	if status.Terminal() {
		query += `, completed_at = NOW()`
	}

	query += ` WHERE id = $3`

	result, err := r.db.Pool.Exec(ctx, query, string(status), errMsg, taskID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return models.ErrTaskNotFound
	}

	return nil
}

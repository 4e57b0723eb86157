package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TWRT/smarttask/internal/models"
)

// TaskRepository stores tasks and enforces that every row is only visible to,
// and writable by, its owner.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListByOwner returns the owner's tasks, newest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, owner string) ([]models.Task, error) {
	query := `
	SELECT id, user_id, title, description, status, priority, start_time, end_time, created_at, sub_tasks, image_url
	FROM tasks
	WHERE user_id = ?
	ORDER BY created_at DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("Error trying to get tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var (
			t        models.Task
			status   string
			priority string
			subTasks string
		)
		err := rows.Scan(
			&t.ID,
			&t.Owner,
			&t.Title,
			&t.Description,
			&status,
			&priority,
			&t.StartTime,
			&t.EndTime,
			&t.CreatedAt,
			&subTasks,
			&t.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("Error trying to read task: %w", err)
		}
		t.Status = models.Status(status)
		t.Priority = models.Priority(priority)
		if err := json.Unmarshal([]byte(subTasks), &t.SubTasks); err != nil {
			return nil, fmt.Errorf("Error trying to decode sub tasks of %s: %w", t.ID, err)
		}
		if t.SubTasks == nil {
			t.SubTasks = []string{}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Error trying to get tasks: %w", err)
	}
	return tasks, nil
}

// Upsert inserts the task or fully replaces the existing row with the same id.
func (r *TaskRepository) Upsert(ctx context.Context, owner string, task models.Task) error {
	return r.UpsertMany(ctx, owner, []models.Task{task})
}

// UpsertMany applies every upsert in one transaction; if any row is rejected
// nothing is written.
func (r *TaskRepository) UpsertMany(ctx context.Context, owner string, tasks []models.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Error trying to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, task := range tasks {
		if err := upsertTask(ctx, tx, owner, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Error trying to commit tasks: %w", err)
	}
	return nil
}

func upsertTask(ctx context.Context, tx *sql.Tx, owner string, task models.Task) error {
	if task.Owner != owner {
		return fmt.Errorf("task %s: %w", task.ID, ErrForbidden)
	}

	var current string
	err := tx.QueryRowContext(ctx, `SELECT user_id FROM tasks WHERE id = ?`, task.ID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("Error trying to check task %s: %w", task.ID, err)
	case current != owner:
		return fmt.Errorf("task %s: %w", task.ID, ErrForbidden)
	}

	subTasks := task.SubTasks
	if subTasks == nil {
		subTasks = []string{}
	}
	encoded, err := json.Marshal(subTasks)
	if err != nil {
		return fmt.Errorf("Error trying to encode sub tasks: %w", err)
	}

	query := `
	INSERT INTO tasks (id, user_id, title, description, status, priority, start_time, end_time, created_at, sub_tasks, image_url)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		status = excluded.status,
		priority = excluded.priority,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		created_at = excluded.created_at,
		sub_tasks = excluded.sub_tasks,
		image_url = excluded.image_url,
		updated_at = CURRENT_TIMESTAMP
	`
	_, err = tx.ExecContext(ctx, query,
		task.ID,
		owner,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		task.StartTime,
		task.EndTime,
		task.CreatedAt,
		string(encoded),
		task.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("Error trying to save task %s: %w", task.ID, err)
	}
	return nil
}

// Delete removes the owner's task. Deleting a missing or foreign id is not an
// error; it simply matches no rows.
func (r *TaskRepository) Delete(ctx context.Context, owner, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, owner); err != nil {
		return fmt.Errorf("Error trying to delete task %s: %w", id, err)
	}
	return nil
}

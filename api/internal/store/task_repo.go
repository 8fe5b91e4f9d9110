package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mathcast/api/internal/tracker"
)

// TaskRepo keeps terminal task snapshots so a poll can still be answered
// after a restart. It implements tracker.Persister.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

func (r *TaskRepo) SaveTask(ctx context.Context, t tracker.Task) error {
	var rj []byte
	if t.Result != nil {
		rj, _ = json.Marshal(t.Result)
	}
	const q = `
insert into task_snapshots (id, status, progress, message, error, result_json, created_at, updated_at)
values ($1,$2,$3,$4,$5,$6,$7,$8)
on conflict (id) do update
set status = excluded.status,
    progress = excluded.progress,
    message = excluded.message,
    error = excluded.error,
    result_json = excluded.result_json,
    updated_at = excluded.updated_at`
	_, err := r.DB.ExecContext(ctx, q, t.ID, string(t.Status), t.Progress, t.Message, t.Error, rj, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("task save: %w", err)
	}
	return nil
}

func (r *TaskRepo) FindTask(ctx context.Context, id string) (tracker.Task, error) {
	const q = `select id, status, progress, message, error, result_json, created_at, updated_at
from task_snapshots where id = $1`
	var (
		t      tracker.Task
		status string
		rj     []byte
	)
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&t.ID, &status, &t.Progress, &t.Message, &t.Error, &rj, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return tracker.Task{}, err
	}
	t.Status = tracker.Status(status)
	if len(rj) > 0 {
		var res tracker.Result
		if err := json.Unmarshal(rj, &res); err != nil {
			return tracker.Task{}, fmt.Errorf("task %s: bad result json: %w", id, err)
		}
		t.Result = &res
	}
	return t, nil
}

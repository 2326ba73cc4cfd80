package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/model"
)

// TaskRunStorage defines the interface for beat dispatch history
type TaskRunStorage interface {
	// Store stores a dispatch record
	Store(ctx context.Context, run *model.TaskRun) error

	// Update updates an existing dispatch record
	Update(ctx context.Context, run *model.TaskRun) error

	// Get retrieves a dispatch record by ID
	Get(ctx context.Context, id string) (*model.TaskRun, error)

	// List retrieves dispatch records, newest first, optionally for a single task
	List(ctx context.Context, task string, offset, limit int) ([]*model.TaskRun, error)

	// Count returns the number of records, optionally for a single task
	Count(ctx context.Context, task string) (int, error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) error
}

const selectTaskRun = "SELECT id, task, status, error, started_at, completed_at, duration FROM task_runs"

// Store implements TaskRunStorage.Store
func (s *SQLiteStore) Store(ctx context.Context, run *model.TaskRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (id, task, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID,
		run.Task,
		run.Status,
		run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store task run: %w", err)
	}
	return nil
}

// Update implements TaskRunStorage.Update
func (s *SQLiteStore) Update(ctx context.Context, run *model.TaskRun) error {
	completedAt := sql.NullTime{}
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: run.CompletedAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE task_runs SET
			status = ?,
			error = ?,
			completed_at = ?,
			duration = ?
		WHERE id = ?`,
		run.Status,
		sql.NullString{String: run.Error, Valid: run.Error != ""},
		completedAt,
		sql.NullInt64{Int64: int64(run.Duration), Valid: run.Duration != 0},
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task run: %w", err)
	}
	return nil
}

// Get implements TaskRunStorage.Get
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.TaskRun, error) {
	return scanTaskRun(s.db.QueryRowContext(ctx, selectTaskRun+" WHERE id = ?", id))
}

// List implements TaskRunStorage.List
func (s *SQLiteStore) List(ctx context.Context, task string, offset, limit int) ([]*model.TaskRun, error) {
	query := selectTaskRun
	args := make([]interface{}, 0, 3)
	if task != "" {
		query += " WHERE task = ?"
		args = append(args, task)
	}
	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.TaskRun
	for rows.Next() {
		run, err := scanTaskRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return runs, nil
}

// Count implements TaskRunStorage.Count
func (s *SQLiteStore) Count(ctx context.Context, task string) (int, error) {
	query := "SELECT COUNT(*) FROM task_runs"
	args := make([]interface{}, 0, 1)
	if task != "" {
		query += " WHERE task = ?"
		args = append(args, task)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count task runs: %w", err)
	}
	return count, nil
}

// DeleteBefore implements TaskRunStorage.DeleteBefore
func (s *SQLiteStore) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM task_runs WHERE started_at < ?", before.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete task runs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old task run records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}

func scanTaskRun(row rowScanner) (*model.TaskRun, error) {
	run := &model.TaskRun{}
	var (
		errorStr      sql.NullString
		completedAt   sql.NullTime
		durationNanos sql.NullInt64
	)

	err := row.Scan(
		&run.ID,
		&run.Task,
		&run.Status,
		&errorStr,
		&run.StartedAt,
		&completedAt,
		&durationNanos,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan task run: %w", err)
	}

	if errorStr.Valid {
		run.Error = errorStr.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if durationNanos.Valid {
		run.Duration = time.Duration(durationNanos.Int64)
	}

	return run, nil
}

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

const selectTaskColumns = `
	SELECT t.id, t.task, t.name, t.interval_id, i.every, i.period, t.enabled,
		t.last_run_at, t.total_run_count, t.created_at, t.updated_at
	FROM scheduled_tasks t
	JOIN schedule_intervals i ON i.id = t.interval_id`

// DeleteTasksWithPrefix implements TaskStore.DeleteTasksWithPrefix
func (s *SQLiteStore) DeleteTasksWithPrefix(ctx context.Context, prefix string) (int64, error) {
	// substr comparison instead of LIKE so '_' and '%' in prefixes match literally
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM scheduled_tasks WHERE substr(task, 1, length(?)) = ?", prefix, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Debug("Deleted scheduled tasks",
		zap.String("prefix", prefix),
		zap.Int64("deleted", affected))

	return affected, nil
}

// GetOrCreateInterval implements TaskStore.GetOrCreateInterval
func (s *SQLiteStore) GetOrCreateInterval(ctx context.Context, every int, unit model.IntervalUnit) (*model.ScheduleInterval, bool, error) {
	var (
		interval model.ScheduleInterval
		created  bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_intervals (every, period) VALUES (?, ?)
			ON CONFLICT (every, period) DO NOTHING`, every, string(unit))
		if err != nil {
			return fmt.Errorf("failed to insert interval: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		created = affected == 1

		var period string
		err = tx.QueryRowContext(ctx,
			"SELECT id, every, period FROM schedule_intervals WHERE every = ? AND period = ?",
			every, string(unit)).Scan(&interval.ID, &interval.Every, &period)
		if err != nil {
			return fmt.Errorf("failed to scan interval: %w", err)
		}
		interval.Unit = model.IntervalUnit(period)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &interval, created, nil
}

// ListIntervals implements TaskStore.ListIntervals
func (s *SQLiteStore) ListIntervals(ctx context.Context) ([]*model.ScheduleInterval, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, every, period FROM schedule_intervals ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list intervals: %w", err)
	}
	defer rows.Close()

	var intervals []*model.ScheduleInterval
	for rows.Next() {
		interval := &model.ScheduleInterval{}
		var period string
		if err := rows.Scan(&interval.ID, &interval.Every, &period); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		interval.Unit = model.IntervalUnit(period)
		intervals = append(intervals, interval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return intervals, nil
}

// GetOrCreateTask implements TaskStore.GetOrCreateTask
func (s *SQLiteStore) GetOrCreateTask(ctx context.Context, defaults *model.ScheduledTask) (*model.ScheduledTask, bool, error) {
	var (
		task    *model.ScheduledTask
		created bool
	)

	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_tasks (task, name, interval_id, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (task) DO NOTHING`,
			defaults.Task,
			defaults.Name,
			defaults.IntervalID,
			defaults.Enabled,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		created = affected == 1

		task, err = scanTask(tx.QueryRowContext(ctx, selectTaskColumns+" WHERE t.task = ?", defaults.Task))
		return err
	})
	if err != nil {
		return nil, false, err
	}

	return task, created, nil
}

// UpdateTask implements TaskStore.UpdateTask
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.ScheduledTask) error {
	task.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET
			name = ?,
			interval_id = ?,
			enabled = ?,
			updated_at = ?
		WHERE task = ?`,
		task.Name,
		task.IntervalID,
		task.Enabled,
		task.UpdatedAt,
		task.Task,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", task.Task, ErrNotFound)
	}
	return nil
}

// GetTask implements TaskStore.GetTask
func (s *SQLiteStore) GetTask(ctx context.Context, identifier string) (*model.ScheduledTask, error) {
	return scanTask(s.db.QueryRowContext(ctx, selectTaskColumns+" WHERE t.task = ?", identifier))
}

// ListTasks implements TaskStore.ListTasks
func (s *SQLiteStore) ListTasks(ctx context.Context, enabledOnly bool) ([]*model.ScheduledTask, error) {
	query := selectTaskColumns
	if enabledOnly {
		query += " WHERE t.enabled = 1"
	}
	query += " ORDER BY t.task"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return tasks, nil
}

// MarkTaskRun implements TaskStore.MarkTaskRun
func (s *SQLiteStore) MarkTaskRun(ctx context.Context, identifier string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET
			last_run_at = ?,
			total_run_count = total_run_count + 1
		WHERE task = ?`, at.UTC(), identifier)
	if err != nil {
		return fmt.Errorf("failed to mark task run: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*model.ScheduledTask, error) {
	task := &model.ScheduledTask{Interval: &model.ScheduleInterval{}}
	var (
		period    string
		lastRunAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Task,
		&task.Name,
		&task.IntervalID,
		&task.Interval.Every,
		&period,
		&task.Enabled,
		&lastRunAt,
		&task.TotalRunCount,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	task.Interval.ID = task.IntervalID
	task.Interval.Unit = model.IntervalUnit(period)
	if lastRunAt.Valid {
		task.LastRunAt = &lastRunAt.Time
	}

	return task, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/model"
)

// ErrNotFound is returned when a lookup matches no record
var ErrNotFound = errors.New("record not found")

// TaskStore persists schedule intervals and scheduled tasks
type TaskStore interface {
	// DeleteTasksWithPrefix deletes every task whose identifier starts with prefix
	DeleteTasksWithPrefix(ctx context.Context, prefix string) (int64, error)

	// GetOrCreateInterval returns the interval for (every, unit), creating it if missing
	GetOrCreateInterval(ctx context.Context, every int, unit model.IntervalUnit) (*model.ScheduleInterval, bool, error)

	// GetOrCreateTask returns the task keyed by defaults.Task, creating it from defaults if missing
	GetOrCreateTask(ctx context.Context, defaults *model.ScheduledTask) (*model.ScheduledTask, bool, error)

	// UpdateTask overwrites name, interval and enabled of an existing task
	UpdateTask(ctx context.Context, task *model.ScheduledTask) error

	// GetTask retrieves a task by identifier
	GetTask(ctx context.Context, identifier string) (*model.ScheduledTask, error)

	// ListTasks lists tasks ordered by identifier
	ListTasks(ctx context.Context, enabledOnly bool) ([]*model.ScheduledTask, error)

	// ListIntervals lists every known interval
	ListIntervals(ctx context.Context) ([]*model.ScheduleInterval, error)

	// MarkTaskRun records a dispatch of the task at the given time
	MarkTaskRun(ctx context.Context, identifier string, at time.Time) error
}

// DeploymentStore persists master copies and proxy factories
type DeploymentStore interface {
	GetOrCreateMasterCopy(ctx context.Context, defaults *model.MasterCopy) (*model.MasterCopy, bool, error)

	// UpdateMasterCopyMetadata updates initial block and version only
	UpdateMasterCopyMetadata(ctx context.Context, address string, initialBlockNumber uint64, version string) error

	// SetMasterCopyBlockNumber moves the indexing cursor of a master copy
	SetMasterCopyBlockNumber(ctx context.Context, address string, blockNumber uint64) error

	GetMasterCopy(ctx context.Context, address string) (*model.MasterCopy, error)
	ListMasterCopies(ctx context.Context) ([]*model.MasterCopy, error)

	GetOrCreateProxyFactory(ctx context.Context, defaults *model.ProxyFactory) (*model.ProxyFactory, bool, error)
	GetProxyFactory(ctx context.Context, address string) (*model.ProxyFactory, error)
	ListProxyFactories(ctx context.Context) ([]*model.ProxyFactory, error)
}

// SQLiteStore implements TaskStore, DeploymentStore and TaskRunStorage using SQLite
type SQLiteStore struct {
	logger *zap.Logger
	db     *sql.DB
}

var (
	_ TaskStore       = (*SQLiteStore)(nil)
	_ DeploymentStore = (*SQLiteStore)(nil)
	_ TaskRunStorage  = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(logger *zap.Logger, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		logger: logger.Named("storage"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schedule_intervals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			every INTEGER NOT NULL,
			period TEXT NOT NULL,
			UNIQUE (every, period)
		);
		CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			interval_id INTEGER NOT NULL REFERENCES schedule_intervals(id),
			enabled BOOLEAN NOT NULL DEFAULT 1,
			last_run_at DATETIME,
			total_run_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS master_copies (
			address TEXT PRIMARY KEY,
			initial_block_number INTEGER NOT NULL,
			current_block_number INTEGER NOT NULL,
			version TEXT NOT NULL,
			l2 BOOLEAN NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS proxy_factories (
			address TEXT PRIMARY KEY,
			initial_block_number INTEGER NOT NULL,
			current_block_number INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS task_runs (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			duration INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_task_runs_task ON task_runs(task);
		CREATE INDEX IF NOT EXISTS idx_task_runs_started_at ON task_runs(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing on success
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

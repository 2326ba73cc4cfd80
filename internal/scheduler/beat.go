package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/metrics"
	"github.com/t77yq/txservice/internal/model"
	"github.com/t77yq/txservice/internal/storage"
)

// Entry describes a task registered with the beat
type Entry struct {
	Task     string        `json:"task"`
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Next     time.Time     `json:"next"`
	Prev     time.Time     `json:"prev"`
}

// Beat publishes the enabled scheduled tasks to the task stream at their interval
type Beat struct {
	logger *zap.Logger
	js     nats.JetStreamContext
	tasks  storage.TaskStore
	runs   storage.TaskRunStorage
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]scheduledEntry
}

type scheduledEntry struct {
	id       cron.EntryID
	task     *model.ScheduledTask
	interval time.Duration
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// NewBeat creates a new beat
func NewBeat(js nats.JetStreamContext, tasks storage.TaskStore, runs storage.TaskRunStorage, logger *zap.Logger) *Beat {
	logger = logger.Named("beat")
	cronLogger := &cronLogger{logger: logger.Named("cron")}

	return &Beat{
		logger: logger,
		js:     js,
		tasks:  tasks,
		runs:   runs,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		entries: make(map[string]scheduledEntry),
	}
}

// Start ensures the task stream exists, registers the enabled tasks and starts the cron loop
func (b *Beat) Start(ctx context.Context) error {
	if err := b.setupStream(ctx); err != nil {
		return fmt.Errorf("failed to setup stream: %w", err)
	}

	if err := b.Reload(ctx); err != nil {
		return err
	}

	b.cron.Start()
	b.logger.Info("Beat started", zap.Int("entries", len(b.Entries())))
	return nil
}

// Stop stops the cron loop and waits for running dispatches
func (b *Beat) Stop() {
	ctx := b.cron.Stop()
	<-ctx.Done()
	b.logger.Info("Beat stopped")
}

func (b *Beat) setupStream(ctx context.Context) error {
	_, err := b.js.StreamInfo(TaskStreamName, nats.Context(ctx))
	if err == nil {
		b.logger.Info("Using existing task stream", zap.String("name", TaskStreamName))
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:     TaskStreamName,
		Subjects: []string{taskStreamSubject},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  streamMaxMsgs,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	b.logger.Info("Created task stream", zap.String("name", TaskStreamName))
	return nil
}

// Reload synchronizes the cron entries with the enabled tasks in the store
func (b *Beat) Reload(ctx context.Context) error {
	tasks, err := b.tasks.ListTasks(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list scheduled tasks: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	desired := make(map[string]*model.ScheduledTask, len(tasks))
	for _, task := range tasks {
		desired[task.Task] = task
	}

	for identifier, entry := range b.entries {
		task, ok := desired[identifier]
		if ok && task.Interval.Duration() == entry.interval {
			// keep the running entry, refresh the display name
			entry.task = task
			b.entries[identifier] = entry
			delete(desired, identifier)
			continue
		}
		b.cron.Remove(entry.id)
		delete(b.entries, identifier)
		b.logger.Info("Removed schedule", zap.String("task", identifier))
	}

	// a bad row must not keep the other tasks from being scheduled
	invalid := 0
	for _, task := range desired {
		if err := b.addLocked(task); err != nil {
			invalid++
			b.logger.Error("Skipping task with invalid schedule",
				zap.String("task", task.Task),
				zap.Error(err))
		}
	}

	metrics.ScheduledEntries.Set(float64(len(b.entries)))
	metrics.InvalidSchedules.Set(float64(invalid))
	return nil
}

func (b *Beat) addLocked(task *model.ScheduledTask) error {
	if task.Interval == nil {
		return fmt.Errorf("%w: task %s has no interval", ErrInvalidInterval, task.Task)
	}
	if !task.Interval.Valid() {
		return fmt.Errorf("%w: task %s runs %s", ErrInvalidInterval, task.Task, task.Interval)
	}
	interval := task.Interval.Duration()

	id, err := b.cron.AddJob(fmt.Sprintf("@every %s", interval), &cronJob{beat: b, identifier: task.Task})
	if err != nil {
		return fmt.Errorf("failed to add cron job for task %s: %w", task.Task, err)
	}

	b.entries[task.Task] = scheduledEntry{id: id, task: task, interval: interval}
	b.logger.Info("Added schedule",
		zap.String("task", task.Task),
		zap.String("name", task.Name),
		zap.Duration("interval", interval))
	return nil
}

// Entries lists the registered schedules ordered by task identifier
func (b *Beat) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]Entry, 0, len(b.entries))
	for identifier, scheduled := range b.entries {
		cronEntry := b.cron.Entry(scheduled.id)
		entries = append(entries, Entry{
			Task:     identifier,
			Name:     scheduled.task.Name,
			Interval: scheduled.interval,
			Next:     cronEntry.Next,
			Prev:     cronEntry.Prev,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Task < entries[j].Task })
	return entries
}

// Dispatch publishes a single run of task to the task stream and records it
func (b *Beat) Dispatch(ctx context.Context, task *model.ScheduledTask) error {
	now := time.Now()
	run := &model.TaskRun{
		ID:        uuid.New().String(),
		Task:      task.Task,
		Status:    model.TaskRunStatusDispatched,
		StartedAt: now,
	}
	if err := b.runs.Store(ctx, run); err != nil {
		return fmt.Errorf("failed to store task run: %w", err)
	}

	publishErr := b.publish(ctx, run.ID, task, now)

	completed := time.Now()
	run.CompletedAt = &completed
	run.Duration = completed.Sub(now)
	if publishErr != nil {
		run.Status = model.TaskRunStatusFailed
		run.Error = publishErr.Error()
	}
	if err := b.runs.Update(ctx, run); err != nil {
		b.logger.Error("Failed to update task run", zap.String("run_id", run.ID), zap.Error(err))
	}

	if publishErr != nil {
		metrics.TaskDispatchTotal.WithLabelValues(task.Task, string(model.TaskRunStatusFailed)).Inc()
		return publishErr
	}

	if err := b.tasks.MarkTaskRun(ctx, task.Task, now); err != nil {
		b.logger.Error("Failed to mark task run", zap.String("task", task.Task), zap.Error(err))
	}

	metrics.TaskDispatchTotal.WithLabelValues(task.Task, string(model.TaskRunStatusDispatched)).Inc()
	return nil
}

func (b *Beat) publish(ctx context.Context, id string, task *model.ScheduledTask, at time.Time) error {
	data, err := json.Marshal(model.TaskMessage{
		ID:          id,
		Task:        task.Task,
		Name:        task.Name,
		ScheduledAt: at,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	if _, err := b.js.Publish(taskSubmitSubject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

// cronJob implements cron.Job
type cronJob struct {
	beat       *Beat
	identifier string
}

// Run implements cron.Job
func (j *cronJob) Run() {
	j.beat.mu.Lock()
	entry, ok := j.beat.entries[j.identifier]
	j.beat.mu.Unlock()
	if !ok {
		j.beat.logger.Warn("Fired schedule is no longer registered",
			zap.String("task", j.identifier),
			zap.Error(ErrTaskNotScheduled))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := j.beat.Dispatch(ctx, entry.task); err != nil {
		j.beat.logger.Error("Failed to dispatch task",
			zap.String("task", j.identifier),
			zap.Error(err))
		return
	}

	j.beat.logger.Info("Dispatched task",
		zap.String("task", j.identifier),
		zap.String("name", entry.task.Name))
}

package model

import "time"

// TaskRunStatus represents the outcome of a beat dispatch
type TaskRunStatus string

const (
	TaskRunStatusDispatched TaskRunStatus = "dispatched"
	TaskRunStatusFailed     TaskRunStatus = "failed"
)

// TaskMessage is published to the task queue every time a scheduled task is due
type TaskMessage struct {
	ID          string    `json:"id"`
	Task        string    `json:"task"`
	Name        string    `json:"name"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// TaskRun represents one dispatch of a scheduled task
type TaskRun struct {
	ID          string        `json:"id"`
	Task        string        `json:"task"`
	Status      TaskRunStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

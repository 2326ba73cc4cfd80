package scheduler

import "errors"

var (
	// ErrTaskNotScheduled is returned when a task has no cron entry
	ErrTaskNotScheduled = errors.New("task not scheduled")

	// ErrInvalidInterval is returned when a task interval is not positive
	ErrInvalidInterval = errors.New("invalid task interval")
)

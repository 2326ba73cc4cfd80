package model

import (
	"fmt"
	"math"
	"time"
)

// IntervalUnit is the period of a schedule interval
type IntervalUnit string

const (
	IntervalSeconds IntervalUnit = "seconds"
	IntervalMinutes IntervalUnit = "minutes"
	IntervalHours   IntervalUnit = "hours"
	IntervalDays    IntervalUnit = "days"
)

// Valid reports whether u is one of the known units
func (u IntervalUnit) Valid() bool {
	switch u {
	case IntervalSeconds, IntervalMinutes, IntervalHours, IntervalDays:
		return true
	}
	return false
}

// Duration returns the length of a single unit
func (u IntervalUnit) Duration() time.Duration {
	switch u {
	case IntervalSeconds:
		return time.Second
	case IntervalMinutes:
		return time.Minute
	case IntervalHours:
		return time.Hour
	case IntervalDays:
		return 24 * time.Hour
	}
	return 0
}

// TaskDefinition is the desired state of one periodic task
type TaskDefinition struct {
	Identifier  string       `json:"identifier"`
	DisplayName string       `json:"display_name"`
	Every       int          `json:"every"`
	Unit        IntervalUnit `json:"unit"`
	Enabled     bool         `json:"enabled"`
}

// Validate checks the definition can be turned into a scheduled task
func (d TaskDefinition) Validate() error {
	if d.Identifier == "" {
		return fmt.Errorf("task identifier is empty")
	}
	if d.Every <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got %d", d.Identifier, d.Every)
	}
	if !d.Unit.Valid() {
		return fmt.Errorf("task %s: unknown interval unit %q", d.Identifier, d.Unit)
	}
	if !(ScheduleInterval{Every: d.Every, Unit: d.Unit}).Valid() {
		return fmt.Errorf("task %s: interval of %d %s is too long", d.Identifier, d.Every, d.Unit)
	}
	return nil
}

// ScheduleInterval is shared by every task with the same (every, unit) pair
type ScheduleInterval struct {
	ID    int64        `json:"id"`
	Every int          `json:"every"`
	Unit  IntervalUnit `json:"unit"`
}

// Valid reports whether the interval is positive and fits in a time.Duration
func (i ScheduleInterval) Valid() bool {
	if i.Every <= 0 || !i.Unit.Valid() {
		return false
	}
	return int64(i.Every) <= math.MaxInt64/int64(i.Unit.Duration())
}

// Duration returns the wall-clock length of the interval
func (i ScheduleInterval) Duration() time.Duration {
	return time.Duration(i.Every) * i.Unit.Duration()
}

func (i ScheduleInterval) String() string {
	return fmt.Sprintf("every %d %s", i.Every, i.Unit)
}

// ScheduledTask is the persisted record of a periodic task
type ScheduledTask struct {
	ID            int64             `json:"id"`
	Task          string            `json:"task"`
	Name          string            `json:"name"`
	IntervalID    int64             `json:"interval_id"`
	Interval      *ScheduleInterval `json:"interval,omitempty"`
	Enabled       bool              `json:"enabled"`
	LastRunAt     *time.Time        `json:"last_run_at,omitempty"`
	TotalRunCount int               `json:"total_run_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

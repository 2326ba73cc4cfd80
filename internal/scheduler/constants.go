package scheduler

import "time"

// TaskStreamName is the JetStream stream the beat publishes task messages to
const TaskStreamName = "TASKS"

const (
	taskStreamSubject = "task.*"
	taskSubmitSubject = "task.submit"

	streamMaxAge  = 24 * time.Hour
	streamMaxMsgs = -1

	operationTimeout = 30 * time.Second
)

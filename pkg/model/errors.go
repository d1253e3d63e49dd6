package model

import (
	"errors"
	"fmt"
)

var (
	// network or validation failure at submit time, never retried
	ErrSubmission = errors.New("job submission failed")
	// channel level failure, handled by reconnect and polling fallback
	ErrStream = errors.New("stream failure")
	// the computation itself failed on the server
	ErrTaskFailure = errors.New("task failed")
	// polling ceiling exceeded
	ErrTimeout = errors.New("job timed out")
	// geometry synthesis received a malformed result
	ErrInvalidDataset = errors.New("invalid dataset")
	// job was cancelled by the user
	ErrCancelled = errors.New("job cancelled")
)

// TaskError carries the message reported by the server for a failed task.
type TaskError struct {
	TaskID  string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}

func (e *TaskError) Unwrap() error {
	return ErrTaskFailure
}

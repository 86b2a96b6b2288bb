package task

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned by Progress.Checkpoint after cancellation.
	ErrCancelled = errors.New("task cancelled")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("task queue is full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("task runner is closed")
)

// Error is the single failure shape of a unit of work. Message is the last
// progress message reported before the failure.
type Error struct {
	TaskID  string
	Task    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed (%s): %v", e.Task, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Task, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

package domain

import "errors"

var (
	// ErrClosed is returned when work is submitted to a closed domain.
	ErrClosed = errors.New("domain closed")

	// ErrRunning is returned by Start or Run when the loop is already
	// being driven.
	ErrRunning = errors.New("domain already running")

	// ErrTaskPanicked is reported to Do callers when the task panicked.
	// The panic value is included in the wrapped message.
	ErrTaskPanicked = errors.New("task panicked")
)

package process

import "errors"

var (
	// ErrCommandFailed is returned when a one-shot command exits non-zero,
	// times out, or cannot be started.
	ErrCommandFailed = errors.New("process: command failed")

	// ErrLoopExited is recorded when a supervised loop returns nil while
	// the supervisor is still running. Loops are expected to run until
	// their context is cancelled.
	ErrLoopExited = errors.New("process: loop exited")

	// ErrAlreadyRunning is returned by Add and Run once Run has started.
	ErrAlreadyRunning = errors.New("process: supervisor already running")

	// ErrNoLoops is returned by Run when nothing was added.
	ErrNoLoops = errors.New("process: no loops to supervise")
)

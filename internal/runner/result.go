package runner

import (
	"errors"
	"fmt"
	"time"
)

// Result holds the output of a command that ran to completion.
type Result struct {
	RunID    string        // unique identifier for this run
	ExitCode int           // process exit code; -1 when killed by a signal
	Stdout   []byte        // captured stdout, never truncated
	Stderr   []byte        // captured stderr, never truncated
	Duration time.Duration // wall-clock time from start to exit
}

// ErrTimeout is matched by TimeoutError.
var ErrTimeout = errors.New("timeout exceeded")

// TimeoutError reports a process that was killed for running too long.
// Any output it produced is discarded.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: killed after exceeding timeout of %s", e.Path, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// SpawnError reports a process that could not be started, for example
// because the file is not executable.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Package runner executes the evaluator as a child process with a hard
// timeout, capturing its output in full.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// Runner executes commands synchronously, one attempt each.
type Runner struct {
	Timeout   time.Duration // default per-run limit
	KillGrace time.Duration // wait for output pipes after a kill
	Dir       string        // working directory; empty means the current one
	Env       []string      // nil inherits the environment
}

// Run executes argv and blocks until the process exits or the timeout
// fires. A timeout of zero uses r.Timeout.
//
// A process that exits (with any code) yields a Result and a nil error.
// A process that cannot be started yields *SpawnError; one that outlives
// its timeout is killed, together with its process group, and yields
// *TimeoutError. Cancelling ctx also kills the process.
func (r *Runner) Run(ctx context.Context, argv []string, timeout time.Duration) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}
	if timeout <= 0 {
		timeout = r.Timeout
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("no timeout configured")
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runID := uuid.New().String()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	configureCommandProcess(cmd)
	cmd.Cancel = func() error { return terminateCommandProcess(cmd) }
	cmd.WaitDelay = r.KillGrace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: argv[0], Err: err}
	}
	runErr := cmd.Wait()
	elapsed := time.Since(start)

	// A killed process surfaces from Wait as an *exec.ExitError, so the
	// contexts decide whether this run was cut short.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("running %s: %w", argv[0], ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &TimeoutError{Path: argv[0], Timeout: timeout}
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil:
			// Exited, but a grandchild kept the pipes open.
			exitCode = cmd.ProcessState.ExitCode()
		default:
			return nil, fmt.Errorf("waiting for %s: %w", argv[0], runErr)
		}
	}

	return &Result{
		RunID:    runID,
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: elapsed,
	}, nil
}

// Package report models the evaluator's structured report and the
// per-invocation run result built around it.
package report

import (
	"time"

	"github.com/deixis/closeout/internal/status"
)

// RunResult is the outcome of one evaluator invocation. It is built once
// by the workflow engine and never modified afterwards.
type RunResult struct {
	ID       string        `json:"id"`
	Binary   string        `json:"binary"`
	Dialect  string        `json:"dialect"`
	Args     []string      `json:"args"`
	ExitCode int           `json:"exit_code"`
	Status   status.Status `json:"status"`
	OutPath  string        `json:"out_path,omitempty"` // empty: report read from stdout
	Artifact string        `json:"artifact,omitempty"` // copy of the report in the artifact directory
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Report   Value         `json:"report"` // absent when unobtainable
	Duration time.Duration `json:"duration_ns"`
}

// HasReport reports whether a structured report was obtained.
func (r *RunResult) HasReport() bool {
	return r.Report.Present() && !r.Report.IsNull()
}

// Store keeps run results addressable by run ID.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

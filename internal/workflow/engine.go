// Package workflow composes locator, runner, status classifier and report
// resolver into closeout runs. It is consumed by both the MCP server and
// the CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/deixis/closeout/internal/config"
	"github.com/deixis/closeout/internal/locator"
	"github.com/deixis/closeout/internal/metrics"
	"github.com/deixis/closeout/internal/runner"
)

// ErrInvalidRequest is returned for requests that cannot be turned into an
// evaluator invocation.
var ErrInvalidRequest = errors.New("invalid request")

// ErrOutputCollision is returned when batch items share an output path.
var ErrOutputCollision = errors.New("output path used by more than one run")

// LocalErrorExitCode is the process exit code for runs the orchestrator
// could not complete. It is distinct from every decision exit code.
const LocalErrorExitCode = 1

// CommandRunner executes commands. Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (*runner.Result, error)
}

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config  *config.Config
	Runner  CommandRunner
	Root    string           // project root; base for candidate locations
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger     // optional; slog.Default() when nil

	// LookPath overrides the system path search. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// Request describes one evaluator invocation.
type Request struct {
	Binary               string // explicit path; empty consults config then the locator
	Dialect              string // empty selects the configured dialect
	In                   string
	Out                  string // empty reads the report from stdout
	Pretty               bool
	EmitNull             bool
	RequireMassBreakdown bool
	Thresholds           config.Thresholds // merged over the configured thresholds
	Timeout              time.Duration     // zero uses the configured timeout

	// ArtifactDir, when set, receives a copy of a parsed report as
	// closeout.json.
	ArtifactDir string
}

// DefaultRequest returns a request with the evaluator defaults: pretty
// output, nulls emitted and the mass breakdown required.
func DefaultRequest(in, out string) Request {
	return Request{
		In:                   in,
		Out:                  out,
		Pretty:               true,
		EmitNull:             true,
		RequireMassBreakdown: true,
	}
}

// Locator returns the locator for an evaluator binary name. Configured
// search directories are tried before the conventional build locations.
func (e *Engine) Locator(name string) *locator.Locator {
	var candidates []string
	for _, dir := range e.Config.Search {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	return &locator.Locator{
		Name:       name,
		Base:       e.Root,
		Candidates: append(candidates, locator.DefaultCandidates(name)...),
		LookPath:   e.LookPath,
	}
}

// Locate resolves the evaluator for a dialect, honouring an explicit path
// first and the configured binary second.
func (e *Engine) Locate(explicit, dialect string) (*locator.Match, error) {
	d, err := e.Config.Dialect(dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if explicit == "" {
		explicit = e.Config.Binary
	}
	return e.Locator(d.Binary).Locate(explicit)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) observeFailure(err error) {
	e.Metrics.ObserveFailure(metrics.FailureKind(err, ErrInvalidRequest, ErrOutputCollision))
}

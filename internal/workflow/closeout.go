package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/deixis/closeout/internal/config"
	"github.com/deixis/closeout/internal/report"
	"github.com/deixis/closeout/internal/status"
)

// Closeout runs the evaluator once for req.
//
// An evaluator that exits, with any code, yields a RunResult and a nil
// error; its status is derived from the exit code alone. A missing
// binary, spawn failure, timeout or invalid request yields an error and
// no result.
func (e *Engine) Closeout(ctx context.Context, req Request) (*report.RunResult, error) {
	rr, err := e.closeout(ctx, req)
	if err != nil {
		e.observeFailure(err)
		return nil, err
	}
	e.Metrics.ObserveRun(rr.Status, rr.Duration, rr.HasReport())
	return rr, nil
}

func (e *Engine) closeout(ctx context.Context, req Request) (*report.RunResult, error) {
	log := e.logger()

	if req.In == "" {
		return nil, fmt.Errorf("%w: an input path is required", ErrInvalidRequest)
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.Config.Timeout()
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidRequest, timeout)
	}
	thresholds := req.Thresholds.Merge(e.Config.Thresholds)
	for key, v := range thresholds.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: threshold %s must be a finite number", ErrInvalidRequest, key)
		}
	}

	d, err := e.Config.Dialect(req.Dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	args, err := d.Expand(config.Invocation{
		In:                   req.In,
		Out:                  req.Out,
		Pretty:               req.Pretty,
		EmitNull:             req.EmitNull,
		RequireMassBreakdown: req.RequireMassBreakdown,
		Thresholds:           thresholds,
	})
	if err != nil {
		if errors.Is(err, config.ErrNoStdout) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, err
	}

	explicit := req.Binary
	if explicit == "" {
		explicit = e.Config.Binary
	}
	match, err := e.Locator(d.Binary).Locate(explicit)
	if err != nil {
		return nil, err
	}
	log.Debug("resolved evaluator", "path", match.Path, "source", match.Source, "dialect", d.Name)

	if req.Out != "" {
		if err := os.MkdirAll(filepath.Dir(req.Out), 0o755); err != nil {
			return nil, fmt.Errorf("preparing output directory: %w", err)
		}
	}
	if req.ArtifactDir != "" {
		if err := os.MkdirAll(req.ArtifactDir, 0o755); err != nil {
			return nil, fmt.Errorf("preparing artifact directory: %w", err)
		}
	}

	argv := append([]string{match.Path}, args...)
	log.Debug("invoking evaluator", "argv", argv, "timeout", timeout)

	res, err := e.Runner.Run(ctx, argv, timeout)
	if err != nil {
		return nil, err
	}

	rr := &report.RunResult{
		ID:       res.RunID,
		Binary:   match.Path,
		Dialect:  d.Name,
		Args:     args,
		ExitCode: res.ExitCode,
		Status:   status.Classify(res.ExitCode),
		OutPath:  req.Out,
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
		Report:   report.Resolve(req.Out, res.Stdout),
		Duration: res.Duration,
	}
	log.Debug("evaluator exited",
		"run_id", rr.ID,
		"exit_code", rr.ExitCode,
		"status", rr.Status,
		"report", rr.HasReport(),
		"duration", rr.Duration,
	)

	if req.ArtifactDir != "" && rr.HasReport() {
		path, err := saveArtifact(req.ArtifactDir, req.Out, res.Stdout)
		if err != nil {
			// The decision stands; a missing copy is not a run failure.
			log.Warn("copying report to artifact directory", "dir", req.ArtifactDir, "err", err)
		}
		rr.Artifact = path
	}
	return rr, nil
}

// ArtifactName is the file name of the report copy in an artifact directory.
const ArtifactName = "closeout.json"

// saveArtifact copies the report to <dir>/closeout.json: the output file
// when one was requested, otherwise the evaluator's stdout. Nothing is
// copied when out already is that file.
func saveArtifact(dir, out string, stdout []byte) (string, error) {
	dst, err := filepath.Abs(filepath.Join(dir, ArtifactName))
	if err != nil {
		return "", err
	}
	data := stdout
	if out != "" {
		src, err := filepath.Abs(out)
		if err != nil {
			return "", err
		}
		if src == dst {
			return dst, nil
		}
		if data, err = os.ReadFile(src); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

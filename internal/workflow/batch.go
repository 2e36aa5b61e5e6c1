package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/deixis/closeout/internal/config"
	"github.com/deixis/closeout/internal/report"
	"github.com/deixis/closeout/internal/status"
)

// DefaultJobs is the batch concurrency when none is given.
const DefaultJobs = 4

// BatchItem is one named invocation within a batch.
type BatchItem struct {
	Name    string
	Request Request
}

// BatchOutcome is the result of one batch item. Exactly one of Result and
// Err is set.
type BatchOutcome struct {
	Name   string            `json:"name"`
	In     string            `json:"in"`
	Out    string            `json:"out,omitempty"`
	Result *report.RunResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
	Err    error             `json:"-"`
}

// Label is the status column for the outcome: the decision status, or
// FAILED when the evaluator could not be run.
func (o BatchOutcome) Label() string {
	if o.Err != nil {
		return "FAILED"
	}
	return o.Result.Status.String()
}

// BatchResult holds outcomes in item order.
type BatchResult struct {
	Outcomes []BatchOutcome `json:"runs"`
	ExitCode int            `json:"exit_code"`
}

// Counts tallies outcomes by Label.
func (b *BatchResult) Counts() map[string]int {
	counts := make(map[string]int)
	for _, o := range b.Outcomes {
		counts[o.Label()]++
	}
	return counts
}

// exitCode is LocalErrorExitCode when any item failed to run, otherwise
// the exit code of the most severe decision. The first item wins ties.
func (b *BatchResult) exitCode() int {
	worst := -1
	code := status.ExitGo
	for _, o := range b.Outcomes {
		if o.Err != nil {
			return LocalErrorExitCode
		}
		if sev := o.Result.Status.Severity(); sev > worst {
			worst = sev
			code = o.Result.ExitCode
		}
	}
	return code
}

// Batch runs items concurrently, at most jobs at a time. Items are
// independent: a failure in one never stops the others. Items that share
// an output path are rejected with ErrOutputCollision before anything
// runs.
func (e *Engine) Batch(ctx context.Context, items []BatchItem, jobs int) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no runs given", ErrInvalidRequest)
	}
	if err := checkOutputs(items); err != nil {
		e.observeFailure(err)
		return nil, err
	}
	if jobs <= 0 {
		jobs = DefaultJobs
	}

	res := &BatchResult{Outcomes: make([]BatchOutcome, len(items))}

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, item := range items {
		g.Go(func() error {
			o := BatchOutcome{Name: item.Name, In: item.Request.In, Out: item.Request.Out}
			rr, err := e.Closeout(ctx, item.Request)
			if err != nil {
				o.Err = err
				o.Error = err.Error()
				e.logger().Debug("batch item failed", "name", item.Name, "error", err)
			} else {
				o.Result = rr
			}
			res.Outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()

	res.ExitCode = res.exitCode()
	return res, nil
}

func checkOutputs(items []BatchItem) error {
	seen := make(map[string]string, len(items))
	for _, item := range items {
		if item.Request.Out == "" {
			continue
		}
		key, err := filepath.Abs(item.Request.Out)
		if err != nil {
			key = filepath.Clean(item.Request.Out)
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s (runs %q and %q)", ErrOutputCollision, item.Request.Out, prev, item.Name)
		}
		seen[key] = item.Name
	}
	return nil
}

// ItemsFromInputs builds one item per input. With outDir set, each report
// is written to <outDir>/<input stem>.closeout.json.
func ItemsFromInputs(inputs []string, outDir string, base Request) []BatchItem {
	items := make([]BatchItem, 0, len(inputs))
	for _, in := range inputs {
		req := base
		req.In = in
		req.Out = ""
		if outDir != "" {
			req.Out = filepath.Join(outDir, stem(in)+".closeout.json")
		}
		items = append(items, BatchItem{Name: stem(in), Request: req})
	}
	return items
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Manifest is a YAML batch description. Options set here override the
// base request for every run.
type Manifest struct {
	Binary               string            `yaml:"binary"`
	Dialect              string            `yaml:"dialect"`
	Pretty               *bool             `yaml:"pretty"`
	EmitNull             *bool             `yaml:"emit_null"`
	RequireMassBreakdown *bool             `yaml:"require_mass_breakdown"`
	Timeout              string            `yaml:"timeout"`
	Thresholds           config.Thresholds `yaml:"thresholds"`
	Runs                 []ManifestRun     `yaml:"runs"`

	dir string
}

// ManifestRun is one entry of Manifest.Runs. Relative paths are taken
// relative to the manifest file.
type ManifestRun struct {
	Name string `yaml:"name"`
	In   string `yaml:"in"`
	Out  string `yaml:"out"`
}

// LoadManifest reads and parses a batch manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest %s: %w", ErrInvalidRequest, path, err)
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// Items expands the manifest over base.
func (m *Manifest) Items(base Request) ([]BatchItem, error) {
	if m.Binary != "" {
		base.Binary = m.rel(m.Binary)
	}
	if m.Dialect != "" {
		base.Dialect = m.Dialect
	}
	if m.Pretty != nil {
		base.Pretty = *m.Pretty
	}
	if m.EmitNull != nil {
		base.EmitNull = *m.EmitNull
	}
	if m.RequireMassBreakdown != nil {
		base.RequireMassBreakdown = *m.RequireMassBreakdown
	}
	if m.Timeout != "" {
		d, err := config.ParseDuration(m.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: manifest timeout: %w", ErrInvalidRequest, err)
		}
		base.Timeout = d
	}
	base.Thresholds = m.Thresholds.Merge(base.Thresholds)

	items := make([]BatchItem, 0, len(m.Runs))
	for i, run := range m.Runs {
		if run.In == "" {
			return nil, fmt.Errorf("%w: manifest run %d has no input", ErrInvalidRequest, i+1)
		}
		req := base
		req.In = m.rel(run.In)
		req.Out = ""
		if run.Out != "" {
			req.Out = m.rel(run.Out)
		}
		name := run.Name
		if name == "" {
			name = stem(run.In)
		}
		items = append(items, BatchItem{Name: name, Request: req})
	}
	return items, nil
}

func (m *Manifest) rel(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

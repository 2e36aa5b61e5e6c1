package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/closeout/internal/config"
	"github.com/deixis/closeout/internal/report"
	"github.com/deixis/closeout/internal/summary"
	"github.com/deixis/closeout/internal/workflow"
)

// invocationParams are the options shared by closeout_run and
// closeout_batch.
type invocationParams struct {
	Bin                  string   `json:"bin,omitempty" jsonschema:"path to the evaluator binary. Defaults to discovery via PATH and conventional build directories."`
	Dialect              string   `json:"dialect,omitempty" jsonschema:"invocation dialect, e.g. closeout_cli or closeout_demo. Defaults to the configured dialect."`
	Pretty               *bool    `json:"pretty,omitempty" jsonschema:"pretty-print the report. Default: true."`
	EmitNull             *bool    `json:"emit_null,omitempty" jsonschema:"emit null for unset numeric fields instead of omitting them. Default: true."`
	RequireMassBreakdown *bool    `json:"require_mass_breakdown,omitempty" jsonschema:"require the mass-breakdown gate. Default: true."`
	TimeoutSeconds       int      `json:"timeout_seconds,omitempty" jsonschema:"per-run timeout in seconds. Defaults to the configured timeout (120s)."`
	MaxDeltaMass         *float64 `json:"max_delta_mass,omitempty" jsonschema:"maximum allowed mass delta in kg"`
	MinDiskArea          *float64 `json:"min_disk_area,omitempty" jsonschema:"minimum rotor disk area in m2"`
	MaxPowerHover        *float64 `json:"max_power_hover,omitempty" jsonschema:"maximum hover power in kW"`
}

// request builds the base request; paths are resolved against the root.
func request(e *workflow.Engine, p invocationParams) workflow.Request {
	req := workflow.DefaultRequest("", "")
	req.Binary = abs(e, p.Bin)
	req.Dialect = p.Dialect
	if p.Pretty != nil {
		req.Pretty = *p.Pretty
	}
	if p.EmitNull != nil {
		req.EmitNull = *p.EmitNull
	}
	if p.RequireMassBreakdown != nil {
		req.RequireMassBreakdown = *p.RequireMassBreakdown
	}
	if p.TimeoutSeconds > 0 {
		req.Timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	req.Thresholds = config.Thresholds{
		MaxDeltaMassKg: p.MaxDeltaMass,
		MinDiskAreaM2:  p.MinDiskArea,
		MaxPowerHoverK: p.MaxPowerHover,
	}
	return req
}

type runParams struct {
	In  string `json:"in" jsonschema:"path to the evaluator input file"`
	Out string `json:"out,omitempty" jsonschema:"path for the JSON report. Omit to read the report from the evaluator's stdout."`
	invocationParams
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.In == "" {
		return errorResult("in is required")
	}
	e := h.current()
	r := request(e, params.invocationParams)
	r.In = abs(e, params.In)
	r.Out = abs(e, params.Out)

	rr, err := e.Closeout(ctx, r)
	if err != nil {
		return errorResult(fmt.Sprintf("closeout failed: %v", err))
	}

	// Save results for closeout_inspect.
	_ = h.store.Save(rr)

	return textResult(formatRun(rr, summaryOptions(e), e.Config.StderrMax()))
}

func formatRun(rr *report.RunResult, opts summary.Options, stderrMax int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s (exit %d)\n", rr.Status, rr.ExitCode)
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintln(&b)
	fmt.Fprint(&b, opts.Report(rr.Report))
	fmt.Fprint(&b, summary.Stderr(filepath.Base(rr.Binary), rr.Stderr, stderrMax))
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with closeout_inspect(run_id=%q, section=\"decision\").\n", rr.ID)

	return b.String()
}

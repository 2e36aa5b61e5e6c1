package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/closeout/internal/summary"
	"github.com/deixis/closeout/internal/workflow"
)

type batchRun struct {
	Name string `json:"name,omitempty" jsonschema:"label for the run. Defaults to the input file stem."`
	In   string `json:"in" jsonschema:"path to the evaluator input file"`
	Out  string `json:"out,omitempty" jsonschema:"path for the JSON report"`
}

type batchParams struct {
	Runs     []batchRun `json:"runs,omitempty" jsonschema:"runs to execute"`
	Inputs   []string   `json:"inputs,omitempty" jsonschema:"input files; combined with out_dir to derive output paths"`
	OutDir   string     `json:"out_dir,omitempty" jsonschema:"directory for reports of inputs, written as <stem>.closeout.json"`
	Manifest string     `json:"manifest,omitempty" jsonschema:"path to a YAML batch manifest"`
	Jobs     int        `json:"jobs,omitempty" jsonschema:"maximum concurrent runs. Default: 4."`
	invocationParams
}

func (h *handler) batchHandler(ctx context.Context, req *mcp.CallToolRequest, params batchParams) (*mcp.CallToolResult, any, error) {
	e := h.current()
	base := request(e, params.invocationParams)

	var items []workflow.BatchItem
	if params.Manifest != "" {
		m, err := workflow.LoadManifest(abs(e, params.Manifest))
		if err != nil {
			return errorResult(fmt.Sprintf("batch failed: %v", err))
		}
		mi, err := m.Items(base)
		if err != nil {
			return errorResult(fmt.Sprintf("batch failed: %v", err))
		}
		items = append(items, mi...)
	}
	for _, run := range params.Runs {
		r := base
		r.In = abs(e, run.In)
		r.Out = abs(e, run.Out)
		name := run.Name
		if name == "" {
			name = run.In
		}
		items = append(items, workflow.BatchItem{Name: name, Request: r})
	}
	inputs := make([]string, len(params.Inputs))
	for i, in := range params.Inputs {
		inputs[i] = abs(e, in)
	}
	items = append(items, workflow.ItemsFromInputs(inputs, abs(e, params.OutDir), base)...)

	res, err := e.Batch(ctx, items, params.Jobs)
	if err != nil {
		return errorResult(fmt.Sprintf("batch failed: %v", err))
	}

	for _, o := range res.Outcomes {
		if o.Result != nil {
			_ = h.store.Save(o.Result)
		}
	}

	return textResult(formatBatch(res))
}

func formatBatch(res *workflow.BatchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Batch: %d runs, exit code %d\n", len(res.Outcomes), res.ExitCode)
	fmt.Fprintf(&b, "Counts: %s\n", summary.FormatCounts(res.Counts()))
	fmt.Fprintln(&b)

	for _, o := range res.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(&b, "%s: FAILED (%v)\n", o.Name, o.Err)
			continue
		}
		rr := o.Result
		fmt.Fprintf(&b, "%s: %s (exit %d) run=%s\n", o.Name, rr.Status, rr.ExitCode, rr.ID)
		if rr.HasReport() {
			fmt.Fprintf(&b, "  Gates: %s\n", summary.Gates(rr.Report))
			fmt.Fprintf(&b, "  Issue counts: %s\n", summary.FormatCounts(summary.IssueCounts(rr.Report)))
		} else {
			fmt.Fprintln(&b, "  (no JSON parsed)")
		}
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Inspect with closeout_inspect(run_id=\"<run>\", section=\"summary\").")

	return b.String()
}

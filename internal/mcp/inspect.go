package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/closeout/internal/summary"
)

// Inspect sections.
const (
	sectionSummary  = "summary"
	sectionDecision = "decision"
	sectionStderr   = "stderr"
	sectionStdout   = "stdout"
	sectionReport   = "report"
)

type inspectParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from a closeout_run or closeout_batch result"`
	Section string `json:"section,omitempty" jsonschema:"one of summary, decision, stderr, stdout, report. Default: summary."`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	section := params.Section
	if section == "" {
		section = sectionSummary
	}

	rr, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s (%s, exit %d)\n", rr.ID, rr.Status, rr.ExitCode)
	fmt.Fprintln(&b)

	switch section {
	case sectionSummary:
		fmt.Fprint(&b, summaryOptions(h.current()).Report(rr.Report))
	case sectionDecision:
		if !rr.HasReport() {
			fmt.Fprintln(&b, "No structured report was obtained for this run.")
			break
		}
		fmt.Fprint(&b, summary.Decision(rr.Report))
	case sectionStderr:
		writeStream(&b, filepath.Base(rr.Binary)+" stderr", rr.Stderr)
	case sectionStdout:
		writeStream(&b, filepath.Base(rr.Binary)+" stdout", rr.Stdout)
	case sectionReport:
		if !rr.Report.Present() {
			fmt.Fprintln(&b, "No structured report was obtained for this run.")
			break
		}
		data, err := json.MarshalIndent(rr.Report, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to encode report: %v", err))
		}
		b.Write(data)
		fmt.Fprintln(&b)
	default:
		return errorResult(fmt.Sprintf("unknown section %q (want summary, decision, stderr, stdout or report)", section))
	}

	return textResult(b.String())
}

func writeStream(b *strings.Builder, label, text string) {
	if strings.TrimSpace(text) == "" {
		fmt.Fprintf(b, "[%s] (empty)\n", label)
		return
	}
	fmt.Fprintf(b, "[%s]\n", label)
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(b)
	}
}

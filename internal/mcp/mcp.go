// Package mcp provides the closeout MCP server, registering the run,
// batch, inspect and locate tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/closeout"
	"github.com/deixis/closeout/internal/config"
	"github.com/deixis/closeout/internal/report"
	"github.com/deixis/closeout/internal/runner"
	"github.com/deixis/closeout/internal/summary"
	"github.com/deixis/closeout/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers. The engine is
// replaced wholesale when a session reports new roots; a tool call loads it
// once and uses that snapshot throughout.
type handler struct {
	engine atomic.Pointer[workflow.Engine]
	runner runner.Runner // template for per-workspace runners
	store  report.Store
}

// NewServer creates an MCP server with all closeout tools registered.
// Results are kept in store for closeout_inspect.
func NewServer(e *workflow.Engine, r *runner.Runner, store report.Store) *mcp.Server {
	h := &handler{
		runner: *r,
		store:  store,
	}
	h.engine.Store(e)

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "closeout", Version: closeout.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "closeout_run",
		Description: `Run the closeout evaluator once on an input file and summarise its decision.

Returns the decision status (GO, NO_GO, NEEDS_DATA or ERROR), the evaluator exit code,
gate verdicts, issue counts and the first issues. Results are stored for drill-down via closeout_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "closeout_batch",
		Description: `Run the evaluator on several inputs concurrently.

Each run needs a distinct output path; with out_dir set, reports are written to
<out_dir>/<input stem>.closeout.json. One failing run never stops the others.`,
	}, h.batchHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "closeout_inspect",
		Description: `Drill into a stored closeout run.

Use the run_id from closeout_run or closeout_batch and one section:
summary, decision, stderr, stdout or report (the raw structured report as JSON).`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "closeout_locate",
		Description: "Show which evaluator binary would be used and which rule found it.",
	}, h.locateHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and reloads
// the configuration from the first file root. This is called during
// session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		return
	}

	r := h.runner
	r.Timeout = loaded.Config.Timeout()
	r.KillGrace = loaded.Config.KillGrace()

	next := *h.current()
	next.Config = loaded.Config
	next.Root = loaded.Root
	next.Runner = &r
	h.engine.Store(&next)
}

func (h *handler) current() *workflow.Engine {
	return h.engine.Load()
}

// abs resolves p against the project root. Tools run without a meaningful
// working directory, so relative paths are taken from the root.
func abs(e *workflow.Engine, p string) string {
	if p == "" || filepath.IsAbs(p) || e.Root == "" {
		return p
	}
	return filepath.Join(e.Root, p)
}

func summaryOptions(e *workflow.Engine) summary.Options {
	cfg := e.Config
	return summary.Options{
		MaxIssues:  cfg.MaxIssues(),
		MessageMax: cfg.MessageMax(),
		CodeMax:    summary.DefaultOptions.CodeMax,
	}
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}

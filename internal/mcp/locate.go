package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type locateParams struct {
	Bin     string `json:"bin,omitempty" jsonschema:"explicit evaluator path to validate"`
	Dialect string `json:"dialect,omitempty" jsonschema:"invocation dialect whose binary name is searched for"`
}

func (h *handler) locateHandler(ctx context.Context, req *mcp.CallToolRequest, params locateParams) (*mcp.CallToolResult, any, error) {
	e := h.current()
	m, err := e.Locate(abs(e, params.Bin), params.Dialect)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(fmt.Sprintf("Binary: %s\nFound via: %s\n", m.Path, m.Source))
}

package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/autotest/internal/report"
)

type runParams struct {
	Input string `json:"input,omitempty" jsonschema:"source file of a single case, relative to the harness root (e.g. tests/func/00_main.sy). Defaults to every case in the configured directories."`
	Cross bool   `json:"cross,omitempty" jsonschema:"use the cross-compilation toolchain and run the program under the launcher. Default: false."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := h.engine(params.Cross)
	cases, err := e.Cases(params.Input, h.cfg.ScanDirs())
	if err != nil {
		return errorResult(fmt.Sprintf("Invalid input: %v", err))
	}

	rr, err := e.Run(ctx, cases, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("Run aborted after %d cases: %v", rr.Total, err))
	}

	// Save results for autotest_inspect.
	_ = h.store.Save(rr)

	return textResult(formatRun(rr))
}

func formatRun(rr *report.RunResult) string {
	var b strings.Builder

	if rr.Status() == report.Pass {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintf(&b, "Mode: %s\n", rr.Mode)
	fmt.Fprintf(&b, "Passed: %d/%d\n", rr.Passed, rr.Total)
	if rr.Interrupted {
		fmt.Fprintln(&b, "Interrupted: remaining cases were not run.")
	}
	fmt.Fprintln(&b)

	if rr.Total == 0 {
		fmt.Fprintln(&b, "No cases found.")
		return b.String()
	}

	fmt.Fprintln(&b, "Cases:")
	for _, c := range rr.Cases {
		if c.Status == report.Pass {
			fmt.Fprintf(&b, "  pass  %s\n", c.Source)
		} else {
			fmt.Fprintf(&b, "  fail  %s (%s)\n", c.Source, c.Detail())
		}
	}
	fmt.Fprintln(&b)

	if rr.Status() == report.Pass {
		fmt.Fprintln(&b, "All cases passed.")
	} else {
		fmt.Fprintf(&b, "Inspect with autotest_inspect(run_id=%q, case=\"<source path>\").\n", rr.ID)
	}
	return b.String()
}

package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/autotest/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from an autotest_run result"`
	Case  string `json:"case,omitempty" jsonschema:"substring of a case source path (e.g. 00_main or functional/00_main.sy). Defaults to every failing case."`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	var cases []report.CaseResult
	if params.Case == "" {
		cases = report.Failures(result)
		if len(cases) == 0 {
			return textResult(fmt.Sprintf("No failing cases in run %s (%s).", params.RunID, result.Mode))
		}
	} else {
		cases = report.ByCase(result, params.Case)
		if len(cases) == 0 {
			return textResult(fmt.Sprintf("No cases matching %q in run %s (%s).", params.Case, params.RunID, result.Mode))
		}
	}

	return textResult(formatInspectOutput(result, cases))
}

func formatInspectOutput(rr *report.RunResult, cases []report.CaseResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rr.ID, rr.Mode)

	for _, c := range cases {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%s: %s\n", c.Source, strings.ToUpper(string(c.Status)))
		if c.Status == report.Pass {
			continue
		}
		fmt.Fprintf(&b, "  %s\n", c.Detail())
		if c.HasInput() {
			fmt.Fprintf(&b, "  Input: %s\n", c.Input)
		}
		if c.Stage == report.StageCompile {
			writeBlock(&b, "Diagnostics", c.Diagnostics)
			continue
		}
		writeBlock(&b, "Expected", c.Want)
		writeBlock(&b, "Actual", c.Actual)
		if c.Truncated {
			fmt.Fprintln(&b, "  (output truncated)")
		}
	}

	return b.String()
}

func writeBlock(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "  %s:\n", title)
	if body == "" {
		fmt.Fprintln(b, "    (empty)")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

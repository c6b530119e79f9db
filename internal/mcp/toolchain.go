package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type toolchainParams struct {
	Cross bool `json:"cross,omitempty" jsonschema:"probe the cross-compilation toolchain instead of the native one. Default: false."`
}

func (h *handler) toolchainHandler(ctx context.Context, req *mcp.CallToolRequest, params toolchainParams) (*mcp.CallToolResult, any, error) {
	h.mu.Lock()
	e := h.engine(params.Cross)
	h.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Root: %s\n", e.Root)
	fmt.Fprintf(&b, "Mode: %s\n", e.Toolchain.Mode())
	fmt.Fprintln(&b)

	missing := 0
	for _, st := range e.ProbeToolchain() {
		if st.Available {
			fmt.Fprintf(&b, "%s: %s (%s)\n", st.Role, st.Name, st.Path)
			continue
		}
		missing++
		fmt.Fprintf(&b, "%s: %s unavailable\n", st.Role, st.Name)
		for _, line := range strings.Split(st.Err.Error(), "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	fmt.Fprintln(&b)

	if missing > 0 {
		fmt.Fprintf(&b, "Action: %d toolchain binaries are missing. Install or build them before autotest_run.\n", missing)
	} else {
		fmt.Fprintln(&b, "All toolchain binaries found.")
	}
	return textResult(b.String())
}

// Package mcp provides the autotest MCP server, registering the run, inspect
// and toolchain tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/autotest"
	"github.com/deixis/autotest/internal/config"
	"github.com/deixis/autotest/internal/report"
	"github.com/deixis/autotest/internal/runner"
	"github.com/deixis/autotest/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	// mu serializes runs, which share one temporary executable, and guards
	// cfg, root and runner against updates from client roots.
	mu     sync.Mutex
	cfg    *config.Config
	root   string
	runner *runner.Runner
	store  report.Store
}

// NewServer creates an MCP server with all autotest tools registered.
// root is the harness root that case paths and commands resolve against.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, root string) *mcp.Server {
	h := &handler{
		cfg:    cfg,
		root:   root,
		runner: r,
		store:  store,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateRootFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "autotest", Version: autotest.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "autotest_run",
		Description: `Compile, run and check test cases against their expected output.

Use this after changing the compiler. Runs the single case given by input, or every case
under the configured directories. Cases run one at a time. Results are stored for
drill-down via autotest_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "autotest_inspect",
		Description: `Drill into results from an autotest_run.

Use the run_id from the run output. case is a substring of the source path; when empty,
every failing case of the run is shown.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "autotest_toolchain",
		Description: "Report whether the compiler, C compiler and launcher of the native or cross toolchain can be found.",
	}, h.toolchainHandler)

	return s
}

// engine builds a workflow engine for the current root and configuration.
// The caller must hold h.mu.
func (h *handler) engine(cross bool) *workflow.Engine {
	return &workflow.Engine{
		Toolchain: h.cfg.Toolchain(cross),
		Runner:    h.runner,
		Root:      h.root,
	}
}

// updateRootFromRoots queries the client for MCP roots and switches the
// harness root to the first file root, loading its configuration.
// This is called during session initialization, before any tool calls.
func (h *handler) updateRootFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path, u.Path)
	if err != nil {
		log.Printf("ignoring root %s: %v", u.Path, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = loaded.Config
	h.root = loaded.Root
	h.runner.Workspace = loaded.Root
	h.runner.Timeout = loaded.Config.Timeout()
	h.runner.MaxOutput = loaded.Config.MaxOutputBytes()
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

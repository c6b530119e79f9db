// Package autotest holds build metadata for the autotest harness.
package autotest

// Version is the harness version reported by the CLI and the MCP server.
const Version = "v0.3.0"

package main

import (
	"github.com/urfave/cli/v2"
)

// EnvVarPrefix prefixes the environment variables that mirror flags.
const EnvVarPrefix = "AUTOTEST"

func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	InputFlag = &cli.StringFlag{
		Name:    "input",
		Aliases: []string{"i"},
		Usage:   "Single source file to test; when empty, every case in the configured directories is run",
	}
	CrossFlag = &cli.BoolFlag{
		Name:    "cross",
		Aliases: []string{"c"},
		EnvVars: prefixEnvVar("CROSS"),
		Usage:   "Enable cross-compile mode",
	}
	RootFlag = &cli.StringFlag{
		Name:    "root",
		EnvVars: prefixEnvVar("ROOT"),
		Usage:   "Harness root; defaults to the directory holding .autotest.yaml, else the executable's directory",
	}
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Print a table of failing cases after the summary",
	}
	JSONFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Write the run result as JSON to stdout",
	}
	NoColorFlag = &cli.BoolFlag{
		Name:    "no-color",
		EnvVars: prefixEnvVar("NO_COLOR"),
		Usage:   "Disable coloured status tags",
	}
)

// Flags are accepted by the root command; subcommands read the shared ones
// through the context lineage.
var Flags = []cli.Flag{
	InputFlag,
	CrossFlag,
	RootFlag,
	VerboseFlag,
	JSONFlag,
	NoColorFlag,
}

var (
	HTTPFlag = &cli.StringFlag{
		Name:    "http",
		EnvVars: prefixEnvVar("MCP_HTTP"),
		Usage:   "Serve over streamable HTTP on this address (e.g. :9090) instead of stdio",
	}
	InstructionsFlag = &cli.BoolFlag{
		Name:  "instructions",
		Usage: "Print model instructions and exit",
	}
)

func init() {
	// -v is taken by --verbose.
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "print the version",
	}
}

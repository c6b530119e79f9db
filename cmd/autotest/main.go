// Command autotest compiles and runs compiler test cases and checks each
// program's output and exit code against a reference.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/deixis/autotest"
	"github.com/deixis/autotest/internal/config"
	"github.com/deixis/autotest/internal/display"
	"github.com/deixis/autotest/internal/report"
	"github.com/deixis/autotest/internal/runner"
	"github.com/deixis/autotest/internal/workflow"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("autotest: ")

	ctx, stop := interruptContext(context.Background())
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "autotest"
	app.Version = autotest.Version
	app.Usage = "An auto-test tool for the MimiC compiler"
	app.Description = `Compiles every test case with the compiler under test, links it with a C
compiler and compares the program's output and exit code with the reference.
Run without arguments to test every case in the configured directories.`
	app.Flags = Flags
	app.Action = runMain
	app.Commands = []*cli.Command{
		{
			Name:   "mcp",
			Usage:  "Start the MCP server",
			Flags:  []cli.Flag{HTTPFlag, InstructionsFlag},
			Action: mcpMain,
		},
		{
			Name:      "inspect",
			Usage:     "List stored runs, or show the cases of one run",
			ArgsUsage: "[run-id [case]]",
			Action:    inspectMain,
		},
		{
			Name:   "toolchain",
			Usage:  "Check that the toolchain binaries can be found",
			Action: toolchainMain,
		},
	}
	return app
}

// loadConfig resolves the harness root and its configuration.
func loadConfig(c *cli.Context) (*config.LoadResult, error) {
	var (
		loaded *config.LoadResult
		err    error
	)
	if root := c.String(RootFlag.Name); root != "" {
		loaded, err = config.LoadFile(filepath.Join(root, config.FileName))
	} else {
		loaded, err = loadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

func loadDefault() (*config.LoadResult, error) {
	exeDir, err := config.ExecutableDir()
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	return config.Load(cwd, exeDir)
}

func newEngine(loaded *config.LoadResult, cross bool) *workflow.Engine {
	cfg := loaded.Config
	return &workflow.Engine{
		Toolchain: cfg.Toolchain(cross),
		Runner: &runner.Runner{
			Workspace: loaded.Root,
			Timeout:   cfg.Timeout(),
			MaxOutput: cfg.MaxOutputBytes(),
		},
		Root: loaded.Root,
	}
}

// reportStore returns the configured results directory, or nil when runs
// are not persisted.
func reportStore(loaded *config.LoadResult) *report.DiskStore {
	dir := loaded.Config.ReportsDir
	if dir == "" {
		return nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(loaded.Root, dir)
	}
	return report.NewDiskStoreAt(dir)
}

func newPrinter(c *cli.Context, cfg *config.Config) *display.Printer {
	mode := cfg.ColorMode()
	if c.Bool(NoColorFlag.Name) {
		mode = config.ColorNever
	}
	f, _ := c.App.ErrWriter.(*os.File)
	return display.New(c.App.ErrWriter, display.ColorEnabled(mode, f))
}

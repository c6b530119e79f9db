package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/deixis/autotest/internal/suite"
	"github.com/deixis/autotest/internal/workflow"
)

// runMain runs the selected cases. Failing cases do not change the exit
// status; an invalid input file or an aborted run exits with status 1.
func runMain(c *cli.Context) error {
	input := c.String(InputFlag.Name)
	if input != "" {
		// Relative to the caller, not the harness root.
		abs, err := filepath.Abs(input)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		input = abs
	}

	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	eng := newEngine(loaded, c.Bool(CrossFlag.Name))

	cases, err := eng.Cases(input, loaded.Config.ScanDirs())
	if err != nil {
		return cli.Exit(invalidInput(c.String(InputFlag.Name), eng, err), 1)
	}

	p := newPrinter(c, loaded.Config)
	rr, err := eng.Run(c.Context, cases, p)
	if err != nil {
		p.Error(err)
		return cli.Exit("", 1)
	}
	if rr.Interrupted {
		p.Interrupt()
	}
	p.Summary(rr)
	if c.Bool(VerboseFlag.Name) {
		p.Failures(rr)
	}

	if store := reportStore(loaded); store != nil {
		if err := store.Save(rr); err != nil {
			log.Printf("saving run %s: %v", rr.ID, err)
		}
	}

	if c.Bool(JSONFlag.Name) {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(rr)
	}
	return nil
}

// invalidInput renders the diagnostic for a rejected input file.
func invalidInput(input string, eng *workflow.Engine, err error) string {
	switch {
	case errors.Is(err, suite.ErrNotSource):
		return fmt.Sprintf("input must be a source file (%s)", eng.Toolchain.SourceExt)
	case errors.Is(err, suite.ErrMissingSource):
		return fmt.Sprintf("file %q does not exist", input)
	case errors.Is(err, suite.ErrMissingExpected):
		abs, absErr := filepath.Abs(input)
		if absErr != nil {
			return err.Error()
		}
		return fmt.Sprintf("output file %q does not exist", eng.Layout().CaseFor(abs).Expected)
	}
	return err.Error()
}

package main

import (
	"fmt"
	"log"

	"github.com/urfave/cli/v2"

	"github.com/deixis/autotest/internal/config"
	"github.com/deixis/autotest/internal/display"
	"github.com/deixis/autotest/internal/report"
)

// inspectMain lists stored runs or prints the cases of one run. With a case
// pattern only matching cases are shown; otherwise the failing ones.
func inspectMain(c *cli.Context) error {
	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	store := reportStore(loaded)
	if store == nil {
		return cli.Exit("inspect needs reports_dir to be set in "+loadedPath(loaded.Path), 1)
	}
	out := display.New(c.App.Writer, false)

	if c.NArg() == 0 {
		ids, err := store.List()
		if err != nil {
			return err
		}
		runs := make([]*report.RunResult, 0, len(ids))
		for _, id := range ids {
			rr, err := store.Load(id)
			if err != nil {
				log.Printf("skipping run %s: %v", id, err)
				continue
			}
			runs = append(runs, rr)
		}
		out.Runs(runs)
		return nil
	}

	rr, err := store.Load(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	pattern := c.Args().Get(1)
	if pattern == "" {
		failed := report.Failures(rr)
		if len(failed) == 0 {
			fmt.Fprintf(c.App.Writer, "No failing cases in run %s (%s).\n", rr.ID, rr.Mode)
			return nil
		}
		out.Table(fmt.Sprintf("Run %s: failed cases (%d)", rr.ID, len(failed)), failed)
		return nil
	}

	matched := report.ByCase(rr, pattern)
	if len(matched) == 0 {
		fmt.Fprintf(c.App.Writer, "No cases matching %q in run %s (%s).\n", pattern, rr.ID, rr.Mode)
		return nil
	}
	out.Table(fmt.Sprintf("Run %s: matching cases (%d)", rr.ID, len(matched)), matched)
	return nil
}

func loadedPath(path string) string {
	if path == "" {
		return config.FileName
	}
	return path
}

func toolchainMain(c *cli.Context) error {
	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	eng := newEngine(loaded, c.Bool(CrossFlag.Name))
	statuses := eng.ProbeToolchain()

	newPrinter(c, loaded.Config).Toolchain(eng.Toolchain.Mode(), statuses)
	for _, st := range statuses {
		if !st.Available {
			return cli.Exit("", 1)
		}
	}
	return nil
}

// Package workflow provides the execution engine for harness runs: the
// per-case compile, link, run and compare protocol and the aggregate run over
// a list of cases. It is consumed by both the CLI and the MCP server.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/google/uuid"

	"github.com/deixis/autotest/internal/config"
	"github.com/deixis/autotest/internal/report"
	"github.com/deixis/autotest/internal/runner"
	"github.com/deixis/autotest/internal/suite"
)

// ErrInterrupted is returned by RunCase when the context is cancelled while
// a case is in progress.
var ErrInterrupted = errors.New("interrupted")

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	RunInput(ctx context.Context, argv []string, cwd string, stdin []byte) (*runner.Result, error)
	Pipe(ctx context.Context, producer, consumer []string, cwd string) (*runner.PipeResult, error)
}

// Observer is notified as cases start and finish.
type Observer interface {
	CaseStarted(c suite.Case)
	CaseFinished(r *report.CaseResult)
}

type nopObserver struct{}

func (nopObserver) CaseStarted(suite.Case)          {}
func (nopObserver) CaseFinished(*report.CaseResult) {}

// Engine holds shared dependencies for harness runs.
type Engine struct {
	Toolchain config.Toolchain
	Runner    CommandRunner
	Root      string // harness root; every command runs here
}

// Layout returns the file layout cases are derived with.
func (e *Engine) Layout() suite.Layout {
	return suite.Layout{
		SourceExt: e.Toolchain.SourceExt,
		InputExt:  e.Toolchain.InputExt,
		OutputExt: e.Toolchain.OutputExt,
	}
}

// ExePath returns the absolute path of the temporary executable.
func (e *Engine) ExePath() string {
	return e.resolve(e.Toolchain.Exe)
}

func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.Root, path)
}

// Run executes cases in order, one at a time. Every case is attempted once.
//
// If ctx is cancelled, the run stops at the current case and the returned
// result has Interrupted set; this is not an error. The temporary
// executable is removed after the last case or an interrupt. Any other
// failure aborts the run and is returned together with the partial result;
// the executable is left in place in that case.
func (e *Engine) Run(ctx context.Context, cases []suite.Case, obs Observer) (*report.RunResult, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	rr := &report.RunResult{
		ID:      uuid.New().String(),
		Mode:    e.Toolchain.Mode(),
		Started: time.Now(),
	}

	for _, c := range cases {
		if ctx.Err() != nil {
			rr.Interrupted = true
			break
		}
		obs.CaseStarted(c)
		res, err := e.RunCase(ctx, c)
		if errors.Is(err, ErrInterrupted) {
			rr.Interrupted = true
			break
		}
		if err != nil {
			rr.Duration = time.Since(rr.Started)
			return rr, err
		}
		obs.CaseFinished(res)
		rr.Add(*res)
	}

	e.Cleanup()
	rr.Duration = time.Since(rr.Started)
	return rr, nil
}

// Cleanup removes the temporary executable if it exists.
func (e *Engine) Cleanup() {
	if err := os.Remove(e.ExePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("removing %s: %v", e.Toolchain.Exe, err)
	}
}

// RunCase compiles, links, runs and checks a single case. A compile failure
// or an output mismatch is a failing result, not an error. Errors are
// reserved for problems with the harness itself: a missing binary or an
// unreadable fixture. ErrInterrupted is returned if ctx is cancelled.
func (e *Engine) RunCase(ctx context.Context, c suite.Case) (*report.CaseResult, error) {
	if ctx.Err() != nil {
		return nil, ErrInterrupted
	}
	start := time.Now()
	res := &report.CaseResult{Case: c}

	// Compile: compiler | cc, producing the temporary executable.
	pipe, err := e.Runner.Pipe(ctx, e.Toolchain.CompileArgv(c.Source), e.Toolchain.CC, "")
	if ctx.Err() != nil {
		return nil, ErrInterrupted
	}
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", c.Source, err)
	}
	res.CompilerExit = pipe.Producer.ExitCode
	res.CCExit = pipe.Consumer.ExitCode
	if !pipe.Success() {
		res.Status = report.Fail
		res.Stage = report.StageCompile
		res.Diagnostics = diagnostics(pipe)
		res.Truncated = pipe.Producer.Truncated || pipe.Consumer.Truncated
		res.Duration = time.Since(start)
		return res, nil
	}

	// Run the program with the optional input file as stdin.
	var stdin []byte
	if c.HasInput() {
		stdin, err = os.ReadFile(e.resolve(c.Input))
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
	}
	out, err := e.Runner.RunInput(ctx, e.Toolchain.RunArgv(e.ExePath()), "", stdin)
	if ctx.Err() != nil {
		return nil, ErrInterrupted
	}
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", c.Source, err)
	}
	res.ExitCode = out.ExitCode
	res.Truncated = out.StdoutTruncated
	res.Actual = Normalize(out.Stdout, out.ExitCode)

	// Compare against the reference.
	ref, err := os.ReadFile(e.resolve(c.Expected))
	if err != nil {
		return nil, fmt.Errorf("reading expected output: %w", err)
	}
	res.Want = Reference(ref)

	// A capped stdout is never a pass, even if the prefix matches.
	if res.Actual == res.Want && !res.Truncated {
		res.Status = report.Pass
	} else {
		res.Status = report.Fail
		res.Stage = report.StageCompare
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Normalize renders a program's observable behaviour for comparison: stdout
// with trailing newlines removed, a newline, the decimal exit code, with
// surrounding whitespace trimmed from the whole.
func Normalize(stdout []byte, exitCode int) string {
	trimmed := strings.TrimRight(string(stdout), "\n")
	return strings.TrimSpace(trimmed + "\n" + strconv.Itoa(exitCode))
}

// Reference renders an expected output file for comparison. CRLF and lone
// CR line endings read as LF before surrounding whitespace is trimmed.
func Reference(b []byte) string {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// diagnostics joins the compiler and C compiler stderr with colour escapes
// removed, so they render cleanly in tables and tool output.
func diagnostics(p *runner.PipeResult) string {
	var parts []string
	for _, r := range []*runner.Result{p.Producer, p.Consumer} {
		if s := strings.TrimSpace(stripansi.Strip(string(r.Stderr))); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

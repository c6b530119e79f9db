// Package display renders harness progress: one status line per case,
// interrupt and error tags, and the final summary.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/deixis/autotest/internal/config"
	"github.com/deixis/autotest/internal/report"
	"github.com/deixis/autotest/internal/suite"
	"github.com/deixis/autotest/internal/workflow"
)

var (
	green  = text.Colors{text.FgGreen}
	red    = text.Colors{text.FgRed}
	yellow = text.Colors{text.FgYellow}
)

// Printer writes status lines to w, which is normally stderr.
type Printer struct {
	w     io.Writer
	color bool
}

// New creates a Printer. Colour escapes are emitted only when color is set.
func New(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// ColorEnabled resolves a colour mode for the given output file. In auto
// mode colour is used only when f is a terminal.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case config.ColorNever:
		return false
	case config.ColorAuto:
		return f != nil && term.IsTerminal(int(f.Fd()))
	}
	return true
}

func (p *Printer) tag(c text.Colors, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

// CaseStarted prints the running line, left open for the verdict.
func (p *Printer) CaseStarted(c suite.Case) {
	fmt.Fprintf(p.w, "running test \"%s\" ... ", c.Source)
}

// CaseFinished completes the running line with PASS or FAIL.
func (p *Printer) CaseFinished(r *report.CaseResult) {
	if r.Status == report.Pass {
		fmt.Fprintln(p.w, p.tag(green, "PASS"))
		return
	}
	fmt.Fprintln(p.w, p.tag(red, "FAIL"))
}

// Interrupt reports that the run was stopped by a signal.
func (p *Printer) Interrupt() {
	fmt.Fprintln(p.w, p.tag(yellow, "INTERRUPT"))
}

// Error reports an unexpected error that aborted the run.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.w, p.tag(red, "ERROR"))
	fmt.Fprintln(p.w, err)
}

// Summary prints the aggregate verdict with the passed/total counts.
func (p *Printer) Summary(r *report.RunResult) {
	counts := fmt.Sprintf("(%d/%d)", r.Passed, r.Total)
	if r.Status() == report.Pass {
		fmt.Fprintln(p.w, p.tag(green, "PASS"), counts)
		return
	}
	fmt.Fprintln(p.w, p.tag(red, "FAIL"), counts)
}

// Failures prints a table of failing cases. It prints nothing when every
// case passed.
func (p *Printer) Failures(r *report.RunResult) {
	failed := report.Failures(r)
	if len(failed) == 0 {
		return
	}
	p.Table(fmt.Sprintf("Failed cases (%d)", len(failed)), failed)
}

// Table prints cases with their verdict detail and outputs. Compile failures
// show the first diagnostic lines in place of the actual output.
func (p *Printer) Table(title string, cases []report.CaseResult) {
	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Case", "Stage", "Detail", "Expected", "Actual"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Case", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Expected", WidthMax: 30, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Actual", WidthMax: 30, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, c := range cases {
		expected, actual := c.Want, c.Actual
		if c.Stage == report.StageCompile {
			expected, actual = "-", firstLines(c.Diagnostics, 3)
		}
		t.AppendRow(table.Row{c.Source, string(c.Stage), c.Detail(), expected, actual})
	}
	if p.color {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.Render()
}

// Runs prints one row per stored run, in the given order.
func (p *Printer) Runs(runs []*report.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.AppendHeader(table.Row{"Run", "Mode", "Started", "Result"})
	for _, r := range runs {
		result := fmt.Sprintf("%s (%d/%d)", strings.ToUpper(string(r.Status())), r.Passed, r.Total)
		if r.Interrupted {
			result += " interrupted"
		}
		t.AppendRow(table.Row{r.ID, r.Mode, r.Started.Format(time.DateTime), result})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// Toolchain prints whether each toolchain binary was found.
func (p *Printer) Toolchain(mode string, statuses []workflow.ToolStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.SetTitle(fmt.Sprintf("Toolchain (%s)", mode))
	t.AppendHeader(table.Row{"Role", "Command", "Status", "Path"})
	for _, st := range statuses {
		status, path := p.tag(green, "ok"), st.Path
		if !st.Available {
			status, path = p.tag(red, "missing"), st.Err.Error()
		}
		t.AppendRow(table.Row{st.Role, st.Name, status, path})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// firstLines returns up to n lines of s, marking any that were cut.
func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-n)
}

// Package report provides structured persistence and retrieval of harness
// runs. Results are stored as typed structs and can be queried by case.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/autotest/internal/suite"
)

// Status is the verdict of a case or a run.
type Status string

const (
	// Pass means the normalized output matched the reference exactly.
	Pass Status = "pass"
	// Fail means compilation failed or the output did not match.
	Fail Status = "fail"
)

// Stage identifies where a failing case went wrong.
type Stage string

const (
	// StageCompile is the compiler | C compiler pipeline.
	StageCompile Stage = "compile"
	// StageCompare is the output comparison after the program ran.
	StageCompare Stage = "compare"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the outcome of one harness run.
type RunResult struct {
	ID          string        `json:"id"`
	Mode        string        `json:"mode"` // native or cross
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
	Passed      int           `json:"passed"`
	Total       int           `json:"total"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Cases       []CaseResult  `json:"cases"`
}

// Status is Pass when every completed case passed.
func (r *RunResult) Status() Status {
	if r.Passed == r.Total {
		return Pass
	}
	return Fail
}

// Add records a finished case and updates the totals.
func (r *RunResult) Add(c CaseResult) {
	r.Cases = append(r.Cases, c)
	r.Total++
	if c.Status == Pass {
		r.Passed++
	}
}

// CaseResult holds the outcome of a single case.
type CaseResult struct {
	suite.Case

	Status       Status        `json:"status"`
	Stage        Stage         `json:"stage,omitempty"` // set on failure
	CompilerExit int           `json:"compiler_exit"`
	CCExit       int           `json:"cc_exit"`
	ExitCode     int           `json:"exit_code"` // program exit code; zero when not run
	Actual       string        `json:"actual,omitempty"`
	Want         string        `json:"want,omitempty"`
	Diagnostics  string        `json:"diagnostics,omitempty"` // compiler and C compiler stderr
	Truncated    bool          `json:"truncated,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Detail returns a one-line description of why a case failed.
func (c *CaseResult) Detail() string {
	switch {
	case c.Status == Pass:
		return "passed"
	case c.Stage == StageCompile:
		if c.CompilerExit != 0 {
			return fmt.Sprintf("compile failed (compiler exit %d, cc exit %d)", c.CompilerExit, c.CCExit)
		}
		return fmt.Sprintf("compile failed (cc exit %d)", c.CCExit)
	case c.Truncated:
		return fmt.Sprintf("output truncated at the capture limit (exit code %d)", c.ExitCode)
	default:
		return fmt.Sprintf("output mismatch (exit code %d)", c.ExitCode)
	}
}

// ByCase returns the cases whose source path contains pattern.
func ByCase(result *RunResult, pattern string) []CaseResult {
	var out []CaseResult
	for _, c := range result.Cases {
		if strings.Contains(c.Source, pattern) {
			out = append(out, c)
		}
	}
	return out
}

// Failures returns the failing cases in run order.
func Failures(result *RunResult) []CaseResult {
	var out []CaseResult
	for _, c := range result.Cases {
		if c.Status != Pass {
			out = append(out, c)
		}
	}
	return out
}

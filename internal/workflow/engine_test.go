package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/deixis/autotest/internal/config"
	"github.com/deixis/autotest/internal/report"
	"github.com/deixis/autotest/internal/runner"
	"github.com/deixis/autotest/internal/suite"
)

// fakeCompiler prints the source file given as its last argument, so a
// case's "source" is the shell body of the program under test.
const fakeCompiler = `#!/bin/sh
for a; do src=$a; done
cat "$src"
`

// fakeCC reads target code from stdin and writes it as a shell script to the
// path following -o. Input containing COMPILE_ERROR is rejected.
const fakeCC = `#!/bin/sh
out=
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out=$2; shift; fi
  shift
done
body=$(cat)
case "$body" in *COMPILE_ERROR*) echo "error: bad program" >&2; exit 1;; esac
printf '#!/bin/sh\n%s\n' "$body" > "$out"
chmod +x "$out"
`

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), mode); err != nil {
		t.Fatal(err)
	}
}

// countingRunner counts program executions.
type countingRunner struct {
	*runner.Runner
	runs atomic.Int32
}

func (c *countingRunner) RunInput(ctx context.Context, argv []string, cwd string, stdin []byte) (*runner.Result, error) {
	c.runs.Add(1)
	return c.Runner.RunInput(ctx, argv, cwd, stdin)
}

func newTestEngine(t *testing.T) (*Engine, *countingRunner) {
	t.Helper()
	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	writeFile(t, filepath.Join(bin, "mmcc"), fakeCompiler, 0o755)
	writeFile(t, filepath.Join(bin, "cc"), fakeCC, 0o755)

	cfg := &config.Config{
		Compiler: config.CommandVariant{Native: []string{filepath.Join(bin, "mmcc")}},
		CC:       config.CommandVariant{Native: []string{filepath.Join(bin, "cc"), "-o", "{exe}"}},
	}
	r := &countingRunner{Runner: &runner.Runner{Workspace: root}}
	return &Engine{Toolchain: cfg.Toolchain(false), Runner: r, Root: root}, r
}

// addCase writes a case under the engine root and returns it.
func addCase(t *testing.T, e *Engine, name, program, input, expected string) suite.Case {
	t.Helper()
	dir := filepath.Join(e.Root, "cases")
	writeFile(t, filepath.Join(dir, name+".sy"), program, 0o644)
	if input != "" {
		writeFile(t, filepath.Join(dir, name+".in"), input, 0o644)
	}
	writeFile(t, filepath.Join(dir, name+".out"), expected, 0o644)
	return e.Layout().CaseFor(filepath.Join(dir, name+".sy"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		stdout string
		code   int
		want   string
	}{
		{"42\n", 0, "42\n0"},
		{"", 3, "3"},
		{"a\n\n\n", 1, "a\n1"},
		{"\n\nx", 0, "x\n0"},
		{"  x  \n", 0, "x  \n0"},
		{"1 2\n3 4\n", 0, "1 2\n3 4\n0"},
		{"", -11, "-11"},
	}
	for _, tt := range tests {
		if got := Normalize([]byte(tt.stdout), tt.code); got != tt.want {
			t.Errorf("Normalize(%q, %d) = %q, want %q", tt.stdout, tt.code, got, tt.want)
		}
	}
}

func TestReference(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"42\n0\n", "42\n0"},
		{"42\r\n0\r\n", "42\n0"},
		{"a\rb\r\n0", "a\nb\n0"},
		{"\r\n\r\n  7  \r\n", "7"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Reference([]byte(tt.ref)); got != tt.want {
			t.Errorf("Reference(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestRunCase_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		program   string
		input     string
		expected  string
		want      report.Status
		wantStage report.Stage
	}{
		{"prints 42", "echo 42", "", "42\n0", report.Pass, ""},
		{"silent exit 3", "exit 3", "", "3", report.Pass, ""},
		{"padded reference", "echo 42", "", "\n\n  42\n0  \n\n", report.Pass, ""},
		{"reads input", "cat", "hello\n", "hello\n0\n", report.Pass, ""},
		{"wrong output", "echo 41", "", "42\n0", report.Fail, report.StageCompare},
		{"wrong exit code", "echo 42; exit 1", "", "42\n0", report.Fail, report.StageCompare},
		{"inner whitespace matters", "echo '4  2'", "", "4 2\n0", report.Fail, report.StageCompare},
		{"crlf reference", "echo 42", "", "42\r\n0\r\n", report.Pass, ""},
		{"multi-line crlf reference", "printf '1\\n2\\n'", "", "1\r\n2\r\n0\r\n", report.Pass, ""},
		{"cr reference", "echo 42", "", "42\r0\r", report.Pass, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			c := addCase(t, e, "case", tt.program, tt.input, tt.expected)

			res, err := e.RunCase(context.Background(), c)
			if err != nil {
				t.Fatalf("RunCase: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %s, want %s (actual %q, want %q)", res.Status, tt.want, res.Actual, res.Want)
			}
			if res.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", res.Stage, tt.wantStage)
			}
		})
	}
}

func TestRunCase_CompileFailureSkipsExecution(t *testing.T) {
	e, r := newTestEngine(t)
	c := addCase(t, e, "broken", "COMPILE_ERROR", "", "0")

	res, err := e.RunCase(context.Background(), c)
	if err != nil {
		t.Fatalf("RunCase: %v", err)
	}
	if res.Status != report.Fail || res.Stage != report.StageCompile {
		t.Errorf("Status/Stage = %s/%s, want fail/compile", res.Status, res.Stage)
	}
	if res.CCExit != 1 {
		t.Errorf("CCExit = %d, want 1", res.CCExit)
	}
	if !strings.Contains(res.Diagnostics, "bad program") {
		t.Errorf("Diagnostics = %q, want cc stderr", res.Diagnostics)
	}
	if n := r.runs.Load(); n != 0 {
		t.Errorf("program executed %d times after a failed compile", n)
	}
}

func TestRunCase_ColoredDiagnosticsArePlain(t *testing.T) {
	e, _ := newTestEngine(t)
	writeFile(t, filepath.Join(e.Root, "bin", "cc"), `#!/bin/sh
cat >/dev/null
printf '\033[1;31merror:\033[0m bad program\n' >&2
exit 1
`, 0o755)
	c := addCase(t, e, "colored", "echo 1", "", "1\n0")

	res, err := e.RunCase(context.Background(), c)
	if err != nil {
		t.Fatalf("RunCase: %v", err)
	}
	if res.Stage != report.StageCompile {
		t.Fatalf("Stage = %q, want compile", res.Stage)
	}
	if res.Diagnostics != "error: bad program" {
		t.Errorf("Diagnostics = %q, want %q", res.Diagnostics, "error: bad program")
	}
}

func TestRunCase_TruncatedOutputFails(t *testing.T) {
	e, r := newTestEngine(t)
	r.MaxOutput = 4
	// The captured prefix equals the reference, but the program wrote more.
	c := addCase(t, e, "long", "printf 'AAAABBBB'", "", "AAAA\n0")

	res, err := e.RunCase(context.Background(), c)
	if err != nil {
		t.Fatalf("RunCase: %v", err)
	}
	if res.Status != report.Fail || res.Stage != report.StageCompare {
		t.Errorf("Status/Stage = %s/%s, want fail/compare", res.Status, res.Stage)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if res.Actual != res.Want {
		t.Errorf("Actual = %q, want the captured prefix %q", res.Actual, res.Want)
	}
	if got, want := res.Detail(), "output truncated at the capture limit (exit code 0)"; got != want {
		t.Errorf("Detail() = %q, want %q", got, want)
	}
}

func TestRunCase_StderrAtCapStillPasses(t *testing.T) {
	e, r := newTestEngine(t)
	r.MaxOutput = 16
	c := addCase(t, e, "noisy", "echo 42; printf 'xxxxxxxxxxxxxxxxxxxxxxxx' >&2", "", "42\n0")

	res, err := e.RunCase(context.Background(), c)
	if err != nil {
		t.Fatalf("RunCase: %v", err)
	}
	if res.Status != report.Pass || res.Truncated {
		t.Errorf("Status = %s, Truncated = %v, want pass untruncated", res.Status, res.Truncated)
	}
}

func TestRunCase_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	c := addCase(t, e, "twice", "echo 7; exit 2", "", "7\n2")

	first, err := e.RunCase(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.RunCase(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != report.Pass || second.Status != first.Status {
		t.Errorf("verdicts = %s then %s, want pass twice", first.Status, second.Status)
	}
}

func TestRunCase_MissingCompiler(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Toolchain.Compiler = []string{"nonexistent-compiler-xyz"}
	c := addCase(t, e, "x", "echo 1", "", "1\n0")

	_, err := e.RunCase(context.Background(), c)
	if err == nil || !strings.Contains(err.Error(), "nonexistent-compiler-xyz") {
		t.Fatalf("RunCase error = %v, want missing compiler", err)
	}
}

func TestRunCase_MissingExpected(t *testing.T) {
	e, _ := newTestEngine(t)
	c := addCase(t, e, "x", "echo 1", "", "1\n0")
	if err := os.Remove(c.Expected); err != nil {
		t.Fatal(err)
	}

	_, err := e.RunCase(context.Background(), c)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("RunCase error = %v, want not exist", err)
	}
}

type recorder struct {
	events  []string
	onStart func(c suite.Case)
}

func (r *recorder) CaseStarted(c suite.Case) {
	r.events = append(r.events, "start "+filepath.Base(c.Source))
	if r.onStart != nil {
		r.onStart(c)
	}
}

func (r *recorder) CaseFinished(res *report.CaseResult) {
	r.events = append(r.events, string(res.Status)+" "+filepath.Base(res.Source))
}

func TestRun_AggregatesAndCleansUp(t *testing.T) {
	e, _ := newTestEngine(t)
	cases := []suite.Case{
		addCase(t, e, "a", "echo 1", "", "1\n0"),
		addCase(t, e, "b", "COMPILE_ERROR", "", "0"),
		addCase(t, e, "c", "exit 4", "", "4"),
	}

	rec := &recorder{}
	rr, err := e.Run(context.Background(), cases, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rr.Passed != 2 || rr.Total != 3 {
		t.Errorf("Passed/Total = %d/%d, want 2/3", rr.Passed, rr.Total)
	}
	if rr.Interrupted {
		t.Error("Interrupted = true, want false")
	}
	if rr.ID == "" || rr.Mode != "native" {
		t.Errorf("ID/Mode = %q/%q", rr.ID, rr.Mode)
	}

	want := []string{"start a.sy", "pass a.sy", "start b.sy", "fail b.sy", "start c.sy", "pass c.sy"}
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("observer events mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(e.ExePath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary executable still exists after run (stat err %v)", err)
	}
}

func TestRun_Empty(t *testing.T) {
	e, _ := newTestEngine(t)
	rr, err := e.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rr.Total != 0 || rr.Status() != report.Pass {
		t.Errorf("empty run = %d/%d %s, want 0/0 pass", rr.Passed, rr.Total, rr.Status())
	}
}

func TestRun_InterruptedBeforeStart(t *testing.T) {
	e, r := newTestEngine(t)
	c := addCase(t, e, "a", "echo 1", "", "1\n0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr, err := e.Run(ctx, []suite.Case{c}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rr.Interrupted || rr.Total != 0 {
		t.Errorf("Interrupted/Total = %v/%d, want true/0", rr.Interrupted, rr.Total)
	}
	if r.runs.Load() != 0 {
		t.Error("program executed after cancellation")
	}
}

func TestRun_InterruptedMidCase(t *testing.T) {
	e, _ := newTestEngine(t)
	cases := []suite.Case{
		addCase(t, e, "a", "echo 1", "", "1\n0"),
		addCase(t, e, "b", "sleep 10", "", "0"),
		addCase(t, e, "c", "echo 3", "", "3\n0"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{onStart: func(c suite.Case) {
		if filepath.Base(c.Source) == "b.sy" {
			time.AfterFunc(300*time.Millisecond, cancel)
		}
	}}

	start := time.Now()
	rr, err := e.Run(ctx, cases, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > 8*time.Second {
		t.Error("interrupt did not stop the running program")
	}
	if !rr.Interrupted {
		t.Error("Interrupted = false, want true")
	}
	if rr.Passed != 1 || rr.Total != 1 {
		t.Errorf("Passed/Total = %d/%d, want 1/1 (interrupted case not counted)", rr.Passed, rr.Total)
	}
	if rec.events[len(rec.events)-1] != "start b.sy" {
		t.Errorf("last event = %q, want the interrupted case to have started only", rec.events[len(rec.events)-1])
	}
	if _, err := os.Stat(e.ExePath()); !errors.Is(err, os.ErrNotExist) {
		t.Error("temporary executable not removed after interrupt")
	}
}

func TestRun_ErrorAbortsWithoutCleanup(t *testing.T) {
	e, _ := newTestEngine(t)
	a := addCase(t, e, "a", "echo 1", "", "1\n0")
	b := addCase(t, e, "b", "echo 2", "", "2\n0")
	c := addCase(t, e, "c", "echo 3", "", "3\n0")
	if err := os.Remove(b.Expected); err != nil {
		t.Fatal(err)
	}

	rr, err := e.Run(context.Background(), []suite.Case{a, b, c}, nil)
	if err == nil {
		t.Fatal("expected error for unreadable reference")
	}
	if rr.Total != 1 {
		t.Errorf("Total = %d, want 1: run must stop at the failing case", rr.Total)
	}
	if _, err := os.Stat(e.ExePath()); err != nil {
		t.Errorf("temporary executable removed on the error path: %v", err)
	}
}

func TestProbeToolchain(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Toolchain.Launcher = []string{"nonexistent-launcher-xyz"}

	statuses := e.ProbeToolchain()
	if len(statuses) != 3 {
		t.Fatalf("len(statuses) = %d, want 3", len(statuses))
	}
	if !statuses[0].Available || !statuses[1].Available {
		t.Errorf("compiler/cc unavailable: %+v", statuses[:2])
	}
	if statuses[2].Available {
		t.Error("launcher reported available")
	}
	var unavail ErrToolUnavailable
	if !errors.As(statuses[2].Err, &unavail) {
		t.Errorf("Err = %v, want ErrToolUnavailable", statuses[2].Err)
	}
}

func TestResolveTool_RelativeToRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "mmcc"), fakeCompiler, 0o755)

	path, err := ResolveTool(root, "build/mmcc")
	if err != nil {
		t.Fatalf("ResolveTool: %v", err)
	}
	if path != filepath.Join(root, "build", "mmcc") {
		t.Errorf("path = %q", path)
	}
	if _, err := ResolveTool(root, "build/missing"); err == nil {
		t.Error("expected error for missing relative tool")
	}
}

func TestErrToolUnavailable_Hint(t *testing.T) {
	msg := NewErrToolUnavailable("arm-linux-gnueabihf-gcc").Error()
	if !strings.Contains(msg, "gcc-arm-linux-gnueabihf") {
		t.Errorf("message %q lacks install hint", msg)
	}
	msg = NewErrToolUnavailable("../../build/mmcc").Error()
	if !strings.Contains(msg, "Build it first") {
		t.Errorf("message %q lacks build hint", msg)
	}
}

// Package runner provides command execution with workspace bounds, optional
// timeouts and output size limits, including a two-stage pipe between
// processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// waitDelay bounds how long Wait keeps reading output after a cancelled
// process is killed. Grandchildren can hold the pipes open indefinitely.
const waitDelay = 2 * time.Second

// Runner executes commands within a workspace boundary.
type Runner struct {
	Workspace string
	Timeout   time.Duration // zero means no timeout
	MaxOutput int           // bytes; zero means unlimited
}

// RunInput executes a command with the given argv and stdin. The first
// element is the binary name (resolved via PATH), and the rest are arguments.
// cwd is resolved relative to the workspace root and must remain within it.
// A nil stdin gives the process no input (the null device).
func (r *Runner) RunInput(ctx context.Context, argv []string, cwd string, stdin []byte) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.resolveDir(cwd)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = r.capture(&stdout)
	cmd.Stderr = r.capture(&stderr)

	exitCode, err := exitStatus(cmd.Run())
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", argv[0], err)
	}

	return &Result{
		RunID:     uuid.New().String(),
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: r.truncated(&stdout, &stderr),

		StdoutTruncated: r.truncated(&stdout),
	}, nil
}

// Pipe runs producer with its stdout connected to consumer's stdin.
//
// The producer owns the write end of the pipe. The consumer reads until end
// of stream or until it exits. Once the consumer is done the read end is
// closed, so a producer still writing gets EPIPE instead of blocking, and
// the producer is then waited on. Only the consumer's stdout and stderr and
// the producer's stderr are captured.
func (r *Runner) Pipe(ctx context.Context, producer, consumer []string, cwd string) (*PipeResult, error) {
	if len(producer) == 0 || len(consumer) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.resolveDir(cwd)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	prod := exec.CommandContext(ctx, producer[0], producer[1:]...)
	prod.Dir = dir
	prod.WaitDelay = waitDelay
	var prodStderr bytes.Buffer
	prod.Stderr = r.capture(&prodStderr)

	pipe, err := prod.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}

	cons := exec.CommandContext(ctx, consumer[0], consumer[1:]...)
	cons.Dir = dir
	cons.WaitDelay = waitDelay
	cons.Stdin = pipe
	var consStdout, consStderr bytes.Buffer
	cons.Stdout = r.capture(&consStdout)
	cons.Stderr = r.capture(&consStderr)

	if err := prod.Start(); err != nil {
		return nil, fmt.Errorf("executing %s: %w", producer[0], err)
	}

	consCode, consErr := exitStatus(cons.Run())
	_ = pipe.Close()
	prodCode, prodErr := exitStatus(prod.Wait())

	if consErr != nil {
		return nil, fmt.Errorf("executing %s: %w", consumer[0], consErr)
	}
	if prodErr != nil {
		return nil, fmt.Errorf("waiting for %s: %w", producer[0], prodErr)
	}

	runID := uuid.New().String()
	return &PipeResult{
		RunID: runID,
		Producer: &Result{
			RunID:     runID,
			ExitCode:  prodCode,
			Stderr:    prodStderr.Bytes(),
			Truncated: r.truncated(&prodStderr),
		},
		Consumer: &Result{
			RunID:     runID,
			ExitCode:  consCode,
			Stdout:    consStdout.Bytes(),
			Stderr:    consStderr.Bytes(),
			Truncated: r.truncated(&consStdout, &consStderr),
		},
	}, nil
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout > 0 {
		return context.WithTimeout(ctx, r.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) capture(buf *bytes.Buffer) io.Writer {
	if r.MaxOutput <= 0 {
		return buf
	}
	return &limitWriter{buf: buf, limit: r.MaxOutput}
}

func (r *Runner) truncated(bufs ...*bytes.Buffer) bool {
	if r.MaxOutput <= 0 {
		return false
	}
	for _, b := range bufs {
		if b.Len() >= r.MaxOutput {
			return true
		}
	}
	return false
}

// exitStatus converts the error from Run or Wait into an exit code. A process
// killed by a signal reports the negated signal number. Errors other than a
// non-zero exit (binary not found, I/O setup) are returned as is.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, err
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}

// resolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

package runner

// Result holds the output of a command execution.
type Result struct {
	RunID     string // unique identifier for this run
	ExitCode  int    // process exit code; negative signal number if killed
	Stdout    []byte // captured stdout (may be truncated)
	Stderr    []byte // captured stderr (may be truncated)
	Truncated bool   // true if output exceeded the size cap

	StdoutTruncated bool // stdout alone reached the size cap
}

// PipeResult holds the outcome of a producer | consumer pipeline.
type PipeResult struct {
	RunID    string
	Producer *Result // Stdout is always empty: it was consumed by the pipe
	Consumer *Result
}

// Success reports whether the pipeline as a whole succeeded. Only the
// consumer's exit status counts; a failing producer surfaces through it.
func (p *PipeResult) Success() bool {
	return p.Consumer.ExitCode == 0
}

// Package suite discovers test cases: a source file, an optional input file
// fed to the compiled program, and the expected output.
package suite

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Errors returned by Lookup for an invalid single-file invocation.
var (
	ErrNotSource       = errors.New("not a source file")
	ErrMissingSource   = errors.New("source file does not exist")
	ErrMissingExpected = errors.New("output file does not exist")
)

// Layout names the extensions that tie a case's files together.
type Layout struct {
	SourceExt string // e.g. ".sy"
	InputExt  string // e.g. ".in"
	OutputExt string // e.g. ".out"
}

// Case is one test case. Input is empty when the case has no input file.
type Case struct {
	Source   string `json:"source"`
	Input    string `json:"input,omitempty"`
	Expected string `json:"expected"`
}

// HasInput reports whether the case feeds an input file to the program.
func (c Case) HasInput() bool {
	return c.Input != ""
}

// CaseFor derives the case for a source path. The input path is kept only
// if that file exists.
func (l Layout) CaseFor(source string) Case {
	base := strings.TrimSuffix(source, l.SourceExt)
	c := Case{
		Source:   source,
		Input:    base + l.InputExt,
		Expected: base + l.OutputExt,
	}
	if _, err := os.Stat(c.Input); err != nil {
		c.Input = ""
	}
	return c
}

// Discover walks each directory recursively and returns a case for every
// file ending in the source extension. Directories are processed in the
// given order. Within a directory, its files come first in sorted-name order,
// then its subdirectories, also sorted. Symbolic links to directories are not
// followed. A missing directory contributes no cases and unreadable
// subdirectories are skipped.
func (l Layout) Discover(dirs []string) ([]Case, error) {
	var cases []Case
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		cases = l.walk(dir, cases)
	}
	return cases, nil
}

func (l Layout) walk(dir string, cases []Case) []Case {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("skipping %s: %v", dir, err)
		return cases
	}

	var subdirs []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if isDir(e, path) {
			if e.IsDir() {
				subdirs = append(subdirs, path)
			}
			continue
		}
		if strings.HasSuffix(e.Name(), l.SourceExt) {
			cases = append(cases, l.CaseFor(path))
		}
	}
	for _, sub := range subdirs {
		cases = l.walk(sub, cases)
	}
	return cases
}

// isDir reports whether e is a directory or a symbolic link to one.
func isDir(e fs.DirEntry, path string) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Lookup validates a single source file given on the command line and
// returns its case with absolute paths. Checks run in order: extension,
// existence, then the expected-output file.
func (l Layout) Lookup(source string) (Case, error) {
	if !strings.HasSuffix(source, l.SourceExt) {
		return Case{}, fmt.Errorf("input %q: %w (want %s)", source, ErrNotSource, l.SourceExt)
	}
	if _, err := os.Stat(source); err != nil {
		return Case{}, fmt.Errorf("file %q: %w", source, ErrMissingSource)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return Case{}, fmt.Errorf("resolving %q: %w", source, err)
	}
	c := l.CaseFor(abs)
	if _, err := os.Stat(c.Expected); err != nil {
		return Case{}, fmt.Errorf("output file %q: %w", c.Expected, ErrMissingExpected)
	}
	return c, nil
}

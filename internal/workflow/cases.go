package workflow

import (
	"path/filepath"
	"strings"

	"github.com/deixis/autotest/internal/suite"
)

// Cases returns the cases for a run: the single source file input when it is
// set, otherwise every case found under dirs. Relative paths resolve against
// Root. Scanned cases are reported relative to Root.
func (e *Engine) Cases(input string, dirs []string) ([]suite.Case, error) {
	layout := e.Layout()
	if input != "" {
		c, err := layout.Lookup(e.resolve(input))
		if err != nil {
			return nil, err
		}
		return []suite.Case{c}, nil
	}

	abs := make([]string, len(dirs))
	for i, d := range dirs {
		abs[i] = e.resolve(d)
	}
	cases, err := layout.Discover(abs)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		cases[i] = suite.Case{
			Source:   e.relative(cases[i].Source),
			Input:    e.relative(cases[i].Input),
			Expected: e.relative(cases[i].Expected),
		}
	}
	return cases, nil
}

func (e *Engine) relative(path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(e.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

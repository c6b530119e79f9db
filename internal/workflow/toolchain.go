package workflow

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolStatus describes whether one toolchain binary can be executed.
type ToolStatus struct {
	Role      string // compiler, cc or launcher
	Name      string // argv[0] as configured
	Path      string // resolved path, empty when unavailable
	Available bool
	Err       error // ErrToolUnavailable when not found
}

// ResolveTool returns the executable path for name. Names containing a path
// separator are taken relative to root; others are looked up on PATH.
func ResolveTool(root, name string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if _, err := exec.LookPath(path); err != nil {
			return "", NewErrToolUnavailable(name)
		}
		return path, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", NewErrToolUnavailable(name)
	}
	return path, nil
}

// ProbeToolchain resolves every binary the engine's toolchain invokes.
func (e *Engine) ProbeToolchain() []ToolStatus {
	type entry struct{ role, name string }
	var entries []entry
	if len(e.Toolchain.Compiler) > 0 {
		entries = append(entries, entry{"compiler", e.Toolchain.Compiler[0]})
	}
	if len(e.Toolchain.CC) > 0 {
		entries = append(entries, entry{"cc", e.Toolchain.CC[0]})
	}
	if len(e.Toolchain.Launcher) > 0 {
		entries = append(entries, entry{"launcher", e.Toolchain.Launcher[0]})
	}

	out := make([]ToolStatus, 0, len(entries))
	for _, en := range entries {
		st := ToolStatus{Role: en.role, Name: en.name}
		path, err := ResolveTool(e.Root, en.name)
		if err != nil {
			st.Err = err
		} else {
			st.Path = path
			st.Available = true
		}
		out = append(out, st)
	}
	return out
}

// knownTools maps toolchain binary names to install hints.
var knownTools = map[string]string{
	"clang":                   "apt install clang",
	"gcc":                     "apt install gcc",
	"arm-linux-gnueabihf-gcc": "apt install gcc-arm-linux-gnueabihf",
	"qemu-arm":                "apt install qemu-user",
	"qemu-arm-static":         "apt install qemu-user-static",
}

// ErrToolUnavailable is returned when a toolchain binary cannot be found.
// It includes install instructions when the tool is known.
type ErrToolUnavailable struct {
	Name string
	Hint string
}

func NewErrToolUnavailable(name string) ErrToolUnavailable {
	return ErrToolUnavailable{Name: name, Hint: knownTools[filepath.Base(name)]}
}

func (e ErrToolUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but not installed.", e.Name)
	if e.Hint != "" {
		fmt.Fprintf(&b, "\nInstall: %s", e.Hint)
	} else if strings.ContainsRune(e.Name, '/') {
		fmt.Fprintf(&b, "\nBuild it first or fix the path in the config file.")
	}
	return b.String()
}

// Package config loads and validates the optional .autotest.yaml file and
// turns it into the immutable toolchain used for a run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the harness configuration file.
const FileName = ".autotest.yaml"

// Default values for the harness configuration.
const (
	DefaultSourceExt = ".sy"
	DefaultInputExt  = ".in"
	DefaultOutputExt = ".out"
	DefaultExe       = "temp"
	DefaultOptLevel  = "-O2"
)

// exePlaceholder is replaced by the temporary executable name in cc argv.
const exePlaceholder = "{exe}"

// Default command lines, relative to the harness root.
var (
	DefaultDirs = []string{
		"sysyruntimelibrary/section1/functional_test",
		"sysyruntimelibrary/section1/performance_test",
		"sysyruntimelibrary/section2/performance_test",
	}
	DefaultCompiler      = []string{"../../build/mmcc"}
	DefaultCrossCompiler = []string{"../../build/mmcc", "-S"}
	DefaultCC            = []string{"clang", "-xc", "-", "sysy.c", "-O3", "-Werror", "-o", exePlaceholder}
	DefaultCrossCC       = []string{
		"arm-linux-gnueabihf-gcc", "-x", "assembler", "-", "-O3", "-Werror", "-o", exePlaceholder,
		"-static", "-Lsysyruntimelibrary", "-lsysy",
	}
)

// Color modes.
const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

// Config holds the parsed .autotest.yaml configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int            `yaml:"version"`
	Dirs         []string       `yaml:"dirs"`
	RawSourceExt string         `yaml:"source_ext"`
	RawExe       string         `yaml:"exe"`
	RawOptLevel  string         `yaml:"opt_level"`
	RawTimeout   string         `yaml:"timeout"`    // e.g. "30s"; empty means no timeout
	RawMaxOutput int            `yaml:"max_output"` // bytes; 0 means unlimited
	Compiler     CommandVariant `yaml:"compiler"`
	CC           CommandVariant `yaml:"cc"`
	Launcher     CommandVariant `yaml:"launcher"` // argv prefix for the produced executable
	ReportsDir   string         `yaml:"reports_dir"`
	Color        string         `yaml:"color"` // always, auto, never
}

// CommandVariant holds the native and cross-compilation forms of a command.
type CommandVariant struct {
	Native []string `yaml:"native"`
	Cross  []string `yaml:"cross"`
}

// ScanDirs returns the configured test directories or the defaults.
func (c *Config) ScanDirs() []string {
	if len(c.Dirs) > 0 {
		return c.Dirs
	}
	return DefaultDirs
}

// SourceExt returns the source file extension, always with a leading dot.
func (c *Config) SourceExt() string {
	ext := c.RawSourceExt
	if ext == "" {
		return DefaultSourceExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Exe returns the temporary executable name.
func (c *Config) Exe() string {
	if c.RawExe != "" {
		return c.RawExe
	}
	return DefaultExe
}

// OptLevel returns the optimization flag passed to the compiler.
func (c *Config) OptLevel() string {
	if c.RawOptLevel != "" {
		return c.RawOptLevel
	}
	return DefaultOptLevel
}

// Timeout returns the per-command timeout. Zero means none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the capture cap for subprocess output. Zero means none.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// ColorMode returns the configured colour mode, falling back to always.
func (c *Config) ColorMode() string {
	switch c.Color {
	case ColorAuto, ColorNever:
		return c.Color
	}
	return ColorAlways
}

// Toolchain is the fixed set of commands used for one run.
type Toolchain struct {
	Cross     bool
	Compiler  []string // base argv; opt level and source path are appended
	OptLevel  string
	CC        []string // reads target code from stdin and writes Exe
	Launcher  []string // optional argv prefix for running Exe
	Exe       string   // path of the temporary executable, relative to the root
	SourceExt string
	InputExt  string
	OutputExt string
}

// Mode returns "cross" or "native".
func (t Toolchain) Mode() string {
	if t.Cross {
		return "cross"
	}
	return "native"
}

// CompileArgv returns the full compiler argv for a source file.
func (t Toolchain) CompileArgv(source string) []string {
	argv := make([]string, 0, len(t.Compiler)+2)
	argv = append(argv, t.Compiler...)
	return append(argv, t.OptLevel, source)
}

// RunArgv returns the argv that executes the produced binary at exePath.
func (t Toolchain) RunArgv(exePath string) []string {
	argv := make([]string, 0, len(t.Launcher)+1)
	argv = append(argv, t.Launcher...)
	return append(argv, exePath)
}

// Toolchain selects the native or cross command set. The returned value
// shares no slices with c.
func (c *Config) Toolchain(cross bool) Toolchain {
	compiler, cc, launcher := c.Compiler.Native, c.CC.Native, c.Launcher.Native
	defCompiler, defCC := DefaultCompiler, DefaultCC
	if cross {
		compiler, cc, launcher = c.Compiler.Cross, c.CC.Cross, c.Launcher.Cross
		defCompiler, defCC = DefaultCrossCompiler, DefaultCrossCC
	}
	if len(compiler) == 0 {
		compiler = defCompiler
	}
	if len(cc) == 0 {
		cc = defCC
	}

	exe := c.Exe()
	expanded := make([]string, len(cc))
	for i, arg := range cc {
		expanded[i] = strings.ReplaceAll(arg, exePlaceholder, exe)
	}

	return Toolchain{
		Cross:     cross,
		Compiler:  append([]string(nil), compiler...),
		OptLevel:  c.OptLevel(),
		CC:        expanded,
		Launcher:  append([]string(nil), launcher...),
		Exe:       exe,
		SourceExt: c.SourceExt(),
		InputExt:  DefaultInputExt,
		OutputExt: DefaultOutputExt,
	}
}

// Validate reports configuration values that cannot produce a working run.
func (c *Config) Validate() error {
	if c.Version > 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	switch c.Color {
	case "", ColorAlways, ColorAuto, ColorNever:
	default:
		return fmt.Errorf("invalid color mode %q", c.Color)
	}
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.RawTimeout, err)
		}
	}
	if strings.ContainsAny(c.Exe(), `/\`) {
		return fmt.Errorf("exe %q must be a plain file name", c.Exe())
	}
	return nil
}

// LoadResult holds the parsed config and the harness root directory.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .autotest.yaml; falls back to fallback
	Path   string // config file path, empty when defaults are used
}

// Load reads .autotest.yaml, discovered by walking upward from dir.
// When no file exists, a default Config is returned with Root set to fallback.
func Load(dir, fallback string) (*LoadResult, error) {
	root, err := findRoot(dir)
	if err != nil {
		abs, absErr := filepath.Abs(fallback)
		if absErr != nil {
			return nil, fmt.Errorf("resolving harness root: %w", absErr)
		}
		return &LoadResult{Config: &Config{}, Root: abs}, nil
	}
	return LoadFile(filepath.Join(root, FileName))
}

// LoadFile parses a specific configuration file; its directory becomes the root.
// A missing file yields defaults.
func LoadFile(path string) (*LoadResult, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	root := filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, Root: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, Root: root, Path: path}, nil
}

// findRoot walks upward from dir looking for a directory containing FileName.
func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}

// ExecutableDir returns the directory of the running binary with symlinks
// resolved. It is the default harness root.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolving executable: %w", err)
	}
	return filepath.Dir(exe), nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// TaskFile is the on-disk shape of one task definition, one YAML document
// per file in the configuration directory. It mirrors the original
// implementation's core/src/config/yaml.rs field set, adapted to Go's YAML
// struct-tag idiom the way the teacher tags its own config structs
// (ClusterConfig in internal/cluster/worker.go uses the equivalent JSON
// pattern).
type TaskFile struct {
	Name    string   `yaml:"name"`
	Cmd     string   `yaml:"cmd,omitempty"`     // multiline string, one CommandLine per line
	Builtin string   `yaml:"builtin,omitempty"` // name of a registered builtin, or empty
	With    []string `yaml:"with,omitempty"`
	After   []string `yaml:"after,omitempty"`
	Before  []string `yaml:"before,omitempty"`
	Respawn string   `yaml:"respawn,omitempty"` // "no" | "retry" | "retry(N)"
	Group   string   `yaml:"group,omitempty"`
	Provides []string `yaml:"provides,omitempty"`

	ShutdownTimeoutSec int `yaml:"shutdown_timeout,omitempty"`
}

// ParseError is returned for a single malformed config file; the caller
// (LoadDir) treats it as non-fatal and skips the offending file.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Builtins is the registry of named in-process routines a TaskFile's
// "builtin" field may reference. internal/builtin populates this at
// startup before LoadDir runs.
type Builtins map[string]BuiltinFunc

// LoadResult is the outcome of reading a configuration directory: the
// surviving TaskConfigs, the raw "before" edges keyed by source task name
// (resolved into After edges by ordering.ResolveBefore, which needs the
// full set of configs to know which targets exist), and any per-file parse
// warnings.
type LoadResult struct {
	Configs  []TaskConfig
	Before   map[string][]string
	Warnings []error
}

// LoadDir reads every regular file in dir as a YAML TaskFile and normalizes
// the set against builtins via LoadFiles.
func LoadDir(dir string, builtins Builtins) LoadResult {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return LoadResult{Warnings: []error{fmt.Errorf("read config dir %s: %w", dir, err)}}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var files []TaskFile
	var warnings []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, &ParseError{File: path, Err: err})
			continue
		}
		var tf TaskFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			warnings = append(warnings, &ParseError{File: path, Err: err})
			continue
		}
		files = append(files, tf)
	}

	result := LoadFiles(files, builtins)
	result.Warnings = append(warnings, result.Warnings...)
	return result
}

// LoadFiles normalizes an already-parsed set of TaskFile against builtins.
// It is the shared path between LoadDir (reading text YAML) and the
// compiled-cache loader (reading a pre-parsed TaskFile list), so both
// produce identical TaskConfig/Before output from the same normalization
// rules.
func LoadFiles(files []TaskFile, builtins Builtins) LoadResult {
	result := LoadResult{Before: map[string][]string{}}
	for _, tf := range files {
		cfg, err := normalize(tf, builtins)
		if err != nil {
			result.Warnings = append(result.Warnings, &ParseError{File: tf.Name, Err: err})
			continue
		}
		if len(tf.Before) > 0 {
			result.Before[tf.Name] = tf.Before
		}
		result.Configs = append(result.Configs, cfg)
	}
	return result
}

func normalize(tf TaskFile, builtins Builtins) (TaskConfig, error) {
	if strings.TrimSpace(tf.Name) == "" {
		return TaskConfig{}, fmt.Errorf("task has no name")
	}
	if IsReservedName(tf.Name) {
		return TaskConfig{}, fmt.Errorf("task name %q uses a reserved marker prefix", tf.Name)
	}

	cfg := TaskConfig{
		Name:     tf.Name,
		With:     tf.With,
		After:    append([]string(nil), tf.After...),
		Group:    tf.Group,
		Provides: tf.Provides,
	}
	if tf.ShutdownTimeoutSec > 0 {
		cfg.ShutdownTimeout = time.Duration(tf.ShutdownTimeoutSec) * time.Second
	}

	respawn, err := ParseRespawn(tf.Respawn)
	if err != nil {
		return TaskConfig{}, err
	}
	cfg.Respawn = respawn

	switch {
	case tf.Builtin != "":
		fn, ok := builtins[tf.Builtin]
		if !ok {
			return TaskConfig{}, fmt.Errorf("unknown builtin %q", tf.Builtin)
		}
		cfg.Payload = Payload{Kind: PayloadBuiltin, Builtin: fn, BuiltinName: tf.Builtin}
	case strings.TrimSpace(tf.Cmd) == "":
		cfg.Payload = Payload{Kind: PayloadMarker}
	default:
		lines, err := ParseCommandLines(tf.Cmd)
		if err != nil {
			return TaskConfig{}, err
		}
		cfg.Payload = Payload{Kind: PayloadService, Service: lines}
	}

	return cfg, nil
}

// ParseRespawn parses the respawn policy grammar: "no", "retry" (unlimited),
// or "retry(N)".
func ParseRespawn(s string) (Respawn, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "no":
		return Respawn{Kind: RespawnNo}, nil
	case s == "retry":
		return Respawn{Kind: RespawnRetry, Max: 0}, nil
	case strings.HasPrefix(s, "retry(") && strings.HasSuffix(s, ")"):
		inner := s[len("retry(") : len(s)-1]
		var n int
		if _, err := fmt.Sscanf(inner, "%d", &n); err != nil || n < 0 {
			return Respawn{}, fmt.Errorf("invalid respawn policy %q", s)
		}
		return Respawn{Kind: RespawnRetry, Max: n}, nil
	default:
		return Respawn{}, fmt.Errorf("invalid respawn policy %q", s)
	}
}

// ParseCommandLines splits a multiline command string into one CommandLine
// per non-blank line, per the original grammar in
// core/src/command_line/complex.rs: optional ':' (ignore-env) then optional
// '-' (ignore-return) prefix, then POSIX shell word-splitting.
func ParseCommandLines(s string) ([]CommandLine, error) {
	var out []CommandLine
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cl, err := ParseCommandLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, nil
}

// ParseCommandLine parses a single command-line step.
func ParseCommandLine(line string) (CommandLine, error) {
	raw := line
	ignoreEnv := false
	if strings.HasPrefix(line, ":") {
		ignoreEnv = true
		line = line[1:]
	}
	ignoreReturn := false
	if strings.HasPrefix(line, "-") {
		ignoreReturn = true
		line = line[1:]
	}
	if strings.TrimSpace(line) == "" {
		return CommandLine{Raw: raw, IgnoreEnv: ignoreEnv, IgnoreReturn: ignoreReturn}, nil
	}
	args, err := shlex.Split(line)
	if err != nil {
		return CommandLine{}, fmt.Errorf("invalid command %q: %w", raw, err)
	}
	return CommandLine{Raw: raw, IgnoreEnv: ignoreEnv, IgnoreReturn: ignoreReturn, Args: args}, nil
}

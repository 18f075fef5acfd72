// Package builtin assembles the registry of in-process routines that a
// TaskConfig's "builtin" field may reference, the same role the original
// implementation's builtin_fn! macro and core/src/builtin module play:
// a fixed set of names the configuration can depend on like any other
// task, resolved in-process instead of by exec.
package builtin

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/tinythings/alfad/internal/config"
	"github.com/tinythings/alfad/internal/control"
)

// DefaultCtlPipePath is where the control-plane FIFO lives.
var DefaultCtlPipePath = filepath.Join(config.DirRun, config.CtlPipeName)

// Registry builds the full builtin set: the control-pipe pair (ctl::create,
// ctl::daemon) plus any future in-process routines. Config files reference
// a builtin by name and get After/With edges to it exactly like any
// service task — ctl::daemon's dependency on ctl::create is declared by
// the task files that use them, not hardcoded here. The registry adds no
// tasks by itself: the control plane runs only if the configuration
// directory holds task files referencing these builtins.
func Registry(pipePath string, log zerolog.Logger, executor *control.Executor) config.Builtins {
	return control.PipeBuiltins(pipePath, log, executor)
}

// Names lists every builtin name the registry recognizes, regardless of
// pipe path or executor wiring. alfad-compile uses this to validate a
// "builtin: ..." reference in a task file without needing a live control
// plane to hand it a real Registry.
func Names() []string {
	return []string{"ctl::create", "ctl::daemon"}
}

// ValidationRegistry returns a Builtins map suitable only for compile-time
// name validation: every entry is a no-op. Running it would do nothing.
func ValidationRegistry() config.Builtins {
	noop := func(ctx config.BuiltinContext) error { return nil }
	out := make(config.Builtins, len(Names()))
	for _, name := range Names() {
		out[name] = noop
	}
	return out
}

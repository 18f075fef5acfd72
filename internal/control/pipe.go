package control

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinythings/alfad/internal/config"
)

// PipeBuiltins returns the two builtin tasks that together form the
// control-plane listener: one to create the run directory and pipe, one to
// block reading commands off it forever. Splitting pipe creation from the
// read loop, with the loop's task file declaring an "after" edge on the
// create task,
// mirrors the original's builtin::ctl::create / builtin::ctl::daemon split
// so the dependency graph — not an init-order convention — is what
// guarantees the pipe exists before anything tries to read it.
func PipeBuiltins(path string, log zerolog.Logger, executor *Executor) config.Builtins {
	return config.Builtins{
		"ctl::create": func(ctx config.BuiltinContext) error {
			return createPipe(path)
		},
		ctlDaemonBuiltinName: func(ctx config.BuiltinContext) error {
			return serveCtlPipe(ctx, path, log, executor)
		},
	}
}

// serveCtlPipe repeatedly opens the control pipe and applies every line it
// receives as an Action, reopening whenever the read loop ends (a read
// error, or EOF where the platform's pipe produces one; the unix FIFO is
// opened read-write and does not) until the task is asked to stop. Repeated open failures are throttled by
// a circuit breaker rather than busy-looping.
func serveCtlPipe(ctx config.BuiltinContext, path string, log zerolog.Logger, executor *Executor) error {
	breaker := newCircuitBreaker(5, 10*time.Second)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !breaker.Allow() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
				continue
			}
		}

		f, err := openPipeForRead(path)
		if err != nil {
			breaker.RecordFailure()
			log.Error().Err(err).Str("path", path).Msg("could not open control pipe")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		breaker.RecordSuccess()

		readLines(ctx, f, log, executor)
		_ = f.Close()
	}
}

func readLines(ctx config.BuiltinContext, f *os.File, log zerolog.Logger, executor *Executor) {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		action, err := ParseAction(line)
		if err != nil {
			log.Error().Err(err).Str("line", line).Msg("malformed control command")
			continue
		}
		if err := executor.Apply(action); err != nil {
			log.Error().Err(err).Str("line", line).Msg("control command failed")
		}
	}
}

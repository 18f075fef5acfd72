// Package payload runs the three Payload kinds a task may carry: a Service
// (a sequence of child-process command lines), a Builtin (an in-process
// routine), or a Marker (nothing — it resolves as soon as its own
// dependencies do).
//
// The Service executor is grounded in the teacher's
// internal/cluster.Worker.Spawn/Kill: stdout/stderr piped through the
// logger, a reaping goroutine driving cmd.Wait(), and a graceful-signal-
// then-timeout-then-SIGKILL shutdown. Environment-variable expansion and
// the ignore-env/ignore-return flags are grounded in the original
// implementation's core/src/command_line/complex.rs.
package payload

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinythings/alfad/internal/config"
	"github.com/tinythings/alfad/internal/task"
)

// DefaultShutdownTimeout is used when a task does not set its own.
const DefaultShutdownTimeout = 5 * time.Second

// Service executes a task's Service payload: its command lines, in order.
type Service struct {
	log zerolog.Logger
}

func NewService(log zerolog.Logger) *Service {
	return &Service{log: log}
}

// Run executes every CommandLine in sequence, advancing ctx's state to
// Running(step) for each. It returns the ConcludeReason for the whole
// payload: the first step that fails (and isn't ignore-return) determines
// the outcome; if every step succeeds the payload concludes Done.
//
// Run returns when the sequence concludes or when ctx's Terminating signal
// fires, whichever comes first — a live step is sent SIGTERM (then SIGKILL
// after the task's ShutdownTimeout) and the in-flight exit is reported as
// ConcludeKilled.
func (s *Service) Run(ctx *task.Context) task.ConcludeReason {
	lines := ctx.Config.Payload.Service
	if len(lines) == 0 {
		return task.ConcludeDone
	}

	timeout := ctx.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	for i, line := range lines {
		if line.Empty() {
			// A bare flag with no program is an automatic pass-through step.
			continue
		}
		reason, err := s.runStep(ctx, i, line, timeout)
		if err != nil {
			s.log.Error().Err(err).Str("task", ctx.Config.Name).Int("step", i).Msg("command step failed to start")
			return task.ConcludeError
		}
		if reason != task.ConcludeDone {
			return reason
		}
	}
	return task.ConcludeDone
}

func (s *Service) runStep(ctx *task.Context, step int, line config.CommandLine, timeout time.Duration) (task.ConcludeReason, error) {
	args, err := expandArgs(line.Args)
	if err != nil {
		return task.ConcludeError, fmt.Errorf("expand %q: %w", line.Raw, err)
	}
	if len(args) == 0 {
		return task.ConcludeError, fmt.Errorf("empty command %q", line.Raw)
	}

	cmd := exec.Command(args[0], args[1:]...)
	if line.IgnoreEnv {
		cmd.Env = []string{}
	}
	applyProcAttrs(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return task.ConcludeError, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return task.ConcludeError, err
	}

	if err := cmd.Start(); err != nil {
		return task.ConcludeError, fmt.Errorf("start %q: %w", line.Raw, err)
	}

	pid := cmd.Process.Pid
	ctx.SetRunning(pid, step)

	logger := s.log.With().Str("task", ctx.Config.Name).Int("pid", pid).Logger()
	go streamLines(stdout, logger, zerolog.InfoLevel)
	go streamLines(stderr, logger, zerolog.WarnLevel)

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		return exitReason(err, line.IgnoreReturn), nil
	case <-ctx.Done():
		killGracefully(cmd, timeout, waitDone)
		return task.ConcludeKilled, nil
	}
}

func exitReason(waitErr error, ignoreReturn bool) task.ConcludeReason {
	if waitErr == nil || ignoreReturn {
		return task.ConcludeDone
	}
	return task.ConcludeFailed
}

// killGracefully sends the platform graceful-stop signal, waits up to
// timeout for cmd.Wait() to deliver, and escalates to Kill() if it doesn't.
func killGracefully(cmd *exec.Cmd, timeout time.Duration, waitDone <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = sendGracefulSignal(cmd)
	select {
	case <-waitDone:
	case <-time.After(timeout):
		_ = killProcessGroup(cmd)
		<-waitDone
	}
}

// streamLines logs one event per line at the given level. zerolog.Event is
// single-use — Msg returns it to a sync.Pool — so a fresh event must come
// from logger.WithLevel(level) on every line rather than reusing one Event
// across the scan loop.
func streamLines(r io.Reader, logger zerolog.Logger, level zerolog.Level) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	for scanner.Scan() {
		logger.WithLevel(level).Msg(scanner.Text())
	}
}

// RunMarker resolves a marker task immediately: markers have nothing to
// execute, they are pure synchronization points whose edges are their only
// behavior.
func RunMarker(ctx *task.Context) task.ConcludeReason {
	ctx.SetRunning(0, 0)
	return task.ConcludeDone
}

// RunBuiltin invokes the task's in-process routine with ctx itself as its
// BuiltinContext (task.Context already implements Name()/Done()).
func RunBuiltin(_ context.Context, ctx *task.Context) task.ConcludeReason {
	ctx.SetRunning(0, 0)
	fn := ctx.Config.Payload.Builtin
	if fn == nil {
		return task.ConcludeError
	}
	if err := fn(ctx); err != nil {
		return task.ConcludeFailed
	}
	return task.ConcludeDone
}

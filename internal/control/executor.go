package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tinythings/alfad/internal/task"
)

// killAllTimeout bounds how long a single task is given to conclude during
// a system kill-all before it is abandoned and the reboot proceeds anyway.
const killAllTimeout = 1000 * time.Millisecond

// ctlDaemonBuiltinName identifies the control-plane's own listener task,
// which a system action's kill-all phase must skip — killing it would sever
// the pipe serveCtlPipe is currently reading its own shutdown request from.
const ctlDaemonBuiltinName = "ctl::daemon"

// Relauncher is the subset of *supervisor.Supervisor the executor needs,
// kept as an interface here to avoid internal/control importing
// internal/supervisor (which already imports internal/task and
// internal/payload — this keeps the dependency graph a DAG rather than
// threading control through supervisor's constructor).
type Relauncher interface {
	Relaunch(name string, force bool) bool
}

// Reboot performs (or simulates) a system power transition.
type Reboot interface {
	Poweroff() error
	Restart() error
	Halt() error
}

// Executor applies parsed Actions to a task map. It is constructed in two
// phases: NewExecutor before the task map exists (so the ctl::daemon
// builtin, which is registered before LoadDir runs, has something to
// close over), then Bind once the map, supervisor, and reboot controller
// are all available. Apply is never called before Bind completes — the
// ctl::daemon builtin only starts reading the pipe once the supervisor
// starts driving tasks, which happens after Bind.
type Executor struct {
	log    zerolog.Logger
	tasks  *task.Map
	sup    Relauncher
	reboot Reboot
}

func NewExecutor(log zerolog.Logger) *Executor {
	return &Executor{log: log}
}

// Bind supplies the backends Apply needs. Calling Apply before Bind is a
// programming error; Apply returns an error rather than silently no-opping.
func (e *Executor) Bind(tasks *task.Map, sup Relauncher, reboot Reboot) {
	e.tasks, e.sup, e.reboot = tasks, sup, reboot
}

// Apply performs one Action, returning an error for anything that couldn't
// be carried out (unknown task, signal failure). A no-op (e.g. killing a
// task that has already concluded) is not an error.
func (e *Executor) Apply(a Action) error {
	if e.tasks == nil {
		return fmt.Errorf("control executor not yet bound to a running supervisor")
	}
	correlationID := uuid.New().String()
	e.log.Info().Str("action", a.String()).Str("correlation_id", correlationID).Msg("control action received")

	if a.Verb == VerbSystem {
		e.killAll()
		switch a.System {
		case SystemPoweroff:
			return e.reboot.Poweroff()
		case SystemRestart:
			return e.reboot.Restart()
		case SystemHalt:
			return e.reboot.Halt()
		}
		return fmt.Errorf("unhandled system command %s", a.System)
	}

	c, ok := e.tasks.Get(a.Task)
	if !ok {
		return fmt.Errorf("task %q does not exist", a.Task)
	}

	switch a.Verb {
	case VerbKill:
		return signalTask(c, a.Force)
	case VerbDeactivate:
		c.Deactivate()
		return signalTask(c, a.Force)
	case VerbRestart:
		c.RequestRestart()
		switch c.State() {
		case task.StateConcluded:
			e.sup.Relaunch(a.Task, a.Force)
			return nil
		case task.StateWaiting:
			// Never reached Running at all — a plain restart has nothing to
			// kill, but force-restart still bypasses the stuck dependency
			// wait exactly like force-start does below.
			if a.Force {
				e.sup.Relaunch(a.Task, true)
			}
			return nil
		default:
			return signalTask(c, a.Force)
		}
	case VerbStart:
		switch c.State() {
		case task.StateConcluded:
			if !e.sup.Relaunch(a.Task, a.Force) {
				return fmt.Errorf("could not restart task %q", a.Task)
			}
			return nil
		case task.StateWaiting:
			// Spec §8 scenario 5: a task stuck in a dependency cycle sits in
			// Waiting forever; force-start is the only way to progress it.
			if a.Force {
				e.sup.Relaunch(a.Task, true)
			}
			return nil
		default:
			// Already running, or hasn't reached a stable state yet;
			// nothing to do. Spec §8: force-start against a Running task
			// is a no-op, not a second spawn.
			return nil
		}
	default:
		return fmt.Errorf("unhandled action verb %s", a.Verb)
	}
}

// killAll raises Terminating on every task except the control-plane's own
// listener, giving each up to killAllTimeout to reach Concluded before
// moving on. A task still alive when its budget expires is simply
// abandoned — the reboot syscall proceeds regardless, per spec.
func (e *Executor) killAll() {
	var wg sync.WaitGroup
	for _, c := range e.tasks.All() {
		if c.Config.Payload.BuiltinName == ctlDaemonBuiltinName {
			continue
		}
		if c.State() == task.StateConcluded {
			continue
		}
		wg.Add(1)
		c := c
		go func() {
			defer wg.Done()
			c.SetTerminating()
			ctx, cancel := context.WithTimeout(context.Background(), killAllTimeout)
			defer cancel()
			_ = c.WaitUntil(ctx, func(c *task.Context) bool { return c.State() == task.StateConcluded })
		}()
	}
	wg.Wait()
}

// signalTask raises Terminating on c — spec §4.5: "kill" and "deactivate"
// both move state to Terminating before the child (if any) actually exits —
// then sends SIGTERM (or SIGKILL if force) to its live process. Marker and
// builtin payloads have no PID; SetTerminating still applies (a Builtin
// routine watches ctx.Done()), but there is nothing left to signal. A task
// that has already concluded is left as it is.
func signalTask(c *task.Context, force bool) error {
	if c.State() == task.StateConcluded {
		return nil
	}
	c.SetTerminating()
	pid := c.PID()
	if pid == 0 {
		return nil
	}
	return signalPID(pid, force)
}

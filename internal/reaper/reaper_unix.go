//go:build !windows

// Package reaper runs the PID-1 zombie-reaping loop: processes reparented
// to init when their original parent exits would otherwise never be
// wait()ed and would pile up as zombies. Service children spawned directly
// by internal/payload are normally reaped by their own cmd.Wait()
// goroutine; this loop waits on any child, so it collects the rest and can
// occasionally win the race for one of those (see reapAvailable).
//
// Grounded in the original implementation's core/init.rs SIGCHLD handling
// (part of its fixed SIGS signal set) and the teacher's pattern of a
// dedicated goroutine per concern rather than a central select loop.
package reaper

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// observedSignals are the non-SIGCHLD members of the original's fixed
// signal set: PID 1 has no parent to forward them to and no default
// disposition worth honoring, so they are only logged, never acted on.
var observedSignals = []os.Signal{
	unix.SIGABRT, unix.SIGTERM, unix.SIGHUP, unix.SIGPIPE, unix.SIGTSTP,
}

// Run reaps exited children until ctx is canceled. It should only be
// started when running as PID 1 (the init binary); a non-init invocation
// has no orphans to collect and no business reaping other processes'
// children.
func Run(ctx context.Context, log zerolog.Logger) {
	sigchld := make(chan os.Signal, 16)
	signal.Notify(sigchld, unix.SIGCHLD)
	defer signal.Stop(sigchld)

	observed := make(chan os.Signal, 16)
	signal.Notify(observed, observedSignals...)
	defer signal.Stop(observed)

	reapAvailable(log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigchld:
			reapAvailable(log)
		case sig := <-observed:
			log.Debug().Str("signal", sig.String()).Msg("signal observed by reaper")
		}
	}
}

// reapAvailable drains every exited, unwaited child without blocking.
// Children still tracked by an active *exec.Cmd may occasionally lose this
// race and see their own Wait() fail with ECHILD; this is an accepted
// tradeoff of using os/exec for supervised children while also acting as
// PID 1 in the same process.
func reapAvailable(log zerolog.Logger) {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if pid <= 0 || err != nil {
			if err != nil && err != unix.ECHILD {
				log.Debug().Err(err).Msg("wait4 error in reaper loop")
			}
			return
		}
		log.Debug().Int("pid", pid).Int("status", status.ExitStatus()).Msg("reaped orphaned child")
	}
}

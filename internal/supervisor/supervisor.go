// Package supervisor drives every task context through its lifecycle: wait
// for dependencies, run the payload, respawn or conclude, repeat. Each task
// gets its own driver goroutine; coordination between them is entirely
// through the task.Context state machine and its generation-broadcast
// WaitUntil, never through a shared scheduler loop.
//
// Grounded in the teacher's internal/cluster.Manager (one goroutine per
// worker, a monitor loop observing state, centrally triggered shutdown) and
// the original implementation's core/src/task.rs drive() state machine,
// translated from poll-driven Futures to blocking goroutines.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tinythings/alfad/internal/config"
	"github.com/tinythings/alfad/internal/payload"
	"github.com/tinythings/alfad/internal/task"
)

// Supervisor owns the context map for one boot and drives every task to
// completion or indefinite respawn.
type Supervisor struct {
	log     zerolog.Logger
	tasks   *task.Map
	service *payload.Service

	wg     sync.WaitGroup
	mu     sync.Mutex
	runCtx context.Context
}

// New builds a Supervisor for the given (already ordered, marker-
// synthesized) task map.
func New(log zerolog.Logger, tasks *task.Map) *Supervisor {
	return &Supervisor{
		log:     log,
		tasks:   tasks,
		service: payload.NewService(log),
	}
}

// Run starts a driver goroutine per task and blocks until ctx is canceled,
// at which point it raises Terminating on every task and waits for the
// drivers to return, for at most the grace period Shutdown allows.
func (s *Supervisor) Run(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	for _, c := range s.tasks.All() {
		s.launch(ctx, c, false)
	}
	<-ctx.Done()
	s.Shutdown(context.Background())
}

func (s *Supervisor) launch(ctx context.Context, c *task.Context, skipDeps bool) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drive(ctx, c, skipDeps)
	}()
}

// Relaunch restarts a task — the control plane's "start"/"restart" verbs.
// force implements spec §4.5's bypass: the respawn counter is reset and,
// where possible, dependency waits are skipped so a task stuck in a
// dependency cycle can still be kicked into Running(0) (spec §8 scenario 5).
//
// Two cases, depending on whether the task's original driver goroutine has
// already returned:
//   - Concluded (driver returned): a fresh driver goroutine is launched,
//     optionally skipping its dependency wait entirely.
//   - Waiting (driver still alive, parked in awaitDependencies): no second
//     goroutine is started — that would race the live one over the same
//     context. Instead the live driver is woken via RequestSkipDependencyWait
//     and abandons whichever edge it was blocked on.
//
// Any other state (Running, Terminating, Created) has no sensible forced
// restart target and is rejected.
func (s *Supervisor) Relaunch(name string, force bool) bool {
	c, ok := s.tasks.Get(name)
	if !ok {
		return false
	}
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return false
	}

	switch c.State() {
	case task.StateConcluded:
		c.Reactivate()
		if force {
			c.ResetAttempts()
		}
		c.SetWaiting()
		s.launch(ctx, c, force)
		return true
	case task.StateWaiting:
		if !force {
			return false
		}
		c.Reactivate()
		c.ResetAttempts()
		c.RequestSkipDependencyWait()
		return true
	default:
		return false
	}
}

// Tasks exposes the underlying context map for the control plane and CLI to
// query task state without reaching into supervisor internals.
func (s *Supervisor) Tasks() *task.Map { return s.tasks }

// Wait blocks until every driver goroutine has returned. Callers that want
// to observe full shutdown after canceling Run's context should call this
// afterward.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// drive runs one task's full lifecycle: wait for dependencies, run the
// payload, and respawn according to policy until the task concludes for
// good or the supervisor shuts down.
func (s *Supervisor) drive(ctx context.Context, c *task.Context, skipDeps bool) {
	name := c.Config.Name
	log := s.log.With().Str("task", name).Logger()

	c.SetWaiting()
	if skipDeps {
		log.Info().Msg("forced start bypassing dependency wait")
	} else {
		deactivated, err := s.awaitDependencies(ctx, c)
		if err != nil {
			log.Debug().Err(err).Msg("task never started: dependencies unresolved at shutdown")
			c.SetConcluded(task.ConcludeKilled)
			return
		}
		if deactivated {
			log.Info().Msg("dependency deactivated, propagating")
			c.Deactivate()
			c.SetConcluded(task.ConcludeDeactivated)
			return
		}
	}

	for {
		attempt := c.BeginAttempt()
		runID := uuid.New().String()
		log := log.With().Str("run_id", runID).Logger()
		log.Info().Int("attempt", attempt).Msg("task starting")

		reason := s.runPayload(ctx, c)
		if c.IsDeactivated() {
			reason = task.ConcludeDeactivated
		}
		c.SetConcluded(reason)
		log.Info().Str("reason", reason.String()).Int("attempt", attempt).Msg("task concluded")

		if ctx.Err() != nil {
			return
		}
		if c.TakeForceRespawn() {
			c.SetWaiting()
			continue
		}
		if c.IsDeactivated() {
			log.Info().Msg("task deactivated, not respawning")
			return
		}
		// attempt counts runs (1 for the first); the policy caps re-entries,
		// so the number of respawns already made is attempt-1.
		if !shouldRespawn(c.Config.Respawn, reason, attempt-1) {
			return
		}
		c.SetWaiting()
	}
}

func shouldRespawn(r config.Respawn, reason task.ConcludeReason, attempt int) bool {
	if r.Kind != config.RespawnRetry {
		return false
	}
	if reason == task.ConcludeDone {
		// A clean exit is not "crashing" in the sense respawn policies guard
		// against once dependents have already moved on; the original only
		// respawns on Failed/Error/Killed conclusions.
		return false
	}
	return r.Unlimited() || attempt < r.Max
}

func (s *Supervisor) runPayload(ctx context.Context, c *task.Context) task.ConcludeReason {
	switch c.Config.Payload.Kind {
	case config.PayloadMarker:
		return payload.RunMarker(c)
	case config.PayloadBuiltin:
		return payload.RunBuiltin(ctx, c)
	default:
		return s.service.Run(c)
	}
}

// awaitDependencies blocks until every With and After edge of c is
// satisfied, or ctx is canceled, or a force-start (RequestSkipDependencyWait)
// abandons the wait. An edge to a name absent from the context map is logged
// once and then waited on like an edge that never resolves: the task stays
// in Waiting until shutdown or a force-start, rather than the supervisor
// refusing to boot. If any dependency settles
// into Concluded(Deactivated), that deactivation propagates: awaitDependencies
// returns immediately with deactivated=true instead of waiting on the
// remaining edges.
func (s *Supervisor) awaitDependencies(ctx context.Context, c *task.Context) (deactivated bool, err error) {
	waitCtx, cancel := withSkip(ctx, c.SkipWait())
	defer cancel()

	for _, name := range c.Config.With {
		dep, ok := s.tasks.Get(name)
		if !ok {
			s.log.Warn().Str("task", c.Config.Name).Str("dependency", name).Msg("with-dependency does not exist")
			<-waitCtx.Done()
			if isClosed(c.SkipWait()) {
				s.log.Info().Str("task", c.Config.Name).Msg("forced start abandoned dependency wait")
				return false, nil
			}
			return false, waitCtx.Err()
		}
		d, werr := task.WaitRunningOrConcluded(waitCtx, dep)
		if werr != nil {
			if isClosed(c.SkipWait()) {
				s.log.Info().Str("task", c.Config.Name).Msg("forced start abandoned dependency wait")
				return false, nil
			}
			return false, werr
		}
		if d {
			return true, nil
		}
	}
	for _, name := range c.Config.After {
		dep, ok := s.tasks.Get(name)
		if !ok {
			s.log.Warn().Str("task", c.Config.Name).Str("dependency", name).Msg("after-dependency does not exist")
			<-waitCtx.Done()
			if isClosed(c.SkipWait()) {
				s.log.Info().Str("task", c.Config.Name).Msg("forced start abandoned dependency wait")
				return false, nil
			}
			return false, waitCtx.Err()
		}
		d, werr := task.WaitConcludedDone(waitCtx, dep)
		if werr != nil {
			if isClosed(c.SkipWait()) {
				s.log.Info().Str("task", c.Config.Name).Msg("forced start abandoned dependency wait")
				return false, nil
			}
			return false, werr
		}
		if d {
			return true, nil
		}
	}
	return false, nil
}

// withSkip derives a context that is canceled when either parent is done or
// skip closes, so a blocked WaitUntil can be unstuck by a force-start
// without being confused with the supervisor shutting down.
func withSkip(parent context.Context, skip <-chan struct{}) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-skip:
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Shutdown raises Terminating on every task concurrently, bounded by a
// small worker limit so a system with thousands of tasks does not fire
// thousands of simultaneous SIGTERMs, then waits for drivers to settle for
// up to the longest individual ShutdownTimeout (at least the 5s default)
// plus 2s.
func (s *Supervisor) Shutdown(ctx context.Context) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(32)
	for _, c := range s.tasks.All() {
		c := c
		g.Go(func() error {
			c.SetTerminating()
			return nil
		})
	}
	_ = g.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace(s.tasks)):
		s.log.Warn().Msg("shutdown grace period elapsed with drivers still running")
	}
}

func shutdownGrace(tasks *task.Map) time.Duration {
	grace := payload.DefaultShutdownTimeout
	for _, c := range tasks.All() {
		if c.Config.ShutdownTimeout > grace {
			grace = c.Config.ShutdownTimeout
		}
	}
	return grace + 2*time.Second
}

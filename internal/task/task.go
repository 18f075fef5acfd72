// Package task implements the per-task state machine: Created -> Waiting ->
// Running -> Concluded, with a Terminating interrupt that can be raised from
// any state and a respawn path back to Waiting.
//
// Grounded in the original implementation's core/src/task.rs TaskState and
// TaskContext (a Future-driven state machine woken by a Waker registered by
// dependents). Go has no Future/Waker pair, so waiting is reimplemented as a
// generation-channel broadcast: every mutation closes the current
// generation channel and installs a fresh one, and WaitUntil loops
// re-checking its predicate each time a generation closes. This is the same
// fan-out-on-change shape as the original's waker list, minus the
// poll()/Context plumbing Go doesn't need.
package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/tinythings/alfad/internal/config"
)

// State is the task's position in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateWaiting
	StateRunning
	StateConcluded
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateConcluded:
		return "concluded"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// ConcludeReason records why a task left Running (or why a marker task
// resolved, for group/feature nodes that never actually run anything).
type ConcludeReason int

const (
	// ConcludeNone is the zero value: not yet concluded.
	ConcludeNone ConcludeReason = iota
	// ConcludeDone is a clean exit (status 0, or clamped by ignore-return).
	ConcludeDone
	// ConcludeFailed is a nonzero exit status.
	ConcludeFailed
	// ConcludeKilled means the task was asked to terminate (a control-plane
	// kill or supervisor shutdown) while running, or shutdown arrived while
	// it was still waiting on dependencies. A child that dies of a signal
	// nobody asked for concludes Failed instead.
	ConcludeKilled
	// ConcludeError means the payload could not even be started (exec
	// failure, unknown builtin, missing binary).
	ConcludeError
	// ConcludeDeactivated marks a conclusion excluded from respawn, either
	// by an explicit control-plane "deactivate" or by propagation from a
	// deactivated dependency. It can be reached directly from Waiting,
	// skipping Running entirely.
	ConcludeDeactivated
)

func (r ConcludeReason) String() string {
	switch r {
	case ConcludeDone:
		return "done"
	case ConcludeFailed:
		return "failed"
	case ConcludeKilled:
		return "killed"
	case ConcludeError:
		return "error"
	case ConcludeDeactivated:
		return "deactivated"
	default:
		return "none"
	}
}

// Satisfies reports whether this conclusion satisfies an "after" edge, which
// the original only ever advances on a successful conclusion — a failed
// dependency leaves dependents waiting forever rather than cascading the
// failure, a deliberate behavior spec §4 calls out explicitly.
func (r ConcludeReason) Satisfies() bool { return r == ConcludeDone }

// Context is the live, mutable state of one task. It is created once per
// task name when the context map is built and lives for the life of the
// supervisor; respawn mutates it in place rather than replacing it, so
// dependents holding a *Context never need to re-resolve it.
type Context struct {
	Config config.TaskConfig

	mu         sync.Mutex
	state      State
	reason     ConcludeReason
	pid        int
	step       int
	attempt    int
	generation chan struct{}

	terminating     chan struct{}
	terminatingOnce sync.Once

	deactivated      bool
	forceRespawnOnce bool

	skip       chan struct{}
	skipClosed bool
}

// NewContext creates a task context in the Created state.
func NewContext(cfg config.TaskConfig) *Context {
	return &Context{
		Config:      cfg,
		state:       StateCreated,
		generation:  make(chan struct{}),
		terminating: make(chan struct{}),
		skip:        make(chan struct{}),
	}
}

// Name implements config.BuiltinContext.
func (c *Context) Name() string { return c.Config.Name }

// Done implements config.BuiltinContext: it closes when the task is asked to
// terminate, the same signal a Service payload's child receives as SIGTERM.
func (c *Context) Done() <-chan struct{} { return c.terminating }

// Snapshot is a point-in-time read of the fields dependents and the CLI
// care about.
type Snapshot struct {
	State   State
	Reason  ConcludeReason
	PID     int
	Attempt int
	Step    int
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Reason: c.reason, PID: c.pid, Attempt: c.attempt, Step: c.step}
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// advance transitions state under lock and broadcasts the change by closing
// the current generation channel, then installs a fresh one for the next
// wait. Callers must hold no lock of their own.
func (c *Context) advance(mutate func()) {
	c.mu.Lock()
	mutate()
	old := c.generation
	c.generation = make(chan struct{})
	c.mu.Unlock()
	close(old)
}

// SetWaiting moves Created -> Waiting, or re-enters Waiting from Concluded
// on a respawn. It also issues a fresh skip-wait channel for this dependency
// wait (see RequestSkipDependencyWait): a stale forced-start request from a
// previous Waiting period must never bypass a later one.
func (c *Context) SetWaiting() {
	c.advance(func() {
		c.state = StateWaiting
		c.reason = ConcludeNone
		c.pid = 0
		c.skip = make(chan struct{})
		c.skipClosed = false
	})
}

// SetRunning records the payload as live. pid is 0 for builtin and marker
// payloads, which have no OS process. step is the index into a Service
// payload's command-line sequence currently executing (always 0 for
// builtin/marker payloads), mirroring the original's Running(i) variant.
func (c *Context) SetRunning(pid, step int) {
	c.advance(func() {
		c.state = StateRunning
		c.pid = pid
		c.step = step
	})
}

// SetConcluded records the outcome of a Running task, or resolves a marker
// the moment its own dependencies are satisfied (a marker passes through
// Running with no process and concludes Done straight away).
func (c *Context) SetConcluded(reason ConcludeReason) {
	c.advance(func() {
		c.state = StateConcluded
		c.reason = reason
		c.pid = 0
	})
}

// SetTerminating raises the shutdown interrupt. It is idempotent and safe
// to call from any state, including Concluded (a no-op payload-wise, but it
// still unblocks anything waiting on Done()).
func (c *Context) SetTerminating() {
	c.terminatingOnce.Do(func() { close(c.terminating) })
	c.advance(func() {
		c.state = StateTerminating
	})
}

// BeginAttempt increments the respawn counter and returns the new attempt
// number (1 for the first run). The supervisor compares the number of
// respawns already made (this value minus one) against Config.Respawn.Max
// to decide whether another respawn is allowed.
func (c *Context) BeginAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	return c.attempt
}

func (c *Context) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// PID returns the current OS process id, or 0 if the task has no live
// process (builtin, marker, or not currently running).
func (c *Context) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// Deactivate marks the task as not eligible for respawn, distinct from a
// plain Kill: a deactivated task stays Concluded until an explicit Start
// (which calls Reactivate) brings it back. This resolves what was an
// accidental alias between "deactivate" and "kill" in the reference
// implementation this model is descended from; here they are genuinely
// different verbs.
func (c *Context) Deactivate() {
	c.mu.Lock()
	c.deactivated = true
	c.mu.Unlock()
}

// Reactivate clears the deactivated flag, allowing respawn/start again.
func (c *Context) Reactivate() {
	c.mu.Lock()
	c.deactivated = false
	c.mu.Unlock()
}

func (c *Context) IsDeactivated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deactivated
}

// RequestRestart arranges for the next conclusion of this task to respawn
// exactly once regardless of its configured Respawn policy, implementing
// the control plane's "restart" verb (distinct from relying on the
// respawn-on-crash path, which a RespawnNo task would never take). A
// manual restart also zeroes the respawn counter.
func (c *Context) RequestRestart() {
	c.mu.Lock()
	c.forceRespawnOnce = true
	c.deactivated = false
	c.attempt = 0
	c.mu.Unlock()
}

// TakeForceRespawn consumes the pending forced-respawn flag, if any.
func (c *Context) TakeForceRespawn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.forceRespawnOnce
	c.forceRespawnOnce = false
	return v
}

// RequestSkipDependencyWait tells this task's own driver, if it is currently
// blocked in awaitDependencies, to stop waiting on its with/after edges and
// proceed straight to Running. This is what makes force-start (spec §4.5)
// actually reach a task stuck in a dependency cycle (spec §8 scenario 5):
// the driver goroutine that is already parked on a dependency's WaitUntil
// cannot be replaced by a second goroutine without risking two drivers
// racing the same context, so instead it is woken in place.
func (c *Context) RequestSkipDependencyWait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.skipClosed {
		close(c.skip)
		c.skipClosed = true
	}
}

// SkipWait returns the channel that closes when RequestSkipDependencyWait is
// called during the current Waiting period. It is recreated every time
// SetWaiting runs so a stale request can never bypass a later wait.
func (c *Context) SkipWait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skip
}

// ResetAttempts zeroes the respawn counter, implementing the "bypass respawn
// cap by resetting attempts" half of a forced start/restart (spec §4.5):
// a task that has already exhausted Retry(max) gets a fresh budget.
func (c *Context) ResetAttempts() {
	c.mu.Lock()
	c.attempt = 0
	c.mu.Unlock()
}

// WaitUntil blocks until predicate(c) is true or ctx is done. It re-checks
// the predicate immediately (in case it is already satisfied) and after
// every state transition, never missing a change the way a plain channel
// receive racing against a mutation could.
//
// The generation channel is captured under lock, but the lock is released
// before predicate runs: every predicate in this package (and in callers
// like the control executor's kill-all) reaches back into c via State()/
// Snapshot(), which take c.mu themselves, and sync.Mutex is not reentrant —
// calling predicate while still holding the lock would deadlock the very
// first wait. Reading gen before unlocking is still race-free: advance()
// swaps in the new generation channel under the same lock before closing
// the old one, so gen is either the channel that is about to close (a
// transition raced us) or already the current one (no transition pending).
func (c *Context) WaitUntil(ctx context.Context, predicate func(*Context) bool) error {
	for {
		c.mu.Lock()
		gen := c.generation
		c.mu.Unlock()

		if predicate(c) {
			return nil
		}
		select {
		case <-gen:
			continue
		case <-ctx.Done():
			return fmt.Errorf("wait on %s: %w", c.Config.Name, ctx.Err())
		}
	}
}

// WaitRunningOrConcluded implements a "with" edge: satisfied the moment the
// dependency is Running (it doesn't need to finish, just to have started).
// It reports deactivated=true if dep reached Concluded(Deactivated) instead.
// Every other Concluded reason satisfies the edge without checking whether
// dep ever entered Running: an Error conclusion from a first step that
// failed to start, or a Killed conclusion reached from Waiting, counts too.
func WaitRunningOrConcluded(ctx context.Context, dep *Context) (deactivated bool, err error) {
	err = dep.WaitUntil(ctx, func(c *Context) bool {
		s := c.State()
		return s == StateRunning || s == StateConcluded
	})
	if err != nil {
		return false, err
	}
	snap := dep.Snapshot()
	return snap.State == StateConcluded && snap.Reason == ConcludeDeactivated, nil
}

// WaitConcludedDone implements an "after" edge: satisfied once the
// dependency has concluded Done, or respawns and concludes Done on a later
// attempt (the predicate is rechecked on every transition, including the
// Waiting re-entry a respawn causes). It reports deactivated=true if dep
// instead settles into Concluded(Deactivated), which propagates rather
// than ever satisfying the edge.
func WaitConcludedDone(ctx context.Context, dep *Context) (deactivated bool, err error) {
	err = dep.WaitUntil(ctx, func(c *Context) bool {
		snap := c.Snapshot()
		return snap.State == StateConcluded && (snap.Reason.Satisfies() || snap.Reason == ConcludeDeactivated)
	})
	if err != nil {
		return false, err
	}
	snap := dep.Snapshot()
	return snap.Reason == ConcludeDeactivated, nil
}

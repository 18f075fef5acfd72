package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinythings/alfad/internal/config"
	"github.com/tinythings/alfad/internal/task"
)

func TestShouldRespawnNeverOnCleanExit(t *testing.T) {
	r := config.Respawn{Kind: config.RespawnRetry, Max: 0}
	if shouldRespawn(r, task.ConcludeDone, 1) {
		t.Fatal("a clean exit must never trigger a respawn regardless of policy")
	}
}

func TestShouldRespawnNoPolicyNeverRespawns(t *testing.T) {
	r := config.Respawn{Kind: config.RespawnNo}
	if shouldRespawn(r, task.ConcludeFailed, 1) {
		t.Fatal("RespawnNo must never respawn")
	}
}

func TestShouldRespawnRetryBoundedByMax(t *testing.T) {
	r := config.Respawn{Kind: config.RespawnRetry, Max: 3}
	if !shouldRespawn(r, task.ConcludeFailed, 2) {
		t.Fatal("attempt 2 < max 3 should still respawn")
	}
	if shouldRespawn(r, task.ConcludeFailed, 3) {
		t.Fatal("attempt 3 >= max 3 should stop respawning")
	}
}

func TestShouldRespawnUnlimitedWhenMaxZero(t *testing.T) {
	r := config.Respawn{Kind: config.RespawnRetry, Max: 0}
	if !shouldRespawn(r, task.ConcludeFailed, 1000) {
		t.Fatal("max=0 means unlimited retries")
	}
}

// TestDeactivationPropagatesAcrossAfterEdge exercises the Waiting -> any
// dependency Concluded(Deactivated) -> Concluded(Deactivated) transition:
// a dependent must never sit in Waiting forever just because its upstream
// task was deactivated rather than completed.
func TestDeactivationPropagatesAcrossAfterEdge(t *testing.T) {
	tasks := task.NewMap([]config.TaskConfig{
		{Name: "upstream", Payload: config.Payload{Kind: config.PayloadMarker}},
		{Name: "downstream", Payload: config.Payload{Kind: config.PayloadMarker}, After: []string{"upstream"}},
	})
	upstream := tasks.MustGet("upstream")
	downstream := tasks.MustGet("downstream")

	sup := New(zerolog.Nop(), tasks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Deactivate upstream before it ever runs, the same as a control-plane
	// "deactivate" racing a task that hasn't started yet.
	upstream.Deactivate()
	upstream.SetWaiting()
	upstream.SetConcluded(task.ConcludeDeactivated)

	done := make(chan struct{})
	go func() {
		sup.drive(ctx, downstream, false)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("downstream never concluded after its after-dependency was deactivated")
	}

	snap := downstream.Snapshot()
	if snap.State != task.StateConcluded || snap.Reason != task.ConcludeDeactivated {
		t.Fatalf("downstream snapshot = %+v, want Concluded(Deactivated)", snap)
	}
}

// TestForceStartBypassesDependencyCycle exercises spec §8 scenario 5: two
// tasks each waiting on the other via "after" can never satisfy
// awaitDependencies, so both drivers genuinely park in Waiting forever.
// force-start on one of them must wake its own already-running driver out of
// that stuck wait (rather than racing it with a second driver goroutine) and
// drive it through to conclusion, which in turn lets the other task's
// already-blocked driver observe the after-edge and conclude too.
func TestForceStartBypassesDependencyCycle(t *testing.T) {
	tasks := task.NewMap([]config.TaskConfig{
		{Name: "p", Payload: config.Payload{Kind: config.PayloadMarker}, After: []string{"q"}},
		{Name: "q", Payload: config.Payload{Kind: config.PayloadMarker}, After: []string{"p"}},
	})
	sup := New(zerolog.Nop(), tasks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.mu.Lock()
	sup.runCtx = ctx
	sup.mu.Unlock()

	p := tasks.MustGet("p")
	q := tasks.MustGet("q")

	sup.launch(ctx, p, false)
	sup.launch(ctx, q, false)

	deadline := time.After(time.Second)
	for p.State() != task.StateWaiting || q.State() != task.StateWaiting {
		select {
		case <-deadline:
			t.Fatalf("expected both tasks stuck Waiting on the cycle, p=%v q=%v", p.State(), q.State())
		case <-time.After(time.Millisecond):
		}
	}

	if !sup.Relaunch("p", true) {
		t.Fatal("Relaunch(force=true) on a Waiting task should still be accepted")
	}

	deadline = time.After(time.Second)
	for p.Snapshot().State != task.StateConcluded || q.Snapshot().State != task.StateConcluded {
		select {
		case <-deadline:
			t.Fatalf("p/q never concluded despite force-start, p=%+v q=%+v", p.Snapshot(), q.Snapshot())
		case <-time.After(time.Millisecond):
		}
	}
	if p.Snapshot().Reason != task.ConcludeDone {
		t.Fatalf("p concluded with reason %v, want Done (marker payload)", p.Snapshot().Reason)
	}
	if q.Snapshot().Reason != task.ConcludeDone {
		t.Fatalf("q concluded with reason %v, want Done (marker payload)", q.Snapshot().Reason)
	}
}

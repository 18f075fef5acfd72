package task

import (
	"context"
	"testing"
	"time"

	"github.com/tinythings/alfad/internal/config"
)

func TestLifecycleTransitions(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	if c.State() != StateCreated {
		t.Fatalf("initial state = %v, want Created", c.State())
	}
	c.SetWaiting()
	if c.State() != StateWaiting {
		t.Fatalf("state = %v, want Waiting", c.State())
	}
	c.SetRunning(123, 0)
	snap := c.Snapshot()
	if snap.State != StateRunning || snap.PID != 123 {
		t.Fatalf("snapshot = %+v", snap)
	}
	c.SetConcluded(ConcludeDone)
	snap = c.Snapshot()
	if snap.State != StateConcluded || snap.Reason != ConcludeDone {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestWaitUntilUnblocksOnTransition(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	c.SetWaiting()

	done := make(chan error, 1)
	go func() {
		done <- c.WaitUntil(context.Background(), func(c *Context) bool {
			return c.State() == StateRunning
		})
	}()

	select {
	case <-done:
		t.Fatal("WaitUntil returned before the predicate could possibly be true")
	case <-time.After(20 * time.Millisecond):
	}

	c.SetRunning(1, 0)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitUntil error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitUntil did not unblock after SetRunning")
	}
}

func TestWaitUntilReturnsImmediatelyIfAlreadyTrue(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	c.SetWaiting()
	c.SetRunning(1, 0)
	err := c.WaitUntil(context.Background(), func(c *Context) bool {
		return c.State() == StateRunning
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestWaitUntilRespectsContextCancellation(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.WaitUntil(ctx, func(c *Context) bool { return false })
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestWaitRunningOrConcludedSatisfiedByEither(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	c.SetWaiting()
	c.SetConcluded(ConcludeFailed)
	deactivated, err := WaitRunningOrConcluded(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if deactivated {
		t.Fatal("ConcludeFailed must not report as deactivated")
	}
}

func TestWaitRunningOrConcludedReportsDeactivation(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	c.SetWaiting()
	c.SetConcluded(ConcludeDeactivated)
	deactivated, err := WaitRunningOrConcluded(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !deactivated {
		t.Fatal("expected deactivation to be reported")
	}
}

func TestWaitConcludedDoneRequiresSatisfyingReason(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	c.SetWaiting()
	c.SetRunning(1, 0)
	c.SetConcluded(ConcludeFailed)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := WaitConcludedDone(ctx, c); err == nil {
		t.Fatal("expected timeout: Failed does not satisfy an after-edge")
	}
}

func TestWaitConcludedDonePropagatesDeactivation(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	c.SetWaiting()
	c.SetConcluded(ConcludeDeactivated)

	deactivated, err := WaitConcludedDone(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !deactivated {
		t.Fatal("expected deactivation to be reported instead of timing out")
	}
}

func TestDeactivateAndForceRespawnAreIndependentFlags(t *testing.T) {
	c := NewContext(config.TaskConfig{Name: "t"})
	c.Deactivate()
	if !c.IsDeactivated() {
		t.Fatal("expected deactivated")
	}
	c.RequestRestart()
	if c.IsDeactivated() {
		t.Fatal("RequestRestart should clear deactivation")
	}
	if !c.TakeForceRespawn() {
		t.Fatal("expected pending force-respawn")
	}
	if c.TakeForceRespawn() {
		t.Fatal("TakeForceRespawn should be one-shot")
	}
}

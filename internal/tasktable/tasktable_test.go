package tasktable

import (
	"testing"

	"rtoskernel/internal/tcb"
)

func TestCreateStartsReady(t *testing.T) {
	tt := New()
	h := tt.Create("t1", nil, 5, 0, nil)
	tsk := tt.Get(h)
	if tsk == nil {
		t.Fatalf("expected task to exist")
	}
	if tsk.State != tcb.Ready {
		t.Fatalf("expected READY, got %v", tsk.State)
	}
	ready, blocked, suspended, total := tt.Counts()
	if ready != 1 || blocked != 0 || suspended != 0 || total != 1 {
		t.Fatalf("unexpected counts: %d %d %d %d", ready, blocked, suspended, total)
	}
}

func TestHandlesAreUniqueAndIncreasing(t *testing.T) {
	tt := New()
	h1 := tt.Create("a", nil, 1, 0, nil)
	h2 := tt.Create("b", nil, 1, 0, nil)
	if h1 == h2 {
		t.Fatalf("expected distinct handles")
	}
	if h2 <= h1 {
		t.Fatalf("expected increasing handles, got %v then %v", h1, h2)
	}
}

func TestSuspendResumeRoundTrip(t *testing.T) {
	tt := New()
	h := tt.Create("t1", nil, 7, 0, nil)

	if !tt.Suspend(h) {
		t.Fatalf("expected suspend to succeed")
	}
	if tt.Get(h).State != tcb.Suspended {
		t.Fatalf("expected SUSPENDED")
	}
	if tt.Suspend(h) {
		t.Fatalf("expected second suspend to fail (already suspended)")
	}
	if _, ok := tt.NextReady(); ok {
		t.Fatalf("expected empty ready queue while suspended")
	}

	if !tt.Resume(h) {
		t.Fatalf("expected resume to succeed")
	}
	tsk := tt.Get(h)
	if tsk.State != tcb.Ready || tsk.Priority != 7 {
		t.Fatalf("expected READY with priority preserved, got %v priority %d", tsk.State, tsk.Priority)
	}
	if tt.Resume(h) {
		t.Fatalf("expected second resume to fail (not suspended)")
	}
}

func TestBlockUnblock(t *testing.T) {
	tt := New()
	h := tt.Create("t1", nil, 1, 0, nil)

	if !tt.Block(h, tcb.BlockDelay) {
		t.Fatalf("expected block to succeed from READY")
	}
	tsk := tt.Get(h)
	tsk.DelayTicks = 3
	if tt.Block(h, tcb.BlockDelay) {
		t.Fatalf("expected second block to fail (already blocked)")
	}

	if !tt.Unblock(h) {
		t.Fatalf("expected unblock to succeed")
	}
	tsk = tt.Get(h)
	if tsk.State != tcb.Ready || tsk.DelayTicks != 0 || tsk.BlockedOn != tcb.BlockNone {
		t.Fatalf("unexpected state after unblock: %+v", tsk)
	}
}

func TestDeleteRemovesFromAllSets(t *testing.T) {
	tt := New()
	h := tt.Create("t1", nil, 1, 0, nil)
	tt.SetRunning(h)

	if !tt.Delete(h) {
		t.Fatalf("expected delete to succeed")
	}
	if tt.Get(h) != nil {
		t.Fatalf("expected task gone")
	}
	if _, ok := tt.Running(); ok {
		t.Fatalf("expected no running task after deleting the running one")
	}
	if tt.Delete(h) {
		t.Fatalf("expected second delete to report false")
	}
}

func TestDelayDecrementUnblocksAtZero(t *testing.T) {
	tt := New()
	h := tt.Create("t1", nil, 1, 0, nil)
	tt.Block(h, tcb.BlockDelay)
	tt.Get(h).DelayTicks = 2

	expired := tt.DelayDecrement()
	if len(expired) != 0 {
		t.Fatalf("expected no expirations yet, got %v", expired)
	}
	if tt.Get(h).DelayTicks != 1 {
		t.Fatalf("expected DelayTicks=1, got %d", tt.Get(h).DelayTicks)
	}

	expired = tt.DelayDecrement()
	if len(expired) != 1 || expired[0] != h {
		t.Fatalf("expected %v to expire, got %v", h, expired)
	}

	if !tt.Unblock(h) {
		t.Fatalf("expected unblock after expiry to succeed")
	}
}

func TestSetPriorityReordersReadyQueue(t *testing.T) {
	tt := New()
	low := tt.Create("low", nil, 1, 0, nil)
	high := tt.Create("high", nil, 10, 0, nil)

	h, _ := tt.NextReady()
	if h != high {
		t.Fatalf("expected high-priority task first")
	}

	if !tt.SetPriority(low, 100) {
		t.Fatalf("expected SetPriority to succeed")
	}
	h, _ = tt.NextReady()
	if h != low {
		t.Fatalf("expected re-prioritized task first, got %v", h)
	}
}

func TestYieldCurrentGoesToTailOfBand(t *testing.T) {
	tt := New()
	a := tt.Create("a", nil, 5, 0, nil)
	b := tt.Create("b", nil, 5, 0, nil)

	h, _ := tt.PopReady()
	if h != a {
		t.Fatalf("expected a first")
	}
	tt.SetRunning(a)
	tt.YieldCurrent()

	h, _ = tt.PopReady()
	if h != b {
		t.Fatalf("expected b next (a yielded to tail), got %v", h)
	}
	h, _ = tt.PopReady()
	if h != a {
		t.Fatalf("expected a at tail, got %v", h)
	}
}

func TestInvalidHandleOperationsReturnFalse(t *testing.T) {
	tt := New()
	const bogus tcb.Handle = 999
	if tt.Suspend(bogus) || tt.Resume(bogus) || tt.Block(bogus, tcb.BlockDelay) ||
		tt.Unblock(bogus) || tt.SetPriority(bogus, 1) || tt.Delete(bogus) || tt.SetRunning(bogus) {
		t.Fatalf("expected all operations on a bogus handle to report false")
	}
}

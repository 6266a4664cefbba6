package scheduler

import (
	"errors"
	"testing"

	"rtoskernel/internal/tasktable"
	"rtoskernel/internal/tcb"
)

// repeatingUnit always returns the same StepResult, simulating a task body
// that loops forever without ever completing.
type repeatingUnit struct {
	result tcb.StepResult
}

func (u *repeatingUnit) Step() (tcb.StepResult, error) { return u.result, nil }

// scriptedUnit returns a fixed sequence of (result, error) pairs, then
// repeats its last entry forever.
type scriptedUnit struct {
	results []tcb.StepResult
	errs    []error
	i       int
}

func (u *scriptedUnit) Step() (tcb.StepResult, error) {
	idx := u.i
	if idx >= len(u.results) {
		idx = len(u.results) - 1
	}
	var err error
	if idx < len(u.errs) {
		err = u.errs[idx]
	}
	u.i++
	return u.results[idx], err
}

type captureSink struct {
	events []StatusEvent
}

func (c *captureSink) Handle(evt StatusEvent) { c.events = append(c.events, evt) }

func (c *captureSink) dispatchOrder() []tcb.Handle {
	var out []tcb.Handle
	for _, e := range c.events {
		if e.Kind == StatusDispatch {
			out = append(out, e.Handle)
		}
	}
	return out
}

func TestPriorityPreemption(t *testing.T) {
	tt := tasktable.New()
	a := tt.Create("A", &repeatingUnit{tcb.StepResult{HasDelay: true, DelayTicks: 5}}, 10, 0, nil)
	b := tt.Create("B", &repeatingUnit{tcb.StepResult{}}, 3, 0, nil)

	sch := New(tt, 100, nil)
	cap := &captureSink{}
	sch.AddSink(cap)

	for i := 0; i < 10; i++ {
		sch.Tick()
	}

	order := cap.dispatchOrder()
	want := []tcb.Handle{a, b, b, b, b, a, b, b, b, b}
	if len(order) != len(want) {
		t.Fatalf("expected %d dispatches, got %d: %v", len(want), len(order), order)
	}
	for i, h := range want {
		if order[i] != h {
			t.Fatalf("tick %d: expected %v, got %v (full order %v)", i+1, h, order[i], order)
		}
	}
}

func TestRoundRobinAmongEquals(t *testing.T) {
	tt := tasktable.New()
	a := tt.Create("A", &repeatingUnit{tcb.StepResult{}}, 5, 0, nil)
	b := tt.Create("B", &repeatingUnit{tcb.StepResult{}}, 5, 0, nil)
	c := tt.Create("C", &repeatingUnit{tcb.StepResult{}}, 5, 0, nil)

	sch := New(tt, 100, nil)
	cap := &captureSink{}
	sch.AddSink(cap)

	for i := 0; i < 6; i++ {
		sch.Tick()
	}

	order := cap.dispatchOrder()
	want := []tcb.Handle{a, b, c, a, b, c}
	if len(order) != len(want) {
		t.Fatalf("expected %d dispatches, got %d: %v", len(want), len(order), order)
	}
	for i, h := range want {
		if order[i] != h {
			t.Fatalf("tick %d: expected %v, got %v", i+1, h, order[i])
		}
	}
}

func TestTaskErrorIsolation(t *testing.T) {
	tt := tasktable.New()
	boom := errors.New("boom")
	a := tt.Create("A", &scriptedUnit{
		results: []tcb.StepResult{{}, {}},
		errs:    []error{nil, boom},
	}, 5, 0, nil)
	b := tt.Create("B", &repeatingUnit{tcb.StepResult{}}, 5, 0, nil)

	sch := New(tt, 100, nil)
	var errHandled bool
	sch.SetErrorHandler(func(h tcb.Handle, name string, err error) {
		errHandled = true
		if h != a {
			t.Fatalf("expected error handler to fire for A, got %v", h)
		}
	})
	cap := &captureSink{}
	sch.AddSink(cap)

	for i := 0; i < 4; i++ {
		sch.Tick()
	}

	if !errHandled {
		t.Fatalf("expected error handler to run")
	}
	if tt.Get(a) != nil {
		t.Fatalf("expected A to be deleted after raising")
	}
	if tt.Get(b) == nil {
		t.Fatalf("expected B to survive A's error")
	}
	if _, ok := tt.Running(); !ok {
		t.Fatalf("expected B still running after A's removal")
	}
}

func TestIdleWhenNothingReadyOrRunning(t *testing.T) {
	tt := tasktable.New()
	sch := New(tt, 100, nil)
	cap := &captureSink{}
	sch.AddSink(cap)

	sch.Tick()

	if len(cap.dispatchOrder()) != 0 {
		t.Fatalf("expected no dispatch with no tasks at all")
	}
	found := false
	for _, e := range cap.events {
		if e.Kind == StatusIdle {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a StatusIdle event")
	}
}

func TestDelayZeroIsAPlainYieldNotABlock(t *testing.T) {
	tt := tasktable.New()
	a := tt.Create("A", &repeatingUnit{tcb.StepResult{HasDelay: true, DelayTicks: 0}}, 5, 0, nil)

	sch := New(tt, 100, nil)
	sch.Tick()

	tsk := tt.Get(a)
	if tsk.State != tcb.Running {
		t.Fatalf("expected delay(0) to leave the task RUNNING, got %v", tsk.State)
	}
}

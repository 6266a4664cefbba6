package rtosbuilder

import (
	"errors"
	"testing"

	"rtoskernel/internal/tcb"
)

func TestBuildRunsActionsInOrderAndCompletesAfterExtraStep(t *testing.T) {
	var order []int
	u := New().
		Do(func() error { order = append(order, 1); return nil }).
		Do(func() error { order = append(order, 2); return nil }).
		Delay(3).
		Do(func() error { order = append(order, 3); return nil }).
		Build()

	res, err := u.Step()
	if err != nil || res.Done {
		t.Fatalf("step 1: got %+v, err %v", res, err)
	}
	res, err = u.Step()
	if err != nil || res.Done {
		t.Fatalf("step 2: got %+v, err %v", res, err)
	}
	res, err = u.Step()
	if err != nil || !res.HasDelay || res.DelayTicks != 3 {
		t.Fatalf("step 3: expected a 3-tick delay marker, got %+v, err %v", res, err)
	}
	res, err = u.Step()
	if err != nil || res.Done {
		t.Fatalf("step 4: got %+v, err %v", res, err)
	}
	res, err = u.Step()
	if err != nil || !res.Done {
		t.Fatalf("step 5: expected Done, got %+v, err %v", res, err)
	}

	if want := []int{1, 2, 3}; !equalInts(order, want) {
		t.Fatalf("expected actions to run in order %v, got %v", want, order)
	}
}

func TestNegativeDelayClampsToZero(t *testing.T) {
	u := New().Delay(-5).Build()
	res, err := u.Step()
	if err != nil || !res.HasDelay || res.DelayTicks != 0 {
		t.Fatalf("expected a clamped 0-tick delay marker, got %+v, err %v", res, err)
	}
}

func TestDelayMsConvertsWithCeiling(t *testing.T) {
	u := New().DelayMs(250, 10).Build()
	res, err := u.Step()
	if err != nil || !res.HasDelay || res.DelayTicks != 3 {
		t.Fatalf("expected ceil(250*10/1000)=3 ticks, got %+v, err %v", res, err)
	}
}

func TestActionErrorPropagatesAndAbortsTheUnit(t *testing.T) {
	boom := errors.New("boom")
	u := New().
		Do(func() error { return nil }).
		Do(func() error { return boom }).
		Do(func() error { t.Fatalf("unreachable step ran after an error"); return nil }).
		Build()

	if _, err := u.Step(); err != nil {
		t.Fatalf("step 1: unexpected error %v", err)
	}
	_, err := u.Step()
	if !errors.Is(err, boom) {
		t.Fatalf("step 2: expected boom, got %v", err)
	}
	res, err := u.Step()
	if err != nil || !res.Done {
		t.Fatalf("step 3: expected the aborted unit to report Done, got %+v, err %v", res, err)
	}
}

func TestBuildLoopingNeverCompletes(t *testing.T) {
	count := 0
	u := New().
		Do(func() error { count++; return nil }).
		Delay(1).
		BuildLooping()

	var results []tcb.StepResult
	for i := 0; i < 8; i++ {
		res, err := u.Step()
		if err != nil {
			t.Fatalf("step %d: unexpected error %v", i, err)
		}
		if res.Done {
			t.Fatalf("step %d: looping unit reported Done", i)
		}
		results = append(results, res)
	}

	// Two steps per lap (action, delay), plus one plain-yield lap boundary
	// after the delay before the action runs again: action, delay,
	// boundary, action, delay, boundary, action, delay.
	wantDelays := []bool{false, true, false, false, true, false, false, true}
	for i, want := range wantDelays {
		if results[i].HasDelay != want {
			t.Fatalf("step %d: expected HasDelay=%v, got %+v", i, want, results[i])
		}
	}
	if count != 3 {
		t.Fatalf("expected the action to have run 3 times, got %d", count)
	}
}

func TestYieldIsAPlainStepWithNoDelay(t *testing.T) {
	u := New().Yield().Build()
	res, err := u.Step()
	if err != nil || res.HasDelay || res.Done {
		t.Fatalf("expected a plain non-delay, non-done step, got %+v, err %v", res, err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

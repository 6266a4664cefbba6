// Package rtosbuilder is the structured, parsing-free alternative to
// internal/transform: a Go-side TaskBuilder that composes a task body out
// of plain closures and delay markers instead of a JavaScript-family
// string. It produces the same tcb.Unit restartable-unit contract the
// Transformer's generated generators do, so a builder-built task and a
// script-compiled one are interchangeable at the Kernel boundary.
package rtosbuilder

import "rtoskernel/internal/tcb"

// Action is one unit of work performed synchronously within a single
// Step() call. A non-nil error aborts the task the same way a raised
// exception in a scripted body does.
type Action func() error

type step struct {
	action     Action
	hasDelay   bool
	delayTicks int64
}

// TaskBuilder accumulates an ordered sequence of actions and delay points.
// Each call to Do or Delay appends one step; Build (or BuildLooping)
// freezes the sequence into a tcb.Unit. The zero value is not usable; use
// New.
type TaskBuilder struct {
	steps []step
}

// New returns an empty TaskBuilder.
func New() *TaskBuilder {
	return &TaskBuilder{}
}

// Do appends action as the next step. A nil action is a plain yield: the
// step consumes one Step() call but does nothing, exactly like an empty
// statement under the Transformer's statement-level mode.
func (b *TaskBuilder) Do(action Action) *TaskBuilder {
	b.steps = append(b.steps, step{action: action})
	return b
}

// Yield appends a plain yield: it advances one Step() call without
// running any Go code, like one of the plain `yield undefined;` suspension
// points the Transformer inserts in statement-level mode.
func (b *TaskBuilder) Yield() *TaskBuilder {
	return b.Do(nil)
}

// Delay appends a suspension point of ticks ticks, equivalent to a
// scripted body's `ctx.delay(ticks)`. ticks < 0 is treated as 0, a plain
// yield rather than a block, matching §8's delay(0) boundary case.
func (b *TaskBuilder) Delay(ticks int64) *TaskBuilder {
	if ticks < 0 {
		ticks = 0
	}
	b.steps = append(b.steps, step{hasDelay: true, delayTicks: ticks})
	return b
}

// DelayMs appends a suspension point of ms milliseconds, converted to
// ticks at tickRate the same way Kernel.DelayMs does: ceiling, never
// rounding down to fewer ticks than requested.
func (b *TaskBuilder) DelayMs(ms int64, tickRate int) *TaskBuilder {
	if ms < 0 {
		ms = 0
	}
	ticks := (ms*int64(tickRate) + 999) / 1000
	return b.Delay(ticks)
}

// DoThenDelay is shorthand for Do(action).Delay(ticks), the most common
// pairing: perform work, then suspend until the next period.
func (b *TaskBuilder) DoThenDelay(action Action, ticks int64) *TaskBuilder {
	return b.Do(action).Delay(ticks)
}

// Build freezes the accumulated steps into a tcb.Unit that runs each step
// exactly once and then reports done, on the same k-steps/k+1-calls
// cadence as a Transformer-generated generator: the last step's Step()
// call returns Done:false, and the following call returns Done:true.
func (b *TaskBuilder) Build() tcb.Unit {
	return &nativeUnit{steps: append([]step(nil), b.steps...)}
}

// BuildLooping freezes the accumulated steps into a tcb.Unit that never
// completes: after the last step, the next Step() call performs a plain
// yield marking the end of the lap and restarts from the first step. Use
// this for periodic tasks that would otherwise need to be authored as an
// infinite scripted while loop.
func (b *TaskBuilder) BuildLooping() tcb.Unit {
	return &nativeUnit{steps: append([]step(nil), b.steps...), looping: true}
}

// nativeUnit is the tcb.Unit produced by TaskBuilder. Unlike a generated
// generator it holds no goja.Runtime: each Step() call runs at most one
// Go closure directly.
type nativeUnit struct {
	steps   []step
	i       int
	looping bool
}

func (u *nativeUnit) Step() (tcb.StepResult, error) {
	if u.i >= len(u.steps) {
		if u.looping {
			u.i = 0
			return tcb.StepResult{}, nil
		}
		return tcb.StepResult{Done: true}, nil
	}

	s := u.steps[u.i]
	u.i++

	if s.hasDelay {
		return tcb.StepResult{HasDelay: true, DelayTicks: s.delayTicks}, nil
	}
	if s.action != nil {
		if err := s.action(); err != nil {
			// Abort: every later Step reports Done without running anything.
			u.steps = nil
			u.looping = false
			return tcb.StepResult{}, err
		}
	}
	return tcb.StepResult{}, nil
}

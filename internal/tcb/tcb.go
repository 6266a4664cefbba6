package tcb

import "time"

// Handle is an opaque, monotonically increasing, never-reused task identifier.
type Handle uint64

// Unit is the restartable-unit contract a task body compiles down to. It is
// declared here (rather than imported from internal/transform) so that TCB
// has no dependency on how a unit is produced; internal/transform's
// implementations satisfy it structurally.
type Unit interface {
	// Step advances execution to the next suspension point or to
	// completion. It must never be called concurrently on the same Unit.
	Step() (StepResult, error)
}

// StepResult is the outcome of one Unit.Step() call.
type StepResult struct {
	Done bool
	// DelayTicks and HasDelay describe a delay marker yielded by the
	// step, if any. When HasDelay is false the step was a plain yield
	// (no delay requested).
	HasDelay   bool
	DelayTicks int64
}

// TCB is the Task Control Block: everything the scheduler and kernel facade
// need to track about one task.
type TCB struct {
	Handle   Handle
	Name     string
	Priority int
	State    State

	Unit Unit // nil iff the task has not yet been given a restartable unit

	DelayTicks int64
	BlockedOn  BlockReason

	StackHint int
	Params    any

	CreatedAt time.Time
	LastRanAt time.Time
	RunCount  int64
}

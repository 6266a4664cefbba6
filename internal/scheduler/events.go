package scheduler

import (
	"time"

	"rtoskernel/internal/tcb"
)

// StatusKind identifies the kind of a scheduler StatusEvent, adapted from
// the teacher's schedulerEvent.go StatusKind enum and extended with the
// finer-grained transitions this state machine distinguishes.
type StatusKind int

const (
	StatusTick StatusKind = iota
	StatusDispatch
	StatusPreempt
	StatusBlock
	StatusUnblock
	StatusFinish
	StatusError
	StatusIdle
)

func (k StatusKind) String() string {
	switch k {
	case StatusTick:
		return "Tick"
	case StatusDispatch:
		return "Dispatch"
	case StatusPreempt:
		return "Preempt"
	case StatusBlock:
		return "Block"
	case StatusUnblock:
		return "Unblock"
	case StatusFinish:
		return "Finish"
	case StatusError:
		return "Error"
	case StatusIdle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// StatusEvent is emitted on every tick and on every task-state transition,
// exactly as the teacher's Scheduler streams StatusEvent values, extended
// with the fields this scheduler's richer state machine needs to record.
type StatusEvent struct {
	Time       time.Time
	Tick       int64
	Kind       StatusKind
	Handle     tcb.Handle
	Priority   int
	DelayTicks int64
	Err        error
}

// Sink receives every non-tick StatusEvent for external persistence
// (CSV, SQLite, ...). Implementations must not block the scheduler for
// long; internal/telemetry's sinks buffer or write synchronously to a
// local resource only.
type Sink interface {
	Handle(evt StatusEvent)
}

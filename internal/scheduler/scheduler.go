// Package scheduler implements the tick-driven dispatch loop of §4.4: on
// every tick it decrements delay counters, selects the next task to run,
// and advances that task's restartable unit by exactly one step.
//
// The loop is structured the way the teacher's Scheduler.loop is (a single
// goroutine consuming clock ticks under a mutex guarding shared state),
// fused with the pack-mate CWL runner's phased Tick decomposition
// (internal/scheduler.Loop.Tick splits into independently testable
// sub-steps rather than one long function) — decrementDelays, selectNext,
// and advance below are exactly that split.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rtoskernel/internal/rtoserr"
	"rtoskernel/internal/tasktable"
	"rtoskernel/internal/tcb"
	"rtoskernel/internal/tickclock"
)

// ErrorHandler is invoked after a task's restartable unit raises and the
// task has been deleted. The Kernel uses this to recreate the idle task
// and preserve invariant 6.
type ErrorHandler func(h tcb.Handle, name string, err error)

// Scheduler owns a TaskTable and a tick clock and drives the tick loop
// described in §4.4. It does not know how restartable units are produced;
// it only calls Unit.Step() on whatever the TaskTable already holds.
type Scheduler struct {
	mu sync.Mutex

	tt    *tasktable.TaskTable
	clock *tickclock.Clock
	log   *slog.Logger

	sinks   []Sink
	onError ErrorHandler

	idleHandle tcb.Handle

	cancel  context.CancelFunc
	running bool
	loopWG  sync.WaitGroup
}

// New returns a Scheduler over tt. tickRate is not used: the tick interval
// is the one passed to Start.
func New(tt *tasktable.TaskTable, tickRate int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		tt:    tt,
		clock: tickclock.New(256),
		log:   log.With("component", "scheduler"),
	}
}

// AddSink registers a StatusEvent sink. Must be called before Start.
func (s *Scheduler) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// SetErrorHandler installs the callback invoked when a task's unit raises.
func (s *Scheduler) SetErrorHandler(h ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = h
}

// SetIdleHandle records which handle is the idle task, used only to
// identify it to the error handler for recreation after a crash.
func (s *Scheduler) SetIdleHandle(h tcb.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleHandle = h
}

// IdleHandle returns the handle last recorded by SetIdleHandle.
func (s *Scheduler) IdleHandle() tcb.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleHandle
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TickCount returns the number of ticks elapsed so far, lock-free.
func (s *Scheduler) TickCount() int64 {
	return s.clock.Count()
}

// Start begins the tick loop at the given interval. A no-op if already
// running, matching the teacher's tolerant start/stop semantics.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.clock.Start(interval)
	s.loopWG.Add(1)
	go s.loop(ctx)
}

// Stop halts the tick loop and the underlying clock. A no-op if already
// stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	s.clock.Stop()
	s.loopWG.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.loopWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.Ticks:
			s.Tick()
		}
	}
}

// Tick runs one full tick: decrement delays, select the next task, advance
// it by one step. Exported so tests can drive ticks synchronously without
// a running clock.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.clock.Count()
	s.decrementDelays(tick)
	picked, ok := s.selectNext()
	if !ok {
		s.emit(StatusEvent{Time: time.Now(), Tick: tick, Kind: StatusIdle})
		return
	}
	s.advance(tick, picked)
}

// decrementDelays is §4.4 step 2: every BLOCKED-delay task with delayTicks
// > 0 is decremented; any that reach zero are unblocked.
func (s *Scheduler) decrementDelays(tick int64) {
	for _, h := range s.tt.DelayDecrement() {
		s.tt.Unblock(h)
		s.emit(StatusEvent{Time: time.Now(), Tick: tick, Kind: StatusUnblock, Handle: h})
	}
}

// selectNext is §4.4 step 3-4. The task RUNNING from the previous tick (if
// any) is always folded back into the ready queue first — otherwise a
// merely-present low-priority peer (the idle task, say) would look like
// the only ready candidate and wrongly preempt a genuinely higher-priority
// task that simply hadn't blocked yet. Once every ready task, including
// the previous one, is in the same pool, the head of the ready queue is
// the correct pick by construction: highest priority, and — since the
// previous task was just re-inserted at the tail of its own band — fairly
// rotated among equal-priority peers.
func (s *Scheduler) selectNext() (tcb.Handle, bool) {
	current, hasCurrent := s.tt.Running()
	if hasCurrent {
		s.tt.YieldCurrent()
	}

	head, hasReady := s.tt.NextReady()
	if !hasReady {
		return 0, false
	}

	if hasCurrent && current != head {
		if t := s.tt.Get(current); t != nil {
			s.emit(StatusEvent{Time: time.Now(), Kind: StatusPreempt, Handle: current, Priority: t.Priority})
		}
	}
	s.tt.SetRunning(head)
	return head, true
}

// advance is §4.4 step 5: run the picked task's restartable unit one step
// and apply the resulting state transition.
func (s *Scheduler) advance(tick int64, h tcb.Handle) {
	t := s.tt.Get(h)
	if t == nil || t.Unit == nil {
		return
	}

	s.emit(StatusEvent{Time: time.Now(), Tick: tick, Kind: StatusDispatch, Handle: h, Priority: t.Priority})

	res, err := t.Unit.Step()
	t.RunCount++
	t.LastRanAt = time.Now()

	switch {
	case err != nil:
		s.log.Warn("task body raised", "handle", h, "name", t.Name, "err", err)
		name := t.Name
		s.tt.Delete(h)
		s.emit(StatusEvent{Time: time.Now(), Tick: tick, Kind: StatusError, Handle: h, Err: err})
		if s.onError != nil {
			s.onError(h, name, rtoserr.Wrap(rtoserr.TaskBodyError, "task body raised", err))
		}
	case res.Done:
		s.tt.Delete(h)
		s.emit(StatusEvent{Time: time.Now(), Tick: tick, Kind: StatusFinish, Handle: h})
	case res.HasDelay && res.DelayTicks > 0:
		t.DelayTicks = res.DelayTicks
		s.tt.Block(h, tcb.BlockDelay)
		s.emit(StatusEvent{Time: time.Now(), Tick: tick, Kind: StatusBlock, Handle: h, DelayTicks: res.DelayTicks})
	default:
		// plain yield (including delay(0)): task remains RUNNING and will
		// be preempted at a future tick's selectNext if a peer is ready.
	}
}

// WithTaskTable runs fn with the scheduler's lock held. This is the single
// synchronization point every Kernel facade mutation goes through, so a
// CreateTask or SuspendTask call from any goroutine never races the tick
// loop's own access to the same TaskTable — one lock, owned here, instead
// of a second independently-held one over the same data.
//
// fn must not call back into the Scheduler (Tick, WithTaskTable, or any
// method that takes s.mu): the mutex is not reentrant.
func (s *Scheduler) WithTaskTable(fn func(*tasktable.TaskTable)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tt)
}

func (s *Scheduler) emit(evt StatusEvent) {
	for _, sink := range s.sinks {
		sink.Handle(evt)
	}
	if evt.Kind != StatusTick && evt.Kind != StatusIdle {
		s.log.Debug("scheduler event", "kind", evt.Kind.String(), "handle", evt.Handle, "tick", evt.Tick)
	}
}

// Package kernel implements the public facade of §4.5/§6: the single
// entry point embedding applications use to create, drive, and introspect
// tasks. It owns one TaskTable, one Scheduler, and one idle task, and
// guards every TaskTable mutation with the same discipline the teacher's
// Scheduler.mu applies to Add/AdjustPriority racing against its own
// dispatch loop — here realized as Scheduler.WithTaskTable rather than a
// second, independently-held mutex, so there is exactly one lock ordering
// to reason about.
package kernel

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rtoskernel/internal/rtosconfig"
	"rtoskernel/internal/rtoserr"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/tasktable"
	"rtoskernel/internal/tcb"
	"rtoskernel/internal/transform"
)

// idlePriority is the lowest priority, so the idle task is selected only
// when no task of a higher priority is ready; tasks created at priority 0
// share round-robin turns with it.
const idlePriority = 0

// idleBody yields with delay(0), a plain yield, so the idle task stays
// READY or RUNNING and is never BLOCKED.
const idleBody = `function idle(ctx) {
	while (true) {
		ctx.delay(0);
	}
}`

// SystemStatus is the snapshot returned by GetSystemStatus.
type SystemStatus struct {
	IsRunning      bool
	TickCount      int64
	CurrentTask    tcb.Handle
	HasCurrentTask bool
	ReadyTasks     int
	BlockedTasks   int
	SuspendedTasks int
	TotalTasks     int
}

// Kernel is the facade described in §4.5/§6.
type Kernel struct {
	mu sync.Mutex

	cfg  rtosconfig.SchedulerConfig
	opts rtosconfig.KernelOptions
	log  *slog.Logger

	tt  *tasktable.TaskTable
	sch *scheduler.Scheduler

	nameCounter int
	idleHandle  tcb.Handle
}

// New constructs a Kernel and its idle task. Fails synchronously if cfg is
// not usable (§7's "programmer errors at construction" policy).
func New(cfg rtosconfig.SchedulerConfig, opts rtosconfig.KernelOptions, log *slog.Logger) (*Kernel, error) {
	if cfg.TickRate <= 0 {
		return nil, fmt.Errorf("kernel: tickRate must be positive, got %d", cfg.TickRate)
	}
	if cfg.MaxTasks < 0 {
		return nil, fmt.Errorf("kernel: maxTasks must not be negative, got %d", cfg.MaxTasks)
	}
	if log == nil {
		log = slog.Default()
	}

	tt := tasktable.New()
	sch := scheduler.New(tt, cfg.TickRate, log)

	k := &Kernel{
		cfg: cfg,
		opts: opts,
		log:  log.With("component", "kernel"),
		tt:   tt,
		sch:  sch,
	}
	sch.SetErrorHandler(k.onTaskError)

	if err := k.spawnIdle(); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Kernel) mode() transform.Mode {
	if k.opts.YieldAllStatements {
		return transform.ModeStatementLevel
	}
	return transform.ModeDelayOnly
}

func (k *Kernel) spawnIdle() error {
	h, err := k.createTaskLocked("idle", idleBody, idlePriority, k.cfg.IdleTaskStackSize, nil)
	if err != nil {
		return rtoserr.Wrap(rtoserr.TransformFailure, "compiling idle task", err)
	}
	k.idleHandle = h
	k.sch.SetIdleHandle(h)
	return nil
}

// onTaskError is the scheduler's ErrorHandler: it recreates the idle task
// if that is the one that crashed, preserving invariant 6.
func (k *Kernel) onTaskError(h tcb.Handle, name string, err error) {
	k.log.Warn("task raised", "handle", h, "name", name, "err", err)
	if h != k.idleHandle {
		return
	}
	k.log.Warn("idle task raised; recreating")
	if spawnErr := k.spawnIdle(); spawnErr != nil {
		k.log.Error("failed to recreate idle task", "err", spawnErr)
	}
}

// Start begins the tick loop. A no-op if already running.
func (k *Kernel) Start() {
	interval := time.Second / time.Duration(k.cfg.TickRate)
	k.sch.Start(interval)
}

// Stop halts the tick loop. A no-op if already stopped.
func (k *Kernel) Stop() {
	k.sch.Stop()
}

// CreateTask compiles body and adds it as a new task, returning its
// handle. body is a single JavaScript-family function definition; name
// defaults to "Task_<n>" using a per-Kernel counter when empty.
func (k *Kernel) CreateTask(body string, priority, stackHint int, params any, name string) (tcb.Handle, error) {
	if name == "" {
		k.mu.Lock()
		k.nameCounter++
		name = fmt.Sprintf("Task_%d", k.nameCounter)
		k.mu.Unlock()
	}
	return k.createTaskLocked(name, body, priority, stackHint, params)
}

func (k *Kernel) createTaskLocked(name, body string, priority, stackHint int, params any) (tcb.Handle, error) {
	if stackHint <= 0 {
		stackHint = k.cfg.StackSize
	}

	factory, diags, err := transform.NewFactory(body, k.mode(), k.cfg.TickRate)
	if err != nil {
		return 0, err
	}
	for _, d := range diags {
		k.log.Debug("task body diagnostic", "name", name, "diagnostic", d)
	}
	unit, err := factory.New(params)
	if err != nil {
		return 0, err
	}

	var h tcb.Handle
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) {
		h = tt.Create(name, unit, priority, stackHint, params)
	})
	return h, nil
}

// DeleteTask removes a task, discarding its restartable unit. The idle task
// cannot be deleted; DeleteTask reports false for it.
func (k *Kernel) DeleteTask(h tcb.Handle) bool {
	var ok bool
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) {
		if h == k.idleHandle {
			return
		}
		ok = tt.Delete(h)
	})
	return ok
}

// SuspendTask moves h to SUSPENDED. The idle task cannot be suspended;
// SuspendTask reports false for it.
func (k *Kernel) SuspendTask(h tcb.Handle) bool {
	var ok bool
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) {
		if h == k.idleHandle {
			return
		}
		ok = tt.Suspend(h)
	})
	return ok
}

// ResumeTask moves h from SUSPENDED back to READY.
func (k *Kernel) ResumeTask(h tcb.Handle) bool {
	var ok bool
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) { ok = tt.Resume(h) })
	return ok
}

// SetTaskPriority changes h's priority.
func (k *Kernel) SetTaskPriority(h tcb.Handle, priority int) bool {
	var ok bool
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) { ok = tt.SetPriority(h, priority) })
	return ok
}

// Delay returns a delay marker for n ticks, clamped to non-negative. For
// use by hosts driving a task body outside the JavaScript binding; the
// JavaScript path goes through the context object the Transformer binds
// instead. The marker is the same whether or not a task is RUNNING.
func (k *Kernel) Delay(n int64) map[string]interface{} {
	if n < 0 {
		n = 0
	}
	return map[string]interface{}{"delayTicks": n}
}

// DelayMs converts ms to a delay marker using the configured tick rate.
func (k *Kernel) DelayMs(ms int64) map[string]interface{} {
	if ms < 0 {
		ms = 0
	}
	ticks := (ms*int64(k.cfg.TickRate) + 999) / 1000
	return map[string]interface{}{"delayTicks": ticks}
}

// Yield forces the currently RUNNING task, if any, back to READY at the
// tail of its priority band immediately, without waiting for the next
// tick's preemption check.
func (k *Kernel) Yield() {
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) { tt.YieldCurrent() })
}

// GetTickCount returns the number of ticks elapsed since Start.
func (k *Kernel) GetTickCount() int64 {
	return k.sch.TickCount()
}

// GetSystemStatus returns a snapshot of the scheduler's aggregate state.
func (k *Kernel) GetSystemStatus() SystemStatus {
	st := SystemStatus{IsRunning: k.sch.IsRunning(), TickCount: k.sch.TickCount()}
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) {
		st.ReadyTasks, st.BlockedTasks, st.SuspendedTasks, st.TotalTasks = tt.Counts()
		if h, ok := tt.Running(); ok {
			st.CurrentTask = h
			st.HasCurrentTask = true
		}
	})
	return st
}

// GetTaskInfo returns a snapshot of h's TCB, or !ok if h does not exist.
func (k *Kernel) GetTaskInfo(h tcb.Handle) (tcb.TCB, bool) {
	var out tcb.TCB
	var ok bool
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) {
		if t := tt.Get(h); t != nil {
			out = *t
			ok = true
		}
	})
	return out, ok
}

// GetAllTasks returns a snapshot of every live task's TCB.
func (k *Kernel) GetAllTasks() []tcb.TCB {
	var out []tcb.TCB
	k.sch.WithTaskTable(func(tt *tasktable.TaskTable) {
		for _, t := range tt.All() {
			out = append(out, *t)
		}
	})
	return out
}

// SetYieldMode toggles statement-level vs delay-only transformer mode for
// tasks created after the call; already-compiled tasks are unaffected.
func (k *Kernel) SetYieldMode(statementLevel bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.opts.YieldAllStatements = statementLevel
}

// GetYieldMode reports the current transformer mode.
func (k *Kernel) GetYieldMode() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.opts.YieldAllStatements
}

// AddSink registers a telemetry sink on the underlying scheduler. Must be
// called before Start.
func (k *Kernel) AddSink(sink scheduler.Sink) {
	k.sch.AddSink(sink)
}

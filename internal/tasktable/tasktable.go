// Package tasktable owns the set of tasks and their control blocks, and
// enforces the state-transition and set-membership invariants of §3 of the
// specification. All operations are synchronous and never suspend; illegal
// transitions are reported as bool false rather than by error, matching the
// facade's "no throwing for routine errors" policy.
package tasktable

import (
	"time"

	"rtoskernel/internal/readyqueue"
	"rtoskernel/internal/tcb"
)

// TaskTable owns every live TCB plus the ready/blocked/suspended memberships.
type TaskTable struct {
	tasks   map[tcb.Handle]*tcb.TCB
	ready   *readyqueue.ReadyQueue
	blocked map[tcb.Handle]bool
	suspend map[tcb.Handle]bool
	running tcb.Handle // zero means no task is RUNNING

	nextHandle tcb.Handle
}

// New returns an empty TaskTable.
func New() *TaskTable {
	return &TaskTable{
		tasks:   make(map[tcb.Handle]*tcb.TCB),
		ready:   readyqueue.New(),
		blocked: make(map[tcb.Handle]bool),
		suspend: make(map[tcb.Handle]bool),
	}
}

// Create allocates a handle, stores a new READY TCB, and returns the handle.
// stackHint is a non-semantic size hint recorded for introspection only.
func (tt *TaskTable) Create(name string, unit tcb.Unit, priority, stackHint int, params any) tcb.Handle {
	tt.nextHandle++
	h := tt.nextHandle

	now := time.Now()
	t := &tcb.TCB{
		Handle:    h,
		Name:      name,
		Priority:  priority,
		State:     tcb.Ready,
		Unit:      unit,
		StackHint: stackHint,
		Params:    params,
		CreatedAt: now,
	}
	tt.tasks[h] = t
	tt.ready.Insert(h, priority)
	return h
}

// Get returns the TCB for h, or nil if it does not exist.
func (tt *TaskTable) Get(h tcb.Handle) *tcb.TCB {
	return tt.tasks[h]
}

// Delete removes h from all sets and, if it was RUNNING, clears the running
// slot. Reports whether the task existed.
func (tt *TaskTable) Delete(h tcb.Handle) bool {
	if _, ok := tt.tasks[h]; !ok {
		return false
	}
	tt.ready.Remove(h)
	delete(tt.blocked, h)
	delete(tt.suspend, h)
	if tt.running == h {
		tt.running = 0
	}
	delete(tt.tasks, h)
	return true
}

// Suspend moves h to SUSPENDED from any non-SUSPENDED state. Reports whether
// the transition happened.
func (tt *TaskTable) Suspend(h tcb.Handle) bool {
	t, ok := tt.tasks[h]
	if !ok || t.State == tcb.Suspended {
		return false
	}
	switch t.State {
	case tcb.Ready:
		tt.ready.Remove(h)
	case tcb.Blocked:
		delete(tt.blocked, h)
	case tcb.Running:
		tt.running = 0
	}
	t.State = tcb.Suspended
	t.DelayTicks = 0
	t.BlockedOn = tcb.BlockNone
	tt.suspend[h] = true
	return true
}

// Resume moves h from SUSPENDED back to READY. Reports whether the
// transition happened.
func (tt *TaskTable) Resume(h tcb.Handle) bool {
	t, ok := tt.tasks[h]
	if !ok || t.State != tcb.Suspended {
		return false
	}
	delete(tt.suspend, h)
	t.State = tcb.Ready
	tt.ready.Insert(h, t.Priority)
	return true
}

// Block moves h to BLOCKED from READY or RUNNING, recording reason. Reports
// whether the transition happened.
func (tt *TaskTable) Block(h tcb.Handle, reason tcb.BlockReason) bool {
	t, ok := tt.tasks[h]
	if !ok || (t.State != tcb.Ready && t.State != tcb.Running) {
		return false
	}
	if t.State == tcb.Ready {
		tt.ready.Remove(h)
	} else {
		tt.running = 0
	}
	t.State = tcb.Blocked
	t.BlockedOn = reason
	tt.blocked[h] = true
	return true
}

// Unblock moves h from BLOCKED back to READY, clearing BlockedOn and zeroing
// DelayTicks. Reports whether the transition happened.
func (tt *TaskTable) Unblock(h tcb.Handle) bool {
	t, ok := tt.tasks[h]
	if !ok || t.State != tcb.Blocked {
		return false
	}
	delete(tt.blocked, h)
	t.BlockedOn = tcb.BlockNone
	t.DelayTicks = 0
	t.State = tcb.Ready
	tt.ready.Insert(h, t.Priority)
	return true
}

// SetPriority updates h's priority. If h is currently READY, it is
// re-inserted into the ready queue at the tail of the new priority's band so
// ordering stays consistent with §4.3. Reports whether h exists.
func (tt *TaskTable) SetPriority(h tcb.Handle, priority int) bool {
	t, ok := tt.tasks[h]
	if !ok {
		return false
	}
	t.Priority = priority
	if t.State == tcb.Ready {
		tt.ready.Insert(h, priority)
	}
	return true
}

// NextReady returns the head of the ready queue (highest priority, oldest
// within its band) without removing it.
func (tt *TaskTable) NextReady() (tcb.Handle, bool) {
	return tt.ready.Head()
}

// PopReady removes and returns the head of the ready queue.
func (tt *TaskTable) PopReady() (tcb.Handle, bool) {
	return tt.ready.PopHead()
}

// SetRunning marks h as the RUNNING task, removing it from the ready queue
// first if it was there. Reports whether h exists.
func (tt *TaskTable) SetRunning(h tcb.Handle) bool {
	t, ok := tt.tasks[h]
	if !ok {
		return false
	}
	if t.State == tcb.Ready {
		tt.ready.Remove(h)
	}
	t.State = tcb.Running
	tt.running = h
	return true
}

// Running returns the currently RUNNING handle and true, or the zero handle
// and false if no task is running.
func (tt *TaskTable) Running() (tcb.Handle, bool) {
	if tt.running == 0 {
		return 0, false
	}
	return tt.running, true
}

// YieldCurrent transitions the RUNNING task (if any) back to READY, appended
// to the tail of its priority band, and clears the running slot.
func (tt *TaskTable) YieldCurrent() {
	if tt.running == 0 {
		return
	}
	h := tt.running
	t := tt.tasks[h]
	tt.running = 0
	if t == nil {
		return
	}
	t.State = tcb.Ready
	tt.ready.Insert(h, t.Priority)
}

// DelayDecrement decrements DelayTicks for every BLOCKED task with
// BlockedOn == BlockDelay and DelayTicks > 0, returning the handles that
// reached zero (candidates for Unblock). Called once per tick, before task
// selection (§4.4 step 2).
func (tt *TaskTable) DelayDecrement() []tcb.Handle {
	var expired []tcb.Handle
	for h := range tt.blocked {
		t := tt.tasks[h]
		if t == nil || t.BlockedOn != tcb.BlockDelay || t.DelayTicks <= 0 {
			continue
		}
		t.DelayTicks--
		if t.DelayTicks == 0 {
			expired = append(expired, h)
		}
	}
	return expired
}

// Counts returns the current size of the ready, blocked, and suspended sets,
// plus the total number of live tasks (used by getSystemStatus).
func (tt *TaskTable) Counts() (ready, blocked, suspended, total int) {
	return tt.ready.Len(), len(tt.blocked), len(tt.suspend), len(tt.tasks)
}

// All returns every live TCB, in no particular order.
func (tt *TaskTable) All() []*tcb.TCB {
	out := make([]*tcb.TCB, 0, len(tt.tasks))
	for _, t := range tt.tasks {
		out = append(out, t)
	}
	return out
}

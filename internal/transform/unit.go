package transform

import (
	"math"

	"github.com/dop251/goja"

	"rtoskernel/internal/rtoserr"
	"rtoskernel/internal/tcb"
)

// Factory produces a fresh restartable unit for a task each time the task
// is (re)created. It owns the compiled program text only; every New call
// gets its own goja.Runtime, since goja.Runtime is not safe for concurrent
// use and each task must be independently steppable.
type Factory struct {
	result   *Result
	tickRate int
}

// NewFactory compiles src under mode and binds it to tickRate (needed to
// convert delayMs(...) into ticks). Returns the diagnostics produced by the
// transform even on success, so callers can log a fallback-to-trivial
// decision without treating it as an error.
func NewFactory(src string, mode Mode, tickRate int) (*Factory, []string, error) {
	if tickRate <= 0 {
		return nil, nil, rtoserr.New(rtoserr.TransformFailure, "tickRate must be positive")
	}
	res, err := Transform(src, mode)
	if err != nil {
		return nil, nil, rtoserr.Wrap(rtoserr.TransformFailure, "compiling task body", err)
	}
	return &Factory{result: res, tickRate: tickRate}, res.Diagnostics, nil
}

// IsGenerator reports whether the compiled body has any suspension points.
func (f *Factory) IsGenerator() bool { return f.result.Generator }

// Program returns the compiled program text, for callers (rtosctl inspect)
// that want to show the rewrite without running it.
func (f *Factory) Program() string { return f.result.Program }

// SuspensionPoints returns the number of yield points the rewrite inserted.
func (f *Factory) SuspensionPoints() int { return f.result.SuspensionPoints }

// New instantiates a restartable unit bound to params, which is passed to
// the compiled function as the receiver's Params field, exposed on the
// context object as ctx.params.
func (f *Factory) New(params any) (tcb.Unit, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	val, err := vm.RunString(f.result.Program)
	if err != nil {
		return nil, rtoserr.Wrap(rtoserr.TaskBodyError, "loading compiled task body", err)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, rtoserr.New(rtoserr.TaskBodyError, "compiled task body is not callable")
	}

	ctx := newJSContext(vm, f.tickRate, params)

	if !f.result.Generator {
		return &trivialUnit{vm: vm, fn: fn, ctx: ctx}, nil
	}

	ret, err := fn(goja.Undefined(), vm.ToValue(ctx))
	if err != nil {
		return nil, rtoserr.Wrap(rtoserr.TaskBodyError, "invoking task body", err)
	}
	return newGeneratorUnit(vm, ret)
}

// jsContext is the object bound to a task body's receiver parameter. Its
// Delay/DelayMs methods return plain maps, which goja exports back to JS as
// ordinary objects — the same pattern used elsewhere in this codebase for
// handing Go-computed values to a sandboxed script.
type jsContext struct {
	Params   any
	tickRate int
}

func newJSContext(vm *goja.Runtime, tickRate int, params any) *jsContext {
	return &jsContext{Params: params, tickRate: tickRate}
}

// Delay returns a marker consumed by the generator unit's Step, requesting
// the task block for exactly n ticks.
func (c *jsContext) Delay(n int64) map[string]interface{} {
	if n < 0 {
		n = 0
	}
	return map[string]interface{}{"delayTicks": n}
}

// DelayMs converts a millisecond duration to ticks using the scheduler's
// configured tick rate, rounding up so a caller never blocks for less time
// than requested.
func (c *jsContext) DelayMs(ms int64) map[string]interface{} {
	if ms < 0 {
		ms = 0
	}
	ticks := int64(math.Ceil(float64(ms) * float64(c.tickRate) / 1000.0))
	return map[string]interface{}{"delayTicks": ticks}
}

// Yield returns nil. The Transformer does not treat ctx.yield() as a
// suspension point: in a task body it is an ordinary call.
func (c *jsContext) Yield() interface{} { return nil }

// generatorUnit steps a goja generator object one next() call at a time.
type generatorUnit struct {
	vm      *goja.Runtime
	genObj  *goja.Object
	nextFn  goja.Callable
	done    bool
}

func newGeneratorUnit(vm *goja.Runtime, genVal goja.Value) (*generatorUnit, error) {
	genObj := genVal.ToObject(vm)
	nextFn, ok := goja.AssertFunction(genObj.Get("next"))
	if !ok {
		return nil, rtoserr.New(rtoserr.TaskBodyError, "task body did not produce a generator")
	}
	return &generatorUnit{vm: vm, genObj: genObj, nextFn: nextFn}, nil
}

func (u *generatorUnit) Step() (tcb.StepResult, error) {
	if u.done {
		return tcb.StepResult{Done: true}, nil
	}
	res, err := u.nextFn(genThis(u.genObj))
	if err != nil {
		u.done = true
		return tcb.StepResult{}, rtoserr.Wrap(rtoserr.TaskBodyError, "task body raised", err)
	}
	obj := res.ToObject(u.vm)
	done := obj.Get("done").ToBoolean()
	u.done = done
	if done {
		return tcb.StepResult{Done: true}, nil
	}

	value := obj.Get("value")
	ticks, hasDelay := delayTicksOf(value)
	return tcb.StepResult{Done: false, HasDelay: hasDelay, DelayTicks: ticks}, nil
}

// genThis wraps genObj as a goja.Value the way AssertFunction's returned
// callable expects as its receiver.
func genThis(genObj *goja.Object) goja.Value { return genObj }

// delayTicksOf inspects a yielded value for the {delayTicks: n} shape
// produced by jsContext.Delay/DelayMs.
func delayTicksOf(v goja.Value) (int64, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	exported := v.Export()
	m, ok := exported.(map[string]interface{})
	if !ok {
		return 0, false
	}
	raw, ok := m["delayTicks"]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// trivialUnit wraps a delay-free task body whose call is deferred until the
// task's first Step, so a body that throws surfaces as a TaskBodyError at
// the scheduler boundary once the task exists, matching the generator
// unit's contract rather than failing inside Factory.New.
type trivialUnit struct {
	vm  *goja.Runtime
	fn  goja.Callable
	ctx *jsContext
	ran bool
}

func (u *trivialUnit) Step() (tcb.StepResult, error) {
	if u.ran {
		return tcb.StepResult{Done: true}, nil
	}
	u.ran = true
	if _, err := u.fn(goja.Undefined(), u.vm.ToValue(u.ctx)); err != nil {
		return tcb.StepResult{}, rtoserr.Wrap(rtoserr.TaskBodyError, "invoking task body", err)
	}
	return tcb.StepResult{Done: true}, nil
}

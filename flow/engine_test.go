package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/flowvm/asset"
	"github.com/chazu/flowvm/expr"
	"github.com/chazu/flowvm/value"
)

// harness wires an engine to recording hooks.
type harness struct {
	e       *Engine
	logs    []string
	errors  []string
	stopped int
	clock   time.Time
}

func newHarness(t *testing.T, b *asset.Builder, cfg Config) *harness {
	t.Helper()
	e, err := NewEngine(b.Assets(), cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	h := &harness{e: e, clock: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	e.SetHooks(Hooks{
		Log: func(fs *FlowState, ci int, msg string) { h.logs = append(h.logs, msg) },
		OnFlowError: func(fs *FlowState, ci int, msg string) {
			h.errors = append(h.errors, msg)
		},
		StopScript: func() { h.stopped++ },
	})
	e.SetClock(func() time.Time { return h.clock })
	return h
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.e.Tick()
	}
}

// drain ticks until the queue is empty.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 100 && h.e.QueueLen() > 0; i++ {
		h.e.Tick()
	}
	require.Zero(t, h.e.QueueLen(), "queue did not drain")
}

func constant(b *asset.Builder, v value.Value) []uint16 {
	return expr.NewProgram().PushConstant(b.Constant(v)).End().Code()
}

func input(slot uint16) []uint16 {
	return expr.NewProgram().PushInput(int(slot)).End().Code()
}

// ---------------------------------------------------------------------------
// Readiness and queueing
// ---------------------------------------------------------------------------

func TestComponentWithOptionalInputsQueuedOnce(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	noop := main.Component(ComponentTypeNoOp, "noop").OptionalInput().SeqOut()

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	assert.Equal(t, 1, h.e.QueueLen())
	assert.True(t, h.e.IsQueued(fs, noop.Index()))

	h.e.PingComponent(fs, noop.Index())
	h.e.PingComponent(fs, noop.Index())
	assert.Equal(t, 1, h.e.QueueLen())
	assert.Equal(t, 1, fs.RefCounter)

	h.e.Tick()
	assert.Zero(t, h.e.QueueLen())
	assert.Zero(t, fs.RefCounter)
}

func TestComponentWaitsForRequiredInputs(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	start := main.Component(ComponentTypeStart, "start").SeqOut()
	log := main.Component(ComponentTypeLog, "log").SeqInput().DataInput()
	log.Property(input(log.InputSlot(1)))
	main.Connect(start, 0, log, 0)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	h.drain(t)
	assert.Empty(t, h.logs, "log ran without its data input")
	assert.True(t, fs.Values[log.InputSlot(0)].IsDefined())

	h.e.PropagateValue(fs, start.Index(), 0, value.Null)
	require.Equal(t, 0, h.e.QueueLen())
	fs.Values[log.InputSlot(1)] = value.FromInt32(7)
	h.e.PropagateValue(fs, start.Index(), 0, value.Null)
	h.drain(t)
	assert.Equal(t, []string{"7"}, h.logs)
	assert.True(t, fs.Values[log.InputSlot(0)].IsEmpty(), "consumed sequence input not reset")
}

func TestSetVariableEvalExprLog(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	x := main.Local(value.FromInt32(0))

	set := main.Component(ComponentTypeSetVariable, "set x").
		Property(expr.NewProgram().PushLocal(x).End().Code()).
		Property(constant(b, value.FromInt32(10))).
		SeqOut()
	eval := main.Component(ComponentTypeEvalExpr, "x + 5").
		SeqInput().
		Property(expr.NewProgram().PushLocal(x).PushConstant(b.Constant(value.FromInt32(5))).Op(expr.OpAdd).End().Code()).
		SeqOut().
		Output()
	log := main.Component(ComponentTypeLog, "log").DataInput()
	log.Property(input(log.InputSlot(0)))
	main.Connect(set, 0, eval, 0)
	main.Connect(eval, 1, log, 0)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	h.ticks(2)

	got := fs.Values[log.InputSlot(0)]
	assert.Equal(t, value.TypeInt32, got.Type())
	assert.True(t, value.Equal(got, value.FromInt32(15)), "log input = %s", got.ToText())

	h.e.Tick()
	assert.Equal(t, []string{"15"}, h.logs)
}

func TestLoopDrivesCounter(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	i := main.Local(value.FromInt32(-1))

	start := main.Component(ComponentTypeStart, "start").SeqOut()
	loop := main.Component(ComponentTypeLoop, "loop").
		SeqInput().
		SeqInput().
		Property(expr.NewProgram().PushLocal(i).End().Code()).
		Property(constant(b, value.FromInt32(0))).
		Property(constant(b, value.FromInt32(3))).
		Output().
		Output()
	counter := main.Component(ComponentTypeCounter, "counter").SeqInput().SeqOut().Output()
	log := main.Component(ComponentTypeLog, "log").DataInput()
	log.Property(input(log.InputSlot(0)))

	main.Connect(start, 0, loop, 0)
	main.Connect(loop, 0, counter, 0)
	main.Connect(counter, 0, loop, 1)
	main.Connect(counter, 1, log, 0)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.drain(t)

	got := fs.Values[log.InputSlot(0)]
	assert.True(t, value.Equal(got, value.FromInt32(3)), "counter output = %s", got.ToText())
	assert.Nil(t, h.e.GetComponentState(fs, loop.Index()), "loop state leaked")
	assert.Equal(t, int32(2), fs.Local(i).Int32())

	st, ok := stateOf[*CounterState](h.e, fs, counter.Index())
	require.True(t, ok)
	assert.Equal(t, int32(3), st.Count)
	assert.Equal(t, []string{"1", "2", "3"}, h.logs)
	assert.Zero(t, fs.RefCounter)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestCatchErrorReceivesMessage(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	a := main.Component(ComponentTypeStart, "A").SeqOut()
	fail := main.Component(ComponentTypeError, "B").
		OptionalInput().
		Property(constant(b, value.FromString("boom"))).
		SeqOut()
	c := main.Component(ComponentTypeLog, "C").SeqInput()
	c.Property(constant(b, value.FromString("C ran")))
	catch := main.Component(ComponentTypeCatchError, "catch").SeqOut().Output()
	caught := main.Component(ComponentTypeLog, "caught").DataInput()
	caught.Property(input(caught.InputSlot(0)))

	main.Connect(a, 0, fail, 0)
	main.Connect(fail, 0, c, 0)
	main.Connect(catch, 1, caught, 0)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	h.e.Tick()

	st, ok := stateOf[*CatchErrorState](h.e, fs, catch.Index())
	require.True(t, ok, "catch state not allocated")
	assert.Equal(t, "boom", st.Message.GetString())
	assert.False(t, h.e.IsQueued(fs, c.Index()))
	assert.True(t, h.e.IsQueued(fs, catch.Index()))

	h.drain(t)
	assert.Equal(t, []string{"boom"}, h.logs)
	assert.Nil(t, h.e.GetComponentState(fs, catch.Index()))
	assert.False(t, h.e.IsStopped())
	assert.Empty(t, h.errors)
}

func TestErrorOutputRecoversLocally(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	bad := main.Component(ComponentTypeEvalExpr, "bad").
		Property(expr.NewProgram().
			PushConstant(b.Constant(value.FromInt32(1))).
			PushConstant(b.Constant(value.FromInt32(0))).
			Op(expr.OpDiv).End().Code()).
		SeqOut().
		Output().
		ErrorOutput()
	log := main.Component(ComponentTypeLog, "log").DataInput()
	log.Property(input(log.InputSlot(0)))
	main.Connect(bad, 2, log, 0)

	h := newHarness(t, b, Config{})
	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.drain(t)

	require.Len(t, h.logs, 1)
	assert.Contains(t, h.logs[0], "zero")
	assert.False(t, h.e.IsStopped())
}

func TestAllocationFailureRoutedToErrorOutput(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	bad := main.Component(ComponentTypeEvalExpr, "allocate").
		Property(expr.NewProgram().
			PushConstant(b.Constant(value.FromDouble(1e18))).
			Op(expr.OpArrayAllocate).End().Code()).
		SeqOut().
		Output().
		ErrorOutput()
	log := main.Component(ComponentTypeLog, "log").DataInput()
	log.Property(input(log.InputSlot(0)))
	main.Connect(bad, 2, log, 0)

	h := newHarness(t, b, Config{})
	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	require.NotPanics(t, func() { h.drain(t) })

	require.Len(t, h.logs, 1)
	assert.Contains(t, h.logs[0], "out of memory")
	assert.Empty(t, h.errors)
	assert.False(t, h.e.IsStopped())
}

func TestUncaughtErrorStopsScript(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(ComponentTypeError, "fail").Property(constant(b, value.FromString("boom")))

	h := newHarness(t, b, Config{})
	var hookFS *FlowState
	hooks := h.e.Hooks()
	hooks.OnFlowError = func(fs *FlowState, ci int, msg string) {
		hookFS = fs
		h.errors = append(h.errors, msg)
	}
	h.e.SetHooks(hooks)

	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.e.Tick()

	require.Len(t, h.errors, 1)
	assert.Contains(t, h.errors[0], "boom")
	assert.Contains(t, h.errors[0], `component "fail"`)
	assert.Same(t, fs, hookFS)
	assert.True(t, fs.Error)
	assert.True(t, h.e.IsStopped())
	assert.Equal(t, 1, h.stopped)
	assert.Equal(t, uint64(1), h.e.Stats().FatalErrors)
}

func TestThrowDisabledSuppressesErrors(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(ComponentTypeError, "fail").Property(constant(b, value.FromString("boom")))

	h := newHarness(t, b, Config{})
	prev := h.e.SetThrowEnabled(false)
	assert.True(t, prev)
	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.e.Tick()

	assert.Empty(t, h.errors)
	assert.False(t, h.e.IsStopped())
}

func TestQueueFullIsFlowError(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(ComponentTypeNoOp, "a")
	main.Component(ComponentTypeNoOp, "b")

	h := newHarness(t, b, Config{QueueSize: 1})
	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	require.Len(t, h.errors, 1)
	assert.Contains(t, h.errors[0], msgQueueFull)
	assert.True(t, h.e.IsStopped())
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

func actionBuilder(t *testing.T, fail bool) (*asset.Builder, *asset.FlowBuilder, *asset.ComponentBuilder) {
	t.Helper()
	b := asset.NewBuilder()
	main := b.Flow("main")
	action := b.Flow("double")

	start := main.Component(ComponentTypeStart, "start").SeqOut()
	call := main.Component(ComponentTypeCallAction, "call").
		SeqInput().
		DataInput().
		Property(constant(b, value.FromInt32(int32(action.Index())))).
		SeqOut().
		Output().
		ErrorOutput()
	arg := main.Component(ComponentTypeConstant, "arg").
		Property(constant(b, value.FromInt32(21))).
		SeqOut().
		Output()
	result := main.Component(ComponentTypeLog, "result").DataInput()
	result.Property(input(result.InputSlot(0)))
	failed := main.Component(ComponentTypeLog, "failed").DataInput()
	failed.Property(input(failed.InputSlot(0)))
	done := main.Component(ComponentTypeLog, "done").SeqInput()
	done.Property(constant(b, value.FromString("done")))

	main.Connect(arg, 1, call, 1)
	main.Connect(start, 0, call, 0)
	main.Connect(call, 0, done, 0)
	main.Connect(call, 1, result, 0)
	main.Connect(call, 2, failed, 0)

	aStart := action.Component(ComponentTypeStart, "start").SeqOut()
	in := action.Component(ComponentTypeInput, "n").Property(constant(b, value.FromInt32(1))).Output()
	twice := action.Component(ComponentTypeEvalExpr, "n * 2").SeqInput().DataInput()
	twice.Property(expr.NewProgram().
		PushInput(int(twice.InputSlot(1))).
		PushConstant(b.Constant(value.FromInt32(2))).
		Op(expr.OpMul).End().Code()).
		SeqOut().
		Output()
	out := action.Component(ComponentTypeOutput, "out").DataInput().Property(constant(b, value.FromInt32(1)))
	end := action.Component(ComponentTypeEnd, "end").SeqInput()

	action.Connect(in, 0, twice, 1)
	action.Connect(twice, 1, out, 0)
	if fail {
		boom := action.Component(ComponentTypeError, "boom").SeqInput().Property(constant(b, value.FromString("action failed")))
		action.Connect(aStart, 0, boom, 0)
	} else {
		action.Connect(aStart, 0, twice, 0)
		action.Connect(twice, 0, end, 0)
	}
	return b, main, call
}

func TestCallActionRoundTrip(t *testing.T) {
	b, main, _ := actionBuilder(t, false)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.drain(t)

	assert.ElementsMatch(t, []string{"42", "done"}, h.logs)
	assert.Empty(t, fs.Children, "action state not freed")
	assert.Equal(t, 1, h.e.Stats().FlowStatesAlive)
	assert.Equal(t, uint64(2), h.e.Stats().FlowStatesCreated)
}

func TestCallActionErrorOutput(t *testing.T) {
	b, main, _ := actionBuilder(t, true)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.drain(t)

	assert.Equal(t, []string{"action failed"}, h.logs)
	assert.Empty(t, fs.Children)
	assert.False(t, fs.Error)
	assert.False(t, h.e.IsStopped())
}

func TestNativeActionError(t *testing.T) {
	b := asset.NewBuilder()
	b.ActionName("beep")
	main := b.Flow("main")
	main.Component(ComponentTypeCallAction, "call").Property(constant(b, value.FromInt32(-1))).SeqOut()

	h := newHarness(t, b, Config{})
	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.e.Tick()

	require.Len(t, h.errors, 1)
	assert.Contains(t, h.errors[0], "beep")
	assert.Contains(t, h.errors[0], "action #0")
}

// ---------------------------------------------------------------------------
// Async execution
// ---------------------------------------------------------------------------

func TestAsyncKeepsActionAlive(t *testing.T) {
	const asyncType uint16 = 2000

	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(ComponentTypeLabelIn, "caller")
	action := b.Flow("action")
	action.Component(asyncType, "wait")

	h := newHarness(t, b, Config{})

	var before, during int
	var pendingFS *FlowState
	h.e.RegisterComponent(asyncType, func(e *Engine, fs *FlowState, ci int) {
		before = fs.RefCounter
		e.StartAsyncExecution(fs, ci)
		during = fs.RefCounter
		pendingFS = fs
	})

	page, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	child := h.e.InitActionFlowState(action.Index(), page, 0)
	pageBefore := page.RefCounter

	h.e.Tick()
	require.Same(t, child, pendingFS)
	assert.Equal(t, before+1, during)
	assert.Equal(t, 1, child.RefCounter)
	assert.Equal(t, pageBefore+1, page.RefCounter)
	assert.False(t, h.e.CanFreeFlowState(child))
	assert.True(t, h.e.IsAsyncPending(child, 0))
	assert.False(t, child.IsFreed())

	h.e.EndAsyncExecution(child, 0)
	assert.Zero(t, child.RefCounter)
	assert.Equal(t, pageBefore, page.RefCounter)
	assert.True(t, h.e.CanFreeFlowState(child))
	assert.True(t, child.IsFreed())
	assert.Empty(t, page.Children)
}

func TestDelayWaitsForClock(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	start := main.Component(ComponentTypeStart, "start").SeqOut()
	delay := main.Component(ComponentTypeDelay, "delay").SeqInput().Property(constant(b, value.FromInt32(100))).SeqOut()
	log := main.Component(ComponentTypeLog, "log").SeqInput().Property(constant(b, value.FromString("woke")))
	main.Connect(start, 0, delay, 0)
	main.Connect(delay, 0, log, 0)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	h.ticks(5)
	assert.Empty(t, h.logs)
	assert.True(t, h.e.IsAsyncPending(fs, delay.Index()))
	assert.True(t, h.e.IsQueued(fs, delay.Index()))

	h.clock = h.clock.Add(150 * time.Millisecond)
	h.ticks(2)
	assert.Equal(t, []string{"woke"}, h.logs)
	assert.False(t, h.e.IsAsyncPending(fs, delay.Index()))
	assert.Nil(t, h.e.GetComponentState(fs, delay.Index()))
	assert.Zero(t, fs.RefCounter)
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

func TestTickBudgetOverrun(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(ComponentTypeNoOp, "a")
	main.Component(ComponentTypeNoOp, "b")

	h := newHarness(t, b, Config{TickBudget: 5 * time.Millisecond})
	h.e.SetClock(func() time.Time {
		h.clock = h.clock.Add(10 * time.Millisecond)
		return h.clock
	})
	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	h.e.Tick()
	assert.Equal(t, 1, h.e.QueueLen())
	assert.Equal(t, uint64(1), h.e.Stats().BudgetOverruns)

	h.e.Tick()
	assert.Zero(t, h.e.QueueLen())
}

func TestContinuousTaskRunsOncePerTick(t *testing.T) {
	const pollType uint16 = 2001

	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(pollType, "poll")

	h := newHarness(t, b, Config{})
	runs := 0
	h.e.RegisterComponent(pollType, func(e *Engine, fs *FlowState, ci int) {
		runs++
		e.AddToQueue(fs, ci, true)
		e.AddToQueue(fs, ci, true)
	})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		h.e.Tick()
		assert.Equal(t, i, runs)
		assert.Equal(t, 1, h.e.QueueLen(), "re-arming must not duplicate the task")
		assert.Equal(t, 1, fs.RefCounter)
	}
}

func TestEndStopsPage(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	start := main.Component(ComponentTypeStart, "start").SeqOut()
	end := main.Component(ComponentTypeEnd, "end").SeqInput()
	main.Connect(start, 0, end, 0)

	h := newHarness(t, b, Config{})
	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.ticks(2)

	assert.True(t, h.e.IsStopped())
	_, err = h.e.StartPageFlow(main.Index())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDeleteFlowStateSweptAtEndOfTick(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(ComponentTypeComment, "c")

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	h.e.DeleteFlowState(fs)
	assert.False(t, fs.IsFreed())
	h.e.Tick()
	assert.True(t, fs.IsFreed())
	assert.Empty(t, h.e.Roots())
	assert.Nil(t, h.e.ActivePage())
}

// ---------------------------------------------------------------------------
// Watches, events and pages
// ---------------------------------------------------------------------------

func TestWatchVariablePropagatesChanges(t *testing.T) {
	b := asset.NewBuilder()
	g := b.Global(value.FromInt32(1))
	main := b.Flow("main")
	watch := main.Component(ComponentTypeWatchVariable, "watch").
		Property(expr.NewProgram().PushGlobal(g).End().Code()).
		SeqOut().
		Output()
	log := main.Component(ComponentTypeLog, "log").DataInput()
	log.Property(input(log.InputSlot(0)))
	main.Connect(watch, 1, log, 0)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.ticks(3)
	assert.Equal(t, []string{"1"}, h.logs)
	assert.Equal(t, 1, h.e.Watches())

	value.Assign(h.e.Global(g), value.FromInt32(2))
	h.ticks(2)
	assert.Equal(t, []string{"1", "2"}, h.logs)

	h.e.FreeFlowState(fs)
	assert.Zero(t, h.e.Watches())
}

type cursorNatives struct {
	vals    map[int]value.Value
	cursors []int
}

func (n *cursorNatives) Get(cursor int, id int32) value.Value {
	return n.vals[cursor].Clone()
}

func (n *cursorNatives) Set(cursor int, id int32, v value.Value) error {
	n.cursors = append(n.cursors, cursor)
	n.vals[cursor] = v.Clone()
	return nil
}

func TestAssignNativeVariableUsesCursor(t *testing.T) {
	const itemType uint16 = 2002

	b := asset.NewBuilder()
	main := b.Flow("main")
	item := main.Component(itemType, "item").
		Property(expr.NewProgram().PushGlobal(0).End().Code())

	h := newHarness(t, b, Config{})
	natives := &cursorNatives{vals: map[int]value.Value{}}
	h.e.SetNativeVariables(natives)
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	lv, ok := h.e.EvalAssignablePropertyWithIterators(fs, item.Index(), 0, []int32{3})
	require.True(t, ok)
	assert.Equal(t, value.TypeNativeVariable, lv.Target.Type())
	assert.Equal(t, 3, lv.Cursor)

	require.True(t, h.e.AssignValue(fs, item.Index(), lv, value.FromInt32(9)))
	assert.Equal(t, []int{3}, natives.cursors)
	assert.Equal(t, int32(9), natives.vals[3].Int32())

	lv, ok = h.e.EvalAssignablePropertyWithIterators(fs, item.Index(), 0, []int32{3})
	require.True(t, ok)
	got := h.e.ReadLvalue(fs, item.Index(), lv)
	assert.Equal(t, int32(9), got.Int32())
	got.Release()
	lv.Target.Release()
}

func TestSendEvent(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	on := main.Component(ComponentTypeOnEvent, "on click").
		Property(constant(b, value.FromInt32(7))).
		SeqOut().
		Output()
	log := main.Component(ComponentTypeLog, "log").DataInput()
	log.Property(expr.NewProgram().PushInput(int(log.InputSlot(0))).Op(expr.OpEventGetCode).End().Code())
	main.Connect(on, 1, log, 0)

	h := newHarness(t, b, Config{})
	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.drain(t)
	assert.Zero(t, h.e.QueueLen(), "OnEvent must not be ready on its own")

	assert.Zero(t, h.e.SendEvent(fs, &value.Event{Code: 3}))
	assert.Equal(t, 1, h.e.SendEvent(fs, &value.Event{Code: 7}))
	h.drain(t)
	assert.Equal(t, []string{"7"}, h.logs)
}

func TestShowPageReusesRootState(t *testing.T) {
	b := asset.NewBuilder()
	first := b.Flow("first")
	second := b.Flow("second")
	first.Component(ComponentTypeShowPage, "go").Property(constant(b, value.FromInt32(int32(second.Index()))))
	second.Component(ComponentTypeComment, "c")

	h := newHarness(t, b, Config{})
	var shown []int
	hooks := h.e.Hooks()
	hooks.ReplacePage = func(i int) { shown = append(shown, i) }
	h.e.SetHooks(hooks)

	_, err := h.e.StartPageFlow(first.Index())
	require.NoError(t, err)
	h.e.Tick()

	require.NotNil(t, h.e.ActivePage())
	assert.Equal(t, second.Index(), h.e.ActivePage().FlowIndex)
	assert.Equal(t, []int{second.Index()}, shown)

	again, err := h.e.ShowPage(second.Index())
	require.NoError(t, err)
	assert.Same(t, h.e.ActivePage(), again)
	assert.Len(t, h.e.Roots(), 2)
}

func TestShowKeyboard(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	kb := main.Component(ComponentTypeShowKeyboard, "kb").
		Property(constant(b, value.FromString("Name"))).
		SeqOut().
		Output().
		Output()
	log := main.Component(ComponentTypeLog, "log").DataInput()
	log.Property(input(log.InputSlot(0)))
	main.Connect(kb, 1, log, 0)

	h := newHarness(t, b, Config{})
	var pending func(string, bool)
	var label string
	hooks := h.e.Hooks()
	hooks.ShowKeyboard = func(req KeyboardRequest, done func(string, bool)) {
		label = req.Label
		pending = done
	}
	h.e.SetHooks(hooks)

	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.e.Tick()
	require.NotNil(t, pending)
	assert.Equal(t, "Name", label)
	assert.True(t, h.e.IsAsyncPending(fs, kb.Index()))

	pending("Ada", true)
	pending("again", true)
	h.drain(t)
	assert.Equal(t, []string{"Ada"}, h.logs)
	assert.False(t, h.e.IsAsyncPending(fs, kb.Index()))
}

func TestUnknownComponentDelegation(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(12, "label widget")
	main.Component(FirstDashboardComponentType+5, "dashboard")

	h := newHarness(t, b, Config{})
	var widgets, dashboard int
	hooks := h.e.Hooks()
	hooks.ExecuteWidget = func(fs *FlowState, ci int, obj any) {
		widgets++
		assert.Equal(t, int32(ci), obj)
	}
	hooks.ExecuteDashboardComponent = func(e *Engine, fs *FlowState, ci int) { dashboard++ }
	h.e.SetHooks(hooks)

	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	h.e.Tick()

	assert.Equal(t, 1, widgets)
	assert.Equal(t, 1, dashboard)
	assert.Equal(t, uint64(1), h.e.Stats().Executions[12])
}

func TestWidgetPolledUntilObjectExists(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	main.Component(12, "button")

	h := newHarness(t, b, Config{})
	created := false
	var got []any
	hooks := h.e.Hooks()
	hooks.GetLvglObjectByIndex = func(int32) any { return nil }
	hooks.GetLvglObjectByName = func(name string) any {
		if !created {
			return nil
		}
		return "obj:" + name
	}
	hooks.ExecuteWidget = func(fs *FlowState, ci int, obj any) { got = append(got, obj) }
	h.e.SetHooks(hooks)

	_, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)

	h.ticks(3)
	assert.Empty(t, got)
	assert.Equal(t, 1, h.e.QueueLen(), "widget keeps polling")

	created = true
	h.e.Tick()
	assert.Equal(t, []any{"obj:button"}, got)
	assert.Zero(t, h.e.QueueLen())
}

// ---------------------------------------------------------------------------
// Debugger
// ---------------------------------------------------------------------------

func TestDebuggerGatesExecution(t *testing.T) {
	b := asset.NewBuilder()
	main := b.Flow("main")
	start := main.Component(ComponentTypeStart, "start").SeqOut()
	logc := main.Component(ComponentTypeLog, "log").
		SeqInput().
		Property(constant(b, value.FromString("hi"))).
		SeqOut()
	main.Connect(start, 0, logc, 0)

	h := newHarness(t, b, Config{})
	var msgs []Message
	hooks := h.e.Hooks()
	hooks.WriteDebuggerBytes = func(p []byte) {
		m, err := DecodeMessage(p)
		require.NoError(t, err)
		msgs = append(msgs, m)
	}
	h.e.SetHooks(hooks)

	fs, err := h.e.StartPageFlow(main.Index())
	require.NoError(t, err)
	d := h.e.AttachDebugger(true)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgFlowStateCreated, msgs[0].Kind)
	assert.Equal(t, fs.ID.String(), msgs[0].FlowState)

	h.ticks(3)
	assert.Equal(t, 1, h.e.QueueLen(), "paused debugger must not run tasks")

	d.SingleStep()
	h.e.Tick()
	assert.Empty(t, h.logs)
	assert.Equal(t, 1, h.e.QueueLen(), "start ran and queued the log")
	h.e.Tick()
	assert.Empty(t, h.logs)

	d.Resume()
	h.e.Tick()
	assert.Equal(t, []string{"hi"}, h.logs)
	assert.Equal(t, DebuggerRun, d.Mode())

	kinds := make(map[MessageKind]int)
	for _, m := range msgs {
		kinds[m.Kind]++
	}
	assert.Equal(t, 2, kinds[MsgModeChanged])
	assert.Equal(t, 1, kinds[MsgLog])
	assert.Positive(t, kinds[MsgValueChanged])

	h.e.DetachDebugger()
	assert.Nil(t, h.e.Debugger())
}

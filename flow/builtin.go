package flow

import (
	"fmt"
	"math"
	"time"

	"github.com/chazu/flowvm/value"
)

// maxCallDepth bounds nested action calls.
const maxCallDepth = 64

// ---------------------------------------------------------------------------
// Component states
// ---------------------------------------------------------------------------

// InputState remembers the value an Input component last delivered.
type InputState struct {
	Value value.Value
}

func (s *InputState) Release() { s.Value.Clear() }

// WatchVariableState holds the last value seen by a WatchVariable.
type WatchVariableState struct {
	Value value.Value
}

func (s *WatchVariableState) Release() { s.Value.Clear() }

// CounterState counts the activations of a Counter component.
type CounterState struct {
	Count int32
}

func (s *CounterState) Release() {}

// LoopState is the iteration of a running Loop.
type LoopState struct {
	Current float64
	To      float64
	Step    float64
	Integer bool
}

func (s *LoopState) Release() {}

func (s *LoopState) value() value.Value {
	if s.Integer {
		return value.FromInt32(int32(s.Current))
	}
	return value.FromDouble(s.Current)
}

func (s *LoopState) done() bool {
	if s.Step > 0 {
		return s.Current >= s.To
	}
	return s.Current <= s.To
}

// DelayState is the wake-up time of a pending Delay.
type DelayState struct {
	WakeAt time.Time
}

func (s *DelayState) Release() {}

// OnEventState holds the event being delivered to an OnEvent component.
type OnEventState struct {
	Event value.Value
}

func (s *OnEventState) Release() { s.Event.Clear() }

// ---------------------------------------------------------------------------
// Control
// ---------------------------------------------------------------------------

func executeStart(e *Engine, fs *FlowState, ci int) {
	e.PropagateValueThroughSeqout(fs, ci)
}

func executeEnd(e *Engine, fs *FlowState, ci int) {
	if fs.Parent != nil && fs.IsAction {
		e.PropagateValueThroughSeqout(fs.Parent, fs.ParentComponentIndex)
		return
	}
	e.Stop()
}

func executeNoOp(e *Engine, fs *FlowState, ci int) {
	e.PropagateValueThroughSeqout(fs, ci)
}

func executeLabelIn(e *Engine, fs *FlowState, ci int) {
	e.PropagateValueThroughSeqout(fs, ci)
}

// executeLabelOut jumps to the LabelIn component named by property 0.
func executeLabelOut(e *Engine, fs *FlowState, ci int) {
	target, ok := e.evalInt(fs, ci, 0)
	if !ok {
		return
	}
	c := fs.component(int(target))
	if c == nil || c.Type != ComponentTypeLabelIn {
		e.ThrowError(fs, ci, fmt.Sprintf("Component %d is not a LabelIn", target))
		return
	}
	e.AddToQueue(fs, int(target), false)
}

func executeSwitch(e *Engine, fs *FlowState, ci int) {
	c := fs.component(ci)
	for pi := range c.Properties {
		v, ok := e.EvalProperty(fs, ci, pi)
		if !ok {
			return
		}
		b, _ := v.ToBool()
		v.Release()
		if b {
			e.PropagateValue(fs, ci, pi, value.Null)
			return
		}
	}
}

func executeIsTrue(e *Engine, fs *FlowState, ci int) {
	v, ok := e.EvalProperty(fs, ci, 0)
	if !ok {
		return
	}
	b, _ := v.ToBool()
	v.Release()
	if b {
		e.PropagateValue(fs, ci, trueOutput, value.True)
	} else {
		e.PropagateValue(fs, ci, falseOutput, value.False)
	}
}

// executeCompare compares property 0 with property 1 using the operator
// in property 2. "between" tests property 1 <= property 0 <= property 3.
func executeCompare(e *Engine, fs *FlowState, ci int) {
	a, ok := e.EvalProperty(fs, ci, 0)
	if !ok {
		return
	}
	defer a.Release()
	b, ok := e.EvalProperty(fs, ci, 1)
	if !ok {
		return
	}
	defer b.Release()
	op, ok := e.evalText(fs, ci, 2)
	if !ok {
		return
	}

	var result bool
	switch op {
	case "=", "==":
		result = value.IsEqual(a, b)
	case "!=", "<>":
		result = !value.IsEqual(a, b)
	case "<":
		result = value.IsLess(a, b)
	case ">":
		result = value.IsGreater(a, b)
	case "<=":
		result = value.IsLess(a, b) || value.IsEqual(a, b)
	case ">=":
		result = value.IsGreater(a, b) || value.IsEqual(a, b)
	case "between":
		c, ok := e.EvalProperty(fs, ci, 3)
		if !ok {
			return
		}
		result = (value.IsGreater(a, b) || value.IsEqual(a, b)) && (value.IsLess(a, c) || value.IsEqual(a, c))
		c.Release()
	default:
		e.ThrowError(fs, ci, fmt.Sprintf("Unknown compare operator %q", op))
		return
	}

	if result {
		e.PropagateValue(fs, ci, trueOutput, value.True)
	} else {
		e.PropagateValue(fs, ci, falseOutput, value.False)
	}
}

// ---------------------------------------------------------------------------
// Values and variables
// ---------------------------------------------------------------------------

func executeEvalExpr(e *Engine, fs *FlowState, ci int) {
	v, ok := e.EvalProperty(fs, ci, 0)
	if !ok {
		return
	}
	e.PropagateValue(fs, ci, valueOutput, v)
	v.Release()
	e.PropagateValueThroughSeqout(fs, ci)
}

func executeConstant(e *Engine, fs *FlowState, ci int) {
	v, ok := e.EvalProperty(fs, ci, 0)
	if !ok {
		return
	}
	e.PropagateValue(fs, ci, valueOutput, v)
	v.Release()
	e.PropagateValueThroughSeqout(fs, ci)
}

// executeSetVariable assigns pairs of properties: 2i is the target, 2i+1
// the value.
func executeSetVariable(e *Engine, fs *FlowState, ci int) {
	c := fs.component(ci)
	for pi := 0; pi+1 < len(c.Properties); pi += 2 {
		v, ok := e.EvalProperty(fs, ci, pi+1)
		if !ok {
			return
		}
		lv, ok := e.EvalAssignableProperty(fs, ci, pi)
		if !ok {
			v.Release()
			return
		}
		ok = e.AssignValue(fs, ci, lv, v)
		v.Release()
		if !ok {
			return
		}
	}
	e.PropagateValueThroughSeqout(fs, ci)
}

func executeWatchVariable(e *Engine, fs *FlowState, ci int) {
	if _, ok := stateOf[*WatchVariableState](e, fs, ci); ok {
		return
	}
	v, ok := e.EvalProperty(fs, ci, 0)
	if !ok {
		return
	}
	e.AllocateComponentState(fs, ci, &WatchVariableState{Value: v})
	e.addWatch(fs, ci)
	e.PropagateValue(fs, ci, valueOutput, v)
}

func executeCounter(e *Engine, fs *FlowState, ci int) {
	st, ok := stateOf[*CounterState](e, fs, ci)
	if !ok {
		st = &CounterState{}
		e.AllocateComponentState(fs, ci, st)
	}
	st.Count++
	e.PropagateValue(fs, ci, valueOutput, value.FromInt32(st.Count))
	e.PropagateValueThroughSeqout(fs, ci)
}

// executeLoop iterates the variable in property 0 from property 1 up to,
// excluding, property 2 by the step in property 3 (default 1). Input 0
// (re)starts the loop, input 1 advances it.
func executeLoop(e *Engine, fs *FlowState, ci int) {
	c := fs.component(ci)
	st, running := stateOf[*LoopState](e, fs, ci)
	if !running || len(c.Inputs) > 0 && fs.Values[c.Inputs[0]].IsDefined() {
		startLoop(e, fs, ci)
		return
	}

	st.Current += st.Step
	if st.done() {
		e.DeallocateComponentState(fs, ci)
		e.PropagateValue(fs, ci, loopDoneOutput, value.Null)
		return
	}
	if !loopAssign(e, fs, ci, st) {
		e.DeallocateComponentState(fs, ci)
		return
	}
	e.PropagateValue(fs, ci, loopBodyOutput, value.Null)
}

func startLoop(e *Engine, fs *FlowState, ci int) {
	e.DeallocateComponentState(fs, ci)

	from, ok := e.EvalProperty(fs, ci, 1)
	if !ok {
		return
	}
	defer from.Release()
	to, ok := e.evalDouble(fs, ci, 2)
	if !ok {
		return
	}
	step, ok := e.evalOptional(fs, ci, 3)
	if !ok {
		return
	}
	defer step.Release()

	st := &LoopState{To: to, Step: 1, Integer: from.IsInteger()}
	if st.Current, ok = from.ToDouble(); !ok {
		e.throwProperty(fs, ci, 1, fmt.Sprintf("Number value expected, got %s", from.TypeName()))
		return
	}
	if step.IsDefined() {
		if st.Step, ok = step.ToDouble(); !ok || st.Step == 0 || math.IsNaN(st.Step) {
			e.throwProperty(fs, ci, 3, "Loop step must be a non-zero number")
			return
		}
		st.Integer = st.Integer && step.IsInteger()
	}

	if st.done() {
		e.PropagateValue(fs, ci, loopDoneOutput, value.Null)
		return
	}
	e.AllocateComponentState(fs, ci, st)
	if !loopAssign(e, fs, ci, st) {
		e.DeallocateComponentState(fs, ci)
		return
	}
	e.PropagateValue(fs, ci, loopBodyOutput, value.Null)
}

func loopAssign(e *Engine, fs *FlowState, ci int, st *LoopState) bool {
	lv, ok := e.EvalAssignableProperty(fs, ci, 0)
	if !ok {
		return false
	}
	return e.AssignValue(fs, ci, lv, st.value())
}

func executeLog(e *Engine, fs *FlowState, ci int) {
	msg, ok := e.evalText(fs, ci, 0)
	if !ok {
		return
	}
	e.hooks.Log(fs, ci, msg)
	if e.debugger != nil {
		e.debugger.logMessage(fs, ci, msg)
	}
	e.PropagateValueThroughSeqout(fs, ci)
}

func executeError(e *Engine, fs *FlowState, ci int) {
	msg, ok := e.evalText(fs, ci, 0)
	if !ok {
		return
	}
	e.ThrowError(fs, ci, msg)
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// executeCallAction starts the action flow in property 0. A negative index
// -n-1 calls native action n through the ExecuteAction hook.
func executeCallAction(e *Engine, fs *FlowState, ci int) {
	index, ok := e.evalInt(fs, ci, 0)
	if !ok {
		return
	}

	if index < 0 {
		action := int(-index - 1)
		if err := e.hooks.ExecuteAction(e, fs, ci, action); err != nil {
			fe := e.newFlowError(fs, ci, err.Error())
			fe.ActionIndex = action
			e.ThrowFlowError(fs, ci, fe)
			return
		}
		e.PropagateValueThroughSeqout(fs, ci)
		return
	}

	if e.def.Flow(int(index)) == nil {
		e.ThrowError(fs, ci, fmt.Sprintf("Invalid action flow index %d", index))
		return
	}
	depth := 0
	for p := fs; p != nil; p = p.Parent {
		depth++
	}
	if depth >= maxCallDepth {
		e.ThrowError(fs, ci, "Maximum action call depth exceeded")
		return
	}

	child := e.InitActionFlowState(int(index), fs, ci)
	if e.CanFreeFlowState(child) {
		e.FreeFlowState(child)
	}
}

// executeInput delivers the CallAction input selected by property 0.
func executeInput(e *Engine, fs *FlowState, ci int) {
	pc := fs.ParentComponent()
	if pc == nil {
		return
	}
	index, ok := e.evalInt(fs, ci, 0)
	if !ok {
		return
	}
	if index < 0 || int(index) >= len(pc.Inputs) {
		e.ThrowError(fs, ci, fmt.Sprintf("Invalid action input %d", index))
		return
	}
	v := fs.Parent.Values[pc.Inputs[index]]
	st, ok := stateOf[*InputState](e, fs, ci)
	if !ok {
		st = &InputState{}
		e.AllocateComponentState(fs, ci, st)
	}
	value.Assign(&st.Value, v)
	e.PropagateValue(fs, ci, inputValueOutput, v)
}

// executeOutput forwards input 0 to the CallAction output selected by
// property 0.
func executeOutput(e *Engine, fs *FlowState, ci int) {
	if fs.ParentComponent() == nil {
		return
	}
	index, ok := e.evalInt(fs, ci, 0)
	if !ok {
		return
	}
	c := fs.component(ci)
	if len(c.Inputs) == 0 {
		return
	}
	e.PropagateValue(fs.Parent, fs.ParentComponentIndex, int(index), fs.Values[c.Inputs[0]])
}

func executeDelay(e *Engine, fs *FlowState, ci int) {
	st, ok := stateOf[*DelayState](e, fs, ci)
	if !ok {
		ms, ok := e.evalDouble(fs, ci, 0)
		if !ok {
			return
		}
		st = &DelayState{WakeAt: e.now().Add(time.Duration(ms * float64(time.Millisecond)))}
		e.AllocateComponentState(fs, ci, st)
		e.StartAsyncExecution(fs, ci)
	}

	if e.now().Before(st.WakeAt) {
		e.AddToQueue(fs, ci, true)
		return
	}

	e.DeallocateComponentState(fs, ci)
	e.PropagateValueThroughSeqout(fs, ci)
	e.EndAsyncExecution(fs, ci)
}

func executeOnEvent(e *Engine, fs *FlowState, ci int) {
	st, ok := stateOf[*OnEventState](e, fs, ci)
	if !ok {
		return
	}
	ev := st.Event.Retain()
	e.DeallocateComponentState(fs, ci)
	e.PropagateValue(fs, ci, onEventValueOutput, ev)
	ev.Release()
	e.PropagateValueThroughSeqout(fs, ci)
}

// ---------------------------------------------------------------------------
// User interface
// ---------------------------------------------------------------------------

func executeShowPage(e *Engine, fs *FlowState, ci int) {
	index, ok := e.evalInt(fs, ci, 0)
	if !ok {
		return
	}
	if _, err := e.ShowPage(int(index)); err != nil {
		e.ThrowError(fs, ci, err.Error())
		return
	}
	e.PropagateValueThroughSeqout(fs, ci)
}

func executeSelectLanguage(e *Engine, fs *FlowState, ci int) {
	lang, ok := e.evalText(fs, ci, 0)
	if !ok {
		return
	}
	if err := e.SelectLanguage(lang); err != nil {
		e.ThrowError(fs, ci, err.Error())
		return
	}
	e.PropagateValueThroughSeqout(fs, ci)
}

// executeShowKeyboard asks the host for text. Properties: label, initial
// text, min chars, max chars, password.
func executeShowKeyboard(e *Engine, fs *FlowState, ci int) {
	var req KeyboardRequest
	var ok bool
	if req.Label, ok = e.evalText(fs, ci, 0); !ok {
		return
	}
	initial, ok := e.evalOptional(fs, ci, 1)
	if !ok {
		return
	}
	if initial.IsDefined() {
		req.InitialText = initial.ToText()
	}
	initial.Release()
	for pi, dst := range []*int{&req.MinChars, &req.MaxChars} {
		v, ok := e.evalOptional(fs, ci, pi+2)
		if !ok {
			return
		}
		n, _ := v.ToInt32()
		*dst = int(n)
		v.Release()
	}
	password, ok := e.evalOptional(fs, ci, 4)
	if !ok {
		return
	}
	req.Password, _ = password.ToBool()
	password.Release()

	e.StartAsyncExecution(fs, ci)
	e.hooks.ShowKeyboard(req, func(text string, ok bool) {
		if fs.freed || !e.IsAsyncPending(fs, ci) {
			return
		}
		if ok {
			v := value.MakeStringRef(text, allocTag)
			e.PropagateValue(fs, ci, keyboardResultOut, v)
			v.Release()
			e.PropagateValueThroughSeqout(fs, ci)
		} else {
			e.PropagateValue(fs, ci, keyboardCanceledOut, value.Null)
		}
		e.EndAsyncExecution(fs, ci)
	})
}

// executeShowKeypad asks the host for a number. Properties: label, initial
// value, min, max, unit symbol.
func executeShowKeypad(e *Engine, fs *FlowState, ci int) {
	req := KeypadRequest{Min: math.Inf(-1), Max: math.Inf(1)}
	var ok bool
	if req.Label, ok = e.evalText(fs, ci, 0); !ok {
		return
	}
	for pi, dst := range []*float64{&req.InitialValue, &req.Min, &req.Max} {
		v, ok := e.evalOptional(fs, ci, pi+1)
		if !ok {
			return
		}
		if v.IsDefined() {
			*dst, _ = v.ToDouble()
		}
		v.Release()
	}
	unit, ok := e.evalOptional(fs, ci, 4)
	if !ok {
		return
	}
	if unit.IsDefined() {
		req.Unit, _ = value.UnitFromSymbol(unit.ToText())
	}
	unit.Release()

	e.StartAsyncExecution(fs, ci)
	e.hooks.ShowKeypad(req, func(n float64, ok bool) {
		if fs.freed || !e.IsAsyncPending(fs, ci) {
			return
		}
		if ok {
			e.PropagateValue(fs, ci, keyboardResultOut, value.FromDouble(n).WithUnit(req.Unit))
			e.PropagateValueThroughSeqout(fs, ci)
		} else {
			e.PropagateValue(fs, ci, keyboardCanceledOut, value.Null)
		}
		e.EndAsyncExecution(fs, ci)
	})
}

package flow

import (
	"fmt"
	"time"

	"github.com/chazu/flowvm/asset"
	"github.com/chazu/flowvm/expr"
	"github.com/chazu/flowvm/value"
)

// Allocation tag of values created by the engine.
const allocTag uint32 = 0x464c0000

// flowEnv is the expr.Env of one property evaluation.
type flowEnv struct {
	e         *Engine
	fs        *FlowState
	ci        int
	iterators []int32
}

var _ expr.Env = (*flowEnv)(nil)

func (env *flowEnv) Constant(i int) (value.Value, bool) {
	cs := env.e.def.Constants
	if i < 0 || i >= len(cs) {
		return value.Undefined, false
	}
	return cs[i], true
}

func (env *flowEnv) Input(i int) (value.Value, bool) {
	if i < 0 || i >= env.fs.NumInputs() {
		return value.Undefined, false
	}
	return env.fs.Values[i], true
}

func (env *flowEnv) Local(i int) *value.Value  { return env.fs.Local(i) }
func (env *flowEnv) Global(i int) *value.Value { return env.e.Global(i) }
func (env *flowEnv) NumGlobals() int           { return len(env.e.globals) }

func (env *flowEnv) NativeVariable(id int32) value.Value {
	return env.e.natives.Get(env.cursor(), id)
}

func (env *flowEnv) cursor() int {
	if len(env.iterators) > 0 {
		return int(env.iterators[0])
	}
	return 0
}

func (env *flowEnv) Iterator(level int) int32 {
	if level >= 0 && level < len(env.iterators) {
		return env.iterators[level]
	}
	return 0
}

func (env *flowEnv) Tick() uint32       { return env.e.tickMillis() }
func (env *flowEnv) Now() time.Time     { return env.e.now() }
func (env *flowEnv) IsPageActive() bool { return env.e.hooks.IsPageActive(env.fs.Root()) }

func (env *flowEnv) TimelinePosition() float32 { return env.fs.Root().TimelinePosition }
func (env *flowEnv) Languages() []string       { return env.e.languages }
func (env *flowEnv) Language() string          { return env.e.language }

func (env *flowEnv) Translate(textIndex int) (string, bool) {
	return env.e.hooks.Translate(textIndex, env.e.language)
}

func (env *flowEnv) BitmapIndex(name string) int32 {
	return env.e.hooks.GetBitmapIndex(name)
}

// ---------------------------------------------------------------------------
// Property evaluation
// ---------------------------------------------------------------------------

// EvalProperty evaluates property pi of component ci and returns the owned
// result. A failure is thrown as a flow error and reported as false.
func (e *Engine) EvalProperty(fs *FlowState, ci, pi int) (value.Value, bool) {
	return e.EvalPropertyWithIterators(fs, ci, pi, nil)
}

// EvalPropertyWithIterators evaluates a property of a component repeated
// inside list widgets; iterators holds the list indexes, innermost first.
func (e *Engine) EvalPropertyWithIterators(fs *FlowState, ci, pi int, iterators []int32) (value.Value, bool) {
	p := e.property(fs, ci, pi)
	if p == nil {
		e.throwProperty(fs, ci, pi, "Property not defined")
		return value.Undefined, false
	}
	v, err := e.ev.Eval(&flowEnv{e: e, fs: fs, ci: ci, iterators: iterators}, p.Instructions)
	if err != nil {
		e.throwProperty(fs, ci, pi, err.Error())
		return value.Undefined, false
	}
	return v, true
}

// EvalAssignableProperty evaluates property pi as an assignment target.
func (e *Engine) EvalAssignableProperty(fs *FlowState, ci, pi int) (expr.Lvalue, bool) {
	return e.EvalAssignablePropertyWithIterators(fs, ci, pi, nil)
}

// EvalAssignablePropertyWithIterators evaluates an assignment target under
// list iterators. The cursor is kept in the result for the later write.
func (e *Engine) EvalAssignablePropertyWithIterators(fs *FlowState, ci, pi int, iterators []int32) (expr.Lvalue, bool) {
	p := e.property(fs, ci, pi)
	if p == nil {
		e.throwProperty(fs, ci, pi, "Property not defined")
		return expr.Lvalue{}, false
	}
	env := &flowEnv{e: e, fs: fs, ci: ci, iterators: iterators}
	lv, err := e.ev.EvalAssignable(env, p.Instructions)
	if err != nil {
		e.throwProperty(fs, ci, pi, err.Error())
		return expr.Lvalue{}, false
	}
	lv.Cursor = env.cursor()
	return lv, true
}

// ReadLvalue returns the current (owned) value of an assignment target.
func (e *Engine) ReadLvalue(fs *FlowState, ci int, lv expr.Lvalue) value.Value {
	return e.ev.Resolve(&flowEnv{e: e, fs: fs, ci: ci, iterators: []int32{int32(lv.Cursor)}}, lv.Target)
}

func (e *Engine) property(fs *FlowState, ci, pi int) *asset.Property {
	c := fs.component(ci)
	if c == nil {
		return nil
	}
	return c.Property(pi)
}

func (e *Engine) throwProperty(fs *FlowState, ci, pi int, msg string) {
	fe := e.newFlowError(fs, ci, msg)
	fe.Property = pi
	e.ThrowFlowError(fs, ci, fe)
}

// evalInt evaluates property pi as an integer.
func (e *Engine) evalInt(fs *FlowState, ci, pi int) (int32, bool) {
	v, ok := e.EvalProperty(fs, ci, pi)
	if !ok {
		return 0, false
	}
	defer v.Release()
	n, ok := v.ToInt32()
	if !ok {
		e.throwProperty(fs, ci, pi, fmt.Sprintf("Integer value expected, got %s", v.TypeName()))
		return 0, false
	}
	return n, true
}

// evalDouble evaluates property pi as a number.
func (e *Engine) evalDouble(fs *FlowState, ci, pi int) (float64, bool) {
	v, ok := e.EvalProperty(fs, ci, pi)
	if !ok {
		return 0, false
	}
	defer v.Release()
	f, ok := v.ToDouble()
	if !ok {
		e.throwProperty(fs, ci, pi, fmt.Sprintf("Number value expected, got %s", v.TypeName()))
		return 0, false
	}
	return f, true
}

// evalText evaluates property pi and formats it as text.
func (e *Engine) evalText(fs *FlowState, ci, pi int) (string, bool) {
	v, ok := e.EvalProperty(fs, ci, pi)
	if !ok {
		return "", false
	}
	defer v.Release()
	return v.ToText(), true
}

// evalOptional evaluates property pi when the component declares it.
func (e *Engine) evalOptional(fs *FlowState, ci, pi int) (value.Value, bool) {
	if e.property(fs, ci, pi) == nil {
		return value.Undefined, true
	}
	return e.EvalProperty(fs, ci, pi)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// AssignValue stores v (borrowed) into the target of lv on behalf of
// component ci and releases the target. Numeric values are coerced into the
// declared storage type. A failure is thrown as a flow error.
func (e *Engine) AssignValue(fs *FlowState, ci int, lv expr.Lvalue, v value.Value) bool {
	defer lv.Target.Release()

	v = v.GetValue()
	if lv.HasDstType {
		conv, ok := v.ConvertTo(lv.DstType)
		if !ok {
			e.ThrowError(fs, ci, fmt.Sprintf("Can not convert %s to %s", v.TypeName(), lv.DstType))
			return false
		}
		v = conv
	}

	t := lv.Target
	switch t.Type() {
	case value.TypeFlowOutput:
		e.PropagateValue(fs, ci, int(t.OutputIndex()), v)
		return true

	case value.TypeNativeVariable:
		if err := e.natives.Set(lv.Cursor, t.NativeVariableID(), v); err != nil {
			e.ThrowError(fs, ci, fmt.Sprintf("Failed to set native variable %d: %v", t.NativeVariableID(), err))
			return false
		}
		return true

	case value.TypeJSONMemberValue:
		obj, member := t.JSONMember()
		if obj == nil {
			e.ThrowError(fs, ci, "JSON value expected")
			return false
		}
		obj.Set(member, v)
		return true

	case value.TypeValuePtr, value.TypeArrayElementValue:
		slot := t.TargetSlot()
		if slot == nil {
			e.ThrowError(fs, ci, "Assignment target no longer exists")
			return false
		}
		value.Assign(slot, v)
		return true
	}

	e.ThrowError(fs, ci, fmt.Sprintf("Can not assign to %s", t.TypeName()))
	return false
}

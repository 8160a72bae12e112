package expr

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/tliron/commonlog"

	"github.com/chazu/flowvm/value"
)

var log = commonlog.GetLogger("flowvm.expr")

// Allocation tag of values created by operations.
const allocTag uint32 = 0x45580000

var (
	ErrStackOverflow      = errors.New("expr: stack overflow")
	ErrStackUnderflow     = errors.New("expr: stack underflow")
	ErrInvalidInstruction = errors.New("expr: invalid instruction")
	ErrInvalidOperand     = errors.New("expr: invalid operand")
	ErrMissingEnd         = errors.New("expr: missing END instruction")
	ErrUnbalanced         = errors.New("expr: expression left extra values on the stack")
	ErrNotAssignable      = errors.New("expr: assignable value expected")
)

// EvalError reports a failed evaluation. Message is the error text carried
// by the final Error value, or the description of a malformed expression.
type EvalError struct {
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *EvalError) Unwrap() error { return e.Err }

// Lvalue is the result of evaluating an assignment target.
type Lvalue struct {
	// Target is one of the assignable kinds: ValuePtr, NativeVariable,
	// FlowOutput, array element or JSON member. It is owned by the caller.
	Target value.Value

	// DstType is the declared storage type when HasDstType is set.
	DstType    value.Type
	HasDstType bool

	// Cursor is the list cursor the target was evaluated under; native
	// variables are read and written through it.
	Cursor int
}

// Evaluator executes expressions. It is not safe for concurrent use; nested
// evaluations on the same goroutine are.
type Evaluator struct {
	stack *Stack
	env   Env
	rng   *rand.Rand

	// Trace logs every instruction at debug level.
	Trace bool
}

// NewEvaluator returns an evaluator with a stack of stackSize values.
func NewEvaluator(stackSize int) *Evaluator {
	return &Evaluator{
		stack: NewStack(stackSize),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Seed makes Math.random deterministic.
func (ev *Evaluator) Seed(seed uint64) {
	ev.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Env returns the context of the evaluation in progress, or nil.
func (ev *Evaluator) Env() Env { return ev.env }

// Depth returns the number of values on the stack.
func (ev *Evaluator) Depth() int { return ev.stack.Len() }

// Eval evaluates code and returns its fully resolved, owned result. A final
// Error value is reported as an *EvalError.
func (ev *Evaluator) Eval(env Env, code []uint16) (value.Value, error) {
	raw, _, err := ev.run(env, code)
	if err != nil {
		return value.Undefined, err
	}
	result := ev.resolve(raw)
	raw.Release()
	if result.IsError() {
		msg := result.ErrorMessage()
		result.Release()
		return value.Undefined, &EvalError{Message: msg}
	}
	return result, nil
}

// EvalAssignable evaluates code that must produce an assignment target.
func (ev *Evaluator) EvalAssignable(env Env, code []uint16) (Lvalue, error) {
	raw, end, err := ev.run(env, code)
	if err != nil {
		return Lvalue{}, err
	}
	if raw.IsError() {
		msg := raw.ErrorMessage()
		raw.Release()
		return Lvalue{}, &EvalError{Message: msg}
	}
	if !raw.IsAssignable() {
		raw.Release()
		return Lvalue{}, &EvalError{Message: "Assignable value expected", Err: ErrNotAssignable}
	}
	t, ok := end.DstType()
	return Lvalue{Target: raw, DstType: t, HasDstType: ok}, nil
}

// run executes code up to END and returns the unresolved top value and the
// END word.
func (ev *Evaluator) run(env Env, code []uint16) (result value.Value, end Instruction, err error) {
	s := ev.stack
	base := s.Len()
	prev := ev.env
	ev.env = env
	defer func() {
		ev.env = prev
		s.truncate(base)
	}()

	push := func(v value.Value) error {
		if !s.Push(v) {
			return &EvalError{Message: "Stack overflow", Err: ErrStackOverflow}
		}
		return nil
	}

	for pc, word := range code {
		in := Instruction(word)
		operand := in.Operand()

		if ev.Trace {
			log.Debugf("[%04d] %-16s %5d sp=%d", pc, in.Kind(), operand, s.Len()-base)
		}

		switch in.Kind() {
		case KindPushConstant:
			c, ok := env.Constant(int(operand))
			if !ok {
				return value.Undefined, 0, operandError("constant", operand)
			}
			err = push(c.Retain())

		case KindPushInput:
			v, ok := env.Input(int(operand))
			if !ok {
				return value.Undefined, 0, operandError("input", operand)
			}
			err = push(v.Retain())

		case KindPushLocalVar:
			p := env.Local(int(operand))
			if p == nil {
				return value.Undefined, 0, operandError("local variable", operand)
			}
			err = push(value.MakeValuePtr(p))

		case KindPushGlobalVar:
			n := env.NumGlobals()
			if int(operand) < n {
				p := env.Global(int(operand))
				if p == nil {
					return value.Undefined, 0, operandError("global variable", operand)
				}
				err = push(value.MakeValuePtr(p))
			} else {
				err = push(value.MakeNativeVariable(NativeVariableID(int(operand), n)))
			}

		case KindPushOutput:
			err = push(value.MakeFlowOutput(operand))

		case KindArrayElement:
			if s.Len()-base < 2 {
				return value.Undefined, 0, &EvalError{Message: "Stack underflow", Err: ErrStackUnderflow}
			}
			idx, _ := s.Pop()
			arr, _ := s.Pop()
			elem := ev.arrayElement(arr, idx)
			idx.Release()
			arr.Release()
			err = push(elem)

		case KindOperation:
			op := Operation(operand)
			if !op.Valid() {
				return value.Undefined, 0, &EvalError{
					Message: fmt.Sprintf("Invalid operation %d", operand),
					Err:     ErrInvalidInstruction,
				}
			}
			if s.Len()-base < operations[op].Arity {
				return value.Undefined, 0, &EvalError{Message: "Stack underflow", Err: ErrStackUnderflow}
			}
			err = push(ev.call(op))

		case KindEnd:
			if n := s.Len() - base; n != 1 {
				if n == 0 {
					return value.Undefined, 0, &EvalError{Message: "Stack underflow", Err: ErrStackUnderflow}
				}
				return value.Undefined, 0, &EvalError{Message: "Unbalanced expression", Err: ErrUnbalanced}
			}
			result, _ = s.Pop()
			return result, in, nil

		default:
			return value.Undefined, 0, &EvalError{Message: "Invalid instruction", Err: ErrInvalidInstruction}
		}

		if err != nil {
			return value.Undefined, 0, err
		}
	}

	return value.Undefined, 0, &EvalError{Message: "Missing END instruction", Err: ErrMissingEnd}
}

func operandError(what string, operand uint16) error {
	return &EvalError{
		Message: fmt.Sprintf("Invalid %s index %d", what, operand),
		Err:     ErrInvalidOperand,
	}
}

// call pops the operands of op, runs it and returns the owned result.
func (ev *Evaluator) call(op Operation) value.Value {
	entry := &operations[op]

	var buf [8]value.Value
	args := buf[:entry.Arity]
	for i := entry.Arity - 1; i >= 0; i-- {
		raw, _ := ev.stack.Pop()
		args[i] = ev.resolve(raw)
		raw.Release()
	}
	defer func() {
		for i := range args {
			args[i].Release()
		}
	}()

	if !entry.Lazy {
		for _, a := range args {
			if a.IsError() {
				return a.Retain()
			}
		}
	}
	return entry.fn(ev, args)
}

// resolve returns an owned copy of the value v addresses.
func (ev *Evaluator) resolve(v value.Value) value.Value {
	switch v.Type() {
	case value.TypeNativeVariable:
		if ev.env == nil {
			return value.Undefined
		}
		return ev.env.NativeVariable(v.NativeVariableID())
	case value.TypeFlowOutput:
		return value.Undefined
	}
	return v.GetValue().Retain()
}

// Resolve is the exported form of resolve for callers holding an
// unresolved value, such as an Lvalue target that must also be read.
func (ev *Evaluator) Resolve(env Env, v value.Value) value.Value {
	prev := ev.env
	ev.env = env
	defer func() { ev.env = prev }()
	return ev.resolve(v)
}

// arrayElement builds the reference for arr[idx]. Both operands are
// borrowed.
func (ev *Evaluator) arrayElement(arrRaw, idxRaw value.Value) value.Value {
	idx := ev.resolve(idxRaw)
	defer idx.Release()
	if idx.IsError() {
		return idx.Retain()
	}
	arr := ev.resolve(arrRaw)
	defer arr.Release()
	if arr.IsError() {
		return arr.Retain()
	}

	// Keep the raw slot reference when there is one so the element stays
	// assignable.
	target := arr
	switch arrRaw.Type() {
	case value.TypeValuePtr, value.TypeArrayElementValue, value.TypeJSONMemberValue:
		target = arrRaw
	}

	if arr.IsJSON() {
		if !idx.IsString() {
			return value.MakeError("String value expected for JSON member")
		}
		return value.MakeJSONMemberRef(target, idx.GetString(), allocTag)
	}
	if !arr.IsArray() {
		return value.MakeError("Array value expected")
	}
	if !idx.IsInteger() {
		return value.MakeError("Integer value expected for array element index")
	}
	i, _ := idx.ToInt64()
	if i < 0 || i >= int64(arr.GetArray().Len()) {
		return value.MakeError(fmt.Sprintf("Array element index out of bounds: %d", i))
	}
	return value.MakeArrayElementRef(target, int(i), allocTag)
}

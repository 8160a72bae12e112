package expr

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chazu/flowvm/alloc"
	"github.com/chazu/flowvm/value"
)

// binary evaluates "a <op> b" over two constants.
func binary(t *testing.T, op Operation, a, b value.Value) (value.Value, error) {
	t.Helper()
	env := &StaticEnv{Constants: []value.Value{a, b}}
	code := NewProgram().PushConstant(0).PushConstant(1).Op(op).End().Code()
	return NewEvaluator(DefaultStackSize).Eval(env, code)
}

func evalCode(t *testing.T, env Env, code []uint16) value.Value {
	t.Helper()
	v, err := NewEvaluator(DefaultStackSize).Eval(env, code)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func TestAddPromotion(t *testing.T) {
	tests := []struct {
		a, b     value.Value
		wantType value.Type
		want     float64
	}{
		{value.FromInt32(2), value.FromInt32(3), value.TypeInt32, 5},
		{value.FromInt8(2), value.FromUint16(3), value.TypeInt32, 5},
		{value.FromInt32(2), value.FromInt64(3), value.TypeInt64, 5},
		{value.FromInt64(2), value.FromFloat(0.5), value.TypeFloat, 2.5},
		{value.FromFloat(2), value.FromDouble(0.5), value.TypeDouble, 2.5},
		{value.FromInt32(2), value.FromDouble(0.5), value.TypeDouble, 2.5},
	}
	for _, tt := range tests {
		for _, swap := range []bool{false, true} {
			a, b := tt.a, tt.b
			if swap {
				a, b = b, a
			}
			got, err := binary(t, OpAdd, a, b)
			if err != nil {
				t.Fatalf("%s + %s: %v", a.TypeName(), b.TypeName(), err)
			}
			f, _ := got.ToDouble()
			if got.Type() != tt.wantType || f != tt.want {
				t.Errorf("%s + %s = %s %v, want %s %v",
					a.TypeName(), b.TypeName(), got.TypeName(), f, tt.wantType, tt.want)
			}
		}
	}
}

func TestAddConcatenatesStrings(t *testing.T) {
	got, err := binary(t, OpAdd, value.FromString("a"), value.FromString("b"))
	if err != nil || got.GetString() != "ab" {
		t.Errorf(`"a" + "b" = %q, %v, want "ab"`, got.GetString(), err)
	}
	got.Release()

	got, _ = binary(t, OpAdd, value.FromString("b"), value.FromString("a"))
	if got.GetString() != "ba" {
		t.Errorf(`"b" + "a" = %q, want "ba"`, got.GetString())
	}
	got.Release()

	got, _ = binary(t, OpAdd, value.FromInt32(1), value.FromString("x"))
	if got.GetString() != "1x" {
		t.Errorf(`1 + "x" = %q, want "1x"`, got.GetString())
	}
	got.Release()
}

func TestAddBooleanIsError(t *testing.T) {
	_, err := binary(t, OpAdd, value.True, value.FromInt32(1))
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *EvalError", err)
	}
	if !strings.Contains(ee.Message, "Unsupported operand types for '+'") {
		t.Errorf("Message = %q", ee.Message)
	}
}

func TestDivision(t *testing.T) {
	got, err := binary(t, OpDiv, value.FromInt32(7), value.FromInt32(2))
	if err != nil || got.Type() != value.TypeDouble || got.Double() != 3.5 {
		t.Errorf("7 / 2 = %s %v, %v, want double 3.5", got.TypeName(), got.Double(), err)
	}

	for _, zero := range []value.Value{value.FromInt32(0), value.FromInt64(0), value.FromFloat(0), value.FromDouble(0)} {
		_, err := binary(t, OpDiv, value.FromInt32(1), zero)
		var ee *EvalError
		if !errors.As(err, &ee) || ee.Message != "Division by zero" {
			t.Errorf("1 / %s(0) err = %v, want Division by zero", zero.TypeName(), err)
		}
	}
}

func TestModulo(t *testing.T) {
	got, err := binary(t, OpMod, value.FromInt32(7), value.FromInt32(3))
	if err != nil || got.Int32() != 1 {
		t.Errorf("7 %% 3 = %v, %v, want 1", got.Int32(), err)
	}

	if _, err := binary(t, OpMod, value.FromInt32(7), value.FromInt32(0)); err == nil {
		t.Error("7 % 0 succeeded, want error")
	}

	got, err = binary(t, OpMod, value.FromDouble(7.5), value.FromDouble(0))
	if err != nil {
		t.Fatalf("7.5 %% 0.0: %v", err)
	}
	if !math.IsNaN(got.Double()) {
		t.Errorf("7.5 %% 0.0 = %v, want NaN", got.Double())
	}

	got, _ = binary(t, OpMod, value.FromDouble(-1), value.FromDouble(3))
	if got.Double() != 2 {
		t.Errorf("-1.0 %% 3.0 = %v, want 2", got.Double())
	}
}

func TestBitwise(t *testing.T) {
	tests := []struct {
		op   Operation
		a, b value.Value
		want int64
		wide bool
	}{
		{OpBitAnd, value.FromInt32(6), value.FromInt32(3), 2, false},
		{OpBitOr, value.FromInt32(6), value.FromInt32(3), 7, false},
		{OpBitXor, value.FromInt32(6), value.FromInt32(3), 5, false},
		{OpShl, value.FromInt32(1), value.FromInt32(4), 16, false},
		{OpShr, value.FromInt32(-16), value.FromInt32(2), -4, false},
		{OpShl, value.FromInt64(1), value.FromInt32(40), 1 << 40, true},
	}
	for _, tt := range tests {
		got, err := binary(t, tt.op, tt.a, tt.b)
		if err != nil {
			t.Fatalf("%s: %v", tt.op, err)
		}
		n, _ := got.ToInt64()
		if n != tt.want || got.IsInt64() != tt.wide {
			t.Errorf("%s = %s %d, want %d (64-bit %v)", tt.op, got.TypeName(), n, tt.want, tt.wide)
		}
	}

	if _, err := binary(t, OpShl, value.FromInt32(1), value.FromInt32(-1)); err == nil {
		t.Error("1 << -1 succeeded, want error")
	}
	if _, err := binary(t, OpBitAnd, value.FromDouble(1), value.FromInt32(1)); err == nil {
		t.Error("1.0 & 1 succeeded, want error")
	}
}

func TestUnitPropagates(t *testing.T) {
	got, _ := binary(t, OpAdd, value.FromDouble(1).WithUnit(value.UnitVolt), value.FromDouble(2))
	if got.Unit() != value.UnitVolt {
		t.Errorf("unit = %v, want volt", got.Unit())
	}
	got, _ = binary(t, OpMul, value.FromDouble(2), value.FromDouble(3).WithUnit(value.UnitAmpere))
	if got.Unit() != value.UnitAmpere {
		t.Errorf("unit = %v, want ampere", got.Unit())
	}
}

func TestDateArithmetic(t *testing.T) {
	got, _ := binary(t, OpAdd, value.MakeDate(1000), value.FromInt32(500))
	if !got.IsDate() || got.DateMillis() != 1500 {
		t.Errorf("date + 500 = %s %d", got.TypeName(), got.DateMillis())
	}
	got, _ = binary(t, OpSub, value.MakeDate(3000), value.MakeDate(1000))
	if n, _ := got.ToInt64(); n != 2000 {
		t.Errorf("date - date = %d, want 2000", n)
	}
}

// ---------------------------------------------------------------------------
// Comparison and logic
// ---------------------------------------------------------------------------

func TestComparison(t *testing.T) {
	tests := []struct {
		op   Operation
		a, b value.Value
		want bool
	}{
		{OpEq, value.FromInt32(1), value.FromDouble(1), true},
		{OpNe, value.FromString("a"), value.FromString("b"), true},
		{OpLt, value.FromInt32(1), value.FromInt64(2), true},
		{OpGt, value.FromDouble(2.5), value.FromInt32(2), true},
		{OpLe, value.FromInt32(2), value.FromInt32(2), true},
		{OpGe, value.FromInt32(1), value.FromInt32(2), false},
		{OpEq, value.Null, value.Undefined, true},
		{OpEq, value.Null, value.FromInt32(0), false},
	}
	for _, tt := range tests {
		got, err := binary(t, tt.op, tt.a, tt.b)
		if err != nil {
			t.Fatalf("%s: %v", tt.op, err)
		}
		if got.Bool() != tt.want {
			t.Errorf("%s %s %s = %v, want %v", tt.a.ToText(), tt.op, tt.b.ToText(), got.Bool(), tt.want)
		}
	}
}

func TestLogicalShortCircuit(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{
		value.False,
		value.True,
		value.FromInt32(1),
		value.FromInt32(0),
	}}
	// 1 / 0 is an Error operand on the right-hand side.
	failing := func(p *Program) *Program {
		return p.PushConstant(2).PushConstant(3).Op(OpDiv)
	}

	and := failing(NewProgram().PushConstant(0)).Op(OpLogicalAnd).End().Code()
	if got := evalCode(t, env, and); got.Bool() {
		t.Errorf("false && error = true")
	}

	or := failing(NewProgram().PushConstant(1)).Op(OpLogicalOr).End().Code()
	if got := evalCode(t, env, or); !got.Bool() {
		t.Errorf("true || error = false")
	}

	and = failing(NewProgram().PushConstant(1)).Op(OpLogicalAnd).End().Code()
	if _, err := NewEvaluator(DefaultStackSize).Eval(env, and); err == nil {
		t.Error("true && error succeeded")
	}
}

func TestConditional(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{
		value.True,
		value.FromString("yes"),
		value.FromInt32(1),
		value.FromInt32(0),
	}}
	code := NewProgram().
		PushConstant(0).
		PushConstant(1).
		PushConstant(2).PushConstant(3).Op(OpDiv).
		Op(OpConditional).
		End().Code()
	got := evalCode(t, env, code)
	if got.GetString() != "yes" {
		t.Errorf("true ? yes : error = %q", got.ToText())
	}
}

func TestStickyError(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{value.FromInt32(1), value.FromInt32(0)}}
	code := NewProgram().
		PushConstant(0).PushConstant(1).Op(OpDiv).
		PushConstant(0).Op(OpAdd).
		Op(OpMathAbs).
		End().Code()
	_, err := NewEvaluator(DefaultStackSize).Eval(env, code)
	var ee *EvalError
	if !errors.As(err, &ee) || ee.Message != "Division by zero" {
		t.Errorf("err = %v, want Division by zero", err)
	}
}

// ---------------------------------------------------------------------------
// Variables and array elements
// ---------------------------------------------------------------------------

func TestArrayElementOutOfBounds(t *testing.T) {
	withTracking(t)
	arr := value.MakeArrayOf(value.ArrayTypeArray, 1, value.FromInt32(10), value.FromInt32(20))
	defer arr.Release()
	env := &StaticEnv{
		Constants: []value.Value{value.FromInt32(1), value.FromInt32(5)},
		Locals:    []value.Value{arr},
	}

	got := evalCode(t, env, NewProgram().PushLocal(0).PushConstant(0).ArrayElement().End().Code())
	if got.Int32() != 20 {
		t.Errorf("a[1] = %v, want 20", got.ToText())
	}

	_, err := NewEvaluator(DefaultStackSize).Eval(env, NewProgram().PushLocal(0).PushConstant(1).ArrayElement().End().Code())
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *EvalError", err)
	}
	if ee.Message != "Array element index out of bounds: 5" {
		t.Errorf("Message = %q", ee.Message)
	}
}

func TestEvalAssignableWithDstType(t *testing.T) {
	env := &StaticEnv{Locals: make([]value.Value, 2)}
	code := NewProgram().PushLocal(1).EndWithType(value.TypeUint8).Code()

	lv, err := NewEvaluator(DefaultStackSize).EvalAssignable(env, code)
	if err != nil {
		t.Fatalf("EvalAssignable: %v", err)
	}
	if !lv.HasDstType || lv.DstType != value.TypeUint8 {
		t.Errorf("DstType = %v, %v, want uint8", lv.DstType, lv.HasDstType)
	}
	if lv.Target.ValuePtr() != &env.Locals[1] {
		t.Error("target does not address local 1")
	}
}

func TestEvalAssignableRejectsRvalue(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{value.FromInt32(3)}}
	_, err := NewEvaluator(DefaultStackSize).EvalAssignable(env, NewProgram().PushConstant(0).End().Code())
	if !errors.Is(err, ErrNotAssignable) {
		t.Errorf("err = %v, want ErrNotAssignable", err)
	}
}

func TestNativeVariable(t *testing.T) {
	env := &StaticEnv{
		Globals: []value.Value{value.FromInt32(1), value.FromInt32(2)},
		Natives: map[int32]value.Value{-1: value.FromInt32(100), -2: value.FromInt32(200)},
	}
	if got := evalCode(t, env, NewProgram().PushGlobal(1).End().Code()); got.Int32() != 2 {
		t.Errorf("global 1 = %v, want 2", got.ToText())
	}
	if got := evalCode(t, env, NewProgram().PushGlobal(2).End().Code()); got.Int32() != 100 {
		t.Errorf("global 2 = %v, want native -1 (100)", got.ToText())
	}
	if got := evalCode(t, env, NewProgram().PushGlobal(3).End().Code()); got.Int32() != 200 {
		t.Errorf("global 3 = %v, want native -2 (200)", got.ToText())
	}
	if id := NativeVariableID(2, 2); id != -1 {
		t.Errorf("NativeVariableID(2, 2) = %d, want -1", id)
	}
}

// ---------------------------------------------------------------------------
// Malformed code
// ---------------------------------------------------------------------------

func TestStackOverflow(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{value.FromInt32(1)}}
	p := NewProgram()
	for range 5 {
		p.PushConstant(0)
	}
	ev := NewEvaluator(4)
	_, err := ev.Eval(env, p.End().Code())
	if !errors.Is(err, ErrStackOverflow) {
		t.Errorf("err = %v, want ErrStackOverflow", err)
	}
	if ev.Depth() != 0 {
		t.Errorf("Depth() = %d after failure, want 0", ev.Depth())
	}
}

func TestMalformedCode(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{value.FromInt32(1)}}
	tests := []struct {
		name string
		code []uint16
		want error
	}{
		{"missing end", NewProgram().PushConstant(0).Code(), ErrMissingEnd},
		{"unbalanced", NewProgram().PushConstant(0).PushConstant(0).End().Code(), ErrUnbalanced},
		{"underflow", NewProgram().PushConstant(0).Op(OpAdd).End().Code(), ErrStackUnderflow},
		{"empty", NewProgram().End().Code(), ErrStackUnderflow},
		{"bad constant", NewProgram().PushConstant(9).End().Code(), ErrInvalidOperand},
		{"bad operation", []uint16{uint16(Encode(KindOperation, 999)), uint16(Encode(KindEnd, 0))}, ErrInvalidInstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator(DefaultStackSize).Eval(env, tt.code)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Library operations
// ---------------------------------------------------------------------------

func TestStringFind(t *testing.T) {
	got, _ := binary(t, OpStringFind, value.FromString("hello"), value.FromString("z"))
	if got.Int32() != -1 {
		t.Errorf(`find("hello", "z") = %d, want -1`, got.Int32())
	}
	got, _ = binary(t, OpStringFind, value.FromString("čaša"), value.FromString("ša"))
	if got.Int32() != 2 {
		t.Errorf(`find("čaša", "ša") = %d, want 2`, got.Int32())
	}
}

func TestStringFormat(t *testing.T) {
	tests := []struct {
		format string
		arg    value.Value
		want   string
	}{
		{"%d", value.FromInt32(42), "42"},
		{"%05.1f V", value.FromDouble(3.14159), "003.1 V"},
		{"0x%04X", value.FromInt32(255), "0x00FF"},
		{"%ld items", value.FromInt64(7), "7 items"},
		{"%s!", value.FromString("hi"), "hi!"},
		{"100%% = %d", value.FromInt32(1), "100% = 1"},
	}
	for _, tt := range tests {
		got, err := binary(t, OpStringFormat, value.FromString(tt.format), tt.arg)
		if err != nil {
			t.Errorf("format(%q): %v", tt.format, err)
			continue
		}
		if got.GetString() != tt.want {
			t.Errorf("format(%q) = %q, want %q", tt.format, got.GetString(), tt.want)
		}
		got.Release()
	}

	for _, bad := range []string{"%d %d", "none", "%y"} {
		if _, err := binary(t, OpStringFormat, value.FromString(bad), value.FromInt32(1)); err == nil {
			t.Errorf("format(%q) succeeded, want error", bad)
		}
	}
}

func TestStringFormatPrefix(t *testing.T) {
	got, err := binary(t, OpStringFormatPrefix, value.FromString("%.1f"), value.FromDouble(0.0025))
	if err != nil || got.GetString() != "2.5m" {
		t.Errorf("formatPrefix(0.0025) = %q, %v, want 2.5m", got.GetString(), err)
	}
	got, _ = binary(t, OpStringFormatPrefix, value.FromString("%.0f"), value.FromDouble(12000))
	if got.GetString() != "12k" {
		t.Errorf("formatPrefix(12000) = %q, want 12k", got.GetString())
	}
}

func TestStringOperations(t *testing.T) {
	env := &StaticEnv{
		Constants: []value.Value{
			value.FromString("  Hello World  "),
			value.FromString("a,b,c"),
			value.FromString(","),
			value.FromInt32(1),
			value.FromInt32(3),
		},
		Lang: "en",
	}
	tests := []struct {
		code []uint16
		want string
	}{
		{NewProgram().PushConstant(0).Op(OpStringTrim).End().Code(), "Hello World"},
		{NewProgram().PushConstant(0).Op(OpStringToUpperCase).End().Code(), "  HELLO WORLD  "},
		{NewProgram().PushConstant(1).PushConstant(3).PushConstant(4).Op(OpStringSubstring).End().Code(), ",b"},
		{NewProgram().PushConstant(1).PushConstant(2).Op(OpStringSplit).End().Code(), "[a, b, c]"},
		{NewProgram().PushConstant(1).Op(OpStringLength).End().Code(), "5"},
	}
	for _, tt := range tests {
		got := evalCode(t, env, tt.code)
		if got.ToText() != tt.want {
			t.Errorf("%s = %q, want %q", Format(tt.code, env.Constants), got.ToText(), tt.want)
		}
		got.Release()
	}
}

func TestArrayOperationsCopy(t *testing.T) {
	tr := withTracking(t)
	arr := value.MakeArrayOf(value.ArrayTypeArray, 1, value.FromInt32(1), value.FromInt32(2))
	env := &StaticEnv{
		Constants: []value.Value{value.FromInt32(3), value.FromString("-")},
		Locals:    []value.Value{arr},
	}

	appended := evalCode(t, env, NewProgram().PushLocal(0).PushConstant(0).Op(OpArrayAppend).End().Code())
	if appended.ToText() != "[1, 2, 3]" {
		t.Errorf("append = %s", appended.ToText())
	}
	if arr.GetArray().Len() != 2 {
		t.Errorf("source array modified: %s", arr.ToText())
	}
	joined := evalCode(t, env, NewProgram().PushLocal(0).PushConstant(1).Op(OpArrayJoin).End().Code())
	if joined.GetString() != "1-2" {
		t.Errorf("join = %q, want 1-2", joined.GetString())
	}
	idx := evalCode(t, env, NewProgram().PushLocal(0).PushConstant(0).Op(OpArrayIndexOf).End().Code())
	if idx.Int32() != -1 {
		t.Errorf("indexOf(3) = %d, want -1", idx.Int32())
	}

	appended.Release()
	joined.Release()
	env.Locals[0].Clear()
	if tr.Live() != 0 {
		t.Errorf("Live = %d after release, want 0", tr.Live())
	}
}

func TestJSONOperations(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{
		value.FromString(`{"a":1,"b":"x"}`),
		value.FromString("b"),
		value.FromString("{bad"),
	}}
	parsed := evalCode(t, env, NewProgram().PushConstant(0).Op(OpJSONParse).End().Code())
	defer parsed.Release()
	env.Locals = []value.Value{parsed}

	got := evalCode(t, env, NewProgram().PushLocal(0).PushConstant(1).Op(OpJSONGet).End().Code())
	if got.GetString() != "x" {
		t.Errorf(`get("b") = %q, want "x"`, got.ToText())
	}
	got.Release()

	member := evalCode(t, env, NewProgram().PushLocal(0).PushConstant(1).ArrayElement().End().Code())
	if member.GetString() != "x" {
		t.Errorf(`obj["b"] = %q, want "x"`, member.ToText())
	}
	member.Release()

	_, err := NewEvaluator(DefaultStackSize).Eval(env, NewProgram().PushConstant(2).Op(OpJSONParse).End().Code())
	var ee *EvalError
	if !errors.As(err, &ee) || !strings.HasPrefix(ee.Message, "JSON parse error: ") {
		t.Errorf("parse({bad) err = %v", err)
	}
}

func TestCryptoSha256(t *testing.T) {
	env := &StaticEnv{Constants: []value.Value{value.FromString("abc")}}
	got := evalCode(t, env, NewProgram().PushConstant(0).Op(OpCryptoSha256).End().Code())
	defer got.Release()
	b := got.GetBlob()
	if len(b) != 32 || b[0] != 0xba || b[31] != 0xad {
		t.Errorf("sha256(abc) = %x", b)
	}
}

func TestDateOperations(t *testing.T) {
	now := time.Date(2024, time.March, 9, 14, 30, 15, 250e6, time.UTC)
	env := &StaticEnv{
		Clock:     func() time.Time { return now },
		Constants: []value.Value{value.FromString("2024-03-09 14:30:15")},
	}
	d := evalCode(t, env, NewProgram().Op(OpDateNow).End().Code())
	if d.DateMillis() != now.UnixMilli() {
		t.Errorf("Date.now = %d, want %d", d.DateMillis(), now.UnixMilli())
	}
	env.Locals = []value.Value{d}

	fields := []struct {
		op   Operation
		want int32
	}{
		{OpDateGetYear, 2024},
		{OpDateGetMonth, 3},
		{OpDateGetDay, 9},
		{OpDateGetHours, 14},
		{OpDateGetMinutes, 30},
		{OpDateGetSeconds, 15},
		{OpDateGetMilliseconds, 250},
	}
	for _, f := range fields {
		got := evalCode(t, env, NewProgram().PushLocal(0).Op(f.op).End().Code())
		if got.Int32() != f.want {
			t.Errorf("%s = %d, want %d", f.op, got.Int32(), f.want)
		}
	}

	parsed := evalCode(t, env, NewProgram().PushConstant(0).Op(OpDateFromString).End().Code())
	if parsed.DateMillis() != now.Truncate(time.Second).UnixMilli() {
		t.Errorf("Date.fromString = %d", parsed.DateMillis())
	}
}

func TestMathRandomSeeded(t *testing.T) {
	code := NewProgram().Op(OpMathRandom).End().Code()
	a, b := NewEvaluator(8), NewEvaluator(8)
	a.Seed(7)
	b.Seed(7)
	x, _ := a.Eval(&StaticEnv{}, code)
	y, _ := b.Eval(&StaticEnv{}, code)
	if x.Double() != y.Double() {
		t.Errorf("seeded random differs: %v vs %v", x.Double(), y.Double())
	}
	if x.Double() < 0 || x.Double() >= 1 {
		t.Errorf("random = %v, want [0, 1)", x.Double())
	}
}

func TestEvalReleasesTemporaries(t *testing.T) {
	tr := withTracking(t)
	env := &StaticEnv{Constants: []value.Value{value.FromString("ab"), value.FromInt32(1)}}
	code := NewProgram().
		PushConstant(0).PushConstant(0).Op(OpAdd).
		PushConstant(1).Op(OpAdd).
		Op(OpStringLength).
		End().Code()
	got := evalCode(t, env, code)
	if got.Int32() != 5 {
		t.Errorf("length = %d, want 5", got.Int32())
	}
	if tr.Live() != 0 {
		t.Errorf("Live = %d, want 0", tr.Live())
	}
}

func withTracking(t *testing.T) *alloc.Tracking {
	t.Helper()
	tr := alloc.NewTracking(nil)
	t.Cleanup(alloc.Use(tr))
	return tr
}

func TestOversizedAllocationIsError(t *testing.T) {
	huge := value.FromDouble(1e18)
	tests := []struct {
		name string
		env  *StaticEnv
		code []uint16
	}{
		{"Array.allocate", &StaticEnv{Constants: []value.Value{huge}},
			NewProgram().PushConstant(0).Op(OpArrayAllocate).End().Code()},
		{"Blob.allocate", &StaticEnv{Constants: []value.Value{huge}},
			NewProgram().PushConstant(0).Op(OpBlobAllocate).End().Code()},
		{"String.padStart", &StaticEnv{Constants: []value.Value{value.FromString("x"), huge, value.FromString("ab")}},
			NewProgram().PushConstant(0).PushConstant(1).PushConstant(2).Op(OpStringPadStart).End().Code()},
		{"Flow.makeArrayValue", &StaticEnv{Constants: []value.Value{value.FromInt32(int32(value.ArrayTypeArray)), value.FromInt32(math.MaxInt32)}},
			NewProgram().PushConstant(0).PushConstant(1).Op(OpFlowMakeArrayValue).End().Code()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator(DefaultStackSize).Eval(tt.env, tt.code)
			var ee *EvalError
			if !errors.As(err, &ee) {
				t.Fatalf("err = %v, want EvalError", err)
			}
			if !strings.Contains(ee.Message, tt.name) || !strings.Contains(ee.Message, "out of memory") {
				t.Errorf("message = %q, want %s out of memory", ee.Message, tt.name)
			}
		})
	}
}

func TestArenaExhaustionIsError(t *testing.T) {
	defer alloc.Use(alloc.NewArena(64))()

	env := &StaticEnv{Constants: []value.Value{value.FromInt32(1024)}}
	_, err := NewEvaluator(DefaultStackSize).Eval(env, NewProgram().PushConstant(0).Op(OpBlobAllocate).End().Code())
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("Blob.allocate(1024) in a 64 byte arena: err = %v, want out of memory", err)
	}
}

package expr

import (
	"fmt"
	"math"

	"github.com/chazu/flowvm/value"
)

// numClass orders the numeric promotion classes.
type numClass int

const (
	classNone numClass = iota
	classInt32
	classInt64
	classFloat
	classDouble
)

func classOf(v value.Value) numClass {
	switch {
	case v.IsDouble():
		return classDouble
	case v.IsFloat():
		return classFloat
	case v.IsInt64():
		return classInt64
	case v.IsInt32OrLess():
		return classInt32
	}
	return classNone
}

func promote(a, b value.Value) numClass {
	ca, cb := classOf(a), classOf(b)
	if ca == classNone || cb == classNone {
		return classNone
	}
	return max(ca, cb)
}

func resultUnit(a, b value.Value) value.Unit {
	if a.Unit() != value.UnitNone {
		return a.Unit()
	}
	return b.Unit()
}

func unsupported(op string, args ...value.Value) value.Value {
	switch len(args) {
	case 1:
		return value.MakeError(fmt.Sprintf("Unsupported operand type for '%s': %s", op, args[0].TypeName()))
	case 2:
		return value.MakeError(fmt.Sprintf("Unsupported operand types for '%s': %s and %s",
			op, args[0].TypeName(), args[1].TypeName()))
	}
	return value.MakeError(fmt.Sprintf("Unsupported operand types for '%s'", op))
}

// arithFuncs holds one implementation per promotion class.
type arithFuncs struct {
	i32 func(x, y int32) value.Value
	i64 func(x, y int64) value.Value
	f32 func(x, y float32) value.Value
	f64 func(x, y float64) value.Value
}

func arith(op string, a, b value.Value, fs arithFuncs) value.Value {
	var r value.Value
	switch promote(a, b) {
	case classDouble:
		x, _ := a.ToDouble()
		y, _ := b.ToDouble()
		r = fs.f64(x, y)
	case classFloat:
		x, _ := a.ToFloat()
		y, _ := b.ToFloat()
		r = fs.f32(x, y)
	case classInt64:
		x, _ := a.ToInt64()
		y, _ := b.ToInt64()
		r = fs.i64(x, y)
	case classInt32:
		x, _ := a.ToInt32()
		y, _ := b.ToInt32()
		r = fs.i32(x, y)
	default:
		return unsupported(op, a, b)
	}
	if r.IsNumber() {
		r = r.WithUnit(resultUnit(a, b))
	}
	return r
}

var divisionByZero = value.MakeError("Division by zero")

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func opAdd(_ *Evaluator, args []value.Value) value.Value {
	a, b := args[0], args[1]
	if a.IsString() || b.IsString() {
		return value.MakeStringRef(a.ToText()+b.ToText(), allocTag)
	}
	if a.IsDate() && b.IsInteger() {
		n, _ := b.ToInt64()
		return value.MakeDate(a.DateMillis() + n)
	}
	return arith("+", a, b, arithFuncs{
		i32: func(x, y int32) value.Value { return value.FromInt32(x + y) },
		i64: func(x, y int64) value.Value { return value.FromInt64(x + y) },
		f32: func(x, y float32) value.Value { return value.FromFloat(x + y) },
		f64: func(x, y float64) value.Value { return value.FromDouble(x + y) },
	})
}

func opSub(_ *Evaluator, args []value.Value) value.Value {
	a, b := args[0], args[1]
	if a.IsDate() && b.IsDate() {
		return value.FromInt64(a.DateMillis() - b.DateMillis())
	}
	if a.IsDate() && b.IsInteger() {
		n, _ := b.ToInt64()
		return value.MakeDate(a.DateMillis() - n)
	}
	return arith("-", a, b, arithFuncs{
		i32: func(x, y int32) value.Value { return value.FromInt32(x - y) },
		i64: func(x, y int64) value.Value { return value.FromInt64(x - y) },
		f32: func(x, y float32) value.Value { return value.FromFloat(x - y) },
		f64: func(x, y float64) value.Value { return value.FromDouble(x - y) },
	})
}

func opMul(_ *Evaluator, args []value.Value) value.Value {
	return arith("*", args[0], args[1], arithFuncs{
		i32: func(x, y int32) value.Value { return value.FromInt32(x * y) },
		i64: func(x, y int64) value.Value { return value.FromInt64(x * y) },
		f32: func(x, y float32) value.Value { return value.FromFloat(x * y) },
		f64: func(x, y float64) value.Value { return value.FromDouble(x * y) },
	})
}

// opDiv always yields a floating result; integer operands divide as double.
func opDiv(_ *Evaluator, args []value.Value) value.Value {
	return arith("/", args[0], args[1], arithFuncs{
		i32: func(x, y int32) value.Value {
			if y == 0 {
				return divisionByZero
			}
			return value.FromDouble(float64(x) / float64(y))
		},
		i64: func(x, y int64) value.Value {
			if y == 0 {
				return divisionByZero
			}
			return value.FromDouble(float64(x) / float64(y))
		},
		f32: func(x, y float32) value.Value {
			if y == 0 {
				return divisionByZero
			}
			return value.FromFloat(x / y)
		},
		f64: func(x, y float64) value.Value {
			if y == 0 {
				return divisionByZero
			}
			return value.FromDouble(x / y)
		},
	})
}

// opMod keeps the promoted type. Floating modulo uses the floor formula and
// is defined for a zero divisor.
func opMod(_ *Evaluator, args []value.Value) value.Value {
	return arith("%", args[0], args[1], arithFuncs{
		i32: func(x, y int32) value.Value {
			if y == 0 {
				return divisionByZero
			}
			if y == -1 {
				return value.FromInt32(0)
			}
			return value.FromInt32(x % y)
		},
		i64: func(x, y int64) value.Value {
			if y == 0 {
				return divisionByZero
			}
			if y == -1 {
				return value.FromInt64(0)
			}
			return value.FromInt64(x % y)
		},
		f32: func(x, y float32) value.Value {
			return value.FromFloat(x - float32(math.Floor(float64(x/y)))*y)
		},
		f64: func(x, y float64) value.Value {
			return value.FromDouble(x - math.Floor(x/y)*y)
		},
	})
}

// ---------------------------------------------------------------------------
// Bitwise
// ---------------------------------------------------------------------------

func bitwise(op string, a, b value.Value, f func(x, y int64) (int64, bool)) value.Value {
	if !a.IsInteger() || !b.IsInteger() {
		return value.MakeError(fmt.Sprintf("Integer operands expected for '%s': %s and %s",
			op, a.TypeName(), b.TypeName()))
	}
	x, _ := a.ToInt64()
	y, _ := b.ToInt64()
	r, ok := f(x, y)
	if !ok {
		return value.MakeError(fmt.Sprintf("Invalid shift count %d", y))
	}
	if a.IsInt64() || b.IsInt64() {
		return value.FromInt64(r)
	}
	return value.FromInt32(int32(r))
}

func opShl(_ *Evaluator, args []value.Value) value.Value {
	wide := args[0].IsInt64() || args[1].IsInt64()
	return bitwise("<<", args[0], args[1], func(x, y int64) (int64, bool) {
		if y < 0 {
			return 0, false
		}
		if !wide {
			return int64(int32(x) << y), true
		}
		return x << y, true
	})
}

func opShr(_ *Evaluator, args []value.Value) value.Value {
	wide := args[0].IsInt64() || args[1].IsInt64()
	return bitwise(">>", args[0], args[1], func(x, y int64) (int64, bool) {
		if y < 0 {
			return 0, false
		}
		if !wide {
			return int64(int32(x) >> y), true
		}
		return x >> y, true
	})
}

func opBitAnd(_ *Evaluator, args []value.Value) value.Value {
	return bitwise("&", args[0], args[1], func(x, y int64) (int64, bool) { return x & y, true })
}

func opBitOr(_ *Evaluator, args []value.Value) value.Value {
	return bitwise("|", args[0], args[1], func(x, y int64) (int64, bool) { return x | y, true })
}

func opBitXor(_ *Evaluator, args []value.Value) value.Value {
	return bitwise("^", args[0], args[1], func(x, y int64) (int64, bool) { return x ^ y, true })
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

func opEq(_ *Evaluator, args []value.Value) value.Value {
	return value.FromBool(value.IsEqual(args[0], args[1]))
}

func opNe(_ *Evaluator, args []value.Value) value.Value {
	return value.FromBool(!value.IsEqual(args[0], args[1]))
}

func opLt(_ *Evaluator, args []value.Value) value.Value {
	return value.FromBool(value.IsLess(args[0], args[1]))
}

func opGt(_ *Evaluator, args []value.Value) value.Value {
	return value.FromBool(value.IsGreater(args[0], args[1]))
}

func opLe(_ *Evaluator, args []value.Value) value.Value {
	return value.FromBool(value.IsLess(args[0], args[1]) || value.IsEqual(args[0], args[1]))
}

func opGe(_ *Evaluator, args []value.Value) value.Value {
	return value.FromBool(value.IsGreater(args[0], args[1]) || value.IsEqual(args[0], args[1]))
}

// ---------------------------------------------------------------------------
// Logical
// ---------------------------------------------------------------------------

func truth(v value.Value) (bool, value.Value) {
	if v.IsError() {
		return false, v.Retain()
	}
	b, ok := v.ToBool()
	if !ok {
		return false, value.MakeError(fmt.Sprintf("Cannot convert %s to boolean", v.TypeName()))
	}
	return b, value.Undefined
}

// opLogicalAnd only looks at the right operand when the left one is true.
func opLogicalAnd(_ *Evaluator, args []value.Value) value.Value {
	a, errv := truth(args[0])
	if errv.IsError() {
		return errv
	}
	if !a {
		return value.False
	}
	b, errv := truth(args[1])
	if errv.IsError() {
		return errv
	}
	return value.FromBool(b)
}

// opLogicalOr only looks at the right operand when the left one is false.
func opLogicalOr(_ *Evaluator, args []value.Value) value.Value {
	a, errv := truth(args[0])
	if errv.IsError() {
		return errv
	}
	if a {
		return value.True
	}
	b, errv := truth(args[1])
	if errv.IsError() {
		return errv
	}
	return value.FromBool(b)
}

func opNot(_ *Evaluator, args []value.Value) value.Value {
	b, errv := truth(args[0])
	if errv.IsError() {
		return errv
	}
	return value.FromBool(!b)
}

// opConditional evaluates to the selected branch; the other branch may be
// an Error.
func opConditional(_ *Evaluator, args []value.Value) value.Value {
	c, errv := truth(args[0])
	if errv.IsError() {
		return errv
	}
	if c {
		return args[1].Retain()
	}
	return args[2].Retain()
}

// ---------------------------------------------------------------------------
// Unary
// ---------------------------------------------------------------------------

func opUnaryPlus(_ *Evaluator, args []value.Value) value.Value {
	a := args[0]
	if a.IsNumber() {
		return a.Retain()
	}
	if a.IsString() || a.IsBoolean() {
		if f, ok := a.ToDouble(); ok {
			return value.FromDouble(f)
		}
	}
	return unsupported("+", a)
}

func opUnaryMinus(_ *Evaluator, args []value.Value) value.Value {
	a := args[0]
	var r value.Value
	switch classOf(a) {
	case classDouble:
		r = value.FromDouble(-a.Double())
	case classFloat:
		r = value.FromFloat(-a.Float())
	case classInt64:
		n, _ := a.ToInt64()
		r = value.FromInt64(-n)
	case classInt32:
		n, _ := a.ToInt32()
		r = value.FromInt32(-n)
	default:
		return unsupported("-", a)
	}
	return r.WithUnit(a.Unit())
}

func opBitNot(_ *Evaluator, args []value.Value) value.Value {
	a := args[0]
	if !a.IsInteger() {
		return unsupported("~", a)
	}
	n, _ := a.ToInt64()
	if a.IsInt64() {
		return value.FromInt64(^n)
	}
	return value.FromInt32(^int32(n))
}

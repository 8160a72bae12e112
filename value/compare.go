package value

import (
	"bytes"
	"math"
)

// Equal reports whether a and b are the same value: identical type, unit and
// payload. It does not coerce and is used for change detection. Strings
// compare by content regardless of ownership kind; arrays and other cells
// compare by identity.
func Equal(a, b Value) bool {
	if a.IsString() && b.IsString() {
		return a.GetString() == b.GetString()
	}
	if a.typ != b.typ || a.unit != b.unit {
		return false
	}
	switch a.typ {
	case TypeUndefined:
		return a.options&OptEmpty == b.options&OptEmpty
	case TypeNull:
		return true
	case TypeFloat:
		return a.Float() == b.Float() || math.IsNaN(float64(a.Float())) && math.IsNaN(float64(b.Float()))
	case TypeDouble:
		return a.Double() == b.Double() || math.IsNaN(a.Double()) && math.IsNaN(b.Double())
	case TypeBoolean, TypeInt8, TypeUint8, TypeInt16, TypeUint16, TypeInt32, TypeUint32,
		TypeInt64, TypeUint64, TypeDate, TypeEnum, TypeRange, TypeStream, TypeNativeVariable,
		TypeFlowOutput:
		return a.bits == b.bits
	case TypeError:
		return a.ErrorMessage() == b.ErrorMessage()
	case TypeBlobRef:
		return a.ptr == b.ptr || bytes.Equal(a.GetBlob(), b.GetBlob())
	case TypeArray, TypeArrayRef:
		return a.GetArray() == b.GetArray()
	}
	return a.ptr == b.ptr
}

// IsEqual implements the == operator: one level of indirection is resolved,
// undefined and null are equal only to each other, strings compare by
// content and everything else compares numerically.
func IsEqual(a, b Value) bool {
	a, b = a.GetValue(), b.GetValue()
	aNil, bNil := a.IsUndefinedOrNull(), b.IsUndefinedOrNull()
	if aNil || bNil {
		return aNil && bNil
	}
	if a.IsString() && b.IsString() {
		return a.GetString() == b.GetString()
	}
	if !a.IsNumber() && !a.IsBoolean() && !a.IsString() && a.typ == b.typ {
		return Equal(a, b)
	}
	if a.IsInt32OrLess() && b.IsInt32OrLess() {
		x, _ := a.ToInt32()
		y, _ := b.ToInt32()
		return x == y
	}
	if a.IsInteger() && b.IsInteger() {
		x, _ := a.ToInt64()
		y, _ := b.ToInt64()
		return x == y
	}
	x, ok1 := a.ToDouble()
	y, ok2 := b.ToDouble()
	return ok1 && ok2 && x == y
}

// IsLess implements the < operator with the same resolution rules as
// IsEqual. Undefined and null are never less than anything.
func IsLess(a, b Value) bool {
	a, b = a.GetValue(), b.GetValue()
	if a.IsUndefinedOrNull() || b.IsUndefinedOrNull() {
		return false
	}
	if a.IsString() && b.IsString() {
		return a.GetString() < b.GetString()
	}
	if a.IsInt32OrLess() && b.IsInt32OrLess() {
		x, _ := a.ToInt32()
		y, _ := b.ToInt32()
		return x < y
	}
	if a.IsInteger() && b.IsInteger() {
		x, _ := a.ToInt64()
		y, _ := b.ToInt64()
		return x < y
	}
	x, ok1 := a.ToDouble()
	y, ok2 := b.ToDouble()
	return ok1 && ok2 && x < y
}

// IsGreater implements the > operator as !IsLess && !IsEqual. Operands
// that are neither less nor equal, such as NaN or null against a number,
// are therefore greater.
func IsGreater(a, b Value) bool {
	return !IsLess(a, b) && !IsEqual(a, b)
}

// Compare orders a and b: -1, 0 or +1.
func Compare(a, b Value) int {
	switch {
	case IsLess(a, b):
		return -1
	case IsEqual(a, b):
		return 0
	}
	return 1
}

package value

import (
	"math"
	"strconv"
	"strings"
)

// GetValue resolves one level of indirection. ValuePtr, array element, JSON
// member and property references yield the value they address; every other
// value (including native variables, which need a host bridge) is returned
// unchanged. The result is borrowed.
func (v Value) GetValue() Value {
	switch v.typ {
	case TypeValuePtr:
		if p := v.ValuePtr(); p != nil {
			return *p
		}
		return Undefined
	case TypeArrayElementValue:
		if s := v.ptr.(*ArrayElementRef).slot(); s != nil {
			return *s
		}
		return Undefined
	case TypeJSONMemberValue:
		obj, member := v.JSONMember()
		if f, ok := obj.Get(member); ok {
			return f
		}
		return Undefined
	case TypePropertyRef:
		return v.ptr.(*PropertyRef).get()
	}
	return v
}

// ---------------------------------------------------------------------------
// Numeric coercion
// ---------------------------------------------------------------------------

// ToDouble converts v to float64. ok is false when v has no numeric reading.
func (v Value) ToDouble() (float64, bool) {
	v = v.GetValue()
	switch v.typ {
	case TypeDouble:
		return v.Double(), true
	case TypeFloat:
		return float64(v.Float()), true
	case TypeInt64:
		return float64(v.Int64()), true
	case TypeUint64:
		return float64(v.Uint64()), true
	case TypeInt32:
		return float64(v.Int32()), true
	case TypeUint32:
		return float64(v.Uint32()), true
	case TypeInt16:
		return float64(v.Int16()), true
	case TypeUint16:
		return float64(v.Uint16()), true
	case TypeInt8:
		return float64(v.Int8()), true
	case TypeUint8:
		return float64(v.Uint8()), true
	case TypeBoolean:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case TypeDate:
		return float64(v.DateMillis()), true
	case TypeString, TypeStringRef:
		f, n := parseFloatPrefix(v.GetString())
		return f, n > 0
	}
	return 0, false
}

// ToFloat converts v to float32.
func (v Value) ToFloat() (float32, bool) {
	v = v.GetValue()
	if v.typ == TypeFloat {
		return v.Float(), true
	}
	f, ok := v.ToDouble()
	return float32(f), ok
}

// ToInt64 converts v to int64, truncating floating values.
func (v Value) ToInt64() (int64, bool) {
	v = v.GetValue()
	switch v.typ {
	case TypeDouble:
		return truncInt64(v.Double())
	case TypeFloat:
		return truncInt64(float64(v.Float()))
	case TypeInt64:
		return v.Int64(), true
	case TypeUint64:
		return int64(v.Uint64()), true
	case TypeInt32:
		return int64(v.Int32()), true
	case TypeUint32:
		return int64(v.Uint32()), true
	case TypeInt16:
		return int64(v.Int16()), true
	case TypeUint16:
		return int64(v.Uint16()), true
	case TypeInt8:
		return int64(v.Int8()), true
	case TypeUint8:
		return int64(v.Uint8()), true
	case TypeBoolean:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case TypeDate:
		return v.DateMillis(), true
	case TypeString, TypeStringRef:
		n, used := parseIntPrefix(v.GetString())
		return n, used > 0
	}
	return 0, false
}

// ToInt32 converts v to int32, truncating floating values and wider
// integers.
func (v Value) ToInt32() (int32, bool) {
	n, ok := v.ToInt64()
	return int32(n), ok
}

// ToBool reports the truthiness of v.
func (v Value) ToBool() (bool, bool) {
	v = v.GetValue()
	switch v.typ {
	case TypeUndefined, TypeNull:
		return false, true
	case TypeBoolean:
		return v.Bool(), true
	case TypeDouble:
		return v.Double() != 0, true
	case TypeFloat:
		return v.Float() != 0, true
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return v.Int64SignExtended() != 0, true
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return v.bits != 0, true
	case TypeString, TypeStringRef:
		return v.GetString() != "", true
	case TypeArray, TypeArrayRef:
		return v.GetArray().Len() > 0, true
	case TypeBlobRef:
		return len(v.GetBlob()) > 0, true
	case TypeJSON:
		return v.JSONObject().Len() > 0, true
	case TypeDate:
		return v.DateMillis() != 0, true
	case TypeEnum, TypeStream:
		return v.bits != 0, true
	case TypePointer, TypeWidget, TypeEvent:
		return v.ptr != nil, true
	}
	return false, false
}

// Int64SignExtended reads a signed integer payload of any width.
func (v Value) Int64SignExtended() int64 {
	switch v.typ {
	case TypeInt8:
		return int64(v.Int8())
	case TypeInt16:
		return int64(v.Int16())
	case TypeInt32:
		return int64(v.Int32())
	}
	return int64(v.bits)
}

func truncInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// ---------------------------------------------------------------------------
// Storage coercion
// ---------------------------------------------------------------------------

// ConvertTo coerces v into the storage type t. Values of non-numeric types
// are returned unchanged; ok is false if a numeric target cannot be
// produced.
func (v Value) ConvertTo(t Type) (Value, bool) {
	src := v.GetValue()
	if src.typ == t {
		return src, true
	}
	switch t {
	case TypeBoolean:
		b, ok := src.ToBool()
		return FromBool(b), ok
	case TypeInt8, TypeUint8, TypeInt16, TypeUint16, TypeInt32, TypeUint32, TypeInt64, TypeUint64:
		n, ok := src.ToInt64()
		if !ok {
			return src, false
		}
		return Value{typ: t, unit: src.unit, bits: narrowBits(t, n)}, true
	case TypeFloat:
		f, ok := src.ToFloat()
		return FromFloat(f).WithUnit(src.unit), ok
	case TypeDouble:
		f, ok := src.ToDouble()
		return FromDouble(f).WithUnit(src.unit), ok
	}
	return src, true
}

func narrowBits(t Type, n int64) uint64 {
	switch t {
	case TypeInt8:
		return uint64(int64(int8(n)))
	case TypeUint8:
		return uint64(uint8(n))
	case TypeInt16:
		return uint64(int64(int16(n)))
	case TypeUint16:
		return uint64(uint16(n))
	case TypeInt32:
		return uint64(int64(int32(n)))
	case TypeUint32:
		return uint64(uint32(n))
	}
	return uint64(n)
}

// ---------------------------------------------------------------------------
// C-style prefix parsing
// ---------------------------------------------------------------------------

// parseIntPrefix parses an optionally signed decimal integer at the start of
// s after leading whitespace. It returns the number of bytes consumed, or 0
// when no digits were found.
func parseIntPrefix(s string) (int64, int) {
	i := len(s) - len(strings.TrimLeft(s, " \t\r\n\v\f"))
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, 0
	}
	n, err := strconv.ParseInt(s[start:i], 10, 64)
	if err != nil {
		if s[start] == '-' {
			return math.MinInt64, i
		}
		return math.MaxInt64, i
	}
	return n, i
}

// parseFloatPrefix parses the longest floating point literal at the start
// of s, with the same leniency as atof.
func parseFloatPrefix(s string) (float64, int) {
	i := len(s) - len(strings.TrimLeft(s, " \t\r\n\v\f"))
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	mant := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		mant++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			mant++
		}
	}
	if mant == 0 {
		rest := strings.ToLower(s[start:])
		for _, word := range []string{"+inf", "-inf", "inf", "nan"} {
			if strings.HasPrefix(rest, word) {
				f, _ := strconv.ParseFloat(word, 64)
				return f, start + len(word)
			}
		}
		return 0, 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	f, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil && f == 0 {
		return 0, 0
	}
	return f, i
}

package value

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// significantDigits bounds auto-formatted floating values.
const significantDigits = 12

// DateLayout is the layout used to print dates.
const DateLayout = "2006-01-02 15:04:05"

// Decimals returns the fixed decimal count of v and whether it is set.
func (v Value) Decimals() (int, bool) {
	if v.options&OptFixedDecimals == 0 {
		return 0, false
	}
	return int(v.options&decimalsMask) >> decimalsShift, true
}

// ToText renders v for display. Indirections are resolved one level first.
func (v Value) ToText() string {
	v = v.GetValue()
	switch v.typ {
	case TypeUndefined:
		return ""
	case TypeNull:
		return "null"
	case TypeBoolean:
		if v.Bool() {
			return "true"
		}
		return "false"
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return withUnit(strconv.FormatInt(v.Int64SignExtended(), 10), v.unit)
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return withUnit(strconv.FormatUint(v.bits, 10), v.unit)
	case TypeFloat:
		return v.formatFloat(float64(v.Float()))
	case TypeDouble:
		return v.formatFloat(v.Double())
	case TypeString, TypeStringRef:
		return v.GetString()
	case TypeArray, TypeArrayRef:
		arr := v.GetArray()
		parts := make([]string, 0, arr.Len())
		for _, e := range arr.Values {
			parts = append(parts, e.ToText())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeBlobRef:
		return "blob(" + strconv.Itoa(len(v.GetBlob())) + ")"
	case TypeJSON:
		b, err := MarshalJSON(v)
		if err != nil {
			return ""
		}
		return string(b)
	case TypeError:
		return v.ErrorMessage()
	case TypeDate:
		return FormatDate(v.DateMillis())
	case TypeEnum:
		_, n := v.EnumParts()
		return strconv.Itoa(int(n))
	case TypeRange:
		from, to := v.RangeParts()
		return strconv.Itoa(int(from)) + ".." + strconv.Itoa(int(to))
	case TypeStream:
		return "stream(" + strconv.Itoa(int(v.StreamHandle())) + ")"
	case TypeNativeVariable:
		return "native(" + strconv.Itoa(int(v.NativeVariableID())) + ")"
	case TypeFlowOutput:
		return "output(" + strconv.Itoa(int(v.OutputIndex())) + ")"
	case TypeEvent:
		if e := v.Event(); e != nil {
			return "event(" + strconv.Itoa(int(e.Code)) + ")"
		}
	}
	return v.typ.String()
}

func (v Value) formatFloat(f float64) string {
	if n, ok := v.Decimals(); ok {
		return withUnit(strconv.FormatFloat(f, 'f', n, 64), v.unit)
	}
	return FormatNumber(f, v.unit)
}

// FormatNumber renders f in unit u, switching to the best derived unit and
// trimming to twelve significant digits.
func FormatNumber(f float64, u Unit) string {
	f, u = ScaleUnit(f, u)
	return withUnit(formatSignificant(f), u)
}

// FormatFixed renders f in unit u with exactly decimals fraction digits.
func FormatFixed(f float64, u Unit, decimals int) string {
	f, u = ScaleUnit(f, u)
	return withUnit(strconv.FormatFloat(f, 'f', decimals, 64), u)
}

func formatSignificant(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', significantDigits, 64), 64)
	if err != nil {
		rounded = f
	}
	abs := math.Abs(rounded)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(rounded, 'g', -1, 64)
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func withUnit(s string, u Unit) string {
	if sym := u.Symbol(); sym != "" {
		return s + " " + sym
	}
	return s
}

// FormatDate prints a millisecond timestamp in UTC.
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}

// ToStringRef renders v as an owned runtime string.
func (v Value) ToStringRef(tag uint32) Value {
	if r := v.GetValue(); r.typ == TypeStringRef {
		return r.Retain()
	}
	return MakeStringRef(v.ToText(), tag)
}

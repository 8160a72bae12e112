package expr

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chazu/flowvm/value"
)

// ---------------------------------------------------------------------------
// System and flow
// ---------------------------------------------------------------------------

func opSystemGetTick(ev *Evaluator, _ []value.Value) value.Value {
	return value.FromUint32(ev.env.Tick())
}

func opFlowIndex(ev *Evaluator, args []value.Value) value.Value {
	level, ok := args[0].ToInt32()
	if !ok {
		return value.MakeError("Flow.index: integer level expected")
	}
	return value.FromInt32(ev.env.Iterator(int(level)))
}

func opFlowIsPageActive(ev *Evaluator, _ []value.Value) value.Value {
	return value.FromBool(ev.env.IsPageActive())
}

func opFlowPageTimelinePosition(ev *Evaluator, _ []value.Value) value.Value {
	return value.FromFloat(ev.env.TimelinePosition())
}

func opFlowMakeArrayValue(_ *Evaluator, args []value.Value) value.Value {
	arrayType, ok1 := args[0].ToInt32()
	size, ok2 := args[1].ToInt32()
	if !ok1 || !ok2 || size < 0 {
		return value.MakeError("Flow.makeArrayValue: invalid array type or size")
	}
	v := value.AllocateArray(int(size), value.ArrayType(arrayType), allocTag)
	if v.IsError() {
		return value.MakeError("Flow.makeArrayValue: " + v.ErrorMessage())
	}
	return v
}

func opFlowLanguages(ev *Evaluator, _ []value.Value) value.Value {
	langs := ev.env.Languages()
	arr := value.MakeArrayRef(len(langs), value.ArrayTypeArray, allocTag)
	dst := arr.GetArray()
	for i, l := range langs {
		dst.Values[i] = value.MakeStringRef(l, allocTag)
	}
	return arr
}

func opFlowTranslate(ev *Evaluator, args []value.Value) value.Value {
	idx, ok := args[0].ToInt32()
	if !ok {
		return value.MakeError("Flow.translate: text resource index expected")
	}
	s, ok := ev.env.Translate(int(idx))
	if !ok {
		return value.MakeError(fmt.Sprintf("Flow.translate: unknown text resource %d", idx))
	}
	return value.MakeStringRef(s, allocTag)
}

func opFlowParseInteger(_ *Evaluator, args []value.Value) value.Value {
	if !args[0].IsString() {
		return unsupported("Flow.parseInteger", args[0])
	}
	n, ok := args[0].ToInt32()
	if !ok {
		return value.MakeError("Flow.parseInteger: invalid integer " + quote(args[0].GetString()))
	}
	return value.FromInt32(n)
}

func opFlowParseFloat(_ *Evaluator, args []value.Value) value.Value {
	if !args[0].IsString() {
		return unsupported("Flow.parseFloat", args[0])
	}
	f, ok := args[0].ToFloat()
	if !ok {
		return value.MakeError("Flow.parseFloat: invalid number " + quote(args[0].GetString()))
	}
	return value.FromFloat(f)
}

func opFlowParseDouble(_ *Evaluator, args []value.Value) value.Value {
	if !args[0].IsString() {
		return unsupported("Flow.parseDouble", args[0])
	}
	f, ok := args[0].ToDouble()
	if !ok {
		return value.MakeError("Flow.parseDouble: invalid number " + quote(args[0].GetString()))
	}
	return value.FromDouble(f)
}

func opFlowToInteger(_ *Evaluator, args []value.Value) value.Value {
	n, ok := args[0].ToInt32()
	if !ok {
		return unsupported("Flow.toInteger", args[0])
	}
	return value.FromInt32(n)
}

func opFlowGetBitmapIndex(ev *Evaluator, args []value.Value) value.Value {
	if !args[0].IsString() {
		return unsupported("Flow.getBitmapIndex", args[0])
	}
	return value.FromInt32(ev.env.BitmapIndex(args[0].GetString()))
}

func quote(s string) string { return fmt.Sprintf("%q", s) }

// ---------------------------------------------------------------------------
// Date
// ---------------------------------------------------------------------------

// dateLayouts are tried in order by Date.fromString.
var dateLayouts = []string{
	time.RFC3339Nano,
	value.DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// localeLayouts maps a language prefix to its date layout.
var localeLayouts = map[string]string{
	"en": "1/2/2006, 3:04:05 PM",
	"de": "2.1.2006, 15:04:05",
	"fr": "02/01/2006 15:04:05",
	"hr": "2. 1. 2006. 15:04:05",
}

func dateArg(op string, v value.Value) (time.Time, value.Value) {
	if !v.IsDate() {
		return time.Time{}, unsupported(op, v)
	}
	return time.UnixMilli(v.DateMillis()).UTC(), value.Undefined
}

func opDateNow(ev *Evaluator, _ []value.Value) value.Value {
	return value.MakeDate(ev.env.Now().UnixMilli())
}

func opDateToString(_ *Evaluator, args []value.Value) value.Value {
	if _, errv := dateArg("Date.toString", args[0]); errv.IsError() {
		return errv
	}
	return value.MakeStringRef(args[0].ToText(), allocTag)
}

func opDateToLocaleString(_ *Evaluator, args []value.Value) value.Value {
	t, errv := dateArg("Date.toLocaleString", args[0])
	if errv.IsError() {
		return errv
	}
	layout := value.DateLayout
	if args[1].IsString() {
		lang, _, _ := strings.Cut(strings.ToLower(args[1].GetString()), "-")
		if l, ok := localeLayouts[lang]; ok {
			layout = l
		}
	}
	if args[2].IsString() && args[2].GetString() != "" {
		loc, err := time.LoadLocation(args[2].GetString())
		if err != nil {
			return value.MakeError("Date.toLocaleString: " + err.Error())
		}
		t = t.In(loc)
	}
	return value.MakeStringRef(t.Format(layout), allocTag)
}

func opDateFromString(_ *Evaluator, args []value.Value) value.Value {
	if !args[0].IsString() {
		return unsupported("Date.fromString", args[0])
	}
	s := strings.TrimSpace(args[0].GetString())
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return value.MakeDate(t.UnixMilli())
		}
	}
	return value.MakeError("Date.fromString: invalid date " + quote(s))
}

func dateField(op string, v value.Value, f func(time.Time) int) value.Value {
	t, errv := dateArg(op, v)
	if errv.IsError() {
		return errv
	}
	return value.FromInt32(int32(f(t)))
}

func opDateGetYear(_ *Evaluator, args []value.Value) value.Value {
	return dateField("Date.getYear", args[0], time.Time.Year)
}

// opDateGetMonth is 1-based.
func opDateGetMonth(_ *Evaluator, args []value.Value) value.Value {
	return dateField("Date.getMonth", args[0], func(t time.Time) int { return int(t.Month()) })
}

func opDateGetDay(_ *Evaluator, args []value.Value) value.Value {
	return dateField("Date.getDay", args[0], time.Time.Day)
}

func opDateGetHours(_ *Evaluator, args []value.Value) value.Value {
	return dateField("Date.getHours", args[0], time.Time.Hour)
}

func opDateGetMinutes(_ *Evaluator, args []value.Value) value.Value {
	return dateField("Date.getMinutes", args[0], time.Time.Minute)
}

func opDateGetSeconds(_ *Evaluator, args []value.Value) value.Value {
	return dateField("Date.getSeconds", args[0], time.Time.Second)
}

func opDateGetMilliseconds(_ *Evaluator, args []value.Value) value.Value {
	return dateField("Date.getMilliseconds", args[0], func(t time.Time) int { return t.Nanosecond() / 1e6 })
}

func opDateMake(_ *Evaluator, args []value.Value) value.Value {
	var f [7]int
	for i, a := range args {
		n, ok := a.ToInt32()
		if !ok {
			return value.MakeError(fmt.Sprintf("Date.make: integer expected for argument %d", i+1))
		}
		f[i] = int(n)
	}
	t := time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], f[6]*1e6, time.UTC)
	return value.MakeDate(t.UnixMilli())
}

// ---------------------------------------------------------------------------
// Math
// ---------------------------------------------------------------------------

func mathUnary(op string, v value.Value, f func(float64) float64) value.Value {
	x, ok := v.ToDouble()
	if !ok || !(v.IsNumber() || v.IsBoolean()) {
		return unsupported(op, v)
	}
	if v.IsFloat() {
		return value.FromFloat(float32(f(x))).WithUnit(v.Unit())
	}
	return value.FromDouble(f(x)).WithUnit(v.Unit())
}

// mathRounding keeps integer operands unchanged.
func mathRounding(op string, v value.Value, f func(float64) float64) value.Value {
	if v.IsInteger() {
		return v.Retain()
	}
	return mathUnary(op, v, f)
}

func opMathSin(_ *Evaluator, args []value.Value) value.Value {
	return mathUnary("Math.sin", args[0], math.Sin)
}

func opMathCos(_ *Evaluator, args []value.Value) value.Value {
	return mathUnary("Math.cos", args[0], math.Cos)
}

func opMathLog(_ *Evaluator, args []value.Value) value.Value {
	return mathUnary("Math.log", args[0], math.Log)
}

func opMathLog10(_ *Evaluator, args []value.Value) value.Value {
	return mathUnary("Math.log10", args[0], math.Log10)
}

func opMathPow(_ *Evaluator, args []value.Value) value.Value {
	x, ok1 := args[0].ToDouble()
	y, ok2 := args[1].ToDouble()
	if !ok1 || !ok2 || !args[0].IsNumber() || !args[1].IsNumber() {
		return unsupported("Math.pow", args[0], args[1])
	}
	if args[0].IsFloat() && args[1].IsFloat() {
		return value.FromFloat(float32(math.Pow(x, y)))
	}
	return value.FromDouble(math.Pow(x, y))
}

func opMathAbs(_ *Evaluator, args []value.Value) value.Value {
	a := args[0]
	switch classOf(a) {
	case classInt32:
		n, _ := a.ToInt32()
		if n < 0 {
			n = -n
		}
		return value.FromInt32(n).WithUnit(a.Unit())
	case classInt64:
		n, _ := a.ToInt64()
		if n < 0 {
			n = -n
		}
		return value.FromInt64(n).WithUnit(a.Unit())
	}
	return mathUnary("Math.abs", a, math.Abs)
}

func opMathFloor(_ *Evaluator, args []value.Value) value.Value {
	return mathRounding("Math.floor", args[0], math.Floor)
}

func opMathCeil(_ *Evaluator, args []value.Value) value.Value {
	return mathRounding("Math.ceil", args[0], math.Ceil)
}

func opMathRound(_ *Evaluator, args []value.Value) value.Value {
	return mathRounding("Math.round", args[0], math.Round)
}

func opMathMin(_ *Evaluator, args []value.Value) value.Value {
	if promote(args[0], args[1]) == classNone {
		return unsupported("Math.min", args[0], args[1])
	}
	if value.IsLess(args[1], args[0]) {
		return args[1].Retain()
	}
	return args[0].Retain()
}

func opMathMax(_ *Evaluator, args []value.Value) value.Value {
	if promote(args[0], args[1]) == classNone {
		return unsupported("Math.max", args[0], args[1])
	}
	if value.IsLess(args[0], args[1]) {
		return args[1].Retain()
	}
	return args[0].Retain()
}

func opMathRandom(ev *Evaluator, _ []value.Value) value.Value {
	return value.FromDouble(ev.rng.Float64())
}

package expr

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chazu/flowvm/alloc"
	"github.com/chazu/flowvm/value"
)

func stringArg(op string, v value.Value) (string, value.Value) {
	if !v.IsString() {
		return "", unsupported(op, v)
	}
	return v.GetString(), value.Undefined
}

func intArg(op string, v value.Value) (int, value.Value) {
	if !v.IsInteger() && !v.IsFloat() && !v.IsDouble() {
		return 0, value.MakeError(fmt.Sprintf("%s: integer expected, got %s", op, v.TypeName()))
	}
	n, ok := v.ToInt64()
	if !ok {
		return 0, value.MakeError(fmt.Sprintf("%s: integer expected", op))
	}
	return int(n), value.Undefined
}

func opStringLength(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.length", args[0])
	if errv.IsError() {
		return errv
	}
	return value.FromInt32(int32(utf8.RuneCountInString(s)))
}

// opStringSubstring takes rune offsets [start, end). An undefined end runs
// to the end of the string; offsets are clamped.
func opStringSubstring(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.substring", args[0])
	if errv.IsError() {
		return errv
	}
	runes := []rune(s)
	start, errv := intArg("String.substring", args[1])
	if errv.IsError() {
		return errv
	}
	end := len(runes)
	if !args[2].IsUndefinedOrNull() {
		if end, errv = intArg("String.substring", args[2]); errv.IsError() {
			return errv
		}
	}
	start = min(max(start, 0), len(runes))
	end = min(max(end, start), len(runes))
	return value.MakeStringRef(string(runes[start:end]), allocTag)
}

// opStringFind returns the rune index of the first occurrence, or -1.
func opStringFind(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.find", args[0])
	if errv.IsError() {
		return errv
	}
	sub, errv := stringArg("String.find", args[1])
	if errv.IsError() {
		return errv
	}
	i := strings.Index(s, sub)
	if i < 0 {
		return value.FromInt32(-1)
	}
	return value.FromInt32(int32(utf8.RuneCountInString(s[:i])))
}

func opStringPadStart(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.padStart", args[0])
	if errv.IsError() {
		return errv
	}
	width, errv := intArg("String.padStart", args[1])
	if errv.IsError() {
		return errv
	}
	pad, errv := stringArg("String.padStart", args[2])
	if errv.IsError() {
		return errv
	}
	n := utf8.RuneCountInString(s)
	if n >= width || pad == "" {
		return args[0].Retain()
	}
	count := (width-n)/utf8.RuneCountInString(pad) + 1
	if count > alloc.MaxBlockSize/len(pad) {
		return value.MakeError(fmt.Sprintf("String.padStart: %s: width %d", alloc.ErrOutOfMemory, width))
	}
	fill := []rune(strings.Repeat(pad, count))[:width-n]
	return value.MakeStringRef(string(fill)+s, allocTag)
}

func opStringSplit(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.split", args[0])
	if errv.IsError() {
		return errv
	}
	sep, errv := stringArg("String.split", args[1])
	if errv.IsError() {
		return errv
	}
	parts := strings.Split(s, sep)
	arr := value.MakeArrayRef(len(parts), value.ArrayTypeArray, allocTag)
	dst := arr.GetArray()
	for i, p := range parts {
		dst.Values[i] = value.MakeStringRef(p, allocTag)
	}
	return arr
}

func opStringFromCodePoint(_ *Evaluator, args []value.Value) value.Value {
	cp, errv := intArg("String.fromCodePoint", args[0])
	if errv.IsError() {
		return errv
	}
	if cp < 0 || cp > utf8.MaxRune {
		return value.MakeError(fmt.Sprintf("String.fromCodePoint: invalid code point %d", cp))
	}
	return value.MakeStringRef(string(rune(cp)), allocTag)
}

func opStringCodePointAt(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.codePointAt", args[0])
	if errv.IsError() {
		return errv
	}
	i, errv := intArg("String.codePointAt", args[1])
	if errv.IsError() {
		return errv
	}
	runes := []rune(s)
	if i < 0 || i >= len(runes) {
		return value.MakeError(fmt.Sprintf("String.codePointAt: index %d out of bounds", i))
	}
	return value.FromInt32(runes[i])
}

func languageTag(ev *Evaluator) language.Tag {
	if ev.env == nil {
		return language.Und
	}
	tag, err := language.Parse(ev.env.Language())
	if err != nil {
		return language.Und
	}
	return tag
}

func opStringToUpperCase(ev *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.toUpperCase", args[0])
	if errv.IsError() {
		return errv
	}
	return value.MakeStringRef(cases.Upper(languageTag(ev)).String(s), allocTag)
}

func opStringToLowerCase(ev *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.toLowerCase", args[0])
	if errv.IsError() {
		return errv
	}
	return value.MakeStringRef(cases.Lower(languageTag(ev)).String(s), allocTag)
}

func opStringTrim(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("String.trim", args[0])
	if errv.IsError() {
		return errv
	}
	return value.MakeStringRef(strings.TrimSpace(s), allocTag)
}

func stringPredicate(op string, args []value.Value, f func(s, x string) bool) value.Value {
	s, errv := stringArg(op, args[0])
	if errv.IsError() {
		return errv
	}
	x, errv := stringArg(op, args[1])
	if errv.IsError() {
		return errv
	}
	return value.FromBool(f(s, x))
}

func opStringStartsWith(_ *Evaluator, args []value.Value) value.Value {
	return stringPredicate("String.startsWith", args, strings.HasPrefix)
}

func opStringEndsWith(_ *Evaluator, args []value.Value) value.Value {
	return stringPredicate("String.endsWith", args, strings.HasSuffix)
}

func opStringIncludes(_ *Evaluator, args []value.Value) value.Value {
	return stringPredicate("String.includes", args, strings.Contains)
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// formatSpec is one parsed printf conversion.
type formatSpec struct {
	prefix, suffix string
	directive      string // "%" flags width precision, without the verb
	verb           byte
}

// parseFormat accepts text with exactly one conversion of the form
// %[-+ #0][width][.precision]verb, where verb is one of d i u x X o c s f F
// e E g G. "%%" is a literal percent sign.
func parseFormat(s string) (formatSpec, bool) {
	var spec formatSpec
	var out strings.Builder
	found := false
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			out.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			out.WriteByte('%')
			i++
			continue
		}
		if found {
			return spec, false
		}
		j := i + 1
		for j < len(s) && strings.IndexByte("-+ #0", s[j]) >= 0 {
			j++
		}
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j < len(s) && s[j] == '.' {
			j++
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
		}
		// C length modifiers carry no meaning here.
		for j < len(s) && strings.IndexByte("hlLqjzt", s[j]) >= 0 {
			j++
		}
		if j >= len(s) || strings.IndexByte("diuxXocsfFeEgG", s[j]) < 0 {
			return spec, false
		}
		spec.prefix = out.String()
		out.Reset()
		spec.directive = strings.TrimRight(s[i:j], "hlLqjzt")
		spec.verb = s[j]
		found = true
		i = j
	}
	spec.suffix = out.String()
	return spec, found
}

func (spec formatSpec) apply(v value.Value) (string, bool) {
	var arg any
	verb := spec.verb
	switch verb {
	case 'd', 'i', 'u':
		n, ok := v.ToInt64()
		if !ok {
			return "", false
		}
		arg, verb = n, 'd'
	case 'x', 'X', 'o':
		n, ok := v.ToInt64()
		if !ok {
			return "", false
		}
		arg = n
	case 'c':
		n, ok := v.ToInt32()
		if !ok {
			return "", false
		}
		arg = rune(n)
	case 's':
		arg = v.ToText()
	default:
		f, ok := v.ToDouble()
		if !ok {
			return "", false
		}
		arg = f
		if verb == 'F' {
			verb = 'f'
		}
	}
	body := fmt.Sprintf(spec.directive+string(verb), arg)
	return spec.prefix + body + spec.suffix, true
}

func opStringFormat(_ *Evaluator, args []value.Value) value.Value {
	f, errv := stringArg("String.format", args[0])
	if errv.IsError() {
		return errv
	}
	spec, ok := parseFormat(f)
	if !ok {
		return value.MakeError("String.format: invalid format specifier " + quote(f))
	}
	s, ok := spec.apply(args[1])
	if !ok {
		return value.MakeError(fmt.Sprintf("String.format: cannot format %s with %q", args[1].TypeName(), f))
	}
	return value.MakeStringRef(s, allocTag)
}

// siPrefixes are ordered from the smallest scale; index 4 has no prefix.
var siPrefixes = []string{"p", "n", "u", "m", "", "k", "M", "G", "T"}

// opStringFormatPrefix scales the value by powers of 1000, formats the
// mantissa and appends the SI prefix.
func opStringFormatPrefix(_ *Evaluator, args []value.Value) value.Value {
	f, errv := stringArg("String.formatPrefix", args[0])
	if errv.IsError() {
		return errv
	}
	x, ok := args[1].ToDouble()
	if !ok || !args[1].IsNumber() {
		return unsupported("String.formatPrefix", args[1])
	}
	spec, ok := parseFormat(f)
	if !ok || strings.IndexByte("fFeEgG", spec.verb) < 0 {
		return value.MakeError("String.formatPrefix: invalid format specifier " + quote(f))
	}
	i := 4
	if x != 0 && !math.IsInf(x, 0) && !math.IsNaN(x) {
		for math.Abs(x) >= 1000 && i < len(siPrefixes)-1 {
			x /= 1000
			i++
		}
		for math.Abs(x) < 1 && i > 0 {
			x *= 1000
			i--
		}
	}
	s, _ := spec.apply(value.FromDouble(x))
	return value.MakeStringRef(s+siPrefixes[i], allocTag)
}

package expr

import (
	"time"

	"github.com/chazu/flowvm/value"
)

// Env is the evaluation context of one expression: the flow state and
// component being evaluated plus the host queries operations may issue.
// Borrowed values stay owned by the Env.
type Env interface {
	// Constant returns entry index of the constant pool (borrowed).
	Constant(index int) (value.Value, bool)

	// Input returns the current value of an input (borrowed).
	Input(index int) (value.Value, bool)

	// Local returns the storage slot of a local variable, or nil.
	Local(index int) *value.Value

	// Global returns the storage slot of a global variable, or nil.
	Global(index int) *value.Value

	// NumGlobals is the number of declared globals. Global addresses at or
	// past it denote native variables.
	NumGlobals() int

	// NativeVariable reads a host variable (owned).
	NativeVariable(id int32) value.Value

	// Iterator returns the loop index at nesting level of the evaluated
	// component (for list widgets).
	Iterator(level int) int32

	// Tick returns the millisecond tick counter.
	Tick() uint32

	// Now returns the wall clock.
	Now() time.Time

	// IsPageActive reports whether the evaluated flow is the shown page.
	IsPageActive() bool

	// TimelinePosition returns the animation timeline position of the
	// evaluated page.
	TimelinePosition() float32

	// Languages lists the configured language identifiers; Language is the
	// selected one.
	Languages() []string
	Language() string

	// Translate looks a text resource up in the selected language.
	Translate(textIndex int) (string, bool)

	// BitmapIndex resolves a bitmap by name, 0 when unknown.
	BitmapIndex(name string) int32
}

// NativeVariableID maps a global address at or past NumGlobals to the native
// variable id: the first native address is -1, the next -2 and so on.
func NativeVariableID(globalIndex, numGlobals int) int32 {
	return -int32(globalIndex - numGlobals + 1)
}

// ---------------------------------------------------------------------------
// StaticEnv
// ---------------------------------------------------------------------------

// StaticEnv is an Env backed by plain slices. It serves tooling and tests,
// where there is no running flow state.
type StaticEnv struct {
	Constants []value.Value
	Inputs    []value.Value
	Locals    []value.Value
	Globals   []value.Value
	Natives   map[int32]value.Value
	Iterators []int32
	Langs     []string
	Lang      string
	Texts     map[int]string
	Bitmaps   map[string]int32
	PageShown bool
	Timeline  float32

	// Clock defaults to time.Now.
	Clock func() time.Time
	// Start is the reference point of Tick; zero means the first call.
	Start time.Time
}

func (e *StaticEnv) Constant(i int) (value.Value, bool) { return at(e.Constants, i) }
func (e *StaticEnv) Input(i int) (value.Value, bool)    { return at(e.Inputs, i) }
func (e *StaticEnv) Local(i int) *value.Value           { return slot(e.Locals, i) }
func (e *StaticEnv) Global(i int) *value.Value          { return slot(e.Globals, i) }
func (e *StaticEnv) NumGlobals() int                    { return len(e.Globals) }
func (e *StaticEnv) IsPageActive() bool                 { return e.PageShown }
func (e *StaticEnv) TimelinePosition() float32          { return e.Timeline }
func (e *StaticEnv) Languages() []string                { return e.Langs }
func (e *StaticEnv) Language() string                   { return e.Lang }

func (e *StaticEnv) NativeVariable(id int32) value.Value {
	if v, ok := e.Natives[id]; ok {
		return v.Retain()
	}
	return value.Undefined
}

func (e *StaticEnv) Iterator(level int) int32 {
	if level >= 0 && level < len(e.Iterators) {
		return e.Iterators[level]
	}
	return 0
}

func (e *StaticEnv) Now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *StaticEnv) Tick() uint32 {
	now := e.Now()
	if e.Start.IsZero() {
		e.Start = now
	}
	return uint32(now.Sub(e.Start).Milliseconds())
}

func (e *StaticEnv) Translate(i int) (string, bool) {
	s, ok := e.Texts[i]
	return s, ok
}

func (e *StaticEnv) BitmapIndex(name string) int32 {
	return e.Bitmaps[name]
}

func at(vs []value.Value, i int) (value.Value, bool) {
	if i < 0 || i >= len(vs) {
		return value.Undefined, false
	}
	return vs[i], true
}

func slot(vs []value.Value, i int) *value.Value {
	if i < 0 || i >= len(vs) {
		return nil
	}
	return &vs[i]
}

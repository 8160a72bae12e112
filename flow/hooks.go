package flow

import (
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/flowvm/value"
)

var flowLog = commonlog.GetLogger("flowvm.log")

// KeyboardRequest configures the on-screen keyboard of a ShowKeyboard
// component.
type KeyboardRequest struct {
	Label       string
	InitialText string
	MinChars    int
	MaxChars    int
	Password    bool
}

// KeypadRequest configures the numeric keypad of a ShowKeypad component.
type KeypadRequest struct {
	Label        string
	InitialValue float64
	Min          float64
	Max          float64
	Unit         value.Unit
}

// Hooks are the host callbacks of an Engine. SetHooks replaces nil fields
// with the defaults of DefaultHooks, so a host sets only what it supports.
type Hooks struct {
	// StopScript is called once when the script requests termination.
	StopScript func()

	// ShowKeyboard and ShowKeypad display an input dialog and later call
	// done on the Tick goroutine. ok is false when the user cancelled.
	ShowKeyboard func(req KeyboardRequest, done func(text string, ok bool))
	ShowKeypad   func(req KeypadRequest, done func(v float64, ok bool))

	// ReplacePage shows the page flow with the given index.
	ReplacePage func(pageIndex int)

	// WriteDebuggerBytes receives encoded debugger messages.
	WriteDebuggerBytes func(p []byte)

	// OnFreeArrayValue is called before an object array is freed.
	OnFreeArrayValue func(arr *value.ArrayValue)

	// ExecuteWidget renders or updates a widget pseudo-component. obj is the
	// handle returned by GetLvglObjectByIndex or GetLvglObjectByName.
	ExecuteWidget func(fs *FlowState, componentIndex int, obj any)

	// ExecuteDashboardComponent runs component types at or above
	// FirstDashboardComponentType.
	ExecuteDashboardComponent func(e *Engine, fs *FlowState, componentIndex int)

	// ExecuteAction runs the native action actionIndex on behalf of a
	// CallAction component. A returned error is thrown as a flow error.
	ExecuteAction func(e *Engine, fs *FlowState, componentIndex, actionIndex int) error

	// OnFlowError is called once per unrecoverable flow error.
	OnFlowError func(fs *FlowState, componentIndex int, message string)

	// Log receives the output of Log components.
	Log func(fs *FlowState, componentIndex int, message string)

	// Now is the engine clock.
	Now func() time.Time

	// IsPageActive reports whether fs is the page being shown.
	IsPageActive func(fs *FlowState) bool

	// Translate resolves a text resource in a language.
	Translate func(textIndex int, language string) (string, bool)

	// GetBitmapIndex resolves a bitmap by name, 0 when unknown.
	GetBitmapIndex func(name string) int32

	// GetLvglObjectByIndex and GetLvglObjectByName return opaque widget
	// handles, nil when the object does not exist yet. A widget component is
	// looked up by its index first, then by its name; while both return nil
	// it is polled as a continuous task. Without a widget toolkit the index
	// itself is the handle.
	GetLvglObjectByIndex func(index int32) any
	GetLvglObjectByName  func(name string) any
}

// DefaultHooks returns hooks that log and otherwise do nothing.
func DefaultHooks() Hooks {
	return Hooks{
		StopScript: func() {},
		ShowKeyboard: func(req KeyboardRequest, done func(string, bool)) {
			log.Warningf("no keyboard available for %q", req.Label)
			done("", false)
		},
		ShowKeypad: func(req KeypadRequest, done func(float64, bool)) {
			log.Warningf("no keypad available for %q", req.Label)
			done(0, false)
		},
		ReplacePage:        func(int) {},
		WriteDebuggerBytes: func([]byte) {},
		OnFreeArrayValue:   func(*value.ArrayValue) {},
		ExecuteWidget:      func(*FlowState, int, any) {},
		ExecuteDashboardComponent: func(e *Engine, fs *FlowState, ci int) {
			e.ThrowError(fs, ci, "Dashboard component not supported")
		},
		ExecuteAction: func(e *Engine, fs *FlowState, ci, actionIndex int) error {
			return fmt.Errorf("%w: %s", ErrUnknownAction, e.ActionName(actionIndex))
		},
		OnFlowError: func(fs *FlowState, ci int, message string) {},
		Log: func(fs *FlowState, ci int, message string) {
			flowLog.Infof("%s", message)
		},
		Now: time.Now,
		IsPageActive: func(fs *FlowState) bool {
			return fs.Parent == nil && !fs.IsAction
		},
		Translate:            func(int, string) (string, bool) { return "", false },
		GetBitmapIndex:       func(string) int32 { return 0 },
		GetLvglObjectByIndex: func(index int32) any { return index },
		GetLvglObjectByName:  func(string) any { return nil },
	}
}

// withDefaults fills the nil fields of h.
func (h Hooks) withDefaults() Hooks {
	d := DefaultHooks()
	if h.StopScript == nil {
		h.StopScript = d.StopScript
	}
	if h.ShowKeyboard == nil {
		h.ShowKeyboard = d.ShowKeyboard
	}
	if h.ShowKeypad == nil {
		h.ShowKeypad = d.ShowKeypad
	}
	if h.ReplacePage == nil {
		h.ReplacePage = d.ReplacePage
	}
	if h.WriteDebuggerBytes == nil {
		h.WriteDebuggerBytes = d.WriteDebuggerBytes
	}
	if h.OnFreeArrayValue == nil {
		h.OnFreeArrayValue = d.OnFreeArrayValue
	}
	if h.ExecuteWidget == nil {
		h.ExecuteWidget = d.ExecuteWidget
	}
	if h.ExecuteDashboardComponent == nil {
		h.ExecuteDashboardComponent = d.ExecuteDashboardComponent
	}
	if h.ExecuteAction == nil {
		h.ExecuteAction = d.ExecuteAction
	}
	if h.OnFlowError == nil {
		h.OnFlowError = d.OnFlowError
	}
	if h.Log == nil {
		h.Log = d.Log
	}
	if h.Now == nil {
		h.Now = d.Now
	}
	if h.IsPageActive == nil {
		h.IsPageActive = d.IsPageActive
	}
	if h.Translate == nil {
		h.Translate = d.Translate
	}
	if h.GetBitmapIndex == nil {
		h.GetBitmapIndex = d.GetBitmapIndex
	}
	if h.GetLvglObjectByIndex == nil {
		h.GetLvglObjectByIndex = d.GetLvglObjectByIndex
	}
	if h.GetLvglObjectByName == nil {
		h.GetLvglObjectByName = d.GetLvglObjectByName
	}
	return h
}

// ---------------------------------------------------------------------------
// Native variables
// ---------------------------------------------------------------------------

// NativeVariables is the host data layer behind native-variable addresses.
// Ids are negative; cursor is the list iterator of the evaluating component.
type NativeVariables interface {
	// Get returns an owned value.
	Get(cursor int, id int32) value.Value
	// Set stores a borrowed value.
	Set(cursor int, id int32, v value.Value) error
}

// NativeVariableMap is a NativeVariables backed by a map, ignoring the
// cursor. Unknown ids read as Undefined and may be written.
type NativeVariableMap map[int32]value.Value

func (m NativeVariableMap) Get(cursor int, id int32) value.Value {
	if v, ok := m[id]; ok {
		return v.Retain()
	}
	return value.Undefined
}

func (m NativeVariableMap) Set(cursor int, id int32, v value.Value) error {
	old := m[id]
	m[id] = v.Retain()
	old.Release()
	return nil
}

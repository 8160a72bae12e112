package flow

import (
	"fmt"
)

// Component types. Types below FirstActionComponentType are widgets, types
// at or above FirstDashboardComponentType belong to the dashboard host.
const (
	FirstActionComponentType    uint16 = 1000
	FirstDashboardComponentType uint16 = 10000

	ComponentTypeStart          uint16 = 1001
	ComponentTypeEnd            uint16 = 1002
	ComponentTypeInput          uint16 = 1003
	ComponentTypeOutput         uint16 = 1004
	ComponentTypeWatchVariable  uint16 = 1005
	ComponentTypeEvalExpr       uint16 = 1006
	ComponentTypeSetVariable    uint16 = 1007
	ComponentTypeSwitch         uint16 = 1008
	ComponentTypeCompare        uint16 = 1009
	ComponentTypeIsTrue         uint16 = 1010
	ComponentTypeConstant       uint16 = 1011
	ComponentTypeLog            uint16 = 1012
	ComponentTypeCallAction     uint16 = 1013
	ComponentTypeDelay          uint16 = 1014
	ComponentTypeError          uint16 = 1015
	ComponentTypeCatchError     uint16 = 1016
	ComponentTypeCounter        uint16 = 1017
	ComponentTypeLoop           uint16 = 1018
	ComponentTypeShowPage       uint16 = 1019
	ComponentTypeShowKeyboard   uint16 = 1020
	ComponentTypeShowKeypad     uint16 = 1021
	ComponentTypeSelectLanguage uint16 = 1022
	ComponentTypeOnEvent        uint16 = 1023
	ComponentTypeLabelIn        uint16 = 1024
	ComponentTypeLabelOut       uint16 = 1025
	ComponentTypeNoOp           uint16 = 1026
	ComponentTypeComment        uint16 = 1027
)

var componentTypeNames = map[uint16]string{
	ComponentTypeStart:          "Start",
	ComponentTypeEnd:            "End",
	ComponentTypeInput:          "Input",
	ComponentTypeOutput:         "Output",
	ComponentTypeWatchVariable:  "WatchVariable",
	ComponentTypeEvalExpr:       "EvalExpr",
	ComponentTypeSetVariable:    "SetVariable",
	ComponentTypeSwitch:         "Switch",
	ComponentTypeCompare:        "Compare",
	ComponentTypeIsTrue:         "IsTrue",
	ComponentTypeConstant:       "Constant",
	ComponentTypeLog:            "Log",
	ComponentTypeCallAction:     "CallAction",
	ComponentTypeDelay:          "Delay",
	ComponentTypeError:          "Error",
	ComponentTypeCatchError:     "CatchError",
	ComponentTypeCounter:        "Counter",
	ComponentTypeLoop:           "Loop",
	ComponentTypeShowPage:       "ShowPage",
	ComponentTypeShowKeyboard:   "ShowKeyboard",
	ComponentTypeShowKeypad:     "ShowKeypad",
	ComponentTypeSelectLanguage: "SelectLanguage",
	ComponentTypeOnEvent:        "OnEvent",
	ComponentTypeLabelIn:        "LabelIn",
	ComponentTypeLabelOut:       "LabelOut",
	ComponentTypeNoOp:           "NoOp",
	ComponentTypeComment:        "Comment",
}

// ComponentTypeName returns the printable name of a component type.
func ComponentTypeName(t uint16) string {
	if name, ok := componentTypeNames[t]; ok {
		return name
	}
	switch {
	case t < FirstActionComponentType:
		return fmt.Sprintf("Widget(%d)", t)
	case t >= FirstDashboardComponentType:
		return fmt.Sprintf("Dashboard(%d)", t)
	}
	return fmt.Sprintf("Component(%d)", t)
}

// Output indexes of the built-in components that deliver a value next to
// their sequence output.
const (
	valueOutput         = 1
	onEventValueOutput  = valueOutput
	catchErrorOutput    = valueOutput
	trueOutput          = 0
	falseOutput         = 1
	loopBodyOutput      = 0
	loopDoneOutput      = 1
	inputValueOutput    = 0
	keyboardResultOut   = 1
	keyboardCanceledOut = 2
)

// ComponentFunc executes one component of fs.
type ComponentFunc func(e *Engine, fs *FlowState, componentIndex int)

// RegisterComponent installs fn as the handler of component type t,
// replacing a built-in or earlier registration. Dashboard types registered
// here are no longer delegated to the ExecuteDashboardComponent hook.
func (e *Engine) RegisterComponent(t uint16, fn ComponentFunc) {
	if fn == nil {
		delete(e.components, t)
		return
	}
	e.components[t] = fn
}

func builtinComponents() map[uint16]ComponentFunc {
	return map[uint16]ComponentFunc{
		ComponentTypeStart:          executeStart,
		ComponentTypeEnd:            executeEnd,
		ComponentTypeInput:          executeInput,
		ComponentTypeOutput:         executeOutput,
		ComponentTypeWatchVariable:  executeWatchVariable,
		ComponentTypeEvalExpr:       executeEvalExpr,
		ComponentTypeSetVariable:    executeSetVariable,
		ComponentTypeSwitch:         executeSwitch,
		ComponentTypeCompare:        executeCompare,
		ComponentTypeIsTrue:         executeIsTrue,
		ComponentTypeConstant:       executeConstant,
		ComponentTypeLog:            executeLog,
		ComponentTypeCallAction:     executeCallAction,
		ComponentTypeDelay:          executeDelay,
		ComponentTypeError:          executeError,
		ComponentTypeCatchError:     executeCatchError,
		ComponentTypeCounter:        executeCounter,
		ComponentTypeLoop:           executeLoop,
		ComponentTypeShowPage:       executeShowPage,
		ComponentTypeShowKeyboard:   executeShowKeyboard,
		ComponentTypeShowKeypad:     executeShowKeypad,
		ComponentTypeSelectLanguage: executeSelectLanguage,
		ComponentTypeOnEvent:        executeOnEvent,
		ComponentTypeLabelIn:        executeLabelIn,
		ComponentTypeLabelOut:       executeLabelOut,
		ComponentTypeNoOp:           executeNoOp,
		ComponentTypeComment:        func(*Engine, *FlowState, int) {},
	}
}

// executeComponent dispatches component ci of fs to its handler.
func (e *Engine) executeComponent(fs *FlowState, ci int) {
	c := fs.component(ci)
	if c == nil {
		return
	}
	e.stats.componentExecuted(c.Type)

	prev := fs.ExecutingComponentIndex
	fs.ExecutingComponentIndex = ci
	defer func() { fs.ExecutingComponentIndex = prev }()

	if fn, ok := e.components[c.Type]; ok {
		fn(e, fs, ci)
		return
	}
	switch {
	case c.Type < FirstActionComponentType:
		e.executeWidget(fs, ci, c.Name)
	case c.Type >= FirstDashboardComponentType:
		e.hooks.ExecuteDashboardComponent(e, fs, ci)
	default:
		e.ThrowError(fs, ci, fmt.Sprintf("Unknown component type %d", c.Type))
	}
}

// executeWidget hands a widget component to the host once its object
// exists. Until then the component is re-queued as a continuous task.
func (e *Engine) executeWidget(fs *FlowState, ci int, name string) {
	obj := e.hooks.GetLvglObjectByIndex(int32(ci))
	if obj == nil && name != "" {
		obj = e.hooks.GetLvglObjectByName(name)
	}
	if obj == nil {
		e.AddToQueue(fs, ci, true)
		return
	}
	e.hooks.ExecuteWidget(fs, ci, obj)
}

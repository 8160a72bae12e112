package flow

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/flowvm/value"
)

var debuggerEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("flow: failed to create CBOR enc mode: %v", err))
	}
	debuggerEncMode = em
}

// DebuggerMode controls how Tick proceeds while a debugger is attached.
type DebuggerMode uint8

const (
	DebuggerRun DebuggerMode = iota
	DebuggerPaused
	DebuggerSingleStep
)

func (m DebuggerMode) String() string {
	switch m {
	case DebuggerRun:
		return "run"
	case DebuggerPaused:
		return "paused"
	case DebuggerSingleStep:
		return "single-step"
	}
	return fmt.Sprintf("DebuggerMode(%d)", uint8(m))
}

// MessageKind identifies a debugger message.
type MessageKind uint8

const (
	MsgFlowStateCreated MessageKind = iota + 1
	MsgFlowStateDestroyed
	MsgValueChanged
	MsgComponentStateChanged
	MsgAsyncChanged
	MsgFlowError
	MsgLog
	MsgModeChanged
)

// Message is one CBOR-encoded debugger record.
type Message struct {
	Kind      MessageKind `cbor:"1,keyasint"`
	FlowState string      `cbor:"2,keyasint,omitempty"`
	Index     int         `cbor:"3,keyasint,omitempty"`
	Flow      int         `cbor:"4,keyasint,omitempty"`
	Parent    string      `cbor:"5,keyasint,omitempty"`
	Component int         `cbor:"6,keyasint,omitempty"`
	Slot      int         `cbor:"7,keyasint,omitempty"`
	ValueType string      `cbor:"8,keyasint,omitempty"`
	Value     string      `cbor:"9,keyasint,omitempty"`
	Text      string      `cbor:"10,keyasint,omitempty"`
	Pending   bool        `cbor:"11,keyasint,omitempty"`
}

// DecodeMessage parses one encoded debugger message.
func DecodeMessage(p []byte) (Message, error) {
	var m Message
	if err := cbor.Unmarshal(p, &m); err != nil {
		return Message{}, fmt.Errorf("flow: decode debugger message: %w", err)
	}
	return m, nil
}

// Debugger streams engine events to the WriteDebuggerBytes hook and gates
// task execution.
type Debugger struct {
	e        *Engine
	mode     DebuggerMode
	stepOnce bool
}

// AttachDebugger enables the debugger. In paused mode no task runs until
// Resume or SingleStep.
func (e *Engine) AttachDebugger(paused bool) *Debugger {
	d := &Debugger{e: e}
	if paused {
		d.mode = DebuggerPaused
	}
	e.debugger = d
	for _, fs := range e.roots {
		d.announceTree(fs)
	}
	return d
}

// DetachDebugger disables the debugger.
func (e *Engine) DetachDebugger() { e.debugger = nil }

// Debugger returns the attached debugger, or nil.
func (e *Engine) Debugger() *Debugger { return e.debugger }

// Mode returns the current mode.
func (d *Debugger) Mode() DebuggerMode { return d.mode }

// Pause stops task execution before the next task.
func (d *Debugger) Pause() { d.setMode(DebuggerPaused) }

// Resume continues normal execution.
func (d *Debugger) Resume() { d.setMode(DebuggerRun) }

// SingleStep lets exactly one more task run, then pauses.
func (d *Debugger) SingleStep() {
	d.setMode(DebuggerSingleStep)
	d.stepOnce = true
}

func (d *Debugger) setMode(m DebuggerMode) {
	if d.mode == m {
		return
	}
	d.mode = m
	d.send(Message{Kind: MsgModeChanged, Text: m.String()})
}

func (d *Debugger) canExecuteStep() bool {
	switch d.mode {
	case DebuggerRun:
		return true
	case DebuggerSingleStep:
		if d.stepOnce {
			d.stepOnce = false
			return true
		}
	}
	return false
}

func (d *Debugger) send(m Message) {
	p, err := debuggerEncMode.Marshal(m)
	if err != nil {
		log.Errorf("debugger: %s", err.Error())
		return
	}
	d.e.hooks.WriteDebuggerBytes(p)
}

func (d *Debugger) announceTree(fs *FlowState) {
	d.flowStateCreated(fs)
	for _, c := range fs.Children {
		d.announceTree(c)
	}
}

func (d *Debugger) flowStateCreated(fs *FlowState) {
	m := Message{Kind: MsgFlowStateCreated, FlowState: fs.ID.String(), Index: fs.Index, Flow: fs.FlowIndex}
	if fs.Parent != nil {
		m.Parent = fs.Parent.ID.String()
		m.Component = fs.ParentComponentIndex
	}
	d.send(m)
}

func (d *Debugger) flowStateDestroyed(fs *FlowState) {
	d.send(Message{Kind: MsgFlowStateDestroyed, FlowState: fs.ID.String(), Index: fs.Index})
}

func (d *Debugger) valueChanged(fs *FlowState, slot int, v value.Value) {
	d.send(Message{
		Kind:      MsgValueChanged,
		FlowState: fs.ID.String(),
		Slot:      slot,
		ValueType: v.TypeName(),
		Value:     v.ToText(),
	})
}

func (d *Debugger) componentStateChanged(fs *FlowState, ci int, st ComponentState) {
	m := Message{Kind: MsgComponentStateChanged, FlowState: fs.ID.String(), Component: ci}
	if st != nil {
		m.ValueType = fmt.Sprintf("%T", st)
	}
	d.send(m)
}

func (d *Debugger) asyncChanged(fs *FlowState, ci int, pending bool) {
	d.send(Message{Kind: MsgAsyncChanged, FlowState: fs.ID.String(), Component: ci, Pending: pending})
}

func (d *Debugger) flowError(fs *FlowState, ci int, msg string) {
	d.send(Message{Kind: MsgFlowError, FlowState: fs.ID.String(), Component: ci, Text: msg})
}

func (d *Debugger) logMessage(fs *FlowState, ci int, msg string) {
	d.send(Message{Kind: MsgLog, FlowState: fs.ID.String(), Component: ci, Text: msg})
}

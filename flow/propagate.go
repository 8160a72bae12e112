package flow

import (
	"github.com/chazu/flowvm/value"
)

// PropagateValue writes v (borrowed) into every input connected to output
// of component ci and pings the receiving components.
func (e *Engine) PropagateValue(fs *FlowState, ci, output int, v value.Value) {
	c := fs.component(ci)
	if c == nil || output < 0 || output >= len(c.Outputs) {
		return
	}
	for _, conn := range c.Outputs[output].Connections {
		slot := &fs.Values[conn.TargetInputIndex]
		changed := !value.Equal(*slot, v) || slot.Type() != v.Type()
		value.Assign(slot, v)
		if changed && e.debugger != nil {
			e.debugger.valueChanged(fs, int(conn.TargetInputIndex), v)
		}
		e.PingComponent(fs, int(conn.TargetComponentIndex))
	}
}

// PropagateValueThroughSeqout signals the sequence output of component ci.
func (e *Engine) PropagateValueThroughSeqout(fs *FlowState, ci int) {
	c := fs.component(ci)
	if c == nil {
		return
	}
	if out := c.SeqOut(); out >= 0 {
		e.PropagateValue(fs, ci, out, value.Null)
	}
}

// ExecuteWidgetAction delivers a widget action of component ci through
// output. An undefined v is sent as Null.
func (e *Engine) ExecuteWidgetAction(fs *FlowState, ci, output int, v value.Value) {
	if fs == nil || fs.freed || e.stopped {
		return
	}
	if !v.IsDefined() {
		v = value.Null
	}
	e.PropagateValue(fs, ci, output, v)
}

// SendEvent delivers ev to the OnEvent components of fs whose event code
// property matches. The receivers run on the next Tick. It returns the
// number of receivers.
func (e *Engine) SendEvent(fs *FlowState, ev *value.Event) int {
	if fs == nil || fs.freed || e.stopped || ev == nil {
		return 0
	}
	n := 0
	for ci, c := range fs.Flow.Components {
		if c.Type != ComponentTypeOnEvent {
			continue
		}
		want, ok := e.evalInt(fs, ci, 0)
		if !ok || want != ev.Code {
			continue
		}
		e.AllocateComponentState(fs, ci, &OnEventState{Event: value.MakeEvent(ev)})
		if !e.AddToQueue(fs, ci, false) {
			e.DeallocateComponentState(fs, ci)
			continue
		}
		n++
	}
	return n
}

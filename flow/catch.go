package flow

import (
	"runtime"

	"github.com/chazu/flowvm/value"
)

// CatchErrorState holds the message delivered to a CatchError component.
type CatchErrorState struct {
	Message value.Value
}

func (s *CatchErrorState) Release() { s.Message.Clear() }

// newFlowError describes a failure of component ci of fs.
func (e *Engine) newFlowError(fs *FlowState, ci int, description string) FlowError {
	fe := NewFlowError(description)
	if fs != nil {
		fe.FlowName = fs.Flow.Name
		if c := fs.component(ci); c != nil {
			fe.ComponentName = c.Name
			fe.ComponentType = c.Type
		}
	}
	if e.cfg.Diagnostics {
		// Skip newFlowError and the exported throw helper.
		if _, file, line, ok := runtime.Caller(2); ok {
			fe.File, fe.Line = file, line
		}
	}
	return fe
}

// ThrowError raises a flow error with message on behalf of component ci.
func (e *Engine) ThrowError(fs *FlowState, ci int, message string) {
	e.ThrowFlowError(fs, ci, e.newFlowError(fs, ci, message))
}

// ThrowFlowError raises fe on behalf of component ci of fs.
//
// When the component has an error output the description is propagated on
// it and the flow continues. Otherwise the flow-state chain is searched
// upwards for a CatchError component, or for a calling component with an
// error output. The action states between the failure and the catch site
// are put in error and their tasks dropped. Without a catch site the error
// is fatal: the root state is put in error, the OnFlowError hook runs and
// the script stops.
func (e *Engine) ThrowFlowError(fs *FlowState, ci int, fe FlowError) {
	if !e.throwEnabled || fs == nil || fs.freed {
		return
	}
	msg := fe.Description
	log.Debugf("flow error in %q: %s", fs.Flow.Name, fe.Message())
	if e.debugger != nil {
		e.debugger.flowError(fs, ci, fe.Message())
	}

	if c := fs.component(ci); c != nil && c.ErrorCatchOutput >= 0 {
		e.propagateMessage(fs, ci, int(c.ErrorCatchOutput), msg)
		return
	}

	for cur := fs; cur != nil; cur = cur.Parent {
		if cur.Error {
			continue
		}
		if catchIndex := findCatchError(cur); catchIndex >= 0 {
			e.abandon(fs, cur)
			if e.scheduleCatch(cur, catchIndex, msg) {
				return
			}
			break
		}
		if pc := cur.ParentComponent(); pc != nil && pc.ErrorCatchOutput >= 0 {
			e.abandon(fs, cur)
			cur.Error = true
			e.removeTasks(cur)
			e.propagateMessage(cur.Parent, cur.ParentComponentIndex, int(pc.ErrorCatchOutput), msg)
			return
		}
	}

	e.fatal(fs, ci, fe)
}

func findCatchError(fs *FlowState) int {
	for ci, c := range fs.Flow.Components {
		if c.Type == ComponentTypeCatchError {
			return ci
		}
	}
	return -1
}

// abandon puts the action states from fs up to, excluding, site in error
// and drops the tasks of their subtree.
func (e *Engine) abandon(fs, site *FlowState) {
	var top *FlowState
	for cur := fs; cur != nil && cur != site; cur = cur.Parent {
		if cur.IsAction {
			cur.Error = true
		}
		top = cur
	}
	if top != nil {
		e.removeTasks(top)
	}
}

func (e *Engine) scheduleCatch(fs *FlowState, ci int, msg string) bool {
	e.AllocateComponentState(fs, ci, &CatchErrorState{Message: value.MakeStringRef(msg, allocTag)})
	if err := e.enqueue(fs, ci, false); err != nil {
		e.DeallocateComponentState(fs, ci)
		return false
	}
	return true
}

func (e *Engine) propagateMessage(fs *FlowState, ci, output int, msg string) {
	v := value.MakeStringRef(msg, allocTag)
	e.PropagateValue(fs, ci, output, v)
	v.Release()
}

func (e *Engine) fatal(fs *FlowState, ci int, fe FlowError) {
	fs.Root().Error = true
	msg := fe.Message()
	log.Errorf("%s", msg)
	e.stats.FatalErrors++
	e.hooks.OnFlowError(fs, ci, msg)
	e.Stop()
}

// executeCatchError delivers the caught message on the value output.
func executeCatchError(e *Engine, fs *FlowState, ci int) {
	st, ok := stateOf[*CatchErrorState](e, fs, ci)
	if !ok {
		return
	}
	msg := st.Message.Retain()
	e.DeallocateComponentState(fs, ci)
	e.PropagateValue(fs, ci, catchErrorOutput, msg)
	msg.Release()
	e.PropagateValueThroughSeqout(fs, ci)
}

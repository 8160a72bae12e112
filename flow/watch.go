package flow

import (
	"slices"

	"github.com/chazu/flowvm/value"
)

// watch is a registered WatchVariable component.
type watch struct {
	fs        *FlowState
	component int
}

func (e *Engine) addWatch(fs *FlowState, ci int) {
	w := watch{fs, ci}
	if !slices.Contains(e.watches, w) {
		e.watches = append(e.watches, w)
	}
}

// removeWatches drops the entries of fs.
func (e *Engine) removeWatches(fs *FlowState) {
	e.watches = slices.DeleteFunc(e.watches, func(w watch) bool { return w.fs == fs })
}

// Watches returns the number of registered watch entries.
func (e *Engine) Watches() int { return len(e.watches) }

// visitWatches re-evaluates every watched expression and propagates the
// values that changed since the last visit.
func (e *Engine) visitWatches() {
	for _, w := range slices.Clone(e.watches) {
		if e.stopped {
			return
		}
		if w.fs.freed || w.fs.Error {
			continue
		}
		st, ok := stateOf[*WatchVariableState](e, w.fs, w.component)
		if !ok {
			continue
		}
		v, ok := e.EvalProperty(w.fs, w.component, 0)
		if !ok {
			continue
		}
		if !value.Equal(v, st.Value) {
			value.Assign(&st.Value, v)
			e.PropagateValue(w.fs, w.component, valueOutput, v)
		}
		v.Release()
	}
}

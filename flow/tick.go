package flow

import (
	"github.com/chazu/flowvm/value"
)

// Tick runs the tasks queued when it starts, within the tick budget, then
// frees unreferenced states and re-evaluates watched variables. Tasks queued
// while the tick runs, including continuous tasks re-arming themselves, wait
// for the next tick.
func (e *Engine) Tick() {
	if e.stopped {
		return
	}
	e.stats.Ticks++
	start := e.now()

	n := e.queue.len()
	for i := 0; i < n && !e.stopped; i++ {
		if e.debugger != nil && !e.debugger.canExecuteStep() {
			break
		}
		t, ok := e.queue.pop()
		if !ok {
			break
		}

		e.runTask(t)

		if e.cfg.TickBudget > 0 && e.now().Sub(start) >= e.cfg.TickBudget {
			e.stats.BudgetOverruns++
			log.Warningf("tick budget of %s exceeded, %d tasks left", e.cfg.TickBudget, e.queue.len())
			break
		}
	}

	e.sweep()
	if !e.stopped {
		e.visitWatches()
	}
}

func (e *Engine) runTask(t task) {
	fs := t.fs
	if !fs.freed && !fs.Error {
		e.executeComponent(fs, t.component)
		if !fs.freed {
			e.resetSeqInputs(fs, t.component)
		}
	}
	fs.RefCounter--
	if !fs.freed {
		e.freeUpward(fs)
	}
}

// resetSeqInputs marks the consumed sequence inputs of component ci as
// Empty.
func (e *Engine) resetSeqInputs(fs *FlowState, ci int) {
	c := fs.component(ci)
	if c == nil || c.Type == ComponentTypeOutput {
		return
	}
	for _, in := range c.Inputs {
		if !fs.Flow.ComponentInputs[in].IsSeq() {
			continue
		}
		if fs.Values[in].IsDefined() {
			value.Assign(&fs.Values[in], value.Empty)
			if e.debugger != nil {
				e.debugger.valueChanged(fs, int(in), value.Empty)
			}
		}
	}
}

// PingComponent queues component ci of fs when it is ready to run.
func (e *Engine) PingComponent(fs *FlowState, ci int) {
	if e.isReady(fs, ci) {
		e.AddToQueue(fs, ci, false)
	}
}

func (e *Engine) isReady(fs *FlowState, ci int) bool {
	c := fs.component(ci)
	if c == nil {
		return false
	}
	switch {
	case c.Type < FirstActionComponentType:
		return true
	case c.Type == ComponentTypeCatchError || c.Type == ComponentTypeOnEvent || c.Type == ComponentTypeLabelIn:
		return false
	case c.Type == ComponentTypeStart:
		pc := fs.ParentComponent()
		if pc == nil || len(pc.Inputs) == 0 {
			return true
		}
		return fs.Parent.Values[pc.Inputs[0]].IsDefined()
	}

	hasSeq, seqSet := false, false
	for _, in := range c.Inputs {
		flags := fs.Flow.ComponentInputs[in]
		v := fs.Values[in]
		switch {
		case flags.IsSeq():
			hasSeq = true
			if v.IsDefined() {
				seqSet = true
			}
		case !flags.IsOptional() && !v.IsDefined():
			return false
		}
	}
	return !hasSeq || seqSet
}

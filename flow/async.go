package flow

// StartAsyncExecution marks component ci of fs as running beyond its
// handler call. Until EndAsyncExecution, fs and its ancestors stay alive.
func (e *Engine) StartAsyncExecution(fs *FlowState, ci int) {
	if fs.freed || ci < 0 || ci >= len(fs.AsyncStates) || fs.AsyncStates[ci] {
		return
	}
	fs.AsyncStates[ci] = true
	for p := fs; p != nil; p = p.Parent {
		p.RefCounter++
	}
	if e.debugger != nil {
		e.debugger.asyncChanged(fs, ci, true)
	}
}

// EndAsyncExecution completes the asynchronous work of component ci. An
// action state left unreferenced is freed together with every ancestor
// that became unreferenced.
func (e *Engine) EndAsyncExecution(fs *FlowState, ci int) {
	if fs.freed || ci < 0 || ci >= len(fs.AsyncStates) || !fs.AsyncStates[ci] {
		return
	}
	fs.AsyncStates[ci] = false
	for p := fs; p != nil; p = p.Parent {
		p.RefCounter--
	}
	if e.debugger != nil {
		e.debugger.asyncChanged(fs, ci, false)
	}
	e.freeUpward(fs)
}

// IsAsyncPending reports whether component ci of fs runs asynchronously.
func (e *Engine) IsAsyncPending(fs *FlowState, ci int) bool {
	return ci >= 0 && ci < len(fs.AsyncStates) && fs.AsyncStates[ci]
}

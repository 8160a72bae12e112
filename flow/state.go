package flow

import (
	"slices"

	"github.com/google/uuid"

	"github.com/chazu/flowvm/asset"
	"github.com/chazu/flowvm/value"
)

// FlowState is one running instance of a flow: a shown page or an action
// call. Values holds the component inputs followed by the local variables.
type FlowState struct {
	ID        uuid.UUID
	Index     int
	FlowIndex int
	Flow      *asset.Flow

	IsAction      bool
	Error         bool
	DeletePending bool

	// RefCounter counts queued tasks and pending async components of this
	// state and its descendants.
	RefCounter int

	Parent               *FlowState
	ParentComponentIndex int
	Children             []*FlowState

	Values      []value.Value
	States      []ComponentState
	AsyncStates []bool

	ExecutingComponentIndex int
	TimelinePosition        float32

	freed bool
}

// NumInputs is the number of input slots at the front of Values.
func (fs *FlowState) NumInputs() int { return len(fs.Flow.ComponentInputs) }

// Input returns the value in input slot i (borrowed).
func (fs *FlowState) Input(i int) value.Value {
	if i < 0 || i >= fs.NumInputs() {
		return value.Undefined
	}
	return fs.Values[i]
}

// Local returns the storage of local variable i, or nil.
func (fs *FlowState) Local(i int) *value.Value {
	n := fs.NumInputs()
	if i < 0 || n+i >= len(fs.Values) {
		return nil
	}
	return &fs.Values[n+i]
}

// IsFreed reports whether the state was destroyed.
func (fs *FlowState) IsFreed() bool { return fs.freed }

// Root returns the page state at the top of the tree.
func (fs *FlowState) Root() *FlowState {
	for fs.Parent != nil {
		fs = fs.Parent
	}
	return fs
}

// ParentComponent returns the CallAction component of the parent that
// created this state, or nil for a root.
func (fs *FlowState) ParentComponent() *asset.Component {
	if fs.Parent == nil {
		return nil
	}
	return fs.Parent.Flow.Component(fs.ParentComponentIndex)
}

func (fs *FlowState) component(ci int) *asset.Component {
	return fs.Flow.Component(ci)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// InitPageFlowState creates a page state of flow flowIndex. A nil parent
// makes it a root.
func (e *Engine) InitPageFlowState(flowIndex int, parent *FlowState, parentComponentIndex int) *FlowState {
	return e.initFlowState(flowIndex, false, parent, parentComponentIndex)
}

// InitActionFlowState creates the state of an action call. Action states
// are freed as soon as nothing references them.
func (e *Engine) InitActionFlowState(flowIndex int, parent *FlowState, parentComponentIndex int) *FlowState {
	return e.initFlowState(flowIndex, true, parent, parentComponentIndex)
}

func (e *Engine) initFlowState(flowIndex int, isAction bool, parent *FlowState, parentComponentIndex int) *FlowState {
	flow := e.def.Flow(flowIndex)
	if flow == nil {
		flow = &asset.Flow{}
	}
	n := len(flow.ComponentInputs)
	fs := &FlowState{
		ID:                      uuid.New(),
		Index:                   e.nextIndex,
		FlowIndex:               flowIndex,
		Flow:                    flow,
		IsAction:                isAction,
		Parent:                  parent,
		ParentComponentIndex:    parentComponentIndex,
		Values:                  make([]value.Value, n+len(flow.LocalVariables)),
		States:                  make([]ComponentState, len(flow.Components)),
		AsyncStates:             make([]bool, len(flow.Components)),
		ExecutingComponentIndex: -1,
	}
	e.nextIndex++
	for i, l := range flow.LocalVariables {
		fs.Values[n+i] = l.Clone()
	}

	if parent != nil {
		parent.Children = append(parent.Children, fs)
	} else {
		e.roots = append(e.roots, fs)
	}
	e.stats.flowStateCreated()

	log.Debugf("flow state %d created: flow %q (action %t)", fs.Index, flow.Name, isAction)
	if e.debugger != nil {
		e.debugger.flowStateCreated(fs)
	}

	for ci := range flow.Components {
		e.PingComponent(fs, ci)
	}
	return fs
}

// CanFreeFlowState reports whether fs is an action state nothing refers
// to anymore.
func (e *Engine) CanFreeFlowState(fs *FlowState) bool {
	return fs.IsAction && fs.RefCounter == 0 && len(fs.Children) == 0
}

// DeleteFlowState marks fs for destruction at the end of the current tick.
func (e *Engine) DeleteFlowState(fs *FlowState) {
	fs.DeletePending = true
}

// FreeFlowState destroys fs and its descendants: their tasks and watch
// entries are dropped, values and component states are released and the
// state is unlinked from the tree.
func (e *Engine) FreeFlowState(fs *FlowState) {
	if fs.freed {
		return
	}
	for _, c := range slices.Clone(fs.Children) {
		e.FreeFlowState(c)
	}
	fs.freed = true

	for _, t := range e.queue.removeIf(func(t task) bool { return t.fs == fs }) {
		t.fs.RefCounter--
	}
	e.removeWatches(fs)

	// Pending async components keep the ancestors alive; drop their share.
	for _, pending := range fs.AsyncStates {
		if pending {
			for p := fs.Parent; p != nil; p = p.Parent {
				p.RefCounter--
			}
		}
	}
	clear(fs.AsyncStates)

	for ci := range fs.States {
		if fs.States[ci] != nil {
			fs.States[ci].Release()
			fs.States[ci] = nil
		}
	}
	for i := range fs.Values {
		fs.Values[i].Clear()
	}

	if fs.Parent != nil {
		fs.Parent.Children = slices.DeleteFunc(fs.Parent.Children, func(c *FlowState) bool { return c == fs })
	} else {
		e.roots = slices.DeleteFunc(e.roots, func(c *FlowState) bool { return c == fs })
	}
	if e.activePage == fs {
		e.activePage = nil
	}
	e.stats.flowStateFreed()

	log.Debugf("flow state %d freed: flow %q", fs.Index, fs.Flow.Name)
	if e.debugger != nil {
		e.debugger.flowStateDestroyed(fs)
	}
}

// freeUpward frees fs and then every ancestor that became unreferenced.
func (e *Engine) freeUpward(fs *FlowState) {
	for fs != nil && !fs.freed && e.CanFreeFlowState(fs) {
		parent := fs.Parent
		e.FreeFlowState(fs)
		fs = parent
	}
}

// sweep frees delete-pending states and unreferenced action states.
func (e *Engine) sweep() {
	for _, fs := range slices.Clone(e.roots) {
		e.sweepTree(fs)
	}
}

func (e *Engine) sweepTree(fs *FlowState) {
	for _, c := range slices.Clone(fs.Children) {
		e.sweepTree(c)
	}
	if fs.DeletePending || e.CanFreeFlowState(fs) {
		e.FreeFlowState(fs)
	}
}

// ---------------------------------------------------------------------------
// Component execution states
// ---------------------------------------------------------------------------

// ComponentState is the per-instance state of a component.
type ComponentState interface {
	// Release drops the values the state owns.
	Release()
}

// untrackedStates are component types whose state does not keep the flow
// state alive.
var untrackedStates = map[uint16]bool{
	ComponentTypeInput:         true,
	ComponentTypeLoop:          true,
	ComponentTypeCounter:       true,
	ComponentTypeWatchVariable: true,
}

func (e *Engine) tracksState(fs *FlowState, ci int) bool {
	c := fs.component(ci)
	return c != nil && !untrackedStates[c.Type]
}

// AllocateComponentState installs st as the state of component ci,
// replacing a previous one.
func (e *Engine) AllocateComponentState(fs *FlowState, ci int, st ComponentState) {
	if ci < 0 || ci >= len(fs.States) {
		return
	}
	if fs.States[ci] != nil {
		e.DeallocateComponentState(fs, ci)
	}
	fs.States[ci] = st
	if e.tracksState(fs, ci) {
		fs.RefCounter++
	}
	if e.debugger != nil {
		e.debugger.componentStateChanged(fs, ci, st)
	}
}

// DeallocateComponentState releases the state of component ci. An
// unreferenced action state is freed at the end of the tick.
func (e *Engine) DeallocateComponentState(fs *FlowState, ci int) {
	if ci < 0 || ci >= len(fs.States) || fs.States[ci] == nil {
		return
	}
	fs.States[ci].Release()
	fs.States[ci] = nil
	if e.tracksState(fs, ci) {
		fs.RefCounter--
	}
	if e.debugger != nil {
		e.debugger.componentStateChanged(fs, ci, nil)
	}
}

// GetComponentState returns the state of component ci, or nil.
func (e *Engine) GetComponentState(fs *FlowState, ci int) ComponentState {
	if ci < 0 || ci >= len(fs.States) {
		return nil
	}
	return fs.States[ci]
}

// stateOf returns the state of component ci as T.
func stateOf[T ComponentState](e *Engine, fs *FlowState, ci int) (T, bool) {
	st, ok := e.GetComponentState(fs, ci).(T)
	return st, ok
}

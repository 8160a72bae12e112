package flow

import (
	"fmt"
	"slices"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/flowvm/asset"
	"github.com/chazu/flowvm/expr"
	"github.com/chazu/flowvm/value"
)

var log = commonlog.GetLogger("flowvm.engine")

// Config sizes an Engine.
type Config struct {
	// QueueSize is the capacity of the task queue.
	QueueSize int
	// StackSize is the evaluator stack capacity.
	StackSize int
	// TickBudget bounds the wall-clock time of one Tick; 0 disables it.
	TickBudget time.Duration
	// Diagnostics records the source location of thrown flow errors.
	Diagnostics bool
}

// DefaultConfig returns the standard runtime sizes.
func DefaultConfig() Config {
	return Config{
		QueueSize:  1000,
		StackSize:  expr.DefaultStackSize,
		TickBudget: 5 * time.Millisecond,
	}
}

// Engine runs the flows of one asset.
type Engine struct {
	assets *asset.Assets
	def    *asset.FlowDefinition
	cfg    Config

	hooks   Hooks
	natives NativeVariables
	ev      *expr.Evaluator

	globals    []value.Value
	roots      []*FlowState
	activePage *FlowState
	nextIndex  int

	queue    *queue
	watches  []watch
	debugger *Debugger
	stats    Stats

	components map[uint16]ComponentFunc

	stopped      bool
	throwEnabled bool
	startTime    time.Time

	languages []string
	language  string

	restoreArrayHook func()
}

// NewEngine prepares an engine for the flows in a. Zero fields of cfg take
// their DefaultConfig values.
func NewEngine(a *asset.Assets, cfg Config) (*Engine, error) {
	if a == nil || a.Definition == nil {
		return nil, ErrNoAssets
	}
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = def.StackSize
	}
	if cfg.TickBudget < 0 {
		return nil, fmt.Errorf("flow: negative tick budget %s", cfg.TickBudget)
	}

	e := &Engine{
		assets:       a,
		def:          a.Definition,
		cfg:          cfg,
		hooks:        DefaultHooks(),
		natives:      NativeVariableMap{},
		ev:           expr.NewEvaluator(cfg.StackSize),
		queue:        newQueue(cfg.QueueSize),
		components:   builtinComponents(),
		throwEnabled: true,
		stats:        newStats(),
	}
	e.globals = make([]value.Value, len(e.def.Globals))
	for i, g := range e.def.Globals {
		e.globals[i] = g.Clone()
	}
	e.startTime = e.now()
	e.restoreArrayHook = value.SetFreeArrayHook(e.onFreeArray)

	log.Debugf("engine ready: %d flows, %d globals, queue %d", len(e.def.Flows), len(e.globals), cfg.QueueSize)
	return e, nil
}

// Close frees every flow state and releases the globals. The engine is
// stopped afterwards.
func (e *Engine) Close() {
	e.stopped = true
	for _, fs := range slices.Clone(e.roots) {
		e.FreeFlowState(fs)
	}
	for i := range e.globals {
		e.globals[i].Clear()
	}
	if e.restoreArrayHook != nil {
		e.restoreArrayHook()
		e.restoreArrayHook = nil
	}
}

// SetHooks installs host callbacks; nil fields keep their defaults.
func (e *Engine) SetHooks(h Hooks) {
	e.hooks = h.withDefaults()
}

// Hooks returns the installed callbacks.
func (e *Engine) Hooks() Hooks { return e.hooks }

// SetNativeVariables installs the native variable bridge.
func (e *Engine) SetNativeVariables(n NativeVariables) {
	if n == nil {
		n = NativeVariableMap{}
	}
	e.natives = n
}

// SetClock replaces the clock used for the tick budget, Delay and the
// date operations.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.hooks.Now = now
	e.startTime = now()
}

// SetLanguages configures the languages reported to expressions and the
// selected one.
func (e *Engine) SetLanguages(languages []string, selected string) {
	e.languages = slices.Clone(languages)
	e.language = selected
}

// Language returns the selected language.
func (e *Engine) Language() string { return e.language }

// SelectLanguage changes the selected language. It fails for a language
// not configured with SetLanguages.
func (e *Engine) SelectLanguage(lang string) error {
	if !slices.Contains(e.languages, lang) {
		return fmt.Errorf("flow: unknown language %q", lang)
	}
	e.language = lang
	return nil
}

// Evaluator returns the expression evaluator.
func (e *Engine) Evaluator() *expr.Evaluator { return e.ev }

// Definition returns the loaded flow definition.
func (e *Engine) Definition() *asset.FlowDefinition { return e.def }

// Global returns the storage of global variable i, or nil.
func (e *Engine) Global(i int) *value.Value {
	if i < 0 || i >= len(e.globals) {
		return nil
	}
	return &e.globals[i]
}

// ActionName returns the name of native action i.
func (e *Engine) ActionName(i int) string {
	if i >= 0 && i < len(e.def.ActionNames) {
		return e.def.ActionNames[i]
	}
	return fmt.Sprintf("#%d", i)
}

// Roots returns the root flow states.
func (e *Engine) Roots() []*FlowState { return slices.Clone(e.roots) }

// ActivePage returns the page flow state started last.
func (e *Engine) ActivePage() *FlowState { return e.activePage }

// StartPageFlow creates the root state of page flow index and makes it the
// active page.
func (e *Engine) StartPageFlow(index int) (*FlowState, error) {
	if e.stopped {
		return nil, ErrStopped
	}
	if e.def.Flow(index) == nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFlow, index)
	}
	fs := e.InitPageFlowState(index, nil, -1)
	e.activePage = fs
	return fs, nil
}

// ShowPage makes page flow index the active page, starting its root state
// when the page was not shown before, and asks the host to display it.
func (e *Engine) ShowPage(index int) (*FlowState, error) {
	var page *FlowState
	for _, fs := range e.roots {
		if fs.FlowIndex == index && !fs.IsAction {
			page = fs
			break
		}
	}
	if page == nil {
		var err error
		if page, err = e.StartPageFlow(index); err != nil {
			return nil, err
		}
	}
	e.activePage = page
	e.hooks.ReplacePage(index)
	return page, nil
}

// Stop halts the script. Queued tasks stay queued and are not run.
func (e *Engine) Stop() {
	if e.stopped {
		return
	}
	e.stopped = true
	log.Infof("script stopped")
	e.hooks.StopScript()
}

// IsStopped reports whether the script was stopped.
func (e *Engine) IsStopped() bool { return e.stopped }

// SetThrowEnabled switches flow error surfacing and returns the previous
// setting. While disabled, ThrowError has no effect.
func (e *Engine) SetThrowEnabled(enabled bool) bool {
	prev := e.throwEnabled
	e.throwEnabled = enabled
	return prev
}

func (e *Engine) now() time.Time { return e.hooks.Now() }

// tickMillis is the millisecond counter reported to expressions.
func (e *Engine) tickMillis() uint32 {
	return uint32(e.now().Sub(e.startTime).Milliseconds())
}

func (e *Engine) onFreeArray(arr *value.ArrayValue) {
	e.hooks.OnFreeArrayValue(arr)
}

// Package flow executes compiled flow graphs.
//
// An Engine owns the loaded asset, the global variables and a tree of
// FlowState instances: one root per shown page and one child per running
// action call. Components become ready when their inputs are satisfied and
// are queued; Tick drains the queue within a time budget, dispatching each
// task to its component handler. Handlers evaluate property expressions with
// the expr package, propagate values along connections and signal failures
// with ThrowError, which routes the message to an error output or a
// CatchError component up the flow-state chain.
//
// The engine is single-threaded. Host callbacks that complete asynchronous
// work (keyboard input, native actions) must run on the goroutine calling
// Tick.
//
// Output conventions of the built-in components: output 0 is the sequence
// output; EvalExpr, Constant, Counter, WatchVariable, CatchError and OnEvent
// deliver their value on output 1; IsTrue and Compare use output 0 for true
// and 1 for false; Loop uses output 0 for the body and 1 for done; Switch
// maps property i to output i. Input delivers its argument on output 0.
// ShowKeyboard and ShowKeypad use output 1 for the result and output 2 when
// the dialog was cancelled.
package flow

// Package expr evaluates the compiled property expressions of flow
// components.
//
// An expression is a stream of 16-bit instruction words executed against a
// fixed-capacity value stack:
//
//   - PUSH_CONSTANT, PUSH_INPUT, PUSH_LOCAL_VAR, PUSH_GLOBAL_VAR and
//     PUSH_OUTPUT push operands. Local and global pushes yield pointers to
//     the storage slot so the result can be assigned to.
//
//   - ARRAY_ELEMENT pops an index and an array and pushes an element
//     reference, or an Error value when the access is invalid.
//
//   - OPERATION pops the fixed arity of an entry in the operation table and
//     pushes its result.
//
//   - END terminates the stream. END with the destination-type bit carries
//     the storage type of an assignment target.
//
// # Errors
//
// Operation failures are Error values, never Go errors. An Error operand
// makes every operation return that error unchanged, except for the logical
// and conditional operators which only inspect the operands they need. The
// evaluator converts a final Error into an EvalError at its boundary.
//
// # Context
//
// All state an expression can read comes from the Env passed to Eval. The
// evaluator keeps no globals; nested evaluations (for example a native
// variable getter that evaluates another expression) share the stack and
// restore it on return.
package expr

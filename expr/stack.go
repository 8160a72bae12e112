package expr

import "github.com/chazu/flowvm/value"

// DefaultStackSize is the stack capacity used when none is configured.
const DefaultStackSize = 100

// Stack is a fixed-capacity value stack. Pushed values are owned by the
// stack until popped.
type Stack struct {
	items []value.Value
	sp    int
}

// NewStack creates a stack holding at most capacity values.
func NewStack(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultStackSize
	}
	return &Stack{items: make([]value.Value, capacity)}
}

// Push takes ownership of v. It returns false, releasing v, when the stack
// is full.
func (s *Stack) Push(v value.Value) bool {
	if s.sp >= len(s.items) {
		v.Release()
		return false
	}
	s.items[s.sp] = v
	s.sp++
	return true
}

// Pop transfers ownership of the top value to the caller.
func (s *Stack) Pop() (value.Value, bool) {
	if s.sp == 0 {
		return value.Undefined, false
	}
	s.sp--
	v := s.items[s.sp]
	s.items[s.sp] = value.Undefined
	return v, true
}

// Peek returns the top value without popping it (borrowed).
func (s *Stack) Peek() (value.Value, bool) {
	if s.sp == 0 {
		return value.Undefined, false
	}
	return s.items[s.sp-1], true
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int { return s.sp }

// Cap returns the stack capacity.
func (s *Stack) Cap() int { return len(s.items) }

// truncate releases every value above depth n.
func (s *Stack) truncate(n int) {
	for s.sp > n {
		s.sp--
		s.items[s.sp].Clear()
	}
}

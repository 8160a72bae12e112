package flow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoAssets        = errors.New("flow: no flow definition")
	ErrInvalidFlow     = errors.New("flow: invalid flow index")
	ErrStopped         = errors.New("flow: script stopped")
	ErrUnknownAction   = errors.New("flow: native action not available")
	ErrInvalidFlowTree = errors.New("flow: flow state does not belong to this engine")
)

// FlowError describes an unrecoverable or caught flow failure. Message
// renders it as one line for logs and the OnFlowError hook.
type FlowError struct {
	FlowName      string
	ComponentName string
	ComponentType uint16

	// Property, ArrayIndex and ActionIndex are -1 when not applicable.
	Property    int
	ArrayIndex  int
	ActionIndex int

	Description string

	// File and Line locate the failing handler in diagnostics builds.
	File string
	Line int
}

// NewFlowError returns a descriptor with no property, array or action
// index.
func NewFlowError(description string) FlowError {
	return FlowError{Property: -1, ArrayIndex: -1, ActionIndex: -1, Description: description}
}

// Message renders the descriptor.
func (fe FlowError) Message() string {
	var sb strings.Builder
	if fe.Description != "" {
		sb.WriteString(fe.Description)
	} else {
		sb.WriteString("Flow error")
	}

	var where []string
	if fe.Property >= 0 {
		where = append(where, fmt.Sprintf("property #%d", fe.Property))
	}
	if fe.ArrayIndex >= 0 {
		where = append(where, fmt.Sprintf("array index %d", fe.ArrayIndex))
	}
	if fe.ActionIndex >= 0 {
		where = append(where, fmt.Sprintf("action #%d", fe.ActionIndex))
	}
	if fe.ComponentName != "" || fe.ComponentType != 0 {
		name := fe.ComponentName
		if name == "" {
			name = ComponentTypeName(fe.ComponentType)
		}
		where = append(where, fmt.Sprintf("component %q", name))
	}
	if fe.FlowName != "" {
		where = append(where, fmt.Sprintf("flow %q", fe.FlowName))
	}
	if len(where) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(where, ", "))
		sb.WriteString(")")
	}
	if fe.File != "" {
		fmt.Fprintf(&sb, " at %s:%d", fe.File, fe.Line)
	}
	return sb.String()
}

func (fe FlowError) Error() string { return fe.Message() }

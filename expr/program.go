package expr

import (
	"fmt"

	"github.com/chazu/flowvm/value"
)

// Program assembles an instruction stream.
//
//	code := expr.NewProgram().PushLocal(0).PushConstant(1).Op(expr.OpAdd).End().Code()
type Program struct {
	code []uint16
	err  error
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{code: make([]uint16, 0, 8)}
}

func (p *Program) emit(k Kind, operand int) *Program {
	if operand < 0 || operand > operandMask {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %d out of range for %s", ErrInvalidOperand, operand, k)
		}
		return p
	}
	p.code = append(p.code, uint16(Encode(k, uint16(operand))))
	return p
}

func (p *Program) PushConstant(index int) *Program { return p.emit(KindPushConstant, index) }
func (p *Program) PushInput(index int) *Program    { return p.emit(KindPushInput, index) }
func (p *Program) PushLocal(index int) *Program    { return p.emit(KindPushLocalVar, index) }
func (p *Program) PushGlobal(index int) *Program   { return p.emit(KindPushGlobalVar, index) }
func (p *Program) PushOutput(index int) *Program   { return p.emit(KindPushOutput, index) }
func (p *Program) ArrayElement() *Program          { return p.emit(KindArrayElement, 0) }
func (p *Program) Op(op Operation) *Program        { return p.emit(KindOperation, int(op)) }
func (p *Program) End() *Program                   { return p.emit(KindEnd, 0) }

// EndWithType terminates an assignment target with its storage type.
func (p *Program) EndWithType(t value.Type) *Program {
	p.code = append(p.code, uint16(EncodeEndWithType(t)))
	return p
}

// Code returns the assembled words.
func (p *Program) Code() []uint16 {
	return append([]uint16(nil), p.code...)
}

// Err returns the first operand range error, if any.
func (p *Program) Err() error { return p.err }

// Len returns the number of words emitted so far.
func (p *Program) Len() int { return len(p.code) }

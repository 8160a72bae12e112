package expr

import (
	"fmt"
	"strings"

	"github.com/chazu/flowvm/value"
)

// Disassemble returns a listing of code, one instruction per line. When
// constants is non-nil, constant pushes are annotated with their value.
func Disassemble(code []uint16, constants []value.Value) string {
	var sb strings.Builder
	for pc, word := range code {
		sb.WriteString(fmt.Sprintf("%04d  %s\n", pc, DisassembleInstruction(Instruction(word), constants)))
	}
	return sb.String()
}

// DisassembleInstruction renders one instruction word.
func DisassembleInstruction(in Instruction, constants []value.Value) string {
	operand := in.Operand()
	switch in.Kind() {
	case KindPushConstant:
		if int(operand) < len(constants) {
			return fmt.Sprintf("PUSH_CONSTANT %d ; %s", operand, describeConstant(constants[operand]))
		}
		return fmt.Sprintf("PUSH_CONSTANT %d", operand)

	case KindPushInput, KindPushLocalVar, KindPushGlobalVar, KindPushOutput:
		return fmt.Sprintf("%s %d", in.Kind(), operand)

	case KindArrayElement:
		return "ARRAY_ELEMENT"

	case KindOperation:
		op := Operation(operand)
		info := GetOperationInfo(op)
		return fmt.Sprintf("OPERATION %d ; %s/%d", operand, info.Name, info.Arity)

	case KindEnd:
		if t, ok := in.DstType(); ok {
			return fmt.Sprintf("END ; dst=%s", t)
		}
		return "END"
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", uint16(in))
}

func describeConstant(v value.Value) string {
	text := v.ToText()
	if len(text) > 20 {
		text = text[:17] + "..."
	}
	if v.IsString() {
		return fmt.Sprintf("%s %q", v.Type(), text)
	}
	return fmt.Sprintf("%s %s", v.Type(), text)
}

// Format renders code in infix notation, for example "(local0 + 5)". It
// returns the listing form when the stream cannot be reconstructed.
func Format(code []uint16, constants []value.Value) string {
	var stack []string
	pop := func() string {
		if len(stack) == 0 {
			return "?"
		}
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return s
	}
	for _, word := range code {
		in := Instruction(word)
		operand := int(in.Operand())
		switch in.Kind() {
		case KindPushConstant:
			if operand < len(constants) {
				c := constants[operand]
				if c.IsString() {
					stack = append(stack, fmt.Sprintf("%q", c.GetString()))
				} else {
					stack = append(stack, c.ToText())
				}
			} else {
				stack = append(stack, fmt.Sprintf("const%d", operand))
			}
		case KindPushInput:
			stack = append(stack, fmt.Sprintf("input%d", operand))
		case KindPushLocalVar:
			stack = append(stack, fmt.Sprintf("local%d", operand))
		case KindPushGlobalVar:
			stack = append(stack, fmt.Sprintf("global%d", operand))
		case KindPushOutput:
			stack = append(stack, fmt.Sprintf("output%d", operand))
		case KindArrayElement:
			idx, arr := pop(), pop()
			stack = append(stack, arr+"["+idx+"]")
		case KindOperation:
			info := GetOperationInfo(Operation(operand))
			args := make([]string, info.Arity)
			for i := info.Arity - 1; i >= 0; i-- {
				args[i] = pop()
			}
			stack = append(stack, formatCall(Operation(operand), info, args))
		case KindEnd:
			if len(stack) != 1 {
				return Disassemble(code, constants)
			}
			return stack[0]
		}
	}
	return Disassemble(code, constants)
}

func formatCall(op Operation, info OperationInfo, args []string) string {
	switch {
	case op < OpUnaryPlus:
		return "(" + args[0] + " " + info.Name + " " + args[1] + ")"
	case op < OpConditional:
		return strings.TrimSuffix(info.Name, "x") + args[0]
	case op == OpConditional:
		return "(" + args[0] + " ? " + args[1] + " : " + args[2] + ")"
	}
	return info.Name + "(" + strings.Join(args, ", ") + ")"
}

package expr

import (
	"strings"
	"testing"

	"github.com/chazu/flowvm/value"
)

func TestOperationTableComplete(t *testing.T) {
	if OperationCount() != 99 {
		t.Fatalf("OperationCount() = %d, want 99", OperationCount())
	}
	seen := make(map[string]Operation)
	for _, op := range AllOperations() {
		entry := operations[op]
		if entry.Name == "" {
			t.Errorf("operation %d has no name", op)
		}
		if entry.fn == nil {
			t.Errorf("operation %s has no implementation", entry.Name)
		}
		if prev, dup := seen[entry.Name]; dup {
			t.Errorf("name %q used by %d and %d", entry.Name, prev, op)
		}
		seen[entry.Name] = op
	}
}

func TestOperationNumbering(t *testing.T) {
	tests := []struct {
		op   Operation
		want uint16
		name string
	}{
		{OpAdd, 0, "+"},
		{OpLogicalOr, 17, "||"},
		{OpConditional, 22, "?:"},
		{OpSystemGetTick, 23, "System.getTick"},
		{OpDateNow, 35, "Date.now"},
		{OpMathSin, 47, "Math.sin"},
		{OpStringLength, 59, "String.length"},
		{OpArrayLength, 74, "Array.length"},
		{OpBlobAllocate, 83, "Blob.allocate"},
		{OpJSONGet, 85, "JSON.get"},
		{OpCryptoSha256, 91, "Crypto.sha256"},
		{OpEventGetRotationAngle, 98, "Event.getRotationAngle"},
	}
	for _, tt := range tests {
		if uint16(tt.op) != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.op, tt.want)
		}
		if tt.op.String() != tt.name {
			t.Errorf("Operation(%d).String() = %q, want %q", tt.want, tt.op.String(), tt.name)
		}
	}
}

func TestLazyOperations(t *testing.T) {
	for _, op := range AllOperations() {
		lazy := op == OpLogicalAnd || op == OpLogicalOr || op == OpConditional
		if GetOperationInfo(op).Lazy != lazy {
			t.Errorf("%s Lazy = %v, want %v", op, !lazy, lazy)
		}
	}
}

func TestUnknownOperation(t *testing.T) {
	info := GetOperationInfo(Operation(500))
	if info.Name != "UNKNOWN(500)" {
		t.Errorf("Name = %q, want %q", info.Name, "UNKNOWN(500)")
	}
	if Operation(500).Valid() {
		t.Error("Operation(500).Valid() = true")
	}
}

func TestOperationByName(t *testing.T) {
	op, ok := OperationByName("String.find")
	if !ok || op != OpStringFind {
		t.Errorf("OperationByName(String.find) = %v, %v", op, ok)
	}
	if _, ok := OperationByName("String.nope"); ok {
		t.Error("OperationByName(String.nope) succeeded")
	}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func TestEncodeRoundTrip(t *testing.T) {
	for k := KindPushConstant; k <= KindEnd; k++ {
		for _, operand := range []uint16{0, 1, 42, operandMask} {
			in := Encode(k, operand)
			if in.Kind() != k || in.Operand() != operand {
				t.Errorf("Encode(%s, %d) decodes to %s, %d", k, operand, in.Kind(), in.Operand())
			}
		}
	}
}

func TestEncodeTruncatesOperand(t *testing.T) {
	in := Encode(KindPushInput, 0xFFFF)
	if in.Kind() != KindPushInput || in.Operand() != operandMask {
		t.Errorf("Encode(0xFFFF) = %s %d", in.Kind(), in.Operand())
	}
}

func TestEndDstType(t *testing.T) {
	if _, ok := Encode(KindEnd, 0).DstType(); ok {
		t.Error("plain END reports a destination type")
	}
	in := EncodeEndWithType(value.TypeUint8)
	dt, ok := in.DstType()
	if !ok || dt != value.TypeUint8 {
		t.Errorf("DstType() = %v, %v, want %v, true", dt, ok, value.TypeUint8)
	}
	if in.Kind() != KindEnd {
		t.Errorf("Kind() = %s, want END", in.Kind())
	}
	if _, ok := Encode(KindPushConstant, 1<<12).DstType(); ok {
		t.Error("non-END word reports a destination type")
	}
}

func TestKindString(t *testing.T) {
	if KindArrayElement.String() != "ARRAY_ELEMENT" {
		t.Errorf("KindArrayElement = %q", KindArrayElement.String())
	}
	if !strings.HasPrefix(Kind(9).String(), "KIND(") {
		t.Errorf("Kind(9) = %q", Kind(9).String())
	}
}

// ---------------------------------------------------------------------------
// Program and disassembly
// ---------------------------------------------------------------------------

func TestProgramRangeError(t *testing.T) {
	p := NewProgram().PushConstant(1 << 13).End()
	if p.Err() == nil {
		t.Fatal("Err() = nil for out of range operand")
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestDisassemble(t *testing.T) {
	consts := []value.Value{value.FromInt32(5), value.FromString("hi")}
	code := NewProgram().
		PushLocal(0).
		PushConstant(0).
		Op(OpAdd).
		PushConstant(1).
		Op(OpStringLength).
		Op(OpMul).
		EndWithType(value.TypeInt32).
		Code()

	out := Disassemble(code, consts)
	for _, want := range []string{
		"0000  PUSH_LOCAL_VAR 0",
		"0001  PUSH_CONSTANT 0 ; int32 5",
		"OPERATION 0 ; +/2",
		`PUSH_CONSTANT 1 ; string "hi"`,
		"String.length/1",
		"END ; dst=int32",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "\n"); n != len(code) {
		t.Errorf("listing has %d lines, want %d", n, len(code))
	}
}

func TestFormat(t *testing.T) {
	consts := []value.Value{value.FromInt32(5), value.FromString("x")}
	tests := []struct {
		code []uint16
		want string
	}{
		{NewProgram().PushLocal(0).PushConstant(0).Op(OpAdd).End().Code(), "(local0 + 5)"},
		{NewProgram().PushInput(1).Op(OpUnaryMinus).End().Code(), "-input1"},
		{NewProgram().PushGlobal(2).PushConstant(0).ArrayElement().End().Code(), "global2[5]"},
		{NewProgram().PushConstant(1).PushConstant(1).Op(OpStringFind).End().Code(), `String.find("x", "x")`},
		{NewProgram().PushInput(0).PushConstant(0).PushConstant(1).Op(OpConditional).End().Code(), `(input0 ? 5 : "x")`},
	}
	for _, tt := range tests {
		if got := Format(tt.code, consts); got != tt.want {
			t.Errorf("Format() = %q, want %q", got, tt.want)
		}
	}
}

package expr

import (
	"fmt"

	"github.com/chazu/flowvm/value"
)

// Kind is the instruction class stored in the top three bits of each
// instruction word.
type Kind uint16

const (
	KindPushConstant  Kind = 0 // Push constant: operand is the constant index
	KindPushInput     Kind = 1 // Push input value: operand is the input index
	KindPushLocalVar  Kind = 2 // Push local variable slot
	KindPushGlobalVar Kind = 3 // Push global (or native, past the globals) slot
	KindPushOutput    Kind = 4 // Push output reference of the component
	KindArrayElement  Kind = 5 // Pop index, array; push element reference
	KindOperation     Kind = 6 // Call operation: operand is the Operation
	KindEnd           Kind = 7 // End of expression
)

const (
	kindShift   = 13
	operandMask = 1<<kindShift - 1

	// endWithDstType marks an END word whose low bits carry a value.Type.
	endWithDstType = 1 << 12
	dstTypeMask    = endWithDstType - 1
)

var kindNames = [...]string{
	KindPushConstant:  "PUSH_CONSTANT",
	KindPushInput:     "PUSH_INPUT",
	KindPushLocalVar:  "PUSH_LOCAL_VAR",
	KindPushGlobalVar: "PUSH_GLOBAL_VAR",
	KindPushOutput:    "PUSH_OUTPUT",
	KindArrayElement:  "ARRAY_ELEMENT",
	KindOperation:     "OPERATION",
	KindEnd:           "END",
}

// String returns the instruction class name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("KIND(%d)", uint16(k))
}

// Instruction is one encoded instruction word.
type Instruction uint16

// Encode builds an instruction word. Operands wider than 13 bits are
// truncated.
func Encode(k Kind, operand uint16) Instruction {
	return Instruction(uint16(k)<<kindShift | operand&operandMask)
}

// EncodeEndWithType builds an END word carrying a destination type hint.
func EncodeEndWithType(t value.Type) Instruction {
	return Instruction(uint16(KindEnd)<<kindShift | endWithDstType | uint16(t)&dstTypeMask)
}

// Kind returns the instruction class.
func (in Instruction) Kind() Kind { return Kind(in >> kindShift) }

// Operand returns the 13-bit operand.
func (in Instruction) Operand() uint16 { return uint16(in) & operandMask }

// DstType returns the destination type hint of an END word.
func (in Instruction) DstType() (value.Type, bool) {
	if in.Kind() != KindEnd || in.Operand()&endWithDstType == 0 {
		return value.TypeUndefined, false
	}
	return value.Type(in.Operand() & dstTypeMask), true
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Operation identifies an entry in the operation table. The numbering is
// part of the compiled asset format.
type Operation uint16

const (
	// Binary operators
	OpAdd Operation = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpLogicalAnd
	OpLogicalOr

	// Unary operators
	OpUnaryPlus
	OpUnaryMinus
	OpBitNot
	OpNot

	// Ternary
	OpConditional

	// System and flow
	OpSystemGetTick
	OpFlowIndex
	OpFlowIsPageActive
	OpFlowPageTimelinePosition
	OpFlowMakeArrayValue
	OpFlowLanguages
	OpFlowTranslate
	OpFlowParseInteger
	OpFlowParseFloat
	OpFlowParseDouble
	OpFlowToInteger
	OpFlowGetBitmapIndex

	// Date
	OpDateNow
	OpDateToString
	OpDateToLocaleString
	OpDateFromString
	OpDateGetYear
	OpDateGetMonth
	OpDateGetDay
	OpDateGetHours
	OpDateGetMinutes
	OpDateGetSeconds
	OpDateGetMilliseconds
	OpDateMake

	// Math
	OpMathSin
	OpMathCos
	OpMathPow
	OpMathLog
	OpMathLog10
	OpMathAbs
	OpMathFloor
	OpMathCeil
	OpMathRound
	OpMathMin
	OpMathMax
	OpMathRandom

	// String
	OpStringLength
	OpStringSubstring
	OpStringFind
	OpStringPadStart
	OpStringSplit
	OpStringFromCodePoint
	OpStringCodePointAt
	OpStringToUpperCase
	OpStringToLowerCase
	OpStringTrim
	OpStringStartsWith
	OpStringEndsWith
	OpStringIncludes
	OpStringFormat
	OpStringFormatPrefix

	// Array
	OpArrayLength
	OpArraySlice
	OpArrayAllocate
	OpArrayAppend
	OpArrayInsert
	OpArrayRemove
	OpArrayClone
	OpArrayIndexOf
	OpArrayJoin

	// Blob
	OpBlobAllocate
	OpBlobToString

	// JSON
	OpJSONGet
	OpJSONSet
	OpJSONClone
	OpJSONParse
	OpJSONStringify
	OpJSONArrayLength

	// Crypto
	OpCryptoSha256

	// Event
	OpEventGetCode
	OpEventGetCurrentTarget
	OpEventGetTarget
	OpEventGetUserData
	OpEventGetKey
	OpEventGetGestureCode
	OpEventGetRotationAngle

	operationCount
)

// OperationInfo describes an operation for evaluation and disassembly.
type OperationInfo struct {
	Name  string // Name as written in expressions
	Arity int    // Number of operands popped

	// Lazy operations receive Error operands instead of short-circuiting
	// on them.
	Lazy bool
}

type opFunc func(ev *Evaluator, args []value.Value) value.Value

type operation struct {
	OperationInfo
	fn opFunc
}

// operations is indexed by Operation.
var operations = [operationCount]operation{
	OpAdd:        {OperationInfo{"+", 2, false}, opAdd},
	OpSub:        {OperationInfo{"-", 2, false}, opSub},
	OpMul:        {OperationInfo{"*", 2, false}, opMul},
	OpDiv:        {OperationInfo{"/", 2, false}, opDiv},
	OpMod:        {OperationInfo{"%", 2, false}, opMod},
	OpShl:        {OperationInfo{"<<", 2, false}, opShl},
	OpShr:        {OperationInfo{">>", 2, false}, opShr},
	OpBitAnd:     {OperationInfo{"&", 2, false}, opBitAnd},
	OpBitOr:      {OperationInfo{"|", 2, false}, opBitOr},
	OpBitXor:     {OperationInfo{"^", 2, false}, opBitXor},
	OpEq:         {OperationInfo{"==", 2, false}, opEq},
	OpNe:         {OperationInfo{"!=", 2, false}, opNe},
	OpLt:         {OperationInfo{"<", 2, false}, opLt},
	OpGt:         {OperationInfo{">", 2, false}, opGt},
	OpLe:         {OperationInfo{"<=", 2, false}, opLe},
	OpGe:         {OperationInfo{">=", 2, false}, opGe},
	OpLogicalAnd: {OperationInfo{"&&", 2, true}, opLogicalAnd},
	OpLogicalOr:  {OperationInfo{"||", 2, true}, opLogicalOr},

	OpUnaryPlus:  {OperationInfo{"+x", 1, false}, opUnaryPlus},
	OpUnaryMinus: {OperationInfo{"-x", 1, false}, opUnaryMinus},
	OpBitNot:     {OperationInfo{"~", 1, false}, opBitNot},
	OpNot:        {OperationInfo{"!", 1, false}, opNot},

	OpConditional: {OperationInfo{"?:", 3, true}, opConditional},

	OpSystemGetTick:            {OperationInfo{"System.getTick", 0, false}, opSystemGetTick},
	OpFlowIndex:                {OperationInfo{"Flow.index", 1, false}, opFlowIndex},
	OpFlowIsPageActive:         {OperationInfo{"Flow.isPageActive", 0, false}, opFlowIsPageActive},
	OpFlowPageTimelinePosition: {OperationInfo{"Flow.pageTimelinePosition", 0, false}, opFlowPageTimelinePosition},
	OpFlowMakeArrayValue:       {OperationInfo{"Flow.makeArrayValue", 2, false}, opFlowMakeArrayValue},
	OpFlowLanguages:            {OperationInfo{"Flow.languages", 0, false}, opFlowLanguages},
	OpFlowTranslate:            {OperationInfo{"Flow.translate", 1, false}, opFlowTranslate},
	OpFlowParseInteger:         {OperationInfo{"Flow.parseInteger", 1, false}, opFlowParseInteger},
	OpFlowParseFloat:           {OperationInfo{"Flow.parseFloat", 1, false}, opFlowParseFloat},
	OpFlowParseDouble:          {OperationInfo{"Flow.parseDouble", 1, false}, opFlowParseDouble},
	OpFlowToInteger:            {OperationInfo{"Flow.toInteger", 1, false}, opFlowToInteger},
	OpFlowGetBitmapIndex:       {OperationInfo{"Flow.getBitmapIndex", 1, false}, opFlowGetBitmapIndex},

	OpDateNow:             {OperationInfo{"Date.now", 0, false}, opDateNow},
	OpDateToString:        {OperationInfo{"Date.toString", 1, false}, opDateToString},
	OpDateToLocaleString:  {OperationInfo{"Date.toLocaleString", 3, false}, opDateToLocaleString},
	OpDateFromString:      {OperationInfo{"Date.fromString", 1, false}, opDateFromString},
	OpDateGetYear:         {OperationInfo{"Date.getYear", 1, false}, opDateGetYear},
	OpDateGetMonth:        {OperationInfo{"Date.getMonth", 1, false}, opDateGetMonth},
	OpDateGetDay:          {OperationInfo{"Date.getDay", 1, false}, opDateGetDay},
	OpDateGetHours:        {OperationInfo{"Date.getHours", 1, false}, opDateGetHours},
	OpDateGetMinutes:      {OperationInfo{"Date.getMinutes", 1, false}, opDateGetMinutes},
	OpDateGetSeconds:      {OperationInfo{"Date.getSeconds", 1, false}, opDateGetSeconds},
	OpDateGetMilliseconds: {OperationInfo{"Date.getMilliseconds", 1, false}, opDateGetMilliseconds},
	OpDateMake:            {OperationInfo{"Date.make", 7, false}, opDateMake},

	OpMathSin:    {OperationInfo{"Math.sin", 1, false}, opMathSin},
	OpMathCos:    {OperationInfo{"Math.cos", 1, false}, opMathCos},
	OpMathPow:    {OperationInfo{"Math.pow", 2, false}, opMathPow},
	OpMathLog:    {OperationInfo{"Math.log", 1, false}, opMathLog},
	OpMathLog10:  {OperationInfo{"Math.log10", 1, false}, opMathLog10},
	OpMathAbs:    {OperationInfo{"Math.abs", 1, false}, opMathAbs},
	OpMathFloor:  {OperationInfo{"Math.floor", 1, false}, opMathFloor},
	OpMathCeil:   {OperationInfo{"Math.ceil", 1, false}, opMathCeil},
	OpMathRound:  {OperationInfo{"Math.round", 1, false}, opMathRound},
	OpMathMin:    {OperationInfo{"Math.min", 2, false}, opMathMin},
	OpMathMax:    {OperationInfo{"Math.max", 2, false}, opMathMax},
	OpMathRandom: {OperationInfo{"Math.random", 0, false}, opMathRandom},

	OpStringLength:        {OperationInfo{"String.length", 1, false}, opStringLength},
	OpStringSubstring:     {OperationInfo{"String.substring", 3, false}, opStringSubstring},
	OpStringFind:          {OperationInfo{"String.find", 2, false}, opStringFind},
	OpStringPadStart:      {OperationInfo{"String.padStart", 3, false}, opStringPadStart},
	OpStringSplit:         {OperationInfo{"String.split", 2, false}, opStringSplit},
	OpStringFromCodePoint: {OperationInfo{"String.fromCodePoint", 1, false}, opStringFromCodePoint},
	OpStringCodePointAt:   {OperationInfo{"String.codePointAt", 2, false}, opStringCodePointAt},
	OpStringToUpperCase:   {OperationInfo{"String.toUpperCase", 1, false}, opStringToUpperCase},
	OpStringToLowerCase:   {OperationInfo{"String.toLowerCase", 1, false}, opStringToLowerCase},
	OpStringTrim:          {OperationInfo{"String.trim", 1, false}, opStringTrim},
	OpStringStartsWith:    {OperationInfo{"String.startsWith", 2, false}, opStringStartsWith},
	OpStringEndsWith:      {OperationInfo{"String.endsWith", 2, false}, opStringEndsWith},
	OpStringIncludes:      {OperationInfo{"String.includes", 2, false}, opStringIncludes},
	OpStringFormat:        {OperationInfo{"String.format", 2, false}, opStringFormat},
	OpStringFormatPrefix:  {OperationInfo{"String.formatPrefix", 2, false}, opStringFormatPrefix},

	OpArrayLength:   {OperationInfo{"Array.length", 1, false}, opArrayLength},
	OpArraySlice:    {OperationInfo{"Array.slice", 3, false}, opArraySlice},
	OpArrayAllocate: {OperationInfo{"Array.allocate", 1, false}, opArrayAllocate},
	OpArrayAppend:   {OperationInfo{"Array.append", 2, false}, opArrayAppend},
	OpArrayInsert:   {OperationInfo{"Array.insert", 3, false}, opArrayInsert},
	OpArrayRemove:   {OperationInfo{"Array.remove", 2, false}, opArrayRemove},
	OpArrayClone:    {OperationInfo{"Array.clone", 1, false}, opArrayClone},
	OpArrayIndexOf:  {OperationInfo{"Array.indexOf", 2, false}, opArrayIndexOf},
	OpArrayJoin:     {OperationInfo{"Array.join", 2, false}, opArrayJoin},

	OpBlobAllocate: {OperationInfo{"Blob.allocate", 1, false}, opBlobAllocate},
	OpBlobToString: {OperationInfo{"Blob.toString", 1, false}, opBlobToString},

	OpJSONGet:         {OperationInfo{"JSON.get", 2, false}, opJSONGet},
	OpJSONSet:         {OperationInfo{"JSON.set", 3, false}, opJSONSet},
	OpJSONClone:       {OperationInfo{"JSON.clone", 1, false}, opJSONClone},
	OpJSONParse:       {OperationInfo{"JSON.parse", 1, false}, opJSONParse},
	OpJSONStringify:   {OperationInfo{"JSON.stringify", 1, false}, opJSONStringify},
	OpJSONArrayLength: {OperationInfo{"JSON.arrayLength", 1, false}, opJSONArrayLength},

	OpCryptoSha256: {OperationInfo{"Crypto.sha256", 1, false}, opCryptoSha256},

	OpEventGetCode:          {OperationInfo{"Event.getCode", 1, false}, opEventGetCode},
	OpEventGetCurrentTarget: {OperationInfo{"Event.getCurrentTarget", 1, false}, opEventGetCurrentTarget},
	OpEventGetTarget:        {OperationInfo{"Event.getTarget", 1, false}, opEventGetTarget},
	OpEventGetUserData:      {OperationInfo{"Event.getUserData", 1, false}, opEventGetUserData},
	OpEventGetKey:           {OperationInfo{"Event.getKey", 1, false}, opEventGetKey},
	OpEventGetGestureCode:   {OperationInfo{"Event.getGestureCode", 1, false}, opEventGetGestureCode},
	OpEventGetRotationAngle: {OperationInfo{"Event.getRotationAngle", 1, false}, opEventGetRotationAngle},
}

// GetOperationInfo returns metadata for an operation. Unknown operations get
// a name of the form "UNKNOWN(n)".
func GetOperationInfo(op Operation) OperationInfo {
	if op < operationCount {
		return operations[op].OperationInfo
	}
	return OperationInfo{Name: fmt.Sprintf("UNKNOWN(%d)", uint16(op))}
}

// String returns the operation name.
func (op Operation) String() string {
	return GetOperationInfo(op).Name
}

// Valid reports whether op is in the table.
func (op Operation) Valid() bool {
	return op < operationCount
}

// OperationByName finds an operation by its expression name.
func OperationByName(name string) (Operation, bool) {
	for op := Operation(0); op < operationCount; op++ {
		if operations[op].Name == name {
			return op, true
		}
	}
	return 0, false
}

// AllOperations returns every defined operation.
func AllOperations() []Operation {
	ops := make([]Operation, operationCount)
	for i := range ops {
		ops[i] = Operation(i)
	}
	return ops
}

// OperationCount returns the number of defined operations.
func OperationCount() int {
	return int(operationCount)
}

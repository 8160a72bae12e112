package value

import (
	"math"
)

// Value is a small, copyable, self-describing cell used everywhere in the
// flow runtime.
//
// A Value is a tagged union: the type tag selects how the payload is read.
// Scalars live inline in bits; strings, arrays, blobs and indirections keep a
// pointer in ptr. When the OptRef option is set the Value owns one reference
// to a heap cell (see refs.go): copies that outlive the original must be made
// with Retain, and every owned copy is dropped with Release.
type Value struct {
	typ     Type
	unit    Unit
	options Options
	bits    uint64
	ptr     any
}

// Options carries per-value flags.
type Options uint16

const (
	// OptRef marks a value that owns a reference to a heap cell.
	OptRef Options = 1 << 0

	// OptEmpty marks the "cleared this tick" sentinel written into consumed
	// sequence inputs. It is still of type Undefined.
	OptEmpty Options = 1 << 1

	// OptFixedDecimals requests a fixed number of decimals when formatting.
	// The count lives in the top four bits (see WithDecimals).
	OptFixedDecimals Options = 1 << 2

	decimalsShift        = 12
	decimalsMask Options = 0xF << decimalsShift
)

// Pre-defined values
var (
	Undefined = Value{typ: TypeUndefined}
	Null      = Value{typ: TypeNull}
	True      = Value{typ: TypeBoolean, bits: 1}
	False     = Value{typ: TypeBoolean, bits: 0}

	// Empty is the sentinel written into a sequence input after its
	// component ran. It is distinguishable from a never-set input.
	Empty = Value{typ: TypeUndefined, options: OptEmpty}
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// FromBool creates a boolean value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

func FromInt8(n int8) Value     { return Value{typ: TypeInt8, bits: uint64(int64(n))} }
func FromUint8(n uint8) Value   { return Value{typ: TypeUint8, bits: uint64(n)} }
func FromInt16(n int16) Value   { return Value{typ: TypeInt16, bits: uint64(int64(n))} }
func FromUint16(n uint16) Value { return Value{typ: TypeUint16, bits: uint64(n)} }
func FromInt32(n int32) Value   { return Value{typ: TypeInt32, bits: uint64(int64(n))} }
func FromUint32(n uint32) Value { return Value{typ: TypeUint32, bits: uint64(n)} }
func FromInt64(n int64) Value   { return Value{typ: TypeInt64, bits: uint64(n)} }
func FromUint64(n uint64) Value { return Value{typ: TypeUint64, bits: n} }

// FromFloat creates a single precision value.
func FromFloat(f float32) Value {
	return Value{typ: TypeFloat, bits: uint64(math.Float32bits(f))}
}

// FromDouble creates a double precision value.
func FromDouble(f float64) Value {
	return Value{typ: TypeDouble, bits: math.Float64bits(f)}
}

// FromString creates a non-owning string value. Use MakeStringRef for
// strings built at runtime.
func FromString(s string) Value {
	return Value{typ: TypeString, ptr: s}
}

// FromArray wraps an array that is owned elsewhere (for example an asset
// constant). The value does not keep it alive.
func FromArray(a *ArrayValue) Value {
	return Value{typ: TypeArray, ptr: a}
}

// MakeError creates an evaluation error value carrying msg.
func MakeError(msg string) Value {
	return Value{typ: TypeError, ptr: msg}
}

// MakeValuePtr creates an indirection to a storage slot.
func MakeValuePtr(p *Value) Value {
	return Value{typ: TypeValuePtr, ptr: p}
}

// MakeNativeVariable creates a reference to a host-owned variable.
func MakeNativeVariable(id int32) Value {
	return Value{typ: TypeNativeVariable, bits: uint64(int64(id))}
}

// MakeFlowOutput names output index of the evaluating component.
func MakeFlowOutput(index uint16) Value {
	return Value{typ: TypeFlowOutput, bits: uint64(index)}
}

// MakeDate creates a date value from milliseconds since the Unix epoch.
func MakeDate(ms int64) Value {
	return Value{typ: TypeDate, bits: uint64(ms)}
}

// MakeEnum creates an enum value of the given definition.
func MakeEnum(definition, v uint16) Value {
	return Value{typ: TypeEnum, bits: uint64(definition)<<16 | uint64(v)}
}

// MakeRange creates an integer range [from, to).
func MakeRange(from, to uint16) Value {
	return Value{typ: TypeRange, bits: uint64(to)<<16 | uint64(from)}
}

// MakePointer wraps an opaque host pointer.
func MakePointer(p any) Value {
	return Value{typ: TypePointer, ptr: p}
}

// MakeWidget wraps an opaque host widget handle.
func MakeWidget(w any) Value {
	return Value{typ: TypeWidget, ptr: w}
}

// MakeEvent wraps a widget event description.
func MakeEvent(e *Event) Value {
	return Value{typ: TypeEvent, ptr: e}
}

// MakeStream wraps a host stream handle.
func MakeStream(handle int32) Value {
	return Value{typ: TypeStream, bits: uint64(int64(handle))}
}

// FromRaw rebuilds a scalar value from its type tag and payload bits, as
// stored in compiled assets.
func FromRaw(t Type, unit Unit, options Options, bits uint64) Value {
	return Value{typ: t, unit: unit, options: options &^ OptRef, bits: bits}
}

// WithUnit returns v tagged with unit u.
func (v Value) WithUnit(u Unit) Value {
	v.unit = u
	return v
}

// WithDecimals returns v formatted with a fixed number of decimals.
func (v Value) WithDecimals(n int) Value {
	if n < 0 {
		n = 0
	}
	if n > 15 {
		n = 15
	}
	v.options = v.options&^decimalsMask | OptFixedDecimals | Options(n)<<decimalsShift
	return v
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (v Value) Type() Type         { return v.typ }
func (v Value) Unit() Unit         { return v.unit }
func (v Value) Options() Options   { return v.options }
func (v Value) Bits() uint64       { return v.bits }
func (v Value) IsRef() bool        { return v.options&OptRef != 0 }
func (v Value) IsUndefined() bool  { return v.typ == TypeUndefined }
func (v Value) IsEmpty() bool      { return v.typ == TypeUndefined && v.options&OptEmpty != 0 }
func (v Value) IsDefined() bool    { return v.typ != TypeUndefined }
func (v Value) IsNull() bool       { return v.typ == TypeNull }
func (v Value) IsError() bool      { return v.typ == TypeError }
func (v Value) IsBoolean() bool    { return v.typ == TypeBoolean }
func (v Value) IsFloat() bool      { return v.typ == TypeFloat }
func (v Value) IsDouble() bool     { return v.typ == TypeDouble }
func (v Value) IsDate() bool       { return v.typ == TypeDate }
func (v Value) IsJSON() bool       { return v.typ == TypeJSON }
func (v Value) IsEvent() bool      { return v.typ == TypeEvent }
func (v Value) IsValuePtr() bool   { return v.typ == TypeValuePtr }
func (v Value) IsFlowOutput() bool { return v.typ == TypeFlowOutput }

// IsUndefinedOrNull reports whether v carries no value.
func (v Value) IsUndefinedOrNull() bool {
	return v.typ == TypeUndefined || v.typ == TypeNull
}

// IsString reports whether v is a string of either ownership kind.
func (v Value) IsString() bool {
	return v.typ == TypeString || v.typ == TypeStringRef
}

// IsArray reports whether v is an array of either ownership kind.
func (v Value) IsArray() bool {
	return v.typ == TypeArray || v.typ == TypeArrayRef
}

// IsBlob reports whether v is a blob.
func (v Value) IsBlob() bool {
	return v.typ == TypeBlobRef
}

// IsInt32OrLess reports whether v is an integer of at most 32 bits.
func (v Value) IsInt32OrLess() bool {
	return v.typ >= TypeInt8 && v.typ <= TypeUint32
}

// IsInt64 reports whether v is a 64-bit integer.
func (v Value) IsInt64() bool {
	return v.typ == TypeInt64 || v.typ == TypeUint64
}

// IsInteger reports whether v is an integer of any width.
func (v Value) IsInteger() bool {
	return v.typ >= TypeInt8 && v.typ <= TypeUint64
}

// IsNumber reports whether v is any numeric type.
func (v Value) IsNumber() bool {
	return v.typ >= TypeInt8 && v.typ <= TypeDouble
}

// IsIndirect reports whether v refers to another storage location.
func (v Value) IsIndirect() bool {
	switch v.typ {
	case TypeValuePtr, TypeNativeVariable, TypeFlowOutput,
		TypeArrayElementValue, TypeJSONMemberValue, TypePropertyRef:
		return true
	}
	return false
}

// IsAssignable reports whether v can be the target of an assignment.
func (v Value) IsAssignable() bool {
	switch v.typ {
	case TypeValuePtr, TypeNativeVariable, TypeFlowOutput,
		TypeArrayElementValue, TypeJSONMemberValue:
		return true
	}
	return false
}

// Raw payload accessors. They reinterpret the payload without conversion;
// use the To* methods for coercion.

func (v Value) Bool() bool       { return v.bits != 0 }
func (v Value) Int8() int8       { return int8(v.bits) }
func (v Value) Uint8() uint8     { return uint8(v.bits) }
func (v Value) Int16() int16     { return int16(v.bits) }
func (v Value) Uint16() uint16   { return uint16(v.bits) }
func (v Value) Int32() int32     { return int32(v.bits) }
func (v Value) Uint32() uint32   { return uint32(v.bits) }
func (v Value) Int64() int64     { return int64(v.bits) }
func (v Value) Uint64() uint64   { return v.bits }
func (v Value) Float() float32   { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Double() float64  { return math.Float64frombits(v.bits) }
func (v Value) DateMillis() int64 { return int64(v.bits) }

// NativeVariableID returns the host identifier of a native variable.
func (v Value) NativeVariableID() int32 { return int32(v.bits) }

// OutputIndex returns the output addressed by a FlowOutput value.
func (v Value) OutputIndex() uint16 { return uint16(v.bits) }

// EnumParts returns the enum definition and value.
func (v Value) EnumParts() (definition, value uint16) {
	return uint16(v.bits >> 16), uint16(v.bits)
}

// RangeParts returns the range bounds.
func (v Value) RangeParts() (from, to uint16) {
	return uint16(v.bits), uint16(v.bits >> 16)
}

// StreamHandle returns the host stream handle.
func (v Value) StreamHandle() int32 { return int32(v.bits) }

// Pointer returns the opaque payload of Pointer and Widget values.
func (v Value) Pointer() any {
	if v.typ == TypePointer || v.typ == TypeWidget {
		return v.ptr
	}
	return nil
}

// ValuePtr returns the storage slot a ValuePtr refers to.
func (v Value) ValuePtr() *Value {
	if p, ok := v.ptr.(*Value); ok && v.typ == TypeValuePtr {
		return p
	}
	return nil
}

// Event returns the event payload.
func (v Value) Event() *Event {
	if e, ok := v.ptr.(*Event); ok {
		return e
	}
	return nil
}

// ErrorMessage returns the message of an Error value.
func (v Value) ErrorMessage() string {
	if v.typ != TypeError {
		return ""
	}
	s, _ := v.ptr.(string)
	return s
}

// GetString returns the text of a string value, or "" for other types.
func (v Value) GetString() string {
	switch v.typ {
	case TypeString:
		s, _ := v.ptr.(string)
		return s
	case TypeStringRef:
		return string(v.ptr.(*StringRef).buf)
	}
	return ""
}

// GetArray returns the array behind v, or nil.
func (v Value) GetArray() *ArrayValue {
	switch v.typ {
	case TypeArray:
		a, _ := v.ptr.(*ArrayValue)
		return a
	case TypeArrayRef:
		return &v.ptr.(*ArrayValueRef).arr
	}
	return nil
}

// GetBlob returns the bytes of a blob, or nil.
func (v Value) GetBlob() []byte {
	if v.typ == TypeBlobRef {
		return v.ptr.(*BlobRef).buf
	}
	return nil
}

// ---------------------------------------------------------------------------
// ArrayValue
// ---------------------------------------------------------------------------

// ArrayType discriminates plain arrays from named object schemas.
type ArrayType uint32

const (
	// ArrayTypeArray is a plain, untyped array.
	ArrayTypeArray ArrayType = 0

	// ArrayTypeObjectBase is the first identifier of named struct schemas.
	// Arrays of these types are reported to the host when freed.
	ArrayTypeObjectBase ArrayType = 0x10000
)

// ArrayValue is a fixed-size sequence of values.
type ArrayValue struct {
	ArrayType ArrayType
	Values    []Value
}

// IsObject reports whether the array is a named struct instance.
func (a *ArrayValue) IsObject() bool {
	return a.ArrayType >= ArrayTypeObjectBase
}

// Len returns the number of elements.
func (a *ArrayValue) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Values)
}

// ---------------------------------------------------------------------------
// Event
// ---------------------------------------------------------------------------

// Event describes a widget event delivered into a flow.
type Event struct {
	Code          int32
	Target        Value
	CurrentTarget Value
	UserData      Value
	Key           uint32
	GestureCode   int32
	RotationAngle int32
}

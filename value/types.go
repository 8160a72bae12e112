package value

import "fmt"

// Type is the value type tag. The numbering is part of the compiled asset
// format; append new types at the end.
type Type uint8

const (
	TypeUndefined Type = iota
	TypeNull
	TypeBoolean
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat
	TypeDouble
	TypeString
	TypeStringRef
	TypeArray
	TypeArrayRef
	TypeBlobRef
	TypeStream
	TypeArrayElementValue
	TypeJSON
	TypeJSONMemberValue
	TypePropertyRef
	TypeNativeVariable
	TypeValuePtr
	TypeFlowOutput
	TypeError
	TypeDate
	TypeEnum
	TypeRange
	TypePointer
	TypeWidget
	TypeEvent

	typeCount
)

var typeNames = [typeCount]string{
	TypeUndefined:         "undefined",
	TypeNull:              "null",
	TypeBoolean:           "boolean",
	TypeInt8:              "int8",
	TypeUint8:             "uint8",
	TypeInt16:             "int16",
	TypeUint16:            "uint16",
	TypeInt32:             "int32",
	TypeUint32:            "uint32",
	TypeInt64:             "int64",
	TypeUint64:            "uint64",
	TypeFloat:             "float",
	TypeDouble:            "double",
	TypeString:            "string",
	TypeStringRef:         "string",
	TypeArray:             "array",
	TypeArrayRef:          "array",
	TypeBlobRef:           "blob",
	TypeStream:            "stream",
	TypeArrayElementValue: "array element",
	TypeJSON:              "json",
	TypeJSONMemberValue:   "json member",
	TypePropertyRef:       "property",
	TypeNativeVariable:    "native variable",
	TypeValuePtr:          "value pointer",
	TypeFlowOutput:        "flow output",
	TypeError:             "error",
	TypeDate:              "date",
	TypeEnum:              "enum",
	TypeRange:             "range",
	TypePointer:           "pointer",
	TypeWidget:            "widget",
	TypeEvent:             "event",
}

// String returns the printable type name.
func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports whether t is a known type tag.
func (t Type) Valid() bool {
	return t < typeCount
}

// TypeName returns the printable type name of v, resolving one level of
// indirection first.
func (v Value) TypeName() string {
	return v.GetValue().typ.String()
}

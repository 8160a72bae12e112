package value

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// ParseJSON decodes data into a value tree: objects become JSON values,
// arrays become array refs, numbers become Int32/Int64 when integral and
// Double otherwise. Object members are ordered by key. A decode failure is
// returned as an Error value.
func ParseJSON(data []byte, tag uint32) Value {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return MakeError("JSON parse error: " + err.Error())
	}
	return FromGo(doc, tag)
}

// FromGo converts a decoded JSON document into an owned value.
func FromGo(doc any, tag uint32) Value {
	switch x := doc.(type) {
	case nil:
		return Null
	case bool:
		return FromBool(x)
	case string:
		return MakeStringRef(x, tag)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			if n >= -1<<31 && n < 1<<31 {
				return FromInt32(int32(n))
			}
			return FromInt64(n)
		}
		f, err := x.Float64()
		if err != nil {
			return MakeError("JSON number: " + err.Error())
		}
		return FromDouble(f)
	case float64:
		return FromDouble(x)
	case int:
		return FromInt32(int32(x))
	case int64:
		return FromInt64(x)
	case []any:
		arr := MakeArrayRef(len(x), ArrayTypeArray, tag)
		dst := arr.GetArray()
		for i, e := range x {
			dst.Values[i] = FromGo(e, tag)
		}
		return arr
	case map[string]any:
		obj := MakeJSON(tag)
		o := obj.JSONObject()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m := FromGo(x[k], tag)
			o.Set(k, m)
			m.Release()
		}
		return obj
	}
	return MakeError(fmt.Sprintf("JSON: unsupported %T", doc))
}

// ToGo converts v into plain Go data suitable for json.Marshal.
func ToGo(v Value) (any, error) {
	v = v.GetValue()
	switch v.typ {
	case TypeUndefined, TypeNull:
		return nil, nil
	case TypeBoolean:
		return v.Bool(), nil
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return v.Int64SignExtended(), nil
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return v.bits, nil
	case TypeFloat, TypeDouble:
		f, _ := v.ToDouble()
		return f, nil
	case TypeString, TypeStringRef:
		return v.GetString(), nil
	case TypeDate:
		return FormatDate(v.DateMillis()), nil
	case TypeArray, TypeArrayRef:
		arr := v.GetArray()
		out := make([]any, len(arr.Values))
		for i, e := range arr.Values {
			g, err := ToGo(e)
			if err != nil {
				return nil, err
			}
			out[i] = g
		}
		return out, nil
	case TypeJSON:
		return orderedObject{v.JSONObject()}, nil
	case TypeBlobRef:
		return v.GetBlob(), nil
	}
	return nil, fmt.Errorf("value: %s is not representable in JSON", v.typ)
}

// MarshalJSON encodes v as JSON text, keeping object member order.
func MarshalJSON(v Value) ([]byte, error) {
	g, err := ToGo(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(g)
}

type orderedObject struct {
	o *JSONObject
}

func (m orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		g, err := ToGo(m.o.fields[k])
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

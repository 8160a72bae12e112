package expr

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/chazu/flowvm/value"
)

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

func arrayArg(op string, v value.Value) (*value.ArrayValue, value.Value) {
	if !v.IsArray() {
		return nil, unsupported(op, v)
	}
	return v.GetArray(), value.Undefined
}

// copyArray builds a new array of the same type holding retained copies of
// src[from:to] with room for extra elements.
func copyArray(src *value.ArrayValue, from, to, extra int) value.Value {
	out := value.MakeArrayRef(to-from+extra, src.ArrayType, allocTag)
	dst := out.GetArray()
	for i := from; i < to; i++ {
		dst.Values[i-from] = src.Values[i].Retain()
	}
	return out
}

func opArrayLength(_ *Evaluator, args []value.Value) value.Value {
	switch {
	case args[0].IsArray():
		return value.FromInt32(int32(args[0].GetArray().Len()))
	case args[0].IsBlob():
		return value.FromInt32(int32(len(args[0].GetBlob())))
	}
	return unsupported("Array.length", args[0])
}

// opArraySlice copies [from, to); an undefined end runs to the end.
func opArraySlice(_ *Evaluator, args []value.Value) value.Value {
	arr, errv := arrayArg("Array.slice", args[0])
	if errv.IsError() {
		return errv
	}
	from, errv := intArg("Array.slice", args[1])
	if errv.IsError() {
		return errv
	}
	to := arr.Len()
	if !args[2].IsUndefinedOrNull() {
		if to, errv = intArg("Array.slice", args[2]); errv.IsError() {
			return errv
		}
	}
	from = min(max(from, 0), arr.Len())
	to = min(max(to, from), arr.Len())
	return copyArray(arr, from, to, 0)
}

func opArrayAllocate(_ *Evaluator, args []value.Value) value.Value {
	n, errv := intArg("Array.allocate", args[0])
	if errv.IsError() {
		return errv
	}
	v := value.AllocateArray(n, value.ArrayTypeArray, allocTag)
	if v.IsError() {
		msg := "Array.allocate: " + v.ErrorMessage()
		v.Release()
		return value.MakeError(msg)
	}
	return v
}

func opArrayAppend(_ *Evaluator, args []value.Value) value.Value {
	arr, errv := arrayArg("Array.append", args[0])
	if errv.IsError() {
		return errv
	}
	out := copyArray(arr, 0, arr.Len(), 1)
	out.GetArray().Values[arr.Len()] = args[1].Retain()
	return out
}

func opArrayInsert(_ *Evaluator, args []value.Value) value.Value {
	arr, errv := arrayArg("Array.insert", args[0])
	if errv.IsError() {
		return errv
	}
	pos, errv := intArg("Array.insert", args[1])
	if errv.IsError() {
		return errv
	}
	pos = min(max(pos, 0), arr.Len())
	out := value.MakeArrayRef(arr.Len()+1, arr.ArrayType, allocTag)
	dst := out.GetArray()
	for i, e := range arr.Values {
		j := i
		if i >= pos {
			j++
		}
		dst.Values[j] = e.Retain()
	}
	dst.Values[pos] = args[2].Retain()
	return out
}

func opArrayRemove(_ *Evaluator, args []value.Value) value.Value {
	arr, errv := arrayArg("Array.remove", args[0])
	if errv.IsError() {
		return errv
	}
	pos, errv := intArg("Array.remove", args[1])
	if errv.IsError() {
		return errv
	}
	if pos < 0 || pos >= arr.Len() {
		return value.MakeError(fmt.Sprintf("Array.remove: index %d out of bounds", pos))
	}
	out := value.MakeArrayRef(arr.Len()-1, arr.ArrayType, allocTag)
	dst := out.GetArray()
	for i, e := range arr.Values {
		switch {
		case i < pos:
			dst.Values[i] = e.Retain()
		case i > pos:
			dst.Values[i-1] = e.Retain()
		}
	}
	return out
}

func opArrayClone(_ *Evaluator, args []value.Value) value.Value {
	if _, errv := arrayArg("Array.clone", args[0]); errv.IsError() {
		return errv
	}
	return args[0].Clone()
}

func opArrayIndexOf(_ *Evaluator, args []value.Value) value.Value {
	arr, errv := arrayArg("Array.indexOf", args[0])
	if errv.IsError() {
		return errv
	}
	for i, e := range arr.Values {
		if value.IsEqual(e, args[1]) {
			return value.FromInt32(int32(i))
		}
	}
	return value.FromInt32(-1)
}

func opArrayJoin(_ *Evaluator, args []value.Value) value.Value {
	arr, errv := arrayArg("Array.join", args[0])
	if errv.IsError() {
		return errv
	}
	sep, errv := stringArg("Array.join", args[1])
	if errv.IsError() {
		return errv
	}
	parts := make([]string, arr.Len())
	for i, e := range arr.Values {
		parts[i] = e.ToText()
	}
	return value.MakeStringRef(strings.Join(parts, sep), allocTag)
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

func opBlobAllocate(_ *Evaluator, args []value.Value) value.Value {
	n, errv := intArg("Blob.allocate", args[0])
	if errv.IsError() {
		return errv
	}
	if n < 0 {
		return value.MakeError(fmt.Sprintf("Blob.allocate: negative size %d", n))
	}
	v := value.AllocateBlob(n, allocTag)
	if v.IsError() {
		msg := "Blob.allocate: " + v.ErrorMessage()
		v.Release()
		return value.MakeError(msg)
	}
	return v
}

func opBlobToString(_ *Evaluator, args []value.Value) value.Value {
	if !args[0].IsBlob() {
		return unsupported("Blob.toString", args[0])
	}
	return value.MakeStringRefBytes(args[0].GetBlob(), allocTag)
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

func opJSONGet(_ *Evaluator, args []value.Value) value.Value {
	key, errv := stringArg("JSON.get", args[1])
	if errv.IsError() {
		return errv
	}
	if !args[0].IsJSON() {
		return unsupported("JSON.get", args[0])
	}
	f, ok := args[0].JSONObject().Get(key)
	if !ok {
		return value.Undefined
	}
	return f.Retain()
}

// opJSONSet returns a copy of the object with the member replaced.
func opJSONSet(_ *Evaluator, args []value.Value) value.Value {
	key, errv := stringArg("JSON.set", args[1])
	if errv.IsError() {
		return errv
	}
	if !args[0].IsJSON() {
		return unsupported("JSON.set", args[0])
	}
	out := args[0].Clone()
	out.JSONObject().Set(key, args[2])
	return out
}

func opJSONClone(_ *Evaluator, args []value.Value) value.Value {
	if !args[0].IsJSON() && !args[0].IsArray() {
		return unsupported("JSON.clone", args[0])
	}
	return args[0].Clone()
}

func opJSONParse(_ *Evaluator, args []value.Value) value.Value {
	s, errv := stringArg("JSON.parse", args[0])
	if errv.IsError() {
		return errv
	}
	return value.ParseJSON([]byte(s), allocTag)
}

func opJSONStringify(_ *Evaluator, args []value.Value) value.Value {
	b, err := value.MarshalJSON(args[0])
	if err != nil {
		return value.MakeError("JSON.stringify: " + err.Error())
	}
	return value.MakeStringRefBytes(b, allocTag)
}

func opJSONArrayLength(_ *Evaluator, args []value.Value) value.Value {
	switch {
	case args[0].IsArray():
		return value.FromInt32(int32(args[0].GetArray().Len()))
	case args[0].IsJSON():
		return value.FromInt32(int32(args[0].JSONObject().Len()))
	}
	return unsupported("JSON.arrayLength", args[0])
}

// ---------------------------------------------------------------------------
// Crypto
// ---------------------------------------------------------------------------

func opCryptoSha256(_ *Evaluator, args []value.Value) value.Value {
	var data []byte
	switch {
	case args[0].IsString():
		data = []byte(args[0].GetString())
	case args[0].IsBlob():
		data = args[0].GetBlob()
	default:
		return unsupported("Crypto.sha256", args[0])
	}
	sum := sha256.Sum256(data)
	return value.MakeBlobRef(sum[:], allocTag)
}

// ---------------------------------------------------------------------------
// Event
// ---------------------------------------------------------------------------

func eventArg(op string, v value.Value) (*value.Event, value.Value) {
	e := v.Event()
	if !v.IsEvent() || e == nil {
		return nil, unsupported(op, v)
	}
	return e, value.Undefined
}

func opEventGetCode(_ *Evaluator, args []value.Value) value.Value {
	e, errv := eventArg("Event.getCode", args[0])
	if errv.IsError() {
		return errv
	}
	return value.FromInt32(e.Code)
}

func opEventGetCurrentTarget(_ *Evaluator, args []value.Value) value.Value {
	e, errv := eventArg("Event.getCurrentTarget", args[0])
	if errv.IsError() {
		return errv
	}
	return e.CurrentTarget.Retain()
}

func opEventGetTarget(_ *Evaluator, args []value.Value) value.Value {
	e, errv := eventArg("Event.getTarget", args[0])
	if errv.IsError() {
		return errv
	}
	return e.Target.Retain()
}

func opEventGetUserData(_ *Evaluator, args []value.Value) value.Value {
	e, errv := eventArg("Event.getUserData", args[0])
	if errv.IsError() {
		return errv
	}
	return e.UserData.Retain()
}

func opEventGetKey(_ *Evaluator, args []value.Value) value.Value {
	e, errv := eventArg("Event.getKey", args[0])
	if errv.IsError() {
		return errv
	}
	return value.FromUint32(e.Key)
}

func opEventGetGestureCode(_ *Evaluator, args []value.Value) value.Value {
	e, errv := eventArg("Event.getGestureCode", args[0])
	if errv.IsError() {
		return errv
	}
	return value.FromInt32(e.GestureCode)
}

func opEventGetRotationAngle(_ *Evaluator, args []value.Value) value.Value {
	e, errv := eventArg("Event.getRotationAngle", args[0])
	if errv.IsError() {
		return errv
	}
	return value.FromInt32(e.RotationAngle)
}

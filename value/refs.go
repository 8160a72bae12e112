package value

import (
	"fmt"
	"unsafe"

	"github.com/chazu/flowvm/alloc"
)

// ---------------------------------------------------------------------------
// Reference-counted cells
// ---------------------------------------------------------------------------

// header is embedded in every heap cell.
type header struct {
	count int32
	tag   uint32
}

func (h *header) hdr() *header { return h }

// cell is implemented by every heap cell kind.
type cell interface {
	hdr() *header
	free()
}

// Retain adds a reference for a new owner of v and returns v.
func (v Value) Retain() Value {
	if v.options&OptRef != 0 {
		v.ptr.(cell).hdr().count++
	}
	return v
}

// Release drops the reference owned by v. The cell is freed when its last
// owner releases it. Releasing a non-ref value is a no-op.
func (v Value) Release() {
	if v.options&OptRef == 0 {
		return
	}
	c := v.ptr.(cell)
	h := c.hdr()
	if h.count <= 0 {
		return
	}
	h.count--
	if h.count == 0 {
		c.free()
	}
}

// RefCount returns the number of owners of v's cell (0 for inline values).
func (v Value) RefCount() int32 {
	if v.options&OptRef == 0 {
		return 0
	}
	return v.ptr.(cell).hdr().count
}

// AllocationTag returns the tag the cell was allocated with.
func (v Value) AllocationTag() uint32 {
	if v.options&OptRef == 0 {
		return 0
	}
	return v.ptr.(cell).hdr().tag
}

// SameCell reports whether a and b share one heap cell.
func SameCell(a, b Value) bool {
	return a.options&OptRef != 0 && b.options&OptRef != 0 && a.ptr == b.ptr
}

// Assign copies src into *dst sharing ownership: src gains a reference and
// the previous content of *dst loses one.
func Assign(dst *Value, src Value) {
	src.Retain()
	old := *dst
	*dst = src
	old.Release()
}

// Clear releases the content of *v and resets it to Undefined.
func (v *Value) Clear() {
	old := *v
	*v = Undefined
	old.Release()
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

// StringRef is a heap-allocated string buffer.
type StringRef struct {
	header
	buf []byte
	a   alloc.Allocator
}

func (s *StringRef) free() {
	if s.buf != nil {
		s.a.Free(s.buf)
		s.buf = nil
	}
}

// MakeStringRef copies s into a new heap cell. The returned value is the
// sole owner. On allocation failure an Error value is returned.
func MakeStringRef(s string, tag uint32) Value {
	a := alloc.Current()
	buf, err := a.Alloc(len(s), tag)
	if err != nil {
		return MakeError(err.Error())
	}
	copy(buf, s)
	return Value{
		typ:     TypeStringRef,
		options: OptRef,
		ptr:     &StringRef{header: header{count: 1, tag: tag}, buf: buf, a: a},
	}
}

// MakeStringRefBytes is MakeStringRef for a byte slice.
func MakeStringRefBytes(b []byte, tag uint32) Value {
	a := alloc.Current()
	buf, err := a.Alloc(len(b), tag)
	if err != nil {
		return MakeError(err.Error())
	}
	copy(buf, b)
	return Value{
		typ:     TypeStringRef,
		options: OptRef,
		ptr:     &StringRef{header: header{count: 1, tag: tag}, buf: buf, a: a},
	}
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

// ArrayValueRef owns an ArrayValue and the references of its elements.
type ArrayValueRef struct {
	header
	arr ArrayValue
}

var freeArrayHook func(*ArrayValue)

// SetFreeArrayHook installs the notification invoked before a named object
// array is freed, returning a function restoring the previous hook.
func SetFreeArrayHook(fn func(*ArrayValue)) (restore func()) {
	prev := freeArrayHook
	freeArrayHook = fn
	return func() { freeArrayHook = prev }
}

func (r *ArrayValueRef) free() {
	if r.arr.IsObject() && freeArrayHook != nil {
		freeArrayHook(&r.arr)
	}
	for i := range r.arr.Values {
		r.arr.Values[i].Clear()
	}
	r.arr.Values = nil
}

// MakeArrayRef allocates an array of size undefined elements.
func MakeArrayRef(size int, arrayType ArrayType, tag uint32) Value {
	if size < 0 {
		size = 0
	}
	return Value{
		typ:     TypeArrayRef,
		options: OptRef,
		ptr: &ArrayValueRef{
			header: header{count: 1, tag: tag},
			arr:    ArrayValue{ArrayType: arrayType, Values: make([]Value, size)},
		},
	}
}

// MaxArrayLen is the largest element count AllocateArray grants.
const MaxArrayLen = alloc.MaxBlockSize / int(unsafe.Sizeof(Value{}))

// AllocateArray is MakeArrayRef for sizes coming from expressions. A
// negative or oversized request yields an Error value.
func AllocateArray(size int, arrayType ArrayType, tag uint32) Value {
	if size < 0 {
		return MakeError(fmt.Sprintf("negative array size %d", size))
	}
	if size > MaxArrayLen {
		return MakeError(fmt.Sprintf("%s: array of %d elements", alloc.ErrOutOfMemory, size))
	}
	return MakeArrayRef(size, arrayType, tag)
}

// MakeArrayOf builds an array holding a retained copy of each element.
func MakeArrayOf(arrayType ArrayType, tag uint32, elems ...Value) Value {
	v := MakeArrayRef(len(elems), arrayType, tag)
	arr := v.GetArray()
	for i, e := range elems {
		arr.Values[i] = e.Retain()
	}
	return v
}

// ---------------------------------------------------------------------------
// Blobs
// ---------------------------------------------------------------------------

// BlobRef is a heap-allocated byte buffer.
type BlobRef struct {
	header
	buf []byte
	a   alloc.Allocator
}

func (b *BlobRef) free() {
	if b.buf != nil {
		b.a.Free(b.buf)
		b.buf = nil
	}
}

// MakeBlobRef copies data into a new blob.
func MakeBlobRef(data []byte, tag uint32) Value {
	v := AllocateBlob(len(data), tag)
	if v.IsError() {
		return v
	}
	copy(v.GetBlob(), data)
	return v
}

// AllocateBlob creates a zero-filled blob of size bytes.
func AllocateBlob(size int, tag uint32) Value {
	a := alloc.Current()
	buf, err := a.Alloc(size, tag)
	if err != nil {
		return MakeError(err.Error())
	}
	return Value{
		typ:     TypeBlobRef,
		options: OptRef,
		ptr:     &BlobRef{header: header{count: 1, tag: tag}, buf: buf, a: a},
	}
}

// ---------------------------------------------------------------------------
// Array element indirection
// ---------------------------------------------------------------------------

// ArrayElementRef addresses one element of an array. The array value may
// itself be an indirection (a variable slot), so assignments reach storage.
type ArrayElementRef struct {
	header
	array Value
	index int
}

func (r *ArrayElementRef) free() {
	r.array.Clear()
}

func (r *ArrayElementRef) slot() *Value {
	arr := r.array.GetValue().GetArray()
	if arr == nil || r.index < 0 || r.index >= len(arr.Values) {
		return nil
	}
	return &arr.Values[r.index]
}

// MakeArrayElementRef creates an indirection to array[index].
func MakeArrayElementRef(array Value, index int, tag uint32) Value {
	return Value{
		typ:     TypeArrayElementValue,
		options: OptRef,
		ptr:     &ArrayElementRef{header: header{count: 1, tag: tag}, array: array.Retain(), index: index},
	}
}

// ElementIndex returns the index addressed by an array element reference.
func (v Value) ElementIndex() int {
	if r, ok := v.ptr.(*ArrayElementRef); ok {
		return r.index
	}
	return -1
}

// TargetSlot returns the storage slot addressed by a ValuePtr or array
// element reference, or nil.
func (v Value) TargetSlot() *Value {
	switch v.typ {
	case TypeValuePtr:
		return v.ValuePtr()
	case TypeArrayElementValue:
		return v.ptr.(*ArrayElementRef).slot()
	}
	return nil
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

// JSONObject is a reference-counted ordered map of members.
type JSONObject struct {
	header
	keys   []string
	fields map[string]Value
}

func (o *JSONObject) free() {
	for _, k := range o.keys {
		f := o.fields[k]
		f.Release()
	}
	o.keys = nil
	o.fields = nil
}

// MakeJSON creates an empty JSON object.
func MakeJSON(tag uint32) Value {
	return Value{
		typ:     TypeJSON,
		options: OptRef,
		ptr:     &JSONObject{header: header{count: 1, tag: tag}, fields: make(map[string]Value)},
	}
}

// JSONObject returns the object behind a JSON value.
func (v Value) JSONObject() *JSONObject {
	if o, ok := v.ptr.(*JSONObject); ok && v.typ == TypeJSON {
		return o
	}
	return nil
}

// Get returns the member named key.
func (o *JSONObject) Get(key string) (Value, bool) {
	if o == nil {
		return Undefined, false
	}
	f, ok := o.fields[key]
	return f, ok
}

// Set stores a retained copy of v under key.
func (o *JSONObject) Set(key string, v Value) {
	old, ok := o.fields[key]
	if !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v.Retain()
	old.Release()
}

// Keys returns the member names in insertion order.
func (o *JSONObject) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Len returns the number of members.
func (o *JSONObject) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// JSONMemberRef addresses a member of a JSON object.
type JSONMemberRef struct {
	header
	json   Value
	member string
}

func (r *JSONMemberRef) free() {
	r.json.Clear()
}

// MakeJSONMemberRef creates an indirection to json[member].
func MakeJSONMemberRef(json Value, member string, tag uint32) Value {
	return Value{
		typ:     TypeJSONMemberValue,
		options: OptRef,
		ptr:     &JSONMemberRef{header: header{count: 1, tag: tag}, json: json.Retain(), member: member},
	}
}

// JSONMember returns the object and member name addressed by a JSON member
// reference.
func (v Value) JSONMember() (*JSONObject, string) {
	r, ok := v.ptr.(*JSONMemberRef)
	if !ok || v.typ != TypeJSONMemberValue {
		return nil, ""
	}
	return r.json.GetValue().JSONObject(), r.member
}

// ---------------------------------------------------------------------------
// Property references
// ---------------------------------------------------------------------------

// PropertyRef defers evaluation of a component property until the value is
// read. The last resolved value is cached and owned by the cell.
type PropertyRef struct {
	header
	resolve func() Value
	last    Value
}

func (r *PropertyRef) free() {
	r.last.Clear()
	r.resolve = nil
}

func (r *PropertyRef) get() Value {
	if r.resolve == nil {
		return Undefined
	}
	next := r.resolve()
	r.last.Release()
	r.last = next
	return next
}

// MakePropertyRef creates a reference resolved by calling resolve. The
// resolver returns an owned value.
func MakePropertyRef(resolve func() Value, tag uint32) Value {
	return Value{
		typ:     TypePropertyRef,
		options: OptRef,
		ptr:     &PropertyRef{header: header{count: 1, tag: tag}, resolve: resolve},
	}
}

// ---------------------------------------------------------------------------
// Cloning
// ---------------------------------------------------------------------------

// Clone returns an owned deep copy of v. Arrays (including non-owning asset
// arrays) and JSON objects are copied; immutable cells are shared.
func (v Value) Clone() Value {
	switch v.typ {
	case TypeArray, TypeArrayRef:
		src := v.GetArray()
		if src == nil {
			return v
		}
		c := MakeArrayRef(len(src.Values), src.ArrayType, v.AllocationTag())
		dst := c.GetArray()
		for i, e := range src.Values {
			dst.Values[i] = e.Clone()
		}
		return c
	case TypeJSON:
		src := v.JSONObject()
		c := MakeJSON(v.AllocationTag())
		dst := c.JSONObject()
		for _, k := range src.keys {
			e := src.fields[k].Clone()
			dst.Set(k, e)
			e.Release()
		}
		return c
	case TypeBlobRef:
		return MakeBlobRef(v.GetBlob(), v.AllocationTag())
	}
	return v.Retain()
}

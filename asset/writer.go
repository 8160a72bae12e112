package asset

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chazu/flowvm/value"
)

// Encode serializes def into an asset file. With a codec other than
// CodecNone the payload is compressed when that makes it smaller.
func Encode(def *FlowDefinition, codec Codec) ([]byte, error) {
	if def == nil {
		return nil, fmt.Errorf("asset: nil definition")
	}
	w := &writer{}
	w.u32(0) // root pointer, patched below
	root := w.definition(def)
	if w.err != nil {
		return nil, w.err
	}
	binary.LittleEndian.PutUint32(w.buf[0:], uint32(int32(root)))
	payload := w.buf

	if len(payload) > math.MaxUint32 {
		return nil, fmt.Errorf("asset: payload of %d bytes too large", len(payload))
	}

	body, compressed, err := compress(codec, payload)
	if err != nil {
		return nil, err
	}

	var flags uint16
	if compressed {
		flags |= FlagCompressed
		if codec == CodecZstd {
			flags |= 1 << codecShift
		}
	}

	out := make([]byte, HeaderSize, HeaderSize+len(body))
	copy(out, Magic[:])
	binary.LittleEndian.PutUint16(out[4:], Version)
	binary.LittleEndian.PutUint16(out[6:], flags)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(body)))
	out = append(out, body...)

	log.Debugf("encoded asset: %d bytes payload, %d bytes stored (%s)", len(payload), len(body), codec)
	return out, nil
}

// WriteTo encodes def and writes it to out.
func WriteTo(out io.Writer, def *FlowDefinition, codec Codec) (int64, error) {
	data, err := Encode(def, codec)
	if err != nil {
		return 0, err
	}
	n, err := out.Write(data)
	return int64(n), err
}

// WriteFile encodes def into the file at path.
func WriteFile(path string, def *FlowDefinition, codec Codec) error {
	data, err := Encode(def, codec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ---------------------------------------------------------------------------
// writer: children are written before the records that point at them
// ---------------------------------------------------------------------------

const null = -1

type writer struct {
	buf []byte
	err error
}

func (w *writer) pos() int { return len(w.buf) }

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// ptr writes a reference from the current position to target.
func (w *writer) ptr(target int) {
	if target == null {
		w.u32(0)
		return
	}
	w.u32(uint32(int32(target - w.pos())))
}

func (w *writer) list(count, items int) {
	w.u32(uint32(count))
	if count == 0 {
		w.ptr(null)
		return
	}
	w.ptr(items)
}

func (w *writer) str(s string) int {
	off := w.pos()
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	for len(w.buf)%4 != 0 {
		w.u8(0)
	}
	return off
}

// ptrTable writes a table of references and returns its offset.
func (w *writer) ptrTable(targets []int) int {
	if len(targets) == 0 {
		return null
	}
	off := w.pos()
	for _, t := range targets {
		w.ptr(t)
	}
	return off
}

func (w *writer) definition(def *FlowDefinition) int {
	flows := make([]int, len(def.Flows))
	for i, f := range def.Flows {
		if f == nil {
			w.err = fmt.Errorf("asset: flow %d is nil", i)
			return null
		}
		flows[i] = w.flow(f)
	}
	flowTable := w.ptrTable(flows)
	constants := w.values(def.Constants)
	globals := w.values(def.Globals)

	names := make([]int, len(def.ActionNames))
	for i, n := range def.ActionNames {
		names[i] = w.str(n)
	}
	nameTable := w.ptrTable(names)

	off := w.pos()
	w.list(len(flows), flowTable)
	w.list(len(def.Constants), constants)
	w.list(len(def.Globals), globals)
	w.list(len(names), nameTable)
	return off
}

func (w *writer) flow(f *Flow) int {
	name := w.str(f.Name)

	comps := make([]int, len(f.Components))
	for i, c := range f.Components {
		comps[i] = w.component(c)
	}
	compTable := w.ptrTable(comps)

	inputs := null
	if len(f.ComponentInputs) > 0 {
		inputs = w.pos()
		for _, fl := range f.ComponentInputs {
			w.u8(uint8(fl))
		}
		for len(w.buf)%4 != 0 {
			w.u8(0)
		}
	}
	locals := w.values(f.LocalVariables)

	off := w.pos()
	w.ptr(name)
	w.list(len(comps), compTable)
	w.list(len(f.ComponentInputs), inputs)
	w.list(len(f.LocalVariables), locals)
	return off
}

func (w *writer) u16Array(vs []uint16) int {
	if len(vs) == 0 {
		return null
	}
	off := w.pos()
	for _, v := range vs {
		w.u16(v)
	}
	for len(w.buf)%4 != 0 {
		w.u8(0)
	}
	return off
}

func (w *writer) component(c *Component) int {
	name := w.str(c.Name)
	inputs := w.u16Array(c.Inputs)

	props := make([]int, len(c.Properties))
	for i, p := range c.Properties {
		code := w.u16Array(p.Instructions)
		props[i] = w.pos()
		w.list(len(p.Instructions), code)
	}
	propTable := w.ptrTable(props)

	outs := make([]int, len(c.Outputs))
	for i, o := range c.Outputs {
		conns := null
		if len(o.Connections) > 0 {
			conns = w.pos()
			for _, conn := range o.Connections {
				w.u16(conn.TargetComponentIndex)
				w.u16(conn.TargetInputIndex)
			}
		}
		outs[i] = w.pos()
		if o.IsSeqOut {
			w.u32(1)
		} else {
			w.u32(0)
		}
		w.list(len(o.Connections), conns)
	}
	outTable := w.ptrTable(outs)

	off := w.pos()
	w.u16(c.Type)
	w.u16(uint16(c.ErrorCatchOutput))
	w.ptr(name)
	w.list(len(c.Inputs), inputs)
	w.list(len(props), propTable)
	w.list(len(outs), outTable)
	return off
}

// values writes the children of vs followed by the contiguous records.
func (w *writer) values(vs []value.Value) int {
	if len(vs) == 0 {
		return null
	}
	children := make([]int, len(vs))
	for i, v := range vs {
		children[i] = w.valueChild(v)
	}
	off := w.pos()
	for i, v := range vs {
		w.value(v, children[i])
	}
	return off
}

func (w *writer) valueChild(v value.Value) int {
	switch {
	case v.IsString():
		return w.str(v.GetString())
	case v.IsArray():
		arr := v.GetArray()
		elems := w.values(arr.Values)
		off := w.pos()
		w.u32(uint32(arr.ArrayType))
		w.list(arr.Len(), elems)
		return off
	}
	return null
}

func (w *writer) value(v value.Value, child int) {
	t := v.Type()
	switch {
	case v.IsString():
		t = value.TypeString
	case v.IsArray():
		t = value.TypeArray
	case v.IsRef() || v.IsError() || v.IsIndirect() || v.IsJSON() || v.IsEvent():
		if w.err == nil {
			w.err = fmt.Errorf("asset: value of type %s cannot be stored", v.TypeName())
		}
	}
	w.u8(uint8(t))
	w.u8(uint8(v.Unit()))
	w.u16(uint16(v.Options() &^ value.OptRef))
	if child != null {
		w.ptr(child)
		w.u32(0)
		return
	}
	w.u64(v.Bits())
}

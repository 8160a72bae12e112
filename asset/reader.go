package asset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/flowvm/value"
)

var log = commonlog.GetLogger("flowvm.asset")

// maxValueDepth bounds nesting of constant arrays.
const maxValueDepth = 32

// ReadHeader parses and validates the file header.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header truncated (%d bytes)", ErrCorrupt, len(data))
	}
	if [4]byte(data[:4]) != Magic {
		return Header{}, fmt.Errorf("%w: got %q", ErrInvalidMagic, data[:4])
	}
	h := Header{
		Version:          binary.LittleEndian.Uint16(data[4:]),
		Flags:            binary.LittleEndian.Uint16(data[6:]),
		DecompressedSize: binary.LittleEndian.Uint32(data[8:]),
		PayloadSize:      binary.LittleEndian.Uint32(data[12:]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: expected %d, got %d", ErrVersion, Version, h.Version)
	}
	if uint64(h.PayloadSize) > uint64(len(data)-HeaderSize) {
		return Header{}, fmt.Errorf("%w: payload size %d exceeds file", ErrCorrupt, h.PayloadSize)
	}
	if !h.Compressed() && h.DecompressedSize != h.PayloadSize {
		return Header{}, fmt.Errorf("%w: uncompressed payload size mismatch", ErrCorrupt)
	}
	return h, nil
}

// Load decodes an asset file held in memory.
func Load(data []byte) (*Assets, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	payload := data[HeaderSize : HeaderSize+int(h.PayloadSize)]
	if h.Compressed() {
		if payload, err = decompress(h.Codec(), payload, h.DecompressedSize); err != nil {
			return nil, err
		}
	}

	d := &decoder{buf: payload}
	def := d.definition()
	if d.err != nil {
		return nil, d.err
	}

	log.Debugf("loaded asset: %d flows, %d constants, %d globals (%s, %d bytes)",
		len(def.Flows), len(def.Constants), len(def.Globals), h.Codec(), h.DecompressedSize)
	return &Assets{Header: h, Definition: def}, nil
}

// LoadFile reads and decodes the asset at path.
func LoadFile(path string) (*Assets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("asset: %w", err)
	}
	a, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Read decodes an asset from r.
func Read(r io.Reader) (*Assets, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("asset: %w", err)
	}
	return Load(data)
}

// ---------------------------------------------------------------------------
// decoder: pointer fixup over the decompressed payload
// ---------------------------------------------------------------------------

// decoder walks the relocatable graph. The first failure is kept in err and
// every later read returns zero values.
type decoder struct {
	buf   []byte
	err   error
	depth int
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) check(off, n int) bool {
	if d.err != nil {
		return false
	}
	if off < 0 || n < 0 || off > len(d.buf)-n {
		d.fail("read of %d bytes at offset %d outside payload of %d bytes", n, off, len(d.buf))
		return false
	}
	return true
}

func (d *decoder) u8(off int) uint8 {
	if !d.check(off, 1) {
		return 0
	}
	return d.buf[off]
}

func (d *decoder) u16(off int) uint16 {
	if !d.check(off, 2) {
		return 0
	}
	return binary.LittleEndian.Uint16(d.buf[off:])
}

func (d *decoder) u32(off int) uint32 {
	if !d.check(off, 4) {
		return 0
	}
	return binary.LittleEndian.Uint32(d.buf[off:])
}

func (d *decoder) u64(off int) uint64 {
	if !d.check(off, 8) {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[off:])
}

// deref follows the pointer stored at off. ok is false for null.
func (d *decoder) deref(off int) (target int, ok bool) {
	rel := int32(d.u32(off))
	if d.err != nil || rel == 0 {
		return 0, false
	}
	target = off + int(rel)
	if target < 0 || target >= len(d.buf) {
		d.fail("pointer at %d targets %d outside payload", off, target)
		return 0, false
	}
	return target, true
}

// list reads the {count, items} record at off and checks that count items
// of elemSize bytes fit.
func (d *decoder) list(off, elemSize int) (count, items int) {
	n := d.u32(off)
	if d.err != nil || n == 0 {
		return 0, 0
	}
	items, ok := d.deref(off + 4)
	if !ok {
		d.fail("list at %d has %d items and no storage", off, n)
		return 0, 0
	}
	if uint64(n)*uint64(elemSize) > uint64(len(d.buf)-items) {
		d.fail("list at %d with %d items overruns payload", off, n)
		return 0, 0
	}
	return int(n), items
}

func (d *decoder) str(off int) string {
	n := d.u32(off)
	if !d.check(off+4, int(n)) {
		return ""
	}
	return string(d.buf[off+4 : off+4+int(n)])
}

// strPtr reads the string referenced by the pointer at off; null is "".
func (d *decoder) strPtr(off int) string {
	target, ok := d.deref(off)
	if !ok {
		return ""
	}
	return d.str(target)
}

func (d *decoder) definition() *FlowDefinition {
	root, ok := d.deref(0)
	if !ok {
		d.fail("missing root pointer")
		return nil
	}

	def := &FlowDefinition{}

	n, items := d.list(root, ptrSize)
	def.Flows = make([]*Flow, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		p, ok := d.deref(items + i*ptrSize)
		if !ok {
			d.fail("flow %d is null", i)
			break
		}
		def.Flows = append(def.Flows, d.flow(p))
	}

	def.Constants = d.values(root + listSize)
	def.Globals = d.values(root + 2*listSize)

	n, items = d.list(root+3*listSize, ptrSize)
	def.ActionNames = make([]string, n)
	for i := 0; i < n && d.err == nil; i++ {
		def.ActionNames[i] = d.strPtr(items + i*ptrSize)
	}
	return def
}

func (d *decoder) flow(off int) *Flow {
	f := &Flow{Name: d.strPtr(off)}

	n, items := d.list(off+ptrSize, ptrSize)
	f.Components = make([]*Component, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		p, ok := d.deref(items + i*ptrSize)
		if !ok {
			d.fail("flow %q component %d is null", f.Name, i)
			break
		}
		f.Components = append(f.Components, d.component(p))
	}

	n, items = d.list(off+ptrSize+listSize, 1)
	f.ComponentInputs = make([]InputFlags, n)
	for i := 0; i < n && d.err == nil; i++ {
		f.ComponentInputs[i] = InputFlags(d.u8(items + i))
	}

	f.LocalVariables = d.values(off + ptrSize + 2*listSize)

	for ci, c := range f.Components {
		for _, in := range c.Inputs {
			if int(in) >= len(f.ComponentInputs) {
				d.fail("flow %q component %d references input slot %d of %d", f.Name, ci, in, len(f.ComponentInputs))
			}
		}
		for _, o := range c.Outputs {
			for _, conn := range o.Connections {
				if int(conn.TargetComponentIndex) >= len(f.Components) {
					d.fail("flow %q component %d connects to component %d of %d",
						f.Name, ci, conn.TargetComponentIndex, len(f.Components))
				}
				if int(conn.TargetInputIndex) >= len(f.ComponentInputs) {
					d.fail("flow %q component %d connects to input slot %d of %d",
						f.Name, ci, conn.TargetInputIndex, len(f.ComponentInputs))
				}
			}
		}
	}
	return f
}

func (d *decoder) component(off int) *Component {
	c := &Component{
		Type:             d.u16(off),
		ErrorCatchOutput: int16(d.u16(off + 2)),
		Name:             d.strPtr(off + 4),
	}

	base := off + 4 + ptrSize
	n, items := d.list(base, 2)
	c.Inputs = make([]uint16, n)
	for i := 0; i < n && d.err == nil; i++ {
		c.Inputs[i] = d.u16(items + 2*i)
	}

	n, items = d.list(base+listSize, ptrSize)
	c.Properties = make([]Property, n)
	for i := 0; i < n && d.err == nil; i++ {
		p, ok := d.deref(items + i*ptrSize)
		if !ok {
			continue
		}
		m, code := d.list(p, 2)
		instr := make([]uint16, m)
		for j := 0; j < m && d.err == nil; j++ {
			instr[j] = d.u16(code + 2*j)
		}
		c.Properties[i].Instructions = instr
	}

	n, items = d.list(base+2*listSize, ptrSize)
	c.Outputs = make([]Output, n)
	for i := 0; i < n && d.err == nil; i++ {
		p, ok := d.deref(items + i*ptrSize)
		if !ok {
			continue
		}
		c.Outputs[i].IsSeqOut = d.u32(p) != 0
		m, conns := d.list(p+4, 4)
		c.Outputs[i].Connections = make([]Connection, m)
		for j := 0; j < m && d.err == nil; j++ {
			c.Outputs[i].Connections[j] = Connection{
				TargetComponentIndex: d.u16(conns + 4*j),
				TargetInputIndex:     d.u16(conns + 4*j + 2),
			}
		}
	}

	if c.ErrorCatchOutput >= int16(len(c.Outputs)) {
		d.fail("component %q error output %d out of range", c.Name, c.ErrorCatchOutput)
	}
	return c
}

func (d *decoder) values(listOff int) []value.Value {
	n, items := d.list(listOff, valueSize)
	vs := make([]value.Value, n)
	for i := 0; i < n && d.err == nil; i++ {
		vs[i] = d.value(items + i*valueSize)
	}
	return vs
}

func (d *decoder) value(off int) value.Value {
	t := value.Type(d.u8(off))
	unit := value.Unit(d.u8(off + 1))
	opts := value.Options(d.u16(off + 2))
	if d.err != nil {
		return value.Undefined
	}
	if !t.Valid() {
		d.fail("invalid value type %d at %d", t, off)
		return value.Undefined
	}

	switch t {
	case value.TypeString:
		return value.FromString(d.strPtr(off + 4))

	case value.TypeArray:
		d.depth++
		defer func() { d.depth-- }()
		if d.depth > maxValueDepth {
			d.fail("constant arrays nested deeper than %d", maxValueDepth)
			return value.Undefined
		}
		p, ok := d.deref(off + 4)
		if !ok {
			return value.FromArray(&value.ArrayValue{})
		}
		arr := &value.ArrayValue{
			ArrayType: value.ArrayType(d.u32(p)),
			Values:    d.values(p + 4),
		}
		return value.FromArray(arr)

	case value.TypeStringRef, value.TypeArrayRef, value.TypeBlobRef,
		value.TypeArrayElementValue, value.TypeJSONMemberValue, value.TypePropertyRef,
		value.TypeValuePtr, value.TypeFlowOutput, value.TypeError,
		value.TypePointer, value.TypeWidget, value.TypeEvent, value.TypeJSON:
		d.fail("value type %s cannot be stored in an asset", t)
		return value.Undefined
	}
	return value.FromRaw(t, unit, opts, d.u64(off+4))
}

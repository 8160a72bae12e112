// Package asset reads and writes compiled flow assets.
//
// An asset file is a 16-byte header followed by a payload that may be
// compressed with LZ4 or zstd. The decompressed payload is a relocatable
// object graph: every reference is an int32 offset relative to the position
// of the reference itself, with 0 meaning null. The root reference sits at
// offset 0 and addresses the FlowDefinition record.
//
// Records, all little endian:
//
//	FlowDefinition  flows list<ptr Flow>, constants list<value>,
//	                globals list<value>, actionNames list<ptr string>
//	Flow            name ptr string, components list<ptr Component>,
//	                componentInputs list<u8>, localVariables list<value>
//	Component       type u16, errorCatchOutput i16, name ptr string,
//	                inputs list<u16>, properties list<ptr Property>,
//	                outputs list<ptr Output>
//	Property        instructions list<u16>
//	Output          isSeqOut u32, connections list<{u16 component, u16 input}>
//	list<T>         count u32, items ptr
//	string          len u32, bytes
//	value           type u8, unit u8, options u16, payload u64
//
// String and array values store a reference in the low 32 bits of the
// payload; arrays point at {arrayType u32, values list<value>}.
package asset

import (
	"errors"

	"github.com/chazu/flowvm/value"
)

// Magic identifies a flow asset.
var Magic = [4]byte{'F', 'L', 'O', 'W'}

// Version of the payload layout.
const Version uint16 = 1

// HeaderSize in bytes: magic(4) + version(2) + flags(2) + decompressed(4) + payload(4).
const HeaderSize = 16

// Header flags
const (
	FlagCompressed uint16 = 1 << 0
	codecShift            = 1
	codecMask      uint16 = 3 << codecShift
)

// Codec selects the payload compression.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	}
	return "unknown"
}

// Record sizes
const (
	ptrSize   = 4
	listSize  = 8
	valueSize = 12
)

// MaxDecompressedSize bounds the payload a compressed asset may expand to.
const MaxDecompressedSize = 64 << 20

var (
	ErrInvalidMagic = errors.New("asset: invalid magic, expected FLOW")
	ErrVersion      = errors.New("asset: unsupported version")
	ErrCorrupt      = errors.New("asset: corrupt data")
	ErrDecompress   = errors.New("asset: decompression failed")
)

// Header is the parsed file header.
type Header struct {
	Version          uint16
	Flags            uint16
	DecompressedSize uint32
	PayloadSize      uint32
}

// Compressed reports whether the payload is compressed.
func (h Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// Codec returns the payload codec.
func (h Header) Codec() Codec {
	if !h.Compressed() {
		return CodecNone
	}
	switch (h.Flags & codecMask) >> codecShift {
	case 0:
		return CodecLZ4
	case 1:
		return CodecZstd
	}
	return Codec(0xFF)
}

// ---------------------------------------------------------------------------
// Decoded structures
// ---------------------------------------------------------------------------

// Assets is a loaded asset file.
type Assets struct {
	Header     Header
	Definition *FlowDefinition
}

// FlowDefinition is the root record.
type FlowDefinition struct {
	Flows       []*Flow
	Constants   []value.Value
	Globals     []value.Value
	ActionNames []string
}

// InputFlags describe one component input slot of a flow.
type InputFlags uint8

const (
	InputSeq      InputFlags = 1 << 0
	InputOptional InputFlags = 1 << 1
)

func (f InputFlags) IsSeq() bool      { return f&InputSeq != 0 }
func (f InputFlags) IsOptional() bool { return f&InputOptional != 0 }

// Flow is one page or action graph.
type Flow struct {
	Name       string
	Components []*Component

	// ComponentInputs holds the flags of every input slot. Input slots and
	// local variables share the flow state's value array, inputs first.
	ComponentInputs []InputFlags
	LocalVariables  []value.Value
}

// NoErrorCatchOutput marks a component without an error output.
const NoErrorCatchOutput int16 = -1

// Component is one node of a flow.
type Component struct {
	Type       uint16
	Name       string
	Inputs     []uint16 // indexes into Flow.ComponentInputs
	Properties []Property
	Outputs    []Output

	ErrorCatchOutput int16
}

// Property is a compiled expression.
type Property struct {
	Instructions []uint16
}

// Output lists the connections leaving one output.
type Output struct {
	Connections []Connection
	IsSeqOut    bool
}

// Connection targets an input slot of another component.
type Connection struct {
	TargetComponentIndex uint16
	TargetInputIndex     uint16
}

// Component returns component i of the flow, or nil.
func (f *Flow) Component(i int) *Component {
	if i < 0 || i >= len(f.Components) {
		return nil
	}
	return f.Components[i]
}

// Property returns property i of the component, or nil.
func (c *Component) Property(i int) *Property {
	if i < 0 || i >= len(c.Properties) {
		return nil
	}
	return &c.Properties[i]
}

// SeqOut returns the index of the first sequence output, or -1.
func (c *Component) SeqOut() int {
	for i := range c.Outputs {
		if c.Outputs[i].IsSeqOut {
			return i
		}
	}
	return -1
}

// Flow returns flow i of the definition, or nil.
func (d *FlowDefinition) Flow(i int) *Flow {
	if d == nil || i < 0 || i >= len(d.Flows) {
		return nil
	}
	return d.Flows[i]
}

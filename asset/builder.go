package asset

import (
	"github.com/chazu/flowvm/value"
)

// Builder assembles a FlowDefinition in memory. It is used by tooling and
// tests to produce assets without the designer-side compiler.
//
//	b := asset.NewBuilder()
//	main := b.Flow("main")
//	start := main.Component(1001, "start").SeqOut()
//	end := main.Component(1002, "end").SeqInput()
//	main.Connect(start, 0, end, 0)
//	data, err := b.Encode(asset.CodecLZ4)
type Builder struct {
	def FlowDefinition
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Constant appends v to the constant pool and returns its index. An equal
// scalar or string already in the pool is reused.
func (b *Builder) Constant(v value.Value) int {
	for i, c := range b.def.Constants {
		if c.Type() == v.Type() && c.Unit() == v.Unit() && c.Options() == v.Options() &&
			!v.IsArray() && value.Equal(c, v) {
			return i
		}
	}
	b.def.Constants = append(b.def.Constants, v)
	return len(b.def.Constants) - 1
}

// Global declares a global variable with its default value.
func (b *Builder) Global(v value.Value) int {
	b.def.Globals = append(b.def.Globals, v)
	return len(b.def.Globals) - 1
}

// ActionName records the name of a native action.
func (b *Builder) ActionName(name string) int {
	b.def.ActionNames = append(b.def.ActionNames, name)
	return len(b.def.ActionNames) - 1
}

// Flow starts a new flow.
func (b *Builder) Flow(name string) *FlowBuilder {
	f := &Flow{Name: name}
	b.def.Flows = append(b.def.Flows, f)
	return &FlowBuilder{b: b, f: f, index: len(b.def.Flows) - 1}
}

// Definition returns the assembled definition. Later builder calls keep
// modifying it.
func (b *Builder) Definition() *FlowDefinition {
	return &b.def
}

// Assets wraps the definition as a loaded asset.
func (b *Builder) Assets() *Assets {
	return &Assets{Header: Header{Version: Version}, Definition: &b.def}
}

// Encode serializes the definition.
func (b *Builder) Encode(codec Codec) ([]byte, error) {
	return Encode(&b.def, codec)
}

// ---------------------------------------------------------------------------
// FlowBuilder
// ---------------------------------------------------------------------------

// FlowBuilder adds components to one flow.
type FlowBuilder struct {
	b     *Builder
	f     *Flow
	index int
}

// Index returns the flow index in the definition.
func (fb *FlowBuilder) Index() int { return fb.index }

// Flow returns the flow under construction.
func (fb *FlowBuilder) Flow() *Flow { return fb.f }

// Local declares a local variable with its default value. Local indexes
// start at zero independent of the input slots.
func (fb *FlowBuilder) Local(v value.Value) int {
	fb.f.LocalVariables = append(fb.f.LocalVariables, v)
	return len(fb.f.LocalVariables) - 1
}

// Component appends a component of type typ.
func (fb *FlowBuilder) Component(typ uint16, name string) *ComponentBuilder {
	c := &Component{Type: typ, Name: name, ErrorCatchOutput: NoErrorCatchOutput}
	fb.f.Components = append(fb.f.Components, c)
	return &ComponentBuilder{fb: fb, c: c, index: len(fb.f.Components) - 1}
}

// Connect wires output of from to the input-th input of to.
func (fb *FlowBuilder) Connect(from *ComponentBuilder, output int, to *ComponentBuilder, input int) {
	for len(from.c.Outputs) <= output {
		from.c.Outputs = append(from.c.Outputs, Output{})
	}
	from.c.Outputs[output].Connections = append(from.c.Outputs[output].Connections, Connection{
		TargetComponentIndex: uint16(to.index),
		TargetInputIndex:     to.c.Inputs[input],
	})
}

// ---------------------------------------------------------------------------
// ComponentBuilder
// ---------------------------------------------------------------------------

// ComponentBuilder configures one component. Methods chain.
type ComponentBuilder struct {
	fb    *FlowBuilder
	c     *Component
	index int
}

// Index returns the component index in its flow.
func (cb *ComponentBuilder) Index() int { return cb.index }

// Component returns the component under construction.
func (cb *ComponentBuilder) Component() *Component { return cb.c }

func (cb *ComponentBuilder) input(flags InputFlags) *ComponentBuilder {
	f := cb.fb.f
	f.ComponentInputs = append(f.ComponentInputs, flags)
	cb.c.Inputs = append(cb.c.Inputs, uint16(len(f.ComponentInputs)-1))
	return cb
}

// SeqInput adds a sequence input.
func (cb *ComponentBuilder) SeqInput() *ComponentBuilder { return cb.input(InputSeq) }

// DataInput adds a required data input.
func (cb *ComponentBuilder) DataInput() *ComponentBuilder { return cb.input(0) }

// OptionalInput adds an optional data input.
func (cb *ComponentBuilder) OptionalInput() *ComponentBuilder { return cb.input(InputOptional) }

// InputSlot returns the flow-wide slot of the i-th input.
func (cb *ComponentBuilder) InputSlot(i int) uint16 { return cb.c.Inputs[i] }

// Property appends a compiled expression.
func (cb *ComponentBuilder) Property(code []uint16) *ComponentBuilder {
	cb.c.Properties = append(cb.c.Properties, Property{Instructions: code})
	return cb
}

// Output appends a data output.
func (cb *ComponentBuilder) Output() *ComponentBuilder {
	cb.c.Outputs = append(cb.c.Outputs, Output{})
	return cb
}

// SeqOut appends a sequence output.
func (cb *ComponentBuilder) SeqOut() *ComponentBuilder {
	cb.c.Outputs = append(cb.c.Outputs, Output{IsSeqOut: true})
	return cb
}

// ErrorOutput appends an output that receives error messages of this
// component.
func (cb *ComponentBuilder) ErrorOutput() *ComponentBuilder {
	cb.c.Outputs = append(cb.c.Outputs, Output{})
	cb.c.ErrorCatchOutput = int16(len(cb.c.Outputs) - 1)
	return cb
}

// Package opcode implements the instruction-set opcode model (spec §4.C):
// an Opcode's predicate/source/destination operand declarations, and the
// OpcodeFactory that allocates and derives opcodes. Grounded on
// mpact/sim/decoder/opcode.{h,cc}.
package opcode

import (
	"decodergen/internal/errors"
	"decodergen/internal/expr"
)

func pascalCase(name string) string {
	out := make([]byte, 0, len(name))
	upperNext := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' || c == '-' {
			upperNext = true
			continue
		}
		if upperNext && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upperNext = false
		out = append(out, c)
	}
	return string(out)
}

// DestinationOperand is a named destination operand, optionally carrying a
// latency expression: nil means "computed at decode time" ('*' in the
// grammar), a constant expression means a fixed latency, any other
// expression means a template-parameter-dependent latency.
type DestinationOperand struct {
	name       string
	pascalName string
	isArray    bool
	expression expr.Expression
}

func NewDestinationOperand(name string, isArray bool, expression expr.Expression) *DestinationOperand {
	return &DestinationOperand{name: name, pascalName: pascalCase(name), isArray: isArray, expression: expression}
}

func (d *DestinationOperand) Name() string           { return d.name }
func (d *DestinationOperand) PascalName() string      { return d.pascalName }
func (d *DestinationOperand) IsArray() bool           { return d.isArray }
func (d *DestinationOperand) Expression() expr.Expression { return d.expression }
func (d *DestinationOperand) HasLatency() bool        { return d.expression != nil }

// GetLatency returns the operand's constant latency, or -1 if the latency
// is computed at decode time (HasLatency() is false). Any evaluation
// failure or non-foldable expression is reported as an Internal error,
// matching opcode.h's GetLatency.
func (d *DestinationOperand) GetLatency() (int, error) {
	if d.expression == nil {
		return -1, nil
	}
	v, err := d.expression.Value()
	if err != nil {
		return 0, errors.New(errors.Internal, "template expression evaluation error: %v", err)
	}
	return v.Int, nil
}

// SourceOperand is a named source operand.
type SourceOperand struct {
	Name    string
	IsArray bool
}

// OperandLocator pinpoints an operand's origin within an instruction's
// child chain: OpSpecNumber counts instruction nesting depth (0 = top
// level), Type is 'p'/'s'/'d' for predicate/source/destination, Instance is
// the index within that operand vector.
type OperandLocator struct {
	OpSpecNumber int
	Type         byte
	Instance     int
}

// FormatInfo configures how a single disassembly fragment renders one
// operand (number base, address-relative display, shift amount, etc).
type FormatInfo struct {
	OpName       string
	IsFormatted  bool
	NumberFormat string
	UseAddress   bool
	Operation    string
	DoLeftShift  bool
	ShiftAmount  int
}

// DisasmFormat is one full named disassembly format string, split into
// literal fragments interleaved with per-operand FormatInfo entries.
type DisasmFormat struct {
	Width            int
	FormatFragments  []string
	FormatInfos      []*FormatInfo
}

// DeepCopy clones a DisasmFormat, including its owned FormatInfo entries.
func (d *DisasmFormat) DeepCopy() *DisasmFormat {
	cp := &DisasmFormat{Width: d.Width}
	cp.FormatFragments = append(cp.FormatFragments, d.FormatFragments...)
	for _, info := range d.FormatInfos {
		infoCopy := *info
		cp.FormatInfos = append(cp.FormatInfos, &infoCopy)
	}
	return cp
}

// Opcode is one instruction opcode: a name, a value unique within the
// owning OpcodeFactory (used for the generated enum), and its operand
// declarations. A value of -1 marks a synthetic opcode (the factory's
// default opcode, or a bare child-opcode placeholder).
type Opcode struct {
	name            string
	pascalName      string
	value           int
	instructionSize int
	child           *Opcode
	parent          *Opcode
	predicateOpName string
	sourceOps       []SourceOperand
	destOps         []*DestinationOperand
	destOpByName    map[string]*DestinationOperand
	opLocatorMap    map[string]OperandLocator
}

func newOpcode(name string, value int) *Opcode {
	return &Opcode{
		name:         name,
		pascalName:   pascalCase(name),
		value:        value,
		destOpByName: make(map[string]*DestinationOperand),
		opLocatorMap: make(map[string]OperandLocator),
	}
}

func (o *Opcode) Name() string       { return o.name }
func (o *Opcode) PascalName() string { return o.pascalName }
func (o *Opcode) Value() int         { return o.value }

func (o *Opcode) InstructionSize() int      { return o.instructionSize }
func (o *Opcode) SetInstructionSize(v int)  { o.instructionSize = v }

func (o *Opcode) Child() *Opcode  { return o.child }
func (o *Opcode) Parent() *Opcode { return o.parent }

// AppendChild attaches op as this opcode's child opcode specification (used
// by slots whose instructions reference a sub-opcode, e.g. compressed
// instruction formats).
func (o *Opcode) AppendChild(op *Opcode) {
	o.child = op
	op.parent = o
}

func (o *Opcode) PredicateOpName() string         { return o.predicateOpName }
func (o *Opcode) SetPredicateOpName(name string)  { o.predicateOpName = name }

func (o *Opcode) SourceOps() []SourceOperand { return o.sourceOps }
func (o *Opcode) DestOps() []*DestinationOperand { return o.destOps }

func (o *Opcode) OpLocatorMap() map[string]OperandLocator { return o.opLocatorMap }

// AppendSourceOp records a source operand declaration.
func (o *Opcode) AppendSourceOp(name string, isArray bool) {
	o.sourceOps = append(o.sourceOps, SourceOperand{Name: name, IsArray: isArray})
}

// AppendDestOp records a destination operand declaration with an explicit
// latency expression (nil for decode-time-computed latency).
func (o *Opcode) AppendDestOp(name string, isArray bool, expression expr.Expression) {
	op := NewDestinationOperand(name, isArray, expression)
	o.destOps = append(o.destOps, op)
	o.destOpByName[name] = op
}

// GetDestOp returns the named destination operand, or nil if undeclared.
func (o *Opcode) GetDestOp(name string) *DestinationOperand {
	return o.destOpByName[name]
}

// ValidateDestLatencies reports whether every destination operand that
// carries a latency expression evaluates successfully and satisfies
// validator.
func (o *Opcode) ValidateDestLatencies(validator func(int) bool) bool {
	for _, destOp := range o.destOps {
		if destOp.expression == nil {
			continue
		}
		latency, err := destOp.GetLatency()
		if err != nil {
			return false
		}
		if !validator(latency) {
			return false
		}
	}
	return true
}

// Factory allocates and derives Opcodes for one instruction set, assigning
// each newly declared opcode a unique, increasing value starting at 1.
type Factory struct {
	names      map[string]bool
	opcodes    []*Opcode
	nextValue  int
}

func NewFactory() *Factory {
	return &Factory{names: make(map[string]bool), nextValue: 1}
}

// CreateOpcode allocates a fresh, named opcode, failing if the name was
// already declared in this factory.
func (f *Factory) CreateOpcode(name string) (*Opcode, error) {
	if f.names[name] {
		return nil, errors.New(errors.AlreadyExists, "opcode %q already declared", name)
	}
	f.names[name] = true
	op := newOpcode(name, f.nextValue)
	f.nextValue++
	f.opcodes = append(f.opcodes, op)
	return op, nil
}

// CreateDefaultOpcode returns the unnamed, value -1 opcode used as a slot's
// implicit "no match" placeholder.
func (f *Factory) CreateDefaultOpcode() *Opcode {
	return newOpcode("", -1)
}

// CreateChildOpcode returns a value -1 placeholder opcode sharing opcode's
// name, used to represent a nested/child instruction's opcode reference.
func (f *Factory) CreateChildOpcode(op *Opcode) *Opcode {
	if op == nil {
		return nil
	}
	return newOpcode(op.name, -1)
}

// CreateDerivedOpcode copies opcode's basic information and re-evaluates
// every destination operand's latency expression against args, producing
// an independent Opcode appropriate for one point in a template
// instantiation's Cartesian product.
func (f *Factory) CreateDerivedOpcode(op *Opcode, args expr.Args) (*Opcode, error) {
	derived := newOpcode(op.name, op.value)
	derived.instructionSize = op.instructionSize
	derived.predicateOpName = op.predicateOpName
	for k, v := range op.opLocatorMap {
		derived.opLocatorMap[k] = v
	}
	derived.sourceOps = append(derived.sourceOps, op.sourceOps...)

	for _, destOp := range op.destOps {
		if destOp.expression == nil {
			derived.AppendDestOp(destOp.name, destOp.isArray, nil)
			continue
		}
		evaluated, err := destOp.expression.Evaluate(args)
		if err != nil {
			return nil, errors.New(errors.Internal, "failed to create derived opcode for %q: %v", op.name, err)
		}
		derived.AppendDestOp(destOp.name, destOp.isArray, evaluated)
	}
	return derived, nil
}

// Opcodes returns every opcode created through CreateOpcode, in creation
// order (child/default/derived opcodes are not tracked here since they
// aren't part of the enum).
func (f *Factory) Opcodes() []*Opcode { return f.opcodes }

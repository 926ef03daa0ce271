// Package instruction implements the per-slot instruction model (spec
// §4.D): an opcode plus instance-specific disassembly, semantic-function
// code, resource specifications, and attributes, with the inheritance
// operation (CreateDerivedInstruction) that re-evaluates every
// template-dependent part against a set of instantiation arguments.
// Grounded on mpact/sim/decoder/instruction.{h,cc}.
package instruction

import (
	"decodergen/internal/errors"
	"decodergen/internal/expr"
	"decodergen/internal/opcode"
	"decodergen/internal/resource"
)

// Instruction combines a globally-unique Opcode with instance-specific
// attributes, so the same Opcode can be inherited across slots with
// per-slot overrides for disassembly, semantic function, resources, and
// attributes.
type Instruction struct {
	opcode          *opcode.Opcode
	child           *Instruction
	factory         *opcode.Factory
	resourceUse     []*resource.Reference
	resourceAcquire []*resource.Reference
	semfuncCode     string
	disasmFormats   []*opcode.DisasmFormat
	attributes      map[string]expr.Expression
}

// New creates a top-level instruction for op. factory is the opcode
// factory that owns op and is used to derive opcodes for
// CreateDerivedInstruction.
func New(op *opcode.Opcode, factory *opcode.Factory) *Instruction {
	return &Instruction{opcode: op, factory: factory, attributes: make(map[string]expr.Expression)}
}

// NewWithChild creates an instruction for op with an initial child
// instruction already attached.
func NewWithChild(op *opcode.Opcode, child *Instruction, factory *opcode.Factory) *Instruction {
	inst := New(op, factory)
	inst.child = child
	return inst
}

func (i *Instruction) Opcode() *opcode.Opcode { return i.opcode }
func (i *Instruction) Child() *Instruction    { return i.child }

// AppendChild attaches child at the end of this instruction's child chain.
func (i *Instruction) AppendChild(child *Instruction) {
	if i.child == nil {
		i.child = child
		return
	}
	i.child.AppendChild(child)
}

func (i *Instruction) AppendResourceUse(ref *resource.Reference) {
	i.resourceUse = append(i.resourceUse, ref)
}

func (i *Instruction) AppendResourceAcquire(ref *resource.Reference) {
	i.resourceAcquire = append(i.resourceAcquire, ref)
}

func (i *Instruction) ResourceUseVec() []*resource.Reference     { return i.resourceUse }
func (i *Instruction) ResourceAcquireVec() []*resource.Reference { return i.resourceAcquire }

// AddInstructionAttribute inserts or replaces the named attribute's
// expression.
func (i *Instruction) AddInstructionAttribute(name string, expression expr.Expression) {
	i.attributes[name] = expression
}

// AddDefaultInstructionAttribute records a presence-only attribute, whose
// value is the constant 1.
func (i *Instruction) AddDefaultInstructionAttribute(name string) {
	i.AddInstructionAttribute(name, expr.NewConstant(1))
}

func (i *Instruction) AttributeMap() map[string]expr.Expression { return i.attributes }

func (i *Instruction) AppendDisasmFormat(format *opcode.DisasmFormat) {
	i.disasmFormats = append(i.disasmFormats, format)
}

func (i *Instruction) DisasmFormatVec() []*opcode.DisasmFormat { return i.disasmFormats }

func (i *Instruction) SetSemfuncCodeString(code string) { i.semfuncCode = code }
func (i *Instruction) SemfuncCodeString() string        { return i.semfuncCode }

// GetDestOp searches this instruction's opcode, then its child chain, for a
// destination operand named opName.
func (i *Instruction) GetDestOp(opName string) *opcode.DestinationOperand {
	if destOp := i.opcode.GetDestOp(opName); destOp != nil {
		return destOp
	}
	if i.child != nil {
		return i.child.GetDestOp(opName)
	}
	return nil
}

// ClearDisasmFormat removes every disassembly format, used before an
// inherited instruction overrides it.
func (i *Instruction) ClearDisasmFormat() { i.disasmFormats = nil }

// ClearSemfuncCodeString clears the semantic-function code string.
func (i *Instruction) ClearSemfuncCodeString() { i.semfuncCode = "" }

// ClearResourceSpecs removes every resource use/acquire reference.
func (i *Instruction) ClearResourceSpecs() {
	i.resourceUse = nil
	i.resourceAcquire = nil
}

// ClearAttributeSpecs removes every instruction attribute.
func (i *Instruction) ClearAttributeSpecs() {
	i.attributes = make(map[string]expr.Expression)
}

// CreateDerivedInstruction is the central inheritance operation: it derives
// a new Opcode (re-evaluating destination latencies), copies disassembly
// and semantic-function code verbatim, re-evaluates every resource
// reference and attribute expression against args, and recurses down the
// child chain. Any evaluation failure anywhere aborts the whole derivation.
func (i *Instruction) CreateDerivedInstruction(args expr.Args) (*Instruction, error) {
	derivedOp, err := i.factory.CreateDerivedOpcode(i.opcode, args)
	if err != nil {
		return nil, err
	}

	newInst := New(derivedOp, i.factory)

	for _, format := range i.disasmFormats {
		newInst.AppendDisasmFormat(format.DeepCopy())
	}
	newInst.SetSemfuncCodeString(i.semfuncCode)

	for _, use := range i.resourceUse {
		derivedRef, err := use.Evaluate(args)
		if err != nil {
			return nil, errors.New(errors.Internal, "failed to create derived instruction for %q: %v", i.opcode.Name(), err)
		}
		newInst.AppendResourceUse(derivedRef)
	}
	for _, acquire := range i.resourceAcquire {
		derivedRef, err := acquire.Evaluate(args)
		if err != nil {
			return nil, errors.New(errors.Internal, "failed to create derived instruction for %q: %v", i.opcode.Name(), err)
		}
		newInst.AppendResourceAcquire(derivedRef)
	}

	for name, attrExpr := range i.attributes {
		evaluated, err := attrExpr.Evaluate(args)
		if err != nil {
			return nil, errors.New(errors.Internal, "failed to create derived instruction for %q", i.opcode.Name())
		}
		newInst.AddInstructionAttribute(name, evaluated)
	}

	if i.child == nil {
		return newInst, nil
	}
	derivedChild, err := i.child.CreateDerivedInstruction(args)
	if err != nil {
		return nil, err
	}
	newInst.AppendChild(derivedChild)
	return newInst, nil
}

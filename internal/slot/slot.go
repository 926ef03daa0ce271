// Package slot implements the instruction-slot model (spec §4.E): a named
// group of opcodes reachable from one decode point, with tree-only
// (forest) inheritance between slots, template formals and constants scoped
// to the slot, and per-instruction resource declarations. Grounded on
// mpact/sim/decoder/slot.{h,cc}.
package slot

import (
	"decodergen/internal/errors"
	"decodergen/internal/expr"
	"decodergen/internal/instruction"
	"decodergen/internal/opcode"
	"decodergen/internal/resource"
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

// BaseSlot records one parent slot in a derived slot's base list, together
// with the template arguments used to instantiate it (nil for a
// non-templated base).
type BaseSlot struct {
	Slot      *Slot
	Arguments expr.Args
}

// Slot is a named collection of instructions (and their shared opcodes)
// reachable from one decode point, with the operand/resource/attribute
// plumbing needed to emit a generated decoder for it.
type Slot struct {
	name       string
	pascalName string

	isTemplated bool
	isMarked    bool
	isReferenced bool

	defaultInstructionSize int
	minInstructionSize     int
	defaultLatency         expr.Expression
	defaultInstruction     *instruction.Instruction

	instructionMap map[string]*instruction.Instruction
	instructionOrder []string

	baseSlots      []BaseSlot
	predecessorSet map[*Slot]bool

	templateParameters   []*expr.Formal
	templateParameterMap map[string]int

	constantMap map[string]expr.Expression

	resourceFactory *resource.Factory
	resources       map[string]*resource.Resource

	attributeMap map[string]expr.Expression

	opcodeFactory *opcode.Factory
}

const maxInt = int(^uint(0) >> 1)

// New creates a slot named name, sharing opcodeFactory with every other
// slot in the same instruction set so that opcode values stay globally
// unique, and resourceFactory so resource identity is shared across slots.
func New(name string, opcodeFactory *opcode.Factory, resourceFactory *resource.Factory, isTemplated bool) *Slot {
	return &Slot{
		name:                 name,
		pascalName:           pascalCase(name),
		isTemplated:          isTemplated,
		minInstructionSize:   maxInt,
		defaultInstructionSize: 1,
		instructionMap:       make(map[string]*instruction.Instruction),
		predecessorSet:       make(map[*Slot]bool),
		templateParameterMap: make(map[string]int),
		constantMap:          make(map[string]expr.Expression),
		resourceFactory:      resourceFactory,
		resources:            make(map[string]*resource.Resource),
		attributeMap:         make(map[string]expr.Expression),
		opcodeFactory:        opcodeFactory,
	}
}

func (s *Slot) Name() string       { return s.name }
func (s *Slot) PascalName() string { return s.pascalName }
func (s *Slot) IsTemplated() bool  { return s.isTemplated }

func (s *Slot) IsMarked() bool        { return s.isMarked }
func (s *Slot) SetIsMarked(v bool)    { s.isMarked = v }
func (s *Slot) IsReferenced() bool    { return s.isReferenced }
func (s *Slot) SetIsReferenced(v bool) { s.isReferenced = v }

func (s *Slot) DefaultInstructionSize() int     { return s.defaultInstructionSize }
func (s *Slot) SetDefaultInstructionSize(v int) { s.defaultInstructionSize = v }

func (s *Slot) DefaultLatency() expr.Expression { return s.defaultLatency }

// SetDefaultLatency replaces the slot's default latency expression,
// discarding any previous one.
func (s *Slot) SetDefaultLatency(e expr.Expression) { s.defaultLatency = e }

func (s *Slot) DefaultInstruction() *instruction.Instruction     { return s.defaultInstruction }
func (s *Slot) SetDefaultInstruction(i *instruction.Instruction) { s.defaultInstruction = i }

func (s *Slot) MinInstructionSize() int     { return s.minInstructionSize }
func (s *Slot) SetMinInstructionSize(v int) { s.minInstructionSize = v }

func (s *Slot) BaseSlots() []BaseSlot { return s.baseSlots }

func (s *Slot) InstructionMap() map[string]*instruction.Instruction { return s.instructionMap }

func (s *Slot) AttributeMap() map[string]expr.Expression { return s.attributeMap }

// AddInstructionAttribute records a slot-wide attribute in the slot's
// AttributeMap. The attribute setters emitted for this slot read only each
// instruction's own attribute map, so these entries are not emitted.
func (s *Slot) AddInstructionAttribute(name string, expression expr.Expression) {
	s.attributeMap[name] = expression
}

// AppendInstruction adds a freshly declared instruction to the slot, keyed
// by its opcode name. When the slot is not templated its destination
// latencies must already be resolved to non-negative values.
func (s *Slot) AppendInstruction(inst *instruction.Instruction) error {
	if !s.isTemplated {
		valid := inst.Opcode().ValidateDestLatencies(func(l int) bool { return l >= 0 })
		if !valid {
			return errors.New(errors.Internal, "invalid latency for opcode %q", inst.Opcode().Name())
		}
	}
	name := inst.Opcode().Name()
	if _, ok := s.instructionMap[name]; ok {
		return errors.New(errors.AlreadyExists, "opcode %q already added to slot %q", name, s.name)
	}
	s.instructionMap[name] = inst
	s.instructionOrder = append(s.instructionOrder, name)
	return nil
}

// AppendInheritedInstruction derives inst against args (a base slot's
// instruction being pulled into this slot) and appends the result, applying
// the same latency validation as AppendInstruction.
func (s *Slot) AppendInheritedInstruction(inst *instruction.Instruction, args expr.Args) error {
	name := inst.Opcode().Name()
	if _, ok := s.instructionMap[name]; ok {
		return errors.New(errors.AlreadyExists, "instruction already added: %s", name)
	}
	derived, err := inst.CreateDerivedInstruction(args)
	if err != nil {
		return err
	}
	if !s.isTemplated {
		valid := derived.Opcode().ValidateDestLatencies(func(l int) bool { return l >= 0 })
		if !valid {
			return errors.New(errors.Internal, "invalid latency for opcode %q", name)
		}
	}
	s.instructionMap[name] = derived
	s.instructionOrder = append(s.instructionOrder, name)
	return nil
}

func (s *Slot) HasInstruction(opcodeName string) bool {
	_, ok := s.instructionMap[opcodeName]
	return ok
}

// InstructionOrder returns opcode names in declaration order, the order
// code emission walks the instruction map in.
func (s *Slot) InstructionOrder() []string { return s.instructionOrder }

// DeleteInstruction removes the named opcode's instruction from the slot,
// implementing the "delete" step of the visitor's override/delete
// ordering contract: admit base instructions, apply overrides, then delete.
func (s *Slot) DeleteInstruction(opcodeName string) {
	delete(s.instructionMap, opcodeName)
	for i, name := range s.instructionOrder {
		if name == opcodeName {
			s.instructionOrder = append(s.instructionOrder[:i], s.instructionOrder[i+1:]...)
			break
		}
	}
}

// CheckPredecessors reports an error if base is already reachable from s
// through inheritance, either directly or via any predecessor of s or of
// base — only tree-shaped (forest) slot inheritance is supported, so any
// would-be diamond or cycle is rejected here.
func (s *Slot) CheckPredecessors(base *Slot) error {
	if base == s {
		return errors.New(errors.AlreadyExists, "slot %q would inherit from itself", s.name)
	}
	if s.predecessorSet[base] {
		return errors.New(errors.AlreadyExists, "%q is already in the predecessor set of %q", base.name, s.name)
	}
	for pred := range s.predecessorSet {
		if err := pred.CheckPredecessors(base); err != nil {
			return err
		}
	}
	for basePred := range base.predecessorSet {
		if err := s.CheckPredecessors(basePred); err != nil {
			return err
		}
	}
	return nil
}

// AddBase adds base as a non-templated parent of s.
func (s *Slot) AddBase(base *Slot) error {
	if err := s.CheckPredecessors(base); err != nil {
		return err
	}
	s.predecessorSet[base] = true
	s.baseSlots = append(s.baseSlots, BaseSlot{Slot: base})
	return nil
}

// AddTemplatedBase adds base as a parent of s instantiated with arguments.
func (s *Slot) AddTemplatedBase(base *Slot, arguments expr.Args) error {
	if err := s.CheckPredecessors(base); err != nil {
		return err
	}
	s.predecessorSet[base] = true
	s.baseSlots = append(s.baseSlots, BaseSlot{Slot: base, Arguments: arguments})
	return nil
}

// AddConstant declares a slot-scoped named constant expression. The type
// parameter is accepted for grammar fidelity but ignored, since every slot
// constant is currently an int.
func (s *Slot) AddConstant(ident string, typ string, expression expr.Expression) error {
	_ = typ
	if _, ok := s.templateParameterMap[ident]; ok {
		return errors.New(errors.AlreadyExists, "slot constant %q conflicts with template formal with same name", ident)
	}
	if _, ok := s.constantMap[ident]; ok {
		return errors.New(errors.AlreadyExists, "redefinition of slot constant %q", ident)
	}
	s.constantMap[ident] = expression
	return nil
}

func (s *Slot) GetConstExpression(ident string) expr.Expression { return s.constantMap[ident] }

// AddTemplateFormal declares a new template formal parameter, assigning it
// the next position in the slot's parameter list.
func (s *Slot) AddTemplateFormal(parName string) error {
	if _, ok := s.templateParameterMap[parName]; ok {
		return errors.New(errors.Internal, "duplicate parameter name %q", parName)
	}
	idx := len(s.templateParameters)
	s.templateParameters = append(s.templateParameters, &expr.Formal{Name: parName, Position: idx})
	s.templateParameterMap[parName] = idx
	return nil
}

func (s *Slot) GetTemplateFormal(name string) *expr.Formal {
	idx, ok := s.templateParameterMap[name]
	if !ok {
		return nil
	}
	return s.templateParameters[idx]
}

// GetOrInsertResource returns the named resource, creating it in the
// shared resource factory on first reference from this slot.
func (s *Slot) GetOrInsertResource(name string) *resource.Resource {
	if res, ok := s.resources[name]; ok {
		return res
	}
	res := s.resourceFactory.GetOrInsert(name)
	s.resources[name] = res
	return res
}

// Package isa implements the top-level instruction-set model (spec §4.F):
// InstructionSet ties together every slot and bundle declared for one
// architecture, computes their dependency-respecting emission order,
// classifies resources, and generates the enum classes the rest of the
// generated decoder's code relies on (OpcodeEnum, SlotEnum, the operand
// enums, the resource enums, AttributeEnum). Grounded on
// mpact/sim/decoder/instruction_set.{h,cc}.
package isa

import (
	"fmt"
	"sort"
	"strings"

	"decodergen/internal/errors"
	"decodergen/internal/expr"
	"decodergen/internal/opcode"
	"decodergen/internal/resource"
	"decodergen/internal/slot"
)

// attributeNames is shared across every InstructionSet generated in one
// run, mirroring the original's process-global static btree_set: attribute
// names are a single flat namespace regardless of which instruction set
// declared them first.
var attributeNames = map[string]bool{}

// AddAttributeName records name in the shared attribute-name set used by
// GenerateEnums to build AttributeEnum.
func AddAttributeName(name string) { attributeNames[name] = true }

// ResetAttributeNames clears the shared attribute-name set; only the test
// suite and a fresh top-level build invocation should call this.
func ResetAttributeNames() { attributeNames = map[string]bool{} }

// StringPair is the generated header/source text pair GenerateEnums
// produces.
type StringPair struct {
	HeaderOutput string
	SourceOutput string
}

// InstructionSet is the root container for one architecture's decode
// declaration: every slot and bundle it owns, plus the opcode and resource
// factories shared across all of them.
type InstructionSet struct {
	name       string
	pascalName string

	opcodeFactory   *opcode.Factory
	resourceFactory *resource.Factory

	bundle    *Bundle
	bundleMap map[string]*Bundle
	slotMap   map[string]*slot.Slot

	slotOrder   []*slot.Slot
	bundleOrder []*Bundle

	namespaces []string

	constantMap map[string]expr.Expression
}

func New(name string) *InstructionSet {
	return &InstructionSet{
		name:            name,
		pascalName:      pascalCase(name),
		opcodeFactory:   opcode.NewFactory(),
		resourceFactory: resource.NewFactory(),
		bundleMap:       make(map[string]*Bundle),
		slotMap:         make(map[string]*slot.Slot),
		constantMap:     make(map[string]expr.Expression),
	}
}

// AddConstant declares an instruction-set-scoped named constant, the
// outermost level of the name resolution chain above a slot's own
// constants (spec §4.G): a name unresolved within a slot falls back to the
// file's global constants and finally to this map.
func (is *InstructionSet) AddConstant(ident string, expression expr.Expression) error {
	if _, ok := is.constantMap[ident]; ok {
		return errors.New(errors.AlreadyExists, "redefinition of instruction set constant %q", ident)
	}
	is.constantMap[ident] = expression
	return nil
}

func (is *InstructionSet) GetConstExpression(ident string) expr.Expression { return is.constantMap[ident] }

func (is *InstructionSet) Name() string                   { return is.name }
func (is *InstructionSet) PascalName() string              { return is.pascalName }
func (is *InstructionSet) OpcodeFactory() *opcode.Factory   { return is.opcodeFactory }
func (is *InstructionSet) ResourceFactory() *resource.Factory { return is.resourceFactory }

func (is *InstructionSet) SetBundle(b *Bundle) { is.bundle = b }
func (is *InstructionSet) TopBundle() *Bundle  { return is.bundle }

func (is *InstructionSet) PrependNamespace(name string) {
	is.namespaces = append([]string{name}, is.namespaces...)
}
func (is *InstructionSet) Namespaces() []string { return is.namespaces }

func (is *InstructionSet) AddBundle(b *Bundle) { is.bundleMap[b.Name()] = b }
func (is *InstructionSet) AddSlot(s *slot.Slot) { is.slotMap[s.Name()] = s }

func (is *InstructionSet) GetBundle(name string) *Bundle { return is.bundleMap[name] }
func (is *InstructionSet) GetSlot(name string) *slot.Slot { return is.slotMap[name] }

func (is *InstructionSet) BundleMap() map[string]*Bundle { return is.bundleMap }
func (is *InstructionSet) SlotMap() map[string]*slot.Slot { return is.slotMap }

func (is *InstructionSet) SlotOrder() []*slot.Slot  { return is.slotOrder }
func (is *InstructionSet) BundleOrder() []*Bundle    { return is.bundleOrder }

// ComputeSlotAndBundleOrders walks every declared slot's and bundle's
// dependency graph and records a post-order emission order: a slot's (or
// bundle's) bases (or sub-bundles) always precede it, since the generated
// code for a derived slot references its base slot's generated class.
func (is *InstructionSet) ComputeSlotAndBundleOrders() {
	for _, s := range is.slotMap {
		if s.IsMarked() {
			continue
		}
		is.addToSlotOrder(s)
	}
	for _, b := range is.bundleMap {
		if b.IsMarked() {
			continue
		}
		is.addToBundleOrder(b)
	}
}

func (is *InstructionSet) addToSlotOrder(s *slot.Slot) {
	if s.IsMarked() {
		return
	}
	for _, base := range s.BaseSlots() {
		is.addToSlotOrder(base.Slot)
	}
	s.SetIsMarked(true)
	is.slotOrder = append(is.slotOrder, s)
}

func (is *InstructionSet) addToBundleOrder(b *Bundle) {
	if b.IsMarked() {
		return
	}
	for _, name := range b.BundleNames() {
		if sub, ok := is.bundleMap[name]; ok {
			is.addToBundleOrder(sub)
		}
	}
	b.SetIsMarked(true)
	is.bundleOrder = append(is.bundleOrder, b)
}

// AnalyzeResourceUse classifies every resource referenced by an Acquire
// spec across every slot's instructions as simple or complex, exactly as
// resource.AnalyzeResourceUse does for one instruction's references —
// scoped here to the whole instruction set, matching the original's own
// scoping (only acquire references drive the classification; use
// references are informational only).
func (is *InstructionSet) AnalyzeResourceUse() error {
	var refs []*resource.Reference
	for _, s := range is.slotOrder {
		for _, inst := range s.InstructionMap() {
			refs = append(refs, inst.ResourceAcquireVec()...)
		}
	}
	return resource.AnalyzeResourceUse(refs)
}

// sortedUnique returns names sorted and de-duplicated.
func sortedUnique(names []string) []string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return dedup(sorted)
}

// enumBlock emits an explicit-value enum (kNone = 0, ..., kPastMaxValue =
// N), the shape used by every enum in GenerateEnums, including SlotEnum.
func enumBlock(b *strings.Builder, enumName string, names []string) {
	fmt.Fprintf(b, "  enum class %s {\n    kNone = 0,\n", enumName)
	unique := sortedUnique(names)
	for i, name := range unique {
		fmt.Fprintf(b, "    k%s = %d,\n", name, i+1)
	}
	fmt.Fprintf(b, "    kPastMaxValue = %d,\n  };\n\n", len(unique)+1)
}

// GenerateEnums emits the header/source enum pair for this instruction
// set: SlotEnum, the five operand enums (PredOpEnum, SourceOpEnum,
// ListSourceOpEnum, DestOpEnum, ListDestOpEnum), OpcodeEnum with its name
// table, the three resource enums, and AttributeEnum. Every enum ends with
// a kPastMaxValue sentinel sized to the number of distinct names emitted.
func (is *InstructionSet) GenerateEnums() StringPair {
	var h, cc strings.Builder

	var slotNames []string
	for _, s := range is.slotOrder {
		if s.IsReferenced() {
			slotNames = append(slotNames, s.PascalName())
		}
	}
	enumBlock(&h, "SlotEnum", slotNames)

	var predNames, srcNames, listSrcNames, destNames, listDestNames []string
	for _, s := range is.slotOrder {
		if !s.IsReferenced() {
			continue
		}
		for _, inst := range s.InstructionMap() {
			for cur := inst; cur != nil; cur = cur.Child() {
				op := cur.Opcode()
				if op.PredicateOpName() != "" {
					predNames = append(predNames, pascalCase(op.PredicateOpName()))
				}
				for _, src := range op.SourceOps() {
					if src.IsArray {
						listSrcNames = append(listSrcNames, pascalCase(src.Name))
					} else {
						srcNames = append(srcNames, pascalCase(src.Name))
					}
				}
				for _, dst := range op.DestOps() {
					if dst.IsArray() {
						listDestNames = append(listDestNames, dst.PascalName())
					} else {
						destNames = append(destNames, dst.PascalName())
					}
				}
			}
		}
	}
	enumBlock(&h, "PredOpEnum", predNames)
	enumBlock(&h, "SourceOpEnum", srcNames)
	enumBlock(&h, "ListSourceOpEnum", listSrcNames)
	enumBlock(&h, "DestOpEnum", destNames)
	enumBlock(&h, "ListDestOpEnum", listDestNames)

	var opcodeNames []string
	for _, op := range is.opcodeFactory.Opcodes() {
		opcodeNames = append(opcodeNames, op.PascalName())
	}
	sortedOpcodes := append([]string(nil), opcodeNames...)
	sort.Strings(sortedOpcodes)
	uniqueOpcodes := dedup(sortedOpcodes)

	h.WriteString("  enum class OpcodeEnum {\n    kNone = 0,\n")
	for i, name := range uniqueOpcodes {
		fmt.Fprintf(&h, "    k%s = %d,\n", name, i+1)
	}
	fmt.Fprintf(&h, "    kPastMaxValue = %d\n  };\n\n", len(uniqueOpcodes)+1)

	cc.WriteString("const char *kOpcodeNames[static_cast<int>(OpcodeEnum::kPastMaxValue)] = {\n  kNoneName,\n")
	h.WriteString("  constexpr char kNoneName[] = \"none\";\n")
	for _, name := range uniqueOpcodes {
		fmt.Fprintf(&h, "  constexpr char k%sName[] = \"%s\";\n", name, name)
		fmt.Fprintf(&cc, "  k%sName,\n", name)
	}
	cc.WriteString("};\n\n")
	h.WriteString("  extern const char *kOpcodeNames[static_cast<int>(\n      OpcodeEnum::kPastMaxValue)];\n\n")

	var simpleNames, complexNames, listComplexNames []string
	for _, res := range is.resourceFactory.All() {
		switch {
		case res.IsSimple:
			simpleNames = append(simpleNames, res.PascalName)
		case res.IsMultiValued:
			listComplexNames = append(listComplexNames, res.PascalName)
		default:
			complexNames = append(complexNames, res.PascalName)
		}
	}
	enumBlock(&h, "SimpleResourceEnum", simpleNames)
	enumBlock(&h, "ComplexResourceEnum", complexNames)
	enumBlock(&h, "ListComplexResourceEnum", listComplexNames)

	var attrNames []string
	for name := range attributeNames {
		attrNames = append(attrNames, pascalCase(name))
	}
	sort.Strings(attrNames)
	h.WriteString("  enum class AttributeEnum {\n")
	for i, name := range attrNames {
		fmt.Fprintf(&h, "    k%s = %d,\n", name, i)
	}
	fmt.Fprintf(&h, "    kPastMaxValue = %d\n  };\n\n", len(attrNames))

	return StringPair{HeaderOutput: h.String(), SourceOutput: cc.String()}
}

func dedup(sorted []string) []string {
	out := sorted[:0:0]
	var prev string
	for i, s := range sorted {
		if i > 0 && s == prev {
			continue
		}
		out = append(out, s)
		prev = s
	}
	return out
}

// GenerateClassDeclarations emits the generated header text for every
// referenced slot and bundle, in dependency order, plus a leading include
// guard comment naming the opcode enum header they depend on.
func (is *InstructionSet) GenerateClassDeclarations(fileName, opcodeFileName, encodingType string) (string, error) {
	if len(is.slotOrder) == 0 && len(is.bundleOrder) == 0 {
		return "", errors.New(errors.Internal, "ComputeSlotAndBundleOrders must run before class generation")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "// Generated decoder declarations for %s, do not edit.\n", is.name)
	fmt.Fprintf(&b, "#include \"%s\"\n\n", opcodeFileName)
	for _, s := range is.slotOrder {
		b.WriteString(s.GenerateClassDeclaration(encodingType))
	}
	for _, bd := range is.bundleOrder {
		b.WriteString(bd.GenerateClassDeclaration(encodingType))
	}
	return b.String(), nil
}

// GenerateClassDefinitions emits the generated source text for every
// referenced slot and bundle, in dependency order.
func (is *InstructionSet) GenerateClassDefinitions(includeFile, encodingType string) (string, error) {
	if len(is.slotOrder) == 0 && len(is.bundleOrder) == 0 {
		return "", errors.New(errors.Internal, "ComputeSlotAndBundleOrders must run before class generation")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "#include \"%s\"\n\n", includeFile)
	for _, s := range is.slotOrder {
		b.WriteString(s.GenerateClassDefinition(encodingType))
	}
	for _, bd := range is.bundleOrder {
		b.WriteString(bd.GenerateClassDefinition(encodingType))
	}
	return b.String(), nil
}

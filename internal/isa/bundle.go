package isa

import (
	"fmt"
	"strings"
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

// SlotUse records one slot's membership in a bundle, together with the
// instance numbers selected (empty means the single instance, decoded as
// instance 0).
type SlotUse struct {
	SlotName    string
	InstanceVec []int
}

// Bundle is a named grouping of slots and/or sub-bundles that issue
// together. Bundle describes the shape of the grouping, not any one
// decoded instance of it.
type Bundle struct {
	name         string
	pascalName   string
	instructionSet *InstructionSet
	slotUses     []SlotUse
	bundleNames  []string
	isMarked     bool
}

func NewBundle(name string, instructionSet *InstructionSet) *Bundle {
	return &Bundle{name: name, pascalName: pascalCase(name), instructionSet: instructionSet}
}

func (b *Bundle) Name() string       { return b.name }
func (b *Bundle) PascalName() string { return b.pascalName }

func (b *Bundle) AppendSlot(slotName string, instanceVec []int) {
	b.slotUses = append(b.slotUses, SlotUse{SlotName: slotName, InstanceVec: instanceVec})
}

func (b *Bundle) AppendBundleName(bundleName string) {
	b.bundleNames = append(b.bundleNames, bundleName)
}

func (b *Bundle) SlotUses() []SlotUse      { return b.slotUses }
func (b *Bundle) BundleNames() []string    { return b.bundleNames }
func (b *Bundle) IsMarked() bool           { return b.isMarked }
func (b *Bundle) SetIsMarked(v bool)       { b.isMarked = v }
func (b *Bundle) InstructionSet() *InstructionSet { return b.instructionSet }

// GenerateClassDeclaration emits the generated decoder class's public
// header declaration: one accessor per contained sub-bundle/slot decoder.
func (b *Bundle) GenerateClassDeclaration(encodingType string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "class %sDecoder {\n public:\n  explicit %sDecoder(ArchState *arch_state);\n  virtual ~%sDecoder() = default;\n",
		b.pascalName, b.pascalName, b.pascalName)
	fmt.Fprintf(&sb, "  virtual Instruction *Decode(uint64_t address, %s *encoding);\n", encodingType)
	sb.WriteString("  virtual SemFunc GetSemanticFunction() = 0;\n\n")
	for _, name := range b.bundleNames {
		fmt.Fprintf(&sb, "  %sDecoder *%s_decoder() { return %s_decoder_.get(); }\n", pascalCase(name), name, name)
	}
	for _, use := range b.slotUses {
		fmt.Fprintf(&sb, "  %sSlot *%s_decoder() { return %s_decoder_.get(); }\n", pascalCase(use.SlotName), use.SlotName, use.SlotName)
	}
	sb.WriteString(" private:\n")
	for _, name := range b.bundleNames {
		fmt.Fprintf(&sb, "  std::unique_ptr<%sDecoder> %s_decoder_;\n", pascalCase(name), name)
	}
	for _, use := range b.slotUses {
		fmt.Fprintf(&sb, "  std::unique_ptr<%sSlot> %s_decoder_;\n", pascalCase(use.SlotName), use.SlotName)
	}
	sb.WriteString("  ArchState *arch_state_;\n};\n\n")
	return sb.String()
}

// GenerateClassDefinition emits the constructor and Decode method body for
// the generated decoder class.
func (b *Bundle) GenerateClassDefinition(encodingType string) string {
	className := b.pascalName + "Decoder"
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s::%s(ArchState *arch_state) :\n  arch_state_(arch_state)\n{\n", className, className)
	for _, name := range b.bundleNames {
		fmt.Fprintf(&sb, "  %s_decoder_ = std::make_unique<%sDecoder>(arch_state_);\n", name, pascalCase(name))
	}
	for _, use := range b.slotUses {
		fmt.Fprintf(&sb, "  %s_decoder_ = std::make_unique<%sSlot>(arch_state_);\n", use.SlotName, pascalCase(use.SlotName))
	}
	sb.WriteString("}\n")
	fmt.Fprintf(&sb, "Instruction *%s::Decode(uint64_t address, %s *encoding) {\n", className, encodingType)
	sb.WriteString("  Instruction *inst = new Instruction(address, arch_state_);\n  Instruction *tmp_inst;\n")
	for _, name := range b.bundleNames {
		fmt.Fprintf(&sb, "  tmp_inst = %s_decoder_->Decode(address, encoding);\n  inst->AppendChild(tmp_inst);\n", name)
	}
	for _, use := range b.slotUses {
		if len(use.InstanceVec) == 0 {
			fmt.Fprintf(&sb, "  tmp_inst = %s_decoder_->Decode(address, encoding, SlotEnum::k%s, 0);\n  inst->Append(tmp_inst);\n", use.SlotName, pascalCase(use.SlotName))
			continue
		}
		for _, index := range use.InstanceVec {
			fmt.Fprintf(&sb, "  tmp_inst = %s_decoder_->Decode(address, encoding, SlotEnum::k%s, %d);\n  inst->Append(tmp_inst);\n", use.SlotName, pascalCase(use.SlotName), index)
		}
	}
	sb.WriteString("  inst->set_semantic_function(this->GetSemanticFunction());\n  return inst;\n}\n")
	return sb.String()
}

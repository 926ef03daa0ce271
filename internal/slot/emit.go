package slot

import (
	"fmt"
	"strings"

	"decodergen/internal/instruction"
	"decodergen/internal/opcode"
	"decodergen/internal/resource"
)

// translateLocator renders an OperandLocator as a chain of accessor calls
// starting from "inst", e.g. "inst->child()->Source(2)".
func translateLocator(loc opcode.OperandLocator) (string, error) {
	var b strings.Builder
	b.WriteString("inst->")
	if loc.OpSpecNumber > 0 {
		b.WriteString("child()->")
	}
	for i := 1; i < loc.OpSpecNumber; i++ {
		b.WriteString("next()->")
	}
	switch loc.Type {
	case 'p':
		b.WriteString("Predicate()")
	case 's':
		fmt.Fprintf(&b, "Source(%d)", loc.Instance)
	case 'd':
		fmt.Fprintf(&b, "Destination(%d)", loc.Instance)
	default:
		return "", fmt.Errorf("unknown locator type %q", loc.Type)
	}
	return b.String(), nil
}

// expandExpression renders the expression a FormatInfo describes, given the
// already-translated locator string for its operand (empty for the
// address-only case).
func expandExpression(format *opcode.FormatInfo, locator string) string {
	shiftOp := ">>"
	if format.DoLeftShift {
		shiftOp = "<<"
	}
	if format.UseAddress && format.Operation == "" {
		return "(inst->address())"
	}
	if format.Operation == "" {
		if locator == "" {
			return "#error missing field locator"
		}
		return fmt.Sprintf("(%s->AsInt64(0) %s %d)", locator, shiftOp, format.ShiftAmount)
	}
	if locator == "" {
		return "#error missing field locator"
	}
	addrTerm := "0 "
	if format.UseAddress {
		addrTerm = "inst->address() "
	}
	return fmt.Sprintf("(%s%s(%s->AsInt64(0) %s %d))", addrTerm, format.Operation, locator, shiftOp, format.ShiftAmount)
}

// GenerateAttributeSetter emits the lambda body that materializes an
// instruction's attribute values into the generated AttributeEnum-indexed
// array. Expressions that fail to evaluate to a constant int are reported
// inline as an embedded #error so the generated file still compiles enough
// to show the offending instruction.
func (s *Slot) GenerateAttributeSetter(inst *instruction.Instruction) string {
	var b strings.Builder
	b.WriteString("  info->attribute_setter = [](Instruction *inst) {\n")
	b.WriteString("    int size = static_cast<int>(AttributeEnum::kPastMaxValue);\n")
	b.WriteString("    int *attrs = new int[size];\n")
	for name, expression := range inst.AttributeMap() {
		v, err := expression.Value()
		if err != nil {
			fmt.Fprintf(&b, "    #error Expression for '%s' has no constant value\n", name)
			continue
		}
		fmt.Fprintf(&b, "    attrs[static_cast<int>(AttributeEnum::k%s)] = %d;\n", pascalCase(name), v.Int)
	}
	b.WriteString("    inst->SetAttributes(absl::Span<int>(attrs, size));\n  };\n\n")
	return b.String()
}

// GenerateDisassemblySetter emits the lambda body that builds an
// instruction's disassembly string out of its literal fragments and
// operand-derived values.
func (s *Slot) GenerateDisassemblySetter(inst *instruction.Instruction) string {
	if len(inst.DisasmFormatVec()) == 0 {
		return "  info->disassembly_setter = [](Instruction *) {};\n"
	}
	var b strings.Builder
	b.WriteString("  info->disassembly_setter = [](Instruction *inst) {\n")
	b.WriteString("    inst->SetDisassemblyString(absl::StrCat(\n")
	outerSep := ""
	for _, disasmFmt := range inst.DisasmFormatVec() {
		if outerSep != "" {
			b.WriteString(outerSep)
		}
		wrapFormat := disasmFmt.Width != 0
		if wrapFormat {
			fmt.Fprintf(&b, "      absl::StrFormat(\"%%%ds\",\n", disasmFmt.Width)
		}
		b.WriteString("      absl::StrCat(\n")
		innerSep := ""
		index := 0
		for _, frag := range disasmFmt.FormatFragments {
			nextSep := ""
			if frag != "" {
				fmt.Fprintf(&b, "%s        \"%s\"", innerSep, frag)
				nextSep = ", "
			}
			if index < len(disasmFmt.FormatInfos) {
				info := disasmFmt.FormatInfos[index]
				if info.OpName == "" {
					if !info.IsFormatted {
						b.WriteString("\n#error Missing locator information")
					} else {
						fmt.Fprintf(&b, "%sabsl::StrFormat(\"%s\", %s)", nextSep, info.NumberFormat, expandExpression(info, ""))
					}
				} else {
					loc, ok := inst.Opcode().OpLocatorMap()[info.OpName]
					if !ok {
						fmt.Fprintf(&b, "\n#error %s not found in instruction opcodes\n", info.OpName)
					} else if locStr, err := translateLocator(loc); err != nil {
						fmt.Fprintf(&b, "\n#error %s\n", err)
					} else if !info.IsFormatted {
						fmt.Fprintf(&b, "%s%s->AsString()", nextSep, locStr)
					} else {
						fmt.Fprintf(&b, "%sabsl::StrFormat(\"%s\", %s)", nextSep, info.NumberFormat, expandExpression(info, locStr))
					}
				}
			}
			index++
			if innerSep == "" {
				innerSep = ",\n"
			}
		}
		b.WriteString(")")
		if wrapFormat {
			b.WriteString(")")
		}
		b.WriteString("\n")
		if outerSep == "" {
			outerSep = ",\n"
		}
	}
	b.WriteString("    ));\n  };\n\n")
	return b.String()
}

// GenerateResourceSetter emits the lambda body that requests an
// instruction's held and acquired simple/complex resource operands from the
// encoding at decode time.
func (s *Slot) GenerateResourceSetter(inst *instruction.Instruction, encodingType string) string {
	var b strings.Builder
	opcodeEnum := "OpcodeEnum::k" + inst.Opcode().PascalName()
	fmt.Fprintf(&b, "  info->resource_setter = [](Instruction *inst, %s *enc, SlotEnum slot, int entry) {\n", encodingType)
	if len(inst.ResourceUseVec()) > 0 || len(inst.ResourceAcquireVec()) > 0 {
		b.WriteString("    ResourceOperandInterface *res_op;\n")
	}

	var simpleUse, complexUse, simpleAcquire, complexAcquire []*resource.Reference
	for _, ref := range inst.ResourceUseVec() {
		if ref.Resource.IsSimple {
			simpleUse = append(simpleUse, ref)
		} else {
			complexUse = append(complexUse, ref)
		}
	}
	for _, ref := range inst.ResourceAcquireVec() {
		if ref.Resource.IsSimple {
			simpleAcquire = append(simpleAcquire, ref)
		} else {
			complexAcquire = append(complexAcquire, ref)
		}
	}

	if len(simpleUse) > 0 {
		b.WriteString("    std::vector<SimpleResourceEnum> hold_vec = {")
		for _, ref := range simpleUse {
			fmt.Fprintf(&b, "\n        SimpleResourceEnum::k%s,", ref.Resource.PascalName)
		}
		fmt.Fprintf(&b, "};\n\n    res_op = enc->GetSimpleResourceOperand(slot, entry, %s, hold_vec, -1);\n", opcodeEnum)
		b.WriteString("    if (res_op != nullptr) {\n      inst->AppendResourceHold(res_op);\n    }\n")
	}
	for _, ref := range complexUse {
		beginVal, beginErr := ref.Begin.Value()
		endVal, endErr := ref.End.Value()
		if beginErr != nil || endErr != nil {
			b.WriteString("#error Unable to evaluate begin or end expression\n")
			continue
		}
		fmt.Fprintf(&b, "    res_op = enc->GetComplexResourceOperand(slot, entry, %s, ComplexResourceEnum::k%s, %d, %d);\n",
			opcodeEnum, ref.Resource.PascalName, beginVal.Int, endVal.Int)
		b.WriteString("    if (res_op != nullptr) {\n      inst->AppendResourceHold(res_op);\n    }\n")
	}

	if len(simpleAcquire) > 0 {
		byLatency := map[int][]*resource.Reference{}
		var latencies []int
		for _, ref := range simpleAcquire {
			if ref.End == nil {
				continue
			}
			v, err := ref.End.Value()
			if err != nil {
				b.WriteString("#error Unable to evaluate end expression\n")
				continue
			}
			if _, ok := byLatency[v.Int]; !ok {
				latencies = append(latencies, v.Int)
			}
			byLatency[v.Int] = append(byLatency[v.Int], ref)
		}
		for _, latency := range latencies {
			fmt.Fprintf(&b, "    std::vector<SimpleResourceEnum> acquire_vec%d = {", latency)
			for _, ref := range byLatency[latency] {
				fmt.Fprintf(&b, "\n        SimpleResourceEnum::k%s,", ref.Resource.PascalName)
			}
			fmt.Fprintf(&b, "};\n\n    res_op = enc->GetSimpleResourceOperand(slot, entry, %s, acquire_vec%d, %d);\n", opcodeEnum, latency, latency)
			b.WriteString("    if (res_op != nullptr) {\n      inst->AppendResourceAcquire(res_op);\n    }\n")
		}
	}
	for _, ref := range complexAcquire {
		if ref.Begin == nil || ref.End == nil {
			continue
		}
		beginVal, beginErr := ref.Begin.Value()
		endVal, endErr := ref.End.Value()
		if beginErr != nil || endErr != nil {
			b.WriteString("#error Unable to evaluate begin or end expression\n")
			continue
		}
		fmt.Fprintf(&b, "    res_op = enc->GetComplexResourceOperand(slot, entry, %s, ComplexResourceEnum::k%s, %d, %d);\n",
			opcodeEnum, ref.Resource.PascalName, beginVal.Int, endVal.Int)
		b.WriteString("    if (res_op != nullptr) {\n      inst->AppendResourceAcquire(res_op);\n    }\n")
	}
	b.WriteString("  };\n\n")
	return b.String()
}

// ListFuncGetterInitializations emits the constructor body that populates
// the slot's InstructionInfo map: one entry for the default (unknown)
// opcode, then one for every declared instruction and its child chain.
func (s *Slot) ListFuncGetterInitializations(encodingType string) string {
	if len(s.instructionOrder) == 0 && s.defaultInstruction == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("  int index;\n  InstructionInfo *info;\n")
	b.WriteString("  // For kNone - unknown instruction.\n")
	b.WriteString("  index = static_cast<int>(OpcodeEnum::kNone);\n  info = new InstructionInfo;\n")
	fmt.Fprintf(&b, "  info->instruction_size = %d;\n\n", s.minInstructionSize)
	fmt.Fprintf(&b, "  info->operand_setter.push_back([](Instruction *inst, %s *enc, SlotEnum slot, int entry) {});\n", encodingType)
	if s.defaultInstruction != nil {
		fmt.Fprintf(&b, "  info->semfunc.push_back(%s);\n", s.defaultInstruction.SemfuncCodeString())
		b.WriteString(s.GenerateResourceSetter(s.defaultInstruction, encodingType))
		b.WriteString(s.GenerateDisassemblySetter(s.defaultInstruction))
		b.WriteString(s.GenerateAttributeSetter(s.defaultInstruction))
	}
	b.WriteString("  instruction_info_.insert({index, info});\n")

	for _, name := range s.instructionOrder {
		inst := s.instructionMap[name]
		opcodeName := inst.Opcode().PascalName()
		opcodeEnum := "OpcodeEnum::k" + opcodeName
		fmt.Fprintf(&b, "\n  // ***   %s   ***\n  index = static_cast<int>(%s);\n  info = new InstructionInfo;\n  info->instruction_size = %d;\n",
			opcodeName, opcodeEnum, inst.Opcode().InstructionSize())

		for cur := inst; cur != nil; cur = cur.Child() {
			codeStr := cur.SemfuncCodeString()
			if codeStr == "" && s.defaultInstruction != nil {
				codeStr = s.defaultInstruction.SemfuncCodeString()
			}
			fmt.Fprintf(&b, "  info->semfunc.push_back(%s);\n", codeStr)
			fmt.Fprintf(&b, "  info->operand_setter.push_back([](Instruction *inst, %s *enc, SlotEnum slot, int entry) {\n", encodingType)

			if predOp := cur.Opcode().PredicateOpName(); predOp != "" {
				fmt.Fprintf(&b, "        inst->SetPredicate(enc->GetPredicate(slot, entry, %s, PredOpEnum::k%s));\n", opcodeEnum, pascalCase(predOp))
			}
			for srcNo, src := range cur.Opcode().SourceOps() {
				fmt.Fprintf(&b, "        inst->AppendSource(enc->GetSource(slot, entry, %s, SourceOpEnum::k%s, %d));\n",
					opcodeEnum, pascalCase(src.Name), srcNo)
			}
			for destNo, dst := range cur.Opcode().DestOps() {
				destOpEnum := "DestOpEnum::k" + dst.PascalName()
				if dst.Expression() == nil {
					fmt.Fprintf(&b, "        inst->AppendDestination(enc->GetDestination(slot, entry, %s, %s, %d, enc->GetLatency(slot, entry, %s, %s, %d)));\n",
						opcodeEnum, destOpEnum, destNo, opcodeEnum, destOpEnum, destNo)
					continue
				}
				latency, err := dst.GetLatency()
				if err != nil {
					fmt.Fprintf(&b, "#error \"Failed to get latency for operand '%s'\"\n", dst.Name())
					continue
				}
				fmt.Fprintf(&b, "        inst->AppendDestination(enc->GetDestination(slot, entry, %s, %s, %d, %d));\n",
					opcodeEnum, destOpEnum, destNo, latency)
			}
			b.WriteString("      });\n\n")
		}
		b.WriteString(s.GenerateDisassemblySetter(inst))
		b.WriteString(s.GenerateResourceSetter(inst, encodingType))
		b.WriteString(s.GenerateAttributeSetter(inst))
		b.WriteString("  instruction_info_.insert({index, info});\n")
	}
	return b.String()
}

// GenerateClassDeclaration emits the public header declaration for the
// slot's generated class. Unreferenced slots (never reached by any bundle
// or instruction set) are skipped entirely, matching the original's dead
// code elision.
func (s *Slot) GenerateClassDeclaration(encodingType string) string {
	if !s.isReferenced {
		return ""
	}
	className := s.pascalName + "Slot"
	var b strings.Builder
	fmt.Fprintf(&b, "class %s {\n public:\n  explicit %s(ArchState *arch_state);\n  virtual ~%s();\n", className, className, className)
	fmt.Fprintf(&b, "  Instruction *Decode(uint64_t address, %s* isa_encoding, SlotEnum, int entry);\n\n private:\n", encodingType)
	b.WriteString("  ArchState *arch_state_;\n  InstructionInfoMap instruction_info_;\n")
	fmt.Fprintf(&b, "  static constexpr SlotEnum slot_ = SlotEnum::k%s;\n};\n\n", s.pascalName)
	return b.String()
}

// GenerateClassDefinition emits the generated class's constructor, Decode
// method, and destructor.
func (s *Slot) GenerateClassDefinition(encodingType string) string {
	if !s.isReferenced {
		return ""
	}
	className := s.pascalName + "Slot"
	var b strings.Builder
	fmt.Fprintf(&b, "%s::%s(ArchState *arch_state) :\n  arch_state_(arch_state)\n{\n%s}\n\n",
		className, className, s.ListFuncGetterInitializations(encodingType))
	fmt.Fprintf(&b, "Instruction *%s::Decode(uint64_t address, %s *isa_encoding, SlotEnum slot, int entry) {\n", className, encodingType)
	b.WriteString("  OpcodeEnum opcode = isa_encoding->GetOpcode(slot, entry);\n")
	b.WriteString("  int indx = static_cast<int>(opcode);\n")
	b.WriteString("  if (!instruction_info_.contains(indx)) indx = 0;\n")
	b.WriteString("  auto *inst_info = instruction_info_[indx];\n")
	b.WriteString("  Instruction *inst = new Instruction(address, arch_state_);\n")
	b.WriteString("  inst->set_size(inst_info->instruction_size);\n")
	b.WriteString("  inst->set_opcode(static_cast<int>(opcode));\n")
	b.WriteString("  inst->set_semantic_function(inst_info->semfunc[0]);\n")
	b.WriteString("  inst_info->operand_setter[0](inst, isa_encoding, slot, entry);\n")
	b.WriteString("  Instruction *parent = inst;\n")
	b.WriteString("  for (size_t i = 1; i < inst_info->operand_setter.size(); i++) {\n")
	b.WriteString("    Instruction *child = new Instruction(address, arch_state_);\n")
	b.WriteString("    child->set_semantic_function(inst_info->semfunc[i]);\n")
	b.WriteString("    inst_info->operand_setter[i](child, isa_encoding, slot, entry);\n")
	b.WriteString("    parent->AppendChild(child);\n    child->DecRef();\n    parent = child;\n  }\n")
	b.WriteString("  inst_info->resource_setter(inst, isa_encoding, slot, entry);\n")
	b.WriteString("  inst_info->disassembly_setter(inst);\n")
	b.WriteString("  inst_info->attribute_setter(inst);\n")
	b.WriteString("  return inst;\n}\n")
	fmt.Fprintf(&b, "%s::~%s() {\n  for (auto &[unused, info_ptr] : instruction_info_) {\n    delete info_ptr;\n  };\n  instruction_info_.clear();\n}\n",
		className, className)
	return b.String()
}

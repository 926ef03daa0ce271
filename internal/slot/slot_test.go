package slot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decodergen/internal/expr"
	"decodergen/internal/instruction"
	"decodergen/internal/opcode"
	"decodergen/internal/resource"
)

func newTestSlot(name string) (*Slot, *opcode.Factory, *resource.Factory) {
	of := opcode.NewFactory()
	rf := resource.NewFactory()
	return New(name, of, rf, false), of, rf
}

func TestAppendInstructionRejectsDuplicateOpcode(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	require.NoError(t, s.AppendInstruction(instruction.New(op, of)))

	op2, _ := of.CreateOpcode("add2")
	op2.AppendDestOp("rd", false, nil)
	inst2 := instruction.New(op2, of)
	require.NoError(t, s.AppendInstruction(inst2))

	dup := instruction.New(op, of)
	err := s.AppendInstruction(dup)
	require.Error(t, err)
}

func TestAppendInstructionRejectsUnresolvedLatencyWhenNotTemplated(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("shift")
	badExpr := expr.NewBinary(expr.Div, expr.NewConstant(1), expr.NewConstant(0))
	op.AppendDestOp("rd", false, badExpr)
	err := s.AppendInstruction(instruction.New(op, of))
	require.Error(t, err)
}

func TestAppendInheritedInstructionDerivesAndValidates(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("shift")
	formal := &expr.Formal{Name: "n", Position: 0}
	op.AppendDestOp("rd", false, expr.NewParam(formal))
	inst := instruction.New(op, of)

	err := s.AppendInheritedInstruction(inst, expr.Args{expr.NewConstant(3)})
	require.NoError(t, err)
	assert.True(t, s.HasInstruction("shift"))

	err = s.AppendInheritedInstruction(inst, expr.Args{expr.NewConstant(4)})
	require.Error(t, err, "duplicate opcode name must be rejected")
}

func TestCheckPredecessorsRejectsDiamondInheritance(t *testing.T) {
	of := opcode.NewFactory()
	rf := resource.NewFactory()
	base := New("base", of, rf, false)
	mid := New("mid", of, rf, false)
	top := New("top", of, rf, false)

	require.NoError(t, mid.AddBase(base))
	require.NoError(t, top.AddBase(mid))

	err := top.AddBase(base)
	require.Error(t, err, "base is already reachable through mid")
}

func TestCheckPredecessorsAllowsIndependentBases(t *testing.T) {
	of := opcode.NewFactory()
	rf := resource.NewFactory()
	a := New("a", of, rf, false)
	b := New("b", of, rf, false)
	top := New("top", of, rf, false)

	require.NoError(t, top.AddBase(a))
	require.NoError(t, top.AddBase(b))
}

func TestAddTemplatedBaseCarriesArguments(t *testing.T) {
	of := opcode.NewFactory()
	rf := resource.NewFactory()
	base := New("base", of, rf, true)
	top := New("top", of, rf, false)

	args := expr.Args{expr.NewConstant(8)}
	require.NoError(t, top.AddTemplatedBase(base, args))
	require.Len(t, top.BaseSlots(), 1)
	assert.Equal(t, base, top.BaseSlots()[0].Slot)
	assert.Equal(t, args, top.BaseSlots()[0].Arguments)
}

func TestAddConstantRejectsDuplicateAndTemplateFormalCollision(t *testing.T) {
	s, _, _ := newTestSlot("alu")
	require.NoError(t, s.AddTemplateFormal("n"))

	err := s.AddConstant("n", "int", expr.NewConstant(1))
	require.Error(t, err, "constant name collides with template formal")

	require.NoError(t, s.AddConstant("width", "int", expr.NewConstant(32)))
	err = s.AddConstant("width", "int", expr.NewConstant(64))
	require.Error(t, err, "duplicate constant redefinition")

	got := s.GetConstExpression("width")
	require.NotNil(t, got)
	v, err := got.Value()
	require.NoError(t, err)
	assert.Equal(t, 32, v.Int)
}

func TestAddTemplateFormalAssignsIncreasingPositions(t *testing.T) {
	s, _, _ := newTestSlot("alu")
	require.NoError(t, s.AddTemplateFormal("n"))
	require.NoError(t, s.AddTemplateFormal("m"))

	n := s.GetTemplateFormal("n")
	m := s.GetTemplateFormal("m")
	require.NotNil(t, n)
	require.NotNil(t, m)
	assert.Equal(t, 0, n.Position)
	assert.Equal(t, 1, m.Position)

	err := s.AddTemplateFormal("n")
	require.Error(t, err)

	assert.Nil(t, s.GetTemplateFormal("missing"))
}

func TestGetOrInsertResourceSharesAcrossSlots(t *testing.T) {
	of := opcode.NewFactory()
	rf := resource.NewFactory()
	s1 := New("s1", of, rf, false)
	s2 := New("s2", of, rf, false)

	r1 := s1.GetOrInsertResource("alu")
	r2 := s2.GetOrInsertResource("alu")
	assert.Same(t, r1, r2)
}

func TestGenerateAttributeSetterEmitsEvaluatedConstants(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	inst := instruction.New(op, of)
	inst.AddDefaultInstructionAttribute("commutative")

	out := s.GenerateAttributeSetter(inst)
	assert.Contains(t, out, "AttributeEnum::kCommutative")
	assert.Contains(t, out, "= 1;")
}

func TestGenerateAttributeSetterEmitsErrorOnNonConstant(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	inst := instruction.New(op, of)
	formal := &expr.Formal{Name: "n", Position: 0}
	inst.AddInstructionAttribute("latency", expr.NewParam(formal))

	out := s.GenerateAttributeSetter(inst)
	assert.Contains(t, out, "#error Expression for 'latency' has no constant value")
}

func TestGenerateDisassemblySetterEmptyFormatIsNoop(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	inst := instruction.New(op, of)

	out := s.GenerateDisassemblySetter(inst)
	assert.Contains(t, out, "[](Instruction *) {}")
}

func TestGenerateDisassemblySetterRendersLiteralFragment(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	inst := instruction.New(op, of)
	inst.AppendDisasmFormat(&opcode.DisasmFormat{FormatFragments: []string{"add"}})

	out := s.GenerateDisassemblySetter(inst)
	assert.Contains(t, out, `"add"`)
	assert.True(t, strings.Contains(out, "SetDisassemblyString"))
}

func TestGenerateResourceSetterEmitsSimpleHoldVector(t *testing.T) {
	s, of, rf := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	inst := instruction.New(op, of)

	res, _ := rf.Create("fu0")
	inst.AppendResourceUse(&resource.Reference{Resource: res})

	out := s.GenerateResourceSetter(inst, "FooEncoding")
	assert.Contains(t, out, "SimpleResourceEnum::kFu0")
	assert.Contains(t, out, "GetSimpleResourceOperand")
}

func TestGenerateResourceSetterEmitsComplexAcquire(t *testing.T) {
	s, of, rf := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	inst := instruction.New(op, of)

	res, _ := rf.Create("shifter")
	res.IsSimple = false
	inst.AppendResourceAcquire(&resource.Reference{Resource: res, Begin: expr.NewConstant(0), End: expr.NewConstant(2)})

	out := s.GenerateResourceSetter(inst, "FooEncoding")
	assert.Contains(t, out, "ComplexResourceEnum::kShifter")
}

func TestListFuncGetterInitializationsCoversDefaultAndDeclaredInstructions(t *testing.T) {
	s, of, _ := newTestSlot("alu")
	op, _ := of.CreateOpcode("add")
	op.SetInstructionSize(4)
	inst := instruction.New(op, of)
	inst.SetSemfuncCodeString("&AddSemantics")
	require.NoError(t, s.AppendInstruction(inst))

	out := s.ListFuncGetterInitializations("FooEncoding")
	assert.Contains(t, out, "OpcodeEnum::kAdd")
	assert.Contains(t, out, "&AddSemantics")
	assert.Contains(t, out, "instruction_info_.insert")
}

func TestGenerateClassDeclarationSkipsUnreferencedSlot(t *testing.T) {
	s, _, _ := newTestSlot("alu")
	assert.Empty(t, s.GenerateClassDeclaration("FooEncoding"))

	s.SetIsReferenced(true)
	out := s.GenerateClassDeclaration("FooEncoding")
	assert.Contains(t, out, "class AluSlot")
}

package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decodergen/internal/expr"
	"decodergen/internal/opcode"
	"decodergen/internal/resource"
)

func TestAppendChildChainsRecursively(t *testing.T) {
	f := opcode.NewFactory()
	top, _ := f.CreateOpcode("add")
	mid, _ := f.CreateOpcode("add_mid")
	leaf, _ := f.CreateOpcode("add_leaf")

	inst := New(top, f)
	midInst := New(mid, f)
	leafInst := New(leaf, f)

	inst.AppendChild(midInst)
	inst.AppendChild(leafInst)

	require.NotNil(t, inst.Child())
	assert.Same(t, midInst, inst.Child())
	assert.Same(t, leafInst, inst.Child().Child())
}

func TestAddInstructionAttributeInsertOrReplace(t *testing.T) {
	f := opcode.NewFactory()
	op, _ := f.CreateOpcode("add")
	inst := New(op, f)

	inst.AddDefaultInstructionAttribute("commutative")
	v, err := inst.AttributeMap()["commutative"].Value()
	require.NoError(t, err)
	assert.Equal(t, 1, v.Int)

	inst.AddInstructionAttribute("commutative", expr.NewConstant(42))
	v, err = inst.AttributeMap()["commutative"].Value()
	require.NoError(t, err)
	assert.Equal(t, 42, v.Int, "re-adding an attribute must replace its expression")
}

func TestGetDestOpSearchesChildChain(t *testing.T) {
	f := opcode.NewFactory()
	top, _ := f.CreateOpcode("top")
	child, _ := f.CreateOpcode("child")
	child.AppendDestOp("rd", false, expr.NewConstant(1))

	topInst := New(top, f)
	childInst := New(child, f)
	topInst.AppendChild(childInst)

	dest := topInst.GetDestOp("rd")
	require.NotNil(t, dest, "GetDestOp must search the child chain")
	assert.Equal(t, "rd", dest.Name())

	assert.Nil(t, topInst.GetDestOp("missing"))
}

func TestClearMethods(t *testing.T) {
	f := opcode.NewFactory()
	op, _ := f.CreateOpcode("add")
	inst := New(op, f)

	inst.AppendDisasmFormat(&opcode.DisasmFormat{Width: 8})
	inst.SetSemfuncCodeString("foo();")
	inst.AddDefaultInstructionAttribute("x")

	rf := resource.NewFactory()
	res, _ := rf.Create("fu")
	inst.AppendResourceUse(&resource.Reference{Resource: res})

	inst.ClearDisasmFormat()
	inst.ClearSemfuncCodeString()
	inst.ClearResourceSpecs()
	inst.ClearAttributeSpecs()

	assert.Empty(t, inst.DisasmFormatVec())
	assert.Empty(t, inst.SemfuncCodeString())
	assert.Empty(t, inst.ResourceUseVec())
	assert.Empty(t, inst.AttributeMap())
}

func TestCreateDerivedInstructionEvaluatesEverything(t *testing.T) {
	f := opcode.NewFactory()
	op, _ := f.CreateOpcode("shift")
	formal := &expr.Formal{Name: "n", Position: 0}
	op.AppendDestOp("rd", false, expr.NewParam(formal))

	rf := resource.NewFactory()
	res, _ := rf.Create("shifter")

	inst := New(op, f)
	inst.AppendResourceAcquire(&resource.Reference{Resource: res, Begin: expr.NewParam(formal), End: expr.NewConstant(1)})
	inst.AddInstructionAttribute("latency", expr.NewParam(formal))
	inst.AppendDisasmFormat(&opcode.DisasmFormat{Width: 4, FormatFragments: []string{"shift"}})

	derived, err := inst.CreateDerivedInstruction(expr.Args{expr.NewConstant(7)})
	require.NoError(t, err)

	dest := derived.GetDestOp("rd")
	require.NotNil(t, dest)
	latency, err := dest.GetLatency()
	require.NoError(t, err)
	assert.Equal(t, 7, latency)

	require.Len(t, derived.ResourceAcquireVec(), 1)
	v, err := derived.ResourceAcquireVec()[0].Begin.Value()
	require.NoError(t, err)
	assert.Equal(t, 7, v.Int)

	attrVal, err := derived.AttributeMap()["latency"].Value()
	require.NoError(t, err)
	assert.Equal(t, 7, attrVal.Int)

	require.Len(t, derived.DisasmFormatVec(), 1)
	assert.NotSame(t, inst.DisasmFormatVec()[0], derived.DisasmFormatVec()[0], "disasm formats must be deep-copied")
}

func TestCreateDerivedInstructionRecursesIntoChildren(t *testing.T) {
	f := opcode.NewFactory()
	topOp, _ := f.CreateOpcode("top")
	childOp, _ := f.CreateOpcode("child")
	formal := &expr.Formal{Name: "n", Position: 0}
	childOp.AppendDestOp("rd", false, expr.NewParam(formal))

	topInst := New(topOp, f)
	childInst := New(childOp, f)
	topInst.AppendChild(childInst)

	derived, err := topInst.CreateDerivedInstruction(expr.Args{expr.NewConstant(9)})
	require.NoError(t, err)
	require.NotNil(t, derived.Child())

	dest := derived.Child().GetDestOp("rd")
	require.NotNil(t, dest)
	latency, err := dest.GetLatency()
	require.NoError(t, err)
	assert.Equal(t, 9, latency)
}

func TestCreateDerivedInstructionPropagatesErrors(t *testing.T) {
	f := opcode.NewFactory()
	op, _ := f.CreateOpcode("bad")
	formal := &expr.Formal{Name: "n", Position: 3}
	op.AppendDestOp("rd", false, expr.NewParam(formal))

	inst := New(op, f)
	_, err := inst.CreateDerivedInstruction(expr.Args{expr.NewConstant(1)})
	require.Error(t, err)
}

package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decodergen/internal/expr"
	"decodergen/internal/instruction"
	"decodergen/internal/resource"
	"decodergen/internal/slot"
)

func TestComputeSlotAndBundleOrdersRespectsBaseDependency(t *testing.T) {
	is := New("demo")
	base := slot.New("base", is.OpcodeFactory(), is.ResourceFactory(), false)
	derived := slot.New("derived", is.OpcodeFactory(), is.ResourceFactory(), false)
	require.NoError(t, derived.AddBase(base))
	is.AddSlot(base)
	is.AddSlot(derived)

	is.ComputeSlotAndBundleOrders()

	order := is.SlotOrder()
	require.Len(t, order, 2)
	baseIdx, derivedIdx := -1, -1
	for i, s := range order {
		if s == base {
			baseIdx = i
		}
		if s == derived {
			derivedIdx = i
		}
	}
	assert.Less(t, baseIdx, derivedIdx, "base slot must be ordered before the slot that depends on it")
}

func TestComputeSlotAndBundleOrdersHandlesSubBundles(t *testing.T) {
	is := New("demo")
	inner := NewBundle("inner", is)
	outer := NewBundle("outer", is)
	outer.AppendBundleName("inner")
	is.AddBundle(inner)
	is.AddBundle(outer)

	is.ComputeSlotAndBundleOrders()

	order := is.BundleOrder()
	require.Len(t, order, 2)
	assert.Same(t, inner, order[0], "sub-bundle must be emitted before its containing bundle")
	assert.Same(t, outer, order[1])
}

func TestAnalyzeResourceUsePropagatesAcrossSlots(t *testing.T) {
	is := New("demo")
	s := slot.New("alu", is.OpcodeFactory(), is.ResourceFactory(), false)
	op, _ := is.OpcodeFactory().CreateOpcode("add")
	inst := instruction.New(op, is.OpcodeFactory())

	res := s.GetOrInsertResource("fu0")
	inst.AppendResourceAcquire(&resource.Reference{Resource: res, Begin: expr.NewConstant(1), End: expr.NewConstant(2)})
	require.NoError(t, s.AppendInstruction(inst))
	is.AddSlot(s)
	is.ComputeSlotAndBundleOrders()

	require.NoError(t, is.AnalyzeResourceUse())
	assert.False(t, res.IsSimple, "a non-zero begin cycle must downgrade the resource to complex")
}

func TestGenerateEnumsAssignsSequentialOpcodeValuesAndPastMaxValue(t *testing.T) {
	is := New("demo")
	s := slot.New("alu", is.OpcodeFactory(), is.ResourceFactory(), false)
	s.SetIsReferenced(true)
	addOp, _ := is.OpcodeFactory().CreateOpcode("add")
	subOp, _ := is.OpcodeFactory().CreateOpcode("sub")
	require.NoError(t, s.AppendInstruction(instruction.New(addOp, is.OpcodeFactory())))
	require.NoError(t, s.AppendInstruction(instruction.New(subOp, is.OpcodeFactory())))
	is.AddSlot(s)
	is.ComputeSlotAndBundleOrders()

	pair := is.GenerateEnums()
	assert.Contains(t, pair.HeaderOutput, "enum class OpcodeEnum")
	assert.Contains(t, pair.HeaderOutput, "kAdd = 1,")
	assert.Contains(t, pair.HeaderOutput, "kSub = 2,")
	assert.Contains(t, pair.HeaderOutput, "kPastMaxValue = 3")
	assert.Contains(t, pair.HeaderOutput, "enum class SlotEnum")
	assert.Contains(t, pair.HeaderOutput, "kAlu = 1,")
	assert.Contains(t, pair.HeaderOutput, "kPastMaxValue = 2,")
	assert.Contains(t, pair.SourceOutput, "kOpcodeNames")
}

func TestGenerateClassDeclarationsFailsWithoutComputedOrder(t *testing.T) {
	is := New("demo")
	_, err := is.GenerateClassDeclarations("foo.h", "opcode.h", "FooEncoding")
	require.Error(t, err)
}

package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decodergen/internal/expr"
)

func TestFactoryCreateAndGetOrInsert(t *testing.T) {
	f := NewFactory()

	r1, err := f.Create("fetch_unit")
	require.NoError(t, err)
	assert.Equal(t, "FetchUnit", r1.PascalName)
	assert.True(t, r1.IsSimple)

	_, err = f.Create("fetch_unit")
	require.Error(t, err)

	r2 := f.GetOrInsert("fetch_unit")
	assert.Same(t, r1, r2, "GetOrInsert must return the existing resource")

	r3 := f.GetOrInsert("decode_unit")
	assert.NotSame(t, r1, r3)
	assert.Len(t, f.All(), 2)
}

func TestAnalyzeResourceUseDowngradesSimpleToComplex(t *testing.T) {
	f := NewFactory()
	r, err := f.Create("alu")
	require.NoError(t, err)
	assert.True(t, r.IsSimple)

	refs := []*Reference{
		{Resource: r, Begin: expr.NewConstant(0), End: expr.NewConstant(1)},
		{Resource: r, Begin: expr.NewConstant(2), End: expr.NewConstant(3)},
	}
	require.NoError(t, AnalyzeResourceUse(refs))
	assert.False(t, r.IsSimple, "non-zero begin expression must downgrade the resource to complex")
}

func TestAnalyzeResourceUseStaysSimpleWhenAllBeginsZero(t *testing.T) {
	f := NewFactory()
	r, err := f.Create("fu")
	require.NoError(t, err)

	refs := []*Reference{
		{Resource: r, Begin: expr.NewConstant(0), End: expr.NewConstant(0)},
	}
	require.NoError(t, AnalyzeResourceUse(refs))
	assert.True(t, r.IsSimple)
}

func TestAnalyzeResourceUsePropagatesBeginError(t *testing.T) {
	f := NewFactory()
	r, err := f.Create("fu")
	require.NoError(t, err)

	badBegin := expr.NewBinary(expr.Div, expr.NewConstant(1), expr.NewConstant(0))
	refs := []*Reference{{Resource: r, Begin: badBegin}}
	require.Error(t, AnalyzeResourceUse(refs))
}

func TestReferenceDeepCopyIsIndependent(t *testing.T) {
	f := NewFactory()
	r, err := f.Create("fu")
	require.NoError(t, err)

	ref := &Reference{Resource: r, Begin: expr.NewConstant(1), End: expr.NewConstant(2)}
	cp := ref.DeepCopy()
	assert.Same(t, ref.Resource, cp.Resource, "DeepCopy borrows the Resource pointer")

	cp.Begin.(*expr.Constant).V = expr.IntValue(99)
	v, err := ref.Begin.Value()
	require.NoError(t, err)
	assert.Equal(t, 1, v.Int, "DeepCopy must not alias the owned expressions")
}

func TestReferenceEvaluateSubstitutesArgs(t *testing.T) {
	f := NewFactory()
	r, err := f.Create("fu")
	require.NoError(t, err)

	formal := &expr.Formal{Name: "n", Position: 0}
	ref := &Reference{Resource: r, Begin: expr.NewParam(formal), End: expr.NewConstant(5)}

	derived, err := ref.Evaluate(expr.Args{expr.NewConstant(3)})
	require.NoError(t, err)
	v, err := derived.Begin.Value()
	require.NoError(t, err)
	assert.Equal(t, 3, v.Int)
}

package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decodergen/internal/errors"
)

func TestConstantFold(t *testing.T) {
	t.Run("AddMulWithBoundFormal", func(t *testing.T) {
		// (2 + 3) * (b - 1), b a formal at position 0 (spec §8 S1).
		formal := &Formal{Name: "b", Position: 0}
		tree := NewBinary(Mul,
			NewBinary(Add, NewConstant(2), NewConstant(3)),
			NewBinary(Sub, NewParam(formal), NewConstant(1)),
		)

		folded, err := tree.Evaluate(Args{NewConstant(4)})
		require.NoError(t, err)
		assert.True(t, folded.IsConstant())

		v, err := folded.Value()
		require.NoError(t, err)
		assert.Equal(t, 15, v.Int)

		c, ok := folded.(*Constant)
		require.True(t, ok, "fully bound expression should fold to *Constant")
		assert.Equal(t, 15, c.V.Int)
	})

	t.Run("UnboundParamStaysNonConstant", func(t *testing.T) {
		formal := &Formal{Name: "n", Position: 0}
		tree := NewBinary(Add, NewParam(formal), NewConstant(1))
		assert.False(t, tree.IsConstant())

		evaluated, err := tree.Evaluate(nil)
		require.NoError(t, err)
		assert.False(t, evaluated.IsConstant())
	})
}

func TestDivideByZero(t *testing.T) {
	// spec §8 S2.
	tree := NewBinary(Div, NewConstant(5), NewConstant(0))
	_, err := tree.Value()
	require.Error(t, err)

	kind, ok := errors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors.Internal, kind)

	// The tree is untouched; Lhs/Rhs are still inspectable.
	assert.Equal(t, 5, tree.Lhs.(*Constant).V.Int)
	assert.Equal(t, 0, tree.Rhs.(*Constant).V.Int)
}

func TestEvaluateNilPreservesParams(t *testing.T) {
	formal := &Formal{Name: "x", Position: 0}
	p := NewParam(formal)
	evaluated, err := p.Evaluate(nil)
	require.NoError(t, err)
	_, isParam := evaluated.(*Param)
	assert.True(t, isParam, "Evaluate(nil) must preserve unresolved Param nodes")
}

func TestEvaluateOutOfRangeArgs(t *testing.T) {
	formal := &Formal{Name: "y", Position: 2}
	p := NewParam(formal)
	_, err := p.Evaluate(Args{NewConstant(1)})
	require.Error(t, err)
}

func TestDeepCopyIsIndependent(t *testing.T) {
	c := NewConstant(7)
	copied := c.DeepCopy().(*Constant)
	copied.V = IntValue(99)
	assert.Equal(t, 7, c.V.Int, "DeepCopy must not alias the original node")
}

func TestFunctionConstantOnlyWhenArgsConstant(t *testing.T) {
	formal := &Formal{Name: "z", Position: 0}
	sum := func(args []Expression) (Value, error) {
		total := 0
		for _, a := range args {
			v, err := a.Value()
			if err != nil {
				return Value{}, err
			}
			total += v.Int
		}
		return IntValue(total), nil
	}
	fn := NewFunction("sum", sum, []Expression{NewConstant(1), NewParam(formal)})
	assert.False(t, fn.IsConstant())

	evaluated, err := fn.Evaluate(Args{NewConstant(41)})
	require.NoError(t, err)
	assert.True(t, evaluated.IsConstant())
	v, err := evaluated.Value()
	require.NoError(t, err)
	assert.Equal(t, 42, v.Int)
}

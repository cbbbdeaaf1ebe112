package symbolic_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/rbf/symbolic"
)

func TestLambdify_Polynomial(t *testing.T) {
	x, y := symbolic.S("x"), symbolic.S("y")
	e := symbolic.AddOf(symbolic.MulOf(symbolic.N(3), x, y), symbolic.PowOf(y, symbolic.N(2)), symbolic.N(1))
	f, err := symbolic.Lambdify(e, []*symbolic.Sym{x, y})
	require.NoError(t, err)
	assert.InDelta(t, 3*2*5+25+1, f([]float64{2, 5}), 1e-12)
}

func TestLambdify_UnboundSymbol(t *testing.T) {
	x, y := symbolic.S("x"), symbolic.S("y")
	_, err := symbolic.Lambdify(symbolic.AddOf(x, y), []*symbolic.Sym{x})
	assert.ErrorIs(t, err, symbolic.ErrUnboundSymbol)

	_, err = symbolic.Compile(symbolic.AddOf(x, y), []*symbolic.Sym{y})
	assert.ErrorIs(t, err, symbolic.ErrUnboundSymbol)
}

func TestLambdify_PiecewiseIsLazy(t *testing.T) {
	x := symbolic.S("x")
	e := symbolic.PiecewiseOf(
		symbolic.When(symbolic.N(1), symbolic.Lt(x, symbolic.F(1, 1000))),
		symbolic.Otherwise(symbolic.QuoOf(symbolic.SinOf(x), x)),
	)
	f, err := symbolic.Lambdify(e, []*symbolic.Sym{x})
	require.NoError(t, err)
	assert.Equal(t, 1.0, f([]float64{0}))
	assert.InDelta(t, math.Sin(2)/2, f([]float64{2}), 1e-15)
}

func TestLambdify_ZeroOverZeroIsNaN(t *testing.T) {
	x := symbolic.S("x")
	f, err := symbolic.Lambdify(symbolic.QuoOf(x, symbolic.SqrtOf(symbolic.PowOf(x, symbolic.N(2)))), []*symbolic.Sym{x})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(f([]float64{0})))
	assert.InDelta(t, -1.0, f([]float64{-3}), 1e-15)
}

func TestCompile_SharesSubexpressions(t *testing.T) {
	x := symbolic.S("x")
	e := symbolic.AddOf(symbolic.SinOf(x), symbolic.MulOf(symbolic.CosOf(x), symbolic.SinOf(x)))
	p, err := symbolic.Compile(e, []*symbolic.Sym{x})
	require.NoError(t, err)
	// x, sin(x), cos(x), cos(x)*sin(x), sum
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, 1, p.NumVars())
	assert.InDelta(t, math.Sin(0.3)+math.Cos(0.3)*math.Sin(0.3), p.Call(0.3), 1e-15)
}

func TestCompile_RunAcrossBlocks(t *testing.T) {
	x, c := symbolic.S("x"), symbolic.S("c")
	e := symbolic.ExpOf(symbolic.NegOf(symbolic.PowOf(symbolic.MinusOf(x, c), symbolic.N(2))))
	p, err := symbolic.Compile(e, []*symbolic.Sym{x, c})
	require.NoError(t, err)

	const n = 1000
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i) / 100
	}
	out := make([]float64, n)
	require.NoError(t, p.Run([][]float64{xs, {1.5}}, out))
	for i, v := range xs {
		d := v - 1.5
		assert.InDelta(t, math.Exp(-d*d), out[i], 1e-14, "index %d", i)
	}
}

func TestCompile_RunRejectsBadShapes(t *testing.T) {
	x := symbolic.S("x")
	p, err := symbolic.Compile(x, []*symbolic.Sym{x})
	require.NoError(t, err)
	assert.Error(t, p.Run([][]float64{{1, 2}}, make([]float64, 3)))
	assert.Error(t, p.Run(nil, make([]float64, 3)))
}

func TestCompile_MatchesLambdify(t *testing.T) {
	x, y := symbolic.S("x"), symbolic.S("y")
	r := symbolic.SqrtOf(symbolic.AddOf(symbolic.PowOf(x, symbolic.N(2)), symbolic.PowOf(y, symbolic.N(2))))
	e := symbolic.PiecewiseOf(
		symbolic.When(symbolic.N(0), symbolic.Lt(r, symbolic.F(1, 10))),
		symbolic.Otherwise(symbolic.MulOf(symbolic.PowOf(r, symbolic.N(3)), symbolic.LnOf(r))),
	)
	vars := []*symbolic.Sym{x, y}
	f, err := symbolic.Lambdify(e, vars)
	require.NoError(t, err)
	p, err := symbolic.Compile(e, vars)
	require.NoError(t, err)

	xs := []float64{0, 0.01, 0.5, -1.25, 3}
	ys := []float64{0, 0.02, -0.5, 2, 0.125}
	out := make([]float64, len(xs))
	require.NoError(t, p.Run([][]float64{xs, ys}, out))
	for i := range xs {
		assert.Equal(t, f([]float64{xs[i], ys[i]}), out[i], "index %d", i)
	}
}

func TestCompile_InfiniteBranch(t *testing.T) {
	x := symbolic.S("x")
	e := symbolic.PiecewiseOf(
		symbolic.When(symbolic.Infinity(-1), symbolic.Lt(x, symbolic.F(1, 1000))),
		symbolic.Otherwise(symbolic.LnOf(x)),
	)
	vars := []*symbolic.Sym{x}
	f, err := symbolic.Lambdify(e, vars)
	require.NoError(t, err)
	p, err := symbolic.Compile(e, vars)
	require.NoError(t, err)

	assert.True(t, math.IsInf(f([]float64{0}), -1))
	assert.InDelta(t, math.Log(2), f([]float64{2}), 1e-15)

	out := make([]float64, 2)
	require.NoError(t, p.Run([][]float64{{0, 2}}, out))
	assert.True(t, math.IsInf(out[0], -1))
	assert.InDelta(t, math.Log(2), out[1], 1e-15)
}

package rbf_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/rbf"
)

func TestEvaluate_GaussianScenario(t *testing.T) {
	k := rbf.GA()
	x := [][]float64{{0, 0}, {1, 0}, {0, 1}}
	c := [][]float64{{0, 0}}
	out, err := k.Evaluate(x, c, rbf.WithEps(1))
	require.NoError(t, err)

	r, cols := out.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 1, cols)
	assert.InDeltaSlice(t, []float64{1, math.Exp(-1), math.Exp(-1)}, mat.Col(nil, 0, out), 1e-15)
}

func TestEvaluate_PHS1Scenario(t *testing.T) {
	out, err := rbf.PHS1().Evaluate([][]float64{{3}}, [][]float64{{0}}, rbf.WithEps(2))
	require.NoError(t, err)
	assert.InDelta(t, 6.0, out.At(0, 0), 1e-15)
}

func TestEvaluate_CenterDimensionMismatch(t *testing.T) {
	x := [][]float64{{0, 0}, {1, 1}}
	c := [][]float64{{0, 0, 0}}
	_, err := rbf.GA().Evaluate(x, c)
	require.ErrorIs(t, err, rbf.ErrShapeMismatch)

	var se *rbf.ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "c", se.Arg)
	assert.Equal(t, 1, se.Axis())
	assert.Contains(t, se.Error(), "axis 1 of c has length 3 but it should have length 2")
}

func TestEvaluate_DiffLengthMismatch(t *testing.T) {
	x := [][]float64{{0, 0}}
	_, err := rbf.GA().Evaluate(x, x, rbf.WithDiff(1))

	var se *rbf.ShapeError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "diff", se.Arg)
}

func TestEvaluate_RaggedPoints(t *testing.T) {
	x := [][]float64{{0, 0}, {1}}
	_, err := rbf.GA().Evaluate(x, [][]float64{{0, 0}})
	var se *rbf.ShapeError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "x", se.Arg)
}

func TestEvaluate_EpsPerCenter(t *testing.T) {
	k := rbf.GA()
	x := [][]float64{{1}}
	c := [][]float64{{0}, {0}}
	out, err := k.Evaluate(x, c, rbf.WithEpsPerCenter([]float64{1, 2}))
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1), out.At(0, 0), 1e-15)
	assert.InDelta(t, math.Exp(-4), out.At(0, 1), 1e-15)

	_, err = k.Evaluate(x, c, rbf.WithEpsPerCenter([]float64{1}))
	var se *rbf.ShapeError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "eps", se.Arg)
}

func TestEvaluate_NegativeDerivative(t *testing.T) {
	x := [][]float64{{0}}
	_, err := rbf.GA().Evaluate(x, x, rbf.WithDiff(-1))
	assert.ErrorIs(t, err, rbf.ErrInvalidDerivative)
}

func TestEvaluate_Empty(t *testing.T) {
	k := rbf.GA()
	out, err := k.Evaluate(nil, [][]float64{{0, 0}})
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())

	out, err = k.Evaluate([][]float64{{0, 0}}, nil)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
	assert.Equal(t, 0, k.CacheLen())
}

func TestEvaluate_GaussianDerivative(t *testing.T) {
	x := [][]float64{{1, 0}, {0.5, -0.25}}
	c := [][]float64{{0, 0}}
	out, err := rbf.GA().Evaluate(x, c, rbf.WithDiff(1, 0), rbf.WithEps(1.5))
	require.NoError(t, err)
	for i, p := range x {
		r2 := p[0]*p[0] + p[1]*p[1]
		want := -2 * 1.5 * 1.5 * p[0] * math.Exp(-1.5*1.5*r2)
		assert.InDelta(t, want, out.At(i, 0), 1e-14, "row %d", i)
	}
}

func TestEvaluate_Matrix(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{0, 0, 1, 0, 0, 1})
	c := mat.NewDense(1, 2, []float64{0, 0})
	out, err := rbf.GA().EvaluateMatrix(x, c)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, math.Exp(-1), math.Exp(-1)}, mat.Col(nil, 0, out), 1e-15)
}

func TestEvaluate_CacheIsTransparent(t *testing.T) {
	k := rbf.IMQ()
	x := [][]float64{{0.1, 0.2}, {-1, 0.5}, {2, 2}}
	c := [][]float64{{0, 0}, {1, -1}}
	diffs := [][]int{{0, 0}, {1, 0}, {0, 2}, {1, 1}}

	first := make([]*mat.Dense, len(diffs))
	for i, d := range diffs {
		out, err := k.Evaluate(x, c, rbf.WithDiff(d...), rbf.WithEps(0.7))
		require.NoError(t, err)
		first[i] = out
	}
	assert.Equal(t, len(diffs), k.CacheLen())

	for i, d := range diffs {
		cached, err := k.Evaluate(x, c, rbf.WithDiff(d...), rbf.WithEps(0.7))
		require.NoError(t, err)
		k.ClearCache()
		fresh, err := k.Evaluate(x, c, rbf.WithDiff(d...), rbf.WithEps(0.7))
		require.NoError(t, err)
		assert.True(t, mat.Equal(first[i], cached), "diff %v", d)
		assert.True(t, mat.Equal(first[i], fresh), "diff %v", d)
	}
}

func TestEvaluate_BackendParity(t *testing.T) {
	x := [][]float64{{0, 0}, {0.3, -0.4}, {1, 2}, {-2, 0.5}}
	c := [][]float64{{0, 0}, {1, 1}, {-0.5, 0.25}}
	eps := []float64{1, 0.5, 2}
	for _, name := range []string{"phs3", "phs4", "mq", "ga", "se", "mat52"} {
		for _, diff := range [][]int{{0, 0}, {1, 0}, {0, 2}} {
			closure, err := rbf.Kernel(name)
			require.NoError(t, err)
			bytecode, err := rbf.Kernel(name)
			require.NoError(t, err)
			require.NoError(t, bytecode.SetBackend(rbf.Bytecode))

			a, err := closure.Evaluate(x, c, rbf.WithEpsPerCenter(eps), rbf.WithDiff(diff...))
			require.NoError(t, err, "%s %v", name, diff)
			b, err := bytecode.Evaluate(x, c, rbf.WithEpsPerCenter(eps), rbf.WithDiff(diff...))
			require.NoError(t, err, "%s %v", name, diff)
			assert.True(t, mat.EqualApprox(a, b, 1e-12), "%s %v\n%v\n%v", name, diff, mat.Formatted(a), mat.Formatted(b))
		}
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	k := rbf.MQ()
	x := [][]float64{{0.5, 0.5}}
	c := [][]float64{{0, 0}}
	want, err := k.Evaluate(x, c)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := k.Evaluate(x, c)
			if assert.NoError(t, err) {
				assert.True(t, mat.Equal(want, got))
			}
			k.ClearCache()
		}()
	}
	wg.Wait()
}

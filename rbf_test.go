package rbf_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/njchilds90/rbf"
	"github.com/njchilds90/rbf/symbolic"
)

// ============================================================
// Construction
// ============================================================

func TestSymbolsAreCanonical(t *testing.T) {
	assert.Same(t, rbf.R(), rbf.R())
	assert.Same(t, rbf.Eps(), rbf.Eps())
	assert.Equal(t, "r", rbf.R().Name())
	assert.Equal(t, "eps", rbf.Eps().Name())
	assert.True(t, rbf.R().IsPositive())
}

func TestNew_RejectsExtraneousSymbol(t *testing.T) {
	_, err := rbf.New(symbolic.AddOf(rbf.R(), symbolic.S("y")))
	assert.ErrorIs(t, err, rbf.ErrInvalidExpression)
}

func TestNew_RequiresRadius(t *testing.T) {
	_, err := rbf.New(symbolic.ExpOf(rbf.Eps()))
	assert.ErrorIs(t, err, rbf.ErrInvalidExpression)

	_, err = rbf.New(nil)
	assert.ErrorIs(t, err, rbf.ErrInvalidExpression)
}

func TestNew_ScalesRadiusWhenEpsMissing(t *testing.T) {
	k, err := rbf.New(symbolic.SqrtOf(symbolic.PowOf(symbolic.S("r"), symbolic.N(2))))
	require.NoError(t, err)
	want := symbolic.MulOf(rbf.Eps(), rbf.R())
	assert.True(t, k.Expr().Equal(want), "got %s", k.Expr())
}

func TestNew_KeepsEpsWhenPresent(t *testing.T) {
	e := symbolic.ExpOf(symbolic.NegOf(symbolic.QuoOf(rbf.R(), rbf.Eps())))
	k, err := rbf.New(e)
	require.NoError(t, err)
	assert.True(t, k.Expr().Equal(e))
}

func TestNew_Defaults(t *testing.T) {
	k, err := rbf.New(rbf.R())
	require.NoError(t, err)
	assert.Nil(t, k.Tolerance())
	assert.Equal(t, rbf.Closure, k.Backend())
	assert.Equal(t, 0, k.Limits().Len())
	assert.Equal(t, 0, k.CacheLen())
	assert.True(t, strings.HasPrefix(k.String(), "<RBF : "), k.String())
}

// ============================================================
// Tolerance / backend
// ============================================================

func TestTolerance_Validation(t *testing.T) {
	_, err := rbf.New(rbf.R(), rbf.WithTolerance(symbolic.S("x")))
	assert.ErrorIs(t, err, rbf.ErrInvalidTolerance)

	_, err = rbf.New(rbf.R(), rbf.WithTol(-1))
	assert.ErrorIs(t, err, rbf.ErrInvalidTolerance)

	_, err = rbf.New(rbf.R(), rbf.WithTol(math.NaN()))
	assert.ErrorIs(t, err, rbf.ErrInvalidTolerance)

	k, err := rbf.New(rbf.R(), rbf.WithTolerance(symbolic.MulOf(symbolic.F(1, 1000), symbolic.S("eps"))))
	require.NoError(t, err)
	assert.True(t, symbolic.Has(k.Tolerance(), "eps"))
}

func TestSetters_ClearCache(t *testing.T) {
	k := rbf.GA()
	x := [][]float64{{0.5}}
	_, err := k.Evaluate(x, x)
	require.NoError(t, err)
	assert.Equal(t, 1, k.CacheLen())

	require.NoError(t, k.SetTolerance(symbolic.NFloat(1e-6)))
	assert.Equal(t, 0, k.CacheLen())

	_, err = k.Evaluate(x, x)
	require.NoError(t, err)
	require.NoError(t, k.SetBackend(rbf.Bytecode))
	assert.Equal(t, 0, k.CacheLen())

	_, err = k.Evaluate(x, x)
	require.NoError(t, err)
	k.SetLimits(map[rbf.DiffKey]symbolic.Expr{rbf.Key(0): symbolic.N(1)})
	assert.Equal(t, 0, k.CacheLen())
	assert.Equal(t, 1, k.Limits().Len())
}

func TestSetBackend_Unsupported(t *testing.T) {
	k := rbf.GA()
	assert.ErrorIs(t, k.SetBackend(rbf.Backend(42)), rbf.ErrUnsupportedBackend)
	assert.Equal(t, rbf.Closure, k.Backend())
}

func TestParseBackend(t *testing.T) {
	b, err := rbf.ParseBackend("Bytecode")
	require.NoError(t, err)
	assert.Equal(t, rbf.Bytecode, b)
	assert.Equal(t, "closure", rbf.Closure.String())

	_, err = rbf.ParseBackend("numpy")
	assert.ErrorIs(t, err, rbf.ErrUnsupportedBackend)
}

// ============================================================
// Singularities
// ============================================================

func TestPHS1_WithoutToleranceIsNaN(t *testing.T) {
	k := rbf.PHS1()
	require.NoError(t, k.SetTolerance(nil))
	out, err := k.Evaluate([][]float64{{0}}, [][]float64{{0}}, rbf.WithDiff(1))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out.At(0, 0)), "got %v", out.At(0, 0))
}

func TestComputedLimit_LogsWarning(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sinc := symbolic.QuoOf(symbolic.SinOf(rbf.R()), rbf.R())
	k, err := rbf.New(sinc, rbf.WithTol(1e-8), rbf.WithLogger(zap.New(core)))
	require.NoError(t, err)

	x := [][]float64{{0}, {0.5}}
	c := [][]float64{{0}}
	out, err := k.Evaluate(x, c, rbf.WithEps(2))
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.At(0, 0))
	assert.InDelta(t, math.Sin(1), out.At(1, 0), 1e-15)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())

	_, err = k.Evaluate(x, c, rbf.WithEps(2))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len(), "cached derivative must not recompute the limit")
	assert.NotZero(t, logs.FilterMessage("compiled rbf derivative").Len())
}

func TestComputedLimit_OneSided(t *testing.T) {
	// d/dx eps*|x - c| has no limit at the center; the approach from above
	// gives eps.
	k := rbf.PHS1()
	out, err := k.Evaluate([][]float64{{0}}, [][]float64{{0}}, rbf.WithDiff(1), rbf.WithEps(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.At(0, 0))
}

func TestComputedLimit_DivergentIsInfinite(t *testing.T) {
	x := [][]float64{{0.5, 0}, {0, 0.5}, {0, 0}}
	c := [][]float64{{0, 0}}
	for _, backend := range []rbf.Backend{rbf.Closure, rbf.Bytecode} {
		// d2/dx0^2 of r^2 ln r diverges logarithmically at the center.
		phs2 := rbf.PHS2()
		require.NoError(t, phs2.SetBackend(backend))
		out, err := phs2.Evaluate(x, c, rbf.WithDiff(2, 0))
		require.NoError(t, err, backend.String())
		assert.InDelta(t, 2*math.Log(0.5)+3, out.At(0, 0), 1e-12, backend.String())
		assert.InDelta(t, 2*math.Log(0.5)+1, out.At(1, 0), 1e-12, backend.String())
		assert.True(t, math.IsInf(out.At(2, 0), -1), "%s: got %v", backend, out.At(2, 0))

		// d2/dx0^2 of r is x1^2 / r^3.
		phs1 := rbf.PHS1()
		require.NoError(t, phs1.SetBackend(backend))
		out, err = phs1.Evaluate(x, c, rbf.WithDiff(2, 0))
		require.NoError(t, err, backend.String())
		assert.InDelta(t, 0.0, out.At(0, 0), 1e-12, backend.String())
		assert.InDelta(t, 2.0, out.At(1, 0), 1e-12, backend.String())
		assert.True(t, math.IsInf(out.At(2, 0), 1), "%s: got %v", backend, out.At(2, 0))
	}

	out, err := rbf.PHS2().Evaluate([][]float64{{1}}, [][]float64{{1}}, rbf.WithDiff(2))
	require.NoError(t, err)
	assert.True(t, math.IsInf(out.At(0, 0), -1))
}

func TestRegisteredLimit_SkipsComputation(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sinc := symbolic.QuoOf(symbolic.SinOf(rbf.R()), rbf.R())
	k, err := rbf.New(sinc,
		rbf.WithTol(1e-8),
		rbf.WithLimits(map[rbf.DiffKey]symbolic.Expr{rbf.Key(0): symbolic.N(1)}),
		rbf.WithLogger(zap.New(core)),
	)
	require.NoError(t, err)
	out, err := k.Evaluate([][]float64{{1}}, [][]float64{{1}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.At(0, 0))
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestLimitMutation_InvalidatesCache(t *testing.T) {
	k := rbf.MAT32()
	center := [][]float64{{0}}
	out, err := k.Evaluate(center, center, rbf.WithDiff(2))
	require.NoError(t, err)
	assert.InDelta(t, -3.0, out.At(0, 0), 1e-12)
	assert.Equal(t, 1, k.CacheLen())

	k.Limits().Set(rbf.Key(2), symbolic.N(7))
	assert.Equal(t, 0, k.CacheLen())

	out, err = k.Evaluate(center, center, rbf.WithDiff(2))
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.At(0, 0))
}

func TestUndeterminedLimit_ReportsDerivative(t *testing.T) {
	e := symbolic.MulOf(rbf.R(), symbolic.FloorOf(symbolic.PowOf(rbf.R(), symbolic.N(-1))))
	k, err := rbf.New(e, rbf.WithTol(1e-8))
	require.NoError(t, err)
	_, err = k.Evaluate([][]float64{{0}}, [][]float64{{0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, symbolic.ErrLimitUndetermined)
	assert.Contains(t, err.Error(), "(0)")
	assert.Equal(t, 0, k.CacheLen())
}

package rbf

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/njchilds90/rbf/symbolic"
)

// function returns the compiled function for diff, building and caching it
// on first use. Compilation runs under the lock.
func (b *RBF) function(diff []int) (numericFunc, error) {
	key := Key(diff...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if fn, ok := b.cache[key]; ok {
		return fn, nil
	}

	start := time.Now()
	e, vars, err := b.derivative(diff)
	if err != nil {
		return nil, fmt.Errorf("rbf: derivative %s of %s: %w", key, b.expr, err)
	}
	comp, err := b.backend.compiler()
	if err != nil {
		return nil, err
	}
	fn, err := comp.compile(e, vars)
	if err != nil {
		return nil, fmt.Errorf("rbf: compiling derivative %s of %s: %w", key, b.expr, err)
	}
	b.cache[key] = fn

	b.logger.Debug("compiled rbf derivative",
		zap.String("rbf", b.expr.String()),
		zap.String("diff", key.String()),
		zap.Stringer("backend", b.backend),
		zap.Duration("elapsed", time.Since(start)),
	)
	return fn, nil
}

// derivative builds the symbolic derivative for diff over the variables
// (x0.., c0.., eps). With a tolerance set the result is guarded at the center
// by the registered or computed limit.
func (b *RBF) derivative(diff []int) (symbolic.Expr, []*symbolic.Sym, error) {
	dim := len(diff)
	xs := make([]*symbolic.Sym, dim)
	cs := make([]*symbolic.Sym, dim)
	squares := make([]symbolic.Expr, dim)
	for i := range xs {
		xs[i] = symbolic.S("x" + strconv.Itoa(i))
		cs[i] = symbolic.S("c" + strconv.Itoa(i))
		squares[i] = symbolic.PowOf(symbolic.MinusOf(xs[i], cs[i]), symbolic.N(2))
	}
	dist := symbolic.SqrtOf(symbolic.AddOf(squares...))

	e := symbolic.Sub(b.expr, radius.Name(), dist)
	for i, n := range diff {
		e = symbolic.DiffN(e, xs[i].Name(), n)
	}

	if b.tol != nil {
		lim, err := b.centerLimit(e, diff, xs, cs)
		if err != nil {
			return nil, nil, err
		}
		e = symbolic.PiecewiseOf(
			symbolic.When(lim, symbolic.Lt(dist, b.tol)),
			symbolic.Otherwise(e),
		)
	}

	vars := make([]*symbolic.Sym, 0, 2*dim+1)
	vars = append(vars, xs...)
	vars = append(vars, cs...)
	vars = append(vars, shape)
	return e, vars, nil
}

// centerLimit returns the registered limit for diff, or computes the limit
// of e as x approaches c one axis at a time. Only the approach from above is
// considered on each axis, so a limit that depends on direction may be wrong.
// A limit that diverges with a known sign becomes an infinite branch.
func (b *RBF) centerLimit(e symbolic.Expr, diff []int, xs, cs []*symbolic.Sym) (symbolic.Expr, error) {
	key := Key(diff...)
	if lim, ok := b.limits.Get(key); ok {
		return lim, nil
	}

	b.logger.Warn("symbolically computing the limit as x -> c; consider registering it in the limits mapping",
		zap.String("rbf", b.expr.String()),
		zap.String("diff", key.String()),
	)
	start := time.Now()
	lim := e
	for i := range xs {
		var err error
		lim, err = symbolic.Limit(lim, xs[i].Name(), cs[i], symbolic.FromAbove)
		if err != nil {
			return nil, fmt.Errorf("limit as %s -> %s: %w", xs[i], cs[i], err)
		}
	}
	b.logger.Debug("computed center limit",
		zap.String("diff", key.String()),
		zap.String("limit", lim.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return lim, nil
}

// Package rbf defines radial basis functions symbolically and evaluates them,
// and their spatial derivatives, numerically.
//
// An RBF is an expression in the radial distance R() and the shape parameter
// Eps(). Each requested derivative is differentiated symbolically, guarded at
// the center by a known or computed limit when a tolerance is set, compiled
// with the selected Backend and cached.
//
//	k, _ := rbf.New(symbolic.ExpOf(symbolic.NegOf(symbolic.PowOf(rbf.R(), symbolic.N(2)))))
//	out, _ := k.Evaluate(points, centers, rbf.WithDiff(1, 0))
package rbf

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/njchilds90/rbf/symbolic"
)

// RBF is a radial basis function together with its singularity handling,
// backend and compile cache. It is safe for concurrent use.
type RBF struct {
	expr   symbolic.Expr
	logger *zap.Logger
	limits *limitMap

	mu      sync.Mutex
	tol     symbolic.Expr
	backend Backend
	cache   map[DiffKey]numericFunc
}

// Option configures an RBF at construction.
type Option func(*options)

type options struct {
	tol     symbolic.Expr
	limits  map[DiffKey]symbolic.Expr
	backend Backend
	logger  *zap.Logger
	err     error
}

// WithTolerance sets the radius below which the center limit is used in place
// of the expression. tol may depend on Eps().
func WithTolerance(tol symbolic.Expr) Option {
	return func(o *options) { o.tol = tol }
}

// WithTol is WithTolerance for a plain number.
func WithTol(tol float64) Option {
	return func(o *options) {
		if math.IsNaN(tol) || math.IsInf(tol, 0) {
			o.err = fmt.Errorf("%w: %v", ErrInvalidTolerance, tol)
			return
		}
		o.tol = symbolic.NFloat(tol)
	}
}

// WithLimits seeds the limits mapping.
func WithLimits(limits map[DiffKey]symbolic.Expr) Option {
	return func(o *options) { o.limits = limits }
}

// WithBackend selects the compilation backend. The default is Closure.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLogger sets the logger. The default is zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New validates expr and returns an RBF. expr may reference only symbols named
// r and eps and must reference r. When eps is absent r is replaced by eps*r.
func New(expr symbolic.Expr, opts ...Option) (*RBF, error) {
	if expr == nil {
		return nil, fmt.Errorf("%w: nil expression", ErrInvalidExpression)
	}
	for _, name := range symbolic.SymbolNames(expr) {
		if name != radius.Name() && name != shape.Name() {
			return nil, fmt.Errorf("%w: %s references %q; only r and eps are allowed",
				ErrInvalidExpression, expr, name)
		}
	}
	if !symbolic.Has(expr, radius.Name()) {
		return nil, fmt.Errorf("%w: %s does not reference r", ErrInvalidExpression, expr)
	}

	expr = canonicalize(expr)
	if !symbolic.Has(expr, shape.Name()) {
		expr = symbolic.Sub(expr, radius.Name(), symbolic.MulOf(shape, radius))
	}

	o := options{backend: Closure}
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}
	if o.logger == nil {
		o.logger = zap.L()
	}

	b := &RBF{expr: expr, logger: o.logger}
	b.limits = newLimitMap(b.ClearCache)
	if err := b.SetTolerance(o.tol); err != nil {
		return nil, err
	}
	if err := b.SetBackend(o.backend); err != nil {
		return nil, err
	}
	b.SetLimits(o.limits)
	return b, nil
}

// Expr returns the expression in R() and Eps().
func (b *RBF) Expr() symbolic.Expr { return b.expr }

// Tolerance returns the tolerance, or nil when singular points are not
// special-cased.
func (b *RBF) Tolerance() symbolic.Expr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tol
}

// SetTolerance replaces the tolerance and clears the cache. nil disables the
// center special case.
func (b *RBF) SetTolerance(tol symbolic.Expr) error {
	if tol != nil {
		tol = canonicalize(tol.Simplify())
		for _, name := range symbolic.SymbolNames(tol) {
			if name != shape.Name() {
				return fmt.Errorf("%w: %s references %q; only eps is allowed", ErrInvalidTolerance, tol, name)
			}
		}
		if n, ok := tol.(*symbolic.Num); ok && n.IsNegative() {
			return fmt.Errorf("%w: %s is negative", ErrInvalidTolerance, tol)
		}
	}
	b.mu.Lock()
	b.tol = tol
	b.clearLocked()
	b.mu.Unlock()
	return nil
}

// Backend returns the compilation backend.
func (b *RBF) Backend() Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backend
}

// SetBackend replaces the backend and clears the cache.
func (b *RBF) SetBackend(backend Backend) error {
	if _, err := backend.compiler(); err != nil {
		return err
	}
	b.mu.Lock()
	b.backend = backend
	b.clearLocked()
	b.mu.Unlock()
	return nil
}

// Limits returns the live limits mapping. Changes made through it clear the
// cache.
func (b *RBF) Limits() Limits { return b.limits }

// SetLimits replaces the contents of the limits mapping and clears the cache.
func (b *RBF) SetLimits(limits map[DiffKey]symbolic.Expr) {
	b.limits.replace(limits)
}

// ClearCache drops every compiled function.
func (b *RBF) ClearCache() {
	b.mu.Lock()
	b.clearLocked()
	b.mu.Unlock()
}

func (b *RBF) clearLocked() {
	b.cache = map[DiffKey]numericFunc{}
}

// CacheLen returns the number of compiled derivatives held.
func (b *RBF) CacheLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cache)
}

func (b *RBF) String() string {
	return fmt.Sprintf("<RBF : %s>", b.expr)
}

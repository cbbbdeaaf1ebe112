package rbf

import "github.com/njchilds90/rbf/symbolic"

// The canonical symbols. Both are flagged positive so that expressions like
// sqrt((eps*r)^2) reduce to eps*r. Sym has no exported mutators, so sharing
// one handle process-wide is safe.
var (
	radius = symbolic.PositiveS("r")
	shape  = symbolic.PositiveS("eps")
)

// R returns the radial distance symbol r that every RBF expression is written in.
func R() *symbolic.Sym { return radius }

// Eps returns the shape parameter symbol eps.
func Eps() *symbolic.Sym { return shape }

// canonicalize rebinds any symbol named r or eps in e to the canonical
// handles so their assumptions take part in simplification.
func canonicalize(e symbolic.Expr) symbolic.Expr {
	if symbolic.Has(e, radius.Name()) {
		e = symbolic.Sub(e, radius.Name(), radius)
	}
	if symbolic.Has(e, shape.Name()) {
		e = symbolic.Sub(e, shape.Name(), shape)
	}
	return e
}

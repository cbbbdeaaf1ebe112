package symbolic

import (
	"errors"
	"fmt"
	"math/big"
)

// ============================================================
// Limits
// ============================================================

// Direction selects the side from which a limit point is approached.
type Direction int

const (
	// FromAbove approaches the point through larger values.
	FromAbove Direction = iota
	// FromBelow approaches the point through smaller values.
	FromBelow
)

func (d Direction) String() string {
	if d == FromBelow {
		return "-"
	}
	return "+"
}

// seriesOrders are the truncation orders tried in turn before a limit is
// reported as undetermined.
var seriesOrders = []int64{4, 8, 16, 24}

// Limit computes the one-sided limit of expr as varName approaches point.
//
// The variable is replaced by point ± h for a fresh positive symbol h. When
// the result is regular at h = 0 it is returned directly; otherwise the
// expression is expanded as a generalized power series in h (rational
// exponents and powers of ln h) and the leading term decides the value. A
// divergent limit is returned as Infinity when the sign of the leading term
// is known, and as ErrLimitDivergent otherwise.
func Limit(expr Expr, varName string, point Expr, dir Direction) (Expr, error) {
	h := freshSymbol(expr, point, "h")
	shift := Expr(h)
	if dir == FromBelow {
		shift = NegOf(h)
	}
	e := expr.Sub(varName, AddOf(point, shift)).Simplify()
	if !Has(e, h.name) {
		if isSingular(e) {
			return nil, fmt.Errorf("%w: %s", ErrLimitDivergent, e)
		}
		return e, nil
	}
	if !needsExpansion(e, h.name) {
		at := e.Sub(h.name, N(0))
		if !isSingular(at) {
			return at, nil
		}
	}

	var lastErr error = ErrLimitUndetermined
	for _, order := range seriesOrders {
		x := &expander{h: h.name, cap: big.NewRat(order, 1)}
		s, err := x.expand(e)
		if errors.Is(err, errInsufficientOrder) {
			continue
		}
		if errors.Is(err, ErrLimitDivergent) {
			return nil, err
		}
		if err != nil {
			lastErr = err
			break
		}
		v, err := s.limit()
		if errors.Is(err, errInsufficientOrder) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	if errors.Is(lastErr, ErrLimitUndetermined) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", ErrLimitUndetermined, lastErr)
}

// freshSymbol returns a positive symbol whose name occurs in none of exprs.
func freshSymbol(expr, point Expr, base string) *Sym {
	used := FreeSymbols(expr)
	for n := range FreeSymbols(point) {
		used[n] = struct{}{}
	}
	name := "_" + base
	for {
		if _, taken := used[name]; !taken {
			return PositiveS(name)
		}
		name += "_"
	}
}

// needsExpansion reports whether direct substitution of h = 0 could hide a
// one-sided jump: sign, floor and ceil are discontinuous at zero and
// conditions compare against it.
func needsExpansion(e Expr, h string) bool {
	switch v := e.(type) {
	case *Func:
		switch v.name {
		case "sign", "floor", "ceil":
			if Has(v.arg, h) {
				return true
			}
		}
		return needsExpansion(v.arg, h)
	case *Add:
		for _, t := range v.terms {
			if needsExpansion(t, h) {
				return true
			}
		}
	case *Mul:
		for _, f := range v.factors {
			if needsExpansion(f, h) {
				return true
			}
		}
	case *Pow:
		return needsExpansion(v.base, h) || needsExpansion(v.exp, h)
	case *Piecewise, *Rel:
		return Has(e, h)
	}
	return false
}

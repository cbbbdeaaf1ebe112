// Package symbolic provides a deterministic symbolic math kernel for Go.
//
// It covers what numeric code generation needs from a computer algebra
// system:
//   - Exact rational arithmetic (math/big.Rat)
//   - Rule-based simplification with stable output
//   - Substitution, differentiation and piecewise expressions
//   - One-sided limits through truncated series expansion
//   - Compilation into scalar closures or vectorized register programs
package symbolic

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

var (
	// ErrUnboundSymbol is returned when compiling an expression that refers to
	// a symbol missing from the argument list.
	ErrUnboundSymbol = errors.New("symbolic: unbound symbol")

	// ErrUnsupported is returned when an operation meets a node it cannot handle.
	ErrUnsupported = errors.New("symbolic: unsupported expression")

	// ErrLimitDivergent is returned when a limit is infinite and its sign
	// cannot be decided. Limits with a known sign are returned as Infinity.
	ErrLimitDivergent = errors.New("symbolic: limit diverges")

	// ErrLimitUndetermined is returned when a limit could not be computed.
	ErrLimitUndetermined = errors.New("symbolic: limit could not be determined")
)

// ============================================================
// Core Interface
// ============================================================

type Expr interface {
	Simplify() Expr
	String() string
	LaTeX() string
	Sub(varName string, value Expr) Expr
	Diff(varName string) Expr
	Eval() (*Num, bool)
	Equal(other Expr) bool
	exprType() string
	toJSON() map[string]interface{}
}

// ============================================================
// Num: exact rational number
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	if q == 0 {
		panic("symbolic: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// NFloat converts a finite float64 into an exact rational.
func NFloat(f float64) *Num {
	n, ok := floatNum(f)
	if !ok {
		panic(fmt.Sprintf("symbolic: %v is not a finite number", f))
	}
	return n
}

func floatNum(f float64) (*Num, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &Num{val: new(big.Rat).SetFloat64(f)}, true
}

func (n *Num) Simplify() Expr        { return n }
func (n *Num) Sub(string, Expr) Expr { return n }
func (n *Num) Diff(string) Expr      { return N(0) }
func (n *Num) Eval() (*Num, bool)    { return n, true }
func (n *Num) Equal(other Expr) bool { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) exprType() string      { return "num" }
func (n *Num) Float64() float64      { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool          { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool           { return n.val.Cmp(big.NewRat(1, 1)) == 0 }
func (n *Num) IsNegOne() bool        { return n.val.Cmp(big.NewRat(-1, 1)) == 0 }
func (n *Num) IsInteger() bool       { return n.val.IsInt() }
func (n *Num) Rat() *big.Rat         { return new(big.Rat).Set(n.val) }
func (n *Num) IsPositive() bool      { return n.val.Sign() > 0 }
func (n *Num) IsNegative() bool      { return n.val.Sign() < 0 }

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func (n *Num) LaTeX() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	sign := ""
	v := new(big.Rat).Set(n.val)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	return fmt.Sprintf("%s\\frac{%s}{%s}", sign, v.Num().String(), v.Denom().String())
}

func (n *Num) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "num", "value": n.String()}
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }
func numNeg(a *Num) *Num    { return &Num{val: new(big.Rat).Neg(a.val)} }
func numRecip(a *Num) *Num {
	if a.IsZero() {
		panic("symbolic: division by zero")
	}
	return &Num{val: new(big.Rat).Inv(a.val)}
}

// numPow folds b^e into an exact rational when that is possible: integer
// exponents of moderate size, and half-integer exponents of perfect squares.
func numPow(b, e *Num) (*Num, bool) {
	if e.IsInteger() {
		if !e.val.Num().IsInt64() {
			return nil, false
		}
		k := e.val.Num().Int64()
		if k > 64 || k < -64 {
			return nil, false
		}
		neg := k < 0
		if neg {
			if b.IsZero() {
				return nil, false
			}
			k = -k
		}
		num := new(big.Int).Exp(b.val.Num(), big.NewInt(k), nil)
		den := new(big.Int).Exp(b.val.Denom(), big.NewInt(k), nil)
		r := &Num{val: new(big.Rat).SetFrac(num, den)}
		if neg {
			r = numRecip(r)
		}
		return r, true
	}
	if b.val.Sign() <= 0 || e.val.Denom().Cmp(big.NewInt(2)) != 0 {
		return nil, false
	}
	num, ok1 := exactSqrt(b.val.Num())
	den, ok2 := exactSqrt(b.val.Denom())
	if !ok1 || !ok2 {
		return nil, false
	}
	root := &Num{val: new(big.Rat).SetFrac(num, den)}
	return numPow(root, &Num{val: new(big.Rat).SetInt(e.val.Num())})
}

func exactSqrt(x *big.Int) (*big.Int, bool) {
	r := new(big.Int).Sqrt(x)
	return r, new(big.Int).Mul(r, r).Cmp(x) == 0
}

// ============================================================
// Sym: symbolic variable
// ============================================================

// Sym is a named variable. Symbols compare by name; a symbol may carry the
// assumption that it is strictly positive, which unlocks power rules such as
// (x^2)^(1/2) = x.
type Sym struct {
	name     string
	positive bool
}

func S(name string) *Sym { return &Sym{name: name} }

// PositiveS returns a symbol assumed to be strictly positive.
func PositiveS(name string) *Sym { return &Sym{name: name, positive: true} }

func (s *Sym) Simplify() Expr { return s }
func (s *Sym) String() string { return s.name }
func (s *Sym) LaTeX() string  { return s.name }
func (s *Sym) Eval() (*Num, bool) {
	return nil, false
}
func (s *Sym) Equal(other Expr) bool { o, ok := other.(*Sym); return ok && s.name == o.name }
func (s *Sym) exprType() string      { return "sym" }
func (s *Sym) Name() string          { return s.name }
func (s *Sym) IsPositive() bool      { return s.positive }
func (s *Sym) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "sym", "name": s.name}
}
func (s *Sym) Sub(varName string, value Expr) Expr {
	if s.name == varName {
		return value
	}
	return s
}
func (s *Sym) Diff(varName string) Expr {
	if s.name == varName {
		return N(1)
	}
	return N(0)
}

// ============================================================
// Inf: signed infinity
// ============================================================

// Inf is +oo or -oo, the value of a limit that diverges in a known direction.
// It is an opaque atom: simplification does not fold it, and compilation
// lowers it to the matching IEEE infinity.
type Inf struct{ neg bool }

// Infinity returns -oo for a negative sign and +oo otherwise.
func Infinity(sign int) *Inf { return &Inf{neg: sign < 0} }

func (i *Inf) Simplify() Expr        { return i }
func (i *Inf) Sub(string, Expr) Expr { return i }
func (i *Inf) Diff(string) Expr      { return N(0) }
func (i *Inf) Eval() (*Num, bool)    { return nil, false }
func (i *Inf) exprType() string      { return "inf" }

func (i *Inf) Equal(other Expr) bool {
	o, ok := other.(*Inf)
	return ok && i.neg == o.neg
}

// Sign returns -1 or 1.
func (i *Inf) Sign() int {
	if i.neg {
		return -1
	}
	return 1
}

func (i *Inf) Float64() float64 { return math.Inf(i.Sign()) }

func (i *Inf) String() string {
	if i.neg {
		return "-oo"
	}
	return "oo"
}

func (i *Inf) LaTeX() string {
	if i.neg {
		return `-\infty`
	}
	return `\infty`
}

func (i *Inf) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "inf", "sign": i.Sign()}
}

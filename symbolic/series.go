package symbolic

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
)

// errInsufficientOrder reports that a truncated expansion lost every term it
// needed; the caller retries with a higher order.
var errInsufficientOrder = errors.New("symbolic: series order too low")

// coeffTolerance is the magnitude below which a numeric coefficient counts as
// a cancelled term.
const coeffTolerance = 1e-12

// maxSeriesTerms bounds the number of terms of any power or Taylor sum.
const maxSeriesTerms = 64

// sterm is coeff * h^exp * ln(h)^logp.
type sterm struct {
	exp   *big.Rat
	logp  int
	coeff Expr
}

// series is a truncated generalized power series in a positive variable h,
// ordered from the dominant term as h -> 0+. A nil prec marks an exact series;
// otherwise every omitted term is O(h^prec).
type series struct {
	terms []sterm
	prec  *big.Rat
}

func (s *series) isExactZero() bool { return len(s.terms) == 0 && s.prec == nil }

// leadExp returns the exponent of the dominant term, or the precision when no
// term survived. It is nil only for an exact zero.
func (s *series) leadExp() *big.Rat {
	if len(s.terms) > 0 {
		return s.terms[0].exp
	}
	return s.prec
}

// limit reads the value of the series as h -> 0+.
func (s *series) limit() (Expr, error) {
	if len(s.terms) == 0 {
		if s.prec == nil || s.prec.Sign() > 0 {
			return N(0), nil
		}
		return nil, errInsufficientOrder
	}
	t := s.terms[0]
	switch {
	case t.exp.Sign() > 0:
		return N(0), nil
	case t.exp.Sign() < 0 || t.logp > 0:
		sgn, ok := coeffSign(t.coeff)
		if !ok {
			return nil, fmt.Errorf("%w: sign of %s is unknown", ErrLimitDivergent, t.coeff)
		}
		// ln h -> -oo
		if t.logp%2 == 1 {
			sgn = -sgn
		}
		return Infinity(sgn), nil
	}
	return t.coeff, nil
}

// coeffSign returns the sign of a nonzero coefficient when it can be decided
// numerically or from positivity assumptions.
func coeffSign(c Expr) (int, bool) {
	if v, ok := c.Eval(); ok {
		switch f := v.Float64(); {
		case f > 0:
			return 1, true
		case f < 0:
			return -1, true
		}
		return 0, false
	}
	if isPositive(c) {
		return 1, true
	}
	if isPositive(NegOf(c)) {
		return -1, true
	}
	return 0, false
}

func ratAdd(a, b *big.Rat) *big.Rat { return new(big.Rat).Add(a, b) }
func ratMul(a, b *big.Rat) *big.Rat { return new(big.Rat).Mul(a, b) }

// minPrec treats nil as +infinity.
func minPrec(a, b *big.Rat) *big.Rat {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Cmp(b) <= 0:
		return a
	}
	return b
}

func isZeroCoeff(c Expr) bool {
	if n, ok := c.(*Num); ok {
		return n.IsZero()
	}
	if v, ok := c.Eval(); ok {
		return math.Abs(v.Float64()) < coeffTolerance
	}
	return false
}

// expander expands expressions in the symbol h, dropping every term whose
// exponent reaches cap.
type expander struct {
	h   string
	cap *big.Rat
}

func (x *expander) build(terms []sterm, prec *big.Rat) *series {
	type slot struct {
		exp   *big.Rat
		logp  int
		parts []Expr
	}
	slots := map[string]*slot{}
	keys := []string{}
	for _, t := range terms {
		if prec != nil && t.exp.Cmp(prec) >= 0 {
			continue
		}
		if t.exp.Cmp(x.cap) >= 0 {
			prec = minPrec(prec, x.cap)
			continue
		}
		key := fmt.Sprintf("%s|%d", t.exp.RatString(), t.logp)
		sl, ok := slots[key]
		if !ok {
			sl = &slot{exp: t.exp, logp: t.logp}
			slots[key] = sl
			keys = append(keys, key)
		}
		sl.parts = append(sl.parts, t.coeff)
	}
	out := &series{prec: prec}
	for _, key := range keys {
		sl := slots[key]
		coeff := Expand(AddOf(sl.parts...))
		if isZeroCoeff(coeff) {
			continue
		}
		out.terms = append(out.terms, sterm{exp: sl.exp, logp: sl.logp, coeff: coeff})
	}
	sort.Slice(out.terms, func(i, j int) bool {
		if c := out.terms[i].exp.Cmp(out.terms[j].exp); c != 0 {
			return c < 0
		}
		return out.terms[i].logp > out.terms[j].logp
	})
	return out
}

func (x *expander) constant(c Expr) *series {
	return x.build([]sterm{{exp: new(big.Rat), coeff: c}}, nil)
}

func (x *expander) monomial(exp *big.Rat, logp int, c Expr) *series {
	return x.build([]sterm{{exp: exp, logp: logp, coeff: c}}, nil)
}

func (x *expander) add(a, b *series) *series {
	terms := make([]sterm, 0, len(a.terms)+len(b.terms))
	terms = append(terms, a.terms...)
	terms = append(terms, b.terms...)
	return x.build(terms, minPrec(a.prec, b.prec))
}

func (x *expander) mul(a, b *series) *series {
	if a.isExactZero() || b.isExactZero() {
		return &series{}
	}
	var prec *big.Rat
	if a.prec != nil {
		prec = minPrec(prec, ratAdd(a.prec, b.leadExp()))
	}
	if b.prec != nil {
		prec = minPrec(prec, ratAdd(b.prec, a.leadExp()))
	}
	terms := make([]sterm, 0, len(a.terms)*len(b.terms))
	for _, ta := range a.terms {
		for _, tb := range b.terms {
			terms = append(terms, sterm{
				exp:   ratAdd(ta.exp, tb.exp),
				logp:  ta.logp + tb.logp,
				coeff: MulOf(ta.coeff, tb.coeff),
			})
		}
	}
	return x.build(terms, prec)
}

func (x *expander) scale(s *series, c Expr) *series { return x.mul(s, x.constant(c)) }

func (x *expander) powInt(s *series, n int) *series {
	out := x.constant(N(1))
	for i := 0; i < n; i++ {
		out = x.mul(out, s)
	}
	return out
}

// sum evaluates sum_k coeff(k) * u^k for k = 0..K where K is the last index
// whose order K*lead(u) stays below budget. It assumes lead(u) > 0.
func (x *expander) sum(u *series, budget *big.Rat, coeff func(k int) Expr) *series {
	if len(u.terms) == 0 {
		return x.build([]sterm{{exp: new(big.Rat), coeff: coeff(0)}}, u.prec)
	}
	delta := u.terms[0].exp
	out := x.constant(coeff(0))
	power := x.constant(N(1))
	k := 1
	for ; k < maxSeriesTerms; k++ {
		if ratMul(delta, big.NewRat(int64(k), 1)).Cmp(budget) >= 0 {
			break
		}
		power = x.mul(power, u)
		out = x.add(out, x.scale(power, coeff(k)))
	}
	tail := ratMul(delta, big.NewRat(int64(k), 1))
	return x.build(out.terms, minPrec(out.prec, tail))
}

// normalized splits s into c0 * h^a0 * (1 + u) where u has only positive
// exponents.
func (x *expander) normalized(s *series) (c0 Expr, a0 *big.Rat, u *series, err error) {
	if len(s.terms) == 0 {
		if s.prec == nil {
			return nil, nil, nil, ErrLimitDivergent
		}
		return nil, nil, nil, errInsufficientOrder
	}
	lead := s.terms[0]
	if lead.logp != 0 {
		return nil, nil, nil, fmt.Errorf("%w: logarithmic leading term", ErrUnsupported)
	}
	inv := x.monomial(new(big.Rat).Neg(lead.exp), 0, PowOf(lead.coeff, N(-1)))
	u = x.add(x.mul(s, inv), x.constant(N(-1)))
	return lead.coeff, lead.exp, u, nil
}

func binomial(e *Num, k int) Expr {
	acc := N(1)
	for j := 0; j < k; j++ {
		acc = numMul(acc, numAdd(e, N(int64(-j))))
		acc = numMul(acc, F(1, int64(j+1)))
	}
	return acc
}

func (x *expander) pow(s *series, e Expr) (*series, error) {
	en, isNum := e.(*Num)
	if isNum && en.IsInteger() && en.IsPositive() && en.val.Num().IsInt64() && en.val.Num().Int64() <= 16 {
		return x.powInt(s, int(en.val.Num().Int64())), nil
	}
	if s.isExactZero() {
		if isNum && en.IsPositive() {
			return &series{}, nil
		}
		return nil, ErrLimitDivergent
	}
	c0, a0, u, err := x.normalized(s)
	if err != nil {
		return nil, err
	}
	shift := new(big.Rat)
	if a0.Sign() != 0 {
		if !isNum {
			return nil, fmt.Errorf("%w: symbolic exponent of %s", ErrUnsupported, x.h)
		}
		shift = ratMul(a0, en.val)
	}
	budget := new(big.Rat).Set(x.cap)
	if shift.Sign() < 0 {
		budget.Sub(budget, shift)
	}
	var body *series
	if isNum {
		body = x.sum(u, budget, func(k int) Expr { return binomial(en, k) })
	} else {
		body = x.sum(u, budget, func(k int) Expr {
			parts := []Expr{invFactorial(k)}
			for j := 0; j < k; j++ {
				parts = append(parts, AddOf(e, N(int64(-j))))
			}
			return MulOf(parts...)
		})
	}
	return x.mul(x.monomial(shift, 0, PowOf(c0, e)), body), nil
}

func invFactorial(k int) *Num {
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(1), new(big.Int).MulRange(1, int64(k)))}
}

func (x *expander) ln(s *series) (*series, error) {
	c0, a0, u, err := x.normalized(s)
	if err != nil {
		return nil, err
	}
	// ln(1+u) = sum (-1)^(k+1) u^k / k
	body := x.sum(u, x.cap, func(k int) Expr {
		if k == 0 {
			return N(0)
		}
		sign := int64(1)
		if k%2 == 0 {
			sign = -1
		}
		return F(sign, int64(k))
	})
	out := x.add(x.constant(LnOf(c0)), body)
	if a0.Sign() != 0 {
		out = x.add(out, x.monomial(new(big.Rat), 1, &Num{val: new(big.Rat).Set(a0)}))
	}
	return out, nil
}

// split separates the constant part of s from the part that vanishes with h.
// Terms h^0 ln(h) are returned as logCoeff.
func (x *expander) split(s *series) (c Expr, logCoeff Expr, u *series, err error) {
	c, logCoeff = N(0), N(0)
	rest := []sterm{}
	for _, t := range s.terms {
		switch {
		case t.exp.Sign() < 0:
			return nil, nil, nil, fmt.Errorf("%w: argument diverges", ErrUnsupported)
		case t.exp.Sign() == 0 && t.logp == 0:
			c = t.coeff
		case t.exp.Sign() == 0 && t.logp == 1:
			logCoeff = t.coeff
		case t.exp.Sign() == 0:
			return nil, nil, nil, fmt.Errorf("%w: argument diverges", ErrUnsupported)
		default:
			rest = append(rest, t)
		}
	}
	if len(s.terms) == 0 && s.prec != nil && s.prec.Sign() <= 0 {
		return nil, nil, nil, errInsufficientOrder
	}
	return c, logCoeff, x.build(rest, s.prec), nil
}

// taylor expands name(s) as sum f^(k)(c)/k! * u^k around the constant part c.
func (x *expander) taylor(name string, s *series) (*series, error) {
	c, logCoeff, u, err := x.split(s)
	if err != nil {
		return nil, err
	}
	var shift *big.Rat
	if !isNumEqual(logCoeff, 0) {
		// exp(a ln h) = h^a
		ln, ok := logCoeff.(*Num)
		if name != "exp" || !ok {
			return nil, fmt.Errorf("%w: %s of a logarithm", ErrUnsupported, name)
		}
		shift = ln.Rat()
	}
	t := "_t"
	derivs := []Expr{funcOf(name, S(t))}
	var failed error
	body := x.sum(u, x.cap, func(k int) Expr {
		for len(derivs) <= k {
			derivs = append(derivs, Diff(derivs[len(derivs)-1], t))
		}
		v := MulOf(invFactorial(k), derivs[k].Sub(t, c))
		if isSingular(v) && failed == nil {
			failed = fmt.Errorf("%w: %s is singular at %s", ErrUnsupported, name, c)
		}
		return v
	})
	if failed != nil {
		return nil, failed
	}
	if shift != nil {
		body = x.mul(x.monomial(shift, 0, N(1)), body)
	}
	return body, nil
}

func (x *expander) signOf(s *series) (int, error) {
	if s.isExactZero() {
		return 0, nil
	}
	if len(s.terms) == 0 {
		return 0, errInsufficientOrder
	}
	c := s.terms[0].coeff
	if sgn, ok := coeffSign(c); ok {
		return sgn, nil
	}
	return 0, fmt.Errorf("%w: sign of %s is unknown", ErrUnsupported, c)
}

func (x *expander) expand(e Expr) (*series, error) {
	if !Has(e, x.h) {
		return x.constant(e), nil
	}
	switch v := e.(type) {
	case *Sym:
		return x.monomial(big.NewRat(1, 1), 0, N(1)), nil
	case *Add:
		out := &series{}
		for _, t := range v.terms {
			st, err := x.expand(t)
			if err != nil {
				return nil, err
			}
			out = x.add(out, st)
		}
		return out, nil
	case *Mul:
		out := x.constant(N(1))
		for _, f := range v.factors {
			sf, err := x.expand(f)
			if err != nil {
				return nil, err
			}
			out = x.mul(out, sf)
		}
		return out, nil
	case *Pow:
		if Has(v.exp, x.h) {
			return x.expand(ExpOf(MulOf(v.exp, LnOf(v.base))))
		}
		base, err := x.expand(v.base)
		if err != nil {
			return nil, err
		}
		return x.pow(base, v.exp)
	case *Func:
		arg, err := x.expand(v.arg)
		if err != nil {
			return nil, err
		}
		switch v.name {
		case "ln":
			return x.ln(arg)
		case "abs":
			sgn, err := x.signOf(arg)
			if err != nil {
				return nil, err
			}
			return x.scale(arg, N(int64(sgn))), nil
		case "sign":
			sgn, err := x.signOf(arg)
			if err != nil {
				return nil, err
			}
			return x.constant(N(int64(sgn))), nil
		case "exp", "sin", "cos", "tan", "sinh", "cosh", "tanh", "asin", "acos", "atan":
			return x.taylor(v.name, arg)
		}
	}
	return nil, fmt.Errorf("%w: cannot expand %s in %s", ErrUnsupported, e, x.h)
}

package symbolic

import (
	"strings"
)

// ============================================================
// Rel: relational condition
// ============================================================

// Rel compares two expressions. A relation whose sides are both numeric
// simplifies to 1 (true) or 0 (false).
type Rel struct {
	op       string
	lhs, rhs Expr
}

func relOf(op string, lhs, rhs Expr) Expr { return (&Rel{op: op, lhs: lhs, rhs: rhs}).Simplify() }

func Lt(lhs, rhs Expr) Expr { return relOf("<", lhs, rhs) }
func Le(lhs, rhs Expr) Expr { return relOf("<=", lhs, rhs) }
func Gt(lhs, rhs Expr) Expr { return relOf(">", lhs, rhs) }
func Ge(lhs, rhs Expr) Expr { return relOf(">=", lhs, rhs) }

func (r *Rel) holds(a, b float64) bool {
	switch r.op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func (r *Rel) Simplify() Expr {
	s := &Rel{op: r.op, lhs: r.lhs.Simplify(), rhs: r.rhs.Simplify()}
	if truth, ok := s.Eval(); ok {
		return truth
	}
	return s
}

func (r *Rel) String() string { return r.lhs.String() + " " + r.op + " " + r.rhs.String() }

func (r *Rel) LaTeX() string {
	op := map[string]string{"<": "<", "<=": "\\leq", ">": ">", ">=": "\\geq"}[r.op]
	return r.lhs.LaTeX() + " " + op + " " + r.rhs.LaTeX()
}

func (r *Rel) Sub(varName string, value Expr) Expr {
	return relOf(r.op, r.lhs.Sub(varName, value), r.rhs.Sub(varName, value))
}

func (r *Rel) Diff(string) Expr { return N(0) }

func (r *Rel) Eval() (*Num, bool) {
	a, ok1 := r.lhs.Eval()
	b, ok2 := r.rhs.Eval()
	if !ok1 || !ok2 {
		return nil, false
	}
	if r.holds(float64(a.val.Cmp(b.val)), 0) {
		return N(1), true
	}
	return N(0), true
}

func (r *Rel) Equal(other Expr) bool {
	o, ok := other.(*Rel)
	return ok && r.op == o.op && r.lhs.Equal(o.lhs) && r.rhs.Equal(o.rhs)
}

func (r *Rel) exprType() string { return "rel" }
func (r *Rel) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "rel", "op": r.op, "lhs": r.lhs.toJSON(), "rhs": r.rhs.toJSON()}
}
func (r *Rel) Op() string { return r.op }
func (r *Rel) LHS() Expr  { return r.lhs }
func (r *Rel) RHS() Expr  { return r.rhs }

// ============================================================
// Piecewise: ordered conditional expression
// ============================================================

// Case is one branch of a Piecewise. A nil Cond always holds.
type Case struct {
	Value Expr
	Cond  Expr
}

func When(value, cond Expr) Case { return Case{Value: value, Cond: cond} }
func Otherwise(value Expr) Case  { return Case{Value: value} }

// Piecewise takes the value of the first case whose condition holds. When no
// condition holds the value is undefined.
type Piecewise struct{ cases []Case }

func PiecewiseOf(cases ...Case) Expr { return (&Piecewise{cases: cases}).Simplify() }

func condTruth(cond Expr) (truth, known bool) {
	if cond == nil {
		return true, true
	}
	if n, ok := cond.(*Num); ok {
		return !n.IsZero(), true
	}
	return false, false
}

func (p *Piecewise) Simplify() Expr {
	out := make([]Case, 0, len(p.cases))
	for _, c := range p.cases {
		var cond Expr
		if c.Cond != nil {
			cond = c.Cond.Simplify()
		}
		truth, known := condTruth(cond)
		if known && !truth {
			continue
		}
		if known {
			out = append(out, Case{Value: c.Value.Simplify()})
			break
		}
		out = append(out, Case{Value: c.Value.Simplify(), Cond: cond})
	}
	if len(out) == 1 && out[0].Cond == nil {
		return out[0].Value
	}
	return &Piecewise{cases: out}
}

func (p *Piecewise) String() string {
	parts := make([]string, len(p.cases))
	for i, c := range p.cases {
		cond := "otherwise"
		if c.Cond != nil {
			cond = c.Cond.String()
		}
		parts[i] = "(" + c.Value.String() + ", " + cond + ")"
	}
	return "Piecewise(" + strings.Join(parts, ", ") + ")"
}

func (p *Piecewise) LaTeX() string {
	rows := make([]string, len(p.cases))
	for i, c := range p.cases {
		cond := "\\text{otherwise}"
		if c.Cond != nil {
			cond = "\\text{for}\\: " + c.Cond.LaTeX()
		}
		rows[i] = c.Value.LaTeX() + " & " + cond
	}
	return "\\begin{cases} " + strings.Join(rows, " \\\\ ") + " \\end{cases}"
}

func (p *Piecewise) mapCases(fn func(Expr) Expr, mapCond bool) Expr {
	cases := make([]Case, len(p.cases))
	for i, c := range p.cases {
		cases[i] = Case{Value: fn(c.Value), Cond: c.Cond}
		if mapCond && c.Cond != nil {
			cases[i].Cond = fn(c.Cond)
		}
	}
	return PiecewiseOf(cases...)
}

func (p *Piecewise) Sub(varName string, value Expr) Expr {
	return p.mapCases(func(e Expr) Expr { return e.Sub(varName, value) }, true)
}

// Diff differentiates each branch and keeps the conditions.
func (p *Piecewise) Diff(varName string) Expr {
	return p.mapCases(func(e Expr) Expr { return e.Diff(varName) }, false)
}

func (p *Piecewise) Eval() (*Num, bool) {
	for _, c := range p.cases {
		if c.Cond == nil {
			return c.Value.Eval()
		}
		n, ok := c.Cond.Eval()
		if !ok {
			return nil, false
		}
		if !n.IsZero() {
			return c.Value.Eval()
		}
	}
	return nil, false
}

func (p *Piecewise) Equal(other Expr) bool {
	o, ok := other.(*Piecewise)
	if !ok || len(p.cases) != len(o.cases) {
		return false
	}
	for i, c := range p.cases {
		oc := o.cases[i]
		if !c.Value.Equal(oc.Value) {
			return false
		}
		if (c.Cond == nil) != (oc.Cond == nil) {
			return false
		}
		if c.Cond != nil && !c.Cond.Equal(oc.Cond) {
			return false
		}
	}
	return true
}

func (p *Piecewise) exprType() string { return "piecewise" }
func (p *Piecewise) toJSON() map[string]interface{} {
	cs := make([]map[string]interface{}, len(p.cases))
	for i, c := range p.cases {
		m := map[string]interface{}{"value": c.Value.toJSON()}
		if c.Cond != nil {
			m["cond"] = c.Cond.toJSON()
		}
		cs[i] = m
	}
	return map[string]interface{}{"type": "piecewise", "cases": cs}
}

// Cases returns a copy of the branches.
func (p *Piecewise) Cases() []Case { return append([]Case(nil), p.cases...) }

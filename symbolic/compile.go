package symbolic

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ============================================================
// Numeric compilation
// ============================================================

// Lambda is a compiled scalar function. args holds one value per variable in
// the order given to Lambdify.
type Lambda func(args []float64) float64

type scalarFn func(args []float64) float64

// Lambdify compiles e into a tree of closures over vars.
func Lambdify(e Expr, vars []*Sym) (Lambda, error) {
	index, err := varIndex(vars)
	if err != nil {
		return nil, err
	}
	fn, err := lambdify(e, index)
	if err != nil {
		return nil, err
	}
	return Lambda(fn), nil
}

func varIndex(vars []*Sym) (map[string]int, error) {
	index := make(map[string]int, len(vars))
	for i, v := range vars {
		if _, dup := index[v.name]; dup {
			return nil, fmt.Errorf("symbolic: duplicate variable %q", v.name)
		}
		index[v.name] = i
	}
	return index, nil
}

func lambdify(e Expr, index map[string]int) (scalarFn, error) {
	switch v := e.(type) {
	case *Num:
		c := v.Float64()
		return func([]float64) float64 { return c }, nil
	case *Inf:
		c := v.Float64()
		return func([]float64) float64 { return c }, nil
	case *Sym:
		i, ok := index[v.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundSymbol, v.name)
		}
		return func(a []float64) float64 { return a[i] }, nil
	case *Add:
		fs, err := lambdifyAll(v.terms, index)
		if err != nil {
			return nil, err
		}
		head, rest := fs[0], fs[1:]
		return func(a []float64) float64 {
			s := head(a)
			for _, f := range rest {
				s += f(a)
			}
			return s
		}, nil
	case *Mul:
		fs, err := lambdifyAll(v.factors, index)
		if err != nil {
			return nil, err
		}
		head, rest := fs[0], fs[1:]
		return func(a []float64) float64 {
			p := head(a)
			for _, f := range rest {
				p *= f(a)
			}
			return p
		}, nil
	case *Pow:
		base, err := lambdify(v.base, index)
		if err != nil {
			return nil, err
		}
		if en, ok := v.exp.(*Num); ok {
			k := en.Float64()
			return func(a []float64) float64 { return powConst(base(a), k) }, nil
		}
		exp, err := lambdify(v.exp, index)
		if err != nil {
			return nil, err
		}
		return func(a []float64) float64 { return math.Pow(base(a), exp(a)) }, nil
	case *Func:
		fn, ok := unaryFuncs[v.name]
		if !ok {
			return nil, fmt.Errorf("%w: function %s", ErrUnsupported, v.name)
		}
		arg, err := lambdify(v.arg, index)
		if err != nil {
			return nil, err
		}
		return func(a []float64) float64 { return fn(arg(a)) }, nil
	case *Rel:
		lhs, err := lambdify(v.lhs, index)
		if err != nil {
			return nil, err
		}
		rhs, err := lambdify(v.rhs, index)
		if err != nil {
			return nil, err
		}
		holds := v.holds
		return func(a []float64) float64 { return boolFloat(holds(lhs(a), rhs(a))) }, nil
	case *Piecewise:
		conds := make([]scalarFn, len(v.cases))
		vals := make([]scalarFn, len(v.cases))
		for i, c := range v.cases {
			val, err := lambdify(c.Value, index)
			if err != nil {
				return nil, err
			}
			vals[i] = val
			if c.Cond != nil {
				cond, err := lambdify(c.Cond, index)
				if err != nil {
					return nil, err
				}
				conds[i] = cond
			}
		}
		return func(a []float64) float64 {
			for i, val := range vals {
				if conds[i] == nil || conds[i](a) != 0 {
					return val(a)
				}
			}
			return math.NaN()
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, e.exprType())
}

func lambdifyAll(es []Expr, index map[string]int) ([]scalarFn, error) {
	fs := make([]scalarFn, len(es))
	for i, e := range es {
		f, err := lambdify(e, index)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}
	return fs, nil
}

// powConst raises x to a constant power. Both backends go through it so that
// they produce bit-identical results.
func powConst(x, k float64) float64 {
	switch k {
	case 0.5:
		return math.Sqrt(x)
	case -0.5:
		return 1 / math.Sqrt(x)
	case 1:
		return x
	case -1:
		return 1 / x
	case 2:
		return x * x
	}
	return math.Pow(x, k)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ============================================================
// Register programs
// ============================================================

// blockSize is the number of elements each instruction processes per pass.
const blockSize = 256

type opcode uint8

const (
	opConst opcode = iota
	opArg
	opAdd
	opMul
	opPowConst
	opPow
	opUnary
	opRel
	opSelect
)

type instr struct {
	op   opcode
	dst  int
	args []int
	k    float64
	fn   func(float64) float64
	rel  func(a, b float64) bool
}

// Program is a straight-line register program compiled from an expression.
// Identical subexpressions share one register. A Program is immutable and
// safe for concurrent use.
type Program struct {
	nvars int
	code  []instr
	nregs int
	out   int
}

type cseEntry struct {
	e   Expr
	reg int
}

type programBuilder struct {
	index map[string]int
	code  []instr
	nregs int
	seen  map[uint64][]cseEntry
}

// Compile translates e into a register program over vars.
func Compile(e Expr, vars []*Sym) (*Program, error) {
	index, err := varIndex(vars)
	if err != nil {
		return nil, err
	}
	b := &programBuilder{index: index, seen: map[uint64][]cseEntry{}}
	out, err := b.emit(e)
	if err != nil {
		return nil, err
	}
	return &Program{nvars: len(vars), code: b.code, nregs: b.nregs, out: out}, nil
}

func fingerprint(e Expr) uint64 {
	return xxhash.Sum64String(e.exprType() + ":" + e.String())
}

func (b *programBuilder) push(in instr) int {
	in.dst = b.nregs
	b.nregs++
	b.code = append(b.code, in)
	return in.dst
}

func (b *programBuilder) emitAll(es []Expr) ([]int, error) {
	regs := make([]int, len(es))
	for i, e := range es {
		r, err := b.emit(e)
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}
	return regs, nil
}

func (b *programBuilder) emit(e Expr) (int, error) {
	key := fingerprint(e)
	for _, ent := range b.seen[key] {
		if ent.e.Equal(e) {
			return ent.reg, nil
		}
	}
	reg, err := b.emitNode(e)
	if err != nil {
		return 0, err
	}
	b.seen[key] = append(b.seen[key], cseEntry{e: e, reg: reg})
	return reg, nil
}

func (b *programBuilder) emitNode(e Expr) (int, error) {
	switch v := e.(type) {
	case *Num:
		return b.push(instr{op: opConst, k: v.Float64()}), nil
	case *Inf:
		return b.push(instr{op: opConst, k: v.Float64()}), nil
	case *Sym:
		i, ok := b.index[v.name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnboundSymbol, v.name)
		}
		return b.push(instr{op: opArg, args: []int{i}}), nil
	case *Add:
		regs, err := b.emitAll(v.terms)
		if err != nil {
			return 0, err
		}
		return b.push(instr{op: opAdd, args: regs}), nil
	case *Mul:
		regs, err := b.emitAll(v.factors)
		if err != nil {
			return 0, err
		}
		return b.push(instr{op: opMul, args: regs}), nil
	case *Pow:
		base, err := b.emit(v.base)
		if err != nil {
			return 0, err
		}
		if en, ok := v.exp.(*Num); ok {
			return b.push(instr{op: opPowConst, args: []int{base}, k: en.Float64()}), nil
		}
		exp, err := b.emit(v.exp)
		if err != nil {
			return 0, err
		}
		return b.push(instr{op: opPow, args: []int{base, exp}}), nil
	case *Func:
		fn, ok := unaryFuncs[v.name]
		if !ok {
			return 0, fmt.Errorf("%w: function %s", ErrUnsupported, v.name)
		}
		arg, err := b.emit(v.arg)
		if err != nil {
			return 0, err
		}
		return b.push(instr{op: opUnary, args: []int{arg}, fn: fn}), nil
	case *Rel:
		regs, err := b.emitAll([]Expr{v.lhs, v.rhs})
		if err != nil {
			return 0, err
		}
		return b.push(instr{op: opRel, args: regs, rel: v.holds}), nil
	case *Piecewise:
		// args holds (cond, value) pairs; cond -1 always holds.
		args := make([]int, 0, 2*len(v.cases))
		for _, c := range v.cases {
			cond := -1
			if c.Cond != nil {
				r, err := b.emit(c.Cond)
				if err != nil {
					return 0, err
				}
				cond = r
			}
			val, err := b.emit(c.Value)
			if err != nil {
				return 0, err
			}
			args = append(args, cond, val)
		}
		return b.push(instr{op: opSelect, args: args}), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupported, e.exprType())
}

// NumVars returns the number of arguments the program expects.
func (p *Program) NumVars() int { return p.nvars }

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.code) }

// Call evaluates the program at a single point.
func (p *Program) Call(args ...float64) float64 {
	cols := make([][]float64, len(args))
	for i := range args {
		cols[i] = args[i : i+1]
	}
	out := make([]float64, 1)
	if err := p.Run(cols, out); err != nil {
		return math.NaN()
	}
	return out[0]
}

// Run evaluates the program element-wise. Each argument column must have
// len(out) elements, or exactly one element to be broadcast.
func (p *Program) Run(args [][]float64, out []float64) error {
	if len(args) != p.nvars {
		return fmt.Errorf("symbolic: program takes %d arguments, got %d", p.nvars, len(args))
	}
	n := len(out)
	for i, a := range args {
		if len(a) != n && len(a) != 1 {
			return fmt.Errorf("symbolic: argument %d has length %d, want %d or 1", i, len(a), n)
		}
	}
	regs := make([][]float64, p.nregs)
	backing := make([]float64, p.nregs*blockSize)
	for i := range regs {
		regs[i] = backing[i*blockSize : (i+1)*blockSize]
	}
	for start := 0; start < n; start += blockSize {
		w := min(blockSize, n-start)
		for _, in := range p.code {
			p.exec(in, regs, args, start, w)
		}
		copy(out[start:start+w], regs[p.out][:w])
	}
	return nil
}

func (p *Program) exec(in instr, regs [][]float64, args [][]float64, start, w int) {
	dst := regs[in.dst][:w]
	switch in.op {
	case opConst:
		for i := range dst {
			dst[i] = in.k
		}
	case opArg:
		src := args[in.args[0]]
		if len(src) == 1 {
			for i := range dst {
				dst[i] = src[0]
			}
			return
		}
		copy(dst, src[start:start+w])
	case opAdd:
		copy(dst, regs[in.args[0]][:w])
		for _, r := range in.args[1:] {
			src := regs[r][:w]
			for i := range dst {
				dst[i] += src[i]
			}
		}
	case opMul:
		copy(dst, regs[in.args[0]][:w])
		for _, r := range in.args[1:] {
			src := regs[r][:w]
			for i := range dst {
				dst[i] *= src[i]
			}
		}
	case opPowConst:
		src := regs[in.args[0]][:w]
		for i := range dst {
			dst[i] = powConst(src[i], in.k)
		}
	case opPow:
		base, exp := regs[in.args[0]][:w], regs[in.args[1]][:w]
		for i := range dst {
			dst[i] = math.Pow(base[i], exp[i])
		}
	case opUnary:
		src := regs[in.args[0]][:w]
		for i := range dst {
			dst[i] = in.fn(src[i])
		}
	case opRel:
		lhs, rhs := regs[in.args[0]][:w], regs[in.args[1]][:w]
		for i := range dst {
			dst[i] = boolFloat(in.rel(lhs[i], rhs[i]))
		}
	case opSelect:
		for i := range dst {
			dst[i] = math.NaN()
			for j := 0; j < len(in.args); j += 2 {
				cond := in.args[j]
				if cond < 0 || regs[cond][i] != 0 {
					dst[i] = regs[in.args[j+1]][i]
					break
				}
			}
		}
	}
}

package rbf

import (
	"fmt"
	"strings"

	"github.com/njchilds90/rbf/symbolic"
)

// Backend selects how a differentiated expression is turned into a numeric
// function.
type Backend int

const (
	// Closure compiles to a tree of Go closures and evaluates every
	// point/center pair directly from the input columns.
	Closure Backend = iota
	// Bytecode compiles to a register program with shared subexpressions
	// and evaluates over tiled N*M argument arrays in blocks.
	Bytecode
)

func (b Backend) String() string {
	switch b {
	case Closure:
		return "closure"
	case Bytecode:
		return "bytecode"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend maps a backend name to its Backend. Matching ignores case.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "closure":
		return Closure, nil
	case "bytecode":
		return Bytecode, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
}

// numericFunc is a compiled derivative of an RBF. args holds the D point
// coordinate columns, the D center coordinate columns and the shape
// parameters, in that order.
type numericFunc interface {
	// broadcasts reports whether call takes columns of length N (points)
	// and M (centers, eps) rather than tiled columns of length N*M.
	broadcasts() bool
	call(args [][]float64, n, m int, out []float64) error
}

// compiler is the strategy a Backend resolves to.
type compiler interface {
	compile(e symbolic.Expr, vars []*symbolic.Sym) (numericFunc, error)
}

func (b Backend) compiler() (compiler, error) {
	switch b {
	case Closure:
		return closureCompiler{}, nil
	case Bytecode:
		return bytecodeCompiler{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, b)
}

type closureCompiler struct{}

func (closureCompiler) compile(e symbolic.Expr, vars []*symbolic.Sym) (numericFunc, error) {
	f, err := symbolic.Lambdify(e, vars)
	if err != nil {
		return nil, err
	}
	return &closureFunc{f: f, dim: (len(vars) - 1) / 2}, nil
}

type closureFunc struct {
	f   symbolic.Lambda
	dim int
}

func (*closureFunc) broadcasts() bool { return true }

func (c *closureFunc) call(args [][]float64, n, m int, out []float64) error {
	d := c.dim
	if len(args) != 2*d+1 {
		return fmt.Errorf("rbf: closure takes %d argument columns, got %d", 2*d+1, len(args))
	}
	buf := make([]float64, 2*d+1)
	for i := 0; i < n; i++ {
		for k := 0; k < d; k++ {
			buf[k] = args[k][i]
		}
		row := out[i*m : (i+1)*m]
		for j := range row {
			for k := 0; k < d; k++ {
				buf[d+k] = args[d+k][j]
			}
			buf[2*d] = args[2*d][j]
			row[j] = c.f(buf)
		}
	}
	return nil
}

type bytecodeCompiler struct{}

func (bytecodeCompiler) compile(e symbolic.Expr, vars []*symbolic.Sym) (numericFunc, error) {
	p, err := symbolic.Compile(e, vars)
	if err != nil {
		return nil, err
	}
	return &programFunc{p: p}, nil
}

type programFunc struct{ p *symbolic.Program }

func (*programFunc) broadcasts() bool { return false }

func (f *programFunc) call(args [][]float64, _, _ int, out []float64) error {
	return f.p.Run(args, out)
}

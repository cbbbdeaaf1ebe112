package rbf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// EvalOption configures a single evaluation.
type EvalOption func(*evalOptions)

type evalOptions struct {
	eps       float64
	perCenter []float64
	diff      []int
}

// WithEps sets one shape parameter for every center. The default is 1.
func WithEps(eps float64) EvalOption {
	return func(o *evalOptions) {
		o.eps = eps
		o.perCenter = nil
	}
}

// WithEpsPerCenter sets one shape parameter per center.
func WithEpsPerCenter(eps []float64) EvalOption {
	return func(o *evalOptions) { o.perCenter = eps }
}

// WithDiff sets the derivative order along each axis. The default is all zeros.
func WithDiff(diff ...int) EvalOption {
	return func(o *evalOptions) { o.diff = diff }
}

// Evaluate returns the N x M matrix of the RBF, or the requested derivative,
// centered at each row of c and evaluated at each row of x. x is N x D and c is
// M x D. When N or M is zero the result is an empty matrix.
func (b *RBF) Evaluate(x, c [][]float64, opts ...EvalOption) (*mat.Dense, error) {
	o := evalOptions{eps: 1}
	for _, opt := range opts {
		opt(&o)
	}

	n, m := len(x), len(c)
	dim := -1
	switch {
	case n > 0:
		dim = len(x[0])
	case m > 0:
		dim = len(c[0])
	case o.diff != nil:
		dim = len(o.diff)
	}
	for _, row := range x {
		if err := checkShape("x", []int{n, len(row)}, []int{Any, dim}); err != nil {
			return nil, err
		}
	}
	for _, row := range c {
		if err := checkShape("c", []int{m, len(row)}, []int{Any, dim}); err != nil {
			return nil, err
		}
	}

	eps := o.perCenter
	if eps == nil {
		eps = make([]float64, m)
		for j := range eps {
			eps[j] = o.eps
		}
	}
	if err := checkShape("eps", []int{len(eps)}, []int{m}); err != nil {
		return nil, err
	}

	diff := o.diff
	if diff == nil {
		diff = make([]int, max(dim, 0))
	}
	if dim >= 0 {
		if err := checkShape("diff", []int{len(diff)}, []int{dim}); err != nil {
			return nil, err
		}
	}
	for axis, d := range diff {
		if d < 0 {
			return nil, fmt.Errorf("%w: order %d along axis %d", ErrInvalidDerivative, d, axis)
		}
	}

	if n == 0 || m == 0 {
		return &mat.Dense{}, nil
	}

	fn, err := b.function(diff)
	if err != nil {
		return nil, err
	}

	out := make([]float64, n*m)
	var args [][]float64
	if fn.broadcasts() {
		args = columns(x, c, eps, dim)
	} else {
		args = tiled(x, c, eps, dim)
	}
	if err := fn.call(args, n, m, out); err != nil {
		return nil, err
	}
	return mat.NewDense(n, m, out), nil
}

// EvaluateMatrix is Evaluate for points and centers held in gonum matrices.
func (b *RBF) EvaluateMatrix(x, c mat.Matrix, opts ...EvalOption) (*mat.Dense, error) {
	return b.Evaluate(rows(x), rows(c), opts...)
}

func rows(a mat.Matrix) [][]float64 {
	if a == nil {
		return nil
	}
	if d, ok := a.(*mat.Dense); ok && d.IsEmpty() {
		return nil
	}
	r, _ := a.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, a)
	}
	return out
}

// columns lays out x (N per axis), c (M per axis) and eps (M) for
// broadcasting backends.
func columns(x, c [][]float64, eps []float64, dim int) [][]float64 {
	args := make([][]float64, 0, 2*dim+1)
	for k := 0; k < dim; k++ {
		col := make([]float64, len(x))
		for i, row := range x {
			col[i] = row[k]
		}
		args = append(args, col)
	}
	for k := 0; k < dim; k++ {
		col := make([]float64, len(c))
		for j, row := range c {
			col[j] = row[k]
		}
		args = append(args, col)
	}
	return append(args, eps)
}

// tiled lays out every argument as an N*M row-major array, element i*M+j
// pairing point i with center j.
func tiled(x, c [][]float64, eps []float64, dim int) [][]float64 {
	n, m := len(x), len(c)
	args := make([][]float64, 2*dim+1)
	for k := range args {
		args[k] = make([]float64, n*m)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			idx := i*m + j
			for k := 0; k < dim; k++ {
				args[k][idx] = x[i][k]
				args[dim+k][idx] = c[j][k]
			}
			args[2*dim][idx] = eps[j]
		}
	}
	return args
}

package rbf

import (
	"fmt"
	"sort"

	"github.com/njchilds90/rbf/symbolic"
)

// Predefined kernels. Each constructor returns a fresh RBF so that changes
// to one instance's tolerance, limits or backend never leak into another.
//
//	name   expression                                          positive definite
//	phs8   (eps r)^8 ln(eps r)                                 no
//	phs7   (eps r)^7                                           no
//	phs6   (eps r)^6 ln(eps r)                                 no
//	phs5   (eps r)^5                                           no
//	phs4   (eps r)^4 ln(eps r)                                 no
//	phs3   (eps r)^3                                           no
//	phs2   (eps r)^2 ln(eps r)                                 no
//	phs1   eps r                                               no
//	mq     (1 + (eps r)^2)^(1/2)                               no
//	imq    (1 + (eps r)^2)^(-1/2)                              yes
//	iq     (1 + (eps r)^2)^(-1)                                yes
//	ga     exp(-(eps r)^2)                                     yes
//	exp    exp(-r/eps)                                         yes
//	se     exp(-r^2/(2 eps^2))                                 yes
//	mat32  (1 + sqrt(3) r/eps) exp(-sqrt(3) r/eps)             yes
//	mat52  (1 + sqrt(5) r/eps + 5r^2/(3eps^2)) exp(-sqrt(5) r/eps)  yes

var kernels = map[string]func() *RBF{
	"phs1":  PHS1,
	"phs2":  PHS2,
	"phs3":  PHS3,
	"phs4":  PHS4,
	"phs5":  PHS5,
	"phs6":  PHS6,
	"phs7":  PHS7,
	"phs8":  PHS8,
	"mq":    MQ,
	"imq":   IMQ,
	"iq":    IQ,
	"ga":    GA,
	"exp":   EXP,
	"se":    SE,
	"mat32": MAT32,
	"mat52": MAT52,
}

// Kernel returns a fresh instance of the predefined kernel called name.
func Kernel(name string) (*RBF, error) {
	mk, ok := kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
	return mk(), nil
}

// KernelNames returns the names accepted by Kernel in sorted order.
func KernelNames() []string {
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PHS1 is the first order polyharmonic spline eps r.
func PHS1() *RBF { return phs(1) }

// PHS2 is the second order polyharmonic spline (eps r)^2 ln(eps r).
func PHS2() *RBF { return phs(2) }

// PHS3 is the third order polyharmonic spline (eps r)^3.
func PHS3() *RBF { return phs(3) }

// PHS4 is the fourth order polyharmonic spline (eps r)^4 ln(eps r).
func PHS4() *RBF { return phs(4) }

// PHS5 is the fifth order polyharmonic spline (eps r)^5.
func PHS5() *RBF { return phs(5) }

// PHS6 is the sixth order polyharmonic spline (eps r)^6 ln(eps r).
func PHS6() *RBF { return phs(6) }

// PHS7 is the seventh order polyharmonic spline (eps r)^7.
func PHS7() *RBF { return phs(7) }

// PHS8 is the eighth order polyharmonic spline (eps r)^8 ln(eps r).
func PHS8() *RBF { return phs(8) }

// phs builds the order k polyharmonic spline. Every derivative of total order
// below k vanishes at the center in one, two and three dimensions.
func phs(k int64) *RBF {
	er := symbolic.MulOf(shape, radius)
	expr := symbolic.PowOf(er, symbolic.N(k))
	if k%2 == 0 {
		expr = symbolic.MulOf(expr, symbolic.LnOf(er))
	}
	limits := map[DiffKey]symbolic.Expr{}
	for dim := 1; dim <= 3; dim++ {
		for _, p := range Powers(int(k)-1, dim) {
			limits[Key(p...)] = symbolic.N(0)
		}
	}
	return mustNew(expr, WithTol(1e-10), WithLimits(limits))
}

// onePlusSquare is 1 + (eps r)^2.
func onePlusSquare() symbolic.Expr {
	return symbolic.AddOf(symbolic.N(1), symbolic.PowOf(symbolic.MulOf(shape, radius), symbolic.N(2)))
}

// MQ is the multiquadric.
func MQ() *RBF { return mustNew(symbolic.SqrtOf(onePlusSquare())) }

// IMQ is the inverse multiquadric.
func IMQ() *RBF { return mustNew(symbolic.PowOf(onePlusSquare(), symbolic.F(-1, 2))) }

// IQ is the inverse quadratic.
func IQ() *RBF { return mustNew(symbolic.PowOf(onePlusSquare(), symbolic.N(-1))) }

// GA is the Gaussian.
func GA() *RBF {
	return mustNew(symbolic.ExpOf(symbolic.NegOf(symbolic.PowOf(symbolic.MulOf(shape, radius), symbolic.N(2)))))
}

// EXP is the exponential kernel.
func EXP() *RBF {
	return mustNew(symbolic.ExpOf(symbolic.NegOf(symbolic.QuoOf(radius, shape))))
}

// SE is the squared exponential.
func SE() *RBF {
	return mustNew(symbolic.ExpOf(symbolic.NegOf(symbolic.QuoOf(
		symbolic.PowOf(radius, symbolic.N(2)),
		symbolic.MulOf(symbolic.N(2), symbolic.PowOf(shape, symbolic.N(2))),
	))))
}

// MAT32 is the Matern kernel with smoothness 3/2.
func MAT32() *RBF {
	s := symbolic.QuoOf(symbolic.MulOf(symbolic.SqrtOf(symbolic.N(3)), radius), shape)
	expr := symbolic.MulOf(symbolic.AddOf(symbolic.N(1), s), symbolic.ExpOf(symbolic.NegOf(s)))
	second := symbolic.QuoOf(symbolic.N(-3), symbolic.PowOf(shape, symbolic.N(2)))
	limits := map[DiffKey]symbolic.Expr{
		Key(0): symbolic.N(1), Key(1): symbolic.N(0), Key(2): second,
		Key(0, 0): symbolic.N(1), Key(1, 0): symbolic.N(0), Key(0, 1): symbolic.N(0),
		Key(2, 0): second, Key(0, 2): second, Key(1, 1): symbolic.N(0),
	}
	return mustNew(expr, WithTolerance(maternTol()), WithLimits(limits))
}

// MAT52 is the Matern kernel with smoothness 5/2.
func MAT52() *RBF {
	s := symbolic.QuoOf(symbolic.MulOf(symbolic.SqrtOf(symbolic.N(5)), radius), shape)
	quad := symbolic.QuoOf(
		symbolic.MulOf(symbolic.N(5), symbolic.PowOf(radius, symbolic.N(2))),
		symbolic.MulOf(symbolic.N(3), symbolic.PowOf(shape, symbolic.N(2))),
	)
	expr := symbolic.MulOf(symbolic.AddOf(symbolic.N(1), s, quad), symbolic.ExpOf(symbolic.NegOf(s)))
	second := symbolic.QuoOf(symbolic.N(-5), symbolic.MulOf(symbolic.N(3), symbolic.PowOf(shape, symbolic.N(2))))
	fourth := symbolic.QuoOf(symbolic.N(25), symbolic.PowOf(shape, symbolic.N(4)))
	limits := map[DiffKey]symbolic.Expr{
		Key(0): symbolic.N(1), Key(1): symbolic.N(0), Key(2): second, Key(3): symbolic.N(0), Key(4): fourth,
		Key(0, 0): symbolic.N(1), Key(1, 0): symbolic.N(0), Key(0, 1): symbolic.N(0),
		Key(2, 0): second, Key(0, 2): second, Key(1, 1): symbolic.N(0),
	}
	return mustNew(expr, WithTolerance(maternTol()), WithLimits(limits))
}

func maternTol() symbolic.Expr {
	return symbolic.MulOf(symbolic.NFloat(1e-10), shape)
}

func mustNew(expr symbolic.Expr, opts ...Option) *RBF {
	b, err := New(expr, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

package rbf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidExpression indicates that an RBF expression references a
	// symbol other than r and eps, or does not reference r at all.
	ErrInvalidExpression = errors.New("rbf: invalid expression")

	// ErrInvalidTolerance indicates a tolerance that depends on symbols
	// other than eps or is a negative number.
	ErrInvalidTolerance = errors.New("rbf: invalid tolerance")

	// ErrShapeMismatch is matched by every *ShapeError.
	ErrShapeMismatch = errors.New("rbf: shape mismatch")

	// ErrUnsupportedBackend indicates an unknown Backend value or name.
	ErrUnsupportedBackend = errors.New("rbf: unsupported backend")

	// ErrInvalidDerivative indicates a negative derivative order.
	ErrInvalidDerivative = errors.New("rbf: invalid derivative order")

	// ErrUnknownKernel indicates that no predefined kernel has the requested name.
	ErrUnknownKernel = errors.New("rbf: unknown kernel")
)

// Any marks an axis of an expected shape that may have any length.
const Any = -1

// ShapeError reports an argument whose shape does not match what the
// evaluation expects.
type ShapeError struct {
	Arg      string
	Expected []int
	Actual   []int
}

func (e *ShapeError) Error() string {
	if len(e.Actual) != len(e.Expected) {
		return fmt.Sprintf("rbf: %s is a %d dimensional array but it should be a %d dimensional array",
			e.Arg, len(e.Actual), len(e.Expected))
	}
	for axis, want := range e.Expected {
		if want != Any && e.Actual[axis] != want {
			return fmt.Sprintf("rbf: axis %d of %s has length %d but it should have length %d",
				axis, e.Arg, e.Actual[axis], want)
		}
	}
	return fmt.Sprintf("rbf: %s has shape %s but it should have shape %s",
		e.Arg, formatShape(e.Actual), formatShape(e.Expected))
}

// Is makes errors.Is(err, ErrShapeMismatch) hold for shape errors.
func (e *ShapeError) Is(target error) bool { return target == ErrShapeMismatch }

// Axis returns the first axis whose length is wrong, or -1 when the
// number of dimensions differs.
func (e *ShapeError) Axis() int {
	if len(e.Actual) != len(e.Expected) {
		return -1
	}
	for axis, want := range e.Expected {
		if want != Any && e.Actual[axis] != want {
			return axis
		}
	}
	return -1
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		if n == Any {
			parts[i] = "any"
		} else {
			parts[i] = strconv.Itoa(n)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// checkShape returns a *ShapeError when actual does not conform to expected.
func checkShape(label string, actual, expected []int) error {
	err := &ShapeError{Arg: label, Expected: expected, Actual: actual}
	if len(actual) != len(expected) {
		return err
	}
	for axis, want := range expected {
		if want != Any && actual[axis] != want {
			return err
		}
	}
	return nil
}

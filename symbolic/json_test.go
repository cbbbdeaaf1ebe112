package symbolic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/rbf/symbolic"
)

func TestToJSON_Num(t *testing.T) {
	s, err := symbolic.ToJSON(symbolic.F(3, 4))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"num","value":"3/4"}`, s)
}

func TestFromJSON_RoundTrip(t *testing.T) {
	r, eps := symbolic.S("r"), symbolic.S("eps")
	er := symbolic.MulOf(eps, r)
	exprs := []symbolic.Expr{
		symbolic.ExpOf(symbolic.NegOf(symbolic.PowOf(er, symbolic.N(2)))),
		symbolic.MulOf(symbolic.PowOf(er, symbolic.N(2)), symbolic.LnOf(er)),
		symbolic.PiecewiseOf(
			symbolic.When(symbolic.N(1), symbolic.Lt(r, symbolic.F(1, 10))),
			symbolic.Otherwise(symbolic.QuoOf(symbolic.SinOf(r), r)),
		),
		symbolic.PiecewiseOf(
			symbolic.When(symbolic.Infinity(-1), symbolic.Lt(r, symbolic.F(1, 10))),
			symbolic.Otherwise(symbolic.LnOf(er)),
		),
	}
	for _, e := range exprs {
		s, err := symbolic.ToJSON(e)
		require.NoError(t, err)
		back, err := symbolic.ParseJSON([]byte(s))
		require.NoError(t, err)
		assert.True(t, e.Equal(back), "%s != %s", e, back)
	}
}

func TestFromJSON_Errors(t *testing.T) {
	cases := map[string]string{
		"missing type":  `{}`,
		"unknown type":  `{"type":"matrix"}`,
		"bad func":      `{"type":"func","name":"gamma","arg":{"type":"sym","name":"r"}}`,
		"bad operator":  `{"type":"rel","op":"==","lhs":{"type":"sym","name":"r"},"rhs":{"type":"num","value":"1"}}`,
		"bad num":       `{"type":"num","value":"one"}`,
		"nested errors": `{"type":"add","terms":[{"type":"sym"}]}`,
		"not json":      `{"type":`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := symbolic.ParseJSON([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestFromJSON_NumericValue(t *testing.T) {
	e, err := symbolic.ParseJSON([]byte(`{"type":"num","value":0.5}`))
	require.NoError(t, err)
	assert.Equal(t, "1/2", e.String())
}

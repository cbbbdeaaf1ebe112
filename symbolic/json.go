package symbolic

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ============================================================
// JSON Serialization
// ============================================================

// ToJSON renders e in the tagged-object wire format understood by FromJSON.
func ToJSON(e Expr) (string, error) {
	b, err := json.Marshal(e.toJSON())
	return string(b), err
}

// ParseJSON decodes a wire-format expression from raw bytes.
func ParseJSON(data []byte) (Expr, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode expression: %w", err)
	}
	return FromJSON(m)
}

func FromJSON(data map[string]interface{}) (Expr, error) {
	if data == nil {
		return nil, fmt.Errorf("expression must be an object")
	}
	typAny, ok := data["type"]
	if !ok {
		return nil, fmt.Errorf("missing 'type' field")
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("field 'type' must be a non-empty string")
	}

	subObj := func(field string) (map[string]interface{}, error) {
		v, ok := data[field]
		if !ok {
			return nil, fmt.Errorf("%s: missing %q", typ, field)
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an object", typ, field)
		}
		return m, nil
	}

	subObjArray := func(field string) ([]map[string]interface{}, error) {
		v, ok := data[field]
		if !ok {
			return nil, fmt.Errorf("%s: missing %q", typ, field)
		}
		raw, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an array", typ, field)
		}
		out := make([]map[string]interface{}, len(raw))
		for i, it := range raw {
			m, ok := it.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s: %q[%d] must be an object", typ, field, i)
			}
			out[i] = m
		}
		return out, nil
	}

	subString := func(field string) (string, error) {
		v, ok := data[field]
		if !ok {
			return "", fmt.Errorf("%s: missing %q", typ, field)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", fmt.Errorf("%s: %q must be a non-empty string", typ, field)
		}
		return s, nil
	}

	subExpr := func(field string) (Expr, error) {
		m, err := subObj(field)
		if err != nil {
			return nil, err
		}
		e, err := FromJSON(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", typ, field, err)
		}
		return e, nil
	}

	subExprArray := func(field string) ([]Expr, error) {
		objs, err := subObjArray(field)
		if err != nil {
			return nil, err
		}
		out := make([]Expr, len(objs))
		for i, o := range objs {
			e, err := FromJSON(o)
			if err != nil {
				return nil, fmt.Errorf("%s: %s[%d]: %w", typ, field, i, err)
			}
			out[i] = e
		}
		return out, nil
	}

	switch typ {
	case "num":
		valAny, ok := data["value"]
		if !ok {
			return nil, fmt.Errorf("num: missing 'value'")
		}
		r := new(big.Rat)
		switch val := valAny.(type) {
		case string:
			if _, ok := r.SetString(val); !ok || val == "" {
				return nil, fmt.Errorf("invalid num value: %s", val)
			}
		case float64:
			n, ok := floatNum(val)
			if !ok {
				return nil, fmt.Errorf("invalid num value: %v", val)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("num: 'value' must be a string or a number")
		}
		return &Num{val: r}, nil

	case "inf":
		sign, ok := data["sign"].(float64)
		if !ok || (sign != 1 && sign != -1) {
			return nil, fmt.Errorf("inf: 'sign' must be 1 or -1")
		}
		return Infinity(int(sign)), nil

	case "sym":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		return S(name), nil

	case "add":
		terms, err := subExprArray("terms")
		if err != nil {
			return nil, err
		}
		return AddOf(terms...), nil

	case "mul":
		factors, err := subExprArray("factors")
		if err != nil {
			return nil, err
		}
		return MulOf(factors...), nil

	case "pow":
		base, err := subExpr("base")
		if err != nil {
			return nil, err
		}
		exp, err := subExpr("exp")
		if err != nil {
			return nil, err
		}
		return PowOf(base, exp), nil

	case "func":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		if _, known := funcFloat(name, 0); !known {
			return nil, fmt.Errorf("func: unknown function %q", name)
		}
		arg, err := subExpr("arg")
		if err != nil {
			return nil, err
		}
		return funcOf(name, arg).Simplify(), nil

	case "rel":
		op, err := subString("op")
		if err != nil {
			return nil, err
		}
		switch op {
		case "<", "<=", ">", ">=":
		default:
			return nil, fmt.Errorf("rel: unknown operator %q", op)
		}
		lhs, err := subExpr("lhs")
		if err != nil {
			return nil, err
		}
		rhs, err := subExpr("rhs")
		if err != nil {
			return nil, err
		}
		return relOf(op, lhs, rhs), nil

	case "piecewise":
		objs, err := subObjArray("cases")
		if err != nil {
			return nil, err
		}
		cases := make([]Case, len(objs))
		for i, o := range objs {
			vm, ok := o["value"].(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("piecewise: cases[%d]: 'value' must be an object", i)
			}
			v, err := FromJSON(vm)
			if err != nil {
				return nil, fmt.Errorf("piecewise: cases[%d]: value: %w", i, err)
			}
			cases[i] = Otherwise(v)
			if cm, present := o["cond"]; present && cm != nil {
				m, ok := cm.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("piecewise: cases[%d]: 'cond' must be an object", i)
				}
				c, err := FromJSON(m)
				if err != nil {
					return nil, fmt.Errorf("piecewise: cases[%d]: cond: %w", i, err)
				}
				cases[i].Cond = c
			}
		}
		return PiecewiseOf(cases...), nil
	}
	return nil, fmt.Errorf("unknown expression type: %s", typ)
}

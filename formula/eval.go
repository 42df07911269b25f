package formula

import (
	"math"
	"strconv"
	"strings"
)

// coerceVariable converts a supplied variable to float64. Booleans map
// to 1/0 and numeric strings parse; nil and anything else are errors so
// a missing field can never be silently treated as zero.
func coerceVariable(name string, value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, errorf("variable %q is null; all variables must have a value", name)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errorf("variable %q has value %q which is not a number", name, v)
		}
		return f, nil
	default:
		return 0, errorf("variable %q has unsupported type %T", name, value)
	}
}

func truthy(v float64) bool { return v != 0 }

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func eval(e expr, env map[string]float64) (float64, error) {
	switch n := e.(type) {
	case *numberLit:
		return n.value, nil

	case *boolLit:
		return boolValue(n.value), nil

	case *varRef:
		v, ok := env[n.name]
		if !ok {
			return 0, errorf("variable %q is not defined", n.name)
		}
		return v, nil

	case *unaryExpr:
		v, err := eval(n.operand, env)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case "+":
			return v, nil
		case "-":
			return -v, nil
		case "not":
			return boolValue(!truthy(v)), nil
		}
		return 0, errorf("unary operator %q is not allowed", n.op)

	case *binaryExpr:
		left, err := eval(n.left, env)
		if err != nil {
			return 0, err
		}
		right, err := eval(n.right, env)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case "+":
			return left + right, nil
		case "-":
			return left - right, nil
		case "*":
			return left * right, nil
		case "/":
			if right == 0 {
				return 0, errorf("division by zero")
			}
			return left / right, nil
		case "//":
			if right == 0 {
				return 0, errorf("division by zero")
			}
			return math.Floor(left / right), nil
		case "%":
			if right == 0 {
				return 0, errorf("division by zero")
			}
			// Python-style modulo: the result takes the sign of the divisor.
			m := math.Mod(left, right)
			if m != 0 && (m < 0) != (right < 0) {
				m += right
			}
			return m, nil
		case "**":
			return math.Pow(left, right), nil
		}
		return 0, errorf("binary operator %q is not allowed", n.op)

	case *compareExpr:
		left, err := eval(n.left, env)
		if err != nil {
			return 0, err
		}
		for i, op := range n.ops {
			right, err := eval(n.rights[i], env)
			if err != nil {
				return 0, err
			}
			var ok bool
			switch op {
			case "<":
				ok = left < right
			case "<=":
				ok = left <= right
			case ">":
				ok = left > right
			case ">=":
				ok = left >= right
			case "==":
				ok = left == right
			case "!=":
				ok = left != right
			}
			if !ok {
				return 0, nil
			}
			left = right
		}
		return 1, nil

	case *boolExpr:
		if n.op == "and" {
			result := 1.0
			for _, v := range n.values {
				f, err := eval(v, env)
				if err != nil {
					return 0, err
				}
				if !truthy(f) {
					return f, nil
				}
				result = f
			}
			return result, nil
		}
		for _, v := range n.values {
			f, err := eval(v, env)
			if err != nil {
				return 0, err
			}
			if truthy(f) {
				return f, nil
			}
		}
		return 0, nil

	case *condExpr:
		cond, err := eval(n.cond, env)
		if err != nil {
			return 0, err
		}
		if truthy(cond) {
			return eval(n.then, env)
		}
		return eval(n.orelse, env)

	case *callExpr:
		args := make([]float64, len(n.args))
		for i, a := range n.args {
			v, err := eval(a, env)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return evalCall(n.fn, args)
	}

	return 0, errorf("construct %T is not allowed in formulas", e)
}

func evalCall(fn string, args []float64) (float64, error) {
	switch fn {
	case "min":
		if len(args) == 0 {
			return 0, errorf("min() requires at least one argument")
		}
		result := args[0]
		for _, a := range args[1:] {
			result = math.Min(result, a)
		}
		return result, nil
	case "max":
		if len(args) == 0 {
			return 0, errorf("max() requires at least one argument")
		}
		result := args[0]
		for _, a := range args[1:] {
			result = math.Max(result, a)
		}
		return result, nil
	case "abs":
		if len(args) != 1 {
			return 0, errorf("abs() takes exactly one argument, got %d", len(args))
		}
		return math.Abs(args[0]), nil
	case "round":
		switch len(args) {
		case 1:
			return math.RoundToEven(args[0]), nil
		case 2:
			shift := math.Pow(10, math.Trunc(args[1]))
			return math.RoundToEven(args[0]*shift) / shift, nil
		default:
			return 0, errorf("round() takes one or two arguments, got %d", len(args))
		}
	}
	return 0, errorf("function %q is not allowed; available functions: abs, max, min, round", fn)
}

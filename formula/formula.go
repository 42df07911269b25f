// Package formula implements the restricted arithmetic expression
// language used by equation nodes. Formulas are untrusted configuration,
// so the package never delegates to a general-purpose evaluator: a
// hand-written lexer and recursive-descent parser produce a typed
// expression tree, a deny-by-default validation pass rejects anything
// outside the documented grammar, and a small interpreter evaluates the
// tree over float64 variables.
//
// The grammar covers numeric and boolean literals, variables, unary
// + - not, binary + - * / % ** //, comparisons, and/or, a conditional
// (both "cond ? a : b" and "a if cond else b" are accepted), and calls
// to exactly min, max, abs and round with positional arguments.
package formula

import (
	"fmt"
	"regexp"
	"strings"
)

// Error is the typed error for anything that goes wrong while parsing,
// validating or evaluating a formula. It is always recoverable: callers
// wrap it into their own node-level error.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// allowedFunctions is the complete set of callable names.
var allowedFunctions = map[string]bool{
	"min":   true,
	"max":   true,
	"abs":   true,
	"round": true,
}

// reservedWords are names that can never be variables.
var reservedWords = map[string]bool{
	"and": true, "or": true, "not": true,
	"if": true, "else": true,
	"True": true, "False": true, "true": true, "false": true,
}

var identifierRe = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// ExtractVariables returns the free variable names of a formula,
// deduplicated in order of first appearance. If the formula does not
// parse, it falls back to a lexical scan so editors can still offer
// variable suggestions for half-typed formulas.
func ExtractVariables(formula string) []string {
	root, err := parse(formula)
	if err != nil {
		var names []string
		seen := make(map[string]bool)
		for _, tok := range identifierRe.FindAllString(formula, -1) {
			if allowedFunctions[tok] || reservedWords[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			names = append(names, tok)
		}
		return names
	}

	var names []string
	seen := make(map[string]bool)
	collectVariables(root, seen, &names)
	return names
}

func collectVariables(e expr, seen map[string]bool, names *[]string) {
	switch n := e.(type) {
	case *numberLit, *boolLit:
	case *varRef:
		if !seen[n.name] {
			seen[n.name] = true
			*names = append(*names, n.name)
		}
	case *unaryExpr:
		collectVariables(n.operand, seen, names)
	case *binaryExpr:
		collectVariables(n.left, seen, names)
		collectVariables(n.right, seen, names)
	case *compareExpr:
		collectVariables(n.left, seen, names)
		for _, r := range n.rights {
			collectVariables(r, seen, names)
		}
	case *boolExpr:
		for _, v := range n.values {
			collectVariables(v, seen, names)
		}
	case *condExpr:
		collectVariables(n.cond, seen, names)
		collectVariables(n.then, seen, names)
		collectVariables(n.orelse, seen, names)
	case *callExpr:
		for _, a := range n.args {
			collectVariables(a, seen, names)
		}
	}
}

// Validate parses and validates a formula and returns the variables it
// uses. When available is non-nil, every variable must appear in it.
func Validate(formula string, available []string) ([]string, error) {
	if strings.TrimSpace(formula) == "" {
		return nil, errorf("formula cannot be empty")
	}

	root, err := parse(formula)
	if err != nil {
		return nil, err
	}
	if err := validate(root); err != nil {
		return nil, err
	}

	variables := ExtractVariables(formula)

	if available != nil {
		known := make(map[string]bool, len(available))
		for _, v := range available {
			known[v] = true
		}
		var unknown []string
		for _, v := range variables {
			if !known[v] {
				unknown = append(unknown, v)
			}
		}
		if len(unknown) > 0 {
			return nil, errorf("unknown variables: %s (available: %s)",
				strings.Join(unknown, ", "), strings.Join(available, ", "))
		}
	}

	return variables, nil
}

// Evaluate parses, validates and evaluates a formula against the given
// variables. Booleans coerce to 1/0, numeric strings to their value;
// a nil or non-numeric variable is an error, never a silent default.
func Evaluate(formula string, variables map[string]any) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, errorf("formula cannot be empty")
	}

	root, err := parse(formula)
	if err != nil {
		return 0, err
	}
	if err := validate(root); err != nil {
		return 0, err
	}

	env := make(map[string]float64, len(variables))
	for name, value := range variables {
		f, err := coerceVariable(name, value)
		if err != nil {
			return 0, err
		}
		env[name] = f
	}

	return eval(root, env)
}

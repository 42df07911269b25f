package formula

import "strconv"

// Expression tree. Each node kind corresponds to exactly one construct
// of the documented grammar; the validator rejects anything else.
type expr interface{ formulaExpr() }

type numberLit struct{ value float64 }
type boolLit struct{ value bool }
type varRef struct{ name string }

// unaryExpr covers "+x", "-x" and "not x".
type unaryExpr struct {
	op      string
	operand expr
}

// binaryExpr covers + - * / % ** //.
type binaryExpr struct {
	op          string
	left, right expr
}

// compareExpr holds a (possibly chained) comparison: a < b <= c.
type compareExpr struct {
	left   expr
	ops    []string
	rights []expr
}

// boolExpr is an n-ary "and" or "or".
type boolExpr struct {
	op     string
	values []expr
}

// condExpr is the conditional; both surface syntaxes parse into it.
type condExpr struct {
	cond, then, orelse expr
}

// callExpr is a call to one of the allowed functions.
type callExpr struct {
	fn   string
	args []expr
}

func (*numberLit) formulaExpr()   {}
func (*boolLit) formulaExpr()     {}
func (*varRef) formulaExpr()      {}
func (*unaryExpr) formulaExpr()   {}
func (*binaryExpr) formulaExpr()  {}
func (*compareExpr) formulaExpr() {}
func (*boolExpr) formulaExpr()    {}
func (*condExpr) formulaExpr()    {}
func (*callExpr) formulaExpr()    {}

type parser struct {
	tokens []token
	pos    int
}

func parse(input string) (expr, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, errorf("unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	return root, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) matchOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) matchName(name string) bool {
	if t := p.peek(); t.kind == tokName && t.text == name {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.matchOp(op) {
		return errorf("expected %q at position %d, got %q", op, p.peek().pos, p.peek().text)
	}
	return nil
}

// parseExpr handles the two conditional surfaces at the lowest
// precedence: "cond ? a : b" and "then if cond else orelse".
func (p *parser) parseExpr() (expr, error) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.matchOp("?") {
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		orelse, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &condExpr{cond: e, then: then, orelse: orelse}, nil
	}

	if p.matchName("if") {
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.matchName("else") {
			return nil, errorf("expected 'else' at position %d", p.peek().pos)
		}
		orelse, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &condExpr{cond: cond, then: e, orelse: orelse}, nil
	}

	return e, nil
}

func (p *parser) parseOr() (expr, error) {
	e, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokName && p.peek().text == "or" {
		values := []expr{e}
		for p.matchName("or") {
			v, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return &boolExpr{op: "or", values: values}, nil
	}
	return e, nil
}

func (p *parser) parseAnd() (expr, error) {
	e, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokName && p.peek().text == "and" {
		values := []expr{e}
		for p.matchName("and") {
			v, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return &boolExpr{op: "and", values: values}, nil
	}
	return e, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.matchName("not") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: "not", operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

func (p *parser) parseComparison() (expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	var ops []string
	var rights []expr
	for p.peek().kind == tokOp && comparisonOps[p.peek().text] {
		op := p.next().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		rights = append(rights, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &compareExpr{left: left, ops: ops, rights: rights}, nil
}

func (p *parser) parseAdditive() (expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != "//" && t.text != "%") {
			return left, nil
		}
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (expr, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "+" || t.text == "-") {
		op := p.next().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: op, operand: operand}, nil
	}
	return p.parsePower()
}

// parsePower parses "base ** exponent"; the exponent binds right and may
// carry its own sign, so 2 ** -3 parses as expected.
func (p *parser) parsePower() (expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.matchOp("**") {
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryExpr{op: "**", left: base, right: exponent}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.peek()

	switch t.kind {
	case tokNumber:
		p.next()
		value, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return &numberLit{value: value}, nil

	case tokName:
		p.next()
		switch t.text {
		case "True", "true":
			return &boolLit{value: true}, nil
		case "False", "false":
			return &boolLit{value: false}, nil
		case "and", "or", "not", "if", "else":
			return nil, errorf("unexpected keyword %q at position %d", t.text, t.pos)
		}

		if p.matchOp("(") {
			var args []expr
			if !p.matchOp(")") {
				for {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.matchOp(",") {
						continue
					}
					if err := p.expectOp(")"); err != nil {
						return nil, err
					}
					break
				}
			}
			return &callExpr{fn: t.text, args: args}, nil
		}

		return &varRef{name: t.text}, nil

	case tokOp:
		if t.text == "(" {
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}

	return nil, errorf("unexpected %q at position %d", t.text, t.pos)
}

// validate walks the expression tree and rejects anything outside the
// whitelist. The default branch rejects unrecognized node kinds
// unconditionally; this walk is the sandbox's entire security boundary.
func validate(e expr) error {
	switch n := e.(type) {
	case *numberLit, *boolLit, *varRef:
		return nil
	case *unaryExpr:
		switch n.op {
		case "+", "-", "not":
		default:
			return errorf("unary operator %q is not allowed", n.op)
		}
		return validate(n.operand)
	case *binaryExpr:
		switch n.op {
		case "+", "-", "*", "/", "%", "**", "//":
		default:
			return errorf("binary operator %q is not allowed", n.op)
		}
		if err := validate(n.left); err != nil {
			return err
		}
		return validate(n.right)
	case *compareExpr:
		for _, op := range n.ops {
			if !comparisonOps[op] {
				return errorf("comparison operator %q is not allowed", op)
			}
		}
		if err := validate(n.left); err != nil {
			return err
		}
		for _, r := range n.rights {
			if err := validate(r); err != nil {
				return err
			}
		}
		return nil
	case *boolExpr:
		if n.op != "and" && n.op != "or" {
			return errorf("boolean operator %q is not allowed", n.op)
		}
		for _, v := range n.values {
			if err := validate(v); err != nil {
				return err
			}
		}
		return nil
	case *condExpr:
		if err := validate(n.cond); err != nil {
			return err
		}
		if err := validate(n.then); err != nil {
			return err
		}
		return validate(n.orelse)
	case *callExpr:
		if !allowedFunctions[n.fn] {
			return errorf("function %q is not allowed; available functions: abs, max, min, round", n.fn)
		}
		for _, a := range n.args {
			if err := validate(a); err != nil {
				return err
			}
		}
		return nil
	default:
		return errorf("construct %T is not allowed in formulas", e)
	}
}

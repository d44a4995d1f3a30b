package expr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyntax is returned for malformed formulas.
	ErrSyntax = errors.New("formula syntax error")
	// ErrUnknownFunction is returned for calls to functions the language lacks.
	ErrUnknownFunction = errors.New("unknown formula function")
	// ErrUnknownVariable is returned for identifiers that are not bound.
	ErrUnknownVariable = errors.New("unknown formula variable")
)

// Program is a compiled formula.
type Program struct {
	source string
	root   node
}

// Source returns the formula text.
func (p *Program) Source() string { return p.source }

type parser struct {
	toks []token
	pos  int
}

// Parse compiles a formula.
func Parse(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty formula", ErrSyntax)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s at %d", ErrSyntax, t, t.pos)
	}
	if err := checkNumeric(root); err != nil {
		return nil, err
	}
	return &Program{source: src, root: root}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("%w: expected %s, got %s at %d", ErrSyntax, what, t, t.pos)
	}
	return t, nil
}

func precedence(op string) int {
	switch op {
	case "+", "-":
		return 1
	case "*", "/":
		return 2
	}
	return 0
}

// parseExpr is a precedence climber; every operator is left-associative.
func (p *parser) parseExpr(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return left, nil
		}
		prec := precedence(t.text)
		if prec <= minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseExpr(prec)
		if err != nil {
			return nil, err
		}
		left = binary{op: t.text[0], left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if t := p.peek(); t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.text == "+" {
			return operand, nil
		}
		return unary{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberLit{value: t.num}, nil
	case tokString:
		return stringLit{value: t.text}, nil
	case tokLParen:
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		v, ok := lookupVar(t.text)
		if !ok {
			return nil, fmt.Errorf("%w: %q at %d", ErrUnknownVariable, t.text, t.pos)
		}
		return varRef{v: v}, nil
	}
	return nil, fmt.Errorf("%w: unexpected %s at %d", ErrSyntax, t, t.pos)
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := funcNames[strings.ToUpper(name.text)]
	if !ok {
		return nil, fmt.Errorf("%w: %s at %d", ErrUnknownFunction, name.text, name.pos)
	}
	p.next() // (

	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	lo, hi := fn.arity()
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return nil, fmt.Errorf("%w: %s takes %s arguments, got %d", ErrSyntax, fn, arityText(lo, hi), len(args))
	}

	if fn != FnEV {
		if p.peek().kind == tokDot {
			return nil, fmt.Errorf("%w: property access is only allowed on EV", ErrSyntax)
		}
		return call{fn: fn, args: args}, nil
	}

	if _, err := p.expect(tokDot, "'.buy' or '.sell' after EV(...)"); err != nil {
		return nil, err
	}
	prop, err := p.expect(tokIdent, "'buy' or 'sell'")
	if err != nil {
		return nil, err
	}
	var side Side
	switch strings.ToLower(prop.text) {
	case "buy":
		side = SideBuy
	case "sell":
		side = SideSell
	default:
		return nil, fmt.Errorf("%w: EV has no property %q", ErrSyntax, prop.text)
	}
	if !isStringOperand(args[0]) {
		return nil, fmt.Errorf("%w: EV key must be a string or Category/Key/Name", ErrSyntax)
	}
	return evAccess{key: args[0], tax: args[1], side: side}, nil
}

func arityText(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d", lo)
	case lo == hi:
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d to %d", lo, hi)
}

func isStringOperand(n node) bool {
	switch v := n.(type) {
	case stringLit:
		return true
	case varRef:
		return v.v.isString()
	}
	return false
}

// checkNumeric rejects string operands anywhere but the EV key position.
func checkNumeric(n node) error {
	switch v := n.(type) {
	case numberLit:
		return nil
	case stringLit:
		return fmt.Errorf("%w: string %q outside EV key", ErrSyntax, v.value)
	case varRef:
		if v.v.isString() {
			return fmt.Errorf("%w: string variable outside EV key", ErrSyntax)
		}
		return nil
	case unary:
		return checkNumeric(v.operand)
	case binary:
		if err := checkNumeric(v.left); err != nil {
			return err
		}
		return checkNumeric(v.right)
	case call:
		for _, a := range v.args {
			if err := checkNumeric(a); err != nil {
				return err
			}
		}
		return nil
	case evAccess:
		return checkNumeric(v.tax)
	}
	return fmt.Errorf("%w: unknown node %T", ErrSyntax, n)
}

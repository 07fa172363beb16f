package domain

import (
	"fmt"
	"strings"
)

// ExprKind enumerates class expression constructors.
type ExprKind uint8

// Supported class expression constructors.
const (
	ExprClass ExprKind = iota + 1
	ExprAnd
	ExprOr
	ExprSome
)

// Expression is a parsed class expression:
//
//	C | and(E, E, ...) | or(E, E, ...) | some(P, E)
type Expression struct {
	Kind     ExprKind
	Class    IRI
	Property IRI
	Operands []Expression
}

// ParseExpression parses the textual class expression form used in type facts.
func ParseExpression(s string) (Expression, error) {
	p := &exprParser{src: s}
	expr, err := p.parse()
	if err != nil {
		return Expression{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Expression{}, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	return expr, nil
}

// String renders the canonical textual form.
func (e Expression) String() string {
	switch e.Kind {
	case ExprClass:
		return string(e.Class)
	case ExprAnd, ExprOr:
		parts := make([]string, len(e.Operands))
		for i, op := range e.Operands {
			parts[i] = op.String()
		}
		name := "and"
		if e.Kind == ExprOr {
			name = "or"
		}
		return name + "(" + strings.Join(parts, ", ") + ")"
	case ExprSome:
		filler := ""
		if len(e.Operands) == 1 {
			filler = e.Operands[0].String()
		}
		return "some(" + string(e.Property) + ", " + filler + ")"
	}
	return ""
}

// IsNamed reports whether the expression is a plain class reference.
func (e Expression) IsNamed() bool { return e.Kind == ExprClass }

// SubExpressions returns e followed by every nested expression, depth first.
func (e Expression) SubExpressions() []Expression {
	out := []Expression{e}
	for _, op := range e.Operands {
		out = append(out, op.SubExpressions()...)
	}
	return out
}

// NamedClasses returns every class IRI mentioned by the expression.
func (e Expression) NamedClasses() []IRI {
	var out []IRI
	for _, sub := range e.SubExpressions() {
		if sub.Kind == ExprClass {
			out = append(out, sub.Class)
		}
	}
	return out
}

// Properties returns every object property mentioned by the expression.
func (e Expression) Properties() []IRI {
	var out []IRI
	for _, sub := range e.SubExpressions() {
		if sub.Kind == ExprSome {
			out = append(out, sub.Property)
		}
	}
	return out
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *exprParser) token() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '(' || c == ')' || c == ',' || c == ' ' || c == '\t' || c == '\n' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *exprParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) parse() (Expression, error) {
	name := p.token()
	if name == "" {
		return Expression{}, fmt.Errorf("empty expression at offset %d", p.pos)
	}
	if p.peek() != '(' {
		return Expression{Kind: ExprClass, Class: IRI(name)}, nil
	}
	p.pos++
	switch name {
	case "and", "or":
		kind := ExprAnd
		if name == "or" {
			kind = ExprOr
		}
		var operands []Expression
		for {
			op, err := p.parse()
			if err != nil {
				return Expression{}, err
			}
			operands = append(operands, op)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		if err := p.expect(')'); err != nil {
			return Expression{}, err
		}
		if len(operands) < 2 {
			return Expression{}, fmt.Errorf("%s needs at least two operands", name)
		}
		return Expression{Kind: kind, Operands: operands}, nil
	case "some":
		prop := p.token()
		if prop == "" {
			return Expression{}, fmt.Errorf("some: missing property")
		}
		if err := p.expect(','); err != nil {
			return Expression{}, err
		}
		filler, err := p.parse()
		if err != nil {
			return Expression{}, err
		}
		if err := p.expect(')'); err != nil {
			return Expression{}, err
		}
		return Expression{Kind: ExprSome, Property: IRI(prop), Operands: []Expression{filler}}, nil
	}
	return Expression{}, fmt.Errorf("unknown constructor %q", name)
}

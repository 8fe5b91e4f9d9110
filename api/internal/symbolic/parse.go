package symbolic

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
)

type token struct {
	kind tokKind
	text string
}

// knownIdents are matched greedily before falling back to single letters,
// so "sinx" reads as sin x and "2xy" as 2·x·y.
var knownIdents = []string{"sqrt", "sin", "cos", "tan", "exp", "abs", "log", "ln", "pi"}

func tokenize(s string) ([]token, error) {
	var out []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			out = append(out, token{tokNum, string(rs[i:j])})
			i = j
		case unicode.IsLetter(r):
			rest := strings.ToLower(string(rs[i:]))
			word := string(unicode.ToLower(r))
			for _, id := range knownIdents {
				if strings.HasPrefix(rest, id) {
					word = id
					break
				}
			}
			out = append(out, token{tokIdent, word})
			i += len([]rune(word))
		case strings.ContainsRune("+-*/^()[]", r):
			op := string(r)
			switch op {
			case "[":
				op = "("
			case "]":
				op = ")"
			}
			out = append(out, token{tokOp, op})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected %q", errSyntax, r)
		}
	}
	return append(out, token{kind: tokEOF}), nil
}

// parser is a recursive descent parser over one variable:
//
//	sum     = product { ("+" | "-") product }
//	product = unary { ("*" | "/") unary | unary }   (juxtaposition multiplies)
//	unary   = ("-" | "+") unary | power
//	power   = primary [ "^" exponent ]
type parser struct {
	toks []token
	pos  int
	v    string
}

func parseExpr(s, v string) (expr, error) {
	toks, err := tokenize(s)
	if err != nil {
		return expr{}, err
	}
	p := &parser{toks: toks, v: v}
	e, err := p.sum()
	if err != nil {
		return expr{}, err
	}
	if p.peek().kind != tokEOF {
		return expr{}, fmt.Errorf("%w: unexpected %q", errSyntax, p.peek().text)
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

func (p *parser) expect(op string) error {
	if !p.isOp(op) {
		return fmt.Errorf("%w: expected %q", errSyntax, op)
	}
	p.next()
	return nil
}

func (p *parser) sum() (expr, error) {
	left, err := p.product()
	if err != nil {
		return expr{}, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		right, err := p.product()
		if err != nil {
			return expr{}, err
		}
		if op == "+" {
			left = add(left, right)
		} else {
			left = sub(left, right)
		}
	}
	return left, nil
}

func (p *parser) startsFactor() bool {
	t := p.peek()
	return t.kind == tokIdent || (t.kind == tokOp && t.text == "(")
}

func (p *parser) product() (expr, error) {
	left, err := p.unary()
	if err != nil {
		return expr{}, err
	}
	for {
		switch {
		case p.isOp("*"):
			p.next()
			right, err := p.unary()
			if err != nil {
				return expr{}, err
			}
			if left, err = mul(left, right); err != nil {
				return expr{}, err
			}
		case p.isOp("/"):
			p.next()
			right, err := p.unary()
			if err != nil {
				return expr{}, err
			}
			c, ok := right.constValue()
			if !ok {
				return expr{}, fmt.Errorf("%w: division by a non-constant", errUnsupported)
			}
			if c.Sign() == 0 {
				return expr{}, fmt.Errorf("%w: division by zero", errUnsupported)
			}
			left = scale(left, new(big.Rat).Inv(c))
		case p.startsFactor():
			right, err := p.power()
			if err != nil {
				return expr{}, err
			}
			if left, err = mul(left, right); err != nil {
				return expr{}, err
			}
		default:
			return left, nil
		}
	}
}

func (p *parser) unary() (expr, error) {
	switch {
	case p.isOp("-"):
		p.next()
		e, err := p.unary()
		return neg(e), err
	case p.isOp("+"):
		p.next()
		return p.unary()
	}
	return p.power()
}

func (p *parser) power() (expr, error) {
	base, err := p.primary()
	if err != nil {
		return expr{}, err
	}
	if !p.isOp("^") {
		return base, nil
	}
	p.next()
	n, err := p.exponent()
	if err != nil {
		return expr{}, err
	}
	return pow(base, n)
}

// exponent reads a signed integer, optionally in parentheses.
func (p *parser) exponent() (int, error) {
	paren := p.isOp("(")
	if paren {
		p.next()
	}
	sign := 1
	if p.isOp("-") {
		sign = -1
		p.next()
	} else if p.isOp("+") {
		p.next()
	}
	t := p.next()
	if t.kind != tokNum {
		return 0, fmt.Errorf("%w: exponent must be an integer", errUnsupported)
	}
	r, ok := new(big.Rat).SetString(t.text)
	if !ok || !r.IsInt() || !r.Num().IsInt64() {
		return 0, fmt.Errorf("%w: exponent %s", errUnsupported, t.text)
	}
	if paren {
		if err := p.expect(")"); err != nil {
			return 0, err
		}
	}
	return sign * int(r.Num().Int64()), nil
}

func (p *parser) primary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		r, ok := new(big.Rat).SetString(t.text)
		if !ok {
			return expr{}, fmt.Errorf("%w: bad number %q", errSyntax, t.text)
		}
		return constant(r), nil
	case tokOp:
		if t.text != "(" {
			return expr{}, fmt.Errorf("%w: unexpected %q", errSyntax, t.text)
		}
		e, err := p.sum()
		if err != nil {
			return expr{}, err
		}
		return e, p.expect(")")
	case tokIdent:
		return p.ident(t.text)
	}
	return expr{}, fmt.Errorf("%w: unexpected end of expression", errSyntax)
}

func (p *parser) ident(name string) (expr, error) {
	switch name {
	case p.v:
		return monomial(ri(1), 1), nil
	case "e":
		if !p.isOp("^") {
			return expr{}, fmt.Errorf("%w: bare constant e", errUnsupported)
		}
		p.next()
		arg, err := p.tightFactor()
		if err != nil {
			return expr{}, err
		}
		return apply(kindExp, arg)
	case "sin", "cos", "exp", "ln", "sqrt":
		arg, err := p.funcArg()
		if err != nil {
			return expr{}, err
		}
		switch name {
		case "sin":
			return apply(kindSin, arg)
		case "cos":
			return apply(kindCos, arg)
		case "exp":
			return apply(kindExp, arg)
		case "ln":
			return apply(kindLog, arg)
		}
		c, ok := arg.constValue()
		if !ok {
			return expr{}, fmt.Errorf("%w: sqrt of a non-constant", errUnsupported)
		}
		root, ok := sqrtRat(c)
		if !ok || !root.rational() {
			return expr{}, fmt.Errorf("%w: irrational sqrt", errUnsupported)
		}
		return constant(root.coef), nil
	}
	return expr{}, fmt.Errorf("%w: symbol %q", errUnsupported, name)
}

func (p *parser) funcArg() (expr, error) {
	if p.isOp("(") {
		p.next()
		e, err := p.sum()
		if err != nil {
			return expr{}, err
		}
		return e, p.expect(")")
	}
	return p.power()
}

// tightFactor reads the exponent of e: a parenthesised sum, or a signed
// number and/or the variable written together ("2x", "-x").
func (p *parser) tightFactor() (expr, error) {
	if p.isOp("(") {
		return p.funcArg()
	}
	sign := ri(1)
	if p.isOp("-") {
		sign = ri(-1)
		p.next()
	}
	out := constant(sign)
	matched := false
	if t := p.peek(); t.kind == tokNum {
		p.next()
		r, ok := new(big.Rat).SetString(t.text)
		if !ok {
			return expr{}, fmt.Errorf("%w: bad number %q", errSyntax, t.text)
		}
		out = scale(out, r)
		matched = true
	}
	if t := p.peek(); t.kind == tokIdent && t.text == p.v {
		p.next()
		out = scale(monomial(ri(1), 1), out.coef(0))
		matched = true
	}
	if !matched {
		return expr{}, fmt.Errorf("%w: bad exponent of e", errSyntax)
	}
	return out, nil
}

// apply builds f(arg) for an argument of the form k·x, or folds the
// function at the few constants where it is rational.
func apply(kind termKind, arg expr) (expr, error) {
	if c, ok := arg.constValue(); ok {
		switch {
		case c.Sign() == 0 && kind == kindSin:
			return constant(new(big.Rat)), nil
		case c.Sign() == 0 && (kind == kindCos || kind == kindExp):
			return constant(ri(1)), nil
		case isOne(c) && kind == kindLog:
			return constant(new(big.Rat)), nil
		}
		return expr{}, fmt.Errorf("%w: transcendental constant", errUnsupported)
	}
	if len(arg.terms) != 1 || arg.terms[0].kind != kindPower || arg.terms[0].n != 1 {
		return expr{}, fmt.Errorf("%w: argument %s is not linear", errUnsupported, arg.format("x"))
	}
	return fnTerm(kind, ri(1), arg.terms[0].coef), nil
}

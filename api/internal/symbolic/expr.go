package symbolic

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

var (
	errUnsupported = errors.New("unsupported expression")
	errSyntax      = errors.New("syntax error")
)

type termKind int

const (
	kindPower termKind = iota
	kindSin
	kindCos
	kindExp
	kindLog // ln|kx|
)

// term is coef·x^n for powers, or coef·f(k·x) for the other kinds.
type term struct {
	coef *big.Rat
	kind termKind
	n    int
	k    *big.Rat
}

func (t term) key() string {
	if t.kind == kindPower {
		return "p" + strconv.Itoa(t.n)
	}
	return fmt.Sprintf("f%d:%s", t.kind, t.k.RatString())
}

func (t term) withCoef(c *big.Rat) term {
	out := t
	out.coef = c
	return out
}

// expr is a sum of terms in one variable. Like terms are merged, zero terms
// dropped, and the order is fixed: powers by descending exponent, then
// sin, cos, exp, ln.
type expr struct{ terms []term }

func constant(c *big.Rat) expr { return monomial(c, 0) }

func monomial(c *big.Rat, n int) expr {
	return normalize([]term{{coef: new(big.Rat).Set(c), kind: kindPower, n: n}})
}

func fnTerm(kind termKind, c, k *big.Rat) expr {
	return normalize([]term{{coef: new(big.Rat).Set(c), kind: kind, k: new(big.Rat).Set(k)}})
}

func normalize(ts []term) expr {
	merged := map[string]term{}
	var keys []string
	for _, t := range ts {
		k := t.key()
		if cur, ok := merged[k]; ok {
			merged[k] = cur.withCoef(new(big.Rat).Add(cur.coef, t.coef))
			continue
		}
		merged[k] = t.withCoef(new(big.Rat).Set(t.coef))
		keys = append(keys, k)
	}
	out := make([]term, 0, len(keys))
	for _, k := range keys {
		if t := merged[k]; t.coef.Sign() != 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		if a.kind == kindPower {
			return a.n > b.n
		}
		return a.k.Cmp(b.k) < 0
	})
	return expr{terms: out}
}

func add(a, b expr) expr {
	ts := make([]term, 0, len(a.terms)+len(b.terms))
	ts = append(ts, a.terms...)
	ts = append(ts, b.terms...)
	return normalize(ts)
}

func scale(a expr, c *big.Rat) expr {
	ts := make([]term, len(a.terms))
	for i, t := range a.terms {
		ts[i] = t.withCoef(new(big.Rat).Mul(t.coef, c))
	}
	return normalize(ts)
}

func neg(a expr) expr     { return scale(a, ri(-1)) }
func sub(a, b expr) expr  { return add(a, neg(b)) }
func (e expr) zero() bool { return len(e.terms) == 0 }

// constValue reports the value of e when it does not depend on the variable.
func (e expr) constValue() (*big.Rat, bool) {
	switch {
	case len(e.terms) == 0:
		return new(big.Rat), true
	case len(e.terms) == 1 && e.terms[0].kind == kindPower && e.terms[0].n == 0:
		return new(big.Rat).Set(e.terms[0].coef), true
	}
	return nil, false
}

// polynomial reports whether e only has non-negative integer powers.
func (e expr) polynomial() bool {
	for _, t := range e.terms {
		if t.kind != kindPower || t.n < 0 {
			return false
		}
	}
	return true
}

func (e expr) degree() int {
	d := 0
	for _, t := range e.terms {
		if t.kind == kindPower && t.n > d {
			d = t.n
		}
	}
	return d
}

// coef returns the coefficient of x^n.
func (e expr) coef(n int) *big.Rat {
	for _, t := range e.terms {
		if t.kind == kindPower && t.n == n {
			return new(big.Rat).Set(t.coef)
		}
	}
	return new(big.Rat)
}

func mulTerms(a, b term) (term, error) {
	c := new(big.Rat).Mul(a.coef, b.coef)
	switch {
	case a.kind == kindPower && b.kind == kindPower:
		return term{coef: c, kind: kindPower, n: a.n + b.n}, nil
	case a.kind == kindPower && a.n == 0:
		return b.withCoef(c), nil
	case b.kind == kindPower && b.n == 0:
		return a.withCoef(c), nil
	}
	return term{}, fmt.Errorf("%w: product of %s and %s", errUnsupported, a.format("x"), b.format("x"))
}

func mul(a, b expr) (expr, error) {
	var ts []term
	for _, x := range a.terms {
		for _, y := range b.terms {
			t, err := mulTerms(x, y)
			if err != nil {
				return expr{}, err
			}
			ts = append(ts, t)
		}
	}
	return normalize(ts), nil
}

func pow(a expr, n int) (expr, error) {
	switch {
	case n == 0:
		return constant(ri(1)), nil
	case n < 0:
		if len(a.terms) != 1 || a.terms[0].kind != kindPower {
			return expr{}, fmt.Errorf("%w: negative power of a sum", errUnsupported)
		}
		t := a.terms[0]
		c := new(big.Rat).Inv(t.coef)
		for i := 1; i < -n; i++ {
			c.Mul(c, new(big.Rat).Inv(t.coef))
		}
		return monomial(c, t.n*n), nil
	case n > 64:
		return expr{}, fmt.Errorf("%w: exponent %d too large", errUnsupported, n)
	}
	out := constant(ri(1))
	for i := 0; i < n; i++ {
		var err error
		if out, err = mul(out, a); err != nil {
			return expr{}, err
		}
	}
	return out, nil
}

func equal(a, b expr) bool { return sub(a, b).zero() }

func (t term) evalFloat(x float64) float64 {
	c := ratFloat(t.coef)
	switch t.kind {
	case kindPower:
		return c * math.Pow(x, float64(t.n))
	case kindSin:
		return c * math.Sin(ratFloat(t.k)*x)
	case kindCos:
		return c * math.Cos(ratFloat(t.k)*x)
	case kindExp:
		return c * math.Exp(ratFloat(t.k)*x)
	case kindLog:
		return c * math.Log(math.Abs(ratFloat(t.k)*x))
	}
	return math.NaN()
}

func (e expr) evalFloat(x float64) float64 {
	sum := 0.0
	for _, t := range e.terms {
		sum += t.evalFloat(x)
	}
	return sum
}

// evalRat evaluates a sum of powers exactly.
func (e expr) evalRat(x *big.Rat) (*big.Rat, bool) {
	sum := new(big.Rat)
	for _, t := range e.terms {
		if t.kind != kindPower {
			return nil, false
		}
		if t.n < 0 && x.Sign() == 0 {
			return nil, false
		}
		v := new(big.Rat).Set(t.coef)
		base := x
		n := t.n
		if n < 0 {
			base = new(big.Rat).Inv(x)
			n = -n
		}
		for i := 0; i < n; i++ {
			v.Mul(v, base)
		}
		sum.Add(sum, v)
	}
	return sum, true
}

// argument renders k·v the way it appears inside sin(), e.g. "2x" or "x/2".
func argument(k *big.Rat, v string) string {
	switch {
	case isOne(k):
		return v
	case isMinusOne(k):
		return "-" + v
	}
	return scaled(k, v)
}

// format renders the term without a leading sign; v is the text used in
// place of the variable.
func (t term) format(v string) string {
	c := new(big.Rat).Abs(t.coef)
	var body string
	switch t.kind {
	case kindPower:
		if t.n == 0 {
			return c.RatString()
		}
		body = v
		if t.n < 0 {
			body = fmt.Sprintf("%s^(%d)", v, t.n)
		} else if t.n != 1 {
			body = fmt.Sprintf("%s^%d", v, t.n)
		}
	case kindSin:
		body = "sin(" + argument(t.k, v) + ")"
	case kindCos:
		body = "cos(" + argument(t.k, v) + ")"
	case kindExp:
		if isOne(t.k) {
			body = "e^" + v
		} else {
			body = "e^(" + argument(t.k, v) + ")"
		}
	case kindLog:
		body = "ln|" + argument(t.k, v) + "|"
	}
	return scaled(c, body)
}

// format renders e with v substituted for the variable.
func (e expr) format(v string) string {
	if len(e.terms) == 0 {
		return "0"
	}
	var b strings.Builder
	for i, t := range e.terms {
		switch {
		case i == 0 && t.coef.Sign() < 0:
			b.WriteString("-")
		case i > 0 && t.coef.Sign() < 0:
			b.WriteString(" - ")
		case i > 0:
			b.WriteString(" + ")
		}
		b.WriteString(t.format(v))
	}
	return b.String()
}

func formatEquation(lhs, rhs expr, v string) string {
	return lhs.format(v) + " = " + rhs.format(v)
}

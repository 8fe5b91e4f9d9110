package symbolic

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"mathcast/api/internal/problem"
)

var (
	reDiffPrefix = regexp.MustCompile(`^(d[a-z]?/d[a-z])`)
	reBounds     = regexp.MustCompile(`\b(?:from|between)\s+([-+]?[0-9a-z./*^()]+)\s+(?:to|and)\s+([-+]?[0-9a-z./*^()]+)`)
)

// calculusBody strips "d/dx", "f(x) =" and a trailing "dx" from the
// expression.
func calculusBody(expression, v string) string {
	s := strings.TrimSpace(expression)
	s = reDiffPrefix.ReplaceAllString(s, "")
	if i := strings.LastIndex(s, "="); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "d"+v)
	return strings.TrimSpace(s)
}

func single(t term) expr { return expr{terms: []term{t}} }

func derivTerm(t term) (expr, string) {
	switch t.kind {
	case kindPower:
		switch t.n {
		case 0:
			return expr{}, "constant rule"
		case 1:
			return constant(t.coef), "constant multiple rule"
		}
		c := new(big.Rat).Mul(t.coef, ri(int64(t.n)))
		return monomial(c, t.n-1), "power rule"
	case kindSin:
		return fnTerm(kindCos, new(big.Rat).Mul(t.coef, t.k), t.k), chain("sine rule", t.k)
	case kindCos:
		c := new(big.Rat).Neg(new(big.Rat).Mul(t.coef, t.k))
		return fnTerm(kindSin, c, t.k), chain("cosine rule", t.k)
	case kindExp:
		return fnTerm(kindExp, new(big.Rat).Mul(t.coef, t.k), t.k), chain("exponential rule", t.k)
	case kindLog:
		return monomial(t.coef, -1), "logarithm rule"
	}
	return expr{}, ""
}

func chain(rule string, k *big.Rat) string {
	if isOne(k) {
		return rule
	}
	return rule + " with the chain rule"
}

var ruleHints = map[string]string{
	"power rule":             "d/dx[x^n] = n·x^(n-1)",
	"constant rule":          "The derivative of a constant is 0.",
	"constant multiple rule": "d/dx[c·x] = c",
	"sine rule":              "d/dx[sin(x)] = cos(x)",
	"cosine rule":            "d/dx[cos(x)] = -sin(x)",
	"exponential rule":       "d/dx[e^x] = e^x",
	"logarithm rule":         "d/dx[ln|x|] = 1/x",
}

func hintFor(rule string) string {
	return ruleHints[strings.TrimSuffix(rule, " with the chain rule")]
}

func derivative(e expr) expr {
	out := expr{}
	for _, t := range e.terms {
		d, _ := derivTerm(t)
		out = add(out, d)
	}
	return out
}

func solveDerivative(p problem.Problem, v string) (problem.Solution, error) {
	body := calculusBody(p.Expression, v)
	f, err := parseExpr(body, v)
	if err != nil {
		return problem.Solution{}, err
	}
	fx := "f(" + v + ")"
	b := &builder{}
	b.add(problem.OpRestate, "Write down the function", "", fx+" = "+f.format(v), "")
	if !sameText(body, f.format(v)) {
		b.add(problem.OpSimplify, "Expand and simplify the function", body, f.format(v), "")
	}
	if f.zero() {
		b.add(problem.OpDifferentiate, "The derivative of a constant is 0", fx+" = 0", fx+"' = 0", "")
		return b.solution("0", true), nil
	}

	df := derivative(f)
	for _, t := range f.terms {
		d, rule := derivTerm(t)
		b.add(problem.OpDifferentiate,
			fmt.Sprintf("Apply the %s to %s", rule, single(t).format(v)),
			fmt.Sprintf("d/d%s[%s]", v, single(t).format(v)),
			d.format(v), hintFor(rule))
	}
	if len(f.terms) > 1 {
		b.add(problem.OpSimplify, "Combine the results", "", "f'("+v+") = "+df.format(v), "")
	}
	return b.solution(df.format(v), derivativeHolds(body, v, f, df)), nil
}

// derivativeHolds compares df against a central difference of the original
// expression at a few sample points.
func derivativeHolds(body, v string, f, df expr) bool {
	ev, evErr := newEvaluator(body)
	eval := func(x float64) (float64, error) {
		if evErr != nil {
			return f.evalFloat(x), nil
		}
		return ev.atVar(v, x)
	}
	const h = 1e-5
	for _, x0 := range []float64{0.7, 1.3, 2.2} {
		hi, err := eval(x0 + h)
		if err != nil {
			return false
		}
		lo, err := eval(x0 - h)
		if err != nil {
			return false
		}
		fd := (hi - lo) / (2 * h)
		want := df.evalFloat(x0)
		if math.IsNaN(fd) || math.Abs(fd-want) > 1e-4*math.Max(1, math.Abs(want)) {
			return false
		}
	}
	return true
}

func integTerm(t term) (expr, string, error) {
	switch t.kind {
	case kindPower:
		switch t.n {
		case -1:
			return fnTerm(kindLog, t.coef, ri(1)), "logarithm rule", nil
		case 0:
			return monomial(t.coef, 1), "constant rule", nil
		}
		c := new(big.Rat).Quo(t.coef, ri(int64(t.n+1)))
		return monomial(c, t.n+1), "power rule", nil
	case kindSin:
		c := new(big.Rat).Neg(new(big.Rat).Quo(t.coef, t.k))
		return fnTerm(kindCos, c, t.k), chain("sine rule", t.k), nil
	case kindCos:
		return fnTerm(kindSin, new(big.Rat).Quo(t.coef, t.k), t.k), chain("cosine rule", t.k), nil
	case kindExp:
		return fnTerm(kindExp, new(big.Rat).Quo(t.coef, t.k), t.k), chain("exponential rule", t.k), nil
	}
	return expr{}, "", fmt.Errorf("%w: no rule integrates %s", errUnsupported, t.format("x"))
}

var integralHints = map[string]string{
	"power rule":       "∫x^n dx = x^(n+1)/(n+1) for n ≠ -1",
	"constant rule":    "∫c dx = c·x",
	"logarithm rule":   "∫1/x dx = ln|x|",
	"sine rule":        "∫sin(x) dx = -cos(x)",
	"cosine rule":      "∫cos(x) dx = sin(x)",
	"exponential rule": "∫e^x dx = e^x",
}

type bound struct {
	text  string
	exact *big.Rat
	value float64
}

func parseBound(s, v string) (bound, error) {
	s = strings.TrimRight(s, ".")
	if e, err := parseExpr(s, v); err == nil {
		if c, ok := e.constValue(); ok {
			return bound{text: ratString(c), exact: c, value: ratFloat(c)}, nil
		}
	}
	ev, err := newEvaluator(s)
	if err != nil {
		return bound{}, err
	}
	f, err := ev.at(nil)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return bound{}, fmt.Errorf("%w: bound %q", errUnsupported, s)
	}
	return bound{text: s, value: f}, nil
}

func solveIntegral(p problem.Problem, v string) (problem.Solution, error) {
	body := calculusBody(p.Expression, v)
	f, err := parseExpr(body, v)
	if err != nil {
		return problem.Solution{}, err
	}

	var lo, hi *bound
	if m := reBounds.FindStringSubmatch(strings.ToLower(problem.Clean(p.RawText))); m != nil {
		a, errA := parseBound(m[1], v)
		z, errB := parseBound(m[2], v)
		if errA != nil || errB != nil {
			return problem.Solution{}, fmt.Errorf("%w: integration bounds", errUnsupported)
		}
		lo, hi = &a, &z
	}

	b := &builder{}
	integrand := f.format(v)
	dv := " d" + v
	if lo != nil {
		b.add(problem.OpRestate, "Write down the definite integral", "",
			fmt.Sprintf("∫[%s, %s] (%s)%s", lo.text, hi.text, integrand, dv), "")
	} else {
		b.add(problem.OpRestate, "Write down the integral", "", "∫("+integrand+")"+dv, "")
	}

	F := expr{}
	for _, t := range f.terms {
		it, rule, err := integTerm(t)
		if err != nil {
			return problem.Solution{}, err
		}
		F = add(F, it)
		b.add(problem.OpIntegrate,
			fmt.Sprintf("Apply the %s to %s", rule, single(t).format(v)),
			"∫"+single(t).format(v)+dv, it.format(v),
			integralHints[strings.TrimSuffix(rule, " with the chain rule")])
	}
	Fx := "F(" + v + ")"
	exact := equal(derivative(F), f)

	if lo == nil {
		anti := F.format(v) + " + C"
		if F.zero() {
			anti = "C"
		}
		b.add(problem.OpSimplify, "Add the constant of integration", "", Fx+" = "+anti,
			"Any constant differentiates to 0, so the answer is a family of functions.")
		return b.solution(anti, exact), nil
	}

	b.add(problem.OpSimplify, "Write the antiderivative", "", Fx+" = "+F.format(v), "")
	value, err := evaluateDefinite(F, lo, hi)
	if err != nil {
		return problem.Solution{}, err
	}
	b.add(problem.OpEvaluate, "Evaluate the antiderivative at the bounds",
		fmt.Sprintf("F(%s) - F(%s)", hi.text, lo.text), value, "")
	return b.solution(value, exact && simpsonAgrees(body, v, f, F, lo.value, hi.value)), nil
}

func evaluateDefinite(F expr, lo, hi *bound) (string, error) {
	if lo.exact != nil && hi.exact != nil {
		a, okA := F.evalRat(lo.exact)
		z, okB := F.evalRat(hi.exact)
		if okA && okB {
			return ratString(new(big.Rat).Sub(z, a)), nil
		}
	}
	val := F.evalFloat(hi.value) - F.evalFloat(lo.value)
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return "", fmt.Errorf("%w: integral diverges on [%s, %s]", errUnsupported, lo.text, hi.text)
	}
	return approx(val), nil
}

// simpsonAgrees integrates the original expression numerically.
func simpsonAgrees(body, v string, f, F expr, a, z float64) bool {
	ev, evErr := newEvaluator(body)
	eval := func(x float64) float64 {
		if evErr == nil {
			if y, err := ev.atVar(v, x); err == nil {
				return y
			}
		}
		return f.evalFloat(x)
	}
	const n = 400
	h := (z - a) / n
	sum := eval(a) + eval(z)
	for i := 1; i < n; i++ {
		w := 2.0
		if i%2 == 1 {
			w = 4
		}
		sum += w * eval(a+float64(i)*h)
	}
	numeric := sum * h / 3
	want := F.evalFloat(z) - F.evalFloat(a)
	return !math.IsNaN(numeric) && math.Abs(numeric-want) <= 1e-5*math.Max(1, math.Abs(want))
}

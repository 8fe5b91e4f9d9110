package symbolic

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strings"

	"mathcast/api/internal/problem"
)

var (
	reTrigCall     = regexp.MustCompile(`(?:^|[^a-z])(sin|cos|tan)\s*(?:\(([^()]+)\)|(-?\d+(?:\.\d+)?°?))`)
	reTrigPower    = regexp.MustCompile(`(^|[^a-z])(sin|cos|tan)\^(\d+)\s*(\([^()]+\)|[a-z])`)
	reRadianHint   = regexp.MustCompile(`pi\b|\brad(ian)?s?\b`)
	reDegreeSuffix = regexp.MustCompile(`\s*(°|degrees?|deg)\s*`)
)

// angle is an argument of a trig function. Exact angles are whole degrees
// on the 30° and 45° grids.
type angle struct {
	degrees *big.Rat // nil when not a rational number of degrees
	radians float64
	label   string
	// bare is set when a unitless number was read as degrees.
	bare bool
}

func (a angle) special() (int64, bool) {
	if a.degrees == nil || !a.degrees.IsInt() || !a.degrees.Num().IsInt64() {
		return 0, false
	}
	d := a.degrees.Num().Int64()
	return d, d%30 == 0 || d%45 == 0
}

// parseAngle reads "30", "30°", "pi/6" or "2pi/3". Bare numbers are degrees
// unless radians is set.
func parseAngle(s string, radians bool) (angle, error) {
	bare := !radians && !reDegreeSuffix.MatchString(s)
	s = strings.TrimSpace(reDegreeSuffix.ReplaceAllString(s, ""))
	if e, err := parseExpr(s, "pi"); err == nil {
		if c, ok := e.constValue(); ok {
			if !radians {
				return angle{degrees: c, radians: ratFloat(c) * math.Pi / 180, label: ratString(c) + "°", bare: bare}, nil
			}
			return angle{radians: ratFloat(c), label: ratString(c)}, nil
		}
		if len(e.terms) == 1 && e.terms[0].kind == kindPower && e.terms[0].n == 1 {
			k := e.terms[0].coef
			deg := new(big.Rat).Mul(k, ri(180))
			return angle{degrees: deg, radians: ratFloat(k) * math.Pi, label: piMultiple(k)}, nil
		}
	}
	ev, err := newEvaluator(s)
	if err != nil {
		return angle{}, err
	}
	f, err := ev.at(nil)
	if err != nil {
		return angle{}, fmt.Errorf("%w: angle %q", errUnsupported, s)
	}
	if !radians {
		return angle{radians: f * math.Pi / 180, label: s + "°", bare: bare}, nil
	}
	return angle{radians: f, label: s}, nil
}

// sinExact returns sin(d°) for d on the 30° or 45° grid.
func sinExact(d int64) radical {
	d = ((d % 360) + 360) % 360
	sign := int64(1)
	if d >= 180 {
		sign, d = -1, d-180
	}
	if d > 90 {
		d = 180 - d
	}
	var r radical
	switch d {
	case 0:
		r = radical{coef: new(big.Rat), radicand: 1}
	case 30:
		r = radical{coef: frac(1, 2), radicand: 1}
	case 45:
		r = radical{coef: frac(1, 2), radicand: 2}
	case 60:
		r = radical{coef: frac(1, 2), radicand: 3}
	default:
		r = radical{coef: ri(1), radicand: 1}
	}
	r.coef = new(big.Rat).Mul(r.coef, ri(sign))
	return r
}

func cosExact(d int64) radical { return sinExact(d + 90) }

func tanExact(d int64) (radical, bool) {
	d = ((d % 180) + 180) % 180
	sign := int64(1)
	if d > 90 {
		sign, d = -1, 180-d
	}
	var r radical
	switch d {
	case 0:
		r = radical{coef: new(big.Rat), radicand: 1}
	case 30:
		r = radical{coef: frac(1, 3), radicand: 3}
	case 45:
		r = radical{coef: ri(1), radicand: 1}
	case 60:
		r = radical{coef: ri(1), radicand: 3}
	default:
		return radical{}, false
	}
	r.coef = new(big.Rat).Mul(r.coef, ri(sign))
	return r, true
}

type trigValue struct {
	exact *radical
	value float64
}

func (t trigValue) String() string {
	if t.exact != nil {
		return t.exact.exact()
	}
	return approx(t.value)
}

func evalTrig(fn string, a angle) (trigValue, error) {
	if d, ok := a.special(); ok {
		var r radical
		switch fn {
		case "sin":
			r = sinExact(d)
		case "cos":
			r = cosExact(d)
		case "tan":
			if r, ok = tanExact(d); !ok {
				return trigValue{}, fmt.Errorf("%w: tan(%s) is undefined", errUnsupported, a.label)
			}
		}
		return trigValue{exact: &r, value: r.float()}, nil
	}
	var v float64
	switch fn {
	case "sin":
		v = math.Sin(a.radians)
	case "cos":
		v = math.Cos(a.radians)
	case "tan":
		if near(math.Cos(a.radians), 0) {
			return trigValue{}, fmt.Errorf("%w: tan(%s) is undefined", errUnsupported, a.label)
		}
		v = math.Tan(a.radians)
	}
	return trigValue{value: v}, nil
}

func solveTrig(p problem.Problem, v string) (problem.Solution, error) {
	expr := strings.ToLower(p.Expression)
	radians := reRadianHint.MatchString(strings.ToLower(problem.Clean(p.RawText)))
	switch {
	case strings.Contains(expr, "sin^2") && strings.Contains(expr, "cos^2"):
		return solvePythagoreanIdentity(p, expr, v)
	case strings.Contains(expr, "=") && containsVar(expr, v):
		return solveTrigEquation(p, v, radians)
	case reTrigCall.MatchString(expr):
		return evaluateTrigExpression(expr, radians)
	}
	return problem.Solution{}, fmt.Errorf("%w: no trig rule applies", errUnsupported)
}

func containsVar(expr, v string) bool {
	for _, t := range variablesIn(expr) {
		if t == v {
			return true
		}
	}
	return false
}

func variablesIn(expr string) []string {
	toks, err := tokenize(strings.ReplaceAll(expr, "=", "-"))
	if err != nil {
		return nil
	}
	var out []string
	for _, t := range toks {
		if t.kind == tokIdent && len(t.text) == 1 && t.text != "e" {
			out = append(out, t.text)
		}
	}
	return out
}

// expandTrigPowers rewrites sin^2(x) as (sin(x))^2 so it can be evaluated.
func expandTrigPowers(s string) string {
	return reTrigPower.ReplaceAllStringFunc(s, func(m string) string {
		g := reTrigPower.FindStringSubmatch(m)
		arg := g[4]
		if !strings.HasPrefix(arg, "(") {
			arg = "(" + arg + ")"
		}
		return g[1] + "(" + g[2] + arg + ")^" + g[3]
	})
}

func solvePythagoreanIdentity(p problem.Problem, expr, v string) (problem.Solution, error) {
	b := &builder{}
	b.add(problem.OpRestate, "Write down the expression", "", p.Expression, "")
	b.add(problem.OpApplyFormula, "Apply the Pythagorean identity", "sin^2(θ) + cos^2(θ)", "1",
		"For every angle θ, sin^2(θ) + cos^2(θ) = 1.")

	ev, err := newEvaluator(expandTrigPowers(strings.ReplaceAll(expr, "=", "-(") + closeParen(expr)))
	if err != nil {
		return problem.Solution{}, err
	}
	var first float64
	for i, x := range []float64{0.3, 1.1, 2.5} {
		y, err := ev.atVar(v, x)
		if err != nil {
			return problem.Solution{}, err
		}
		if i == 0 {
			first = y
		} else if !near(y, first) {
			return problem.Solution{}, fmt.Errorf("%w: expression is not constant", errUnsupported)
		}
	}
	if strings.Contains(expr, "=") {
		b.add(problem.OpSimplify, "Both sides agree for every angle", "", "identity holds", "")
		return b.solution("identity holds", near(first, 0)), nil
	}
	answer := approx(first)
	if near(first, math.Round(first)) {
		answer = fmt.Sprintf("%d", int64(math.Round(first)))
	}
	if answer != "1" {
		b.add(problem.OpSimplify, "Simplify the remaining terms", "", answer, "")
	}
	return b.solution(answer, true), nil
}

func closeParen(expr string) string {
	if strings.Contains(expr, "=") {
		return ")"
	}
	return ""
}

func evaluateTrigExpression(expr string, radians bool) (problem.Solution, error) {
	b := &builder{}
	b.add(problem.OpRestate, "Write down the expression", "", expr, "")

	calls := reTrigCall.FindAllStringSubmatchIndex(expr, -1)
	var numeric, direct, shown strings.Builder
	last := 0
	var only trigValue
	var onlyCall string
	assumed := false
	// loc[0] may sit on the character before the function name
	for _, loc := range calls {
		start := loc[2]
		fn := expr[loc[2]:loc[3]]
		var arg string
		if loc[4] >= 0 {
			arg = expr[loc[4]:loc[5]]
		} else {
			arg = expr[loc[6]:loc[7]]
		}
		a, err := parseAngle(arg, radians)
		if err != nil {
			return problem.Solution{}, err
		}
		val, err := evalTrig(fn, a)
		if err != nil {
			return problem.Solution{}, err
		}
		hint := ""
		if val.exact != nil {
			hint = "A special angle; read the value from the unit circle."
		}
		b.add(problem.OpEvaluate, fmt.Sprintf("Evaluate %s(%s)", fn, a.label),
			fmt.Sprintf("%s(%s)", fn, a.label), val.String(), hint)

		call := fmt.Sprintf("%s(%s)", fn, a.label)
		shown.WriteString(expr[last:start])
		shown.WriteString(call)
		assumed = assumed || a.bare
		onlyCall = call

		numeric.WriteString(expr[last:start])
		numeric.WriteString(fmt.Sprintf("(%.15f)", val.value))
		direct.WriteString(expr[last:start])
		direct.WriteString(fmt.Sprintf("%s(%.15f)", fn, a.radians))
		last = loc[1]
		only = val
	}
	numeric.WriteString(expr[last:])
	direct.WriteString(expr[last:])
	shown.WriteString(expr[last:])
	if assumed {
		b.steps[0].After = shown.String()
		b.steps[0].Hint = "Angles without a unit are read as degrees."
	}

	if len(calls) == 1 && strings.TrimSpace(expr[:calls[0][2]]) == "" && strings.TrimSpace(expr[calls[0][1]:]) == "" {
		if assumed && only.exact == nil {
			return b.solution(onlyCall+" ≈ "+only.String(), true), nil
		}
		return b.solution(only.String(), true), nil
	}

	ev, err := newEvaluator(numeric.String())
	if err != nil {
		return problem.Solution{}, err
	}
	got, err := ev.at(nil)
	if err != nil {
		return problem.Solution{}, err
	}
	b.add(problem.OpCompute, "Combine the values", numeric.String(), approx(got), "")

	verified := false
	if dv, err := newEvaluator(direct.String()); err == nil {
		if want, err := dv.at(nil); err == nil {
			verified = near(got, want)
		}
	}
	return b.solution(approx(got), verified), nil
}

// solveTrigEquation solves a·f(x) + c = 0 for f in sin, cos on one turn.
func solveTrigEquation(p problem.Problem, v string, radians bool) (problem.Solution, error) {
	lhsText, rhsText, err := splitEquation(p.Expression)
	if err != nil {
		return problem.Solution{}, err
	}
	// the parser reads bare trig arguments as radians, which only matters
	// for constants, so degree signs can be dropped
	lhs, err := parseExpr(reDegreeSuffix.ReplaceAllString(lhsText, ""), v)
	if err != nil {
		return problem.Solution{}, err
	}
	rhs, err := parseExpr(reDegreeSuffix.ReplaceAllString(rhsText, ""), v)
	if err != nil {
		return problem.Solution{}, err
	}
	diff := sub(lhs, rhs)
	var fn *term
	for i, t := range diff.terms {
		switch {
		case t.kind == kindPower && t.n == 0:
		case (t.kind == kindSin || t.kind == kindCos) && fn == nil && isOne(t.k):
			fn = &diff.terms[i]
		default:
			return problem.Solution{}, fmt.Errorf("%w: trig equation shape", errUnsupported)
		}
	}
	if fn == nil {
		return problem.Solution{}, fmt.Errorf("%w: no trig term", errUnsupported)
	}
	name := "sin"
	if fn.kind == kindCos {
		name = "cos"
	}
	target := new(big.Rat).Quo(new(big.Rat).Neg(diff.coef(0)), fn.coef)

	b := &builder{}
	b.add(problem.OpRestate, "Write down the equation", "", p.Expression, "")
	iso := fmt.Sprintf("%s(%s) = %s", name, v, ratString(target))
	if !sameText(p.Expression, iso) {
		b.add(problem.OpRearrange, fmt.Sprintf("Isolate %s(%s)", name, v), p.Expression, iso, "")
	}
	if new(big.Rat).Abs(target).Cmp(ri(1)) > 0 {
		b.add(problem.OpAnalyze, fmt.Sprintf("%s never leaves [-1, 1]", name), iso, "no solution", "")
		return b.solution("no solution", false), nil
	}

	var roots []int64
	for d := int64(0); d < 360; d += 15 {
		if d%30 != 0 && d%45 != 0 {
			continue
		}
		val := sinExact(d)
		if name == "cos" {
			val = cosExact(d)
		}
		if val.rational() && val.coef.Cmp(target) == 0 {
			roots = append(roots, d)
		}
	}
	if len(roots) == 0 {
		return solveTrigEquationNumeric(b, p, v, name, target, radians)
	}

	labels := make([]string, len(roots))
	verified := true
	for i, d := range roots {
		labels[i] = fmt.Sprintf("%d°", d)
		if radians {
			labels[i] = piMultiple(big.NewRat(d, 180))
		}
		ok, err := checkEquation(p.Expression, v, float64(d)*math.Pi/180)
		verified = verified && err == nil && ok
	}
	period := "360°"
	if radians {
		period = "2π"
	}
	b.add(problem.OpCompute, fmt.Sprintf("Read the angles with %s(%s) = %s from the unit circle", name, v, ratString(target)),
		iso, v+" = "+strings.Join(labels, ", "),
		fmt.Sprintf("Solutions repeat every %s.", period))
	return b.solution(strings.Join(labels, ", "), verified), nil
}

func solveTrigEquationNumeric(b *builder, p problem.Problem, v, name string, target *big.Rat, radians bool) (problem.Solution, error) {
	t := ratFloat(target)
	var x1, x2 float64
	if name == "sin" {
		x1 = math.Asin(t)
		x2 = math.Pi - x1
	} else {
		x1 = math.Acos(t)
		x2 = 2*math.Pi - x1
	}
	var xs []float64
	for _, x := range []float64{x1, x2} {
		x = math.Mod(x+2*math.Pi, 2*math.Pi)
		dup := false
		for _, y := range xs {
			dup = dup || near(x, y)
		}
		if !dup {
			xs = append(xs, x)
		}
	}
	sort.Float64s(xs)
	labels := make([]string, len(xs))
	verified := true
	for i, x := range xs {
		labels[i] = approx(x*180/math.Pi) + "°"
		if radians {
			labels[i] = approx(x)
		}
		ok, err := checkEquation(p.Expression, v, x)
		verified = verified && err == nil && ok
	}
	inv := "arcsin"
	if name == "cos" {
		inv = "arccos"
	}
	b.add(problem.OpCompute, fmt.Sprintf("Apply %s and use the symmetry of %s", inv, name),
		fmt.Sprintf("%s(%s) = %s", name, v, ratString(target)), v+" ≈ "+strings.Join(labels, ", "), "")
	return b.solution(strings.Join(labels, ", "), verified), nil
}

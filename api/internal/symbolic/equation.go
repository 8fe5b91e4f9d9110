package symbolic

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"mathcast/api/internal/problem"
)

type builder struct{ steps []problem.Step }

func (b *builder) add(op problem.Operation, desc, before, after, hint string) {
	b.steps = append(b.steps, problem.Step{
		Description: desc,
		Before:      before,
		After:       after,
		Operation:   op,
		Hint:        hint,
	})
}

func (b *builder) solution(answer string, verified bool) problem.Solution {
	return problem.Solution{
		Steps:       b.steps,
		FinalAnswer: answer,
		Provider:    problem.LocalSymbolic,
		Verified:    verified,
	}
}

// sameText compares two renderings of an equation ignoring spaces and
// explicit multiplication signs.
func sameText(a, b string) bool {
	strip := strings.NewReplacer(" ", "", "*", "")
	return strip.Replace(a) == strip.Replace(b)
}

func solveEquation(p problem.Problem, v string) (problem.Solution, error) {
	lhsText, rhsText, err := splitEquation(p.Expression)
	if err != nil {
		return problem.Solution{}, err
	}
	lhs, err := parseExpr(lhsText, v)
	if err != nil {
		return problem.Solution{}, err
	}
	rhs, err := parseExpr(rhsText, v)
	if err != nil {
		return problem.Solution{}, err
	}
	if !lhs.polynomial() || !rhs.polynomial() {
		return problem.Solution{}, fmt.Errorf("%w: equation is not polynomial", errUnsupported)
	}
	switch d := sub(lhs, rhs).degree(); d {
	case 0, 1:
		return solveLinear(p, v, lhs, rhs), nil
	case 2:
		return solveQuadratic(p, v, lhs, rhs), nil
	default:
		return problem.Solution{}, fmt.Errorf("%w: degree %d equation", errUnsupported, d)
	}
}

func restate(b *builder, p problem.Problem, eq string) {
	b.add(problem.OpRestate, "Write down the equation", "", eq, "")
	if !sameText(p.Expression, eq) {
		b.add(problem.OpSimplify, "Expand and simplify both sides", p.Expression, eq,
			"Multiply out brackets and combine like terms.")
	}
}

func solveLinear(p problem.Problem, v string, lhs, rhs expr) problem.Solution {
	b := &builder{}
	eq := formatEquation(lhs, rhs, v)
	restate(b, p, eq)

	a, k := lhs.coef(1), lhs.coef(0)
	a2, c := rhs.coef(1), rhs.coef(0)

	if a2.Sign() != 0 {
		moved := monomial(a2, 1)
		desc := fmt.Sprintf("Subtract %s from both sides", moved.format(v))
		if a2.Sign() < 0 {
			desc = fmt.Sprintf("Add %s to both sides", neg(moved).format(v))
		}
		a = new(big.Rat).Sub(a, a2)
		next := formatEquation(add(monomial(a, 1), constant(k)), constant(c), v)
		b.add(problem.OpMoveTerm, desc, eq, next, "Collect the variable terms on the left side.")
		eq = next
	}

	if a.Sign() == 0 {
		if k.Cmp(c) == 0 {
			b.add(problem.OpAnalyze, "The variable cancels and both sides are always equal", eq,
				ratString(k)+" = "+ratString(c), "Every value of "+v+" is a solution.")
			return b.solution("all real numbers", true)
		}
		b.add(problem.OpAnalyze, "The variable cancels and leaves a false statement", eq,
			ratString(k)+" = "+ratString(c), "No value of "+v+" can make both sides equal.")
		return b.solution("no solution", false)
	}

	if k.Sign() != 0 {
		desc := fmt.Sprintf("Subtract %s from both sides", ratString(k))
		hint := fmt.Sprintf("Undo the addition of %s.", ratString(k))
		if k.Sign() < 0 {
			pos := new(big.Rat).Neg(k)
			desc = fmt.Sprintf("Add %s to both sides", ratString(pos))
			hint = fmt.Sprintf("Undo the subtraction of %s.", ratString(pos))
		}
		c = new(big.Rat).Sub(c, k)
		next := formatEquation(monomial(a, 1), constant(c), v)
		b.add(problem.OpMoveTerm, desc, eq, next, hint)
		eq = next
	}

	x := new(big.Rat).Quo(c, a)
	if !isOne(a) {
		final := v + " = " + ratString(x)
		if isMinusOne(a) {
			b.add(problem.OpMultiply, "Multiply both sides by -1", eq, final, "Flip the sign of both sides.")
		} else {
			b.add(problem.OpDivide, fmt.Sprintf("Divide both sides by %s", ratString(a)), eq, final,
				fmt.Sprintf("Undo the multiplication by %s.", ratString(a)))
		}
	}

	lv, _ := lhs.evalRat(x)
	rv, _ := rhs.evalRat(x)
	exact := lv.Cmp(rv) == 0
	b.add(problem.OpSubstitute,
		fmt.Sprintf("Check by substituting %s = %s into the original equation", v, ratString(x)),
		formatEquation(lhs, rhs, "("+ratString(x)+")"),
		ratString(lv)+" = "+ratString(rv), "")

	verified := exact
	if ok, err := checkEquation(p.Expression, v, ratFloat(x)); err == nil {
		verified = verified && ok
	}
	return b.solution(ratString(x), verified)
}

type quadRoot struct {
	text  string
	value float64
	ok    bool
}

func solveQuadratic(p problem.Problem, v string, lhs, rhs expr) problem.Solution {
	b := &builder{}
	eq := formatEquation(lhs, rhs, v)
	restate(b, p, eq)

	poly := sub(lhs, rhs)
	if poly.coef(2).Sign() < 0 {
		poly = neg(poly)
	}
	std := formatEquation(poly, constant(new(big.Rat)), v)
	if !rhs.zero() || !sameText(eq, std) {
		b.add(problem.OpRearrange, "Move all terms to the left side", eq, std,
			"A quadratic is easiest to solve in the form ax^2 + bx + c = 0.")
	}

	a, bb, c := poly.coef(2), poly.coef(1), poly.coef(0)
	b.add(problem.OpIdentify, "Identify the coefficients", std,
		fmt.Sprintf("a = %s, b = %s, c = %s", ratString(a), ratString(bb), ratString(c)), "")

	// D = b^2 - 4ac
	disc := new(big.Rat).Mul(bb, bb)
	disc.Sub(disc, new(big.Rat).Mul(ri(4), new(big.Rat).Mul(a, c)))
	b.add(problem.OpDiscriminant, "Compute the discriminant",
		fmt.Sprintf("D = b^2 - 4ac = (%s)^2 - 4(%s)(%s)", ratString(bb), ratString(a), ratString(c)),
		"D = "+ratString(disc),
		"The sign of D tells how many real roots there are.")

	if disc.Sign() < 0 {
		b.add(problem.OpAnalyze, "The discriminant is negative, so there are no real roots",
			"D = "+ratString(disc), "no real solutions", "")
		return b.solution("no real solutions", false)
	}

	twoA := new(big.Rat).Mul(ri(2), a)
	u := new(big.Rat).Quo(new(big.Rat).Neg(bb), twoA)

	if disc.Sign() == 0 {
		b.add(problem.OpApplyFormula, "Apply the quadratic formula with D = 0",
			fmt.Sprintf("%s = -b / (2a) = %s / %s", v, ratString(new(big.Rat).Neg(bb)), ratString(twoA)),
			v+" = "+ratString(u), "A zero discriminant gives one repeated root.")
		val, _ := poly.evalRat(u)
		b.add(problem.OpSubstitute, fmt.Sprintf("Check %s = %s", v, ratString(u)),
			poly.format("("+ratString(u)+")"), ratString(val), "")
		return b.solution(ratString(u), val.Sign() == 0 && numericRootsHold(p, v, ratFloat(u)))
	}

	root, ok := sqrtRat(disc)
	if !ok {
		return solveQuadraticNumeric(b, p, v, poly, a, bb, disc)
	}
	b.add(problem.OpApplyFormula, "Apply the quadratic formula",
		v+" = (-b ± sqrt(D)) / (2a)",
		fmt.Sprintf("%s = (%s ± %s) / %s", v, ratString(new(big.Rat).Neg(bb)), root.String(), ratString(twoA)),
		"")

	// roots are u ± w·sqrt(m)
	w := new(big.Rat).Quo(root.coef, twoA)
	w.Abs(w)
	var roots []quadRoot
	verified := true
	for _, sign := range []int{-1, 1} {
		var r quadRoot
		if root.rational() {
			x := new(big.Rat).Add(u, new(big.Rat).Mul(ri(int64(sign)), w))
			val, _ := poly.evalRat(x)
			r = quadRoot{text: ratString(x), value: ratFloat(x), ok: val.Sign() == 0}
			b.add(problem.OpSubstitute, fmt.Sprintf("Check %s = %s", v, r.text),
				poly.format("("+r.text+")"), ratString(val), "")
		} else {
			r = quadRoot{
				text:  surdRoot(u, w, root.radicand, sign),
				value: ratFloat(u) + float64(sign)*ratFloat(w)*math.Sqrt(float64(root.radicand)),
				ok:    surdIsRoot(a, bb, c, u, new(big.Rat).Mul(ri(int64(sign)), w), root.radicand),
			}
			b.add(problem.OpSubstitute, fmt.Sprintf("Check %s = %s", v, r.text),
				fmt.Sprintf("%s ≈ %s", r.text, approx(r.value)), "0", "The irrational parts cancel exactly.")
		}
		verified = verified && r.ok && numericRootsHold(p, v, r.value)
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].value < roots[j].value })

	texts := make([]string, len(roots))
	for i, r := range roots {
		texts[i] = r.text
	}
	b.add(problem.OpCompute, "Write both roots",
		"", fmt.Sprintf("%s1 = %s, %s2 = %s", v, texts[0], v, texts[1]), "")
	return b.solution(strings.Join(texts, ", "), verified)
}

// solveQuadraticNumeric handles discriminants too large for exact surds.
func solveQuadraticNumeric(b *builder, p problem.Problem, v string, poly expr, a, bb, disc *big.Rat) problem.Solution {
	fa, fb, sd := ratFloat(a), ratFloat(bb), math.Sqrt(ratFloat(disc))
	r1 := (-fb - sd) / (2 * fa)
	r2 := (-fb + sd) / (2 * fa)
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	b.add(problem.OpApplyFormula, "Apply the quadratic formula", v+" = (-b ± sqrt(D)) / (2a)",
		fmt.Sprintf("%s ≈ %s, %s ≈ %s", v, approx(r1), v, approx(r2)), "")
	ok := near(poly.evalFloat(r1), 0) && near(poly.evalFloat(r2), 0)
	return b.solution(approx(r1)+", "+approx(r2), ok && numericRootsHold(p, v, r1) && numericRootsHold(p, v, r2))
}

// surdIsRoot checks a·r^2 + b·r + c = 0 exactly for r = u + w·sqrt(m):
// both the rational part a(u^2 + w^2·m) + b·u + c and the irrational part
// 2a·u·w + b·w must vanish.
func surdIsRoot(a, b, c, u, w *big.Rat, m int64) bool {
	mr := ri(m)
	rational := new(big.Rat).Mul(u, u)
	rational.Add(rational, new(big.Rat).Mul(new(big.Rat).Mul(w, w), mr))
	rational.Mul(rational, a)
	rational.Add(rational, new(big.Rat).Mul(b, u))
	rational.Add(rational, c)

	irrational := new(big.Rat).Mul(ri(2), new(big.Rat).Mul(a, new(big.Rat).Mul(u, w)))
	irrational.Add(irrational, new(big.Rat).Mul(b, w))
	return rational.Sign() == 0 && irrational.Sign() == 0
}

func numericRootsHold(p problem.Problem, v string, x float64) bool {
	ok, err := checkEquation(p.Expression, v, x)
	return err != nil || ok
}

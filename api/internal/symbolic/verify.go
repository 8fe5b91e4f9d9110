package symbolic

import (
	"fmt"
	"math"
	"strings"

	"github.com/Knetic/govaluate"
)

// Answers are re-checked by evaluating the expression as the user wrote it
// with govaluate, independently of the algebra that produced them.

func unary(f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("non-numeric argument %v", args[0])
		}
		return f(x), nil
	}
}

var evalFunctions = map[string]govaluate.ExpressionFunction{
	"sin":  unary(math.Sin),
	"cos":  unary(math.Cos),
	"tan":  unary(math.Tan),
	"exp":  unary(math.Exp),
	"ln":   unary(math.Log),
	"log":  unary(math.Log10),
	"sqrt": unary(math.Sqrt),
	"abs":  unary(math.Abs),
}

type evaluator struct {
	src string
	ge  *govaluate.EvaluableExpression
}

func newEvaluator(s string) (*evaluator, error) {
	src, err := toGovaluate(s)
	if err != nil {
		return nil, err
	}
	ge, err := govaluate.NewEvaluableExpressionWithFunctions(src, evalFunctions)
	if err != nil {
		return nil, fmt.Errorf("govaluate %q: %w", src, err)
	}
	return &evaluator{src: src, ge: ge}, nil
}

// at evaluates with params bound; pi and e are always available.
func (ev *evaluator) at(params map[string]float64) (float64, error) {
	args := map[string]interface{}{"pi": math.Pi, "e": math.E}
	for k, v := range params {
		args[k] = v
	}
	res, err := ev.ge.Evaluate(args)
	if err != nil {
		return 0, err
	}
	f, ok := res.(float64)
	if !ok {
		return 0, fmt.Errorf("govaluate %q: non-numeric result %v", ev.src, res)
	}
	return f, nil
}

func (ev *evaluator) atVar(v string, x float64) (float64, error) {
	return ev.at(map[string]float64{v: x})
}

// toGovaluate rewrites math as typed ("2x^2 - sin x") into govaluate syntax
// ("2*x**2 - sin(x)"): explicit products, ** for powers, and (0-1)* for a
// unary minus so it binds looser than the power.
func toGovaluate(s string) (string, error) {
	toks, err := tokenize(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var prev token
	for i := 0; i < len(toks) && toks[i].kind != tokEOF; i++ {
		t := toks[i]
		if endsOperand(prev) && startsOperand(t) {
			b.WriteString("*")
		}
		switch {
		case t.kind == tokOp && t.text == "^":
			b.WriteString("**")
			if toks[i+1].kind == tokOp && toks[i+1].text == "-" && toks[i+2].kind == tokNum {
				b.WriteString("(0-" + toks[i+2].text + ")")
				i += 2
				prev = toks[i]
				continue
			}
		case t.kind == tokOp && t.text == "-" && !endsOperand(prev):
			b.WriteString("(0-1)*")
			prev = token{kind: tokOp, text: "*"}
			continue
		case t.kind == tokIdent && isFunction(t.text) && !(toks[i+1].kind == tokOp && toks[i+1].text == "("):
			// sin x -> sin(x)
			if toks[i+1].kind == tokEOF {
				return "", fmt.Errorf("%w: %s without argument", errSyntax, t.text)
			}
			b.WriteString(t.text + "(" + toks[i+1].text + ")")
			i++
			prev = token{kind: tokOp, text: ")"}
			continue
		default:
			b.WriteString(t.text)
		}
		prev = t
	}
	return b.String(), nil
}

func isFunction(name string) bool {
	_, ok := evalFunctions[name]
	return ok
}

func endsOperand(t token) bool {
	switch t.kind {
	case tokNum:
		return true
	case tokIdent:
		return !isFunction(t.text)
	case tokOp:
		return t.text == ")"
	}
	return false
}

func startsOperand(t token) bool {
	switch t.kind {
	case tokNum, tokIdent:
		return true
	case tokOp:
		return t.text == "("
	}
	return false
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// checkEquation substitutes x into both sides of "lhs = rhs". ok is only
// meaningful when err is nil.
func checkEquation(equation, v string, x float64) (ok bool, err error) {
	lhs, rhs, err := splitEquation(equation)
	if err != nil {
		return false, err
	}
	l, err := newEvaluator(lhs)
	if err != nil {
		return false, err
	}
	r, err := newEvaluator(rhs)
	if err != nil {
		return false, err
	}
	lv, err := l.atVar(v, x)
	if err != nil {
		return false, err
	}
	rv, err := r.atVar(v, x)
	if err != nil {
		return false, err
	}
	return near(lv, rv), nil
}

func splitEquation(s string) (lhs, rhs string, err error) {
	parts := strings.Split(s, "=")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("%w: expected exactly one '=' in %q", errSyntax, s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

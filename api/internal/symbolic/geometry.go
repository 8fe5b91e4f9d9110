package symbolic

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"mathcast/api/internal/problem"
)

var reNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// quantity is a rational, a rational multiple of π, or a surd.
type quantity struct {
	coef *big.Rat
	pi   bool
	root *radical
}

func (q quantity) float() float64 {
	switch {
	case q.root != nil:
		return q.root.float()
	case q.pi:
		return ratFloat(q.coef) * math.Pi
	}
	return ratFloat(q.coef)
}

func (q quantity) String() string {
	switch {
	case q.root != nil:
		return q.root.exact()
	case q.pi:
		return piMultiple(q.coef) + " ≈ " + approx(q.float())
	}
	return ratString(q.coef)
}

type shape struct {
	name    string
	match   [][]string // every group needs one keyword present
	params  []string
	symbol  string
	formula string // as shown in the step
	check   string // govaluate form of the same formula
	compute func(m map[string]*big.Rat) quantity // zero quantity when out of range
}

func rats(xs ...*big.Rat) *big.Rat {
	out := ri(1)
	for _, x := range xs {
		out = new(big.Rat).Mul(out, x)
	}
	return out
}

func frac(a, b int64) *big.Rat { return big.NewRat(a, b) }

// shapes are ordered narrowest first; the first full match wins.
var shapes = []shape{
	{
		name: "right triangle", match: [][]string{{"hypotenuse"}},
		params: []string{"a", "b"}, symbol: "c",
		formula: "c = sqrt(a^2 + b^2)", check: "sqrt(a**2 + b**2)",
		compute: func(m map[string]*big.Rat) quantity {
			sq := new(big.Rat).Add(rats(m["a"], m["a"]), rats(m["b"], m["b"]))
			r, ok := sqrtRat(sq)
			if !ok {
				return quantity{}
			}
			return quantity{root: &r}
		},
	},
	{
		name: "cylinder volume", match: [][]string{{"cylinder"}, {"volume"}},
		params: []string{"r", "h"}, symbol: "V",
		formula: "V = πr^2h", check: "pi * r**2 * h",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(m["r"], m["r"], m["h"]), pi: true}
		},
	},
	{
		name: "cylinder surface area", match: [][]string{{"cylinder"}, {"surface", "area"}},
		params: []string{"r", "h"}, symbol: "A",
		formula: "A = 2πr(r + h)", check: "2 * pi * r * (r + h)",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(ri(2), m["r"], new(big.Rat).Add(m["r"], m["h"])), pi: true}
		},
	},
	{
		name: "sphere volume", match: [][]string{{"sphere", "ball"}, {"volume"}},
		params: []string{"r"}, symbol: "V",
		formula: "V = 4/3·πr^3", check: "4 / 3 * pi * r**3",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(frac(4, 3), m["r"], m["r"], m["r"]), pi: true}
		},
	},
	{
		name: "sphere surface area", match: [][]string{{"sphere", "ball"}, {"surface", "area"}},
		params: []string{"r"}, symbol: "A",
		formula: "A = 4πr^2", check: "4 * pi * r**2",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(ri(4), m["r"], m["r"]), pi: true}
		},
	},
	{
		name: "cube volume", match: [][]string{{"cube"}, {"volume"}},
		params: []string{"s"}, symbol: "V",
		formula: "V = s^3", check: "s**3",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(m["s"], m["s"], m["s"])}
		},
	},
	{
		name: "cube surface area", match: [][]string{{"cube"}, {"surface", "area"}},
		params: []string{"s"}, symbol: "A",
		formula: "A = 6s^2", check: "6 * s**2",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(ri(6), m["s"], m["s"])}
		},
	},
	{
		name: "circle circumference", match: [][]string{{"circle"}, {"circumference", "perimeter"}},
		params: []string{"r"}, symbol: "C",
		formula: "C = 2πr", check: "2 * pi * r",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(ri(2), m["r"]), pi: true}
		},
	},
	{
		name: "circle area", match: [][]string{{"circle"}, {"area"}},
		params: []string{"r"}, symbol: "A",
		formula: "A = πr^2", check: "pi * r**2",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(m["r"], m["r"]), pi: true}
		},
	},
	{
		name: "rectangle perimeter", match: [][]string{{"rectangle"}, {"perimeter"}},
		params: []string{"l", "w"}, symbol: "P",
		formula: "P = 2(l + w)", check: "2 * (l + w)",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(ri(2), new(big.Rat).Add(m["l"], m["w"]))}
		},
	},
	{
		name: "rectangle area", match: [][]string{{"rectangle"}, {"area"}},
		params: []string{"l", "w"}, symbol: "A",
		formula: "A = l·w", check: "l * w",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(m["l"], m["w"])}
		},
	},
	{
		name: "square perimeter", match: [][]string{{"square"}, {"perimeter"}},
		params: []string{"s"}, symbol: "P",
		formula: "P = 4s", check: "4 * s",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(ri(4), m["s"])}
		},
	},
	{
		name: "square area", match: [][]string{{"square"}, {"area"}},
		params: []string{"s"}, symbol: "A",
		formula: "A = s^2", check: "s**2",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(m["s"], m["s"])}
		},
	},
	{
		name: "triangle area", match: [][]string{{"triangle"}, {"area"}},
		params: []string{"b", "h"}, symbol: "A",
		formula: "A = 1/2·b·h", check: "b * h / 2",
		compute: func(m map[string]*big.Rat) quantity {
			return quantity{coef: rats(frac(1, 2), m["b"], m["h"])}
		},
	},
}

// paramNames maps a formula symbol to the words that introduce it in text.
var paramNames = map[string][]string{
	"r": {"radius", "r"},
	"h": {"height", "h"},
	"s": {"side length", "side", "edge", "s"},
	"l": {"length", "l"},
	"w": {"width", "w"},
	"b": {"base", "b"},
	"a": {},
}

var paramPatterns = func() map[string]*regexp.Regexp {
	out := map[string]*regexp.Regexp{}
	for p, words := range paramNames {
		if len(words) == 0 {
			continue
		}
		out[p] = regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)\s*(?:=|:|is|of)?\s*(\d+(?:\.\d+)?)`)
	}
	return out
}()

var reDiameter = regexp.MustCompile(`\b(?:diameter|d)\s*(?:=|:|is|of)?\s*(\d+(?:\.\d+)?)`)

func matchesShape(s shape, words map[string]bool) bool {
	for _, group := range s.match {
		found := false
		for _, kw := range group {
			if words[kw] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func wordSet(text string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !isLetter(r) }) {
		out[w] = true
	}
	return out
}

func parseRat(s string) *big.Rat {
	r, _ := new(big.Rat).SetString(s)
	return r
}

// measurements binds each parameter to a labelled number, then hands the
// remaining numbers out in order.
func measurements(s shape, text string, b *builder) (map[string]*big.Rat, error) {
	m := map[string]*big.Rat{}
	used := map[int]bool{}
	for _, p := range s.params {
		re, ok := paramPatterns[p]
		if !ok {
			continue
		}
		if loc := re.FindStringSubmatchIndex(text); loc != nil {
			m[p] = parseRat(text[loc[2]:loc[3]])
			used[loc[2]] = true
		}
	}
	if _, ok := m["r"]; !ok && contains(s.params, "r") {
		if loc := reDiameter.FindStringSubmatchIndex(text); loc != nil {
			d := parseRat(text[loc[2]:loc[3]])
			m["r"] = new(big.Rat).Quo(d, ri(2))
			used[loc[2]] = true
			b.add(problem.OpDivide, "Halve the diameter to get the radius",
				"d = "+ratString(d), "r = "+ratString(m["r"]), "The radius is half the diameter.")
		}
	}

	var free []*big.Rat
	for _, loc := range reNumber.FindAllStringIndex(text, -1) {
		if !used[loc[0]] {
			free = append(free, parseRat(text[loc[0]:loc[1]]))
		}
	}
	for _, p := range s.params {
		if _, ok := m[p]; ok {
			continue
		}
		if len(free) == 0 {
			return nil, fmt.Errorf("%w: %s needs %s", errUnsupported, s.name, p)
		}
		m[p], free = free[0], free[1:]
	}
	for p, v := range m {
		if v.Sign() <= 0 {
			return nil, fmt.Errorf("%w: %s must be positive", errUnsupported, p)
		}
	}
	return m, nil
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

func solveGeometry(p problem.Problem) (problem.Solution, error) {
	text := strings.ToLower(problem.Clean(p.RawText))
	words := wordSet(text)
	for _, s := range shapes {
		if !matchesShape(s, words) {
			continue
		}
		b := &builder{}
		b.add(problem.OpIdentify, "Identify the shape: "+s.name, "", s.name, "")
		m, err := measurements(s, text, b)
		if err != nil {
			return problem.Solution{}, err
		}
		given := make([]string, len(s.params))
		filled := s.formula
		for i, name := range s.params {
			given[i] = name + " = " + ratString(m[name])
		}
		b.add(problem.OpRestate, "Write down the given measurements", "", strings.Join(given, ", "), "")
		for _, name := range s.params {
			filled = substituteSymbol(filled, name, "("+ratString(m[name])+")")
		}
		b.add(problem.OpApplyFormula, "Apply the "+s.name+" formula", s.formula, filled, "")

		q := s.compute(m)
		if q.coef == nil && q.root == nil {
			return problem.Solution{}, fmt.Errorf("%w: %s out of range", errUnsupported, s.symbol)
		}
		b.add(problem.OpCompute, "Compute "+s.symbol, filled, s.symbol+" = "+q.String(), "")
		return b.solution(q.String(), geometryHolds(s, m, q)), nil
	}
	return problem.Solution{}, fmt.Errorf("%w: no formula matches", errUnsupported)
}

// substituteSymbol replaces a one-letter symbol in a formula, leaving the
// symbol on the left of "=" alone.
func substituteSymbol(formula, name, value string) string {
	head, body, ok := strings.Cut(formula, "=")
	if !ok {
		return formula
	}
	var out strings.Builder
	rs := []rune(body)
	for i, r := range rs {
		isSym := string(r) == name &&
			(i == 0 || !isLetter(rs[i-1])) &&
			(i+1 == len(rs) || !isLetter(rs[i+1]))
		if isSym {
			out.WriteString(value)
			continue
		}
		out.WriteRune(r)
	}
	return head + "=" + out.String()
}

func isLetter(r rune) bool { return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' }

func geometryHolds(s shape, m map[string]*big.Rat, q quantity) bool {
	ev, err := newEvaluator(s.check)
	if err != nil {
		return false
	}
	params := map[string]float64{}
	for k, v := range m {
		params[k] = ratFloat(v)
	}
	got, err := ev.at(params)
	if err != nil {
		return false
	}
	return near(got, q.float())
}

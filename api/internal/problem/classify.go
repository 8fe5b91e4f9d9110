package problem

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	reZeroWidth = regexp.MustCompile("[\u200b\u200c\u200d\u2060\ufeff]")
	reSpaces    = regexp.MustCompile(`\s+`)
	reTimesX    = regexp.MustCompile(`(\d)\s+[xX]\s+(\d)`)
	reUpperX    = regexp.MustCompile(`(^|[^A-Za-z])X([^A-Za-z]|$)`)
	reToken     = regexp.MustCompile(`[A-Za-z]+|\d+(?:\.\d+)?|\s+|.`)

	reDerivative = regexp.MustCompile(`\b(derivative|differentiate|differentiation)\b|d/d[a-z]|[a-z]'\(`)
	reIntegral   = regexp.MustCompile(`\b(integral|integrate|integration|antiderivative)\b|∫`)
	reTrigCall   = regexp.MustCompile(`(?:^|[^a-z])(sin|cos|tan|cot|sec|csc)(\^\s*\d+)?\s*(\(|\d)|(?:^|[^a-z])(sin|cos|tan|cot|sec|csc)\s+[a-z]\b`)
	reSquared    = regexp.MustCompile(`[a-z]\^2([^0-9.]|$)`)
	reHighPower  = regexp.MustCompile(`\^([3-9]|\d\d)`)
	reGeometry   = regexp.MustCompile(`\b(area|perimeter|volume|circumference|radius|diameter|triangle|circle|rectangle|hypotenuse|cube|sphere|cylinder|polygon)\b`)
	reSquare     = regexp.MustCompile(`\bsquare\b`)
	reTrigWord   = regexp.MustCompile(`\b(angle|angles|degrees|radians|trigonometric)\b`)
	reStatistics = regexp.MustCompile(`\b(mean|median|mode|average|variance|standard deviation|range)\b`)
)

var symbolReplacer = strings.NewReplacer(
	"×", "*", "·", "*", "∗", "*", "⋅", "*",
	"÷", "/", "∕", "/",
	"−", "-", "–", "-", "—", "-",
	"²", "^2", "³", "^3",
	"π", "pi", "√", "sqrt",
	"**", "^",
	"≤", "<=", "≥", ">=",
)

// functionNames are letter runs that name functions or constants rather than
// variables.
var functionNames = map[string]bool{
	"sin": true, "cos": true, "tan": true, "cot": true, "sec": true, "csc": true,
	"exp": true, "ln": true, "log": true, "sqrt": true, "pi": true, "abs": true,
}

type rule struct {
	typ   Type
	match func(text, expr string) bool
}

// rules are ordered from most to least specific; the first match wins.
var rules = []rule{
	{Derivative, func(t, _ string) bool { return reDerivative.MatchString(t) }},
	{Integral, func(t, _ string) bool { return reIntegral.MatchString(t) }},
	{Trigonometry, func(t, _ string) bool { return reTrigCall.MatchString(t) }},
	{QuadraticEquation, func(t, e string) bool {
		if strings.Contains(t, "quadratic") {
			return true
		}
		return strings.Contains(e, "=") && reSquared.MatchString(e) && !reHighPower.MatchString(e)
	}},
	{LinearEquation, func(t, e string) bool {
		return strings.Contains(e, "=") && !strings.Contains(e, "^") && len(variables(e)) > 0
	}},
	{Geometry, func(t, _ string) bool {
		return reGeometry.MatchString(t) || (reSquare.MatchString(t) && !strings.Contains(t, "square root"))
	}},
	{Trigonometry, func(t, _ string) bool { return reTrigWord.MatchString(t) }},
	{Statistics, func(t, _ string) bool { return reStatistics.MatchString(t) }},
}

// expressionTypes use the extracted math expression rather than the full text.
var expressionTypes = map[Type]bool{
	LinearEquation:    true,
	QuadraticEquation: true,
	Derivative:        true,
	Integral:          true,
}

// Classify cleans OCR text and assigns it a type, a normalized expression
// and the set of variables it mentions. It never fails: text that matches no
// rule is General.
func Classify(raw string) Problem {
	clean := Clean(raw)
	lower := strings.ToLower(clean)
	expr := compact(extractExpression(clean))

	typ := General
	for _, r := range rules {
		if r.match(lower, strings.ToLower(expr)) {
			typ = r.typ
			break
		}
	}

	p := Problem{RawText: raw, Type: typ, Expression: clean}
	if expressionTypes[typ] || (typ == Trigonometry && reTrigCall.MatchString(strings.ToLower(expr))) {
		if expr != "" {
			p.Expression = expr
		}
	}
	p.Variables = variables(p.Expression)
	return p
}

// Clean applies the OCR cleanup: unicode math symbols to ASCII, the spaced
// letter x between numbers to multiplication, and whitespace collapsing.
func Clean(raw string) string {
	s := reZeroWidth.ReplaceAllString(raw, "")
	s = symbolReplacer.Replace(s)
	for i := 0; i < 3 && reTimesX.MatchString(s); i++ {
		s = reTimesX.ReplaceAllString(s, "${1}*${2}")
	}
	for i := 0; i < 3 && reUpperX.MatchString(s); i++ {
		s = reUpperX.ReplaceAllString(s, "${1}x${2}")
	}
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// extractExpression takes the text after the last colon when there is one,
// otherwise the longest run of math tokens.
func extractExpression(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 && strings.TrimSpace(s[i+1:]) != "" {
		s = s[i+1:]
	}
	toks := reToken.FindAllString(s, -1)

	bestStart, bestEnd, bestCount := 0, 0, 0
	start, count := -1, 0
	flush := func(end int) {
		if start >= 0 && count > bestCount {
			bestStart, bestEnd, bestCount = start, end, count
		}
		start, count = -1, 0
	}
	for i, tok := range toks {
		switch {
		case strings.TrimSpace(tok) == "":
			continue
		case isMathToken(tok):
			if start < 0 {
				start = i
			}
			count++
		default:
			flush(i)
		}
	}
	flush(len(toks))
	if bestCount == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(toks[bestStart:bestEnd], ""))
}

func isMathToken(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	switch {
	case unicode.IsDigit(r):
		return true
	case unicode.IsLetter(r):
		return len(tok) == 1 || functionNames[strings.ToLower(tok)]
	}
	return strings.ContainsAny(tok, "+-*/^=()[]<>'°")
}

// compact drops whitespace except where it separates two letters.
func compact(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		if unicode.IsSpace(r) {
			if i > 0 && i+1 < len(rs) && unicode.IsLetter(rs[i-1]) && unicode.IsLetter(rs[i+1]) {
				b.WriteRune(' ')
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// variables returns the sorted single-letter symbols of s that sit next to a
// digit or an operator, or stand alone.
func variables(s string) []string {
	seen := map[string]bool{}
	rs := []rune(s)
	for i := 0; i < len(rs); {
		if !unicode.IsLetter(rs[i]) {
			i++
			continue
		}
		j := i
		for j < len(rs) && unicode.IsLetter(rs[j]) {
			j++
		}
		word := string(rs[i:j])
		if j-i == 1 && !functionNames[word] && touchesMath(rs, i, j) && word != "e" {
			seen[strings.ToLower(word)] = true
		}
		i = j
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func touchesMath(rs []rune, i, j int) bool {
	var prev, next rune
	k := i - 1
	for k >= 0 && rs[k] == ' ' {
		k--
	}
	if k >= 0 {
		prev = rs[k]
	}
	k = j
	for k < len(rs) && rs[k] == ' ' {
		k++
	}
	if k < len(rs) {
		next = rs[k]
	}
	if isMathNeighbour(prev) || isMathNeighbour(next) {
		return true
	}
	// a lone letter counts at the edge only when no word is glued to it
	return (prev == 0 || next == 0) && !unicode.IsLetter(prev) && !unicode.IsLetter(next)
}

func isMathNeighbour(r rune) bool {
	return unicode.IsDigit(r) || strings.ContainsRune("+-*/^=()[]<>", r)
}

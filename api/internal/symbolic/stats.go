package symbolic

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"mathcast/api/internal/problem"
)

type measure struct {
	name     string
	keywords []string
}

// measures appear in answers in this order.
var measures = []measure{
	{"mean", []string{"mean", "average"}},
	{"median", []string{"median"}},
	{"mode", []string{"mode"}},
	{"range", []string{"range"}},
	{"variance", []string{"variance"}},
	{"standard deviation", []string{"standard deviation", "std"}},
}

// dataset reads the numbers after the last colon, or from the whole text
// when that part has none.
func dataset(raw string) []*big.Rat {
	text := problem.Clean(raw)
	if i := strings.LastIndex(text, ":"); i >= 0 && reNumber.MatchString(text[i+1:]) {
		text = text[i+1:]
	}
	var out []*big.Rat
	for _, s := range reNumber.FindAllString(text, -1) {
		if r := parseRat(s); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func joinRats(xs []*big.Rat) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = ratString(x)
	}
	return strings.Join(parts, ", ")
}

func solveStatistics(p problem.Problem) (problem.Solution, error) {
	lower := strings.ToLower(problem.Clean(p.RawText))
	data := dataset(p.RawText)
	if len(data) == 0 {
		return problem.Solution{}, fmt.Errorf("%w: no data values", errUnsupported)
	}
	words := wordSet(lower)
	var wanted []string
	for _, m := range measures {
		for _, kw := range m.keywords {
			if words[kw] || (strings.Contains(kw, " ") && strings.Contains(lower, kw)) {
				wanted = append(wanted, m.name)
				break
			}
		}
	}
	if len(wanted) == 0 {
		wanted = []string{"mean"}
	}
	sample := words["sample"]
	n := int64(len(data))

	b := &builder{}
	b.add(problem.OpRestate, "List the data", "", fmt.Sprintf("%s (n = %d)", joinRats(data), n), "")
	sorted := append([]*big.Rat(nil), data...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })
	if needsSort(wanted) {
		b.add(problem.OpRearrange, "Sort the data", joinRats(data), joinRats(sorted), "")
	}

	sum := new(big.Rat)
	for _, x := range data {
		sum.Add(sum, x)
	}
	mean := new(big.Rat).Quo(sum, ri(n))
	meanShown := false
	showMean := func() {
		if meanShown {
			return
		}
		meanShown = true
		parts := make([]string, len(data))
		for i, x := range data {
			parts[i] = ratString(x)
		}
		b.add(problem.OpCompute, "Add the values and divide by the count",
			fmt.Sprintf("(%s) / %d", strings.Join(parts, " + "), n), "mean = "+ratString(mean), "")
	}

	var variance *big.Rat
	computeVariance := func() (*big.Rat, error) {
		if variance != nil {
			return variance, nil
		}
		denom := n
		if sample {
			denom = n - 1
		}
		if denom < 1 {
			return nil, fmt.Errorf("%w: sample variance needs two values", errUnsupported)
		}
		showMean()
		ss := new(big.Rat)
		for _, x := range data {
			d := new(big.Rat).Sub(x, mean)
			ss.Add(ss, d.Mul(d, d))
		}
		b.add(problem.OpCompute, "Sum the squared deviations from the mean",
			fmt.Sprintf("Σ(x - %s)^2", ratString(mean)), ratString(ss), "")
		variance = new(big.Rat).Quo(ss, ri(denom))
		hint := "Population variance divides by n."
		if sample {
			hint = "Sample variance divides by n - 1."
		}
		b.add(problem.OpDivide, fmt.Sprintf("Divide by %d", denom), ratString(ss)+" / "+fmt.Sprint(denom),
			"variance = "+ratString(variance), hint)
		return variance, nil
	}

	results := make([]string, 0, len(wanted))
	floats := map[string]float64{}
	for _, name := range wanted {
		var value string
		switch name {
		case "mean":
			showMean()
			value = ratString(mean)
			floats[name] = ratFloat(mean)
		case "median":
			med := median(sorted)
			desc := "Take the middle value"
			if n%2 == 0 {
				desc = "Average the two middle values"
			}
			b.add(problem.OpCompute, desc, joinRats(sorted), "median = "+ratString(med), "")
			value = ratString(med)
			floats[name] = ratFloat(med)
		case "mode":
			value = modes(sorted)
			b.add(problem.OpCompute, "Find the most frequent value", joinRats(sorted), "mode = "+value, "")
		case "range":
			r := new(big.Rat).Sub(sorted[n-1], sorted[0])
			b.add(problem.OpCompute, "Subtract the smallest value from the largest",
				ratString(sorted[n-1])+" - "+ratString(sorted[0]), "range = "+ratString(r), "")
			value = ratString(r)
			floats[name] = ratFloat(r)
		case "variance":
			v, err := computeVariance()
			if err != nil {
				return problem.Solution{}, err
			}
			value = ratString(v)
			floats[name] = ratFloat(v)
		case "standard deviation":
			v, err := computeVariance()
			if err != nil {
				return problem.Solution{}, err
			}
			root, ok := sqrtRat(v)
			if ok {
				value = root.exact()
				floats[name] = root.float()
			} else {
				floats[name] = math.Sqrt(ratFloat(v))
				value = approx(floats[name])
			}
			b.add(problem.OpCompute, "Take the square root of the variance",
				"sqrt("+ratString(v)+")", "standard deviation = "+value, "")
		}
		results = append(results, name+" = "+value)
	}

	answer := strings.Join(results, "; ")
	if len(results) == 1 {
		answer = strings.TrimPrefix(results[0], wanted[0]+" = ")
	}
	return b.solution(answer, statsHold(data, sample, floats)), nil
}

func needsSort(wanted []string) bool {
	for _, w := range wanted {
		if w == "median" || w == "mode" || w == "range" {
			return true
		}
	}
	return false
}

func median(sorted []*big.Rat) *big.Rat {
	n := len(sorted)
	if n%2 == 1 {
		return new(big.Rat).Set(sorted[n/2])
	}
	s := new(big.Rat).Add(sorted[n/2-1], sorted[n/2])
	return s.Quo(s, ri(2))
}

func modes(sorted []*big.Rat) string {
	best, run := 0, 0
	var out []*big.Rat
	for i := range sorted {
		if i > 0 && sorted[i].Cmp(sorted[i-1]) == 0 {
			run++
		} else {
			run = 1
		}
		switch {
		case run > best:
			best, out = run, []*big.Rat{sorted[i]}
		case run == best:
			out = append(out, sorted[i])
		}
	}
	if best == 1 {
		return "no mode"
	}
	return joinRats(out)
}

// statsHold recomputes the numeric measures in floating point.
func statsHold(data []*big.Rat, sample bool, got map[string]float64) bool {
	xs := make([]float64, len(data))
	for i, x := range data {
		xs[i] = ratFloat(x)
	}
	sort.Float64s(xs)
	n := float64(len(xs))
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / n
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	denom := n
	if sample {
		denom = n - 1
	}
	var med float64
	if len(xs)%2 == 1 {
		med = xs[len(xs)/2]
	} else {
		med = (xs[len(xs)/2-1] + xs[len(xs)/2]) / 2
	}
	want := map[string]float64{
		"mean":               mean,
		"median":             med,
		"range":              xs[len(xs)-1] - xs[0],
		"variance":           ss / denom,
		"standard deviation": math.Sqrt(ss / denom),
	}
	for k, v := range got {
		if !near(v, want[k]) {
			return false
		}
	}
	return true
}

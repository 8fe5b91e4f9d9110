package symbolic

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

func ri(n int64) *big.Rat { return new(big.Rat).SetInt64(n) }

func ratString(x *big.Rat) string { return x.RatString() }

func ratFloat(x *big.Rat) float64 {
	f, _ := x.Float64()
	return f
}

func isOne(x *big.Rat) bool    { return x.Cmp(ri(1)) == 0 }
func isMinusOne(x *big.Rat) bool { return x.Cmp(ri(-1)) == 0 }

// approx renders f with four significant digits.
func approx(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if f == 0 {
		return "0"
	}
	a := math.Abs(f)
	if a >= 1e4 && a < 1e15 {
		scale := math.Pow(10, math.Floor(math.Log10(a))-3)
		return strconv.FormatFloat(math.Round(f/scale)*scale, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'g', 4, 64)
}

// radical is coef·sqrt(radicand) with a square-free radicand.
type radical struct {
	coef     *big.Rat
	radicand int64
}

// sqrtRat returns the exact square root of a non-negative rational when the
// radicand fits in an int64.
func sqrtRat(x *big.Rat) (radical, bool) {
	if x.Sign() < 0 {
		return radical{}, false
	}
	if x.Sign() == 0 {
		return radical{coef: new(big.Rat), radicand: 1}, true
	}
	// sqrt(p/q) = sqrt(p*q)/q
	n := new(big.Int).Mul(x.Num(), x.Denom())
	if !n.IsInt64() {
		return radical{}, false
	}
	outside, inside := squareFactor(n.Int64())
	coef := new(big.Rat).SetFrac(big.NewInt(outside), new(big.Int).Set(x.Denom()))
	return radical{coef: coef, radicand: inside}, true
}

// squareFactor splits n into outside^2 * inside. Factors above 10^6 are left
// inside.
func squareFactor(n int64) (outside, inside int64) {
	outside = 1
	for f := int64(2); f*f <= n && f <= 1_000_000; f++ {
		for n%(f*f) == 0 {
			n /= f * f
			outside *= f
		}
	}
	return outside, n
}

func (r radical) rational() bool { return r.radicand == 1 || r.coef.Sign() == 0 }

func (r radical) float() float64 {
	return ratFloat(r.coef) * math.Sqrt(float64(r.radicand))
}

func (r radical) equal(o radical) bool {
	if r.coef.Sign() == 0 || o.coef.Sign() == 0 {
		return r.coef.Sign() == o.coef.Sign()
	}
	return r.radicand == o.radicand && r.coef.Cmp(o.coef) == 0
}

func (r radical) String() string {
	if r.rational() {
		return ratString(r.coef)
	}
	return scaled(r.coef, fmt.Sprintf("sqrt(%d)", r.radicand))
}

// exact reports the value, with a four-digit approximation when irrational.
func (r radical) exact() string {
	if r.rational() {
		return r.String()
	}
	return r.String() + " ≈ " + approx(r.float())
}

// scaled writes c·body as "body", "-body", "3body" or "3body/4".
func scaled(c *big.Rat, body string) string {
	s := ""
	if c.Sign() < 0 {
		s = "-"
	}
	num := new(big.Int).Abs(c.Num())
	if num.Cmp(big.NewInt(1)) != 0 {
		s += num.String()
	}
	s += body
	if !c.IsInt() {
		s += "/" + c.Denom().String()
	}
	return s
}

// surdRoot formats u + sign·v·sqrt(m) over a common denominator, e.g.
// "(5 - sqrt(13))/2".
func surdRoot(u, v *big.Rat, m int64, sign int) string {
	w := lcm(u.Denom(), v.Denom())
	wr := new(big.Rat).SetInt(w)
	U := new(big.Rat).Mul(u, wr)
	V := new(big.Rat).Abs(new(big.Rat).Mul(v, wr))

	root := fmt.Sprintf("sqrt(%d)", m)
	if !isOne(V) {
		root = V.RatString() + root
	}
	var body string
	switch {
	case U.Sign() == 0 && sign < 0:
		body = "-" + root
	case U.Sign() == 0:
		body = root
	case sign < 0:
		body = U.RatString() + " - " + root
	default:
		body = U.RatString() + " + " + root
	}
	if w.Cmp(big.NewInt(1)) == 0 {
		return body
	}
	if U.Sign() == 0 {
		return body + "/" + w.String()
	}
	return "(" + body + ")/" + w.String()
}

func lcm(a, b *big.Int) *big.Int {
	g := new(big.Int).GCD(nil, nil, a, b)
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, g)
}

// piMultiple formats c·π exactly.
func piMultiple(c *big.Rat) string {
	if c.Sign() == 0 {
		return "0"
	}
	return scaled(c, "π")
}

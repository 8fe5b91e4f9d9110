package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExprFormat(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2(x+3)", "2x + 6"},
		{"x/2 + 3x/4", "5x/4"},
		{"(x+1)^2", "x^2 + 2x + 1"},
		{"-x^2 + 4", "-x^2 + 4"},
		{"3sin(2x) - cos x", "3sin(2x) - cos(x)"},
		{"x^-1", "x^(-1)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := parseExpr(tt.in, "x")
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.format("x"))
		})
	}
}

func TestParseExprRejects(t *testing.T) {
	for _, in := range []string{"x/(x+1)", "sin(x^2)", "2^x", "x +", "y + 1", "x # 2"} {
		_, err := parseExpr(in, "x")
		assert.Error(t, err, in)
	}
}

func TestToGovaluate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2x^2 - sin x", "2*x**2-sin(x)"},
		{"-x^2", "(0-1)*x**2"},
		{"x^-1", "x**(0-1)"},
		{"3(x+1)", "3*(x+1)"},
	}
	for _, tt := range tests {
		got, err := toGovaluate(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestCheckEquation(t *testing.T) {
	ok, err := checkEquation("2x+5=13", "x", 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checkEquation("2x+5=13", "x", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = checkEquation("2x+5", "x", 4)
	assert.Error(t, err)
}

func TestApprox(t *testing.T) {
	assert.Equal(t, "78.54", approx(78.539816))
	assert.Equal(t, "12350", approx(12345.6))
	assert.Equal(t, "0", approx(0))
}

func TestSurdRoot(t *testing.T) {
	assert.Equal(t, "(5 - sqrt(13))/2", surdRoot(frac(5, 2), frac(1, 2), 13, -1))
	assert.Equal(t, "sqrt(2)", surdRoot(ri(0), ri(1), 2, 1))
}

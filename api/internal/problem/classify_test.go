package problem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		typ  Type
		expr string
		vars []string
	}{
		{"linear with instruction", "Solve for x: 2x + 5 = 13", LinearEquation, "2x+5=13", []string{"x"}},
		{"linear uppercase variable", "2X + 3 = 7", LinearEquation, "2x+3=7", []string{"x"}},
		{"linear trailing words", "Solve 4y - 2 = 10 for y", LinearEquation, "4y-2=10", []string{"y"}},
		{"quadratic", "x^2 - 5x + 6 = 0", QuadraticEquation, "x^2-5x+6=0", []string{"x"}},
		{"quadratic unicode", "x² − 5x + 6 = 0", QuadraticEquation, "x^2-5x+6=0", []string{"x"}},
		{"quadratic keyword", "Solve the quadratic equation: x^2 + 2x + 1 = 0", QuadraticEquation, "x^2+2x+1=0", []string{"x"}},
		{"derivative", "Find the derivative of 3x^2 + 2x - 5", Derivative, "3x^2+2x-5", []string{"x"}},
		{"derivative d/dx", "d/dx (x^3 + sin(x))", Derivative, "(x^3+sin(x))", []string{"x"}},
		{"integral", "Integrate x^2 from 0 to 3", Integral, "x^2", []string{"x"}},
		{"trig call", "sin(30)", Trigonometry, "sin(30)", nil},
		{"trig with coefficient", "Solve 2sin(x) - 1 = 0", Trigonometry, "2sin(x)-1=0", []string{"x"}},
		{"trig spaced coefficient", "Solve 2 sin(x) = 1", Trigonometry, "2sin(x)=1", []string{"x"}},
		{"cosine with coefficient", "3cos(x) = 0", Trigonometry, "3cos(x)=0", []string{"x"}},
		{"trig with degree sign", "Evaluate sin(30°)", Trigonometry, "sin(30°)", nil},
		{"geometry", "Find the area of a circle with radius 5", Geometry, "Find the area of a circle with radius 5", nil},
		{"statistics", "Find the mean of 2, 4, 4, 6", Statistics, "Find the mean of 2, 4, 4, 6", nil},
		{"garbled", "##@@ ???", General, "##@@ ???", nil},
		{"square root is not geometry", "What is the square root of 16?", General, "What is the square root of 16?", nil},
		{"cost is not cosine", "The cost of 3 apples is 5", General, "The cost of 3 apples is 5", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Classify(tt.raw)
			assert.Equal(t, tt.raw, p.RawText)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.expr, p.Expression)
			if tt.vars == nil {
				assert.Empty(t, p.Variables)
			} else {
				assert.Equal(t, tt.vars, p.Variables)
			}
		})
	}
}

func TestClassifyNeverEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "??", "hello world", "=", "1+1"} {
		p := Classify(raw)
		require.NotEmpty(t, p.Type, "raw %q", raw)
	}
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"6 ÷ 2 × 3":          "6 / 2 * 3",
		"  a\n\tb  ":         "a b",
		"√16 + π":            "sqrt16 + pi",
		"3 x 4":              "3*4",
		"2 x 3 x 4":          "2*3*4",
		"5 – 2 — 1":          "5 - 2 - 1",
		"x**2":               "x^2",
		"a\u200b+\ufeffb":    "a+b",
		"Solve for X: 2X=4":  "Solve for x: 2x=4",
	}
	for in, want := range tests {
		assert.Equal(t, want, Clean(in), "input %q", in)
	}
}

func TestSolutionValidate(t *testing.T) {
	assert.ErrorIs(t, Solution{Provider: LocalSymbolic}.Validate(), ErrNoSteps)
	assert.ErrorIs(t, Solution{Steps: []Step{{Description: "x"}}}.Validate(), ErrNoProvider)
	assert.Error(t, Solution{Steps: []Step{{}}, Provider: PrimaryAI}.Validate())

	be := BestEffort(Classify("##@@ ???"))
	require.NoError(t, be.Validate())
	assert.Len(t, be.Steps, 1)
	assert.Equal(t, BestEffortStep, be.Steps[0].Description)
	assert.False(t, be.Verified)
	assert.Equal(t, LocalSymbolic, be.Provider)
}

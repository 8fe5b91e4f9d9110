package symbolic

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcast/api/internal/problem"
)

func solve(t *testing.T, raw string) problem.Solution {
	t.Helper()
	sol := New().SolveLocally(problem.Classify(raw))
	require.NoError(t, sol.Validate())
	assert.Equal(t, problem.LocalSymbolic, sol.Provider)
	return sol
}

func descriptions(sol problem.Solution) []string {
	out := make([]string, len(sol.Steps))
	for i, st := range sol.Steps {
		out[i] = st.Description
	}
	return out
}

func hasStep(sol problem.Solution, substr string) bool {
	for _, d := range descriptions(sol) {
		if strings.Contains(d, substr) {
			return true
		}
	}
	return false
}

func TestLinearEquation(t *testing.T) {
	sol := solve(t, "Solve for x: 2x + 5 = 13")
	assert.Equal(t, "4", sol.FinalAnswer)
	assert.True(t, sol.Verified)
	assert.True(t, hasStep(sol, "Subtract 5"), descriptions(sol))
	assert.True(t, hasStep(sol, "Divide both sides by 2"), descriptions(sol))
}

func TestLinearEquationVariablesOnBothSides(t *testing.T) {
	sol := solve(t, "3x - 7 = 2x + 1")
	assert.Equal(t, "8", sol.FinalAnswer)
	assert.True(t, sol.Verified)
	assert.True(t, hasStep(sol, "Subtract 2x from both sides"), descriptions(sol))
	assert.True(t, hasStep(sol, "Add 7 to both sides"), descriptions(sol))
}

func TestLinearEquationDegenerate(t *testing.T) {
	sol := solve(t, "x + 1 = x + 2")
	assert.Equal(t, "no solution", sol.FinalAnswer)
	assert.False(t, sol.Verified)

	sol = solve(t, "2(x + 1) = 2x + 2")
	assert.Equal(t, "all real numbers", sol.FinalAnswer)
}

func TestQuadraticEquation(t *testing.T) {
	sol := solve(t, "x^2 - 5x + 6 = 0")
	assert.Equal(t, "2, 3", sol.FinalAnswer)
	assert.True(t, sol.Verified)

	var disc *problem.Step
	for i := range sol.Steps {
		if sol.Steps[i].Operation == problem.OpDiscriminant {
			disc = &sol.Steps[i]
		}
	}
	require.NotNil(t, disc)
	assert.Equal(t, "D = 1", disc.After)
}

func TestQuadraticEquationSurd(t *testing.T) {
	sol := solve(t, "x^2 - 5x + 3 = 0")
	assert.Equal(t, "(5 - sqrt(13))/2, (5 + sqrt(13))/2", sol.FinalAnswer)
	assert.True(t, sol.Verified)
}

func TestQuadraticEquationNoRealRoots(t *testing.T) {
	sol := solve(t, "x^2 + 1 = 0")
	assert.Equal(t, "no real solutions", sol.FinalAnswer)
	assert.False(t, sol.Verified)
}

func TestDerivative(t *testing.T) {
	tests := []struct {
		raw    string
		answer string
	}{
		{"Find the derivative of 3x^2 + 2x - 5", "6x + 2"},
		{"d/dx (x^3 + sin(x))", "3x^2 + cos(x)"},
		{"Differentiate e^(2x)", "2e^(2x)"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sol := solve(t, tt.raw)
			assert.Equal(t, tt.answer, sol.FinalAnswer)
			assert.True(t, sol.Verified)
			assert.True(t, hasStep(sol, "Apply the"), descriptions(sol))
		})
	}
}

func TestIntegral(t *testing.T) {
	sol := solve(t, "Integrate 3x^2 + 2x")
	assert.Equal(t, "x^3 + x^2 + C", sol.FinalAnswer)
	assert.True(t, sol.Verified)

	sol = solve(t, "Integrate x^2 from 0 to 3")
	assert.Equal(t, "9", sol.FinalAnswer)
	assert.True(t, sol.Verified)
}

func TestGeometry(t *testing.T) {
	tests := []struct {
		raw    string
		answer string
	}{
		{"Find the area of a circle with radius 5", "25π ≈ 78.54"},
		{"Find the circumference of a circle with diameter 10", "10π ≈ 31.42"},
		{"Find the area of a rectangle with length 8 and width 3", "24"},
		{"Find the hypotenuse of a right triangle with legs 3 and 4", "5"},
		{"Find the area of a triangle with base 6 and height 5", "15"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sol := solve(t, tt.raw)
			assert.Equal(t, tt.answer, sol.FinalAnswer)
			assert.True(t, sol.Verified)
		})
	}
}

func TestTrigonometry(t *testing.T) {
	tests := []struct {
		raw    string
		answer string
	}{
		{"sin(30)", "1/2"},
		{"cos(pi/3)", "1/2"},
		{"Simplify sin^2(x) + cos^2(x)", "1"},
		{"Solve 2sin(x) - 1 = 0", "30°, 150°"},
		{"Solve 2 sin(x) = 1", "30°, 150°"},
		{"3cos(x) = 0", "90°, 270°"},
		{"2sin(30) + 1", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sol := solve(t, tt.raw)
			assert.Equal(t, tt.answer, sol.FinalAnswer)
			assert.True(t, sol.Verified)
		})
	}
}

func TestTrigBareAngleShowsDegrees(t *testing.T) {
	sol := solve(t, "sin(1)")
	assert.Equal(t, "sin(1°) ≈ 0.01745", sol.FinalAnswer)
	assert.True(t, sol.Verified)
	require.NotEmpty(t, sol.Steps)
	assert.Equal(t, "sin(1°)", sol.Steps[0].After)
	assert.Contains(t, sol.Steps[0].Hint, "degrees")

	sol = solve(t, "sin(30°)")
	assert.Equal(t, "1/2", sol.FinalAnswer)
	assert.Equal(t, "sin(30°)", sol.Steps[0].After)
	assert.Empty(t, sol.Steps[0].Hint)
}

func TestStatistics(t *testing.T) {
	tests := []struct {
		raw    string
		answer string
	}{
		{"Find the mean of 2, 4, 4, 6", "4"},
		{"Find the mean and median of 1, 2, 3, 10", "mean = 4; median = 5/2"},
		{"Find the standard deviation of 2, 4, 4, 4, 5, 5, 7, 9", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sol := solve(t, tt.raw)
			assert.Equal(t, tt.answer, sol.FinalAnswer)
			assert.True(t, sol.Verified)
		})
	}
}

func TestBestEffort(t *testing.T) {
	for _, raw := range []string{"##@@ ???", "", "x^5 + x = 3", "Find the area of a circle"} {
		t.Run(raw, func(t *testing.T) {
			sol := solve(t, raw)
			require.Len(t, sol.Steps, 1)
			assert.Equal(t, problem.BestEffortStep, sol.Steps[0].Description)
			assert.False(t, sol.Verified)
		})
	}
}

func TestSolveNeverErrors(t *testing.T) {
	sol, err := New().Solve(context.Background(), problem.Problem{Type: problem.Derivative, Expression: "((("})
	require.NoError(t, err)
	assert.Equal(t, problem.BestEffortStep, sol.Steps[0].Description)
	assert.Equal(t, "local_symbolic", New().Name())
}

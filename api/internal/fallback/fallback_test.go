package fallback

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcast/api/internal/problem"
	"mathcast/api/internal/progress"
	"mathcast/api/internal/reasoning"
)

type fakeLink struct {
	id       problem.ProviderID
	outcome  reasoning.Outcome
	calls    int
	timeouts []time.Duration
}

func (f *fakeLink) ID() problem.ProviderID { return f.id }

func (f *fakeLink) Attempt(_ context.Context, _ problem.Problem, timeout time.Duration) (problem.Solution, reasoning.Attempt) {
	f.calls++
	f.timeouts = append(f.timeouts, timeout)
	att := reasoning.Attempt{Provider: f.id, Outcome: f.outcome}
	if f.outcome != reasoning.OutcomeSuccess {
		att.Detail = "simulated"
		return problem.Solution{}, att
	}
	return problem.Solution{
		Steps:       []problem.Step{{Description: "Answer from " + string(f.id), Operation: problem.OpCompute}},
		FinalAnswer: "4",
		Provider:    f.id,
		Verified:    true,
	}, att
}

var linear = problem.Classify("Solve for x: 2x + 5 = 13")

func TestPrimarySuccessStopsChain(t *testing.T) {
	primary := &fakeLink{id: problem.PrimaryAI, outcome: reasoning.OutcomeSuccess}
	secondary := &fakeLink{id: problem.SecondaryAI, outcome: reasoning.OutcomeSuccess}
	local := &fakeLink{id: problem.LocalSymbolic, outcome: reasoning.OutcomeSuccess}
	s := New(Config{Primary: primary, Secondary: secondary, Local: local})

	sol, attempts := s.SolveTraced(context.Background(), linear, nil)
	assert.Equal(t, problem.PrimaryAI, sol.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
	assert.Zero(t, local.calls)
	require.Len(t, attempts, 1)
	assert.Equal(t, []time.Duration{DefaultAITimeout}, primary.timeouts)
}

func TestBothAIFailuresFallToLocal(t *testing.T) {
	for _, o := range []reasoning.Outcome{reasoning.OutcomeTimeout, reasoning.OutcomeProviderError, reasoning.OutcomeRejected} {
		t.Run(string(o), func(t *testing.T) {
			primary := &fakeLink{id: problem.PrimaryAI, outcome: o}
			secondary := &fakeLink{id: problem.SecondaryAI, outcome: reasoning.OutcomeTimeout}
			rec := &progress.Recorder{}
			s := New(Config{Primary: primary, Secondary: secondary, PrimaryTimeout: time.Second, SecondaryTimeout: 2 * time.Second})

			sol, attempts := s.SolveTraced(context.Background(), linear, rec)
			assert.Equal(t, problem.LocalSymbolic, sol.Provider)
			assert.Equal(t, "4", sol.FinalAnswer)
			assert.True(t, sol.Verified)
			assert.NoError(t, sol.Validate())
			assert.Equal(t, 1, primary.calls)
			assert.Equal(t, 1, secondary.calls)
			assert.Equal(t, []time.Duration{time.Second}, primary.timeouts)
			assert.Equal(t, []time.Duration{2 * time.Second}, secondary.timeouts)

			require.Len(t, attempts, 3)
			assert.Equal(t, reasoning.OutcomeSuccess, attempts[2].Outcome)

			msgs := strings.Join(rec.Messages(), "\n")
			assert.Contains(t, msgs, "The primary AI")
			assert.Contains(t, msgs, "trying the secondary AI")
			assert.Contains(t, msgs, "trying the local solver")
		})
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	rec := &progress.Recorder{}
	s := New(Config{
		Primary:   &fakeLink{id: problem.PrimaryAI, outcome: reasoning.OutcomeTimeout},
		Secondary: &fakeLink{id: problem.SecondaryAI, outcome: reasoning.OutcomeProviderError},
	})
	s.Solve(context.Background(), linear, rec)

	evs := rec.Events()
	require.NotEmpty(t, evs)
	for i := 1; i < len(evs); i++ {
		assert.GreaterOrEqual(t, evs[i].Percent, evs[i-1].Percent)
	}
	assert.Equal(t, 100, evs[len(evs)-1].Percent)
}

func TestUnconfiguredLinksAreSkipped(t *testing.T) {
	secondary := &fakeLink{id: problem.SecondaryAI, outcome: reasoning.OutcomeSuccess}
	s := New(Config{Secondary: secondary})
	sol := s.Solve(context.Background(), linear, nil)
	assert.Equal(t, problem.SecondaryAI, sol.Provider)
	assert.Equal(t, 1, secondary.calls)

	sol, attempts := New(Config{}).SolveTraced(context.Background(), linear, nil)
	assert.Equal(t, problem.LocalSymbolic, sol.Provider)
	require.Len(t, attempts, 1)
}

func TestLocalLinkFailureStillReturnsSolution(t *testing.T) {
	local := &fakeLink{id: problem.LocalSymbolic, outcome: reasoning.OutcomeProviderError}
	s := New(Config{
		Primary: &fakeLink{id: problem.PrimaryAI, outcome: reasoning.OutcomeTimeout},
		Local:   local,
	})
	sol := s.Solve(context.Background(), problem.Classify("##@@ ???"), nil)
	require.Len(t, sol.Steps, 1)
	assert.Equal(t, problem.BestEffortStep, sol.Steps[0].Description)
	assert.Equal(t, problem.LocalSymbolic, sol.Provider)
	assert.False(t, sol.Verified)
	assert.Equal(t, []time.Duration{0}, local.timeouts)
}

func TestSolveAlwaysHasSteps(t *testing.T) {
	s := New(Config{Primary: &fakeLink{id: problem.PrimaryAI, outcome: reasoning.OutcomeRejected}})
	for _, raw := range []string{"", "##@@ ???", "x^2 - 5x + 6 = 0", "Find the mean of 1, 2, 3", "what is love"} {
		sol := s.Solve(context.Background(), problem.Classify(raw), nil)
		assert.NotEmpty(t, sol.Steps, raw)
		assert.NoError(t, sol.Validate(), raw)
	}
}

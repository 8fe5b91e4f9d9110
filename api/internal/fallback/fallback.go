// Package fallback runs a problem through the fixed provider chain
// primary AI, secondary AI, local solver and returns the first usable
// solution.
package fallback

import (
	"context"
	"fmt"
	"log"
	"time"

	"mathcast/api/internal/problem"
	"mathcast/api/internal/progress"
	"mathcast/api/internal/reasoning"
	"mathcast/api/internal/symbolic"
)

// DefaultAITimeout applies to an AI link configured with a zero timeout.
const DefaultAITimeout = 30 * time.Second

type Config struct {
	Primary          reasoning.Attempter
	Secondary        reasoning.Attempter
	Local            reasoning.Attempter
	PrimaryTimeout   time.Duration
	SecondaryTimeout time.Duration
	// LocalTimeout of zero leaves the local solver unbounded.
	LocalTimeout time.Duration
}

type link struct {
	id       problem.ProviderID
	attempt  reasoning.Attempter
	timeout  time.Duration
	position int
}

type Solver struct {
	links []link
}

// New fixes the chain order. A nil AI link is kept in place but skipped at
// solve time; a nil Local link gets the built-in symbolic solver.
func New(cfg Config) *Solver {
	if cfg.Local == nil {
		cfg.Local = reasoning.NewProvider(problem.LocalSymbolic, symbolic.New())
	}
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = DefaultAITimeout
	}
	if cfg.SecondaryTimeout <= 0 {
		cfg.SecondaryTimeout = DefaultAITimeout
	}
	return &Solver{links: []link{
		{id: problem.PrimaryAI, attempt: cfg.Primary, timeout: cfg.PrimaryTimeout, position: 0},
		{id: problem.SecondaryAI, attempt: cfg.Secondary, timeout: cfg.SecondaryTimeout, position: 40},
		{id: problem.LocalSymbolic, attempt: cfg.Local, timeout: cfg.LocalTimeout, position: 80},
	}}
}

// Solve never fails: when every link gives up it returns the best-effort
// solution.
func (s *Solver) Solve(ctx context.Context, p problem.Problem, sink progress.Sink) problem.Solution {
	sol, _ := s.SolveTraced(ctx, p, sink)
	return sol
}

// SolveTraced is Solve plus the record of every attempt made, in order.
func (s *Solver) SolveTraced(ctx context.Context, p problem.Problem, sink progress.Sink) (problem.Solution, []reasoning.Attempt) {
	if sink == nil {
		sink = progress.Discard
	}
	var attempts []reasoning.Attempt

	active := make([]link, 0, len(s.links))
	for _, l := range s.links {
		if l.attempt == nil {
			log.Printf("fallback: %s not configured, skipping", l.id)
			continue
		}
		active = append(active, l)
	}

	for i, l := range active {
		if i == 0 {
			sink.Report(l.position, fmt.Sprintf("Solving the %s with the %s", p.Type.Label(), l.id.Label()))
		}
		sol, att := l.attempt.Attempt(ctx, p, l.timeout)
		attempts = append(attempts, att)
		if att.Outcome == reasoning.OutcomeSuccess {
			log.Printf("fallback: solved by %s in %s", l.id, att.Elapsed.Round(time.Millisecond))
			sink.Report(100, "Solved by the "+l.id.Label())
			return sol, attempts
		}

		log.Printf("fallback: %s failed (%s): %s", l.id, att.Outcome, att.Detail)
		if i+1 < len(active) {
			next := active[i+1]
			sink.Report(next.position, fmt.Sprintf("The %s %s; trying the %s", l.id.Label(), describe(att.Outcome), next.id.Label()))
		}
	}

	log.Printf("fallback: no link produced a solution, returning best effort")
	sink.Report(100, "Showing a best-effort analysis")
	return problem.BestEffort(p), attempts
}

func describe(o reasoning.Outcome) string {
	switch o {
	case reasoning.OutcomeTimeout:
		return "timed out"
	case reasoning.OutcomeRejected:
		return "returned an unusable answer"
	default:
		return "is unavailable"
	}
}

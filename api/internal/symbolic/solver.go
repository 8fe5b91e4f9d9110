// Package symbolic is the local, deterministic solver. It works in exact
// rational arithmetic, records every transformation as a step and
// re-checks the answer numerically before marking it verified.
package symbolic

import (
	"context"
	"errors"
	"log"

	"mathcast/api/internal/problem"
)

// Solver never fails: anything it cannot work out becomes a best-effort
// solution.
type Solver struct {
	// Verbose logs why a problem fell back to best effort.
	Verbose bool
}

func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return string(problem.LocalSymbolic) }

// Solve satisfies the reasoning backend contract. The context is not
// consulted: local work is bounded by the size of the input.
func (s *Solver) Solve(_ context.Context, p problem.Problem) (problem.Solution, error) {
	return s.SolveLocally(p), nil
}

func (s *Solver) SolveLocally(p problem.Problem) (sol problem.Solution) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[symbolic] panic on %q: %v", p.Expression, r)
			sol = problem.BestEffort(p)
		}
	}()

	sol, err := dispatch(p)
	if err != nil {
		if s.Verbose || !errors.Is(err, errUnsupported) {
			log.Printf("[symbolic] %s %q: %v", p.Type, p.Expression, err)
		}
		return problem.BestEffort(p)
	}
	if err := sol.Validate(); err != nil {
		log.Printf("[symbolic] invalid solution for %q: %v", p.Expression, err)
		return problem.BestEffort(p)
	}
	return sol
}

func dispatch(p problem.Problem) (problem.Solution, error) {
	v := variable(p)
	switch p.Type {
	case problem.LinearEquation, problem.QuadraticEquation:
		return solveEquation(p, v)
	case problem.Derivative:
		return solveDerivative(p, v)
	case problem.Integral:
		return solveIntegral(p, v)
	case problem.Geometry:
		return solveGeometry(p)
	case problem.Trigonometry:
		return solveTrig(p, v)
	case problem.Statistics:
		return solveStatistics(p)
	}
	return problem.Solution{}, errUnsupported
}

// variable picks the symbol to solve for: the only one mentioned, else x.
func variable(p problem.Problem) string {
	if len(p.Variables) == 1 {
		return p.Variables[0]
	}
	return "x"
}

// Package reasoning defines the solving-provider contract shared by the
// AI backends and the local solver, and enforces it around every call.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"mathcast/api/internal/problem"
)

// ErrRejected marks a response that arrived but is unusable: malformed,
// empty, or explicitly "unsolvable". Backends wrap it.
var ErrRejected = errors.New("response rejected")

type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeRejected      Outcome = "rejected"
)

// Attempt is the diagnostic record of one provider call.
type Attempt struct {
	Provider problem.ProviderID `json:"provider"`
	Outcome  Outcome            `json:"outcome"`
	Elapsed  time.Duration      `json:"elapsed"`
	Detail   string             `json:"detail,omitempty"`
}

// Attempter is one link of the fallback chain.
type Attempter interface {
	ID() problem.ProviderID
	Attempt(ctx context.Context, p problem.Problem, timeout time.Duration) (problem.Solution, Attempt)
}

// Backend is what an engine implements; Provider turns it into an Attempter.
type Backend interface {
	Name() string
	Solve(ctx context.Context, p problem.Problem) (problem.Solution, error)
}

type Provider struct {
	id      problem.ProviderID
	backend Backend
	limiter *rate.Limiter
}

type Option func(*Provider)

// WithRateLimit paces calls to at most rps per second. Zero or negative
// disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Provider) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewProvider(id problem.ProviderID, b Backend, opts ...Option) *Provider {
	p := &Provider{id: id, backend: b}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) ID() problem.ProviderID { return p.id }

func (p *Provider) Backend() Backend { return p.backend }

type result struct {
	sol problem.Solution
	err error
}

// Attempt runs the backend under the timeout. The call happens on its own
// goroutine so a backend that ignores its context still cannot hold the
// caller past the deadline; a late result is dropped.
func (p *Provider) Attempt(ctx context.Context, pr problem.Problem, timeout time.Duration) (problem.Solution, Attempt) {
	start := time.Now()
	att := Attempt{Provider: p.id}
	finish := func(o Outcome, detail string) Attempt {
		att.Outcome = o
		att.Detail = detail
		att.Elapsed = time.Since(start)
		return att
	}

	cctx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(cctx); err != nil {
			return problem.Solution{}, finish(OutcomeTimeout, "rate limit wait: "+err.Error())
		}
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("reasoning: %s panicked: %v", p.id, r)
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		sol, err := p.backend.Solve(cctx, pr)
		done <- result{sol: sol, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return problem.Solution{}, finish(OutcomeTimeout, fmt.Sprintf("no answer within %s", timeout))
		}
		return problem.Solution{}, finish(OutcomeProviderError, cctx.Err().Error())
	}

	switch {
	case res.err == nil:
	case errors.Is(res.err, ErrRejected):
		return problem.Solution{}, finish(OutcomeRejected, res.err.Error())
	case errors.Is(res.err, context.DeadlineExceeded):
		return problem.Solution{}, finish(OutcomeTimeout, res.err.Error())
	default:
		return problem.Solution{}, finish(OutcomeProviderError, res.err.Error())
	}

	sol := res.sol
	sol.Provider = p.id
	if err := sol.Validate(); err != nil {
		return problem.Solution{}, finish(OutcomeRejected, err.Error())
	}
	return sol, finish(OutcomeSuccess, "")
}

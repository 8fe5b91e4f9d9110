package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"mathcast/api/internal/problem"
	"mathcast/api/internal/reasoning"
)

// redirect sends every request the SDK makes to the test server.
type redirect struct {
	target *url.URL
	next   http.RoundTripper
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = r.target.Scheme
	out.URL.Host = r.target.Host
	out.Host = r.target.Host
	return r.next.RoundTrip(out)
}

func streamBody(texts ...string) string {
	cands := []any{}
	for _, t := range texts {
		cands = append(cands, map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": t}}},
		})
	}
	b, _ := json.Marshal([]any{map[string]any{"candidates": cands}})
	return string(b)
}

const solved = `{"status":"solved","steps":[{"description":"Divide both sides by 2","operation":"divide","before":"2x = 8","after":"x = 4"}],"final_answer":"4","verified":true}`

// newEngine points an engine at a server that answers the n-th call
// (0-based) with replies[n].
func newEngine(t *testing.T, retries int, replies ...func(w http.ResponseWriter)) (*Engine, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:streamGenerateContent"), r.URL.Path)
		n := int(calls.Add(1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		replies[n](w)
	}))
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	e := New("k", "gemini-test", retries, nil)
	e.opts = []option.ClientOption{
		option.WithHTTPClient(&http.Client{Transport: redirect{target: target, next: http.DefaultTransport}}),
	}
	return e, &calls
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

var linear = problem.Classify("2x = 8")

func TestSolveRetriesTransportFailure(t *testing.T) {
	e, calls := newEngine(t, 1,
		reply(http.StatusInternalServerError, `{"error":{"code":500,"message":"backend hiccup"}}`),
		reply(http.StatusOK, streamBody(solved)),
	)
	sol, err := e.Solve(context.Background(), linear)
	require.NoError(t, err)
	assert.Equal(t, "4", sol.FinalAnswer)
	require.Len(t, sol.Steps, 1)
	assert.Equal(t, problem.OpDivide, sol.Steps[0].Operation)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSolveGivesUpAfterRetries(t *testing.T) {
	e, calls := newEngine(t, 1, reply(http.StatusInternalServerError, `{"error":{"code":500,"message":"down"}}`))
	_, err := e.Solve(context.Background(), linear)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reasoning.ErrRejected)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSolveEmptyCandidatesIsRejected(t *testing.T) {
	e, calls := newEngine(t, 2, reply(http.StatusOK, `[{"candidates":[]}]`))
	_, err := e.Solve(context.Background(), linear)
	assert.ErrorIs(t, err, reasoning.ErrRejected)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSolveBadJSONIsRejected(t *testing.T) {
	e, calls := newEngine(t, 2, reply(http.StatusOK, streamBody("the answer is four")))
	_, err := e.Solve(context.Background(), linear)
	assert.ErrorIs(t, err, reasoning.ErrRejected)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSolveStopsOnCancel(t *testing.T) {
	e, _ := newEngine(t, 3, func(w http.ResponseWriter) {
		time.Sleep(200 * time.Millisecond)
		reply(http.StatusOK, streamBody(solved))(w)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Solve(ctx, linear)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSolveNeedsKey(t *testing.T) {
	_, err := New(" ", "gemini-test", 0, nil).Solve(context.Background(), linear)
	assert.Error(t, err)
}

// Package handle is the HTTP surface: job submission, progress polling
// and solve history.
package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"mathcast/api/internal/pipeline"
	"mathcast/api/internal/store"
	"mathcast/api/internal/tracker"
)

// Submitter is the job service the handlers front.
type Submitter interface {
	Submit(sub pipeline.Submission) (string, error)
	Poll(id string) (tracker.Task, bool)
}

// TaskFinder looks up snapshots of tasks the in-memory tracker no longer
// holds.
type TaskFinder interface {
	FindTask(ctx context.Context, id string) (tracker.Task, error)
}

type History interface {
	Get(ctx context.Context, id string) (store.HistoryEntry, error)
	List(ctx context.Context, query string, limit int) ([]store.HistoryEntry, error)
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Tasks          TaskFinder
	History        History
	Ping           func(ctx context.Context) error
	MaxUploadBytes int64
	RateLimitEvery time.Duration
	RateLimitBurst int
}

type Handle struct {
	svc      Submitter
	tasks    TaskFinder
	history  History
	ping     func(ctx context.Context) error
	maxBytes int64

	every    time.Duration
	burst    int
	limMu    sync.Mutex
	limiters *sync.Map // ip -> *rate.Limiter
}

func New(svc Submitter, o Options) *Handle {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 16 << 20
	}
	if o.RateLimitEvery <= 0 {
		o.RateLimitEvery = 600 * time.Millisecond
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 20
	}
	return &Handle{
		svc:      svc,
		tasks:    o.Tasks,
		history:  o.History,
		ping:     o.Ping,
		maxBytes: o.MaxUploadBytes,
		every:    o.RateLimitEvery,
		burst:    o.RateLimitBurst,
		limiters: &sync.Map{},
	}
}

// Routes returns the full handler chain, middleware included.
func (h *Handle) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", withMethod(http.MethodGet, h.Health))
	mux.HandleFunc("/v1/problems", withMethod(http.MethodPost, h.withRateLimit(h.SubmitProblem)))
	mux.HandleFunc("/v1/progress/{id}", withMethod(http.MethodGet, h.Progress))
	mux.HandleFunc("/v1/history", withMethod(http.MethodGet, h.ListHistory))
	mux.HandleFunc("/v1/history/{id}", h.historyItem)
	return withRecovery(withLogging(mux))
}

func (h *Handle) historyItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetHistory(w, r)
	case http.MethodDelete:
		h.DeleteHistory(w, r)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method must be GET or DELETE")
	}
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]string{"status": "ok", "db": "disabled"}
	code := http.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			out["status"], out["db"] = "degraded", "down"
			code = http.StatusServiceUnavailable
		} else {
			out["db"] = "ok"
		}
	}
	writeJSON(w, code, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

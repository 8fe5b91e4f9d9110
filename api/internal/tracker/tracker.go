// Package tracker keeps the progress record of every submitted job.
//
// Each task has its own mutex; operations on different tasks never wait
// on each other. Terminal tasks (completed or failed) reject every later
// write.
package tracker

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mathcast/api/internal/problem"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Result is what a completed task hands back to the client.
type Result struct {
	Problem       problem.Problem  `json:"problem"`
	Solution      problem.Solution `json:"solution"`
	Artifact      problem.Artifact `json:"artifact"`
	OCRText       string           `json:"ocr_text,omitempty"`
	OCRConfidence float64          `json:"ocr_confidence,omitempty"`
}

type Task struct {
	ID        string    `json:"task_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persister receives a snapshot of every task that reaches a terminal
// state. It is called outside the task lock.
type Persister interface {
	SaveTask(ctx context.Context, t Task) error
}

type entry struct {
	mu   sync.Mutex
	task Task
}

type Tracker struct {
	tasks     sync.Map // id -> *entry
	persister Persister
	now       func() time.Time
}

type Option func(*Tracker)

func WithPersister(p Persister) Option {
	return func(t *Tracker) { t.persister = p }
}

func withClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Create registers a pending task and returns its id.
func (t *Tracker) Create() string {
	id := uuid.NewString()
	now := t.now()
	t.tasks.Store(id, &entry{task: Task{
		ID:        id,
		Status:    StatusPending,
		Message:   "Queued",
		CreatedAt: now,
		UpdatedAt: now,
	}})
	return id
}

func (t *Tracker) lookup(id string) (*entry, bool) {
	v, ok := t.tasks.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// Update moves a pending task to processing and records progress. The
// stored progress never decreases. It reports whether the write applied.
func (t *Tracker) Update(id string, progress int, message string) bool {
	e, ok := t.lookup(id)
	if !ok {
		log.Printf("tracker: update of unknown task %s", id)
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task.Status.Terminal() {
		log.Printf("tracker: update of %s task %s ignored", e.task.Status, id)
		return false
	}
	progress = clamp(progress)
	if progress < e.task.Progress {
		progress = e.task.Progress
	}
	e.task.Status = StatusProcessing
	e.task.Progress = progress
	e.task.Message = message
	e.task.UpdatedAt = t.now()
	return true
}

// Complete stores the result and closes the task at 100%.
func (t *Tracker) Complete(id string, r Result) bool {
	return t.finish(id, func(task *Task) {
		task.Status = StatusCompleted
		task.Progress = 100
		task.Message = "Done"
		task.Result = &r
	})
}

// Fail closes the task with an error message. Progress stays where it was.
// A blank message is stored as "unknown error".
func (t *Tracker) Fail(id string, errMsg string) bool {
	if strings.TrimSpace(errMsg) == "" {
		errMsg = "unknown error"
	}
	return t.finish(id, func(task *Task) {
		task.Status = StatusFailed
		task.Message = errMsg
		task.Error = errMsg
	})
}

func (t *Tracker) finish(id string, apply func(*Task)) bool {
	e, ok := t.lookup(id)
	if !ok {
		log.Printf("tracker: finish of unknown task %s", id)
		return false
	}
	e.mu.Lock()
	if e.task.Status.Terminal() {
		st := e.task.Status
		e.mu.Unlock()
		log.Printf("tracker: task %s already %s", id, st)
		return false
	}
	apply(&e.task)
	e.task.UpdatedAt = t.now()
	snap := e.task
	e.mu.Unlock()

	if t.persister != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.persister.SaveTask(ctx, snap); err != nil {
			log.Printf("tracker: persist %s: %v", id, err)
		}
	}
	return true
}

// Get returns a copy of the task.
func (t *Tracker) Get(id string) (Task, bool) {
	e, ok := t.lookup(id)
	if !ok {
		return Task{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task, true
}

// Purge drops terminal tasks last touched before olderThan ago and
// returns how many went.
func (t *Tracker) Purge(olderThan time.Duration) int {
	cutoff := t.now().Add(-olderThan)
	n := 0
	t.tasks.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		drop := e.task.Status.Terminal() && e.task.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if drop {
			t.tasks.Delete(k)
			n++
		}
		return true
	})
	return n
}

// RunJanitor purges every retention/2 until ctx is done. A zero retention
// disables it.
func (t *Tracker) RunJanitor(ctx context.Context, retention time.Duration) {
	if retention <= 0 {
		return
	}
	tick := time.NewTicker(retention / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := t.Purge(retention); n > 0 {
				log.Printf("tracker: purged %d tasks", n)
			}
		}
	}
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

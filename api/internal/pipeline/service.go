package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"mathcast/api/internal/tracker"
)

var (
	ErrEmptySubmission = errors.New("submission has neither image nor text")
	ErrTooLarge        = errors.New("image too large")
	ErrShuttingDown    = errors.New("service is shutting down")
)

// Service accepts jobs and answers polls. Each job runs once, on its own
// goroutine, under a shared cap on concurrent jobs. Jobs use the service
// context, not the caller's, so a client that stops polling does not stop
// its job.
type Service struct {
	tracker  *tracker.Tracker
	driver   *Driver
	sem      *semaphore.Weighted
	maxBytes int64

	ctx    context.Context
	cancel context.CancelFunc
	// mu orders closed and wg.Add against Shutdown.
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewService(d *Driver, maxWorkers int, maxImageBytes int64) *Service {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		tracker:  d.Tracker,
		driver:   d,
		sem:      semaphore.NewWeighted(int64(maxWorkers)),
		maxBytes: maxImageBytes,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit validates the job, registers a pending task and schedules it.
// The task stays pending until a worker slot frees up.
func (s *Service) Submit(sub Submission) (string, error) {
	if len(sub.Image) == 0 && strings.TrimSpace(sub.Text) == "" {
		return "", ErrEmptySubmission
	}
	if s.maxBytes > 0 && int64(len(sub.Image)) > s.maxBytes {
		return "", ErrTooLarge
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrShuttingDown
	}
	id := s.tracker.Create()
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.tracker.Fail(id, "internal error: "+ErrShuttingDown.Error())
			return
		}
		defer s.sem.Release(1)
		s.driver.Run(s.ctx, id, sub)
	}()
	log.Printf("pipeline: task %s submitted", id)
	return id, nil
}

func (s *Service) Poll(id string) (tracker.Task, bool) {
	return s.tracker.Get(id)
}

// Shutdown stops accepting jobs and waits for the running ones. If ctx
// ends first the remaining jobs are cancelled and ctx's error returned.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcast/api/internal/fallback"
	"mathcast/api/internal/ocr"
	"mathcast/api/internal/problem"
	"mathcast/api/internal/progress"
	"mathcast/api/internal/reasoning"
	"mathcast/api/internal/render"
	"mathcast/api/internal/store"
	"mathcast/api/internal/tracker"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Name() string { return "fake" }
func (f *fakeOCR) ExtractText(context.Context, []byte) (ocr.Text, error) {
	f.calls++
	if f.err != nil {
		return ocr.Text{}, f.err
	}
	return ocr.Text{Content: f.text, Confidence: 0.9, Engine: "fake"}, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	err     error
	calls   int
	release chan struct{}
}

func (f *fakeRenderer) Render(ctx context.Context, p problem.Problem, sol problem.Solution) (problem.Artifact, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return problem.Artifact{}, f.err
	}
	return problem.Artifact{URI: "https://cdn.example/" + string(p.Type) + ".mp4", Frames: 405}, nil
}

type fakeHistory struct {
	mu    sync.Mutex
	saved []store.HistoryEntry
}

func (f *fakeHistory) Save(_ context.Context, e store.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, e)
	return nil
}

type solverFunc func(ctx context.Context, p problem.Problem, sink progress.Sink) (problem.Solution, []reasoning.Attempt)

func (f solverFunc) SolveTraced(ctx context.Context, p problem.Problem, sink progress.Sink) (problem.Solution, []reasoning.Attempt) {
	return f(ctx, p, sink)
}

func newDriver(o ocr.Extractor, r render.Renderer) *Driver {
	return &Driver{
		Tracker:  tracker.New(),
		OCR:      o,
		Solver:   fallback.New(fallback.Config{}),
		Renderer: r,
	}
}

func TestRunRoundTrip(t *testing.T) {
	hist := &fakeHistory{}
	d := newDriver(&fakeOCR{text: "Solve for x: 2x + 5 = 13"}, &fakeRenderer{})
	d.History = hist
	id := d.Tracker.Create()

	d.Run(context.Background(), id, Submission{Image: []byte{0xFF, 0xD8, 1}})

	task, ok := d.Tracker.Get(id)
	require.True(t, ok)
	require.Equal(t, tracker.StatusCompleted, task.Status, task.Error)
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.Result)
	assert.Equal(t, problem.LinearEquation, task.Result.Problem.Type)
	assert.Equal(t, "2x+5=13", task.Result.Problem.Expression)
	assert.Equal(t, "4", task.Result.Solution.FinalAnswer)
	assert.Equal(t, problem.LocalSymbolic, task.Result.Solution.Provider)
	assert.True(t, task.Result.Solution.Verified)
	assert.Equal(t, "https://cdn.example/linear_equation.mp4", task.Result.Artifact.URI)
	assert.InDelta(t, 0.9, task.Result.OCRConfidence, 1e-9)

	require.Len(t, hist.saved, 1)
	assert.Equal(t, id, hist.saved[0].ID)
	assert.Len(t, hist.saved[0].ImageHash, 64)
}

func TestRunSkipsOCRForText(t *testing.T) {
	o := &fakeOCR{err: errors.New("should not be called")}
	d := newDriver(o, &fakeRenderer{})
	id := d.Tracker.Create()
	d.Run(context.Background(), id, Submission{Text: "x^2 - 5x + 6 = 0"})

	task, _ := d.Tracker.Get(id)
	require.Equal(t, tracker.StatusCompleted, task.Status, task.Error)
	assert.Equal(t, "2, 3", task.Result.Solution.FinalAnswer)
	assert.Zero(t, o.calls)
}

func TestRunUsesSubmissionEngine(t *testing.T) {
	def := &fakeOCR{err: errors.New("default engine used")}
	chosen := &fakeOCR{text: "2x = 8"}
	d := newDriver(def, &fakeRenderer{})
	id := d.Tracker.Create()
	d.Run(context.Background(), id, Submission{Image: []byte{1}, OCR: chosen})

	task, _ := d.Tracker.Get(id)
	require.Equal(t, tracker.StatusCompleted, task.Status, task.Error)
	assert.Equal(t, 1, chosen.calls)
	assert.Zero(t, def.calls)
}

func TestRunMapsSolverProgress(t *testing.T) {
	d := newDriver(&fakeOCR{text: "2x = 8"}, &fakeRenderer{})
	id := d.Tracker.Create()
	var seen []int
	d.Solver = solverFunc(func(_ context.Context, p problem.Problem, sink progress.Sink) (problem.Solution, []reasoning.Attempt) {
		for _, pct := range []int{0, 50, 100} {
			sink.Report(pct, "solving")
			task, _ := d.Tracker.Get(id)
			seen = append(seen, task.Progress)
		}
		return problem.BestEffort(p), nil
	})
	d.Run(context.Background(), id, Submission{Image: []byte{1}})

	assert.Equal(t, []int{25, 52, 80}, seen)
	task, _ := d.Tracker.Get(id)
	assert.Equal(t, tracker.StatusCompleted, task.Status)
}

func TestRunFailures(t *testing.T) {
	t.Run("ocr", func(t *testing.T) {
		r := &fakeRenderer{}
		d := newDriver(&fakeOCR{err: errors.New("blurry")}, r)
		id := d.Tracker.Create()
		d.Run(context.Background(), id, Submission{Image: []byte{1}})
		task, _ := d.Tracker.Get(id)
		assert.Equal(t, tracker.StatusFailed, task.Status)
		assert.Equal(t, "could not read image text: blurry", task.Error)
		assert.Nil(t, task.Result)
		assert.Zero(t, r.calls)
	})
	t.Run("blank ocr", func(t *testing.T) {
		d := newDriver(&fakeOCR{text: "  "}, &fakeRenderer{})
		id := d.Tracker.Create()
		d.Run(context.Background(), id, Submission{Image: []byte{1}})
		task, _ := d.Tracker.Get(id)
		assert.Contains(t, task.Error, "could not read image text")
	})
	t.Run("render", func(t *testing.T) {
		d := newDriver(&fakeOCR{text: "2x = 8"}, &fakeRenderer{err: errors.New("render service 500: ffmpeg")})
		id := d.Tracker.Create()
		d.Run(context.Background(), id, Submission{Image: []byte{1}})
		task, _ := d.Tracker.Get(id)
		assert.Equal(t, tracker.StatusFailed, task.Status)
		assert.Equal(t, "video rendering failed: render service 500: ffmpeg", task.Error)
		assert.Equal(t, 80, task.Progress)
	})
	t.Run("panic", func(t *testing.T) {
		d := newDriver(&fakeOCR{text: "2x = 8"}, &fakeRenderer{})
		d.Solver = solverFunc(func(context.Context, problem.Problem, progress.Sink) (problem.Solution, []reasoning.Attempt) {
			panic("boom")
		})
		id := d.Tracker.Create()
		d.Run(context.Background(), id, Submission{Image: []byte{1}})
		task, _ := d.Tracker.Get(id)
		assert.Equal(t, tracker.StatusFailed, task.Status)
		assert.Equal(t, "internal error: boom", task.Error)
	})
}

func TestServiceSubmitValidation(t *testing.T) {
	s := NewService(newDriver(&fakeOCR{}, &fakeRenderer{}), 2, 10)
	_, err := s.Submit(Submission{})
	assert.ErrorIs(t, err, ErrEmptySubmission)
	_, err = s.Submit(Submission{Image: make([]byte, 11)})
	assert.ErrorIs(t, err, ErrTooLarge)
	_, ok := s.Poll("missing")
	assert.False(t, ok)
}

func TestServiceRunsJobsWithinWorkerCap(t *testing.T) {
	r := &fakeRenderer{release: make(chan struct{})}
	s := NewService(newDriver(&fakeOCR{text: "2x + 5 = 13"}, r), 1, 0)

	first, err := s.Submit(Submission{Image: []byte{1}})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, _ := s.Poll(first)
		return task.Progress == 80
	}, 2*time.Second, 5*time.Millisecond)

	second, err := s.Submit(Submission{Text: "3x - 7 = 2x + 1"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	task, _ := s.Poll(second)
	assert.Equal(t, tracker.StatusPending, task.Status)

	close(r.release)
	for _, id := range []string{first, second} {
		require.Eventually(t, func() bool {
			task, _ := s.Poll(id)
			return task.Status == tracker.StatusCompleted
		}, 2*time.Second, 5*time.Millisecond)
	}
	task, _ = s.Poll(second)
	assert.Equal(t, "8", task.Result.Solution.FinalAnswer)

	require.NoError(t, s.Shutdown(context.Background()))
	_, err = s.Submit(Submission{Text: "2x = 4"})
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestServiceShutdownWaits(t *testing.T) {
	r := &fakeRenderer{release: make(chan struct{})}
	s := NewService(newDriver(&fakeOCR{text: "2x = 8"}, r), 4, 0)
	id, err := s.Submit(Submission{Image: []byte{1}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)

	close(r.release)
	require.Eventually(t, func() bool {
		task, _ := s.Poll(id)
		return task.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServiceShutdownRacingSubmits(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := NewService(newDriver(&fakeOCR{}, &fakeRenderer{}), 2, 0)

		var (
			mu       sync.Mutex
			accepted []string
			wg       sync.WaitGroup
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 5; j++ {
					id, err := s.Submit(Submission{Text: "2x = 4"})
					if err != nil {
						assert.ErrorIs(t, err, ErrShuttingDown)
						return
					}
					mu.Lock()
					accepted = append(accepted, id)
					mu.Unlock()
				}
			}()
		}
		require.NoError(t, s.Shutdown(context.Background()))
		wg.Wait()

		// every job accepted before Shutdown returned has finished
		mu.Lock()
		for _, id := range accepted {
			task, ok := s.Poll(id)
			require.True(t, ok)
			assert.True(t, task.Status.Terminal(), "task %s is %s", id, task.Status)
		}
		mu.Unlock()
	}
}

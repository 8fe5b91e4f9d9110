// Package pipeline runs a submitted job through OCR, classification,
// solving and rendering, and exposes the submit/poll surface.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mathcast/api/internal/ocr"
	"mathcast/api/internal/problem"
	"mathcast/api/internal/progress"
	"mathcast/api/internal/reasoning"
	"mathcast/api/internal/render"
	"mathcast/api/internal/store"
	"mathcast/api/internal/tracker"
	"mathcast/api/internal/util"
)

// Submission is one uploaded job. Text, when set, skips OCR. OCR, when
// set, replaces the driver's engine for this job only.
type Submission struct {
	Image    []byte
	Text     string
	Filename string
	OCR      ocr.Extractor
}

type Solver interface {
	SolveTraced(ctx context.Context, p problem.Problem, sink progress.Sink) (problem.Solution, []reasoning.Attempt)
}

type HistorySaver interface {
	Save(ctx context.Context, e store.HistoryEntry) error
}

// Driver owns no state of its own; every field is a collaborator.
type Driver struct {
	Tracker  *tracker.Tracker
	OCR      ocr.Extractor
	Solver   Solver
	Renderer render.Renderer
	History  HistorySaver
}

func (d *Driver) sink(taskID string) progress.Sink {
	return progress.SinkFunc(func(p int, msg string) { d.Tracker.Update(taskID, p, msg) })
}

// Run executes the job and leaves the task completed or failed. Nothing is
// retried here.
func (d *Driver) Run(ctx context.Context, taskID string, sub Submission) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: task %s panicked: %v", taskID, r)
			d.Tracker.Fail(taskID, fmt.Sprintf("internal error: %v", r))
		}
	}()
	start := time.Now()
	report := d.sink(taskID)

	text := ocr.Text{Content: strings.TrimSpace(sub.Text), Confidence: 1, Engine: "input"}
	if text.Content == "" {
		report.Report(1, "Reading the image")
		t, err := d.extract(ctx, sub.OCR, sub.Image)
		if err != nil {
			log.Printf("pipeline: task %s ocr: %v", taskID, err)
			d.Tracker.Fail(taskID, "could not read image text: "+err.Error())
			return
		}
		text = t
	}
	msg := "Text recognized"
	if adv := ocr.Advice(text); adv != "" {
		msg += ". " + adv
	}
	report.Report(10, msg)

	p := problem.Classify(text.Content)
	report.Report(25, "Problem type: "+p.Type.Label())

	sol, attempts := d.Solver.SolveTraced(ctx, p, progress.Scale(report, 25, 80))
	log.Printf("pipeline: task %s solved by %s after %d attempt(s)", taskID, sol.Provider, len(attempts))
	report.Report(80, "Rendering the video")

	art, err := d.render(ctx, p, sol)
	if err != nil {
		log.Printf("pipeline: task %s render: %v", taskID, err)
		d.Tracker.Fail(taskID, "video rendering failed: "+err.Error())
		return
	}

	res := tracker.Result{
		Problem:       p,
		Solution:      sol,
		Artifact:      art,
		OCRText:       text.Content,
		OCRConfidence: text.Confidence,
	}
	d.Tracker.Complete(taskID, res)
	log.Printf("pipeline: task %s done in %s", taskID, time.Since(start).Round(time.Millisecond))
	d.saveHistory(ctx, taskID, sub, res)
}

func (d *Driver) extract(ctx context.Context, eng ocr.Extractor, image []byte) (ocr.Text, error) {
	if len(image) == 0 {
		return ocr.Text{}, errors.New("empty image")
	}
	if eng == nil {
		eng = d.OCR
	}
	if eng == nil {
		return ocr.Text{}, errors.New("no OCR engine configured")
	}
	t, err := eng.ExtractText(ctx, image)
	if err != nil {
		return ocr.Text{}, err
	}
	if strings.TrimSpace(t.Content) == "" {
		return ocr.Text{}, ocr.ErrNoText
	}
	return t, nil
}

func (d *Driver) render(ctx context.Context, p problem.Problem, sol problem.Solution) (problem.Artifact, error) {
	if d.Renderer == nil {
		return problem.Artifact{}, errors.New("no renderer configured")
	}
	return d.Renderer.Render(ctx, p, sol)
}

func (d *Driver) saveHistory(ctx context.Context, taskID string, sub Submission, res tracker.Result) {
	if d.History == nil {
		return
	}
	e := store.HistoryEntry{
		ID:            taskID,
		ExtractedText: res.OCRText,
		Problem:       res.Problem,
		Solution:      res.Solution,
		Artifact:      res.Artifact,
	}
	if len(sub.Image) > 0 {
		e.ImageHash = util.SHA256Hex(sub.Image)
	}
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.History.Save(hctx, e); err != nil {
		log.Printf("pipeline: task %s history save: %v", taskID, err)
	}
}

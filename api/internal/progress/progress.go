// Package progress carries percentage updates from long-running stages to
// whoever tracks the job.
package progress

import "sync"

type Sink interface {
	Report(percent int, message string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(percent int, message string)

func (f SinkFunc) Report(percent int, message string) { f(percent, message) }

// Discard drops every report.
var Discard Sink = SinkFunc(func(int, string) {})

// Scale maps a stage's own 0..100 range onto [lo, hi] of the parent sink.
func Scale(parent Sink, lo, hi int) Sink {
	if parent == nil {
		return Discard
	}
	return SinkFunc(func(p int, msg string) {
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		parent.Report(lo+(hi-lo)*p/100, msg)
	})
}

type Event struct {
	Percent int
	Message string
}

// Recorder keeps every report. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(percent int, message string) {
	r.mu.Lock()
	r.events = append(r.events, Event{Percent: percent, Message: message})
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Messages() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Message
	}
	return out
}

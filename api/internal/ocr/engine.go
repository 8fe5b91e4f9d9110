// Package ocr turns an uploaded image into text for the classifier.
package ocr

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNoText is returned when an engine answered but found nothing to read.
var ErrNoText = errors.New("no text found in image")

// Text is what an engine read. Confidence is in [0,1] and advisory only.
type Text struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Engine     string  `json:"engine"`
}

type Extractor interface {
	Name() string
	ExtractText(ctx context.Context, image []byte) (Text, error)
}

// Manager holds a per-chat engine choice over a default.
type Manager struct {
	def     Extractor
	engines map[string]Extractor
	m       sync.Map // chatID -> Extractor
}

func NewManager(def Extractor, all ...Extractor) *Manager {
	mg := &Manager{def: def, engines: map[string]Extractor{}}
	if def != nil {
		mg.engines[def.Name()] = def
	}
	for _, e := range all {
		mg.engines[e.Name()] = e
	}
	return mg
}

func (m *Manager) Default() Extractor { return m.def }

func (m *Manager) Get(chatID int64) Extractor {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Extractor)
	}
	return m.def
}

// Set selects the engine called name for chatID and reports whether it
// exists.
func (m *Manager) Set(chatID int64, name string) bool {
	e, ok := m.engines[name]
	if !ok {
		return false
	}
	m.m.Store(chatID, e)
	return true
}

// Names lists the selectable engines.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.engines))
	for n := range m.engines {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

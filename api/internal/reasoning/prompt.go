package reasoning

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const defaultSystemPrompt = `You are a patient math tutor. Solve the problem given in INPUT_JSON step by step.
Rules:
- Each step is one short imperative sentence ("Subtract 5 from both sides").
- Put the expression before and after the step in "before" and "after".
- Tag each step with one operation from the schema.
- Keep exact values (fractions, sqrt, pi) in the final answer; add a 4-digit decimal after "≈" if useful.
- Set "verified" to true only if you substituted the answer back and it holds.
- If the text is not a solvable math problem, return status "unsolvable" and no steps.
Return STRICT JSON matching the schema below. No text outside JSON.`

// SystemPromptFile is looked up inside the prompt directory.
const SystemPromptFile = "solve.system.txt"

// PromptStore serves the system prompt. A file in the prompt directory
// overrides the built-in text and is re-read whenever it changes on disk.
type PromptStore struct {
	dir     string
	mu      sync.RWMutex
	system  string
	watcher *fsnotify.Watcher
}

// NewPromptStore loads the override from dir, if any, and starts watching
// it. An empty dir serves the built-in prompt only.
func NewPromptStore(dir string) *PromptStore {
	s := &PromptStore{dir: strings.TrimSpace(dir), system: defaultSystemPrompt}
	if s.dir == "" {
		return s
	}
	s.reload()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("prompt: watcher: %v", err)
		return s
	}
	if err := w.Add(s.dir); err != nil {
		log.Printf("prompt: watch %s: %v", s.dir, err)
		_ = w.Close()
		return s
	}
	s.watcher = w
	go s.watch()
	return s
}

func (s *PromptStore) watch() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != SystemPromptFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("prompt: watch error: %v", err)
		}
	}
}

func (s *PromptStore) reload() {
	text := defaultSystemPrompt
	b, err := os.ReadFile(filepath.Join(s.dir, SystemPromptFile))
	switch {
	case err == nil && len(strings.TrimSpace(string(b))) > 0:
		text = strings.TrimSpace(string(b))
		log.Printf("prompt: loaded %s (%d bytes)", SystemPromptFile, len(text))
	case err != nil && !os.IsNotExist(err):
		log.Printf("prompt: read %s: %v", SystemPromptFile, err)
	}
	s.mu.Lock()
	s.system = text
	s.mu.Unlock()
}

// System returns the current system prompt followed by the response
// schema. A nil store serves the built-in prompt.
func (s *PromptStore) System() string {
	text := defaultSystemPrompt
	if s != nil {
		s.mu.RLock()
		text = s.system
		s.mu.RUnlock()
	}
	return text + "\n\nresponse.schema.json:\n" + ResponseSchema()
}

func (s *PromptStore) Close() error {
	if s == nil || s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

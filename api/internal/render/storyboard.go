// Package render turns a solved problem into a video storyboard and hands
// it to whatever produces the video.
package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mathcast/api/internal/problem"
)

type Renderer interface {
	Render(ctx context.Context, p problem.Problem, sol problem.Solution) (problem.Artifact, error)
}

const (
	Width  = 1280
	Height = 720
	FPS    = 15

	introDuration      = 2 * time.Second
	problemDuration    = 6 * time.Second
	stepDuration       = 8 * time.Second
	conclusionDuration = 3 * time.Second
)

type SceneKind string

const (
	SceneIntro      SceneKind = "intro"
	SceneProblem    SceneKind = "problem"
	SceneStep       SceneKind = "step"
	SceneConclusion SceneKind = "conclusion"
)

type Scene struct {
	Kind      SceneKind         `json:"kind"`
	Title     string            `json:"title"`
	Lines     []string          `json:"lines,omitempty"`
	Operation problem.Operation `json:"operation,omitempty"`
	Concept   string            `json:"concept,omitempty"`
	Tip       string            `json:"tip,omitempty"`
	Narration string            `json:"narration"`
	Start     time.Duration     `json:"start"`
	Duration  time.Duration     `json:"duration"`
}

type Storyboard struct {
	Title    string        `json:"title"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	FPS      int           `json:"fps"`
	Provider string        `json:"provider"`
	Verified bool          `json:"verified"`
	Scenes   []Scene       `json:"scenes"`
	Duration time.Duration `json:"duration"`
}

// Frames is the frame count of the whole video.
func (s Storyboard) Frames() int {
	return int(s.Duration.Seconds() * float64(s.FPS))
}

// Build lays out intro, problem, one scene per step and the answer.
func Build(p problem.Problem, sol problem.Solution) Storyboard {
	sb := Storyboard{
		Title:    "Math Problem Solver",
		Width:    Width,
		Height:   Height,
		FPS:      FPS,
		Provider: string(sol.Provider),
		Verified: sol.Verified,
	}
	add := func(sc Scene) {
		sc.Start = sb.Duration
		sb.Duration += sc.Duration
		sb.Scenes = append(sb.Scenes, sc)
	}

	kind := titleCase(p.Type.Label())
	add(Scene{
		Kind:      SceneIntro,
		Title:     sb.Title,
		Lines:     []string{kind + " Problem"},
		Narration: fmt.Sprintf("Let's solve this %s problem.", p.Type.Label()),
		Duration:  introDuration,
	})

	shown := p.RawText
	if strings.TrimSpace(shown) == "" {
		shown = p.Expression
	}
	lines := []string{shown}
	if p.Expression != "" && p.Expression != shown {
		lines = append(lines, "Expression: "+p.Expression)
	}
	lines = append(lines, "Strategy: "+strategy(p.Type))
	add(Scene{
		Kind:      SceneProblem,
		Title:     "The Problem",
		Lines:     lines,
		Narration: "The problem is: " + shown + ". " + strategy(p.Type) + ".",
		Duration:  problemDuration,
	})

	for i, st := range sol.Steps {
		n := i + 1
		body := []string{st.Description}
		if st.Before != "" {
			body = append(body, st.Before)
		}
		if st.After != "" {
			body = append(body, "→ "+st.After)
		}
		tip := st.Hint
		if tip == "" {
			tip = tutorTip(n)
		}
		add(Scene{
			Kind:      SceneStep,
			Title:     fmt.Sprintf("Step %d of %d", n, len(sol.Steps)),
			Lines:     body,
			Operation: st.Operation,
			Concept:   concept(st),
			Tip:       tip,
			Narration: fmt.Sprintf("Step %d: %s", n, st.Description),
			Duration:  stepDuration,
		})
	}

	closing := []string{"Final Answer: " + sol.FinalAnswer}
	if !sol.Verified {
		closing = append(closing, "This answer could not be verified; double-check it.")
	}
	add(Scene{
		Kind:      SceneConclusion,
		Title:     "Solution Complete!",
		Lines:     closing,
		Narration: fmt.Sprintf("The final answer is %s. Thank you for watching.", sol.FinalAnswer),
		Duration:  conclusionDuration,
	})
	return sb
}

func strategy(t problem.Type) string {
	switch t {
	case problem.LinearEquation, problem.QuadraticEquation:
		return "We will isolate the variable by performing inverse operations step by step"
	case problem.Geometry:
		return "We will use geometric formulas and properties to find the unknown values"
	case problem.Derivative, problem.Integral:
		return "We will apply differentiation or integration rules term by term"
	case problem.Trigonometry:
		return "We will use trigonometric identities and exact values to find the solution"
	case problem.Statistics:
		return "We will apply the statistical formulas to the data set"
	}
	return "We will analyze the problem and apply appropriate mathematical methods"
}

var concepts = []struct{ key, label string }{
	{"quadratic", "Quadratic formula"},
	{"discriminant", "Discriminant"},
	{"derivative", "Taking derivatives"},
	{"differentiate", "Taking derivatives"},
	{"integra", "Integration"},
	{"substitut", "Substitution"},
	{"simplif", "Simplifying expressions"},
	{"combine", "Combining like terms"},
	{"factor", "Factoring"},
	{"subtract", "Isolating the variable"},
	{"add", "Isolating the variable"},
	{"divide", "Isolating the variable"},
	{"formula", "Applying a formula"},
}

func concept(st problem.Step) string {
	d := strings.ToLower(st.Description)
	for _, c := range concepts {
		if strings.Contains(d, c.key) {
			return c.label
		}
	}
	return "Mathematical reasoning"
}

var tips = []string{
	"Always perform the same operation on both sides of an equation.",
	"Check your work by substituting the answer back into the original equation.",
	"Keep track of positive and negative signs carefully.",
	"When dividing, make sure the denominator is not zero.",
	"Simplify before solving to make the problem easier.",
	"Look for patterns that can help you solve similar problems.",
	"Show all your work step by step.",
	"Double-check your arithmetic to avoid simple mistakes.",
}

func tutorTip(n int) string { return tips[n%len(tips)] }

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

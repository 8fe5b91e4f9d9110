package problem

import (
	"errors"
	"fmt"
	"time"
)

// Type is the category a problem is routed by.
type Type string

const (
	LinearEquation    Type = "linear_equation"
	QuadraticEquation Type = "quadratic_equation"
	Derivative        Type = "derivative"
	Integral          Type = "integral"
	Geometry          Type = "geometry"
	Trigonometry      Type = "trigonometry"
	Statistics        Type = "statistics"
	General           Type = "general"
)

// Label is the wording used in progress messages and narration.
func (t Type) Label() string {
	switch t {
	case LinearEquation:
		return "linear equation"
	case QuadraticEquation:
		return "quadratic equation"
	case Derivative:
		return "derivative"
	case Integral:
		return "integral"
	case Geometry:
		return "geometry"
	case Trigonometry:
		return "trigonometry"
	case Statistics:
		return "statistics"
	default:
		return "general problem"
	}
}

type Operation string

const (
	OpRestate       Operation = "restate"
	OpRearrange     Operation = "rearrange"
	OpMoveTerm      Operation = "move_term"
	OpDivide        Operation = "divide"
	OpMultiply      Operation = "multiply"
	OpIdentify      Operation = "identify"
	OpDiscriminant  Operation = "discriminant"
	OpApplyFormula  Operation = "apply_formula"
	OpCompute       Operation = "compute"
	OpSimplify      Operation = "simplify"
	OpSubstitute    Operation = "substitute"
	OpDifferentiate Operation = "differentiate"
	OpIntegrate     Operation = "integrate"
	OpEvaluate      Operation = "evaluate"
	OpAnalyze       Operation = "analyze"
)

// ProviderID names a link of the solving chain.
type ProviderID string

const (
	PrimaryAI     ProviderID = "primary_ai"
	SecondaryAI   ProviderID = "secondary_ai"
	LocalSymbolic ProviderID = "local_symbolic"
)

func (id ProviderID) Label() string {
	switch id {
	case PrimaryAI:
		return "primary AI"
	case SecondaryAI:
		return "secondary AI"
	case LocalSymbolic:
		return "local solver"
	}
	return string(id)
}

// Problem is produced once by Classify and never modified afterwards.
type Problem struct {
	RawText    string   `json:"raw_text"`
	Type       Type     `json:"type"`
	Expression string   `json:"expression"`
	Variables  []string `json:"variables"`
}

type Step struct {
	Description string    `json:"description"`
	Before      string    `json:"before,omitempty"`
	After       string    `json:"after,omitempty"`
	Operation   Operation `json:"operation"`
	Hint        string    `json:"hint,omitempty"`
}

type Solution struct {
	Steps       []Step     `json:"steps"`
	FinalAnswer string     `json:"final_answer"`
	Provider    ProviderID `json:"provider"`
	Verified    bool       `json:"verified"`
}

var (
	ErrNoSteps    = errors.New("solution has no steps")
	ErrNoProvider = errors.New("solution has no provider")
)

// Validate reports whether s may be handed to the renderer.
func (s Solution) Validate() error {
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}
	if s.Provider == "" {
		return ErrNoProvider
	}
	for i, st := range s.Steps {
		if st.Description == "" {
			return fmt.Errorf("step %d has no description", i+1)
		}
	}
	return nil
}

// BestEffortStep is the description of the single step of a solution
// that could not be worked out.
const BestEffortStep = "Could not fully solve; showing best-effort analysis"

// BestEffort returns the minimal valid solution for p.
func BestEffort(p Problem) Solution {
	before := p.Expression
	if before == "" {
		before = p.RawText
	}
	return Solution{
		Steps: []Step{{
			Description: BestEffortStep,
			Before:      before,
			Operation:   OpAnalyze,
			Hint:        "Check that the photo shows a single, clearly written problem.",
		}},
		FinalAnswer: "No verified answer",
		Provider:    LocalSymbolic,
		Verified:    false,
	}
}

// Artifact describes a rendered (or requested) solution video.
type Artifact struct {
	URI      string        `json:"uri,omitempty"`
	Path     string        `json:"path,omitempty"`
	Duration time.Duration `json:"duration"`
	Frames   int           `json:"frames"`
}

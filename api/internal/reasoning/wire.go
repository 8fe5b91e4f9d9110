package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"mathcast/api/internal/problem"
	"mathcast/api/internal/util"
)

// AIResponse is the JSON object both AI backends are asked to return.
type AIResponse struct {
	Status      string   `json:"status" jsonschema:"enum=solved,enum=unsolvable,description=unsolvable when the text is not a solvable math problem"`
	Steps       []AIStep `json:"steps" jsonschema:"description=ordered solution steps"`
	FinalAnswer string   `json:"final_answer" jsonschema:"description=the final answer only; roots separated by comma"`
	Verified    bool     `json:"verified" jsonschema:"description=true only if the answer was checked by substitution"`
}

type AIStep struct {
	Description string `json:"description" jsonschema:"description=one short imperative sentence"`
	Before      string `json:"before,omitempty" jsonschema:"description=expression before the step"`
	After       string `json:"after,omitempty" jsonschema:"description=expression after the step"`
	Operation   string `json:"operation,omitempty" jsonschema:"enum=restate,enum=rearrange,enum=move_term,enum=divide,enum=multiply,enum=identify,enum=discriminant,enum=apply_formula,enum=compute,enum=simplify,enum=substitute,enum=differentiate,enum=integrate,enum=evaluate,enum=analyze"`
	Hint        string `json:"hint,omitempty" jsonschema:"description=optional teaching hint"`
}

var (
	schemaOnce sync.Once
	schemaJSON string
)

// ResponseSchema is the strict JSON Schema of AIResponse, embedded in
// prompts.
func ResponseSchema() string {
	schemaOnce.Do(func() {
		m, err := util.SchemaOf(&AIResponse{}, true)
		if err != nil {
			panic("reasoning: response schema: " + err.Error())
		}
		b, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			panic("reasoning: response schema: " + err.Error())
		}
		schemaJSON = string(b)
	})
	return schemaJSON
}

// DecodeSolution parses a model reply into a Solution. Anything that does
// not describe at least one step is ErrRejected.
func DecodeSolution(raw string) (problem.Solution, error) {
	txt := util.StripCodeFences(raw)
	if txt == "" {
		return problem.Solution{}, fmt.Errorf("%w: empty reply", ErrRejected)
	}
	var r AIResponse
	if err := json.Unmarshal([]byte(txt), &r); err != nil {
		return problem.Solution{}, fmt.Errorf("%w: bad JSON: %v", ErrRejected, err)
	}
	if strings.EqualFold(r.Status, "unsolvable") {
		return problem.Solution{}, fmt.Errorf("%w: model reports unsolvable", ErrRejected)
	}
	if strings.TrimSpace(r.FinalAnswer) == "" {
		return problem.Solution{}, fmt.Errorf("%w: no final answer", ErrRejected)
	}

	sol := problem.Solution{FinalAnswer: strings.TrimSpace(r.FinalAnswer), Verified: r.Verified}
	for _, s := range r.Steps {
		if strings.TrimSpace(s.Description) == "" {
			continue
		}
		op := problem.Operation(s.Operation)
		if op == "" {
			op = problem.OpCompute
		}
		sol.Steps = append(sol.Steps, problem.Step{
			Description: strings.TrimSpace(s.Description),
			Before:      s.Before,
			After:       s.After,
			Operation:   op,
			Hint:        s.Hint,
		})
	}
	if len(sol.Steps) == 0 {
		return problem.Solution{}, fmt.Errorf("%w: no steps", ErrRejected)
	}
	return sol, nil
}

// UserPrompt renders the classified problem as the user turn.
func UserPrompt(p problem.Problem) string {
	in := struct {
		RawText    string   `json:"raw_text"`
		Type       string   `json:"problem_type"`
		Expression string   `json:"normalized_expression"`
		Variables  []string `json:"variables"`
	}{p.RawText, string(p.Type), p.Expression, p.Variables}
	b, _ := json.Marshal(in)
	return "INPUT_JSON:\n" + string(b)
}

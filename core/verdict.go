package core

// DeficiencyCategory names the area a deficiency belongs to.
type DeficiencyCategory string

const (
	DeficiencySteps         DeficiencyCategory = "steps"
	DeficiencyEquipment     DeficiencyCategory = "equipment"
	DeficiencySafety        DeficiencyCategory = "safety"
	DeficiencySetting       DeficiencyCategory = "setting"
	DeficiencyDocumentation DeficiencyCategory = "documentation"
	DeficiencyHygiene       DeficiencyCategory = "hygiene"
)

// Deficiency is one finding of the validation stage. Only fatal deficiencies
// fail a verdict.
type Deficiency struct {
	Category DeficiencyCategory `json:"category"`
	Message  string             `json:"message"`
	Fatal    bool               `json:"fatal"`
	Evidence string             `json:"evidence,omitempty"`
}

// RetryDirective refines the next aggregation pass.
type RetryDirective struct {
	Query string   `json:"query"`
	Terms []string `json:"terms"`
}

// ValidationVerdict is the structured outcome of validating a context.
type ValidationVerdict struct {
	Passed       bool            `json:"passed"`
	Deficiencies []Deficiency    `json:"deficiencies,omitempty"`
	Retry        *RetryDirective `json:"retry,omitempty"`
	// Adaptations are merged into the context regardless of the outcome.
	Adaptations []string `json:"adaptations,omitempty"`
	// Contradictions are keys of facts that conflict with the setting.
	Contradictions []string `json:"contradictions,omitempty"`
}

// Fatal returns only the deficiencies that fail the verdict.
func (v ValidationVerdict) Fatal() []Deficiency {
	var out []Deficiency
	for _, d := range v.Deficiencies {
		if d.Fatal {
			out = append(out, d)
		}
	}
	return out
}

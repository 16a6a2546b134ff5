package core

import "slices"

// Step is one numbered instruction of a procedure.
type Step struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// Reference is a source cited by a procedure.
type Reference struct {
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
	Source string `json:"source"`
}

// Evaluation scores the quality of a synthesized document.
type Evaluation struct {
	Scores          map[string]float64 `json:"scores"`
	Overall         float64            `json:"overall"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

// ProcedureDocument is the terminal artifact of a successful run.
type ProcedureDocument struct {
	ServiceName       string      `json:"service_name"`
	Setting           Setting     `json:"setting"`
	Steps             []Step      `json:"steps"`
	Equipment         []string    `json:"equipment"`
	Warnings          []string    `json:"warnings"`
	Adaptations       []string    `json:"adaptations"`
	References        []Reference `json:"references"`
	SourcesUsed       []string    `json:"sources_used"`
	DetailedProcedure string      `json:"detailed_procedure"`
	Evaluation        *Evaluation `json:"evaluation,omitempty"`
}

// Clone returns a deep copy of the document.
func (d *ProcedureDocument) Clone() *ProcedureDocument {
	if d == nil {
		return nil
	}
	c := *d
	c.Steps = slices.Clone(d.Steps)
	c.Equipment = slices.Clone(d.Equipment)
	c.Warnings = slices.Clone(d.Warnings)
	c.Adaptations = slices.Clone(d.Adaptations)
	c.References = slices.Clone(d.References)
	c.SourcesUsed = slices.Clone(d.SourcesUsed)
	if d.Evaluation != nil {
		ev := *d.Evaluation
		ev.Scores = make(map[string]float64, len(d.Evaluation.Scores))
		for k, v := range d.Evaluation.Scores {
			ev.Scores[k] = v
		}
		ev.Recommendations = slices.Clone(d.Evaluation.Recommendations)
		c.Evaluation = &ev
	}
	return &c
}

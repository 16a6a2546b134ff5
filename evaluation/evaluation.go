// Package evaluation scores synthesized procedure documents.
package evaluation

import (
	"math"

	"github.com/nanuguru/Med-Procedure/core"
)

// Evaluator scores a finished document.
type Evaluator interface {
	Evaluate(doc *core.ProcedureDocument) (*core.Evaluation, error)
}

// Score names reported by Heuristic.
const (
	ScoreCompleteness = "completeness"
	ScoreSafety       = "safety"
	ScoreSourcing     = "sourcing"
	ScoreSetting      = "setting"
)

// HeuristicOptions tunes the targets a document is measured against.
type HeuristicOptions struct {
	TargetSteps     int
	TargetWarnings  int
	TargetEquipment int
	TargetSources   int
}

// Heuristic scores documents from their structure alone.
type Heuristic struct {
	opts HeuristicOptions
}

// NewHeuristic creates a Heuristic evaluator.
func NewHeuristic(optFns ...func(o *HeuristicOptions)) *Heuristic {
	opts := HeuristicOptions{
		TargetSteps:     6,
		TargetWarnings:  3,
		TargetEquipment: 4,
		TargetSources:   2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Heuristic{opts: opts}
}

// Evaluate implements Evaluator.
func (h *Heuristic) Evaluate(doc *core.ProcedureDocument) (*core.Evaluation, error) {
	if doc == nil {
		return nil, core.NewInvalidRequest("document is required")
	}

	scores := map[string]float64{
		ScoreCompleteness: (ratio(len(doc.Steps), h.opts.TargetSteps) + ratio(len(doc.Equipment), h.opts.TargetEquipment)) / 2,
		ScoreSafety:       ratio(len(doc.Warnings), h.opts.TargetWarnings),
		ScoreSourcing:     ratio(len(doc.SourcesUsed), h.opts.TargetSources),
		ScoreSetting:      ratio(len(doc.Adaptations), 1),
	}

	var recs []string
	if len(doc.Steps) < h.opts.TargetSteps {
		recs = append(recs, "Add more detailed step-by-step instructions")
	}
	if len(doc.Equipment) < h.opts.TargetEquipment {
		recs = append(recs, "List all required equipment and supplies")
	}
	if len(doc.Warnings) < h.opts.TargetWarnings {
		recs = append(recs, "Expand safety precautions and contraindications")
	}
	if len(doc.SourcesUsed) < h.opts.TargetSources {
		recs = append(recs, "Corroborate the procedure with additional sources")
	}
	if len(doc.Adaptations) == 0 {
		recs = append(recs, "Describe adaptations for the "+doc.Setting.String()+" setting")
	}

	return &core.Evaluation{
		Scores:          scores,
		Overall:         round(0.35*scores[ScoreCompleteness] + 0.35*scores[ScoreSafety] + 0.2*scores[ScoreSourcing] + 0.1*scores[ScoreSetting]),
		Recommendations: recs,
	}, nil
}

func ratio(n, target int) float64 {
	if target <= 0 {
		return 1
	}
	return round(math.Min(1, float64(n)/float64(target)))
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

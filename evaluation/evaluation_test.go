package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanuguru/Med-Procedure/core"
)

var _ Evaluator = (*Heuristic)(nil)

func TestHeuristic_CompleteDocument(t *testing.T) {
	doc := &core.ProcedureDocument{
		Setting:     core.SettingHospital,
		Steps:       make([]core.Step, 6),
		Equipment:   []string{"a", "b", "c", "d"},
		Warnings:    []string{"a", "b", "c"},
		SourcesUsed: []string{"groq", "duckduckgo"},
		Adaptations: []string{"x"},
	}

	ev, err := NewHeuristic().Evaluate(doc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Overall)
	assert.Empty(t, ev.Recommendations)
}

func TestHeuristic_SparseDocument(t *testing.T) {
	doc := &core.ProcedureDocument{
		Setting:     core.SettingHome,
		Steps:       make([]core.Step, 3),
		Equipment:   []string{"a", "b"},
		Warnings:    []string{"a"},
		SourcesUsed: []string{"groq"},
	}

	ev, err := NewHeuristic().Evaluate(doc)
	require.NoError(t, err)
	assert.Equal(t, 0.5, ev.Scores[ScoreCompleteness])
	assert.Equal(t, 0.33, ev.Scores[ScoreSafety])
	assert.Equal(t, 0.5, ev.Scores[ScoreSourcing])
	assert.Equal(t, 0.0, ev.Scores[ScoreSetting])
	assert.Less(t, ev.Overall, 0.5)
	assert.Len(t, ev.Recommendations, 5)
	assert.Contains(t, ev.Recommendations, "Describe adaptations for the Home setting")
}

func TestHeuristic_NilDocument(t *testing.T) {
	_, err := NewHeuristic(func(o *HeuristicOptions) { o.TargetSteps = 1 }).Evaluate(nil)
	assert.True(t, core.IsKind(err, core.KindInvalidRequest))
}

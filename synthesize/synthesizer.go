// Package synthesize turns a validated core.CompactedContext into the final
// core.ProcedureDocument. Output depends only on the input context, so
// identical inputs always produce identical documents.
package synthesize

import (
	"strings"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/internal/util"
)

const documentTemplate = `Clinical Procedure: {{.service}}
Setting: {{.setting}}

Equipment:
{{bullets .equipment "No specific equipment identified"}}
Procedure Steps:
{{range .steps}}{{.Number}}. {{.Text}}
{{end}}
Safety Precautions:
{{bullets .warnings "Follow standard precautions"}}{{if .adaptations}}
Setting Considerations:
{{range .adaptations}}- {{.}}
{{end}}{{end}}
References:
{{range .references}}- {{.Title}}{{if .URL}} ({{.URL}}){{end}} [{{.Source}}]
{{end}}`

// Synthesize builds the document for cc. It fails with InsufficientContent
// when cc holds no step or note to order into procedure steps.
func Synthesize(cc core.CompactedContext) (*core.ProcedureDocument, error) {
	if cc.Empty() {
		return nil, core.NewInsufficientContent("no procedure content available for %q", cc.ServiceName)
	}

	doc := &core.ProcedureDocument{
		ServiceName: cc.ServiceName,
		Setting:     cc.Setting,
		Adaptations: append([]string{}, cc.Adaptations...),
	}

	// Facts arrive in aggregation order; keep it as the step order. Notes
	// stand in for steps when no explicit steps survived compaction.
	steps := cc.FactsOf(core.FactStep)
	if len(steps) == 0 {
		steps = cc.FactsOf(core.FactNote)
	}
	if len(steps) == 0 {
		return nil, core.NewInsufficientContent("no procedure steps available for %q", cc.ServiceName)
	}
	for i, f := range steps {
		doc.Steps = append(doc.Steps, core.Step{Number: i + 1, Text: f.Text, Source: f.Source})
	}
	doc.Equipment = texts(cc.FactsOf(core.FactEquipment))
	doc.Warnings = texts(cc.FactsOf(core.FactWarning))

	seen := map[string]bool{}
	for _, p := range cc.Provenance {
		title := p.Title
		if title == "" {
			title = p.Source
		}
		doc.References = append(doc.References, core.Reference{Title: title, URL: p.URL, Source: p.Source})
		if !seen[p.Source] {
			seen[p.Source] = true
			doc.SourcesUsed = append(doc.SourcesUsed, p.Source)
		}
	}

	rendered, err := util.RenderTemplate(documentTemplate, map[string]any{
		"service":     cc.ServiceName,
		"setting":     cc.Setting.String(),
		"equipment":   doc.Equipment,
		"steps":       doc.Steps,
		"warnings":    doc.Warnings,
		"adaptations": doc.Adaptations,
		"references":  doc.References,
	})
	if err != nil {
		return nil, core.NewInternal("render procedure: %v", err)
	}
	doc.DetailedProcedure = strings.TrimSpace(rendered)

	return doc, nil
}

// texts returns fact texts with case-insensitive duplicates removed.
func texts(facts []core.Fact) []string {
	out := make([]string, 0, len(facts))
	seen := map[string]bool{}
	for _, f := range facts {
		k := strings.ToLower(f.Text)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f.Text)
	}
	return out
}

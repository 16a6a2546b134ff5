package memory

import (
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/internal/util"
)

const procedureTemplate = `# {{.service}}
{{if .equipment}}
## Equipment

{{range .equipment}}- {{.}}
{{end}}{{end}}{{if .steps}}
## Procedure Steps

{{range .steps}}{{.Number}}. {{.Text}}
{{end}}{{end}}{{if .warnings}}
## Safety Precautions

{{range .warnings}}- {{.}}
{{end}}{{end}}`

// ProcedureContent renders the facts of doc that are worth recalling:
// equipment, steps and warnings as Markdown sections under the service name.
// Setting adaptations and references are left out so a recalled procedure
// only contributes procedure content to a later request.
func ProcedureContent(doc *core.ProcedureDocument) (string, error) {
	return util.RenderTemplate(procedureTemplate, map[string]any{
		"service":   doc.ServiceName,
		"equipment": doc.Equipment,
		"steps":     doc.Steps,
		"warnings":  doc.Warnings,
	})
}

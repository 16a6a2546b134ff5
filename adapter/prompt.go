package adapter

import (
	"fmt"
	"strings"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/internal/util"
)

// SystemPrompt frames language-model adapters as procedure writers.
const SystemPrompt = "You are a clinical nursing educator. You write clear, practical, step-by-step procedures " +
	"with explicit equipment lists and safety precautions. Answer in Markdown."

// ProcedurePrompt is the user prompt template shared by language-model adapters.
const ProcedurePrompt = `Write a detailed clinical procedure for "{{.query}}" performed in a {{.setting}} setting.

Setting context: {{.context}}

Use these Markdown sections:
## Preparation
## Equipment
## Steps
(numbered, one action per step)
## Safety Precautions
## Post-Procedure Care
## Complications
`

// SettingContext describes the constraints of a setting for prompts.
func SettingContext(setting core.Setting) string {
	switch setting {
	case core.SettingHome:
		return "home care with limited equipment and minimal support staff; the caregiver works alone or with family members"
	default:
		return "hospital ward with full equipment, sterile supplies and a multidisciplinary team"
	}
}

// RenderPrompt renders ProcedurePrompt for a query and setting.
func RenderPrompt(query string, setting core.Setting) (string, error) {
	return util.RenderTemplate(ProcedurePrompt, map[string]any{
		"query":   strings.TrimSpace(query),
		"setting": setting.String(),
		"context": SettingContext(setting),
	})
}

// EnhanceQuery turns a service name into a web search query.
func EnhanceQuery(query string, setting core.Setting) string {
	return fmt.Sprintf("%s clinical procedure %s setting nursing", strings.TrimSpace(query), setting)
}

// PositionScore scores the i-th (zero based) of n ranked results from 1.0
// down to 0.5.
func PositionScore(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	return 1.0 - 0.5*float64(i)/float64(n-1)
}

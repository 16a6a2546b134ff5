// Package validate checks compacted procedure content for required sections,
// safety coverage and fit with the care setting. A failing verdict carries a
// retry directive that refines the next search pass.
package validate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/logging"
)

// Options configure a Validator.
type Options struct {
	// MinSteps is the number of step facts required for a passing verdict.
	MinSteps int
	// HomeEquipmentLimit is the equipment count above which home procedures
	// get a checklist adaptation.
	HomeEquipmentLimit int
	Rules              []SettingRule
	Logger             logging.Logger
}

// Validator produces verdicts for compacted contexts. It holds no per-run
// state and is safe for concurrent use.
type Validator struct {
	opts Options
}

// New creates a Validator with the default rules.
func New(optFns ...func(o *Options)) *Validator {
	opts := Options{
		MinSteps:           2,
		HomeEquipmentLimit: 5,
		Rules:              DefaultRules(),
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Validator{opts: opts}
}

// Validate checks cc. The verdict fails only when a required section is
// missing or a fact contradicts the setting; minor omissions are returned as
// adaptations to merge into the context.
func (v *Validator) Validate(cc core.CompactedContext) core.ValidationVerdict {
	var verdict core.ValidationVerdict

	steps := cc.FactsOf(core.FactStep)
	equipment := cc.FactsOf(core.FactEquipment)
	warnings := cc.FactsOf(core.FactWarning)

	if len(steps) < v.opts.MinSteps {
		verdict.Deficiencies = append(verdict.Deficiencies, core.Deficiency{
			Category: core.DeficiencySteps,
			Message:  fmt.Sprintf("found %d ordered steps, need at least %d", len(steps), v.opts.MinSteps),
			Fatal:    true,
		})
	}
	if len(equipment) == 0 {
		verdict.Deficiencies = append(verdict.Deficiencies, core.Deficiency{
			Category: core.DeficiencyEquipment,
			Message:  "no equipment list found",
			Fatal:    true,
		})
	}
	if len(warnings) == 0 {
		verdict.Deficiencies = append(verdict.Deficiencies, core.Deficiency{
			Category: core.DeficiencySafety,
			Message:  "no safety or warning note found",
			Fatal:    true,
		})
	}

	for _, rule := range v.opts.Rules {
		if rule.Setting != cc.Setting {
			continue
		}
		for _, f := range cc.Facts {
			phrase, ok := matchPhrase(f.Text, rule.Phrases)
			if !ok {
				continue
			}
			verdict.Deficiencies = append(verdict.Deficiencies, core.Deficiency{
				Category: core.DeficiencySetting,
				Message:  fmt.Sprintf("%q %s (%s setting)", phrase, rule.Reason, cc.Setting),
				Fatal:    true,
				Evidence: f.Text,
			})
			if !slices.Contains(verdict.Contradictions, f.Key) {
				verdict.Contradictions = append(verdict.Contradictions, f.Key)
			}
		}
	}

	verdict.Adaptations = v.adaptations(cc, &verdict, len(equipment))
	verdict.Passed = len(verdict.Fatal()) == 0
	if !verdict.Passed {
		verdict.Retry = v.retry(cc, verdict.Fatal())
	}

	v.opts.Logger.Debug("validation verdict",
		"service", cc.ServiceName,
		"passed", verdict.Passed,
		"deficiencies", len(verdict.Deficiencies),
		"contradictions", len(verdict.Contradictions),
	)

	return verdict
}

// adaptations records non-fatal omissions and returns the setting
// considerations to merge into the context.
func (v *Validator) adaptations(cc core.CompactedContext, verdict *core.ValidationVerdict, equipment int) []string {
	var out []string

	if !mentions(cc, documentationWords) {
		verdict.Deficiencies = append(verdict.Deficiencies, core.Deficiency{
			Category: core.DeficiencyDocumentation,
			Message:  "no documentation step found",
		})
		out = append(out, documentationAdaptation[cc.Setting])
	}
	if !mentions(cc, hygieneWords) {
		verdict.Deficiencies = append(verdict.Deficiencies, core.Deficiency{
			Category: core.DeficiencyHygiene,
			Message:  "no hand hygiene step found",
		})
		out = append(out, hygieneAdaptation)
	}
	if cc.Setting == core.SettingHome && equipment > v.opts.HomeEquipmentLimit {
		out = append(out, homeEquipmentAdaptation)
	}

	return append(out, considerations[cc.Setting]...)
}

func (v *Validator) retry(cc core.CompactedContext, fatal []core.Deficiency) *core.RetryDirective {
	var terms []string
	for _, d := range fatal {
		term := retryTerms[d.Category]
		if d.Category == core.DeficiencySetting {
			term = settingRetryTerms[cc.Setting]
		}
		if term != "" && !slices.Contains(terms, term) {
			terms = append(terms, term)
		}
	}
	return &core.RetryDirective{
		Query: strings.TrimSpace(cc.ServiceName + " " + strings.Join(terms, " ")),
		Terms: terms,
	}
}

func matchPhrase(text string, phrases []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

func mentions(cc core.CompactedContext, words []string) bool {
	for _, f := range cc.Facts {
		lower := strings.ToLower(f.Text) + " "
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

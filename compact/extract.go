package compact

import (
	"regexp"
	"strings"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/internal/markdown"
	"github.com/nanuguru/Med-Procedure/search"
)

var (
	safetyKeywords = []string{
		"warning", "caution", "contraindicat", "do not", "don't", "never", "avoid",
		"risk", "precaution", "allerg", "signs of infection", "seek medical",
		"emergency", "stop if", "report any", "hazard", "sharps",
	}
	equipmentVocabulary = []string{
		"gloves", "syringe", "needle", "gauze", "bandage", "dressing pack", "alcohol swab",
		"stethoscope", "blood pressure cuff", "thermometer", "sterile field", "disinfectant",
		"saline", "tape", "forceps", "scissors", "drape", "catheter", "tray", "sharps container",
		"antiseptic", "swab",
	}
	imperativeVerbs = map[string]bool{
		"apply": true, "assess": true, "check": true, "clean": true, "cleanse": true, "cover": true,
		"confirm": true, "dispose": true, "document": true, "don": true, "doff": true, "draw": true,
		"dry": true, "explain": true, "gather": true, "identify": true, "inspect": true, "insert": true,
		"irrigate": true, "label": true, "measure": true, "monitor": true, "observe": true, "open": true,
		"pat": true, "perform": true, "place": true, "position": true, "prepare": true, "record": true,
		"remove": true, "replace": true, "secure": true, "verify": true, "wash": true, "wear": true,
		"wipe": true, "introduce": true, "obtain": true, "discard": true, "administer": true, "ensure": true,
	}
	stepPrefix     = regexp.MustCompile(`(?i)^(step\s*\d+|\d+[.)])\s*[:.-]?\s*`)
	sentenceSplit  = regexp.MustCompile(`([.!?])\s+`)
	equipmentWords = []string{"equipment", "supplies", "materials", "you will need", "what you need"}
)

// sectionKind maps a heading or label onto a fact kind; ok is false when the
// section says nothing about its content.
func sectionKind(section string) (core.FactKind, bool) {
	s := strings.ToLower(section)
	switch {
	case s == "":
		return "", false
	case containsAny(s, equipmentWords):
		return core.FactEquipment, true
	case containsAny(s, []string{"safety", "warning", "precaution", "complication", "contraindication", "caution", "risk"}):
		return core.FactWarning, true
	case containsAny(s, []string{"step", "procedure", "preparation", "technique", "instructions", "post-procedure", "aftercare", "care"}):
		return core.FactStep, true
	}
	return "", false
}

// classify decides the kind of a piece of text that has no section hint.
func classify(text string, ordered bool) core.FactKind {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, safetyKeywords):
		return core.FactWarning
	case ordered || stepPrefix.MatchString(text) || imperativeVerbs[firstWord(lower)]:
		return core.FactStep
	case containsAny(lower, equipmentWords),
		len(text) <= 60 && containsAny(lower, equipmentVocabulary):
		return core.FactEquipment
	}
	return core.FactNote
}

// IsSafetyCritical reports whether text carries a warning or contraindication.
func IsSafetyCritical(text string) bool {
	return containsAny(strings.ToLower(text), safetyKeywords)
}

// extractFacts turns one search result into facts. Order is left zero and
// assigned by the caller.
func extractFacts(r core.SearchResult) []core.Fact {
	var facts []core.Fact
	add := func(kind core.FactKind, text string) {
		text = strings.TrimSpace(stepPrefix.ReplaceAllString(strings.TrimSpace(text), ""))
		if len([]rune(text)) < 3 {
			return
		}
		// Warnings found inside other sections are still safety-critical.
		if kind != core.FactWarning && IsSafetyCritical(text) {
			kind = core.FactWarning
		}
		facts = append(facts, core.Fact{
			Key:    search.Normalize(text),
			Kind:   kind,
			Text:   text,
			Source: r.DedupKey,
			Score:  r.Score,
		})
	}

	for _, b := range markdown.Extract(r.Snippet) {
		hinted, hasHint := sectionKind(b.Section)
		switch b.Kind {
		case markdown.OrderedItem, markdown.Item:
			switch {
			case hasHint:
				add(hinted, b.Text)
			default:
				add(classify(b.Text, b.Kind == markdown.OrderedItem), b.Text)
			}
		case markdown.Paragraph:
			for _, sentence := range splitSentences(b.Text) {
				if hasHint && hinted != core.FactStep {
					add(hinted, sentence)
					continue
				}
				kind := classify(sentence, false)
				if hasHint && kind == core.FactNote {
					kind = hinted
				}
				add(kind, sentence)
			}
		}
	}
	return facts
}

func splitSentences(text string) []string {
	marked := sentenceSplit.ReplaceAllString(text, "$1\n")
	var out []string
	for _, s := range strings.Split(marked, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstWord(s string) string {
	s = strings.TrimLeft(s, " -*•")
	w, _, _ := strings.Cut(s, " ")
	return strings.Trim(w, ",.:;")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

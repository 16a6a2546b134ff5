package core

import (
	"slices"
	"unicode/utf8"
)

// FactKind classifies a compacted fact.
type FactKind string

const (
	FactStep      FactKind = "step"
	FactEquipment FactKind = "equipment"
	FactWarning   FactKind = "warning"
	FactNote      FactKind = "note"
)

// SafetyCritical reports whether facts of this kind are kept first.
func (k FactKind) SafetyCritical() bool { return k == FactWarning }

// Fact is a single salient statement extracted from adapter output.
type Fact struct {
	// Key is the normalized text used for deduplication.
	Key  string   `json:"key"`
	Kind FactKind `json:"kind"`
	Text string   `json:"text"`
	// Source is the Provenance.ID the fact was taken from.
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	// Order is the fact's position in aggregation order.
	Order     int  `json:"order"`
	Truncated bool `json:"truncated,omitempty"`
}

// Size is the rune count the fact charges against a budget.
func (f Fact) Size() int { return utf8.RuneCountInString(f.Text) }

// Provenance points back to an original source.
type Provenance struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
}

// CompactedContext is the bounded summary consumed by validation and
// synthesis. Provenance and Adaptations are not charged against Budget.
type CompactedContext struct {
	ServiceName string       `json:"service_name"`
	Setting     Setting      `json:"setting"`
	Facts       []Fact       `json:"facts"`
	Provenance  []Provenance `json:"provenance"`
	Adaptations []string     `json:"adaptations,omitempty"`
	Budget      int          `json:"budget"`
}

// NewCompactedContext returns an empty context for a request.
func NewCompactedContext(serviceName string, setting Setting) CompactedContext {
	return CompactedContext{ServiceName: serviceName, Setting: setting}
}

// Size is the total rune count of all facts.
func (c CompactedContext) Size() int {
	n := 0
	for _, f := range c.Facts {
		n += f.Size()
	}
	return n
}

// Empty reports whether no facts survived.
func (c CompactedContext) Empty() bool { return len(c.Facts) == 0 }

// FactsOf returns the facts of one kind in context order.
func (c CompactedContext) FactsOf(kind FactKind) []Fact {
	var out []Fact
	for _, f := range c.Facts {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// WithAdaptations returns a copy with the given adaptations appended,
// skipping ones already present.
func (c CompactedContext) WithAdaptations(adaptations ...string) CompactedContext {
	out := c.Clone()
	for _, a := range adaptations {
		if a == "" || slices.Contains(out.Adaptations, a) {
			continue
		}
		out.Adaptations = append(out.Adaptations, a)
	}
	return out
}

// Prune returns a copy without the facts whose keys are listed. Provenance
// is left intact.
func (c CompactedContext) Prune(keys []string) CompactedContext {
	out := c.Clone()
	if len(keys) == 0 {
		return out
	}
	out.Facts = slices.DeleteFunc(out.Facts, func(f Fact) bool {
		return slices.Contains(keys, f.Key)
	})
	return out
}

// Clone returns a copy with independent slices.
func (c CompactedContext) Clone() CompactedContext {
	c.Facts = slices.Clone(c.Facts)
	c.Provenance = slices.Clone(c.Provenance)
	c.Adaptations = slices.Clone(c.Adaptations)
	return c
}

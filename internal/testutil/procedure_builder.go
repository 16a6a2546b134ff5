package testutil

import (
	"fmt"
	"strings"
)

// ProcedureBuilder renders a markdown procedure the way a language-model
// adapter answers.
type ProcedureBuilder struct {
	equipment []string
	steps     []string
	warnings  []string
	notes     []string
}

// NewProcedureBuilder creates an empty builder.
func NewProcedureBuilder() *ProcedureBuilder { return &ProcedureBuilder{} }

// WoundDressing returns a builder prefilled with a complete wound dressing
// procedure that passes validation in both settings.
func WoundDressing() *ProcedureBuilder {
	return NewProcedureBuilder().
		Equipment("Sterile gloves", "Gauze pads", "Normal saline").
		Steps(
			"Perform hand hygiene and put on gloves.",
			"Remove the old dressing and discard it.",
			"Clean the wound with saline from the centre outwards.",
			"Apply a new sterile dressing and secure it.",
			"Document the wound appearance.",
		).
		Warnings("Do not touch the wound bed with bare hands.")
}

// Equipment appends equipment items (chainable).
func (b *ProcedureBuilder) Equipment(items ...string) *ProcedureBuilder {
	b.equipment = append(b.equipment, items...)
	return b
}

// Steps appends numbered steps (chainable).
func (b *ProcedureBuilder) Steps(steps ...string) *ProcedureBuilder {
	b.steps = append(b.steps, steps...)
	return b
}

// Warnings appends safety precautions (chainable).
func (b *ProcedureBuilder) Warnings(w ...string) *ProcedureBuilder {
	b.warnings = append(b.warnings, w...)
	return b
}

// Note appends a free paragraph (chainable).
func (b *ProcedureBuilder) Note(n string) *ProcedureBuilder {
	b.notes = append(b.notes, n)
	return b
}

// Build renders the markdown text.
func (b *ProcedureBuilder) Build() string {
	var sb strings.Builder
	for _, n := range b.notes {
		sb.WriteString(n + "\n\n")
	}
	if len(b.equipment) > 0 {
		sb.WriteString("## Equipment\n")
		for _, e := range b.equipment {
			sb.WriteString("- " + e + "\n")
		}
		sb.WriteString("\n")
	}
	if len(b.steps) > 0 {
		sb.WriteString("## Steps\n")
		for i, s := range b.steps {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
		}
		sb.WriteString("\n")
	}
	if len(b.warnings) > 0 {
		sb.WriteString("## Safety Precautions\n")
		for _, w := range b.warnings {
			sb.WriteString("- " + w + "\n")
		}
	}
	return sb.String()
}

package testutil

import "github.com/nanuguru/Med-Procedure/core"

// ResultBuilder provides a fluent helper for constructing search results.
// Example:
//
//	r := NewResultBuilder("groq").Title("guide").Snippet(text).Score(0.9).Build()
type ResultBuilder struct {
	r core.SearchResult
}

// NewResultBuilder creates a builder for a result of the given source with
// score 0.5.
func NewResultBuilder(source string) *ResultBuilder {
	return &ResultBuilder{r: core.SearchResult{Source: source, Score: 0.5}}
}

// Title sets the result title (chainable).
func (b *ResultBuilder) Title(t string) *ResultBuilder { b.r.Title = t; return b }

// URL sets the result link (chainable).
func (b *ResultBuilder) URL(u string) *ResultBuilder { b.r.URL = u; return b }

// Snippet sets the result text (chainable).
func (b *ResultBuilder) Snippet(s string) *ResultBuilder { b.r.Snippet = s; return b }

// Score sets the relevance score (chainable).
func (b *ResultBuilder) Score(s float64) *ResultBuilder { b.r.Score = s; return b }

// Build returns the result.
func (b *ResultBuilder) Build() core.SearchResult { return b.r }

package compact

import (
	"cmp"
	"slices"

	"github.com/nanuguru/Med-Procedure/core"
)

// minTruncate is the smallest remaining budget worth filling with a
// truncated fact.
const minTruncate = 24

const ellipsis = "…"

// Compact extracts facts from agg and selects them under budget. A budget of
// zero or less keeps every fact.
func Compact(agg core.AggregatedContext, budget int) core.CompactedContext {
	return Merge(core.NewCompactedContext(agg.Query, agg.Setting), agg, budget)
}

// Recompact reselects the facts of an existing context under budget.
func Recompact(cc core.CompactedContext, budget int) core.CompactedContext {
	out := cc.Clone()
	out.Facts = selectFacts(out.Facts, budget)
	out.Budget = budget
	return out
}

// Merge folds a new aggregation pass into prev. New facts are ordered after
// the existing ones; a fact already present keeps its position and the
// higher of the two scores. Provenance of the pass is appended.
func Merge(prev core.CompactedContext, agg core.AggregatedContext, budget int) core.CompactedContext {
	out := prev.Clone()
	if out.Setting == "" {
		out.Setting = agg.Setting
	}

	index := make(map[string]int, len(out.Facts))
	next := 0
	for i, f := range out.Facts {
		index[f.Key] = i
		next = max(next, f.Order+1)
	}
	known := make(map[string]bool, len(out.Provenance))
	for _, p := range out.Provenance {
		known[p.ID] = true
	}

	for _, r := range agg.Results {
		if !known[r.DedupKey] {
			known[r.DedupKey] = true
			out.Provenance = append(out.Provenance, core.Provenance{
				ID:     r.DedupKey,
				Source: r.Source,
				Title:  r.Title,
				URL:    r.URL,
			})
		}
		for _, f := range extractFacts(r) {
			if i, ok := index[f.Key]; ok {
				if f.Score > out.Facts[i].Score {
					out.Facts[i].Score = f.Score
				}
				continue
			}
			f.Order = next
			next++
			index[f.Key] = len(out.Facts)
			out.Facts = append(out.Facts, f)
		}
	}

	out.Facts = selectFacts(out.Facts, budget)
	out.Budget = budget
	return out
}

// selectFacts keeps facts by priority until the budget is spent and returns
// the survivors in aggregation order. A fact that no longer fits is
// truncated into the remaining budget when at least minTruncate runes are
// left, otherwise skipped in favour of smaller facts further down.
func selectFacts(facts []core.Fact, budget int) []core.Fact {
	if budget <= 0 {
		return sortByOrder(slices.Clone(facts))
	}

	total := 0
	for _, f := range facts {
		total += f.Size()
	}
	if total <= budget {
		return sortByOrder(slices.Clone(facts))
	}

	ranked := slices.Clone(facts)
	slices.SortStableFunc(ranked, comparePriority)

	remaining := budget
	selected := make([]core.Fact, 0, len(ranked))
	for _, f := range ranked {
		size := f.Size()
		if size <= remaining {
			selected = append(selected, f)
			remaining -= size
			continue
		}
		if remaining >= minTruncate {
			selected = append(selected, truncate(f, remaining))
			remaining = 0
		}
	}

	return sortByOrder(selected)
}

// comparePriority ranks safety-critical facts first, then higher scores,
// then earlier aggregation order.
func comparePriority(x, y core.Fact) int {
	xs, ys := x.Kind.SafetyCritical(), y.Kind.SafetyCritical()
	if xs != ys {
		if xs {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(y.Score, x.Score); c != 0 {
		return c
	}
	return cmp.Compare(x.Order, y.Order)
}

func sortByOrder(facts []core.Fact) []core.Fact {
	slices.SortStableFunc(facts, func(x, y core.Fact) int { return cmp.Compare(x.Order, y.Order) })
	return facts
}

// truncate shortens f to exactly size runes including the ellipsis.
func truncate(f core.Fact, size int) core.Fact {
	runes := []rune(f.Text)
	keep := size - len([]rune(ellipsis))
	f.Text = string(runes[:keep]) + ellipsis
	f.Truncated = true
	return f
}

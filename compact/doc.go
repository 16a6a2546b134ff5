// Package compact reduces aggregated search output to a bounded
// core.CompactedContext.
//
// Adapter text is split into facts (steps, equipment, warnings, notes).
// Facts are then selected greedily under a rune budget: safety-critical
// facts first, then by relevance score, then by aggregation order. Selected
// facts keep their aggregation order in the output, and provenance for every
// source is retained whether or not any of its facts survive. Compacting an
// already compacted context with the same budget returns it unchanged.
package compact

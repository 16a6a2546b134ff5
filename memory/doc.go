// Package memory holds the long-term memory bank of completed procedures.
//
// Bank is a bounded, keyword-indexed store: the oldest entry is evicted once
// the bank is full. Adapter exposes recall as a core.Adapter so stored
// procedures take part in aggregation next to the live search backends.
package memory

// Package search implements the hybrid search aggregator: it fans a query
// out to every configured capability adapter concurrently, waits for them up
// to a batch deadline and merges whatever arrived into one deduplicated,
// deterministically ordered core.AggregatedContext.
//
// Adapter failures never escape the aggregator. Each one is recorded as a
// core.Fault on the returned context and reported to the optional fault sink.
package search

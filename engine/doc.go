// Package engine implements the orchestration layer: it creates sessions,
// drives each one through the procedure pipeline and exposes pause, resume
// and cancel control to callers.
//
// # Pipeline
//
// A run walks a core.Pipeline descriptor, by default:
//
//	aggregate (parallel) -> compact -> validate (loop) -> synthesize
//
// Aggregation fans out across every configured adapter through a
// search.Aggregator. Compaction merges the pass into the session's
// accumulated context under the configured budget. Validation either moves
// on or, while the retry budget lasts, refines the query and loops back to
// aggregation. An exhausted budget is not fatal: contradicting facts are
// pruned and the run synthesizes from the best context it has. Synthesis
// failing with InsufficientContent moves the session to error.
//
// # Suspension points
//
// Before every step the run stops at a boundary where it records progress
// and honors a pending pause by parking the session with a checkpoint (next
// step, query, retries consumed, accumulated context). The run goroutine
// then exits; Resume starts a new one from the checkpoint, so a pause
// followed by a resume yields the same document as an uninterrupted run.
//
// # Cancellation
//
// Cancel is a terminal transition to error with kind Cancelled. The run's
// context is cancelled so in-flight adapter calls are released; their
// results are discarded.
//
// # Callbacks
//
// A CallbackManager receives before_stage, after_stage, adapter_fault,
// retry, state_change and on_error events. The metrics package registers
// its collector here.
//
// # Tracing
//
// Every run segment is an OpenTelemetry span with one child span per stage,
// created from Options.TracerProvider or the global provider.
package engine

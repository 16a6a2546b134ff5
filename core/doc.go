// Package core provides the domain types and small interfaces shared by the
// procedure orchestration engine. It defines:
//
//   - Settings and search results produced by capability adapters
//   - Aggregated and compacted contexts flowing between pipeline stages
//   - Validation verdicts and the final procedure document
//   - Sessions, their state transitions and the SessionStore abstraction
//   - The pipeline descriptor driven by the engine
//   - The error taxonomy surfaced to callers
//
// Implementation concerns (adapters, storage, orchestration) live in sibling
// packages so that custom backends can be plugged in through these interfaces.
package core

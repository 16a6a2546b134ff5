// Package adapter provides capability adapter building blocks: a Mock adapter
// for tests and offline runs, the Guard wrapper enforcing per-call timeouts,
// shared rate limits and error classification, and the prompt and query
// helpers shared by the provider subpackages (openai, anthropic, websearch).
package adapter

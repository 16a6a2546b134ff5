// Package session houses concrete implementations of core.SessionStore.
// The interface and the Session state machine live in the core package so
// the engine depends only on the contract; the wiring layer decides which
// implementation to instantiate.
package session

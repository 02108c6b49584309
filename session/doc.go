// Package session implements conversation memory: an append-only log of
// turns plus a single active detection, scoped per session.
//
// Turns are never mutated or reordered after being appended; conversation
// order is the sole ordering authority for "most recent". A session
// serializes whole-turn pipelines so memory never observes out-of-order
// appends, and aborted pipelines never append at all.
package session

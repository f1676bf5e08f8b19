// Package kernel holds per-session state and the commit pipeline.
//
// A State owns one Draft. Patches enter the draft through the validators in
// package patch; Commit applies the draft in the fixed order
// Page3 → Page1 → Page2, recomputes derived scalars, resets the draft, and
// returns a hash-stamped Marker.
//
// # Determinism
//
// Given the same session id, the same sequence of drafts and the same
// commit timestamps, a fresh State produces the same sequence of marker
// hashes. Hash input is the canonical JSON (package canon) of
//
//	{session_id, seq, timestamp_ms, prev_hash, state}
//
// where state excludes the draft. prev_hash chains each marker to the one
// before it.
//
// # Concurrency
//
// Registry is safe for concurrent use. A *State is not; callers that share
// one across goroutines must go through Registry.Stage and Registry.Commit.
package kernel

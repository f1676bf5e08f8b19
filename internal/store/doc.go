// Package store provides SQLite-backed durable storage for autus sessions.
//
// Three tables back a session:
//   - sessions: the latest snapshot of each state, including its draft
//   - commits: the draft consumed by every commit, with its timestamp
//   - markers: the audit marker every commit produced
//
// commits and markers are append-only and keyed by UNIQUE(session_id, seq).
// All reads order by seq ASC, so a session's journal replays identically.
//
// Snapshots and drafts are stored as plain JSON, which round-trips float64
// exactly. Canonical JSON rounds floats to six decimals and is only used
// where a value is hashed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

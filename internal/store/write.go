package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/patch"
)

// ErrSeqConflict is returned when a commit or marker already exists at a
// session's seq with different content.
var ErrSeqConflict = errors.New("seq already committed with different content")

// ErrStaleSnapshot is returned by SaveSnapshot when the stored session is
// already at a higher seq.
var ErrStaleSnapshot = errors.New("snapshot older than stored session")

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveSnapshot upserts the state of a session, including its draft. A
// snapshot older than the stored one (lower seq) is not written and returns
// ErrStaleSnapshot.
func (s *Store) SaveSnapshot(ctx context.Context, st *kernel.State) error {
	applied, err := upsertSession(ctx, s.db, st)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if !applied {
		return fmt.Errorf("save snapshot %q at seq %d: %w", st.SessionID, st.Seq, ErrStaleSnapshot)
	}
	return nil
}

// SaveCommit atomically records one commit: the post-commit snapshot, the
// draft the commit consumed, and its marker.
//
// Rewriting an identical commit is a no-op. Writing a different commit at
// an already used seq returns ErrSeqConflict.
func (s *Store) SaveCommit(ctx context.Context, st *kernel.State, draft patch.Draft, m *kernel.Marker) error {
	if st.SessionID != m.SessionID || st.Seq != m.Seq {
		return fmt.Errorf("save commit: marker %s/%d does not match state %s/%d",
			m.SessionID, m.Seq, st.SessionID, st.Seq)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Rewriting an older commit leaves the newer snapshot in place.
	if _, err := upsertSession(ctx, tx, st); err != nil {
		return fmt.Errorf("save commit: %w", err)
	}
	if err := insertCommit(ctx, tx, m, draft); err != nil {
		return fmt.Errorf("save commit: %w", err)
	}
	if err := insertMarker(ctx, tx, m); err != nil {
		return fmt.Errorf("save commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save commit: commit tx: %w", err)
	}

	s.logger.Debug("commit saved", "session", m.SessionID, "seq", m.Seq, "hash", m.StateHash)
	return nil
}

// upsertSession reports whether the row was written; false means the stored
// session is newer.
func upsertSession(ctx context.Context, db execer, st *kernel.State) (bool, error) {
	snapshot, err := marshalSnapshot(st)
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, seq, last_hash, snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seq = excluded.seq,
			last_hash = excluded.last_hash,
			snapshot = excluded.snapshot
		WHERE excluded.seq >= sessions.seq
	`, st.SessionID, st.Seq, st.LastHash, snapshot)
	if err != nil {
		return false, fmt.Errorf("upsert session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert session: rows affected: %w", err)
	}
	return n > 0, nil
}

func insertCommit(ctx context.Context, db execer, m *kernel.Marker, draft patch.Draft) error {
	draftJSON, err := marshalDraft(draft)
	if err != nil {
		return err
	}
	draftHash, err := draft.Hash()
	if err != nil {
		return fmt.Errorf("hash draft: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO commits (session_id, seq, timestamp_ms, draft, draft_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, m.SessionID, m.Seq, m.TimestampMs, draftJSON, draftHash)
	if err != nil {
		return fmt.Errorf("insert commit: %w", err)
	}
	return checkExisting(ctx, db, res, `SELECT draft_hash FROM commits WHERE session_id = ? AND seq = ?`,
		m.SessionID, m.Seq, draftHash, "commit")
}

func insertMarker(ctx context.Context, db execer, m *kernel.Marker) error {
	steps, err := marshalSteps(m.ProcessingSteps)
	if err != nil {
		return err
	}
	view, err := marshalView(m.State)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO markers
		(session_id, seq, timestamp_ms, prev_hash, hash, state_hash, node_type, steps, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		m.SessionID,
		m.Seq,
		m.TimestampMs,
		m.PrevHash,
		m.Hash,
		m.StateHash,
		string(m.NodeType),
		steps,
		view,
	)
	if err != nil {
		return fmt.Errorf("insert marker: %w", err)
	}
	return checkExisting(ctx, db, res, `SELECT hash FROM markers WHERE session_id = ? AND seq = ?`,
		m.SessionID, m.Seq, m.Hash, "marker")
}

// checkExisting turns a swallowed ON CONFLICT insert into ErrSeqConflict
// when the stored row's hash differs from want.
func checkExisting(ctx context.Context, db execer, res sql.Result, query, sessionID string, seq int64, want, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	if n > 0 {
		return nil
	}
	var got string
	if err := db.QueryRowContext(ctx, query, sessionID, seq).Scan(&got); err != nil {
		return fmt.Errorf("read existing %s: %w", what, err)
	}
	if got != want {
		return fmt.Errorf("%s %s/%d: %w", what, sessionID, seq, ErrSeqConflict)
	}
	return nil
}

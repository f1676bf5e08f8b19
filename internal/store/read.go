package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/node"
	"github.com/roach88/autus/internal/patch"
)

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	LastHash string `json:"last_hash"`
}

// CommitRecord is one journal entry: the draft a commit consumed.
type CommitRecord struct {
	SessionID   string
	Seq         int64
	TimestampMs int64
	Draft       patch.Draft
	DraftHash   string
}

// LoadSession returns the latest snapshot of a session. found is false if
// the session has never been saved.
func (s *Store) LoadSession(ctx context.Context, id string) (*kernel.State, bool, error) {
	id = kernel.NormalizeSessionID(id)
	var snapshot string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE id = ?`, id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	st, err := unmarshalSnapshot(snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("load session %q: %w", id, err)
	}
	return st, true, nil
}

// ListSessions returns every stored session ordered by id.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, last_hash
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Seq, &info.LastHash); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadMarkers returns a session's markers ordered by seq.
//
// Returns an empty slice (not nil) if the session has no commits.
func (s *Store) ReadMarkers(ctx context.Context, sessionID string) ([]kernel.Marker, error) {
	sessionID = kernel.NormalizeSessionID(sessionID)
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, timestamp_ms, prev_hash, hash, state_hash, node_type, steps, state
		FROM markers
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query markers: %w", err)
	}
	defer rows.Close()

	markers := []kernel.Marker{}
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	return markers, nil
}

// FindMarker returns the marker with the given full hash.
func (s *Store) FindMarker(ctx context.Context, hash string) (kernel.Marker, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, seq, timestamp_ms, prev_hash, hash, state_hash, node_type, steps, state
		FROM markers
		WHERE hash = ?
		ORDER BY session_id COLLATE BINARY ASC, seq ASC
		LIMIT 1
	`, hash)
	m, err := scanMarker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return kernel.Marker{}, false, nil
	}
	if err != nil {
		return kernel.Marker{}, false, err
	}
	return m, true, nil
}

// ReadCommits returns a session's journal ordered by seq.
//
// Returns an empty slice (not nil) if the session has no commits.
func (s *Store) ReadCommits(ctx context.Context, sessionID string) ([]CommitRecord, error) {
	sessionID = kernel.NormalizeSessionID(sessionID)
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, timestamp_ms, draft, draft_hash
		FROM commits
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	commits := []CommitRecord{}
	for rows.Next() {
		var rec CommitRecord
		var draft string
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.TimestampMs, &draft, &rec.DraftHash); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		rec.Draft, err = unmarshalDraft(draft)
		if err != nil {
			return nil, fmt.Errorf("commit %s/%d: %w", rec.SessionID, rec.Seq, err)
		}
		commits = append(commits, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return commits, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMarker(row scanner) (kernel.Marker, error) {
	var m kernel.Marker
	var nodeType, steps, state string
	err := row.Scan(
		&m.SessionID,
		&m.Seq,
		&m.TimestampMs,
		&m.PrevHash,
		&m.Hash,
		&m.StateHash,
		&nodeType,
		&steps,
		&state,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return kernel.Marker{}, err
	}
	if err != nil {
		return kernel.Marker{}, fmt.Errorf("scan marker: %w", err)
	}

	m.NodeType = node.Type(nodeType)
	if m.ProcessingSteps, err = unmarshalSteps(steps); err != nil {
		return kernel.Marker{}, err
	}
	if m.State, err = unmarshalView(state); err != nil {
		return kernel.Marker{}, err
	}
	return m, nil
}

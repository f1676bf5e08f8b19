package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/autus/internal/kernel"
)

// Divergence reasons reported by ReplaySession.
const (
	DivergeDraftHash  = "draft_hash"
	DivergeMarkerHash = "marker_hash"
	DivergeMissing    = "marker_missing"
	DivergeExtra      = "marker_extra"
	DivergeSnapshot   = "snapshot_hash"
)

// ReplayReport is the outcome of re-running a session's journal.
type ReplayReport struct {
	SessionID     string `json:"session_id"`
	Commits       int    `json:"commits"`
	Deterministic bool   `json:"deterministic"`
	FinalHash     string `json:"final_hash"`

	// Set when Deterministic is false.
	DivergedAt int64  `json:"diverged_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Expected   string `json:"expected,omitempty"`
	Got        string `json:"got,omitempty"`
}

// ReplaySession rebuilds a session from a fresh state by committing every
// journaled draft with its recorded timestamp, and checks each recomputed
// hash against the stored marker. The first mismatch stops the replay.
func (s *Store) ReplaySession(ctx context.Context, sessionID string) (ReplayReport, error) {
	sessionID = kernel.NormalizeSessionID(sessionID)
	report := ReplayReport{SessionID: sessionID, Deterministic: true}

	commits, err := s.ReadCommits(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("replay session: %w", err)
	}
	markers, err := s.ReadMarkers(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("replay session: %w", err)
	}
	bySeq := make(map[int64]kernel.Marker, len(markers))
	for _, m := range markers {
		bySeq[m.Seq] = m
	}

	st := kernel.NewState(sessionID)
	for _, rec := range commits {
		report.Commits++

		draftHash, err := rec.Draft.Hash()
		if err != nil {
			return report, fmt.Errorf("replay session: seq %d: %w", rec.Seq, err)
		}
		if draftHash != rec.DraftHash {
			report.diverge(rec.Seq, DivergeDraftHash, rec.DraftHash, draftHash)
			break
		}

		st.Draft = rec.Draft.Clone()
		m, err := kernel.Commit(st, rec.TimestampMs)
		if err != nil {
			return report, fmt.Errorf("replay session: seq %d: %w", rec.Seq, err)
		}

		want, ok := bySeq[rec.Seq]
		if !ok || m.Seq != rec.Seq {
			report.diverge(rec.Seq, DivergeMissing, "", m.Hash)
			break
		}
		if want.Hash != m.Hash {
			report.diverge(rec.Seq, DivergeMarkerHash, want.Hash, m.Hash)
			break
		}
	}
	report.FinalHash = st.LastHash

	if report.Deterministic {
		// A marker past the last journaled commit has no draft to replay.
		for _, m := range markers {
			if m.Seq > st.Seq {
				report.diverge(m.Seq, DivergeExtra, m.Hash, "")
				break
			}
		}
	}

	if report.Deterministic {
		stored, found, err := s.LoadSession(ctx, sessionID)
		if err != nil {
			return report, fmt.Errorf("replay session: %w", err)
		}
		if found && stored.LastHash != st.LastHash {
			report.diverge(stored.Seq, DivergeSnapshot, stored.LastHash, st.LastHash)
		}
	}

	level := s.logger.Info
	if !report.Deterministic {
		level = s.logger.Warn
	}
	level("session replayed",
		"session", sessionID,
		"commits", report.Commits,
		"deterministic", report.Deterministic,
		"reason", report.Reason,
	)
	return report, nil
}

// replayWorkers bounds how many sessions ReplayAll replays at once.
const replayWorkers = 4

// ReplayAll replays every stored session and returns the reports ordered by
// session id. The first replay error cancels the rest.
func (s *Store) ReplayAll(ctx context.Context) ([]ReplayReport, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay all: %w", err)
	}

	reports := make([]ReplayReport, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replayWorkers)
	for i, info := range sessions {
		i, info := i, info
		g.Go(func() error {
			r, err := s.ReplaySession(gctx, info.ID)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *ReplayReport) diverge(seq int64, reason, expected, got string) {
	r.Deterministic = false
	r.DivergedAt = seq
	r.Reason = reason
	r.Expected = expected
	r.Got = got
}

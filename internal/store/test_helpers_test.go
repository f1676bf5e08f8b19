package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/patch"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// commitAndSave stages raw page patches on st, commits at ts and saves the
// commit.
func commitAndSave(t *testing.T, s *Store, st *kernel.State, ts int64, docs ...map[string]any) *kernel.Marker {
	t.Helper()
	if err := st.StageDocuments(docs...); err != nil {
		t.Fatalf("StageDocuments() failed: %v", err)
	}
	draft := st.Draft.Clone()
	m, err := kernel.Commit(st, ts)
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := s.SaveCommit(context.Background(), st, draft, m); err != nil {
		t.Fatalf("SaveCommit() failed: %v", err)
	}
	return m
}

func allocDoc(weights map[string]any) map[string]any {
	return map[string]any{"page": int(patch.Page3), "allocations": weights}
}

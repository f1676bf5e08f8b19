package store

import (
	"github.com/roach88/autus/internal/kernel"
)

// RegistryOptions wires the store into a kernel.Registry: sessions are
// hydrated from snapshots on first access and every commit is persisted
// before it is published.
func (s *Store) RegistryOptions() []kernel.Option {
	return []kernel.Option{
		kernel.WithLoader(s.LoadSession),
		kernel.WithCommitHook(s.SaveCommit),
	}
}

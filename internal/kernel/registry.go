package kernel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/autus/internal/patch"
)

// Loader hydrates a session from durable storage. found=false means the
// session does not exist yet.
type Loader func(ctx context.Context, sessionID string) (st *State, found bool, err error)

// CommitHook runs after a commit is computed and before it is published to
// the registry. draft is the draft the commit consumed. Returning an error
// discards the commit.
type CommitHook func(ctx context.Context, st *State, draft patch.Draft, m *Marker) error

// Registry maps session ids to states. Sessions are created on first
// access and are fully isolated from one another. Ids are keyed by their
// NFC form.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*State
	loader   Loader
	onCommit CommitHook
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader sets the snapshot loader consulted on first access.
func WithLoader(l Loader) Option {
	return func(r *Registry) { r.loader = l }
}

// WithCommitHook sets a hook run on every Registry.Commit.
func WithCommitHook(h CommitHook) Option {
	return func(r *Registry) { r.onCommit = h }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*State),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate ensures id has an in-memory state, creating a fresh one if
// absent, and returns a deep copy of it. It never consults the loader.
func (r *Registry) GetOrCreate(id string) *State {
	id = NormalizeSessionID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(id).Clone()
}

func (r *Registry) getOrCreateLocked(id string) *State {
	if st, ok := r.sessions[id]; ok {
		return st
	}
	st := NewState(id)
	r.sessions[id] = st
	r.logger.Debug("session created", "session", id)
	return st
}

// Load returns the state for id, hydrating it through the loader on first
// access and creating a fresh one when the loader has nothing.
func (r *Registry) Load(ctx context.Context, id string) (*State, error) {
	id = NormalizeSessionID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx, id)
}

func (r *Registry) loadLocked(ctx context.Context, id string) (*State, error) {
	if st, ok := r.sessions[id]; ok {
		return st, nil
	}
	if r.loader != nil {
		st, found, err := r.loader(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load session %q: %w", id, err)
		}
		if found {
			r.sessions[id] = st
			r.logger.Debug("session loaded", "session", id, "seq", st.Seq)
			return st, nil
		}
	}
	return r.getOrCreateLocked(id), nil
}

// Stage validates a raw patch and merges it into the session's draft.
func (r *Registry) Stage(ctx context.Context, id string, page patch.Page, raw map[string]any) error {
	id = NormalizeSessionID(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.loadLocked(ctx, id)
	if err != nil {
		return err
	}
	if err := st.StageRaw(page, raw); err != nil {
		r.logger.Debug("patch rejected", "session", id, "page", page.String(), "error", err)
		return err
	}
	return nil
}

// StageDocuments validates page-tagged patch documents and stages them as
// one batch. One invalid document rejects all of them.
func (r *Registry) StageDocuments(ctx context.Context, id string, docs ...map[string]any) error {
	id = NormalizeSessionID(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.loadLocked(ctx, id)
	if err != nil {
		return err
	}
	if err := st.StageDocuments(docs...); err != nil {
		r.logger.Debug("patch batch rejected", "session", id, "error", err)
		return err
	}
	return nil
}

// Commit commits the session's draft. The commit hook, when set, must
// succeed for the new state to be published.
func (r *Registry) Commit(ctx context.Context, id string, timestampMs int64) (*Marker, error) {
	id = NormalizeSessionID(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	next, m, err := Next(st, timestampMs)
	if err != nil {
		return nil, err
	}
	if r.onCommit != nil {
		if err := r.onCommit(ctx, next, st.Draft.Clone(), m); err != nil {
			return nil, fmt.Errorf("commit hook: %w", err)
		}
	}
	*st = *next

	r.logger.Info("commit applied",
		"session", id,
		"seq", m.Seq,
		"state_hash", m.StateHash,
		"node_type", string(m.NodeType),
	)
	return m, nil
}

// Snapshot returns a deep copy of the session's state, or false if the
// session is not in memory.
func (r *Registry) Snapshot(id string) (*State, bool) {
	id = NormalizeSessionID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Sessions returns the ids of in-memory sessions, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/script"
	"github.com/roach88/autus/internal/testutil"
)

// Result is the outcome of a script run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Markers []kernel.Marker `json:"markers"`
	Final   *kernel.State   `json:"-"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

func newResult() *Result {
	return &Result{Pass: true, Markers: []kernel.Marker{}, Errors: []string{}}
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Last returns the final marker, or nil when nothing was committed.
func (r *Result) Last() *kernel.Marker {
	if len(r.Markers) == 0 {
		return nil
	}
	return &r.Markers[len(r.Markers)-1]
}

type config struct {
	registry *kernel.Registry
	clock    *testutil.MillisClock
	logger   *slog.Logger
}

// Option configures a run.
type Option func(*config)

// WithRegistry runs against r instead of a fresh in-memory registry, for
// example one wired to a store.
func WithRegistry(r *kernel.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithClock sets the clock used for commits without a timestamp.
func WithClock(clock *testutil.MillisClock) Option {
	return func(c *config) { c.clock = clock }
}

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Run executes a script against a fresh registry.
func Run(sc *script.Script, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), sc, opts...)
}

// RunContext executes a script. Each commit stages all of its patches as
// one batch and then commits. A rejected patch or failed commit aborts the
// run with an error naming the commit; unmet expectations are reported in
// the Result instead.
func RunContext(ctx context.Context, sc *script.Script, opts ...Option) (*Result, error) {
	cfg := config{
		clock:  testutil.NewMillisClock(testutil.DefaultStartMs, testutil.DefaultStepMs),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = kernel.NewRegistry(kernel.WithLogger(cfg.logger))
	}

	result := newResult()
	for i, c := range sc.Commits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var ts int64
		if c.TimestampMs != nil {
			ts = *c.TimestampMs
			cfg.clock.Observe(ts)
		} else {
			ts = cfg.clock.Next()
		}

		if err := cfg.registry.StageDocuments(ctx, sc.Session, c.Documents()...); err != nil {
			return nil, fmt.Errorf("script %s: commits[%d]: %w", sc.Name, i, err)
		}
		m, err := cfg.registry.Commit(ctx, sc.Session, ts)
		if err != nil {
			return nil, fmt.Errorf("script %s: commits[%d]: %w", sc.Name, i, err)
		}
		result.Markers = append(result.Markers, *m)
		cfg.logger.Debug("script commit", "script", sc.Name, "index", i, "seq", m.Seq, "state_hash", m.StateHash)
	}

	final, ok := cfg.registry.Snapshot(sc.Session)
	if !ok {
		return nil, fmt.Errorf("script %s: session %q missing after run", sc.Name, sc.Session)
	}
	result.Final = final

	checkExpect(sc.Expect, result)
	return result, nil
}

func checkExpect(exp *script.Expect, result *Result) {
	if exp == nil {
		return
	}
	last := result.Last()
	if last == nil {
		result.addError("expectations set but nothing was committed")
		return
	}

	if exp.StateHash != "" {
		got := last.StateHash
		if len(exp.StateHash) == len(last.Hash) {
			got = last.Hash
		}
		if got != exp.StateHash {
			result.addError("state_hash: got %s, want %s", got, exp.StateHash)
		}
	}
	if exp.NodeType != "" && last.NodeType != exp.NodeType {
		result.addError("node_type: got %s, want %s", last.NodeType, exp.NodeType)
	}
	if exp.Seq != nil && last.Seq != *exp.Seq {
		result.addError("seq: got %d, want %d", last.Seq, *exp.Seq)
	}
}

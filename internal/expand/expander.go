package expand

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeout bounds one generator call. Model-backed generators go over
// the network; retrieval must not wait on them indefinitely.
const DefaultTimeout = 5 * time.Second

// Expander runs a pluggable Generator under a bounded deadline and enforces
// the output contract before anything reaches retrieval.
//
// Expansion never fails the search: a generator error, timeout, cancellation
// or schema-invalid candidate degrades to the minimal single-variant
// fallback, logged as a degraded-mode event.
type Expander struct {
	generator Generator
	timeout   time.Duration
}

// Option configures the expander.
type Option func(*Expander)

// WithTimeout sets the per-call generator deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Expander) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an expander around the given generator. A nil generator is
// treated as permanently unavailable: every call returns the fallback.
func New(generator Generator, opts ...Option) *Expander {
	e := &Expander{
		generator: generator,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand turns one raw query into a validated set of lexical and vector
// variants. The returned result always satisfies the output contract for
// non-blank queries; blank queries short-circuit to the fallback without
// invoking the generator.
func (e *Expander) Expand(ctx context.Context, query string) *Result {
	if strings.TrimSpace(query) == "" {
		return Fallback(query)
	}

	if e.generator == nil {
		return Fallback(query)
	}

	start := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	candidate, err := e.generator.Generate(genCtx, query)
	if err != nil {
		slog.Warn("query_expansion_degraded",
			slog.String("generator", e.generator.Name()),
			slog.String("reason", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return Fallback(query)
	}

	if valid, errs := Validate(query, candidate); !valid {
		slog.Warn("query_expansion_invalid",
			slog.String("generator", e.generator.Name()),
			slog.Any("errors", errs))
		return Fallback(query)
	}

	slog.Debug("query_expanded",
		slog.String("generator", e.generator.Name()),
		slog.Int("lexical", len(candidate.LexicalQueries)),
		slog.Int("vector", len(candidate.VectorQueries)),
		slog.Bool("hyde", candidate.Hyde != ""),
		slog.Duration("elapsed", time.Since(start)))

	return candidate
}

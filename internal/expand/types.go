// Package expand diversifies a single user query into multiple lexical and
// vector search strings before retrieval.
//
// Expansion is the first stage of the read path: its output fans out to the
// lexical and vector channels, widening recall before ranking. The actual
// rewriting is a pluggable Generator; the package owns only the output
// contract, its schema validation, and the fallback guarantee that expansion
// failure never prevents search.
package expand

import "context"

// Result is the validated output of query expansion.
//
// Both query arrays are non-empty and contain the original query verbatim,
// guaranteeing a recall floor equal to unexpanded search. Hyde, when set, is
// a short synthetic passage that plausibly answers the query, embedded to
// seed the vector channel. Notes is free-text diagnostics and is never
// consumed by retrieval.
type Result struct {
	LexicalQueries []string `json:"lexicalQueries"`
	VectorQueries  []string `json:"vectorQueries"`
	Hyde           string   `json:"hyde,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Generator produces candidate expansion results. Implementations may be
// model-backed and non-deterministic; correctness is defined by schema
// conformance, which the Expander enforces, not by output equality across
// calls.
//
// A Generator must honor ctx cancellation: the Expander calls it with a
// bounded deadline and treats any error as a degraded-mode signal, not a
// failure of the search.
type Generator interface {
	// Generate returns a candidate expansion for the query.
	Generate(ctx context.Context, query string) (*Result, error)

	// Name identifies the generator in logs and diagnostics.
	Name() string
}

// Fallback is the minimal single-variant result substituted whenever the
// generator is unavailable, times out, or returns schema-invalid output.
// It trivially satisfies the output contract.
func Fallback(query string) *Result {
	return &Result{
		LexicalQueries: []string{query},
		VectorQueries:  []string{query},
	}
}

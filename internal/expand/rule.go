package expand

import (
	"context"
	"strings"
	"unicode"
)

// queryStopWords are filler terms dropped when deriving the keyword-only
// variant. Question scaffolding rarely matches document vocabulary.
var queryStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"which": true, "who": true, "can": true, "could": true, "should": true,
	"i": true, "my": true, "me": true, "to": true, "of": true, "in": true,
	"on": true, "for": true, "with": true, "about": true, "and": true,
	"or": true, "you": true, "please": true,
}

// questionPrefixes are leading phrases stripped for the statement variant.
var questionPrefixes = []string{
	"how do i ", "how do you ", "how does ", "how to ", "how can i ",
	"what is the ", "what is ", "what are ", "why does ", "why is ",
	"where is ", "where are ", "can i ", "show me ",
}

// RuleGenerator is the deterministic expansion fallback: no model, no
// network, same output for the same input. It satisfies the output schema
// unconditionally for non-blank queries, so it doubles as the generator of
// last resort when the model-backed capability is not configured.
type RuleGenerator struct{}

// NewRuleGenerator creates the deterministic rule-based generator.
func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{}
}

// Name identifies the generator in logs.
func (g *RuleGenerator) Name() string { return "rule" }

// Generate derives lexical and vector variants by trimming, quoting,
// prefix-stripping and keyword extraction. The original query is always the
// first element of both arrays. No hypothetical document is produced.
func (g *RuleGenerator) Generate(_ context.Context, query string) (*Result, error) {
	res := &Result{
		LexicalQueries: []string{query},
		VectorQueries:  []string{query},
		Notes:          "rule-based expansion",
	}

	trimmed := strings.TrimSpace(query)
	appendUnique(&res.LexicalQueries, trimmed)
	appendUnique(&res.VectorQueries, trimmed)

	// Exact-phrase variant for the lexical channel.
	if strings.ContainsRune(trimmed, ' ') {
		appendUnique(&res.LexicalQueries, `"`+trimmed+`"`)
	}

	// Statement variant: the query without question scaffolding embeds
	// closer to document prose than the interrogative form.
	lower := strings.ToLower(trimmed)
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			stmt := strings.TrimSuffix(strings.TrimSpace(trimmed[len(prefix):]), "?")
			appendUnique(&res.VectorQueries, stmt)
			break
		}
	}

	// Keyword-only variant for both channels.
	if kw := keywords(trimmed); kw != "" {
		appendUnique(&res.LexicalQueries, kw)
		appendUnique(&res.VectorQueries, kw)
	}

	return res, nil
}

// keywords returns the query's content terms joined by spaces, or "" when
// nothing survives the stop-word filter.
func keywords(query string) string {
	var kept []string
	for _, term := range splitTerms(query) {
		if !queryStopWords[strings.ToLower(term)] {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, " ")
}

// splitTerms breaks a query on anything that is not a letter, digit,
// underscore or hyphen.
func splitTerms(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})
}

func appendUnique(list *[]string, s string) {
	if s == "" {
		return
	}
	for _, existing := range *list {
		if existing == s {
			return
		}
	}
	*list = append(*list, s)
}

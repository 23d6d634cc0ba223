package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gmickel/docdex/internal/search"
)

// snippetLines caps how many content lines each result shows.
const snippetLines = 4

// ResultsRenderer displays search results with citations.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer creates a results renderer.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays results to the terminal.
func (r *ResultsRenderer) Render(query string, results []search.Result) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(r.out, "No results for %q\n", query)
		return nil
	}

	for i, res := range results {
		citation := fmt.Sprintf("%s:%d:%d-%d:%d",
			res.DocPath,
			res.Citation.Start.Line, res.Citation.Start.Col,
			res.Citation.End.Line, res.Citation.End.Col)

		_, _ = fmt.Fprintf(r.out, "%s %s\n",
			r.styles.Header.Render(fmt.Sprintf("%d.", i+1)),
			r.styles.Citation.Render(citation))

		meta := fmt.Sprintf("   %s  score %.3f  via %s",
			res.Collection, res.Score, strings.Join(res.Channels, "+"))
		if res.HeaderPath != "" {
			meta += "  " + res.HeaderPath
		}
		_, _ = fmt.Fprintln(r.out, r.styles.Label.Render(meta))

		for _, line := range snippet(res.Content) {
			_, _ = fmt.Fprintf(r.out, "   %s\n", line)
		}
		_, _ = fmt.Fprintln(r.out)
	}

	return nil
}

// RenderJSON outputs results as JSON.
func (r *ResultsRenderer) RenderJSON(results []search.Result) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// snippet returns the first few non-blank content lines, marking truncation.
func snippet(content string) []string {
	lines := strings.Split(strings.TrimSpace(content), "\n")

	out := make([]string, 0, snippetLines+1)
	for _, line := range lines {
		if len(out) >= snippetLines {
			out = append(out, "...")
			break
		}
		out = append(out, line)
	}
	return out
}

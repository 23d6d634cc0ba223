package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gmickel/docdex/internal/status"
)

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays an index status report to the terminal.
func (r *StatusRenderer) Render(st status.IndexStatus) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+st.IndexName))

	health := r.styles.Success.Render("healthy")
	if !st.Healthy {
		health = r.styles.Error.Render("unhealthy")
	}
	_, _ = fmt.Fprintf(r.out, "  Health:       %s\n", health)
	_, _ = fmt.Fprintf(r.out, "  Documents:    %d\n", st.ActiveDocuments)
	_, _ = fmt.Fprintf(r.out, "  Chunks:       %d\n", st.TotalChunks)

	backlog := fmt.Sprintf("%d", st.EmbeddingBacklog)
	if st.EmbeddingBacklog > 0 {
		backlog = r.styles.Warning.Render(backlog)
	}
	_, _ = fmt.Fprintf(r.out, "  Backlog:      %s\n", backlog)

	errCount := fmt.Sprintf("%d", st.RecentErrors)
	if st.RecentErrors > 0 {
		errCount = r.styles.Error.Render(errCount)
	}
	_, _ = fmt.Fprintf(r.out, "  Errors (24h): %s\n", errCount)

	if st.LastUpdatedAt != nil {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(*st.LastUpdatedAt))
	}
	_, _ = fmt.Fprintln(r.out)

	if len(st.Collections) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Collections:")
		for _, c := range st.Collections {
			line := fmt.Sprintf("    %-20s %d docs, %d chunks", c.Name, c.ActiveDocuments, c.TotalChunks)
			if backlog, _ := c.Backlog(); backlog > 0 {
				line += r.styles.Warning.Render(fmt.Sprintf(" (%d pending)", backlog))
			}
			_, _ = fmt.Fprintln(r.out, line)
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Config:"), st.ConfigPath)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Store: "), st.DBPath)

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(st status.IndexStatus) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(st)
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

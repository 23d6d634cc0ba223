// Package status aggregates per-collection ingestion and embedding counters
// into a single index health snapshot.
//
// Aggregation is a pure read over counters supplied by the metadata store at
// call time. Under concurrent ingestion the per-collection counts may reflect
// slightly different points in time; the snapshot is advisory monitoring
// data, never a gate on retrieval correctness.
package status

import (
	"log/slog"
	"time"
)

// Collection holds the point-in-time counters for one named sub-index.
type Collection struct {
	Name            string     `json:"name"`
	Path            string     `json:"path"`
	ActiveDocuments int        `json:"activeDocuments"`
	TotalChunks     int        `json:"totalChunks"`
	EmbeddedChunks  int        `json:"embeddedChunks"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Backlog returns the collection's contribution to the embedding backlog and
// whether its counters are internally consistent. EmbeddedChunks exceeding
// TotalChunks is a data inconsistency: the contribution clamps to zero and
// consistent is false.
func (c Collection) Backlog() (backlog int, consistent bool) {
	d := c.TotalChunks - c.EmbeddedChunks
	if d < 0 {
		return 0, false
	}
	return d, true
}

// IndexMeta identifies the index a snapshot describes.
type IndexMeta struct {
	IndexName  string
	ConfigPath string
	DBPath     string
}

// IndexStatus is the aggregate health and progress snapshot consumed by the
// status reporting surface.
type IndexStatus struct {
	IndexName        string       `json:"indexName"`
	ConfigPath       string       `json:"configPath"`
	DBPath           string       `json:"dbPath"`
	Healthy          bool         `json:"healthy"`
	ActiveDocuments  int          `json:"activeDocuments"`
	TotalChunks      int          `json:"totalChunks"`
	EmbeddingBacklog int          `json:"embeddingBacklog"`
	RecentErrors     int          `json:"recentErrors"`
	LastUpdatedAt    *time.Time   `json:"lastUpdatedAt,omitempty"`
	Collections      []Collection `json:"collections"`
}

// Aggregate combines per-collection counters into one snapshot. It is
// computed fresh on every call; nothing is cached.
//
// Derivation rules:
//   - EmbeddingBacklog sums max(0, total-embedded) per collection. A
//     collection whose embedded count exceeds its total contributes zero and
//     is counted as an internal data-integrity error, folded into
//     RecentErrors rather than silently ignored.
//   - ActiveDocuments and TotalChunks are straight sums.
//   - Healthy is recentErrors == 0 (after folding). A non-zero backlog is a
//     normal transient queue depth, never a health failure by itself.
//   - LastUpdatedAt is the latest collection UpdatedAt, nil if no collection
//     reports one.
//
// An empty collection list yields zero counts and Healthy=true: an empty
// index is not unhealthy.
func Aggregate(meta IndexMeta, collections []Collection, recentErrors int) IndexStatus {
	st := IndexStatus{
		IndexName:   meta.IndexName,
		ConfigPath:  meta.ConfigPath,
		DBPath:      meta.DBPath,
		Collections: collections,
	}

	integrityErrors := 0
	for _, c := range collections {
		backlog, consistent := c.Backlog()
		if !consistent {
			integrityErrors++
			slog.Warn("collection_counters_inconsistent",
				slog.String("collection", c.Name),
				slog.Int("total_chunks", c.TotalChunks),
				slog.Int("embedded_chunks", c.EmbeddedChunks))
		}
		st.EmbeddingBacklog += backlog
		st.ActiveDocuments += c.ActiveDocuments
		st.TotalChunks += c.TotalChunks

		if c.UpdatedAt != nil && (st.LastUpdatedAt == nil || c.UpdatedAt.After(*st.LastUpdatedAt)) {
			t := *c.UpdatedAt
			st.LastUpdatedAt = &t
		}
	}

	st.RecentErrors = recentErrors + integrityErrors
	st.Healthy = st.RecentErrors == 0

	return st
}

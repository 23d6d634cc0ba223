// Package chunk splits documents into retrievable units.
//
// Chunks carry byte offsets into the original document; line/column
// citations are stamped from those offsets so they always agree with
// the bytes actually indexed.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gmickel/docdex/internal/position"
)

// Chunk size defaults.
const (
	// DefaultMaxChunkChars caps a chunk before it is split at
	// paragraph boundaries.
	DefaultMaxChunkChars = 2000
)

// Chunk is a retrievable unit of content.
type Chunk struct {
	ID          string        // SHA256(collection + path + start offset)[:16]
	Collection  string        // Collection the document belongs to
	DocPath     string        // Relative to the project root
	Content     string        // Exact byte range of the original document
	StartOffset int           // Byte offset of the first content byte
	EndOffset   int           // Byte offset one past the last content byte
	Citation    position.Span // Line/column range derived from the offsets
	Seq         int           // Position within the document, 0-based
	HeaderPath  string        // "Guide > Installation" style breadcrumb
}

// Document is input for the Chunker interface.
type Document struct {
	Collection string
	Path       string
	Content    []byte
}

// Chunker is the interface for splitting documents into chunks.
type Chunker interface {
	// Chunk splits a document into chunks with offset-backed citations.
	Chunk(ctx context.Context, doc *Document) ([]*Chunk, error)

	// SupportedExtensions returns file extensions this chunker handles.
	SupportedExtensions() []string
}

// generateChunkID derives a stable chunk ID from its document and offset.
func generateChunkID(collection, path string, startOffset int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", collection, path, startOffset)))
	return hex.EncodeToString(sum[:])[:16]
}

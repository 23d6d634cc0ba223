package chunk

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/gmickel/docdex/internal/position"
)

// headerPattern matches headers: # Title, ## Title, etc.
var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// MarkdownChunkerOptions configures the markdown chunker behavior.
type MarkdownChunkerOptions struct {
	// MaxChunkChars caps chunk size before splitting at paragraph
	// boundaries (default: DefaultMaxChunkChars).
	MaxChunkChars int
}

// MarkdownChunker implements header-based Markdown chunking.
type MarkdownChunker struct {
	options MarkdownChunkerOptions
}

// NewMarkdownChunker creates a new markdown chunker with default options.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(MarkdownChunkerOptions{})
}

// NewMarkdownChunkerWithOptions creates a new markdown chunker with custom options.
func NewMarkdownChunkerWithOptions(opts MarkdownChunkerOptions) *MarkdownChunker {
	if opts.MaxChunkChars == 0 {
		opts.MaxChunkChars = DefaultMaxChunkChars
	}
	return &MarkdownChunker{options: opts}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".mdx", ".txt"}
}

// line is one source line with its byte range in the document.
// end excludes the trailing newline.
type line struct {
	start int
	end   int
	text  string
}

// section groups the lines under one header.
type section struct {
	headerPath string
	lines      []line
}

// Chunk splits a markdown document into chunks. Each chunk's content
// is an exact byte range of the original document, and its citation is
// derived from that range.
func (c *MarkdownChunker) Chunk(ctx context.Context, doc *Document) ([]*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(doc.Content)) == 0 {
		return nil, nil
	}

	table := position.BuildLineOffsets(string(doc.Content))
	sections := parseSections(splitLines(doc.Content))

	var chunks []*Chunk
	seq := 0
	for _, sec := range sections {
		for _, rng := range c.splitSection(sec.lines) {
			chunk := buildChunk(doc, table, sec.headerPath, sec.lines, rng, seq)
			if chunk == nil {
				continue
			}
			chunks = append(chunks, chunk)
			seq++
		}
	}

	return chunks, nil
}

// splitLines breaks content into lines with byte ranges.
func splitLines(content []byte) []line {
	var lines []line
	start := 0
	for i, b := range content {
		if b == '\n' {
			lines = append(lines, line{start: start, end: i, text: string(content[start:i])})
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, line{start: start, end: len(content), text: string(content[start:])})
	}
	return lines
}

// parseSections groups lines into header-delimited sections. Lines
// before the first header form a preamble section with no header path.
func parseSections(lines []line) []*section {
	var sections []*section
	headerStack := make([]string, 6)

	current := &section{}
	for _, ln := range lines {
		if match := headerPattern.FindStringSubmatch(ln.text); match != nil {
			if len(current.lines) > 0 {
				sections = append(sections, current)
			}

			level := len(match[1])
			title := strings.TrimSpace(match[2])

			headerStack[level-1] = title
			for i := level; i < 6; i++ {
				headerStack[i] = ""
			}

			var pathParts []string
			for i := 0; i < level; i++ {
				if headerStack[i] != "" {
					pathParts = append(pathParts, headerStack[i])
				}
			}

			current = &section{headerPath: strings.Join(pathParts, " > ")}
		}
		current.lines = append(current.lines, ln)
	}
	if len(current.lines) > 0 {
		sections = append(sections, current)
	}

	return sections
}

// lineRange is a half-open range of line indices within a section.
type lineRange struct {
	from, to int
}

// splitSection yields one range per chunk. Small sections stay whole;
// large ones split at paragraph boundaries.
func (c *MarkdownChunker) splitSection(lines []line) []lineRange {
	if len(lines) == 0 {
		return nil
	}

	size := lines[len(lines)-1].end - lines[0].start
	if size <= c.options.MaxChunkChars {
		return []lineRange{{from: 0, to: len(lines)}}
	}

	paragraphs := paragraphRanges(lines)
	var ranges []lineRange
	var cur *lineRange
	for _, p := range paragraphs {
		pSize := lines[p.to-1].end - lines[p.from].start
		if cur == nil {
			r := p
			cur = &r
			continue
		}
		curSize := lines[cur.to-1].end - lines[cur.from].start
		if curSize+pSize > c.options.MaxChunkChars {
			ranges = append(ranges, *cur)
			r := p
			cur = &r
			continue
		}
		cur.to = p.to
	}
	if cur != nil {
		ranges = append(ranges, *cur)
	}
	return ranges
}

// paragraphRanges groups contiguous non-blank lines.
func paragraphRanges(lines []line) []lineRange {
	var ranges []lineRange
	start := -1
	for i, ln := range lines {
		blank := strings.TrimSpace(ln.text) == ""
		if blank {
			if start >= 0 {
				ranges = append(ranges, lineRange{from: start, to: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		ranges = append(ranges, lineRange{from: start, to: len(lines)})
	}
	return ranges
}

// buildChunk materializes one chunk from a line range, trimming blank
// edge lines so the byte range covers only real content.
func buildChunk(doc *Document, table []int, headerPath string, lines []line, rng lineRange, seq int) *Chunk {
	from, to := rng.from, rng.to
	for from < to && strings.TrimSpace(lines[from].text) == "" {
		from++
	}
	for to > from && strings.TrimSpace(lines[to-1].text) == "" {
		to--
	}
	if from >= to {
		return nil
	}

	start := lines[from].start
	end := lines[to-1].end
	if end <= start {
		return nil
	}

	span := position.OffsetsToPositions(start, end-1, table)

	return &Chunk{
		ID:          generateChunkID(doc.Collection, doc.Path, start),
		Collection:  doc.Collection,
		DocPath:     doc.Path,
		Content:     string(doc.Content[start:end]),
		StartOffset: start,
		EndOffset:   end,
		Citation:    span,
		Seq:         seq,
		HeaderPath:  headerPath,
	}
}

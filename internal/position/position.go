// Package position converts flat character offsets in raw document text
// into 1-based line/column citation coordinates.
//
// Offset tables are built once per document at ingestion time and shared
// read-only across any number of concurrent lookups, so stamping citations
// on every chunk of a large document never rescans the text.
package position

import "fmt"

// Position is a human-facing citation coordinate. Line and Col are 1-based.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Span is a citation range. Both endpoints name cited characters, so
// End is the position of the last character in the range rather than
// one past it.
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// String renders the span in the citation format attached to answers,
// e.g. "12:3-14:9".
func (s Span) String() string {
	return s.Start.String() + "-" + s.End.String()
}

// BuildLineOffsets scans content once and returns the offset at which each
// line begins. Offset 0 is always the start of line 1; the offset after each
// '\n' starts the next line. Empty content yields [0].
//
// Only '\n' is treated as a line separator. A preceding '\r' is not stripped
// and counts as an ordinary character in column arithmetic. Downstream
// consumers depend on raw-offset fidelity, so CRLF input is deliberately not
// normalized here.
func BuildLineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// OffsetToPosition maps a flat character offset to a line/column coordinate
// using binary search over the offset table.
//
// Edge policies, all intentional:
//   - negative offsets clamp to (1,1)
//   - an empty or nil table yields (1,1) rather than failing
//   - offsets past the end of content are not clamped; they extrapolate
//     against the last known line start, so the column can exceed the real
//     line length. Callers needing strict bounds must check independently.
func OffsetToPosition(offset int, table []int) Position {
	if len(table) == 0 || offset < 0 {
		return Position{Line: 1, Col: 1}
	}

	// Greatest table entry <= offset.
	lo, hi := 0, len(table)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if table[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	return Position{
		Line: lo + 1,
		Col:  offset - table[lo] + 1,
	}
}

// OffsetsToPositions maps a pair of offsets to a citation span. The two
// lookups are independent; end < start is not validated here. Callers
// holding a half-open range [start, end) pass end-1 so the span's End
// names the last cited character.
func OffsetsToPositions(start, end int, table []int) Span {
	return Span{
		Start: OffsetToPosition(start, table),
		End:   OffsetToPosition(end, table),
	}
}

package instrument

import (
	"sort"
	"strings"
)

// LineAt returns the 1-indexed line containing the byte offset.
//
// Each line counts its bytes plus one for the terminating newline. An offset
// past the end of the text maps to the last line.
func LineAt(src string, offset int) int {
	cumulative := 0
	lines := splitLines(src)
	for i, line := range lines {
		cumulative += len(line) + 1
		if offset < cumulative {
			return i + 1
		}
	}
	return max(len(lines), 1)
}

// splitLines splits on '\n'. A single trailing newline does not open a new line.
func splitLines(src string) []string {
	if src == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(src, "\n"), "\n")
}

// LineIndex answers LineAt queries for one source text in logarithmic time.
type LineIndex struct {
	ends []int // cumulative end offset of each line, exclusive
}

// NewLineIndex precomputes the line boundaries of src.
func NewLineIndex(src string) *LineIndex {
	lines := splitLines(src)
	ends := make([]int, len(lines))
	cumulative := 0
	for i, line := range lines {
		cumulative += len(line) + 1
		ends[i] = cumulative
	}
	return &LineIndex{ends: ends}
}

// Line returns the same value as LineAt for the indexed source.
func (x *LineIndex) Line(offset int) int {
	i := sort.Search(len(x.ends), func(i int) bool {
		return offset < x.ends[i]
	})
	if i == len(x.ends) {
		return max(len(x.ends), 1)
	}
	return i + 1
}

// Lines reports how many lines the indexed source has.
func (x *LineIndex) Lines() int {
	return len(x.ends)
}

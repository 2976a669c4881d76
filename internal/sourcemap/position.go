package sourcemap

import (
	"sort"
	"unicode/utf8"
)

// LineIndex converts byte offsets of one text to line/column pairs.
// Line starts are computed once so lookups are a binary search.
type LineIndex struct {
	text       string
	lineStarts []int // byte offset of each line start
}

// NewLineIndex creates a LineIndex for text. LF, CRLF and lone CR all end a line.
func NewLineIndex(text string) *LineIndex {
	idx := &LineIndex{
		text:       text,
		lineStarts: []int{0},
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			idx.addLineStart(i + 1)
		case '\n':
			idx.addLineStart(i + 1)
		}
	}

	return idx
}

func (idx *LineIndex) addLineStart(offset int) {
	if offset < len(idx.text) {
		idx.lineStarts = append(idx.lineStarts, offset)
	}
}

// Text returns the indexed text.
func (idx *LineIndex) Text() string {
	return idx.text
}

// LineCount returns the number of lines in the text.
func (idx *LineIndex) LineCount() int {
	return len(idx.lineStarts)
}

// lineOf returns the 0-based line containing offset, with offset clamped
// into the text.
func (idx *LineIndex) lineOf(offset int) (line, clamped int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(idx.text) {
		offset = len(idx.text)
	}
	line = sort.Search(len(idx.lineStarts), func(i int) bool {
		return idx.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return line, offset
}

// ByteOffsetToLineColumn converts a byte offset to a 0-indexed line and
// byte column.
func (idx *LineIndex) ByteOffsetToLineColumn(offset int) (line, col int) {
	line, offset = idx.lineOf(offset)
	return line, offset - idx.lineStarts[line]
}

// ByteOffsetToLineColumnUTF16 is ByteOffsetToLineColumn with the column
// counted in UTF-16 code units, as Source Map v3 requires.
func (idx *LineIndex) ByteOffsetToLineColumnUTF16(offset int) (line, col int) {
	line, offset = idx.lineOf(offset)
	start := idx.lineStarts[line]
	for i := start; i < offset; {
		r, size := utf8.DecodeRuneInString(idx.text[i:])
		if r >= 0x10000 {
			col += 2
		} else {
			col++
		}
		i += size
	}
	return line, col
}

// LineColumnToByteOffset converts a 0-indexed line and byte column back to
// a byte offset, clamped into the text.
func (idx *LineIndex) LineColumnToByteOffset(line, col int) int {
	if line < 0 {
		line = 0
	}
	if line >= len(idx.lineStarts) {
		line = len(idx.lineStarts) - 1
	}

	offset := idx.lineStarts[line] + col
	if offset < 0 {
		return 0
	}
	if offset > len(idx.text) {
		return len(idx.text)
	}
	return offset
}

// Position is a 1-based line/column location in some text, together with
// the byte offset it was derived from.
type Position struct {
	Offset int
	Line   int
	Column int
}

// PositionAt returns the 1-based position of offset.
func (idx *LineIndex) PositionAt(offset int) Position {
	line, col := idx.ByteOffsetToLineColumn(offset)
	_, clamped := idx.lineOf(offset)
	return Position{Offset: clamped, Line: line + 1, Column: col + 1}
}

package sourcemap

import "sort"

// EditorBlocks names the top-level blocks that only matter to an authoring
// tool. They are cut out of the source before compilation.
var EditorBlocks = []string{"EditorProperties", "EditorMacros"}

// excision records text removed from the source. At is the offset in the
// excised text where the removed bytes used to start.
type excision struct {
	At     int
	Length int
}

// ParsingContext holds a shader source with its editor blocks removed and
// translates offsets in the reduced text back to the original source.
type ParsingContext struct {
	original string
	text     string
	cuts     []excision // sorted by At
	index    *LineIndex
}

// NewParsingContext removes every editor block from source. Blocks are
// matched as whole words outside comments and string literals, followed by
// a brace-balanced body.
func NewParsingContext(source string) *ParsingContext {
	ctx := &ParsingContext{
		original: source,
		index:    NewLineIndex(source),
	}

	var out []byte
	removed := 0
	last := 0
	i := 0
	for i < len(source) {
		if skip := SkipTrivia(source, i); skip > i {
			i = skip
			continue
		}
		if !isWordStart(source, i) {
			i++
			continue
		}

		end := i
		for end < len(source) && isWordByte(source[end]) {
			end++
		}
		word := source[i:end]
		if isEditorBlock(word) {
			if stop := blockEnd(source, end); stop > 0 {
				if out == nil {
					out = make([]byte, 0, len(source))
				}
				out = append(out, source[last:i]...)
				ctx.cuts = append(ctx.cuts, excision{At: i - removed, Length: stop - i})
				removed += stop - i
				last = stop
				i = stop
				continue
			}
		}
		i = end
	}

	if out == nil {
		ctx.text = source
	} else {
		out = append(out, source[last:]...)
		ctx.text = string(out)
	}
	return ctx
}

// Text returns the source with editor blocks removed.
func (c *ParsingContext) Text() string {
	return c.text
}

// Original returns the unmodified source.
func (c *ParsingContext) Original() string {
	return c.original
}

// Excised reports whether any editor block was removed.
func (c *ParsingContext) Excised() bool {
	return len(c.cuts) > 0
}

// OriginalOffset maps an offset in Text() to the offset in Original().
func (c *ParsingContext) OriginalOffset(offset int) int {
	// Every cut whose position is at or before offset shifts it right.
	n := sort.Search(len(c.cuts), func(i int) bool {
		return c.cuts[i].At > offset
	})
	for _, cut := range c.cuts[:n] {
		offset += cut.Length
	}
	return offset
}

// PositionAt returns the 1-based line/column in Original() of an offset
// in Text().
func (c *ParsingContext) PositionAt(offset int) Position {
	return c.index.PositionAt(c.OriginalOffset(offset))
}

// LineIndex returns the line index of Original().
func (c *ParsingContext) LineIndex() *LineIndex {
	return c.index
}

func isEditorBlock(word string) bool {
	for _, name := range EditorBlocks {
		if word == name {
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isWordStart(s string, i int) bool {
	c := s[i]
	if c != '_' && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
		return false
	}
	return i == 0 || !isWordByte(s[i-1])
}

// SkipTrivia returns the offset after a comment or string literal starting
// at i, or i when there is none.
func SkipTrivia(s string, i int) int {
	switch {
	case s[i] == '/' && i+1 < len(s) && s[i+1] == '/':
		for i < len(s) && s[i] != '\n' {
			i++
		}
		return i
	case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
		i += 2
		for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
			i++
		}
		if i+1 >= len(s) {
			return len(s)
		}
		return i + 2
	case s[i] == '"':
		i++
		for i < len(s) && s[i] != '"' && s[i] != '\n' {
			if s[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(s) {
			return len(s)
		}
		if s[i] == '"' {
			i++
		}
		return i
	}
	return i
}

// blockEnd returns the offset after the brace-balanced block that follows
// start (after optional whitespace), or -1 if there is no such block.
func blockEnd(s string, start int) int {
	i := start
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n') {
		i++
	}
	if i >= len(s) || s[i] != '{' {
		return -1
	}

	depth := 0
	for i < len(s) {
		if skip := SkipTrivia(s, i); skip > i {
			i = skip
			continue
		}
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return -1
}

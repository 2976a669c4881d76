package diagnostic

import (
	"errors"
	"fmt"
	"strings"
)

// SourceFunc returns the original text of a block ("" for the shader
// source itself), or false when the block is unknown.
type SourceFunc func(block string) (string, bool)

// Format renders err with source context. Errors with a known position get
// the offending line and a caret under the reported column.
func Format(err error, sources SourceFunc) string {
	var list List
	var single *Error
	switch {
	case errors.As(err, &list):
	case errors.As(err, &single):
		list = List{single}
	default:
		return err.Error() + "\n"
	}

	var sb strings.Builder
	for _, e := range list {
		sb.WriteString(FormatError(e, sources))
	}
	return sb.String()
}

// FormatError renders a single error with source context.
func FormatError(e *Error, sources SourceFunc) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteByte('\n')

	if e.Pos.Line < 1 || sources == nil {
		return sb.String()
	}
	text, ok := sources(e.Block)
	if !ok {
		return sb.String()
	}

	line := sourceLine(text, e.Pos.Line)
	if line == "" {
		return sb.String()
	}
	fmt.Fprintf(&sb, "    %s\n", line)

	// Tabs are kept so the caret lines up under the same indentation.
	pad := make([]byte, 0, max(e.Pos.Column-1, 0))
	for i := 0; i < e.Pos.Column-1 && i < len(line); i++ {
		if line[i] == '\t' {
			pad = append(pad, '\t')
		} else {
			pad = append(pad, ' ')
		}
	}
	sb.WriteString("    ")
	sb.Write(pad)
	sb.WriteString("^\n")
	return sb.String()
}

// sourceLine returns the 1-based line of text without its terminator.
func sourceLine(text string, line int) string {
	for i := 1; i < line; i++ {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			return ""
		}
		text = text[nl+1:]
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[:nl]
	}
	return strings.TrimRight(text, "\r")
}

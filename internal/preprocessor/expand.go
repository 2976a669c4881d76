package preprocessor

import (
	"maps"
	"slices"
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
)

// hideSet holds the macros being expanded. A name in the set is left as
// is, which stops self and mutual recursion.
type hideSet map[string]struct{}

func (h hideSet) with(name string) hideSet {
	ret := make(hideSet, len(h)+1)
	for k := range h {
		ret[k] = struct{}{}
	}
	ret[name] = struct{}{}
	return ret
}

// expandCall expands macro m whose name ends at nameEnd in text. For a
// function-like macro not followed by '(' nothing matches and the name is
// kept. callEnd is the offset after the consumed call.
func (p *Preprocessor) expandCall(m *Macro, text string, nameEnd int, hide hideSet, depth int) (expansion string, callEnd int, matched bool, err error) {
	if depth >= MaxExpansionDepth {
		return "", 0, false, diagnostic.New(diagnostic.MacroRecursionError,
			"expansion of %s nested deeper than %d macros", m.Name, MaxExpansionDepth)
	}

	var args []string
	callEnd = nameEnd
	if m.FunctionLike {
		open := skipSpace(text, nameEnd)
		if open >= len(text) || text[open] != '(' {
			return "", nameEnd, false, nil
		}
		raw, end, ok := splitArgs(text, open)
		if !ok {
			return "", 0, false, diagnostic.New(diagnostic.MacroArityError,
				"unterminated argument list in call to %s", m.Name)
		}
		callEnd = end

		if len(m.Params) == 0 && len(raw) == 1 && strings.TrimSpace(raw[0]) == "" {
			raw = nil
		}
		if len(raw) != len(m.Params) {
			return "", 0, false, diagnostic.New(diagnostic.MacroArityError,
				"macro %s expects %d arguments, got %d", m.Name, len(m.Params), len(raw))
		}

		args = make([]string, len(raw))
		for i, a := range raw {
			args[i], err = p.expandText(strings.TrimSpace(stripComments(a)), hide, depth+1)
			if err != nil {
				return "", 0, false, err
			}
		}
	}

	body, err := m.substitute(args)
	if err != nil {
		return "", 0, false, err
	}
	expansion, err = p.expandText(body, hide.with(m.Name), depth+1)
	if err != nil {
		return "", 0, false, err
	}
	return expansion, callEnd, true, nil
}

// expandText expands every macro in text that is not hidden.
func (p *Preprocessor) expandText(text string, hide hideSet, depth int) (string, error) {
	var sb strings.Builder
	run := 0
	i := 0
	for i < len(text) {
		if end := sourcemap.SkipTrivia(text, i); end > i {
			i = end
			continue
		}
		c := text[i]
		switch {
		case isDigit(c):
			for i < len(text) && (isIdentByte(text[i]) || text[i] == '.') {
				i++
			}
		case isIdentStart(c):
			end := i
			for end < len(text) && isIdentByte(text[end]) {
				end++
			}
			m, ok := p.macros[text[i:end]]
			if _, hidden := hide[text[i:end]]; !ok || hidden {
				i = end
				continue
			}
			expansion, callEnd, matched, err := p.expandCall(m, text, end, hide, depth)
			if err != nil {
				return "", err
			}
			if !matched {
				i = end
				continue
			}
			sb.WriteString(text[run:i])
			sb.WriteString(expansion)
			run = callEnd
			i = callEnd
		default:
			i++
		}
	}
	if run == 0 {
		return text, nil
	}
	sb.WriteString(text[run:])
	return sb.String(), nil
}

// splitArgs splits the parenthesized argument list opening at text[open]
// on top-level commas. end is the offset after the closing ')'.
func splitArgs(text string, open int) (args []string, end int, ok bool) {
	depth := 0
	start := open + 1
	i := open
	for i < len(text) {
		if skip := sourcemap.SkipTrivia(text, i); skip > i {
			i = skip
			continue
		}
		switch text[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				args = append(args, text[start:i])
				return args, i + 1, true
			}
		case ',':
			if depth == 1 {
				args = append(args, text[start:i])
				start = i + 1
			}
		}
		i++
	}
	return nil, 0, false
}

// errorAt positions err at offset of block unless it already has a
// position, and records the enclosing pass.
func (p *Preprocessor) errorAt(err error, block string, offset int, pass string) error {
	e, ok := err.(*diagnostic.Error)
	if !ok {
		return err
	}
	if e.Pos.Line == 0 {
		e.Block = block
		e.Pos = p.position(block, offset)
	}
	return e.InPass(pass)
}

func (p *Preprocessor) position(block string, offset int) sourcemap.Position {
	if block == sourcemap.MainBlock && p.locate != nil {
		return p.locate(offset)
	}
	if idx, ok := p.lines[block]; ok {
		return idx.PositionAt(offset)
	}
	return sourcemap.Position{Offset: offset}
}

// ----------------------------------------------------------------------------
// Character helpers
// ----------------------------------------------------------------------------

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func skipSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\r' || text[i] == '\n') {
		i++
	}
	return i
}

// directiveEnd returns the end of the directive line starting at i,
// following backslash continuations. A trailing '\r' is not included.
func directiveEnd(text string, i int) int {
	for i < len(text) {
		if text[i] == '\n' {
			if i > 0 && text[i-1] == '\\' {
				i++
				continue
			}
			if i > 0 && text[i-1] == '\r' {
				if i > 1 && text[i-2] == '\\' {
					i++
					continue
				}
				return i - 1
			}
			return i
		}
		i++
	}
	return len(text)
}

// stringAfter returns the string literal following optional whitespace.
func stringAfter(text string, i int) (string, bool) {
	i = skipSpace(text, i)
	if i >= len(text) || text[i] != '"' {
		return "", false
	}
	end := strings.IndexByte(text[i+1:], '"')
	if end < 0 {
		return "", false
	}
	return text[i+1 : i+1+end], true
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

// Package preprocessor expands macros and splices shader chunks.
//
// Processing works on text, before scanning:
// - #define / #undef maintain the macro table; the directive lines stay
//   in the output so the GPU compiler can still test them with #ifdef
// - #if, #ifdef, #ifndef, #elif, #else and #endif are evaluated against the
//   macro table and removed together with their inactive branches;
//   conditions on GL_ and __ names are left to the GPU compiler
// - macro names in ordinary text are expanded, skipping comments and
//   string literals
// - #include "chunk" is replaced by the preprocessed chunk, once per scope:
//   a chunk spliced at Shader level, or in an enclosing SubShader or Pass,
//   is not spliced again
// - every other directive (#include <chunk>, #version, ...) is kept
//
// A directive must be the first item on its line.
//
// A SegmentMap records where every byte of the output came from.
package preprocessor

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/logger"
	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
)

// MaxExpansionDepth bounds nested macro expansion.
const MaxExpansionDepth = 64

// Options configures a Preprocessor.
type Options struct {
	// Defines seeds the macro table. Keys are names, optionally with a
	// parameter list ("LERP(a,b,t)"); values are bodies.
	Defines map[string]string

	// Chunks resolves #include "key". Nil means no chunks are known.
	Chunks *ChunkCache

	// Locate converts an offset of the main text to a position. Nil means
	// positions are computed on the main text itself.
	Locate func(offset int) sourcemap.Position
}

// Result is the output of Process.
type Result struct {
	Text     string
	Map      *sourcemap.SegmentMap
	Macros   map[string]*Macro
	Included []string // chunk keys spliced, in order, once per splice
}

// includeKey identifies a chunk spliced into one scope.
type includeKey struct {
	scope int
	key   string
}

// Preprocessor holds the macro table and include state of one compile.
type Preprocessor struct {
	macros   map[string]*Macro
	chunks   *ChunkCache
	locate   func(int) sourcemap.Position
	included map[includeKey]bool
	scopes   int // last scope id handed out; 0 is the Shader level
	order    []string
	lines    map[string]*sourcemap.LineIndex
	log      *slog.Logger
}

// New creates a Preprocessor. Malformed Defines entries are an error.
func New(opts Options) (*Preprocessor, error) {
	p := &Preprocessor{
		macros:   make(map[string]*Macro),
		chunks:   opts.Chunks,
		locate:   opts.Locate,
		included: make(map[includeKey]bool),
		lines:    make(map[string]*sourcemap.LineIndex),
		log:      logger.Get(),
	}
	if p.chunks == nil {
		p.chunks = NewChunkCache(nil)
	}

	for _, name := range sortedKeys(opts.Defines) {
		m, ok, err := parseDefine("#define " + name + " " + opts.Defines[name])
		if err != nil || !ok {
			return nil, fmt.Errorf("invalid predefined macro %q", name)
		}
		p.macros[m.Name] = m
	}
	return p, nil
}

// Process preprocesses the main shader text.
func Process(text string, opts Options) (*Result, error) {
	p, err := New(opts)
	if err != nil {
		return nil, err
	}
	return p.Process(text)
}

// Process preprocesses the main shader text.
func (p *Preprocessor) Process(text string) (*Result, error) {
	out := &output{segs: &sourcemap.SegmentMap{}}
	out.buf.Grow(len(text))
	p.lines[sourcemap.MainBlock] = sourcemap.NewLineIndex(text)

	if err := p.block(sourcemap.MainBlock, text, out, nil); err != nil {
		return nil, err
	}

	p.log.Debug("preprocessed", "bytes", out.buf.Len(), "macros", len(p.macros), "chunks", len(p.order))
	return &Result{
		Text:     out.buf.String(),
		Map:      out.segs,
		Macros:   maps.Clone(p.macros),
		Included: p.order,
	}, nil
}

// Macros returns the current macro table.
func (p *Preprocessor) Macros() map[string]*Macro {
	return p.macros
}

// ----------------------------------------------------------------------------
// Output
// ----------------------------------------------------------------------------

type output struct {
	buf  strings.Builder
	segs *sourcemap.SegmentMap
}

func (o *output) copy(block, text string, start, end int) {
	if end <= start {
		return
	}
	o.segs.Copy(o.buf.Len(), block, start, end-start)
	o.buf.WriteString(text[start:end])
}

func (o *output) replace(block, expansion string, origStart, origEnd int) {
	gen := o.buf.Len()
	o.buf.WriteString(expansion)
	o.segs.Replace(gen, o.buf.Len(), block, origStart, origEnd)
}

// ----------------------------------------------------------------------------
// Block scanning
// ----------------------------------------------------------------------------

type scopeKind uint8

const (
	scopeSubShader scopeKind = iota
	scopePass
)

// openScope is a SubShader or Pass whose '{' has been seen.
type openScope struct {
	kind      scopeKind
	name      string
	id        int
	depth     int
	inherited bool // opened by the block that included this one
}

// scanState tracks the enclosing scopes and conditionals while a block is
// scanned.
type scanState struct {
	depth   int
	pending *openScope // scope keyword seen, waiting for its '{'
	scopes  []openScope
	conds   condStack
}

func (s *scanState) pass() string {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i].kind == scopePass {
			return s.scopes[i].name
		}
	}
	return ""
}

func (s *scanState) scope() int {
	if n := len(s.scopes); n > 0 {
		return s.scopes[n-1].id
	}
	return 0
}

// block copies text into out, expanding macros and handling directives.
// parent holds the scopes open where the block is included.
func (p *Preprocessor) block(block, text string, out *output, parent []openScope) error {
	st := &scanState{}
	for _, sc := range parent {
		sc.inherited = true
		st.scopes = append(st.scopes, sc)
	}
	run := 0 // start of the pending verbatim run
	lineStart := true

	flush := func(end int) {
		out.copy(block, text, run, end)
		run = end
	}

	i := 0
	for i < len(text) {
		c := text[i]

		switch {
		case c == '\n':
			lineStart = true
			i++
			continue

		case c == ' ' || c == '\t' || c == '\r':
			i++
			continue

		case c == '#' && lineStart:
			end := directiveEnd(text, i)
			line := text[i:end]

			wasActive := st.conds.active()
			handled, keep, err := st.conds.apply(p, line, i)
			if err != nil {
				return p.errorAt(err, block, i, st.pass())
			}
			switch {
			case handled:
				if !keep {
					if wasActive {
						flush(i)
					}
					run = end
				}
			case !wasActive:
			default:
				if key, ok := parseInclude(line); ok {
					flush(i)
					if err := p.include(key, block, i, st, out); err != nil {
						return err
					}
					run = end // the directive is replaced, its newline is kept
				} else if err := p.directive(block, line, i, st); err != nil {
					return err
				}
			}
			i = end
			continue
		}
		lineStart = false

		if end := sourcemap.SkipTrivia(text, i); end > i {
			i = end
			continue
		}
		if !st.conds.active() {
			i++
			continue
		}

		switch {
		case c == '{':
			st.depth++
			if st.pending != nil {
				p.scopes++
				sc := *st.pending
				sc.id, sc.depth = p.scopes, st.depth
				st.scopes = append(st.scopes, sc)
				st.pending = nil
			}
			i++

		case c == '}':
			if n := len(st.scopes); n > 0 && !st.scopes[n-1].inherited && st.scopes[n-1].depth == st.depth {
				st.scopes = st.scopes[:n-1]
			}
			st.depth--
			i++

		case c == ';':
			st.pending = nil
			i++

		case isDigit(c):
			// numeric literals with suffixes are never macro names
			for i < len(text) && (isIdentByte(text[i]) || text[i] == '.') {
				i++
			}

		case isIdentStart(c):
			end := i
			for end < len(text) && isIdentByte(text[end]) {
				end++
			}
			word := text[i:end]

			switch word {
			case "Pass", "SubShader":
				if name, ok := stringAfter(text, end); ok {
					kind := scopePass
					if word == "SubShader" {
						kind = scopeSubShader
					}
					st.pending = &openScope{kind: kind, name: name}
				}
			}

			m, ok := p.macros[word]
			if !ok {
				i = end
				continue
			}
			expansion, callEnd, matched, err := p.expandCall(m, text, end, hideSet{}, 0)
			if err != nil {
				return p.errorAt(err, block, i, st.pass())
			}
			if !matched {
				i = end
				continue
			}
			flush(i)
			out.replace(block, expansion, i, callEnd)
			run = callEnd
			i = callEnd

		default:
			i++
		}
	}

	if f, ok := st.conds.unclosed(); ok {
		return p.errorAt(diagnostic.New(diagnostic.ParseError,
			"%s is never closed by #endif", f.directive), block, f.at, st.pass())
	}
	flush(len(text))
	return nil
}

// directive applies a #define or #undef line starting at offset start.
// Other directives are left in the text untouched.
func (p *Preprocessor) directive(block, line string, start int, st *scanState) error {
	switch directiveName(line) {
	case "define":
		m, ok, err := parseDefine(line)
		if err != nil || !ok {
			return nil // left for the GPU compiler to reject
		}
		if prev, exists := p.macros[m.Name]; exists {
			if prev.Equal(m) {
				return nil
			}
			return p.errorAt(diagnostic.New(diagnostic.MacroRedefinitionError,
				"macro %s redefined with a different body", m.Name), block, start, st.pass())
		}
		p.macros[m.Name] = m

	case "undef":
		if name, ok := parseUndef(line); ok {
			delete(p.macros, name)
		}
	}
	return nil
}

// spliced reports whether key was already spliced into the current scope
// or one enclosing it.
func (p *Preprocessor) spliced(key string, st *scanState) bool {
	if p.included[includeKey{0, key}] {
		return true
	}
	for _, sc := range st.scopes {
		if p.included[includeKey{sc.id, key}] {
			return true
		}
	}
	return false
}

func (p *Preprocessor) include(key, block string, at int, st *scanState, out *output) error {
	if p.spliced(key, st) {
		return nil
	}
	text, ok := p.chunks.Get(key)
	if !ok {
		return p.errorAt(diagnostic.New(diagnostic.UnresolvedIncludeError,
			"chunk %q not found", key), block, at, st.pass())
	}
	p.included[includeKey{st.scope(), key}] = true
	p.order = append(p.order, key)
	p.lines[key] = sourcemap.NewLineIndex(text)

	sub := &output{segs: &sourcemap.SegmentMap{}}
	if err := p.block(key, text, sub, st.scopes); err != nil {
		if e, ok := err.(*diagnostic.Error); ok {
			e.InPass(st.pass())
		}
		return err
	}
	delta := out.buf.Len()
	out.buf.WriteString(sub.buf.String())
	out.segs.Splice(sub.segs, delta)
	return nil
}

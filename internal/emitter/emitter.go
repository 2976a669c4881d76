// Package emitter writes the GLSL source of one pipeline stage.
//
// A stage source is built from the items visible to a pass:
// - a #define header for the compile's predefined macros
// - directives, with #include <chunk> replaced by the chunk text once
// - items reachable from the stage entry or from an included chunk, in order
// - the entry function renamed to main
//
// Attribute declarations only reach the vertex stage.
package emitter

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/gogpu/gputypes"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/dce"
	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/lexer"
	"github.com/HugoDaniel/shaderlab/internal/logger"
	"github.com/HugoDaniel/shaderlab/internal/preprocessor"
	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
)

// EntryName is the name every stage entry is emitted with.
const EntryName = "main"

// ErrMissingEntry is returned when no function carries the entry name.
var ErrMissingEntry = errors.New("entry function is not defined")

var includeRe = regexp2.MustCompile(
	`^[ \t]*#[ \t]*include[ \t]*<(?<key>[^>\r\n]+)>[ \t]*(?://.*)?\r?$`, regexp2.None)

// Options configures stage emission.
type Options struct {
	// Defines are written as #define lines ahead of the code.
	Defines map[string]string

	// Chunks resolves #include <key>. Nil means no chunks are known.
	Chunks *preprocessor.ChunkCache
}

// Emit builds the stage source from items, whose ranges refer to source.
// Errors other than ErrMissingEntry are *diagnostic.Error whose
// Pos.Offset is the offending item start in source.
func Emit(source string, items []*ast.Statement, entry string, stage gputypes.ShaderStage, opts Options) (gputypes.ShaderSourceGLSL, error) {
	out := gputypes.ShaderSourceGLSL{Stage: stage, Defines: maps.Clone(opts.Defines)}

	live := dce.Mark(items, entry, chunkRefs(source, items, opts.Chunks)...)
	if !live.EntryFound {
		return out, ErrMissingEntry
	}

	w := writer{chunks: opts.Chunks, included: make(map[string]bool)}
	for _, name := range slices.Sorted(maps.Keys(opts.Defines)) {
		w.line("#define " + name + " " + opts.Defines[name])
	}

	for i, st := range items {
		if !live.IsLive(i) {
			continue
		}
		text := st.Range.Text(source)

		switch st.Kind {
		case ast.StmtDirective:
			if key, ok := include(text); ok {
				if err := w.include(key); err != nil {
					err.Pos.Offset = st.Range.Start
					return out, err
				}
				continue
			}
		case ast.StmtDeclaration:
			if st.Qualifier == "attribute" && stage != gputypes.ShaderStageVertex {
				continue
			}
		case ast.StmtFunction:
			if st.Name == entry {
				start := st.NameRange.Start - st.Range.Start
				end := st.NameRange.End - st.Range.Start
				text = text[:start] + EntryName + text[end:]
			}
		}
		w.line(text)
	}

	out.Code = w.sb.String()
	logger.Get().Debug("stage emitted",
		"stage", stage.String(),
		"entry", entry,
		"items", len(items),
		"dead", live.Dead,
		"bytes", len(out.Code))
	return out, nil
}

// include returns the chunk key of an #include <key> line.
func include(line string) (string, bool) {
	m, err := includeRe.FindStringMatch(line)
	if err != nil || m == nil {
		return "", false
	}
	return m.GroupByName("key").String(), true
}

// chunkRefs returns the names used by the chunks that items include,
// following nested includes. Names a chunk defines itself are left out.
// Unknown chunks are skipped; the writer reports them.
func chunkRefs(source string, items []*ast.Statement, chunks *preprocessor.ChunkCache) []string {
	if chunks == nil {
		return nil
	}
	var used []string
	defined := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(key string)
	visit = func(key string) {
		if visited[key] {
			return
		}
		visited[key] = true
		text, ok := chunks.Get(key)
		if !ok {
			return
		}
		for _, line := range strings.Split(text, "\n") {
			if nested, ok := include(line); ok {
				visit(nested)
			}
		}
		defs, refs := chunkNames(text)
		for _, name := range defs {
			defined[name] = true
		}
		used = append(used, refs...)
	}

	for _, st := range items {
		if st.Kind != ast.StmtDirective {
			continue
		}
		if key, ok := include(st.Range.Text(source)); ok {
			visit(key)
		}
	}

	var roots []string
	seen := make(map[string]bool)
	for _, name := range used {
		if !defined[name] && !seen[name] {
			seen[name] = true
			roots = append(roots, name)
		}
	}
	return roots
}

// chunkNames splits the identifiers of chunk text, outside comments and
// strings, into the global names it declares and every other mention. A
// declared name follows another identifier at brace depth 0.
func chunkNames(text string) (defs, refs []string) {
	depth := 0
	afterIdent := false
	for i := 0; i < len(text); {
		if end := sourcemap.SkipTrivia(text, i); end > i {
			afterIdent = false
			i = end
			continue
		}
		c := text[i]
		switch {
		case lexer.IsIdentStart(c):
			end := i + 1
			for end < len(text) && lexer.IsIdentContinue(text[end]) {
				end++
			}
			if depth == 0 && afterIdent && declares(text, end) {
				defs = append(defs, text[i:end])
			} else {
				refs = append(refs, text[i:end])
			}
			afterIdent = true
			i = end
			continue
		case c >= '0' && c <= '9':
			for i < len(text) && lexer.IsIdentContinue(text[i]) {
				i++
			}
			afterIdent = false
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
			continue
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		}
		afterIdent = false
		i++
	}
	return defs, refs
}

// declares reports whether the name ending at i is being declared.
func declares(text string, i int) bool {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\r' || text[i] == '\n') {
		i++
	}
	return i < len(text) && strings.IndexByte("(;=[,{", text[i]) >= 0
}

type writer struct {
	sb       strings.Builder
	chunks   *preprocessor.ChunkCache
	included map[string]bool
}

func (w *writer) line(s string) {
	w.sb.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		w.sb.WriteByte('\n')
	}
}

// include writes a chunk once per stage, resolving its own includes.
func (w *writer) include(key string) *diagnostic.Error {
	if w.included[key] {
		return nil
	}
	w.included[key] = true

	var text string
	ok := false
	if w.chunks != nil {
		text, ok = w.chunks.Get(key)
	}
	if !ok {
		return diagnostic.New(diagnostic.UnresolvedIncludeError, "shader chunk <%s> not found", key)
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if nested, ok := include(strings.TrimRight(line, "\n")); ok {
			if err := w.include(nested); err != nil {
				return err
			}
			continue
		}
		w.line(line)
	}
	return nil
}

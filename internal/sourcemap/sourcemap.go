// Package sourcemap tracks where compiled shader text came from.
//
// It provides line indexes for offset/line conversion, the ParsingContext
// that strips editor-only blocks while remembering their positions, the
// segment map the preprocessor records while expanding macros and splicing
// includes, and a Source Map v3 generator over those segments.
//
// Source Map v3: https://sourcemaps.info/spec.html
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// SourceMap represents a Source Map v3.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Mapping is one decoded source map segment.
type Mapping struct {
	GenLine   int // 0-indexed
	GenCol    int // 0-indexed
	SrcIndex  int
	SrcLine   int // 0-indexed
	SrcCol    int // 0-indexed, UTF-16 units
	NameIndex int // -1 if no name
}

type source struct {
	name    string
	content string
	index   *LineIndex
}

// Generator builds a multi-source map incrementally. Mappings must be added
// in generated order.
type Generator struct {
	file          string
	sources       []source
	byName        map[string]int
	mappings      []Mapping
	names         map[string]int
	namesList     []string
	includeSource bool
}

// NewGenerator creates an empty generator for the generated file name.
func NewGenerator(file string) *Generator {
	return &Generator{
		file:   file,
		byName: make(map[string]int),
		names:  make(map[string]int),
	}
}

// IncludeSourceContent sets whether to embed sources in sourcesContent.
func (g *Generator) IncludeSourceContent(include bool) {
	g.includeSource = include
}

// AddSource registers an original text and returns its source index.
// Registering the same name twice returns the first index.
func (g *Generator) AddSource(name, content string) int {
	if i, ok := g.byName[name]; ok {
		return i
	}
	i := len(g.sources)
	g.sources = append(g.sources, source{name: name, content: content, index: NewLineIndex(content)})
	g.byName[name] = i
	return i
}

// AddMapping maps a generated line/column to a byte offset of source src.
func (g *Generator) AddMapping(genLine, genCol, src, srcOffset int, name string) {
	srcLine, srcCol := g.sources[src].index.ByteOffsetToLineColumnUTF16(srcOffset)
	m := Mapping{
		GenLine:   genLine,
		GenCol:    genCol,
		SrcIndex:  src,
		SrcLine:   srcLine,
		SrcCol:    srcCol,
		NameIndex: -1,
	}
	if name != "" {
		idx, ok := g.names[name]
		if !ok {
			idx = len(g.namesList)
			g.names[name] = idx
			g.namesList = append(g.namesList, name)
		}
		m.NameIndex = idx
	}
	g.mappings = append(g.mappings, m)
}

// Generate produces the final SourceMap.
func (g *Generator) Generate() *SourceMap {
	sm := &SourceMap{
		Version:  3,
		File:     g.file,
		Sources:  make([]string, len(g.sources)),
		Names:    g.namesList,
		Mappings: encodeMappings(g.mappings),
	}
	if sm.Names == nil {
		sm.Names = []string{}
	}
	for i, s := range g.sources {
		sm.Sources[i] = s.name
	}
	if g.includeSource {
		sm.SourcesContent = make([]string, len(g.sources))
		for i, s := range g.sources {
			sm.SourcesContent[i] = s.content
		}
	}
	return sm
}

// Block describes how a segment block maps onto a registered source.
type Block struct {
	Name    string
	Content string
	// ToOriginal converts a block offset to an offset in Content. Nil means
	// the offsets are already in Content.
	ToOriginal func(int) int
}

// FromSegments builds a source map of generated from the segments of m.
// Every segment start gets a mapping, and identity segments also get one at
// each generated line they cover.
func FromSegments(file, generated string, m *SegmentMap, blocks func(string) (Block, bool), includeSource bool) *SourceMap {
	g := NewGenerator(file)
	g.IncludeSourceContent(includeSource)
	gen := NewLineIndex(generated)

	type resolved struct {
		src   int
		toOrg func(int) int
	}
	seen := make(map[string]resolved)

	for _, s := range m.Segments() {
		r, ok := seen[s.Block]
		if !ok {
			b, found := blocks(s.Block)
			if !found {
				continue
			}
			r = resolved{src: g.AddSource(b.Name, b.Content), toOrg: b.ToOriginal}
			seen[s.Block] = r
		}
		orig := func(off int) int {
			if r.toOrg != nil {
				return r.toOrg(off)
			}
			return off
		}

		line, col := gen.ByteOffsetToLineColumn(s.GenStart)
		g.AddMapping(line, col, r.src, orig(s.OrigStart), "")
		if !s.Identity {
			continue
		}
		for off := s.GenStart; off < s.GenEnd; off++ {
			if generated[off] == '\n' && off+1 < s.GenEnd {
				l, c := gen.ByteOffsetToLineColumn(off + 1)
				g.AddMapping(l, c, r.src, orig(s.OrigStart+off+1-s.GenStart), "")
			}
		}
	}
	return g.Generate()
}

// encodeMappings delta-encodes mappings as VLQ segments.
func encodeMappings(mappings []Mapping) string {
	var buf strings.Builder

	prevGenCol := 0
	prevSrcIndex := 0
	prevSrcLine := 0
	prevSrcCol := 0
	prevNameIndex := 0
	currentLine := 0
	firstOnLine := true

	for _, m := range mappings {
		for currentLine < m.GenLine {
			buf.WriteByte(';')
			currentLine++
			prevGenCol = 0
			firstOnLine = true
		}
		if !firstOnLine {
			buf.WriteByte(',')
		}
		firstOnLine = false

		buf.WriteString(EncodeVLQ(m.GenCol - prevGenCol))
		buf.WriteString(EncodeVLQ(m.SrcIndex - prevSrcIndex))
		buf.WriteString(EncodeVLQ(m.SrcLine - prevSrcLine))
		buf.WriteString(EncodeVLQ(m.SrcCol - prevSrcCol))
		prevGenCol, prevSrcIndex, prevSrcLine, prevSrcCol = m.GenCol, m.SrcIndex, m.SrcLine, m.SrcCol

		if m.NameIndex >= 0 {
			buf.WriteString(EncodeVLQ(m.NameIndex - prevNameIndex))
			prevNameIndex = m.NameIndex
		}
	}

	return buf.String()
}

// DecodeMappings decodes a VLQ mappings string.
func DecodeMappings(mappings string) ([]Mapping, error) {
	var result []Mapping
	srcIndex, srcLine, srcCol, nameIndex := 0, 0, 0, 0

	for genLine, line := range strings.Split(mappings, ";") {
		genCol := 0
		for _, segment := range strings.Split(line, ",") {
			if segment == "" {
				continue
			}
			values, err := DecodeVLQSegment(segment)
			if err != nil {
				return nil, err
			}

			genCol += values[0]
			m := Mapping{GenLine: genLine, GenCol: genCol, NameIndex: -1}
			if len(values) >= 4 {
				srcIndex += values[1]
				srcLine += values[2]
				srcCol += values[3]
				m.SrcIndex, m.SrcLine, m.SrcCol = srcIndex, srcLine, srcCol
			}
			if len(values) >= 5 {
				nameIndex += values[4]
				m.NameIndex = nameIndex
			}
			result = append(result, m)
		}
	}

	return result, nil
}

// ToJSON returns the source map as a JSON string.
func (sm *SourceMap) ToJSON() string {
	data, _ := json.Marshal(sm)
	return string(data)
}

// ToDataURI returns the source map as a data URI for inline embedding.
func (sm *SourceMap) ToDataURI() string {
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(sm.ToJSON()))
}

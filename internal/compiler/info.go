package compiler

import (
	"path"
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/renderstate"
	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
)

// ShaderInfo is the compiled form of one shader.
type ShaderInfo struct {
	Name       string           `json:"name"`
	SubShaders []*SubShaderInfo `json:"subShaders"`

	// Preprocessed is the text the source map maps. Set only with
	// Options.SourceMap.
	Preprocessed string               `json:"preprocessed,omitempty"`
	SourceMap    *sourcemap.SourceMap `json:"sourceMap,omitempty"`
}

// SubShaderInfo groups the passes of one SubShader.
type SubShaderInfo struct {
	Name   string            `json:"name"`
	Tags   map[string]any    `json:"tags"`
	Passes []*ShaderPassInfo `json:"passes"`
}

// ShaderPassInfo is one compiled pass, a UsePass reference, or a builtin.
//
// A UsePass reference only carries its qualified Name and IsUsePass;
// Target is the compiled pass it resolved to. A builtin pass carries the
// builtin name and the registered shader.
type ShaderPassInfo struct {
	Name           string                   `json:"name"`
	IsUsePass      bool                     `json:"isUsePass"`
	Tags           map[string]any           `json:"tags,omitempty"`
	RenderStates   renderstate.RenderStates `json:"renderStates"`
	VertexEntry    string                   `json:"vertexEntry,omitempty"`
	FragmentEntry  string                   `json:"fragmentEntry,omitempty"`
	VertexSource   string                   `json:"vertexSource,omitempty"`
	FragmentSource string                   `json:"fragmentSource,omitempty"`
	Builtin        string                   `json:"builtin,omitempty"`

	BuiltinShader *ShaderInfo     `json:"-"`
	Target        *ShaderPassInfo `json:"-"`
}

// Resolved returns the pass to render: the UsePass target, or p itself.
func (p *ShaderPassInfo) Resolved() *ShaderPassInfo {
	if p.Target != nil {
		return p.Target
	}
	return p
}

// localName is the name other passes reference p by. A UsePass takes the
// last element of its target.
func (p *ShaderPassInfo) localName() string {
	if p.IsUsePass {
		return path.Base(p.Name)
	}
	return p.Name
}

// Pass finds a pass by "SubShader/Pass". The first match wins.
func (s *ShaderInfo) Pass(qualified string) (*ShaderPassInfo, bool) {
	sub, pass, ok := strings.Cut(qualified, "/")
	if !ok || strings.Contains(pass, "/") {
		return nil, false
	}
	for _, si := range s.SubShaders {
		if si.Name != sub {
			continue
		}
		for _, p := range si.Passes {
			if p.localName() == pass {
				return p, true
			}
		}
	}
	return nil, false
}

// PassCount returns the number of passes over every SubShader.
func (s *ShaderInfo) PassCount() int {
	n := 0
	for _, si := range s.SubShaders {
		n += len(si.Passes)
	}
	return n
}

// tags converts parsed tags to their JSON-ready values.
func tags(list []ast.Tag) map[string]any {
	m := make(map[string]any, len(list))
	for _, t := range list {
		m[t.Key] = tagValue(t.Value)
	}
	return m
}

func tagValue(v ast.Value) any {
	switch v.Kind {
	case ast.ValueBool:
		return v.Bool
	case ast.ValueInt:
		return int64(v.Number)
	case ast.ValueFloat:
		return v.Number
	case ast.ValueString, ast.ValueIdent:
		return v.Member
	case ast.ValueColor:
		return v.Color
	}
	return v.Text
}

package compiler

import (
	"errors"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/emitter"
	"github.com/HugoDaniel/shaderlab/internal/lexer"
	"github.com/HugoDaniel/shaderlab/internal/parser"
	"github.com/HugoDaniel/shaderlab/internal/preprocessor"
	"github.com/HugoDaniel/shaderlab/internal/renderstate"
	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
)

// unit is the state of one compile.
type unit struct {
	session *Session
	ctx     *sourcemap.ParsingContext
	chunks  *preprocessor.ChunkCache
	pre     *preprocessor.Result
	shader  *ast.Shader
	info    *ShaderInfo
	refs    []passRef
	lines   map[string]*sourcemap.LineIndex
}

// passRef links a UsePass result to the pass it was declared by.
type passRef struct {
	info *ShaderPassInfo
	pass *ast.Pass
}

func (u *unit) compile() (*ShaderInfo, error) {
	opts := u.session.opts

	pre, err := preprocessor.Process(u.ctx.Text(), preprocessor.Options{
		Defines: opts.Defines,
		Chunks:  u.chunks,
		Locate:  u.ctx.PositionAt,
	})
	if err != nil {
		return nil, err
	}
	u.pre = pre

	tokens, err := lexer.New(pre.Text).Tokenize()
	if err != nil {
		var lerr *lexer.Error
		if errors.As(err, &lerr) {
			return nil, u.locate(diagnostic.At(diagnostic.LexError, "",
				diagnostic.Position{Offset: lerr.Pos.Index}, "%s", lerr.Message))
		}
		return nil, err
	}

	cst, err := parser.Parse(pre.Text, tokens)
	if err != nil {
		return nil, u.relocate(err, "")
	}
	shader, err := parser.Visit(cst, u.session.arena)
	if err != nil {
		return nil, u.relocate(err, "")
	}
	u.shader = shader

	if err := u.checkBlocks(); err != nil {
		return nil, err
	}
	if err := u.build(); err != nil {
		return nil, err
	}
	if err := u.resolveUsePasses(); err != nil {
		return nil, err
	}

	if opts.SourceMap {
		u.info.Preprocessed = pre.Text
		u.info.SourceMap = sourcemap.FromSegments(opts.SourceMapOptions.File, pre.Text, pre.Map,
			u.block, opts.SourceMapOptions.IncludeSource)
	}
	return u.info, nil
}

// ----------------------------------------------------------------------------
// Passes
// ----------------------------------------------------------------------------

func (u *unit) build() error {
	shader := u.shader
	u.info = &ShaderInfo{Name: shader.Name}

	shaderStates, err := u.states(shader.RenderStates, "", shader.Blocks)
	if err != nil {
		return err
	}

	for _, sub := range shader.SubShaders {
		subStates, err := u.states(sub.RenderStates, "", sub.Blocks, shader.Blocks)
		if err != nil {
			return err
		}
		shared := sharedItems(shader, sub)

		si := &SubShaderInfo{Name: sub.Name, Tags: tags(sub.Tags)}
		for _, p := range sub.Passes {
			pi, err := u.pass(sub, p, shared, shaderStates, subStates)
			if err != nil {
				return err
			}
			si.Passes = append(si.Passes, pi)
		}
		u.info.SubShaders = append(u.info.SubShaders, si)
	}
	return nil
}

// sharedItems returns the Shader and SubShader items in source order.
func sharedItems(shader *ast.Shader, sub *ast.SubShader) []*ast.Statement {
	items := make([]*ast.Statement, 0, len(shader.Items)+len(sub.Items))
	items = append(items, shader.Items...)
	items = append(items, sub.Items...)
	slices.SortStableFunc(items, func(a, b *ast.Statement) int {
		return a.Range.Start - b.Range.Start
	})
	return items
}

func (u *unit) pass(sub *ast.SubShader, p *ast.Pass, shared []*ast.Statement, shaderStates, subStates renderstate.RenderStates) (*ShaderPassInfo, error) {
	if p.IsUsePass() {
		pi := &ShaderPassInfo{Name: p.UsePass, IsUsePass: true, RenderStates: renderstate.New()}
		u.refs = append(u.refs, passRef{info: pi, pass: p})
		return pi, nil
	}

	if p.Builtin != "" {
		b, ok := u.session.Builtin(p.Builtin)
		if !ok {
			return nil, u.errorAt(diagnostic.UnresolvedBuiltinError, p.Range, p.Name,
				"builtin shader %q is not registered", p.Builtin)
		}
		return &ShaderPassInfo{
			Name:          p.Name,
			Builtin:       p.Builtin,
			BuiltinShader: b,
			RenderStates:  renderstate.New(),
		}, nil
	}

	passStates, err := u.states(p.RenderStates, p.Name, p.Blocks, sub.Blocks, u.shader.Blocks)
	if err != nil {
		return nil, err
	}

	items := make([]*ast.Statement, 0, len(shared)+len(p.Items))
	items = append(items, shared...)
	items = append(items, p.Items...)

	vertex, err := u.stage(p, items, 0, gputypes.ShaderStageVertex)
	if err != nil {
		return nil, err
	}
	fragment, err := u.stage(p, items, 1, gputypes.ShaderStageFragment)
	if err != nil {
		return nil, err
	}

	return &ShaderPassInfo{
		Name:           p.Name,
		Tags:           tags(p.Tags),
		RenderStates:   renderstate.Merge(shaderStates, subStates, passStates),
		VertexEntry:    p.VertexEntry,
		FragmentEntry:  p.FragmentEntry,
		VertexSource:   vertex,
		FragmentSource: fragment,
	}, nil
}

// stage emits one stage of p. which is 0 for vertex and 1 for fragment.
func (u *unit) stage(p *ast.Pass, items []*ast.Statement, which int, stage gputypes.ShaderStage) (string, error) {
	entry := p.VertexEntry
	if which == 1 {
		entry = p.FragmentEntry
	}
	kind := strings.ToLower(stage.String())
	if entry == "" {
		return "", u.errorAt(diagnostic.ParseError, p.Range, p.Name, "pass declares no %s shader entry", kind)
	}

	out, err := emitter.Emit(u.pre.Text, items, entry, stage, emitter.Options{
		Defines: u.session.opts.Defines,
		Chunks:  u.chunks,
	})
	if errors.Is(err, emitter.ErrMissingEntry) {
		return "", u.errorAt(diagnostic.ParseError, p.EntryRanges[which], p.Name,
			"%s entry function %q is not defined", kind, entry)
	}
	if err != nil {
		return "", u.relocate(err, p.Name)
	}
	return out.Code, nil
}

// ----------------------------------------------------------------------------
// Render state
// ----------------------------------------------------------------------------

// states resolves the declarations of one level. Named blocks are looked
// up from the innermost level outward.
func (u *unit) states(decls []*ast.RenderStateDecl, pass string, levels ...[]*ast.RenderStateBlock) (renderstate.RenderStates, error) {
	rs := renderstate.New()
	lookup := func(category, name string) (*ast.RenderStateBlock, bool) {
		for _, blocks := range levels {
			for _, b := range blocks {
				if b.Name == name && b.Category == category {
					return b, true
				}
			}
		}
		return nil, false
	}
	if err := rs.Apply(decls, lookup); err != nil {
		return rs, u.relocate(err, pass)
	}
	return rs, nil
}

// checkBlocks validates every named block, used or not.
func (u *unit) checkBlocks() error {
	check := func(blocks []*ast.RenderStateBlock, pass string) error {
		for _, b := range blocks {
			if err := renderstate.CheckBlock(b); err != nil {
				return u.relocate(err, pass)
			}
		}
		return nil
	}

	if err := check(u.shader.Blocks, ""); err != nil {
		return err
	}
	for _, sub := range u.shader.SubShaders {
		if err := check(sub.Blocks, ""); err != nil {
			return err
		}
		for _, p := range sub.Passes {
			if err := check(p.Blocks, p.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Positions
// ----------------------------------------------------------------------------

// errorAt creates an error at the start of r in the preprocessed text.
func (u *unit) errorAt(kind diagnostic.Kind, r ast.Range, pass string, format string, args ...any) *diagnostic.Error {
	e := diagnostic.At(kind, "", diagnostic.Position{Offset: r.Start}, format, args...)
	return u.locate(e).InPass(pass)
}

// relocate translates a *diagnostic.Error positioned in the preprocessed
// text. Other errors are returned unchanged.
func (u *unit) relocate(err error, pass string) error {
	var e *diagnostic.Error
	if !errors.As(err, &e) {
		return err
	}
	return u.locate(e).InPass(pass)
}

// locate moves e from an offset of the preprocessed text to the block and
// position it came from.
func (u *unit) locate(e *diagnostic.Error) *diagnostic.Error {
	loc, _ := u.pre.Map.Lookup(e.Pos.Offset)
	e.Block = loc.Block
	e.Pos = u.position(loc)
	return e
}

func (u *unit) position(loc sourcemap.Location) sourcemap.Position {
	if loc.Block == sourcemap.MainBlock {
		return u.ctx.PositionAt(loc.Offset)
	}
	idx, ok := u.lines[loc.Block]
	if !ok {
		text, _ := u.chunks.Get(loc.Block)
		idx = sourcemap.NewLineIndex(text)
		u.lines[loc.Block] = idx
	}
	return idx.PositionAt(loc.Offset)
}

// block describes a segment block for the source map.
func (u *unit) block(key string) (sourcemap.Block, bool) {
	if key == sourcemap.MainBlock {
		return sourcemap.Block{
			Name:       u.session.opts.SourceMapOptions.SourceName,
			Content:    u.ctx.Original(),
			ToOriginal: u.ctx.OriginalOffset,
		}, true
	}
	text, ok := u.chunks.Get(key)
	return sourcemap.Block{Name: key, Content: text}, ok
}


package parser

import (
	"strconv"
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/lexer"
)

// visitor builds pooled AST nodes from a CST.
type visitor struct {
	cst   *CST
	arena *ast.Arena
	err   *diagnostic.Error
}

// sink is where the items of a Shader, SubShader or Pass body go.
type sink struct {
	tags         *[]ast.Tag
	renderStates *[]*ast.RenderStateDecl
	blocks       *[]*ast.RenderStateBlock
	items        *[]*ast.Statement
}

// Visit builds the AST of cst with nodes taken from arena.
func Visit(cst *CST, arena *ast.Arena) (*ast.Shader, error) {
	v := &visitor{cst: cst, arena: arena}
	root := cst.Root

	shader := arena.Shaders.Get().Init(v.str(root.Name), cst.Range(root), cst.Source)
	out := sink{renderStates: &shader.RenderStates, blocks: &shader.Blocks, items: &shader.Items}
	for _, child := range root.Children {
		if child.Kind == NodeSubShader {
			shader.SubShaders = append(shader.SubShaders, v.subShader(child))
			continue
		}
		v.item(child, out)
	}

	if v.err != nil {
		return nil, v.err
	}
	return shader, nil
}

func (v *visitor) str(i int) string {
	return v.cst.Tok(i).Lexeme
}

func (v *visitor) subShader(n *Node) *ast.SubShader {
	sub := v.arena.SubShaders.Get().Init(v.str(n.Name), v.cst.Range(n))
	out := sink{tags: &sub.Tags, renderStates: &sub.RenderStates, blocks: &sub.Blocks, items: &sub.Items}

	for _, child := range n.Children {
		switch child.Kind {
		case NodePass:
			sub.Passes = append(sub.Passes, v.pass(child))
		case NodeUsePass:
			target := v.str(child.Name)
			pass := v.arena.Passes.Get().Init(target, v.cst.Range(child))
			pass.UsePass = target
			sub.Passes = append(sub.Passes, pass)
		default:
			v.item(child, out)
		}
	}
	return sub
}

func (v *visitor) pass(n *Node) *ast.Pass {
	pass := v.arena.Passes.Get().Init(v.str(n.Name), v.cst.Range(n))
	out := sink{tags: &pass.Tags, renderStates: &pass.RenderStates, blocks: &pass.Blocks, items: &pass.Items}

	for _, child := range n.Children {
		switch child.Kind {
		case NodeUsePass:
			pass.UsePass = v.str(child.Name)
		case NodeUseBuiltin:
			pass.Builtin = v.str(child.Name)
		case NodeEntry:
			name := v.str(child.Name)
			if v.cst.Tok(child.Key).Kind == lexer.TokVertexShader {
				pass.VertexEntry = name
				pass.EntryRanges[0] = v.cst.Range(child)
			} else {
				pass.FragmentEntry = name
				pass.EntryRanges[1] = v.cst.Range(child)
			}
		default:
			v.item(child, out)
		}
	}
	return pass
}

// item handles the body items shared by every level.
func (v *visitor) item(n *Node, out sink) {
	switch n.Kind {
	case NodeTags:
		for _, tag := range n.Children {
			*out.tags = append(*out.tags, ast.Tag{Key: v.str(tag.Key), Value: v.value(tag.Value)})
		}

	case NodeStateAssign:
		*out.renderStates = append(*out.renderStates, v.decl(v.str(n.First), n))

	case NodeStateApply:
		decl := v.arena.Decls.Get().Init(v.str(n.First), "", 0, false, ast.Value{}, v.cst.Range(n))
		decl.BlockRef = v.str(n.Name)
		*out.renderStates = append(*out.renderStates, decl)

	case NodeStateBlock:
		category := v.str(n.First)
		if n.Name < 0 {
			for _, entry := range n.Children {
				*out.renderStates = append(*out.renderStates, v.decl(category, entry))
			}
			return
		}
		block := v.arena.Blocks.Get().Init(category, v.str(n.Name), v.cst.Range(n))
		for _, entry := range n.Children {
			block.Entries = append(block.Entries, v.decl(category, entry))
		}
		*out.blocks = append(*out.blocks, block)

	case NodeRenderQueue:
		decl := v.arena.Decls.Get().Init("", v.str(n.Key), 0, false, v.value(n.Value), v.cst.Range(n))
		*out.renderStates = append(*out.renderStates, decl)

	case NodeDirective:
		st := v.arena.Statements.Get().Init(ast.StmtDirective, v.cst.Range(n))
		st.Name = directiveWord(v.str(n.First))
		*out.items = append(*out.items, st)

	case NodeCode:
		st := v.arena.Statements.Get().Init(ast.StmtDeclaration, v.cst.Range(n))
		classify(st, v.cst.Tokens[n.First:n.Last+1])
		*out.items = append(*out.items, st)
	}
}

// decl builds a property assignment; n is a StateAssign or StateEntry node.
func (v *visitor) decl(category string, n *Node) *ast.RenderStateDecl {
	index, hasIndex := 0, n.Index >= 0
	if hasIndex {
		index = v.index(n.Index)
	}
	return v.arena.Decls.Get().Init(category, v.str(n.Key), index, hasIndex, v.value(n.Value), v.cst.Range(n))
}

func (v *visitor) value(n *Node) ast.Value {
	if n == nil {
		return ast.Value{}
	}
	val := ast.Value{Text: v.cst.Text(n), Range: v.cst.Range(n)}
	first := v.cst.Tok(n.First)

	switch first.Kind {
	case lexer.TokTrue, lexer.TokFalse:
		val.Kind = ast.ValueBool
		val.Bool = first.Kind == lexer.TokTrue

	case lexer.TokIntLiteral, lexer.TokFloatLiteral, lexer.TokMinus:
		val.Kind = ast.ValueInt
		if v.cst.Tok(n.Last).Kind == lexer.TokFloatLiteral {
			val.Kind = ast.ValueFloat
		}
		val.Number = v.signed(n.First)

	case lexer.TokStringLiteral:
		val.Kind = ast.ValueString
		val.Member = first.Lexeme

	default:
		switch {
		case n.Last == n.First:
			val.Kind = ast.ValueIdent
			val.Member = first.Lexeme
		case first.Lexeme == "Color" && v.cst.Tok(n.First+1).Kind == lexer.TokLParen:
			val.Kind = ast.ValueColor
			i := n.First + 2
			for c := range val.Color {
				if c > 0 {
					i++ // ','
				}
				val.Color[c] = v.signed(i)
				if v.cst.Tok(i).Kind == lexer.TokMinus {
					i++
				}
				i++
			}
		default:
			val.Kind = ast.ValueEnum
			val.EnumType = first.Lexeme
			val.Member = v.str(n.Last)
		}
	}
	return val
}

// signed reads the number at token i, with an optional leading '-'.
func (v *visitor) signed(i int) float64 {
	if v.cst.Tok(i).Kind == lexer.TokMinus {
		return -v.number(i + 1)
	}
	return v.number(i)
}

func (v *visitor) number(i int) float64 {
	tok := v.cst.Tok(i)
	if tok.Kind == lexer.TokIntLiteral {
		n, err := strconv.ParseInt(strings.TrimRight(tok.Lexeme, "uU"), 0, 64)
		if err == nil {
			return float64(n)
		}
	}
	f, err := strconv.ParseFloat(strings.TrimRight(tok.Lexeme, "fF"), 64)
	if err != nil {
		v.fail(tok, "invalid number %q", tok.Lexeme)
	}
	return f
}

// index parses the element index of a property such as ColorWriteMask[1].
func (v *visitor) index(i int) int {
	tok := v.cst.Tok(i)
	n, err := strconv.ParseInt(strings.TrimRight(tok.Lexeme, "uU"), 0, strconv.IntSize)
	if err != nil {
		v.fail(tok, "invalid index %q", tok.Lexeme)
		return 0
	}
	return int(n)
}

// fail records the first error of the visit.
func (v *visitor) fail(tok lexer.Token, format string, args ...any) {
	if v.err != nil {
		return
	}
	v.err = diagnostic.At(diagnostic.ParseError, "", diagnostic.Position{
		Offset: tok.Start.Index,
		Line:   tok.Start.Line,
		Column: tok.Start.Character,
	}, format, args...)
}

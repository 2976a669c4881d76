// Package parser turns ShaderLab tokens into a syntax tree.
//
// Parsing happens in two passes:
//
// Pass 1 (Parse): check the grammar and build a concrete syntax tree that
// records token spans. Embedded GLSL is not parsed; every top-level item
// becomes one Code node.
// Pass 2 (Visit): walk the CST and build pooled AST nodes, decoding values
// and classifying each GLSL item by what it declares and references.
//
// Parsing stops at the first error.
package parser

import (
	"fmt"

	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/lexer"
)

// Parser checks a token stream against the ShaderLab grammar.
type Parser struct {
	source string
	tokens []lexer.Token
	pos    int
	err    *diagnostic.Error
}

// scope is the block an item appears in.
type scope uint8

const (
	scopeShader scope = iota
	scopeSubShader
	scopePass
)

// New creates a parser over tokens scanned from source.
func New(source string, tokens []lexer.Token) *Parser {
	return &Parser{source: source, tokens: tokens}
}

// Parse builds the CST of one shader. Errors are *diagnostic.Error of kind
// ParseError, positioned in source.
func Parse(source string, tokens []lexer.Token) (*CST, error) {
	return New(source, tokens).Parse()
}

// Parse builds the CST of one shader.
func (p *Parser) Parse() (*CST, error) {
	root := p.parseShader()
	if p.err != nil {
		return nil, p.err
	}
	return &CST{Source: p.source, Tokens: p.tokens, Root: root}, nil
}

// ----------------------------------------------------------------------------
// Token Helpers
// ----------------------------------------------------------------------------

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) lexer.Token {
	pos := p.pos + offset
	if pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.TokEOF}
	}
	return p.tokens[pos]
}

func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes a token of the given kind and returns its index.
func (p *Parser) expect(kind lexer.TokenKind) (int, bool) {
	if p.err != nil {
		return -1, false
	}
	if p.current().Kind != kind {
		p.fail("expected %s, found %s", describeKind(kind), describe(p.current()))
		return -1, false
	}
	p.advance()
	return p.pos - 1, true
}

func (p *Parser) match(kind lexer.TokenKind) bool {
	if p.current().Kind == kind {
		p.advance()
		return true
	}
	return false
}

// fail records the first error, positioned at the current token.
func (p *Parser) fail(format string, args ...any) {
	if p.err != nil {
		return
	}
	tok := p.current()
	if tok.Kind == lexer.TokEOF && len(p.tokens) > 0 {
		tok = p.tokens[len(p.tokens)-1]
	}
	p.err = diagnostic.At(diagnostic.ParseError, "", diagnostic.Position{
		Offset: tok.Start.Index,
		Line:   tok.Start.Line,
		Column: tok.Start.Character,
	}, format, args...)
}

func describeKind(k lexer.TokenKind) string {
	switch k {
	case lexer.TokIdent:
		return "identifier"
	case lexer.TokStringLiteral:
		return "string"
	case lexer.TokIntLiteral:
		return "integer"
	case lexer.TokEOF:
		return "end of input"
	}
	return fmt.Sprintf("'%s'", k)
}

func describe(tok lexer.Token) string {
	switch tok.Kind {
	case lexer.TokIdent, lexer.TokTypeName:
		return fmt.Sprintf("identifier %q", tok.Lexeme)
	case lexer.TokStringLiteral:
		return fmt.Sprintf("string %q", tok.Lexeme)
	case lexer.TokIntLiteral, lexer.TokFloatLiteral:
		return fmt.Sprintf("number %s", tok.Lexeme)
	case lexer.TokDirective:
		return "directive"
	}
	return describeKind(tok.Kind)
}

// ----------------------------------------------------------------------------
// Structure
// ----------------------------------------------------------------------------

func (p *Parser) parseShader() *Node {
	n := newNode(NodeShader, p.pos)
	if _, ok := p.expect(lexer.TokShader); !ok {
		return nil
	}
	p.parseHeader(n)
	p.parseBody(n, scopeShader)
	n.Last = p.pos
	if _, ok := p.expect(lexer.TokRBrace); !ok {
		return nil
	}
	if p.current().Kind != lexer.TokEOF {
		p.fail("unexpected %s after the end of the shader", describe(p.current()))
		return nil
	}
	return n
}

// parseHeader reads the quoted name and the opening brace of a block.
func (p *Parser) parseHeader(n *Node) {
	n.Name, _ = p.expect(lexer.TokStringLiteral)
	p.expect(lexer.TokLBrace)
}

func (p *Parser) parseBody(parent *Node, sc scope) {
	for p.err == nil {
		tok := p.current()
		var child *Node

		switch {
		case tok.Kind == lexer.TokRBrace:
			return
		case tok.Kind == lexer.TokEOF:
			p.fail("expected '}' before end of input")
			return
		case tok.Kind == lexer.TokDirective:
			child = newNode(NodeDirective, p.pos)
			p.advance()
		case tok.Kind.IsStateCategory():
			child = p.parseRenderState()
		case tok.Kind == lexer.TokShader:
			p.fail("Shader blocks cannot be nested")
		case tok.Kind == lexer.TokSubShader:
			if sc != scopeShader {
				p.fail("SubShader is only allowed inside a Shader")
				return
			}
			child = p.parseSubShader()
		case tok.Kind == lexer.TokPass:
			if sc != scopeSubShader {
				p.fail("Pass is only allowed inside a SubShader")
				return
			}
			child = p.parsePass()
		case tok.Kind == lexer.TokUsePass:
			child = p.parseUsePass(parent, sc)
		case tok.Kind == lexer.TokUseBuiltin:
			if sc != scopePass {
				p.fail("UseBuiltin is only allowed inside a Pass")
				return
			}
			if len(parent.Children) > 0 {
				p.fail("UseBuiltin must be the first item of a pass")
				return
			}
			child = p.parseUseBuiltin()
		case tok.Kind == lexer.TokTags:
			if sc == scopeShader {
				p.fail("Tags are only allowed inside a SubShader or Pass")
				return
			}
			child = p.parseTags()
		case tok.Kind == lexer.TokVertexShader || tok.Kind == lexer.TokFragmentShader:
			if sc != scopePass {
				p.fail("%s is only allowed inside a Pass", tok.Kind)
				return
			}
			child = p.parseEntry()
		case tok.Kind == lexer.TokRenderQueueType:
			if sc != scopePass {
				p.fail("RenderQueueType is only allowed inside a Pass")
				return
			}
			child = p.parseRenderQueue()
		default:
			child = p.parseCode()
		}

		if child != nil && p.err == nil {
			parent.Children = append(parent.Children, child)
		}
	}
}

func (p *Parser) parseSubShader() *Node {
	n := newNode(NodeSubShader, p.pos)
	p.advance()
	p.parseHeader(n)
	p.parseBody(n, scopeSubShader)
	n.Last = p.pos
	p.expect(lexer.TokRBrace)
	return n
}

func (p *Parser) parsePass() *Node {
	n := newNode(NodePass, p.pos)
	p.advance()
	p.parseHeader(n)
	p.parseBody(n, scopePass)
	n.Last = p.pos
	p.expect(lexer.TokRBrace)
	return n
}

// parseUsePass reads `UsePass "Sub/Pass"` with an optional ';'. Inside a
// Pass it must be the only item.
func (p *Parser) parseUsePass(parent *Node, sc scope) *Node {
	if sc == scopeShader {
		p.fail("UsePass is only allowed inside a SubShader or Pass")
		return nil
	}
	if sc == scopePass && len(parent.Children) > 0 {
		p.fail("UsePass must be the only item of a pass")
		return nil
	}

	n := newNode(NodeUsePass, p.pos)
	p.advance()
	n.Name, _ = p.expect(lexer.TokStringLiteral)
	p.match(lexer.TokSemicolon)
	n.Last = p.pos - 1

	if sc == scopePass && p.err == nil && p.current().Kind != lexer.TokRBrace {
		p.fail("UsePass must be the only item of a pass")
		return nil
	}
	return n
}

func (p *Parser) parseUseBuiltin() *Node {
	n := newNode(NodeUseBuiltin, p.pos)
	p.advance()
	n.Name, _ = p.expect(lexer.TokStringLiteral)
	p.expect(lexer.TokSemicolon)
	n.Last = p.pos - 1
	return n
}

func (p *Parser) parseTags() *Node {
	n := newNode(NodeTags, p.pos)
	p.advance()
	p.expect(lexer.TokLBrace)

	for p.err == nil && p.current().Kind != lexer.TokRBrace {
		tag := newNode(NodeTag, p.pos)
		tag.Key, _ = p.expect(lexer.TokIdent)
		p.expect(lexer.TokEq)
		tag.Value = p.parseValue()
		tag.Last = p.pos - 1
		if p.err != nil {
			return nil
		}
		n.Children = append(n.Children, tag)
		if !p.match(lexer.TokComma) {
			p.match(lexer.TokSemicolon)
		}
	}

	n.Last = p.pos
	p.expect(lexer.TokRBrace)
	return n
}

func (p *Parser) parseEntry() *Node {
	n := newNode(NodeEntry, p.pos)
	n.Key = p.pos
	p.advance()
	p.expect(lexer.TokEq)
	n.Name, _ = p.expect(lexer.TokIdent)
	p.expect(lexer.TokSemicolon)
	n.Last = p.pos - 1
	return n
}

func (p *Parser) parseRenderQueue() *Node {
	n := newNode(NodeRenderQueue, p.pos)
	n.Key = p.pos
	p.advance()
	p.expect(lexer.TokEq)
	n.Value = p.parseValue()
	p.expect(lexer.TokSemicolon)
	n.Last = p.pos - 1
	return n
}

// ----------------------------------------------------------------------------
// Render State
// ----------------------------------------------------------------------------

// parseRenderState reads one of
//
//	Category.Property[i] = value;
//	Category = blockName;
//	Category name { ... }
//	Category { ... }
func (p *Parser) parseRenderState() *Node {
	first := p.pos
	category := p.advance()

	switch p.current().Kind {
	case lexer.TokDot:
		n := newNode(NodeStateAssign, first)
		p.advance()
		p.parseStateTarget(n)
		p.expect(lexer.TokEq)
		n.Value = p.parseValue()
		p.expect(lexer.TokSemicolon)
		n.Last = p.pos - 1
		return n

	case lexer.TokEq:
		n := newNode(NodeStateApply, first)
		p.advance()
		n.Name, _ = p.expect(lexer.TokIdent)
		p.expect(lexer.TokSemicolon)
		n.Last = p.pos - 1
		return n

	case lexer.TokIdent:
		n := newNode(NodeStateBlock, first)
		n.Name = p.pos
		p.advance()
		p.parseStateBlock(n)
		return n

	case lexer.TokLBrace:
		n := newNode(NodeStateBlock, first)
		p.parseStateBlock(n)
		return n
	}

	p.fail("expected '.', '=', a block name or '{' after %s, found %s", category.Kind, describe(p.current()))
	return nil
}

// parseStateTarget reads `Property` or `Property[i]`.
func (p *Parser) parseStateTarget(n *Node) {
	n.Key, _ = p.expect(lexer.TokIdent)
	if p.match(lexer.TokLBracket) {
		n.Index, _ = p.expect(lexer.TokIntLiteral)
		p.expect(lexer.TokRBracket)
	}
}

func (p *Parser) parseStateBlock(n *Node) {
	p.expect(lexer.TokLBrace)
	for p.err == nil && p.current().Kind != lexer.TokRBrace {
		if p.current().Kind == lexer.TokEOF {
			p.fail("expected '}' before end of input")
			return
		}
		entry := newNode(NodeStateEntry, p.pos)
		p.parseStateTarget(entry)
		p.expect(lexer.TokEq)
		entry.Value = p.parseValue()
		p.expect(lexer.TokSemicolon)
		entry.Last = p.pos - 1
		n.Children = append(n.Children, entry)
	}
	n.Last = p.pos
	p.expect(lexer.TokRBrace)
	if p.match(lexer.TokSemicolon) {
		n.Last = p.pos - 1
	}
}

// parseValue reads a literal, `Enum.Member`, `Color(r, g, b, a)` or a
// bare identifier.
func (p *Parser) parseValue() *Node {
	if p.err != nil {
		return nil
	}
	n := newNode(NodeValue, p.pos)
	tok := p.current()

	switch tok.Kind {
	case lexer.TokTrue, lexer.TokFalse, lexer.TokIntLiteral, lexer.TokFloatLiteral, lexer.TokStringLiteral:
		p.advance()

	case lexer.TokMinus:
		p.parseNumber()

	case lexer.TokIdent, lexer.TokRenderQueueType:
		p.advance()
		switch {
		case tok.Lexeme == "Color" && p.current().Kind == lexer.TokLParen:
			p.advance()
			for i := 0; i < 4 && p.err == nil; i++ {
				if i > 0 {
					p.expect(lexer.TokComma)
				}
				p.parseNumber()
			}
			p.expect(lexer.TokRParen)
		case p.current().Kind == lexer.TokDot:
			p.advance()
			p.expect(lexer.TokIdent)
		}

	default:
		p.fail("expected a value, found %s", describe(tok))
		return nil
	}

	n.Last = p.pos - 1
	return n
}

func (p *Parser) parseNumber() {
	p.match(lexer.TokMinus)
	switch p.current().Kind {
	case lexer.TokIntLiteral, lexer.TokFloatLiteral:
		p.advance()
	default:
		p.fail("expected a number, found %s", describe(p.current()))
	}
}

// ----------------------------------------------------------------------------
// Embedded GLSL
// ----------------------------------------------------------------------------

// parseCode consumes one top-level GLSL item: everything up to a ';' at
// nesting depth 0, or a function body. A brace group not preceded by ')'
// (struct, interface block) continues to the next ';'.
func (p *Parser) parseCode() *Node {
	n := newNode(NodeCode, p.pos)
	depth := 0

	for p.err == nil {
		tok := p.current()
		switch tok.Kind {
		case lexer.TokEOF:
			p.fail("unexpected end of input in GLSL code")
			return nil

		case lexer.TokLParen, lexer.TokLBracket:
			depth++

		case lexer.TokRParen, lexer.TokRBracket:
			depth--
			if depth < 0 {
				p.fail("unbalanced %s", describe(tok))
				return nil
			}

		case lexer.TokSemicolon:
			if depth == 0 {
				p.advance()
				n.Last = p.pos - 1
				return n
			}

		case lexer.TokLBrace:
			if depth > 0 {
				break
			}
			function := p.pos > n.First && p.tokens[p.pos-1].Kind == lexer.TokRParen
			if !p.skipBraces() {
				return nil
			}
			if function {
				p.match(lexer.TokSemicolon)
				n.Last = p.pos - 1
				return n
			}
			continue

		case lexer.TokRBrace:
			p.fail("expected ';', found '}'")
			return nil

		case lexer.TokShader, lexer.TokSubShader, lexer.TokPass, lexer.TokUsePass, lexer.TokUseBuiltin,
			lexer.TokTags, lexer.TokVertexShader, lexer.TokFragmentShader, lexer.TokRenderQueueType,
			lexer.TokBlendState, lexer.TokDepthState, lexer.TokStencilState, lexer.TokRasterState:
			if depth == 0 {
				p.fail("expected ';' before %s", tok.Kind)
				return nil
			}
		}
		p.advance()
	}
	return nil
}

// skipBraces consumes a balanced { ... } group starting at the current token.
func (p *Parser) skipBraces() bool {
	depth := 0
	for {
		switch p.current().Kind {
		case lexer.TokEOF:
			p.fail("unterminated '{' block")
			return false
		case lexer.TokLBrace:
			depth++
		case lexer.TokRBrace:
			depth--
			if depth == 0 {
				p.advance()
				return true
			}
		}
		p.advance()
	}
}

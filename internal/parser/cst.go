package parser

import (
	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/lexer"
)

// NodeKind identifies a concrete syntax tree node.
type NodeKind uint8

const (
	NodeShader      NodeKind = iota
	NodeSubShader            // SubShader "name" { ... }
	NodePass                 // Pass "name" { ... }
	NodeUsePass              // UsePass "Sub/Pass"
	NodeUseBuiltin           // UseBuiltin "name";
	NodeTags                 // Tags { K = V, ... }
	NodeTag                  // K = V
	NodeStateAssign          // Category.Property[i] = value;
	NodeStateApply           // Category = blockName;
	NodeStateBlock           // Category name? { Property[i] = value; ... }
	NodeStateEntry           // Property[i] = value; inside a block
	NodeEntry                // VertexShader = name; / FragmentShader = name;
	NodeRenderQueue          // RenderQueueType = value;
	NodeValue                // literal or identifier
	NodeDirective            // #... line
	NodeCode                 // any other top-level GLSL item
)

var nodeKindNames = [...]string{
	NodeShader:      "Shader",
	NodeSubShader:   "SubShader",
	NodePass:        "Pass",
	NodeUsePass:     "UsePass",
	NodeUseBuiltin:  "UseBuiltin",
	NodeTags:        "Tags",
	NodeTag:         "Tag",
	NodeStateAssign: "StateAssign",
	NodeStateApply:  "StateApply",
	NodeStateBlock:  "StateBlock",
	NodeStateEntry:  "StateEntry",
	NodeEntry:       "Entry",
	NodeRenderQueue: "RenderQueue",
	NodeValue:       "Value",
	NodeDirective:   "Directive",
	NodeCode:        "Code",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Node is a CST node. It covers tokens First..Last inclusive and records
// the token indices the visitor needs.
type Node struct {
	Kind     NodeKind
	First    int
	Last     int
	Children []*Node

	// Token indices, -1 when absent.
	Key   int // category / entry keyword / tag key / property
	Name  int // name string or identifier
	Index int // integer inside [ ]

	Value *Node // right-hand side of '='
}

func newNode(kind NodeKind, first int) *Node {
	return &Node{Kind: kind, First: first, Last: first, Key: -1, Name: -1, Index: -1}
}

// CST is the concrete syntax tree of one shader.
type CST struct {
	Source string
	Tokens []lexer.Token
	Root   *Node
}

// Tok returns token i, or the EOF token when i is out of range.
func (c *CST) Tok(i int) lexer.Token {
	if i < 0 || i >= len(c.Tokens) {
		return lexer.Token{Kind: lexer.TokEOF}
	}
	return c.Tokens[i]
}

// Range returns the byte range n covers in Source.
func (c *CST) Range(n *Node) ast.Range {
	return ast.Range{Start: c.Tok(n.First).Start.Index, End: c.Tok(n.Last).End.Index}
}

// Text returns the source text n covers.
func (c *CST) Text(n *Node) string {
	r := c.Range(n)
	return c.Source[r.Start:r.End]
}

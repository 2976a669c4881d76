// Package ast defines the syntax tree of a ShaderLab shader.
//
// The tree is:
// - Structural: Shader, SubShader and Pass nodes carry names, tags, render
//   state and entry points
// - Text-preserving: embedded GLSL is not parsed into expressions; each
//   top-level item is a Statement holding its byte range in the
//   preprocessed text plus the names it declares and references
// - Pooled: every node comes from an Arena and is reused across compiles
package ast

// ----------------------------------------------------------------------------
// Source Location
// ----------------------------------------------------------------------------

// Range is a byte range [Start, End) of the preprocessed text.
type Range struct {
	Start int
	End   int
}

// Len returns the length of the range in bytes.
func (r Range) Len() int {
	return r.End - r.Start
}

// Text returns the slice of source covered by r.
func (r Range) Text(source string) string {
	return source[r.Start:r.End]
}

// nodeBase records the pool generation a node was handed out in.
type nodeBase struct {
	gen uint32
}

func (b *nodeBase) stamp(gen uint32)   { b.gen = gen }
func (b *nodeBase) generation() uint32 { return b.gen }

// ----------------------------------------------------------------------------
// Values
// ----------------------------------------------------------------------------

// ValueKind is the syntactic form of a render-state or tag value.
type ValueKind uint8

const (
	ValueNone   ValueKind = iota
	ValueBool             // true / false
	ValueInt              // 3, 0xFF
	ValueFloat            // 0.5
	ValueString           // "Opaque"
	ValueEnum             // CompareFunction.LessEqual
	ValueColor            // Color(1, 0, 0, 1)
	ValueIdent            // bare identifier: property reference or enum member
)

var valueKindNames = [...]string{
	ValueNone:   "none",
	ValueBool:   "bool",
	ValueInt:    "int",
	ValueFloat:  "float",
	ValueString: "string",
	ValueEnum:   "enum",
	ValueColor:  "color",
	ValueIdent:  "identifier",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return "unknown"
}

// Value is a literal or identifier on the right of '='.
type Value struct {
	Kind     ValueKind
	Text     string // source text as written
	Bool     bool
	Number   float64 // ValueInt and ValueFloat
	EnumType string  // ValueEnum: the part before '.'
	Member   string  // ValueEnum, ValueIdent, and ValueString unquoted
	Color    [4]float64
	Range    Range
}

// Tag is one "Key = Value" entry of a Tags block.
type Tag struct {
	Key   string
	Value Value
}

// ----------------------------------------------------------------------------
// Nodes
// ----------------------------------------------------------------------------

// Shader is the root of a compile unit.
type Shader struct {
	nodeBase
	Name  string
	Range Range

	// Source is the preprocessed text every Range refers to.
	Source string

	RenderStates []*RenderStateDecl
	Blocks       []*RenderStateBlock
	Items        []*Statement
	SubShaders   []*SubShader
}

// Init prepares a pooled Shader for reuse.
func (s *Shader) Init(name string, r Range, source string) *Shader {
	s.Name = name
	s.Range = r
	s.Source = source
	s.RenderStates = s.RenderStates[:0]
	s.Blocks = s.Blocks[:0]
	s.Items = s.Items[:0]
	s.SubShaders = s.SubShaders[:0]
	return s
}

// SubShader groups passes that share tags, render state and global code.
type SubShader struct {
	nodeBase
	Name  string
	Range Range

	Tags         []Tag
	RenderStates []*RenderStateDecl
	Blocks       []*RenderStateBlock
	Items        []*Statement
	Passes       []*Pass
}

// Init prepares a pooled SubShader for reuse.
func (s *SubShader) Init(name string, r Range) *SubShader {
	s.Name = name
	s.Range = r
	s.Tags = s.Tags[:0]
	s.RenderStates = s.RenderStates[:0]
	s.Blocks = s.Blocks[:0]
	s.Items = s.Items[:0]
	s.Passes = s.Passes[:0]
	return s
}

// Pass is a compiled pass, a reference to another pass (UsePass), or a
// builtin shader (UseBuiltin).
type Pass struct {
	nodeBase
	Name  string
	Range Range

	// UsePass is the qualified target name when this pass is a reference.
	UsePass string
	// Builtin is the UseBuiltin name; the rest of the pass is ignored.
	Builtin string

	Tags          []Tag
	RenderStates  []*RenderStateDecl
	Blocks        []*RenderStateBlock
	Items         []*Statement
	VertexEntry   string
	FragmentEntry string
	EntryRanges   [2]Range // vertex, fragment assignment ranges
}

// Init prepares a pooled Pass for reuse.
func (p *Pass) Init(name string, r Range) *Pass {
	p.Name = name
	p.Range = r
	p.UsePass = ""
	p.Builtin = ""
	p.Tags = p.Tags[:0]
	p.RenderStates = p.RenderStates[:0]
	p.Blocks = p.Blocks[:0]
	p.Items = p.Items[:0]
	p.VertexEntry = ""
	p.FragmentEntry = ""
	p.EntryRanges = [2]Range{}
	return p
}

// IsUsePass reports whether the pass only references another pass.
func (p *Pass) IsUsePass() bool {
	return p.UsePass != ""
}

// RenderStateDecl is one render-state assignment.
//
//	BlendState.SourceColorBlendFactor[1] = BlendFactor.One;
//	DepthState = depthNone;          (BlockRef)
//	RenderQueueType = Transparent;   (Category empty)
type RenderStateDecl struct {
	nodeBase
	Category string
	Property string
	Index    int
	HasIndex bool
	Value    Value
	// BlockRef names a RenderStateBlock to apply instead of a single value.
	BlockRef string
	Range    Range
}

// Init prepares a pooled RenderStateDecl for reuse.
func (d *RenderStateDecl) Init(category, property string, index int, hasIndex bool, value Value, r Range) *RenderStateDecl {
	d.Category = category
	d.Property = property
	d.Index = index
	d.HasIndex = hasIndex
	d.Value = value
	d.BlockRef = ""
	d.Range = r
	return d
}

// RenderStateBlock is a named group of assignments to one category.
type RenderStateBlock struct {
	nodeBase
	Category string
	Name     string
	Entries  []*RenderStateDecl
	Range    Range
}

// Init prepares a pooled RenderStateBlock for reuse.
func (b *RenderStateBlock) Init(category, name string, r Range) *RenderStateBlock {
	b.Category = category
	b.Name = name
	b.Entries = b.Entries[:0]
	b.Range = r
	return b
}

// StatementKind classifies a top-level GLSL item.
type StatementKind uint8

const (
	StmtDirective   StatementKind = iota // #define, #ifdef, #include <x>, ...
	StmtFunction                         // function definition or prototype
	StmtStruct                           // struct declaration
	StmtDeclaration                      // variable, uniform, attribute, varying, precision
)

var statementKindNames = [...]string{
	StmtDirective:   "directive",
	StmtFunction:    "function",
	StmtStruct:      "struct",
	StmtDeclaration: "declaration",
}

func (k StatementKind) String() string {
	if int(k) < len(statementKindNames) {
		return statementKindNames[k]
	}
	return "unknown"
}

// Statement is one top-level item of embedded GLSL.
type Statement struct {
	nodeBase
	Kind  StatementKind
	Range Range

	// Name is the function or struct name; for directives, the directive
	// word ("define", "ifdef", ...).
	Name      string
	NameRange Range

	// Qualifier is the leading storage qualifier of a declaration
	// ("attribute", "varying", "uniform", "const", ...), if any.
	Qualifier string

	// Declares lists the names a declaration or struct introduces.
	Declares []string
	// Refs lists every other identifier the item mentions.
	Refs []string
}

// Init prepares a pooled Statement for reuse.
func (s *Statement) Init(kind StatementKind, r Range) *Statement {
	s.Kind = kind
	s.Range = r
	s.Name = ""
	s.NameRange = Range{}
	s.Qualifier = ""
	s.Declares = s.Declares[:0]
	s.Refs = s.Refs[:0]
	return s
}

// Prototype reports whether a function statement has no body.
func (s *Statement) Prototype(source string) bool {
	return s.Kind == StmtFunction && source[s.Range.End-1] == ';'
}

// Package lexer provides tokenization for ShaderLab source code.
//
// The lexer converts preprocessed ShaderLab text into a sequence of tokens,
// handling:
// - ShaderLab structure keywords (Shader, SubShader, Pass, ...)
// - GLSL type names (reserved, the grammar branches on them)
// - Identifiers, numeric and string literals
// - Operators and punctuation of the embedded GLSL bodies
// - Preprocessor directive lines (one token per line)
// - Comments (line and block)
package lexer

import (
	"fmt"
	"unicode/utf8"
)

// ----------------------------------------------------------------------------
// Token Types
// ----------------------------------------------------------------------------

// TokenKind represents the type of a token.
type TokenKind uint8

const (
	TokError TokenKind = iota
	TokEOF

	// Literals
	TokIntLiteral
	TokFloatLiteral
	TokStringLiteral
	TokTrue
	TokFalse

	// Identifiers
	TokIdent
	TokTypeName // GLSL scalar/vector/matrix/sampler type

	// Directive is a whole "#..." line, continuation lines included
	TokDirective

	// ShaderLab keywords
	TokShader
	TokSubShader
	TokPass
	TokUsePass
	TokUseBuiltin
	TokTags
	TokBlendState
	TokDepthState
	TokStencilState
	TokRasterState
	TokVertexShader
	TokFragmentShader
	TokRenderQueueType

	// Operators
	TokPlus     // +
	TokMinus    // -
	TokStar     // *
	TokSlash    // /
	TokPercent  // %
	TokAmp      // &
	TokPipe     // |
	TokCaret    // ^
	TokTilde    // ~
	TokBang     // !
	TokQuestion // ?
	TokLt       // <
	TokGt       // >
	TokEq       // =
	TokDot      // .

	// Multi-char operators
	TokPlusPlus   // ++
	TokMinusMinus // --
	TokAmpAmp     // &&
	TokPipePipe   // ||
	TokLtLt       // <<
	TokGtGt       // >>
	TokLtEq       // <=
	TokGtEq       // >=
	TokEqEq       // ==
	TokBangEq     // !=
	TokPlusEq     // +=
	TokMinusEq    // -=
	TokStarEq     // *=
	TokSlashEq    // /=

	// Delimiters
	TokLParen    // (
	TokRParen    // )
	TokLBrace    // {
	TokRBrace    // }
	TokLBracket  // [
	TokRBracket  // ]
	TokSemicolon // ;
	TokColon     // :
	TokComma     // ,
)

// String returns the string representation of a token kind.
func (k TokenKind) String() string {
	if int(k) < len(tokenNames) && tokenNames[k] != "" {
		return tokenNames[k]
	}
	return "unknown"
}

var tokenNames = [...]string{
	TokError:         "error",
	TokEOF:           "EOF",
	TokIntLiteral:    "int",
	TokFloatLiteral:  "float",
	TokStringLiteral: "string",
	TokTrue:          "true",
	TokFalse:         "false",
	TokIdent:         "identifier",
	TokTypeName:      "type name",
	TokDirective:     "directive",
	// Keywords
	TokShader:          "Shader",
	TokSubShader:       "SubShader",
	TokPass:            "Pass",
	TokUsePass:         "UsePass",
	TokUseBuiltin:      "UseBuiltin",
	TokTags:            "Tags",
	TokBlendState:      "BlendState",
	TokDepthState:      "DepthState",
	TokStencilState:    "StencilState",
	TokRasterState:     "RasterState",
	TokVertexShader:    "VertexShader",
	TokFragmentShader:  "FragmentShader",
	TokRenderQueueType: "RenderQueueType",
	// Operators
	TokPlus:       "+",
	TokMinus:      "-",
	TokStar:       "*",
	TokSlash:      "/",
	TokPercent:    "%",
	TokAmp:        "&",
	TokPipe:       "|",
	TokCaret:      "^",
	TokTilde:      "~",
	TokBang:       "!",
	TokQuestion:   "?",
	TokLt:         "<",
	TokGt:         ">",
	TokEq:         "=",
	TokDot:        ".",
	TokPlusPlus:   "++",
	TokMinusMinus: "--",
	TokAmpAmp:     "&&",
	TokPipePipe:   "||",
	TokLtLt:       "<<",
	TokGtGt:       ">>",
	TokLtEq:       "<=",
	TokGtEq:       ">=",
	TokEqEq:       "==",
	TokBangEq:     "!=",
	TokPlusEq:     "+=",
	TokMinusEq:    "-=",
	TokStarEq:     "*=",
	TokSlashEq:    "/=",
	TokLParen:     "(",
	TokRParen:     ")",
	TokLBrace:     "{",
	TokRBrace:     "}",
	TokLBracket:   "[",
	TokRBracket:   "]",
	TokSemicolon:  ";",
	TokColon:      ":",
	TokComma:      ",",
}

// IsStateCategory reports whether k names a render-state category.
func (k TokenKind) IsStateCategory() bool {
	switch k {
	case TokBlendState, TokDepthState, TokStencilState, TokRasterState:
		return true
	}
	return false
}

// ----------------------------------------------------------------------------
// Token
// ----------------------------------------------------------------------------

// Position is a location in the scanned text.
type Position struct {
	Index     int // Byte offset (0-based)
	Line      int // Line number (1-based)
	Character int // Column in bytes (1-based)
}

// Token represents a lexical token.
type Token struct {
	Kind   TokenKind
	Lexeme string // Source text; string literals exclude the quotes
	Start  Position
	End    Position // Exclusive
}

// ----------------------------------------------------------------------------
// Keywords
// ----------------------------------------------------------------------------

// Keywords maps ShaderLab keyword strings to their token kinds.
var Keywords = map[string]TokenKind{
	"Shader":          TokShader,
	"SubShader":       TokSubShader,
	"Pass":            TokPass,
	"UsePass":         TokUsePass,
	"UseBuiltin":      TokUseBuiltin,
	"Tags":            TokTags,
	"BlendState":      TokBlendState,
	"DepthState":      TokDepthState,
	"StencilState":    TokStencilState,
	"RasterState":     TokRasterState,
	"VertexShader":    TokVertexShader,
	"FragmentShader":  TokFragmentShader,
	"RenderQueueType": TokRenderQueueType,
	"true":            TokTrue,
	"false":           TokFalse,
}

// TypeNames is the GLSL type vocabulary scanned as TokTypeName.
var TypeNames = map[string]bool{
	"void": true, "bool": true, "int": true, "uint": true, "float": true, "double": true,
	"vec2": true, "vec3": true, "vec4": true,
	"ivec2": true, "ivec3": true, "ivec4": true,
	"uvec2": true, "uvec3": true, "uvec4": true,
	"bvec2": true, "bvec3": true, "bvec4": true,
	"dvec2": true, "dvec3": true, "dvec4": true,
	"mat2": true, "mat3": true, "mat4": true,
	"mat2x2": true, "mat2x3": true, "mat2x4": true,
	"mat3x2": true, "mat3x3": true, "mat3x4": true,
	"mat4x2": true, "mat4x3": true, "mat4x4": true,
	"sampler2D": true, "sampler3D": true, "samplerCube": true,
	"sampler2DShadow": true, "samplerCubeShadow": true,
	"sampler2DArray": true, "sampler2DArrayShadow": true,
	"isampler2D": true, "isampler3D": true, "isamplerCube": true, "isampler2DArray": true,
	"usampler2D": true, "usampler3D": true, "usamplerCube": true, "usampler2DArray": true,
}

// ----------------------------------------------------------------------------
// Errors
// ----------------------------------------------------------------------------

// Error reports a character the scanner cannot classify.
type Error struct {
	Pos     Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Character, e.Message)
}

// ----------------------------------------------------------------------------
// Lexer
// ----------------------------------------------------------------------------

// Lexer tokenizes ShaderLab source code.
type Lexer struct {
	source    string
	pos       int
	line      int
	lineStart int
	tokens    []Token
}

// New creates a new lexer for the given source.
func New(source string) *Lexer {
	return &Lexer{
		source: source,
		line:   1,
		tokens: make([]Token, 0, len(source)/4), // Estimate
	}
}

// Tokenize returns all tokens in the source, ending with TokEOF.
// The first unrecognized character aborts scanning with an *Error.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		tok := l.Next()
		if tok.Kind == TokError {
			return nil, &Error{Pos: tok.Start, Message: tok.Lexeme}
		}
		l.tokens = append(l.tokens, tok)
		if tok.Kind == TokEOF {
			break
		}
	}
	return l.tokens, nil
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()

	start := l.position()
	if l.pos >= len(l.source) {
		return Token{Kind: TokEOF, Start: start, End: start}
	}

	ch := l.source[l.pos]

	// Identifiers and keywords
	if isIdentStart(ch) {
		return l.scanIdentOrKeyword(start)
	}

	// Numbers
	if isDigit(ch) || (ch == '.' && l.pos+1 < len(l.source) && isDigit(l.source[l.pos+1])) {
		return l.scanNumber(start)
	}

	if ch == '"' {
		return l.scanString(start)
	}

	if ch == '#' {
		if !l.atLineStart() {
			l.pos++
			return l.errorAt(start, "directive must be the first item on its line")
		}
		return l.scanDirective(start)
	}

	return l.scanOperator(start)
}

func (l *Lexer) position() Position {
	return Position{Index: l.pos, Line: l.line, Character: l.pos - l.lineStart + 1}
}

func (l *Lexer) token(kind TokenKind, start Position) Token {
	return Token{Kind: kind, Lexeme: l.source[start.Index:l.pos], Start: start, End: l.position()}
}

func (l *Lexer) errorAt(start Position, msg string) Token {
	return Token{Kind: TokError, Lexeme: msg, Start: start, End: l.position()}
}

// atLineStart reports whether only blanks precede l.pos on its line.
func (l *Lexer) atLineStart() bool {
	for i := l.lineStart; i < l.pos; i++ {
		if c := l.source[i]; c != ' ' && c != '\t' && c != '\r' {
			return false
		}
	}
	return true
}

// newline records a line break ending at l.pos.
func (l *Lexer) newline() {
	l.line++
	l.lineStart = l.pos
}

// ----------------------------------------------------------------------------
// Scanning Helpers
// ----------------------------------------------------------------------------

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]

		if ch == '\n' {
			l.pos++
			l.newline()
			continue
		}

		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\v' || ch == '\f' {
			l.pos++
			continue
		}

		// Line comment
		if ch == '/' && l.pos+1 < len(l.source) && l.source[l.pos+1] == '/' {
			l.pos += 2
			for l.pos < len(l.source) && l.source[l.pos] != '\n' {
				l.pos++
			}
			continue
		}

		// Block comment (GLSL block comments do not nest)
		if ch == '/' && l.pos+1 < len(l.source) && l.source[l.pos+1] == '*' {
			l.pos += 2
			for l.pos < len(l.source) {
				c := l.source[l.pos]
				if c == '*' && l.pos+1 < len(l.source) && l.source[l.pos+1] == '/' {
					l.pos += 2
					break
				}
				l.pos++
				if c == '\n' {
					l.newline()
				}
			}
			continue
		}

		break
	}
}

func (l *Lexer) scanIdentOrKeyword(start Position) Token {
	for l.pos < len(l.source) && isIdentContinue(l.source[l.pos]) {
		l.pos++
	}

	text := l.source[start.Index:l.pos]

	if kind, ok := Keywords[text]; ok {
		return l.token(kind, start)
	}
	if TypeNames[text] {
		return l.token(TokTypeName, start)
	}
	return l.token(TokIdent, start)
}

func (l *Lexer) scanNumber(start Position) Token {
	kind := TokIntLiteral

	// Check for hex
	if l.pos+1 < len(l.source) && l.source[l.pos] == '0' &&
		(l.source[l.pos+1] == 'x' || l.source[l.pos+1] == 'X') {
		l.pos += 2
		for l.pos < len(l.source) && isHexDigit(l.source[l.pos]) {
			l.pos++
		}
	} else {
		for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
			l.pos++
		}
		if l.pos < len(l.source) && l.source[l.pos] == '.' {
			kind = TokFloatLiteral
			l.pos++
			for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
				l.pos++
			}
		}
		// Exponent
		if l.pos < len(l.source) && (l.source[l.pos] == 'e' || l.source[l.pos] == 'E') {
			kind = TokFloatLiteral
			l.pos++
			if l.pos < len(l.source) && (l.source[l.pos] == '+' || l.source[l.pos] == '-') {
				l.pos++
			}
			for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
				l.pos++
			}
		}
	}

	// Type suffix
	if l.pos < len(l.source) {
		switch l.source[l.pos] {
		case 'u', 'U':
			l.pos++
		case 'f', 'F':
			kind = TokFloatLiteral
			l.pos++
		}
	}

	return l.token(kind, start)
}

func (l *Lexer) scanString(start Position) Token {
	l.pos++ // opening quote
	for l.pos < len(l.source) {
		switch l.source[l.pos] {
		case '"':
			l.pos++
			tok := l.token(TokStringLiteral, start)
			tok.Lexeme = l.source[start.Index+1 : l.pos-1]
			return tok
		case '\n':
			return l.errorAt(start, "unterminated string literal")
		case '\\':
			l.pos++
		}
		l.pos++
	}
	return l.errorAt(start, "unterminated string literal")
}

// scanDirective consumes a preprocessor line. A backslash before the
// newline continues the directive on the next line.
func (l *Lexer) scanDirective(start Position) Token {
	for l.pos < len(l.source) {
		c := l.source[l.pos]
		if c == '\n' {
			if l.pos > start.Index && l.source[l.pos-1] == '\\' {
				l.pos++
				l.newline()
				continue
			}
			break
		}
		l.pos++
	}
	end := l.pos
	if end > start.Index && l.source[end-1] == '\r' {
		end--
	}
	return Token{Kind: TokDirective, Lexeme: l.source[start.Index:end], Start: start, End: l.position()}
}

func (l *Lexer) scanOperator(start Position) Token {
	ch := l.source[l.pos]
	l.pos++

	var next byte
	if l.pos < len(l.source) {
		next = l.source[l.pos]
	}

	// two-character forms share a single lookahead
	pair := func(second byte, long, short TokenKind) Token {
		if next == second {
			l.pos++
			return l.token(long, start)
		}
		return l.token(short, start)
	}

	switch ch {
	case '+':
		if next == '+' {
			l.pos++
			return l.token(TokPlusPlus, start)
		}
		return pair('=', TokPlusEq, TokPlus)
	case '-':
		if next == '-' {
			l.pos++
			return l.token(TokMinusMinus, start)
		}
		return pair('=', TokMinusEq, TokMinus)
	case '*':
		return pair('=', TokStarEq, TokStar)
	case '/':
		return pair('=', TokSlashEq, TokSlash)
	case '%':
		return l.token(TokPercent, start)
	case '&':
		return pair('&', TokAmpAmp, TokAmp)
	case '|':
		return pair('|', TokPipePipe, TokPipe)
	case '^':
		return l.token(TokCaret, start)
	case '<':
		if next == '<' {
			l.pos++
			return l.token(TokLtLt, start)
		}
		return pair('=', TokLtEq, TokLt)
	case '>':
		if next == '>' {
			l.pos++
			return l.token(TokGtGt, start)
		}
		return pair('=', TokGtEq, TokGt)
	case '=':
		return pair('=', TokEqEq, TokEq)
	case '!':
		return pair('=', TokBangEq, TokBang)
	case '~':
		return l.token(TokTilde, start)
	case '?':
		return l.token(TokQuestion, start)
	case '.':
		return l.token(TokDot, start)
	case '(':
		return l.token(TokLParen, start)
	case ')':
		return l.token(TokRParen, start)
	case '{':
		return l.token(TokLBrace, start)
	case '}':
		return l.token(TokRBrace, start)
	case '[':
		return l.token(TokLBracket, start)
	case ']':
		return l.token(TokRBracket, start)
	case ';':
		return l.token(TokSemicolon, start)
	case ':':
		return l.token(TokColon, start)
	case ',':
		return l.token(TokComma, start)
	}

	if ch >= utf8.RuneSelf {
		r, size := utf8.DecodeRuneInString(l.source[start.Index:])
		l.pos = start.Index + size
		return l.errorAt(start, fmt.Sprintf("unexpected character %q", r))
	}
	return l.errorAt(start, fmt.Sprintf("unexpected character %q", ch))
}

// ----------------------------------------------------------------------------
// Character Classification
// ----------------------------------------------------------------------------

// ASCII lookup tables for fast character classification.
// GLSL identifiers are ASCII only, so there is no Unicode slow path.
var (
	asciiIdentStart    [128]bool
	asciiIdentContinue [128]bool
)

func init() {
	for c := 'a'; c <= 'z'; c++ {
		asciiIdentStart[c] = true
		asciiIdentContinue[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		asciiIdentStart[c] = true
		asciiIdentContinue[c] = true
	}
	asciiIdentStart['_'] = true
	asciiIdentContinue['_'] = true

	for c := '0'; c <= '9'; c++ {
		asciiIdentContinue[c] = true
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch byte) bool {
	return ch < 128 && asciiIdentStart[ch]
}

func isIdentContinue(ch byte) bool {
	return ch < 128 && asciiIdentContinue[ch]
}

// IsIdentStart reports whether ch can start a GLSL identifier.
func IsIdentStart(ch byte) bool { return isIdentStart(ch) }

// IsIdentContinue reports whether ch can continue a GLSL identifier.
func IsIdentContinue(ch byte) bool { return isIdentContinue(ch) }

package parser

import (
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/lexer"
)

// glslKeywords are identifiers that never name a user symbol.
var glslKeywords = map[string]bool{
	"struct": true, "uniform": true, "attribute": true, "varying": true,
	"const": true, "in": true, "out": true, "inout": true, "buffer": true, "shared": true,
	"layout": true, "precision": true, "highp": true, "mediump": true, "lowp": true,
	"flat": true, "smooth": true, "noperspective": true, "centroid": true, "invariant": true,
	"readonly": true, "writeonly": true,
	"return": true, "if": true, "else": true, "for": true, "while": true, "do": true,
	"break": true, "continue": true, "discard": true, "switch": true, "case": true, "default": true,
}

// storageQualifiers may lead a global declaration.
var storageQualifiers = map[string]bool{
	"attribute": true, "varying": true, "uniform": true, "const": true,
	"in": true, "out": true, "buffer": true, "shared": true, "precision": true,
}

// classify fills in the kind, name, declared names and references of a
// top-level GLSL item spanning toks.
func classify(st *ast.Statement, toks []lexer.Token) {
	if len(toks) == 0 {
		st.Kind = ast.StmtDeclaration
		return
	}

	if toks[0].Kind == lexer.TokIdent && toks[0].Lexeme == "struct" {
		classifyStruct(st, toks)
		return
	}

	if name, ok := functionName(toks); ok {
		st.Kind = ast.StmtFunction
		st.Name = toks[name].Lexeme
		st.NameRange = tokenRange(toks[name])
		for i, tok := range toks {
			if i != name && isRef(toks, i) {
				st.Refs = appendUnique(st.Refs, tok.Lexeme)
			}
		}
		return
	}

	st.Kind = ast.StmtDeclaration
	for _, tok := range toks {
		if tok.Kind == lexer.TokIdent && storageQualifiers[tok.Lexeme] {
			st.Qualifier = tok.Lexeme
			break
		}
	}
	st.Declares, st.Refs = scanNames(toks, st.Declares, st.Refs)
}

// classifyStruct handles `struct Name { members } declarators;`. Member
// names are local to the struct and recorded nowhere.
func classifyStruct(st *ast.Statement, toks []lexer.Token) {
	st.Kind = ast.StmtStruct
	if len(toks) > 1 && toks[1].Kind == lexer.TokIdent {
		st.Name = toks[1].Lexeme
		st.NameRange = tokenRange(toks[1])
	}

	open, end := -1, -1
	for i, tok := range toks {
		if tok.Kind == lexer.TokLBrace && open < 0 {
			open = i
		}
		if tok.Kind == lexer.TokRBrace {
			end = i
		}
	}
	if open < 0 || end < open {
		return
	}

	_, st.Refs = scanNames(toks[open+1:end], nil, st.Refs)
	st.Declares, st.Refs = scanNames(toks[end+1:], st.Declares, st.Refs)
}

// functionName returns the index of the function name when the first '('
// of the item comes before any '=', '{' or ';' and follows `type name`.
func functionName(toks []lexer.Token) (int, bool) {
	for i, tok := range toks {
		switch tok.Kind {
		case lexer.TokEq, lexer.TokLBrace, lexer.TokSemicolon:
			return -1, false
		case lexer.TokLParen:
			if i >= 2 && toks[i-1].Kind == lexer.TokIdent && !glslKeywords[toks[i-1].Lexeme] &&
				(toks[i-2].Kind == lexer.TokTypeName || toks[i-2].Kind == lexer.TokIdent) {
				return i - 1, true
			}
			return -1, false
		}
	}
	return -1, false
}

// scanNames splits the identifiers of a declaration into declared names
// and references. An identifier is declared when it is followed by
// ; , = [ or { outside an initializer and outside parentheses.
func scanNames(toks []lexer.Token, declares, refs []string) ([]string, []string) {
	depth := 0
	initializer := false

	for i, tok := range toks {
		switch tok.Kind {
		case lexer.TokLParen, lexer.TokLBracket:
			depth++
			continue
		case lexer.TokRParen, lexer.TokRBracket:
			depth--
			continue
		case lexer.TokEq:
			if depth == 0 {
				initializer = true
			}
			continue
		case lexer.TokComma, lexer.TokSemicolon, lexer.TokLBrace, lexer.TokRBrace:
			if depth == 0 {
				initializer = false
			}
			continue
		}

		if !isRef(toks, i) {
			continue
		}
		if !initializer && depth == 0 && i+1 < len(toks) {
			switch toks[i+1].Kind {
			case lexer.TokSemicolon, lexer.TokComma, lexer.TokEq, lexer.TokLBracket, lexer.TokLBrace:
				declares = appendUnique(declares, tok.Lexeme)
				continue
			}
		}
		refs = appendUnique(refs, tok.Lexeme)
	}
	return declares, refs
}

// isRef reports whether toks[i] is an identifier that may name a global:
// not a keyword and not a member selected with '.'.
func isRef(toks []lexer.Token, i int) bool {
	tok := toks[i]
	if tok.Kind != lexer.TokIdent || glslKeywords[tok.Lexeme] {
		return false
	}
	return i == 0 || toks[i-1].Kind != lexer.TokDot
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func tokenRange(tok lexer.Token) ast.Range {
	return ast.Range{Start: tok.Start.Index, End: tok.End.Index}
}

// directiveWord returns the word after '#': "define" for "#  define X".
func directiveWord(lexeme string) string {
	s := strings.TrimLeft(strings.TrimPrefix(lexeme, "#"), " \t")
	end := 0
	for end < len(s) && lexer.IsIdentContinue(s[end]) {
		end++
	}
	return s[:end]
}

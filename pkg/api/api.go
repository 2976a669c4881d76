// Package api provides the public API for the ShaderLab compiler.
//
// This package is intended for programmatic use of the compiler.
// For CLI usage, see cmd/shaderlabc.
package api

import (
	"errors"
	"log/slog"

	"github.com/HugoDaniel/shaderlab/internal/compiler"
	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/logger"
	"github.com/HugoDaniel/shaderlab/internal/preprocessor"
	"github.com/HugoDaniel/shaderlab/internal/renderstate"
)

// Output model.
type (
	ShaderInfo     = compiler.ShaderInfo
	SubShaderInfo  = compiler.SubShaderInfo
	ShaderPassInfo = compiler.ShaderPassInfo
	RenderStates   = renderstate.RenderStates
	RenderStateKey = renderstate.Key
	Pipeline       = renderstate.Pipeline
)

// Session compiles shaders that share builtins and UsePass targets.
type Session = compiler.Session

// IncludeResolver returns the text of a named shader chunk.
type IncludeResolver = func(key string) (string, bool)

// Error is a positioned compile error. Use errors.As to reach it.
type Error = diagnostic.Error

// ErrorKind classifies an Error. Kinds work as errors.Is targets.
type ErrorKind = diagnostic.Kind

// Error kinds.
const (
	LexError                     = diagnostic.LexError
	MacroRedefinitionError       = diagnostic.MacroRedefinitionError
	MacroArityError              = diagnostic.MacroArityError
	MacroRecursionError          = diagnostic.MacroRecursionError
	UnresolvedIncludeError       = diagnostic.UnresolvedIncludeError
	ParseError                   = diagnostic.ParseError
	UnresolvedPassReferenceError = diagnostic.UnresolvedPassReferenceError
	UnknownRenderStateKeyError   = diagnostic.UnknownRenderStateKeyError
	RenderStateValueError        = diagnostic.RenderStateValueError
	UnresolvedBuiltinError       = diagnostic.UnresolvedBuiltinError
)

// CompileOptions controls compilation.
type CompileOptions struct {
	// Defines are predefined macros. Keys may carry a parameter list
	// ("LERP(a,b,t)").
	Defines map[string]string

	// Chunks are in-memory shader chunks, consulted first.
	Chunks map[string]string

	// IncludeDirs are searched, in order, for chunks not in Chunks.
	IncludeDirs []string

	// Resolver is consulted after Chunks and IncludeDirs.
	Resolver IncludeResolver

	// SourceMap enables source map generation.
	// If true, the result will include a source map.
	SourceMap bool

	// SourceMapOptions configures source map generation.
	// Only used when SourceMap is true.
	SourceMapOptions SourceMapOptions

	// TrimPools shrinks the AST node pools after every compile.
	TrimPools bool
}

// SourceMapOptions configures source map generation.
type SourceMapOptions struct {
	// File is the name of the generated file (for the "file" field in the source map).
	File string

	// SourceName is the name of the shader source (for the "sources" array).
	SourceName string

	// IncludeSource embeds the shader and chunk text in "sourcesContent".
	IncludeSource bool
}

// Options converts o to compiler options.
func (o CompileOptions) Options() compiler.Options {
	opts := compiler.DefaultOptions()
	opts.Defines = o.Defines
	opts.SourceMap = o.SourceMap
	opts.TrimPools = o.TrimPools
	if o.SourceMapOptions.SourceName != "" {
		opts.SourceMapOptions.SourceName = o.SourceMapOptions.SourceName
	}
	opts.SourceMapOptions.File = o.SourceMapOptions.File
	opts.SourceMapOptions.IncludeSource = o.SourceMapOptions.IncludeSource

	var resolvers []preprocessor.IncludeResolver
	if len(o.Chunks) > 0 {
		resolvers = append(resolvers, compiler.MapResolver(o.Chunks))
	}
	if len(o.IncludeDirs) > 0 {
		resolvers = append(resolvers, compiler.DirResolver(o.IncludeDirs...))
	}
	if o.Resolver != nil {
		resolvers = append(resolvers, o.Resolver)
	}
	switch len(resolvers) {
	case 0:
	case 1:
		opts.Resolver = resolvers[0]
	default:
		opts.Resolver = compiler.ChainResolver(resolvers...)
	}
	return opts
}

// NewSession creates a session for several related compiles.
func NewSession(opts CompileOptions) *Session {
	return compiler.NewSession(opts.Options())
}

// Compile compiles ShaderLab source with default options.
func Compile(source string) (*ShaderInfo, error) {
	return CompileWithOptions(source, CompileOptions{})
}

// CompileWithOptions compiles ShaderLab source in a fresh session.
func CompileWithOptions(source string, opts CompileOptions) (*ShaderInfo, error) {
	return NewSession(opts).Compile(source)
}

// ----------------------------------------------------------------------------
// Foreign hosts
// ----------------------------------------------------------------------------

// CompileResult is the JSON shape returned to foreign hosts.
type CompileResult struct {
	// Shader is the compiled shader. Nil when Errors is non-empty.
	Shader *ShaderInfo `json:"shader,omitempty"`

	// Errors contains the compile errors, if any.
	Errors []ErrorInfo `json:"errors,omitempty"`
}

// ErrorInfo is the JSON shape of one compile error.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Block   string `json:"block,omitempty"`
	Pass    string `json:"pass,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// CompileToResult compiles with s and reports errors as values.
func CompileToResult(s *Session, source string) CompileResult {
	info, err := s.Compile(source)
	if err != nil {
		return CompileResult{Errors: ErrorInfos(err)}
	}
	return CompileResult{Shader: info}
}

// ErrorInfos flattens err into ErrorInfo values.
func ErrorInfos(err error) []ErrorInfo {
	var list diagnostic.List
	var single *diagnostic.Error
	switch {
	case errors.As(err, &list):
	case errors.As(err, &single):
		list = diagnostic.List{single}
	default:
		return []ErrorInfo{{Kind: "Error", Message: err.Error()}}
	}

	infos := make([]ErrorInfo, len(list))
	for i, e := range list {
		infos[i] = ErrorInfo{
			Kind:    e.Kind.String(),
			Message: e.Message,
			Block:   e.Block,
			Pass:    e.Pass,
			Line:    e.Pos.Line,
			Column:  e.Pos.Column,
		}
	}
	return infos
}

// FormatError renders err with the offending source line and a caret.
// sources returns the text of a block: "" is the shader itself, any other
// name is a chunk key.
func FormatError(err error, sources func(block string) (string, bool)) string {
	return diagnostic.Format(err, sources)
}

// ----------------------------------------------------------------------------
// Logging
// ----------------------------------------------------------------------------

// SetLogger installs l as the compiler logger. Nil restores the silent
// default. Safe for concurrent use.
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

// Logger returns the compiler logger.
func Logger() *slog.Logger {
	return logger.Get()
}

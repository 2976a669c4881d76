// Package compiler turns ShaderLab source into ShaderInfo.
//
// Compilation runs in order:
// 1. Editor blocks are cut out of the source
// 2. The preprocessor expands macros and splices #include "chunk"
// 3. The lexer, parser and visitor build a pooled AST
// 4. Render state is resolved per level and merged Shader, SubShader, Pass
// 5. Each pass emits a vertex and a fragment source
// 6. UsePass references are resolved once every pass is built
//
// Any error aborts the compile; no partial ShaderInfo is returned.
package compiler

import (
	"errors"
	"time"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/logger"
	"github.com/HugoDaniel/shaderlab/internal/preprocessor"
	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
)

// ErrNilBuiltin is returned when registering a nil builtin shader.
var ErrNilBuiltin = errors.New("builtin shader is nil")

// Session owns the state shared by consecutive compiles: the AST arena,
// the builtin registry and the shaders compiled so far. A Session is not
// safe for concurrent use; use one per goroutine.
type Session struct {
	opts     Options
	arena    *ast.Arena
	builtins map[string]*ShaderInfo
	shaders  map[string]*ShaderInfo
}

// NewSession creates a session. Zero PoolSizes select ast.DefaultSizes.
func NewSession(opts Options) *Session {
	if opts.PoolSizes == (ast.Sizes{}) {
		opts.PoolSizes = ast.DefaultSizes
	}
	return &Session{
		opts:     opts,
		arena:    ast.NewArena(opts.PoolSizes),
		builtins: make(map[string]*ShaderInfo),
		shaders:  make(map[string]*ShaderInfo),
	}
}

// Options returns the session options.
func (s *Session) Options() Options {
	return s.opts
}

// SetOptions replaces the options used by later compiles. The node pools
// keep their current sizes.
func (s *Session) SetOptions(opts Options) {
	opts.PoolSizes = s.opts.PoolSizes
	s.opts = opts
}

// RegisterBuiltin makes info available to UseBuiltin under name.
func (s *Session) RegisterBuiltin(name string, info *ShaderInfo) error {
	if info == nil {
		return ErrNilBuiltin
	}
	s.builtins[name] = info
	logger.Get().Debug("builtin registered", "name", name, "shader", info.Name)
	return nil
}

// RegisterBuiltinSource compiles source and registers the result under
// name.
func (s *Session) RegisterBuiltinSource(name, source string) (*ShaderInfo, error) {
	info, err := s.Compile(source)
	if err != nil {
		return nil, err
	}
	return info, s.RegisterBuiltin(name, info)
}

// Builtin returns the builtin registered under name.
func (s *Session) Builtin(name string) (*ShaderInfo, bool) {
	info, ok := s.builtins[name]
	return info, ok
}

// Shader returns the last shader compiled under name.
func (s *Session) Shader(name string) (*ShaderInfo, bool) {
	info, ok := s.shaders[name]
	return info, ok
}

// Forget drops every previously compiled shader. Builtins are kept.
func (s *Session) Forget() {
	clear(s.shaders)
}

// Clear releases every AST node for reuse by the next compile.
func (s *Session) Clear() {
	s.arena.Clear()
}

// GarbageCollection shrinks the node pools back to their initial sizes.
func (s *Session) GarbageCollection() {
	s.arena.GarbageCollection()
}

// Compile compiles one shader. Errors are *diagnostic.Error positioned in
// the original source or the chunk they come from.
func (s *Session) Compile(source string) (*ShaderInfo, error) {
	start := time.Now()
	s.arena.Clear()
	if s.opts.TrimPools {
		defer s.arena.GarbageCollection()
	}

	u := &unit{
		session: s,
		ctx:     sourcemap.NewParsingContext(source),
		chunks:  preprocessor.NewChunkCache(s.opts.Resolver),
		lines:   make(map[string]*sourcemap.LineIndex),
	}
	info, err := u.compile()
	if err != nil {
		logger.Get().Debug("compile failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	s.shaders[info.Name] = info
	logger.Get().Debug("shader compiled",
		"shader", info.Name,
		"subShaders", len(info.SubShaders),
		"passes", info.PassCount(),
		"chunks", u.chunks.Len(),
		"nodes", s.arena.InUse(),
		"duration", time.Since(start))
	return info, nil
}

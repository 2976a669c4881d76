package compiler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/logger"
	"github.com/HugoDaniel/shaderlab/internal/preprocessor"
)

// Options configures a Session.
type Options struct {
	// Defines are predefined macros. Keys may carry a parameter list
	// ("LERP(a,b,t)"). Every define is also written ahead of each stage
	// source.
	Defines map[string]string

	// Resolver returns the text of a shader chunk for both #include "key"
	// and #include <key>. It is called at most once per key per compile.
	Resolver preprocessor.IncludeResolver

	// SourceMap attaches a source map of the preprocessed text.
	SourceMap bool

	// SourceMapOptions configures source map generation.
	// Only used when SourceMap is true.
	SourceMapOptions SourceMapOptions

	// TrimPools shrinks the node pools back to PoolSizes after every
	// compile.
	TrimPools bool

	// PoolSizes sets the number of pre-allocated AST nodes.
	PoolSizes ast.Sizes
}

// SourceMapOptions configures source map generation.
type SourceMapOptions struct {
	// File is the name of the generated file (for the "file" field in the source map).
	File string

	// SourceName is the name of the shader source (for the "sources" array).
	// Chunks are listed under their keys.
	SourceName string

	// IncludeSource embeds the shader and chunk text in "sourcesContent".
	IncludeSource bool
}

// DefaultOptions returns options with default pool sizes and no chunks.
func DefaultOptions() Options {
	return Options{
		PoolSizes: ast.DefaultSizes,
		SourceMapOptions: SourceMapOptions{
			SourceName: "shader",
		},
	}
}

// ----------------------------------------------------------------------------
// Include resolvers
// ----------------------------------------------------------------------------

// ChunkExtensions are tried, in order, when a chunk key has no extension.
var ChunkExtensions = []string{".glsl", ".gs"}

// DirResolver resolves chunk keys as paths relative to dirs, searched in
// order. A key without extension also matches key+ext for each of
// ChunkExtensions.
func DirResolver(dirs ...string) preprocessor.IncludeResolver {
	return func(key string) (string, bool) {
		rel := filepath.FromSlash(key)
		if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
			return "", false
		}

		candidates := []string{rel}
		if filepath.Ext(rel) == "" {
			for _, ext := range ChunkExtensions {
				candidates = append(candidates, rel+ext)
			}
		}

		for _, dir := range dirs {
			for _, c := range candidates {
				data, err := os.ReadFile(filepath.Join(dir, c))
				if err == nil {
					return string(data), true
				}
			}
		}
		logger.Get().Debug("chunk not found", "key", key, "dirs", dirs)
		return "", false
	}
}

// MapResolver resolves chunk keys from an in-memory table.
func MapResolver(chunks map[string]string) preprocessor.IncludeResolver {
	return func(key string) (string, bool) {
		text, ok := chunks[key]
		return text, ok
	}
}

// ChainResolver tries each resolver in order.
func ChainResolver(resolvers ...preprocessor.IncludeResolver) preprocessor.IncludeResolver {
	return func(key string) (string, bool) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			if text, ok := r(key); ok {
				return text, true
			}
		}
		return "", false
	}
}

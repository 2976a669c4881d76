package preprocessor

import (
	"github.com/HugoDaniel/shaderlab/internal/logger"
)

// IncludeResolver returns the text of a named shader chunk.
type IncludeResolver func(key string) (string, bool)

type chunkEntry struct {
	text string
	ok   bool
}

// ChunkCache memoizes an IncludeResolver so each chunk key is resolved at
// most once, including keys the resolver does not know. A cache is not
// safe for concurrent use.
type ChunkCache struct {
	resolve IncludeResolver
	entries map[string]chunkEntry
}

// NewChunkCache wraps resolve. A nil resolver knows no chunks.
func NewChunkCache(resolve IncludeResolver) *ChunkCache {
	return &ChunkCache{
		resolve: resolve,
		entries: make(map[string]chunkEntry),
	}
}

// Get returns the chunk text for key.
func (c *ChunkCache) Get(key string) (string, bool) {
	if e, ok := c.entries[key]; ok {
		return e.text, e.ok
	}

	var e chunkEntry
	if c.resolve != nil {
		e.text, e.ok = c.resolve(key)
	}
	c.entries[key] = e
	logger.Get().Debug("chunk resolved", "key", key, "found", e.ok, "bytes", len(e.text))
	return e.text, e.ok
}

// Len returns the number of memoized keys.
func (c *ChunkCache) Len() int {
	return len(c.entries)
}

// Reset forgets every memoized chunk.
func (c *ChunkCache) Reset() {
	clear(c.entries)
}

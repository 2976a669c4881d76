// Package logger holds the structured logger shared by every compiler stage.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled returns false so callers skip
// building the record entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNop() *slog.Logger { return slog.New(nopHandler{}) }

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(newNop())
}

// Set installs l as the compiler logger. Passing nil restores the silent
// default. Safe for concurrent use.
//
// Levels in use:
//   - [slog.LevelDebug]: stage timings, chunk fetches, pool growth
//   - [slog.LevelWarn]: recoverable oddities in shader sources
func Set(l *slog.Logger) {
	if l == nil {
		l = newNop()
	}
	current.Store(l)
}

// Get returns the compiler logger. Safe for concurrent use.
func Get() *slog.Logger {
	return current.Load()
}

// Discard reports whether l drops every record at level.
func Discard(l *slog.Logger, level slog.Level) bool {
	return !l.Enabled(context.Background(), level)
}

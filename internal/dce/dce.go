// Package dce implements dead code elimination for stage sources.
//
// DCE works by:
// 1. Finding the entry function of the stage, plus any extra roots such as
//    the names used by included chunks
// 2. Building an index from each global name to the items defining it
// 3. Marking every item reachable from the entry as live
// 4. Letting the emitter skip items that are not live
//
// Directives and declarations that introduce no name (precision
// statements) are always live.
package dce

import (
	"github.com/HugoDaniel/shaderlab/internal/ast"
)

// Result reports the liveness of each item passed to Mark.
type Result struct {
	Live []bool
	// Dead is the number of items not marked live.
	Dead int
	// EntryFound is false when no function is named like the entry.
	EntryFound bool
}

// Mark marks the items reachable from the entry function and from roots.
// When the entry is not defined every item is kept.
func Mark(items []*ast.Statement, entry string, roots ...string) Result {
	res := Result{Live: make([]bool, len(items))}
	if len(items) == 0 {
		return res
	}

	defs := buildDefinitionIndex(items)

	for i, st := range items {
		if st.Kind == ast.StmtFunction && st.Name == entry {
			res.EntryFound = true
		}
		if alwaysLive(st) {
			res.Live[i] = true
		}
	}

	if !res.EntryFound {
		for i := range res.Live {
			res.Live[i] = true
		}
		return res
	}

	visited := make(map[string]bool)
	markLive(entry, items, defs, visited, res.Live)
	for _, name := range roots {
		markLive(name, items, defs, visited, res.Live)
	}

	for _, live := range res.Live {
		if !live {
			res.Dead++
		}
	}
	return res
}

// buildDefinitionIndex maps each global name to the items defining it.
// Overloaded functions and prototypes map to several items.
func buildDefinitionIndex(items []*ast.Statement) map[string][]int {
	defs := make(map[string][]int)
	for i, st := range items {
		switch st.Kind {
		case ast.StmtFunction, ast.StmtStruct:
			if st.Name != "" {
				defs[st.Name] = append(defs[st.Name], i)
			}
		}
		for _, name := range st.Declares {
			defs[name] = append(defs[name], i)
		}
	}
	return defs
}

func alwaysLive(st *ast.Statement) bool {
	switch st.Kind {
	case ast.StmtDirective:
		return true
	case ast.StmtDeclaration:
		return len(st.Declares) == 0
	}
	return false
}

// markLive marks every definition of name and, transitively, what they
// reference.
func markLive(name string, items []*ast.Statement, defs map[string][]int, visited map[string]bool, live []bool) {
	if visited[name] {
		return
	}
	visited[name] = true

	for _, i := range defs[name] {
		live[i] = true
		for _, ref := range items[i].Refs {
			markLive(ref, items, defs, visited, live)
		}
	}
}

// IsLive returns true if item i should be emitted.
func (r Result) IsLive(i int) bool {
	return i < len(r.Live) && r.Live[i]
}

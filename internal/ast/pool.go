package ast

import "github.com/HugoDaniel/shaderlab/internal/logger"

// Node is the constraint of pooled node pointers.
type Node[T any] interface {
	*T
	stamp(gen uint32)
	generation() uint32
}

// Pool hands out reusable nodes of one type. Slots are addressed by index
// and keep their pointer across Clear, so reuse does not allocate.
type Pool[T any, P Node[T]] struct {
	name    string
	items   []P
	cursor  int
	initial int
	gen     uint32
}

// NewPool creates a pool with size pre-allocated slots.
func NewPool[T any, P Node[T]](name string, size int) *Pool[T, P] {
	p := &Pool[T, P]{
		name:    name,
		items:   make([]P, size),
		initial: size,
		gen:     1, // zero-valued nodes never count as live
	}
	for i := range p.items {
		p.items[i] = P(new(T))
	}
	return p
}

// Get returns the slot at the cursor, growing the pool when every slot is
// in use. The caller must Init the node.
func (p *Pool[T, P]) Get() P {
	if p.cursor == len(p.items) {
		if p.cursor == p.initial {
			logger.Get().Debug("pool grew past initial size", "pool", p.name, "size", p.initial)
		}
		p.items = append(p.items, P(new(T)))
	}
	n := p.items[p.cursor]
	p.cursor++
	n.stamp(p.gen)
	return n
}

// Clear releases every node for reuse. Nodes handed out before Clear are
// no longer live.
func (p *Pool[T, P]) Clear() {
	p.cursor = 0
	p.gen++
}

// GarbageCollection drops the slots grown beyond the initial size.
func (p *Pool[T, P]) GarbageCollection() {
	if len(p.items) <= p.initial {
		return
	}
	clear(p.items[p.initial:])
	p.items = p.items[:p.initial:p.initial]
	if p.cursor > p.initial {
		p.cursor = p.initial
	}
}

// Live reports whether n was handed out since the last Clear.
func (p *Pool[T, P]) Live(n P) bool {
	return n != nil && n.generation() == p.gen
}

// InUse returns the number of nodes handed out since the last Clear.
func (p *Pool[T, P]) InUse() int {
	return p.cursor
}

// Cap returns the number of slots the pool holds.
func (p *Pool[T, P]) Cap() int {
	return len(p.items)
}

// ----------------------------------------------------------------------------
// Arena
// ----------------------------------------------------------------------------

// Sizes sets the number of pre-allocated slots per node type.
type Sizes struct {
	Shaders    int
	SubShaders int
	Passes     int
	Decls      int
	Blocks     int
	Statements int
}

// DefaultSizes fits a typical shader with a few passes.
var DefaultSizes = Sizes{
	Shaders:    1,
	SubShaders: 4,
	Passes:     16,
	Decls:      64,
	Blocks:     16,
	Statements: 256,
}

// Arena holds one pool per node type.
type Arena struct {
	Shaders    *Pool[Shader, *Shader]
	SubShaders *Pool[SubShader, *SubShader]
	Passes     *Pool[Pass, *Pass]
	Decls      *Pool[RenderStateDecl, *RenderStateDecl]
	Blocks     *Pool[RenderStateBlock, *RenderStateBlock]
	Statements *Pool[Statement, *Statement]
}

// NewArena creates an arena with the given pool sizes.
func NewArena(s Sizes) *Arena {
	return &Arena{
		Shaders:    NewPool[Shader]("shader", s.Shaders),
		SubShaders: NewPool[SubShader]("subshader", s.SubShaders),
		Passes:     NewPool[Pass]("pass", s.Passes),
		Decls:      NewPool[RenderStateDecl]("renderstate", s.Decls),
		Blocks:     NewPool[RenderStateBlock]("renderstate-block", s.Blocks),
		Statements: NewPool[Statement]("statement", s.Statements),
	}
}

// Clear releases every node of every pool.
func (a *Arena) Clear() {
	a.Shaders.Clear()
	a.SubShaders.Clear()
	a.Passes.Clear()
	a.Decls.Clear()
	a.Blocks.Clear()
	a.Statements.Clear()
}

// GarbageCollection shrinks every pool back to its initial size.
func (a *Arena) GarbageCollection() {
	a.Shaders.GarbageCollection()
	a.SubShaders.GarbageCollection()
	a.Passes.GarbageCollection()
	a.Decls.GarbageCollection()
	a.Blocks.GarbageCollection()
	a.Statements.GarbageCollection()
}

// InUse returns the total number of nodes handed out since the last Clear.
func (a *Arena) InUse() int {
	return a.Shaders.InUse() + a.SubShaders.InUse() + a.Passes.InUse() +
		a.Decls.InUse() + a.Blocks.InUse() + a.Statements.InUse()
}

package ast

import "testing"

// ----------------------------------------------------------------------------
// Pool Tests
// ----------------------------------------------------------------------------

func TestPoolGetInitializes(t *testing.T) {
	pool := NewPool[Pass]("pass", 2)
	p := pool.Get().Init("Forward", Range{Start: 3, End: 10})
	if p.Name != "Forward" || p.Range.Len() != 7 {
		t.Errorf("Init did not set fields: %+v", p)
	}
	if !pool.Live(p) {
		t.Error("freshly allocated node should be live")
	}
}

// After Clear the pool hands out the very same slot again.
func TestPoolReuseAfterClear(t *testing.T) {
	pool := NewPool[Shader]("shader", 1)
	first := pool.Get().Init("A", Range{}, "src")
	first.Items = append(first.Items, &Statement{})

	pool.Clear()
	if pool.Live(first) {
		t.Error("node should not be live after Clear")
	}

	second := pool.Get()
	if second != first {
		t.Fatal("Get after Clear should return the first slot pointer")
	}
	second.Init("B", Range{}, "src2")
	if second.Name != "B" || len(second.Items) != 0 {
		t.Errorf("Init should reset the reused node: %+v", second)
	}
	if !pool.Live(second) {
		t.Error("reused node should be live")
	}
}

func TestPoolGrowth(t *testing.T) {
	pool := NewPool[Statement]("statement", 2)
	seen := map[*Statement]bool{}
	for i := 0; i < 5; i++ {
		s := pool.Get().Init(StmtDeclaration, Range{Start: i, End: i + 1})
		if seen[s] {
			t.Fatal("pool handed out the same node twice")
		}
		seen[s] = true
	}
	if pool.Cap() != 5 || pool.InUse() != 5 {
		t.Errorf("Cap = %d, InUse = %d, want 5, 5", pool.Cap(), pool.InUse())
	}

	pool.Clear()
	pool.GarbageCollection()
	if pool.Cap() != 2 || pool.InUse() != 0 {
		t.Errorf("after GC: Cap = %d, InUse = %d, want 2, 0", pool.Cap(), pool.InUse())
	}
}

func TestPoolLiveNil(t *testing.T) {
	pool := NewPool[RenderStateDecl]("decl", 1)
	if pool.Live(nil) {
		t.Error("nil is never live")
	}
	if pool.Live(&RenderStateDecl{}) {
		t.Error("a node not from the pool is not live")
	}
}

func TestArenaClear(t *testing.T) {
	a := NewArena(DefaultSizes)
	shader := a.Shaders.Get().Init("S", Range{}, "")
	sub := a.SubShaders.Get().Init("Default", Range{})
	pass := a.Passes.Get().Init("P", Range{})
	shader.SubShaders = append(shader.SubShaders, sub)
	sub.Passes = append(sub.Passes, pass)

	if a.InUse() != 3 {
		t.Errorf("InUse = %d, want 3", a.InUse())
	}

	a.Clear()
	if a.InUse() != 0 {
		t.Errorf("InUse after Clear = %d, want 0", a.InUse())
	}
	if a.Shaders.Get() != shader || a.Passes.Get() != pass {
		t.Error("arena should reuse slots after Clear")
	}
}

// ----------------------------------------------------------------------------
// Node Tests
// ----------------------------------------------------------------------------

func TestPassInitResets(t *testing.T) {
	p := (&Pass{}).Init("A", Range{})
	p.UsePass = "Sub/Other"
	p.VertexEntry = "vert"
	p.Tags = append(p.Tags, Tag{Key: "LightMode"})

	p.Init("B", Range{})
	if p.IsUsePass() || p.VertexEntry != "" || len(p.Tags) != 0 {
		t.Errorf("Init left stale fields: %+v", p)
	}
}

func TestStatementPrototype(t *testing.T) {
	src := "vec4 f(vec4 a);\nvoid main() {}"
	proto := (&Statement{}).Init(StmtFunction, Range{Start: 0, End: 15})
	def := (&Statement{}).Init(StmtFunction, Range{Start: 16, End: len(src)})
	if !proto.Prototype(src) {
		t.Error("expected prototype")
	}
	if def.Prototype(src) {
		t.Error("definition is not a prototype")
	}
}

func TestKindStrings(t *testing.T) {
	if StmtStruct.String() != "struct" || ValueColor.String() != "color" {
		t.Error("unexpected kind names")
	}
	if StatementKind(99).String() != "unknown" {
		t.Error("out of range kinds should be unknown")
	}
}

func TestRangeText(t *testing.T) {
	r := Range{Start: 2, End: 5}
	if r.Text("abcdefg") != "cde" {
		t.Errorf("Text = %q", r.Text("abcdefg"))
	}
}

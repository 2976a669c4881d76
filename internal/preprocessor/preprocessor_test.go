package preprocessor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
	"github.com/HugoDaniel/shaderlab/internal/test"
)

// ----------------------------------------------------------------------------
// Test Helpers
// ----------------------------------------------------------------------------

func chunks(m map[string]string) *ChunkCache {
	return NewChunkCache(func(key string) (string, bool) {
		s, ok := m[key]
		return s, ok
	})
}

func expectOutput(t *testing.T, input, expected string) {
	t.Helper()
	res, err := Process(input, Options{})
	if err != nil {
		t.Fatalf("input %q: unexpected error: %v", input, err)
	}
	test.AssertEqualWithDiff(t, res.Text, expected)
}

func expectKind(t *testing.T, input string, opts Options, kind diagnostic.Kind) *diagnostic.Error {
	t.Helper()
	_, err := Process(input, opts)
	if !errors.Is(err, kind) {
		t.Fatalf("input %q: expected %v, got %v", input, kind, err)
	}
	var e *diagnostic.Error
	errors.As(err, &e)
	return e
}

// ----------------------------------------------------------------------------
// Macro Expansion
// ----------------------------------------------------------------------------

func TestObjectMacros(t *testing.T) {
	expectOutput(t, "#define N 100\nfloat x = N;", "#define N 100\nfloat x = 100;")
	expectOutput(t, "#define EMPTY\nEMPTY float x;", "#define EMPTY\n float x;")
	expectOutput(t, "#define A B\n#define B 7\nA", "#define A B\n#define B 7\n7")
}

func TestFunctionMacros(t *testing.T) {
	expectOutput(t, "#define ADD(a,b) a+b\nfloat r = ADD(x,y);", "#define ADD(a,b) a+b\nfloat r = x+y;")
	expectOutput(t, "#define SQ(x) ((x)*(x))\nSQ(f(1, 2))", "#define SQ(x) ((x)*(x))\n((f(1, 2))*(f(1, 2)))")
	expectOutput(t, "#define F() 42\nF()", "#define F() 42\n42")
	expectOutput(t, "#define MIX(a, b, t) mix(a, b, t)\nMIX(c0, c1, 0.5)", "#define MIX(a, b, t) mix(a, b, t)\nmix(c0, c1, 0.5)")
}

func TestParameterWordBoundaries(t *testing.T) {
	// "a" inside "alpha" and "a_b" is not the parameter
	expectOutput(t, "#define P(a) alpha + a_b + a\nP(1)", "#define P(a) alpha + a_b + a\nalpha + a_b + 1")
}

func TestArgumentsExpandedFirst(t *testing.T) {
	expectOutput(t, "#define TWO 2\n#define DOUBLE(v) (v*2)\nDOUBLE(TWO)", "#define TWO 2\n#define DOUBLE(v) (v*2)\n(2*2)")
}

func TestFunctionMacroWithoutCall(t *testing.T) {
	expectOutput(t, "#define F(x) x\nfloat F;", "#define F(x) x\nfloat F;")
}

func TestMacrosSkipCommentsAndStrings(t *testing.T) {
	expectOutput(t, "#define N 3\n// N\n/* N */ \"N\" N", "#define N 3\n// N\n/* N */ \"N\" 3")
	expectOutput(t, "#define N 3\nfloat N2 = 1e3N;", "#define N 3\nfloat N2 = 1e3N;")
}

func TestCommentsStrippedFromExpansion(t *testing.T) {
	expectOutput(t, "#define N 1 // one\nN", "#define N 1 // one\n1")
	expectOutput(t, "#define N /* a */ 2 /* b */\nN", "#define N /* a */ 2 /* b */\n2")
}

func TestLineContinuation(t *testing.T) {
	expectOutput(t, "#define LONG(a) a + \\\n  a\nLONG(x)", "#define LONG(a) a + \\\n  a\nx +    x")
}

func TestUndef(t *testing.T) {
	expectOutput(t, "#define A 1\n#undef A\n#define A 2\nA", "#define A 1\n#undef A\n#define A 2\n2")
	expectOutput(t, "#define A 1\n#undef A\nA", "#define A 1\n#undef A\nA")
}

func TestOtherDirectivesKept(t *testing.T) {
	input := "#version 300 es\n#extension GL_OES_standard_derivatives : enable\n#include <common>\nx"
	expectOutput(t, input, input)
}

// ----------------------------------------------------------------------------
// Conditionals
// ----------------------------------------------------------------------------

func expectOutputWith(t *testing.T, input string, opts Options, expected string) {
	t.Helper()
	res, err := Process(input, opts)
	if err != nil {
		t.Fatalf("input %q: unexpected error: %v", input, err)
	}
	test.AssertEqualWithDiff(t, res.Text, expected)
}

func TestConditionalSelectsDefine(t *testing.T) {
	input := "#ifdef HIGH\n#define SAMPLES 16\n#else\n#define SAMPLES 4\n#endif\nint n = SAMPLES;"
	expectOutputWith(t, input, Options{}, "\n#define SAMPLES 4\n\nint n = 4;")
	expectOutputWith(t, input, Options{Defines: map[string]string{"HIGH": "1"}},
		"\n#define SAMPLES 16\n\nint n = 16;")
}

func TestIfndefGuardsDefine(t *testing.T) {
	expectOutput(t, "#define A 1\n#ifndef A\n#define A 2\n#endif\nA", "#define A 1\n\n1")
}

func TestIfExpressions(t *testing.T) {
	opts := Options{Defines: map[string]string{"A": "1", "B": "2", "TWICE(x)": "(x*2)"}}
	for _, c := range []struct {
		expr string
		want bool
	}{
		{"defined(A) && B > 1", true},
		{"defined B && B == 3", false},
		{"!defined(C)", true},
		{"defined ( C ) || C", false},
		{"C", false},
		{"(B << 2) == 8 || 0", true},
		{"0x10 / 4 == 4u", true},
		{"B - 3", true},
		{"~0 == -1", true},
		{"TWICE(B) == 4 && A", true},
		{"1 + 2 * 3 == 7", true},
		{"B % 2", false},
	} {
		res, err := Process("#if "+c.expr+"\nyes\n#else\nno\n#endif", opts)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.expr, err)
		}
		want := "no"
		if c.want {
			want = "yes"
		}
		test.AssertEqual(t, strings.TrimSpace(res.Text), want)
	}
}

func TestElif(t *testing.T) {
	input := "#if A == 1\none\n#elif A == 2\ntwo\n#elif A == 2\nagain\n#else\nother\n#endif"
	for value, want := range map[string]string{"1": "one", "2": "two", "3": "other"} {
		res, err := Process(input, Options{Defines: map[string]string{"A": value}})
		if err != nil {
			t.Fatal(err)
		}
		test.AssertEqual(t, strings.TrimSpace(res.Text), want)
	}
}

func TestInactiveBranchSkipped(t *testing.T) {
	// Nothing inside an inactive branch is evaluated, defined or resolved
	input := "#ifdef X\n#if 1/0\n#define Y 1\n#endif\n#include \"missing\"\n#endif\nY"
	expectOutput(t, input, "\nY")

	input = "#if 0\nPass \"A\" {\n#else\nfloat x;\n#endif\n"
	expectOutput(t, input, "\nfloat x;\n\n")
}

func TestReservedConditionsKept(t *testing.T) {
	for _, input := range []string{
		"#ifdef GL_ES\nprecision mediump float;\n#endif\nx",
		"#if __VERSION__ >= 300\nout vec4 color;\n#else\nvarying vec4 color;\n#endif\n",
		"#ifdef N\n#ifdef GL_ES\nx\n#endif\n#endif\n",
	} {
		res, err := Process(input, Options{Defines: map[string]string{"N": "1"}})
		if err != nil {
			t.Fatal(err)
		}
		want := input
		if strings.HasPrefix(input, "#ifdef N") {
			want = "\n#ifdef GL_ES\nx\n#endif\n\n"
		}
		test.AssertEqualWithDiff(t, res.Text, want)
	}
}

func TestConditionalErrors(t *testing.T) {
	for _, input := range []string{
		"#endif",
		"#else\n#endif",
		"#elif 1",
		"#if 1\n#else\n#else\n#endif",
		"#if 1\n#else\n#elif 1\n#endif",
		"#if 1 +\n#endif",
		"#if (1\n#endif",
		"#if 1 / 0\n#endif",
		"#if\n#endif",
		"#ifdef 1A\n#endif",
		"#ifdef\n#endif",
	} {
		expectKind(t, input, Options{}, diagnostic.ParseError)
	}
}

func TestUnterminatedConditional(t *testing.T) {
	e := expectKind(t, "float a;\n#ifdef A\nfloat b;", Options{}, diagnostic.ParseError)
	test.AssertEqual(t, e.Pos.Line, 2)
	test.AssertEqual(t, e.Pos.Column, 1)

	// Each chunk balances its own conditionals
	cache := chunks(map[string]string{"open": "#ifdef A\n"})
	e = expectKind(t, "#include \"open\"\n#endif", Options{Chunks: cache}, diagnostic.ParseError)
	test.AssertEqual(t, e.Block, "open")
}

// ----------------------------------------------------------------------------
// Recursion
// ----------------------------------------------------------------------------

func TestSelfRecursion(t *testing.T) {
	expectOutput(t, "#define X X+1\nX", "#define X X+1\nX+1")
	expectOutput(t, "#define F(a) F(a)\nF(1)", "#define F(a) F(a)\nF(1)")
}

func TestMutualRecursion(t *testing.T) {
	expectOutput(t, "#define A B\n#define B A\nA B", "#define A B\n#define B A\nA B")
}

func TestExpansionDepthLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < MaxExpansionDepth+6; i++ {
		fmt.Fprintf(&sb, "#define M%d M%d\n", i, i+1)
	}
	sb.WriteString("M0")
	expectKind(t, sb.String(), Options{}, diagnostic.MacroRecursionError)
}

// ----------------------------------------------------------------------------
// Definitions
// ----------------------------------------------------------------------------

func TestIdenticalRedefinition(t *testing.T) {
	expectOutput(t, "#define A 1\n#define A  1\nA", "#define A 1\n#define A  1\n1")
	expectOutput(t, "#define F(x) x*2\n#define F(x)   x*2\nF(3)", "#define F(x) x*2\n#define F(x)   x*2\n3*2")
}

func TestConflictingRedefinition(t *testing.T) {
	e := expectKind(t, "#define A 1\n#define A 2\n", Options{}, diagnostic.MacroRedefinitionError)
	if e.Pos.Line != 2 || e.Pos.Column != 1 {
		t.Errorf("position = %+v, want 2:1", e.Pos)
	}
	expectKind(t, "#define F(x) x\n#define F(y) y\n", Options{}, diagnostic.MacroRedefinitionError)
}

func TestArity(t *testing.T) {
	e := expectKind(t, "#define ADD(a,b) a+b\nfloat r = ADD(1);", Options{}, diagnostic.MacroArityError)
	if e.Pos.Line != 2 || e.Pos.Column != 11 {
		t.Errorf("position = %+v, want 2:11", e.Pos)
	}
	expectKind(t, "#define F() 1\nF(2)", Options{}, diagnostic.MacroArityError)
	expectKind(t, "#define F(a) a\nF(1, 2)", Options{}, diagnostic.MacroArityError)
	expectKind(t, "#define F(a) a\nF(1", Options{}, diagnostic.MacroArityError)
}

func TestPredefinedMacros(t *testing.T) {
	opts := Options{Defines: map[string]string{
		"QUALITY":  "2",
		"SCALE(v)": "v*QUALITY",
	}}
	res, err := Process("SCALE(x)", opts)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, res.Text, "x*2")
	if _, ok := res.Macros["SCALE"]; !ok {
		t.Error("predefined macro missing from the result table")
	}

	if _, err := Process("", Options{Defines: map[string]string{"1BAD": "x"}}); err == nil {
		t.Error("expected error for a malformed predefined name")
	}
}

// Expanding text that has already been expanded changes nothing.
func TestExpansionIdempotent(t *testing.T) {
	inputs := []string{
		"#define PI 3.14\n#define SQ(x) ((x)*(x))\nfloat a = SQ(PI);",
		"#define A B\n#define B 1\nint v = A + B;",
		"#define X X+1\nfloat y = 2.0;",
	}
	for _, input := range inputs {
		once, err := Process(input, Options{})
		if err != nil {
			t.Fatal(err)
		}
		twice, err := Process(once.Text, Options{})
		if err != nil {
			t.Fatal(err)
		}
		test.AssertEqualWithDiff(t, twice.Text, once.Text)
	}
}

// ----------------------------------------------------------------------------
// Includes
// ----------------------------------------------------------------------------

func TestInclude(t *testing.T) {
	cache := chunks(map[string]string{"common": "float common;"})
	res, err := Process("#include \"common\"\nvoid main() {}", Options{Chunks: cache})
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqualWithDiff(t, res.Text, "float common;\nvoid main() {}")
	test.AssertEqual(t, strings.Join(res.Included, ","), "common")
}

func TestIncludeMacrosVisible(t *testing.T) {
	cache := chunks(map[string]string{"defs": "#define SCALE 4.0"})
	res, err := Process("#include \"defs\"\nfloat s = SCALE;", Options{Chunks: cache})
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqualWithDiff(t, res.Text, "#define SCALE 4.0\nfloat s = 4.0;")
}

func TestIncludeDiamond(t *testing.T) {
	calls := map[string]int{}
	files := map[string]string{
		"A": "#include \"B\"\n#include \"C\"\nfloat a;",
		"B": "#include \"D\"\nfloat b;",
		"C": "#include \"D\"\nfloat c;",
		"D": "float d;",
	}
	cache := NewChunkCache(func(key string) (string, bool) {
		calls[key]++
		s, ok := files[key]
		return s, ok
	})

	res, err := Process("#include \"A\"\n#include \"D\"\nvoid main() {}", Options{Chunks: cache})
	if err != nil {
		t.Fatal(err)
	}

	for key, n := range calls {
		if n != 1 {
			t.Errorf("resolver called %d times for %q", n, key)
		}
	}
	test.AssertEqual(t, calls["D"], 1)
	test.AssertEqual(t, strings.Count(res.Text, "float d;"), 1)
	test.AssertEqualWithDiff(t, res.Text, "float d;\nfloat b;\n\nfloat c;\nfloat a;\n\nvoid main() {}")
	test.AssertEqual(t, strings.Join(res.Included, ","), "A,B,D,C")
}

func TestIncludeOncePerScope(t *testing.T) {
	calls := 0
	cache := NewChunkCache(func(key string) (string, bool) {
		calls++
		return "float luma;", key == "common"
	})
	count := func(input string) int {
		t.Helper()
		res, err := Process(input, Options{Chunks: cache})
		if err != nil {
			t.Fatal(err)
		}
		return strings.Count(res.Text, "float luma;")
	}

	// Each pass gets its own copy
	test.AssertEqual(t, count("Shader \"S\" {\n  Pass \"A\" {\n    #include \"common\"\n  }\n  Pass \"B\" {\n    #include \"common\"\n  }\n}"), 2)

	// A copy at the Shader level is visible to every pass
	test.AssertEqual(t, count("Shader \"S\" {\n  #include \"common\"\n  Pass \"A\" {\n    #include \"common\"\n  }\n  Pass \"B\" {\n    #include \"common\"\n  }\n}"), 1)

	// A SubShader copy is shared by its passes only
	test.AssertEqual(t, count(`Shader "S" {
  SubShader "X" {
    #include "common"
    Pass "A" {
      #include "common"
    }
  }
  SubShader "Y" {
    Pass "B" {
      #include "common"
      #include "common"
    }
  }
}`), 2)

	test.AssertEqual(t, calls, 1)
}

func TestIncludedListsEverySplice(t *testing.T) {
	cache := chunks(map[string]string{"common": "float luma;", "fog": "#include \"common\"\nfloat fog;"})
	res, err := Process("Pass \"A\" {\n#include \"fog\"\n}\nPass \"B\" {\n#include \"common\"\n#include \"fog\"\n}", Options{Chunks: cache})
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, strings.Join(res.Included, ","), "fog,common,common,fog")
	test.AssertEqual(t, strings.Count(res.Text, "float luma;"), 2)
	test.AssertEqual(t, strings.Count(res.Text, "float fog;"), 2)
}

func TestIncludeCycle(t *testing.T) {
	cache := chunks(map[string]string{
		"a": "#include \"b\"\nfloat a;",
		"b": "#include \"a\"\nfloat b;",
	})
	res, err := Process("#include \"a\"", Options{Chunks: cache})
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqualWithDiff(t, res.Text, "\nfloat b;\nfloat a;")
}

func TestUnresolvedInclude(t *testing.T) {
	input := "Shader \"S\" {\n  Pass \"Forward\" {\n    #include \"missing\"\n  }\n}"
	e := expectKind(t, input, Options{}, diagnostic.UnresolvedIncludeError)
	test.AssertEqual(t, e.Pass, "Forward")
	test.AssertEqual(t, e.Pos.Line, 3)
	test.AssertEqual(t, e.Pos.Column, 5)
	if !strings.Contains(e.Message, "missing") {
		t.Errorf("message should name the chunk: %q", e.Message)
	}
}

func TestUnresolvedIncludeOutsidePass(t *testing.T) {
	input := "Shader \"S\" {\n  Pass \"A\" { }\n  #include \"missing\"\n}"
	e := expectKind(t, input, Options{}, diagnostic.UnresolvedIncludeError)
	test.AssertEqual(t, e.Pass, "")
}

func TestErrorInsideChunk(t *testing.T) {
	cache := chunks(map[string]string{
		"common": "float a;\n#define M(a) a\nfloat b = M(1,2);",
	})
	input := "Shader \"S\" {\n  Pass \"Forward\" {\n    #include \"common\"\n  }\n}"
	e := expectKind(t, input, Options{Chunks: cache}, diagnostic.MacroArityError)
	test.AssertEqual(t, e.Block, "common")
	test.AssertEqual(t, e.Pass, "Forward")
	test.AssertEqual(t, e.Pos.Line, 3)
	test.AssertEqual(t, e.Pos.Column, 11)
}

func TestLocateOption(t *testing.T) {
	ctx := sourcemap.NewParsingContext("EditorMacros { }\n#define A 1\n#define A 2")
	e := expectKind(t, ctx.Text(), Options{Locate: ctx.PositionAt}, diagnostic.MacroRedefinitionError)
	test.AssertEqual(t, e.Pos.Line, 3)
}

// ----------------------------------------------------------------------------
// Source Map
// ----------------------------------------------------------------------------

func TestSegmentsTrackExpansion(t *testing.T) {
	input := "#define N 100\nfloat x = N;"
	res, err := Process(input, Options{})
	if err != nil {
		t.Fatal(err)
	}

	nAt := strings.Index(input, "N;")
	tests := []struct {
		gen  int
		orig int
	}{
		{0, 0},
		{24, nAt},     // inside "100"
		{26, nAt},     // inside "100"
		{27, nAt + 1}, // ";"
	}
	for _, tt := range tests {
		loc, _ := res.Map.Lookup(tt.gen)
		if loc.Block != sourcemap.MainBlock || loc.Offset != tt.orig {
			t.Errorf("Lookup(%d) = %+v, want main:%d", tt.gen, loc, tt.orig)
		}
	}
}

func TestSegmentsTrackIncludes(t *testing.T) {
	cache := chunks(map[string]string{"c": "float c;"})
	res, err := Process("float m;\n#include \"c\"\nfloat n;", Options{Chunks: cache})
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqualWithDiff(t, res.Text, "float m;\nfloat c;\nfloat n;")

	loc, _ := res.Map.Lookup(strings.Index(res.Text, "c;"))
	if loc.Block != "c" || loc.Offset != 6 {
		t.Errorf("chunk lookup = %+v, want c:6", loc)
	}
	loc, _ = res.Map.Lookup(strings.Index(res.Text, "n;"))
	if loc.Block != sourcemap.MainBlock || loc.Offset != 28 {
		t.Errorf("main lookup = %+v, want main:28", loc)
	}
}

// ----------------------------------------------------------------------------
// Chunk Cache
// ----------------------------------------------------------------------------

func TestChunkCacheMemoizes(t *testing.T) {
	calls := 0
	cache := NewChunkCache(func(key string) (string, bool) {
		calls++
		return "x", key == "known"
	})

	for i := 0; i < 3; i++ {
		cache.Get("known")
		if _, ok := cache.Get("unknown"); ok {
			t.Error("unknown key resolved")
		}
	}
	test.AssertEqual(t, calls, 2)
	test.AssertEqual(t, cache.Len(), 2)

	cache.Reset()
	cache.Get("known")
	test.AssertEqual(t, calls, 3)
}

func TestChunkCacheNilResolver(t *testing.T) {
	if _, ok := NewChunkCache(nil).Get("x"); ok {
		t.Error("nil resolver should know no chunks")
	}
}

package compiler

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/renderstate"
	"github.com/HugoDaniel/shaderlab/internal/test"
)

// ----------------------------------------------------------------------------
// Test Helpers (esbuild-style)
// ----------------------------------------------------------------------------

func compile(t *testing.T, source string, opts Options) *ShaderInfo {
	t.Helper()
	info, err := NewSession(opts).Compile(source)
	if err != nil {
		t.Fatalf("compile error: %v\nsource:\n%s", err, source)
	}
	return info
}

func expectCompileError(t *testing.T, s *Session, source string, kind diagnostic.Kind) *diagnostic.Error {
	t.Helper()
	_, err := s.Compile(source)
	test.AssertErrorIs(t, err, kind)

	var derr *diagnostic.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *diagnostic.Error, got %T", err)
	}
	return derr
}

func mustPass(t *testing.T, info *ShaderInfo, qualified string) *ShaderPassInfo {
	t.Helper()
	p, ok := info.Pass(qualified)
	if !ok {
		t.Fatalf("pass %q not found", qualified)
	}
	return p
}

const demoShader = `Shader "Demo" {
  attribute vec3 POSITION;
  varying vec2 v_uv;
  BlendState.Enabled = false;
  DepthState.CompareFunction = CompareFunction.LessEqual;

  SubShader "Default" {
    Tags { ReplacementTag = "Opaque", pipelineStage = "Forward" }
    BlendState.Enabled = true;
    RasterState.CullMode = CullMode.Off;

    Pass "Forward" {
      Tags { pipelineStage = "Forward" }
      DepthState.WriteEnabled = false;
      RasterState.CullMode = cullMode;
      VertexShader = vert;
      FragmentShader = frag;

      uniform float u_unused;
      void vert() { v_uv = POSITION.xy; gl_Position = vec4(POSITION, 1.0); }
      void frag() { gl_FragColor = vec4(v_uv, 0.0, 1.0); }
    }
  }
}`

// ----------------------------------------------------------------------------
// Compile
// ----------------------------------------------------------------------------

func TestCompileStructure(t *testing.T) {
	info := compile(t, demoShader, DefaultOptions())

	test.AssertEqual(t, info.Name, "Demo")
	test.AssertEqual(t, len(info.SubShaders), 1)
	sub := info.SubShaders[0]
	test.AssertEqual(t, sub.Name, "Default")
	test.AssertEqual(t, sub.Tags["ReplacementTag"], any("Opaque"))
	test.AssertEqual(t, sub.Tags["pipelineStage"], any("Forward"))

	p := mustPass(t, info, "Default/Forward")
	test.AssertEqual(t, p.IsUsePass, false)
	test.AssertEqual(t, p.VertexEntry, "vert")
	test.AssertEqual(t, p.FragmentEntry, "frag")
	test.AssertEqual(t, p.Tags["pipelineStage"], any("Forward"))
}

func TestCompileStageSources(t *testing.T) {
	p := mustPass(t, compile(t, demoShader, DefaultOptions()), "Default/Forward")

	test.AssertEqualWithDiff(t, p.VertexSource, `attribute vec3 POSITION;
varying vec2 v_uv;
void main() { v_uv = POSITION.xy; gl_Position = vec4(POSITION, 1.0); }
`)
	test.AssertEqualWithDiff(t, p.FragmentSource, `varying vec2 v_uv;
void main() { gl_FragColor = vec4(v_uv, 0.0, 1.0); }
`)
}

func TestMergePrecedence(t *testing.T) {
	p := mustPass(t, compile(t, demoShader, DefaultOptions()), "Default/Forward")
	rs := p.RenderStates

	// SubShader overrides Shader
	v, ok := rs.Constant(renderstate.K(renderstate.Blend, "Enabled", 0))
	test.AssertEqual(t, ok, true)
	test.AssertEqual(t, v, renderstate.Bool(true))

	// Shader-only keys are inherited
	v, _ = rs.Constant(renderstate.K(renderstate.Depth, "CompareFunction", -1))
	test.AssertEqual(t, v.CompareFunction(), gputypes.CompareFunctionLessEqual)

	// Pass-only keys
	v, _ = rs.Constant(renderstate.K(renderstate.Depth, "WriteEnabled", -1))
	test.AssertEqual(t, v, renderstate.Bool(false))

	// A pass variable replaces the SubShader constant
	cull := renderstate.K(renderstate.Raster, "CullMode", -1)
	_, ok = rs.Constant(cull)
	test.AssertEqual(t, ok, false)
	test.AssertEqual(t, rs.VariableMap[cull], "cullMode")
}

func TestMacroExample(t *testing.T) {
	p := mustPass(t, compile(t, `Shader "Add" {
  #define ADD(a,b) a+b
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      float sum(float x, float y) { return ADD(x,y); }
      void vert() { gl_Position = vec4(sum(1.0, 2.0)); }
      void frag() { gl_FragColor = vec4(1.0); }
    }
  }
}`, DefaultOptions()), "S/P")

	if !strings.Contains(p.VertexSource, "float sum(float x, float y) { return x+y; }") {
		t.Errorf("ADD(x,y) was not expanded:\n%s", p.VertexSource)
	}
	if strings.Contains(p.FragmentSource, "sum") {
		t.Errorf("sum should be dropped from the fragment stage:\n%s", p.FragmentSource)
	}
}

func TestDefinesAndDirectives(t *testing.T) {
	opts := DefaultOptions()
	opts.Defines = map[string]string{"SCALE": "2.0"}
	p := mustPass(t, compile(t, `Shader "D" {
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      void vert() { gl_Position = vec4(SCALE); }
      void frag() { gl_FragColor = vec4(1.0); }
    }
  }
}`, opts), "S/P")

	test.AssertEqualWithDiff(t, p.VertexSource, "#define SCALE 2.0\nvoid main() { gl_Position = vec4(2.0); }\n")
}

func TestEditorBlocksExcised(t *testing.T) {
	info := compile(t, `Shader "E" {
  EditorProperties {
    u_color("Color", Color) = (1, 1, 1, 1);
  }
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      void vert() { }
      void frag() { }
    }
  }
  EditorMacros { Header("Fog") { USE_FOG("Fog"); } }
}`, DefaultOptions())
	test.AssertEqual(t, info.PassCount(), 1)
}

// ----------------------------------------------------------------------------
// Includes
// ----------------------------------------------------------------------------

func TestIncludeResolvedOnce(t *testing.T) {
	calls := map[string]int{}
	files := map[string]string{
		"common":   "float luma(vec3 c) { return dot(c, vec3(0.3)); }\n",
		"fog":      "#include \"common\"\nvec3 fog(vec3 c) { return c * luma(c); }\n",
		"lighting": "#include \"common\"\n",
	}
	opts := DefaultOptions()
	opts.Resolver = func(key string) (string, bool) {
		calls[key]++
		text, ok := files[key]
		return text, ok
	}

	p := mustPass(t, compile(t, `Shader "Inc" {
  #include "fog"
  #include "lighting"
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      #include <common>
      void vert() { }
      void frag() { gl_FragColor = vec4(fog(vec3(1.0)), 1.0); }
    }
  }
}`, opts), "S/P")

	for key, n := range calls {
		if n != 1 {
			t.Errorf("resolver called %d times for %q", n, key)
		}
	}
	test.AssertEqual(t, calls["common"], 1)
	test.AssertEqual(t, strings.Count(p.FragmentSource, "float luma"), 2)
	test.AssertEqual(t, strings.Count(p.VertexSource, "float luma"), 1)
}

func TestChunkSplicedIntoEachPass(t *testing.T) {
	opts := DefaultOptions()
	opts.Resolver = MapResolver(map[string]string{
		"common": "float luma(vec3 c) { return dot(c, vec3(0.3)); }\n",
	})
	info := compile(t, `Shader "Two" {
  SubShader "S" {
    Pass "A" {
      VertexShader = vert;
      FragmentShader = frag;
      #include "common"
      void vert() { gl_Position = vec4(0.0); }
      void frag() { gl_FragColor = vec4(luma(vec3(1.0))); }
    }
    Pass "B" {
      VertexShader = vert;
      FragmentShader = frag;
      #include "common"
      void vert() { gl_Position = vec4(1.0); }
      void frag() { gl_FragColor = vec4(luma(vec3(0.5))); }
    }
  }
}`, opts)

	a := mustPass(t, info, "S/A")
	test.AssertEqualWithDiff(t, a.VertexSource, "void main() { gl_Position = vec4(0.0); }\n")
	test.AssertEqualWithDiff(t, a.FragmentSource, `float luma(vec3 c) { return dot(c, vec3(0.3)); }
void main() { gl_FragColor = vec4(luma(vec3(1.0))); }
`)
	b := mustPass(t, info, "S/B")
	test.AssertEqualWithDiff(t, b.VertexSource, "void main() { gl_Position = vec4(1.0); }\n")
	test.AssertEqualWithDiff(t, b.FragmentSource, `float luma(vec3 c) { return dot(c, vec3(0.3)); }
void main() { gl_FragColor = vec4(luma(vec3(0.5))); }
`)
}

func TestBodyChunkKeepsShaderGlobals(t *testing.T) {
	opts := DefaultOptions()
	opts.Resolver = MapResolver(map[string]string{
		"tint": "vec4 tint() { return u_color; }\n",
	})
	p := mustPass(t, compile(t, `Shader "Tint" {
  uniform vec4 u_color;
  uniform vec4 u_unused;
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      #include <tint>
      void vert() { gl_Position = vec4(0.0); }
      void frag() { gl_FragColor = tint(); }
    }
  }
}`, opts), "S/P")

	test.AssertEqualWithDiff(t, p.FragmentSource, `uniform vec4 u_color;
vec4 tint() { return u_color; }
void main() { gl_FragColor = tint(); }
`)
	test.AssertEqualWithDiff(t, p.VertexSource, `uniform vec4 u_color;
vec4 tint() { return u_color; }
void main() { gl_Position = vec4(0.0); }
`)
}

const variantShader = `Shader "Variant" {
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      #ifdef HIGH_QUALITY
      #define SAMPLES 16
      #else
      #define SAMPLES 4
      #endif
      void vert() { gl_Position = vec4(0.0); }
      void frag() { gl_FragColor = vec4(float(SAMPLES)); }
    }
  }
}`

func TestConditionalDefinesSelectVariant(t *testing.T) {
	p := mustPass(t, compile(t, variantShader, DefaultOptions()), "S/P")
	test.AssertEqualWithDiff(t, p.VertexSource, "#define SAMPLES 4\nvoid main() { gl_Position = vec4(0.0); }\n")
	test.AssertEqualWithDiff(t, p.FragmentSource, "#define SAMPLES 4\nvoid main() { gl_FragColor = vec4(float(4)); }\n")

	opts := DefaultOptions()
	opts.Defines = map[string]string{"HIGH_QUALITY": "1"}
	p = mustPass(t, compile(t, variantShader, opts), "S/P")
	test.AssertEqualWithDiff(t, p.FragmentSource,
		"#define HIGH_QUALITY 1\n#define SAMPLES 16\nvoid main() { gl_FragColor = vec4(float(16)); }\n")
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	test.AssertNoError(t, os.MkdirAll(filepath.Join(dir, "shadow"), 0755))
	test.AssertNoError(t, os.WriteFile(filepath.Join(dir, "shadow", "pcf.glsl"), []byte("float pcf;"), 0644))

	resolve := DirResolver(t.TempDir(), dir)
	text, ok := resolve("shadow/pcf")
	test.AssertEqual(t, ok, true)
	test.AssertEqual(t, text, "float pcf;")

	_, ok = resolve("../outside")
	test.AssertEqual(t, ok, false)
	_, ok = resolve("missing")
	test.AssertEqual(t, ok, false)
}

func TestChainResolver(t *testing.T) {
	resolve := ChainResolver(nil, MapResolver(map[string]string{"a": "1"}), MapResolver(map[string]string{"a": "2", "b": "3"}))
	text, _ := resolve("a")
	test.AssertEqual(t, text, "1")
	text, _ = resolve("b")
	test.AssertEqual(t, text, "3")
	_, ok := resolve("c")
	test.AssertEqual(t, ok, false)
}

// ----------------------------------------------------------------------------
// UsePass
// ----------------------------------------------------------------------------

const usePassShader = `Shader "Lib" {
  SubShader "Fwd" {
    UsePass "Base/Main"
    Pass "Ref" {
      UsePass "Fwd/Main"
    }
  }
  SubShader "Base" {
    Pass "Main" {
      VertexShader = vert;
      FragmentShader = frag;
      void vert() { }
      void frag() { }
    }
  }
}`

func TestUsePassForwardReference(t *testing.T) {
	info := compile(t, usePassShader, DefaultOptions())
	main := mustPass(t, info, "Base/Main")

	ref := info.SubShaders[0].Passes[0]
	test.AssertEqual(t, ref.IsUsePass, true)
	test.AssertEqual(t, ref.Name, "Base/Main")
	test.AssertEqual(t, ref.Target, main)
	test.AssertEqual(t, ref.VertexSource, "")

	// "Fwd/Main" is the UsePass above, followed to its target
	chained := info.SubShaders[0].Passes[1]
	test.AssertEqual(t, chained.Name, "Fwd/Main")
	test.AssertEqual(t, chained.Resolved(), main)
}

func TestUsePassAcrossShaders(t *testing.T) {
	s := NewSession(DefaultOptions())
	_, err := s.Compile(usePassShader)
	test.AssertNoError(t, err)

	info, err := s.Compile(`Shader "App" {
  SubShader "S" {
    UsePass "Lib/Base/Main"
    UsePass "App/S/Main"
  }
}`)
	test.AssertNoError(t, err)

	lib, _ := s.Shader("Lib")
	main := mustPass(t, lib, "Base/Main")
	test.AssertEqual(t, info.SubShaders[0].Passes[0].Target, main)
	test.AssertEqual(t, info.SubShaders[0].Passes[1].Target, main)
}

func TestUsePassFailures(t *testing.T) {
	s := NewSession(DefaultOptions())

	e := expectCompileError(t, s, `Shader "X" {
  SubShader "S" {
    UsePass "S/Missing"
  }
}`, diagnostic.UnresolvedPassReferenceError)
	test.AssertEqual(t, e.Pos.Line, 3)
	test.AssertEqual(t, e.Pos.Column, 5)

	e = expectCompileError(t, s, `Shader "X" {
  SubShader "A" { UsePass "B/P" }
  SubShader "B" { UsePass "A/P" }
}`, diagnostic.UnresolvedPassReferenceError)
	if !strings.Contains(e.Message, "cycle") {
		t.Errorf("expected a cycle message, got %q", e.Message)
	}

	expectCompileError(t, s, `Shader "X" {
  SubShader "S" { UsePass "Nowhere/S/P" }
}`, diagnostic.UnresolvedPassReferenceError)

	expectCompileError(t, s, `Shader "X" {
  SubShader "S" { UsePass "P" }
}`, diagnostic.UnresolvedPassReferenceError)
}

// ----------------------------------------------------------------------------
// Builtins
// ----------------------------------------------------------------------------

func TestUseBuiltin(t *testing.T) {
	s := NewSession(DefaultOptions())
	unlit, err := s.RegisterBuiltinSource("unlit", `Shader "Unlit" {
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      void vert() { }
      void frag() { }
    }
  }
}`)
	test.AssertNoError(t, err)

	info, err := s.Compile(`Shader "Mat" {
  SubShader "S" {
    Pass "P" {
      UseBuiltin "unlit";
      VertexShader = missing;
    }
  }
}`)
	test.AssertNoError(t, err)
	p := mustPass(t, info, "S/P")
	test.AssertEqual(t, p.Builtin, "unlit")
	test.AssertEqual(t, p.BuiltinShader, unlit)
	test.AssertEqual(t, p.VertexSource, "")

	e := expectCompileError(t, s, `Shader "Mat" {
  SubShader "S" {
    Pass "P" {
      UseBuiltin "pbr";
    }
  }
}`, diagnostic.UnresolvedBuiltinError)
	test.AssertEqual(t, e.Pass, "P")

	test.AssertErrorIs(t, s.RegisterBuiltin("nil", nil), ErrNilBuiltin)
}

// ----------------------------------------------------------------------------
// Errors
// ----------------------------------------------------------------------------

func TestErrorPositionsSkipEditorBlocks(t *testing.T) {
	s := NewSession(DefaultOptions())
	e := expectCompileError(t, s, `Shader "Err" {
  EditorProperties {
    u_color("Color", Color) = (1, 1, 1, 1);
  }
  SubShader "S" {
    Pass "P" {
      DepthState.Bogus = true;
    }
  }
}`, diagnostic.UnknownRenderStateKeyError)

	test.AssertEqual(t, e.Block, "")
	test.AssertEqual(t, e.Pos.Line, 7)
	test.AssertEqual(t, e.Pos.Column, 7)
	test.AssertEqual(t, e.Pass, "P")
}

func TestErrorInChunk(t *testing.T) {
	opts := DefaultOptions()
	opts.Resolver = MapResolver(map[string]string{"bad": "float a;\nfloat $b;\n"})
	e := expectCompileError(t, NewSession(opts), `Shader "Err" {
  #include "bad"
}`, diagnostic.LexError)

	test.AssertEqual(t, e.Block, "bad")
	test.AssertEqual(t, e.Pos.Line, 2)
	test.AssertEqual(t, e.Pos.Column, 7)
}

func TestMissingEntry(t *testing.T) {
	s := NewSession(DefaultOptions())
	e := expectCompileError(t, s, `Shader "Err" {
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      FragmentShader = frag;
      void vert() { }
    }
  }
}`, diagnostic.ParseError)
	test.AssertEqual(t, e.Pos.Line, 5)
	test.AssertEqual(t, e.Pass, "P")

	e = expectCompileError(t, s, `Shader "Err" {
  SubShader "S" {
    Pass "P" {
      VertexShader = vert;
      void vert() { }
    }
  }
}`, diagnostic.ParseError)
	if !strings.Contains(e.Message, "fragment") {
		t.Errorf("expected the fragment stage to be named, got %q", e.Message)
	}
}

func TestUnusedBlockIsValidated(t *testing.T) {
	expectCompileError(t, NewSession(DefaultOptions()), `Shader "Err" {
  DepthState unused {
    Enabled = 3;
  }
}`, diagnostic.RenderStateValueError)
}

func TestNoPartialResult(t *testing.T) {
	s := NewSession(DefaultOptions())
	info, err := s.Compile(`Shader "Err" { SubShader "S" { UsePass "S/X" } }`)
	test.AssertEqual(t, info, (*ShaderInfo)(nil))
	if err == nil {
		t.Fatal("expected an error")
	}
	_, ok := s.Shader("Err")
	test.AssertEqual(t, ok, false)
}

// ----------------------------------------------------------------------------
// Session
// ----------------------------------------------------------------------------

func TestPoolReuseAfterClear(t *testing.T) {
	s := NewSession(DefaultOptions())
	_, err := s.Compile(demoShader)
	test.AssertNoError(t, err)
	inUse := s.arena.InUse()
	statements := s.arena.Statements.Cap()

	s.Clear()
	test.AssertEqual(t, s.arena.InUse(), 0)

	_, err = s.Compile(demoShader)
	test.AssertNoError(t, err)
	test.AssertEqual(t, s.arena.InUse(), inUse)
	test.AssertEqual(t, s.arena.Statements.Cap(), statements)
}

func TestTrimPools(t *testing.T) {
	opts := DefaultOptions()
	opts.TrimPools = true
	opts.PoolSizes.Statements = 1
	s := NewSession(opts)

	_, err := s.Compile(demoShader)
	test.AssertNoError(t, err)
	test.AssertEqual(t, s.arena.Statements.Cap(), 1)
}

func TestSetOptions(t *testing.T) {
	s := NewSession(DefaultOptions())
	_, err := s.Compile(demoShader)
	test.AssertNoError(t, err)

	opts := DefaultOptions()
	opts.PoolSizes = ast.Sizes{}
	opts.Defines = map[string]string{"FOG": "1"}
	s.SetOptions(opts)
	test.AssertEqual(t, s.Options().PoolSizes, ast.DefaultSizes)

	info, err := s.Compile(demoShader)
	test.AssertNoError(t, err)
	p := mustPass(t, info, "Default/Forward")
	if !strings.HasPrefix(p.VertexSource, "#define FOG 1\n") {
		t.Errorf("expected the define header, got:\n%s", p.VertexSource)
	}

	// Earlier shaders stay reachable
	if _, ok := s.Shader("Demo"); !ok {
		t.Error("expected Demo to stay registered")
	}
}

func TestSourceMap(t *testing.T) {
	opts := DefaultOptions()
	opts.SourceMap = true
	opts.SourceMapOptions = SourceMapOptions{File: "demo.glsl", SourceName: "demo.shader", IncludeSource: true}
	opts.Resolver = MapResolver(map[string]string{"common": "float c;\n"})

	info := compile(t, `Shader "M" {
  #include "common"
}`, opts)
	if info.SourceMap == nil {
		t.Fatal("expected a source map")
	}
	test.AssertEqual(t, info.SourceMap.File, "demo.glsl")
	test.AssertEqual(t, strings.Join(info.SourceMap.Sources, ","), "demo.shader,common")
	test.AssertEqual(t, len(info.SourceMap.SourcesContent), 2)
	if !strings.Contains(info.Preprocessed, "float c;") {
		t.Errorf("preprocessed text should hold the chunk:\n%s", info.Preprocessed)
	}
}

func TestJSON(t *testing.T) {
	info := compile(t, usePassShader, DefaultOptions())
	data, err := json.Marshal(info.SubShaders[0].Passes[0])
	test.AssertNoError(t, err)
	test.AssertEqual(t, string(data), `{"name":"Base/Main","isUsePass":true,"renderStates":{"constantMap":{},"variableMap":{}}}`)
}

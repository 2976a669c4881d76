package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const unlit = `Shader "Unlit" {
  #include "common"
  SubShader "Default" {
    Tags { pipelineStage = "Forward" }
    Pass "Forward" {
      BlendState.Enabled = true;
      VertexShader = vert;
      FragmentShader = frag;
      void vert() { gl_Position = vec4(tint(), 1.0); }
      void frag() { gl_FragColor = vec4(tint(), 1.0); }
    }
  }
}`

func TestCompile(t *testing.T) {
	info, err := CompileWithOptions(unlit, CompileOptions{
		Chunks: map[string]string{"common": "vec3 tint() { return vec3(1.0); }\n"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Name != "Unlit" {
		t.Errorf("expected Name 'Unlit', got '%s'", info.Name)
	}
	p, ok := info.Pass("Default/Forward")
	if !ok {
		t.Fatal("expected pass Default/Forward")
	}
	if !strings.Contains(p.VertexSource, "vec3 tint()") {
		t.Errorf("expected the chunk in the vertex source, got:\n%s", p.VertexSource)
	}
	if !strings.Contains(p.FragmentSource, "void main()") {
		t.Errorf("expected the entry renamed to main, got:\n%s", p.FragmentSource)
	}

	pipeline := p.RenderStates.Pipeline(0)
	if pipeline.Targets[0].Blend == nil {
		t.Error("expected blending on target 0")
	}
}

func TestCompileResolverOrder(t *testing.T) {
	var asked []string
	info, err := CompileWithOptions(unlit, CompileOptions{
		Chunks: map[string]string{"other": ""},
		Resolver: func(key string) (string, bool) {
			asked = append(asked, key)
			return "vec3 tint() { return vec3(0.5); }\n", true
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(asked) != 1 || asked[0] != "common" {
		t.Errorf("expected the resolver to be asked for 'common' once, got %v", asked)
	}
	if info.PassCount() != 1 {
		t.Errorf("expected 1 pass, got %d", info.PassCount())
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(unlit)
	if !errors.Is(err, UnresolvedIncludeError) {
		t.Fatalf("expected UnresolvedIncludeError, got %v", err)
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Pos.Line != 2 {
		t.Errorf("expected line 2, got %d", e.Pos.Line)
	}

	_, err = Compile(`Shader "Broken" { SubShader "S" { Pass "P" { VertexShader = ; } } }`)
	if !errors.Is(err, ParseError) {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestCompileToResult(t *testing.T) {
	s := NewSession(CompileOptions{})
	res := CompileToResult(s, `Shader "X" { SubShader "S" { UsePass "S/Missing" } }`)
	if res.Shader != nil {
		t.Error("expected no shader on error")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(res.Errors))
	}
	if res.Errors[0].Kind != "UnresolvedPassReferenceError" {
		t.Errorf("expected UnresolvedPassReferenceError, got %s", res.Errors[0].Kind)
	}
	if res.Errors[0].Line != 1 {
		t.Errorf("expected line 1, got %d", res.Errors[0].Line)
	}

	res = CompileToResult(s, `Shader "Empty" { }`)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"shader":{"name":"Empty","subShaders":null}}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestErrorInfosPlainError(t *testing.T) {
	infos := ErrorInfos(errors.New("boom"))
	if len(infos) != 1 || infos[0].Kind != "Error" || infos[0].Message != "boom" {
		t.Errorf("unexpected infos: %+v", infos)
	}
}

func TestFormatError(t *testing.T) {
	source := "Shader \"F\" {\n  DepthState.Nope = true;\n}"
	_, err := Compile(source)
	if err == nil {
		t.Fatal("expected an error")
	}

	out := FormatError(err, func(block string) (string, bool) {
		return source, block == ""
	})
	want := "2:3: UnknownRenderStateKeyError"
	if !strings.HasPrefix(out, want) {
		t.Errorf("expected prefix %q, got:\n%s", want, out)
	}
	if !strings.Contains(out, "    DepthState.Nope = true;\n      ^\n") {
		t.Errorf("expected a caret under the key, got:\n%s", out)
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	if _, err := Compile(`Shader "Logged" { }`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "shader compiled") {
		t.Errorf("expected a debug record, got:\n%s", buf.String())
	}

	SetLogger(nil)
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("the default logger should be silent")
	}
}

//go:build js && wasm

// Command shaderlab-wasm is the WebAssembly build of the ShaderLab compiler.
// It exposes compilation functions to JavaScript via syscall/js.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/HugoDaniel/shaderlab/pkg/api"
)

var version = "0.1.0"

// jsOptions mirrors the JavaScript options object.
type jsOptions struct {
	Defines       map[string]string `json:"defines"`
	Chunks        map[string]string `json:"chunks"`
	SourceMap     *bool             `json:"sourceMap"`
	SourceName    string            `json:"sourceName"`
	IncludeSource *bool             `json:"includeSource"`
	TrimPools     *bool             `json:"trimPools"`
	ResetSession  bool              `json:"resetSession"`
}

// session persists between calls so UsePass can reach earlier shaders.
var session = api.NewSession(api.CompileOptions{})

func main() {
	// Export functions to JavaScript
	js.Global().Set("__shaderlab", js.ValueOf(map[string]interface{}{
		"compile":         js.FuncOf(compileJS),
		"registerBuiltin": js.FuncOf(registerBuiltinJS),
		"version":         version,
	}))

	// Keep the Go runtime alive
	select {}
}

// compileJS is the JavaScript-callable compile function.
// Signature: __shaderlab.compile(source: string, options?: object) => string (JSON)
func compileJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("compile requires at least 1 argument (source)")
	}

	source := args[0].String()

	if len(args) > 1 && !args[1].IsUndefined() && !args[1].IsNull() {
		jsOpts, err := parseOptions(args[1])
		if err != nil {
			return makeError("invalid options: " + err.Error())
		}
		opts := api.CompileOptions{
			Defines: jsOpts.Defines,
			Chunks:  jsOpts.Chunks,
		}
		opts.SourceMapOptions.SourceName = jsOpts.SourceName
		if jsOpts.SourceMap != nil {
			opts.SourceMap = *jsOpts.SourceMap
		}
		if jsOpts.IncludeSource != nil {
			opts.SourceMapOptions.IncludeSource = *jsOpts.IncludeSource
		}
		if jsOpts.TrimPools != nil {
			opts.TrimPools = *jsOpts.TrimPools
		}
		if jsOpts.ResetSession {
			session = api.NewSession(opts)
		} else {
			session.SetOptions(opts.Options())
		}
	}

	return encode(api.CompileToResult(session, source))
}

// registerBuiltinJS compiles source and registers it as a builtin shader.
// Signature: __shaderlab.registerBuiltin(name: string, source: string) => string (JSON)
func registerBuiltinJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("registerBuiltin requires 2 arguments (name, source)")
	}
	info, err := session.RegisterBuiltinSource(args[0].String(), args[1].String())
	if err != nil {
		return encode(api.CompileResult{Errors: api.ErrorInfos(err)})
	}
	return encode(api.CompileResult{Shader: info})
}

// parseOptions extracts options from a JS object.
func parseOptions(jsVal js.Value) (jsOptions, error) {
	var opts jsOptions
	jsonStr := js.Global().Get("JSON").Call("stringify", jsVal).String()
	err := json.Unmarshal([]byte(jsonStr), &opts)
	return opts, err
}

func encode(res api.CompileResult) interface{} {
	data, err := json.Marshal(res)
	if err != nil {
		return makeError(err.Error())
	}
	return string(data)
}

// makeError creates a result with a single error.
func makeError(msg string) interface{} {
	return encode(api.CompileResult{Errors: []api.ErrorInfo{{Kind: "Error", Message: msg}}})
}

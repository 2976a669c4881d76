// Package main provides a C-callable static library for ShaderLab compilation.
//
// This is built with -buildmode=c-archive to produce libshaderlab.a
// that can be linked into Zig/C/Rust programs.
//
// Build:
//
//	CGO_ENABLED=1 go build -buildmode=c-archive -o build/libshaderlab.a ./cmd/shaderlab-lib
//
// Exported functions:
//
//	shaderlab_compile(source, source_len, options_json, options_len, out_json, out_json_len) -> error_code
//	shaderlab_register_builtin(name, source, source_len, out_json, out_json_len) -> error_code
//	shaderlab_reset() -> void
//	shaderlab_free(ptr) -> void
//	shaderlab_version() -> *char
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/HugoDaniel/shaderlab/pkg/api"
)

// Version should match the release version
const version = "0.1.0"

// Error codes
const (
	SHADERLAB_OK              = 0
	SHADERLAB_ERR_JSON_ENCODE = 1
	SHADERLAB_ERR_NULL_INPUT  = 2
	SHADERLAB_ERR_JSON_DECODE = 3
	SHADERLAB_ERR_COMPILE     = 4
)

// CompileOptions mirrors the Go API options for JSON parsing
type CompileOptions struct {
	Defines       map[string]string `json:"defines"`
	Chunks        map[string]string `json:"chunks"`
	IncludeDirs   []string          `json:"includeDirs"`
	SourceMap     bool              `json:"sourceMap"`
	SourceName    string            `json:"sourceName"`
	IncludeSource bool              `json:"includeSource"`
	TrimPools     bool              `json:"trimPools"`
}

// The library keeps one session; callers serialize through mu.
var (
	mu      sync.Mutex
	session = api.NewSession(api.CompileOptions{})
)

// shaderlab_compile compiles ShaderLab source and returns the result as JSON.
//
// Parameters:
//   - source: pointer to ShaderLab source code (UTF-8)
//   - source_len: length of source in bytes
//   - options_json: pointer to JSON options (can be NULL to keep the current options)
//   - options_len: length of options JSON
//   - out_json: pointer to receive the JSON result (caller must free with shaderlab_free)
//   - out_json_len: pointer to receive JSON length
//
// Returns:
//   - 0 on success
//   - SHADERLAB_ERR_COMPILE when the result carries errors
//   - another non-zero error code on failure
//
//export shaderlab_compile
func shaderlab_compile(
	source *C.char, source_len C.int,
	options_json *C.char, options_len C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	if source == nil || out_json == nil || out_json_len == nil {
		return SHADERLAB_ERR_NULL_INPUT
	}

	goSource := C.GoStringN(source, source_len)

	mu.Lock()
	defer mu.Unlock()

	if options_json != nil && options_len > 0 {
		var jsonOpts CompileOptions
		optStr := C.GoStringN(options_json, options_len)
		if err := json.Unmarshal([]byte(optStr), &jsonOpts); err != nil {
			return SHADERLAB_ERR_JSON_DECODE
		}
		opts := api.CompileOptions{
			Defines:     jsonOpts.Defines,
			Chunks:      jsonOpts.Chunks,
			IncludeDirs: jsonOpts.IncludeDirs,
			SourceMap:   jsonOpts.SourceMap,
			TrimPools:   jsonOpts.TrimPools,
		}
		opts.SourceMapOptions.SourceName = jsonOpts.SourceName
		opts.SourceMapOptions.IncludeSource = jsonOpts.IncludeSource
		session.SetOptions(opts.Options())
	}

	return writeResult(api.CompileToResult(session, goSource), out_json, out_json_len)
}

// shaderlab_register_builtin compiles source and registers it as the
// builtin shader name.
//
//export shaderlab_register_builtin
func shaderlab_register_builtin(
	name *C.char,
	source *C.char, source_len C.int,
	out_json **C.char, out_json_len *C.int,
) C.int {
	if name == nil || source == nil || out_json == nil || out_json_len == nil {
		return SHADERLAB_ERR_NULL_INPUT
	}

	goName := C.GoString(name)
	goSource := C.GoStringN(source, source_len)

	mu.Lock()
	defer mu.Unlock()

	var res api.CompileResult
	info, err := session.RegisterBuiltinSource(goName, goSource)
	if err != nil {
		res.Errors = api.ErrorInfos(err)
	} else {
		res.Shader = info
	}
	return writeResult(res, out_json, out_json_len)
}

// shaderlab_reset drops every compiled shader and builtin.
//
//export shaderlab_reset
func shaderlab_reset() {
	mu.Lock()
	defer mu.Unlock()
	session = api.NewSession(api.CompileOptions{})
}

func writeResult(res api.CompileResult, out_json **C.char, out_json_len *C.int) C.int {
	jsonBytes, err := json.Marshal(res)
	if err != nil {
		return SHADERLAB_ERR_JSON_ENCODE
	}
	*out_json = C.CString(string(jsonBytes))
	*out_json_len = C.int(len(jsonBytes))

	if len(res.Errors) > 0 {
		return SHADERLAB_ERR_COMPILE
	}
	return SHADERLAB_OK
}

// shaderlab_free frees memory allocated by shaderlab functions.
//
//export shaderlab_free
func shaderlab_free(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

var cVersion = C.CString(version)

// shaderlab_version returns the library version string.
// The returned pointer is static and must NOT be freed.
//
//export shaderlab_version
func shaderlab_version() *C.char {
	return cVersion
}

// Required for c-archive build mode
func main() {}

// Package config handles loading compiler configuration from files.
//
// Configuration can be specified in a JSON file named shaderlab.json or
// .shaderlabrc. The config file is searched for in the current directory
// and parent directories.
package config

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/HugoDaniel/shaderlab/internal/compiler"
)

// Config represents the configuration file structure.
// All fields are optional and will use default values if not specified.
type Config struct {
	// IncludeDirs are searched, in order, for shader chunks. Relative
	// paths are relative to the config file.
	IncludeDirs []string `json:"includeDirs,omitempty"`

	// Defines are predefined macros
	Defines map[string]string `json:"defines,omitempty"`

	// SourceMap attaches a source map to the output
	SourceMap *bool `json:"sourceMap,omitempty"`

	// TrimPools shrinks the AST pools after every compile
	TrimPools *bool `json:"trimPools,omitempty"`

	// Builtins maps builtin shader names to shader files
	Builtins map[string]string `json:"builtins,omitempty"`

	// Dir is the directory of the loaded file.
	Dir string `json:"-"`
}

// ConfigFileNames are the names searched for config files, in order of preference.
var ConfigFileNames = []string{
	"shaderlab.json",
	".shaderlabrc",
	".shaderlabrc.json",
}

// Load searches for a config file starting from the given directory
// and walking up to parent directories. Returns nil if no config file is found.
func Load(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, no config found
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)

	return &cfg, nil
}

// resolve makes a config-relative path absolute.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// IncludePaths returns IncludeDirs resolved against the config directory.
func (c *Config) IncludePaths() []string {
	dirs := make([]string, len(c.IncludeDirs))
	for i, d := range c.IncludeDirs {
		dirs[i] = c.resolve(d)
	}
	return dirs
}

// BuiltinPaths returns Builtins with file paths resolved against the
// config directory.
func (c *Config) BuiltinPaths() map[string]string {
	paths := make(map[string]string, len(c.Builtins))
	for name, file := range c.Builtins {
		paths[name] = c.resolve(file)
	}
	return paths
}

// ToOptions converts a Config to compiler.Options, using defaults for unset fields.
func (c *Config) ToOptions() compiler.Options {
	opts := compiler.DefaultOptions()

	if len(c.IncludeDirs) > 0 {
		opts.Resolver = compiler.DirResolver(c.IncludePaths()...)
	}
	if len(c.Defines) > 0 {
		opts.Defines = maps.Clone(c.Defines)
	}
	if c.SourceMap != nil {
		opts.SourceMap = *c.SourceMap
	}
	if c.TrimPools != nil {
		opts.TrimPools = *c.TrimPools
	}

	return opts
}

// MergeOptions holds CLI flags that override config file options.
type MergeOptions struct {
	// CLI flags (nil means not specified on CLI)
	SourceMap   *bool
	TrimPools   *bool
	IncludeDirs []string
	Defines     map[string]string
}

// Merge merges CLI options with config file options.
// CLI options override config file options when specified. CLI include
// directories are searched before the configured ones.
func (c *Config) Merge(cli MergeOptions) compiler.Options {
	opts := c.ToOptions()

	// CLI overrides
	if cli.SourceMap != nil {
		opts.SourceMap = *cli.SourceMap
	}
	if cli.TrimPools != nil {
		opts.TrimPools = *cli.TrimPools
	}
	if len(cli.IncludeDirs) > 0 {
		opts.Resolver = compiler.DirResolver(slices.Concat(cli.IncludeDirs, c.IncludePaths())...)
	}
	if len(cli.Defines) > 0 {
		if opts.Defines == nil {
			opts.Defines = make(map[string]string, len(cli.Defines))
		}
		maps.Copy(opts.Defines, cli.Defines)
	}

	return opts
}

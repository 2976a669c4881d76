// Command shaderlabc compiles ShaderLab shader source code.
//
// Usage:
//
//	shaderlabc [options] <input.shader>
//	cat input.shader | shaderlabc [options]
//
// Options:
//
//	-o <file>          Write output to file (default: stdout)
//	-config <file>     Use specific config file
//	-no-config         Ignore config files
//	-I <dir>           Add a chunk include directory (repeatable)
//	-D <name[=value]>  Predefine a macro (repeatable)
//	-sourcemap         Attach a source map of the preprocessed text
//	-pass <Sub/Pass>   Print the stage sources of one pass instead of JSON
//	-v                 Log compile stages to stderr
//	-version           Print version and exit
//	-help              Print help and exit
//
// Config file:
//
//	shaderlabc looks for shaderlab.json or .shaderlabrc in the input
//	directory and its parents. Config file options are overridden by CLI
//	flags.
//
// Example shaderlab.json:
//
//	{
//	    "includeDirs": ["chunks"],
//	    "defines": {"USE_FOG": "1"},
//	    "sourceMap": false,
//	    "builtins": {"unlit": "builtins/unlit.shader"}
//	}
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/compiler"
	"github.com/HugoDaniel/shaderlab/internal/config"
	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/logger"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

// parseDefines splits NAME=VALUE pairs. A bare NAME defines it as 1.
func parseDefines(list []string) (map[string]string, error) {
	defines := make(map[string]string, len(list))
	for _, d := range list {
		name, value, ok := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid define %q", d)
		}
		if !ok {
			value = "1"
		}
		defines[name] = value
	}
	return defines, nil
}

func run() error {
	// Flags
	var (
		outputFile  string
		configFile  string
		noConfig    bool
		includeDirs listFlag
		defineList  listFlag
		sourceMap   bool
		passName    string
		verbose     bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&outputFile, "o", "", "Write output to `file`")
	flag.StringVar(&configFile, "config", "", "Use specific config `file`")
	flag.BoolVar(&noConfig, "no-config", false, "Ignore config files")
	flag.Var(&includeDirs, "I", "Add a chunk include `dir` (repeatable)")
	flag.Var(&defineList, "D", "Predefine a macro `name[=value]` (repeatable)")
	flag.BoolVar(&sourceMap, "sourcemap", false, "Attach a source map of the preprocessed text")
	flag.StringVar(&passName, "pass", "", "Print the stage sources of pass `Sub/Pass`")
	flag.BoolVar(&verbose, "v", false, "Log compile stages to stderr")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&showHelp, "help", false, "Print help and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "shaderlabc - ShaderLab compiler v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: shaderlabc [options] <input.shader>\n")
		fmt.Fprintf(os.Stderr, "       cat input.shader | shaderlabc [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfig file:\n")
		fmt.Fprintf(os.Stderr, "  Searches for shaderlab.json or .shaderlabrc in the input and parent directories.\n")
		fmt.Fprintf(os.Stderr, "  CLI flags override config file settings.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  shaderlabc -I chunks unlit.shader -o unlit.json\n")
		fmt.Fprintf(os.Stderr, "  shaderlabc -D USE_FOG -pass Default/Forward unlit.shader\n")
		fmt.Fprintf(os.Stderr, "  cat unlit.shader | shaderlabc -sourcemap > unlit.json\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		return nil
	}

	if showVersion {
		fmt.Printf("shaderlabc v%s (%s)\n", version, commit)
		return nil
	}

	if verbose {
		logger.Set(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	// Read input
	var source []byte
	var err error

	if flag.NArg() > 0 {
		// Read from file
		source, err = os.ReadFile(flag.Arg(0))
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	} else {
		// Check if stdin is a pipe
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			flag.Usage()
			return fmt.Errorf("no input file specified")
		}
		// Read from stdin
		source, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	// Load config file
	var cfg *config.Config
	var configPath string
	if !noConfig {
		var err error
		if configFile != "" {
			// Use specified config file
			cfg, err = config.LoadFile(configFile)
			if err != nil {
				return fmt.Errorf("loading config file %s: %w", configFile, err)
			}
			configPath = configFile
		} else {
			// Search for config file
			startDir, _ := os.Getwd()
			if flag.NArg() > 0 {
				startDir = filepath.Dir(flag.Arg(0))
			}
			cfg, configPath, err = config.Load(startDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}
	}
	if cfg == nil {
		cfg = &config.Config{}
	} else if configPath != "" {
		logger.Get().Debug("config loaded", "path", configPath)
	}

	// Build options from config (or defaults) and CLI overrides
	defines, err := parseDefines(defineList)
	if err != nil {
		return err
	}
	cliOpts := config.MergeOptions{
		IncludeDirs: includeDirs,
		Defines:     defines,
	}
	if sourceMap {
		cliOpts.SourceMap = &sourceMap
	}
	opts := cfg.Merge(cliOpts)
	if flag.NArg() > 0 {
		opts.SourceMapOptions.SourceName = filepath.Base(flag.Arg(0))
	}
	if outputFile != "" {
		opts.SourceMapOptions.File = filepath.Base(outputFile)
	}

	session := compiler.NewSession(opts)

	// Register builtins in a stable order
	builtins := cfg.BuiltinPaths()
	for _, name := range slices.Sorted(maps.Keys(builtins)) {
		path := builtins[name]
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading builtin %s: %w", name, err)
		}
		if _, err := session.RegisterBuiltinSource(name, string(text)); err != nil {
			fmt.Fprint(os.Stderr, diagnostic.Format(err, sources(string(text), opts)))
			return fmt.Errorf("compiling builtin %s failed", name)
		}
	}

	// Compile
	info, err := session.Compile(string(source))
	if err != nil {
		fmt.Fprint(os.Stderr, diagnostic.Format(err, sources(string(source), opts)))
		return fmt.Errorf("compilation failed")
	}

	// Write output
	var output io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	if passName != "" {
		return writePass(output, info, passName)
	}

	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	// Print stats to stderr if output is to file
	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "Compiled %q: %d subshader(s), %d pass(es)\n",
			info.Name, len(info.SubShaders), info.PassCount())
	}

	return nil
}

// writePass prints the stage sources of one pass, following UsePass.
func writePass(w io.Writer, info *compiler.ShaderInfo, name string) error {
	p, ok := info.Pass(name)
	if !ok {
		return fmt.Errorf("pass %q not found in shader %q", name, info.Name)
	}
	p = p.Resolved()
	if p.Builtin != "" {
		_, err := fmt.Fprintf(w, "// builtin %q\n", p.Builtin)
		return err
	}
	_, err := fmt.Fprintf(w, "// vertex: %s\n%s\n// fragment: %s\n%s",
		p.VertexEntry, p.VertexSource, p.FragmentEntry, p.FragmentSource)
	return err
}

// sources returns the text of the shader and its chunks for error output.
func sources(source string, opts compiler.Options) diagnostic.SourceFunc {
	return func(block string) (string, bool) {
		if block == "" {
			return source, true
		}
		if opts.Resolver == nil {
			return "", false
		}
		return opts.Resolver(block)
	}
}

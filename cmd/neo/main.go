package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joomcode/errorx"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/neojs/compiler"
	"github.com/chazu/neojs/engine"
	"github.com/chazu/neojs/manifest"
	"github.com/chazu/neojs/pkg/bytecode"
)

var log = commonlog.GetLogger("neo.cli")

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = errors only, 1 = warnings, 2 = info, 3+ = debug)")
	configPath := flag.String("config", "", "Path to a neo.toml manifest (default: search upwards from the working directory)")
	output := flag.String("o", "", "Output file for compile (default: <file>.neoc)")
	trace := flag.Bool("trace", false, "Log every dispatched instruction (needs -v 3)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: neo [options] [command] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run <file>       Compile and run a script\n")
		fmt.Fprintf(os.Stderr, "  disasm <file>    Print the bytecode listing of a script\n")
		fmt.Fprintf(os.Stderr, "  compile <file>   Write the compiled program next to the script\n")
		fmt.Fprintf(os.Stderr, "  repl             Start an interactive session (default)\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  neo run hello.js           # Run a script\n")
		fmt.Fprintf(os.Stderr, "  neo run                    # Run the project entry from neo.toml\n")
		fmt.Fprintf(os.Stderr, "  neo -v 3 disasm lib.js     # Disassemble with debug logging\n")
		fmt.Fprintf(os.Stderr, "  neo                        # Start the REPL\n")
	}
	flag.Parse()

	m, err := loadManifest(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := m.Log.Verbosity
	if *verbosity > 0 {
		level = *verbosity
	}
	var logFile *string
	if path := m.LogFilePath(); path != "" {
		logFile = &path
	}
	commonlog.Configure(level, logFile)

	options := engine.OptionsFromManifest(m)
	if *trace {
		options.VM.Trace = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := "repl", flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "run":
		os.Exit(cmdRun(ctx, m, options, args))
	case "disasm":
		os.Exit(cmdDisasm(args))
	case "compile":
		os.Exit(cmdCompile(args, *output))
	case "repl":
		os.Exit(cmdRepl(ctx, options))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		flag.Usage()
		os.Exit(2)
	}
}

// loadManifest reads an explicit manifest, or the nearest neo.toml above
// the working directory, falling back to the built-in defaults.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// scriptArg picks the file a command works on: the single argument, or the
// project entry when there is none.
func scriptArg(m *manifest.Manifest, args []string) (string, error) {
	switch len(args) {
	case 0:
		if m != nil && m.EntryPath() != "" {
			return m.EntryPath(), nil
		}
		return "", fmt.Errorf("no script given and no project entry configured")
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("expected one script, got %d", len(args))
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func cmdRun(ctx context.Context, m *manifest.Manifest, options engine.Options, args []string) int {
	path, err := scriptArg(m, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	log.Infof("running %s", path)

	e := engine.New(options)
	if _, err := e.RunFile(ctx, path); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		return 1
	}
	return 0
}

func cmdDisasm(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: neo disasm <file>\n")
		return 2
	}
	prog, _, err := compileFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		return 1
	}
	fmt.Print(prog.Disassemble())
	return 0
}

func cmdCompile(args []string, output string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: neo compile [-o out.neoc] <file>\n")
		return 2
	}
	src := args[0]
	prog, source, err := compileFile(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		return 1
	}

	sum := sha256.Sum256([]byte(source))
	data, err := bytecode.Marshal(prog, sum[:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if output == "" {
		output = strings.TrimSuffix(src, filepath.Ext(src)) + engine.CacheExt
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.Infof("wrote %s (%d bytes)", output, len(data))
	return 0
}

func compileFile(path string) (*bytecode.Program, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	source := string(content)
	prog, err := compiler.Compile(source, path)
	return prog, source, err
}

// describeError renders an error escaping a command the way a user wants
// to read it.
func describeError(err error) string {
	switch {
	case errorx.IsOfType(err, compiler.SyntaxError), errorx.IsOfType(err, compiler.CompileError):
		return compiler.FormatError(err)
	case errorx.IsOfType(err, engine.UnhandledRejection):
		return errorx.Cast(err).Message()
	}
	return err.Error()
}

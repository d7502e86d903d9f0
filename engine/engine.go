// Package engine ties the compiler and the virtual machine together: it
// compiles source files (through an optional on-disk program cache), runs
// them on a realm and reports what escaped.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/joomcode/errorx"
	"github.com/tliron/commonlog"

	"github.com/chazu/neojs/compiler"
	"github.com/chazu/neojs/manifest"
	"github.com/chazu/neojs/pkg/bytecode"
	"github.com/chazu/neojs/vm"
)

var log = commonlog.GetLogger("neo.engine")

var (
	// Errors is the namespace of errors raised while running programs.
	Errors = compiler.Errors.NewSubNamespace("engine")

	// UnhandledRejection reports a promise that was rejected and never
	// handled by the time the microtask queue drained.
	UnhandledRejection = Errors.NewType("unhandled_rejection")

	// ReasonProperty carries the rejection reason of an UnhandledRejection.
	ReasonProperty = errorx.RegisterProperty("reason")
)

// Options configures an engine.
type Options struct {
	VM vm.Config

	// Cache enables the compiled program cache for RunFile.
	Cache bool
	// CacheDir holds cached programs. Empty means next to each source.
	CacheDir string
}

// OptionsFromManifest derives engine options from a project manifest.
func OptionsFromManifest(m *manifest.Manifest) Options {
	return Options{
		VM: vm.Config{
			MaxCallDepth: m.VM.MaxCallDepth,
			Trace:        m.VM.Trace,
			PollInterval: m.VM.PollInterval,
		},
		Cache:    m.Cache.Enabled,
		CacheDir: m.CacheDir(),
	}
}

// Engine owns one realm. Globals defined by one run are visible to the
// next, which is what the REPL relies on.
type Engine struct {
	options Options
	realm   *vm.Realm
}

// New creates an engine with a fresh realm.
func New(options Options) *Engine {
	return &Engine{
		options: options,
		realm:   vm.NewRealm(options.VM),
	}
}

// Realm returns the realm programs run in.
func (e *Engine) Realm() *vm.Realm {
	return e.realm
}

// Compile compiles source without running it.
func (e *Engine) Compile(source, filename string) (*bytecode.Program, error) {
	return compiler.Compile(source, filename)
}

// Run compiles and runs source as a script.
func (e *Engine) Run(ctx context.Context, source, filename string) (vm.Value, error) {
	prog, err := e.Compile(source, filename)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, prog)
}

// RunFile runs the script at path, using the program cache when enabled.
func (e *Engine) RunFile(ctx context.Context, path string) (vm.Value, error) {
	prog, err := e.Load(path)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, prog)
}

// Load reads and compiles the script at path. With the cache enabled a
// fresh cached program is reused, and a newly compiled one is stored.
func (e *Engine) Load(path string) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	source := string(data)
	if !e.options.Cache {
		return e.Compile(source, path)
	}

	c := newCache(e.options.CacheDir)
	sum := sourceSum(source)
	if prog := c.load(path, sum); prog != nil {
		return prog, nil
	}
	prog, err := e.Compile(source, path)
	if err != nil {
		return nil, err
	}
	c.store(path, sum, prog)
	return prog, nil
}

// Eval compiles source for the REPL: top-level declarations live in the
// global scope, so later inputs see them.
func (e *Engine) Eval(ctx context.Context, source string) (vm.Value, error) {
	prog, err := compiler.Compile(source, "repl", compiler.WithGlobalScope())
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, prog)
}

// Execute runs a compiled program to completion, including every
// microtask it queued. An uncaught exception comes back as *vm.Exception;
// a promise rejection nobody handled as an UnhandledRejection error.
func (e *Engine) Execute(ctx context.Context, prog *bytecode.Program) (vm.Value, error) {
	result, err := e.realm.Run(ctx, prog)
	if err != nil {
		log.Debugf("%s: %s", prog.Filename, err)
		e.realm.UnhandledRejections()
		return nil, err
	}
	if reasons := e.realm.UnhandledRejections(); len(reasons) > 0 {
		for _, reason := range reasons[1:] {
			log.Warningf("%s: unhandled rejection: %s", prog.Filename, vm.Inspect(reason))
		}
		return result, UnhandledRejection.New("Uncaught (in promise) %s", vm.Inspect(reasons[0])).
			WithProperty(ReasonProperty, reasons[0])
	}
	return result, nil
}

// Reason extracts the rejection reason from an UnhandledRejection error.
func Reason(err error) (vm.Value, bool) {
	v, ok := errorx.ExtractProperty(err, ReasonProperty)
	return v, ok
}

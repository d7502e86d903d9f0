package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joomcode/errorx"

	"github.com/chazu/neojs/manifest"
	"github.com/chazu/neojs/vm"
)

func newTestEngine(options Options) (*Engine, *bytes.Buffer) {
	var out bytes.Buffer
	options.VM.Stdout = &out
	options.VM.Stderr = &out
	return New(options), &out
}

func TestEvalKeepsGlobals(t *testing.T) {
	e, _ := newTestEngine(Options{})
	ctx := context.Background()

	if _, err := e.Eval(ctx, "let a = 20; function twice(x) { return x * 2; }"); err != nil {
		t.Fatalf("eval: %v", err)
	}
	v, err := e.Eval(ctx, "twice(a) + 2")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if v != 42.0 {
		t.Errorf("result = %v, want 42", v)
	}
}

func TestUncaughtException(t *testing.T) {
	e, _ := newTestEngine(Options{})
	_, err := e.Run(context.Background(), "throw 7;", "throw.js")
	var exc *vm.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("expected *vm.Exception, got %v", err)
	}
	if exc.Value != 7.0 {
		t.Errorf("thrown value = %v, want 7", exc.Value)
	}
	if err.Error() != "Uncaught 7" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestUnhandledRejection(t *testing.T) {
	e, _ := newTestEngine(Options{})
	_, err := e.Run(context.Background(), "Promise.reject('nope');", "reject.js")
	if !errorx.IsOfType(err, UnhandledRejection) {
		t.Fatalf("expected an unhandled rejection, got %v", err)
	}
	reason, ok := Reason(err)
	if !ok || reason != "nope" {
		t.Errorf("reason = %v, want nope", reason)
	}

	// handled rejections are not reported
	if _, err := e.Run(context.Background(), "Promise.reject(1).catch(() => {});", "handled.js"); err != nil {
		t.Errorf("handled rejection reported: %v", err)
	}
}

func TestUnhandledRejectionPlacement(t *testing.T) {
	tests := []struct {
		name   string
		source string
		reason vm.Value
	}{
		{"last statement", "Promise.reject('nope');", "nope"},
		{"followed by a statement", "Promise.reject('nope'); 1;", "nope"},
		{"async function result", "async function f() { throw 1; } f();", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(Options{})
			_, err := e.Run(context.Background(), tt.source, "reject.js")
			if !errorx.IsOfType(err, UnhandledRejection) {
				t.Fatalf("expected an unhandled rejection, got %v", err)
			}
			if reason, _ := Reason(err); reason != tt.reason {
				t.Errorf("reason = %v, want %v", reason, tt.reason)
			}
		})
	}
}

func TestCompletionPromiseIsNotAwaited(t *testing.T) {
	e, _ := newTestEngine(Options{})
	v, err := e.Eval(context.Background(), "Promise.resolve(3)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got := vm.Inspect(v); got != "Promise { 3 }" {
		t.Errorf("completion = %s, want Promise { 3 }", got)
	}
}

func TestCompileError(t *testing.T) {
	e, _ := newTestEngine(Options{})
	_, err := e.Run(context.Background(), "let = ;", "bad.js")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if _, ok := err.(*vm.Exception); ok {
		t.Error("syntax errors must be reported before running")
	}
}

func TestRunFileCache(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.js")
	if err := os.WriteFile(src, []byte(`console.log("one");`), 0644); err != nil {
		t.Fatal(err)
	}

	e, out := newTestEngine(Options{Cache: true})
	ctx := context.Background()
	if _, err := e.RunFile(ctx, src); err != nil {
		t.Fatalf("run: %v", err)
	}
	cached := filepath.Join(dir, "main"+CacheExt)
	if _, err := os.Stat(cached); err != nil {
		t.Fatalf("no cached program: %v", err)
	}

	prog, err := e.Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if prog.Filename != src {
		t.Errorf("cached filename = %q, want %q", prog.Filename, src)
	}

	// a changed source invalidates the image
	if err := os.WriteFile(src, []byte(`console.log("two");`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RunFile(ctx, src); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "one\ntwo\n" {
		t.Errorf("output = %q", got)
	}
}

func TestCacheDir(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	src := filepath.Join(dir, "app.js")
	if err := os.WriteFile(src, []byte(`1 + 1`), 0644); err != nil {
		t.Fatal(err)
	}

	e, _ := newTestEngine(Options{Cache: true, CacheDir: cacheDir})
	v, err := e.RunFile(context.Background(), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v != 2.0 {
		t.Errorf("result = %v, want 2", v)
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("cache dir entries = %v (%v)", entries, err)
	}
	if filepath.Ext(entries[0].Name()) != CacheExt {
		t.Errorf("cached file %q", entries[0].Name())
	}
}

func TestOptionsFromManifest(t *testing.T) {
	m := manifest.Default()
	m.VM.Trace = true
	opts := OptionsFromManifest(m)
	if opts.VM.MaxCallDepth != 2000 || !opts.VM.Trace || opts.VM.PollInterval != 1024 {
		t.Errorf("vm options = %+v", opts.VM)
	}
	if opts.Cache {
		t.Error("cache enabled without a project")
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/neojs/compiler"
	"github.com/chazu/neojs/engine"
	"github.com/chazu/neojs/manifest"
)

func TestNeedsMore(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"1 + 2", false},
		{"function f() {", true},
		{"function f() {\n  return 1;", true},
		{"function f() {\n  return 1;\n}", false},
		{"let x = [1,", true},
		{"let x = ]", false},
	}
	for _, tt := range tests {
		if got := needsMore(tt.src); got != tt.want {
			t.Errorf("needsMore(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestScriptArg(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte("[project]\nentry = \"main.js\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if got, err := scriptArg(m, nil); err != nil || got != filepath.Join(dir, "main.js") {
		t.Errorf("scriptArg(entry) = %q, %v", got, err)
	}
	if got, err := scriptArg(m, []string{"other.js"}); err != nil || got != "other.js" {
		t.Errorf("scriptArg(arg) = %q, %v", got, err)
	}
	if _, err := scriptArg(manifest.Default(), nil); err == nil {
		t.Error("expected an error without a script or entry")
	}
	if _, err := scriptArg(m, []string{"a.js", "b.js"}); err == nil {
		t.Error("expected an error for two scripts")
	}
}

func TestDescribeError(t *testing.T) {
	_, err := compiler.Compile("let a = 1;\nlet a = 2;", "main.js")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if got := describeError(err); !strings.HasPrefix(got, "SyntaxError: ") {
		t.Errorf("describeError = %q", got)
	}

	rejection := engine.UnhandledRejection.New("Uncaught (in promise) %s", "1")
	if got := describeError(rejection); got != "Uncaught (in promise) 1" {
		t.Errorf("describeError = %q", got)
	}
}

func TestCompileWritesImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.js")
	if err := os.WriteFile(src, []byte(`console.log("hi");`), 0644); err != nil {
		t.Fatal(err)
	}
	if code := cmdCompile([]string{src}, ""); code != 0 {
		t.Fatalf("compile exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "hello"+engine.CacheExt)); err != nil {
		t.Errorf("image not written: %v", err)
	}
}

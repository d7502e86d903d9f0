package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
entry = "src/main.js"

[vm]
max-call-depth = 500
trace = true
poll-interval = 64

[cache]
enabled = false
dir = ".neo/cache"

[log]
verbosity = 2
file = "neo.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if got := m.EntryPath(); got != filepath.Join(m.Dir, "src", "main.js") {
		t.Errorf("entry path = %q", got)
	}
	if m.VM.MaxCallDepth != 500 {
		t.Errorf("max-call-depth = %d, want 500", m.VM.MaxCallDepth)
	}
	if !m.VM.Trace {
		t.Error("trace = false, want true")
	}
	if m.VM.PollInterval != 64 {
		t.Errorf("poll-interval = %d, want 64", m.VM.PollInterval)
	}
	if m.Cache.Enabled {
		t.Error("cache enabled = true, want false")
	}
	if got := m.CacheDir(); got != filepath.Join(m.Dir, ".neo", "cache") {
		t.Errorf("cache dir = %q", got)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got := m.LogFilePath(); got != filepath.Join(m.Dir, "neo.log") {
		t.Errorf("log file = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.VM.MaxCallDepth != 2000 {
		t.Errorf("default max-call-depth = %d, want 2000", m.VM.MaxCallDepth)
	}
	if m.VM.PollInterval != 1024 {
		t.Errorf("default poll-interval = %d, want 1024", m.VM.PollInterval)
	}
	if !m.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if m.CacheDir() != "" {
		t.Errorf("default cache dir = %q, want empty", m.CacheDir())
	}
	if m.EntryPath() != "" {
		t.Errorf("default entry = %q, want empty", m.EntryPath())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error"},
		{"unknown key", "[vm]\nmax-depth = 3", "unknown key vm.max-depth"},
		{"wrong type", "[vm]\ntrace = \"yes\"", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no neo.toml exists")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\nname = \"explicit\"\n")

	m, err := LoadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if m.Project.Name != "explicit" {
		t.Errorf("project name = %q, want explicit", m.Project.Name)
	}

	if _, err := LoadFile(filepath.Join(dir, "other.toml")); err == nil {
		t.Error("expected an error for a file not named neo.toml")
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.VM.MaxCallDepth != 2000 || m.VM.PollInterval != 1024 {
		t.Errorf("defaults = %+v", m.VM)
	}
	if m.Cache.Enabled {
		t.Error("cache should be off without a project")
	}
}

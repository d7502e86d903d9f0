// Package manifest handles neo.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "neo.toml"

// Manifest represents a neo.toml project configuration.
type Manifest struct {
	Project Project   `toml:"project"`
	VM      VMConfig  `toml:"vm"`
	Cache   Cache     `toml:"cache"`
	Log     LogConfig `toml:"log"`

	// Dir is the directory containing the neo.toml file (set at load time).
	// Empty for the built-in defaults.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// VMConfig tunes the virtual machine.
type VMConfig struct {
	MaxCallDepth int  `toml:"max-call-depth"`
	Trace        bool `toml:"trace"`
	PollInterval int  `toml:"poll-interval"`
}

// Cache configures the compiled program cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no neo.toml is found.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.VM.MaxCallDepth <= 0 {
		m.VM.MaxCallDepth = 2000
	}
	if m.VM.PollInterval <= 0 {
		m.VM.PollInterval = 1024
	}
}

// Load parses a neo.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Manifest{Cache: Cache{Enabled: true}}
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s in %s", undecoded[0], path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

// LoadFile parses the manifest at an explicit path, as given with -config.
func LoadFile(path string) (*Manifest, error) {
	if filepath.Base(path) != FileName {
		return nil, fmt.Errorf("%s: configuration file must be named %s", path, FileName)
	}
	return Load(filepath.Dir(path))
}

// FindAndLoad walks up from startDir to find a neo.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the project entry file, or ""
// when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Project.Entry) {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// CacheDir returns the directory compiled programs are written to. An
// empty result means next to each source file.
func (m *Manifest) CacheDir() string {
	if m.Cache.Dir == "" {
		return ""
	}
	if filepath.IsAbs(m.Cache.Dir) || m.Dir == "" {
		return m.Cache.Dir
	}
	return filepath.Join(m.Dir, m.Cache.Dir)
}

// LogFilePath returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogFilePath() string {
	if m.Log.File == "" || filepath.IsAbs(m.Log.File) || m.Dir == "" {
		return m.Log.File
	}
	return filepath.Join(m.Dir, m.Log.File)
}

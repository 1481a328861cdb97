// Package manifest handles game.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chazu/sciv/scifmt"
	"github.com/chazu/sciv/vm"
)

// FileName is the name of the configuration file.
const FileName = "game.toml"

// Manifest represents a game.toml configuration.
type Manifest struct {
	Game      Game      `toml:"game"`
	VM        VMConfig  `toml:"vm"`
	Resources Resources `toml:"resources"`
	Saves     Saves     `toml:"saves"`

	// Dir is the directory containing the game.toml file (set at load time).
	Dir string `toml:"-"`
}

// Game contains game metadata.
type Game struct {
	Name  string `toml:"name"`
	Title string `toml:"title"`

	// Version forces the script format ("sci0-early", "sci0", "sci1.1").
	// Empty means detect.
	Version string `toml:"version"`
}

// VMConfig tunes the engine.
type VMConfig struct {
	GCInterval int  `toml:"gc-interval"`
	MaxClasses int  `toml:"max-classes"`
	StackSize  int  `toml:"stack-size"`
	StrictSend bool `toml:"strict-send"`
	CheckLoads bool `toml:"check-loads"`
}

// Resources configures where resources are found.
type Resources struct {
	Dirs []string `toml:"dirs"`
}

// Saves configures the save game catalog.
type Saves struct {
	Dir     string `toml:"dir"`
	Catalog string `toml:"catalog"`
}

// Parse decodes game.toml content and applies defaults.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	// Defaults
	if len(m.Resources.Dirs) == 0 {
		m.Resources.Dirs = []string{"."}
	}
	if m.Saves.Dir == "" {
		m.Saves.Dir = "saves"
	}
	if m.Saves.Catalog == "" {
		m.Saves.Catalog = "catalog.db"
	}
	if m.Game.Version != "" {
		if _, err := scifmt.ParseVersion(m.Game.Version); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// Load parses a game.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a game.toml file,
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

// Options maps the configuration onto engine options. Zero values keep the
// engine defaults.
func (m *Manifest) Options() ([]vm.Option, error) {
	var opts []vm.Option
	if m.Game.Version != "" {
		v, err := scifmt.ParseVersion(m.Game.Version)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vm.WithVersion(v))
	}
	if m.VM.GCInterval != 0 {
		opts = append(opts, vm.WithGCInterval(m.VM.GCInterval))
	}
	if m.VM.MaxClasses != 0 {
		opts = append(opts, vm.WithMaxClasses(m.VM.MaxClasses))
	}
	if m.VM.StackSize != 0 {
		opts = append(opts, vm.WithStackSize(m.VM.StackSize))
	}
	opts = append(opts,
		vm.WithStrictSend(m.VM.StrictSend),
		vm.WithCheckLoads(m.VM.CheckLoads),
	)
	return opts, nil
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ResourceDirPaths returns absolute paths for the configured resource directories.
func (m *Manifest) ResourceDirPaths() []string {
	var paths []string
	for _, d := range m.Resources.Dirs {
		paths = append(paths, m.abs(d))
	}
	return paths
}

// SaveDir returns the path of the save directory.
func (m *Manifest) SaveDir() string {
	return m.abs(m.Saves.Dir)
}

// CatalogPath returns the path of the save catalog database.
func (m *Manifest) CatalogPath() string {
	return filepath.Join(m.SaveDir(), m.Saves.Catalog)
}

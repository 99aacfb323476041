// Package config loads pyrite.toml, the project configuration that the
// CLI and the build orchestrator consume.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Config is a parsed pyrite.toml.
type Config struct {
	// Paths are the source roots to check, relative to the config file.
	Paths []string `toml:"paths"`

	Exclude Exclude `toml:"exclude"`
	Strict  Strict  `toml:"strict"`
	Limits  Limits  `toml:"limits"`
	Cache   Cache   `toml:"cache"`
	Watch   Watch   `toml:"watch"`

	// Dir is the directory the config was loaded from; paths resolve
	// against it. Not part of the file.
	Dir string `toml:"-"`

	excludeGlobs []glob.Glob
}

type Exclude struct {
	// Files are glob patterns matched against slash-separated paths
	// relative to the project root.
	Files []string `toml:"files"`
}

type Strict struct {
	// MissingImportsAreAny downgrades unresolvable imports from errors
	// to warnings and types the missing module as Any.
	MissingImportsAreAny bool `toml:"missing_imports_are_any"`
}

type Limits struct {
	// MaxLoopPasses caps loop-narrowing fixpoint iteration.
	MaxLoopPasses int `toml:"max_loop_passes"`
	// MaxCyclePasses caps import-cycle resolution iteration.
	MaxCyclePasses int `toml:"max_cycle_passes"`
	// Parallelism bounds concurrent component checking; 0 means
	// unbounded.
	Parallelism int `toml:"parallelism"`
}

type Cache struct {
	// Dir holds the sqlite result cache. Relative to the project root.
	Dir string `toml:"dir"`
	// Disabled turns persistent caching off entirely.
	Disabled bool `toml:"disabled"`
}

type Watch struct {
	Debounce Duration `toml:"debounce"`
}

// Duration decodes TOML strings like "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// ConfigFile is the file name searched for by Find.
const ConfigFile = "pyrite.toml"

// Default returns the configuration used when no pyrite.toml exists,
// rooted at dir.
func Default(dir string) *Config {
	cfg := &Config{Dir: dir}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates one config file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	cfg.Dir = filepath.Dir(path)
	cfg.applyDefaults()

	for _, pattern := range cfg.Exclude.Files {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "exclude pattern %q", pattern)
		}
		cfg.excludeGlobs = append(cfg.excludeGlobs, g)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Paths) == 0 {
		c.Paths = []string{"."}
	}
	if c.Limits.MaxLoopPasses <= 0 {
		c.Limits.MaxLoopPasses = 5
	}
	if c.Limits.MaxCyclePasses <= 0 {
		c.Limits.MaxCyclePasses = 5
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = ".pyrite"
	}
	if c.Watch.Debounce.Duration == 0 {
		c.Watch.Debounce.Duration = 500 * time.Millisecond
	}
}

// Find walks upward from dir looking for pyrite.toml, stopping at the
// filesystem root or a .git directory boundary. A miss returns the
// defaults rooted at the starting directory, not an error.
func Find(dir string) (*Config, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cur := start
	for {
		path := filepath.Join(cur, ConfigFile)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			break // repository root without a config
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return Default(start), nil
}

// Excluded reports whether a path (relative to the project root, slash
// separated) matches an exclude pattern.
func (c *Config) Excluded(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, g := range c.excludeGlobs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// CachePath returns the absolute path of the sqlite result cache, or ""
// when persistent caching is disabled.
func (c *Config) CachePath() string {
	if c.Cache.Disabled {
		return ""
	}
	dir := c.Cache.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Dir, dir)
	}
	return filepath.Join(dir, "cache.db")
}

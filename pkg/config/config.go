// Package config loads git-evtag settings from TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/evtag/pkg/evtag"
)

// Signature modes.
const (
	ModeGit  = "git"
	ModeSSH  = "ssh"
	ModeNone = "none"
)

// RepoFile is the per-repository config file name, read from the
// working tree root.
const RepoFile = ".git-evtag.toml"

// Config is the full set of settings.
type Config struct {
	Signature Signature `toml:"signature"`
	Checksum  Checksum  `toml:"checksum"`
	Log       Log       `toml:"log"`

	// Source is the file the config was read from; empty for defaults.
	Source string `toml:"-"`
}

type Signature struct {
	Mode           string `toml:"mode"`
	Program        string `toml:"program"`
	AllowedSigners string `toml:"allowed_signers"`
	Namespace      string `toml:"namespace"`
}

type Checksum struct {
	MaxDepth int `toml:"max_depth"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Signature: Signature{Mode: ModeGit, Program: "git", Namespace: "git"},
		Checksum:  Checksum{MaxDepth: evtag.DefaultMaxDepth},
		Log:       Log{Level: "warn", Format: "console"},
	}
}

// Load reads the first config that exists among explicit, the repository
// file under repoRoot and the user config file. An explicit path must
// exist. With no file found, Load returns the defaults.
func Load(explicit, repoRoot string) (*Config, error) {
	if explicit != "" {
		return ReadFile(explicit)
	}
	for _, p := range SearchPaths(repoRoot) {
		cfg, err := ReadFile(p)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return Default(), nil
}

// SearchPaths lists the implicit config locations in priority order.
func SearchPaths(repoRoot string) []string {
	var paths []string
	if repoRoot != "" {
		paths = append(paths, filepath.Join(repoRoot, RepoFile))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "git-evtag", "config.toml"))
	}
	return paths
}

// ReadFile reads one config file over the defaults. Unknown keys are an
// error.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Signature.Mode {
	case ModeGit, ModeSSH, ModeNone:
	default:
		return fmt.Errorf("signature.mode %q: want %s, %s or %s", c.Signature.Mode, ModeGit, ModeSSH, ModeNone)
	}
	if c.Checksum.MaxDepth <= 0 {
		return fmt.Errorf("checksum.max_depth must be positive, got %d", c.Checksum.MaxDepth)
	}
	return nil
}

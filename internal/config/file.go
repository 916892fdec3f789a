package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape for Gauntlet. Each
// plugin owns a nested mapping of its dotted keys; absent keys fall to
// schema defaults.
type FileConfig struct {
	Plugins map[string]map[string]any `yaml:"plugins"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadLocal searches for a repo-local config file in the given root.
// It supports .gauntlet.yml/.yaml and gauntlet.yml/.yaml.
func LoadLocal(root string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range []string{".gauntlet.yml", ".gauntlet.yaml", "gauntlet.yml", "gauntlet.yaml"} {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return cfg, errors.New("no config dir")
	}
	p := filepath.Join(base, "gauntlet", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}

// MarshalSchemas serializes an exported registry to YAML. Defaults survive
// a serialize/parse round trip exactly.
func MarshalSchemas(schemas map[string]Schema) ([]byte, error) {
	return yaml.Marshal(schemas)
}

// UnmarshalSchemas parses a registry previously produced by MarshalSchemas.
func UnmarshalSchemas(b []byte) (map[string]Schema, error) {
	out := map[string]Schema{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

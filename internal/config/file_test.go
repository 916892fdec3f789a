package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadFile_Basic(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "gauntlet.yaml", `
plugins:
  wafw00f:
    timeout: 60
  zap:
    cloud:
      provider: aws
`)
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Plugins["wafw00f"]["timeout"] != 60 {
		t.Fatalf("expected wafw00f.timeout=60, got %#v", cfg.Plugins["wafw00f"])
	}
	cloud, ok := cfg.Plugins["zap"]["cloud"].(map[string]any)
	if !ok || cloud["provider"] != "aws" {
		t.Fatalf("expected nested zap.cloud.provider=aws, got %#v", cfg.Plugins["zap"])
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "gauntlet.yaml", "plugins: [not a map\n")
	if _, err := LoadFile(p); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadLocal_PrefersDotfile(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "gauntlet.yaml", "plugins:\n  wafw00f:\n    timeout: 1\n")
	writeTemp(t, dir, ".gauntlet.yaml", "plugins:\n  wafw00f:\n    timeout: 7\n")
	cfg, err := LoadLocal(dir)
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if cfg.Plugins["wafw00f"]["timeout"] != 7 {
		t.Fatalf("expected timeout=7 from .gauntlet.yaml, got %#v", cfg.Plugins["wafw00f"])
	}
}

func TestLoadLocal_NoConfig(t *testing.T) {
	if _, err := LoadLocal(t.TempDir()); err == nil {
		t.Fatal("expected error when no local config exists")
	}
}

func TestLoadGlobal_XDG_Config(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "gauntlet")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTemp(t, cfgDir, "config.yml", "plugins:\n  wafw00f:\n    timeout: 9\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Plugins["wafw00f"]["timeout"] != 9 {
		t.Fatalf("expected timeout=9 from global config, got %#v", cfg.Plugins["wafw00f"])
	}
}

func TestExpandPlaceholders(t *testing.T) {
	t.Setenv("GAUNTLET_TEST_TOKEN", "tok123")
	cases := []struct{ in, want string }{
		{"${GAUNTLET_TEST_TOKEN}", "tok123"},
		{"prefix-${GAUNTLET_TEST_TOKEN}-suffix", "prefix-tok123-suffix"},
		{"${GAUNTLET_TEST_MISSING}", "${GAUNTLET_TEST_MISSING}"},
		{"no placeholders", "no placeholders"},
		{"$GAUNTLET_TEST_TOKEN", "$GAUNTLET_TEST_TOKEN"}, // only ${VAR} shape expands
	}
	for _, c := range cases {
		if got := ExpandPlaceholders(c.in); got != c.want {
			t.Fatalf("ExpandPlaceholders(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

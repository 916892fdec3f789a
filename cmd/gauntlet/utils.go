package gauntlet

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	semver3 "github.com/blang/semver"
	semver "github.com/blang/semver/v4"
	"github.com/rhysd/go-github-selfupdate/selfupdate"

	"github.com/gauntletsec/gauntlet/internal/config"
	"github.com/gauntletsec/gauntlet/internal/infra"
	"github.com/gauntletsec/gauntlet/internal/infra/terraform"
	"github.com/gauntletsec/gauntlet/internal/plugin"
	"github.com/gauntletsec/gauntlet/internal/plugins/sslscan"
	"github.com/gauntletsec/gauntlet/internal/plugins/wafw00f"
	"github.com/gauntletsec/gauntlet/internal/plugins/zapscan"
)

func selfUpdate() error {
	v := version
	// Use build info if tag overridden at build-time
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(v) == 0 {
				v = s.Value
			}
		}
	}
	// parse semantic version (strip leading v)
	ver, err := semver.ParseTolerant(v)
	if err != nil {
		ver = semver.MustParse("0.0.0")
	}
	// Update from GitHub Releases: gauntletsec/gauntlet
	latest, err := selfupdate.UpdateSelf(semver3.MustParse(ver.String()), "gauntletsec/gauntlet")
	if err != nil {
		return err
	}
	_ = latest
	return nil
}

// buildManager assembles the config manager for one invocation: global
// file, then local or explicit file, then legacy adaptation for the zap
// plugin, then CLI overrides on top.
func buildManager(root string) (*config.Manager, error) {
	m := config.NewManager()

	if c, err := config.LoadGlobal(); err == nil {
		c, notes := zapscan.AdaptFileConfig(c)
		reportLegacyNotes(notes)
		m.ApplyFile(c)
	}
	if flagConfig != "" {
		c, err := config.LoadFile(flagConfig)
		if err != nil {
			return nil, err
		}
		c, notes := zapscan.AdaptFileConfig(c)
		reportLegacyNotes(notes)
		m.ApplyFile(c)
	} else if c, err := config.LoadLocal(root); err == nil {
		c, notes := zapscan.AdaptFileConfig(c)
		reportLegacyNotes(notes)
		m.ApplyFile(c)
	}

	for _, kv := range flagSet {
		pluginName, key, value, err := parseSetFlag(kv)
		if err != nil {
			return nil, err
		}
		m.SetOverride(pluginName, key, value)
	}
	return m, nil
}

func reportLegacyNotes(notes []string) {
	for _, n := range notes {
		fmt.Fprintln(os.Stderr, "config:", n)
	}
}

// parseSetFlag splits "plugin.dotted.key=value" and coerces obvious
// scalar types so overrides compare naturally against schema defaults.
func parseSetFlag(kv string) (string, string, any, error) {
	eq := strings.IndexByte(kv, '=')
	if eq < 0 {
		return "", "", nil, fmt.Errorf("invalid --set %q: expected plugin.key=value", kv)
	}
	path, raw := kv[:eq], kv[eq+1:]
	dot := strings.IndexByte(path, '.')
	if dot <= 0 || dot == len(path)-1 {
		return "", "", nil, fmt.Errorf("invalid --set %q: key must be plugin.dotted.key", kv)
	}
	return path[:dot], path[dot+1:], coerceScalar(raw), nil
}

func coerceScalar(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// stateDir is where infrastructure state records live.
func stateDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, "gauntlet", "infra")
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return filepath.Join(os.TempDir(), "gauntlet-infra")
	}
	return filepath.Join(home, ".local", "state", "gauntlet", "infra")
}

func infraDriver() *infra.Driver {
	return &infra.Driver{
		Backend:    &terraform.Backend{},
		RecordsDir: stateDir(),
	}
}

// buildPlugins constructs every registered plugin with its configuration
// bound eagerly. A plugin whose configuration is invalid fails the whole
// invocation up front.
func buildPlugins(m *config.Manager) ([]plugin.Plugin, error) {
	exec := shellExecutor{}

	wp, err := wafw00f.New(m, exec)
	if err != nil {
		return nil, err
	}
	sp, err := sslscan.New(m, exec)
	if err != nil {
		return nil, err
	}
	zp, err := zapscan.New(m, infraDriver(), nil)
	if err != nil {
		return nil, err
	}
	return []plugin.Plugin{wp, sp, zp}, nil
}

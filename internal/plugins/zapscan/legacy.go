package zapscan

import (
	"fmt"
	"sort"

	"github.com/gauntletsec/gauntlet/internal/config"
)

// The flat legacy configuration shape predates the nested schema: a
// top-level cloud_provider, a zap_config block of engine settings, and
// tags, with no execution_mode. TranslateLegacy rewrites it into the
// canonical nested shape exactly once at load time; only the canonical
// shape flows downstream.

// legacyKeyMap maps each flat legacy key to its single canonical
// location. A key absent from this map is dropped with a recorded note,
// never silently and never duplicated.
var legacyKeyMap = map[string]string{
	"cloud_provider": "cloud.provider",
	"region":         "cloud.region",
	"instance_type":  "cloud.instance_type",
	"tags":           "cloud.tags",
}

// legacyZapConfigMap maps keys inside the legacy zap_config block.
var legacyZapConfigMap = map[string]string{
	"api_key":       "cloud.api_key",
	"spider":        "scan.spider",
	"active_scan":   "scan.active",
	"poll_interval": "scan.poll_interval",
	"report_format": "scan.report_format",
}

// IsLegacy reports whether the plugin's file values use the flat legacy
// shape: no execution_mode, with at least one of the legacy markers.
func IsLegacy(values map[string]any) bool {
	if values == nil {
		return false
	}
	if _, ok := values["execution_mode"]; ok {
		return false
	}
	for _, marker := range []string{"cloud_provider", "zap_config", "tags"} {
		if _, ok := values[marker]; ok {
			return true
		}
	}
	return false
}

// TranslateLegacy deterministically rewrites a flat legacy mapping into
// the nested canonical shape, forcing execution_mode to cloud. It returns
// the canonical values and one note per dropped key.
func TranslateLegacy(legacy map[string]any) (map[string]any, []string) {
	tree := config.NewTree()
	var notes []string

	keys := make([]string, 0, len(legacy))
	for k := range legacy {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := legacy[k]
		if k == "zap_config" {
			block, ok := v.(map[string]any)
			if !ok {
				notes = append(notes, fmt.Sprintf("dropped legacy key %q: expected a mapping", k))
				continue
			}
			bkeys := make([]string, 0, len(block))
			for bk := range block {
				bkeys = append(bkeys, bk)
			}
			sort.Strings(bkeys)
			for _, bk := range bkeys {
				if dest, ok := legacyZapConfigMap[bk]; ok {
					tree.Set(dest, block[bk])
				} else {
					notes = append(notes, fmt.Sprintf("dropped legacy key %q: no canonical location", "zap_config."+bk))
				}
			}
			continue
		}
		if dest, ok := legacyKeyMap[k]; ok {
			tree.Set(dest, v)
			continue
		}
		notes = append(notes, fmt.Sprintf("dropped legacy key %q: no canonical location", k))
	}

	// The legacy shape only ever described cloud deployments.
	tree.Set("execution_mode", string(ModeCloud))

	return tree.Root(), notes
}

// AdaptFileConfig applies legacy translation to the plugin's section of a
// loaded file config, leaving every other plugin untouched.
func AdaptFileConfig(fc config.FileConfig) (config.FileConfig, []string) {
	values, ok := fc.Plugins[Name]
	if !ok || !IsLegacy(values) {
		return fc, nil
	}
	canonical, notes := TranslateLegacy(values)
	out := config.FileConfig{Plugins: map[string]map[string]any{}}
	for name, v := range fc.Plugins {
		out.Plugins[name] = v
	}
	out.Plugins[Name] = canonical
	return out, notes
}

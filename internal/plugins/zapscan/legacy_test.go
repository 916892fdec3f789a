package zapscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntletsec/gauntlet/internal/config"
)

func legacyValues() map[string]any {
	return map[string]any{
		"cloud_provider": "aws",
		"region":         "eu-west-1",
		"instance_type":  "t3.large",
		"tags":           map[string]any{"team": "appsec"},
		"zap_config": map[string]any{
			"api_key":       "secret",
			"spider":        true,
			"active_scan":   false,
			"poll_interval": "30s",
			"report_format": "json",
		},
	}
}

func TestIsLegacy(t *testing.T) {
	assert.True(t, IsLegacy(legacyValues()))
	assert.True(t, IsLegacy(map[string]any{"cloud_provider": "gcp"}))
	assert.False(t, IsLegacy(map[string]any{"execution_mode": "local", "cloud_provider": "aws"}),
		"an explicit execution_mode means the canonical shape")
	assert.False(t, IsLegacy(map[string]any{"scan": map[string]any{"spider": true}}))
	assert.False(t, IsLegacy(nil))
}

func TestTranslateLegacyForcesCloudMode(t *testing.T) {
	canonical, _ := TranslateLegacy(legacyValues())
	assert.Equal(t, "cloud", canonical["execution_mode"])
}

func TestTranslateLegacyMapsEveryKnownKey(t *testing.T) {
	canonical, notes := TranslateLegacy(legacyValues())
	assert.Empty(t, notes)

	tree := config.TreeFromMap(canonical)
	for legacyPath, want := range map[string]any{
		"cloud.provider":      "aws",
		"cloud.region":        "eu-west-1",
		"cloud.instance_type": "t3.large",
		"cloud.api_key":       "secret",
		"scan.spider":         true,
		"scan.active":         false,
		"scan.poll_interval":  "30s",
		"scan.report_format":  "json",
	} {
		got, ok := tree.Get(legacyPath)
		require.True(t, ok, legacyPath)
		assert.Equal(t, want, got, legacyPath)
	}

	tags, ok := tree.Get("cloud.tags")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"team": "appsec"}, tags)
}

func TestTranslateLegacyNoDuplicates(t *testing.T) {
	canonical, _ := TranslateLegacy(legacyValues())

	// No flat legacy key survives at the top level.
	for _, k := range []string{"cloud_provider", "region", "instance_type", "tags", "zap_config"} {
		_, present := canonical[k]
		assert.False(t, present, "legacy key %q must not remain", k)
	}
}

func TestTranslateLegacyDropsUnknownKeysWithNotes(t *testing.T) {
	values := legacyValues()
	values["proxy_host"] = "10.0.0.1"
	values["zap_config"].(map[string]any)["daemon_args"] = "-Xmx2g"

	canonical, notes := TranslateLegacy(values)
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0], "proxy_host")
	assert.Contains(t, notes[1], "zap_config.daemon_args")

	tree := config.TreeFromMap(canonical)
	_, ok := tree.Get("proxy_host")
	assert.False(t, ok)
}

func TestTranslateLegacyDeterministic(t *testing.T) {
	a, notesA := TranslateLegacy(legacyValues())
	b, notesB := TranslateLegacy(legacyValues())
	assert.Equal(t, a, b)
	assert.Equal(t, notesA, notesB)
}

func TestAdaptFileConfigLeavesOtherPluginsAlone(t *testing.T) {
	fc := config.FileConfig{Plugins: map[string]map[string]any{
		Name:      legacyValues(),
		"wafw00f": {"timeout": 120},
	}}

	out, notes := AdaptFileConfig(fc)
	assert.Empty(t, notes)
	assert.Equal(t, map[string]any{"timeout": 120}, out.Plugins["wafw00f"])
	assert.Equal(t, "cloud", out.Plugins[Name]["execution_mode"])

	// The input is not mutated.
	_, stillLegacy := fc.Plugins[Name]["cloud_provider"]
	assert.True(t, stillLegacy)
}

func TestAdaptFileConfigPassThroughCanonical(t *testing.T) {
	fc := config.FileConfig{Plugins: map[string]map[string]any{
		Name: {"execution_mode": "local"},
	}}
	out, notes := AdaptFileConfig(fc)
	assert.Empty(t, notes)
	assert.Equal(t, fc.Plugins[Name], out.Plugins[Name])
}

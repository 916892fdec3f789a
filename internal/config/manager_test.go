package config

import (
	"errors"
	"testing"

	"github.com/gauntletsec/gauntlet/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wafw00fSchema() Schema {
	return Schema{
		"timeout":   {Type: "int", Default: 30, Description: "per-request timeout in seconds"},
		"verbosity": {Type: "int", Default: 3},
		"proxy":     {Type: "string", Default: ""},
	}
}

func TestRegisterSchema_IdenticalIsNoOp(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))
}

func TestRegisterSchema_ConflictFails(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))

	conflicting := wafw00fSchema()
	conflicting["timeout"] = Option{Type: "int", Default: 60}
	err := m.RegisterSchema("wafw00f", conflicting)
	require.Error(t, err)
	var cerr *errs.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "wafw00f", cerr.Plugin)
}

func TestResolve_Precedence(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))

	// Schema default only.
	v, err := m.Resolve("wafw00f", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 30, v)

	// File value beats default.
	m.ApplyFile(FileConfig{Plugins: map[string]map[string]any{
		"wafw00f": {"timeout": 60},
	}})
	v, err = m.Resolve("wafw00f", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 60, v)

	// CLI override beats file value.
	m.SetOverride("wafw00f", "timeout", 120)
	v, err = m.Resolve("wafw00f", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 120, v)
}

func TestResolve_DefaultNeverUndefined(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))
	v, err := m.Resolve("wafw00f", "verbosity")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestResolve_UnknownKeyErrors(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))
	_, err := m.Resolve("wafw00f", "no_such_key")
	var cerr *errs.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "no_such_key", cerr.Key)
}

func TestResolve_NestedKeysIndependent(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("zap", Schema{
		"cloud.provider": {Type: "string", Default: "aws"},
		"cloud.region":   {Type: "string", Default: "us-east-1"},
	}))
	m.ApplyFile(FileConfig{Plugins: map[string]map[string]any{
		"zap": {"cloud": map[string]any{"region": "eu-west-2"}},
	}})

	// Sibling under the same object still falls to its own default.
	v, err := m.Resolve("zap", "cloud.provider")
	require.NoError(t, err)
	assert.Equal(t, "aws", v)

	v, err = m.Resolve("zap", "cloud.region")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-2", v)
}

func TestResolve_NoCrossPluginLeakage(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", Schema{"timeout": {Type: "int", Default: 30}}))
	require.NoError(t, m.RegisterSchema("sslscan", Schema{"timeout": {Type: "int", Default: 90}}))
	m.SetOverride("wafw00f", "timeout", 5)

	v, err := m.Resolve("sslscan", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 90, v)
}

func TestResolve_EnvExpansion(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("zap", Schema{
		"remote.api_key": {Type: "string", Default: "${GAUNTLET_ZAP_KEY}"},
	}))

	t.Setenv("GAUNTLET_ZAP_KEY", "s3cret")
	v, err := m.Resolve("zap", "remote.api_key")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)
}

func TestResolve_AbsentVarKeepsPlaceholder(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("zap", Schema{
		"remote.api_key": {Type: "string", Default: "${GAUNTLET_UNSET_VAR}"},
	}))

	v, err := m.Resolve("zap", "remote.api_key")
	require.NoError(t, err)
	assert.Equal(t, "${GAUNTLET_UNSET_VAR}", v)
}

func TestResolveAll_CoversSchemaAndFileKeys(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))
	m.ApplyFile(FileConfig{Plugins: map[string]map[string]any{
		"wafw00f": {"timeout": 60, "extra": "x"},
	}})
	m.SetOverride("wafw00f", "timeout", 120)

	all, err := m.ResolveAll("wafw00f")
	require.NoError(t, err)
	assert.Equal(t, 120, all["timeout"])
	assert.Equal(t, 3, all["verbosity"])
	assert.Equal(t, "x", all["extra"])
}

func TestExportSchema_RoundTrip(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("wafw00f", wafw00fSchema()))
	require.NoError(t, m.RegisterSchema("zap", Schema{
		"execution_mode": {Type: "string", Default: "auto", Enum: []string{"auto", "local", "remote", "cloud"}},
	}))

	exported := m.ExportSchema()
	b, err := MarshalSchemas(exported)
	require.NoError(t, err)
	parsed, err := UnmarshalSchemas(b)
	require.NoError(t, err)
	assert.Equal(t, exported, parsed)

	// ExportSchema is a copy: mutating it must not touch the registry.
	exported["wafw00f"]["timeout"] = Option{Type: "int", Default: 999}
	v, err := m.Resolve("wafw00f", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 30, v)
}

func TestResolveTyped(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterSchema("zap", Schema{
		"scan.poll_interval": {Type: "duration", Default: "10s"},
		"scan.spider":        {Type: "bool", Default: true},
		"auto.order":         {Type: "list", Default: []any{"local", "remote", "cloud"}},
	}))

	d, err := m.ResolveDuration("zap", "scan.poll_interval")
	require.NoError(t, err)
	assert.Equal(t, "10s", d.String())

	b, err := m.ResolveBool("zap", "scan.spider")
	require.NoError(t, err)
	assert.True(t, b)

	order, err := m.ResolveStringSlice("zap", "auto.order")
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "remote", "cloud"}, order)
}

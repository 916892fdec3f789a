package terraform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteVarsFile(t *testing.T) {
	dir := t.TempDir()
	err := WriteVarsFile(dir, map[string]string{
		"region":        "us-east-1",
		"instance_type": "t3.medium",
		"api_key":       "k3y",
	})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, VarsFileName))
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, `region = "us-east-1"`)
	assert.Contains(t, body, `instance_type = "t3.medium"`)
	assert.Contains(t, body, `api_key = "k3y"`)
}

func TestParseOutputs(t *testing.T) {
	raw := []byte(`{
		"public_ip":   {"sensitive": false, "type": "string", "value": "198.51.100.7"},
		"ssh_user":    {"sensitive": false, "type": "string", "value": "ubuntu"},
		"zap_api_url": {"sensitive": false, "type": "string", "value": "http://198.51.100.7:8080"},
		"port":        {"sensitive": false, "type": "number", "value": 8080}
	}`)
	out, err := ParseOutputs(raw)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", out["public_ip"])
	assert.Equal(t, "ubuntu", out["ssh_user"])
	assert.Equal(t, "http://198.51.100.7:8080", out["zap_api_url"])
	assert.Equal(t, "8080", out["port"])
}

func TestParseOutputs_Malformed(t *testing.T) {
	_, err := ParseOutputs([]byte("not json"))
	require.Error(t, err)
}

func TestFindBinary_ExplicitPathMissing(t *testing.T) {
	b := &Backend{BinaryPath: filepath.Join(t.TempDir(), "nope")}
	_, err := b.findBinary()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

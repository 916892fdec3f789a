package sslscan

import (
	"context"
	"testing"

	"github.com/gauntletsec/gauntlet/internal/config"
	"github.com/gauntletsec/gauntlet/internal/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExec struct {
	out []byte
	err error
}

func (s *stubExec) Run(_ context.Context, _ plugin.Command) ([]byte, error) {
	return s.out, s.err
}

func TestDryRun_CommandShape(t *testing.T) {
	m := config.NewManager()
	m.ApplyFile(config.FileConfig{Plugins: map[string]map[string]any{
		Name: {"timeout": 45, "show_certificate": true},
	}})
	p, err := New(m, &stubExec{})
	require.NoError(t, err)

	info, err := p.DryRun("example.test:443", "/tmp/out")
	require.NoError(t, err)
	require.Len(t, info.Commands, 1)
	cmd := info.Commands[0].String()
	assert.Contains(t, cmd, "--timeout=45")
	assert.Contains(t, cmd, "--show-certificate")
	assert.Contains(t, cmd, "example.test:443")
	assert.Contains(t, info.Operations, "timeout 45s")
}

func TestExecute_FlagsLegacyProtocols(t *testing.T) {
	out := `Testing SSL server example.test on port 443

  SSL/TLS Protocols:
TLSv1.0   enabled
TLSv1.1   disabled
TLSv1.2   enabled
`
	m := config.NewManager()
	m.SetOverride(Name, "min_tls", "1.2")
	p, err := New(m, &stubExec{out: []byte(out)})
	require.NoError(t, err)

	res, err := p.Execute(context.Background(), "example.test:443", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, plugin.DispositionFindings, res.Disposition)
	require.Equal(t, 1, res.Issues)
	assert.Contains(t, res.Findings[0].Name, "TLSv1.0")
}

func TestExecute_CleanWhenAboveMinimum(t *testing.T) {
	out := "TLSv1.2   enabled\nTLSv1.3   enabled\n"
	p, err := New(config.NewManager(), &stubExec{out: []byte(out)})
	require.NoError(t, err)

	res, err := p.Execute(context.Background(), "example.test:443", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, plugin.DispositionClean, res.Disposition)
}

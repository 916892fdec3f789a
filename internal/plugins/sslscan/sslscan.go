// Package sslscan wraps the sslscan TLS assessment tool as a Gauntlet
// plugin, the second config-integration exemplar.
package sslscan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gauntletsec/gauntlet/internal/config"
	"github.com/gauntletsec/gauntlet/internal/plugin"
	"github.com/gauntletsec/gauntlet/internal/types"
)

// Name is the plugin's registry name.
const Name = "sslscan"

// DefaultSchema declares the configurable keys of the plugin.
func DefaultSchema() config.Schema {
	return config.Schema{
		"timeout":          {Type: "int", Default: 90, Description: "connection timeout in seconds"},
		"show_certificate": {Type: "bool", Default: false, Description: "include certificate details in output"},
		"check_heartbleed": {Type: "bool", Default: true, Description: "test for the Heartbleed vulnerability"},
		"min_tls":          {Type: "string", Default: "1.0", Enum: []string{"1.0", "1.1", "1.2", "1.3"}, Description: "lowest TLS version considered acceptable"},
	}
}

// Options is the immutable resolved configuration of one plugin instance.
type Options struct {
	Timeout         int
	ShowCertificate bool
	CheckHeartbleed bool
	MinTLS          string
}

// ResolveOptions registers the schema and eagerly binds every value.
func ResolveOptions(m *config.Manager) (Options, error) {
	if err := m.RegisterSchema(Name, DefaultSchema()); err != nil {
		return Options{}, err
	}
	var opts Options
	var err error
	if opts.Timeout, err = m.ResolveInt(Name, "timeout"); err != nil {
		return Options{}, err
	}
	if opts.ShowCertificate, err = m.ResolveBool(Name, "show_certificate"); err != nil {
		return Options{}, err
	}
	if opts.CheckHeartbleed, err = m.ResolveBool(Name, "check_heartbleed"); err != nil {
		return Options{}, err
	}
	if opts.MinTLS, err = m.ResolveString(Name, "min_tls"); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Plugin is the sslscan scan module.
type Plugin struct {
	opts Options
	exec plugin.Executor
}

// New constructs the plugin with its configuration bound at call time.
func New(m *config.Manager, exec plugin.Executor) (*Plugin, error) {
	opts, err := ResolveOptions(m)
	if err != nil {
		return nil, err
	}
	return &Plugin{opts: opts, exec: exec}, nil
}

// Options returns the instance's bound configuration.
func (p *Plugin) Options() Options { return p.opts }

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        Name,
		DisplayName: "SSLScan",
		ScanType:    "tls",
		OutputType:  "xml",
		Priority:    20,
		Description: "Assesses TLS protocol versions, ciphers, and certificate health",
		WebsiteURL:  "https://github.com/rbsec/sslscan",
	}
}

func (p *Plugin) command(target, outputDir string) plugin.Command {
	args := []string{
		"--no-colour",
		fmt.Sprintf("--timeout=%d", p.opts.Timeout),
		fmt.Sprintf("--xml=%s", filepath.Join(outputDir, "sslscan.xml")),
	}
	if p.opts.ShowCertificate {
		args = append(args, "--show-certificate")
	}
	if !p.opts.CheckHeartbleed {
		args = append(args, "--no-heartbleed")
	}
	args = append(args, target)
	return plugin.Command{Executable: "sslscan", Args: args, Dir: outputDir}
}

// DryRun implements plugin.Plugin.
func (p *Plugin) DryRun(target, outputDir string) (plugin.DryRunInfo, error) {
	cmd := p.command(target, outputDir)
	ops := fmt.Sprintf("assess TLS configuration of %s (timeout %ds, minimum TLS %s)",
		target, p.opts.Timeout, p.opts.MinTLS)
	return plugin.DryRunInfo{Commands: []plugin.Command{cmd}, Operations: ops}, nil
}

// Execute implements plugin.Plugin. Findings are derived from protocol
// lines in the tool's plain output; the full XML artifact is left under
// outputDir for the report stage.
func (p *Plugin) Execute(ctx context.Context, target, outputDir string) (plugin.Result, error) {
	out, err := p.exec.Run(ctx, p.command(target, outputDir))
	if err != nil {
		return plugin.Result{Disposition: plugin.DispositionError}, fmt.Errorf("sslscan against %s: %w", target, err)
	}

	var findings []types.Finding
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		for _, legacy := range []string{"SSLv2", "SSLv3", "TLSv1.0", "TLSv1.1"} {
			if strings.HasPrefix(line, legacy) && strings.Contains(line, "enabled") && belowMinTLS(legacy, p.opts.MinTLS) {
				findings = append(findings, types.Finding{
					Plugin:      Name,
					Target:      target,
					Name:        "Legacy protocol enabled: " + legacy,
					Description: fmt.Sprintf("%s is enabled but the configured minimum is TLS %s", legacy, p.opts.MinTLS),
					Severity:    types.SevMed,
					Confidence:  0.9,
				})
			}
		}
	}

	res := plugin.Result{Issues: len(findings), Findings: findings, Disposition: plugin.DispositionClean}
	if len(findings) > 0 {
		res.Disposition = plugin.DispositionFindings
	}
	return res, nil
}

func belowMinTLS(proto, min string) bool {
	rank := map[string]int{"SSLv2": 0, "SSLv3": 1, "TLSv1.0": 2, "TLSv1.1": 3, "TLSv1.2": 4, "TLSv1.3": 5}
	minRank := map[string]int{"1.0": 2, "1.1": 3, "1.2": 4, "1.3": 5}
	r, ok := rank[proto]
	mr, mok := minRank[min]
	if !ok || !mok {
		return false
	}
	return r < mr
}

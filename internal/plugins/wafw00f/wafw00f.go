// Package wafw00f wraps the wafw00f firewall fingerprinting tool as a
// Gauntlet plugin. It is one of the two config-integration exemplars: all
// behavior flows from values resolved at construction time.
package wafw00f

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gauntletsec/gauntlet/internal/config"
	"github.com/gauntletsec/gauntlet/internal/plugin"
	"github.com/gauntletsec/gauntlet/internal/types"
)

// Name is the plugin's registry name.
const Name = "wafw00f"

// DefaultSchema declares the configurable keys of the plugin.
func DefaultSchema() config.Schema {
	return config.Schema{
		"timeout":          {Type: "int", Default: 30, Description: "per-target timeout in seconds"},
		"verbosity":        {Type: "int", Default: 3, Description: "tool verbosity, 0-3"},
		"proxy":            {Type: "string", Default: "", Description: "HTTP proxy URL, empty for none"},
		"follow_redirects": {Type: "bool", Default: true, Description: "follow HTTP redirects while probing"},
	}
}

// Options is the immutable resolved configuration of one plugin instance.
type Options struct {
	Timeout         int
	Verbosity       int
	Proxy           string
	FollowRedirects bool
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
	if opts.Verbosity, err = m.ResolveInt(Name, "verbosity"); err != nil {
		return Options{}, err
	}
	if opts.Proxy, err = m.ResolveString(Name, "proxy"); err != nil {
		return Options{}, err
	}
	if opts.FollowRedirects, err = m.ResolveBool(Name, "follow_redirects"); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Plugin is the wafw00f scan module.
type Plugin struct {
	opts Options
	exec plugin.Executor
}

// New constructs the plugin, binding resolved config into the instance.
// Later manager mutation does not affect the returned plugin.
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
		DisplayName: "WAFW00F",
		ScanType:    "fingerprint",
		OutputType:  "json",
		Priority:    10,
		Description: "Identifies web application firewalls in front of the target",
		WebsiteURL:  "https://github.com/EnableSecurity/wafw00f",
	}
}

func (p *Plugin) command(target, outputDir string) plugin.Command {
	args := []string{"-a", target, "-f", "json", "-o", filepath.Join(outputDir, "wafw00f.json")}
	for i := 0; i < p.opts.Verbosity; i++ {
		args = append(args, "-v")
	}
	if p.opts.Proxy != "" {
		args = append(args, "-p", p.opts.Proxy)
	}
	if !p.opts.FollowRedirects {
		args = append(args, "--noredirect")
	}
	args = append(args, "-T", fmt.Sprintf("%d", p.opts.Timeout))
	return plugin.Command{Executable: "wafw00f", Args: args, Dir: outputDir}
}

// DryRun implements plugin.Plugin.
func (p *Plugin) DryRun(target, outputDir string) (plugin.DryRunInfo, error) {
	cmd := p.command(target, outputDir)
	ops := fmt.Sprintf("fingerprint WAF on %s (timeout %ds, verbosity %d", target, p.opts.Timeout, p.opts.Verbosity)
	if p.opts.Proxy != "" {
		ops += ", via proxy " + p.opts.Proxy
	}
	ops += ")"
	return plugin.DryRunInfo{Commands: []plugin.Command{cmd}, Operations: ops}, nil
}

// wafw00f -f json emits a list of probe results.
type probeResult struct {
	URL          string `json:"url"`
	Detected     bool   `json:"detected"`
	Firewall     string `json:"firewall"`
	Manufacturer string `json:"manufacturer"`
}

// Execute implements plugin.Plugin.
func (p *Plugin) Execute(ctx context.Context, target, outputDir string) (plugin.Result, error) {
	out, err := p.exec.Run(ctx, p.command(target, outputDir))
	if err != nil {
		return plugin.Result{Disposition: plugin.DispositionError}, fmt.Errorf("wafw00f against %s: %w", target, err)
	}

	var probes []probeResult
	if jerr := json.Unmarshal(out, &probes); jerr != nil {
		// Older releases print human output before the JSON document.
		if idx := strings.IndexByte(string(out), '['); idx >= 0 {
			_ = json.Unmarshal(out[idx:], &probes)
		}
	}

	var findings []types.Finding
	for _, pr := range probes {
		if !pr.Detected || pr.Firewall == "" || strings.EqualFold(pr.Firewall, "none") {
			continue
		}
		findings = append(findings, types.Finding{
			Plugin:      Name,
			Target:      pr.URL,
			Name:        "WAF detected: " + pr.Firewall,
			Description: fmt.Sprintf("wafw00f identified %s (%s) in front of the target", pr.Firewall, pr.Manufacturer),
			Severity:    types.SevInfo,
			Confidence:  0.8,
		})
	}

	res := plugin.Result{Issues: len(findings), Findings: findings, Disposition: plugin.DispositionClean}
	if len(findings) > 0 {
		res.Disposition = plugin.DispositionFindings
	}
	return res, nil
}

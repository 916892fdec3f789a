// Package zapscan drives the ZAP active scanner as a Gauntlet plugin. It
// resolves an execution mode (auto-detected or explicit local, remote, or
// cloud), owns the infrastructure lifecycle for cloud runs, polls the
// engine to completion, and converts engine alerts into findings.
package zapscan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gauntletsec/gauntlet/internal/config"
	"github.com/gauntletsec/gauntlet/internal/infra"
	"github.com/gauntletsec/gauntlet/internal/plugin"
	"github.com/gauntletsec/gauntlet/internal/types"
	"github.com/gauntletsec/gauntlet/internal/zapapi"
)

// Name is the plugin's registry name.
const Name = "zap"

// DefaultSchema declares the nested configurable keys of the plugin.
func DefaultSchema() config.Schema {
	return config.Schema{
		"execution_mode": {Type: "string", Default: "auto", Enum: []string{"auto", "local", "remote", "cloud"},
			Description: "where the scan engine runs; auto probes local, then remote, then falls back to cloud"},

		"auto.order":         {Type: "list", Default: []any{"local", "remote", "cloud"}, Description: "fallback order for auto mode"},
		"auto.probe_timeout": {Type: "duration", Default: "3s", Description: "timeout for one discovery probe"},

		"local.endpoint": {Type: "string", Default: "http://127.0.0.1:8080"},
		"local.api_key":  {Type: "string", Default: ""},

		"remote.endpoint": {Type: "string", Default: ""},
		"remote.api_key":  {Type: "string", Default: "${GAUNTLET_ZAP_API_KEY}"},

		"cloud.provider":          {Type: "string", Default: "aws", Enum: []string{"aws", "gcp", "azure"}},
		"cloud.region":            {Type: "string", Default: "us-east-1"},
		"cloud.instance_type":     {Type: "string", Default: "t3.medium"},
		"cloud.api_key":           {Type: "string", Default: ""},
		"cloud.module_dir":        {Type: "string", Default: "", Description: "IaC module directory for the provider"},
		"cloud.provision_timeout": {Type: "duration", Default: "900s"},
		"cloud.keep":              {Type: "bool", Default: false, Description: "leave infrastructure running after the scan"},
		"cloud.tags":              {Type: "object", Default: map[string]any{}},

		"scan.spider":            {Type: "bool", Default: true},
		"scan.active":            {Type: "bool", Default: true},
		"scan.poll_interval":     {Type: "duration", Default: "10s"},
		"scan.max_poll_failures": {Type: "int", Default: 10},
		"scan.report_format":     {Type: "string", Default: "html", Enum: []string{"html", "json", "xml", "md"}},
	}
}

// Options is the immutable resolved configuration of one plugin instance.
type Options struct {
	ExecutionMode string

	AutoOrder    []string
	ProbeTimeout time.Duration

	LocalEndpoint string
	LocalAPIKey   string

	RemoteEndpoint string
	RemoteAPIKey   string

	CloudProvider         string
	CloudRegion           string
	CloudInstanceType     string
	CloudAPIKey           string
	CloudModuleDir        string
	CloudProvisionTimeout time.Duration
	CloudKeep             bool
	CloudTags             map[string]string

	Spider          bool
	ActiveScan      bool
	PollInterval    time.Duration
	MaxPollFailures int
	ReportFormat    string
}

// ResolveOptions registers the schema and eagerly binds every value.
func ResolveOptions(m *config.Manager) (Options, error) {
	if err := m.RegisterSchema(Name, DefaultSchema()); err != nil {
		return Options{}, err
	}
	var o Options
	var err error
	if o.ExecutionMode, err = m.ResolveString(Name, "execution_mode"); err != nil {
		return Options{}, err
	}
	if o.AutoOrder, err = m.ResolveStringSlice(Name, "auto.order"); err != nil {
		return Options{}, err
	}
	if o.ProbeTimeout, err = m.ResolveDuration(Name, "auto.probe_timeout"); err != nil {
		return Options{}, err
	}
	if o.LocalEndpoint, err = m.ResolveString(Name, "local.endpoint"); err != nil {
		return Options{}, err
	}
	if o.LocalAPIKey, err = m.ResolveString(Name, "local.api_key"); err != nil {
		return Options{}, err
	}
	if o.RemoteEndpoint, err = m.ResolveString(Name, "remote.endpoint"); err != nil {
		return Options{}, err
	}
	if o.RemoteAPIKey, err = m.ResolveString(Name, "remote.api_key"); err != nil {
		return Options{}, err
	}
	if o.CloudProvider, err = m.ResolveString(Name, "cloud.provider"); err != nil {
		return Options{}, err
	}
	if o.CloudRegion, err = m.ResolveString(Name, "cloud.region"); err != nil {
		return Options{}, err
	}
	if o.CloudInstanceType, err = m.ResolveString(Name, "cloud.instance_type"); err != nil {
		return Options{}, err
	}
	if o.CloudAPIKey, err = m.ResolveString(Name, "cloud.api_key"); err != nil {
		return Options{}, err
	}
	if o.CloudModuleDir, err = m.ResolveString(Name, "cloud.module_dir"); err != nil {
		return Options{}, err
	}
	if o.CloudProvisionTimeout, err = m.ResolveDuration(Name, "cloud.provision_timeout"); err != nil {
		return Options{}, err
	}
	if o.CloudKeep, err = m.ResolveBool(Name, "cloud.keep"); err != nil {
		return Options{}, err
	}
	tags, err := m.Resolve(Name, "cloud.tags")
	if err != nil {
		return Options{}, err
	}
	o.CloudTags = coerceTags(tags)
	if o.Spider, err = m.ResolveBool(Name, "scan.spider"); err != nil {
		return Options{}, err
	}
	if o.ActiveScan, err = m.ResolveBool(Name, "scan.active"); err != nil {
		return Options{}, err
	}
	if o.PollInterval, err = m.ResolveDuration(Name, "scan.poll_interval"); err != nil {
		return Options{}, err
	}
	if o.MaxPollFailures, err = m.ResolveInt(Name, "scan.max_poll_failures"); err != nil {
		return Options{}, err
	}
	if o.ReportFormat, err = m.ResolveString(Name, "scan.report_format"); err != nil {
		return Options{}, err
	}
	return o, nil
}

func coerceTags(v any) map[string]string {
	out := map[string]string{}
	if m, ok := v.(map[string]any); ok {
		for k, e := range m {
			out[k] = fmt.Sprintf("%v", e)
		}
	}
	return out
}

// ClientFunc builds an engine client; tests substitute it.
type ClientFunc func(endpoint, apiKey string, timeout time.Duration) *zapapi.Client

// Plugin is the active-scanner driver.
type Plugin struct {
	opts      Options
	resolver  *ModeResolver
	driver    *infra.Driver
	newClient ClientFunc
}

// New constructs the plugin, binding resolved config eagerly. driver owns
// the infrastructure lifecycle for cloud runs; probe may be nil to use
// live discovery probes.
func New(m *config.Manager, driver *infra.Driver, probe Prober) (*Plugin, error) {
	opts, err := ResolveOptions(m)
	if err != nil {
		return nil, err
	}
	return &Plugin{
		opts:      opts,
		resolver:  NewModeResolver(opts, probe),
		driver:    driver,
		newClient: zapapi.New,
	}, nil
}

// Options returns the instance's bound configuration.
func (p *Plugin) Options() Options { return p.opts }

// ResolvedMode reports the mode chosen for this run, resolving it on
// first use. The orchestrator surfaces it to the operator.
func (p *Plugin) ResolvedMode(ctx context.Context) (ExecutionMode, error) {
	return p.resolver.Resolve(ctx)
}

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        Name,
		DisplayName: "OWASP ZAP Active Scanner",
		ScanType:    "dast",
		OutputType:  "html",
		Priority:    30,
		Description: "Spiders and actively scans the target with a ZAP engine, locally, remotely, or on ephemeral cloud compute",
		WebsiteURL:  "https://www.zaproxy.org",
	}
}

// DryRun implements plugin.Plugin. For cloud mode it lists the IaC
// commands that would run; API-driven modes carry no local commands.
func (p *Plugin) DryRun(target, outputDir string) (plugin.DryRunInfo, error) {
	mode, err := p.resolver.Resolve(context.Background())
	if err != nil {
		return plugin.DryRunInfo{}, err
	}

	var cmds []plugin.Command
	var ops strings.Builder
	switch mode {
	case ModeCloud:
		cmds = []plugin.Command{
			{Executable: "terraform", Args: []string{"init", "-input=false"}, Dir: p.opts.CloudModuleDir},
			{Executable: "terraform", Args: []string{"plan", "-input=false", "-out=gauntlet.tfplan"}, Dir: p.opts.CloudModuleDir},
			{Executable: "terraform", Args: []string{"apply", "-input=false", "-auto-approve", "gauntlet.tfplan"}, Dir: p.opts.CloudModuleDir},
		}
		fmt.Fprintf(&ops, "provision %s %s in %s (timeout %s), ", p.opts.CloudProvider, p.opts.CloudInstanceType, p.opts.CloudRegion, p.opts.CloudProvisionTimeout)
	case ModeLocal:
		fmt.Fprintf(&ops, "use local engine at %s, ", p.opts.LocalEndpoint)
	case ModeRemote:
		fmt.Fprintf(&ops, "use remote engine at %s, ", p.opts.RemoteEndpoint)
	}
	fmt.Fprintf(&ops, "scan %s (spider=%t, active=%t), poll every %s, render %s report",
		target, p.opts.Spider, p.opts.ActiveScan, p.opts.PollInterval, p.opts.ReportFormat)
	return plugin.DryRunInfo{Commands: cmds, Operations: ops.String()}, nil
}

// Execute implements plugin.Plugin: resolve mode, bring up the engine if
// needed, drive the scan to completion, collect alerts and the report,
// and tear down what this run provisioned.
func (p *Plugin) Execute(ctx context.Context, target, outputDir string) (plugin.Result, error) {
	mode, err := p.resolver.Resolve(ctx)
	if err != nil {
		return plugin.Result{Disposition: plugin.DispositionError}, err
	}
	slog.Info("execution mode resolved", "plugin", Name, "mode", mode)

	endpoint, apiKey := p.opts.LocalEndpoint, p.opts.LocalAPIKey
	var provisioned *infra.State
	switch mode {
	case ModeRemote:
		endpoint, apiKey = p.opts.RemoteEndpoint, p.opts.RemoteAPIKey
	case ModeCloud:
		st, perr := p.driver.Provision(ctx, infra.ProvisionRequest{
			Provider:  p.opts.CloudProvider,
			ModuleDir: p.opts.CloudModuleDir,
			Vars:      p.provisionVars(),
			APIKey:    p.opts.CloudAPIKey,
			Timeout:   p.opts.CloudProvisionTimeout,
		})
		if perr != nil {
			// Partially applied infrastructure must still be destroyed.
			if terr := p.driver.Teardown(ctx, st); terr != nil {
				slog.Warn("teardown of partial infrastructure failed", "plugin", Name, "error", terr)
			}
			return plugin.Result{Disposition: plugin.DispositionError}, perr
		}
		provisioned = &st
		endpoint, apiKey = st.EndpointURL, p.opts.CloudAPIKey
	}

	res, scanErr := p.runScan(ctx, endpoint, apiKey, target, outputDir)

	if provisioned != nil && !p.opts.CloudKeep {
		// Explicit teardown of what this run created. Failures are logged
		// and never invalidate results already in hand.
		if terr := p.driver.Teardown(ctx, *provisioned); terr != nil {
			slog.Warn("teardown failed, infrastructure left for infra destroy", "plugin", Name, "error", terr)
		}
	}
	return res, scanErr
}

func (p *Plugin) provisionVars() map[string]string {
	vars := map[string]string{
		"region":        p.opts.CloudRegion,
		"instance_type": p.opts.CloudInstanceType,
		"api_key":       p.opts.CloudAPIKey,
	}
	for k, v := range p.opts.CloudTags {
		vars["tag_"+k] = v
	}
	return vars
}

func (p *Plugin) runScan(ctx context.Context, endpoint, apiKey, target, outputDir string) (plugin.Result, error) {
	client := p.newClient(endpoint, apiKey, 0)
	if err := client.CheckVersion(ctx); err != nil {
		return plugin.Result{Disposition: plugin.DispositionError}, err
	}

	if p.opts.Spider {
		if _, err := client.StartSpider(ctx, target); err != nil {
			return plugin.Result{Disposition: plugin.DispositionError}, fmt.Errorf("start spider for %s: %w", target, err)
		}
	}
	if p.opts.ActiveScan {
		if _, err := client.StartActiveScan(ctx, target); err != nil {
			return plugin.Result{Disposition: plugin.DispositionError}, fmt.Errorf("start active scan for %s: %w", target, err)
		}
	}

	poller := &infra.Poller{
		Status: func(ctx context.Context) (zapapi.Status, error) {
			st, serr := client.Status(ctx)
			if serr != nil {
				return st, serr
			}
			// A component that was never started reports progress 0 forever
			// and must not hold completion open.
			st.InProgress = (p.opts.Spider && st.SpiderProgress < 100) ||
				(p.opts.ActiveScan && st.ActiveScanProgress < 100)
			return st, nil
		},
		Interval:               p.opts.PollInterval,
		MaxConsecutiveFailures: p.opts.MaxPollFailures,
		OnStatus: func(st zapapi.Status) {
			slog.Debug("scan progress", "plugin", Name,
				"spider", st.SpiderProgress, "active", st.ActiveScanProgress, "alerts", st.AlertCount)
		},
	}
	final, err := poller.Run(ctx)
	if err != nil {
		return plugin.Result{Disposition: plugin.DispositionError}, err
	}

	alerts, err := client.Alerts(ctx, target)
	if err != nil {
		return plugin.Result{Disposition: plugin.DispositionError}, err
	}
	findings := alertsToFindings(alerts)

	if report, rerr := client.GenerateReport(ctx, p.opts.ReportFormat); rerr == nil {
		name := "zap-report." + p.opts.ReportFormat
		if werr := os.WriteFile(filepath.Join(outputDir, name), report, 0o644); werr != nil {
			slog.Warn("failed to write scan report", "plugin", Name, "error", werr)
		}
	} else {
		slog.Warn("report generation failed", "plugin", Name, "error", rerr)
	}

	res := plugin.Result{
		Issues:      final.AlertCount,
		Findings:    findings,
		Disposition: plugin.DispositionClean,
	}
	if len(findings) > 0 {
		res.Disposition = plugin.DispositionFindings
	}
	return res, nil
}

func alertsToFindings(alerts []zapapi.Alert) []types.Finding {
	var out []types.Finding
	for _, a := range alerts {
		out = append(out, types.Finding{
			Plugin:      Name,
			Target:      a.URL,
			Name:        a.Name,
			Severity:    riskToSeverity(a.Risk),
			Confidence:  confidenceToScore(a.Confidence),
			Evidence:    a.Evidence,
			Description: a.Solution,
			Reference:   a.Reference,
		})
	}
	return out
}

func riskToSeverity(risk string) types.Severity {
	switch strings.ToLower(risk) {
	case "high":
		return types.SevHigh
	case "medium":
		return types.SevMed
	case "low":
		return types.SevLow
	default:
		return types.SevInfo
	}
}

func confidenceToScore(c string) float64 {
	switch strings.ToLower(c) {
	case "confirmed":
		return 1.0
	case "high":
		return 0.9
	case "medium":
		return 0.6
	case "low":
		return 0.3
	default:
		return 0.5
	}
}

package gauntlet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gauntletsec/gauntlet/internal/plugin"
	"github.com/gauntletsec/gauntlet/internal/plugin/runner"
	"github.com/gauntletsec/gauntlet/internal/plugins/zapscan"
	"github.com/gauntletsec/gauntlet/internal/types"
	"github.com/gauntletsec/gauntlet/internal/update"
)

var (
	flagTarget      string
	flagOutputDir   string
	flagPlugins     string
	flagExclude     string
	flagConcurrency int
	flagDryRun      bool
	flagFailOn      string
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a target with the configured plugins",
		RunE:  runScanCmd,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&flagTarget, "target", "t", "", "target URL or host to scan")
	cmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "gauntlet-results", "directory for scan artifacts and reports")
	cmd.Flags().StringVar(&flagPlugins, "plugins", "", "comma-separated plugin name globs to run (default: all)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated plugin name globs to skip")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 1, "plugins to run in parallel")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what each plugin would do without scanning")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "high", "exit non-zero on findings of this severity or above: low|medium|high")
	_ = cmd.MarkFlagRequired("target")
}

func runScanCmd(_ *cobra.Command, _ []string) error {
	cwd, _ := os.Getwd()
	m, err := buildManager(cwd)
	if err != nil {
		return err
	}
	plugins, err := buildPlugins(m)
	if err != nil {
		return err
	}

	if !flagJSON && !flagNoUpdateCheck {
		if latest, newer, _ := update.Check(version, false); newer && latest != "" {
			fmt.Fprintf(os.Stderr, "(new version available: v%s)  run 'gauntlet update' to upgrade\n", latest)
		}
	}
	if flagSelfUpdate {
		if err := selfUpdate(); err == nil {
			fmt.Fprintln(os.Stderr, "updated to latest; re-run command")
			return nil
		}
	}

	cfg := runner.Config{
		Target:      flagTarget,
		OutputDir:   flagOutputDir,
		Include:     flagPlugins,
		Exclude:     flagExclude,
		Concurrency: flagConcurrency,
	}

	if flagDryRun {
		return printDryRun(runner.Select(plugins, cfg))
	}

	if err := os.MkdirAll(flagOutputDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	selected := runner.Select(plugins, cfg)
	outcomes := runner.Run(ctx, selected, cfg)

	var findings []types.Finding
	for _, o := range outcomes {
		findings = append(findings, o.Result.Findings...)
	}
	if findings == nil {
		findings = []types.Finding{}
	} // no `null` in JSON

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(findings); err != nil {
			return err
		}
	} else {
		printOutcomes(outcomes)
		reportZapMode(ctx, selected, outcomes)
		printFindings(findings)
	}

	if err := writeFindingsFile(findings); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	for _, o := range outcomes {
		if o.Err != nil {
			return fmt.Errorf("plugin %s failed: %w", o.Plugin.Name, o.Err)
		}
	}
	if shouldFail(findings, flagFailOn) {
		os.Exit(1)
	}
	return nil
}

func printDryRun(plugins []plugin.Plugin) error {
	for _, p := range plugins {
		info, err := p.DryRun(flagTarget, flagOutputDir)
		if err != nil {
			return fmt.Errorf("dry-run %s: %w", p.Metadata().Name, err)
		}
		fmt.Printf("%s: %s\n", p.Metadata().Name, info.Operations)
		for _, c := range info.Commands {
			fmt.Printf("  $ %s\n", c)
		}
	}
	return nil
}

// reportZapMode tells the operator where the active scan actually ran.
// The mode is cached by a successful Execute, so this never re-probes.
func reportZapMode(ctx context.Context, selected []plugin.Plugin, outcomes []runner.Outcome) {
	for i, p := range selected {
		zp, ok := p.(*zapscan.Plugin)
		if !ok || outcomes[i].Err != nil {
			continue
		}
		if mode, err := zp.ResolvedMode(ctx); err == nil {
			fmt.Fprintf(os.Stderr, "zap scan ran in %s mode\n", mode)
		}
	}
}

func printOutcomes(outcomes []runner.Outcome) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Plugin", "Status", "Issues", "Duration")
	for _, o := range outcomes {
		_ = table.Append([]string{
			o.Plugin.Name,
			o.Timing.Status,
			fmt.Sprintf("%d", o.Result.Issues),
			o.Timing.Duration.Round(time.Millisecond).String(),
		})
	}
	_ = table.Render()
}

func printFindings(findings []types.Finding) {
	if len(findings) == 0 {
		fmt.Println("No findings.")
		return
	}
	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
			width = w
		}
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Severity", "Plugin", "Finding", "Target")
	for _, f := range findings {
		_ = table.Append([]string{
			string(f.Severity),
			f.Plugin,
			truncate(f.Name, width/3),
			truncate(f.Target, width/3),
		})
	}
	_ = table.Render()
}

func writeFindingsFile(findings []types.Finding) error {
	b, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(flagOutputDir, "findings.json"), b, 0o644)
}

func truncate(s string, n int) string {
	if n < 8 {
		n = 8
	}
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

var severityRank = map[types.Severity]int{
	types.SevInfo: 0,
	types.SevLow:  1,
	types.SevMed:  2,
	types.SevHigh: 3,
}

func shouldFail(findings []types.Finding, failOn string) bool {
	threshold, ok := map[string]int{"low": 1, "medium": 2, "high": 3}[failOn]
	if !ok {
		threshold = 3
	}
	for _, f := range findings {
		if severityRank[f.Severity] >= threshold {
			return true
		}
	}
	return false
}

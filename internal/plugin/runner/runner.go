// Package runner invokes a set of plugins against a target, recording a
// timing entry per plugin. A failing plugin never stops its siblings.
package runner

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/gauntletsec/gauntlet/internal/plugin"
)

// Config controls plugin selection and execution.
type Config struct {
	Target    string
	OutputDir string

	// Include and Exclude are comma-separated glob patterns matched
	// against plugin names. Includes, if present, act as a positive
	// filter; excludes are subtracted last.
	Include string
	Exclude string

	// Concurrency bounds parallel plugin execution. Zero or one runs
	// plugins sequentially in priority order.
	Concurrency int
}

// Outcome pairs one plugin's result with its timing. Err is set when the
// plugin failed; the rest of the run is unaffected.
type Outcome struct {
	Plugin plugin.Metadata
	Result plugin.Result
	Timing plugin.Timing
	Err    error
}

// Select filters and priority-orders the given plugins per cfg.
func Select(plugins []plugin.Plugin, cfg Config) []plugin.Plugin {
	includes := parseGlobs(cfg.Include)
	excludes := parseGlobs(cfg.Exclude)
	var out []plugin.Plugin
	for _, p := range plugins {
		name := p.Metadata().Name
		if len(includes) > 0 && !matchAnyGlob(name, includes) {
			continue
		}
		if len(excludes) > 0 && matchAnyGlob(name, excludes) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metadata().Priority < out[j].Metadata().Priority
	})
	return out
}

// Run executes the selected plugins and returns one outcome per plugin,
// in priority order. Configuration and mode-resolution failures are fatal
// to the affected plugin only.
func Run(ctx context.Context, plugins []plugin.Plugin, cfg Config) []Outcome {
	selected := Select(plugins, cfg)
	outcomes := make([]Outcome, len(selected))

	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(selected) {
		workers = len(selected)
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, p := range selected {
		wg.Add(1)
		go func(i int, p plugin.Plugin) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = runOne(ctx, p, cfg)
		}(i, p)
	}
	wg.Wait()
	return outcomes
}

func runOne(ctx context.Context, p plugin.Plugin, cfg Config) Outcome {
	meta := p.Metadata()
	timing := plugin.NewTiming(meta.Name)
	slog.Info("plugin starting", "plugin", meta.Name, "target", cfg.Target)

	res, err := p.Execute(ctx, cfg.Target, cfg.OutputDir)
	if err != nil {
		slog.Error("plugin failed", "plugin", meta.Name, "error", err)
		return Outcome{
			Plugin: meta,
			Result: plugin.Result{Disposition: plugin.DispositionError},
			Timing: timing.Finish("failed"),
			Err:    err,
		}
	}

	timing = timing.Finish(string(res.Disposition))
	slog.Info("plugin finished",
		"plugin", meta.Name,
		"disposition", res.Disposition,
		"issues", res.Issues,
		"duration", timing.Duration)
	return Outcome{Plugin: meta, Result: res, Timing: timing}
}

func parseGlobs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchAnyGlob(name string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

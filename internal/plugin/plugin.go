// Package plugin defines the execution contract every Gauntlet scan module
// implements: static metadata, dry-run introspection, live execution, and
// the timing record the orchestrator keeps per run.
//
// A plugin binds all of its resolved configuration at construction time.
// The convention is an options value built once by a factory from the
// config manager and passed to the constructor; later manager mutation
// never affects an already constructed instance.
package plugin

import (
	"context"
	"strings"
	"time"

	"github.com/gauntletsec/gauntlet/internal/types"
)

// Metadata is the static description of a plugin.
type Metadata struct {
	Name        string
	DisplayName string
	ScanType    string
	OutputType  string
	Priority    int
	Description string
	WebsiteURL  string
}

// Command is a fully formed external command the plugin would run. The
// core only builds commands; spawning processes is the orchestrator's job.
type Command struct {
	Executable string
	Args       []string
	Dir        string
}

// String renders the command the way it would appear on a shell line.
func (c Command) String() string {
	parts := append([]string{c.Executable}, c.Args...)
	return strings.Join(parts, " ")
}

// DryRunInfo describes what a plugin would do for a target without doing
// it: the ordered commands it would run and a human-readable summary
// reflecting the plugin's resolved configuration.
type DryRunInfo struct {
	Commands   []Command
	Operations string
}

// Disposition classifies the overall outcome of a plugin execution.
type Disposition string

const (
	DispositionClean    Disposition = "clean"
	DispositionFindings Disposition = "findings"
	DispositionError    Disposition = "error"
)

// Result is the outcome record of one plugin execution.
type Result struct {
	Disposition Disposition
	Issues      int
	Findings    []types.Finding
}

// Plugin is the capability every scan module implements.
type Plugin interface {
	// Metadata returns the plugin's static description.
	Metadata() Metadata

	// DryRun reports the commands and operations the plugin would perform
	// for the target, without touching the target.
	DryRun(target, outputDir string) (DryRunInfo, error)

	// Execute runs the scan against the target, writing artifacts under
	// outputDir. Blocking work honors ctx cancellation.
	Execute(ctx context.Context, target, outputDir string) (Result, error)
}

// Executor runs fully formed commands on behalf of plugins. The core only
// builds Command values; spawning processes belongs to the orchestrator,
// which supplies an Executor at plugin construction.
type Executor interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// Timing records when a plugin ran and how it ended. The core guarantees
// it can report these to the orchestrator; aggregation is the
// orchestrator's concern.
type Timing struct {
	PluginName string
	Start      time.Time
	End        time.Time
	Duration   time.Duration
	Status     string
}

// NewTiming starts a timing record for the named plugin.
func NewTiming(name string) Timing {
	return Timing{PluginName: name, Start: time.Now()}
}

// Finish closes the record with the given status.
func (t Timing) Finish(status string) Timing {
	t.End = time.Now()
	t.Duration = t.End.Sub(t.Start)
	t.Status = status
	return t
}

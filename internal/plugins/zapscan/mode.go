package zapscan

import (
	"context"
	"fmt"
	"time"

	"github.com/gauntletsec/gauntlet/internal/errs"
	"github.com/gauntletsec/gauntlet/internal/zapapi"
)

// ExecutionMode is the deployment target for the active scan engine.
type ExecutionMode string

const (
	ModeAuto   ExecutionMode = "auto"
	ModeLocal  ExecutionMode = "local"
	ModeRemote ExecutionMode = "remote"
	ModeCloud  ExecutionMode = "cloud"
)

// Prober checks whether a scan engine answers at the endpoint within the
// timeout. The default prober asks for the engine version.
type Prober func(ctx context.Context, endpoint, apiKey string, timeout time.Duration) error

func defaultProber(ctx context.Context, endpoint, apiKey string, timeout time.Duration) error {
	_, err := zapapi.New(endpoint, apiKey, timeout).Version(ctx)
	return err
}

// ModeResolver resolves the execution mode exactly once per run. A
// configured mode of local, remote, or cloud is adopted directly; auto
// walks the configured fallback order with live probes.
type ModeResolver struct {
	opts  Options
	probe Prober

	resolved ExecutionMode
	done     bool
}

// NewModeResolver builds a resolver over the plugin's bound options.
func NewModeResolver(opts Options, probe Prober) *ModeResolver {
	if probe == nil {
		probe = defaultProber
	}
	return &ModeResolver{opts: opts, probe: probe}
}

// Resolve returns the execution mode for this run. Auto-resolution runs
// at most once; subsequent calls return the cached decision.
func (r *ModeResolver) Resolve(ctx context.Context) (ExecutionMode, error) {
	if r.done {
		return r.resolved, nil
	}

	switch ExecutionMode(r.opts.ExecutionMode) {
	case ModeLocal, ModeRemote, ModeCloud:
		r.resolved = ExecutionMode(r.opts.ExecutionMode)
		r.done = true
		return r.resolved, nil
	case ModeAuto:
		// fall through to discovery
	default:
		return "", &errs.ConfigurationError{
			Plugin: Name,
			Key:    "execution_mode",
			Reason: fmt.Sprintf("unknown mode %q, expected auto, local, remote, or cloud", r.opts.ExecutionMode),
		}
	}

	var attempted []string
	var causes []error
	for _, candidate := range r.opts.AutoOrder {
		attempted = append(attempted, candidate)
		switch ExecutionMode(candidate) {
		case ModeLocal:
			err := r.probe(ctx, r.opts.LocalEndpoint, r.opts.LocalAPIKey, r.opts.ProbeTimeout)
			if err == nil {
				return r.adopt(ModeLocal), nil
			}
			causes = append(causes, err)
		case ModeRemote:
			if r.opts.RemoteEndpoint == "" {
				causes = append(causes, fmt.Errorf("no remote endpoint configured"))
				continue
			}
			err := r.probe(ctx, r.opts.RemoteEndpoint, r.opts.RemoteAPIKey, r.opts.ProbeTimeout)
			if err == nil {
				return r.adopt(ModeRemote), nil
			}
			causes = append(causes, err)
		case ModeCloud:
			// Cloud is adopted without probing, but only when its
			// configuration is actually present.
			if r.opts.CloudProvider == "" || r.opts.CloudModuleDir == "" {
				causes = append(causes, fmt.Errorf("cloud provider or module directory not configured"))
				continue
			}
			return r.adopt(ModeCloud), nil
		default:
			causes = append(causes, fmt.Errorf("unknown candidate mode %q in auto.order", candidate))
		}
	}

	return "", &errs.ModeResolutionError{Attempted: attempted, Causes: causes}
}

func (r *ModeResolver) adopt(m ExecutionMode) ExecutionMode {
	r.resolved = m
	r.done = true
	return m
}

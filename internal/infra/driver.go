package infra

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gauntletsec/gauntlet/internal/errs"
)

// DefaultProvisionTimeout bounds an apply when the caller does not set one.
const DefaultProvisionTimeout = 900 * time.Second

// ProvisionRequest describes one provisioning run.
type ProvisionRequest struct {
	Provider  string
	ModuleDir string
	Vars      map[string]string
	APIKey    string
	Timeout   time.Duration
}

// Driver runs the provision/discover/teardown lifecycle against a Backend
// and keeps state records under RecordsDir.
type Driver struct {
	Backend    Backend
	RecordsDir string
}

// Provision applies the request's module and persists a state record. On
// failure the returned error is a *errs.ProvisioningError carrying any
// partial outputs; the caller must still attempt Teardown with the
// returned state, which is populated as far as the outputs allow.
func (d *Driver) Provision(ctx context.Context, req ProvisionRequest) (State, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultProvisionTimeout
	}

	slog.Info("provisioning scan infrastructure",
		"provider", req.Provider, "module", req.ModuleDir, "timeout", timeout)

	outputs, err := d.Backend.Provision(ctx, req.ModuleDir, req.Vars, timeout)
	st := State{
		Provider:     req.Provider,
		Timestamp:    NewTimestamp(time.Now()),
		WorkspaceDir: req.ModuleDir,
		APIKey:       req.APIKey,
		Outputs:      outputs,
		EndpointURL:  outputs[OutputZapAPIURL],
		SSHKeyPath:   outputs["ssh_key_path"],
	}
	// The record is persisted even for a failed apply: partially applied
	// compute must stay discoverable for an explicit destroy.
	if _, serr := Save(d.RecordsDir, st); serr != nil {
		slog.Warn("failed to persist infrastructure state record", "provider", req.Provider, "error", serr)
	}
	if err != nil {
		return st, &errs.ProvisioningError{
			Provider:       req.Provider,
			PartialOutputs: outputs,
			Err:            err,
		}
	}
	return st, nil
}

// Teardown destroys the state's infrastructure and removes its record.
// It is idempotent: repeated invocation, partial state, or an already
// removed workspace all complete without error. It never runs implicitly;
// operators invoke it when the scan's results are in hand.
func (d *Driver) Teardown(ctx context.Context, st State) error {
	if st.WorkspaceDir == "" {
		d.removeRecord(st)
		return nil
	}
	if _, err := os.Stat(st.WorkspaceDir); errors.Is(err, os.ErrNotExist) {
		// Workspace already gone: nothing left to destroy.
		d.removeRecord(st)
		return nil
	}

	slog.Info("tearing down scan infrastructure", "provider", st.Provider, "workspace", st.WorkspaceDir)
	if err := d.Backend.Destroy(ctx, st.WorkspaceDir); err != nil {
		return &errs.TeardownError{Provider: st.Provider, Err: err}
	}
	d.removeRecord(st)
	return nil
}

// removeRecord deletes the record file matching the state so discovery
// reports not-found instead of stale data. Best effort.
func (d *Driver) removeRecord(st State) {
	entries, err := os.ReadDir(d.RecordsDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(d.RecordsDir, e.Name())
		rec, perr := ParseRecord(p)
		if perr != nil {
			continue
		}
		if rec.Provider == st.Provider && rec.Timestamp == st.Timestamp && rec.WorkspaceDir == st.WorkspaceDir {
			_ = os.Remove(p)
		}
	}
}

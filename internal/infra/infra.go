// Package infra owns the infrastructure lifecycle for cloud and local
// execution modes: provision ephemeral compute through an opaque IaC
// backend, persist a discoverable state record, poll the remote engine,
// and tear everything down on explicit request only. Long scans are meant
// to outlive the process that started them, so nothing here hooks process
// exit.
package infra

import (
	"context"
	"time"
)

// Outputs are the key/value outputs an IaC apply produced. On failure the
// map may be partial; partially applied infrastructure must still be
// teardown-able from it.
type Outputs map[string]string

// Backend is the opaque infrastructure-as-code provisioning layer.
type Backend interface {
	// Provision drives init, plan, and apply for the module directory with
	// the given variables, bounded by timeout. On failure it returns
	// whatever outputs exist alongside the error.
	Provision(ctx context.Context, moduleDir string, vars map[string]string, timeout time.Duration) (Outputs, error)

	// Destroy tears down whatever the module directory describes. It must
	// be safe to call on partial or already-destroyed state.
	Destroy(ctx context.Context, moduleDir string) error
}

// State describes provisioned compute. It is persisted as a discoverable
// record so independent tooling can find and destroy it later.
type State struct {
	Provider     string
	Timestamp    string // RFC3339 UTC, lexicographically sortable
	EndpointURL  string
	APIKey       string
	SSHKeyPath   string
	WorkspaceDir string
	Outputs      Outputs
}

// Well-known output keys written by the provisioning modules.
const (
	OutputPublicIP  = "public_ip"
	OutputSSHUser   = "ssh_user"
	OutputZapAPIURL = "zap_api_url"
)

// Package errs defines the error taxonomy shared by the configuration
// manager, the plugin runner, and the infrastructure driver. Callers use
// errors.As to branch on the class and decide whether a failure is fatal
// to one plugin, the whole scan, or recoverable on retry.
package errs

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an invalid or missing configuration value.
// It is fatal to the affected plugin only.
type ConfigurationError struct {
	Plugin string
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error for plugin %q key %q: %s", e.Plugin, e.Key, e.Reason)
	}
	return fmt.Sprintf("configuration error for plugin %q: %s", e.Plugin, e.Reason)
}

// ModeResolutionError reports that every candidate execution mode was
// attempted and none could be adopted.
type ModeResolutionError struct {
	Attempted []string
	Causes    []error
}

func (e *ModeResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unable to resolve execution mode, attempted %s", strings.Join(e.Attempted, ", "))
	for i, c := range e.Causes {
		if c == nil {
			continue
		}
		fmt.Fprintf(&b, "; %s: %v", e.Attempted[i], c)
	}
	return b.String()
}

// ProvisioningError reports a failed or timed-out infrastructure apply.
// PartialOutputs carries whatever outputs the backend produced before
// failing; partially applied infrastructure may exist and must remain
// teardown-able from these.
type ProvisioningError struct {
	Provider       string
	PartialOutputs map[string]string
	Err            error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed for provider %q: %v", e.Provider, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// PollError reports a transient failure querying the remote scan engine.
// It is recovered locally via retry; only sustained failure surfaces.
type PollError struct {
	Endpoint string
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll of scan engine at %s failed: %v", e.Endpoint, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// TeardownError reports a failed destroy. It is non-fatal: logged and
// retried, never escalated to invalidate an already produced report.
type TeardownError struct {
	Provider string
	Err      error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown failed for provider %q: %v", e.Provider, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// Package terraform implements the infra.Backend interface by driving the
// terraform binary: init, plan, apply, destroy. The module directories it
// runs are opaque; variables are handed over through a generated
// auto-tfvars file.
package terraform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/gauntletsec/gauntlet/internal/infra"
)

// VarsFileName is the variable file written into the module directory.
// The .auto.tfvars suffix makes terraform pick it up without -var-file.
const VarsFileName = "gauntlet.auto.tfvars"

// Backend drives a terraform binary.
type Backend struct {
	// BinaryPath is an explicit path to terraform. Empty searches $PATH.
	BinaryPath string
}

// findBinary locates terraform, preferring the explicit path.
func (b *Backend) findBinary() (string, error) {
	if b.BinaryPath != "" {
		if _, err := os.Stat(b.BinaryPath); err == nil {
			return b.BinaryPath, nil
		}
		return "", fmt.Errorf("terraform binary not found at %s", b.BinaryPath)
	}
	p, err := exec.LookPath("terraform")
	if err != nil {
		return "", fmt.Errorf("terraform binary not found in PATH: %w", err)
	}
	return p, nil
}

// WriteVarsFile renders the variables as HCL into the module directory.
func WriteVarsFile(moduleDir string, vars map[string]string) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		body.SetAttributeValue(k, cty.StringVal(vars[k]))
	}
	p := filepath.Join(moduleDir, VarsFileName)
	if err := os.WriteFile(p, f.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", VarsFileName, err)
	}
	return nil
}

// Provision implements infra.Backend. The timeout bounds the whole
// init/plan/apply sequence; on failure (including timeout) it still reads
// whatever outputs exist so partially applied infrastructure stays
// teardown-able.
func (b *Backend) Provision(ctx context.Context, moduleDir string, vars map[string]string, timeout time.Duration) (infra.Outputs, error) {
	bin, err := b.findBinary()
	if err != nil {
		return nil, err
	}
	if err := WriteVarsFile(moduleDir, vars); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	steps := [][]string{
		{"init", "-input=false", "-no-color"},
		{"plan", "-input=false", "-no-color", "-out=gauntlet.tfplan"},
		{"apply", "-input=false", "-no-color", "-auto-approve", "gauntlet.tfplan"},
	}
	for _, args := range steps {
		if err := b.run(ctx, bin, moduleDir, args); err != nil {
			outputs, _ := b.readOutputs(context.WithoutCancel(ctx), bin, moduleDir)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return outputs, fmt.Errorf("terraform %s timed out after %s: %w", args[0], timeout, err)
			}
			return outputs, fmt.Errorf("terraform %s: %w", args[0], err)
		}
	}
	return b.readOutputs(ctx, bin, moduleDir)
}

// Destroy implements infra.Backend. A missing module directory means the
// infrastructure is already gone and is not an error.
func (b *Backend) Destroy(ctx context.Context, moduleDir string) error {
	if _, err := os.Stat(moduleDir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	bin, err := b.findBinary()
	if err != nil {
		return err
	}
	return b.run(ctx, bin, moduleDir, []string{"destroy", "-input=false", "-no-color", "-auto-approve"})
}

func (b *Backend) run(ctx context.Context, bin, dir string, args []string) error {
	slog.Debug("running terraform", "dir", dir, "args", args)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// readOutputs parses `terraform output -json` into a flat string map.
func (b *Backend) readOutputs(ctx context.Context, bin, dir string) (infra.Outputs, error) {
	cmd := exec.CommandContext(ctx, bin, "output", "-json")
	cmd.Dir = dir
	raw, err := cmd.Output()
	if err != nil {
		return infra.Outputs{}, fmt.Errorf("terraform output: %w", err)
	}
	return ParseOutputs(raw)
}

// ParseOutputs decodes terraform's output -json document. Non-string
// values are rendered through their JSON form.
func ParseOutputs(raw []byte) (infra.Outputs, error) {
	var doc map[string]struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return infra.Outputs{}, fmt.Errorf("parse terraform outputs: %w", err)
	}
	out := infra.Outputs{}
	for k, v := range doc {
		var s string
		if err := json.Unmarshal(v.Value, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(bytes.TrimSpace(v.Value))
	}
	return out, nil
}

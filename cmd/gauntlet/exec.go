package gauntlet

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/gauntletsec/gauntlet/internal/plugin"
)

// shellExecutor is the process-spawning side of the plugin contract.
// Plugins only build plugin.Command values; this is the one place in the
// CLI where those become real processes.
type shellExecutor struct{}

func (shellExecutor) Run(ctx context.Context, cmd plugin.Command) ([]byte, error) {
	bin, err := exec.LookPath(cmd.Executable)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", cmd.Executable, err)
	}
	c := exec.CommandContext(ctx, bin, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", cmd.Executable, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

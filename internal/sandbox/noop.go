package sandbox

import (
	"context"
	"os/exec"

	"oneshim-edge/internal/agenterr"
	"oneshim-edge/internal/policy"
)

// NoOp passes the action through unchanged: used when
// config.Enabled is false or no platform backend is available.
type NoOp struct{}

// IsAvailable always reports true: NoOp is the universal fallback.
func (NoOp) IsAvailable() bool { return true }

// ExecuteSandboxed runs action directly with no isolation applied.
func (NoOp) ExecuteSandboxed(ctx context.Context, action Action, _ policy.SandboxConfig) (Result, error) {
	cmd := exec.CommandContext(ctx, action.ProcessPath, action.Args...)
	stdout, err := cmd.Output()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return Result{}, agenterr.Wrap(agenterr.SandboxExecution, err, "failed to run action")
		}
		return Result{ExitCode: exitErr.ExitCode(), Stdout: stdout, Stderr: exitErr.Stderr}, nil
	}
	return Result{ExitCode: 0, Stdout: stdout}, nil
}

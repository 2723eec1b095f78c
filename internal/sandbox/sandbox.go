// Package sandbox implements the uniform execute_sandboxed contract
// over platform-specific isolation primitives (Landlock, no_new_privs
// and setrlimit on Linux, Seatbelt on macOS, Job Objects on Windows), falling back to a
// pass-through NoOp adapter where no backend is available.
package sandbox

import (
	"context"

	"oneshim-edge/internal/policy"
)

// Action is the unit of work a sandbox executes: a single command
// invocation with no further semantics attached.
type Action struct {
	ProcessPath string
	Args        []string
}

// Result is what the sandboxed execution produced.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Adapter executes an Action under the isolation described by config.
type Adapter interface {
	ExecuteSandboxed(ctx context.Context, action Action, config policy.SandboxConfig) (Result, error)
	IsAvailable() bool
}

// New returns the platform adapter if it reports itself available,
// otherwise the NoOp pass-through.
func New() Adapter {
	if p := newPlatformAdapter(); p != nil && p.IsAvailable() {
		return p
	}
	return NoOp{}
}

//go:build darwin

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"oneshim-edge/internal/agenterr"
	"oneshim-edge/internal/policy"
)

// DarwinAdapter shells out to sandbox-exec with a generated Seatbelt
// (.sbpl) profile scaled to config.Profile, after applying setrlimit.
type DarwinAdapter struct{}

func newPlatformAdapter() Adapter {
	return DarwinAdapter{}
}

// IsAvailable reports whether /usr/bin/sandbox-exec exists.
func (DarwinAdapter) IsAvailable() bool {
	_, err := exec.LookPath("sandbox-exec")
	return err == nil
}

// ExecuteSandboxed runs action under `sandbox-exec -p <sbpl> --`.
func (DarwinAdapter) ExecuteSandboxed(ctx context.Context, action Action, config policy.SandboxConfig) (Result, error) {
	if err := applyRlimits(config); err != nil {
		return Result{}, agenterr.Wrap(agenterr.SandboxInit, err, "failed to apply resource limits")
	}

	profile := buildSeatbeltProfile(config)
	args := append([]string{"-p", profile, "--", action.ProcessPath}, action.Args...)

	cmd := exec.CommandContext(ctx, "sandbox-exec", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return Result{}, agenterr.Wrap(agenterr.SandboxExecution, err, "failed to run sandboxed action")
		}
		return Result{ExitCode: exitErr.ExitCode(), Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
	}
	return Result{ExitCode: 0, Stdout: stdout.Bytes()}, nil
}

// buildSeatbeltProfile renders the .sbpl text for profile/config:
// Permissive allows default with /System and /usr write denied,
// Standard denies default plus explicit opens for system libs and
// configured paths, Strict denies default plus /usr/lib, /dev/null,
// /dev/urandom read with no network.
func buildSeatbeltProfile(config policy.SandboxConfig) string {
	var b strings.Builder
	b.WriteString("(version 1)\n")

	switch config.Profile {
	case policy.Permissive:
		b.WriteString("(allow default)\n")
		b.WriteString(`(deny file-write* (subpath "/System") (subpath "/usr"))` + "\n")
	case policy.Standard:
		b.WriteString("(deny default)\n")
		b.WriteString(`(allow file-read* (subpath "/usr/lib") (subpath "/System/Library"))` + "\n")
		for _, p := range config.AllowedReadPaths {
			fmt.Fprintf(&b, "(allow file-read* (subpath %q))\n", p)
		}
		for _, p := range config.AllowedWritePaths {
			fmt.Fprintf(&b, "(allow file-write* (subpath %q))\n", p)
		}
	default: // Strict
		b.WriteString("(deny default)\n")
		b.WriteString(`(allow file-read* (subpath "/usr/lib") (literal "/dev/null") (literal "/dev/urandom"))` + "\n")
	}

	if config.AllowNetwork {
		b.WriteString("(allow network*)\n")
	}

	return b.String()
}

func applyRlimits(config policy.SandboxConfig) error {
	if config.MaxMemoryBytes > 0 {
		lim := unix.Rlimit{Cur: uint64(config.MaxMemoryBytes), Max: uint64(config.MaxMemoryBytes)}
		if err := unix.Setrlimit(unix.RLIMIT_AS, &lim); err != nil {
			return err
		}
	}
	if config.MaxCPUTimeMs > 0 {
		cpuSecs := uint64(config.MaxCPUTimeMs)/1000 + 1
		lim := unix.Rlimit{Cur: cpuSecs, Max: cpuSecs}
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &lim); err != nil {
			return err
		}
	}
	return nil
}

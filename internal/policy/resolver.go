package policy

// SandboxConfig is the runtime-derived isolation configuration handed
// to a Sandbox Adapter.
type SandboxConfig struct {
	Enabled          bool
	Profile          SandboxProfile
	AllowedReadPaths []string
	AllowedWritePaths []string
	AllowNetwork     bool
	MaxMemoryBytes   int64
	MaxCPUTimeMs     int64
}

// ResolveSandboxProfile maps a policy to its sandbox profile. An
// explicit override always wins; otherwise the profile is derived
// from audit level and escalated for sudo-requiring policies.
func ResolveSandboxProfile(p ExecutionPolicy) SandboxProfile {
	if p.SandboxProfileOverride != nil {
		return *p.SandboxProfileOverride
	}

	var base SandboxProfile
	switch p.AuditLevel {
	case AuditNone:
		base = Permissive
	case AuditBasic:
		base = Standard
	case AuditDetailed, AuditFull:
		base = Strict
	default:
		base = Standard
	}

	if p.RequiresSudo && base == Permissive {
		base = Standard
	}
	return base
}

// ResolveSandboxConfig derives a full SandboxConfig for p, starting
// from base's read paths/CPU ceiling as the platform floor.
func ResolveSandboxConfig(p ExecutionPolicy, base SandboxConfig) SandboxConfig {
	profile := ResolveSandboxProfile(p)

	allowNetwork := profile == Permissive
	if p.AllowNetwork != nil {
		allowNetwork = *p.AllowNetwork
	}

	readPaths := append([]string{}, base.AllowedReadPaths...)
	readPaths = append(readPaths, p.AllowedPaths...)

	maxCPU := base.MaxCPUTimeMs
	if p.MaxExecutionTimeMs > 0 {
		maxCPU = p.MaxExecutionTimeMs
	}

	return SandboxConfig{
		Enabled:           true,
		Profile:           profile,
		AllowedReadPaths:  readPaths,
		AllowedWritePaths: base.AllowedWritePaths,
		AllowNetwork:      allowNetwork,
		MaxMemoryBytes:    base.MaxMemoryBytes,
		MaxCPUTimeMs:      maxCPU,
	}
}

// DefaultStrictConfig builds the maximally-restrictive fallback
// config: Strict profile, no write paths, no network.
func DefaultStrictConfig(base SandboxConfig) SandboxConfig {
	return SandboxConfig{
		Enabled:          true,
		Profile:          Strict,
		AllowedReadPaths: base.AllowedReadPaths,
		AllowNetwork:     false,
		MaxMemoryBytes:   base.MaxMemoryBytes,
		MaxCPUTimeMs:     base.MaxCPUTimeMs,
	}
}

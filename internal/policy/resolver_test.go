package policy

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestResolveSandboxProfileByAuditLevel(t *testing.T) {
	cases := []struct {
		level AuditLevel
		want  SandboxProfile
	}{
		{AuditNone, Permissive},
		{AuditBasic, Standard},
		{AuditDetailed, Strict},
		{AuditFull, Strict},
	}
	for _, c := range cases {
		p := ExecutionPolicy{AuditLevel: c.level}
		if got := ResolveSandboxProfile(p); got != c.want {
			t.Errorf("audit level %s: got %s, want %s", c.level, got, c.want)
		}
	}
}

func TestResolveSandboxProfileOverrideWins(t *testing.T) {
	override := Strict
	p := ExecutionPolicy{AuditLevel: AuditNone, SandboxProfileOverride: &override}
	if got := ResolveSandboxProfile(p); got != Strict {
		t.Fatalf("expected override to win, got %s", got)
	}
}

func TestResolveSandboxProfileSudoEscalatesPermissiveToStandard(t *testing.T) {
	p := ExecutionPolicy{AuditLevel: AuditNone, RequiresSudo: true}
	if got := ResolveSandboxProfile(p); got != Standard {
		t.Fatalf("expected sudo escalation to Standard, got %s", got)
	}
}

func TestResolveSandboxProfileSudoDoesNotExceedStrict(t *testing.T) {
	p := ExecutionPolicy{AuditLevel: AuditFull, RequiresSudo: true}
	if got := ResolveSandboxProfile(p); got != Strict {
		t.Fatalf("expected Strict ceiling to hold, got %s", got)
	}
}

func TestResolveSandboxConfigNetworkDefaultsToProfile(t *testing.T) {
	base := SandboxConfig{}
	permissivePolicy := ExecutionPolicy{AuditLevel: AuditNone}
	cfg := ResolveSandboxConfig(permissivePolicy, base)
	if !cfg.AllowNetwork {
		t.Fatal("expected Permissive profile to default allow_network true")
	}

	strictPolicy := ExecutionPolicy{AuditLevel: AuditFull}
	cfg2 := ResolveSandboxConfig(strictPolicy, base)
	if cfg2.AllowNetwork {
		t.Fatal("expected Strict profile to default allow_network false")
	}
}

func TestResolveSandboxConfigExplicitNetworkOverridesDefault(t *testing.T) {
	base := SandboxConfig{}
	p := ExecutionPolicy{AuditLevel: AuditFull, AllowNetwork: boolPtr(true)}
	cfg := ResolveSandboxConfig(p, base)
	if !cfg.AllowNetwork {
		t.Fatal("expected explicit allow_network=true to override Strict default")
	}
}

func TestResolveSandboxConfigMergesAllowedPaths(t *testing.T) {
	base := SandboxConfig{AllowedReadPaths: []string{"/etc"}}
	p := ExecutionPolicy{AllowedPaths: []string{"/home/user/docs"}}
	cfg := ResolveSandboxConfig(p, base)

	if len(cfg.AllowedReadPaths) != 2 || cfg.AllowedReadPaths[0] != "/etc" || cfg.AllowedReadPaths[1] != "/home/user/docs" {
		t.Fatalf("expected merged read paths, got %v", cfg.AllowedReadPaths)
	}
}

func TestResolveSandboxConfigMaxCPUFallsBackToBase(t *testing.T) {
	base := SandboxConfig{MaxCPUTimeMs: 5000}
	p := ExecutionPolicy{MaxExecutionTimeMs: 0}
	cfg := ResolveSandboxConfig(p, base)
	if cfg.MaxCPUTimeMs != 5000 {
		t.Fatalf("expected base CPU ceiling to apply when policy omits one, got %d", cfg.MaxCPUTimeMs)
	}

	p2 := ExecutionPolicy{MaxExecutionTimeMs: 1000}
	cfg2 := ResolveSandboxConfig(p2, base)
	if cfg2.MaxCPUTimeMs != 1000 {
		t.Fatalf("expected policy's explicit CPU ceiling to apply, got %d", cfg2.MaxCPUTimeMs)
	}
}

func TestDefaultStrictConfigHasNoNetworkOrWritePaths(t *testing.T) {
	base := SandboxConfig{AllowedReadPaths: []string{"/etc"}, MaxMemoryBytes: 1024}
	cfg := DefaultStrictConfig(base)

	if cfg.Profile != Strict {
		t.Fatalf("expected Strict profile, got %s", cfg.Profile)
	}
	if cfg.AllowNetwork {
		t.Fatal("expected no network in default strict config")
	}
	if len(cfg.AllowedWritePaths) != 0 {
		t.Fatalf("expected no write paths in default strict config, got %v", cfg.AllowedWritePaths)
	}
}

package sandbox

import (
	"context"
	"testing"

	"oneshim-edge/internal/policy"
)

func TestNoOpExecuteSandboxedRunsAction(t *testing.T) {
	var n NoOp
	result, err := n.ExecuteSandboxed(context.Background(), Action{ProcessPath: "/bin/echo", Args: []string{"hello"}}, policy.SandboxConfig{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestNoOpIsAlwaysAvailable(t *testing.T) {
	var n NoOp
	if !n.IsAvailable() {
		t.Fatal("expected NoOp to always be available")
	}
}

func TestNewReturnsAnAdapter(t *testing.T) {
	a := New()
	if a == nil {
		t.Fatal("expected New to always return a non-nil adapter")
	}
}

// Package automation implements the Automation Controller: the state
// machine driving a server-issued AutomationCommand from Received
// through PolicyChecked, SandboxEntered, Executed, to AuditWritten,
// with every step failure routing straight to a terminal AuditWritten
// state.
package automation

import (
	"context"
	"log/slog"
	"time"

	"oneshim-edge/internal/policy"
	"oneshim-edge/internal/sandbox"
	"oneshim-edge/internal/storage"
)

// Status is the terminal outcome written to the audit log.
type Status string

const (
	StatusStarted Status = "started"
	StatusDenied  Status = "denied"
	StatusTimeout Status = "timeout"
	StatusFailure Status = "failure"
	StatusSuccess Status = "success"
)

// Command is a server-issued automation request.
type Command struct {
	CommandID   string
	SessionID   string
	Action      sandbox.Action
	TimeoutMs   int64
	PolicyToken string
	TriggerKind string
}

// Controller drives Commands through the automation state machine,
// writing a Started AuditEntry on receipt and one terminal AuditEntry
// when the command ends.
type Controller struct {
	store        *storage.Store
	policyClient *policy.Client
	sandbox      sandbox.Adapter
	policyPubKey []byte
	baseSandbox  policy.SandboxConfig
}

// New builds a Controller. policyPubKey verifies per-command policy
// tokens; baseSandbox supplies the platform floor (read paths, memory
// ceiling) that ResolveSandboxConfig layers policy-specific allowances
// onto.
func New(store *storage.Store, policyClient *policy.Client, adapter sandbox.Adapter, policyPubKey []byte, baseSandbox policy.SandboxConfig) *Controller {
	return &Controller{
		store:        store,
		policyClient: policyClient,
		sandbox:      adapter,
		policyPubKey: policyPubKey,
		baseSandbox:  baseSandbox,
	}
}

// Handle runs cmd through the full state machine and returns the
// terminal status reached.
func (c *Controller) Handle(ctx context.Context, cmd Command) Status {
	startedAt := time.Now()
	c.writeAudit(ctx, cmd, StatusStarted, startedAt, nil, nil)

	if err := policy.ValidateCommandToken(c.policyPubKey, cmd.CommandID, cmd.PolicyToken); err != nil {
		slog.Warn("automation command denied: invalid policy token", "command_id", cmd.CommandID, "error", err)
		return c.finish(ctx, cmd, StatusDenied, startedAt)
	}

	p, ok := c.policyClient.GetPolicyForProcess(cmd.Action.ProcessPath)
	if !ok {
		slog.Warn("automation command denied: no policy matches process", "command_id", cmd.CommandID, "process", cmd.Action.ProcessPath)
		return c.finish(ctx, cmd, StatusDenied, startedAt)
	}
	if err := policy.ValidateArgs(p, cmd.Action.Args); err != nil {
		slog.Warn("automation command denied: args rejected", "command_id", cmd.CommandID, "error", err)
		return c.finish(ctx, cmd, StatusDenied, startedAt)
	}

	sandboxConfig := policy.ResolveSandboxConfig(p, c.baseSandbox)

	timeout := durationFromMs(cmd.TimeoutMs)
	policyTimeout := durationFromMs(p.MaxExecutionTimeMs)
	if policyTimeout > 0 && (timeout <= 0 || policyTimeout < timeout) {
		timeout = policyTimeout
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := c.sandbox.ExecuteSandboxed(execCtx, cmd.Action, sandboxConfig)
	switch {
	case err == nil:
		return c.finish(ctx, cmd, StatusSuccess, startedAt)
	case execCtx.Err() == context.DeadlineExceeded:
		slog.Warn("automation command timed out", "command_id", cmd.CommandID)
		return c.finish(ctx, cmd, StatusTimeout, startedAt)
	default:
		slog.Error("automation command failed", "command_id", cmd.CommandID, "error", err)
		return c.finish(ctx, cmd, StatusFailure, startedAt)
	}
}

func (c *Controller) finish(ctx context.Context, cmd Command, status Status, startedAt time.Time) Status {
	completedAt := time.Now()
	var elapsedMs *int64
	if status == StatusSuccess || status == StatusFailure {
		elapsed := completedAt.Sub(startedAt).Milliseconds()
		elapsedMs = &elapsed
	}
	c.writeAudit(ctx, cmd, status, startedAt, &completedAt, elapsedMs)
	return status
}

func (c *Controller) writeAudit(ctx context.Context, cmd Command, status Status, startedAt time.Time, completedAt *time.Time, elapsedMs *int64) {
	entry := storage.AuditEntry{
		CommandID:   cmd.CommandID,
		SessionID:   cmd.SessionID,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Status:      string(status),
		ElapsedMs:   elapsedMs,
		TriggerKind: cmd.TriggerKind,
	}
	if err := c.store.WriteAuditEntry(ctx, entry); err != nil {
		slog.Error("failed to write audit entry", "command_id", cmd.CommandID, "status", status, "error", err)
	}
}

func durationFromMs(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

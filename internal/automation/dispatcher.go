package automation

import (
	"context"
	"encoding/json"
	"log/slog"

	"oneshim-edge/internal/sandbox"
	"oneshim-edge/internal/transport"
)

// commandPayload is the wire shape of an update.event carrying an
// automation command.
type commandPayload struct {
	CommandID   string   `json:"command_id"`
	SessionID   string   `json:"session_id"`
	ProcessPath string   `json:"process_path"`
	Args        []string `json:"args"`
	TimeoutMs   int64    `json:"timeout_ms"`
	PolicyToken string   `json:"policy_token"`
	TriggerKind string   `json:"trigger_kind"`
}

// Dispatcher consumes parsed SSE update events carrying automation
// commands and runs each one through a Controller, mirroring the
// Suggestion Pipeline's Receiver.Run consumption idiom.
type Dispatcher struct {
	controller *Controller
}

// NewDispatcher builds a Dispatcher backed by controller.
func NewDispatcher(controller *Controller) *Dispatcher {
	return &Dispatcher{controller: controller}
}

// Run consumes SSE events from in until ctx is canceled or in is
// closed, decoding update events into Commands and handing each to the
// Controller. All other event kinds are ignored here; the Suggestion
// Pipeline's Receiver handles the suggestion-specific ones.
func (d *Dispatcher) Run(ctx context.Context, in <-chan transport.SSEEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if ev.Kind != transport.SSEUpdate {
				continue
			}
			cmd, err := decodeCommand(ev.Payload)
			if err != nil {
				slog.Error("failed to decode automation command payload", "error", err)
				continue
			}
			status := d.controller.Handle(ctx, cmd)
			slog.Info("automation command handled", "command_id", cmd.CommandID, "status", status)
		}
	}
}

func decodeCommand(raw []byte) (Command, error) {
	var p commandPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Command{}, err
	}
	return Command{
		CommandID: p.CommandID,
		SessionID: p.SessionID,
		Action: sandbox.Action{
			ProcessPath: p.ProcessPath,
			Args:        p.Args,
		},
		TimeoutMs:   p.TimeoutMs,
		PolicyToken: p.PolicyToken,
		TriggerKind: p.TriggerKind,
	}, nil
}

package suggestion

import (
	"context"
	"log/slog"

	"oneshim-edge/internal/transport"
)

// FeedbackTransport delivers feedback to the server. RestClient and
// transport.GRPCFeedbackTransport both satisfy it.
type FeedbackTransport interface {
	SendFeedback(ctx context.Context, fb transport.FeedbackRequest) error
}

// FeedbackSender records feedback locally in history and forwards it
// to the server via the configured transport.
type FeedbackSender struct {
	history   *History
	transport FeedbackTransport
}

// NewFeedbackSender builds a FeedbackSender backed by history and t.
func NewFeedbackSender(history *History, t FeedbackTransport) *FeedbackSender {
	return &FeedbackSender{history: history, transport: t}
}

// Send records fb against suggestionID in history and forwards it to
// the server. The local record is updated regardless of whether the
// network send succeeds, since feedback is user intent the UI has
// already committed to; the returned error only reports delivery
// status to the caller for logging/retry purposes.
func (s *FeedbackSender) Send(ctx context.Context, suggestionID string, fb FeedbackType, comment string) error {
	s.history.SetFeedback(suggestionID, fb)

	err := s.transport.SendFeedback(ctx, transport.FeedbackRequest{
		SuggestionID: suggestionID,
		FeedbackType: string(fb),
		Comment:      comment,
	})
	if err != nil {
		slog.Warn("failed to deliver suggestion feedback", "suggestion_id", suggestionID, "error", err)
	}
	return err
}

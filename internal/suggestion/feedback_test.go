package suggestion

import (
	"context"
	"testing"

	"oneshim-edge/internal/agenterr"
	"oneshim-edge/internal/transport"
)

type fakeFeedbackTransport struct {
	calls   int
	lastReq transport.FeedbackRequest
	failErr error
}

func (f *fakeFeedbackTransport) SendFeedback(ctx context.Context, fb transport.FeedbackRequest) error {
	f.calls++
	f.lastReq = fb
	return f.failErr
}

func TestFeedbackSenderRecordsLocallyAndForwards(t *testing.T) {
	history := NewHistory(5)
	history.Record(mkSuggestion("s1", Medium, fixedTime(0)))

	ft := &fakeFeedbackTransport{}
	sender := NewFeedbackSender(history, ft)

	if err := sender.Send(context.Background(), "s1", Accepted, "nice"); err != nil {
		t.Fatalf("expected nil error on success, got %v", err)
	}
	if ft.calls != 1 {
		t.Fatalf("expected 1 transport call, got %d", ft.calls)
	}
	if ft.lastReq.SuggestionID != "s1" || ft.lastReq.FeedbackType != string(Accepted) {
		t.Fatalf("unexpected request forwarded: %+v", ft.lastReq)
	}

	entries := history.Entries()
	if entries[0].Feedback == nil || *entries[0].Feedback != Accepted {
		t.Fatalf("expected local history updated with feedback, got %+v", entries[0].Feedback)
	}
}

func TestFeedbackSenderStillRecordsLocallyOnTransportFailure(t *testing.T) {
	history := NewHistory(5)
	history.Record(mkSuggestion("s1", Medium, fixedTime(0)))

	ft := &fakeFeedbackTransport{failErr: agenterr.New(agenterr.Network, "unreachable")}
	sender := NewFeedbackSender(history, ft)

	err := sender.Send(context.Background(), "s1", Rejected, "")
	if err == nil {
		t.Fatal("expected transport error to be returned")
	}

	entries := history.Entries()
	if entries[0].Feedback == nil || *entries[0].Feedback != Rejected {
		t.Fatalf("expected local feedback recorded despite transport failure, got %+v", entries[0].Feedback)
	}
}

package suggestion

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"oneshim-edge/internal/transport"
)

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// suggestionPayload is the wire shape of a suggestion.event's Payload.
type suggestionPayload struct {
	ID         string  `json:"id"`
	Type       Type    `json:"type"`
	Content    string  `json:"content"`
	Priority   int     `json:"priority"`
	Confidence float64 `json:"confidence"`
	Relevance  float64 `json:"relevance"`
	Actionable bool    `json:"actionable"`
	CreatedAt  string  `json:"created_at"`
	ExpiresAt  *string `json:"expires_at,omitempty"`
}

// Receiver subscribes to the SSE suggestion stream and routes parsed
// Suggestion events into the priority queue and history cache, and
// fans them out to any external subscriber channels registered via
// Subscribe.
type Receiver struct {
	queue       *Queue
	history     *History
	subscribers []chan<- Suggestion
}

// NewReceiver builds a Receiver backed by queue and history.
func NewReceiver(queue *Queue, history *History) *Receiver {
	return &Receiver{queue: queue, history: history}
}

// Subscribe registers ch to receive every suggestion the receiver
// routes from here on. Sends are non-blocking: a full channel drops
// the notification rather than stalling the receive loop.
func (r *Receiver) Subscribe(ch chan<- Suggestion) {
	r.subscribers = append(r.subscribers, ch)
}

// Run consumes parsed SSE events from in until ctx is canceled or in
// is closed, routing suggestion.event payloads to the queue, history,
// and any subscribers. Heartbeats are dropped silently; the other
// non-suggestion events (connection, update, error, close) are logged
// and otherwise ignored here.
func (r *Receiver) Run(ctx context.Context, in <-chan transport.SSEEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			r.handle(ev)
		}
	}
}

func (r *Receiver) handle(ev transport.SSEEvent) {
	switch ev.Kind {
	case transport.SSESuggestion:
		r.handleSuggestion(ev)
	case transport.SSEError:
		slog.Warn("suggestion stream reported error", "message", ev.Message)
	case transport.SSEHeartbeat:
		// no-op: liveness only.
	default:
		slog.Debug("suggestion stream event ignored", "kind", ev.Kind)
	}
}

func (r *Receiver) handleSuggestion(ev transport.SSEEvent) {
	s, err := decodeSuggestion(ev.Payload)
	if err != nil {
		slog.Error("failed to decode suggestion payload", "error", err)
		return
	}

	r.history.Record(s)
	if !r.queue.Push(s) {
		slog.Debug("suggestion dropped, did not outrank queue residents", "id", s.ID)
	}

	for _, sub := range r.subscribers {
		select {
		case sub <- s:
		default:
		}
	}
}

func decodeSuggestion(raw []byte) (Suggestion, error) {
	var p suggestionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Suggestion{}, err
	}

	s := Suggestion{
		ID:         p.ID,
		Type:       p.Type,
		Content:    p.Content,
		Priority:   Priority(p.Priority),
		Confidence: p.Confidence,
		Relevance:  p.Relevance,
		Actionable: p.Actionable,
	}
	if t, err := parseRFC3339(p.CreatedAt); err == nil {
		s.CreatedAt = t
	}
	if p.ExpiresAt != nil {
		if t, err := parseRFC3339(*p.ExpiresAt); err == nil {
			s.ExpiresAt = &t
		}
	}
	return s, nil
}

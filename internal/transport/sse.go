package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// SSEEventKind discriminates the parsed form of one server-sent event.
type SSEEventKind string

const (
	SSEConnected  SSEEventKind = "connection"
	SSESuggestion SSEEventKind = "suggestion"
	SSEUpdate     SSEEventKind = "update"
	SSEHeartbeat  SSEEventKind = "heartbeat"
	SSEError      SSEEventKind = "error"
	SSEClose      SSEEventKind = "close"
)

// SSEEvent is routed to the consumer channel after parsing.
type SSEEvent struct {
	Kind      SSEEventKind
	SessionID string
	Payload   json.RawMessage
	Message   string
	Timestamp time.Time
}

// SSEClient maintains a long-lived SSE connection to the suggestion
// stream, reconnecting with exponential backoff on error or normal
// close until its context is canceled.
type SSEClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	maxRetry   time.Duration
}

// NewSSEClient builds an SSEClient against baseURL, capping reconnect
// backoff at maxRetry.
func NewSSEClient(baseURL string, tokens TokenProvider, maxRetry time.Duration) *SSEClient {
	return &SSEClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
		maxRetry:   maxRetry,
	}
}

// Connect opens the suggestion stream for sessionID, routing parsed
// events to out until ctx is canceled; it does not detect a closed out
// channel, so out must stay open while Connect runs. An event that
// arrives while out is full is dropped. Reconnects automatically, doubling the retry delay from 1s up to
// maxRetry and resetting to 1s on every successful open.
func (c *SSEClient) Connect(ctx context.Context, sessionID string, out chan<- SSEEvent) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = c.maxRetry

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		opened, err := c.runOnce(ctx, sessionID, out)
		if ctx.Err() != nil {
			return
		}
		if opened {
			b.Reset()
		}
		if err != nil {
			slog.Warn("sse stream error, reconnecting", "error", err)
		}

		delay := b.NextBackOff()

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *SSEClient) runOnce(ctx context.Context, sessionID string, out chan<- SSEEvent) (opened bool, err error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/user_context/sessions/stream?session_id=%s", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("sse connect failed with status %d", resp.StatusCode)
	}
	opened = true

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var eventType string
	var dataLines []string

	flush := func() bool {
		if len(dataLines) == 0 {
			return true
		}
		data := strings.Join(dataLines, "\n")
		ev := parseSSEEvent(eventType, data)
		eventType, dataLines = "", nil
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		default:
			slog.Warn("sse consumer channel full, dropping event", "kind", ev.Kind)
			return true
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !flush() {
				return opened, ctx.Err()
			}
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return opened, err
	}
	return opened, nil
}

func parseSSEEvent(eventType, data string) SSEEvent {
	now := time.Now().UTC()
	switch SSEEventKind(eventType) {
	case SSEConnected:
		var payload struct {
			SessionID string `json:"session_id"`
		}
		_ = json.Unmarshal([]byte(data), &payload)
		return SSEEvent{Kind: SSEConnected, SessionID: payload.SessionID, Timestamp: now}
	case SSESuggestion:
		return SSEEvent{Kind: SSESuggestion, Payload: json.RawMessage(data), Timestamp: now}
	case SSEUpdate:
		return SSEEvent{Kind: SSEUpdate, Payload: json.RawMessage(data), Timestamp: now}
	case SSEHeartbeat:
		return SSEEvent{Kind: SSEHeartbeat, Timestamp: now}
	case SSEError:
		return SSEEvent{Kind: SSEError, Message: data, Timestamp: now}
	case SSEClose:
		return SSEEvent{Kind: SSEClose, Timestamp: now}
	default:
		// Default "message" events are treated as an Update with a raw JSON body.
		return SSEEvent{Kind: SSEUpdate, Payload: json.RawMessage(data), Timestamp: now}
	}
}

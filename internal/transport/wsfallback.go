package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
)

// WSClient is an alternative transport for the Suggestion Pipeline's push
// channel, used in place of SSEClient when the backend or network path
// does not support long-lived HTTP streaming (some corporate proxies
// buffer or reject text/event-stream responses but pass WebSocket
// upgrades through cleanly). It decodes the same JSON envelope SSE
// delivers as "data:" lines, so downstream consumers see an identical
// SSEEvent stream regardless of which transport is active.
type WSClient struct {
	baseURL  string
	tokens   TokenProvider
	maxRetry time.Duration
}

// NewWSClient builds a WSClient against baseURL (an http(s):// URL; the
// scheme is translated to ws(s):// on dial), capping reconnect backoff
// at maxRetry.
func NewWSClient(baseURL string, tokens TokenProvider, maxRetry time.Duration) *WSClient {
	return &WSClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokens:   tokens,
		maxRetry: maxRetry,
	}
}

// Connect opens the suggestion stream for sessionID over a WebSocket
// connection, routing parsed events to out until ctx is canceled.
// Reconnects with the same exponential backoff policy as SSEClient.
func (c *WSClient) Connect(ctx context.Context, sessionID string, out chan<- SSEEvent) {
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
			slog.Warn("websocket stream error, reconnecting", "error", err)
		}

		delay := b.NextBackOff()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *WSClient) runOnce(ctx context.Context, sessionID string, out chan<- SSEEvent) (opened bool, err error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	wsURL := toWebSocketURL(c.baseURL) + fmt.Sprintf("/user_context/sessions/stream/ws?session_id=%s", sessionID)
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Authorization": {"Bearer " + token}},
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, err
	}
	defer conn.CloseNow()
	opened = true

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return opened, ctx.Err()
			}
			return opened, err
		}
		if msgType != websocket.MessageText {
			continue
		}

		ev, err := parseWSEnvelope(data)
		if err != nil {
			slog.Warn("discarding malformed websocket frame", "error", err)
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return opened, ctx.Err()
		}
	}
}

// wsEnvelope mirrors the "event:"/"data:" pair SSEClient assembles from
// the wire, but as a single JSON object since WebSocket frames carry no
// separate event-type line.
type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func parseWSEnvelope(raw []byte) (SSEEvent, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return SSEEvent{}, err
	}
	return parseSSEEvent(env.Event, string(env.Data)), nil
}

func toWebSocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}

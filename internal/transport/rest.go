// Package transport implements the Transport Core: batch upload over
// REST, the SSE suggestion stream, and the failure classification that
// feeds the Connectivity Manager, grounded on the teacher's
// internal/proxy/failover.go failure-detection idiom.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"oneshim-edge/internal/agenterr"
	"oneshim-edge/internal/compress"
)

// FailureKind classifies a transport failure for the Connectivity
// Manager and retry policy.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureConnectionRefused
	FailureConnectionReset
	FailureServerError
	FailureRateLimit
	FailureStreamInterrupt
)

func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureConnectionRefused:
		return "connection_refused"
	case FailureConnectionReset:
		return "connection_reset"
	case FailureServerError:
		return "server_error"
	case FailureRateLimit:
		return "rate_limit"
	case FailureStreamInterrupt:
		return "stream_interrupt"
	default:
		return "unknown"
	}
}

// classifyFailure determines the kind of failure from an HTTP response
// and/or error, ported from the teacher's DetectFailure.
func classifyFailure(resp *http.Response, err error) FailureKind {
	if err != nil {
		if os.IsTimeout(err) {
			return FailureTimeout
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return FailureTimeout
		}

		var netErr *net.OpError
		if errors.As(err, &netErr) {
			if strings.Contains(netErr.Error(), "connection refused") {
				return FailureConnectionRefused
			}
			if strings.Contains(netErr.Error(), "connection reset") {
				return FailureConnectionReset
			}
		}

		errStr := err.Error()
		if strings.Contains(errStr, "connection refused") {
			return FailureConnectionRefused
		}
		if strings.Contains(errStr, "connection reset") {
			return FailureConnectionReset
		}
		if strings.Contains(errStr, "EOF") {
			return FailureStreamInterrupt
		}
		return FailureStreamInterrupt
	}

	if resp == nil {
		return FailureStreamInterrupt
	}
	if resp.StatusCode >= 500 {
		return FailureServerError
	}
	if resp.StatusCode == 429 && resp.Header.Get("Retry-After") == "" {
		return FailureRateLimit
	}
	return FailureNone
}

// TokenProvider caches and refreshes the bearer token used to
// authenticate against the server.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// staticTokenProvider is a TokenProvider backed by a single unrefreshed
// token, useful for tests and simple deployments.
type staticTokenProvider struct {
	mu    sync.Mutex
	token string
}

// NewStaticTokenProvider returns a TokenProvider that always returns token.
func NewStaticTokenProvider(token string) TokenProvider {
	return &staticTokenProvider{token: token}
}

func (p *staticTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, nil
}

func (p *staticTokenProvider) Invalidate() {}

// RestClient is the Transport Core's REST surface: batch upload.
type RestClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	compressor *compress.Compressor
}

// NewRestClient builds a RestClient against baseURL.
func NewRestClient(baseURL string, tokens TokenProvider, timeout time.Duration) *RestClient {
	return &RestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		compressor: compress.New(),
	}
}

// UploadBatch serializes batch to JSON, compresses it via CompressAuto,
// and POSTs it to /user_context/batch. On 401 the token is invalidated
// and the request retried once. 429 classifies as RateLimit with the
// Retry-After header's value (default 60s); 5xx and network
// failures classify as retryable.
func (c *RestClient) UploadBatch(ctx context.Context, batch any) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return agenterr.Wrap(agenterr.Serialization, err, "failed to marshal batch")
	}

	compressed, algo, err := c.compressor.CompressAuto(body)
	if err != nil {
		return err
	}

	return c.postBatch(ctx, compressed, string(algo), true)
}

// FeedbackRequest is the wire body POSTed to /suggestions/feedback.
type FeedbackRequest struct {
	SuggestionID string `json:"suggestion_id"`
	FeedbackType string `json:"feedback_type"`
	Comment      string `json:"comment,omitempty"`
}

// SendFeedback posts the user's response to a delivered suggestion.
// Failures are classified and wrapped the same way UploadBatch's are,
// but feedback delivery never retries on 401: the caller can retry the
// whole send if it chooses.
func (c *RestClient) SendFeedback(ctx context.Context, fb FeedbackRequest) error {
	body, err := json.Marshal(fb)
	if err != nil {
		return agenterr.Wrap(agenterr.Serialization, err, "failed to marshal feedback")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return agenterr.Wrap(agenterr.Auth, err, "failed to obtain token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/suggestions/feedback", bytes.NewReader(body))
	if err != nil {
		return agenterr.Wrap(agenterr.Network, err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	failure := classifyFailure(resp, err)
	if resp != nil {
		defer resp.Body.Close()
	}

	switch {
	case err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case err == nil && resp.StatusCode == http.StatusTooManyRequests:
		e := agenterr.New(agenterr.RateLimit, "server rate-limited feedback send")
		e.RetryAfterSecs = parseRetryAfter(resp.Header.Get("Retry-After"))
		return e
	case failure == FailureServerError || failure == FailureTimeout ||
		failure == FailureConnectionRefused || failure == FailureConnectionReset:
		return agenterr.Wrap(agenterr.Network, errOrStatus(err, resp), fmt.Sprintf("feedback send retryable failure: %s", failure))
	default:
		return agenterr.Wrap(agenterr.Network, errOrStatus(err, resp), "feedback send failed")
	}
}

func (c *RestClient) postBatch(ctx context.Context, compressed []byte, algo string, allowRetry bool) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return agenterr.Wrap(agenterr.Auth, err, "failed to obtain token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user_context/batch", bytes.NewReader(compressed))
	if err != nil {
		return agenterr.Wrap(agenterr.Network, err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Encoding", algo)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	failure := classifyFailure(resp, err)
	if resp != nil {
		defer resp.Body.Close()
	}

	switch {
	case err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case err == nil && resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		if !allowRetry {
			return agenterr.New(agenterr.Auth, "unauthorized after token refresh")
		}
		slog.Warn("batch upload unauthorized, retrying once with refreshed token")
		return c.postBatch(ctx, compressed, algo, false)

	case err == nil && resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		e := agenterr.New(agenterr.RateLimit, "server rate-limited batch upload")
		e.RetryAfterSecs = retryAfter
		return e

	case failure == FailureServerError || failure == FailureTimeout ||
		failure == FailureConnectionRefused || failure == FailureConnectionReset ||
		failure == FailureStreamInterrupt:
		return agenterr.Wrap(agenterr.Network, errOrStatus(err, resp), fmt.Sprintf("batch upload retryable failure: %s", failure))

	default:
		return agenterr.Wrap(agenterr.Network, errOrStatus(err, resp), "batch upload failed")
	}
}

func errOrStatus(err error, resp *http.Response) error {
	if err != nil {
		return err
	}
	if resp != nil {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	return errors.New("no response")
}

func parseRetryAfter(header string) int {
	if header == "" {
		return 60
	}
	if n, err := strconv.Atoi(header); err == nil {
		return n
	}
	return 60
}

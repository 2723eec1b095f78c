package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"oneshim-edge/internal/agenterr"
)

// jsonCodec marshals RPC messages as JSON rather than protobuf wire
// format. No .proto files are compiled here (no protoc step is ever
// run), so the service methods below are plain Go structs carried over
// grpc.ClientConn.Invoke/NewStream using this codec instead of
// generated message types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// GRPCTransport is the optional gRPC alternative to the REST Transport
// Core, exposing the same operations over google.golang.org/grpc.
type GRPCTransport struct {
	conn *grpc.ClientConn
}

// DialWithFallback tries primary, then each of fallbackPorts on
// localhost in order, returning the first successful connection or the
// last error encountered.
func DialWithFallback(ctx context.Context, primary string, fallbackPorts []int) (*GRPCTransport, error) {
	targets := append([]string{primary}, fallbackTargets(fallbackPorts)...)

	var lastErr error
	for _, target := range targets {
		conn, err := grpc.NewClient(target,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
		)
		if err != nil {
			lastErr = err
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		conn.Connect()
		ok := conn.WaitForStateChange(dialCtx, conn.GetState())
		cancel()
		if !ok {
			lastErr = fmt.Errorf("gRPC dial to %s did not become ready", target)
			conn.Close()
			continue
		}
		return &GRPCTransport{conn: conn}, nil
	}
	return nil, agenterr.Wrap(agenterr.Network, lastErr, "all gRPC endpoints exhausted")
}

func fallbackTargets(ports []int) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = fmt.Sprintf("localhost:%d", p)
	}
	return out
}

// Close releases the underlying channel.
func (t *GRPCTransport) Close() error { return t.conn.Close() }

// LoginRequest/Response, etc. are the plain Go message shapes carried
// over the JSON codec in place of generated protobuf types.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type CreateSessionRequest struct {
	DeviceID string `json:"device_id"`
}
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type HeartbeatRequest struct {
	SessionID string `json:"session_id"`
}
type HeartbeatResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

type UploadBatchRequest struct {
	SessionID string          `json:"session_id"`
	Events    json.RawMessage `json:"events"`
}
type UploadBatchResponse struct{ Accepted int `json:"accepted"` }

type SendFeedbackRequest struct {
	SuggestionID string `json:"suggestion_id"`
	FeedbackType string `json:"feedback_type"`
	Comment      string `json:"comment,omitempty"`
}
type SendFeedbackResponse struct{ Acknowledged bool `json:"acknowledged"` }

type ListSuggestionsRequest struct {
	SessionID string `json:"session_id"`
}
type ListSuggestionsResponse struct {
	Suggestions json.RawMessage `json:"suggestions"`
}

func (t *GRPCTransport) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	err := t.conn.Invoke(ctx, "/oneshim.edge.v1.EdgeService/Login", req, &resp)
	return &resp, mapGRPCError(err)
}

func (t *GRPCTransport) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	var resp CreateSessionResponse
	err := t.conn.Invoke(ctx, "/oneshim.edge.v1.EdgeService/CreateSession", req, &resp)
	return &resp, mapGRPCError(err)
}

func (t *GRPCTransport) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	var resp HeartbeatResponse
	err := t.conn.Invoke(ctx, "/oneshim.edge.v1.EdgeService/Heartbeat", req, &resp)
	return &resp, mapGRPCError(err)
}

func (t *GRPCTransport) UploadBatch(ctx context.Context, req *UploadBatchRequest) (*UploadBatchResponse, error) {
	var resp UploadBatchResponse
	err := t.conn.Invoke(ctx, "/oneshim.edge.v1.EdgeService/UploadBatch", req, &resp)
	return &resp, mapGRPCError(err)
}

func (t *GRPCTransport) SendFeedback(ctx context.Context, req *SendFeedbackRequest) (*SendFeedbackResponse, error) {
	var resp SendFeedbackResponse
	err := t.conn.Invoke(ctx, "/oneshim.edge.v1.EdgeService/SendFeedback", req, &resp)
	return &resp, mapGRPCError(err)
}

// GRPCFeedbackTransport adapts GRPCTransport's SendFeedback RPC to the
// FeedbackRequest shape RestClient exposes, so the suggestion package
// can send feedback over either transport through one interface.
type GRPCFeedbackTransport struct {
	Transport *GRPCTransport
}

// SendFeedback forwards fb to the underlying gRPC transport.
func (g GRPCFeedbackTransport) SendFeedback(ctx context.Context, fb FeedbackRequest) error {
	_, err := g.Transport.SendFeedback(ctx, &SendFeedbackRequest{
		SuggestionID: fb.SuggestionID,
		FeedbackType: fb.FeedbackType,
		Comment:      fb.Comment,
	})
	return err
}

func (t *GRPCTransport) ListSuggestions(ctx context.Context, req *ListSuggestionsRequest) (*ListSuggestionsResponse, error) {
	var resp ListSuggestionsResponse
	err := t.conn.Invoke(ctx, "/oneshim.edge.v1.EdgeService/ListSuggestions", req, &resp)
	return &resp, mapGRPCError(err)
}

// SubscribeSuggestions opens the server-streaming RPC and routes
// decoded suggestion payloads to out until the stream ends or ctx is
// canceled.
func (t *GRPCTransport) SubscribeSuggestions(ctx context.Context, sessionID string, out chan<- json.RawMessage) error {
	desc := &grpc.StreamDesc{StreamName: "SubscribeSuggestions", ServerStreams: true}
	stream, err := t.conn.NewStream(ctx, desc, "/oneshim.edge.v1.EdgeService/SubscribeSuggestions")
	if err != nil {
		return mapGRPCError(err)
	}
	if err := stream.SendMsg(&ListSuggestionsRequest{SessionID: sessionID}); err != nil {
		return mapGRPCError(err)
	}
	if err := stream.CloseSend(); err != nil {
		return mapGRPCError(err)
	}

	for {
		var msg json.RawMessage
		if err := stream.RecvMsg(&msg); err != nil {
			if err.Error() == "EOF" {
				return nil
			}
			return mapGRPCError(err)
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// mapGRPCError translates an RPC-code error into the unified error
// taxonomy.
func mapGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return agenterr.Wrap(agenterr.Network, err, "grpc call failed")
	}

	switch st.Code() {
	case codes.OK:
		return nil
	case codes.Unauthenticated, codes.PermissionDenied:
		return agenterr.Wrap(agenterr.Auth, err, st.Message())
	case codes.NotFound:
		return agenterr.NotFoundf("resource", st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return agenterr.Validationf("argument", st.Message())
	case codes.ResourceExhausted:
		e := agenterr.New(agenterr.RateLimit, st.Message())
		e.RetryAfterSecs = retryAfterFromStatus(st)
		return e
	case codes.Unavailable:
		return agenterr.New(agenterr.ServiceUnavail, st.Message())
	default:
		return agenterr.Wrap(agenterr.Network, err, st.Message())
	}
}

func retryAfterFromStatus(st *status.Status) int {
	for _, d := range st.Details() {
		if m, ok := d.(map[string]any); ok {
			if v, ok := m["retry-after"].(float64); ok {
				return int(v)
			}
		}
	}
	return 60
}

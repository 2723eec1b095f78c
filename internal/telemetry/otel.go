package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // "otlp", "stdout", or "none"
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Provider manages OpenTelemetry tracing for the edge agent.
type Provider struct {
	config   Config
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewProvider creates a new telemetry provider.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{config: cfg, tracer: otel.Tracer("oneshim-edge")}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "oneshim-edge"
	}

	slog.Info("creating exporter", "type", cfg.Exporter)

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "otlp":
		slog.Debug("creating OTLP exporter")
		exporter, err = createOTLPExporter(cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("OTLP exporter initialized", "endpoint", cfg.Endpoint)
	case "stdout":
		slog.Debug("creating stdout exporter")
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Error("stdout exporter creation failed", "error", err)
			return nil, err
		}
		slog.Info("stdout trace exporter initialized")
	default:
		return &Provider{config: cfg, tracer: otel.Tracer("oneshim-edge")}, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		config:   cfg,
		tracer:   tp.Tracer("oneshim-edge"),
		provider: tp,
	}, nil
}

func createOTLPExporter(cfg Config) (sdktrace.SpanExporter, error) {
	ctx := context.Background()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptracegrpc.New(ctx, opts...)
}

// Tracer returns the tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown gracefully shuts down the trace provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}

// Enabled returns whether telemetry is enabled.
func (p *Provider) Enabled() bool {
	return p.config.Enabled && p.provider != nil
}

// Span attributes, namespaced under edge.* rather than the teacher's
// proxy-specific elida.* prefix.
const (
	AttrSessionID     = "edge.session.id"
	AttrCommandID     = "edge.command.id"
	AttrTriggerType   = "edge.capture.trigger_type"
	AttrImportance    = "edge.capture.importance"
	AttrPayloadKind   = "edge.capture.payload_kind"
	AttrEventCount    = "edge.upload.event_count"
	AttrDurationMs    = "edge.duration_ms"
	AttrSuggestionID  = "edge.suggestion.id"
	AttrAutomationCmd = "edge.automation.status"
)

// StartCaptureSpan starts a span for one Capture Trigger → Frame
// Processor cycle.
func (p *Provider) StartCaptureSpan(ctx context.Context, triggerType string, importance float64) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "capture.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrTriggerType, triggerType),
			attribute.Float64(AttrImportance, importance),
		),
	)
}

// EndCaptureSpan ends a capture span, recording the payload tier chosen.
func (p *Provider) EndCaptureSpan(span trace.Span, payloadKind string, err error) {
	span.SetAttributes(attribute.String(AttrPayloadKind, payloadKind))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartUploadSpan starts a span for one Batch Uploader flush cycle.
func (p *Provider) StartUploadSpan(ctx context.Context, eventCount int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "upload.batch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int(AttrEventCount, eventCount)),
	)
}

// EndUploadSpan ends an upload span.
func (p *Provider) EndUploadSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartAutomationSpan starts a span for one Automation Controller
// command's full state-machine run.
func (p *Provider) StartAutomationSpan(ctx context.Context, commandID, sessionID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "automation.command",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrCommandID, commandID),
			attribute.String(AttrSessionID, sessionID),
		),
	)
}

// EndAutomationSpan ends an automation span, recording the terminal
// status and elapsed time.
func (p *Provider) EndAutomationSpan(span trace.Span, status string, durationMs int64) {
	span.SetAttributes(
		attribute.String(AttrAutomationCmd, status),
		attribute.Int64(AttrDurationMs, durationMs),
	)
	span.End()
}

// RecordSuggestionReceived records a suggestion-delivery event on the
// current span in ctx.
func (p *Provider) RecordSuggestionReceived(ctx context.Context, suggestionID, suggestionType string, priority int) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("suggestion.received",
		trace.WithAttributes(
			attribute.String(AttrSuggestionID, suggestionID),
			attribute.String("edge.suggestion.type", suggestionType),
			attribute.Int("edge.suggestion.priority", priority),
		),
	)
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "none",
		ServiceName: "oneshim-edge",
	}
}

// ConfigFromEnv creates config from environment variables.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		cfg.Enabled = true
		cfg.Exporter = "otlp"
		cfg.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		cfg.Insecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	}

	if os.Getenv("EDGE_TELEMETRY_ENABLED") == "true" {
		cfg.Enabled = true
	}
	if os.Getenv("EDGE_TELEMETRY_EXPORTER") != "" {
		cfg.Exporter = os.Getenv("EDGE_TELEMETRY_EXPORTER")
	}
	if os.Getenv("EDGE_TELEMETRY_ENDPOINT") != "" {
		cfg.Endpoint = os.Getenv("EDGE_TELEMETRY_ENDPOINT")
	}

	return cfg
}

// NoopProvider returns a provider that does nothing (for testing).
func NoopProvider() *Provider {
	return &Provider{
		config: Config{Enabled: false},
		tracer: otel.Tracer("oneshim-edge-noop"),
	}
}

// SpanFromContext extracts a span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// ContextWithTimeout creates a context with timeout for shutdown.
func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

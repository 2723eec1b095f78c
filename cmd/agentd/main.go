package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"oneshim-edge/internal/automation"
	"oneshim-edge/internal/capture"
	"oneshim-edge/internal/config"
	"oneshim-edge/internal/connectivity"
	"oneshim-edge/internal/consent"
	"oneshim-edge/internal/monitor"
	"oneshim-edge/internal/policy"
	"oneshim-edge/internal/privacy"
	"oneshim-edge/internal/redaction"
	"oneshim-edge/internal/sandbox"
	"oneshim-edge/internal/storage"
	"oneshim-edge/internal/suggestion"
	"oneshim-edge/internal/telemetry"
	"oneshim-edge/internal/transport"
	"oneshim-edge/internal/upload"
)

func main() {
	configPath := flag.String("config", "configs/agent.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("starting oneshim edge agent",
		"version", "0.1.0",
		"storage_path", cfg.Storage.DBPath,
		"transport_base_url", cfg.Transport.BaseURL,
	)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755); err != nil {
		slog.Error("failed to create storage directory", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Storage.FramesDir, 0755); err != nil {
		slog.Error("failed to create frames directory", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("storage close error", "error", err)
		}
	}()

	var tp *telemetry.Provider
	if cfg.Telemetry.Enabled {
		tp, err = telemetry.NewProvider(telemetry.Config{
			Enabled:     cfg.Telemetry.Enabled,
			Exporter:    cfg.Telemetry.Exporter,
			Endpoint:    cfg.Telemetry.Endpoint,
			ServiceName: cfg.Telemetry.ServiceName,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			slog.Warn("telemetry initialization failed, continuing without tracing", "error", err)
			tp = nil
		} else {
			slog.Info("telemetry enabled", "exporter", cfg.Telemetry.Exporter, "endpoint", cfg.Telemetry.Endpoint)
		}
	}
	if tp == nil {
		tp = telemetry.NoopProvider()
	}

	// Consent Ledger: file-backed by default, source of truth for every
	// IsValid/Status read.
	ledger, err := consent.New(cfg.Privacy.ConsentFilePath)
	if err != nil {
		slog.Error("failed to load consent ledger", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Enabled {
		redisLedger, err := consent.NewRedisLedger(consent.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			slog.Warn("redis consent mirror unavailable, continuing with file-backed ledger only", "error", err)
		} else {
			ledger.SetMirror(redisLedger)
			slog.Info("mirroring consent grants to redis", "addr", cfg.Redis.Addr)
		}
	}

	filter := redaction.New()
	piiLevel := piiLevelFromString(cfg.Privacy.DefaultPIILevel)

	// Policy Client: loads and verifies a signed execution-policy bundle
	// before any automation command can be accepted.
	policyClient := policy.New(cfg.Policy.CacheTTL)
	if cfg.Policy.RequireSignedBundle {
		pubKey, err := policy.DecodePublicKeyB64(cfg.Policy.PublicKeyB64)
		if err != nil {
			slog.Error("invalid policy public key", "error", err)
			os.Exit(1)
		}
		bundleBytes, err := policy.LoadAndVerifyBundle(cfg.Policy.BundlePath, cfg.Policy.SignaturePath, pubKey)
		if err != nil {
			slog.Error("policy bundle verification failed", "error", err)
			os.Exit(1)
		}
		slog.Info("policy bundle verified", "bytes", len(bundleBytes))
		// Bundle parsing into []policy.ExecutionPolicy is deployment-specific
		// (the wire format is chosen by the fleet operator, not this agent);
		// operators call policyClient.UpdatePolicies after unmarshaling.
	} else {
		slog.Warn("starting without a signed policy bundle requirement; automation commands will be denied until policies are loaded")
	}

	gateway := privacy.New(filter, ledger, piiLevel, nil)

	// Capture Trigger + Frame Processor.
	trigger := capture.NewTrigger(time.Duration(cfg.Capture.ThrottleMs) * time.Millisecond)
	processor := capture.NewProcessor(capture.NoOpCapturer{}, cfg.Capture.ThumbnailWidth, cfg.Capture.ThumbnailHeight, nil, gateway)

	sysMonitor := monitor.NewRuntimeSystemMonitor()
	procMonitor := monitor.NoOpProcessMonitor{}

	// Connectivity Manager.
	connMgr := connectivity.New()

	// Transport Core: REST is the default; gRPC dials with fallback ports
	// when configured.
	tokens := transport.NewStaticTokenProvider("")
	restClient := transport.NewRestClient(cfg.Transport.BaseURL, tokens, 30*time.Second)

	var uploadTransport upload.Transport = restClient
	var feedbackTransport suggestion.FeedbackTransport = restClient
	if cfg.Transport.UseGRPC {
		grpcCtx, grpcCancel := context.WithTimeout(context.Background(), 10*time.Second)
		grpcTransport, err := transport.DialWithFallback(grpcCtx, cfg.Transport.BaseURL, cfg.Transport.GRPCFallbackPorts)
		grpcCancel()
		if err != nil {
			slog.Warn("gRPC transport unavailable, falling back to REST", "error", err)
		} else {
			defer grpcTransport.Close()
			feedbackTransport = transport.GRPCFeedbackTransport{Transport: grpcTransport}
			slog.Info("gRPC transport established")
		}
	}

	// Batch Uploader.
	uploader := upload.New(store, uploadTransport, connMgr,
		cfg.Transport.BatchMaxEvents,
		time.Duration(cfg.Transport.BatchIntervalSecs)*time.Second,
		5*time.Second,
	)

	// Suggestion Pipeline.
	queue := suggestion.NewQueue(100)
	history := suggestion.NewHistory(200)
	receiver := suggestion.NewReceiver(queue, history)
	// feedbackSender is invoked by the desktop UI layer (out of scope
	// here) whenever the user accepts/rejects/defers a suggestion.
	feedbackSender := suggestion.NewFeedbackSender(history, feedbackTransport)
	slog.Debug("suggestion pipeline ready", "feedback_sender", feedbackSender != nil)

	// streamClient carries the suggestion/update push channel. SSE is the
	// default; UseWebSocketFallback swaps in WSClient for backend paths
	// (corporate proxies, some load balancers) that buffer or reject
	// text/event-stream responses but pass WebSocket upgrades through.
	var streamClient interface {
		Connect(ctx context.Context, sessionID string, out chan<- transport.SSEEvent)
	}
	if cfg.Transport.UseWebSocketFallback {
		streamClient = transport.NewWSClient(cfg.Transport.BaseURL, tokens, time.Duration(cfg.Transport.SSEMaxRetrySecs)*time.Second)
	} else {
		streamClient = transport.NewSSEClient(cfg.Transport.BaseURL, tokens, time.Duration(cfg.Transport.SSEMaxRetrySecs)*time.Second)
	}
	sseEvents := make(chan transport.SSEEvent, 32)

	// Sandbox Adapter + Automation Controller.
	sandboxAdapter := sandbox.New()
	baseSandboxConfig := policy.DefaultStrictConfig(policy.SandboxConfig{})
	var policyPubKey []byte
	if cfg.Policy.PublicKeyB64 != "" {
		if k, err := policy.DecodePublicKeyB64(cfg.Policy.PublicKeyB64); err == nil {
			policyPubKey = k
		}
	}
	controller := automation.New(store, policyClient, sandboxAdapter, policyPubKey, baseSandboxConfig)
	dispatcher := automation.NewDispatcher(controller)

	// Fan out the single SSE stream to the Suggestion Pipeline's
	// receiver and the Automation Controller's dispatcher: each reads
	// its own kind of event and ignores the rest.
	suggestionEvents := make(chan transport.SSEEvent, 32)
	automationEvents := make(chan transport.SSEEvent, 32)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go uploader.Run(ctx)
	go streamClient.Connect(ctx, "", sseEvents)
	go fanOutSSEEvents(ctx, sseEvents, suggestionEvents, automationEvents)
	go receiver.Run(ctx, suggestionEvents)
	go dispatcher.Run(ctx, automationEvents)
	go runRetentionSweeper(ctx, store, cfg.Storage.RetentionDays)
	go runCaptureLoop(ctx, trigger, processor, procMonitor, store, tp)
	go runResourceLogger(ctx, sysMonitor)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("received shutdown signal", "signal", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}

	slog.Info("oneshim edge agent stopped")
}

func frameID() string {
	return uuid.NewString()
}

func piiLevelFromString(s string) redaction.Level {
	switch s {
	case "none":
		return redaction.Off
	case "strict":
		return redaction.Strict
	default:
		return redaction.Standard
	}
}

// fanOutSSEEvents duplicates the one SSE stream to the Suggestion
// Pipeline and the Automation Controller, each of which only acts on
// the event kinds it understands.
func fanOutSSEEvents(ctx context.Context, in <-chan transport.SSEEvent, outs ...chan<- transport.SSEEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			for _, out := range outs {
				select {
				case out <- ev:
				default:
				}
			}
		}
	}
}

// runCaptureLoop polls the Process Monitor for the foreground window,
// feeds it through the Capture Trigger, and runs the Frame Processor
// whenever a capture is warranted.
func runCaptureLoop(ctx context.Context, trigger *capture.Trigger, processor *capture.Processor, procMonitor monitor.ProcessMonitor, store *storage.Store, tp *telemetry.Provider) {
	var prevApp string
	var hasPrevApp bool

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			win, err := procMonitor.ActiveWindow(ctx)
			if err != nil || win == nil {
				continue
			}

			event := capture.ContextEvent{
				AppName:     win.AppName,
				WindowTitle: win.Title,
				PrevAppName: prevApp,
				HasPrevApp:  hasPrevApp,
				Timestamp:   time.Now(),
			}
			prevApp, hasPrevApp = win.AppName, true

			req := trigger.ShouldCapture(event)
			if req == nil {
				continue
			}

			spanCtx, span := tp.StartCaptureSpan(ctx, string(req.TriggerType), req.Importance)
			frame, err := processor.CaptureAndProcess(spanCtx, req)
			payloadKind := string(capture.PayloadNone)
			if frame != nil && frame.ImagePayload != nil {
				payloadKind = string(frame.ImagePayload.Kind)
			}
			tp.EndCaptureSpan(span, payloadKind, err)
			if err != nil {
				slog.Warn("capture failed", "error", err)
				continue
			}

			record := storage.Frame{
				ID:          frameID(),
				Timestamp:   frame.Metadata.Timestamp,
				TriggerType: string(frame.Metadata.TriggerType),
				AppName:     frame.Metadata.AppName,
				WindowTitle: frame.Metadata.WindowTitle,
				Importance:  frame.Metadata.Importance,
				ResolutionW: frame.Metadata.Resolution[0],
				ResolutionH: frame.Metadata.Resolution[1],
			}
			if frame.ImagePayload != nil {
				record.OCRText = frame.ImagePayload.OCRText
			}
			if err := store.SaveFrame(ctx, record, ""); err != nil {
				slog.Error("failed to save frame", "error", err)
			}
		}
	}
}

// runResourceLogger periodically logs host resource usage from the
// System Monitor.
func runResourceLogger(ctx context.Context, sysMonitor monitor.SystemMonitor) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics, err := sysMonitor.CollectMetrics(ctx)
			if err != nil {
				slog.Warn("system metrics collection failed", "error", err)
				continue
			}
			slog.Debug("system metrics",
				"cpu_count", metrics.CPUCount,
				"memory_used", metrics.MemoryUsed,
				"goroutines", metrics.GoroutineCount,
			)
		}
	}
}

// runRetentionSweeper periodically enforces the configured event
// retention window, mirroring the teacher's ticker-driven background
// maintenance loops.
func runRetentionSweeper(ctx context.Context, store *storage.Store, retentionDays int) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.EnforceRetention(ctx, retentionDays)
			if err != nil {
				slog.Error("retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("retention sweep removed expired events", "count", n)
			}
			if _, err := store.EnforceFrameRetention(ctx, retentionDays); err != nil {
				slog.Error("frame retention sweep failed", "error", err)
			}
		}
	}
}

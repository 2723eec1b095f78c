package capture

import (
	"context"
	"image"
	"log/slog"
	"time"

	"oneshim-edge/internal/privacy"
)

// PayloadKind discriminates which branch of the importance-gated
// pipeline produced a payload.
type PayloadKind string

const (
	PayloadFull      PayloadKind = "full"
	PayloadDelta     PayloadKind = "delta"
	PayloadThumbnail PayloadKind = "thumbnail"
	PayloadNone      PayloadKind = "none"
)

// ImagePayload is the processed image data attached to a frame, shaped
// by which importance branch produced it.
type ImagePayload struct {
	Kind         PayloadKind
	DataBase64   string
	Format       string
	OCRText      string
	Region       *DeltaRegion
	ChangedRatio float64
	Width        int
	Height       int
}

// Metadata is the always-present part of a processed frame.
type Metadata struct {
	Timestamp   time.Time
	TriggerType TriggerType
	AppName     string
	WindowTitle string
	Resolution  [2]int
	Importance  float64
}

// ProcessedFrame is the Frame Processor's output: metadata plus an
// optional image payload whose shape depends on importance.
type ProcessedFrame struct {
	Metadata     Metadata
	ImagePayload *ImagePayload
}

// OCRExtractor extracts text from a captured frame. Optional; nil means
// OCR is never attempted.
type OCRExtractor interface {
	Extract(ctx context.Context, img image.Image) (string, error)
}

// Processor turns a capture Request into a ProcessedFrame, branching on
// importance: Full (>=0.8) encodes the whole frame at high quality and
// attempts OCR; Delta (>=0.5) encodes at medium quality when a changed
// region versus the previous frame is detected; Thumbnail (>=0.3)
// downscales and encodes at low quality; below 0.3 only metadata is kept.
type Processor struct {
	capture         ScreenCapturer
	thumbnails      *ThumbnailCache
	prevFrame       image.Image
	thumbnailWidth  int
	thumbnailHeight int
	ocr             OCRExtractor
	gateway         *privacy.Gateway
}

// NewProcessor builds a Processor. ocr may be nil to disable OCR entirely.
func NewProcessor(capturer ScreenCapturer, thumbW, thumbH int, ocr OCRExtractor, gateway *privacy.Gateway) *Processor {
	return &Processor{
		capture:         capturer,
		thumbnails:      NewThumbnailCache(),
		thumbnailWidth:  thumbW,
		thumbnailHeight: thumbH,
		ocr:             ocr,
		gateway:         gateway,
	}
}

func (p *Processor) extractOCR(ctx context.Context, img image.Image) string {
	if p.ocr == nil {
		return ""
	}
	text, err := p.ocr.Extract(ctx, img)
	if err != nil {
		slog.Warn("ocr extraction failed, ignoring", "error", err)
		return ""
	}
	if text == "" {
		return ""
	}
	return p.gateway.SanitizeText(text)
}

// CaptureAndProcess runs the full pipeline for one capture Request.
func (p *Processor) CaptureAndProcess(ctx context.Context, req *Request) (*ProcessedFrame, error) {
	sanitizedTitle := p.gateway.SanitizeText(req.WindowTitle)

	current, err := p.capture.CapturePrimary(ctx)
	if err != nil {
		return nil, err
	}
	b := current.Bounds()

	metadata := Metadata{
		Timestamp:   time.Now().UTC(),
		TriggerType: req.TriggerType,
		AppName:     req.AppName,
		WindowTitle: sanitizedTitle,
		Resolution:  [2]int{b.Dx(), b.Dy()},
		Importance:  req.Importance,
	}

	payload, err := p.branch(ctx, current, req.Importance)
	if err != nil {
		return nil, err
	}

	p.prevFrame = current

	return &ProcessedFrame{Metadata: metadata, ImagePayload: payload}, nil
}

func (p *Processor) branch(ctx context.Context, current image.Image, importance float64) (*ImagePayload, error) {
	switch {
	case importance >= 0.8:
		slog.Debug("full frame processing", "importance", importance)
		encoded, err := EncodeWebPBase64(current, High)
		if err != nil {
			return nil, err
		}
		return &ImagePayload{
			Kind: PayloadFull, DataBase64: encoded, Format: "webp",
			OCRText: p.extractOCR(ctx, current),
		}, nil

	case importance >= 0.5:
		slog.Debug("delta processing", "importance", importance)
		if p.prevFrame == nil {
			encoded, err := EncodeWebPBase64(current, Medium)
			if err != nil {
				return nil, err
			}
			return &ImagePayload{Kind: PayloadFull, DataBase64: encoded, Format: "webp"}, nil
		}
		region := ComputeDelta(p.prevFrame, current)
		if region == nil {
			return nil, nil
		}
		encoded, err := EncodeWebPBase64(current, Medium)
		if err != nil {
			return nil, err
		}
		return &ImagePayload{
			Kind: PayloadDelta, DataBase64: encoded, Format: "webp",
			Region: region, ChangedRatio: region.ChangedRatio,
		}, nil

	case importance >= 0.3:
		slog.Debug("thumbnail processing", "importance", importance)
		thumb, err := p.thumbnails.FastResize(current, p.thumbnailWidth, p.thumbnailHeight)
		if err != nil {
			return nil, err
		}
		encoded, err := EncodeWebPBase64(thumb, Low)
		if err != nil {
			return nil, err
		}
		return &ImagePayload{
			Kind: PayloadThumbnail, DataBase64: encoded, Format: "webp",
			Width: p.thumbnailWidth, Height: p.thumbnailHeight,
		}, nil

	default:
		slog.Debug("metadata only", "importance", importance)
		return nil, nil
	}
}

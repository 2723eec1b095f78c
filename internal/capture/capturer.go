package capture

import (
	"context"
	"image"

	"oneshim-edge/internal/agenterr"
)

// ScreenCapturer captures the primary display. Platform-specific
// implementations (X11/Wayland, Quartz, DXGI) are an external
// collaborator out of scope here — they need only satisfy this
// interface.
type ScreenCapturer interface {
	CapturePrimary(ctx context.Context) (image.Image, error)
}

// NoOpCapturer always fails; it is the default when no platform capturer
// has been wired in, so the failure is explicit rather than a silent
// black frame.
type NoOpCapturer struct{}

func (NoOpCapturer) CapturePrimary(ctx context.Context) (image.Image, error) {
	return nil, agenterr.New(agenterr.Internal, "no platform screen capturer configured")
}

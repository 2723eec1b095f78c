package capture

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/HugoSmits86/nativewebp"

	"oneshim-edge/internal/agenterr"
)

// Quality selects the WebP encode tier. nativewebp only supports
// lossless encoding, so every tier encodes the image losslessly at its
// full size: Medium and Low set nativewebp's extended-format option and
// High does not. No tier scales the image or applies a lossy factor.
type Quality int

const (
	High Quality = iota
	Medium
	Low
)

// EncodeWebPBase64 encodes img as WebP and returns the base64 standard
// encoding of the result, ready to embed in an ImagePayload.
func EncodeWebPBase64(img image.Image, quality Quality) (string, error) {
	var buf bytes.Buffer
	opts := &nativewebp.Options{UseExtendedFormat: quality != High}
	if err := nativewebp.Encode(&buf, img, opts); err != nil {
		return "", agenterr.Wrap(agenterr.Internal, err, "webp encode failed")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

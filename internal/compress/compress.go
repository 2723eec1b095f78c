// Package compress provides algorithm-adaptive byte compression with
// auto-selection by payload size.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"oneshim-edge/internal/agenterr"
)

// Algorithm is one of the supported compression algorithms.
type Algorithm string

const (
	Gzip Algorithm = "gzip"
	Zstd Algorithm = "zstd"
	Lz4  Algorithm = "lz4"
)

const (
	lz4Threshold  = 1024
	zstdThreshold = 100 * 1024
)

// SelectAlgorithm picks the algorithm that minimizes compress+transfer
// latency for a payload of the given size:
//   - < 1 KiB: LZ4 (fastest)
//   - 1 KiB .. 100 KiB: Zstd (balanced)
//   - >= 100 KiB: Gzip (best ratio)
func SelectAlgorithm(dataSize int) Algorithm {
	switch {
	case dataSize < lz4Threshold:
		return Lz4
	case dataSize < zstdThreshold:
		return Zstd
	default:
		return Gzip
	}
}

// Compressor compresses and decompresses byte slices under a named
// algorithm, with automatic algorithm selection by payload size.
type Compressor struct{}

// New returns a ready-to-use Compressor.
func New() *Compressor { return &Compressor{} }

// CompressAuto selects an algorithm by size and compresses with it.
func (c *Compressor) CompressAuto(data []byte) ([]byte, Algorithm, error) {
	algo := SelectAlgorithm(len(data))
	out, err := c.Compress(data, algo)
	if err != nil {
		return nil, "", err
	}
	return out, algo, nil
}

// Compress compresses data with the named algorithm. No partial output is
// ever returned on failure.
func (c *Compressor) Compress(data []byte, algo Algorithm) ([]byte, error) {
	switch algo {
	case Gzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, agenterr.Wrap(agenterr.Internal, err, "gzip compress failed")
		}
		if err := w.Close(); err != nil {
			return nil, agenterr.Wrap(agenterr.Internal, err, "gzip compress failed")
		}
		return buf.Bytes(), nil
	case Zstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, agenterr.Wrap(agenterr.Internal, err, "zstd compress failed")
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case Lz4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		// Prepend the uncompressed size as a 4-byte little-endian header.
		// The bytes after it are an LZ4 frame (not a raw LZ4 block), and
		// Decompress skips the header without reading it.
		size := uint32(len(data))
		header := []byte{byte(size), byte(size >> 8), byte(size >> 16), byte(size >> 24)}
		if _, err := w.Write(data); err != nil {
			return nil, agenterr.Wrap(agenterr.Internal, err, "lz4 compress failed")
		}
		if err := w.Close(); err != nil {
			return nil, agenterr.Wrap(agenterr.Internal, err, "lz4 compress failed")
		}
		return append(header, buf.Bytes()...), nil
	default:
		return nil, agenterr.New(agenterr.Validation, "unknown compression algorithm")
	}
}

// Decompress reverses Compress. Decompressing with the wrong algorithm, or
// corrupted input, always fails rather than returning partial data.
func (c *Compressor) Decompress(data []byte, algo Algorithm) ([]byte, error) {
	switch algo {
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, agenterr.Wrap(agenterr.Serialization, err, "gzip decompress failed")
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, agenterr.Wrap(agenterr.Serialization, err, "gzip decompress failed")
		}
		return out, nil
	case Zstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, agenterr.Wrap(agenterr.Internal, err, "zstd decoder init failed")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, agenterr.Wrap(agenterr.Serialization, err, "zstd decompress failed")
		}
		return out, nil
	case Lz4:
		if len(data) < 4 {
			return nil, agenterr.New(agenterr.Serialization, "lz4 payload too short for size header")
		}
		r := lz4.NewReader(bytes.NewReader(data[4:]))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, agenterr.Wrap(agenterr.Serialization, err, "lz4 decompress failed")
		}
		return out, nil
	default:
		return nil, agenterr.New(agenterr.Validation, "unknown compression algorithm")
	}
}

package compress

import (
	"bytes"
	"strings"
	"testing"
)

func TestSelectAlgorithm(t *testing.T) {
	cases := []struct {
		size int
		want Algorithm
	}{
		{500, Lz4},
		{1023, Lz4},
		{1024, Zstd},
		{50_000, Zstd},
		{100*1024 - 1, Zstd},
		{100 * 1024, Gzip},
		{200_000, Gzip},
	}
	for _, tc := range cases {
		if got := SelectAlgorithm(tc.size); got != tc.want {
			t.Errorf("SelectAlgorithm(%d) = %s, want %s", tc.size, got, tc.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := New()
	data := []byte(strings.Repeat("hello oneshim edge pipeline ", 50))
	for _, algo := range []Algorithm{Gzip, Zstd, Lz4} {
		compressed, err := c.Compress(data, algo)
		if err != nil {
			t.Fatalf("%s compress: %v", algo, err)
		}
		decompressed, err := c.Decompress(compressed, algo)
		if err != nil {
			t.Fatalf("%s decompress: %v", algo, err)
		}
		if !bytes.Equal(data, decompressed) {
			t.Errorf("%s round trip mismatch", algo)
		}
	}
}

func TestEmptyRoundTrip(t *testing.T) {
	c := New()
	for _, algo := range []Algorithm{Gzip, Zstd, Lz4} {
		compressed, err := c.Compress(nil, algo)
		if err != nil {
			t.Fatalf("%s compress empty: %v", algo, err)
		}
		decompressed, err := c.Decompress(compressed, algo)
		if err != nil {
			t.Fatalf("%s decompress empty: %v", algo, err)
		}
		if len(decompressed) != 0 {
			t.Errorf("%s: expected empty round trip, got %d bytes", algo, len(decompressed))
		}
	}
}

func TestCrossAlgorithmDecodeFails(t *testing.T) {
	c := New()
	data := []byte("cross algorithm test data for the edge pipeline")
	gz, err := c.Compress(data, Gzip)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decompress(gz, Zstd); err == nil {
		t.Error("expected error decompressing gzip data as zstd")
	}

	lz, err := c.Compress(data, Lz4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decompress(lz, Gzip); err == nil {
		t.Error("expected error decompressing lz4 data as gzip")
	}
}

func TestCorruptedDataFails(t *testing.T) {
	c := New()
	corrupted := []byte{0xFF, 0xFE, 0x00, 0x01, 0x02, 0x03}
	for _, algo := range []Algorithm{Gzip, Zstd, Lz4} {
		if _, err := c.Decompress(corrupted, algo); err == nil {
			t.Errorf("%s: expected error on corrupted input", algo)
		}
	}
}

func TestCompressAutoMatchesSelectAlgorithm(t *testing.T) {
	c := New()
	data := bytes.Repeat([]byte{0}, 50_000)
	compressed, algo, err := c.CompressAuto(data)
	if err != nil {
		t.Fatal(err)
	}
	if algo != Zstd {
		t.Errorf("expected Zstd for 50000 bytes, got %s", algo)
	}
	decompressed, err := c.Decompress(compressed, algo)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Error("round trip mismatch for compress_auto")
	}
}

// S1 — Auto compression selection (spec §8).
func TestScenarioS1(t *testing.T) {
	c := New()
	data := bytes.Repeat([]byte{'A'}, 500)
	compressed, algo, err := c.CompressAuto(data)
	if err != nil {
		t.Fatal(err)
	}
	if algo != Lz4 {
		t.Fatalf("S1: expected Lz4, got %s", algo)
	}
	decompressed, err := c.Decompress(compressed, algo)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Error("S1: round trip mismatch")
	}
}

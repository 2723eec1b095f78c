package capture

import (
	"image"
	"image/color"
	"testing"
)

func makeTestImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFastResizeProducesTargetDimensions(t *testing.T) {
	cache := NewThumbnailCache()
	img := makeTestImage(1920, 1080, color.RGBA{100, 150, 200, 255})

	thumb, err := cache.FastResize(img, 480, 270)
	if err != nil {
		t.Fatal(err)
	}
	if thumb.Bounds().Dx() != 480 || thumb.Bounds().Dy() != 270 {
		t.Fatalf("expected 480x270, got %dx%d", thumb.Bounds().Dx(), thumb.Bounds().Dy())
	}
}

func TestFastResizeSameSizeShortCircuits(t *testing.T) {
	cache := NewThumbnailCache()
	img := makeTestImage(100, 100, color.RGBA{1, 2, 3, 255})

	out, err := cache.FastResize(img, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Fatal("expected identity-sized output")
	}
}

func TestFastResizeCacheHit(t *testing.T) {
	cache := NewThumbnailCache()
	img := makeTestImage(640, 480, color.RGBA{10, 20, 30, 255})

	if _, err := cache.FastResize(img, 320, 240); err != nil {
		t.Fatal(err)
	}
	stats := cache.CacheStats()
	if stats.Size != 1 {
		t.Fatalf("expected 1 cached entry, got %d", stats.Size)
	}

	if _, err := cache.FastResize(img, 320, 240); err != nil {
		t.Fatal(err)
	}
	stats = cache.CacheStats()
	if stats.Size != 1 {
		t.Fatalf("expected cache hit to not grow cache, got size %d", stats.Size)
	}
}

func TestFastResizeRejectsZeroDimensions(t *testing.T) {
	cache := NewThumbnailCache()
	img := makeTestImage(100, 100, color.RGBA{1, 1, 1, 255})
	if _, err := cache.FastResize(img, 0, 50); err == nil {
		t.Fatal("expected error for zero target width")
	}
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	cache := NewThumbnailCache()
	cache.capacity = 2

	img1 := makeTestImage(10, 10, color.RGBA{1, 0, 0, 255})
	img2 := makeTestImage(10, 10, color.RGBA{0, 1, 0, 255})
	img3 := makeTestImage(10, 10, color.RGBA{0, 0, 1, 255})

	if _, err := cache.FastResize(img1, 5, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.FastResize(img2, 5, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.FastResize(img3, 5, 5); err != nil {
		t.Fatal(err)
	}

	if cache.CacheStats().Size != 2 {
		t.Fatalf("expected capacity-bounded cache size 2, got %d", cache.CacheStats().Size)
	}
	if _, ok := cache.index[cacheKey{hash: computeImageHash(img1), w: 5, h: 5}]; ok {
		t.Fatal("expected the oldest entry (img1) to be evicted")
	}
}

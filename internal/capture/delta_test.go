package capture

import (
	"image"
	"image/color"
	"testing"
)

func TestComputeDeltaDetectsChange(t *testing.T) {
	img1 := makeTestImage(100, 100, color.RGBA{100, 150, 200, 255})
	img2 := makeTestImage(100, 100, color.RGBA{200, 50, 50, 255})

	region := ComputeDelta(img1, img2)
	if region == nil {
		t.Fatal("expected delta region for fully different images")
	}
	if region.ChangedRatio <= 0 {
		t.Fatalf("expected positive changed ratio, got %v", region.ChangedRatio)
	}
}

func TestComputeDeltaNoChange(t *testing.T) {
	img1 := makeTestImage(100, 100, color.RGBA{10, 20, 30, 255})
	img2 := makeTestImage(100, 100, color.RGBA{10, 20, 30, 255})

	if region := ComputeDelta(img1, img2); region != nil {
		t.Fatalf("expected nil region for identical images, got %+v", region)
	}
}

func TestComputeDeltaSizeMismatchIsFullChange(t *testing.T) {
	img1 := makeTestImage(100, 100, color.RGBA{1, 1, 1, 255})
	img2 := makeTestImage(200, 200, color.RGBA{1, 1, 1, 255})

	region := ComputeDelta(img1, img2)
	if region == nil || region.ChangedRatio != 1.0 {
		t.Fatalf("expected full-change region for size mismatch, got %+v", region)
	}
}

func TestComputeDeltaPartialChange(t *testing.T) {
	img1 := makeTestImage(100, 100, color.RGBA{0, 0, 0, 255})
	img2 := image.NewRGBA(img1.Bounds())
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 20 && y < 20 {
				img2.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img2.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}

	region := ComputeDelta(img1, img2)
	if region == nil {
		t.Fatal("expected a delta region")
	}
	if region.ChangedRatio >= 1.0 {
		t.Fatalf("expected partial change ratio < 1.0, got %v", region.ChangedRatio)
	}
}

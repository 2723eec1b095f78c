package capture

import "image"

// DeltaRegion is the bounding box of changed pixels between two frames,
// plus the fraction of sampled pixels that changed.
type DeltaRegion struct {
	X, Y, W, H   int
	ChangedRatio float64
}

// deltaSampleStride skips pixels during comparison to keep delta
// computation cheap on large frames; every stride'th pixel in each
// dimension is sampled.
const deltaSampleStride = 4

// ComputeDelta compares prev and cur and returns the bounding box of
// changed regions, or nil if no change was detected (or the frames
// differ in size, treated as a full change covering the whole frame).
func ComputeDelta(prev, cur image.Image) *DeltaRegion {
	pb, cb := prev.Bounds(), cur.Bounds()
	if pb.Dx() != cb.Dx() || pb.Dy() != cb.Dy() {
		return &DeltaRegion{X: cb.Min.X, Y: cb.Min.Y, W: cb.Dx(), H: cb.Dy(), ChangedRatio: 1.0}
	}

	minX, minY := cb.Max.X, cb.Max.Y
	maxX, maxY := cb.Min.X, cb.Min.Y
	var sampled, changed int

	for y := cb.Min.Y; y < cb.Max.Y; y += deltaSampleStride {
		for x := cb.Min.X; x < cb.Max.X; x += deltaSampleStride {
			sampled++
			pr, pg, pb2, pa := prev.At(x-cb.Min.X+pb.Min.X, y-cb.Min.Y+pb.Min.Y).RGBA()
			cr, cg, cb2, ca := cur.At(x, y).RGBA()
			if pr != cr || pg != cg || pb2 != cb2 || pa != ca {
				changed++
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if changed == 0 {
		return nil
	}

	ratio := float64(changed) / float64(sampled)
	return &DeltaRegion{
		X: minX, Y: minY,
		W: maxX - minX + deltaSampleStride,
		H: maxY - minY + deltaSampleStride,
		ChangedRatio: ratio,
	}
}

package capture

import (
	"container/list"
	"image"
	"image/draw"
	"log/slog"
	"sync"

	xdraw "golang.org/x/image/draw"

	"oneshim-edge/internal/agenterr"
)

// cacheCapacity bounds the thumbnail LRU to 100 entries.
const cacheCapacity = 100

const fnvOffsetBasis uint64 = 0xcbf29ce484222325
const fnvPrime uint64 = 0x100000001b3

// computeImageHash is an FNV-1a hash over the image's dimensions plus an
// 8x8 grid of sampled pixels — cheap enough to run per-frame without
// hashing every byte.
func computeImageHash(img image.Image) uint64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	hash := fnvOffsetBasis
	hash ^= uint64(w)
	hash *= fnvPrime
	hash ^= uint64(h)
	hash *= fnvPrime

	stepX := w / 8
	if stepX < 1 {
		stepX = 1
	}
	stepY := h / 8
	if stepY < 1 {
		stepY = 1
	}

	for sy := 0; sy < 8; sy++ {
		y := sy * stepY
		if y > h-1 {
			y = h - 1
		}
		for sx := 0; sx < 8; sx++ {
			x := sx * stepX
			if x > w-1 {
				x = w - 1
			}
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pixel := uint64(r>>8) | uint64(g>>8)<<8 | uint64(bl>>8)<<16 | uint64(a>>8)<<24
			hash ^= pixel
			hash *= fnvPrime
		}
	}
	return hash
}

type cacheKey struct {
	hash uint64
	w, h int
}

type lruEntry struct {
	key cacheKey
	img *image.RGBA
}

// ThumbnailCache resizes images via bilinear convolution, caching the
// result keyed by (source hash, target width, target height) so repeated
// identical captures skip the resize entirely.
type ThumbnailCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[cacheKey]*list.Element
}

// NewThumbnailCache builds a cache with the standard 100-entry capacity.
func NewThumbnailCache() *ThumbnailCache {
	return &ThumbnailCache{
		capacity: cacheCapacity,
		ll:       list.New(),
		index:    make(map[cacheKey]*list.Element),
	}
}

// FastResize returns img resized to width x height, reusing a cached
// result when available.
func (c *ThumbnailCache) FastResize(img image.Image, width, height int) (*image.RGBA, error) {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	if srcW == width && srcH == height {
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out, nil
	}
	if srcW == 0 || srcH == 0 {
		return nil, agenterr.New(agenterr.Internal, "source image has zero dimension")
	}
	if width == 0 || height == 0 {
		return nil, agenterr.New(agenterr.Internal, "target dimension is zero")
	}

	hash := computeImageHash(img)
	key := cacheKey{hash: hash, w: width, h: height}

	if cached, ok := c.get(key); ok {
		slog.Debug("thumbnail cache hit", "hash", hash, "w", width, "h", height)
		return cached, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	c.put(key, dst)
	slog.Debug("thumbnail generated", "hash", hash, "w", width, "h", height)
	return dst, nil
}

func (c *ThumbnailCache) get(key cacheKey) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).img, true
}

func (c *ThumbnailCache) put(key cacheKey, img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*lruEntry).img = img
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key, img: img})
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(*lruEntry).key)
		}
	}
}

// Stats reports current cache occupancy.
type Stats struct {
	Size     int
	Capacity int
}

// CacheStats returns the cache's current occupancy.
func (c *ThumbnailCache) CacheStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: c.ll.Len(), Capacity: c.capacity}
}

// Package detect locates face regions in grayscale frames.
// Every backend applies the same minimum-size gate and primary-region
// ranking, so enrollment and verification see identical detections
// regardless of which detector produced them.
package detect

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Primary region policies.
const (
	PrimaryLargest = "largest"
	PrimaryFirst   = "first"
)

// DefaultMinSize is the smallest accepted face edge in pixels.
const DefaultMinSize = 100

// Detector finds candidate face regions in a grayscale image.
// Regions are returned ranked, primary first. An image without faces
// yields an empty slice.
type Detector interface {
	Detect(img *image.Gray) []image.Rectangle
	Close() error
}

// Options holds the gating and ranking applied to raw detections.
type Options struct {
	MinSize int
	Primary string
}

// DefaultOptions returns the default gate (100x100) and ranking (largest).
func DefaultOptions() Options {
	return Options{MinSize: DefaultMinSize, Primary: PrimaryLargest}
}

// Filter drops regions smaller than opts.MinSize in either dimension and
// ranks the rest according to opts.Primary. The input slice is not modified.
func Filter(rects []image.Rectangle, opts Options) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rects))
	for _, r := range rects {
		if r.Dx() < opts.MinSize || r.Dy() < opts.MinSize {
			continue
		}
		out = append(out, r)
	}

	if opts.Primary != PrimaryFirst {
		sort.SliceStable(out, func(i, j int) bool {
			return area(out[i]) > area(out[j])
		})
	}
	return out
}

// Primary returns the first ranked region.
func Primary(rects []image.Rectangle) (image.Rectangle, bool) {
	if len(rects) == 0 {
		return image.Rectangle{}, false
	}
	return rects[0], true
}

// Grayscale converts img to 8-bit grayscale. A *image.Gray input is returned as is.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// Crop returns a copy of the part of img inside r, clipped to the image bounds.
// The result is re-based at the origin.
func Crop(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return image.NewGray(image.Rect(0, 0, 0, 0))
	}
	return Grayscale(imaging.Crop(img, r))
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

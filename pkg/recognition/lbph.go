// Package recognition builds and evaluates per-identity face classifiers.
// A Model is a local binary pattern histogram (LBPH) classifier trained
// from one identity's samples; it lives for a single verification attempt.
package recognition

import (
	"errors"
	"image"
	"math"
)

// PositiveLabel is the single class every training face is labelled with.
const PositiveLabel = 1

// UnknownLabel is returned by Predict on a model without training data.
const UnknownLabel = -1

const (
	epsilon    = 1.1920929e-07         // float32 machine epsilon
	dblEpsilon = 2.220446049250313e-16 // float64 machine epsilon
)

// ErrEmptyTrainingSet is returned when Train receives no faces.
var ErrEmptyTrainingSet = errors.New("empty training set")

// ErrLabelMismatch is returned when faces and labels differ in length.
var ErrLabelMismatch = errors.New("faces and labels differ in length")

// Options configures the LBP operator and the spatial grid.
type Options struct {
	Radius    int
	Neighbors int
	GridX     int
	GridY     int
}

// DefaultOptions returns radius 1, 8 neighbours and an 8x8 grid.
func DefaultOptions() Options {
	return Options{Radius: 1, Neighbors: 8, GridX: 8, GridY: 8}
}

// withDefaults replaces non-positive fields with their DefaultOptions value.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Radius <= 0 {
		o.Radius = d.Radius
	}
	if o.Neighbors <= 0 {
		o.Neighbors = d.Neighbors
	}
	if o.GridX <= 0 {
		o.GridX = d.GridX
	}
	if o.GridY <= 0 {
		o.GridY = d.GridY
	}
	return o
}

// Model is a trained LBPH classifier. It is immutable after Train returns.
type Model struct {
	opts       Options
	histograms [][]float64
	labels     []int
}

// Train computes one spatial histogram per face. Training is deterministic:
// the same faces in the same order always yield the same model. Zero fields
// of opts take their default.
func Train(faces []*image.Gray, labels []int, opts Options) (*Model, error) {
	if len(faces) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(faces) != len(labels) {
		return nil, ErrLabelMismatch
	}

	m := &Model{
		opts:       opts.withDefaults(),
		histograms: make([][]float64, len(faces)),
		labels:     append([]int(nil), labels...),
	}
	for i, f := range faces {
		m.histograms[i] = m.describe(f)
	}
	return m, nil
}

// Size returns the number of training faces.
func (m *Model) Size() int {
	return len(m.histograms)
}

// Predict returns the label of the nearest training face and its distance.
// Lower distance means more similar.
func (m *Model) Predict(face *image.Gray) (int, float64) {
	query := m.describe(face)

	label := UnknownLabel
	best := math.MaxFloat64
	for i, h := range m.histograms {
		d := chiSquareAlt(h, query)
		if d < best {
			best = d
			label = m.labels[i]
		}
	}
	return label, best
}

// Accept reports whether a prediction is a positive match under threshold.
// Lowering threshold can only turn accepted predictions into rejected ones.
func Accept(label int, distance, threshold float64) bool {
	return label == PositiveLabel && distance < threshold
}

func (m *Model) describe(face *image.Gray) []float64 {
	return spatialHistogram(elbp(face, m.opts.Radius, m.opts.Neighbors), 1<<uint(m.opts.Neighbors), m.opts.GridX, m.opts.GridY)
}

// codes is a dense row-major matrix of LBP codes.
type codes struct {
	w, h int
	v    []int
}

// elbp computes the extended (circular) local binary pattern of src using
// bilinear interpolation between sampling points. The result is smaller
// than src by radius on every side.
func elbp(src *image.Gray, radius, neighbors int) codes {
	b := src.Bounds()
	w := b.Dx() - 2*radius
	h := b.Dy() - 2*radius
	if w <= 0 || h <= 0 {
		return codes{}
	}
	out := codes{w: w, h: h, v: make([]int, w*h)}

	at := func(x, y int) float32 {
		return float32(src.Pix[y*src.Stride+x])
	}

	for n := 0; n < neighbors; n++ {
		angle := 2 * math.Pi * float64(n) / float64(neighbors)
		x := float32(float64(radius) * math.Cos(angle))
		y := float32(-float64(radius) * math.Sin(angle))

		fx := int(math.Floor(float64(x)))
		fy := int(math.Floor(float64(y)))
		cx := int(math.Ceil(float64(x)))
		cy := int(math.Ceil(float64(y)))

		ty := y - float32(fy)
		tx := x - float32(fx)

		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		for i := radius; i < b.Dy()-radius; i++ {
			for j := radius; j < b.Dx()-radius; j++ {
				t := w1*at(j+fx, i+fy) + w2*at(j+cx, i+fy) + w3*at(j+fx, i+cy) + w4*at(j+cx, i+cy)
				c := at(j, i)
				if t > c || float32(math.Abs(float64(t-c))) < epsilon {
					out.v[(i-radius)*w+(j-radius)] += 1 << uint(n)
				}
			}
		}
	}
	return out
}

// spatialHistogram splits the code matrix into gridX*gridY cells and
// concatenates one histogram per cell, each normalised by the cell's pixel count.
func spatialHistogram(c codes, bins, gridX, gridY int) []float64 {
	hist := make([]float64, gridX*gridY*bins)
	if c.w == 0 || c.h == 0 {
		return hist
	}

	cellW := c.w / gridX
	cellH := c.h / gridY
	if cellW == 0 || cellH == 0 {
		return hist
	}
	total := float64(cellW * cellH)

	cell := 0
	for gy := 0; gy < gridY; gy++ {
		for gx := 0; gx < gridX; gx++ {
			offset := cell * bins
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				row := c.v[y*c.w : (y+1)*c.w]
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					hist[offset+row[x]]++
				}
			}
			for k := offset; k < offset+bins; k++ {
				hist[k] /= total
			}
			cell++
		}
	}
	return hist
}

// chiSquareAlt is the alternative chi-square distance 2*sum((a-b)^2/(a+b)).
func chiSquareAlt(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		s := a[i] + b[i]
		if math.Abs(s) > dblEpsilon {
			sum += d * d / s
		}
	}
	return 2 * sum
}

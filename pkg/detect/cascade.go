package detect

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"gocv.io/x/gocv"
)

// ErrCascadeNotFound is returned when no cascade file could be loaded.
var ErrCascadeNotFound = errors.New("face cascade not found")

// CascadeFallbacks are the locations searched when the configured cascade
// path cannot be loaded.
var CascadeFallbacks = []string{
	"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/share/opencv/haarcascades/haarcascade_frontalface_default.xml",
	"haarcascade_frontalface_default.xml",
}

// CascadeOptions configures the Haar cascade scan.
type CascadeOptions struct {
	Options
	ScaleFactor  float64
	MinNeighbors int
}

// DefaultCascadeOptions returns scale 1.1, 5 neighbours and the default gate.
func DefaultCascadeOptions() CascadeOptions {
	return CascadeOptions{
		Options:      DefaultOptions(),
		ScaleFactor:  1.1,
		MinNeighbors: 5,
	}
}

// CascadeDetector detects faces with an OpenCV Haar cascade. The cascade is
// loaded once and then only read.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	opts       CascadeOptions
	path       string
}

// NewCascadeDetector loads the cascade at path, falling back to
// CascadeFallbacks when path is empty or unreadable.
func NewCascadeDetector(path string, opts CascadeOptions) (*CascadeDetector, error) {
	candidates := make([]string, 0, len(CascadeFallbacks)+1)
	if path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, CascadeFallbacks...)

	log := logging.Component("detect")
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		classifier := gocv.NewCascadeClassifier()
		if !classifier.Load(candidate) {
			_ = classifier.Close()
			log.WithField("path", candidate).Warn("Failed to load face cascade")
			continue
		}
		if candidate != path {
			log.WithField("path", candidate).Info("Using fallback face cascade")
		}
		return &CascadeDetector{classifier: classifier, opts: opts, path: candidate}, nil
	}

	return nil, fmt.Errorf("%w: tried %v", ErrCascadeNotFound, candidates)
}

// Path returns the cascade file in use.
func (d *CascadeDetector) Path() string {
	return d.path
}

// Detect implements Detector.
func (d *CascadeDetector) Detect(img *image.Gray) []image.Rectangle {
	if img == nil || img.Bounds().Empty() {
		return []image.Rectangle{}
	}

	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		logging.Component("detect").WithError(err).Debug("Frame conversion failed")
		return []image.Rectangle{}
	}
	defer mat.Close()

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(
		mat,
		d.opts.ScaleFactor,
		d.opts.MinNeighbors,
		0,
		image.Pt(d.opts.MinSize, d.opts.MinSize),
		image.Pt(0, 0),
	)
	d.mu.Unlock()

	return Filter(rects, d.opts.Options)
}

// Close releases the cascade.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

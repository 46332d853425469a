package detect

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/disintegration/imaging"
)

// FaceEngine abstracts the go-face recognizer for testing.
type FaceEngine interface {
	Recognize(imgData []byte) ([]face.Face, error)
	Close()
}

// DlibDetector detects faces with dlib's HOG detector via go-face.
// The model directory must contain the files go-face expects
// (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat).
type DlibDetector struct {
	mu     sync.Mutex
	engine FaceEngine
	opts   Options
}

// NewDlibDetector loads the dlib models from modelPath.
func NewDlibDetector(modelPath string, opts Options) (*DlibDetector, error) {
	logging.Component("detect").WithField("models", modelPath).Info("Loading dlib face models")

	rec, err := face.NewRecognizer(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models: %w", err)
	}
	return NewDlibDetectorWithEngine(rec, opts), nil
}

// NewDlibDetectorWithEngine wraps an already loaded engine.
func NewDlibDetectorWithEngine(engine FaceEngine, opts Options) *DlibDetector {
	return &DlibDetector{engine: engine, opts: opts}
}

// Detect implements Detector.
func (d *DlibDetector) Detect(img *image.Gray) []image.Rectangle {
	if img == nil || img.Bounds().Empty() {
		return []image.Rectangle{}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		logging.Component("detect").WithError(err).Debug("Frame encoding failed")
		return []image.Rectangle{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine == nil {
		return []image.Rectangle{}
	}

	faces, err := d.engine.Recognize(buf.Bytes())
	if err != nil {
		logging.Component("detect").WithError(err).Debug("dlib detection failed")
		return []image.Rectangle{}
	}

	origin := img.Bounds().Min
	rects := make([]image.Rectangle, 0, len(faces))
	for _, f := range faces {
		rects = append(rects, f.Rectangle.Add(origin))
	}
	return Filter(rects, d.opts)
}

// Close releases the dlib models.
func (d *DlibDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine != nil {
		d.engine.Close()
		d.engine = nil
	}
	return nil
}

package recognition

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/detect"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/metrics"
	"github.com/MrCodeEU/faceattend/pkg/storage"
)

// ErrNoUsableSamples is returned when no stored sample yields a detectable
// face. The identity must re-register; retrying will not help.
var ErrNoUsableSamples = errors.New("no usable face samples, please re-register")

// SampleSource lists and decodes an identity's stored samples.
type SampleSource interface {
	Samples(group, id string) ([]storage.Sample, error)
	Load(path string) (*image.Gray, error)
}

// Trainer builds per-identity models from stored samples.
type Trainer struct {
	source   SampleSource
	detector detect.Detector
	opts     Options
	metrics  *metrics.Collector
}

// NewTrainer creates a Trainer. The detector is re-run on every stored sample.
func NewTrainer(source SampleSource, detector detect.Detector, opts Options) *Trainer {
	return &Trainer{source: source, detector: detector, opts: opts}
}

// SetMetrics attaches a metrics collector.
func (t *Trainer) SetMetrics(m *metrics.Collector) {
	t.metrics = m
}

// Train loads every sample of (group, id), crops every face region the
// detector finds in it and fits a single-class model over the crops.
// Samples that cannot be decoded or contain no face are skipped.
func (t *Trainer) Train(group, id string) (*Model, error) {
	start := time.Now()
	log := logging.Component("recognition").WithFields(logging.Fields{"group": group, "identity": id})

	samples, err := t.source.Samples(group, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}

	var faces []*image.Gray
	var labels []int
	for _, s := range samples {
		img, err := t.source.Load(s.Path)
		if err != nil {
			log.WithError(err).WithField("sample", s.Path).Warn("Skipping unreadable sample")
			continue
		}
		for _, r := range t.detector.Detect(img) {
			faces = append(faces, detect.Crop(img, r))
			labels = append(labels, PositiveLabel)
		}
	}

	if len(faces) == 0 {
		log.WithField("samples", len(samples)).Warn("No usable faces in stored samples")
		return nil, ErrNoUsableSamples
	}

	model, err := Train(faces, labels, t.opts)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	t.metrics.TrainingObserved(elapsed, len(faces))
	log.WithFields(logging.Fields{
		"samples":  len(samples),
		"faces":    len(faces),
		"duration": elapsed.Round(time.Millisecond),
	}).Debug("Trained classifier")
	return model, nil
}

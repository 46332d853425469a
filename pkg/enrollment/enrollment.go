// Package enrollment captures reference face samples for an identity from a
// live camera.
//
// Enrollment is deliberately not transactional: if the operator aborts
// before the target is reached, the samples already written stay on disk
// and the Result reports the shortfall.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/detect"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/metrics"
	"github.com/MrCodeEU/faceattend/pkg/preview"
	"github.com/MrCodeEU/faceattend/pkg/storage"
)

// ErrInvalidTarget is returned for a non-positive target count.
var ErrInvalidTarget = errors.New("target count must be positive")

// SampleWriter persists one face crop for an identity.
type SampleWriter interface {
	Save(identity storage.Identity, face *image.Gray) (string, error)
}

// Options configures the capture loop.
type Options struct {
	Device         string
	Width, Height  int
	FrameDelay     time.Duration
	ReadRetryDelay time.Duration
	AbortKey       int
}

// DefaultOptions returns a 100ms frame delay and 'q' as abort key.
func DefaultOptions() Options {
	return Options{
		Device:         "0",
		FrameDelay:     100 * time.Millisecond,
		ReadRetryDelay: 10 * time.Millisecond,
		AbortKey:       'q',
	}
}

// Result reports what one enrollment call captured.
type Result struct {
	Captured int
	Target   int
	Paths    []string
	Aborted  bool
}

// Complete reports whether the full target was captured.
func (r Result) Complete() bool {
	return r.Target > 0 && r.Captured == r.Target
}

// Pipeline drives the enrollment capture loop.
type Pipeline struct {
	camera   camera.Camera
	detector detect.Detector
	store    SampleWriter
	display  preview.Display
	opts     Options
	metrics  *metrics.Collector
}

// NewPipeline creates an enrollment pipeline. A nil display disables feedback.
func NewPipeline(cam camera.Camera, detector detect.Detector, store SampleWriter, display preview.Display, opts Options) *Pipeline {
	if display == nil {
		display = preview.Nop{}
	}
	return &Pipeline{
		camera:   cam,
		detector: detector,
		store:    store,
		display:  display,
		opts:     opts,
	}
}

// SetMetrics attaches a metrics collector.
func (p *Pipeline) SetMetrics(m *metrics.Collector) {
	p.metrics = m
}

// Enroll captures up to target samples of identity. It returns when the
// target is reached, the abort key is pressed or ctx is cancelled. A partial
// capture is not an error; check Result.Complete.
func (p *Pipeline) Enroll(ctx context.Context, identity storage.Identity, target int) (Result, error) {
	result := Result{Target: target}
	if target <= 0 {
		return result, ErrInvalidTarget
	}

	log := logging.Session("enrollment").WithFields(logging.Fields{
		"identity": identity.ID,
		"group":    identity.Group,
		"target":   target,
	})

	if err := p.camera.Open(p.opts.Device); err != nil {
		p.metrics.EnrollmentFinished("error")
		if !errors.Is(err, camera.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", camera.ErrDeviceUnavailable, err)
		}
		log.WithError(err).Error("Cannot open camera")
		return result, err
	}
	defer func() {
		if err := p.camera.Close(); err != nil {
			log.WithError(err).Warn("Failed to release camera")
		}
	}()

	if p.opts.Width > 0 && p.opts.Height > 0 {
		if err := p.camera.SetResolution(p.opts.Width, p.opts.Height); err != nil {
			log.WithError(err).Debug("Camera rejected resolution")
		}
	}

	if err := p.display.Open(fmt.Sprintf("Register %s - look at camera", identity.ID)); err != nil {
		p.metrics.EnrollmentFinished("error")
		return result, fmt.Errorf("failed to open preview: %w", err)
	}
	defer func() {
		if err := p.display.Close(); err != nil {
			log.WithError(err).Debug("Failed to close preview")
		}
	}()

	log.Info("Enrollment started")

	for result.Captured < target {
		if ctx.Err() != nil {
			result.Aborted = true
			break
		}

		frame, err := p.camera.Capture()
		if err != nil {
			p.metrics.FrameSkipped(metrics.LoopEnrollment)
			log.WithError(err).Debug("Skipping frame")
			if key := p.display.PollKey(p.opts.ReadRetryDelay); key == p.opts.AbortKey {
				result.Aborted = true
				break
			}
			continue
		}

		gray := detect.Grayscale(frame.Image)
		rects := p.detector.Detect(gray)
		p.metrics.FrameProcessed(metrics.LoopEnrollment)

		overlay := preview.Overlay{Total: target}
		if primary, ok := detect.Primary(rects); ok {
			path, err := p.store.Save(identity, detect.Crop(gray, primary))
			if err != nil {
				p.metrics.EnrollmentFinished("error")
				log.WithError(err).Error("Failed to store sample")
				return result, fmt.Errorf("failed to store sample: %w", err)
			}
			result.Paths = append(result.Paths, path)
			result.Captured++
			p.metrics.SampleCaptured()
			overlay.Regions = []preview.Region{{Rect: primary, Matched: true}}
			log.WithField("captured", result.Captured).Debug("Sample captured")
		}
		overlay.Progress = result.Captured

		if err := p.display.Show(frame.Image, overlay); err != nil {
			log.WithError(err).Debug("Preview update failed")
		}

		if key := p.display.PollKey(p.opts.FrameDelay); key == p.opts.AbortKey {
			result.Aborted = result.Captured < target
			break
		}
	}

	if result.Complete() {
		p.metrics.EnrollmentFinished("complete")
		log.WithField("captured", result.Captured).Info("Enrollment complete")
	} else {
		p.metrics.EnrollmentFinished("partial")
		log.WithField("captured", result.Captured).Warn("Enrollment incomplete, captured samples are kept")
	}
	return result, nil
}

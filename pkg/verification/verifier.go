// Package verification decides from a live camera whether the presented
// face matches a claimed identity.
//
// Each attempt trains a fresh classifier from the identity's stored samples,
// scores every detected face region per frame and only accepts after the
// first positive frame has been followed by a full confirmation window.
package verification

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/detect"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/metrics"
	"github.com/MrCodeEU/faceattend/pkg/preview"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/disintegration/imaging"
)

// ErrNotEnrolled is returned when the identity has no stored samples.
var ErrNotEnrolled = errors.New("identity is not enrolled")

// SampleCounter reports how many samples an identity has.
type SampleCounter interface {
	Count(group, id string) (int, error)
}

// ModelTrainer builds a classifier for one identity.
type ModelTrainer interface {
	Train(group, id string) (*recognition.Model, error)
}

// Options configures the verification loop.
type Options struct {
	Device         string
	Width, Height  int
	Threshold      float64
	Window         time.Duration
	Policy         Policy
	FrameDelay     time.Duration
	ReadRetryDelay time.Duration
	Timeout        time.Duration // 0 disables
	AbortKey       int
	SaveEvidence   bool
	EvidenceDir    string
}

// DefaultOptions returns threshold 50, a sticky 3s window and 'q' as abort key.
func DefaultOptions() Options {
	return Options{
		Device:         "0",
		Threshold:      50,
		Window:         3 * time.Second,
		Policy:         PolicySticky,
		FrameDelay:     time.Millisecond,
		ReadRetryDelay: 10 * time.Millisecond,
		AbortKey:       'q',
	}
}

// Decision is the immutable outcome of one verification attempt.
type Decision struct {
	Identity storage.Identity
	Matched  bool
	State    State
	// Confidence is the distance of the best accepted region on the evidence
	// frame (lower is better). Zero unless Matched.
	Confidence   float64
	Evidence     image.Image
	EvidencePath string
	Frames       int
	Duration     time.Duration
}

// Verifier runs verification attempts.
type Verifier struct {
	camera   camera.Camera
	detector detect.Detector
	trainer  ModelTrainer
	samples  SampleCounter
	display  preview.Display
	opts     Options
	metrics  *metrics.Collector
	now      func() time.Time
}

// NewVerifier creates a Verifier. A nil display disables feedback.
func NewVerifier(cam camera.Camera, detector detect.Detector, trainer ModelTrainer, samples SampleCounter, display preview.Display, opts Options) *Verifier {
	if display == nil {
		display = preview.Nop{}
	}
	return &Verifier{
		camera:   cam,
		detector: detector,
		trainer:  trainer,
		samples:  samples,
		display:  display,
		opts:     opts,
		now:      time.Now,
	}
}

// SetMetrics attaches a metrics collector.
func (v *Verifier) SetMetrics(m *metrics.Collector) {
	v.metrics = m
}

// Verify runs one attempt for identity. An unmatched attempt (abort, timeout
// or cancellation before confirmation completes) returns a Decision with
// Matched false and a nil error. Errors are reserved for an identity without
// samples, training failures and an unavailable camera.
func (v *Verifier) Verify(ctx context.Context, identity storage.Identity) (Decision, error) {
	decision := Decision{Identity: identity, State: Rejected}
	name := identity.DisplayName
	if name == "" {
		name = identity.ID
	}

	log := logging.Session("verification").WithFields(logging.Fields{
		"identity": identity.ID,
		"group":    identity.Group,
	})

	n, err := v.samples.Count(identity.Group, identity.ID)
	if err != nil {
		v.metrics.VerificationFinished("error")
		return decision, fmt.Errorf("failed to count samples: %w", err)
	}
	if n == 0 {
		v.metrics.VerificationFinished("not_enrolled")
		log.Warn("Identity has no samples")
		return decision, ErrNotEnrolled
	}

	model, err := v.trainer.Train(identity.Group, identity.ID)
	if err != nil {
		v.metrics.VerificationFinished("error")
		log.WithError(err).Error("Training failed")
		return decision, err
	}

	if err := v.camera.Open(v.opts.Device); err != nil {
		v.metrics.VerificationFinished("error")
		if !errors.Is(err, camera.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", camera.ErrDeviceUnavailable, err)
		}
		log.WithError(err).Error("Cannot open camera")
		return decision, err
	}
	defer func() {
		if err := v.camera.Close(); err != nil {
			log.WithError(err).Warn("Failed to release camera")
		}
	}()

	if v.opts.Width > 0 && v.opts.Height > 0 {
		if err := v.camera.SetResolution(v.opts.Width, v.opts.Height); err != nil {
			log.WithError(err).Debug("Camera rejected resolution")
		}
	}

	if err := v.display.Open("Verify " + name); err != nil {
		v.metrics.VerificationFinished("error")
		return decision, fmt.Errorf("failed to open preview: %w", err)
	}
	defer func() {
		if err := v.display.Close(); err != nil {
			log.WithError(err).Debug("Failed to close preview")
		}
	}()

	tracker := NewTracker(v.opts.Window, v.opts.Policy)
	opened := v.now()
	var evidence camera.Frame
	var evidenceOverlay preview.Overlay

	log.WithFields(logging.Fields{"faces": model.Size(), "policy": v.opts.Policy}).Info("Verification started")

	for !tracker.Tick(v.now()).Terminal() {
		if ctx.Err() != nil {
			tracker.Abort()
			log.Info("Verification cancelled")
			break
		}
		if v.opts.Timeout > 0 && v.now().Sub(opened) >= v.opts.Timeout {
			tracker.Abort()
			log.Info("Verification timed out")
			break
		}

		frame, err := v.camera.Capture()
		if err != nil {
			v.metrics.FrameSkipped(metrics.LoopVerification)
			log.WithError(err).Debug("Skipping frame")
			if key := v.display.PollKey(v.opts.ReadRetryDelay); key == v.opts.AbortKey {
				tracker.Abort()
				log.Info("Verification aborted by operator")
			}
			continue
		}
		decision.Frames++

		gray := detect.Grayscale(frame.Image)
		rects := v.detector.Detect(gray)
		v.metrics.FrameProcessed(metrics.LoopVerification)

		overlay := preview.Overlay{Regions: make([]preview.Region, 0, len(rects))}
		best := -1.0
		for _, r := range rects {
			label, distance := model.Predict(detect.Crop(gray, r))
			v.metrics.DistanceObserved(distance)

			region := preview.Region{Rect: r, Label: "Unknown"}
			if recognition.Accept(label, distance, v.opts.Threshold) {
				region.Label = name
				region.Matched = true
				if best < 0 || distance < best {
					best = distance
				}
			}
			overlay.Regions = append(overlay.Regions, region)
		}

		at := v.now()
		state, started := tracker.Observe(best >= 0, at)
		if started {
			evidence = frame.Clone()
			evidenceOverlay = overlay
			decision.Confidence = best
			v.metrics.ConfirmationStarted(at.Sub(opened))
			log.WithField("distance", best).Debug("Confirmation started")
		}
		if state == Confirming {
			overlay.Status = fmt.Sprintf("Confirming %.1fs", tracker.Remaining(at).Seconds())
		}

		if err := v.display.Show(frame.Image, overlay); err != nil {
			log.WithError(err).Debug("Preview update failed")
		}

		if state.Terminal() {
			break
		}
		if key := v.display.PollKey(v.opts.FrameDelay); key == v.opts.AbortKey {
			tracker.Abort()
			log.Info("Verification aborted by operator")
		}
	}

	decision.State = tracker.State()
	decision.Matched = decision.State == Matched
	decision.Duration = v.now().Sub(opened)

	if !decision.Matched {
		decision.Confidence = 0
		v.metrics.VerificationFinished("unmatched")
		log.WithField("frames", decision.Frames).Info("Face not recognized")
		return decision, nil
	}

	decision.Evidence = evidence.Image
	if v.opts.SaveEvidence {
		path, err := v.saveEvidence(identity, evidence, evidenceOverlay)
		if err != nil {
			log.WithError(err).Warn("Failed to save evidence frame")
		} else {
			decision.EvidencePath = path
		}
	}

	v.metrics.VerificationFinished("matched")
	log.WithFields(logging.Fields{
		"distance": decision.Confidence,
		"frames":   decision.Frames,
	}).Info("Identity verified")
	return decision, nil
}

func (v *Verifier) saveEvidence(identity storage.Identity, frame camera.Frame, overlay preview.Overlay) (string, error) {
	if frame.Image == nil {
		return "", errors.New("no evidence frame")
	}
	if err := os.MkdirAll(v.opts.EvidenceDir, 0700); err != nil {
		return "", err
	}
	ts := frame.Timestamp
	if ts.IsZero() {
		ts = v.now()
	}
	path := filepath.Join(v.opts.EvidenceDir, fmt.Sprintf("%s_%s.jpg", identity.ID, ts.Format("20060102_150405")))
	if err := imaging.Save(preview.Annotate(frame.Image, overlay), path, imaging.JPEGQuality(90)); err != nil {
		return "", err
	}
	return path, nil
}

// Package attendance is the operator flow around the face engine: register
// an identity, log it in by live verification and mark attendance for a
// subject.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/config"
	"github.com/MrCodeEU/faceattend/pkg/detect"
	"github.com/MrCodeEU/faceattend/pkg/enrollment"
	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/metrics"
	"github.com/MrCodeEU/faceattend/pkg/preview"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/MrCodeEU/faceattend/pkg/verification"
)

// Enroller captures face samples for an identity.
type Enroller interface {
	Enroll(ctx context.Context, identity storage.Identity, target int) (enrollment.Result, error)
}

// Verifier decides whether the live face matches an identity.
type Verifier interface {
	Verify(ctx context.Context, identity storage.Identity) (verification.Decision, error)
}

// Registry reports whether an identity has stored samples.
type Registry interface {
	Exists(group, id string) bool
}

// Service runs the register, login and mark flows.
type Service struct {
	config   *config.Config
	enroller Enroller
	verifier Verifier
	registry Registry
	ledger   ledger.Ledger
	metrics  *metrics.Collector
	closers  []io.Closer
	now      func() time.Time
}

// NewService wires the camera, detector, sample store, classifier trainer
// and ledger described by cfg. display may be nil for headless use and m
// may be nil to disable metrics.
func NewService(cfg *config.Config, display preview.Display, m *metrics.Collector) (*Service, error) {
	policy, err := verification.ParsePolicy(cfg.Verification.ConfirmationPolicy)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	detector, err := detect.New(cfg.Detection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize face detector: %w", err)
	}

	book, err := ledger.New(cfg.Ledger)
	if err != nil {
		detector.Close()
		return nil, fmt.Errorf("failed to open attendance ledger: %w", err)
	}

	cam := camera.NewOpenCVCamera()

	pipeline := enrollment.NewPipeline(cam, detector, store, display, enrollment.Options{
		Device:         cfg.Camera.Device,
		Width:          cfg.Camera.Width,
		Height:         cfg.Camera.Height,
		FrameDelay:     cfg.Enrollment.FrameDelay,
		ReadRetryDelay: cfg.Camera.ReadRetryDelay,
		AbortKey:       cfg.AbortKeyCode(),
	})
	pipeline.SetMetrics(m)

	trainer := recognition.NewTrainer(store, detector, recognition.Options{
		Radius:    cfg.Recognition.Radius,
		Neighbors: cfg.Recognition.Neighbors,
		GridX:     cfg.Recognition.GridX,
		GridY:     cfg.Recognition.GridY,
	})
	trainer.SetMetrics(m)

	verifier := verification.NewVerifier(cam, detector, trainer, store, display, verification.Options{
		Device:         cfg.Camera.Device,
		Width:          cfg.Camera.Width,
		Height:         cfg.Camera.Height,
		Threshold:      cfg.Recognition.Threshold,
		Window:         cfg.Verification.ConfirmationWindow,
		Policy:         policy,
		FrameDelay:     cfg.Verification.FrameDelay,
		ReadRetryDelay: cfg.Camera.ReadRetryDelay,
		Timeout:        cfg.Verification.Timeout,
		AbortKey:       cfg.AbortKeyCode(),
		SaveEvidence:   cfg.Verification.SaveEvidence,
		EvidenceDir:    cfg.Verification.EvidenceDir,
	})
	verifier.SetMetrics(m)

	return &Service{
		config:   cfg,
		enroller: pipeline,
		verifier: verifier,
		registry: store,
		ledger:   book,
		metrics:  m,
		closers:  []io.Closer{detector, book},
		now:      time.Now,
	}, nil
}

// Close releases the detector and the ledger.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ledger returns the attendance ledger.
func (s *Service) Ledger() ledger.Ledger {
	return s.ledger
}

func (s *Service) normalize(identity storage.Identity) (storage.Identity, error) {
	identity.ID = strings.TrimSpace(identity.ID)
	identity.DisplayName = strings.TrimSpace(identity.DisplayName)
	if identity.ID == "" || identity.DisplayName == "" {
		return identity, NewError(ErrCodeInvalidInput, nil)
	}
	if !s.config.HasGroup(identity.Group) {
		e := NewError(ErrCodeUnknownGroup, nil)
		e.Details["group"] = identity.Group
		return identity, e
	}
	if err := storage.ValidateIdentity(identity.Group, identity.ID); err != nil {
		e := NewError(ErrCodeInvalidInput, err)
		e.Message = "Invalid ID."
		e.Details["id"] = identity.ID
		return identity, e
	}
	return identity, nil
}

// Register enrolls identity with the configured number of samples. An
// incomplete capture keeps the stored samples and returns ErrCodeIncomplete.
func (s *Service) Register(ctx context.Context, identity storage.Identity) (enrollment.Result, error) {
	identity, err := s.normalize(identity)
	if err != nil {
		return enrollment.Result{}, err
	}

	log := logging.Component("attendance").WithFields(logging.Fields{
		"identity": identity.ID,
		"group":    identity.Group,
	})

	target := s.config.Enrollment.TargetCount
	result, err := s.enroller.Enroll(ctx, identity, target)
	if err != nil {
		if errors.Is(err, camera.ErrDeviceUnavailable) {
			return result, NewError(ErrCodeCamera, err)
		}
		return result, NewError(ErrCodeStorage, err)
	}
	if !result.Complete() {
		log.WithField("captured", result.Captured).Warn("Registration incomplete")
		return result, incompleteError(result.Captured, target)
	}

	log.Infof("Registered %s", identity.DisplayName)
	return result, nil
}

// Login verifies that the live face belongs to identity.
func (s *Service) Login(ctx context.Context, identity storage.Identity) (verification.Decision, error) {
	identity, err := s.normalize(identity)
	if err != nil {
		return verification.Decision{Identity: identity}, err
	}

	if !s.registry.Exists(identity.Group, identity.ID) {
		return verification.Decision{Identity: identity}, NewError(ErrCodeNotEnrolled, verification.ErrNotEnrolled)
	}

	decision, err := s.verifier.Verify(ctx, identity)
	switch {
	case errors.Is(err, verification.ErrNotEnrolled):
		return decision, NewError(ErrCodeNotEnrolled, err)
	case errors.Is(err, recognition.ErrNoUsableSamples):
		return decision, NewError(ErrCodeNoTrainingFaces, err)
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return decision, NewError(ErrCodeCamera, err)
	case err != nil:
		return decision, err
	}

	if !decision.Matched {
		return decision, NewError(ErrCodeNotRecognized, nil)
	}

	logging.Component("attendance").WithField("identity", identity.ID).Infof("Welcome %s", identity.DisplayName)
	return decision, nil
}

// Mark appends an attendance row for identity and subject.
func (s *Service) Mark(identity storage.Identity, subject string) (ledger.Entry, error) {
	identity, err := s.normalize(identity)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !s.config.HasSubject(subject) {
		e := NewError(ErrCodeUnknownSubject, nil)
		e.Details["subject"] = subject
		return ledger.Entry{}, e
	}

	entry := ledger.Entry{
		ID:        identity.ID,
		Name:      identity.DisplayName,
		Group:     identity.Group,
		Subject:   subject,
		Timestamp: s.now(),
	}
	if err := s.ledger.Append(entry); err != nil {
		return entry, NewError(ErrCodeLedger, err)
	}

	s.metrics.AttendanceRecorded(subject)
	logging.Component("attendance").WithFields(logging.Fields{
		"identity": identity.ID,
		"subject":  subject,
	}).Info("Attendance saved")
	return entry, nil
}

// CheckIn logs identity in and marks attendance on success. The subject is
// checked before the camera is opened.
func (s *Service) CheckIn(ctx context.Context, identity storage.Identity, subject string) (ledger.Entry, error) {
	if !s.config.HasSubject(subject) {
		e := NewError(ErrCodeUnknownSubject, nil)
		e.Details["subject"] = subject
		return ledger.Entry{}, e
	}
	if _, err := s.Login(ctx, identity); err != nil {
		return ledger.Entry{}, err
	}
	return s.Mark(identity, subject)
}

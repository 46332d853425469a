// Package metrics provides Prometheus metrics for the enrollment and
// verification engine. All recording methods are safe to call on a nil
// *Collector, which records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Loop names used as the "loop" label.
const (
	LoopEnrollment   = "enrollment"
	LoopVerification = "verification"
)

// Collector contains all faceattend metrics.
type Collector struct {
	FramesTotal         *prometheus.CounterVec
	SamplesCaptured     prometheus.Counter
	EnrollmentsTotal    *prometheus.CounterVec
	VerificationsTotal  *prometheus.CounterVec
	TrainingDuration    prometheus.Histogram
	TrainingFaces       prometheus.Gauge
	RegionDistance      prometheus.Histogram
	AttendanceMarked    *prometheus.CounterVec
	ConfirmationLatency prometheus.Histogram

	registry *prometheus.Registry
}

// NewCollector creates a Collector registered on registry.
func NewCollector(registry *prometheus.Registry) (*Collector, error) {
	c := &Collector{registry: registry}
	c.initMetrics()
	if err := registry.Register(c); err != nil {
		return nil, fmt.Errorf("failed to register faceattend metrics: %w", err)
	}
	return c, nil
}

func (c *Collector) initMetrics() {
	c.FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faceattend_frames_total",
			Help: "Frames handled by a capture loop, partitioned by loop and result.",
		},
		[]string{"loop", "result"},
	)
	c.SamplesCaptured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "faceattend_samples_captured_total",
			Help: "Face samples persisted by enrollment.",
		},
	)
	c.EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faceattend_enrollments_total",
			Help: "Enrollment attempts partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	c.VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faceattend_verifications_total",
			Help: "Verification attempts partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	c.TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faceattend_training_duration_seconds",
			Help:    "Time taken to train a per-identity classifier.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		},
	)
	c.TrainingFaces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "faceattend_training_faces",
			Help: "Number of faces used by the most recent training run.",
		},
	)
	c.RegionDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faceattend_region_distance",
			Help:    "LBPH distance of every scored face region (lower is more similar).",
			Buckets: prometheus.LinearBuckets(10, 10, 12),
		},
	)
	c.AttendanceMarked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faceattend_attendance_marked_total",
			Help: "Attendance rows written, partitioned by subject.",
		},
		[]string{"subject"},
	)
	c.ConfirmationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faceattend_confirmation_start_seconds",
			Help:    "Time from camera open to the first accepted frame.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
}

// Registry returns the registry the collector is registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// FrameProcessed records a frame that went through detection.
func (c *Collector) FrameProcessed(loop string) {
	if c == nil {
		return
	}
	c.FramesTotal.WithLabelValues(loop, "processed").Inc()
}

// FrameSkipped records a transient read failure.
func (c *Collector) FrameSkipped(loop string) {
	if c == nil {
		return
	}
	c.FramesTotal.WithLabelValues(loop, "skipped").Inc()
}

// SampleCaptured records one persisted sample.
func (c *Collector) SampleCaptured() {
	if c == nil {
		return
	}
	c.SamplesCaptured.Inc()
}

// EnrollmentFinished records an enrollment outcome ("complete", "partial", "error").
func (c *Collector) EnrollmentFinished(outcome string) {
	if c == nil {
		return
	}
	c.EnrollmentsTotal.WithLabelValues(outcome).Inc()
}

// VerificationFinished records a verification outcome
// ("matched", "unmatched", "not_enrolled", "error").
func (c *Collector) VerificationFinished(outcome string) {
	if c == nil {
		return
	}
	c.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// TrainingObserved records one training run.
func (c *Collector) TrainingObserved(d time.Duration, faces int) {
	if c == nil {
		return
	}
	c.TrainingDuration.Observe(d.Seconds())
	c.TrainingFaces.Set(float64(faces))
}

// DistanceObserved records the distance of one scored region.
func (c *Collector) DistanceObserved(distance float64) {
	if c == nil {
		return
	}
	c.RegionDistance.Observe(distance)
}

// ConfirmationStarted records how long it took to see the first accepted frame.
func (c *Collector) ConfirmationStarted(d time.Duration) {
	if c == nil {
		return
	}
	c.ConfirmationLatency.Observe(d.Seconds())
}

// AttendanceRecorded records one ledger row.
func (c *Collector) AttendanceRecorded(subject string) {
	if c == nil {
		return
	}
	c.AttendanceMarked.WithLabelValues(subject).Inc()
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.FramesTotal.Describe(ch)
	ch <- c.SamplesCaptured.Desc()
	c.EnrollmentsTotal.Describe(ch)
	c.VerificationsTotal.Describe(ch)
	ch <- c.TrainingDuration.Desc()
	ch <- c.TrainingFaces.Desc()
	ch <- c.RegionDistance.Desc()
	c.AttendanceMarked.Describe(ch)
	ch <- c.ConfirmationLatency.Desc()
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.FramesTotal.Collect(ch)
	ch <- c.SamplesCaptured
	c.EnrollmentsTotal.Collect(ch)
	c.VerificationsTotal.Collect(ch)
	ch <- c.TrainingDuration
	ch <- c.TrainingFaces
	ch <- c.RegionDistance
	c.AttendanceMarked.Collect(ch)
	ch <- c.ConfirmationLatency
}

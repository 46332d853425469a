// Package camera provides camera access and frame capture functionality.
// A Camera is an exclusively owned resource: acquired at the start of one
// capture loop and released on every exit path of that loop.
package camera

import (
	"errors"
	"image"
	"time"

	"golang.org/x/image/draw"
)

// Frame represents a single camera frame.
type Frame struct {
	Image     image.Image
	Timestamp time.Time
	Seq       int
}

// Clone returns a deep copy of the frame, safe to keep after the camera
// reuses its buffers.
func (f Frame) Clone() Frame {
	if f.Image == nil {
		return f
	}
	b := f.Image.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, f.Image, b.Min, draw.Src)
	return Frame{Image: dst, Timestamp: f.Timestamp, Seq: f.Seq}
}

// Camera defines the interface for camera operations.
type Camera interface {
	Open(device string) error
	SetResolution(width, height int) error
	Capture() (Frame, error)
	Close() error
}

// ErrDeviceUnavailable is returned when the camera device cannot be opened.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured. Capture loops treat
// it as a transient condition and move on to the next frame.
var ErrNoFrame = errors.New("failed to capture frame")

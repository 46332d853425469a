package camera

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"gocv.io/x/gocv"
)

// OpenCVCamera captures frames through an OpenCV VideoCapture. The device is
// either a numeric index ("0") or a device/file path ("/dev/video2").
type OpenCVCamera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	device  string
	seq     int
	now     func() time.Time
}

// NewOpenCVCamera creates a camera that is not yet opened.
func NewOpenCVCamera() *OpenCVCamera {
	return &OpenCVCamera{now: time.Now}
}

// Open opens the capture device.
func (c *OpenCVCamera) Open(device string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, device)
	}

	c.capture = vc
	c.mat = gocv.NewMat()
	c.device = device
	c.seq = 0
	logging.Component("camera").WithField("device", device).Debug("Camera opened")
	return nil
}

// SetResolution requests a capture resolution. Drivers may pick the closest
// supported mode.
func (c *OpenCVCamera) SetResolution(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return ErrCameraNotOpen
	}
	c.capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	c.capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	return nil
}

// Capture reads one frame. A failed or empty read returns ErrNoFrame.
func (c *OpenCVCamera) Capture() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return Frame{}, ErrCameraNotOpen
	}
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return Frame{}, ErrNoFrame
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	c.seq++
	return Frame{Image: img, Timestamp: c.now(), Seq: c.seq}, nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (c *OpenCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	_ = c.mat.Close()
	err := c.capture.Close()
	c.capture = nil
	logging.Component("camera").WithField("device", c.device).Debug("Camera released")
	return err
}

// IsOpen reports whether the device is currently held.
func (c *OpenCVCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

package verification

import (
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/detect"
	"github.com/MrCodeEU/faceattend/pkg/preview"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
)

var errAlreadyOpen = errors.New("device busy")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 9, 2, 8, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockCamera is an exclusive camera: a second Open without Close fails.
type MockCamera struct {
	mu          sync.Mutex
	open        bool
	opens       int
	OpenFunc    func(device string) error
	CaptureFunc func(seq int) (camera.Frame, error)
	seq         int
}

func (m *MockCamera) Open(device string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return errAlreadyOpen
	}
	if m.OpenFunc != nil {
		if err := m.OpenFunc(device); err != nil {
			return err
		}
	}
	m.open = true
	m.opens++
	return nil
}

func (m *MockCamera) SetResolution(width, height int) error { return nil }

func (m *MockCamera) Capture() (camera.Frame, error) {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return camera.Frame{}, camera.ErrCameraNotOpen
	}
	m.seq++
	seq := m.seq
	m.mu.Unlock()
	if m.CaptureFunc != nil {
		return m.CaptureFunc(seq)
	}
	return camera.Frame{}, camera.ErrNoFrame
}

func (m *MockCamera) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *MockCamera) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

type MockDetector struct {
	RegionsFunc func(img *image.Gray) []image.Rectangle
}

func (m *MockDetector) Detect(img *image.Gray) []image.Rectangle {
	if m.RegionsFunc == nil {
		return []image.Rectangle{}
	}
	return detect.Filter(m.RegionsFunc(img), detect.DefaultOptions())
}

func (m *MockDetector) Close() error { return nil }

type MockTrainer struct {
	TrainFunc func(group, id string) (*recognition.Model, error)
	calls     int
}

func (m *MockTrainer) Train(group, id string) (*recognition.Model, error) {
	m.calls++
	if m.TrainFunc != nil {
		return m.TrainFunc(group, id)
	}
	return nil, recognition.ErrNoUsableSamples
}

type MockCounter struct {
	CountFunc func(group, id string) (int, error)
}

func (m *MockCounter) Count(group, id string) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(group, id)
	}
	return 0, nil
}

type MockDisplay struct {
	titles   []string
	overlays []preview.Overlay
	open     bool
	waits    []time.Duration
	polls    int
	KeyFunc  func(poll int) int
}

func (m *MockDisplay) Open(title string) error {
	m.titles = append(m.titles, title)
	m.open = true
	return nil
}

func (m *MockDisplay) Show(_ image.Image, overlay preview.Overlay) error {
	m.overlays = append(m.overlays, overlay)
	return nil
}

func (m *MockDisplay) PollKey(wait time.Duration) int {
	m.waits = append(m.waits, wait)
	m.polls++
	if m.KeyFunc != nil {
		return m.KeyFunc(m.polls)
	}
	return preview.NoKey
}

func (m *MockDisplay) Close() error {
	m.open = false
	return nil
}

const (
	faceA = 0 // the enrolled face
	faceB = 1 // somebody else
)

var faceRect = image.Rect(100, 60, 220, 180)

func texture(kind int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, faceRect.Dx(), faceRect.Dy()))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			var v float64
			if kind == faceA {
				v = 128 + 60*math.Sin(float64(x)/3) + 50*math.Cos(float64(y)/5)
			} else {
				v = 128 + 100*math.Sin(float64(x*y)/40)
			}
			img.SetGray(x, y, color.Gray{Y: uint8(math.Max(0, math.Min(255, v)))})
		}
	}
	return img
}

// frameWith places the given face kind at faceRect on a flat background.
func frameWith(kind int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	for i := range img.Pix {
		img.Pix[i] = 30
	}
	face := texture(kind)
	for y := 0; y < faceRect.Dy(); y++ {
		copy(img.Pix[(faceRect.Min.Y+y)*img.Stride+faceRect.Min.X:], face.Pix[y*face.Stride:y*face.Stride+faceRect.Dx()])
	}
	return img
}

func alwaysFace(*image.Gray) []image.Rectangle { return []image.Rectangle{faceRect} }

// modelOfA trains directly on the enrolled face, so a frame of faceA
// scores distance 0.
func modelOfA(string, string) (*recognition.Model, error) {
	return recognition.Train([]*image.Gray{texture(faceA)}, []int{recognition.PositiveLabel}, recognition.DefaultOptions())
}

func enrolled(n int) *MockCounter {
	return &MockCounter{CountFunc: func(string, string) (int, error) { return n, nil }}
}

// scriptedCamera returns the frame kinds in order (repeating the last one)
// and advances clock by step on every capture.
func scriptedCamera(clock *fakeClock, step time.Duration, kinds ...int) *MockCamera {
	return &MockCamera{CaptureFunc: func(seq int) (camera.Frame, error) {
		clock.Advance(step)
		kind := kinds[len(kinds)-1]
		if seq <= len(kinds) {
			kind = kinds[seq-1]
		}
		return camera.Frame{Image: frameWith(kind), Timestamp: clock.Now(), Seq: seq}, nil
	}}
}

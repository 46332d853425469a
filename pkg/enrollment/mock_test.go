package enrollment

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/camera"
	"github.com/MrCodeEU/faceattend/pkg/detect"
	"github.com/MrCodeEU/faceattend/pkg/preview"
	"github.com/MrCodeEU/faceattend/pkg/storage"
)

var errAlreadyOpen = errors.New("device busy")

// MockCamera is an exclusive camera: a second Open without Close fails.
type MockCamera struct {
	mu          sync.Mutex
	open        bool
	opens       int
	closes      int
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
	if m.open {
		m.closes++
	}
	m.open = false
	return nil
}

func (m *MockCamera) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// MockDetector reports the regions returned by RegionsFunc, gated and
// ranked like a real backend.
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

type MockStore struct {
	SaveFunc func(identity storage.Identity, face *image.Gray) (string, error)
	saved    []*image.Gray
}

func (m *MockStore) Save(identity storage.Identity, face *image.Gray) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(identity, face)
	}
	m.saved = append(m.saved, face)
	return "sample.jpg", nil
}

// MockDisplay records what it was shown and replays scripted keys.
type MockDisplay struct {
	titles   []string
	overlays []preview.Overlay
	waits    []time.Duration
	open     bool
	KeyFunc  func(poll int) int
	polls    int
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

// faceFrame returns a 320x240 frame whose face area is marked with shade,
// so tests can tell frames apart by pixel value.
func faceFrame(seq int, shade uint8) camera.Frame {
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	for y := 60; y < 180; y++ {
		for x := 100; x < 220; x++ {
			img.SetGray(x, y, color.Gray{Y: shade + uint8((x*y)%7)})
		}
	}
	return camera.Frame{Image: img, Seq: seq, Timestamp: time.Unix(int64(seq), 0)}
}

var faceRect = image.Rect(100, 60, 220, 180)

func alwaysFace(*image.Gray) []image.Rectangle { return []image.Rectangle{faceRect} }

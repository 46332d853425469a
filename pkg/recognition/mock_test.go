package recognition

import (
	"image"

	"github.com/MrCodeEU/faceattend/pkg/storage"
)

type MockDetector struct {
	DetectFunc func(img *image.Gray) []image.Rectangle
	CloseFunc  func() error
}

func (m *MockDetector) Detect(img *image.Gray) []image.Rectangle {
	if m.DetectFunc != nil {
		return m.DetectFunc(img)
	}
	return []image.Rectangle{}
}

func (m *MockDetector) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

type MockSampleSource struct {
	SamplesFunc func(group, id string) ([]storage.Sample, error)
	LoadFunc    func(path string) (*image.Gray, error)
}

func (m *MockSampleSource) Samples(group, id string) ([]storage.Sample, error) {
	if m.SamplesFunc != nil {
		return m.SamplesFunc(group, id)
	}
	return nil, nil
}

func (m *MockSampleSource) Load(path string) (*image.Gray, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(path)
	}
	return nil, nil
}

// wholeImage detects the full image as one face.
func wholeImage(img *image.Gray) []image.Rectangle {
	return []image.Rectangle{img.Bounds()}
}

// Package preview renders operator feedback for the capture loops and
// delivers the operator's abort key. Feedback is a side channel: a loop's
// result never depends on what a Display shows.
package preview

import (
	"image"
	"image/color"
	"time"
)

// NoKey is returned by PollKey when no key was pressed.
const NoKey = -1

// Overlay colours.
var (
	ColorMatched = color.RGBA{G: 255, A: 255}
	ColorUnknown = color.RGBA{R: 255, A: 255}
	ColorText    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Region is one face box drawn on a frame.
type Region struct {
	Rect    image.Rectangle
	Label   string
	Matched bool
}

// Overlay is everything drawn on top of one frame.
type Overlay struct {
	Regions  []Region
	Status   string
	Progress int
	Total    int
}

// Display shows frames to the operator and reports key presses.
type Display interface {
	Open(title string) error
	Show(frame image.Image, overlay Overlay) error
	// PollKey waits up to wait for a key press and returns its code, or NoKey.
	PollKey(wait time.Duration) int
	Close() error
}

// Nop is a Display that shows nothing and waits for the requested delay.
type Nop struct{}

func (Nop) Open(string) error               { return nil }
func (Nop) Show(image.Image, Overlay) error { return nil }
func (Nop) Close() error                    { return nil }

func (Nop) PollKey(wait time.Duration) int {
	if wait > 0 {
		time.Sleep(wait)
	}
	return NoKey
}

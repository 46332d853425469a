package preview

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// ErrWindowNotOpen is returned by Show before Open.
var ErrWindowNotOpen = errors.New("preview window not open")

// Window is an OpenCV HighGUI window.
type Window struct {
	width, height int
	window        *gocv.Window
}

// NewWindow creates a window that will be resized to width x height on Open.
func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

// Open creates the window.
func (w *Window) Open(title string) error {
	if w.window != nil {
		return nil
	}
	w.window = gocv.NewWindow(title)
	if w.width > 0 && w.height > 0 {
		w.window.ResizeWindow(w.width, w.height)
	}
	return nil
}

// Show draws the overlay on a copy of frame and displays it.
func (w *Window) Show(frame image.Image, overlay Overlay) error {
	if w.window == nil {
		return ErrWindowNotOpen
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	for _, r := range overlay.Regions {
		c := ColorUnknown
		if r.Matched {
			c = ColorMatched
		}
		gocv.Rectangle(&mat, r.Rect, c, 2)
		if r.Label != "" {
			gocv.PutText(&mat, r.Label, image.Pt(r.Rect.Min.X, r.Rect.Min.Y-10), gocv.FontHersheySimplex, 1, c, 2)
		}
	}
	if status := statusLine(overlay); status != "" {
		gocv.PutText(&mat, status, image.Pt(10, 30), gocv.FontHersheySimplex, 1, ColorText, 2)
	}

	w.window.IMShow(mat)
	return nil
}

// PollKey waits for a key press. HighGUI needs at least 1ms to pump events.
func (w *Window) PollKey(wait time.Duration) int {
	if w.window == nil {
		return NoKey
	}
	ms := int(wait / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	key := w.window.WaitKey(ms)
	if key < 0 {
		return NoKey
	}
	return key & 0xFF
}

// Close destroys the window.
func (w *Window) Close() error {
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return err
}

func statusLine(o Overlay) string {
	if o.Status != "" {
		return o.Status
	}
	if o.Total > 0 {
		return fmt.Sprintf("Captured %d/%d", o.Progress, o.Total)
	}
	return ""
}

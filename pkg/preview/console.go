package preview

import (
	"image"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Console is a headless Display. It reports capture progress on a terminal
// progress bar; aborts arrive through context cancellation instead of keys.
type Console struct {
	out   io.Writer
	title string
	bar   *progressbar.ProgressBar
	sleep func(time.Duration)
}

// NewConsole writes progress to out (os.Stderr when nil).
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{out: out, sleep: time.Sleep}
}

// Open remembers the title; the bar is created on the first frame.
func (c *Console) Open(title string) error {
	c.title = title
	c.bar = nil
	return nil
}

// Show advances the bar to overlay.Progress, or spins while Total is unknown.
func (c *Console) Show(_ image.Image, overlay Overlay) error {
	if c.bar == nil {
		max := overlay.Total
		if max <= 0 {
			max = -1
		}
		c.bar = progressbar.NewOptions(max,
			progressbar.OptionSetWriter(c.out),
			progressbar.OptionSetDescription(c.title),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
		)
	}

	if overlay.Total > 0 {
		return c.bar.Set(overlay.Progress)
	}
	if overlay.Status != "" {
		c.bar.Describe(c.title + " - " + overlay.Status)
	}
	return c.bar.Add(1)
}

// PollKey waits for the frame delay and never reports a key.
func (c *Console) PollKey(wait time.Duration) int {
	if wait > 0 {
		c.sleep(wait)
	}
	return NoKey
}

// Close finishes the bar.
func (c *Console) Close() error {
	if c.bar == nil {
		return nil
	}
	err := c.bar.Finish()
	c.bar = nil
	_, _ = io.WriteString(c.out, "\n")
	return err
}

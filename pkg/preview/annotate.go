package preview

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotate returns an RGBA copy of frame with the overlay drawn on it.
// It is used for saved evidence frames, which outlive the preview window.
func Annotate(frame image.Image, overlay Overlay) *image.RGBA {
	b := frame.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, frame, b.Min, draw.Src)

	for _, r := range overlay.Regions {
		c := ColorUnknown
		if r.Matched {
			c = ColorMatched
		}
		strokeRect(dst, r.Rect, c, 2)
		if r.Label != "" {
			drawText(dst, r.Label, image.Pt(r.Rect.Min.X, r.Rect.Min.Y-4), c)
		}
	}
	if status := statusLine(overlay); status != "" {
		drawText(dst, status, image.Pt(b.Min.X+10, b.Min.Y+20), ColorText)
	}
	return dst
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, width int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}

func drawText(dst *image.RGBA, text string, at image.Point, c color.RGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(text)
}

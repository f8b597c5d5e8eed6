package render

import (
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/harunnryd/signbridge/pkg/protocol"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultDisplayWidth  = 640
	DefaultDisplayHeight = 480

	strokeWidth = 2

	// NoPredictions is shown when the overlay is empty.
	NoPredictions = "No predictions yet"
)

var strokeColor = color.RGBA{R: 255, A: 255}

// Overlay holds the latest predictions. Coordinates are used as-is in display
// space; no scaling from the captured frame is applied.
type Overlay struct {
	mu    sync.RWMutex
	preds []protocol.Prediction
}

func NewOverlay() *Overlay { return &Overlay{} }

// Set replaces the predictions wholesale.
func (o *Overlay) Set(preds []protocol.Prediction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.preds = append([]protocol.Prediction(nil), preds...)
}

func (o *Overlay) Predictions() []protocol.Prediction {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]protocol.Prediction(nil), o.preds...)
}

func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.preds = nil
}

// Labels renders each prediction as "<class> (<pct>%)".
func (o *Overlay) Labels() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.preds))
	for _, p := range o.preds {
		out = append(out, p.Label())
	}
	return out
}

// Text is the prediction list as shown next to the video.
func (o *Overlay) Text() string {
	labels := o.Labels()
	if len(labels) == 0 {
		return NoPredictions
	}
	return strings.Join(labels, "\n")
}

// Redraw returns a cleared transparent canvas sized to the display container
// with one red rectangle stroked per prediction.
func (o *Overlay) Redraw(width, height int) *image.RGBA {
	if width <= 0 {
		width = DefaultDisplayWidth
	}
	if height <= 0 {
		height = DefaultDisplayHeight
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	for _, p := range o.Predictions() {
		StrokeRect(canvas, round(p.X1), round(p.Y1), round(p.Width()), round(p.Height()), strokeWidth, strokeColor)
	}
	return canvas
}

// Annotate writes each label just above its rectangle.
func (o *Overlay) Annotate(canvas draw.Image) {
	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(strokeColor), Face: basicfont.Face7x13}
	for _, p := range o.Predictions() {
		y := round(p.Y1) - strokeWidth - 1
		if y < basicfont.Face7x13.Ascent {
			y = round(p.Y2) + basicfont.Face7x13.Ascent + strokeWidth
		}
		d.Dot = fixed.P(round(p.X1), y)
		d.DrawString(p.Label())
	}
}

// StrokeRect outlines the rectangle at (x, y) of size w×h with a line of the
// given width centered on the edges. Pixels outside dst are clipped.
func StrokeRect(dst draw.Image, x, y, w, h, lineWidth int, c color.Color) {
	if lineWidth <= 0 {
		lineWidth = 1
	}
	half := lineWidth / 2
	src := image.NewUniform(c)
	x0, y0 := x-half, y-half
	x1, y1 := x+w-half+lineWidth, y+h-half+lineWidth
	edges := []image.Rectangle{
		image.Rect(x0, y0, x1, y0+lineWidth),
		image.Rect(x0, y+h-half, x1, y1),
		image.Rect(x0, y0, x0+lineWidth, y1),
		image.Rect(x+w-half, y0, x1, y1),
	}
	for _, r := range edges {
		draw.Draw(dst, r.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

func round(v float64) int {
	return int(math.Round(v))
}

package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const DefaultJPEGQuality = 0.6

// Rasterize paints img onto a fresh RGBA surface of w×h. Sources of a different
// size are scaled. A non-positive dimension falls back to the source bounds.
func Rasterize(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	if w <= 0 {
		w = b.Dx()
	}
	if h <= 0 {
		h = b.Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ImageEncoder compresses rasterized frames to JPEG. Quality is on the 0..1 scale.
type ImageEncoder struct {
	Quality float64
}

func (e ImageEncoder) jpegQuality() int {
	q := e.Quality
	if q <= 0 {
		q = DefaultJPEGQuality
	}
	if q > 1 {
		q = 1
	}
	v := int(q*100 + 0.5)
	if v < 1 {
		v = 1
	}
	return v
}

func (e ImageEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.jpegQuality()}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJPEG decodes a single JPEG image.
func DecodeJPEG(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return img, nil
}

package probe

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	canvasWidth  = 300
	canvasHeight = 80

	// canvasText mixes case, punctuation and a pseudo-tag so glyph
	// rasterization covers a wide pixel surface, the same trick browser
	// fingerprint scripts use.
	canvasText = "argus,sample <canvas> 1.0"
)

// SoftCanvas is the default Canvas2D: a pure-software rasterizer that
// draws the fixed pattern into an RGBA buffer. Identical construction
// parameters always produce identical pixels.
type SoftCanvas struct{}

// NewSoftCanvas returns a fresh drawing surface. Each collection session
// constructs its own so no raster state leaks between trials of other
// sessions.
func NewSoftCanvas() *SoftCanvas { return &SoftCanvas{} }

func (c *SoftCanvas) Size() (int, int) { return canvasWidth, canvasHeight }

// Render draws the fixed text+shape pattern and returns raw RGBA bytes.
func (c *SoftCanvas) Render() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))

	// Background.
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{240, 240, 240, 255}), image.Point{}, draw.Src)

	// Two overlapping translucent rectangles. Alpha blending across the
	// overlap is where driver rounding differences traditionally show up.
	fillRect(img, 10, 10, 120, 60, color.RGBA{255, 102, 0, 160})
	fillRect(img, 70, 25, 180, 70, color.RGBA{0, 128, 255, 160})

	// Filled circle.
	fillCircle(img, 230, 40, 24, color.RGBA{34, 177, 76, 255})

	// Text at two offsets in two colors.
	drawText(img, 12, 30, canvasText, color.RGBA{20, 20, 20, 255})
	drawText(img, 16, 62, canvasText, color.RGBA{120, 40, 160, 255})

	return img.Pix, nil
}

// EncodePNG produces the submission payload form of a raw canvas buffer.
// The encoder settings are fixed so the encoding itself is deterministic.
func EncodePNG(pix []byte, w, h int) ([]byte, error) {
	if len(pix) != 4*w*h {
		return nil, fmt.Errorf("canvas: pixel buffer is %d bytes, want %d", len(pix), 4*w*h)
	}
	img := &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("canvas: png encode: %w", err)
	}
	return buf.Bytes(), nil
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	draw.Draw(img, image.Rect(x0, y0, x1, y1), image.NewUniform(c), image.Point{}, draw.Over)
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func drawText(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

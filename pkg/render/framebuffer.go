package render

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
)

// Framebuffer is a colour buffer with a depth buffer.
type Framebuffer struct {
	Width, Height int
	Pixels        []Color
	Depth         []float64
}

// NewFramebuffer returns a cleared w x h buffer.
func NewFramebuffer(w, h int) *Framebuffer {
	fb := &Framebuffer{
		Width:  w,
		Height: h,
		Pixels: make([]Color, w*h),
		Depth:  make([]float64, w*h),
	}
	fb.Clear(ColorBlack)
	return fb
}

// Clear fills the colour buffer with c and resets depth.
func (fb *Framebuffer) Clear(c Color) {
	for i := range fb.Pixels {
		fb.Pixels[i] = c
		fb.Depth[i] = math.Inf(1)
	}
}

// SetPixel writes c at (x, y) without a depth test.
func (fb *Framebuffer) SetPixel(x, y int, c Color) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// GetPixel returns the colour at (x, y).
func (fb *Framebuffer) GetPixel(x, y int) Color {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return Color{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// plot blends c at (x, y) when z passes the depth test.
func (fb *Framebuffer) plot(x, y int, z float64, c Color) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return
	}
	i := y*fb.Width + x
	if z >= fb.Depth[i] {
		return
	}
	if c.A == 255 {
		fb.Depth[i] = z
		fb.Pixels[i] = c
		return
	}
	fb.Pixels[i] = blend(fb.Pixels[i], c)
}

// ToImage copies the colour buffer into an image.
func (fb *Framebuffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for y := range fb.Height {
		for x := range fb.Width {
			c := fb.Pixels[y*fb.Width+x]
			o := img.PixOffset(x, y)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = c.R, c.G, c.B, c.A
		}
	}
	return img
}

// EncodePNG writes the colour buffer as PNG.
func (fb *Framebuffer) EncodePNG(w io.Writer) error {
	return png.Encode(w, fb.ToImage())
}

// SavePNG writes the colour buffer to path.
func (fb *Framebuffer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := fb.EncodePNG(bw); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

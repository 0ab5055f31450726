package render

import (
	"image"
	"math"
)

// WrapMode controls sampling outside [0,1].
type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClamp
)

// FilterMode selects the sampling filter.
type FilterMode int

const (
	FilterBilinear FilterMode = iota
	FilterNearest
)

// Texture is an RGBA image addressed by UV. V grows upward, so V=1 is the
// first image row.
type Texture struct {
	Width, Height int
	Pixels        []Color
	WrapU, WrapV  WrapMode
	FilterMode    FilterMode
}

// NewTexture returns a transparent texture.
func NewTexture(w, h int) *Texture {
	return &Texture{Width: w, Height: h, Pixels: make([]Color, w*h)}
}

// NewCheckerTexture fills cells of size cell alternately with a and b.
func NewCheckerTexture(w, h, cell int, a, b Color) *Texture {
	t := NewTexture(w, h)
	for y := range h {
		for x := range w {
			if (x/cell+y/cell)%2 == 0 {
				t.Pixels[y*w+x] = a
			} else {
				t.Pixels[y*w+x] = b
			}
		}
	}
	return t
}

// TextureFromImage copies img.
func TextureFromImage(img image.Image) *Texture {
	b := img.Bounds()
	t := NewTexture(b.Dx(), b.Dy())
	for y := range t.Height {
		for x := range t.Width {
			t.Pixels[y*t.Width+x] = FromColor(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return t
}

// GetPixel returns the texel at (x, y), or transparent when out of range.
func (t *Texture) GetPixel(x, y int) Color {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return Color{}
	}
	return t.Pixels[y*t.Width+x]
}

// SetPixel sets the texel at (x, y). Out of range writes are ignored.
func (t *Texture) SetPixel(x, y int, c Color) {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return
	}
	t.Pixels[y*t.Width+x] = c
}

func wrap(v float64, mode WrapMode) float64 {
	if mode == WrapClamp {
		return math.Max(0, math.Min(1, v))
	}
	v -= math.Floor(v)
	return v
}

func wrapIndex(i, n int, mode WrapMode) int {
	if mode == WrapClamp {
		return max(0, min(n-1, i))
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Sample returns the filtered colour at (u, v).
func (t *Texture) Sample(u, v float64) Color {
	if t.Width == 0 || t.Height == 0 {
		return ColorWhite
	}
	u = wrap(u, t.WrapU)
	v = wrap(v, t.WrapV)
	fx := u * float64(t.Width)
	fy := (1 - v) * float64(t.Height)

	if t.FilterMode == FilterNearest {
		x := wrapIndex(int(math.Floor(fx)), t.Width, t.WrapU)
		y := wrapIndex(int(math.Floor(fy)), t.Height, t.WrapV)
		return t.Pixels[y*t.Width+x]
	}

	fx -= 0.5
	fy -= 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	dx, dy := fx-float64(x0), fy-float64(y0)
	px := func(x, y int) Color {
		return t.Pixels[wrapIndex(y, t.Height, t.WrapV)*t.Width+wrapIndex(x, t.Width, t.WrapU)]
	}
	top := lerpColor(px(x0, y0), px(x0+1, y0), dx)
	bottom := lerpColor(px(x0, y0+1), px(x0+1, y0+1), dx)
	return lerpColor(top, bottom, dy)
}

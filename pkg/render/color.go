// Package render is a small software rasterizer used for screenshots and
// headless previews.
package render

import (
	"image/color"
	"math"
)

// Color is an 8-bit RGBA colour. Alpha is straight, not premultiplied.
type Color struct {
	R, G, B, A uint8
}

// RGB returns an opaque colour.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 255}
}

// RGBA returns a colour with alpha.
func RGBA(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// FromFloats converts 0-1 components, clamping out-of-range values.
func FromFloats(r, g, b, a float64) Color {
	return Color{R: clampByte(r * 255), G: clampByte(g * 255), B: clampByte(b * 255), A: clampByte(a * 255)}
}

// FromColor converts any image/color value.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

var (
	ColorBlack       = RGB(0, 0, 0)
	ColorWhite       = RGB(255, 255, 255)
	ColorRed         = RGB(255, 0, 0)
	ColorGreen       = RGB(0, 255, 0)
	ColorBlue        = RGB(0, 0, 255)
	ColorTransparent = Color{}
)

func clampByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// MultiplyColor scales the RGB channels by f, rounding and clamping at 255.
func MultiplyColor(c Color, f float64) Color {
	return Color{
		R: clampByte(float64(c.R)*f + 0.5),
		G: clampByte(float64(c.G)*f + 0.5),
		B: clampByte(float64(c.B)*f + 0.5),
		A: c.A,
	}
}

// ModulateColor multiplies two colours channel by channel.
func ModulateColor(a, b Color) Color {
	return Color{
		R: uint8(uint16(a.R) * uint16(b.R) / 255),
		G: uint8(uint16(a.G) * uint16(b.G) / 255),
		B: uint8(uint16(a.B) * uint16(b.B) / 255),
		A: uint8(uint16(a.A) * uint16(b.A) / 255),
	}
}

func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t),
	}
}

// blend composites src over dst.
func blend(dst, src Color) Color {
	switch src.A {
	case 255:
		return src
	case 0:
		return dst
	}
	t := float64(src.A) / 255
	out := lerpColor(dst, src, t)
	out.A = clampByte(float64(src.A) + float64(dst.A)*(1-t))
	return out
}

package render

import (
	"image"
	"image/color"
	"testing"
)

// quadTexture is 2x2: red and green on the top row, blue and yellow below.
func quadTexture(wrap WrapMode) *Texture {
	tex := NewTexture(2, 2)
	tex.SetPixel(0, 0, ColorRed)
	tex.SetPixel(1, 0, ColorGreen)
	tex.SetPixel(0, 1, ColorBlue)
	tex.SetPixel(1, 1, RGB(255, 255, 0))
	tex.WrapU, tex.WrapV = wrap, wrap
	tex.FilterMode = FilterNearest
	return tex
}

func TestTextureSampleNearest(t *testing.T) {
	tests := []struct {
		name string
		wrap WrapMode
		u, v float64
		want Color
	}{
		{"top row is v=1", WrapRepeat, 0.25, 0.75, ColorRed},
		{"top right", WrapRepeat, 0.75, 0.75, ColorGreen},
		{"bottom left", WrapRepeat, 0.25, 0.25, ColorBlue},
		{"repeat past one", WrapRepeat, 1.75, 0.75, ColorGreen},
		{"repeat below zero", WrapRepeat, -0.25, 0.75, ColorGreen},
		{"clamp below zero", WrapClamp, -3, 0.75, ColorRed},
		{"clamp past one", WrapClamp, 4, -2, RGB(255, 255, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quadTexture(tt.wrap).Sample(tt.u, tt.v); got != tt.want {
				t.Errorf("Sample(%v, %v) = %v, want %v", tt.u, tt.v, got, tt.want)
			}
		})
	}
}

func TestTextureSampleBilinear(t *testing.T) {
	tex := NewTexture(2, 1)
	tex.SetPixel(0, 0, ColorRed)
	tex.SetPixel(1, 0, ColorBlue)
	tex.WrapU, tex.WrapV = WrapClamp, WrapClamp

	if got, want := tex.Sample(0.5, 0.5), RGB(127, 0, 127); got != want {
		t.Errorf("midpoint = %v, want %v", got, want)
	}
	if got := tex.Sample(0, 0.5); got != ColorRed {
		t.Errorf("left edge = %v, want red", got)
	}
}

func TestTextureEmptySamplesWhite(t *testing.T) {
	if got := NewTexture(0, 0).Sample(0.3, 0.3); got != ColorWhite {
		t.Errorf("empty texture = %v, want white", got)
	}
}

func TestTextureFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(10, 10, 13, 12))
	img.Set(10, 10, color.NRGBA{R: 9, G: 8, B: 7, A: 255})
	img.Set(12, 11, color.NRGBA{R: 1, G: 2, B: 3, A: 128})

	tex := TextureFromImage(img)
	if tex.Width != 3 || tex.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", tex.Width, tex.Height)
	}
	if got := tex.GetPixel(0, 0); got != RGB(9, 8, 7) {
		t.Errorf("origin texel = %v", got)
	}
	if got := tex.GetPixel(2, 1); got != RGBA(1, 2, 3, 128) {
		t.Errorf("last texel = %v, alpha must stay straight", got)
	}
	if got := tex.GetPixel(3, 0); got != (Color{}) {
		t.Errorf("out of range texel = %v", got)
	}
}

func TestCheckerTexture(t *testing.T) {
	tex := NewCheckerTexture(16, 16, 4, ColorWhite, ColorBlack)
	for _, p := range []struct {
		x, y int
		want Color
	}{
		{1, 1, ColorWhite},
		{5, 1, ColorBlack},
		{5, 5, ColorWhite},
		{15, 0, ColorBlack},
	} {
		if got := tex.GetPixel(p.x, p.y); got != p.want {
			t.Errorf("(%d,%d) = %v, want %v", p.x, p.y, got, p.want)
		}
	}
}

func TestColorMath(t *testing.T) {
	tests := []struct {
		name string
		got  Color
		want Color
	}{
		{"multiply halves", MultiplyColor(RGB(200, 100, 50), 0.5), RGB(100, 50, 25)},
		{"multiply clamps", MultiplyColor(RGB(200, 100, 50), 2), RGB(255, 200, 100)},
		{"multiply keeps alpha", MultiplyColor(RGBA(10, 10, 10, 40), 0), RGBA(0, 0, 0, 40)},
		{"modulate by white", ModulateColor(ColorWhite, ColorRed), ColorRed},
		{"modulate by black", ModulateColor(ColorBlack, ColorGreen), ColorBlack},
		{"floats clamp", FromFloats(-1, 0.5, 2, 1), RGB(0, 127, 255)},
		{"opaque over", blend(ColorRed, ColorBlue), ColorBlue},
		{"transparent over", blend(ColorRed, ColorTransparent), ColorRed},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

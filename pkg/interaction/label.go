package interaction

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const labelPadding = 3

// RenderLabel rasterizes text in a 7x13 bitmap font onto a padded card.
func RenderLabel(text string, fg, bg color.Color) *image.RGBA {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	img := image.NewRGBA(image.Rect(0, 0, width+2*labelPadding, height+2*labelPadding))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dst = img
	d.Src = image.NewUniform(fg)
	d.Dot = fixed.Point26_6{
		X: fixed.I(labelPadding),
		Y: fixed.I(labelPadding) + metrics.Ascent,
	}
	d.DrawString(text)
	return img
}

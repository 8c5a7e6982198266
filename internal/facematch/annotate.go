package facematch

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

var (
	// ChosenColor outlines the face used for enrollment
	ChosenColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	// OtherColor outlines every other detected face
	OtherColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// boxThickness is the outline width in pixels.
const boxThickness = 2

// DrawBoxes returns a copy of img with every box outlined. The box at index chosen
// uses ChosenColor, the rest OtherColor.
func DrawBoxes(img image.Image, boxes []image.Rectangle, chosen int) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	for i, box := range boxes {
		c := OtherColor
		if i == chosen {
			c = ChosenColor
		}
		outline(out, box.Canon().Intersect(b), c)
	}
	return out
}

func outline(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	t := min(boxThickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), // top
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), // left
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

package facematch

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// BBoxToRect converts a collaborator bounding box [x1, y1, x2, y2] in pixels to a
// rectangle, rounding each corner to the nearest pixel.
func BBoxToRect(bbox []float64) (image.Rectangle, error) {
	if len(bbox) != 4 {
		return image.Rectangle{}, fmt.Errorf("bounding box needs 4 values, got %d", len(bbox))
	}
	return image.Rect(
		int(math.Round(bbox[0])),
		int(math.Round(bbox[1])),
		int(math.Round(bbox[2])),
		int(math.Round(bbox[3])),
	).Canon(), nil
}

// Crop returns the part of frame inside region, clipped to the frame bounds.
func Crop(frame image.Image, region image.Rectangle) (image.Image, error) {
	r := region.Canon().Intersect(frame.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("%w: %v outside %v", ErrEmptyRegion, region, frame.Bounds())
	}

	if sub, ok := frame.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r), nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, r.Min, draw.Src)
	return dst, nil
}

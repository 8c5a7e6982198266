package facematch

import (
	"image"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/facegate/internal/constants"
)

// Normalize resizes img to the embedder input size with bilinear interpolation and
// rescales every 8-bit channel by 1/255 into float32, laid out height, width,
// channel in the requested order.
func Normalize(img image.Image, order ChannelOrder) Tensor {
	size := constants.InputSize
	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	t := Tensor{
		Height:   size,
		Width:    size,
		Channels: constants.InputChannels,
		Data:     make([]float32, size*size*constants.InputChannels),
	}

	// resized.Pix is RGBA with stride 4*size since it starts at the origin.
	for i, j := 0, 0; i < len(resized.Pix); i, j = i+4, j+3 {
		r, g, b := resized.Pix[i], resized.Pix[i+1], resized.Pix[i+2]
		if order == ChannelsRGB {
			t.Data[j], t.Data[j+1], t.Data[j+2] = scale(r), scale(g), scale(b)
		} else {
			t.Data[j], t.Data[j+1], t.Data[j+2] = scale(b), scale(g), scale(r)
		}
	}
	return t
}

func scale(v uint8) float32 {
	return float32(float64(v) * constants.PixelScale)
}

// NormalizeLabel trims surrounding space and applies Unicode NFC, so a label typed
// with combining marks equals its precomposed form.
func NormalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

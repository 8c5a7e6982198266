// Package facematch prepares detected face regions for the embedder: cropping,
// resizing and pixel normalization, plus label normalization and debug drawing.
package facematch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyRegion is returned when a region does not overlap the frame
var ErrEmptyRegion = errors.New("region is empty after clipping to the frame")

// ChannelOrder is the channel layout of the embedder input
type ChannelOrder string

const (
	ChannelsBGR ChannelOrder = "bgr" // OpenCV frame order, what the deployed network was fed
	ChannelsRGB ChannelOrder = "rgb"
)

// ParseChannelOrder accepts "bgr" or "rgb" in any case.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch order := ChannelOrder(strings.ToLower(s)); order {
	case ChannelsBGR, ChannelsRGB:
		return order, nil
	default:
		return "", fmt.Errorf("unknown channel order %q", s)
	}
}

// Tensor is a normalized image in height, width, channel order.
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// At returns the value at row y, column x, channel c.
func (t Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}

// Shape returns the dimensions as [height, width, channels].
func (t Tensor) Shape() [3]int {
	return [3]int{t.Height, t.Width, t.Channels}
}

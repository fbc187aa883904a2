package geometry

import "image"

// Normalization parameters applied before masking. Padding widens the
// detected region so descenders and anti-aliased edges are covered; the
// minimum size floor keeps tiny OCR boxes maskable.
const (
	Padding   = 15
	MinWidth  = 20
	MinHeight = 10
)

// Box is an axis-aligned rectangle in pixel units with the origin in the
// upper-left corner of the image.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsEmpty reports whether the box has non-positive dimensions.
func (b Box) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Array returns the box in [x, y, width, height] wire order.
func (b Box) Array() [4]int {
	return [4]int{b.X, b.Y, b.Width, b.Height}
}

// Normalize clips the box to the image bounds, adds symmetric padding,
// enforces the minimum size floor and re-clips. The second return value is
// false when the box does not intersect the image at all; such boxes are
// dropped by the caller rather than masked.
func Normalize(b Box, imageWidth, imageHeight int) (Box, bool) {
	x := clamp(b.X, 0, imageWidth)
	y := clamp(b.Y, 0, imageHeight)
	w := b.Width - (x - b.X)
	h := b.Height - (y - b.Y)
	if x+w > imageWidth {
		w = imageWidth - x
	}
	if y+h > imageHeight {
		h = imageHeight - y
	}
	if w <= 0 || h <= 0 {
		return Box{}, false
	}

	x -= Padding
	y -= Padding
	w += 2 * Padding
	h += 2 * Padding
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}

	if w < MinWidth {
		w = MinWidth
	}
	if h < MinHeight {
		h = MinHeight
	}

	if x+w > imageWidth {
		w = imageWidth - x
	}
	if y+h > imageHeight {
		h = imageHeight - y
	}
	if w <= 0 || h <= 0 {
		return Box{}, false
	}

	return Box{X: x, Y: y, Width: w, Height: h}, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

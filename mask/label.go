package mask

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type labelSize int

const (
	labelSizeSmall labelSize = iota
	labelSizeLarge
)

// drawCenteredLabel draws text centered in the rectangle, white with a black
// outline so it stays readable over any fill. The label is skipped when the
// region is too small to hold it.
func drawCenteredLabel(img *image.RGBA, rect image.Rectangle, text string, size labelSize) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Ascent.Ceil()

	// Small labels are decoration; leave them out unless they fit with room
	// to spare. Large labels only need to physically fit.
	margin := 0
	if size == labelSizeSmall {
		margin = 10
	}
	if textWidth > rect.Dx()-margin || textHeight > rect.Dy()-margin {
		return
	}

	x := rect.Min.X + (rect.Dx()-textWidth)/2
	y := rect.Min.Y + (rect.Dy()+textHeight)/2

	drawText(img, x, y, text, color.RGBA{255, 255, 255, 255}, true)
}

// drawText renders text at the baseline point, optionally with a 1px black
// outline drawn from eight offsets.
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA, outline bool) {
	if outline {
		black := color.RGBA{0, 0, 0, 255}
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				drawTextAt(img, x+dx, y+dy, text, black)
			}
		}
	}
	drawTextAt(img, x, y, text, c)
}

func drawTextAt(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

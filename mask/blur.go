package mask

import "image"

// blurRect applies a separable box blur of the given radius to the region.
// Two passes (horizontal then vertical) approximate a gaussian well enough
// for obscuring text while staying cheap on large regions.
func blurRect(img *image.RGBA, rect image.Rectangle, radius int) {
	if radius < 1 || rect.Empty() {
		return
	}
	blurPass(img, rect, radius, true)
	blurPass(img, rect, radius, false)
}

func blurPass(img *image.RGBA, rect image.Rectangle, radius int, horizontal bool) {
	w, h := rect.Dx(), rect.Dy()
	out := make([]uint8, w*h*4)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b, a, n int
			for k := -radius; k <= radius; k++ {
				sx, sy := x, y
				if horizontal {
					sx += k
				} else {
					sy += k
				}
				if sx < 0 || sx >= w || sy < 0 || sy >= h {
					continue
				}
				c := img.RGBAAt(rect.Min.X+sx, rect.Min.Y+sy)
				r += int(c.R)
				g += int(c.G)
				b += int(c.B)
				a += int(c.A)
				n++
			}
			i := (y*w + x) * 4
			out[i] = uint8(r / n)
			out[i+1] = uint8(g / n)
			out[i+2] = uint8(b / n)
			out[i+3] = uint8(a / n)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			o := img.PixOffset(rect.Min.X+x, rect.Min.Y+y)
			img.Pix[o] = out[i]
			img.Pix[o+1] = out[i+1]
			img.Pix[o+2] = out[i+2]
			img.Pix[o+3] = out[i+3]
		}
	}
}

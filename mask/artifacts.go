package mask

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/hannes/idshield/geometry"
	"github.com/hannes/idshield/pii"
)

// PreviewFile renders a detection preview next to the original: every entity
// gets a tier-colored rectangle and a "type: confidence" caption, with the
// underlying pixels left untouched. Returns the path of the preview file.
func (e *Engine) PreviewFile(path string, entities []pii.Entity) (string, error) {
	img, err := loadRGBA(path)
	if err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	bounds := img.Bounds()
	for _, entity := range entities {
		box, ok := geometry.Normalize(entity.Box, bounds.Dx(), bounds.Dy())
		if !ok {
			continue
		}
		rect := box.Rect()
		drawBorder(img, rect, tierColor(pii.ClassifyTier(entity.Type)), 2)

		caption := fmt.Sprintf("%s: %.2f", entity.Type, entity.Confidence)
		y := rect.Min.Y - 4
		if y < 14 {
			y = rect.Max.Y + 14
		}
		drawText(img, rect.Min.X, y, caption, color.RGBA{255, 255, 255, 255}, true)
	}

	outPath := derivedPath(path, "_preview")
	if err := saveImage(outPath, img); err != nil {
		return "", fmt.Errorf("failed to save preview image: %w", err)
	}
	return outPath, nil
}

// ComparisonFile renders the original and the masked image side by side at
// equal height with "ORIGINAL" and "MASKED" captions. Returns the path of the
// comparison file, derived from the original path.
func (e *Engine) ComparisonFile(originalPath, maskedPath string) (string, error) {
	original, err := loadRGBA(originalPath)
	if err != nil {
		return "", fmt.Errorf("failed to load original image: %w", err)
	}
	masked, err := loadRGBA(maskedPath)
	if err != nil {
		return "", fmt.Errorf("failed to load masked image: %w", err)
	}

	height := original.Bounds().Dy()
	if masked.Bounds().Dy() < height {
		height = masked.Bounds().Dy()
	}

	left := scaleToHeight(original, height)
	right := scaleToHeight(masked, height)

	combined := image.NewRGBA(image.Rect(0, 0, left.Bounds().Dx()+right.Bounds().Dx(), height))
	xdraw.Copy(combined, image.Point{}, left, left.Bounds(), xdraw.Src, nil)
	xdraw.Copy(combined, image.Point{X: left.Bounds().Dx()}, right, right.Bounds(), xdraw.Src, nil)

	drawText(combined, 20, 40, "ORIGINAL", color.RGBA{255, 255, 255, 255}, true)
	drawText(combined, left.Bounds().Dx()+20, 40, "MASKED", color.RGBA{255, 255, 255, 255}, true)

	outPath := derivedPath(originalPath, "_comparison")
	if err := saveImage(outPath, combined); err != nil {
		return "", fmt.Errorf("failed to save comparison image: %w", err)
	}
	return outPath, nil
}

// scaleToHeight scales the image so its height matches the target, preserving
// the aspect ratio. Returns the input unchanged when the height already fits.
func scaleToHeight(img *image.RGBA, height int) *image.RGBA {
	if img.Bounds().Dy() == height {
		return img
	}
	width := img.Bounds().Dx() * height / img.Bounds().Dy()
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return out
}

func tierColor(tier pii.Tier) color.RGBA {
	switch tier {
	case pii.TierHigh:
		return colorHighBorder
	case pii.TierMedium:
		return colorMediumBorder
	case pii.TierLow:
		return colorLowBorder
	case pii.TierSpecial:
		return colorSpecialBorder
	}
	return colorMediumBorder
}

package mask

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/hannes/idshield/geometry"
	"github.com/hannes/idshield/pii"
)

// Tier rendering parameters. Pixelation divides the region into roughly
// pixelateFactor cells per axis; noiseAmplitude is the additive jitter layered
// on top so the original text cannot be recovered by deconvolution.
const (
	pixelateFactor = 15
	noiseAmplitude = 50
)

var (
	colorHighBorder    = color.RGBA{255, 0, 0, 255}
	colorMediumBorder  = color.RGBA{0, 0, 255, 255}
	colorLowBorder     = color.RGBA{0, 255, 0, 255}
	colorSpecialBorder = color.RGBA{0, 255, 255, 255}
)

// Engine renders tier-dependent masks over detected entities.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates a new masking engine
func NewEngine() *Engine {
	// #nosec G404 - math/rand drives visual noise, not anything security-critical
	return &Engine{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewEngineWithSeed creates an engine with a fixed seed for deterministic output (testing)
func NewEngineWithSeed(seed int64) *Engine {
	// #nosec G404 - math/rand drives visual noise, not anything security-critical
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// MaskFile loads the image at path, draws a mask over every entity according
// to its sensitivity tier and writes the result next to the original with a
// "_masked" suffix. It returns the path of the masked file. Entities whose
// boxes fall entirely outside the image are skipped.
func (e *Engine) MaskFile(path string, entities []pii.Entity) (string, error) {
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
		e.maskRegion(img, box.Rect(), entity)
	}

	outPath := derivedPath(path, "_masked")
	if err := saveImage(outPath, img); err != nil {
		return "", fmt.Errorf("failed to save masked image: %w", err)
	}
	return outPath, nil
}

// maskRegion applies the tier-specific treatment to one normalized region.
func (e *Engine) maskRegion(img *image.RGBA, rect image.Rectangle, entity pii.Entity) {
	switch pii.ClassifyTier(entity.Type) {
	case pii.TierHigh:
		fillRect(img, rect, color.RGBA{0, 0, 0, 255})
		drawBorder(img, rect, colorHighBorder, 3)
		drawCenteredLabel(img, rect, strings.ToUpper(entity.Type), labelSizeLarge)
	case pii.TierMedium:
		e.pixelate(img, rect)
		drawBorder(img, rect, colorMediumBorder, 2)
		drawCenteredLabel(img, rect, strings.ToUpper(entity.Type), labelSizeSmall)
	case pii.TierLow:
		blurRect(img, rect, 3)
		tintRect(img, rect, color.RGBA{255, 255, 0, 255}, 0.3)
		drawBorder(img, rect, colorLowBorder, 1)
	case pii.TierSpecial:
		blurRect(img, rect, 8)
		tintRect(img, rect, color.RGBA{50, 50, 50, 255}, 0.5)
		drawBorder(img, rect, colorSpecialBorder, 2)
		drawCenteredLabel(img, rect, "SIGNATURE", labelSizeSmall)
	}
}

// pixelate downscales the region, upscales it back with nearest-neighbor and
// layers additive noise on top.
func (e *Engine) pixelate(img *image.RGBA, rect image.Rectangle) {
	w, h := rect.Dx(), rect.Dy()
	smallW := w / pixelateFactor
	smallH := h / pixelateFactor
	if smallW < 1 {
		smallW = 1
	}
	if smallH < 1 {
		smallH = 1
	}

	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, rect, xdraw.Src, nil)
	xdraw.NearestNeighbor.Scale(img, rect, small, small.Bounds(), xdraw.Src, nil)

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := img.RGBAAt(x, y)
			c.R = clampByte(int(c.R) + e.rng.Intn(noiseAmplitude+1) - noiseAmplitude/2)
			c.G = clampByte(int(c.G) + e.rng.Intn(noiseAmplitude+1) - noiseAmplitude/2)
			c.B = clampByte(int(c.B) + e.rng.Intn(noiseAmplitude+1) - noiseAmplitude/2)
			img.SetRGBA(x, y, c)
		}
	}
}

// fillRect paints the rectangle with a solid color.
func fillRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	draw.Draw(img, rect, &image.Uniform{c}, image.Point{}, draw.Src)
}

// tintRect blends the given color over the region at the given opacity.
func tintRect(img *image.RGBA, rect image.Rectangle, c color.RGBA, opacity float64) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			p := img.RGBAAt(x, y)
			p.R = blendByte(p.R, c.R, opacity)
			p.G = blendByte(p.G, c.G, opacity)
			p.B = blendByte(p.B, c.B, opacity)
			img.SetRGBA(x, y, p)
		}
	}
}

// drawBorder draws a rectangle outline of the given thickness, growing inward.
func drawBorder(img *image.RGBA, rect image.Rectangle, c color.RGBA, thickness int) {
	for i := 0; i < thickness; i++ {
		r := rect.Inset(i)
		if r.Empty() {
			return
		}
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, r.Min.Y, c)
			img.SetRGBA(x, r.Max.Y-1, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetRGBA(r.Min.X, y, c)
			img.SetRGBA(r.Max.X-1, y, c)
		}
	}
}

func blendByte(base, over uint8, opacity float64) uint8 {
	return uint8(float64(base)*(1-opacity) + float64(over)*opacity)
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// loadRGBA decodes the image at path into an RGBA buffer.
func loadRGBA(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	return rgba, nil
}

// saveImage encodes img to path, choosing the format from the extension.
// Anything that is not JPEG is written as PNG.
func saveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(f, img)
	}
}

// derivedPath inserts a suffix before the file extension:
// /tmp/card.png + "_masked" -> /tmp/card_masked.png
func derivedPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

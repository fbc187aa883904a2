package mask

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/hannes/idshield/geometry"
	"github.com/hannes/idshield/pii"
)

// writeTestImage creates a white PNG of the given size in a temp dir.
func writeTestImage(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	path := filepath.Join(t.TempDir(), "card.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return path
}

func loadTestImage(t *testing.T, path string) *image.RGBA {
	t.Helper()
	img, err := loadRGBA(path)
	if err != nil {
		t.Fatalf("Failed to load %s: %v", path, err)
	}
	return img
}

func TestMaskFile_HighTierFillsBlack(t *testing.T) {
	path := writeTestImage(t, 800, 600)
	engine := NewEngineWithSeed(1)

	outPath, err := engine.MaskFile(path, []pii.Entity{{
		Text:       "9933 7971 8021",
		Type:       pii.TypeNationalID,
		Confidence: 0.95,
		Box:        geometry.Box{X: 200, Y: 200, Width: 300, Height: 60},
	}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outPath != filepath.Join(filepath.Dir(path), "card_masked.png") {
		t.Errorf("Unexpected output path: %s", outPath)
	}

	masked := loadTestImage(t, outPath)

	// Center of the region is solid black (or white label text).
	c := masked.RGBAAt(350, 215)
	if c.R > 10 && c.R < 250 {
		t.Errorf("Expected black fill or label at region edge, got %v", c)
	}

	// Pixels well outside the padded region are untouched.
	c = masked.RGBAAt(700, 500)
	if c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected untouched pixel outside the mask, got %v", c)
	}
}

func TestMaskFile_MediumTierChangesPixels(t *testing.T) {
	path := writeTestImage(t, 800, 600)
	engine := NewEngineWithSeed(1)

	outPath, err := engine.MaskFile(path, []pii.Entity{{
		Text:       "9876543210",
		Type:       pii.TypePhoneNumber,
		Confidence: 0.9,
		Box:        geometry.Box{X: 200, Y: 200, Width: 300, Height: 60},
	}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	masked := loadTestImage(t, outPath)
	changed := false
	for y := 200; y < 260 && !changed; y++ {
		for x := 200; x < 500; x++ {
			if masked.RGBAAt(x, y) != (color.RGBA{255, 255, 255, 255}) {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("Expected pixelation and noise to alter the region")
	}
}

func TestMaskFile_SkipsEntityOutsideImage(t *testing.T) {
	path := writeTestImage(t, 400, 300)
	engine := NewEngineWithSeed(1)

	outPath, err := engine.MaskFile(path, []pii.Entity{{
		Text:       "ghost",
		Type:       pii.TypeNationalID,
		Confidence: 0.9,
		Box:        geometry.Box{X: 1000, Y: 1000, Width: 50, Height: 50},
	}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	masked := loadTestImage(t, outPath)
	for _, p := range []image.Point{{10, 10}, {200, 150}, {390, 290}} {
		if masked.RGBAAt(p.X, p.Y) != (color.RGBA{255, 255, 255, 255}) {
			t.Errorf("Expected pixel %v untouched", p)
		}
	}
}

func TestPreviewFile_LeavesRegionPixelsIntact(t *testing.T) {
	path := writeTestImage(t, 800, 600)
	engine := NewEngineWithSeed(1)

	outPath, err := engine.PreviewFile(path, []pii.Entity{{
		Text:       "9933 7971 8021",
		Type:       pii.TypeNationalID,
		Confidence: 0.95,
		Box:        geometry.Box{X: 200, Y: 200, Width: 300, Height: 60},
	}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(outPath) != "card_preview.png" {
		t.Errorf("Unexpected preview path: %s", outPath)
	}

	preview := loadTestImage(t, outPath)

	// Interior of the detected region keeps its original pixels.
	if c := preview.RGBAAt(350, 215); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected untouched interior pixel, got %v", c)
	}

	// The border of the normalized region is drawn in the high-tier color.
	if c := preview.RGBAAt(350, 185); c != colorHighBorder {
		t.Errorf("Expected red border pixel, got %v", c)
	}
}

func TestComparisonFile_CombinesSideBySide(t *testing.T) {
	path := writeTestImage(t, 400, 300)
	engine := NewEngineWithSeed(1)

	maskedPath, err := engine.MaskFile(path, []pii.Entity{{
		Text:       "x",
		Type:       pii.TypeNationalID,
		Confidence: 0.9,
		Box:        geometry.Box{X: 100, Y: 100, Width: 100, Height: 40},
	}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	outPath, err := engine.ComparisonFile(path, maskedPath)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	combined := loadTestImage(t, outPath)
	if combined.Bounds().Dx() != 800 || combined.Bounds().Dy() != 300 {
		t.Errorf("Expected 800x300 comparison, got %v", combined.Bounds())
	}
}

func TestDerivedPath(t *testing.T) {
	if got := derivedPath("/tmp/card.png", "_masked"); got != "/tmp/card_masked.png" {
		t.Errorf("Unexpected derived path: %s", got)
	}
	if got := derivedPath("/tmp/scan.jpeg", "_preview"); got != "/tmp/scan_preview.jpeg" {
		t.Errorf("Unexpected derived path: %s", got)
	}
}

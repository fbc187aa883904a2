package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/hannes/idshield/geometry"
	"github.com/hannes/idshield/mask"
	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
	"github.com/hannes/idshield/pii/detectors"
)

// stubExtractor implements Extractor for testing
type stubExtractor struct {
	result ocr.ExtractResult
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, path string) (ocr.ExtractResult, error) {
	return s.result, s.err
}

// stubGenerator implements detectors.Generator for testing
type stubGenerator struct {
	name     string
	entities []pii.Entity
	err      error
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Propose(ctx context.Context, blocks []ocr.Block) ([]pii.Entity, error) {
	return s.entities, s.err
}

func (s *stubGenerator) Close() error { return nil }

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

func testObservation(text string, x, y int) ocr.Observation {
	return ocr.Observation{
		Text:       text,
		Box:        geometry.Box{X: x, Y: y, Width: 200, Height: 40},
		Confidence: 0.9,
		Source:     ocr.EngineNameTesseract,
	}
}

func TestProcess_FullRun(t *testing.T) {
	path := writeTestImage(t, 1000, 700)

	extractor := &stubExtractor{result: ocr.ExtractResult{
		Observations: []ocr.Observation{testObservation("9933 7971 8021", 400, 400)},
		PlainText:    "9933 7971 8021",
	}}
	generators := []detectors.Generator{detectors.NewPatternDetector(detectors.PIIPatterns)}
	store := pii.NewInMemoryDetectionStore()

	p := New(extractor, generators, mask.NewEngineWithSeed(1), store)
	result, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.Success {
		t.Error("Expected a successful result")
	}
	if result.RunID == "" {
		t.Error("Expected a run ID")
	}
	if len(result.Entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(result.Entities))
	}
	if result.Entities[0].EntityType != pii.TypeNationalID {
		t.Errorf("Unexpected entity type: %s", result.Entities[0].EntityType)
	}
	if result.MaskedPath == "" || result.PreviewPath == "" || result.ComparisonPath == "" {
		t.Errorf("Expected all artifacts, got masked=%q preview=%q comparison=%q",
			result.MaskedPath, result.PreviewPath, result.ComparisonPath)
	}
	for _, artifact := range []string{result.MaskedPath, result.PreviewPath, result.ComparisonPath} {
		if _, err := os.Stat(artifact); err != nil {
			t.Errorf("Artifact %s missing: %v", artifact, err)
		}
	}
	if result.Statistics.DetectedPIICount != 1 {
		t.Errorf("Unexpected statistics: %+v", result.Statistics)
	}

	counts, _ := store.CountByType(context.Background())
	if counts[pii.TypeNationalID] != 1 {
		t.Errorf("Expected the detection to be stored, got %v", counts)
	}
}

func TestProcess_ExtractionFailureIsFatal(t *testing.T) {
	path := writeTestImage(t, 400, 300)
	extractor := &stubExtractor{err: errors.New("ocr crashed")}

	p := New(extractor, nil, mask.NewEngineWithSeed(1), nil)
	if _, err := p.Process(context.Background(), path); err == nil {
		t.Error("Expected extraction failure to be fatal")
	}
}

func TestProcess_GeneratorFailureIsNonFatal(t *testing.T) {
	path := writeTestImage(t, 1000, 700)

	extractor := &stubExtractor{result: ocr.ExtractResult{
		Observations: []ocr.Observation{testObservation("Ramesh Kumar", 200, 200)},
	}}
	generators := []detectors.Generator{
		&stubGenerator{name: "broken", err: errors.New("model exploded")},
		&stubGenerator{name: "working", entities: []pii.Entity{{
			Text: "Ramesh Kumar", Type: pii.TypePerson, Confidence: 0.8,
			Box: geometry.Box{X: 200, Y: 200, Width: 200, Height: 40},
		}}},
	}

	p := New(extractor, generators, mask.NewEngineWithSeed(1), nil)
	result, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Expected the pipeline to proceed, got: %v", err)
	}
	if len(result.Entities) != 1 || result.Entities[0].Text != "Ramesh Kumar" {
		t.Errorf("Expected the working generator's entity, got %+v", result.Entities)
	}
	if len(result.Statistics.Methods) != 1 || result.Statistics.Methods[0] != "working" {
		t.Errorf("Expected only the working generator in methods, got %v", result.Statistics.Methods)
	}
}

func TestProcess_PanickingGeneratorIsContained(t *testing.T) {
	path := writeTestImage(t, 1000, 700)

	extractor := &stubExtractor{result: ocr.ExtractResult{
		Observations: []ocr.Observation{testObservation("text", 200, 200)},
	}}
	generators := []detectors.Generator{&panickingGenerator{}}

	p := New(extractor, generators, mask.NewEngineWithSeed(1), nil)
	result, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Expected the pipeline to survive a panic, got: %v", err)
	}
	// Nothing detected, so the fallback template kicks in.
	if len(result.Entities) == 0 {
		t.Error("Expected fallback entities")
	}
}

type panickingGenerator struct{}

func (p *panickingGenerator) Name() string { return "panicking" }

func (p *panickingGenerator) Propose(ctx context.Context, blocks []ocr.Block) ([]pii.Entity, error) {
	panic("boom")
}

func (p *panickingGenerator) Close() error { return nil }

func TestProcess_NoDetectionsFallsBack(t *testing.T) {
	path := writeTestImage(t, 1000, 700)

	extractor := &stubExtractor{result: ocr.ExtractResult{
		Observations: []ocr.Observation{testObservation("illegible", 200, 200)},
	}}

	p := New(extractor, nil, mask.NewEngineWithSeed(1), nil)
	result, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Entities) < 4 {
		t.Errorf("Expected fallback template entities, got %d", len(result.Entities))
	}
	if result.MaskedPath == "" {
		t.Error("Expected the fallback entities to be masked")
	}
}

func TestPreview_RendersPreviewOnly(t *testing.T) {
	path := writeTestImage(t, 1000, 700)

	extractor := &stubExtractor{result: ocr.ExtractResult{
		Observations: []ocr.Observation{testObservation("9933 7971 8021", 400, 400)},
	}}
	generators := []detectors.Generator{detectors.NewPatternDetector(detectors.PIIPatterns)}

	p := New(extractor, generators, mask.NewEngineWithSeed(1), nil)
	result, err := p.Preview(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.PreviewPath == "" {
		t.Error("Expected a preview artifact")
	}
	if result.MaskedPath != "" || result.ComparisonPath != "" {
		t.Error("Preview must not produce masked or comparison artifacts")
	}
	if len(result.Entities) != 1 {
		t.Errorf("Expected 1 entity, got %d", len(result.Entities))
	}
}

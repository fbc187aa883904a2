package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/hannes/idshield/geometry"
)

// minWordConfidence drops noise words the recognizer is unsure about.
const minWordConfidence = 0.30

// TesseractEngine implements Engine using the gosseract client. Two
// configurations are registered: the default single-block layout pass, which
// produces the most precise word boxes, and a sparse-text pass with
// additional scripts for the bilingual regions of identity cards.
type TesseractEngine struct {
	name          string
	languages     []string
	pageSegMode   gosseract.PageSegMode
	clientFactory func() *gosseract.Client
}

func init() {
	RegisterEngineFactory(EngineNameTesseract, func(config map[string]interface{}) (Engine, error) {
		return newTesseractEngine(EngineNameTesseract, languagesFromConfig(config, []string{"eng"}), gosseract.PSM_SINGLE_BLOCK), nil
	})
	RegisterEngineFactory(EngineNameTesseractScript, func(config map[string]interface{}) (Engine, error) {
		return newTesseractEngine(EngineNameTesseractScript, languagesFromConfig(config, []string{"eng", "hin"}), gosseract.PSM_SPARSE_TEXT), nil
	})
}

func newTesseractEngine(name string, languages []string, psm gosseract.PageSegMode) *TesseractEngine {
	return &TesseractEngine{
		name:          name,
		languages:     languages,
		pageSegMode:   psm,
		clientFactory: gosseract.NewClient,
	}
}

func languagesFromConfig(config map[string]interface{}, fallback []string) []string {
	raw, ok := config["languages"].([]string)
	if !ok || len(raw) == 0 {
		return fallback
	}
	return raw
}

func (e *TesseractEngine) Name() string { return e.name }

// Recognize runs one OCR pass over the image and returns per-word
// observations with pixel bounding boxes.
func (e *TesseractEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImage(input.Path); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	languages := input.Languages
	if len(languages) == 0 {
		languages = e.languages
	}
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetPageSegMode(e.pageSegMode); err != nil {
		return Result{}, fmt.Errorf("set page segmentation mode: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, fmt.Errorf("word bounding boxes: %w", err)
	}

	observations := make([]Observation, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		confidence := b.Confidence / 100.0
		if word == "" || confidence < minWordConfidence {
			continue
		}
		observations = append(observations, Observation{
			Text: word,
			Box: geometry.Box{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
			Confidence: confidence,
			Source:     e.name,
		})
	}

	return Result{
		Observations: observations,
		PlainText:    strings.TrimSpace(text),
	}, nil
}

// Close implements the Engine interface. Clients are created per call, so
// there is nothing to release.
func (e *TesseractEngine) Close() error {
	return nil
}

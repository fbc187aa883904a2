package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"github.com/hannes/idshield/mask"
	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
	"github.com/hannes/idshield/pii/detectors"
)

// Extractor produces raw text observations for one image. *ocr.Service
// satisfies it; tests substitute stubs.
type Extractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractResult, error)
}

// Pipeline orchestrates one redaction run: extract text, reconcile blocks,
// propose candidates with every generator, reconcile entities, then render
// the masked, preview and comparison artifacts. Extraction failure is fatal;
// every later stage failure is logged and skipped so a processing bug never
// returns an unmasked document as a success.
type Pipeline struct {
	extractor  Extractor
	generators []detectors.Generator
	masker     *mask.Engine
	store      pii.DetectionStore
}

// New creates a pipeline. The store may be nil when detection auditing is
// disabled.
func New(extractor Extractor, generators []detectors.Generator, masker *mask.Engine, store pii.DetectionStore) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		generators: generators,
		masker:     masker,
		store:      store,
	}
}

// DetectedEntity is the wire form of one detection in a pipeline result.
type DetectedEntity struct {
	Text       string  `json:"text"`
	EntityType string  `json:"entity_type"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

// Statistics summarizes one run.
type Statistics struct {
	TotalTextBlocks  int            `json:"total_text_blocks"`
	DetectedPIICount int            `json:"detected_pii_count"`
	EntityTypes      []string       `json:"entity_types"`
	EntityCounts     map[string]int `json:"entity_counts"`
	Methods          []string       `json:"detection_methods"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Success        bool             `json:"success"`
	RunID          string           `json:"run_id"`
	OriginalPath   string           `json:"original_path"`
	MaskedPath     string           `json:"masked_path,omitempty"`
	PreviewPath    string           `json:"preview_path,omitempty"`
	ComparisonPath string           `json:"comparison_path,omitempty"`
	Entities       []DetectedEntity `json:"detected_entities"`
	ProcessingTime float64          `json:"processing_time"`
	ExtractedText  string           `json:"extracted_text"`
	Statistics     Statistics       `json:"statistics"`
}

// Process runs the full pipeline over one image file.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logPrefix := fmt.Sprintf("[run %s]", runID[:8])

	width, height, err := imageDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	// Stage 1: extraction. The only fatal stage.
	extracted, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}
	log.Printf("%s extracted %d observations from %s", logPrefix, len(extracted.Observations), filepath.Base(path))

	// Stage 2: observation reconciliation into canonical blocks.
	blocks := ocr.Reconcile(extracted.Observations)

	// Stage 3: candidate generation, one goroutine per generator over the
	// shared read-only block list.
	candidates, methods := p.propose(ctx, blocks, logPrefix)

	// Stage 4: entity reconciliation. Never empty: falls back to template
	// regions when no generator produced anything.
	entities := pii.Reconcile(candidates, width, height)
	log.Printf("%s reconciled %d candidates into %d entities", logPrefix, len(candidates), len(entities))

	result := &Result{
		Success:       true,
		RunID:         runID,
		OriginalPath:  path,
		Entities:      toDetected(entities),
		ExtractedText: extracted.PlainText,
		Statistics:    buildStatistics(len(blocks), entities, methods),
	}

	// Stage 5: artifacts. Failures here are logged and leave the affected
	// path empty.
	maskedPath, err := p.masker.MaskFile(path, entities)
	if err != nil {
		log.Printf("%s masking failed: %v", logPrefix, err)
	} else {
		result.MaskedPath = maskedPath
	}

	previewPath, err := p.masker.PreviewFile(path, entities)
	if err != nil {
		log.Printf("%s preview rendering failed: %v", logPrefix, err)
	} else {
		result.PreviewPath = previewPath
	}

	if result.MaskedPath != "" {
		comparisonPath, err := p.masker.ComparisonFile(path, result.MaskedPath)
		if err != nil {
			log.Printf("%s comparison rendering failed: %v", logPrefix, err)
		} else {
			result.ComparisonPath = comparisonPath
		}
	}

	// Stage 6: optional audit trail.
	if p.store != nil {
		if err := p.storeDetections(ctx, runID, path, entities); err != nil {
			log.Printf("%s failed to store detections: %v", logPrefix, err)
		}
	}

	result.ProcessingTime = time.Since(start).Seconds()
	return result, nil
}

// Preview runs detection only and renders the preview artifact, leaving the
// original pixels untouched. Used to inspect what a full run would redact.
func (p *Pipeline) Preview(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logPrefix := fmt.Sprintf("[run %s]", runID[:8])

	width, height, err := imageDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	extracted, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}

	blocks := ocr.Reconcile(extracted.Observations)
	candidates, methods := p.propose(ctx, blocks, logPrefix)
	entities := pii.Reconcile(candidates, width, height)

	result := &Result{
		Success:       true,
		RunID:         runID,
		OriginalPath:  path,
		Entities:      toDetected(entities),
		ExtractedText: extracted.PlainText,
		Statistics:    buildStatistics(len(blocks), entities, methods),
	}

	previewPath, err := p.masker.PreviewFile(path, entities)
	if err != nil {
		log.Printf("%s preview rendering failed: %v", logPrefix, err)
	} else {
		result.PreviewPath = previewPath
	}

	result.ProcessingTime = time.Since(start).Seconds()
	return result, nil
}

// propose fans out to all generators in parallel and merges their candidates.
// A generator that errors or panics contributes nothing.
func (p *Pipeline) propose(ctx context.Context, blocks []ocr.Block, logPrefix string) ([]pii.Entity, []string) {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []pii.Entity
		methods    []string
	)

	for _, gen := range p.generators {
		wg.Add(1)
		go func(g detectors.Generator) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("%s generator %s panicked: %v", logPrefix, g.Name(), r)
				}
			}()

			proposed, err := g.Propose(ctx, blocks)
			if err != nil {
				log.Printf("%s generator %s failed: %v", logPrefix, g.Name(), err)
				return
			}

			mu.Lock()
			candidates = append(candidates, proposed...)
			methods = append(methods, g.Name())
			mu.Unlock()
		}(gen)
	}
	wg.Wait()

	return candidates, methods
}

func (p *Pipeline) storeDetections(ctx context.Context, runID, path string, entities []pii.Entity) error {
	records := make([]pii.DetectionRecord, 0, len(entities))
	now := time.Now()
	for _, e := range entities {
		records = append(records, pii.DetectionRecord{
			RunID:      runID,
			Filename:   filepath.Base(path),
			Text:       e.Text,
			EntityType: e.Type,
			Confidence: e.Confidence,
			Tier:       string(pii.ClassifyTier(e.Type)),
			CreatedAt:  now,
		})
	}
	return p.store.StoreDetections(ctx, records)
}

func toDetected(entities []pii.Entity) []DetectedEntity {
	out := make([]DetectedEntity, 0, len(entities))
	for _, e := range entities {
		out = append(out, DetectedEntity{
			Text:       e.Text,
			EntityType: e.Type,
			Confidence: math.Round(e.Confidence*1000) / 1000,
			BBox:       e.Box.Array(),
		})
	}
	return out
}

func buildStatistics(blockCount int, entities []pii.Entity, methods []string) Statistics {
	counts := make(map[string]int)
	for _, e := range entities {
		counts[e.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	sort.Strings(methods)

	return Statistics{
		TotalTextBlocks:  blockCount,
		DetectedPIICount: len(entities),
		EntityTypes:      types,
		EntityCounts:     counts,
		Methods:          methods,
	}
}

// imageDimensions reads just the header of the image file.
func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

package ocr

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// ExtractResult aggregates the observations of every engine that succeeded
// on one document.
type ExtractResult struct {
	Observations []Observation
	PlainText    string
	EngineCounts map[string]int
	EnginesUsed  []string
}

// Service fans one document image out to every configured extraction engine
// and collects their observations. Engines are expensive to initialize and
// are constructed once per process; the service is safe for concurrent use
// because engines hold no per-request state.
type Service struct {
	engines   []Engine
	languages []string
}

// NewService creates an extraction service over the given engines.
func NewService(languages []string, engines ...Engine) *Service {
	return &Service{engines: engines, languages: languages}
}

// Extract runs every engine against the image. A single engine failure is
// logged and skipped; the call fails only when no engine produced a result,
// since without text there is nothing to protect.
func (s *Service) Extract(ctx context.Context, path string) (ExtractResult, error) {
	if len(s.engines) == 0 {
		return ExtractResult{}, fmt.Errorf("no extraction engines configured")
	}

	result := ExtractResult{EngineCounts: make(map[string]int)}
	var texts []string
	succeeded := 0

	for _, engine := range s.engines {
		res, err := engine.Recognize(ctx, Input{Path: path, Languages: s.languages})
		if err != nil {
			log.Printf("[ocr] engine %s failed: %v", engine.Name(), err)
			continue
		}
		succeeded++
		result.Observations = append(result.Observations, res.Observations...)
		result.EngineCounts[engine.Name()] = len(res.Observations)
		result.EnginesUsed = append(result.EnginesUsed, engine.Name())
		if res.PlainText != "" {
			texts = append(texts, res.PlainText)
		}
	}

	if succeeded == 0 {
		return ExtractResult{}, fmt.Errorf("extraction failed on all %d engines", len(s.engines))
	}

	result.PlainText = strings.Join(texts, " ")
	return result, nil
}

// Close releases every engine.
func (s *Service) Close() error {
	var firstErr error
	for _, engine := range s.engines {
		if err := engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

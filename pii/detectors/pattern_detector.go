package detectors

import (
	"context"
	"regexp"
	"strings"

	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
)

// PatternDetector implements Generator using the consolidated regex table.
type PatternDetector struct {
	patterns map[string][]*regexp.Regexp
}

// NewPatternDetector compiles the given pattern table.
func NewPatternDetector(table map[string][]string) *PatternDetector {
	compiled := make(map[string][]*regexp.Regexp, len(table))
	for entityType, patterns := range table {
		regexps := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			regexps = append(regexps, regexp.MustCompile(p))
		}
		compiled[entityType] = regexps
	}
	return &PatternDetector{patterns: compiled}
}

// Name returns the name of this generator
func (d *PatternDetector) Name() string {
	return GeneratorNamePattern
}

// Propose matches every pattern against every block. Blocks containing an
// exclusion phrase yield no candidates regardless of what else matches. A
// national-ID match that is only a 4-digit fragment is promoted only when
// the whole block text equals the fragment, which catches ID numbers printed
// as separate groups without firing on page numbers.
func (d *PatternDetector) Propose(ctx context.Context, blocks []ocr.Block) ([]pii.Entity, error) {
	var entities []pii.Entity

	for _, block := range blocks {
		text := strings.TrimSpace(block.Text)
		if text == "" || pii.IsExcluded(text) {
			continue
		}

		for entityType, regexps := range d.patterns {
			for _, re := range regexps {
				for _, match := range re.FindAllString(text, -1) {
					if entityType == pii.TypeNationalID && isShortIDFragment(match) && text != match {
						continue
					}
					entities = append(entities, pii.Entity{
						Text:       match,
						Type:       entityType,
						Confidence: patternConfidence(entityType, match),
						Box:        block.Box,
					})
				}
			}
		}
	}

	return entities, nil
}

// Close implements the Generator interface
func (d *PatternDetector) Close() error {
	return nil
}

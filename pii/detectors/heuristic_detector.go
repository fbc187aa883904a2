package detectors

import (
	"context"
	"regexp"
	"strings"

	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
)

// HeuristicDetector implements Generator with first-match critical rules:
// each block yields at most one candidate, from the most specific rule that
// fires. It catches whole fields (the full name line, the full address line)
// where the pattern detector extracts only the matching substring, and it
// understands bilingual field labels that are awkward to express as word
// boundary regexes.
type HeuristicDetector struct {
	rules []heuristicRule
}

type heuristicRule struct {
	re         *regexp.Regexp
	keywords   []string
	entityType string
	confidence float64
	minWords   int
}

// NewHeuristicDetector builds the detector with its fixed rule order, most
// specific first.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{rules: []heuristicRule{
		{re: regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`), entityType: pii.TypeNationalID, confidence: 0.95},
		{re: regexp.MustCompile(`\b\d{12}\b`), entityType: pii.TypeNationalID, confidence: 0.95},
		{re: regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`), entityType: pii.TypeTaxID, confidence: 0.95},
		{re: regexp.MustCompile(`\b[6-9]\d{9}\b`), entityType: pii.TypePhoneNumber, confidence: 0.9},
		{re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), entityType: pii.TypeEmail, confidence: 0.9},
		{re: regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`), entityType: pii.TypeDateTime, confidence: 0.85},
		{re: regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`), entityType: pii.TypePerson, confidence: 0.8, minWords: 2},
		{keywords: []string{"name", "नाम", "father", "पिता", "mother", "माता", "parent"}, entityType: pii.TypePerson, confidence: 0.7},
		{keywords: []string{
			"address", "पता", "village", "गाँव", "city", "शहर", "street", "road", "lane",
			"colony", "sector", "flat", "apartment", "house", "building",
			"near", "opposite", "behind", "area", "locality",
			"postal", "pin", "district", "state",
		}, entityType: pii.TypeLocation, confidence: 0.75},
	}}
}

// Name returns the name of this generator
func (d *HeuristicDetector) Name() string {
	return GeneratorNameHeuristic
}

// Propose applies the rules to each block and emits the whole block text as
// the candidate for the first rule that fires.
func (d *HeuristicDetector) Propose(ctx context.Context, blocks []ocr.Block) ([]pii.Entity, error) {
	var entities []pii.Entity

	for _, block := range blocks {
		text := strings.TrimSpace(block.Text)
		if text == "" || pii.IsExcluded(text) {
			continue
		}

		for _, rule := range d.rules {
			if !rule.matches(text) {
				continue
			}
			entities = append(entities, pii.Entity{
				Text:       text,
				Type:       rule.entityType,
				Confidence: rule.confidence,
				Box:        block.Box,
			})
			break
		}
	}

	return entities, nil
}

func (r heuristicRule) matches(text string) bool {
	if r.re != nil {
		if !r.re.MatchString(text) {
			return false
		}
		if r.minWords > 0 && len(strings.Fields(text)) < r.minWords {
			return false
		}
		return true
	}

	lower := strings.ToLower(text)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Close implements the Generator interface
func (d *HeuristicDetector) Close() error {
	return nil
}

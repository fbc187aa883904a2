package pii

import (
	"sort"
	"strings"
)

// Reconcile merges the candidate entities of all generators into the
// authoritative set:
//
//  1. native entity types are normalized into the shared enumeration;
//  2. candidates whose text matches an exclusion phrase are dropped;
//  3. the rest are sorted by confidence descending and deduplicated by
//     case-insensitive exact text, keeping the first occurrence; identical
//     text is assumed to denote identical real-world PII, even across types
//     and generators;
//  4. if nothing survives, the template-derived fallback entities for the
//     image dimensions are substituted so the document is never returned
//     unmasked.
//
// A generator that failed is simply absent from candidates; the reconciler
// never sees generator-level errors.
func Reconcile(candidates []Entity, imageWidth, imageHeight int) []Entity {
	normalized := make([]Entity, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Text) == "" || IsExcluded(c.Text) {
			continue
		}
		c.Type = NormalizeType(c.Type)
		normalized = append(normalized, c)
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Confidence > normalized[j].Confidence
	})

	seen := make(map[string]struct{}, len(normalized))
	unique := make([]Entity, 0, len(normalized))
	for _, c := range normalized {
		key := strings.ToLower(c.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}

	if len(unique) == 0 {
		return FallbackEntities(imageWidth, imageHeight)
	}
	return unique
}

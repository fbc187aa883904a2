package detectors

import (
	"context"
	"fmt"
	"sort"

	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
)

const (
	GeneratorNamePattern   = "pattern_detector"
	GeneratorNameHeuristic = "heuristic_detector"
	GeneratorNameNER       = "ner_detector"
)

// Generator proposes candidate PII entities over the canonical text blocks
// of one document. An error marks an internal failure the orchestrator logs;
// the generator's contribution is then simply empty and the pipeline
// proceeds.
type Generator interface {
	Name() string
	Propose(ctx context.Context, blocks []ocr.Block) ([]pii.Entity, error)
	Close() error
}

type NewGeneratorFunc func(config map[string]interface{}) (Generator, error)

var generatorFactories = make(map[string]NewGeneratorFunc)

func RegisterGeneratorFactory(name string, factory NewGeneratorFunc) {
	generatorFactories[name] = factory
}

func NewGenerator(name string, config map[string]interface{}) (Generator, error) {
	factory, ok := generatorFactories[name]
	if !ok {
		return nil, fmt.Errorf("generator factory not found for name: %s", name)
	}
	return factory(config)
}

// AvailableGenerators returns the names of all registered factories. An
// optional engine whose model files are missing never appears here; absence
// is a capability query, not a runtime error.
func AvailableGenerators() []string {
	names := make([]string, 0, len(generatorFactories))
	for name := range generatorFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterGeneratorFactory(GeneratorNamePattern, func(config map[string]interface{}) (Generator, error) {
		return NewPatternDetector(PIIPatterns), nil
	})

	RegisterGeneratorFactory(GeneratorNameHeuristic, func(config map[string]interface{}) (Generator, error) {
		return NewHeuristicDetector(), nil
	})
}

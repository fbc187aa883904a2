package ocr

import (
	"context"
	"fmt"
	"sort"

	"github.com/hannes/idshield/geometry"
)

const (
	EngineNameTesseract       = "tesseract"
	EngineNameTesseractScript = "tesseract-script"
)

// Observation is a single engine's reading of one text region. Observations
// are immutable and are discarded once reconciled into blocks.
type Observation struct {
	Text       string
	Box        geometry.Box
	Confidence float64
	Source     string
}

// Block is the canonical text region selected from a position cluster of
// observations. Blocks are ordered top-to-bottom then left-to-right to
// approximate reading order.
type Block struct {
	Text       string
	Box        geometry.Box
	Confidence float64
	Source     string
}

// Input encapsulates a single image submitted for recognition.
type Input struct {
	// Path points at the encoded image file (PNG or JPEG).
	Path string
	// Languages is a list of trained-data hints (e.g. "eng", "hin").
	Languages []string
}

// Result captures one engine's output for a single image.
type Result struct {
	Observations []Observation
	PlainText    string
}

// Engine is the text-recognition provider contract: one image in, one set of
// positioned observations out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
	Close() error
}

type NewEngineFunc func(config map[string]interface{}) (Engine, error)

var engineFactories = make(map[string]NewEngineFunc)

func RegisterEngineFactory(name string, factory NewEngineFunc) {
	engineFactories[name] = factory
}

func NewEngine(name string, config map[string]interface{}) (Engine, error) {
	factory, ok := engineFactories[name]
	if !ok {
		return nil, fmt.Errorf("engine factory not found for name: %s", name)
	}
	return factory(config)
}

// AvailableEngines returns the names of all registered engine factories.
// Absence of an optional engine shows up here as "not registered", never as
// an error at recognition time.
func AvailableEngines() []string {
	names := make([]string, 0, len(engineFactories))
	for name := range engineFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sourcePreference ranks extraction engines by geometric precision; lower
// index wins when a cluster holds observations from several engines.
var sourcePreference = []string{
	EngineNameTesseract,
	EngineNameTesseractScript,
}

func sourceRank(name string) int {
	for i, n := range sourcePreference {
		if n == name {
			return i
		}
	}
	return len(sourcePreference)
}

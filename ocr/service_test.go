package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/hannes/idshield/geometry"
)

// stubEngine implements Engine for testing
type stubEngine struct {
	name   string
	result Result
	err    error
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return s.result, s.err
}

func (s *stubEngine) Close() error { return nil }

func TestExtract_CollectsAllEngines(t *testing.T) {
	a := &stubEngine{name: "a", result: Result{
		Observations: []Observation{{Text: "hello", Box: geometry.Box{X: 1, Y: 2, Width: 50, Height: 20}, Confidence: 0.9, Source: "a"}},
		PlainText:    "hello",
	}}
	b := &stubEngine{name: "b", result: Result{
		Observations: []Observation{{Text: "world", Box: geometry.Box{X: 1, Y: 40, Width: 50, Height: 20}, Confidence: 0.8, Source: "b"}},
		PlainText:    "world",
	}}

	svc := NewService([]string{"eng"}, a, b)
	got, err := svc.Extract(context.Background(), "card.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got.Observations) != 2 {
		t.Errorf("Expected 2 observations, got %d", len(got.Observations))
	}
	if got.PlainText != "hello world" {
		t.Errorf("Unexpected plain text: %q", got.PlainText)
	}
	if got.EngineCounts["a"] != 1 || got.EngineCounts["b"] != 1 {
		t.Errorf("Unexpected engine counts: %v", got.EngineCounts)
	}
}

func TestExtract_SkipsFailingEngine(t *testing.T) {
	bad := &stubEngine{name: "bad", err: errors.New("boom")}
	good := &stubEngine{name: "good", result: Result{
		Observations: []Observation{{Text: "ok", Box: geometry.Box{X: 1, Y: 2, Width: 10, Height: 10}, Confidence: 0.9, Source: "good"}},
	}}

	svc := NewService(nil, bad, good)
	got, err := svc.Extract(context.Background(), "card.png")
	if err != nil {
		t.Fatalf("Expected partial success, got error: %v", err)
	}
	if len(got.Observations) != 1 {
		t.Errorf("Expected 1 observation, got %d", len(got.Observations))
	}
	if len(got.EnginesUsed) != 1 || got.EnginesUsed[0] != "good" {
		t.Errorf("Unexpected engines used: %v", got.EnginesUsed)
	}
}

func TestExtract_FailsWhenAllEnginesFail(t *testing.T) {
	svc := NewService(nil, &stubEngine{name: "a", err: errors.New("x")}, &stubEngine{name: "b", err: errors.New("y")})
	if _, err := svc.Extract(context.Background(), "card.png"); err == nil {
		t.Error("Expected error when every engine fails")
	}
}

func TestExtract_FailsWithoutEngines(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Extract(context.Background(), "card.png"); err == nil {
		t.Error("Expected error when no engines are configured")
	}
}

package detectors

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/hannes/idshield/geometry"
	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
)

// ModelManager manages the NER model lifecycle with thread-safe hot reload
type ModelManager struct {
	mu               sync.RWMutex
	currentGenerator Generator
	modelDirectory   string
	isHealthy        bool
	lastError        error
}

// ModelConfig holds paths to required model files
type ModelConfig struct {
	ModelPath     string
	TokenizerPath string
	LabelMapPath  string
}

// NewModelManager creates a new model manager and initializes with the given directory
func NewModelManager(directory string) (*ModelManager, error) {
	mm := &ModelManager{
		modelDirectory: directory,
		isHealthy:      false,
	}

	// Perform initial load - don't fail if model can't load, just mark as unhealthy
	if err := mm.ReloadModel(directory); err != nil {
		log.Printf("[ModelManager] Warning: Failed to load initial model: %v", err)
		log.Printf("[ModelManager] Model manager created but marked as unhealthy")
		// Don't return error - the NER generator is optional and the server
		// runs with the remaining generators
	}

	return mm, nil
}

// Name implements the Generator interface; the manager stands in for the NER
// generator in the pipeline so a hot reload takes effect on the next run.
func (mm *ModelManager) Name() string {
	return GeneratorNameNER
}

// Propose implements the Generator interface by delegating to the current
// generator. While the model is unhealthy every run reports a generator
// failure and contributes nothing, which the pipeline treats as non-fatal.
func (mm *ModelManager) Propose(ctx context.Context, blocks []ocr.Block) ([]pii.Entity, error) {
	generator, err := mm.GetGenerator()
	if err != nil {
		return nil, err
	}
	return generator.Propose(ctx, blocks)
}

// GetGenerator returns the current NER generator in a thread-safe manner
func (mm *ModelManager) GetGenerator() (Generator, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.isHealthy {
		return nil, fmt.Errorf("model is unhealthy: %w", mm.lastError)
	}

	if mm.currentGenerator == nil {
		return nil, fmt.Errorf("no generator available")
	}

	return mm.currentGenerator, nil
}

// ReloadModel reloads the model from the specified directory with validation
func (mm *ModelManager) ReloadModel(newDirectory string) error {
	log.Printf("[ModelManager] Reloading model from directory: %s", newDirectory)

	// Step 1: Validate directory structure
	config, err := mm.validateDirectory(newDirectory)
	if err != nil {
		mm.mu.Lock()
		mm.isHealthy = false
		mm.lastError = err
		mm.mu.Unlock()
		log.Printf("[ModelManager] Directory validation failed: %v", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	// Step 2: Attempt to load new generator (outside lock to minimize blocking)
	log.Printf("[ModelManager] Loading new generator from: %s", config.ModelPath)
	newGenerator, err := NewNERDetector(
		config.ModelPath,
		config.TokenizerPath,
		config.LabelMapPath,
	)
	if err != nil {
		mm.mu.Lock()
		mm.isHealthy = false
		mm.lastError = err
		mm.mu.Unlock()
		log.Printf("[ModelManager] Failed to load model: %v", err)
		return fmt.Errorf("failed to load model: %w", err)
	}

	// Step 3: Run validation inference to ensure model works
	log.Printf("[ModelManager] Running validation inference")
	testBlocks := []ocr.Block{{
		Text:       "Test with John Smith",
		Box:        geometry.Box{X: 0, Y: 0, Width: 100, Height: 20},
		Confidence: 1.0,
	}}
	_, err = newGenerator.Propose(context.Background(), testBlocks)
	if err != nil {
		// Close the failed generator
		if closeErr := newGenerator.Close(); closeErr != nil {
			log.Printf("[ModelManager] Warning: failed to close failed generator: %v", closeErr)
		}

		mm.mu.Lock()
		mm.isHealthy = false
		mm.lastError = err
		mm.mu.Unlock()
		log.Printf("[ModelManager] Model validation inference failed: %v", err)
		return fmt.Errorf("model validation failed: %w", err)
	}

	// Step 4: Swap generators atomically (critical section)
	mm.mu.Lock()
	oldGenerator := mm.currentGenerator
	mm.currentGenerator = newGenerator
	mm.modelDirectory = newDirectory
	mm.isHealthy = true
	mm.lastError = nil
	mm.mu.Unlock()

	log.Printf("[ModelManager] Model swap completed successfully")

	// Step 5: Close old generator outside lock to minimize critical section
	if oldGenerator != nil {
		log.Printf("[ModelManager] Closing old generator")
		if err := oldGenerator.Close(); err != nil {
			log.Printf("[ModelManager] Warning: failed to close old generator: %v", err)
		}
	}

	log.Printf("[ModelManager] Model reload complete for directory: %s", newDirectory)
	return nil
}

// GetDirectory returns the directory of the current model
func (mm *ModelManager) GetDirectory() string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.modelDirectory
}

// IsHealthy returns whether the current model is healthy
func (mm *ModelManager) IsHealthy() bool {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.isHealthy
}

// GetLastError returns the last error encountered (if any)
func (mm *ModelManager) GetLastError() error {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.lastError
}

// GetInfo returns information about the current model state
func (mm *ModelManager) GetInfo() map[string]interface{} {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	info := map[string]interface{}{
		"directory": mm.modelDirectory,
		"healthy":   mm.isHealthy,
	}

	if mm.lastError != nil {
		info["error"] = mm.lastError.Error()
	} else {
		info["error"] = nil
	}

	return info
}

// validateDirectory checks that the directory exists and contains all required files
func (mm *ModelManager) validateDirectory(dir string) (*ModelConfig, error) {
	// Check directory exists
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory does not exist: %s", dir)
		}
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	// Required files
	requiredFiles := []string{
		"model_quantized.onnx",
		"tokenizer.json",
		"label_mappings.json",
	}

	// Check for presence of all required files
	var missingFiles []string
	for _, filename := range requiredFiles {
		fullPath := filepath.Join(dir, filename)
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			missingFiles = append(missingFiles, filename)
		}
	}

	if len(missingFiles) > 0 {
		return nil, fmt.Errorf("missing required files in directory: %v", missingFiles)
	}

	// Return configuration with absolute paths
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir // Fall back to original if abs fails
	}

	config := &ModelConfig{
		ModelPath:     filepath.Join(absDir, "model_quantized.onnx"),
		TokenizerPath: filepath.Join(absDir, "tokenizer.json"),
		LabelMapPath:  filepath.Join(absDir, "label_mappings.json"),
	}

	log.Printf("[ModelManager] Validated directory: %s", absDir)
	return config, nil
}

// Close closes the current generator and cleans up resources
func (mm *ModelManager) Close() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.currentGenerator != nil {
		log.Printf("[ModelManager] Closing current generator")
		if err := mm.currentGenerator.Close(); err != nil {
			return fmt.Errorf("failed to close generator: %w", err)
		}
		mm.currentGenerator = nil
	}

	mm.isHealthy = false
	return nil
}

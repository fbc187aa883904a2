package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != ":8000" {
		t.Errorf("Unexpected default port: %s", cfg.Port)
	}
	if cfg.UploadDir != "uploads" {
		t.Errorf("Unexpected upload dir: %s", cfg.UploadDir)
	}
	if len(cfg.OCRLanguages) == 0 {
		t.Error("Expected default OCR languages")
	}
	if cfg.Database.Enabled {
		t.Error("Database must be disabled by default")
	}
	if cfg.Logging.LogVerbose {
		t.Error("Verbose logging of entity text must be off by default")
	}
	if cfg.MaxUploadBytes <= 0 {
		t.Error("Expected a positive upload size limit")
	}
}

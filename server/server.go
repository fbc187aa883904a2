package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hannes/idshield/config"
	"github.com/hannes/idshield/pii"
	"github.com/hannes/idshield/pii/detectors"
	"github.com/hannes/idshield/pipeline"
)

// Server represents the HTTP server
type Server struct {
	config       *config.Config
	pipeline     *pipeline.Pipeline
	store        pii.DetectionStore
	modelManager *detectors.ModelManager
	limiter      *rate.Limiter
}

// NewServer creates a new server instance. The model manager is optional and
// may be nil when no NER model directory is configured.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, store pii.DetectionStore, manager *detectors.ModelManager) (*Server, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Server{
		config:       cfg,
		pipeline:     p,
		store:        store,
		modelManager: manager,
		limiter:      rate.NewLimiter(rate.Limit(cfg.UploadRateLimit), cfg.UploadRateBurst),
	}, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting redaction service on port %s", s.config.Port)
	log.Printf("Upload directory: %s", s.config.UploadDir)

	if s.config.Database.Enabled {
		log.Println("Detection audit store enabled")
	} else {
		log.Println("Using in-memory detection store")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthCheck)
	mux.HandleFunc("/upload-image", s.handleUpload)
	mux.HandleFunc("/preview-detection", s.handlePreview)
	mux.HandleFunc("/uploads/", s.handleServeUpload)
	mux.HandleFunc("/api/statistics", s.handleStatistics)
	mux.HandleFunc("/cleanup", s.handleCleanup)
	mux.HandleFunc("/reload-model", s.handleReloadModel)

	// Create server with timeout configuration
	server := &http.Server{
		Addr:         s.config.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// healthCheck provides a simple health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.corsHandler(w, r)

	health := map[string]interface{}{
		"status":  "healthy",
		"service": "ID Shield",
	}
	if s.modelManager != nil {
		health["model"] = s.modelManager.GetInfo()
	}
	writeJSON(w, http.StatusOK, health)
}

// handleReloadModel hot-reloads the NER model. An optional JSON body with a
// "directory" field switches to a new model directory; otherwise the current
// directory is reloaded in place.
func (s *Server) handleReloadModel(w http.ResponseWriter, r *http.Request) {
	s.corsHandler(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.modelManager == nil {
		writeError(w, http.StatusNotFound, "no model manager configured")
		return
	}

	var req struct {
		Directory string `json:"directory"`
	}
	if r.Body != nil {
		// An empty or absent body means reload in place.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	directory := req.Directory
	if directory == "" {
		directory = s.modelManager.GetDirectory()
	}

	if err := s.modelManager.ReloadModel(directory); err != nil {
		log.Printf("Model reload failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
			"model": s.modelManager.GetInfo(),
		})
		return
	}

	log.Printf("Model reloaded from %s", directory)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"model":  s.modelManager.GetInfo(),
	})
}

// handleUpload accepts a multipart image, runs the full redaction pipeline
// and returns the result with artifact paths.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.runPipeline(w, r, s.pipeline.Process)
}

// handlePreview accepts a multipart image and runs detection only, returning
// the detected entities and a preview artifact without masking anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.runPipeline(w, r, s.pipeline.Preview)
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, path string) (*pipeline.Result, error)) {
	s.corsHandler(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many uploads, slow down")
		return
	}

	path, err := s.saveUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.config.Logging.LogRequests {
		log.Printf("Processing upload %s", filepath.Base(path))
	}

	result, err := run(r.Context(), path)
	if err != nil {
		sentry.CaptureException(err)
		log.Printf("Pipeline failed for %s: %v", filepath.Base(path), err)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	if s.config.Logging.LogDetections {
		log.Printf("Detected %d entities in %s (types: %v)",
			result.Statistics.DetectedPIICount, filepath.Base(path), result.Statistics.EntityTypes)
	}
	if s.config.Logging.LogVerbose {
		for _, e := range result.Entities {
			log.Printf("  %s %q conf=%.3f bbox=%v", e.EntityType, e.Text, e.Confidence, e.BBox)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// saveUpload validates and persists the multipart "file" field under the
// upload directory with a timestamped unique name.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("missing or invalid file field: %w", err)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".png"
	}
	name := fmt.Sprintf("%s_%s%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8], ext)
	path := filepath.Join(s.config.UploadDir, name)

	// #nosec G304 - path is constructed from the configured upload dir and a generated name
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

// handleServeUpload serves artifacts from the upload directory. The name is
// reduced to its base so the directory cannot be escaped.
func (s *Server) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	s.corsHandler(w, r)
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := filepath.Base(strings.TrimPrefix(r.URL.Path, "/uploads/"))
	if name == "." || name == "/" {
		writeError(w, http.StatusBadRequest, "missing file name")
		return
	}

	http.ServeFile(w, r, filepath.Join(s.config.UploadDir, name))
}

// handleStatistics reports counts of stored files by kind plus per-type
// detection counts from the audit store.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.corsHandler(w, r)
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := map[string]interface{}{}
	fileCounts := map[string]int{
		"original":   0,
		"masked":     0,
		"preview":    0,
		"comparison": 0,
	}

	entries, err := os.ReadDir(s.config.UploadDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			switch {
			case strings.Contains(name, "_masked"):
				fileCounts["masked"]++
			case strings.Contains(name, "_preview"):
				fileCounts["preview"]++
			case strings.Contains(name, "_comparison"):
				fileCounts["comparison"]++
			default:
				fileCounts["original"]++
			}
		}
	}
	stats["files"] = fileCounts

	if s.store != nil {
		if counts, err := s.store.CountByType(r.Context()); err == nil {
			stats["detections_by_type"] = counts
		} else {
			log.Printf("Failed to read detection counts: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleCleanup removes all files from the upload directory and expires old
// audit records.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	s.corsHandler(w, r)
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	removed := 0
	entries, err := os.ReadDir(s.config.UploadDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(s.config.UploadDir, entry.Name())); err != nil {
				log.Printf("Failed to remove %s: %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}

	if s.store != nil {
		olderThan := time.Duration(s.config.Database.CleanupHours) * time.Hour
		if n, err := s.store.CleanupOldDetections(r.Context(), olderThan); err != nil {
			log.Printf("Failed to cleanup old detections: %v", err)
		} else if n > 0 {
			log.Printf("Expired %d old detection records", n)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"removed_files": removed})
}

// corsHandler adds CORS headers to the response
func (s *Server) corsHandler(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "false")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// StartWithErrorHandling starts the server with proper error handling
func (s *Server) StartWithErrorHandling() {
	if err := s.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

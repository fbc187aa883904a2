package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/hannes/idshield/config"
	"github.com/hannes/idshield/mask"
	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
	"github.com/hannes/idshield/pii/detectors"
	"github.com/hannes/idshield/pipeline"
	"github.com/hannes/idshield/server"
)

const TRUE = "true"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file from current directory")
	} else {
		log.Printf("Note: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	if *configPath != "" {
		loadConfigFromFile(*configPath, cfg)
	}

	// Override configuration with environment variables
	loadConfigFromEnv(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Println("Sentry error reporting enabled")
		}
	}

	// OCR engines: every registered engine participates in extraction.
	var engines []ocr.Engine
	for _, name := range ocr.AvailableEngines() {
		engine, err := ocr.NewEngine(name, nil)
		if err != nil {
			log.Printf("Skipping OCR engine %s: %v", name, err)
			continue
		}
		engines = append(engines, engine)
	}
	if len(engines) == 0 {
		log.Fatal("No OCR engines available")
	}
	extractor := ocr.NewService(cfg.OCRLanguages, engines...)
	defer func() {
		if err := extractor.Close(); err != nil {
			log.Printf("Failed to close OCR service: %v", err)
		}
	}()

	generators, modelManager := buildGenerators(cfg)
	defer func() {
		for _, g := range generators {
			if err := g.Close(); err != nil {
				log.Printf("Failed to close generator %s: %v", g.Name(), err)
			}
		}
	}()

	store := buildStore(cfg)
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close detection store: %v", err)
		}
	}()

	p := pipeline.New(extractor, generators, mask.NewEngine(), store)

	srv, err := server.NewServer(cfg, p, store, modelManager)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	srv.StartWithErrorHandling()
}

// buildGenerators creates every registered generator plus the NER model
// manager when a model directory is configured. The manager itself joins the
// generator list so hot reloads take effect without rebuilding the pipeline;
// it is also returned so the server can expose its health and reload surface.
func buildGenerators(cfg *config.Config) ([]detectors.Generator, *detectors.ModelManager) {
	var generators []detectors.Generator
	for _, name := range detectors.AvailableGenerators() {
		g, err := detectors.NewGenerator(name, nil)
		if err != nil {
			log.Printf("Skipping generator %s: %v", name, err)
			continue
		}
		generators = append(generators, g)
	}

	var manager *detectors.ModelManager
	if cfg.NERModelDir != "" {
		var err error
		manager, err = detectors.NewModelManager(cfg.NERModelDir)
		if err != nil {
			log.Printf("Failed to create model manager: %v", err)
			manager = nil
		} else {
			if !manager.IsHealthy() {
				log.Printf("NER model unhealthy, runs proceed without it: %v", manager.GetLastError())
			}
			generators = append(generators, manager)
		}
	}

	names := make([]string, 0, len(generators))
	for _, g := range generators {
		names = append(names, g.Name())
	}
	log.Printf("Active generators: %s", strings.Join(names, ", "))
	return generators, manager
}

// buildStore returns the Postgres audit store when enabled, falling back to
// the in-memory store on any failure.
func buildStore(cfg *config.Config) pii.DetectionStore {
	if !cfg.Database.Enabled {
		return pii.NewInMemoryDetectionStore()
	}

	store, err := pii.NewPostgresDetectionStore(pii.DatabaseConfig{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		Database:     cfg.Database.Database,
		Username:     cfg.Database.Username,
		Password:     cfg.Database.Password,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  time.Duration(cfg.Database.MaxLifetime) * time.Second,
	})
	if err != nil {
		log.Printf("Failed to connect to database, using in-memory store: %v", err)
		return pii.NewInMemoryDetectionStore()
	}
	log.Println("Connected to detection audit database")
	return store
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(path string, cfg *config.Config) {
	// #nosec G304 - Config file path is controlled by application, not user input
	file, err := os.Open(path)
	if err != nil {
		log.Printf("Failed to open config file: %v", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close config file: %v", err)
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		log.Printf("Failed to decode config file: %v", err)
	}
}

// loadConfigFromEnv loads configuration from environment variables
func loadConfigFromEnv(cfg *config.Config) {
	loadApplicationConfig(cfg)
	loadDatabaseConfig(cfg)
	loadLoggingConfig(cfg)
}

// loadApplicationConfig loads application configuration from environment variables
func loadApplicationConfig(cfg *config.Config) {
	if port := os.Getenv("PORT"); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Port = port
	}

	if uploadDir := os.Getenv("UPLOAD_DIR"); uploadDir != "" {
		cfg.UploadDir = uploadDir
	}

	if langs := os.Getenv("OCR_LANGS"); langs != "" {
		cfg.OCRLanguages = strings.Split(langs, ",")
	}

	if modelDir := os.Getenv("NER_MODEL_DIR"); modelDir != "" {
		cfg.NERModelDir = modelDir
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cfg.SentryDSN = dsn
	}

	if limit := os.Getenv("UPLOAD_RATE_LIMIT"); limit != "" {
		if l, err := strconv.ParseFloat(limit, 64); err == nil {
			cfg.UploadRateLimit = l
		}
	}

	if burst := os.Getenv("UPLOAD_RATE_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			cfg.UploadRateBurst = b
		}
	}
}

// loadDatabaseConfig loads database configuration from environment variables
func loadDatabaseConfig(cfg *config.Config) {
	if dbEnabled := os.Getenv("DB_ENABLED"); dbEnabled != "" {
		cfg.Database.Enabled = dbEnabled == TRUE
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.Username = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}

	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	if cleanupHours := os.Getenv("DB_CLEANUP_HOURS"); cleanupHours != "" {
		if hours, err := strconv.Atoi(cleanupHours); err == nil {
			cfg.Database.CleanupHours = hours
		}
	}
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig(cfg *config.Config) {
	if logRequests := os.Getenv("LOG_REQUESTS"); logRequests != "" {
		cfg.Logging.LogRequests = logRequests == TRUE
	}

	if logDetections := os.Getenv("LOG_DETECTIONS"); logDetections != "" {
		cfg.Logging.LogDetections = logDetections == TRUE
	}

	if logVerbose := os.Getenv("LOG_VERBOSE"); logVerbose != "" {
		cfg.Logging.LogVerbose = logVerbose == TRUE
	}
}

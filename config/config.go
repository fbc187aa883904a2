package config

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	LogRequests   bool // Log incoming request metadata
	LogDetections bool // Log detected entity types and counts
	LogVerbose    bool // Log detected entity text (sensitive, off by default)
}

// DatabaseConfig holds detection audit store configuration
type DatabaseConfig struct {
	Enabled      bool   // Whether to persist detections
	Host         string // Database host
	Port         int    // Database port
	Database     string // Database name
	Username     string // Database username
	Password     string // Database password
	SSLMode      string // SSL mode (disable, require, etc.)
	MaxOpenConns int    // Maximum open connections
	MaxIdleConns int    // Maximum idle connections
	MaxLifetime  int    // Connection max lifetime in seconds
	CleanupHours int    // Hours after which to cleanup old detections
}

// Config holds all configuration for the redaction service
type Config struct {
	Port            string
	UploadDir       string
	OCRLanguages    []string
	NERModelDir     string
	SentryDSN       string
	UploadRateLimit float64 // Uploads per second per server
	UploadRateBurst int
	MaxUploadBytes  int64
	Database        DatabaseConfig
	Logging         LoggingConfig
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Port:            ":8000",
		UploadDir:       "uploads",
		OCRLanguages:    []string{"eng", "hin"},
		NERModelDir:     "",
		UploadRateLimit: 2,
		UploadRateBurst: 5,
		MaxUploadBytes:  16 << 20,
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "idshield",
			Username:     "postgres",
			Password:     "",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxLifetime:  300,
			CleanupHours: 24,
		},
		Logging: LoggingConfig{
			LogRequests:   true,
			LogDetections: true,
			LogVerbose:    false, // Entity text stays out of logs unless opted in
		},
	}
}

package pii

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DetectionRecord is one authoritative entity persisted for audit.
type DetectionRecord struct {
	RunID      string
	Filename   string
	Text       string
	EntityType string
	Confidence float64
	Tier       string
	CreatedAt  time.Time
}

// DetectionStore defines the interface for persisting per-run detection
// results.
type DetectionStore interface {
	// StoreDetections stores all authoritative entities of one pipeline run
	StoreDetections(ctx context.Context, records []DetectionRecord) error

	// CountByType returns the number of stored detections per entity type
	CountByType(ctx context.Context) (map[string]int, error)

	// CleanupOldDetections removes records older than the specified duration
	CleanupOldDetections(ctx context.Context, olderThan time.Duration) (int64, error)

	// Close closes the store
	Close() error
}

// PostgresDetectionStore implements DetectionStore for PostgreSQL
type PostgresDetectionStore struct {
	db *sql.DB
}

// NewPostgresDetectionStore creates a new PostgreSQL detection store
func NewPostgresDetectionStore(config DatabaseConfig) (*PostgresDetectionStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createDetectionsTable(db); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &PostgresDetectionStore{db: db}, nil
}

// createDetectionsTable creates the pii_detections table if it doesn't exist
func createDetectionsTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS pii_detections (
		id SERIAL PRIMARY KEY,
		run_id VARCHAR(64) NOT NULL,
		filename VARCHAR(500) NOT NULL,
		entity_text VARCHAR(500) NOT NULL,
		entity_type VARCHAR(50) NOT NULL,
		confidence REAL DEFAULT 1.0,
		tier VARCHAR(16) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_pii_detections_run_id ON pii_detections(run_id);
	CREATE INDEX IF NOT EXISTS idx_pii_detections_entity_type ON pii_detections(entity_type);
	CREATE INDEX IF NOT EXISTS idx_pii_detections_created_at ON pii_detections(created_at);
	`

	_, err := db.Exec(query)
	return err
}

// StoreDetections stores all authoritative entities of one pipeline run
func (p *PostgresDetectionStore) StoreDetections(ctx context.Context, records []DetectionRecord) error {
	query := `
	INSERT INTO pii_detections (run_id, filename, entity_text, entity_type, confidence, tier, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	for _, r := range records {
		if _, err := p.db.ExecContext(ctx, query, r.RunID, r.Filename, r.Text, r.EntityType, r.Confidence, r.Tier); err != nil {
			return err
		}
	}
	return nil
}

// CountByType returns the number of stored detections per entity type
func (p *PostgresDetectionStore) CountByType(ctx context.Context) (map[string]int, error) {
	query := `SELECT entity_type, COUNT(*) FROM pii_detections GROUP BY entity_type`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, err
		}
		counts[entityType] = count
	}
	return counts, rows.Err()
}

// CleanupOldDetections removes records older than the specified duration
func (p *PostgresDetectionStore) CleanupOldDetections(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
	DELETE FROM pii_detections
	WHERE created_at < NOW() - INTERVAL '%d seconds'
	`

	result, err := p.db.ExecContext(ctx, fmt.Sprintf(query, int(olderThan.Seconds())))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Close closes the database connection
func (p *PostgresDetectionStore) Close() error {
	return p.db.Close()
}

// InMemoryDetectionStore implements DetectionStore for in-memory storage
// (fallback when the database is disabled).
type InMemoryDetectionStore struct {
	mu      sync.Mutex
	records []DetectionRecord
}

// NewInMemoryDetectionStore creates a new in-memory detection store
func NewInMemoryDetectionStore() *InMemoryDetectionStore {
	return &InMemoryDetectionStore{}
}

// StoreDetections stores all authoritative entities of one pipeline run
func (i *InMemoryDetectionStore) StoreDetections(ctx context.Context, records []DetectionRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records = append(i.records, records...)
	return nil
}

// CountByType returns the number of stored detections per entity type
func (i *InMemoryDetectionStore) CountByType(ctx context.Context) (map[string]int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	counts := make(map[string]int)
	for _, r := range i.records {
		counts[r.EntityType]++
	}
	return counts, nil
}

// CleanupOldDetections removes records older than the specified duration
func (i *InMemoryDetectionStore) CleanupOldDetections(ctx context.Context, olderThan time.Duration) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	kept := i.records[:0]
	var removed int64
	for _, r := range i.records {
		if r.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	i.records = kept
	return removed, nil
}

// Close is a no-op for in-memory storage
func (i *InMemoryDetectionStore) Close() error {
	return nil
}

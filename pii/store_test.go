package pii

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStore_CountByType(t *testing.T) {
	store := NewInMemoryDetectionStore()
	ctx := context.Background()

	err := store.StoreDetections(ctx, []DetectionRecord{
		{RunID: "r1", EntityType: TypeNationalID, CreatedAt: time.Now()},
		{RunID: "r1", EntityType: TypeNationalID, CreatedAt: time.Now()},
		{RunID: "r1", EntityType: TypePerson, CreatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	counts, err := store.CountByType(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if counts[TypeNationalID] != 2 || counts[TypePerson] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestInMemoryStore_CleanupOldDetections(t *testing.T) {
	store := NewInMemoryDetectionStore()
	ctx := context.Background()

	err := store.StoreDetections(ctx, []DetectionRecord{
		{RunID: "old", EntityType: TypePerson, CreatedAt: time.Now().Add(-48 * time.Hour)},
		{RunID: "new", EntityType: TypePerson, CreatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	removed, err := store.CleanupOldDetections(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed record, got %d", removed)
	}

	counts, _ := store.CountByType(ctx)
	if counts[TypePerson] != 1 {
		t.Errorf("Expected 1 surviving record, got %d", counts[TypePerson])
	}
}

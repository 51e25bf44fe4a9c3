package storage

import (
	"context"
	"testing"

	"evosim/internal/environment"
)

func TestMemoryHistoryStoreAppendAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistoryStore()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for gen := 0; gen < 3; gen++ {
		rec := HistoryRecord{Generation: gen, Stats: environment.Stats{Generation: gen, PopulationSize: 10 + gen}}
		if err := s.AppendHistory(ctx, "run-1", rec); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	history, err := s.GetHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, rec := range history {
		if rec.Generation != i {
			t.Fatalf("history[%d].Generation = %d, want %d", i, rec.Generation, i)
		}
	}
}

func TestMemoryHistoryStoreUnknownRunIsEmpty(t *testing.T) {
	s := NewMemoryHistoryStore()
	_ = s.Init(context.Background())
	history, err := s.GetHistory(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d records", len(history))
	}
}

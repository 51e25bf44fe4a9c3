package storage

import "testing"

func TestNewHistoryStoreMemory(t *testing.T) {
	store, err := NewHistoryStore("memory", "")
	if err != nil {
		t.Fatalf("new memory history store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestNewHistoryStoreUnsupported(t *testing.T) {
	_, err := NewHistoryStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported backend error")
	}
}

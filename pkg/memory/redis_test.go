package memory

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// Integration test against a real Redis server.
// Run with: REDIS_URL=redis://localhost:6379/15 go test ./pkg/memory -run Redis

func TestRedisStoreRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	store, err := NewRedisStore(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	user := "test-" + uuid.NewString()
	defer store.Delete(ctx, user)

	h := New(user, WithStore(store))
	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load of missing key: %v", err)
	}
	h.Append(RoleUser, "hello")
	h.Append(RoleAssistant, "hi there")
	if err := h.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New(user, WithStore(store))
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("expected 2 turns, got %d", loaded.Len())
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "http://not-redis"); err == nil {
		t.Error("expected error for non-redis URL")
	}
}

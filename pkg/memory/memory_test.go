package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestHistoryAppend(t *testing.T) {
	h := New("alice")
	if h.Len() != 0 {
		t.Fatalf("new history should be empty, got %d", h.Len())
	}
	if _, ok := h.Last(); ok {
		t.Error("Last on empty history should report false")
	}

	h.Append(RoleUser, "hello")
	h.Append(RoleAssistant, "hi there")

	turns := h.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "hello" {
		t.Errorf("unexpected first turn %+v", turns[0])
	}
	if last, _ := h.Last(); last.Content != "hi there" {
		t.Errorf("unexpected last turn %+v", last)
	}
	if turns[0].Time.IsZero() {
		t.Error("turn time should be set")
	}

	// Turns returns a copy.
	turns[0].Content = "changed"
	if h.Turns()[0].Content != "hello" {
		t.Error("Turns should not expose internal state")
	}
}

func TestHistoryTruncate(t *testing.T) {
	h := New("alice")
	h.Append(RoleUser, "hello")
	h.Append(RoleAssistant, "hi")
	h.Append(RoleUser, "unanswered")

	h.Truncate(2)
	if h.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", h.Len())
	}
	h.Truncate(5)
	h.Truncate(-1)
	if h.Len() != 2 {
		t.Errorf("out of range truncate should be a no-op, got %d", h.Len())
	}
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := New("bob")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Append(RoleUser, "x")
		}()
	}
	wg.Wait()
	if h.Len() != 50 {
		t.Errorf("expected 50 turns, got %d", h.Len())
	}
}

func TestJSONStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(t.TempDir())

	h := New("alice", WithStore(store))
	h.Append(RoleUser, "hello")
	h.Append(RoleAssistant, "hi there")
	if err := h.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if filepath.Base(store.Path("alice")) != "conversation_history_alice.json" {
		t.Errorf("unexpected file name %s", store.Path("alice"))
	}

	loaded := New("alice", WithStore(store))
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	turns := loaded.Turns()
	if len(turns) != 2 || turns[1].Content != "hi there" || turns[1].Role != RoleAssistant {
		t.Errorf("unexpected turns %+v", turns)
	}
}

func TestLoadLegacyFile(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"alice": [{"role": "user", "content": "hello"}, {"role": "assistant", "content": "hi"}]}`
	if err := os.WriteFile(filepath.Join(dir, "conversation_history_alice.json"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	h := New("alice", WithStore(NewJSONStore(dir)))
	if err := h.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Len() != 2 {
		t.Errorf("expected 2 turns, got %d", h.Len())
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	h := New("nobody", WithStore(NewJSONStore(dir)))
	if err := h.Load(ctx); err != nil {
		t.Errorf("missing file should not be an error, got %v", err)
	}
	if h.Len() != 0 {
		t.Error("missing file should leave history empty")
	}

	os.WriteFile(filepath.Join(dir, "conversation_history_bad.json"), []byte("{not json"), 0o644)
	bad := New("bad", WithStore(NewJSONStore(dir)))
	bad.Append(RoleUser, "kept")
	if err := bad.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
	if bad.Len() != 1 {
		t.Error("failed load should leave history unchanged")
	}
}

func TestSaveMaxTurns(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(t.TempDir())

	h := New("carol", WithStore(store), WithMaxTurns(2))
	for _, c := range []string{"one", "two", "three"} {
		h.Append(RoleUser, c)
	}
	if err := h.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if h.Len() != 3 {
		t.Error("saving must not trim the in-memory history")
	}

	loaded := New("carol", WithStore(store))
	loaded.Load(ctx)
	turns := loaded.Turns()
	if len(turns) != 2 || turns[0].Content != "two" {
		t.Errorf("expected newest two turns, got %+v", turns)
	}
}

func TestJSONStoreUserName(t *testing.T) {
	s := NewJSONStore("/data")
	if got := s.Path("../etc/passwd"); got != "/data/conversation_history_.._etc_passwd.json" {
		t.Errorf("user name not sanitized: %s", got)
	}
}

func TestNoStore(t *testing.T) {
	h := New("dave")
	h.Append(RoleUser, "x")
	if err := h.Save(context.Background()); err != nil {
		t.Errorf("Save without store: %v", err)
	}
	if err := h.Load(context.Background()); err != nil {
		t.Errorf("Load without store: %v", err)
	}
	if h.Len() != 1 {
		t.Error("Load without store should not clear history")
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

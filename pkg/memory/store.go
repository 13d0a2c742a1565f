package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrCorrupt is returned when a stored history cannot be decoded.
var ErrCorrupt = errors.New("memory: corrupt history document")

// Store defines the interface for history persistence backends.
type Store interface {
	// Load returns the stored document for user, or nil if there is none.
	Load(ctx context.Context, user string) ([]byte, error)

	// Save replaces the stored document for user.
	Save(ctx context.Context, user string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// JSONStore implements Store with one JSON file per user.
type JSONStore struct {
	Dir string
}

// NewJSONStore creates a file store rooted at dir.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{Dir: dir}
}

// Path returns the history file for user.
func (s *JSONStore) Path(user string) string {
	return filepath.Join(s.Dir, "conversation_history_"+unsafeName.ReplaceAllString(user, "_")+".json")
}

// Save writes data to the user's file.
func (s *JSONStore) Save(ctx context.Context, user string, data []byte) error {
	if s.Dir != "" && s.Dir != "." {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	path := s.Path(user)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Load reads the user's file.
func (s *JSONStore) Load(ctx context.Context, user string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(user))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Close is a no-op for JSON files.
func (s *JSONStore) Close() error {
	return nil
}

var _ Store = (*JSONStore)(nil)

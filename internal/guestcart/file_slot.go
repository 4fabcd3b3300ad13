package guestcart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSlot stores the guest snapshot as a single JSON file, for embedded and
// development setups without Redis.
type FileSlot struct {
	path string
}

func NewFileSlot(path string) (*FileSlot, error) {
	if path == "" {
		return nil, fmt.Errorf("file slot path required")
	}
	return &FileSlot{path: path}, nil
}

func (s *FileSlot) Read(ctx context.Context) ([]byte, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read guest slot: %w", err)
	}
	return payload, nil
}

func (s *FileSlot) Write(ctx context.Context, payload []byte) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write guest slot: %w", err)
		}
	}
	if err := os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write guest slot: %w", err)
	}
	return nil
}

func (s *FileSlot) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear guest slot: %w", err)
	}
	return nil
}

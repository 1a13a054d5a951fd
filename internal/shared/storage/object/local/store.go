package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"esign-backend/internal/shared/storage/object"
)

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes the reader to disk under the owner's namespace.
func (s *Store) Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (string, int64, string, error) {
	key, err := object.NewKey(ownerID, fileName)
	if err != nil {
		return "", 0, "", err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return "", 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, "", fmt.Errorf("mkdir: %w", err)
	}

	mimeType, head, err := object.Sniff(r)
	if err != nil {
		return "", 0, "", err
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, "", fmt.Errorf("write body: %w", err)
	}
	return filepath.ToSlash(key), written, mimeType, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, object.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a stored object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func (s *Store) resolve(storageKey string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key")
	}
	return filepath.Join(s.baseDir, clean), nil
}

var _ object.ObjectStore = (*Store)(nil)

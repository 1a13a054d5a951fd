package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"esign-backend/internal/shared/ids"
	"esign-backend/internal/shared/util"
)

// ErrNotFound is returned when a storage key has no object behind it.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving, retrieving and removing
// document blobs.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// Presigner is implemented by stores that can hand out time-limited
// download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, storageKey, downloadName string, ttl time.Duration) (string, error)
}

// NewKey builds the storage key for a new blob: the hashed owner namespace
// followed by a sortable id and the sanitized file name.
func NewKey(ownerID, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.HashOwnerKey(ownerID), ids.New()+"_"+name), nil
}

// Sniff reads up to 512 bytes from r for content detection and returns a
// reader replaying them ahead of the remainder.
func Sniff(r io.Reader) (mimeType string, head []byte, err error) {
	var buf [512]byte
	n, readErr := io.ReadFull(r, buf[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", readErr)
	}
	return http.DetectContentType(buf[:n]), buf[:n], nil
}

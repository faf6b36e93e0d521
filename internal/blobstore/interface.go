package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
)

const maxKeyLength = 255

var (
	// ErrNotFound is returned when a key has no stored blob.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that are not a single flat name.
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStat describes the presence and size of one key.
type BlobStat struct {
	Exists    bool
	SizeBytes int64
	ModTime   time.Time
}

// BlobInfo describes one stored blob, as returned by List.
type BlobInfo struct {
	Key       string
	SizeBytes int64
	ModTime   time.Time
}

// BlobStore is the byte-storage abstraction used by AttachmentService.
//
// Keys address a flat namespace. Delete is idempotent: removing an absent key
// succeeds.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (BlobStat, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]BlobInfo, error)
	Backend() string
}

// ValidateKey reports whether key is a usable flat storage key.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: key too long", ErrInvalidKey)
	}
	if strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r == ':' || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

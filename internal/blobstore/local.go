package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	localBackendName = "local"
	localTmpDirName  = ".tmp"
)

// LocalStore stores blobs as files in one flat directory.
//
// Writes land in <root>/.tmp and are renamed into place, so a key is either
// absent or fully written.
type LocalStore struct {
	root string
}

// NewLocalStore creates a flat local store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	s := &LocalStore{root: abs}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the absolute storage directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Backend names the storage backend.
func (s *LocalStore) Backend() string {
	return localBackendName
}

// Put streams r into a temp file and renames it to key.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return 0, fmt.Errorf("reader is required")
	}
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// The root may have been removed underneath us; recreate it on demand.
	if err := s.ensureDirs(); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, localTmpDirName), "put-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}

	if err := os.Rename(tmpPath, filepath.Join(s.root, key)); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

// Open returns a reader for key content.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Stat reports whether key exists and its size.
func (s *LocalStore) Stat(ctx context.Context, key string) (BlobStat, error) {
	var zero BlobStat
	if s == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := ValidateKey(key); err != nil {
		return zero, err
	}
	info, err := os.Stat(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zero, nil
		}
		return zero, err
	}
	if !info.Mode().IsRegular() {
		return zero, nil
	}
	return BlobStat{Exists: true, SizeBytes: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes a blob. Missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns every stored blob ordered by key. Temp files are skipped.
func (s *LocalStore) List(ctx context.Context) ([]BlobInfo, error) {
	if s == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []BlobInfo{}, nil
		}
		return nil, err
	}

	out := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || ValidateKey(entry.Name()) != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, BlobInfo{Key: entry.Name(), SizeBytes: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *LocalStore) ensureDirs() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(s.root, localTmpDirName), 0o755)
}
